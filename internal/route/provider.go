// Package route 计算步行距离、时长与逐段导航，路线服务不可用时退化为直线估算
package route

import (
	"context"
	"errors"

	"SafeWalk/internal/geo"
)

var (
	// ErrNotGeocoded 地址查不到任何结果
	ErrNotGeocoded = errors.New("route: address not found")
	// ErrNoRoute 路线服务明确返回无路可走
	ErrNoRoute = errors.New("route: no route between points")
)

// Place 一个已解析的地点
type Place struct {
	Point       geo.Point `json:"point"`
	DisplayName string    `json:"display_name,omitempty"`
}

// Geocoder 正向/逆向地理编码服务
type Geocoder interface {
	// Search 返回相关度最高的结果，没有结果时返回 ErrNotGeocoded
	Search(ctx context.Context, query string) (*Place, error)
	Reverse(ctx context.Context, p geo.Point) (string, error)
}

// Router 步行路线服务
type Router interface {
	Route(ctx context.Context, from, to geo.Point) (*Result, error)
}

// Result 路线服务的原始结果
type Result struct {
	DistanceMeters  float64
	DurationSeconds *float64 // 部分服务不返回时长
	Steps           []Maneuver
	Path            []geo.Point
}

// Maneuver 路线服务给出的单步动作
type Maneuver struct {
	Type            string
	Modifier        string
	Name            string
	DistanceMeters  float64
	DurationSeconds float64
}
