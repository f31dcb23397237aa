// Package geo 提供大圆距离、步行时长换算与轨迹统计
package geo

import (
	"math"

	"github.com/golang/geo/s2"
)

const (
	// EarthRadiusMeters 地球平均半径
	EarthRadiusMeters = 6371000.0
	// WalkingSpeedMps 假定步行速度，3 mph
	WalkingSpeedMps = 1.34112
)

// Point 经纬度坐标，单位度
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid 检查坐标是否在合法范围内
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

func (p Point) latLng() s2.LatLng {
	return s2.LatLngFromDegrees(p.Lat, p.Lng)
}

// Haversine 两点间大圆距离，单位米
func Haversine(a, b Point) float64 {
	return a.latLng().Distance(b.latLng()).Radians() * EarthRadiusMeters
}

// WalkingMinutes 按固定步行速度把距离换算成整分钟，向上取整
func WalkingMinutes(distanceMeters float64) int {
	if distanceMeters <= 0 {
		return 0
	}
	return int(math.Ceil(distanceMeters / WalkingSpeedMps / 60))
}
