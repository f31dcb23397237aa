package route

import (
	"context"
	"fmt"
	"strings"

	"SafeWalk/internal/geo"
)

// OSRMRouter 调用 OSRM 兼容的步行路线服务
type OSRMRouter struct {
	baseURL string
	profile string
	doer    Doer
}

// NewOSRMRouter 创建 OSRM 路线客户端，profile 默认 foot
func NewOSRMRouter(baseURL string, doer Doer) *OSRMRouter {
	return &OSRMRouter{
		baseURL: strings.TrimRight(baseURL, "/"),
		profile: "foot",
		doer:    doer,
	}
}

type osrmResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Routes  []osrmRoute `json:"routes"`
}

type osrmRoute struct {
	Distance float64  `json:"distance"`
	Duration *float64 `json:"duration"`
	Geometry struct {
		Coordinates [][]float64 `json:"coordinates"`
	} `json:"geometry"`
	Legs []struct {
		Steps []osrmStep `json:"steps"`
	} `json:"legs"`
}

type osrmStep struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
	Name     string  `json:"name"`
	Maneuver struct {
		Type     string `json:"type"`
		Modifier string `json:"modifier"`
	} `json:"maneuver"`
}

func (r *OSRMRouter) routeURL(from, to geo.Point) string {
	return fmt.Sprintf("%s/route/v1/%s/%f,%f;%f,%f?overview=full&steps=true&geometries=geojson",
		r.baseURL, r.profile, from.Lng, from.Lat, to.Lng, to.Lat)
}

// Route 请求步行路线，包含完整几何和逐段指令
func (r *OSRMRouter) Route(ctx context.Context, from, to geo.Point) (*Result, error) {
	var body osrmResponse
	if err := getJSON(ctx, r.doer, r.routeURL(from, to), nil, &body); err != nil {
		return nil, err
	}
	return body.toResult()
}

func (b *osrmResponse) toResult() (*Result, error) {
	if b.Code != "" && b.Code != "Ok" {
		if b.Code == "NoRoute" {
			return nil, ErrNoRoute
		}
		return nil, fmt.Errorf("osrm: %s %s", b.Code, b.Message)
	}
	if len(b.Routes) == 0 {
		return nil, ErrNoRoute
	}

	route := b.Routes[0]
	result := &Result{
		DistanceMeters:  route.Distance,
		DurationSeconds: route.Duration,
	}
	for _, c := range route.Geometry.Coordinates {
		if len(c) >= 2 {
			result.Path = append(result.Path, geo.Point{Lat: c[1], Lng: c[0]})
		}
	}
	if len(route.Legs) > 0 {
		for _, s := range route.Legs[0].Steps {
			result.Steps = append(result.Steps, Maneuver{
				Type:            s.Maneuver.Type,
				Modifier:        s.Maneuver.Modifier,
				Name:            s.Name,
				DistanceMeters:  s.Distance,
				DurationSeconds: s.Duration,
			})
		}
	}
	return result, nil
}
