package route

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"SafeWalk/internal/cache"
	"SafeWalk/internal/geo"
	"SafeWalk/pkg/logger"
	"SafeWalk/pkg/metrics"
)

// RefreshThresholdMeters 位置变化小于该值时沿用上一次估算
const RefreshThresholdMeters = 25.0

// Endpoint 起点或终点，地址和坐标二选一，坐标优先
type Endpoint struct {
	Name    string     `json:"name,omitempty"`
	Address string     `json:"address,omitempty"`
	Point   *geo.Point `json:"point,omitempty"`
}

// AtPoint 以坐标构造端点
func AtPoint(p geo.Point) Endpoint {
	return Endpoint{Point: &p}
}

// AtAddress 以地址构造端点，需要正向地理编码
func AtAddress(address string) Endpoint {
	return Endpoint{Address: address}
}

// Step 一段导航指令
type Step struct {
	Number           int     `json:"step_number"`
	Instruction      string  `json:"instruction"`
	DistanceMeters   float64 `json:"distance_meters"`
	DurationSeconds  float64 `json:"duration_seconds"`
	ManeuverType     string  `json:"maneuver_type,omitempty"`
	ManeuverModifier string  `json:"maneuver_modifier,omitempty"`
}

// Estimate 估算结果，Degraded 表示是直线估算
type Estimate struct {
	DurationMinutes int         `json:"duration_minutes"`
	DistanceMeters  float64     `json:"distance_meters"`
	Steps           []Step      `json:"steps"`
	Path            []geo.Point `json:"path,omitempty"`
	Degraded        bool        `json:"degraded"`
	Origin          Place       `json:"origin"`
	Destination     Place       `json:"destination"`
}

// PlaceCache 地理编码缓存，*cache.ProtectedCache 满足该接口
type PlaceCache interface {
	Get(ctx context.Context, key string, dest interface{}) (cache.Lookup, error)
	Set(ctx context.Context, key string, value interface{}) error
}

// Estimator 组合地理编码、路线服务与直线兜底
type Estimator struct {
	geocoder Geocoder
	router   Router
	provider string
	breaker  *cache.CircuitBreaker
	places   PlaceCache
	timeout  time.Duration
}

type Option func(*Estimator)

// WithBreaker 路线服务连续失败后直接走兜底
func WithBreaker(cb *cache.CircuitBreaker) Option {
	return func(e *Estimator) { e.breaker = cb }
}

// WithPlaceCache 缓存正向地理编码结果
func WithPlaceCache(c PlaceCache) Option {
	return func(e *Estimator) { e.places = c }
}

// WithTimeout 单次外部调用超时
func WithTimeout(d time.Duration) Option {
	return func(e *Estimator) { e.timeout = d }
}

// WithProviderName 指标里使用的服务名
func WithProviderName(name string) Option {
	return func(e *Estimator) { e.provider = name }
}

// NewEstimator 创建估算器，router 可为 nil，此时总是直线估算
func NewEstimator(geocoder Geocoder, router Router, opts ...Option) *Estimator {
	e := &Estimator{
		geocoder: geocoder,
		router:   router,
		provider: "default",
		timeout:  8 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Estimate 计算两点之间的步行距离与时长
// 地址无法解析时返回 ErrNotGeocoded；路线服务失败时返回直线估算并标记 Degraded
func (e *Estimator) Estimate(ctx context.Context, origin, destination Endpoint) (*Estimate, error) {
	started := time.Now()

	from, err := e.resolve(ctx, origin)
	if err != nil {
		metrics.RecordEstimate(e.provider, "unresolved", time.Since(started).Seconds())
		return nil, fmt.Errorf("resolve origin: %w", err)
	}
	to, err := e.resolve(ctx, destination)
	if err != nil {
		metrics.RecordEstimate(e.provider, "unresolved", time.Since(started).Seconds())
		return nil, fmt.Errorf("resolve destination: %w", err)
	}

	result, err := e.route(ctx, from.Point, to.Point)
	if err != nil {
		logger.Logger.Warn("Routing failed, using straight-line estimate",
			zap.String("provider", e.provider),
			zap.Error(err),
		)
		metrics.RecordEstimate(e.provider, "fallback", time.Since(started).Seconds())
		return StraightLine(*from, *to), nil
	}

	est := &Estimate{
		DistanceMeters: result.DistanceMeters,
		Steps:          BuildSteps(result.Steps),
		Path:           result.Path,
		Origin:         *from,
		Destination:    *to,
	}
	if result.DurationSeconds != nil {
		est.DurationMinutes = secondsToMinutes(*result.DurationSeconds)
	} else {
		est.DurationMinutes = geo.WalkingMinutes(result.DistanceMeters)
	}

	metrics.RecordEstimate(e.provider, "ok", time.Since(started).Seconds())
	return est, nil
}

// Refresh 当前位置与上次估算起点相距不足阈值时直接复用上次结果
// prev 由调用方持有，估算器本身不保存状态
func (e *Estimator) Refresh(ctx context.Context, prev *Estimate, current geo.Point, destination Endpoint) (*Estimate, error) {
	if prev != nil && geo.Haversine(prev.Origin.Point, current) < RefreshThresholdMeters {
		return prev, nil
	}
	return e.Estimate(ctx, AtPoint(current), destination)
}

// ReverseGeocode 坐标转地址，失败时返回空字符串和错误
func (e *Estimator) ReverseGeocode(ctx context.Context, p geo.Point) (string, error) {
	if e.geocoder == nil {
		return "", errors.New("route: no geocoder configured")
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.geocoder.Reverse(ctx, p)
}

// StraightLine 直线兜底：哈弗辛距离加固定步行速度
func StraightLine(from, to Place) *Estimate {
	d := geo.Haversine(from.Point, to.Point)
	return &Estimate{
		DistanceMeters:  d,
		DurationMinutes: geo.WalkingMinutes(d),
		Steps:           []Step{},
		Path:            []geo.Point{from.Point, to.Point},
		Degraded:        true,
		Origin:          from,
		Destination:     to,
	}
}

func (e *Estimator) route(ctx context.Context, from, to geo.Point) (*Result, error) {
	if e.router == nil {
		return nil, errors.New("no router configured")
	}

	var result *Result
	call := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		r, err := e.router.Route(ctx, from, to)
		if err != nil {
			return err
		}
		if r == nil || (r.DistanceMeters <= 0 && len(r.Steps) == 0) {
			return ErrNoRoute
		}
		result = r
		return nil
	}

	var err error
	if e.breaker == nil {
		err = call(ctx)
	} else {
		err = e.breaker.Call(ctx, call)
	}
	return result, err
}

func (e *Estimator) resolve(ctx context.Context, ep Endpoint) (*Place, error) {
	if ep.Point != nil {
		if !ep.Point.Valid() {
			return nil, fmt.Errorf("invalid coordinates %v", *ep.Point)
		}
		name := ep.Name
		if name == "" {
			name = ep.Address
		}
		return &Place{Point: *ep.Point, DisplayName: name}, nil
	}

	query := strings.TrimSpace(ep.Address)
	if query == "" {
		return nil, ErrNotGeocoded
	}
	if e.geocoder == nil {
		return nil, errors.New("route: no geocoder configured")
	}

	key := strings.ToLower(query)
	if e.places != nil {
		var cached Place
		switch hit, err := e.places.Get(ctx, key, &cached); {
		case err != nil:
			logger.Logger.Warn("Geocode cache read failed", zap.Error(err))
		case hit == cache.HitEmpty:
			return nil, ErrNotGeocoded
		case hit == cache.Hit:
			return &cached, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	place, err := e.geocoder.Search(ctx, query)
	if errors.Is(err, ErrNotGeocoded) {
		e.remember(ctx, key, nil)
		return nil, ErrNotGeocoded
	}
	if err != nil {
		return nil, err
	}
	e.remember(ctx, key, place)
	return place, nil
}

func (e *Estimator) remember(ctx context.Context, key string, place *Place) {
	if e.places == nil {
		return
	}
	var value interface{}
	if place != nil {
		value = place
	}
	if err := e.places.Set(ctx, key, value); err != nil {
		logger.Logger.Warn("Geocode cache write failed", zap.Error(err))
	}
}

func secondsToMinutes(seconds float64) int {
	if seconds <= 0 {
		return 0
	}
	m := int(seconds / 60)
	if float64(m*60) < seconds {
		m++
	}
	return m
}
