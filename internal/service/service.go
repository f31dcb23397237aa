// Package service 行程、平安确认、定位与通知的业务逻辑
package service

import (
	"context"
	"sync"
	"time"

	"SafeWalk/internal/model"
	"SafeWalk/internal/realtime"
	"SafeWalk/internal/repository"
	"SafeWalk/internal/route"
)

const (
	defaultCheckInInterval = 5
	minCheckInInterval     = 1
	maxCheckInInterval     = 60
)

// Config 服务层需要的运行参数
type Config struct {
	// AlertHaltsMonitoring 为 true 时告警即结束行程，停止确认和定位
	AlertHaltsMonitoring   bool
	DefaultCheckInInterval int
	TrackingURL            func(journeyID string) string
}

func (c Config) trackingURL(journeyID string) string {
	if c.TrackingURL == nil {
		return "/track/" + journeyID
	}
	return c.TrackingURL(journeyID)
}

// Monitor 行程开始后持续运行的监控，平安确认调度和定位采样都实现该接口
type Monitor interface {
	Start(j *model.Journey)
	Stop(journeyID string)
}

// ETASource 能提供剩余路程估算的监控，定位采样实现该接口
type ETASource interface {
	RemainingETA(journeyID string) *route.Estimate
}

// RouteEstimator *route.Estimator 满足该接口
type RouteEstimator interface {
	Estimate(ctx context.Context, origin, destination route.Endpoint) (*route.Estimate, error)
}

// NotificationPublisher 通知事件投递，queue.Publisher 满足该接口
type NotificationPublisher interface {
	PublishNotificationEvent(ctx context.Context, msg model.NotificationEventMessage) error
}

// PromptResolver 收到回应后结束当前这一轮确认
type PromptResolver interface {
	Resolve(journeyID string)
}

// Deps 构造服务所需的依赖
type Deps struct {
	Store     repository.Store
	Estimator RouteEstimator
	Publisher NotificationPublisher
	Emitter   realtime.Emitter
	Config    Config
	Now       func() time.Time
}

func (d Deps) clock() func() time.Time {
	if d.Now == nil {
		return time.Now
	}
	return d.Now
}

// Services 一组相互引用的服务实例
type Services struct {
	Journey      *JourneyService
	CheckIn      *CheckInService
	Location     *LocationService
	Notification *NotificationService
	Contact      *ContactService
}

// New 按依赖关系组装服务
func New(d Deps) *Services {
	if d.Config.DefaultCheckInInterval <= 0 {
		d.Config.DefaultCheckInInterval = defaultCheckInInterval
	}
	notification := NewNotificationService(d)
	journey := NewJourneyService(d, notification)
	return &Services{
		Journey:      journey,
		CheckIn:      NewCheckInService(d, journey),
		Location:     NewLocationService(d, journey),
		Notification: notification,
		Contact:      NewContactService(d),
	}
}

var (
	services  *Services
	setupOnce sync.Once
)

// Setup 进程入口调用一次，之后通过包级访问器获取
func Setup(d Deps) *Services {
	setupOnce.Do(func() {
		services = New(d)
	})
	return services
}

func registry() *Services {
	if services == nil {
		panic("service: Setup has not been called")
	}
	return services
}

func Journey() *JourneyService {
	return registry().Journey
}

func CheckIn() *CheckInService {
	return registry().CheckIn
}

func Location() *LocationService {
	return registry().Location
}

func Notification() *NotificationService {
	return registry().Notification
}

func Contact() *ContactService {
	return registry().Contact
}
