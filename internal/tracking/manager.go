// Package tracking 为每个监控中的行程运行一个定位采样器，把设备上报转成位置发布
package tracking

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"SafeWalk/internal/geo"
	"SafeWalk/internal/model"
	"SafeWalk/internal/realtime"
	"SafeWalk/internal/route"
	"SafeWalk/internal/sampler"
	pkgerrors "SafeWalk/pkg/errors"
	"SafeWalk/pkg/logger"
	"SafeWalk/pkg/metrics"
)

// DefaultETAInterval 剩余时间最多每分钟重新估算一次
const DefaultETAInterval = time.Minute

// Publisher *service.LocationService 满足该接口
type Publisher interface {
	Publish(ctx context.Context, journeyID string, p sampler.Position) error
}

// Refresher *route.Estimator 满足该接口
type Refresher interface {
	Refresh(ctx context.Context, prev *route.Estimate, current geo.Point, destination route.Endpoint) (*route.Estimate, error)
}

// Warning 推送给出行者的定位告警
type Warning struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

const (
	WarningPermissionDenied = "permission_denied"
	WarningTimeout          = "timeout"
)

// Manager 行程与采样会话的对应关系
type Manager struct {
	publisher   Publisher
	refresher   Refresher
	emitter     realtime.Emitter
	opts        sampler.Options
	etaInterval time.Duration
	now         func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*session
}

type Option func(*Manager)

// WithRefresher 采样后刷新剩余时间估算
func WithRefresher(r Refresher) Option {
	return func(m *Manager) { m.refresher = r }
}

// WithEmitter 定位告警推送到 tracking-warning 主题
func WithEmitter(e realtime.Emitter) Option {
	return func(m *Manager) { m.emitter = e }
}

// WithETAInterval 两次估算之间的最短间隔
func WithETAInterval(d time.Duration) Option {
	return func(m *Manager) { m.etaInterval = d }
}

// WithClock 替换时钟，测试用
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(publisher Publisher, opts sampler.Options, options ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		publisher:   publisher,
		opts:        opts,
		etaInterval: DefaultETAInterval,
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
		sessions:    make(map[string]*session),
	}
	for _, o := range options {
		o(m)
	}
	return m
}

type session struct {
	journeyID   string
	destination route.Endpoint
	feed        *sampler.DeviceFeed

	mu            sync.Mutex
	handle        *sampler.Handle
	eta           *route.Estimate
	etaAt         time.Time
	refreshing    bool
	timeoutWarned bool
}

// Options 下发给设备的定位参数
func (m *Manager) Options() sampler.Options {
	return m.opts
}

// Start 行程开始或恢复时调用，已在采样的行程忽略
func (m *Manager) Start(j *model.Journey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[j.ID]; ok {
		return
	}
	m.startLocked(j)
	logger.Logger.Debug("Tracking started", zap.String("journey_id", j.ID))
}

func (m *Manager) startLocked(j *model.Journey) *session {
	s := &session{
		journeyID:   j.ID,
		destination: route.AtPoint(geo.Point{Lat: j.DestinationLat, Lng: j.DestinationLng}),
		feed:        sampler.NewDeviceFeed(),
	}
	m.sessions[j.ID] = s
	m.run(s)
	return s
}

// run 调用方持有 m.mu
// MaxAge 已通过 /sampler 下发给设备，设备上传的位置服务端不再按年龄丢弃
func (m *Manager) run(s *session) {
	opts := m.opts
	opts.MaxAge = 0
	smp := sampler.New(s.feed, opts).WithClock(m.now)
	h := smp.Start(m.ctx,
		func(p sampler.Position) { m.onSample(s, p) },
		func(err error) { m.onError(s, err) },
	)
	s.mu.Lock()
	s.handle = h
	s.mu.Unlock()
}

// Stop 行程结束时调用，可重复调用
func (m *Manager) Stop(journeyID string) {
	m.mu.Lock()
	s, ok := m.sessions[journeyID]
	delete(m.sessions, journeyID)
	m.mu.Unlock()
	if !ok {
		return
	}

	s.mu.Lock()
	h := s.handle
	s.mu.Unlock()
	if h != nil {
		h.Stop()
	}
	logger.Logger.Debug("Tracking stopped", zap.String("journey_id", journeyID))
}

// StopAll 进程退出时调用
func (m *Manager) StopAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Stop(id)
	}
	m.cancel()
}

// Tracking 行程当前是否有采样会话
func (m *Manager) Tracking(journeyID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[journeyID]
	return ok
}

// Ingest 设备上报一次定位，会话不存在时先建立
// 授权被拒后采样已经结束，设备重新上报说明已恢复授权，重新开始采样
func (m *Manager) Ingest(j *model.Journey, p sampler.Position) {
	s := m.ensure(j)
	s.feed.Push(m.stamp(p))
}

// stamp 设备时钟偏差超过 MaxAge 时改用服务端接收时间
func (m *Manager) stamp(p sampler.Position) sampler.Position {
	now := m.now()
	if p.Timestamp.IsZero() {
		p.Timestamp = now
		return p
	}
	skew := now.Sub(p.Timestamp)
	if skew < 0 {
		skew = -skew
	}
	if m.opts.MaxAge > 0 && skew > m.opts.MaxAge {
		p.Timestamp = now
	}
	return p
}

// ReportError 设备上报的定位错误
func (m *Manager) ReportError(j *model.Journey, code string) {
	s := m.ensure(j)
	s.feed.Fail(sampler.ErrorFromCode(code))
}

func (m *Manager) ensure(j *model.Journey) *session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[j.ID]
	if !ok {
		return m.startLocked(j)
	}

	s.mu.Lock()
	h := s.handle
	s.mu.Unlock()
	select {
	case <-h.Done():
		m.run(s)
	default:
	}
	return s
}

// RemainingETA 最近一次的剩余路程估算，没有时返回 nil
func (m *Manager) RemainingETA(journeyID string) *route.Estimate {
	m.mu.Lock()
	s, ok := m.sessions[journeyID]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eta
}

func (m *Manager) onSample(s *session, p sampler.Position) {
	err := m.publisher.Publish(m.ctx, s.journeyID, p)
	switch {
	case errors.Is(err, pkgerrors.JourneyNotActive), errors.Is(err, pkgerrors.JourneyNotFound):
		// 回调运行在采样 goroutine 中，Stop 会等待它结束
		go m.Stop(s.journeyID)
		return
	case err != nil:
		logger.Logger.Warn("Failed to publish location",
			zap.String("journey_id", s.journeyID),
			zap.Error(err),
		)
		return
	}

	s.mu.Lock()
	s.timeoutWarned = false
	s.mu.Unlock()

	m.maybeRefresh(s, p.Point)
}

func (m *Manager) maybeRefresh(s *session, current geo.Point) {
	if m.refresher == nil {
		return
	}

	s.mu.Lock()
	now := m.now()
	if s.refreshing || (!s.etaAt.IsZero() && now.Sub(s.etaAt) < m.etaInterval) {
		s.mu.Unlock()
		return
	}
	s.refreshing = true
	prev := s.eta
	s.mu.Unlock()

	go func() {
		est, err := m.refresher.Refresh(m.ctx, prev, current, s.destination)

		s.mu.Lock()
		defer s.mu.Unlock()
		s.refreshing = false
		if err != nil {
			logger.Logger.Debug("Remaining ETA refresh failed",
				zap.String("journey_id", s.journeyID),
				zap.Error(err),
			)
			return
		}
		s.eta = est
		s.etaAt = m.now()
	}()
}

func (m *Manager) onError(s *session, err error) {
	switch {
	case errors.Is(err, sampler.ErrPermissionDenied):
		metrics.RecordSamplerError("permission_denied")
		logger.Logger.Info("Location permission denied", zap.String("journey_id", s.journeyID))
		m.warn(s, WarningPermissionDenied, "Location access was denied. Live tracking is paused until it is allowed again.")

	case errors.Is(err, sampler.ErrTimeout):
		metrics.RecordSamplerError("timeout")
		s.mu.Lock()
		first := !s.timeoutWarned
		s.timeoutWarned = true
		s.mu.Unlock()
		if first {
			m.warn(s, WarningTimeout, "Waiting for a location fix. Tracking continues in the background.")
		}

	default:
		metrics.RecordSamplerError("unavailable")
		logger.Logger.Debug("Position unavailable",
			zap.String("journey_id", s.journeyID),
			zap.Error(err),
		)
	}
}

func (m *Manager) warn(s *session, code, message string) {
	realtime.Emit(m.ctx, m.emitter, realtime.TopicTrackingWarning, "tracking", realtime.Insert, s.journeyID,
		Warning{Code: code, Message: message, At: m.now()})
}
