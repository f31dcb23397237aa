package schedule

// 平安确认调度器：行程开始后按间隔弹出确认，应答窗口到期未回应则升级告警

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"SafeWalk/internal/model"
	"SafeWalk/internal/queue"
	"SafeWalk/internal/realtime"
	"SafeWalk/internal/repository"
	"SafeWalk/pkg/logger"
	"SafeWalk/pkg/metrics"
)

// State 单个行程的确认状态
type State int

const (
	StateIdle      State = iota // 未调度
	StateWaiting                // 计时中
	StatePrompting              // 已弹出确认，等待回应
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StatePrompting:
		return "prompting"
	default:
		return "idle"
	}
}

// Ticker 可注入的周期触发器
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory 按间隔创建 Ticker，测试时替换为手动触发
type TickerFactory func(d time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Timer 应答窗口计时器
type Timer interface {
	Stop() bool
}

// TimerFactory 在 d 之后调用 f，测试时替换为手动触发
type TimerFactory func(d time.Duration, f func()) Timer

func newAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Guard 多实例下同一行程同一轮只弹一次，cache.RedisGuard 满足该接口
type Guard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// DeadlinePublisher 应答截止的延迟消息，queue.Publisher 满足该接口
type DeadlinePublisher interface {
	PublishCheckInDeadline(ctx context.Context, journeyID string, promptedAt time.Time, delay time.Duration) error
}

// Prompt 推送给出行者的确认请求
type Prompt struct {
	JourneyID  string    `json:"journey_id"`
	PromptedAt time.Time `json:"prompted_at"`
	RespondBy  time.Time `json:"respond_by"`
}

// CheckInScheduler 每个行程一个计时循环
type CheckInScheduler struct {
	journeys    repository.JourneyStore
	monitorable func(*model.Journey) bool
	emitter     realtime.Emitter
	guard       Guard
	expirer     queue.DeadlineHandler
	deadlines   DeadlinePublisher
	window      time.Duration
	newTicker   TickerFactory
	afterFunc   TimerFactory
	now         func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	runs map[string]*run
}

type run struct {
	journeyID string
	interval  time.Duration
	window    time.Duration
	ticker    Ticker
	stop      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once

	mu         sync.Mutex
	state      State
	promptedAt time.Time
	timer      Timer
}

type Option func(*CheckInScheduler)

// WithTickerFactory 替换计时器
func WithTickerFactory(f TickerFactory) Option {
	return func(s *CheckInScheduler) { s.newTicker = f }
}

// WithTimerFactory 替换应答窗口计时器
func WithTimerFactory(f TimerFactory) Option {
	return func(s *CheckInScheduler) { s.afterFunc = f }
}

// WithGuard 启用分布式守卫
func WithGuard(g Guard) Option {
	return func(s *CheckInScheduler) { s.guard = g }
}

// WithLocalDeadline 应答窗口到期时在本进程调用 ExpirePrompt
func WithLocalDeadline(h queue.DeadlineHandler) Option {
	return func(s *CheckInScheduler) { s.expirer = h }
}

// WithMQDeadline 应答截止通过延迟消息交给 worker 处理
func WithMQDeadline(p DeadlinePublisher) Option {
	return func(s *CheckInScheduler) { s.deadlines = p }
}

// WithClock 替换时钟，测试用
func WithClock(now func() time.Time) Option {
	return func(s *CheckInScheduler) { s.now = now }
}

// NewCheckInScheduler monitorable 判断行程是否仍需确认，window 为应答窗口
func NewCheckInScheduler(journeys repository.JourneyStore, monitorable func(*model.Journey) bool,
	emitter realtime.Emitter, window time.Duration, opts ...Option) *CheckInScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &CheckInScheduler{
		journeys:    journeys,
		monitorable: monitorable,
		emitter:     emitter,
		window:      window,
		newTicker:   newTimeTicker,
		afterFunc:   newAfterFunc,
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
		runs:        make(map[string]*run),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start 行程开始或恢复时调用，Idle → Waiting
func (s *CheckInScheduler) Start(j *model.Journey) {
	interval := time.Duration(j.CheckInIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[j.ID]; ok {
		return
	}
	r := &run{
		journeyID: j.ID,
		interval:  interval,
		window:    s.responseWindow(interval),
		ticker:    s.newTicker(interval),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		state:     StateWaiting,
	}
	s.runs[j.ID] = r
	go s.loop(r)

	logger.Logger.Info("Check-in schedule started",
		zap.String("journey_id", j.ID),
		zap.Duration("interval", interval),
		zap.Duration("window", r.window),
	)
}

// responseWindow 应答窗口短于确认间隔，配置值不满足时取间隔的一半
func (s *CheckInScheduler) responseWindow(interval time.Duration) time.Duration {
	if s.window <= 0 || s.window >= interval {
		return interval / 2
	}
	return s.window
}

// Stop 行程结束时调用，任意状态 → Idle，可重复调用
func (s *CheckInScheduler) Stop(journeyID string) {
	s.mu.Lock()
	r, ok := s.runs[journeyID]
	delete(s.runs, journeyID)
	s.mu.Unlock()
	if !ok {
		return
	}
	r.halt()
	<-r.done
}

// StopAll 进程退出时调用
func (s *CheckInScheduler) StopAll() {
	s.mu.Lock()
	runs := make([]*run, 0, len(s.runs))
	for id, r := range s.runs {
		runs = append(runs, r)
		delete(s.runs, id)
	}
	s.mu.Unlock()

	for _, r := range runs {
		r.halt()
		<-r.done
	}
	s.cancel()
}

// Resolve 收到回应或应答窗口结束，Prompting → Waiting
func (s *CheckInScheduler) Resolve(journeyID string) {
	s.mu.Lock()
	r, ok := s.runs[journeyID]
	s.mu.Unlock()
	if !ok {
		return
	}
	r.resolve(time.Time{})
}

// State 行程当前的确认状态
func (s *CheckInScheduler) State(journeyID string) State {
	s.mu.Lock()
	r, ok := s.runs[journeyID]
	s.mu.Unlock()
	if !ok {
		return StateIdle
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (s *CheckInScheduler) loop(r *run) {
	defer close(r.done)
	defer r.ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-s.ctx.Done():
			return
		case <-r.ticker.C():
			if !s.tick(r) {
				s.forget(r)
				return
			}
		}
	}
}

// tick 返回 false 表示行程已不需要确认
func (s *CheckInScheduler) tick(r *run) bool {
	r.mu.Lock()
	prompting := r.state == StatePrompting
	r.mu.Unlock()
	if prompting {
		return true
	}

	if s.guard != nil {
		ttl := r.interval / 2
		if ttl < time.Second {
			ttl = time.Second
		}
		ok, err := s.guard.Acquire(s.ctx, "checkin:tick:"+r.journeyID, ttl)
		if err != nil {
			logger.Logger.Warn("Check-in guard unavailable, prompting anyway",
				zap.String("journey_id", r.journeyID),
				zap.Error(err),
			)
		} else if !ok {
			return true
		}
	}

	j, err := s.journeys.GetJourney(s.ctx, r.journeyID)
	if errors.Is(err, repository.ErrNotFound) {
		return false
	}
	if err != nil {
		logger.Logger.Error("Failed to load journey for check-in",
			zap.String("journey_id", r.journeyID),
			zap.Error(err),
		)
		return true
	}
	if !s.monitorable(j) {
		logger.Logger.Info("Journey no longer monitored, stopping check-ins",
			zap.String("journey_id", r.journeyID),
			zap.String("status", string(j.Status)),
		)
		return false
	}

	s.prompt(r)
	return true
}

func (s *CheckInScheduler) prompt(r *run) {
	promptedAt := s.now()

	r.mu.Lock()
	if r.state != StateWaiting {
		r.mu.Unlock()
		return
	}
	r.state = StatePrompting
	r.promptedAt = promptedAt
	r.timer = s.afterFunc(r.window, func() { s.expire(r, promptedAt) })
	r.mu.Unlock()

	metrics.RecordCheckInPrompt()
	realtime.Emit(s.ctx, s.emitter, realtime.TopicCheckInPrompted, "journey_checkins", realtime.Insert, r.journeyID,
		Prompt{JourneyID: r.journeyID, PromptedAt: promptedAt, RespondBy: promptedAt.Add(r.window)})

	if s.deadlines != nil {
		if err := s.deadlines.PublishCheckInDeadline(s.ctx, r.journeyID, promptedAt, r.window); err != nil {
			logger.Logger.Error("Failed to arm check-in deadline",
				zap.String("journey_id", r.journeyID),
				zap.Error(err),
			)
		}
	}
}

func (s *CheckInScheduler) expire(r *run, promptedAt time.Time) {
	if s.expirer != nil {
		if err := s.expirer.ExpirePrompt(s.ctx, r.journeyID, promptedAt); err != nil {
			logger.Logger.Error("Failed to expire check-in prompt",
				zap.String("journey_id", r.journeyID),
				zap.Error(err),
			)
		}
	}
	r.resolve(promptedAt)
}

func (s *CheckInScheduler) forget(r *run) {
	s.mu.Lock()
	if cur, ok := s.runs[r.journeyID]; ok && cur == r {
		delete(s.runs, r.journeyID)
	}
	s.mu.Unlock()
	r.halt()
}

// resolve promptedAt 非零时只结束对应的那一轮
func (r *run) resolve(promptedAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StatePrompting {
		return
	}
	if !promptedAt.IsZero() && !promptedAt.Equal(r.promptedAt) {
		return
	}
	r.state = StateWaiting
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *run) halt() {
	r.stopOnce.Do(func() {
		close(r.stop)
		r.mu.Lock()
		r.state = StateIdle
		if r.timer != nil {
			r.timer.Stop()
			r.timer = nil
		}
		r.mu.Unlock()
	})
}
