// Package sampler 把平台的持续定位监听包装成可取消的位置流
package sampler

import (
	"context"
	"errors"
	"sync"
	"time"

	"SafeWalk/internal/geo"
)

var (
	// ErrPermissionDenied 用户拒绝定位授权，流随之结束，调用方需要提示用户
	ErrPermissionDenied = errors.New("sampler: location permission denied")
	// ErrTimeout 超时未拿到新位置，可容忍，采样继续
	ErrTimeout = errors.New("sampler: timed out waiting for position")
	// ErrUnavailable 暂时无法定位，可容忍
	ErrUnavailable = errors.New("sampler: position unavailable")
)

// Options 定位参数
type Options struct {
	HighAccuracy bool          `json:"high_accuracy"`
	MaxAge       time.Duration `json:"-"` // 缓存位置可接受的最大年龄
	Timeout      time.Duration `json:"-"` // 单次等待位置的超时
}

// DefaultOptions 高精度，缓存 10 秒，超时 5 秒
func DefaultOptions() Options {
	return Options{HighAccuracy: true, MaxAge: 10 * time.Second, Timeout: 5 * time.Second}
}

// Position 一次定位结果，Timestamp 为采集时间
type Position struct {
	geo.Point
	Accuracy  *float64  `json:"accuracy,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Source 平台定位监听原语，回调可能来自任意 goroutine
type Source interface {
	Watch(opts Options, onPosition func(Position), onError func(error)) (stop func(), err error)
}

// Sampler 对 Source 做过期过滤与超时检测
type Sampler struct {
	src  Source
	opts Options
	now  func() time.Time
}

func New(src Source, opts Options) *Sampler {
	return &Sampler{src: src, opts: opts, now: time.Now}
}

// WithClock 替换时钟，测试用
func (s *Sampler) WithClock(now func() time.Time) *Sampler {
	s.now = now
	return s
}

// Options 返回当前定位参数
func (s *Sampler) Options() Options {
	return s.opts
}

// Stream 开始监听，返回位置流和错误流
// ctx 取消或遇到 ErrPermissionDenied 时两个通道都会关闭，底层监听同时停止
func (s *Sampler) Stream(ctx context.Context) (<-chan Position, <-chan error) {
	out := make(chan Position, 16)
	errc := make(chan error, 4)

	raw := make(chan Position, 16)
	rawErr := make(chan error, 4)
	done := ctx.Done()

	stop, err := s.src.Watch(s.opts,
		func(p Position) {
			select {
			case raw <- p:
			case <-done:
			}
		},
		func(e error) {
			select {
			case rawErr <- e:
			case <-done:
			}
		},
	)
	if err != nil {
		errc <- err
		close(out)
		close(errc)
		return out, errc
	}

	go s.pump(ctx, stop, raw, rawErr, out, errc)
	return out, errc
}

func (s *Sampler) pump(ctx context.Context, stop func(), raw <-chan Position, rawErr <-chan error,
	out chan<- Position, errc chan<- error) {
	defer close(errc)
	defer close(out)
	defer stop()

	var timeout <-chan time.Time
	var timer *time.Timer
	if s.opts.Timeout > 0 {
		timer = time.NewTimer(s.opts.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}
	resetTimer := func() {
		if timer == nil {
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(s.opts.Timeout)
	}

	emitErr := func(e error) bool {
		select {
		case errc <- e:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case p := <-raw:
			now := s.now()
			if p.Timestamp.IsZero() {
				p.Timestamp = now
			}
			if s.opts.MaxAge > 0 && now.Sub(p.Timestamp) > s.opts.MaxAge {
				continue
			}
			resetTimer()
			select {
			case out <- p:
			case <-ctx.Done():
				return
			}

		case e := <-rawErr:
			if !emitErr(e) {
				return
			}
			if errors.Is(e, ErrPermissionDenied) {
				return
			}

		case <-timeout:
			if !emitErr(ErrTimeout) {
				return
			}
			timer.Reset(s.opts.Timeout)
		}
	}
}

// Handle 对应 start 返回的句柄
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop 停止监听并等待回调全部结束，可重复调用
func (h *Handle) Stop() {
	h.once.Do(h.cancel)
	<-h.done
}

// Done 采样结束时关闭
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Start 以回调方式消费位置流，回调在同一个 goroutine 中顺序执行
func (s *Sampler) Start(ctx context.Context, onSample func(Position), onError func(error)) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}

	samples, errs := s.Stream(ctx)
	go func() {
		defer close(h.done)
		defer cancel()
		for samples != nil || errs != nil {
			select {
			case p, ok := <-samples:
				if !ok {
					samples = nil
					continue
				}
				if onSample != nil {
					onSample(p)
				}
			case e, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				if onError != nil {
					onError(e)
				}
			}
		}
	}()
	return h
}
