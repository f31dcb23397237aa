package schedule

// 超时扫描：预计到达时间加宽限期之后仍未结束的行程，通知联系人一次

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"SafeWalk/internal/model"
	"SafeWalk/internal/repository"
	"SafeWalk/pkg/logger"
)

// OverdueNotifier *service.NotificationService 满足该接口
type OverdueNotifier interface {
	NotifyOverdue(ctx context.Context, j *model.Journey) (int, error)
}

// OverdueFlags 每个行程只提醒一次，cache.OverdueFlags 满足该接口
type OverdueFlags interface {
	TryMark(ctx context.Context, journeyID string) (bool, error)
	Unmark(ctx context.Context, journeyID string) error
}

// OverdueScheduler 超时未到达扫描
type OverdueScheduler struct {
	logger   *zap.Logger
	journeys repository.JourneyStore
	notifier OverdueNotifier
	flags    OverdueFlags
	grace    time.Duration
	now      func() time.Time

	jobRunning    bool
	jobMu         sync.Mutex
	lastCheckTime time.Time
}

func NewOverdueScheduler(journeys repository.JourneyStore, notifier OverdueNotifier, flags OverdueFlags, grace time.Duration) *OverdueScheduler {
	return &OverdueScheduler{
		logger:   logger.Logger,
		journeys: journeys,
		notifier: notifier,
		flags:    flags,
		grace:    grace,
		now:      time.Now,
	}
}

// WithClock 替换时钟，测试用
func (s *OverdueScheduler) WithClock(now func() time.Time) *OverdueScheduler {
	s.now = now
	return s
}

// LastCheckTime 上一次扫描开始的时间
func (s *OverdueScheduler) LastCheckTime() time.Time {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	return s.lastCheckTime
}

// CheckOverdueJourneys 定时任务调用，上一轮未结束时跳过
func (s *OverdueScheduler) CheckOverdueJourneys(ctx context.Context) error {
	s.jobMu.Lock()
	if s.jobRunning {
		s.jobMu.Unlock()
		s.logger.Info("Overdue journey check already running, skipping")
		return nil
	}
	s.jobRunning = true
	startTime := s.now()
	s.lastCheckTime = startTime
	s.jobMu.Unlock()

	defer func() {
		s.jobMu.Lock()
		s.jobRunning = false
		s.jobMu.Unlock()
	}()

	journeys, err := s.journeys.ListOverdue(ctx, startTime.Add(-s.grace))
	if err != nil {
		s.logger.Error("Failed to query overdue journeys", zap.Error(err))
		return fmt.Errorf("failed to query overdue journeys: %w", err)
	}

	if len(journeys) == 0 {
		s.logger.Debug("No overdue journeys found")
		return nil
	}

	s.logger.Warn("Found overdue journeys",
		zap.Int("journey_count", len(journeys)),
	)

	var wg sync.WaitGroup
	errs := make([]error, 0)
	errsMu := sync.Mutex{}
	notified := 0

	for i := range journeys {
		wg.Add(1)
		go func(j *model.Journey) {
			defer wg.Done()

			first, err := s.flags.TryMark(ctx, j.ID)
			if err != nil {
				s.logger.Warn("Failed to mark overdue journey",
					zap.String("journey_id", j.ID),
					zap.Error(err),
				)
				errsMu.Lock()
				errs = append(errs, err)
				errsMu.Unlock()
				return
			}
			if !first {
				return
			}

			n, err := s.notifier.NotifyOverdue(ctx, j)
			if err != nil {
				s.logger.Error("Failed to notify overdue journey",
					zap.String("journey_id", j.ID),
					zap.Error(err),
				)
				// 清除标记，下一轮重试
				if uerr := s.flags.Unmark(ctx, j.ID); uerr != nil {
					s.logger.Warn("Failed to unmark overdue journey",
						zap.String("journey_id", j.ID),
						zap.Error(uerr),
					)
				}
				errsMu.Lock()
				errs = append(errs, fmt.Errorf("journey %s: %w", j.ID, err))
				errsMu.Unlock()
				return
			}

			errsMu.Lock()
			notified++
			errsMu.Unlock()

			s.logger.Info("Notified contacts of overdue journey",
				zap.String("journey_id", j.ID),
				zap.Int("contacts", n),
				zap.Time("estimated_arrival", j.EstimatedArrival),
			)
		}(&journeys[i])
	}

	wg.Wait()

	s.logger.Info("Overdue journey check completed",
		zap.Duration("duration", s.now().Sub(startTime)),
		zap.Int("journey_count", len(journeys)),
		zap.Int("notified", notified),
		zap.Int("error_count", len(errs)),
	)

	if len(errs) > 0 {
		return fmt.Errorf("overdue journey check completed with %d errors", len(errs))
	}
	return nil
}
