package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"SafeWalk/internal/model"
	"SafeWalk/internal/repository"
	pkgerrors "SafeWalk/pkg/errors"
	"SafeWalk/pkg/logger"
	"SafeWalk/pkg/metrics"
)

// CheckInService 处理平安确认的回应与超时
type CheckInService struct {
	store    repository.Store
	journeys *JourneyService
	now      func() time.Time

	mu       sync.RWMutex
	resolver PromptResolver
}

func NewCheckInService(d Deps, journeys *JourneyService) *CheckInService {
	return &CheckInService{
		store:    d.Store,
		journeys: journeys,
		now:      d.clock(),
	}
}

// AttachResolver 调度器在服务之后创建，回应后通知它结束本轮确认
func (s *CheckInService) AttachResolver(r PromptResolver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolver = r
}

func (s *CheckInService) resolve(journeyID string) {
	s.mu.RLock()
	r := s.resolver
	s.mu.RUnlock()
	if r != nil {
		r.Resolve(journeyID)
	}
}

// ParseResponse 只接受 yes / no，no_response 由系统写入
func ParseResponse(raw string) (model.CheckInResponse, error) {
	switch model.CheckInResponse(strings.ToLower(strings.TrimSpace(raw))) {
	case model.CheckInResponseYes:
		return model.CheckInResponseYes, nil
	case model.CheckInResponseNo:
		return model.CheckInResponseNo, nil
	}
	return "", pkgerrors.CheckInResponseBad
}

// Respond 记录出行者的回应，no 会触发告警
func (s *CheckInService) Respond(ctx context.Context, userID int64, journeyID, raw string) (*model.JourneyCheckIn, error) {
	response, err := ParseResponse(raw)
	if err != nil {
		return nil, err
	}
	j, err := ownedJourney(ctx, s.store, userID, journeyID)
	if err != nil {
		return nil, err
	}
	if !s.journeys.IsMonitorable(j) {
		return nil, pkgerrors.JourneyNotActive
	}

	checkIn := &model.JourneyCheckIn{
		JourneyID: j.ID,
		Response:  response,
		CreatedAt: s.now(),
	}

	if response == model.CheckInResponseYes {
		if err := s.store.AddCheckIn(ctx, checkIn); err != nil {
			return nil, fmt.Errorf("failed to record check-in: %w", err)
		}
	} else {
		if _, _, err := s.journeys.escalate(ctx, j, CauseNegativeCheckIn, checkIn); err != nil {
			return nil, err
		}
	}

	metrics.RecordCheckInResponse(string(response))
	logger.Logger.Info("Check-in recorded",
		zap.String("journey_id", j.ID),
		zap.String("response", string(response)),
	)

	s.resolve(j.ID)
	return checkIn, nil
}

// ExpirePrompt 应答窗口到期
// 只有 promptedAt 之后没有任何回应时才写入 no_response 并升级为告警
func (s *CheckInService) ExpirePrompt(ctx context.Context, journeyID string, promptedAt time.Time) error {
	defer s.resolve(journeyID)

	j, err := s.store.GetJourney(ctx, journeyID)
	if errors.Is(err, repository.ErrNotFound) {
		logger.Logger.Warn("Check-in deadline for unknown journey", zap.String("journey_id", journeyID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load journey: %w", err)
	}
	if !s.journeys.IsMonitorable(j) {
		return nil
	}

	added, err := s.store.AddMissedCheckIn(ctx, j.ID, promptedAt, s.now())
	if err != nil {
		return fmt.Errorf("failed to record missed check-in: %w", err)
	}
	if !added {
		return nil
	}

	metrics.RecordCheckInResponse(string(model.CheckInResponseNoResponse))
	logger.Logger.Warn("Check-in went unanswered",
		zap.String("journey_id", j.ID),
		zap.Time("prompted_at", promptedAt),
	)

	_, _, err = s.journeys.escalate(ctx, j, CauseMissedCheckIn, nil)
	return err
}

// List 行程的平安确认记录，最新的在前
func (s *CheckInService) List(ctx context.Context, userID int64, journeyID string) ([]model.JourneyCheckIn, error) {
	if _, err := ownedJourney(ctx, s.store, userID, journeyID); err != nil {
		return nil, err
	}
	checkIns, err := s.store.ListCheckIns(ctx, journeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list check-ins: %w", err)
	}
	return checkIns, nil
}
