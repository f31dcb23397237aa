package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"SafeWalk/internal/model"
	"SafeWalk/internal/realtime"
	"SafeWalk/internal/repository"
	"SafeWalk/internal/sampler"
	pkgerrors "SafeWalk/pkg/errors"
	"SafeWalk/pkg/logger"
	"SafeWalk/pkg/metrics"
)

// LocationService 把采样结果写入行程当前位置和轨迹表
type LocationService struct {
	store    repository.Store
	journeys *JourneyService
	emitter  realtime.Emitter
	now      func() time.Time
}

func NewLocationService(d Deps, journeys *JourneyService) *LocationService {
	return &LocationService{
		store:    d.Store,
		journeys: journeys,
		emitter:  d.Emitter,
		now:      d.clock(),
	}
}

// Authorize 设备上报前的校验：行程属于该用户且仍在监控中
func (s *LocationService) Authorize(ctx context.Context, userID int64, journeyID string) (*model.Journey, error) {
	j, err := ownedJourney(ctx, s.store, userID, journeyID)
	if err != nil {
		return nil, err
	}
	if !s.journeys.IsMonitorable(j) {
		return nil, pkgerrors.JourneyNotActive
	}
	return j, nil
}

// Publish 覆盖写当前位置并追加一条轨迹
// 两次写入互不阻塞，任一失败都会记录并合并返回；不做去重
func (s *LocationService) Publish(ctx context.Context, journeyID string, p sampler.Position) error {
	if !p.Point.Valid() {
		return pkgerrors.InvalidCoordinates
	}
	j, err := loadJourney(ctx, s.store, journeyID)
	if err != nil {
		return err
	}
	if !s.journeys.IsMonitorable(j) {
		return pkgerrors.JourneyNotActive
	}

	at := p.Timestamp
	if at.IsZero() {
		at = s.now()
	}

	var errs []error

	updated, err := s.store.UpdatePosition(ctx, j.ID, p.Lat, p.Lng, at)
	if err != nil {
		metrics.RecordPublishFailure("journey")
		logger.Logger.Error("Failed to update journey position",
			zap.String("journey_id", j.ID),
			zap.Error(err),
		)
		errs = append(errs, fmt.Errorf("update position: %w", err))
	} else {
		realtime.Emit(ctx, s.emitter, realtime.TopicJourneyChanged, updated.TableName(), realtime.Update, j.ID, updated)
	}

	loc := &model.JourneyLocation{
		JourneyID:  j.ID,
		Latitude:   p.Lat,
		Longitude:  p.Lng,
		Accuracy:   p.Accuracy,
		RecordedAt: at,
	}
	if err := s.store.AppendLocation(ctx, loc); err != nil {
		metrics.RecordPublishFailure("location")
		logger.Logger.Error("Failed to append journey location",
			zap.String("journey_id", j.ID),
			zap.Error(err),
		)
		errs = append(errs, fmt.Errorf("append location: %w", err))
	} else {
		realtime.Emit(ctx, s.emitter, realtime.TopicLocationInserted, loc.TableName(), realtime.Insert, j.ID, loc)
	}

	if len(errs) == 0 {
		metrics.RecordSamplePublished()
	}
	return errors.Join(errs...)
}

// Breadcrumbs 行程轨迹，供所有者查看
func (s *LocationService) Breadcrumbs(ctx context.Context, userID int64, journeyID string) ([]model.JourneyLocation, error) {
	if _, err := ownedJourney(ctx, s.store, userID, journeyID); err != nil {
		return nil, err
	}
	locs, err := s.store.ListLocations(ctx, journeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	return locs, nil
}
