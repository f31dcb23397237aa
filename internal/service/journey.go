package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"SafeWalk/internal/geo"
	"SafeWalk/internal/model"
	"SafeWalk/internal/model/dto"
	"SafeWalk/internal/realtime"
	"SafeWalk/internal/repository"
	"SafeWalk/internal/route"
	pkgerrors "SafeWalk/pkg/errors"
	"SafeWalk/pkg/logger"
	"SafeWalk/pkg/metrics"
	"SafeWalk/utils"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// JourneyService 行程状态机：active → completed_safe | alert_triggered
// 所有状态变更都是条件更新，副作用只在真正发生变更时产生
type JourneyService struct {
	store     repository.Store
	estimator RouteEstimator
	notifier  *NotificationService
	emitter   realtime.Emitter
	cfg       Config
	now       func() time.Time

	mu       sync.RWMutex
	monitors []Monitor
}

func NewJourneyService(d Deps, notifier *NotificationService) *JourneyService {
	return &JourneyService{
		store:     d.Store,
		estimator: d.Estimator,
		notifier:  notifier,
		emitter:   d.Emitter,
		cfg:       d.Config,
		now:       d.clock(),
	}
}

// AttachMonitors 监控依赖服务层，只能在服务构造之后挂上
func (s *JourneyService) AttachMonitors(ms ...Monitor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monitors = append(s.monitors, ms...)
}

func (s *JourneyService) startMonitors(j *model.Journey) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.monitors {
		m.Start(j)
	}
}

func (s *JourneyService) stopMonitors(journeyID string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.monitors {
		m.Stop(journeyID)
	}
}

// MonitorableStatuses 仍需平安确认和定位上报的状态
func (s *JourneyService) MonitorableStatuses() []model.JourneyStatus {
	if s.cfg.AlertHaltsMonitoring {
		return []model.JourneyStatus{model.JourneyStatusActive}
	}
	return []model.JourneyStatus{model.JourneyStatusActive, model.JourneyStatusAlertTriggered}
}

// IsMonitorable 行程是否仍在监控中
func (s *JourneyService) IsMonitorable(j *model.Journey) bool {
	if j == nil {
		return false
	}
	for _, st := range s.MonitorableStatuses() {
		if j.Status == st {
			return true
		}
	}
	return false
}

// Create 创建行程
// 校验失败时不产生任何写入；行程、联系人快照、导航步骤和 start 通知在同一事务内写入
func (s *JourneyService) Create(ctx context.Context, userID int64, req dto.CreateJourneyRequest) (*dto.JourneyDetail, error) {
	if err := validateEndpoint(req.Start); err != nil {
		return nil, err
	}
	if err := validateEndpoint(req.Destination); err != nil {
		return nil, err
	}

	interval := req.CheckInIntervalMinutes
	if interval == 0 {
		interval = s.cfg.DefaultCheckInInterval
	}
	if interval < minCheckInInterval || interval > maxCheckInInterval {
		return nil, pkgerrors.CheckInIntervalRange
	}

	contactIDs := utils.UniqueIDs(req.ContactIDs)
	if len(contactIDs) == 0 {
		return nil, pkgerrors.ContactsRequired
	}
	contacts, err := s.store.GetContacts(ctx, userID, contactIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load contacts: %w", err)
	}
	if len(contacts) != len(contactIDs) {
		return nil, pkgerrors.ContactNotFound
	}

	est, err := s.estimate(ctx, userID, req.Start, req.Destination)
	if err != nil {
		return nil, err
	}

	now := s.now()
	j := &model.Journey{
		ID:                     uuid.NewString(),
		UserID:                 userID,
		StartName:              endpointName(req.Start, est.Origin),
		StartAddress:           endpointAddress(req.Start, est.Origin),
		StartLat:               est.Origin.Point.Lat,
		StartLng:               est.Origin.Point.Lng,
		DestinationName:        endpointName(req.Destination, est.Destination),
		DestinationAddress:     endpointAddress(req.Destination, est.Destination),
		DestinationLat:         est.Destination.Point.Lat,
		DestinationLng:         est.Destination.Point.Lng,
		StartTime:              now,
		EstimatedArrival:       now.Add(time.Duration(est.DurationMinutes) * time.Minute),
		Status:                 model.JourneyStatusActive,
		CheckInIntervalMinutes: interval,
		RouteDistanceMeters:    est.DistanceMeters,
		RouteDurationMinutes:   est.DurationMinutes,
		RouteDegraded:          est.Degraded,
	}

	links := make([]model.JourneyContact, 0, len(contacts))
	for _, c := range contacts {
		links = append(links, model.JourneyContact{JourneyID: j.ID, ContactID: c.ID, CreatedAt: now})
	}

	steps := make([]model.JourneyStep, 0, len(est.Steps))
	for _, st := range est.Steps {
		steps = append(steps, model.JourneyStep{
			JourneyID:        j.ID,
			StepNumber:       st.Number,
			Instruction:      st.Instruction,
			DistanceMeters:   st.DistanceMeters,
			DurationSeconds:  st.DurationSeconds,
			ManeuverType:     st.ManeuverType,
			ManeuverModifier: st.ManeuverModifier,
		})
	}

	notifications := s.notifier.Build(j, contacts, model.NotificationTypeStart, "")

	err = s.store.CreateJourney(ctx, repository.NewJourney{
		Journey:       j,
		Contacts:      links,
		Steps:         steps,
		Notifications: notifications,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create journey: %w", err)
	}

	logger.Logger.Info("Journey started",
		zap.String("journey_id", j.ID),
		zap.Int64("user_id", userID),
		zap.Int("contacts", len(contacts)),
		zap.Int("duration_minutes", est.DurationMinutes),
		zap.Bool("degraded", est.Degraded),
	)

	s.notifier.Dispatch(ctx, j, contacts, notifications)
	realtime.Emit(ctx, s.emitter, realtime.TopicJourneyChanged, j.TableName(), realtime.Insert, j.ID, j)
	s.startMonitors(j)

	return &dto.JourneyDetail{
		Journey:     j,
		Steps:       steps,
		Contacts:    contactItems(contacts),
		TrackingURL: s.cfg.trackingURL(j.ID),
	}, nil
}

// Preview 创建前的路线预览，不产生任何写入
func (s *JourneyService) Preview(ctx context.Context, userID int64, req dto.EstimateRequest) (*route.Estimate, error) {
	if err := validateEndpoint(req.Start); err != nil {
		return nil, err
	}
	if err := validateEndpoint(req.Destination); err != nil {
		return nil, err
	}
	return s.estimate(ctx, userID, req.Start, req.Destination)
}

func (s *JourneyService) estimate(ctx context.Context, userID int64, start, destination dto.EndpointInput) (*route.Estimate, error) {
	est, err := s.estimator.Estimate(ctx, start.Endpoint(), destination.Endpoint())
	if err != nil {
		if errors.Is(err, route.ErrNotGeocoded) {
			return nil, pkgerrors.AddressNotFound
		}
		logger.Logger.Error("Route estimate failed",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return nil, pkgerrors.RouteUnavailable
	}
	return est, nil
}

// Get 行程详情，只有所有者可见
func (s *JourneyService) Get(ctx context.Context, userID int64, journeyID string) (*dto.JourneyDetail, error) {
	j, err := ownedJourney(ctx, s.store, userID, journeyID)
	if err != nil {
		return nil, err
	}

	steps, err := s.store.ListSteps(ctx, j.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	contacts, err := s.store.ListJourneyContacts(ctx, j.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list journey contacts: %w", err)
	}
	latest, err := s.store.LatestCheckIn(ctx, j.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest check-in: %w", err)
	}

	return &dto.JourneyDetail{
		Journey:       j,
		Steps:         steps,
		Contacts:      contactItems(contacts),
		LatestCheckIn: latest,
		RemainingETA:  s.remainingETA(j.ID),
		TrackingURL:   s.cfg.trackingURL(j.ID),
	}, nil
}

func (s *JourneyService) remainingETA(journeyID string) *route.Estimate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.monitors {
		if src, ok := m.(ETASource); ok {
			if est := src.RemainingETA(journeyID); est != nil {
				return est
			}
		}
	}
	return nil
}

// List 按 (开始时间, ID) 倒序分页，返回下一页游标，没有更多时为空串
func (s *JourneyService) List(ctx context.Context, userID int64, q dto.JourneyListQuery) ([]dto.JourneyItem, string, error) {
	status := model.JourneyStatus(q.Status)
	if status != "" && !status.Valid() {
		return nil, "", pkgerrors.ValidationError
	}
	cursor, err := utils.ParseCursor(q.Cursor)
	if err != nil {
		return nil, "", pkgerrors.InvalidRequest
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := repository.JourneyQuery{UserID: userID, Status: status, Limit: limit + 1}
	if cursor != nil {
		query.Before = &cursor.StartTime
		query.BeforeID = cursor.ID
	}
	journeys, err := s.store.ListJourneys(ctx, query)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list journeys: %w", err)
	}

	next := ""
	if len(journeys) > limit {
		journeys = journeys[:limit]
		last := journeys[limit-1]
		next = utils.FormatCursor(last.StartTime, last.ID)
	}

	items := make([]dto.JourneyItem, 0, len(journeys))
	for _, j := range journeys {
		items = append(items, dto.JourneyItem{
			ID:               j.ID,
			StartName:        j.StartName,
			DestinationName:  j.DestinationName,
			Status:           j.Status,
			StartTime:        j.StartTime,
			EstimatedArrival: j.EstimatedArrival,
			EndTime:          j.EndTime,
		})
	}
	return items, next, nil
}

// MarkArrived 标记平安到达，重复调用返回当前行程且不重复生成通知
func (s *JourneyService) MarkArrived(ctx context.Context, userID int64, journeyID string, confirm bool) (*model.Journey, error) {
	if !confirm {
		return nil, pkgerrors.ConfirmationRequired
	}
	j, err := ownedJourney(ctx, s.store, userID, journeyID)
	if err != nil {
		return nil, err
	}
	if j.Status == model.JourneyStatusCompletedSafe {
		return j, nil
	}

	contacts, err := s.store.ListJourneyContacts(ctx, j.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list journey contacts: %w", err)
	}

	end := s.now()
	logs := s.notifier.Build(j, contacts, model.NotificationTypeArrivalSafe, "")
	updated, changed, err := s.store.TransitionStatus(ctx, repository.Transition{
		JourneyID:     j.ID,
		From:          s.MonitorableStatuses(),
		To:            model.JourneyStatusCompletedSafe,
		EndTime:       &end,
		Notifications: logs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mark journey arrived: %w", err)
	}
	if !changed {
		if updated.Status == model.JourneyStatusCompletedSafe {
			return updated, nil
		}
		return nil, pkgerrors.JourneyNotActive
	}

	logger.Logger.Info("Journey completed safely", zap.String("journey_id", j.ID))

	s.notifier.Dispatch(ctx, updated, contacts, logs)
	realtime.Emit(ctx, s.emitter, realtime.TopicJourneyChanged, updated.TableName(), realtime.Update, updated.ID, updated)
	s.stopMonitors(updated.ID)
	return updated, nil
}

// TriggerAlert 出行者主动求助，同时记录一次否定的平安确认
func (s *JourneyService) TriggerAlert(ctx context.Context, userID int64, journeyID string, confirm bool) (*model.Journey, error) {
	if !confirm {
		return nil, pkgerrors.ConfirmationRequired
	}
	j, err := ownedJourney(ctx, s.store, userID, journeyID)
	if err != nil {
		return nil, err
	}
	if !s.IsMonitorable(j) {
		return nil, pkgerrors.JourneyNotActive
	}

	updated, _, err := s.escalate(ctx, j, CauseTraveler, &model.JourneyCheckIn{
		JourneyID: j.ID,
		Response:  model.CheckInResponseNo,
		CreatedAt: s.now(),
	})
	return updated, err
}

// escalate active → alert_triggered，并为每个联系人生成告警通知
// 已处于告警状态时不再生成通知，checkIn 仍然写入
func (s *JourneyService) escalate(ctx context.Context, j *model.Journey, cause AlertCause, checkIn *model.JourneyCheckIn) (*model.Journey, bool, error) {
	contacts, err := s.store.ListJourneyContacts(ctx, j.ID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list journey contacts: %w", err)
	}

	logs := s.notifier.Build(j, contacts, cause.NotificationType(), cause)
	t := repository.Transition{
		JourneyID:     j.ID,
		From:          []model.JourneyStatus{model.JourneyStatusActive},
		To:            model.JourneyStatusAlertTriggered,
		CheckIn:       checkIn,
		Notifications: logs,
	}
	if s.cfg.AlertHaltsMonitoring {
		end := s.now()
		t.EndTime = &end
	}

	updated, changed, err := s.store.TransitionStatus(ctx, t)
	if err != nil {
		return nil, false, fmt.Errorf("failed to trigger alert: %w", err)
	}
	if !changed {
		if checkIn != nil && s.IsMonitorable(updated) {
			if err := s.store.AddCheckIn(ctx, checkIn); err != nil {
				return nil, false, fmt.Errorf("failed to record check-in: %w", err)
			}
		}
		return updated, false, nil
	}

	logger.Logger.Warn("Journey alert triggered",
		zap.String("journey_id", j.ID),
		zap.String("cause", string(cause)),
		zap.Int("contacts", len(contacts)),
	)
	metrics.RecordEscalation(string(cause))

	s.notifier.Dispatch(ctx, updated, contacts, logs)
	realtime.Emit(ctx, s.emitter, realtime.TopicJourneyChanged, updated.TableName(), realtime.Update, updated.ID, updated)
	if s.cfg.AlertHaltsMonitoring {
		s.stopMonitors(updated.ID)
	}
	return updated, true, nil
}

// PublicView 公开追踪页，无需登录，联系人电话打码
func (s *JourneyService) PublicView(ctx context.Context, journeyID string) (*dto.PublicJourneyView, error) {
	j, err := loadJourney(ctx, s.store, journeyID)
	if err != nil {
		return nil, err
	}

	locations, err := s.store.ListLocations(ctx, j.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	contacts, err := s.store.ListJourneyContacts(ctx, j.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list journey contacts: %w", err)
	}
	latest, err := s.store.LatestCheckIn(ctx, j.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest check-in: %w", err)
	}

	crumbs := make([]dto.Breadcrumb, 0, len(locations))
	samples := make([]geo.Sample, 0, len(locations))
	for _, l := range locations {
		crumbs = append(crumbs, dto.Breadcrumb{
			Latitude:   l.Latitude,
			Longitude:  l.Longitude,
			Accuracy:   l.Accuracy,
			RecordedAt: l.RecordedAt,
		})
		samples = append(samples, geo.Sample{Point: geo.Point{Lat: l.Latitude, Lng: l.Longitude}, At: l.RecordedAt})
	}

	masked := make([]dto.MaskedContact, 0, len(contacts))
	for _, c := range contacts {
		masked = append(masked, dto.MaskedContact{
			Name:         c.Name,
			Phone:        utils.MaskPhone(c.Phone),
			Relationship: c.Relationship,
		})
	}

	stats := geo.Aggregate(samples)
	return &dto.PublicJourneyView{
		Journey:       publicJourney(j),
		Breadcrumbs:   crumbs,
		Contacts:      masked,
		LatestCheckIn: latest,
		Stats: dto.TrackStats{
			Stats:           stats,
			DistanceText:    geo.FormatDistance(stats.DistanceMeters),
			AverageSpeedKmh: stats.AverageSpeedKmh(),
		},
	}, nil
}

// Monitorable 启动时恢复调度用
func (s *JourneyService) Monitorable(ctx context.Context) ([]model.Journey, error) {
	return s.store.ListJourneysByStatus(ctx, s.MonitorableStatuses())
}

// Reconcile 进程重启后为所有仍在监控中的行程重新启动监控
func (s *JourneyService) Reconcile(ctx context.Context) (int, error) {
	journeys, err := s.Monitorable(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list monitorable journeys: %w", err)
	}
	for i := range journeys {
		s.startMonitors(&journeys[i])
	}
	return len(journeys), nil
}

// PublicJourney 导出给实时通道做快照
func PublicJourney(j *model.Journey) dto.PublicJourney {
	return publicJourney(j)
}

func publicJourney(j *model.Journey) dto.PublicJourney {
	return dto.PublicJourney{
		ID:                 j.ID,
		StartName:          j.StartName,
		DestinationName:    j.DestinationName,
		DestinationLat:     j.DestinationLat,
		DestinationLng:     j.DestinationLng,
		Status:             j.Status,
		StartTime:          j.StartTime,
		EstimatedArrival:   j.EstimatedArrival,
		EndTime:            j.EndTime,
		CurrentLatitude:    j.CurrentLatitude,
		CurrentLongitude:   j.CurrentLongitude,
		LocationUpdatedAt:  j.LocationUpdatedAt,
		RouteDistanceMeter: j.RouteDistanceMeters,
	}
}

func loadJourney(ctx context.Context, store repository.JourneyStore, journeyID string) (*model.Journey, error) {
	if _, err := uuid.Parse(journeyID); err != nil {
		return nil, pkgerrors.JourneyNotFound
	}
	j, err := store.GetJourney(ctx, journeyID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, pkgerrors.JourneyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load journey: %w", err)
	}
	return j, nil
}

// ownedJourney 非所有者与不存在返回同样的错误，不暴露行程是否存在
func ownedJourney(ctx context.Context, store repository.JourneyStore, userID int64, journeyID string) (*model.Journey, error) {
	j, err := loadJourney(ctx, store, journeyID)
	if err != nil {
		return nil, err
	}
	if j.UserID != userID {
		return nil, pkgerrors.JourneyNotFound
	}
	return j, nil
}

func validateEndpoint(e dto.EndpointInput) error {
	if (e.Latitude == nil) != (e.Longitude == nil) {
		return pkgerrors.InvalidCoordinates
	}
	if e.HasPoint() {
		if !(geo.Point{Lat: *e.Latitude, Lng: *e.Longitude}).Valid() {
			return pkgerrors.InvalidCoordinates
		}
		return nil
	}
	if strings.TrimSpace(e.Address) == "" {
		return pkgerrors.ValidationError
	}
	return nil
}

func endpointName(in dto.EndpointInput, place route.Place) string {
	switch {
	case strings.TrimSpace(in.Name) != "":
		return strings.TrimSpace(in.Name)
	case strings.TrimSpace(in.Address) != "":
		return strings.TrimSpace(in.Address)
	case place.DisplayName != "":
		return place.DisplayName
	}
	return fmt.Sprintf("%.5f, %.5f", place.Point.Lat, place.Point.Lng)
}

func endpointAddress(in dto.EndpointInput, place route.Place) string {
	if strings.TrimSpace(in.Address) != "" {
		return strings.TrimSpace(in.Address)
	}
	return place.DisplayName
}

func contactItems(contacts []model.Contact) []dto.ContactItem {
	items := make([]dto.ContactItem, 0, len(contacts))
	for _, c := range contacts {
		items = append(items, dto.ContactItem{
			ID:              c.ID,
			Name:            c.Name,
			Phone:           c.Phone,
			Relationship:    c.Relationship,
			NotifyByDefault: c.NotifyByDefault,
		})
	}
	return items
}
