package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"SafeWalk/internal/model"
	"SafeWalk/internal/model/dto"
	"SafeWalk/internal/repository"
	"SafeWalk/pkg/logger"
	"SafeWalk/pkg/metrics"
)

// AlertCause 告警来源，决定通知类型与文案
type AlertCause string

const (
	CauseTraveler        AlertCause = "traveler"         // 出行者主动求助
	CauseNegativeCheckIn AlertCause = "negative_checkin" // 平安确认回答 no
	CauseMissedCheckIn   AlertCause = "missed_checkin"   // 应答窗口内未回应
	CauseOverdue         AlertCause = "overdue"          // 超过预计到达时间
)

// NotificationType 告警来源对应的通知类型
func (c AlertCause) NotificationType() model.NotificationType {
	switch c {
	case CauseMissedCheckIn, CauseOverdue:
		return model.NotificationTypeCheckInAlert
	default:
		return model.NotificationTypeDangerAlert
	}
}

// NotificationService 通知日志只在状态变更时生成，落库后投递到 MQ，由下游发送
type NotificationService struct {
	store     repository.Store
	publisher NotificationPublisher
	cfg       Config
	now       func() time.Time
}

func NewNotificationService(d Deps) *NotificationService {
	return &NotificationService{
		store:     d.Store,
		publisher: d.Publisher,
		cfg:       d.Config,
		now:       d.clock(),
	}
}

// Build 为每个联系人生成一条通知日志，尚未落库
func (s *NotificationService) Build(j *model.Journey, contacts []model.Contact, typ model.NotificationType, cause AlertCause) []model.NotificationLog {
	msg := s.message(j, typ, cause)
	now := s.now()

	logs := make([]model.NotificationLog, 0, len(contacts))
	for i := range contacts {
		contactID := contacts[i].ID
		logs = append(logs, model.NotificationLog{
			JourneyID: j.ID,
			ContactID: &contactID,
			Type:      typ,
			Message:   msg,
			CreatedAt: now,
		})
	}
	return logs
}

func (s *NotificationService) message(j *model.Journey, typ model.NotificationType, cause AlertCause) string {
	url := s.cfg.trackingURL(j.ID)
	eta := j.EstimatedArrival.Format("15:04")

	switch typ {
	case model.NotificationTypeStart:
		return fmt.Sprintf("A walk from %s to %s has started, expected arrival around %s. Follow along: %s",
			j.StartName, j.DestinationName, eta, url)
	case model.NotificationTypeArrivalSafe:
		return fmt.Sprintf("Arrived safely at %s.", j.DestinationName)
	case model.NotificationTypeCheckInAlert:
		if cause == CauseOverdue {
			return fmt.Sprintf("The walk to %s was expected to finish around %s and has not been marked as arrived. Last known location: %s",
				j.DestinationName, eta, url)
		}
		return fmt.Sprintf("A safety check-in on the way to %s went unanswered. Last known location: %s",
			j.DestinationName, url)
	default:
		if cause == CauseNegativeCheckIn {
			return fmt.Sprintf("Answered \"no\" to a safety check-in on the way to %s and may need help. Live location: %s",
				j.DestinationName, url)
		}
		return fmt.Sprintf("Raised an alert on the way to %s and may need help. Live location: %s",
			j.DestinationName, url)
	}
}

// Dispatch 为已落库的通知投递事件，投递失败只记日志，通知日志本身已经是审计记录
func (s *NotificationService) Dispatch(ctx context.Context, j *model.Journey, contacts []model.Contact, logs []model.NotificationLog) {
	if len(logs) == 0 {
		return
	}
	metrics.RecordNotifications(string(logs[0].Type), len(logs))

	if s.publisher == nil {
		return
	}

	byID := make(map[int64]model.Contact, len(contacts))
	for _, c := range contacts {
		byID[c.ID] = c
	}

	for i := range logs {
		l := logs[i]
		msg := model.NotificationEventMessage{
			MessageID:   "notify_" + strconv.FormatInt(l.ID, 10),
			JourneyID:   j.ID,
			Type:        string(l.Type),
			Message:     l.Message,
			TrackingURL: s.cfg.trackingURL(j.ID),
			OccurredAt:  l.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
		if l.ContactID != nil {
			msg.ContactID = *l.ContactID
			if c, ok := byID[*l.ContactID]; ok {
				msg.ContactName = c.Name
				msg.ContactPhone = c.Phone
			}
		}

		if err := s.publisher.PublishNotificationEvent(ctx, msg); err != nil {
			logger.Logger.Error("Failed to publish notification event",
				zap.String("journey_id", j.ID),
				zap.String("type", msg.Type),
				zap.Int64("contact_id", msg.ContactID),
				zap.Error(err),
			)
		}
	}
}

// NotifyOverdue 超时未到达只通知联系人，不改变行程状态
func (s *NotificationService) NotifyOverdue(ctx context.Context, j *model.Journey) (int, error) {
	contacts, err := s.store.ListJourneyContacts(ctx, j.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to list journey contacts: %w", err)
	}
	logs := s.Build(j, contacts, model.NotificationTypeCheckInAlert, CauseOverdue)
	if len(logs) == 0 {
		return 0, nil
	}
	if err := s.store.AddNotifications(ctx, logs); err != nil {
		return 0, fmt.Errorf("failed to insert overdue notifications: %w", err)
	}

	metrics.RecordEscalation(string(CauseOverdue))
	s.Dispatch(ctx, j, contacts, logs)
	return len(logs), nil
}

// List 行程的通知日志，仅行程所有者可见
func (s *NotificationService) List(ctx context.Context, userID int64, journeyID string) ([]dto.NotificationItem, error) {
	if _, err := ownedJourney(ctx, s.store, userID, journeyID); err != nil {
		return nil, err
	}

	logs, err := s.store.ListNotifications(ctx, journeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	items := make([]dto.NotificationItem, 0, len(logs))
	for _, l := range logs {
		items = append(items, dto.NotificationItem{
			ID:        l.ID,
			ContactID: l.ContactID,
			Type:      l.Type,
			Message:   l.Message,
			CreatedAt: l.CreatedAt,
		})
	}
	return items, nil
}
