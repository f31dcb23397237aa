package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"SafeWalk/internal/model"
	"SafeWalk/pkg/logger"
	"SafeWalk/pkg/snowflake"
	"SafeWalk/storage/mq"
)

// maxDelay RabbitMQ 延迟插件的单条延迟上限是 2^32-1 毫秒，这里收紧到一天
const maxDelay = 24 * time.Hour

// PublishCheckInDeadline 发布平安确认应答截止消息（延迟消息）
func PublishCheckInDeadline(ctx context.Context, journeyID string, promptedAt time.Time, delay time.Duration) error {
	if delay > maxDelay {
		return fmt.Errorf("delay %v exceeds %v limit", delay, maxDelay)
	}

	messageID, err := snowflake.MessageID("checkin_deadline")
	if err != nil {
		logger.Logger.Error("Failed to generate message ID",
			zap.String("journey_id", journeyID),
			zap.Error(err),
		)
		return err
	}

	msg := model.CheckInDeadlineMessage{
		MessageID:    messageID,
		JourneyID:    journeyID,
		PromptedAt:   promptedAt.UTC().Format(time.RFC3339Nano),
		DelaySeconds: int(delay / time.Second),
	}

	if err := mq.PublishDelayedMessage(ctx, mq.DelayedExchange, mq.CheckInDeadlineKey, messageID, delay, msg); err != nil {
		logger.Logger.Error("Failed to publish check-in deadline message",
			zap.String("journey_id", journeyID),
			zap.Error(err),
		)
		return err
	}

	logger.Logger.Debug("Published check-in deadline message",
		zap.String("message_id", messageID),
		zap.String("journey_id", journeyID),
		zap.Duration("delay", delay),
	)
	return nil
}

// PublishNotificationEvent 通知日志落库后投递给下游发送服务
func PublishNotificationEvent(ctx context.Context, msg model.NotificationEventMessage) error {
	if msg.MessageID == "" {
		id, err := snowflake.MessageID("notification")
		if err != nil {
			return err
		}
		msg.MessageID = id
	}

	routingKey := mq.NotificationKeyPrefix + msg.Type
	if err := mq.PublishMessage(ctx, mq.NotificationExchange, routingKey, msg.MessageID, msg); err != nil {
		logger.Logger.Error("Failed to publish notification event",
			zap.String("journey_id", msg.JourneyID),
			zap.String("type", msg.Type),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// Publisher 服务层依赖的发布能力
type Publisher struct{}

func (Publisher) PublishCheckInDeadline(ctx context.Context, journeyID string, promptedAt time.Time, delay time.Duration) error {
	return PublishCheckInDeadline(ctx, journeyID, promptedAt, delay)
}

func (Publisher) PublishNotificationEvent(ctx context.Context, msg model.NotificationEventMessage) error {
	return PublishNotificationEvent(ctx, msg)
}
