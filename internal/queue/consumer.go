package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"SafeWalk/internal/cache"
	"SafeWalk/internal/model"
	"SafeWalk/pkg/errors"
	"SafeWalk/pkg/logger"
	"SafeWalk/storage/mq"
)

// DeadlineHandler 应答截止时的处理者，由 CheckInService 实现
type DeadlineHandler interface {
	ExpirePrompt(ctx context.Context, journeyID string, promptedAt time.Time) error
}

// Marks 消息幂等标记
type Marks interface {
	TryMark(ctx context.Context, messageID string) (bool, error)
	Unmark(ctx context.Context, messageID string) error
	Done(ctx context.Context, messageID string) error
}

// StartCheckInDeadlineConsumer 启动平安确认应答截止消费者，阻塞到 ctx 取消
func StartCheckInDeadlineConsumer(ctx context.Context, h DeadlineHandler) error {
	return mq.Consume(ctx, mq.ConsumeOptions{
		Queue:         mq.CheckInDeadlineQueue,
		ConsumerTag:   "checkin_deadline_consumer",
		PrefetchCount: 10,
		Handler: func(ctx context.Context, body []byte) error {
			return HandleCheckInDeadline(ctx, body, h, cache.MessageMarks{})
		},
	})
}

// HandleCheckInDeadline 解析消息并做幂等检查后交给 DeadlineHandler
func HandleCheckInDeadline(ctx context.Context, body []byte, h DeadlineHandler, marks Marks) error {
	var msg model.CheckInDeadlineMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return &errors.SkipMessageError{Reason: fmt.Sprintf("malformed check-in deadline message: %v", err)}
	}

	promptedAt, err := time.Parse(time.RFC3339Nano, msg.PromptedAt)
	if err != nil || msg.JourneyID == "" {
		return &errors.SkipMessageError{Reason: fmt.Sprintf("invalid check-in deadline message %s", msg.MessageID)}
	}

	// 使用 SETNX 原子性地检查并标记消息正在处理
	first, err := marks.TryMark(ctx, msg.MessageID)
	if err != nil {
		logger.Logger.Warn("Failed to check message processed status",
			zap.String("message_id", msg.MessageID),
			zap.Error(err),
		)
	} else if !first {
		return &errors.SkipMessageError{Reason: fmt.Sprintf("Message %s already processed", msg.MessageID)}
	}

	if err := h.ExpirePrompt(ctx, msg.JourneyID, promptedAt); err != nil {
		// 处理失败，取消标记，允许重试
		if uerr := marks.Unmark(ctx, msg.MessageID); uerr != nil {
			logger.Logger.Warn("Failed to unmark message",
				zap.String("message_id", msg.MessageID),
				zap.Error(uerr),
			)
		}
		return fmt.Errorf("failed to expire check-in prompt: %w", err)
	}

	if err := marks.Done(ctx, msg.MessageID); err != nil {
		logger.Logger.Warn("Failed to mark message as processed",
			zap.String("message_id", msg.MessageID),
			zap.Error(err),
		)
	}
	return nil
}
