package mq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"SafeWalk/config"
	pkgerrors "SafeWalk/pkg/errors"
	"SafeWalk/pkg/logger"
	pkgmq "SafeWalk/pkg/mq"
)

type MessageHandler func(ctx context.Context, body []byte) error

type ConsumeOptions struct {
	Queue         string
	ConsumerTag   string
	PrefetchCount int
	Handler       MessageHandler
}

// Consume 阻塞消费直到 ctx 取消或连接断开
// 处理成功或返回 SkipMessageError 时 ack，其他错误 nack 后重新入队
func Consume(ctx context.Context, opts ConsumeOptions) error {
	c := Connection()
	if c == nil {
		return fmt.Errorf("RabbitMQ connection is nil")
	}

	ch, err := c.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if opts.PrefetchCount > 0 {
		if err := ch.Qos(opts.PrefetchCount, 0, false); err != nil {
			return fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	msgs, err := ch.Consume(opts.Queue, opts.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	logger.Logger.Info("Started consuming messages",
		zap.String("queue", opts.Queue),
		zap.String("consumer_tag", opts.ConsumerTag),
		zap.Int("prefetch_count", opts.PrefetchCount),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("consumer %s: delivery channel closed", opts.ConsumerTag)
			}

			started := time.Now()
			msgCtx, span := pkgmq.StartConsumeSpan(config.Cfg.ServiceName, opts.Queue, msg)
			err := opts.Handler(msgCtx, msg.Body)

			var skip *pkgerrors.SkipMessageError
			switch {
			case err == nil:
				_ = msg.Ack(false)
				pkgmq.EndConsumeSpan(msgCtx, span, msg, started, nil)
			case errors.As(err, &skip):
				logger.Logger.Info("Skipping message",
					zap.String("queue", opts.Queue),
					zap.String("reason", skip.Reason),
				)
				_ = msg.Ack(false)
				pkgmq.EndConsumeSpan(msgCtx, span, msg, started, nil)
			default:
				logger.Logger.Error("Failed to process message",
					zap.String("queue", opts.Queue),
					zap.String("consumer_tag", opts.ConsumerTag),
					zap.Error(err),
				)
				_ = msg.Nack(false, !msg.Redelivered)
				pkgmq.EndConsumeSpan(msgCtx, span, msg, started, err)
			}
		}
	}
}
