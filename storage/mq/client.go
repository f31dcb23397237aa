package mq

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"SafeWalk/config"
	"SafeWalk/pkg/logger"
)

// 交换机与队列
const (
	// DelayedExchange 需要 rabbitmq_delayed_message_exchange 插件
	DelayedExchange      = "scheduler.delayed"
	NotificationExchange = "notification.topic"

	CheckInDeadlineQueue = "scheduler.checkin.deadline"
	CheckInDeadlineKey   = "scheduler.checkin.deadline"

	NotificationQueue = "notification.journey.events"
	// NotificationKeyPrefix 路由键为 journey.<type>
	NotificationKeyPrefix = "journey."
)

var (
	conn     *amqp.Connection
	connMu   sync.RWMutex
	initOnce sync.Once
	initErr  error
)

func Init() error {
	initOnce.Do(func() {
		c, err := amqp.Dial(config.Cfg.GetRabbitMQURL())
		if err != nil {
			initErr = fmt.Errorf("failed to dial RabbitMQ: %w", err)
			return
		}

		if err := declareTopology(c); err != nil {
			_ = c.Close()
			initErr = err
			return
		}

		connMu.Lock()
		conn = c
		connMu.Unlock()

		logger.Logger.Info("RabbitMQ initialized successfully",
			zap.String("addr", config.Cfg.RabbitMQAddr),
		)
	})
	return initErr
}

// declareTopology 声明延迟交换机、通知交换机以及对应队列
func declareTopology(c *amqp.Connection) error {
	ch, err := c.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(DelayedExchange, "x-delayed-message", true, false, false, false,
		amqp.Table{"x-delayed-type": "direct"}); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", DelayedExchange, err)
	}
	if err := ch.ExchangeDeclare(NotificationExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", NotificationExchange, err)
	}

	bindings := []struct {
		queue, exchange, key string
	}{
		{CheckInDeadlineQueue, DelayedExchange, CheckInDeadlineKey},
		{NotificationQueue, NotificationExchange, NotificationKeyPrefix + "#"},
	}
	for _, b := range bindings {
		if _, err := ch.QueueDeclare(b.queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", b.queue, err)
		}
		if err := ch.QueueBind(b.queue, b.key, b.exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s: %w", b.queue, err)
		}
	}
	return nil
}

// Connection 返回当前连接，未初始化时为 nil
func Connection() *amqp.Connection {
	connMu.RLock()
	defer connMu.RUnlock()
	return conn
}

func Close(ctx context.Context) error {
	pubMutex.Lock()
	if publisherCh != nil {
		_ = publisherCh.Close()
		publisherCh = nil
	}
	pubMutex.Unlock()

	connMu.Lock()
	c := conn
	conn = nil
	connMu.Unlock()
	if c == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- c.Close() }()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
