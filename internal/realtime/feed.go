package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"SafeWalk/pkg/logger"
)

// Emitter 变更的写端，服务层写库成功后调用
type Emitter interface {
	Emit(ctx context.Context, c Change) error
}

// Emit 构造变更并发出，失败只记录日志，不影响已完成的写入
func Emit(ctx context.Context, e Emitter, topic Topic, table string, typ ChangeType, journeyID string, record interface{}) {
	if e == nil {
		return
	}
	c, err := NewChange(topic, table, typ, journeyID, record)
	if err == nil {
		err = e.Emit(ctx, c)
	}
	if err != nil {
		logger.Logger.Warn("Failed to emit change",
			zap.String("topic", string(topic)),
			zap.String("journey_id", journeyID),
			zap.Error(err),
		)
	}
}

// LocalFeed 单进程部署，直接交给本地 broker
type LocalFeed struct {
	broker *Broker
}

func NewLocalFeed(b *Broker) *LocalFeed {
	return &LocalFeed{broker: b}
}

func (f *LocalFeed) Emit(_ context.Context, c Change) error {
	f.broker.Publish(c)
	return nil
}

// RedisFeed 通过 Redis 发布订阅在实例间广播
// 写端 PUBLISH 到 <prefix>:changes:<topic>，每个实例 PSUBSCRIBE 后转给本地 broker
type RedisFeed struct {
	client *goredis.Client
	broker *Broker
	prefix string

	retryInitial time.Duration
	retryMax     time.Duration

	connected atomic.Bool
	failures  atomic.Int64
}

func NewRedisFeed(client *goredis.Client, b *Broker, prefix string) *RedisFeed {
	if prefix == "" {
		prefix = "safewalk"
	}
	return &RedisFeed{
		client:       client,
		broker:       b,
		prefix:       prefix,
		retryInitial: 500 * time.Millisecond,
		retryMax:     30 * time.Second,
	}
}

// WithRetry 重新订阅的退避区间
func (f *RedisFeed) WithRetry(initial, max time.Duration) *RedisFeed {
	f.retryInitial = initial
	f.retryMax = max
	return f
}

// Connected 当前是否持有订阅
func (f *RedisFeed) Connected() bool {
	return f.connected.Load()
}

// Failures 订阅失败或中断的累计次数
func (f *RedisFeed) Failures() int64 {
	return f.failures.Load()
}

var errSubscriptionClosed = errors.New("realtime feed subscription closed")

// Serve 订阅中断后按指数退避重新订阅，直到 ctx 取消
func (f *RedisFeed) Serve(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.retryInitial
	b.MaxInterval = f.retryMax

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := f.run(ctx, b.Reset)
		if ctx.Err() != nil {
			return struct{}{}, backoff.Permanent(ctx.Err())
		}
		if err == nil {
			err = errSubscriptionClosed
		}
		f.failures.Add(1)
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Logger.Warn("Realtime feed unavailable, resubscribing",
				zap.Int64("failures", f.failures.Load()),
				zap.Duration("retry_in", next),
				zap.Error(err),
			)
		}),
	)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Channel 主题对应的 Redis 频道
func (f *RedisFeed) Channel(topic Topic) string {
	return f.prefix + ":changes:" + string(topic)
}

func (f *RedisFeed) Emit(ctx context.Context, c Change) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := f.client.Publish(ctx, f.Channel(c.Topic), data).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

// Run 订阅全部变更频道直到 ctx 取消或订阅中断，只尝试一次
func (f *RedisFeed) Run(ctx context.Context) error {
	return f.run(ctx, nil)
}

func (f *RedisFeed) run(ctx context.Context, onSubscribed func()) error {
	pattern := f.prefix + ":changes:*"
	sub := f.client.PSubscribe(ctx, pattern)
	defer sub.Close()

	// 等待订阅确认，连接失败时尽早返回
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("psubscribe %s: %w", pattern, err)
	}

	f.connected.Store(true)
	defer f.connected.Store(false)
	if onSubscribed != nil {
		onSubscribed()
	}
	logger.Logger.Info("Realtime feed subscribed", zap.String("pattern", pattern))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			c, err := f.decode(msg)
			if err != nil {
				logger.Logger.Warn("Dropping malformed change",
					zap.String("channel", msg.Channel),
					zap.Error(err),
				)
				continue
			}
			f.broker.Publish(c)
		}
	}
}

func (f *RedisFeed) decode(msg *goredis.Message) (Change, error) {
	var c Change
	if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
		return Change{}, err
	}
	if c.Topic == "" {
		c.Topic = Topic(strings.TrimPrefix(msg.Channel, f.prefix+":changes:"))
	}
	return c, nil
}
