package realtime

import (
	"sync"

	"go.uber.org/zap"

	"SafeWalk/pkg/logger"
	"SafeWalk/pkg/metrics"
)

// DefaultBuffer 每个订阅者的队列长度
const DefaultBuffer = 64

// Broker 进程内的订阅分发
// 每个订阅者一个带缓冲的队列和一个投递 goroutine，队列满时丢弃该订阅者的这条事件
type Broker struct {
	mu     sync.RWMutex
	subs   map[Topic]map[uint64]*Subscription
	next   uint64
	buffer int
	closed bool
}

func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broker{
		subs:   make(map[Topic]map[uint64]*Subscription),
		buffer: buffer,
	}
}

// Subscription 一次订阅，Unsubscribe 可重复调用
type Subscription struct {
	id      uint64
	topic   Topic
	filter  Filter
	broker  *Broker
	queue   chan Change
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	onEvent func(Change)
}

// Subscribe 注册回调，回调在订阅自己的 goroutine 中按顺序执行
func (b *Broker) Subscribe(topic Topic, filter Filter, onEvent func(Change)) *Subscription {
	s := &Subscription{
		topic:   topic,
		filter:  filter,
		broker:  b,
		queue:   make(chan Change, b.buffer),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		onEvent: onEvent,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(s.done)
		s.once.Do(func() {})
		return s
	}
	b.next++
	s.id = b.next
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]*Subscription)
	}
	b.subs[topic][s.id] = s
	b.mu.Unlock()

	metrics.AddLiveSubscriber(string(topic))
	go s.deliver()
	return s
}

func (s *Subscription) deliver() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case c := <-s.queue:
			s.invoke(c)
		}
	}
}

func (s *Subscription) invoke(c Change) {
	defer func() {
		if r := recover(); r != nil {
			logger.Logger.Error("Realtime subscriber panicked",
				zap.String("topic", string(s.topic)),
				zap.Any("panic", r),
			)
		}
	}()
	s.onEvent(c)
}

// Unsubscribe 取消订阅，投递 goroutine 随后退出，需要等待时用 Done
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.broker.remove(s)
		close(s.stop)
		metrics.RemoveLiveSubscriber(string(s.topic))
	})
}

// Done 投递 goroutine 退出时关闭
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (b *Broker) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m := b.subs[s.topic]; m != nil {
		delete(m, s.id)
		if len(m) == 0 {
			delete(b.subs, s.topic)
		}
	}
}

// Publish 把变更投递给所有匹配的订阅者，不阻塞
func (b *Broker) Publish(c Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, s := range b.subs[c.Topic] {
		if !s.filter.Matches(c) {
			continue
		}
		select {
		case s.queue <- c:
		default:
			metrics.RecordDroppedEvent(string(c.Topic))
			logger.Logger.Debug("Realtime queue full, dropping event",
				zap.String("topic", string(c.Topic)),
				zap.String("journey_id", c.JourneyID),
			)
		}
	}
}

// Subscribers 某主题当前订阅数
func (b *Broker) Subscribers(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Close 取消全部订阅，之后的 Subscribe 返回已结束的订阅
func (b *Broker) Close() {
	b.mu.Lock()
	b.closed = true
	var all []*Subscription
	for _, m := range b.subs {
		for _, s := range m {
			all = append(all, s)
		}
	}
	b.mu.Unlock()

	for _, s := range all {
		s.Unsubscribe()
	}
}
