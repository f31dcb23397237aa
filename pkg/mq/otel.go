package mq

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	mqMessagesTotal   metric.Int64Counter
	mqMessageDuration metric.Float64Histogram
	mqPublishErrors   metric.Int64Counter
	mqHandleErrors    metric.Int64Counter
)

// InitMQMetrics 初始化 RabbitMQ 指标，未调用时只记录链路不记录指标
func InitMQMetrics(meter metric.Meter) error {
	var err error

	mqMessagesTotal, err = meter.Int64Counter(
		"rabbitmq.messages.total",
		metric.WithDescription("Total number of RabbitMQ messages"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return err
	}

	mqMessageDuration, err = meter.Float64Histogram(
		"rabbitmq.message.duration",
		metric.WithDescription("RabbitMQ publish and handle duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0),
	)
	if err != nil {
		return err
	}

	mqPublishErrors, err = meter.Int64Counter(
		"rabbitmq.publish.errors",
		metric.WithDescription("Number of RabbitMQ publish errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	mqHandleErrors, err = meter.Int64Counter(
		"rabbitmq.handle.errors",
		metric.WithDescription("Number of RabbitMQ handler errors"),
		metric.WithUnit("{error}"),
	)
	return err
}

func tracer(serviceName string) trace.Tracer {
	return otel.Tracer(serviceName + ".rabbitmq")
}

// PublishWithTracing 发布消息，追踪上下文写入消息头
func PublishWithTracing(
	ctx context.Context,
	ch *amqp.Channel,
	serviceName, exchange, routingKey string,
	msg amqp.Publishing,
) error {
	started := time.Now()

	ctx, span := tracer(serviceName).Start(ctx, "rabbitmq.publish "+exchange,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystem("rabbitmq"),
			attribute.String("messaging.rabbitmq.exchange", exchange),
			semconv.MessagingRabbitmqDestinationRoutingKey(routingKey),
			semconv.MessagingMessageID(msg.MessageId),
		),
	)
	defer span.End()

	headers := make(amqp.Table, len(msg.Headers)+2)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	otel.GetTextMapPropagator().Inject(ctx, &MessageHeaderCarrier{Headers: headers})
	msg.Headers = headers

	err := ch.PublishWithContext(ctx, exchange, routingKey, false, false, msg)

	status := "success"
	if err != nil {
		status = "error"
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		if mqPublishErrors != nil {
			mqPublishErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("messaging.rabbitmq.exchange", exchange)))
		}
	}
	record(ctx, "publish", exchange, routingKey, status, time.Since(started))
	return err
}

// StartConsumeSpan 从消息头恢复追踪上下文并开启处理 span，调用方负责 End
func StartConsumeSpan(serviceName, queue string, msg amqp.Delivery) (context.Context, trace.Span) {
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), &MessageHeaderCarrier{Headers: msg.Headers})
	return tracer(serviceName).Start(ctx, "rabbitmq.process "+queue,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystem("rabbitmq"),
			semconv.MessagingDestinationName(queue),
			attribute.String("messaging.rabbitmq.exchange", msg.Exchange),
			semconv.MessagingRabbitmqDestinationRoutingKey(msg.RoutingKey),
			semconv.MessagingMessageID(msg.MessageId),
		),
	)
}

// EndConsumeSpan 记录处理结果
func EndConsumeSpan(ctx context.Context, span trace.Span, msg amqp.Delivery, started time.Time, err error) {
	defer span.End()

	status := "success"
	if err != nil {
		status = "error"
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		if mqHandleErrors != nil {
			mqHandleErrors.Add(ctx, 1, metric.WithAttributes(semconv.MessagingRabbitmqDestinationRoutingKey(msg.RoutingKey)))
		}
	}
	record(ctx, "consume", msg.Exchange, msg.RoutingKey, status, time.Since(started))
}

func record(ctx context.Context, op, exchange, routingKey, status string, d time.Duration) {
	if mqMessagesTotal == nil || mqMessageDuration == nil {
		return
	}
	attrs := metric.WithAttributes(
		semconv.MessagingSystem("rabbitmq"),
		attribute.String("messaging.operation", op),
		attribute.String("messaging.rabbitmq.exchange", exchange),
		attribute.String("messaging.rabbitmq.routing_key", routingKey),
		attribute.String("messaging.status", status),
	)
	mqMessagesTotal.Add(ctx, 1, attrs)
	mqMessageDuration.Record(ctx, d.Seconds(), attrs)
}

// MessageHeaderCarrier 实现 propagation.TextMapCarrier 接口
type MessageHeaderCarrier struct {
	Headers amqp.Table
}

func (m *MessageHeaderCarrier) Get(key string) string {
	if val, ok := m.Headers[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

func (m *MessageHeaderCarrier) Set(key, value string) {
	if m.Headers == nil {
		m.Headers = make(amqp.Table)
	}
	m.Headers[key] = value
}

func (m *MessageHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(m.Headers))
	for k := range m.Headers {
		keys = append(keys, k)
	}
	return keys
}
