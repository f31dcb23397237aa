package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics OpenTelemetry 指标集合
type OTelMetrics struct {
	// 定位上报
	SamplesPublished metric.Int64Counter
	PublishFailures  metric.Int64Counter
	SamplerErrors    metric.Int64Counter

	// 路线估算
	EstimatesTotal   metric.Int64Counter
	EstimateDuration metric.Float64Histogram

	// 平安确认与告警
	CheckInPrompts      metric.Int64Counter
	CheckInResponses    metric.Int64Counter
	Escalations         metric.Int64Counter
	NotificationsLogged metric.Int64Counter

	// 实时通道
	LiveSubscribers metric.Int64UpDownCounter
	DroppedEvents   metric.Int64Counter
}

var (
	// 全局指标实例
	metrics *OTelMetrics
	// meter 用于创建指标
	meter = otel.Meter("safewalk")
)

// InitMetrics 初始化 OpenTelemetry 指标
func InitMetrics() error {
	m := &OTelMetrics{}
	var err error

	if m.SamplesPublished, err = meter.Int64Counter(
		"location_samples_published_total",
		metric.WithDescription("Location samples accepted and published"),
		metric.WithUnit("{sample}"),
	); err != nil {
		return err
	}

	if m.PublishFailures, err = meter.Int64Counter(
		"location_publish_failures_total",
		metric.WithDescription("Failed position or breadcrumb writes"),
		metric.WithUnit("{error}"),
	); err != nil {
		return err
	}

	if m.SamplerErrors, err = meter.Int64Counter(
		"location_sampler_errors_total",
		metric.WithDescription("Errors reported by the geolocation sampler"),
		metric.WithUnit("{error}"),
	); err != nil {
		return err
	}

	if m.EstimatesTotal, err = meter.Int64Counter(
		"route_estimates_total",
		metric.WithDescription("Route estimates by provider and outcome"),
		metric.WithUnit("{estimate}"),
	); err != nil {
		return err
	}

	if m.EstimateDuration, err = meter.Float64Histogram(
		"route_estimate_duration_seconds",
		metric.WithDescription("Time spent computing a route estimate"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8),
	); err != nil {
		return err
	}

	if m.CheckInPrompts, err = meter.Int64Counter(
		"checkin_prompts_total",
		metric.WithDescription("Safety check-in prompts issued"),
		metric.WithUnit("{prompt}"),
	); err != nil {
		return err
	}

	if m.CheckInResponses, err = meter.Int64Counter(
		"checkin_responses_total",
		metric.WithDescription("Recorded check-in responses"),
		metric.WithUnit("{response}"),
	); err != nil {
		return err
	}

	if m.Escalations, err = meter.Int64Counter(
		"journey_escalations_total",
		metric.WithDescription("Journeys moved to alert_triggered"),
		metric.WithUnit("{alert}"),
	); err != nil {
		return err
	}

	if m.NotificationsLogged, err = meter.Int64Counter(
		"notifications_logged_total",
		metric.WithDescription("Notification log entries created"),
		metric.WithUnit("{entry}"),
	); err != nil {
		return err
	}

	if m.LiveSubscribers, err = meter.Int64UpDownCounter(
		"realtime_subscribers",
		metric.WithDescription("Currently attached realtime subscribers"),
		metric.WithUnit("{subscriber}"),
	); err != nil {
		return err
	}

	if m.DroppedEvents, err = meter.Int64Counter(
		"realtime_dropped_events_total",
		metric.WithDescription("Events dropped for slow subscribers"),
		metric.WithUnit("{event}"),
	); err != nil {
		return err
	}

	metrics = m
	return nil
}

// GetMetrics 获取全局指标实例，未初始化时为 nil
func GetMetrics() *OTelMetrics {
	return metrics
}

func attrs(kv ...attribute.KeyValue) metric.MeasurementOption {
	return metric.WithAttributes(kv...)
}

// RecordSamplePublished 记录一次定位发布
func (m *OTelMetrics) RecordSamplePublished(ctx context.Context) {
	m.SamplesPublished.Add(ctx, 1)
}

// RecordPublishFailure 记录写入失败，write 为 position 或 breadcrumb
func (m *OTelMetrics) RecordPublishFailure(ctx context.Context, write string) {
	m.PublishFailures.Add(ctx, 1, attrs(attribute.String("write", write)))
}

// RecordSamplerError 记录采样错误
func (m *OTelMetrics) RecordSamplerError(ctx context.Context, kind string) {
	m.SamplerErrors.Add(ctx, 1, attrs(attribute.String("kind", kind)))
}

// RecordEstimate 记录一次路线估算
func (m *OTelMetrics) RecordEstimate(ctx context.Context, provider, outcome string, seconds float64) {
	m.EstimatesTotal.Add(ctx, 1, attrs(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	))
	m.EstimateDuration.Record(ctx, seconds, attrs(attribute.String("provider", provider)))
}

// RecordCheckInPrompt 记录一次平安确认提示
func (m *OTelMetrics) RecordCheckInPrompt(ctx context.Context) {
	m.CheckInPrompts.Add(ctx, 1)
}

// RecordCheckInResponse 记录一次回应
func (m *OTelMetrics) RecordCheckInResponse(ctx context.Context, response string) {
	m.CheckInResponses.Add(ctx, 1, attrs(attribute.String("response", response)))
}

// RecordEscalation 记录一次告警升级
func (m *OTelMetrics) RecordEscalation(ctx context.Context, cause string) {
	m.Escalations.Add(ctx, 1, attrs(attribute.String("cause", cause)))
}

// RecordNotifications 记录写入的通知日志条数
func (m *OTelMetrics) RecordNotifications(ctx context.Context, notificationType string, n int) {
	m.NotificationsLogged.Add(ctx, int64(n), attrs(attribute.String("type", notificationType)))
}

// AddLiveSubscriber 订阅者数量加减
func (m *OTelMetrics) AddLiveSubscriber(ctx context.Context, topic string, delta int64) {
	m.LiveSubscribers.Add(ctx, delta, attrs(attribute.String("topic", topic)))
}

// RecordDroppedEvent 记录因订阅者积压被丢弃的事件
func (m *OTelMetrics) RecordDroppedEvent(ctx context.Context, topic string) {
	m.DroppedEvents.Add(ctx, 1, attrs(attribute.String("topic", topic)))
}
