package metrics

import "context"

// 以下函数在指标未初始化时静默跳过，调用方无需判空

func RecordSamplePublished() {
	if m := GetMetrics(); m != nil {
		m.RecordSamplePublished(context.Background())
	}
}

func RecordPublishFailure(write string) {
	if m := GetMetrics(); m != nil {
		m.RecordPublishFailure(context.Background(), write)
	}
}

func RecordSamplerError(kind string) {
	if m := GetMetrics(); m != nil {
		m.RecordSamplerError(context.Background(), kind)
	}
}

func RecordEstimate(provider, outcome string, seconds float64) {
	if m := GetMetrics(); m != nil {
		m.RecordEstimate(context.Background(), provider, outcome, seconds)
	}
}

func RecordCheckInPrompt() {
	if m := GetMetrics(); m != nil {
		m.RecordCheckInPrompt(context.Background())
	}
}

func RecordCheckInResponse(response string) {
	if m := GetMetrics(); m != nil {
		m.RecordCheckInResponse(context.Background(), response)
	}
}

func RecordEscalation(cause string) {
	if m := GetMetrics(); m != nil {
		m.RecordEscalation(context.Background(), cause)
	}
}

func RecordNotifications(notificationType string, n int) {
	if m := GetMetrics(); m != nil && n > 0 {
		m.RecordNotifications(context.Background(), notificationType, n)
	}
}

func AddLiveSubscriber(topic string) {
	if m := GetMetrics(); m != nil {
		m.AddLiveSubscriber(context.Background(), topic, 1)
	}
}

func RemoveLiveSubscriber(topic string) {
	if m := GetMetrics(); m != nil {
		m.AddLiveSubscriber(context.Background(), topic, -1)
	}
}

func RecordDroppedEvent(topic string) {
	if m := GetMetrics(); m != nil {
		m.RecordDroppedEvent(context.Background(), topic)
	}
}
