package mq

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestMessageHeaderCarrier(t *testing.T) {
	c := &MessageHeaderCarrier{}
	c.Set("traceparent", "00-abc-def-01")
	if got := c.Get("traceparent"); got != "00-abc-def-01" {
		t.Fatalf("Get = %q", got)
	}

	c.Headers["x-delay"] = int64(1000)
	if got := c.Get("x-delay"); got != "" {
		t.Fatalf("non-string header should read as empty, got %q", got)
	}
	if n := len(c.Keys()); n != 2 {
		t.Fatalf("len(Keys) = %d, want 2", n)
	}

	var _ = amqp.Table(c.Headers)
}
