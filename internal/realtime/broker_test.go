package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type collector struct {
	mu  sync.Mutex
	got []Change
}

func (c *collector) add(ch Change) {
	c.mu.Lock()
	c.got = append(c.got, ch)
	c.mu.Unlock()
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("journey_id=eq.abc")
	if err != nil {
		t.Fatalf("ParseFilter: %v", err)
	}
	if f.JourneyID != "abc" {
		t.Fatalf("JourneyID = %q, want abc", f.JourneyID)
	}
	if f.String() != "journey_id=eq.abc" {
		t.Fatalf("String() = %q", f.String())
	}

	for _, bad := range []string{"journey_id", "journey_id=gt.1", "user_id=eq.1", "journey_id=eq."} {
		if _, err := ParseFilter(bad); err == nil {
			t.Errorf("ParseFilter(%q) succeeded, want error", bad)
		}
	}

	empty, err := ParseFilter("")
	if err != nil || !empty.Matches(Change{JourneyID: "any"}) {
		t.Fatalf("empty filter should match everything, err=%v", err)
	}
}

func TestSubscriberOnlyReceivesItsJourney(t *testing.T) {
	b := NewBroker(8)
	defer b.Close()

	var x, all collector
	subX := b.Subscribe(TopicLocationInserted, ForJourney("X"), x.add)
	defer subX.Unsubscribe()
	subAll := b.Subscribe(TopicLocationInserted, Filter{}, all.add)
	defer subAll.Unsubscribe()

	b.Publish(Change{Topic: TopicLocationInserted, JourneyID: "Y"})
	b.Publish(Change{Topic: TopicLocationInserted, JourneyID: "X"})
	b.Publish(Change{Topic: TopicJourneyChanged, JourneyID: "X"})

	waitFor(t, func() bool { return all.len() == 2 && x.len() == 1 })

	x.mu.Lock()
	defer x.mu.Unlock()
	if x.got[0].JourneyID != "X" || x.got[0].Topic != TopicLocationInserted {
		t.Fatalf("got %+v", x.got[0])
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b := NewBroker(8)
	var c collector
	sub := b.Subscribe(TopicJourneyChanged, ForJourney("X"), c.add)
	if n := b.Subscribers(TopicJourneyChanged); n != 1 {
		t.Fatalf("Subscribers = %d, want 1", n)
	}

	sub.Unsubscribe()
	sub.Unsubscribe()

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("delivery goroutine did not exit")
	}
	if n := b.Subscribers(TopicJourneyChanged); n != 0 {
		t.Fatalf("Subscribers = %d, want 0", n)
	}

	b.Publish(Change{Topic: TopicJourneyChanged, JourneyID: "X"})
	time.Sleep(20 * time.Millisecond)
	if c.len() != 0 {
		t.Fatalf("received %d events after unsubscribe", c.len())
	}
}

func TestFullQueueDropsForSlowSubscriberOnly(t *testing.T) {
	b := NewBroker(1)
	defer b.Close()

	release := make(chan struct{})
	var slow, fast collector
	b.Subscribe(TopicLocationInserted, Filter{}, func(c Change) {
		<-release
		slow.add(c)
	})
	b.Subscribe(TopicLocationInserted, Filter{}, fast.add)

	for i := 0; i < 5; i++ {
		b.Publish(Change{Topic: TopicLocationInserted, JourneyID: "X"})
		waitFor(t, func() bool { return fast.len() == i+1 })
	}
	close(release)

	// 慢订阅者最多拿到一条正在处理的和一条排队的
	waitFor(t, func() bool { return slow.len() >= 1 })
	time.Sleep(20 * time.Millisecond)
	if n := slow.len(); n > 2 {
		t.Fatalf("slow subscriber got %d events, want at most 2", n)
	}
}

func TestSubscriberPanicDoesNotStopDelivery(t *testing.T) {
	b := NewBroker(8)
	defer b.Close()

	var c collector
	b.Subscribe(TopicTrackingWarning, Filter{}, func(ch Change) {
		if ch.JourneyID == "boom" {
			panic("boom")
		}
		c.add(ch)
	})
	b.Publish(Change{Topic: TopicTrackingWarning, JourneyID: "boom"})
	b.Publish(Change{Topic: TopicTrackingWarning, JourneyID: "ok"})
	waitFor(t, func() bool { return c.len() == 1 })
}

func TestCloseEndsSubscriptions(t *testing.T) {
	b := NewBroker(8)
	sub := b.Subscribe(TopicJourneyChanged, Filter{}, func(Change) {})
	b.Close()

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription still running after Close")
	}

	late := b.Subscribe(TopicJourneyChanged, Filter{}, func(Change) {})
	select {
	case <-late.Done():
	default:
		t.Fatal("Subscribe after Close should return a finished subscription")
	}
	late.Unsubscribe()
}

func TestLocalFeedDeliversThroughBroker(t *testing.T) {
	b := NewBroker(8)
	defer b.Close()

	var c collector
	b.Subscribe(TopicJourneyChanged, ForJourney("X"), c.add)

	feed := NewLocalFeed(b)
	Emit(context.Background(), feed, TopicJourneyChanged, "journeys", Update, "X", map[string]string{"status": "active"})
	waitFor(t, func() bool { return c.len() == 1 })

	c.mu.Lock()
	defer c.mu.Unlock()
	if string(c.got[0].Record) != `{"status":"active"}` {
		t.Fatalf("Record = %s", c.got[0].Record)
	}
	if c.got[0].Type != Update || c.got[0].Table != "journeys" {
		t.Fatalf("got %+v", c.got[0])
	}
}

func TestRedisFeedDecodeFillsTopicFromChannel(t *testing.T) {
	f := NewRedisFeed(nil, NewBroker(1), "safewalk")
	if ch := f.Channel(TopicLocationInserted); ch != "safewalk:changes:location-row-inserted" {
		t.Fatalf("Channel = %q", ch)
	}

	c, err := f.decode(&goredis.Message{
		Channel: "safewalk:changes:checkin-prompted",
		Payload: `{"journey_id":"X","type":"INSERT"}`,
	})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.Topic != TopicCheckInPrompted || c.JourneyID != "X" {
		t.Fatalf("got %+v", c)
	}

	if _, err := f.decode(&goredis.Message{Payload: "not json"}); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestRedisFeedServeKeepsRetrying(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	f := NewRedisFeed(client, NewBroker(1), "safewalk").WithRetry(5*time.Millisecond, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := f.Serve(ctx); err != nil {
		t.Fatalf("Serve = %v, want nil after cancel", err)
	}
	if elapsed := time.Since(start); elapsed < 250*time.Millisecond {
		t.Fatalf("Serve returned after %v, want it to keep retrying until cancel", elapsed)
	}
	if n := f.Failures(); n < 2 {
		t.Fatalf("failures = %d, want at least 2", n)
	}
	if f.Connected() {
		t.Fatal("Connected() = true without a reachable redis")
	}
}
