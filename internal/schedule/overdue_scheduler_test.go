package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SafeWalk/internal/model"
	"SafeWalk/internal/repository"
	"SafeWalk/internal/repository/memory"
)

type memoryFlags struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (f *memoryFlags) TryMark(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen[id] {
		return false, nil
	}
	f.seen[id] = true
	return true, nil
}

func (f *memoryFlags) Unmark(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.seen, id)
	return nil
}

type countingNotifier struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func (n *countingNotifier) NotifyOverdue(_ context.Context, j *model.Journey) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls[j.ID]++
	if n.err != nil {
		return 0, n.err
	}
	return 2, nil
}

func putJourney(t *testing.T, store *memory.Store, id string, eta time.Time) {
	t.Helper()
	j := &model.Journey{ID: id, Status: model.JourneyStatusActive, StartTime: eta.Add(-time.Hour), EstimatedArrival: eta}
	if err := store.CreateJourney(context.Background(), repository.NewJourney{Journey: j}); err != nil {
		t.Fatalf("CreateJourney: %v", err)
	}
}

func TestOverdueNotifiesOnce(t *testing.T) {
	now := time.Date(2026, 5, 2, 23, 0, 0, 0, time.UTC)
	store := memory.New()
	putJourney(t, store, "late", now.Add(-time.Hour))
	putJourney(t, store, "in-grace", now.Add(-5*time.Minute))
	putJourney(t, store, "on-time", now.Add(time.Hour))

	notifier := &countingNotifier{calls: map[string]int{}}
	s := NewOverdueScheduler(store, notifier, &memoryFlags{seen: map[string]bool{}}, 15*time.Minute).
		WithClock(func() time.Time { return now })

	for i := 0; i < 2; i++ {
		if err := s.CheckOverdueJourneys(context.Background()); err != nil {
			t.Fatalf("CheckOverdueJourneys: %v", err)
		}
	}
	if notifier.calls["late"] != 1 {
		t.Fatalf("late notified %d times, want 1", notifier.calls["late"])
	}
	if notifier.calls["in-grace"] != 0 || notifier.calls["on-time"] != 0 {
		t.Fatalf("unexpected notifications: %v", notifier.calls)
	}
	if !s.LastCheckTime().Equal(now) {
		t.Fatalf("last check = %v, want %v", s.LastCheckTime(), now)
	}
}

func TestOverdueRetriesAfterFailure(t *testing.T) {
	now := time.Date(2026, 5, 2, 23, 0, 0, 0, time.UTC)
	store := memory.New()
	putJourney(t, store, "late", now.Add(-time.Hour))

	notifier := &countingNotifier{calls: map[string]int{}, err: errors.New("db down")}
	s := NewOverdueScheduler(store, notifier, &memoryFlags{seen: map[string]bool{}}, 15*time.Minute).
		WithClock(func() time.Time { return now })

	if err := s.CheckOverdueJourneys(context.Background()); err == nil {
		t.Fatal("expected error when notification fails")
	}
	notifier.err = nil
	if err := s.CheckOverdueJourneys(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if notifier.calls["late"] != 2 {
		t.Fatalf("notify attempts = %d, want 2", notifier.calls["late"])
	}
}
