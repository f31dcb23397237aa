package queue

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"SafeWalk/internal/model"
	"SafeWalk/pkg/errors"
)

type fakeMarks struct {
	marked   map[string]bool
	unmarked int
	done     int
}

func (m *fakeMarks) TryMark(_ context.Context, id string) (bool, error) {
	if m.marked[id] {
		return false, nil
	}
	m.marked[id] = true
	return true, nil
}

func (m *fakeMarks) Unmark(_ context.Context, id string) error {
	delete(m.marked, id)
	m.unmarked++
	return nil
}

func (m *fakeMarks) Done(context.Context, string) error {
	m.done++
	return nil
}

type fakeExpirer struct {
	calls []time.Time
	err   error
}

func (f *fakeExpirer) ExpirePrompt(_ context.Context, _ string, promptedAt time.Time) error {
	f.calls = append(f.calls, promptedAt)
	return f.err
}

func deadlineBody(t *testing.T, id string, at time.Time) []byte {
	t.Helper()
	b, err := json.Marshal(model.CheckInDeadlineMessage{
		MessageID:  id,
		JourneyID:  "j1",
		PromptedAt: at.Format(time.RFC3339Nano),
	})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestHandleCheckInDeadlineIsIdempotent(t *testing.T) {
	marks := &fakeMarks{marked: map[string]bool{}}
	h := &fakeExpirer{}
	at := time.Date(2024, 3, 1, 21, 0, 0, 123, time.UTC)
	body := deadlineBody(t, "m1", at)

	if err := HandleCheckInDeadline(context.Background(), body, h, marks); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	err := HandleCheckInDeadline(context.Background(), body, h, marks)
	var skip *errors.SkipMessageError
	if !stderrors.As(err, &skip) {
		t.Fatalf("second delivery err = %v, want SkipMessageError", err)
	}
	if len(h.calls) != 1 || !h.calls[0].Equal(at) {
		t.Fatalf("calls = %v", h.calls)
	}
	if marks.done != 1 {
		t.Fatalf("done = %d, want 1", marks.done)
	}
}

func TestHandleCheckInDeadlineUnmarksOnFailure(t *testing.T) {
	marks := &fakeMarks{marked: map[string]bool{}}
	h := &fakeExpirer{err: stderrors.New("db down")}

	if err := HandleCheckInDeadline(context.Background(), deadlineBody(t, "m2", time.Now()), h, marks); err == nil {
		t.Fatal("expected error")
	}
	if marks.unmarked != 1 || marks.marked["m2"] {
		t.Fatalf("message should be unmarked for retry, unmarked=%d", marks.unmarked)
	}
}

func TestHandleCheckInDeadlineSkipsMalformed(t *testing.T) {
	var skip *errors.SkipMessageError
	err := HandleCheckInDeadline(context.Background(), []byte("{"), &fakeExpirer{}, &fakeMarks{marked: map[string]bool{}})
	if !stderrors.As(err, &skip) {
		t.Fatalf("err = %v, want SkipMessageError", err)
	}
}
