package memory

import (
	"context"
	"strings"
	"testing"
	"time"

	"SafeWalk/internal/model"
	"SafeWalk/internal/repository"
)

func seedJourney(t *testing.T, s *Store, id string, status model.JourneyStatus) {
	t.Helper()
	err := s.CreateJourney(context.Background(), repository.NewJourney{
		Journey: &model.Journey{ID: id, UserID: 1, Status: status, StartTime: time.Now()},
	})
	if err != nil {
		t.Fatalf("CreateJourney: %v", err)
	}
}

func TestTransitionStatusOnlyFromAllowedStates(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedJourney(t, s, "j1", model.JourneyStatusActive)

	end := time.Now()
	tr := repository.Transition{
		JourneyID:     "j1",
		From:          []model.JourneyStatus{model.JourneyStatusActive},
		To:            model.JourneyStatusCompletedSafe,
		EndTime:       &end,
		Notifications: []model.NotificationLog{{JourneyID: "j1", Type: model.NotificationTypeArrivalSafe}},
	}

	j, changed, err := s.TransitionStatus(ctx, tr)
	if err != nil || !changed {
		t.Fatalf("first transition: changed=%v err=%v", changed, err)
	}
	if j.Status != model.JourneyStatusCompletedSafe || j.EndTime == nil {
		t.Fatalf("got status %s end %v", j.Status, j.EndTime)
	}

	tr.Notifications = []model.NotificationLog{{JourneyID: "j1", Type: model.NotificationTypeArrivalSafe}}
	_, changed, err = s.TransitionStatus(ctx, tr)
	if err != nil || changed {
		t.Fatalf("second transition: changed=%v err=%v", changed, err)
	}

	logs, _ := s.ListNotifications(ctx, "j1")
	if len(logs) != 1 {
		t.Fatalf("got %d notifications, want 1", len(logs))
	}

	if _, _, err := s.TransitionStatus(ctx, repository.Transition{JourneyID: "missing"}); err != repository.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAddMissedCheckInRespectsLaterAnswers(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedJourney(t, s, "j1", model.JourneyStatusActive)

	prompted := time.Date(2024, 3, 1, 21, 0, 0, 0, time.UTC)
	if err := s.AddCheckIn(ctx, &model.JourneyCheckIn{
		JourneyID: "j1",
		Response:  model.CheckInResponseYes,
		CreatedAt: prompted.Add(30 * time.Second),
	}); err != nil {
		t.Fatal(err)
	}

	added, err := s.AddMissedCheckIn(ctx, "j1", prompted, prompted.Add(2*time.Minute))
	if err != nil || added {
		t.Fatalf("added=%v err=%v, want no insert", added, err)
	}

	later := prompted.Add(5 * time.Minute)
	added, err = s.AddMissedCheckIn(ctx, "j1", later, later.Add(2*time.Minute))
	if err != nil || !added {
		t.Fatalf("added=%v err=%v, want insert", added, err)
	}

	latest, _ := s.LatestCheckIn(ctx, "j1")
	if latest == nil || latest.Response != model.CheckInResponseNoResponse {
		t.Fatalf("latest = %+v", latest)
	}
}

func TestListJourneysCursor(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		_ = s.CreateJourney(ctx, repository.NewJourney{Journey: &model.Journey{
			ID: id, UserID: 7, Status: model.JourneyStatusActive, StartTime: base.Add(time.Duration(i) * time.Hour),
		}})
	}
	_ = s.CreateJourney(ctx, repository.NewJourney{Journey: &model.Journey{ID: "other", UserID: 8, StartTime: base}})

	page, _ := s.ListJourneys(ctx, repository.JourneyQuery{UserID: 7, Limit: 2})
	if len(page) != 2 || page[0].ID != "c" || page[1].ID != "b" {
		t.Fatalf("first page = %v", ids(page))
	}

	before := page[1].StartTime
	page, _ = s.ListJourneys(ctx, repository.JourneyQuery{UserID: 7, Limit: 2, Before: &before, BeforeID: page[1].ID})
	if len(page) != 1 || page[0].ID != "a" {
		t.Fatalf("second page = %v", ids(page))
	}
}

func TestListJourneysCursorSameStartTime(t *testing.T) {
	s := New()
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
	for _, id := range []string{"a", "b", "c", "d"} {
		_ = s.CreateJourney(ctx, repository.NewJourney{Journey: &model.Journey{ID: id, UserID: 7, StartTime: at}})
	}

	var seen []string
	q := repository.JourneyQuery{UserID: 7, Limit: 3}
	for i := 0; i < 3; i++ {
		page, _ := s.ListJourneys(ctx, q)
		if len(page) == 0 {
			break
		}
		seen = append(seen, ids(page)...)
		last := page[len(page)-1]
		q.Before, q.BeforeID = &last.StartTime, last.ID
	}
	if got := strings.Join(seen, ","); got != "d,c,b,a" {
		t.Fatalf("pages = %s, want d,c,b,a", got)
	}
}

func TestGetContactsScopedToOwner(t *testing.T) {
	s := New()
	mine := s.PutContact(model.Contact{UserID: 1, Name: "Ann", Phone: "5550001"})
	theirs := s.PutContact(model.Contact{UserID: 2, Name: "Bob", Phone: "5550002"})

	got, _ := s.GetContacts(context.Background(), 1, []int64{mine.ID, theirs.ID})
	if len(got) != 1 || got[0].ID != mine.ID {
		t.Fatalf("got %+v", got)
	}
}

func ids(js []model.Journey) []string {
	out := make([]string, len(js))
	for i, j := range js {
		out[i] = j.ID
	}
	return out
}
