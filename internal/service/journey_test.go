package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"SafeWalk/internal/model"
	"SafeWalk/internal/model/dto"
	"SafeWalk/internal/realtime"
	"SafeWalk/internal/repository"
	"SafeWalk/internal/route"
	pkgerrors "SafeWalk/pkg/errors"
)

func TestCreateWithoutContactsWritesNothing(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.svc.Journey.Create(context.Background(), testUserID, dto.CreateJourneyRequest{
		Start:       dto.EndpointInput{Address: "A"},
		Destination: dto.EndpointInput{Address: "B"},
	})
	if !errors.Is(err, pkgerrors.ContactsRequired) {
		t.Fatalf("err = %v, want %v", err, pkgerrors.ContactsRequired)
	}
	if f.est.calls != 0 {
		t.Fatalf("estimator calls = %d, want 0", f.est.calls)
	}
	journeys, _ := f.store.ListJourneys(context.Background(), repository.JourneyQuery{UserID: testUserID})
	if len(journeys) != 0 {
		t.Fatalf("journeys = %d, want 0", len(journeys))
	}
	if f.pub.count() != 0 || len(f.mon.started) != 0 {
		t.Fatalf("side effects after rejected create: published=%d started=%d", f.pub.count(), len(f.mon.started))
	}
}

func TestCreateRejectsForeignContact(t *testing.T) {
	f := newFixture(t, Config{})
	stranger := f.store.PutContact(model.Contact{UserID: 7, Name: "Mallory", Phone: "13000000000"})

	_, err := f.svc.Journey.Create(context.Background(), testUserID, dto.CreateJourneyRequest{
		Start:       dto.EndpointInput{Address: "A"},
		Destination: dto.EndpointInput{Address: "B"},
		ContactIDs:  []int64{f.contacts[0].ID, stranger.ID},
	})
	if !errors.Is(err, pkgerrors.ContactNotFound) {
		t.Fatalf("err = %v, want %v", err, pkgerrors.ContactNotFound)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t, Config{})
	lat := 91.0
	lng := 0.0

	cases := []struct {
		name string
		req  dto.CreateJourneyRequest
		want error
	}{
		{
			name: "missing destination",
			req:  dto.CreateJourneyRequest{Start: dto.EndpointInput{Address: "A"}, ContactIDs: f.contactIDs()},
			want: pkgerrors.ValidationError,
		},
		{
			name: "bad coordinates",
			req: dto.CreateJourneyRequest{
				Start:       dto.EndpointInput{Latitude: &lat, Longitude: &lng},
				Destination: dto.EndpointInput{Address: "B"},
				ContactIDs:  f.contactIDs(),
			},
			want: pkgerrors.InvalidCoordinates,
		},
		{
			name: "interval too long",
			req: dto.CreateJourneyRequest{
				Start:                  dto.EndpointInput{Address: "A"},
				Destination:            dto.EndpointInput{Address: "B"},
				ContactIDs:             f.contactIDs(),
				CheckInIntervalMinutes: 90,
			},
			want: pkgerrors.CheckInIntervalRange,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.Journey.Create(context.Background(), testUserID, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCreateMapsUnknownAddress(t *testing.T) {
	f := newFixture(t, Config{})
	f.est.err = route.ErrNotGeocoded

	_, err := f.svc.Journey.Create(context.Background(), testUserID, dto.CreateJourneyRequest{
		Start:       dto.EndpointInput{Address: "nowhere at all"},
		Destination: dto.EndpointInput{Address: "B"},
		ContactIDs:  f.contactIDs(),
	})
	if !errors.Is(err, pkgerrors.AddressNotFound) {
		t.Fatalf("err = %v, want %v", err, pkgerrors.AddressNotFound)
	}
}

func TestCreateJourney(t *testing.T) {
	f := newFixture(t, Config{DefaultCheckInInterval: 3})
	j := f.createJourney(t)

	if j.Status != model.JourneyStatusActive {
		t.Fatalf("status = %s, want active", j.Status)
	}
	if j.CheckInIntervalMinutes != 3 {
		t.Fatalf("interval = %d, want 3", j.CheckInIntervalMinutes)
	}
	if want := f.clock.Now().Add(45 * time.Minute); !j.EstimatedArrival.Equal(want) {
		t.Fatalf("estimated arrival = %v, want %v", j.EstimatedArrival, want)
	}
	if got := f.notifications(t, j.ID, model.NotificationTypeStart); got != 2 {
		t.Fatalf("start notifications = %d, want 2", got)
	}
	if f.pub.count() != 2 {
		t.Fatalf("published events = %d, want 2", f.pub.count())
	}
	steps, _ := f.store.ListSteps(context.Background(), j.ID)
	if len(steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(steps))
	}
	if len(f.mon.started) != 1 || f.mon.started[0] != j.ID {
		t.Fatalf("monitors started = %v, want [%s]", f.mon.started, j.ID)
	}
	if f.emit.count(realtime.TopicJourneyChanged) != 1 {
		t.Fatalf("journey changes = %d, want 1", f.emit.count(realtime.TopicJourneyChanged))
	}
}

func TestGetIsOwnerScoped(t *testing.T) {
	f := newFixture(t, Config{})
	j := f.createJourney(t)

	if _, err := f.svc.Journey.Get(context.Background(), testUserID+1, j.ID); !errors.Is(err, pkgerrors.JourneyNotFound) {
		t.Fatalf("other user err = %v, want %v", err, pkgerrors.JourneyNotFound)
	}
	if _, err := f.svc.Journey.Get(context.Background(), testUserID, "not-a-uuid"); !errors.Is(err, pkgerrors.JourneyNotFound) {
		t.Fatalf("malformed id err = %v, want %v", err, pkgerrors.JourneyNotFound)
	}
	if _, err := f.svc.Journey.Get(context.Background(), testUserID, uuid.NewString()); !errors.Is(err, pkgerrors.JourneyNotFound) {
		t.Fatalf("unknown id err = %v, want %v", err, pkgerrors.JourneyNotFound)
	}

	detail, err := f.svc.Journey.Get(context.Background(), testUserID, j.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(detail.Contacts) != 2 || len(detail.Steps) != 2 {
		t.Fatalf("detail contacts=%d steps=%d, want 2/2", len(detail.Contacts), len(detail.Steps))
	}
	if !strings.HasSuffix(detail.TrackingURL, "/track/"+j.ID) {
		t.Fatalf("tracking url = %q", detail.TrackingURL)
	}
}

func TestMarkArrivedIsIdempotent(t *testing.T) {
	f := newFixture(t, Config{})
	j := f.createJourney(t)
	ctx := context.Background()

	if _, err := f.svc.Journey.MarkArrived(ctx, testUserID, j.ID, false); !errors.Is(err, pkgerrors.ConfirmationRequired) {
		t.Fatalf("unconfirmed err = %v, want %v", err, pkgerrors.ConfirmationRequired)
	}

	f.clock.Advance(30 * time.Minute)
	first, err := f.svc.Journey.MarkArrived(ctx, testUserID, j.ID, true)
	if err != nil {
		t.Fatalf("MarkArrived: %v", err)
	}
	if first.Status != model.JourneyStatusCompletedSafe || first.EndTime == nil {
		t.Fatalf("after arrival status=%s end=%v", first.Status, first.EndTime)
	}

	second, err := f.svc.Journey.MarkArrived(ctx, testUserID, j.ID, true)
	if err != nil {
		t.Fatalf("second MarkArrived: %v", err)
	}
	if !second.EndTime.Equal(*first.EndTime) {
		t.Fatalf("end time changed: %v -> %v", first.EndTime, second.EndTime)
	}
	if got := f.notifications(t, j.ID, model.NotificationTypeArrivalSafe); got != 2 {
		t.Fatalf("arrival notifications = %d, want 2", got)
	}
	if len(f.mon.stopped) != 1 {
		t.Fatalf("monitors stopped %d times, want 1", len(f.mon.stopped))
	}
}

func TestTriggerAlertRecordsNegativeCheckIn(t *testing.T) {
	f := newFixture(t, Config{})
	j := f.createJourney(t)
	ctx := context.Background()

	updated, err := f.svc.Journey.TriggerAlert(ctx, testUserID, j.ID, true)
	if err != nil {
		t.Fatalf("TriggerAlert: %v", err)
	}
	if updated.Status != model.JourneyStatusAlertTriggered {
		t.Fatalf("status = %s, want alert_triggered", updated.Status)
	}
	if updated.EndTime != nil {
		t.Fatalf("end time set while monitoring continues: %v", updated.EndTime)
	}
	if got := f.notifications(t, j.ID, model.NotificationTypeDangerAlert); got != 2 {
		t.Fatalf("danger notifications = %d, want 2", got)
	}
	latest, _ := f.store.LatestCheckIn(ctx, j.ID)
	if latest == nil || latest.Response != model.CheckInResponseNo {
		t.Fatalf("latest check-in = %+v, want no", latest)
	}
	if len(f.mon.stopped) != 0 {
		t.Fatalf("monitors stopped = %v, want none", f.mon.stopped)
	}

	// 告警后仍可标记到达
	if _, err := f.svc.Journey.MarkArrived(ctx, testUserID, j.ID, true); err != nil {
		t.Fatalf("MarkArrived after alert: %v", err)
	}
}

func TestAlertHaltsMonitoring(t *testing.T) {
	f := newFixture(t, Config{AlertHaltsMonitoring: true})
	j := f.createJourney(t)
	ctx := context.Background()

	updated, err := f.svc.Journey.TriggerAlert(ctx, testUserID, j.ID, true)
	if err != nil {
		t.Fatalf("TriggerAlert: %v", err)
	}
	if updated.EndTime == nil {
		t.Fatal("end time not set when alerts halt monitoring")
	}
	if len(f.mon.stopped) != 1 {
		t.Fatalf("monitors stopped %d times, want 1", len(f.mon.stopped))
	}
	if _, err := f.svc.Journey.TriggerAlert(ctx, testUserID, j.ID, true); !errors.Is(err, pkgerrors.JourneyNotActive) {
		t.Fatalf("second alert err = %v, want %v", err, pkgerrors.JourneyNotActive)
	}
	if _, err := f.svc.Journey.MarkArrived(ctx, testUserID, j.ID, true); !errors.Is(err, pkgerrors.JourneyNotActive) {
		t.Fatalf("arrival after halted alert err = %v, want %v", err, pkgerrors.JourneyNotActive)
	}
}

func TestListUsesCursor(t *testing.T) {
	f := newFixture(t, Config{})
	for i := 0; i < 3; i++ {
		f.createJourney(t)
		f.clock.Advance(time.Minute)
	}
	ctx := context.Background()

	page, next, err := f.svc.Journey.List(ctx, testUserID, dto.JourneyListQuery{Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page) != 2 || next == "" {
		t.Fatalf("first page = %d items, next %q", len(page), next)
	}
	if !page[0].StartTime.After(page[1].StartTime) {
		t.Fatal("list not ordered newest first")
	}

	rest, next, err := f.svc.Journey.List(ctx, testUserID, dto.JourneyListQuery{Limit: 2, Cursor: next})
	if err != nil {
		t.Fatalf("List page 2: %v", err)
	}
	if len(rest) != 1 || next != "" {
		t.Fatalf("second page = %d items, next %q", len(rest), next)
	}

	if _, _, err := f.svc.Journey.List(ctx, testUserID, dto.JourneyListQuery{Status: "lost"}); !errors.Is(err, pkgerrors.ValidationError) {
		t.Fatalf("bad status err = %v, want %v", err, pkgerrors.ValidationError)
	}
}

func TestListCursorKeepsSameStartTimeJourneys(t *testing.T) {
	f := newFixture(t, Config{})
	want := map[string]bool{}
	for i := 0; i < 5; i++ {
		want[f.createJourney(t).ID] = true
	}
	ctx := context.Background()

	seen := map[string]bool{}
	cursor := ""
	for i := 0; i < 5; i++ {
		page, next, err := f.svc.Journey.List(ctx, testUserID, dto.JourneyListQuery{Limit: 2, Cursor: cursor})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		for _, item := range page {
			if seen[item.ID] {
				t.Fatalf("journey %s listed twice", item.ID)
			}
			seen[item.ID] = true
		}
		if next == "" {
			break
		}
		cursor = next
	}
	if len(seen) != len(want) {
		t.Fatalf("listed %d journeys, want %d", len(seen), len(want))
	}
}

func TestPublicViewMasksContacts(t *testing.T) {
	f := newFixture(t, Config{})
	j := f.createJourney(t)

	view, err := f.svc.Journey.PublicView(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("PublicView: %v", err)
	}
	if len(view.Contacts) != 2 {
		t.Fatalf("contacts = %d, want 2", len(view.Contacts))
	}
	for _, c := range view.Contacts {
		if !strings.Contains(c.Phone, "****") {
			t.Fatalf("phone %q not masked", c.Phone)
		}
	}
	if view.Journey.ID != j.ID || view.Journey.Status != model.JourneyStatusActive {
		t.Fatalf("public journey = %+v", view.Journey)
	}
}

func TestReconcileRestartsMonitors(t *testing.T) {
	f := newFixture(t, Config{})
	a := f.createJourney(t)
	b := f.createJourney(t)
	if _, err := f.svc.Journey.MarkArrived(context.Background(), testUserID, b.ID, true); err != nil {
		t.Fatalf("MarkArrived: %v", err)
	}
	f.mon.started = nil

	n, err := f.svc.Journey.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if n != 1 || len(f.mon.started) != 1 || f.mon.started[0] != a.ID {
		t.Fatalf("reconciled %d, started %v, want [%s]", n, f.mon.started, a.ID)
	}
}
