package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"SafeWalk/internal/model"
	pkgerrors "SafeWalk/pkg/errors"
)

func TestNegativeCheckInAlertsEachContactOnce(t *testing.T) {
	f := newFixture(t, Config{})
	j := f.createJourney(t)
	ctx := context.Background()

	if _, err := f.svc.CheckIn.Respond(ctx, testUserID, j.ID, "no"); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	got, _ := f.store.GetJourney(ctx, j.ID)
	if got.Status != model.JourneyStatusAlertTriggered {
		t.Fatalf("status = %s, want alert_triggered", got.Status)
	}
	if n := f.notifications(t, j.ID, model.NotificationTypeDangerAlert); n != 2 {
		t.Fatalf("danger notifications = %d, want 2", n)
	}

	f.clock.Advance(time.Minute)
	if _, err := f.svc.CheckIn.Respond(ctx, testUserID, j.ID, "NO"); err != nil {
		t.Fatalf("second Respond: %v", err)
	}
	if n := f.notifications(t, j.ID, model.NotificationTypeDangerAlert); n != 2 {
		t.Fatalf("danger notifications after repeat = %d, want 2", n)
	}
	checkIns, _ := f.store.ListCheckIns(ctx, j.ID)
	if len(checkIns) != 2 {
		t.Fatalf("check-ins = %d, want 2", len(checkIns))
	}
	if len(f.resolver.resolved) != 2 {
		t.Fatalf("resolved = %d, want 2", len(f.resolver.resolved))
	}
}

func TestPositiveCheckInKeepsJourneyActive(t *testing.T) {
	f := newFixture(t, Config{})
	j := f.createJourney(t)
	ctx := context.Background()

	c, err := f.svc.CheckIn.Respond(ctx, testUserID, j.ID, " yes ")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if c.Response != model.CheckInResponseYes {
		t.Fatalf("response = %s, want yes", c.Response)
	}
	got, _ := f.store.GetJourney(ctx, j.ID)
	if got.Status != model.JourneyStatusActive {
		t.Fatalf("status = %s, want active", got.Status)
	}

	if _, err := f.svc.CheckIn.Respond(ctx, testUserID, j.ID, "maybe"); !errors.Is(err, pkgerrors.CheckInResponseBad) {
		t.Fatalf("bad response err = %v, want %v", err, pkgerrors.CheckInResponseBad)
	}
}

func TestCheckInAfterArrivalRejected(t *testing.T) {
	f := newFixture(t, Config{})
	j := f.createJourney(t)
	ctx := context.Background()

	if _, err := f.svc.Journey.MarkArrived(ctx, testUserID, j.ID, true); err != nil {
		t.Fatalf("MarkArrived: %v", err)
	}
	if _, err := f.svc.CheckIn.Respond(ctx, testUserID, j.ID, "yes"); !errors.Is(err, pkgerrors.JourneyNotActive) {
		t.Fatalf("err = %v, want %v", err, pkgerrors.JourneyNotActive)
	}
}

func TestExpirePromptAfterAnswerRecordsNothing(t *testing.T) {
	f := newFixture(t, Config{})
	j := f.createJourney(t)
	ctx := context.Background()

	promptedAt := f.clock.Now()
	f.clock.Advance(30 * time.Second)
	if _, err := f.svc.CheckIn.Respond(ctx, testUserID, j.ID, "yes"); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	f.clock.Advance(2 * time.Minute)

	if err := f.svc.CheckIn.ExpirePrompt(ctx, j.ID, promptedAt); err != nil {
		t.Fatalf("ExpirePrompt: %v", err)
	}
	checkIns, _ := f.store.ListCheckIns(ctx, j.ID)
	if len(checkIns) != 1 || checkIns[0].Response != model.CheckInResponseYes {
		t.Fatalf("check-ins = %+v, want a single yes", checkIns)
	}
	if n := f.notifications(t, j.ID, model.NotificationTypeCheckInAlert); n != 0 {
		t.Fatalf("checkin alerts = %d, want 0", n)
	}
}

func TestExpirePromptUnansweredEscalates(t *testing.T) {
	f := newFixture(t, Config{})
	j := f.createJourney(t)
	ctx := context.Background()

	promptedAt := f.clock.Now()
	f.clock.Advance(2 * time.Minute)

	if err := f.svc.CheckIn.ExpirePrompt(ctx, j.ID, promptedAt); err != nil {
		t.Fatalf("ExpirePrompt: %v", err)
	}
	latest, _ := f.store.LatestCheckIn(ctx, j.ID)
	if latest == nil || latest.Response != model.CheckInResponseNoResponse {
		t.Fatalf("latest check-in = %+v, want no_response", latest)
	}
	got, _ := f.store.GetJourney(ctx, j.ID)
	if got.Status != model.JourneyStatusAlertTriggered {
		t.Fatalf("status = %s, want alert_triggered", got.Status)
	}
	if n := f.notifications(t, j.ID, model.NotificationTypeCheckInAlert); n != 2 {
		t.Fatalf("checkin alerts = %d, want 2", n)
	}

	// 同一条截止消息重复投递
	if err := f.svc.CheckIn.ExpirePrompt(ctx, j.ID, promptedAt); err != nil {
		t.Fatalf("repeat ExpirePrompt: %v", err)
	}
	checkIns, _ := f.store.ListCheckIns(ctx, j.ID)
	if len(checkIns) != 1 {
		t.Fatalf("check-ins after redelivery = %d, want 1", len(checkIns))
	}
	if len(f.resolver.resolved) != 2 {
		t.Fatalf("resolved = %d, want 2", len(f.resolver.resolved))
	}
}

func TestExpirePromptIgnoresFinishedJourney(t *testing.T) {
	f := newFixture(t, Config{})
	j := f.createJourney(t)
	ctx := context.Background()

	promptedAt := f.clock.Now()
	if _, err := f.svc.Journey.MarkArrived(ctx, testUserID, j.ID, true); err != nil {
		t.Fatalf("MarkArrived: %v", err)
	}
	if err := f.svc.CheckIn.ExpirePrompt(ctx, j.ID, promptedAt); err != nil {
		t.Fatalf("ExpirePrompt: %v", err)
	}
	checkIns, _ := f.store.ListCheckIns(ctx, j.ID)
	if len(checkIns) != 0 {
		t.Fatalf("check-ins = %d, want 0", len(checkIns))
	}
}
