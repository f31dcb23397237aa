package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"SafeWalk/internal/geo"
	"SafeWalk/internal/realtime"
	"SafeWalk/internal/sampler"
	pkgerrors "SafeWalk/pkg/errors"
)

func TestPublishAppendsOneBreadcrumbPerSample(t *testing.T) {
	f := newFixture(t, Config{})
	j := f.createJourney(t)
	ctx := context.Background()

	const n = 5
	for i := 0; i < n; i++ {
		f.clock.Advance(10 * time.Second)
		p := sampler.Position{
			Point:     geo.Point{Lat: 51.5007 + float64(i)*0.001, Lng: -0.1246},
			Timestamp: f.clock.Now(),
		}
		if err := f.svc.Location.Publish(ctx, j.ID, p); err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
	}

	locs, _ := f.store.ListLocations(ctx, j.ID)
	if len(locs) != n {
		t.Fatalf("breadcrumbs = %d, want %d", len(locs), n)
	}
	got, _ := f.store.GetJourney(ctx, j.ID)
	if !got.HasPosition() || *got.CurrentLatitude != locs[n-1].Latitude {
		t.Fatalf("current position = %v, want last sample", got.CurrentLatitude)
	}
	if c := f.emit.count(realtime.TopicLocationInserted); c != n {
		t.Fatalf("location changes = %d, want %d", c, n)
	}

	view, err := f.svc.Journey.PublicView(ctx, j.ID)
	if err != nil {
		t.Fatalf("PublicView: %v", err)
	}
	if len(view.Breadcrumbs) != n || view.Stats.Points != n || view.Stats.DistanceMeters <= 0 {
		t.Fatalf("view breadcrumbs=%d stats=%+v", len(view.Breadcrumbs), view.Stats)
	}
}

func TestPublishRejectsFinishedJourney(t *testing.T) {
	f := newFixture(t, Config{})
	j := f.createJourney(t)
	ctx := context.Background()

	if _, err := f.svc.Journey.MarkArrived(ctx, testUserID, j.ID, true); err != nil {
		t.Fatalf("MarkArrived: %v", err)
	}
	p := sampler.Position{Point: geo.Point{Lat: 51.5, Lng: -0.12}, Timestamp: f.clock.Now()}
	if err := f.svc.Location.Publish(ctx, j.ID, p); !errors.Is(err, pkgerrors.JourneyNotActive) {
		t.Fatalf("err = %v, want %v", err, pkgerrors.JourneyNotActive)
	}
	if _, err := f.svc.Location.Authorize(ctx, testUserID, j.ID); !errors.Is(err, pkgerrors.JourneyNotActive) {
		t.Fatalf("Authorize err = %v, want %v", err, pkgerrors.JourneyNotActive)
	}
}

func TestPublishRejectsInvalidPoint(t *testing.T) {
	f := newFixture(t, Config{})
	j := f.createJourney(t)

	p := sampler.Position{Point: geo.Point{Lat: 120, Lng: 0}}
	if err := f.svc.Location.Publish(context.Background(), j.ID, p); !errors.Is(err, pkgerrors.InvalidCoordinates) {
		t.Fatalf("err = %v, want %v", err, pkgerrors.InvalidCoordinates)
	}
}
