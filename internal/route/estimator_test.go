package route

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"SafeWalk/internal/cache"
	"SafeWalk/internal/geo"
)

type fakeRouter struct {
	result *Result
	err    error
	calls  int
	delay  time.Duration
}

func (f *fakeRouter) Route(ctx context.Context, from, to geo.Point) (*Result, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.result, f.err
}

type fakeGeocoder struct {
	places map[string]*Place
	calls  int
}

func (f *fakeGeocoder) Search(ctx context.Context, q string) (*Place, error) {
	f.calls++
	if p, ok := f.places[q]; ok {
		return p, nil
	}
	return nil, ErrNotGeocoded
}

func (f *fakeGeocoder) Reverse(ctx context.Context, p geo.Point) (string, error) {
	return "somewhere", nil
}

var (
	home = geo.Point{Lat: 40.7128, Lng: -74.0060}
	park = geo.Point{Lat: 40.7228, Lng: -74.0060}
)

func TestEstimateFallsBackToStraightLine(t *testing.T) {
	e := NewEstimator(nil, &fakeRouter{err: errors.New("connection refused")})

	est, err := e.Estimate(context.Background(), AtPoint(home), AtPoint(park))
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if est == nil {
		t.Fatal("Estimate returned nil on router failure")
	}
	if !est.Degraded {
		t.Fatal("expected degraded estimate")
	}
	want := geo.Haversine(home, park)
	if math.Abs(est.DistanceMeters-want) > 1e-6 {
		t.Fatalf("DistanceMeters = %v, want %v", est.DistanceMeters, want)
	}
	if wantMin := int(math.Ceil(want / 1.34112 / 60)); est.DurationMinutes != wantMin {
		t.Fatalf("DurationMinutes = %d, want %d", est.DurationMinutes, wantMin)
	}
}

func TestEstimateFallsBackOnNoRoute(t *testing.T) {
	e := NewEstimator(nil, &fakeRouter{err: ErrNoRoute})
	est, err := e.Estimate(context.Background(), AtPoint(home), AtPoint(park))
	if err != nil || !est.Degraded {
		t.Fatalf("est = %+v, err = %v; want degraded estimate", est, err)
	}
}

func TestEstimateUsesProviderDuration(t *testing.T) {
	dur := 601.0
	r := &fakeRouter{result: &Result{
		DistanceMeters:  1200,
		DurationSeconds: &dur,
		Steps: []Maneuver{
			{Type: "depart", Name: "Broadway", DistanceMeters: 600, DurationSeconds: 300},
			{Type: "arrive", DistanceMeters: 600, DurationSeconds: 301},
		},
	}}
	e := NewEstimator(nil, r)

	est, err := e.Estimate(context.Background(), AtPoint(home), AtPoint(park))
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if est.Degraded {
		t.Fatal("unexpected degraded estimate")
	}
	if est.DurationMinutes != 11 {
		t.Fatalf("DurationMinutes = %d, want 11", est.DurationMinutes)
	}
	if len(est.Steps) != 2 || est.Steps[0].Instruction != "Start walking on Broadway" {
		t.Fatalf("Steps = %+v", est.Steps)
	}
}

func TestEstimateDerivesDurationFromDistance(t *testing.T) {
	r := &fakeRouter{result: &Result{DistanceMeters: 1000}}
	est, err := NewEstimator(nil, r).Estimate(context.Background(), AtPoint(home), AtPoint(park))
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if est.DurationMinutes != 13 {
		t.Fatalf("DurationMinutes = %d, want 13", est.DurationMinutes)
	}
}

func TestEstimateGeocodesAddresses(t *testing.T) {
	g := &fakeGeocoder{places: map[string]*Place{
		"1 main st": {Point: home, DisplayName: "1 Main St"},
	}}
	r := &fakeRouter{result: &Result{DistanceMeters: 500}}
	e := NewEstimator(g, r)

	est, err := e.Estimate(context.Background(), AtAddress("1 main st"), AtPoint(park))
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if est.Origin.DisplayName != "1 Main St" {
		t.Fatalf("Origin = %+v", est.Origin)
	}

	_, err = e.Estimate(context.Background(), AtAddress("nowhere"), AtPoint(park))
	if !errors.Is(err, ErrNotGeocoded) {
		t.Fatalf("err = %v, want ErrNotGeocoded", err)
	}
}

func TestEstimateTimesOutSlowRouter(t *testing.T) {
	r := &fakeRouter{delay: time.Second, result: &Result{DistanceMeters: 10}}
	e := NewEstimator(nil, r, WithTimeout(20*time.Millisecond))

	est, err := e.Estimate(context.Background(), AtPoint(home), AtPoint(park))
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if !est.Degraded {
		t.Fatal("expected degraded estimate after timeout")
	}
}

func TestEstimateBreakerSkipsRouter(t *testing.T) {
	r := &fakeRouter{err: errors.New("503")}
	cb := cache.NewCircuitBreaker("route", 1, time.Hour)
	e := NewEstimator(nil, r, WithBreaker(cb))

	for i := 0; i < 3; i++ {
		if _, err := e.Estimate(context.Background(), AtPoint(home), AtPoint(park)); err != nil {
			t.Fatalf("Estimate: %v", err)
		}
	}
	if r.calls != 1 {
		t.Fatalf("router calls = %d, want 1", r.calls)
	}
}

func TestRefreshReusesNearbyEstimate(t *testing.T) {
	r := &fakeRouter{result: &Result{DistanceMeters: 1000}}
	e := NewEstimator(nil, r)
	ctx := context.Background()

	prev, err := e.Refresh(ctx, nil, home, AtPoint(park))
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	nudged := geo.Point{Lat: home.Lat + 0.0001, Lng: home.Lng}
	again, _ := e.Refresh(ctx, prev, nudged, AtPoint(park))
	if again != prev || r.calls != 1 {
		t.Fatalf("expected reuse, calls = %d", r.calls)
	}

	moved := geo.Point{Lat: home.Lat + 0.001, Lng: home.Lng}
	if _, err := e.Refresh(ctx, prev, moved, AtPoint(park)); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if r.calls != 2 {
		t.Fatalf("router calls = %d, want 2", r.calls)
	}
}
