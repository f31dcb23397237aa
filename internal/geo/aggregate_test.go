package geo

import (
	"math"
	"testing"
	"time"
)

func TestHaversineTenthOfDegreeLatitude(t *testing.T) {
	d := Haversine(Point{Lat: 40.0, Lng: -74.0}, Point{Lat: 40.01, Lng: -74.0})
	if math.Abs(d-1110) > 11.1 {
		t.Fatalf("Haversine = %.2f, want ~1110 (±1%%)", d)
	}
}

func TestHaversineSamePoint(t *testing.T) {
	p := Point{Lat: 51.5, Lng: -0.12}
	if d := Haversine(p, p); d != 0 {
		t.Fatalf("Haversine(p, p) = %v, want 0", d)
	}
}

func TestAggregateFewPoints(t *testing.T) {
	if s := Aggregate(nil); s.DistanceMeters != 0 || s.AverageSpeedMps != 0 {
		t.Fatalf("Aggregate(nil) = %+v, want zero", s)
	}
	one := []Sample{{Point: Point{Lat: 1, Lng: 1}, At: time.Now()}}
	if s := Aggregate(one); s.DistanceMeters != 0 || s.AverageSpeedMps != 0 || s.Points != 1 {
		t.Fatalf("Aggregate(one) = %+v", s)
	}
}

func TestAggregateSumsConsecutiveLegs(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)
	samples := []Sample{
		{Point: Point{Lat: 40.00, Lng: -74.0}, At: t0},
		{Point: Point{Lat: 40.01, Lng: -74.0}, At: t0.Add(10 * time.Minute)},
		{Point: Point{Lat: 40.02, Lng: -74.0}, At: t0.Add(20 * time.Minute)},
	}
	s := Aggregate(samples)

	want := Haversine(samples[0].Point, samples[1].Point) + Haversine(samples[1].Point, samples[2].Point)
	if math.Abs(s.DistanceMeters-want) > 1e-9 {
		t.Fatalf("DistanceMeters = %v, want %v", s.DistanceMeters, want)
	}
	if s.ElapsedSeconds != 1200 {
		t.Fatalf("ElapsedSeconds = %v, want 1200", s.ElapsedSeconds)
	}
	if math.Abs(s.AverageSpeedMps-want/1200) > 1e-9 {
		t.Fatalf("AverageSpeedMps = %v, want %v", s.AverageSpeedMps, want/1200)
	}
}

func TestAggregateZeroElapsed(t *testing.T) {
	now := time.Now()
	s := Aggregate([]Sample{
		{Point: Point{Lat: 0, Lng: 0}, At: now},
		{Point: Point{Lat: 0.01, Lng: 0}, At: now},
	})
	if s.DistanceMeters == 0 {
		t.Fatal("expected non-zero distance")
	}
	if s.AverageSpeedMps != 0 {
		t.Fatalf("AverageSpeedMps = %v, want 0", s.AverageSpeedMps)
	}
}

func TestWalkingMinutes(t *testing.T) {
	cases := map[float64]int{
		0:       0,
		1:       1,
		60:      1,
		1000:    13,
	}
	for d, want := range cases {
		if got := WalkingMinutes(d); got != want {
			t.Errorf("WalkingMinutes(%v) = %d, want %d", d, got, want)
		}
	}
}

func TestFormatDistance(t *testing.T) {
	if got := FormatDistance(950); got != "950 m" {
		t.Fatalf("FormatDistance(950) = %q", got)
	}
	if got := FormatDistance(1260); got != "1.3 km" {
		t.Fatalf("FormatDistance(1260) = %q", got)
	}
}
