package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"SafeWalk/internal/geo"
	"SafeWalk/internal/model"
	"SafeWalk/internal/model/dto"
	"SafeWalk/internal/realtime"
	"SafeWalk/internal/repository/memory"
	"SafeWalk/internal/route"
)

const testUserID int64 = 42

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeEstimator struct {
	calls int
	err   error
}

func (e *fakeEstimator) Estimate(_ context.Context, origin, destination route.Endpoint) (*route.Estimate, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	from := route.Place{Point: geo.Point{Lat: 51.5007, Lng: -0.1246}, DisplayName: "Westminster"}
	to := route.Place{Point: geo.Point{Lat: 51.5081, Lng: -0.0759}, DisplayName: "Tower of London"}
	if origin.Point != nil {
		from.Point = *origin.Point
	}
	return &route.Estimate{
		DurationMinutes: 45,
		DistanceMeters:  3600,
		Steps: []route.Step{
			{Number: 1, Instruction: "Head east", DistanceMeters: 1800, DurationSeconds: 1350, ManeuverType: "depart"},
			{Number: 2, Instruction: "Arrive at your destination", DistanceMeters: 1800, DurationSeconds: 1350, ManeuverType: "arrive"},
		},
		Origin:      from,
		Destination: to,
	}, nil
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []model.NotificationEventMessage
}

func (p *fakePublisher) PublishNotificationEvent(_ context.Context, msg model.NotificationEventMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

type fakeMonitor struct {
	mu      sync.Mutex
	started []string
	stopped []string
}

func (m *fakeMonitor) Start(j *model.Journey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, j.ID)
}

func (m *fakeMonitor) Stop(journeyID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = append(m.stopped, journeyID)
}

type fakeResolver struct {
	mu       sync.Mutex
	resolved []string
}

func (r *fakeResolver) Resolve(journeyID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolved = append(r.resolved, journeyID)
}

type fakeEmitter struct {
	mu      sync.Mutex
	changes []realtime.Change
}

func (e *fakeEmitter) Emit(_ context.Context, c realtime.Change) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.changes = append(e.changes, c)
	return nil
}

func (e *fakeEmitter) count(topic realtime.Topic) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.changes {
		if c.Topic == topic {
			n++
		}
	}
	return n
}

type fixture struct {
	store    *memory.Store
	clock    *fakeClock
	est      *fakeEstimator
	pub      *fakePublisher
	mon      *fakeMonitor
	resolver *fakeResolver
	emit     *fakeEmitter
	svc      *Services
	contacts []model.Contact
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	clock := &fakeClock{t: time.Date(2026, 5, 2, 22, 0, 0, 0, time.UTC)}
	f := &fixture{
		store:    memory.New().WithClock(clock.Now),
		clock:    clock,
		est:      &fakeEstimator{},
		pub:      &fakePublisher{},
		mon:      &fakeMonitor{},
		resolver: &fakeResolver{},
		emit:     &fakeEmitter{},
	}
	cfg.TrackingURL = func(id string) string { return "https://walk.test/track/" + id }

	f.svc = New(Deps{
		Store:     f.store,
		Estimator: f.est,
		Publisher: f.pub,
		Emitter:   f.emit,
		Config:    cfg,
		Now:       clock.Now,
	})
	f.svc.Journey.AttachMonitors(f.mon)
	f.svc.CheckIn.AttachResolver(f.resolver)

	f.contacts = []model.Contact{
		f.store.PutContact(model.Contact{UserID: testUserID, Name: "Alice", Phone: "13812345678", NotifyByDefault: true}),
		f.store.PutContact(model.Contact{UserID: testUserID, Name: "Bob", Phone: "13987654321"}),
	}
	return f
}

func (f *fixture) contactIDs() []int64 {
	ids := make([]int64, 0, len(f.contacts))
	for _, c := range f.contacts {
		ids = append(ids, c.ID)
	}
	return ids
}

func (f *fixture) createJourney(t *testing.T) *model.Journey {
	t.Helper()
	detail, err := f.svc.Journey.Create(context.Background(), testUserID, dto.CreateJourneyRequest{
		Start:       dto.EndpointInput{Address: "Westminster, London"},
		Destination: dto.EndpointInput{Address: "Tower of London"},
		ContactIDs:  f.contactIDs(),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return detail.Journey
}

func (f *fixture) notifications(t *testing.T, journeyID string, typ model.NotificationType) int {
	t.Helper()
	logs, err := f.store.ListNotifications(context.Background(), journeyID)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	n := 0
	for _, l := range logs {
		if l.Type == typ {
			n++
		}
	}
	return n
}
