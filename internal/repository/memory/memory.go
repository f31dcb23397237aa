// Package memory 进程内的 Store 实现，用于测试和本地调试
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"SafeWalk/internal/model"
	"SafeWalk/internal/repository"
)

var _ repository.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	journeys        map[string]model.Journey
	steps           map[string][]model.JourneyStep
	locations       map[string][]model.JourneyLocation
	checkIns        map[string][]model.JourneyCheckIn
	contacts        map[int64]model.Contact
	journeyContacts map[string][]int64
	notifications   map[string][]model.NotificationLog

	seq int64
	now func() time.Time
}

func New() *Store {
	return &Store{
		journeys:        make(map[string]model.Journey),
		steps:           make(map[string][]model.JourneyStep),
		locations:       make(map[string][]model.JourneyLocation),
		checkIns:        make(map[string][]model.JourneyCheckIn),
		contacts:        make(map[int64]model.Contact),
		journeyContacts: make(map[string][]int64),
		notifications:   make(map[string][]model.NotificationLog),
		now:             time.Now,
	}
}

// WithClock 替换写入时间，测试用
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

// PutContact 写入联系人，联系人的维护不属于本服务，这里只供测试和调试数据使用
func (s *Store) PutContact(c model.Contact) model.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.nextID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	s.contacts[c.ID] = c
	return c
}

func (s *Store) CreateJourney(_ context.Context, nj repository.NewJourney) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	j := *nj.Journey
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = now
	s.journeys[j.ID] = j
	*nj.Journey = j

	for i := range nj.Contacts {
		nj.Contacts[i].ID = s.nextID()
		s.journeyContacts[j.ID] = append(s.journeyContacts[j.ID], nj.Contacts[i].ContactID)
	}
	for i := range nj.Steps {
		nj.Steps[i].ID = s.nextID()
		s.steps[j.ID] = append(s.steps[j.ID], nj.Steps[i])
	}
	s.appendNotifications(nj.Notifications)
	return nil
}

func (s *Store) appendNotifications(logs []model.NotificationLog) {
	for i := range logs {
		logs[i].ID = s.nextID()
		if logs[i].CreatedAt.IsZero() {
			logs[i].CreatedAt = s.now()
		}
		s.notifications[logs[i].JourneyID] = append(s.notifications[logs[i].JourneyID], logs[i])
	}
}

func (s *Store) GetJourney(_ context.Context, id string) (*model.Journey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.journeys[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &j, nil
}

func (s *Store) ListJourneys(_ context.Context, q repository.JourneyQuery) ([]model.Journey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Journey
	for _, j := range s.journeys {
		if j.UserID != q.UserID {
			continue
		}
		if q.Status != "" && j.Status != q.Status {
			continue
		}
		if q.Before != nil && !keyBefore(j, *q.Before, q.BeforeID) {
			continue
		}
		out = append(out, j)
	}
	sort.Slice(out, func(a, b int) bool { return keyBefore(out[b], out[a].StartTime, out[a].ID) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// keyBefore 按 (start_time, id) 倒序时 j 排在给定键之后
func keyBefore(j model.Journey, at time.Time, id string) bool {
	if j.StartTime.Equal(at) {
		return j.ID < id
	}
	return j.StartTime.Before(at)
}

func (s *Store) ListJourneysByStatus(_ context.Context, statuses []model.JourneyStatus) ([]model.Journey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Journey
	for _, j := range s.journeys {
		if hasStatus(statuses, j.Status) {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].StartTime.Before(out[b].StartTime) })
	return out, nil
}

func (s *Store) ListOverdue(_ context.Context, before time.Time) ([]model.Journey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Journey
	for _, j := range s.journeys {
		if j.Status == model.JourneyStatusActive && j.EstimatedArrival.Before(before) {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].EstimatedArrival.Before(out[b].EstimatedArrival) })
	return out, nil
}

func (s *Store) UpdatePosition(_ context.Context, id string, lat, lng float64, at time.Time) (*model.Journey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.journeys[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	j.CurrentLatitude = &lat
	j.CurrentLongitude = &lng
	j.LocationUpdatedAt = &at
	j.UpdatedAt = s.now()
	s.journeys[id] = j
	return &j, nil
}

func (s *Store) TransitionStatus(_ context.Context, t repository.Transition) (*model.Journey, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.journeys[t.JourneyID]
	if !ok {
		return nil, false, repository.ErrNotFound
	}
	if !hasStatus(t.From, j.Status) {
		return &j, false, nil
	}

	j.Status = t.To
	if t.EndTime != nil {
		end := *t.EndTime
		j.EndTime = &end
	}
	j.UpdatedAt = s.now()
	s.journeys[j.ID] = j

	if t.CheckIn != nil {
		s.addCheckIn(t.CheckIn)
	}
	s.appendNotifications(t.Notifications)
	return &j, true, nil
}

func (s *Store) ListSteps(_ context.Context, journeyID string) ([]model.JourneyStep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.JourneyStep(nil), s.steps[journeyID]...), nil
}

func (s *Store) AppendLocation(_ context.Context, loc *model.JourneyLocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.journeys[loc.JourneyID]; !ok {
		return repository.ErrNotFound
	}
	loc.ID = s.nextID()
	s.locations[loc.JourneyID] = append(s.locations[loc.JourneyID], *loc)
	return nil
}

func (s *Store) ListLocations(_ context.Context, journeyID string) ([]model.JourneyLocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]model.JourneyLocation(nil), s.locations[journeyID]...)
	sort.SliceStable(out, func(a, b int) bool { return out[a].RecordedAt.Before(out[b].RecordedAt) })
	return out, nil
}

func (s *Store) AddCheckIn(_ context.Context, c *model.JourneyCheckIn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addCheckIn(c)
	return nil
}

func (s *Store) addCheckIn(c *model.JourneyCheckIn) {
	c.ID = s.nextID()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	s.checkIns[c.JourneyID] = append(s.checkIns[c.JourneyID], *c)
}

func (s *Store) ListCheckIns(_ context.Context, journeyID string) ([]model.JourneyCheckIn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.checkIns[journeyID]
	out := make([]model.JourneyCheckIn, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		out = append(out, src[i])
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

func (s *Store) LatestCheckIn(ctx context.Context, journeyID string) (*model.JourneyCheckIn, error) {
	all, _ := s.ListCheckIns(ctx, journeyID)
	if len(all) == 0 {
		return nil, nil
	}
	return &all[0], nil
}

func (s *Store) AddMissedCheckIn(_ context.Context, journeyID string, since, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.checkIns[journeyID] {
		if !c.CreatedAt.Before(since) {
			return false, nil
		}
	}
	s.addCheckIn(&model.JourneyCheckIn{
		JourneyID: journeyID,
		Response:  model.CheckInResponseNoResponse,
		CreatedAt: at,
	})
	return true, nil
}

func (s *Store) ListContacts(_ context.Context, userID int64) ([]model.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Contact
	for _, c := range s.contacts {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out, nil
}

func (s *Store) GetContacts(_ context.Context, userID int64, ids []int64) ([]model.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Contact
	for _, id := range ids {
		if c, ok := s.contacts[id]; ok && c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) ListJourneyContacts(_ context.Context, journeyID string) ([]model.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Contact
	for _, id := range s.journeyContacts[journeyID] {
		if c, ok := s.contacts[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) AddNotifications(_ context.Context, logs []model.NotificationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendNotifications(logs)
	return nil
}

func (s *Store) ListNotifications(_ context.Context, journeyID string) ([]model.NotificationLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.NotificationLog(nil), s.notifications[journeyID]...), nil
}

func hasStatus(statuses []model.JourneyStatus, st model.JourneyStatus) bool {
	for _, s := range statuses {
		if s == st {
			return true
		}
	}
	return false
}
