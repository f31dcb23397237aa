package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"

	"SafeWalk/internal/model"
)

// GormStore Store 的 postgres 实现
// 读请求由 dbresolver 分发到副本，需要读到刚写入数据的地方显式走主库
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) CreateJourney(ctx context.Context, nj NewJourney) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(nj.Journey).Error; err != nil {
			return fmt.Errorf("insert journey: %w", err)
		}
		if len(nj.Contacts) > 0 {
			if err := tx.Create(&nj.Contacts).Error; err != nil {
				return fmt.Errorf("insert journey contacts: %w", err)
			}
		}
		if len(nj.Steps) > 0 {
			if err := tx.CreateInBatches(&nj.Steps, 100).Error; err != nil {
				return fmt.Errorf("insert journey steps: %w", err)
			}
		}
		if len(nj.Notifications) > 0 {
			if err := tx.Create(&nj.Notifications).Error; err != nil {
				return fmt.Errorf("insert notifications: %w", err)
			}
		}
		return nil
	})
}

func (s *GormStore) GetJourney(ctx context.Context, id string) (*model.Journey, error) {
	return s.getJourney(s.db.WithContext(ctx), id)
}

func (s *GormStore) getJourney(db *gorm.DB, id string) (*model.Journey, error) {
	var j model.Journey
	if err := db.Where("id = ?", id).Take(&j).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &j, nil
}

func (s *GormStore) ListJourneys(ctx context.Context, q JourneyQuery) ([]model.Journey, error) {
	db := s.db.WithContext(ctx).Where("user_id = ?", q.UserID)
	if q.Status != "" {
		db = db.Where("status = ?", q.Status)
	}
	if q.Before != nil {
		db = db.Where("start_time < ? OR (start_time = ? AND id < ?)", *q.Before, *q.Before, q.BeforeID)
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}

	var journeys []model.Journey
	if err := db.Order("start_time DESC, id DESC").Find(&journeys).Error; err != nil {
		return nil, err
	}
	return journeys, nil
}

func (s *GormStore) ListJourneysByStatus(ctx context.Context, statuses []model.JourneyStatus) ([]model.Journey, error) {
	var journeys []model.Journey
	err := s.db.WithContext(ctx).Clauses(dbresolver.Write).
		Where("status IN ?", statuses).
		Order("start_time").
		Find(&journeys).Error
	return journeys, err
}

func (s *GormStore) ListOverdue(ctx context.Context, before time.Time) ([]model.Journey, error) {
	var journeys []model.Journey
	err := s.db.WithContext(ctx).Clauses(dbresolver.Write).
		Where("status = ? AND estimated_arrival < ?", model.JourneyStatusActive, before).
		Order("estimated_arrival").
		Limit(500).
		Find(&journeys).Error
	return journeys, err
}

func (s *GormStore) UpdatePosition(ctx context.Context, id string, lat, lng float64, at time.Time) (*model.Journey, error) {
	db := s.db.WithContext(ctx).Clauses(dbresolver.Write)
	res := db.Model(&model.Journey{}).Where("id = ?", id).Updates(map[string]interface{}{
		"current_latitude":    lat,
		"current_longitude":   lng,
		"location_updated_at": at,
		"updated_at":          time.Now(),
	})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.getJourney(db, id)
}

func (s *GormStore) TransitionStatus(ctx context.Context, t Transition) (*model.Journey, bool, error) {
	var (
		journey *model.Journey
		changed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":     t.To,
			"updated_at": time.Now(),
		}
		if t.EndTime != nil {
			updates["end_time"] = *t.EndTime
		}

		res := tx.Model(&model.Journey{}).
			Where("id = ? AND status IN ?", t.JourneyID, t.From).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("update journey status: %w", res.Error)
		}
		changed = res.RowsAffected > 0

		if changed {
			if t.CheckIn != nil {
				if err := tx.Create(t.CheckIn).Error; err != nil {
					return fmt.Errorf("insert check-in: %w", err)
				}
			}
			if len(t.Notifications) > 0 {
				if err := tx.Create(&t.Notifications).Error; err != nil {
					return fmt.Errorf("insert notifications: %w", err)
				}
			}
		}

		var err error
		journey, err = s.getJourney(tx, t.JourneyID)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return journey, changed, nil
}

func (s *GormStore) ListSteps(ctx context.Context, journeyID string) ([]model.JourneyStep, error) {
	var steps []model.JourneyStep
	err := s.db.WithContext(ctx).Where("journey_id = ?", journeyID).Order("step_number").Find(&steps).Error
	return steps, err
}

func (s *GormStore) AppendLocation(ctx context.Context, loc *model.JourneyLocation) error {
	return s.db.WithContext(ctx).Create(loc).Error
}

func (s *GormStore) ListLocations(ctx context.Context, journeyID string) ([]model.JourneyLocation, error) {
	var locs []model.JourneyLocation
	err := s.db.WithContext(ctx).
		Where("journey_id = ?", journeyID).
		Order("recorded_at, id").
		Find(&locs).Error
	return locs, err
}

func (s *GormStore) AddCheckIn(ctx context.Context, c *model.JourneyCheckIn) error {
	return s.db.WithContext(ctx).Create(c).Error
}

func (s *GormStore) ListCheckIns(ctx context.Context, journeyID string) ([]model.JourneyCheckIn, error) {
	var checkIns []model.JourneyCheckIn
	err := s.db.WithContext(ctx).
		Where("journey_id = ?", journeyID).
		Order("created_at DESC, id DESC").
		Find(&checkIns).Error
	return checkIns, err
}

func (s *GormStore) LatestCheckIn(ctx context.Context, journeyID string) (*model.JourneyCheckIn, error) {
	var c model.JourneyCheckIn
	err := s.db.WithContext(ctx).
		Where("journey_id = ?", journeyID).
		Order("created_at DESC, id DESC").
		Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *GormStore) AddMissedCheckIn(ctx context.Context, journeyID string, since, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Exec(
		`INSERT INTO journey_checkins (journey_id, response, created_at)
		 SELECT ?, ?, ?
		 WHERE NOT EXISTS (
		   SELECT 1 FROM journey_checkins WHERE journey_id = ? AND created_at >= ?
		 )`,
		journeyID, model.CheckInResponseNoResponse, at, journeyID, since,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) ListContacts(ctx context.Context, userID int64) ([]model.Contact, error) {
	var contacts []model.Contact
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("name").Find(&contacts).Error
	return contacts, err
}

func (s *GormStore) GetContacts(ctx context.Context, userID int64, ids []int64) ([]model.Contact, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var contacts []model.Contact
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND id IN ?", userID, ids).
		Find(&contacts).Error
	return contacts, err
}

func (s *GormStore) ListJourneyContacts(ctx context.Context, journeyID string) ([]model.Contact, error) {
	var contacts []model.Contact
	err := s.db.WithContext(ctx).
		Joins("JOIN journey_contacts jc ON jc.contact_id = contacts.id").
		Where("jc.journey_id = ?", journeyID).
		Order("jc.id").
		Find(&contacts).Error
	return contacts, err
}

func (s *GormStore) AddNotifications(ctx context.Context, logs []model.NotificationLog) error {
	if len(logs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&logs).Error
}

func (s *GormStore) ListNotifications(ctx context.Context, journeyID string) ([]model.NotificationLog, error) {
	var logs []model.NotificationLog
	err := s.db.WithContext(ctx).
		Where("journey_id = ?", journeyID).
		Order("created_at, id").
		Find(&logs).Error
	return logs, err
}
