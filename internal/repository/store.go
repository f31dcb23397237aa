// Package repository 行程数据的存储接口与 gorm 实现
package repository

import (
	"context"
	"errors"
	"time"

	"SafeWalk/internal/model"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("repository: record not found")

// NewJourney 创建行程时一次性写入的全部数据
type NewJourney struct {
	Journey       *model.Journey
	Contacts      []model.JourneyContact
	Steps         []model.JourneyStep
	Notifications []model.NotificationLog
}

// Transition 条件状态变更，只有当前状态在 From 中才会生效
// 生效时在同一事务内写入 CheckIn 和 Notifications
type Transition struct {
	JourneyID     string
	From          []model.JourneyStatus
	To            model.JourneyStatus
	EndTime       *time.Time
	CheckIn       *model.JourneyCheckIn
	Notifications []model.NotificationLog
}

// JourneyQuery 列表查询条件，Before/BeforeID 为上一页最后一条的 (start_time, id)
type JourneyQuery struct {
	UserID   int64
	Status   model.JourneyStatus
	Before   *time.Time
	BeforeID string
	Limit    int
}

type JourneyStore interface {
	CreateJourney(ctx context.Context, nj NewJourney) error
	GetJourney(ctx context.Context, id string) (*model.Journey, error)
	ListJourneys(ctx context.Context, q JourneyQuery) ([]model.Journey, error)
	ListJourneysByStatus(ctx context.Context, statuses []model.JourneyStatus) ([]model.Journey, error)
	// ListOverdue 返回 active 且预计到达时间早于 before 的行程
	ListOverdue(ctx context.Context, before time.Time) ([]model.Journey, error)
	// UpdatePosition 覆盖写当前位置，后写者胜
	UpdatePosition(ctx context.Context, id string, lat, lng float64, at time.Time) (*model.Journey, error)
	// TransitionStatus 返回变更后的行程以及本次是否真的发生了变更
	TransitionStatus(ctx context.Context, t Transition) (*model.Journey, bool, error)
	ListSteps(ctx context.Context, journeyID string) ([]model.JourneyStep, error)
}

type LocationStore interface {
	AppendLocation(ctx context.Context, loc *model.JourneyLocation) error
	ListLocations(ctx context.Context, journeyID string) ([]model.JourneyLocation, error)
}

type CheckInStore interface {
	AddCheckIn(ctx context.Context, c *model.JourneyCheckIn) error
	ListCheckIns(ctx context.Context, journeyID string) ([]model.JourneyCheckIn, error)
	// LatestCheckIn 没有记录时返回 nil, nil
	LatestCheckIn(ctx context.Context, journeyID string) (*model.JourneyCheckIn, error)
	// AddMissedCheckIn 仅当 since 之后没有任何确认记录时写入 no_response
	AddMissedCheckIn(ctx context.Context, journeyID string, since, at time.Time) (bool, error)
}

type ContactStore interface {
	ListContacts(ctx context.Context, userID int64) ([]model.Contact, error)
	// GetContacts 只返回属于 userID 的联系人
	GetContacts(ctx context.Context, userID int64, ids []int64) ([]model.Contact, error)
	ListJourneyContacts(ctx context.Context, journeyID string) ([]model.Contact, error)
}

type NotificationStore interface {
	AddNotifications(ctx context.Context, logs []model.NotificationLog) error
	ListNotifications(ctx context.Context, journeyID string) ([]model.NotificationLog, error)
}

// Store 服务层依赖的全部存储能力
type Store interface {
	JourneyStore
	LocationStore
	CheckInStore
	ContactStore
	NotificationStore
}
