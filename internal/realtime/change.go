// Package realtime 把存储层的行变更推送给订阅者
package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

// Topic 变更主题，与表和事件类型一一对应
type Topic string

const (
	TopicJourneyChanged   Topic = "journey-row-changed"
	TopicLocationInserted Topic = "location-row-inserted"
	TopicCheckInPrompted  Topic = "checkin-prompted"
	TopicTrackingWarning  Topic = "tracking-warning"
)

type ChangeType string

const (
	Insert ChangeType = "INSERT"
	Update ChangeType = "UPDATE"
)

// Change 一次行变更，Record 为新行的 JSON
type Change struct {
	Topic           Topic           `json:"topic"`
	Table           string          `json:"table"`
	Type            ChangeType      `json:"type"`
	JourneyID       string          `json:"journey_id"`
	Record          json.RawMessage `json:"record"`
	CommitTimestamp time.Time       `json:"commit_timestamp"`
}

// NewChange 序列化记录并填充提交时间
func NewChange(topic Topic, table string, typ ChangeType, journeyID string, record interface{}) (Change, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return Change{}, fmt.Errorf("marshal %s record: %w", table, err)
	}
	return Change{
		Topic:           topic,
		Table:           table,
		Type:            typ,
		JourneyID:       journeyID,
		Record:          raw,
		CommitTimestamp: time.Now().UTC(),
	}, nil
}
