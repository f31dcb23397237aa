package utils

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

var errMalformedCursor = errors.New("malformed cursor")

// Cursor 分页键，上一页最后一条的 (start_time, id)
type Cursor struct {
	StartTime time.Time
	ID        string
}

// FormatCursor 编码分页游标
func FormatCursor(t time.Time, id string) string {
	raw := t.UTC().Format(time.RFC3339Nano) + "|" + id
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// ParseCursor 解析分页游标，空串表示第一页
func ParseCursor(cursor string) (*Cursor, error) {
	if cursor == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, err
	}
	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return nil, errMalformedCursor
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, err
	}
	return &Cursor{StartTime: t, ID: id}, nil
}
