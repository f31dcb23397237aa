package redis

import (
	"testing"

	"SafeWalk/config"
)

func TestKey(t *testing.T) {
	old := config.Cfg.RedisPrefix
	defer func() { config.Cfg.RedisPrefix = old }()

	config.Cfg.RedisPrefix = ""
	if got := Key("lock", "", "checkin", "j1"); got != "safewalk:lock:checkin:j1" {
		t.Fatalf("Key = %q", got)
	}

	config.Cfg.RedisPrefix = "staging"
	if got := Key("changes", "journey-row-changed"); got != "staging:changes:journey-row-changed" {
		t.Fatalf("Key = %q", got)
	}
}
