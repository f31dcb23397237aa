package logger

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"DEBUG":   zapcore.DebugLevel,
		" warn ":  zapcore.WarnLevel,
		"Error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if got := hlogLevel(zapcore.WarnLevel); got != hlog.LevelWarn {
		t.Fatalf("hlogLevel(warn) = %v, want %v", got, hlog.LevelWarn)
	}
	if got := hlogLevel(zapcore.FatalLevel); got != hlog.LevelError {
		t.Fatalf("hlogLevel(fatal) = %v, want %v", got, hlog.LevelError)
	}
}

func TestBuildFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l, level := build(Options{Level: "WARN", Format: "json"}, zapcore.AddSync(&buf))
	if level != zapcore.WarnLevel {
		t.Fatalf("level = %v, want %v", level, zapcore.WarnLevel)
	}

	zl := l.Logger()
	zl.Info("breadcrumb stored")
	zl.Warn("check-in missed")
	_ = zl.Sync()

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("output is not a single json line: %q", buf.String())
	}
	if entry["msg"] != "check-in missed" || entry["level"] != "WARN" {
		t.Fatalf("entry = %v", entry)
	}
}

func TestWriteSyncerOpensFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "safewalk.log")
	ws, closer, err := writeSyncer(path)
	if err != nil {
		t.Fatalf("writeSyncer: %v", err)
	}
	if ws == nil || closer == nil {
		t.Fatal("file output must return a closer")
	}
	_ = closer.Close()

	if _, closer, _ := writeSyncer("stdout"); closer != nil {
		t.Fatal("stdout must not be closed")
	}
}
