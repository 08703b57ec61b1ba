package obslog

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q): got %v want %v", in, got, want)
		}
	}
}

func TestInitJSONConsole(t *testing.T) {
	t.Cleanup(func() { Set(nil) })
	var buf bytes.Buffer
	logger, err := Init(Options{Level: "debug", Format: "json", Console: true, Stdout: &buf})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if L() != logger {
		t.Fatalf("global logger not installed")
	}
	L().Debug("board_event", zap.String("square", "e4"))
	_ = logger.Sync()

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if entry["msg"] != "board_event" || entry["square"] != "e4" || entry["level"] != "debug" {
		t.Fatalf("entry: %v", entry)
	}
}

func TestInitFileSink(t *testing.T) {
	t.Cleanup(func() { Set(nil) })
	path := filepath.Join(t.TempDir(), "nested", "app.log")
	logger, err := Init(Options{Level: "info", Format: "legacy", File: path})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	logger.Info("hello")
	logger.Debug("filtered")
	_ = logger.Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	text := string(raw)
	if !strings.Contains(text, "hello") || strings.Contains(text, "filtered") {
		t.Fatalf("log contents: %q", text)
	}
	if !strings.Contains(text, " | INFO | ") {
		t.Fatalf("legacy layout missing: %q", text)
	}
}
