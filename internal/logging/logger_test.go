package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNewWritesToFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "nested", "shadowplay.log")

	logger, err := New(Options{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("session attached", String(FieldSeries, "Frieren"))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "session attached") {
		t.Fatalf("log file missing message: %s", data)
	}
	if !strings.Contains(string(data), `"series":"Frieren"`) {
		t.Fatalf("log file missing attribute: %s", data)
	}
}

func TestPrettyHandlerPromotesComponent(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	handler := newPrettyHandler(&buf, lvl, false)
	logger := NewComponentLogger(slog.New(handler), "mirror")

	logger.Info("cycle complete", Int(FieldCycle, 7))

	line := buf.String()
	if !strings.Contains(line, "mirror: cycle complete") {
		t.Fatalf("component not promoted into message: %q", line)
	}
	if !strings.Contains(line, "cycle=7") {
		t.Fatalf("attribute missing: %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should not appear as trailing attr: %q", line)
	}
}

func TestPrettyHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, lvl, false))

	logger.Info("resolved", String(FieldSeries, "Attack on Titan"))

	if !strings.Contains(buf.String(), `series="Attack on Titan"`) {
		t.Fatalf("value not quoted: %q", buf.String())
	}
}

func TestPrettyHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	logger := slog.New(newPrettyHandler(&buf, lvl, false))

	logger.Info("ignored")
	logger.Warn("kept")

	if strings.Contains(buf.String(), "ignored") {
		t.Fatalf("info record should have been dropped: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "kept") {
		t.Fatalf("warn record missing: %q", buf.String())
	}
}

func TestErrorAttr(t *testing.T) {
	attr := Error(errors.New("socket closed"))
	if attr.Key != FieldError || attr.Value.String() != "socket closed" {
		t.Fatalf("unexpected attr: %v", attr)
	}
	if !Error(nil).Equal(slog.Attr{}) {
		t.Fatal("nil error should produce empty attr")
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger should never be enabled")
	}
	logger.Error("dropped", Duration(FieldDuration, time.Second))
}
