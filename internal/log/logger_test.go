package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/planforge/planforge/internal/errors"
)

func newBufferLogger(level Level, format Format) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := New(Config{
		Level:  level,
		Format: format,
		Output: NewOutput(&buf),
	})
	return logger, &buf
}

func TestLogger_JSONOutput(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo, FormatJSON)

	logger.Info("queued work package", "wp_id", "WP-0001", "tasks", 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["msg"] != "queued work package" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["wp_id"] != "WP-0001" {
		t.Errorf("wp_id = %v", entry["wp_id"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(LevelWarn, FormatText)

	logger.Debug("should not appear")
	logger.Info("should not appear either")
	logger.Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Errorf("debug/info leaked through warn level: %q", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Errorf("warn message missing: %q", out)
	}
}

func TestLogger_WithError(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo, FormatJSON)

	err := errors.NewLockContentionError("auth")
	logger.WithError(err).Error("queue-work aborted")

	var entry map[string]any
	if jsonErr := json.Unmarshal(buf.Bytes(), &entry); jsonErr != nil {
		t.Fatalf("output is not valid JSON: %v", jsonErr)
	}
	if entry["error_code"] != "LOCK-001" {
		t.Errorf("error_code = %v", entry["error_code"])
	}
	if _, ok := entry["suggestions"]; !ok {
		t.Error("suggestions should be logged for pipeline errors")
	}
}

func TestLogger_WithErrorPlain(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo, FormatJSON)

	logger.WithError(errDummy{}).Error("failed")

	if !strings.Contains(buf.String(), "dummy failure") {
		t.Errorf("plain error message missing: %q", buf.String())
	}
}

type errDummy struct{}

func (errDummy) Error() string { return "dummy failure" }

func TestLogger_With(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo, FormatJSON)

	logger.With("idea", "auth-service").Info("stage complete")

	if !strings.Contains(buf.String(), "auth-service") {
		t.Errorf("bound attribute missing: %q", buf.String())
	}
}

func TestParseLevelAndFormat(t *testing.T) {
	if ParseLevel("debug") != LevelDebug || ParseLevel("ERROR") != LevelError {
		t.Error("ParseLevel case handling broken")
	}
	if ParseLevel("bogus") != LevelInfo {
		t.Error("ParseLevel should default to info")
	}
	if ParseFormat("text") != FormatText || ParseFormat("bogus") != FormatJSON {
		t.Error("ParseFormat defaults broken")
	}
}
