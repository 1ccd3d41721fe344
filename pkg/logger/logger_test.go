package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(&Config{Level: "loud", Format: TextFormat}); err == nil {
		t.Error("invalid level should be rejected")
	}
	if _, err := New(&Config{Level: InfoLevel, Format: "xml"}); err == nil {
		t.Error("invalid format should be rejected")
	}
	if _, err := New(nil); err != nil {
		t.Errorf("nil config should fall back to defaults, got error: %v", err)
	}
}

func TestDerivedLoggersKeepFields(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&Config{Level: InfoLevel, Format: JSONFormat, Output: &buf})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	log.WithComponent("matcher").WithField("records", 42).Info("processing")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}

	if entry["component"] != "matcher" {
		t.Errorf("component = %v, want matcher", entry["component"])
	}
	if entry["records"] != float64(42) {
		t.Errorf("records = %v, want 42", entry["records"])
	}
	if entry["msg"] != "processing" {
		t.Errorf("msg = %v, want processing", entry["msg"])
	}
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	log, _ := New(&Config{Level: InfoLevel, Format: JSONFormat, Output: &buf})

	child := log.WithFields(Fields{"scope": "child"})
	_ = child

	log.Info("parent line")

	if strings.Contains(buf.String(), "child") {
		t.Error("parent logger picked up the child's fields")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log, _ := New(&Config{Level: WarnLevel, Format: TextFormat, Output: &buf})

	log.Debug("debug line")
	log.Info("info line")
	log.Warn("warn line")

	out := buf.String()
	if strings.Contains(out, "debug line") || strings.Contains(out, "info line") {
		t.Error("lines below the configured level should be suppressed")
	}
	if !strings.Contains(out, "warn line") {
		t.Error("warn line should pass the filter")
	}
}

func TestDiscardLoggerIsSilentAndSafe(t *testing.T) {
	log := Discard()

	log.WithComponent("test").WithError(nil).WithFields(Fields{"k": "v"}).Info("swallowed")
}
