package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("debug", FormatJSON, &buf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	clog := Component(log, "pipeline")
	clog.Info().Str("run_id", "r1").Msg("backtest complete")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", buf.String(), err)
	}
	if entry["component"] != "pipeline" || entry["run_id"] != "r1" || entry["level"] != "info" {
		t.Errorf("unexpected entry %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected timestamp field")
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("warn", FormatJSON, &buf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	log.Info().Msg("hidden")
	log.Warn().Msg("shown")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("INFO", FormatConsole, &buf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	log.Info().Msg("hello")

	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("expected message in console output, got %q", buf.String())
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New("loud", FormatJSON, nil); err == nil {
		t.Error("expected error for bad level")
	}
	if _, err := New("info", "xml", nil); err == nil {
		t.Error("expected error for bad format")
	}
}
