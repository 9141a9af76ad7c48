package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestRecordFillsDefaultsAndLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	log := NewLog(logger, nil)

	log.Record(context.Background(), Entry{
		ViolationType:  ViolationInputBlocked,
		Category:       "Gambling",
		Reason:         "betting promo",
		OriginalPrompt: "casino jackpot",
		Persona:        "general",
		ViolationID:    "VIO-1",
	})

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line not JSON: %v\n%s", err, buf.String())
	}
	if line["level"] != "WARN" {
		t.Errorf("level = %v", line["level"])
	}
	if line["violation_id"] != "VIO-1" || line["violation_type"] != ViolationInputBlocked {
		t.Errorf("line = %v", line)
	}
	if line["severity"] != "HIGH" {
		t.Errorf("severity = %v, want HIGH default", line["severity"])
	}
	if line["original_prompt"] != "casino jackpot" {
		t.Errorf("original_prompt = %v", line["original_prompt"])
	}
}

func TestRecordKeepsExplicitSeverity(t *testing.T) {
	var buf bytes.Buffer
	log := NewLog(slog.New(slog.NewJSONHandler(&buf, nil)), nil)

	log.Record(context.Background(), Entry{
		ViolationType: ViolationGenerationRefused,
		Severity:      "MEDIUM",
		ViolationID:   "REF-1",
	})
	if !strings.Contains(buf.String(), `"severity":"MEDIUM"`) {
		t.Errorf("explicit severity lost: %s", buf.String())
	}
}

func TestIDPrefixes(t *testing.T) {
	if id := NewViolationID(); !strings.HasPrefix(id, "VIO-") {
		t.Errorf("violation ID = %q", id)
	}
	if id := NewRefusalID(); !strings.HasPrefix(id, "REF-") {
		t.Errorf("refusal ID = %q", id)
	}
}
