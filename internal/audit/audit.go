// Package audit records compliance violations from the generation pipeline.
// Entries go to the structured log and, when Redis is configured, to an
// audit stream for downstream consumers.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Violation types recorded by the generation client.
const (
	ViolationInputBlocked      = "INPUT_BLOCKED"
	ViolationGenerationRefused = "GENERATION_REFUSED"
)

// Entry is a single compliance violation record.
type Entry struct {
	Timestamp      time.Time `json:"timestamp"`
	ViolationType  string    `json:"violation_type"`
	Category       string    `json:"category"`
	Reason         string    `json:"reason"`
	OriginalPrompt string    `json:"original_prompt"`
	RefusalMessage string    `json:"refusal_message,omitempty"`
	Persona        string    `json:"persona"`
	UserAgent      string    `json:"user_agent,omitempty"`
	RemoteIP       string    `json:"remote_ip,omitempty"`
	Severity       string    `json:"severity"`
	ViolationID    string    `json:"violation_id"`
}

// Recorder receives violation entries. The generation client depends on this
// interface so tests can capture what was recorded.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

// NewViolationID returns a correlation ID for a blocked prompt.
func NewViolationID() string {
	return fmt.Sprintf("VIO-%d", time.Now().UnixMilli())
}

// NewRefusalID returns a correlation ID for a refused generation.
func NewRefusalID() string {
	return fmt.Sprintf("REF-%d", time.Now().UnixMilli())
}

// Log is the default Recorder. The stream publisher is optional; when absent
// entries only go to the structured log.
type Log struct {
	logger *slog.Logger
	stream *StreamPublisher
}

func NewLog(logger *slog.Logger, stream *StreamPublisher) *Log {
	return &Log{logger: logger, stream: stream}
}

func (l *Log) Record(ctx context.Context, entry Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Severity == "" {
		entry.Severity = "HIGH"
	}

	l.logger.Warn(
		"Compliance violation blocked",
		"violation_id", entry.ViolationID,
		"violation_type", entry.ViolationType,
		"category", entry.Category,
		"reason", entry.Reason,
		"persona", entry.Persona,
		"original_prompt", entry.OriginalPrompt,
		"user_agent", entry.UserAgent,
		"remote_ip", entry.RemoteIP,
		"severity", entry.Severity,
	)

	if l.stream == nil {
		return
	}
	if _, err := l.stream.Publish(ctx, entry); err != nil {
		l.logger.Error("Failed to publish violation to audit stream",
			"violation_id", entry.ViolationID,
			"error", err.Error(),
		)
	}
}
