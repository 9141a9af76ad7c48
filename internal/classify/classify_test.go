package classify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/padalahq/padala/internal/llm"
)

func newTestClient(t *testing.T, mock *llm.Mock) *Client {
	t.Helper()
	client, err := NewClient(mock, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestClassifyEmptyMessage(t *testing.T) {
	mock := &llm.Mock{}
	client := newTestClient(t, mock)

	_, err := client.Classify(context.Background(), "   ")
	if !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if mock.CallCount() != 0 {
		t.Error("empty message must not reach the model")
	}
}

func TestClassifyParsesWellFormedOutput(t *testing.T) {
	mock := &llm.Mock{Responses: []string{
		`{"categories":["Promotional"],"risk_level":"low","allow_send":true,"reason":"Standard offer"}`,
	}}
	client := newTestClient(t, mock)

	result, err := client.Classify(context.Background(), "50% off this weekend only!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Categories) != 1 || result.Categories[0] != "Promotional" {
		t.Errorf("categories = %v", result.Categories)
	}
	if result.RiskLevel != "low" || !result.AllowSend {
		t.Errorf("unexpected verdict: %+v", result)
	}
}

func TestClassifyStripsCodeFence(t *testing.T) {
	mock := &llm.Mock{Responses: []string{
		"```json\n{\"categories\":[\"Informational\"],\"risk_level\":\"low\",\"allow_send\":true,\"reason\":\"Update\"}\n```",
	}}
	client := newTestClient(t, mock)

	result, err := client.Classify(context.Background(), "Office closed Monday for the holiday.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.AllowSend || result.Categories[0] != "Informational" {
		t.Errorf("fenced JSON not parsed: %+v", result)
	}
}

func TestClassifyUnparseableOutputFailsClosed(t *testing.T) {
	mock := &llm.Mock{Responses: []string{"This message looks promotional to me."}}
	client := newTestClient(t, mock)

	result, err := client.Classify(context.Background(), "Buy now!")
	if err != nil {
		t.Fatalf("parse failure must degrade, not error: %v", err)
	}
	if result.AllowSend {
		t.Error("conservative default must block sending")
	}
	if result.RiskLevel != "medium" {
		t.Errorf("risk_level = %q, want medium", result.RiskLevel)
	}
	if len(result.Categories) != 1 || result.Categories[0] != "Informational" {
		t.Errorf("categories = %v", result.Categories)
	}
}

func TestClassifySchemaViolationFailsClosed(t *testing.T) {
	cases := []string{
		`{"categories":["Promotional"],"risk_level":"severe","allow_send":true,"reason":"x"}`,
		`{"categories":[],"risk_level":"low","allow_send":true,"reason":"x"}`,
		`{"categories":["Promotional"],"risk_level":"low","allow_send":"yes","reason":"x"}`,
		`{"categories":["Promotional"],"risk_level":"low","allow_send":true}`,
	}
	for _, raw := range cases {
		client := newTestClient(t, &llm.Mock{Responses: []string{raw}})
		result, err := client.Classify(context.Background(), "Buy now!")
		if err != nil {
			t.Fatalf("schema violation must degrade, not error: %v", err)
		}
		if result.AllowSend {
			t.Errorf("schema-invalid output %q must not allow sending", raw)
		}
	}
}

func TestClassifyModelErrorSurfaces(t *testing.T) {
	client := newTestClient(t, &llm.Mock{Err: errors.New("rate limited")})
	if _, err := client.Classify(context.Background(), "Buy now!"); err == nil {
		t.Fatal("expected error when the model call fails")
	}
}

func TestNormalize(t *testing.T) {
	v := Result{Categories: []string{"Fraud", "Promotional"}, AllowSend: false}.Normalize()
	if v.Category != "Fraud" || v.AllowSend {
		t.Errorf("unexpected verdict: %+v", v)
	}

	v = Result{}.Normalize()
	if v.Category != "Unknown" {
		t.Errorf("empty categories should normalize to Unknown, got %q", v.Category)
	}
}
