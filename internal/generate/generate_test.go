package generate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/padalahq/padala/internal/audit"
	"github.com/padalahq/padala/internal/llm"
)

type captureRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *captureRecorder) Record(_ context.Context, entry audit.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *captureRecorder) last(t *testing.T) audit.Entry {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		t.Fatal("expected an audit entry to be recorded")
	}
	return r.entries[len(r.entries)-1]
}

const safeVerdict = `{"safe": true, "reason": "ok", "category": ""}`

func newTestClient(t *testing.T, generator, checker *llm.Mock) (*Client, *captureRecorder) {
	t.Helper()
	recorder := &captureRecorder{}
	client, err := NewClient(generator, checker, recorder, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, recorder
}

func TestGenerateMissingInput(t *testing.T) {
	generator := &llm.Mock{}
	checker := &llm.Mock{}
	client, _ := newTestClient(t, generator, checker)

	for _, tc := range []struct{ persona, prompt string }{
		{"", "promo for coffee shop"},
		{"students", ""},
		{"  ", "  "},
	} {
		_, err := client.Generate(context.Background(), tc.persona, tc.prompt, Meta{})
		if !errors.Is(err, ErrMissingInput) {
			t.Fatalf("Generate(%q, %q): expected ErrMissingInput, got %v", tc.persona, tc.prompt, err)
		}
	}
	if checker.CallCount() != 0 || generator.CallCount() != 0 {
		t.Error("missing input must not reach the model")
	}
}

func TestGenerateHappyPath(t *testing.T) {
	generator := &llm.Mock{Responses: []string{"Fresh brews daily! Visit Cafe Luna, 20% off for students this week. Show this text at the counter."}}
	checker := &llm.Mock{Responses: []string{safeVerdict}}
	client, recorder := newTestClient(t, generator, checker)

	out, err := client.Generate(context.Background(), "students", "coffee shop discount", Meta{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Length != len(out.Text) {
		t.Errorf("length %d does not match text %d", out.Length, len(out.Text))
	}
	if out.CharactersRemaining != MaxSMSLength-out.Length {
		t.Errorf("charactersRemaining = %d", out.CharactersRemaining)
	}
	if len(recorder.entries) != 0 {
		t.Error("successful generation must not record violations")
	}
}

func TestGenerateBlockedPromptIsAudited(t *testing.T) {
	generator := &llm.Mock{}
	checker := &llm.Mock{Responses: []string{`{"safe": false, "reason": "gambling promotion", "category": "Gambling"}`}}
	client, recorder := newTestClient(t, generator, checker)

	_, err := client.Generate(context.Background(), "general", "casino jackpot promo", Meta{UserAgent: "test-agent", RemoteIP: "10.0.0.1"})
	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected BlockedError, got %v", err)
	}
	if !blocked.Audited {
		t.Error("pre-check block must be audited")
	}
	if blocked.Category != "Gambling" {
		t.Errorf("category = %q", blocked.Category)
	}
	if !strings.HasPrefix(blocked.ViolationID, "VIO-") {
		t.Errorf("violation ID = %q", blocked.ViolationID)
	}
	if generator.CallCount() != 0 {
		t.Error("blocked prompt must not reach the generator")
	}

	entry := recorder.last(t)
	if entry.ViolationType != audit.ViolationInputBlocked {
		t.Errorf("violation_type = %q", entry.ViolationType)
	}
	if entry.OriginalPrompt != "casino jackpot promo" || entry.UserAgent != "test-agent" || entry.RemoteIP != "10.0.0.1" {
		t.Errorf("audit entry missing request detail: %+v", entry)
	}
}

func TestGenerateBlockedWithoutCategoryGetsDefault(t *testing.T) {
	checker := &llm.Mock{Responses: []string{`{"safe": false, "reason": "looks fraudulent", "category": ""}`}}
	client, _ := newTestClient(t, &llm.Mock{}, checker)

	_, err := client.Generate(context.Background(), "general", "send money now", Meta{})
	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected BlockedError, got %v", err)
	}
	if blocked.Category != "Policy violation" {
		t.Errorf("category = %q, want Policy violation", blocked.Category)
	}
}

func TestGenerateUnparseablePreCheckBlocksWithoutAudit(t *testing.T) {
	checker := &llm.Mock{Responses: []string{"I think this prompt is fine."}}
	client, recorder := newTestClient(t, &llm.Mock{}, checker)

	_, err := client.Generate(context.Background(), "general", "coffee promo", Meta{})
	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected BlockedError, got %v", err)
	}
	if blocked.Audited {
		t.Error("unverifiable pre-check output must not be audited")
	}
	if blocked.ViolationID != "" {
		t.Errorf("unexpected violation ID %q", blocked.ViolationID)
	}
	if len(recorder.entries) != 0 {
		t.Error("no audit entry expected for unparseable pre-check output")
	}
}

func TestGenerateRefusalIsAudited(t *testing.T) {
	generator := &llm.Mock{Responses: []string{"I'm unable to create that kind of message for you."}}
	checker := &llm.Mock{Responses: []string{safeVerdict}}
	client, recorder := newTestClient(t, generator, checker)

	_, err := client.Generate(context.Background(), "general", "promo text", Meta{})
	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected BlockedError, got %v", err)
	}
	if blocked.Category != "Refused generation" || !blocked.Audited {
		t.Errorf("unexpected block: %+v", blocked)
	}
	if !strings.HasPrefix(blocked.ViolationID, "REF-") {
		t.Errorf("violation ID = %q", blocked.ViolationID)
	}

	entry := recorder.last(t)
	if entry.ViolationType != audit.ViolationGenerationRefused {
		t.Errorf("violation_type = %q", entry.ViolationType)
	}
	if entry.RefusalMessage == "" {
		t.Error("refusal message should be captured in the audit entry")
	}
}

func TestGenerateLengthError(t *testing.T) {
	long := strings.Repeat("Great deals await you. ", 10)
	generator := &llm.Mock{Responses: []string{long}}
	checker := &llm.Mock{Responses: []string{safeVerdict}}
	client, _ := newTestClient(t, generator, checker)

	_, err := client.Generate(context.Background(), "general", "promo text", Meta{})
	var length *LengthError
	if !errors.As(err, &length) {
		t.Fatalf("expected LengthError, got %v", err)
	}
	if length.Length <= MaxSMSLength {
		t.Errorf("length = %d", length.Length)
	}
	if length.Text == "" {
		t.Error("oversized text should be retained on the error")
	}
}

func TestStripSurroundingQuotes(t *testing.T) {
	cases := []struct{ in, want string }{
		{`"Visit us today!"`, "Visit us today!"},
		{`'Visit us today!'`, "Visit us today!"},
		{`""Visit us today!""`, `"Visit us today!"`},
		{`Say "hello" to savings`, `Say "hello" to savings`},
		{"plain text", "plain text"},
	}
	for _, tc := range cases {
		if got := stripSurroundingQuotes(tc.in); got != tc.want {
			t.Errorf("stripSurroundingQuotes(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsRefusalMatchesKnownPhrases(t *testing.T) {
	if !isRefusal("Sorry, but I can't help with that request.") {
		t.Error("expected refusal phrase to match case-insensitively")
	}
	if isRefusal("Unbeatable prices, this week only!") {
		t.Error("normal copy flagged as refusal")
	}
}
