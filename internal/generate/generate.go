// Package generate implements the SMS copy generation client: a safety
// pre-check on the user's prompt, the generation call itself, refusal
// detection on the output, and the 160-character ceiling.
package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/padalahq/padala/internal/audit"
	"github.com/padalahq/padala/internal/llm"
)

// MaxSMSLength is the single-segment SMS ceiling enforced on generated copy.
const MaxSMSLength = 160

// ErrMissingInput is returned when persona or prompt is empty.
var ErrMissingInput = errors.New("persona and prompt are required")

// BlockedError reports a content policy violation. Audited is false only for
// the unverifiable pre-check output case, which carries no violation ID.
type BlockedError struct {
	Category    string
	Reason      string
	ViolationID string
	Audited     bool
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("content policy violation: %s", e.Category)
}

// LengthError reports generated copy that exceeded MaxSMSLength. The text is
// retained so callers can show it, but it must not be treated as sendable.
type LengthError struct {
	Text   string
	Length int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("generated message exceeds %d characters (%d)", MaxSMSLength, e.Length)
}

// Output is a successful generation.
type Output struct {
	Text                string
	Length              int
	CharactersRemaining int
}

// Meta carries request metadata into the audit trail.
type Meta struct {
	UserAgent string
	RemoteIP  string
}

const preCheckPrompt = `You are a content moderator. Analyze the user's prompt and determine if it contains inappropriate content.

Check for:
- Adult/escort services
- Gambling or betting
- Illegal substances or activities
- Political campaigns
- Fraudulent schemes
- Sexual content
- Weapons or violence

Respond with ONLY a JSON object:
{
  "safe": true/false,
  "reason": "brief explanation",
  "category": "category if unsafe"
}`

func generationPrompt(persona string) string {
	return fmt.Sprintf(`You are an expert SMS copywriter for legitimate businesses only. Generate a compelling SMS message that:
- Is under 160 characters (very important!)
- Is tailored for the %q audience
- Is clear, actionable, and engaging
- Promotes only legal, ethical business services
- Avoids spammy language
- Includes a clear call-to-action when appropriate
- Is compliant with marketing regulations

STRICTLY REFUSE to generate content related to:
- Adult/escort services
- Gambling or betting
- Illegal substances or activities
- Political campaigns
- Fraudulent schemes

If the user's request involves any prohibited content, generate a generic promotional message instead.

Respond with ONLY the SMS text, no additional formatting or explanation.`, persona)
}

// refusalIndicators is the fixed phrase set scanned for in model output. A
// match means the model refused despite the pre-check passing.
var refusalIndicators = []string{
	"apologies, but i can't",
	"i can't assist with",
	"i cannot help with",
	"i'm not able to",
	"i cannot provide",
	"i'm unable to",
	"sorry, but i can't",
}

// surroundingQuotes matches exactly one layer of quote characters around the
// whole message.
var surroundingQuotes = regexp.MustCompile(`^["'](.*)["']$`)

// Client generates SMS copy. The checker completer runs the safety pre-check;
// the generator completer produces the copy.
type Client struct {
	generator llm.Completer
	checker   llm.Completer
	recorder  audit.Recorder
	logger    *slog.Logger
}

func NewClient(generator, checker llm.Completer, recorder audit.Recorder, logger *slog.Logger) (*Client, error) {
	if generator == nil || checker == nil {
		return nil, errors.New("generator and checker completers are required")
	}
	if recorder == nil {
		return nil, errors.New("audit recorder is required")
	}
	return &Client{generator: generator, checker: checker, recorder: recorder, logger: logger}, nil
}

type preCheckResult struct {
	Safe     bool   `json:"safe"`
	Reason   string `json:"reason"`
	Category string `json:"category"`
}

// Generate runs the full pipeline: pre-check, generation, refusal scan,
// length enforcement.
func (c *Client) Generate(ctx context.Context, persona, prompt string, meta Meta) (Output, error) {
	if strings.TrimSpace(persona) == "" || strings.TrimSpace(prompt) == "" {
		return Output{}, ErrMissingInput
	}

	if err := c.preCheck(ctx, persona, prompt, meta); err != nil {
		return Output{}, err
	}

	raw, err := c.generator.Complete(ctx, llm.Request{
		System:      generationPrompt(persona),
		User:        prompt,
		MaxTokens:   100,
		Temperature: 0.7,
	})
	if err != nil {
		return Output{}, fmt.Errorf("generation call failed: %w", err)
	}

	message := stripSurroundingQuotes(strings.TrimSpace(raw))
	if message == "" {
		return Output{}, errors.New("failed to generate SMS content")
	}

	if isRefusal(message) {
		violationID := audit.NewRefusalID()
		c.recorder.Record(ctx, audit.Entry{
			ViolationType:  audit.ViolationGenerationRefused,
			Category:       "Refused generation",
			Reason:         "Model refused to generate content",
			OriginalPrompt: prompt,
			RefusalMessage: message,
			Persona:        persona,
			UserAgent:      meta.UserAgent,
			RemoteIP:       meta.RemoteIP,
			ViolationID:    violationID,
		})
		return Output{}, &BlockedError{
			Category:    "Refused generation",
			Reason:      "The system cannot generate content for this type of request",
			ViolationID: violationID,
			Audited:     true,
		}
	}

	if len(message) > MaxSMSLength {
		return Output{}, &LengthError{Text: message, Length: len(message)}
	}

	return Output{
		Text:                message,
		Length:              len(message),
		CharactersRemaining: MaxSMSLength - len(message),
	}, nil
}

// preCheck moderates the user's prompt before any copy is generated. Output
// that cannot be parsed is treated as unsafe.
func (c *Client) preCheck(ctx context.Context, persona, prompt string, meta Meta) error {
	raw, err := c.checker.Complete(ctx, llm.Request{
		System:      preCheckPrompt,
		User:        fmt.Sprintf("Check this prompt: %q", prompt),
		MaxTokens:   100,
		Temperature: 0.1,
	})
	if err != nil {
		return fmt.Errorf("safety pre-check failed: %w", err)
	}

	var result preCheckResult
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &result); err != nil {
		c.logger.Warn("Pre-check output unparseable, blocking", "error", err.Error())
		return &BlockedError{
			Category: "unparseable",
			Reason:   "Content could not be verified as safe",
		}
	}

	if result.Safe {
		return nil
	}

	category := result.Category
	if category == "" {
		category = "Policy violation"
	}
	violationID := audit.NewViolationID()
	c.recorder.Record(ctx, audit.Entry{
		ViolationType:  audit.ViolationInputBlocked,
		Category:       category,
		Reason:         result.Reason,
		OriginalPrompt: prompt,
		Persona:        persona,
		UserAgent:      meta.UserAgent,
		RemoteIP:       meta.RemoteIP,
		ViolationID:    violationID,
	})
	return &BlockedError{
		Category:    category,
		Reason:      result.Reason,
		ViolationID: violationID,
		Audited:     true,
	}
}

func isRefusal(message string) bool {
	lowered := strings.ToLower(message)
	for _, indicator := range refusalIndicators {
		if strings.Contains(lowered, indicator) {
			return true
		}
	}
	return false
}

// stripSurroundingQuotes removes one layer of quote characters, so a doubly
// quoted message keeps its inner quotes.
func stripSurroundingQuotes(s string) string {
	if m := surroundingQuotes.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
