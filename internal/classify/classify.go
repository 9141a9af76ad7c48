// Package classify implements the compliance classifier for SMS messages.
// Classifier output that cannot be parsed or fails schema validation never
// surfaces as an error; it degrades to a conservative verdict that blocks
// sending.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kaptinlin/jsonschema"

	"github.com/padalahq/padala/internal/llm"
)

// ErrEmptyMessage is returned when no message text is supplied. No model call
// is made in that case.
var ErrEmptyMessage = errors.New("message is required")

// Result is the classifier's structured output.
type Result struct {
	Categories []string `json:"categories"`
	RiskLevel  string   `json:"risk_level"`
	AllowSend  bool     `json:"allow_send"`
	Reason     string   `json:"reason"`
}

// Verdict is the normalized form the campaign pipeline consumes.
type Verdict struct {
	Category  string `json:"category"`
	AllowSend bool   `json:"allow_send"`
}

// Normalize reduces a Result to the single-category verdict used for send
// gating.
func (r Result) Normalize() Verdict {
	category := "Unknown"
	if len(r.Categories) > 0 {
		category = r.Categories[0]
	}
	return Verdict{Category: category, AllowSend: r.AllowSend}
}

// resultSchema validates the classifier's JSON before it is trusted. Anything
// that fails here is treated as unparseable.
const resultSchema = `{
	"type": "object",
	"required": ["categories", "risk_level", "allow_send", "reason"],
	"properties": {
		"categories": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "string",
				"enum": ["Political", "Fraud", "Illegal", "Adult", "Gambling", "Informational", "Promotional"]
			}
		},
		"risk_level": {
			"type": "string",
			"enum": ["low", "medium", "high"]
		},
		"allow_send": {"type": "boolean"},
		"reason": {"type": "string"}
	}
}`

const systemPrompt = `You are a compliance classifier for SMS messages. Analyze the provided SMS message and classify it into one or more of these categories:

Categories:
- Political: Messages related to political campaigns, candidates, or political causes
- Fraud: Messages that appear to be scams, phishing attempts, or fraudulent offers
- Illegal: Messages promoting illegal activities or substances
- Adult: Messages with adult/sexual content
- Gambling: Messages promoting betting, gambling, or lottery activities
- Informational: General information, updates, or educational content
- Promotional: Marketing messages, sales promotions, or commercial offers

Instructions:
1. Analyze the message content carefully
2. Return a JSON object with "categories" as an array of applicable categories
3. Include "risk_level" as "low", "medium", or "high"
4. Include "allow_send" as true/false (false for high-risk categories like fraud, illegal)
5. Include "reason" explaining the classification

Example response:
{
  "categories": ["Promotional"],
  "risk_level": "low",
  "allow_send": true,
  "reason": "Standard promotional content for legitimate business offer"
}`

// Client invokes the compliance classifier.
type Client struct {
	completer llm.Completer
	logger    *slog.Logger
	schema    *jsonschema.Schema
}

// NewClient builds a classification client on top of the given completer.
func NewClient(completer llm.Completer, logger *slog.Logger) (*Client, error) {
	if completer == nil {
		return nil, errors.New("completer is required")
	}
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile([]byte(resultSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile classification schema: %w", err)
	}
	return &Client{completer: completer, logger: logger, schema: schema}, nil
}

// Classify runs the compliance classifier over the given message.
func (c *Client) Classify(ctx context.Context, message string) (Result, error) {
	if strings.TrimSpace(message) == "" {
		return Result{}, ErrEmptyMessage
	}

	raw, err := c.completer.Complete(ctx, llm.Request{
		System:      systemPrompt,
		User:        fmt.Sprintf("Classify this SMS message: %q", message),
		MaxTokens:   300,
		Temperature: 0.1,
	})
	if err != nil {
		return Result{}, fmt.Errorf("classification call failed: %w", err)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Result{}, errors.New("failed to classify SMS content")
	}

	result, ok := c.parse(raw)
	if !ok {
		// Fail closed: an unreadable verdict must never allow a send.
		c.logger.Warn("Classifier output unparseable, using conservative default", "raw_size", len(raw))
		return conservativeDefault(), nil
	}
	return result, nil
}

// parse validates the raw model output against the result schema. The bool
// reports whether the output was usable.
func (c *Client) parse(raw string) (Result, bool) {
	cleaned := stripCodeFence(raw)

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return Result{}, false
	}
	if !c.schema.Validate(payload).IsValid() {
		return Result{}, false
	}

	var result Result
	data, err := json.Marshal(payload)
	if err != nil {
		return Result{}, false
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, false
	}
	return result, true
}

func conservativeDefault() Result {
	return Result{
		Categories: []string{"Informational"},
		RiskLevel:  "medium",
		AllowSend:  false,
		Reason:     "Could not properly classify message content",
	}
}

// stripCodeFence removes one surrounding markdown fence, which some models add
// around JSON despite instructions.
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
