// Package tools exposes the SMS operations as callable tools for the
// conversational agent mode. Tool parameters are declared as JSON Schema and
// validated before any client is invoked.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kaptinlin/jsonschema"

	"github.com/padalahq/padala/internal/campaign"
	"github.com/padalahq/padala/internal/generate"
)

// Tool names.
const (
	ToolSMSGenerate = "sms_generate"
	ToolSMSClassify = "sms_classify"
	ToolSMSSend     = "sms_send"
)

// ErrUnknownTool is returned for a name not in the registry.
var ErrUnknownTool = errors.New("unknown tool")

// InvalidParamsError reports schema violations in tool parameters.
type InvalidParamsError struct {
	Tool    string
	Reasons []string
}

func (e *InvalidParamsError) Error() string {
	return fmt.Sprintf("invalid parameters for %s: %s", e.Tool, strings.Join(e.Reasons, "; "))
}

// Definition describes one tool for the agent's tool list.
type Definition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

var definitions = []Definition{
	{
		Name:        ToolSMSGenerate,
		Description: "Generate a short SMS message under 160 characters for a specific persona and purpose",
		Parameters: json.RawMessage(`{
			"type": "object",
			"required": ["persona", "prompt"],
			"properties": {
				"persona": {
					"type": "string",
					"description": "The target persona or audience (e.g., 'students', 'professionals', 'parents')"
				},
				"prompt": {
					"type": "string",
					"description": "The message content or campaign goal to generate SMS for"
				}
			}
		}`),
	},
	{
		Name:        ToolSMSClassify,
		Description: "Classify SMS content into compliance categories to ensure regulatory compliance",
		Parameters: json.RawMessage(`{
			"type": "object",
			"required": ["message"],
			"properties": {
				"message": {
					"type": "string",
					"description": "The SMS message text to classify"
				}
			}
		}`),
	},
	{
		Name:        ToolSMSSend,
		Description: "Send an SMS message via the Semaphore gateway to specified recipients",
		Parameters: json.RawMessage(`{
			"type": "object",
			"required": ["message", "recipients"],
			"properties": {
				"message": {
					"type": "string",
					"description": "The SMS message content to send"
				},
				"recipients": {
					"type": "array",
					"minItems": 1,
					"items": {"type": "string"},
					"description": "Phone numbers to send the SMS to (format: +63917xxxxxxx)"
				}
			}
		}`),
	},
}

// Queue enqueues bulk dispatch tasks; nil means recipients are sent inline.
type Queue interface {
	EnqueueSend(batchID, recipient, message string) error
}

// Registry validates tool calls and dispatches them to the SMS clients.
type Registry struct {
	generator  campaign.Generator
	classifier campaign.Classifier
	sender     campaign.Sender
	queue      Queue
	logger     *slog.Logger
	schemas    map[string]*jsonschema.Schema
}

// NewRegistry compiles the parameter schemas and wires the clients. queue may
// be nil; bulk sends then run inline sequentially.
func NewRegistry(generator campaign.Generator, classifier campaign.Classifier, sender campaign.Sender, queue Queue, logger *slog.Logger) (*Registry, error) {
	compiler := jsonschema.NewCompiler()
	schemas := make(map[string]*jsonschema.Schema, len(definitions))
	for _, def := range definitions {
		schema, err := compiler.Compile(def.Parameters)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema for %s: %w", def.Name, err)
		}
		schemas[def.Name] = schema
	}
	return &Registry{
		generator:  generator,
		classifier: classifier,
		sender:     sender,
		queue:      queue,
		logger:     logger,
		schemas:    schemas,
	}, nil
}

// Definitions returns the tool list for the agent.
func (r *Registry) Definitions() []Definition {
	return definitions
}

// SendOutcome is the per-recipient result of a bulk send.
type SendOutcome struct {
	Recipient string `json:"recipient"`
	Success   bool   `json:"success"`
	Queued    bool   `json:"queued,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Invoke validates params against the tool's schema and runs it.
func (r *Registry) Invoke(ctx context.Context, name string, params map[string]interface{}, meta generate.Meta) (interface{}, error) {
	schema, ok := r.schemas[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if result := schema.Validate(params); !result.IsValid() {
		var reasons []string
		for field, evalErr := range result.Errors {
			reasons = append(reasons, fmt.Sprintf("%s: %s", field, evalErr.Error()))
		}
		return nil, &InvalidParamsError{Tool: name, Reasons: reasons}
	}

	switch name {
	case ToolSMSGenerate:
		return r.invokeGenerate(ctx, params, meta)
	case ToolSMSClassify:
		return r.invokeClassify(ctx, params)
	case ToolSMSSend:
		return r.invokeSend(ctx, params)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
}

func (r *Registry) invokeGenerate(ctx context.Context, params map[string]interface{}, meta generate.Meta) (interface{}, error) {
	persona, _ := params["persona"].(string)
	prompt, _ := params["prompt"].(string)

	output, err := r.generator.Generate(ctx, persona, prompt, meta)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"success":             true,
		"message":             output.Text,
		"persona":             persona,
		"length":              output.Length,
		"charactersRemaining": output.CharactersRemaining,
	}, nil
}

func (r *Registry) invokeClassify(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	message, _ := params["message"].(string)

	result, err := r.classifier.Classify(ctx, message)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"success":        true,
		"message":        message,
		"classification": result,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// invokeSend fans a message out to every recipient. With a queue configured
// each recipient becomes a background task; otherwise they are sent inline in
// order, and one failure does not stop the rest.
func (r *Registry) invokeSend(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	message, _ := params["message"].(string)
	rawRecipients, _ := params["recipients"].([]interface{})

	var recipients []string
	for _, raw := range rawRecipients {
		if s, ok := raw.(string); ok && strings.TrimSpace(s) != "" {
			recipients = append(recipients, s)
		}
	}
	if len(recipients) == 0 {
		return nil, &InvalidParamsError{Tool: ToolSMSSend, Reasons: []string{"recipients: at least one non-empty recipient required"}}
	}

	batchID := uuid.New().String()
	outcomes := make([]SendOutcome, 0, len(recipients))
	for _, recipient := range recipients {
		outcome := SendOutcome{Recipient: recipient}
		if r.queue != nil {
			if err := r.queue.EnqueueSend(batchID, recipient, message); err != nil {
				outcome.Error = err.Error()
			} else {
				outcome.Success = true
				outcome.Queued = true
			}
		} else {
			if _, err := r.sender.Send(ctx, recipient, message); err != nil {
				outcome.Error = err.Error()
			} else {
				outcome.Success = true
			}
		}
		outcomes = append(outcomes, outcome)
	}

	allOK := true
	for _, o := range outcomes {
		if !o.Success {
			allOK = false
			break
		}
	}
	return map[string]interface{}{
		"success":  allOK,
		"batch_id": batchID,
		"results":  outcomes,
	}, nil
}
