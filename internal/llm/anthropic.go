package llm

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic implements Completer using the official anthropic-sdk-go Messages API.
type Anthropic struct {
	model string
	opts  []option.RequestOption
}

func newAnthropic(apiKey, model string) (*Anthropic, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic api key missing; set ANTHROPIC_API_KEY")
	}
	return &Anthropic{
		model: model,
		opts:  []option.RequestOption{option.WithAPIKey(apiKey)},
	}, nil
}

func (a *Anthropic) Complete(ctx context.Context, req Request) (string, error) {
	client := anthropic.NewClient(a.opts...)

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: req.System},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	message, err := client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}
	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", errors.New("anthropic: no text content in response")
}
