// Package sms delivers messages through the Semaphore gateway
// (https://semaphore.co/docs) and validates Philippine recipient numbers.
package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const semaphoreAPIBase = "https://api.semaphore.co/api/v4"

const senderName = "SEMAPHORE"

// MaxMessageLength is the single-segment ceiling enforced before any
// recipient handling.
const MaxMessageLength = 160

var (
	// ErrMessageTooLong means the message exceeded MaxMessageLength; the
	// transport is never invoked.
	ErrMessageTooLong = errors.New("message exceeds 160 character limit")

	// ErrInvalidRecipient means the recipient did not normalize to a valid
	// Philippine mobile number.
	ErrInvalidRecipient = errors.New("invalid Philippine mobile number, use format +639XXXXXXXXX or 09XXXXXXXXX")

	// ErrUnconfigured means the gateway credential is missing in production
	// mode.
	ErrUnconfigured = errors.New("SEMAPHORE_API_KEY not configured")
)

// TransportError is a gateway-side delivery failure. Safe to retry.
type TransportError struct {
	Reason string
}

func (e *TransportError) Error() string {
	return e.Reason
}

// Message mirrors the Semaphore message object returned per recipient.
type Message struct {
	MessageID  int    `json:"message_id"`
	UserID     int    `json:"user_id"`
	User       string `json:"user"`
	AccountID  int    `json:"account_id"`
	Account    string `json:"account"`
	Recipient  string `json:"recipient"`
	Message    string `json:"message"`
	SenderName string `json:"sender_name"`
	Network    string `json:"network"`
	Status     string `json:"status"`
	Type       string `json:"type"`
	Source     string `json:"source"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// Client sends SMS through Semaphore, or simulates delivery in sandbox mode.
type Client struct {
	apiKey     string
	baseURL    string
	sandbox    bool
	httpClient *http.Client
	logger     *slog.Logger

	// SandboxDelay is the simulated gateway latency in sandbox mode.
	SandboxDelay time.Duration
}

// NewClient creates a delivery client. With sandbox enabled no network calls
// are ever made.
func NewClient(apiKey string, sandbox bool, logger *slog.Logger) *Client {
	return &Client{
		apiKey:       apiKey,
		baseURL:      semaphoreAPIBase,
		sandbox:      sandbox,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       logger,
		SandboxDelay: time.Second,
	}
}

// Sandbox reports whether the client simulates delivery.
func (c *Client) Sandbox() bool {
	return c.sandbox
}

// Send delivers one message. Message length is checked before the recipient
// is touched; the recipient is normalized and validated before the transport
// is invoked.
func (c *Client) Send(ctx context.Context, recipient, message string) ([]Message, error) {
	if len(message) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}
	if strings.TrimSpace(recipient) == "" || strings.TrimSpace(message) == "" {
		return nil, ErrInvalidRecipient
	}

	normalized := Normalize(recipient)

	if c.sandbox {
		return c.simulate(ctx, recipient, normalized, message)
	}

	if !ValidNumber(normalized) {
		return nil, ErrInvalidRecipient
	}
	if c.apiKey == "" {
		return nil, ErrUnconfigured
	}
	return c.dispatch(ctx, normalized, message)
}

// simulate emulates gateway behavior without the network: a fixed delay, a
// deterministic failure for recipients flagged with "fail" or "invalid", and
// a synthesized receipt otherwise. The flag check runs on the raw recipient
// since normalization drops letters.
func (c *Client) simulate(ctx context.Context, raw, normalized, message string) ([]Message, error) {
	c.logger.Info("SMS sandbox mode, message not sent",
		"recipient", normalized,
		"length", len(message),
	)

	select {
	case <-time.After(c.SandboxDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	switch {
	case strings.Contains(raw, "fail"):
		return nil, &TransportError{Reason: "Test failure simulation"}
	case strings.Contains(raw, "invalid"):
		return nil, ErrInvalidRecipient
	case !ValidNumber(normalized):
		return nil, ErrInvalidRecipient
	}

	now := time.Now().UTC().Format("2006-01-02 15:04:05")
	network := "International"
	if strings.HasPrefix(normalized, "+639") {
		network = "Globe"
	}
	return []Message{{
		MessageID:  rand.Intn(1000000),
		UserID:     12345,
		User:       "test@example.com",
		AccountID:  67890,
		Account:    "Test Account",
		Recipient:  normalized,
		Message:    message,
		SenderName: senderName,
		Network:    network,
		Status:     "Queued",
		Type:       "Single",
		Source:     "Api",
		CreatedAt:  now,
		UpdatedAt:  now,
	}}, nil
}

// dispatch performs the real gateway call.
func (c *Client) dispatch(ctx context.Context, recipient, message string) ([]Message, error) {
	form := url.Values{
		"apikey":     {c.apiKey},
		"number":     {recipient},
		"message":    {message},
		"sendername": {senderName},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Reason: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Message string `json:"message"`
		}
		reason := "Failed to send SMS"
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			reason = apiErr.Message
		}
		c.logger.Error("Semaphore request failed", "status", resp.StatusCode, "reason", reason)
		return nil, &TransportError{Reason: reason}
	}

	var messages []Message
	if err := json.Unmarshal(body, &messages); err != nil {
		return nil, &TransportError{Reason: fmt.Sprintf("unexpected gateway response: %v", err)}
	}

	c.logger.Info("SMS dispatched", "recipient", recipient, "count", len(messages))
	return messages, nil
}
