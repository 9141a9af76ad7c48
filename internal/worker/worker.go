// Package worker runs the background dispatcher for bulk tool-mode sends.
// Each recipient of a bulk send is one task, so one bad number never blocks
// the rest of a batch.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/padalahq/padala/internal/sms"
)

// Sender delivers a single message; satisfied by the delivery client.
type Sender interface {
	Send(ctx context.Context, recipient, message string) ([]sms.Message, error)
}

// asynqLoggerAdapter wraps slog.Logger to implement asynq.Logger interface
type asynqLoggerAdapter struct {
	logger *slog.Logger
}

func (a *asynqLoggerAdapter) Debug(args ...interface{}) {
	a.logger.Debug(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Info(args ...interface{}) {
	a.logger.Info(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Warn(args ...interface{}) {
	a.logger.Warn(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Error(args ...interface{}) {
	a.logger.Error(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Fatal(args ...interface{}) {
	a.logger.Error(fmt.Sprint(args...))
	panic(fmt.Sprint(args...))
}

// Start starts the dispatch worker in non-blocking mode and returns a stop
// function so the caller can coordinate shutdown.
func Start(redisURL string, sender Sender, logger *slog.Logger) (stop func(), err error) {
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency:     5,
			ShutdownTimeout: 30 * time.Second,
			ErrorHandler:    asynq.ErrorHandlerFunc(makeErrorHandler(logger)),
			Logger:          &asynqLoggerAdapter{logger: logger},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskSMSDispatch, HandleDispatch(logger, sender))

	if err := srv.Start(mux); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}
	logger.Info("Dispatch worker started", "concurrency", 5)
	return func() { srv.Shutdown() }, nil
}

// HandleDispatch processes one recipient of a bulk send. Failures the user
// must fix (bad recipient, oversized message) are not retried; gateway
// failures are.
func HandleDispatch(logger *slog.Logger, sender Sender) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload DispatchPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
		}

		logger.Info(
			"Processing sms:dispatch task",
			"batch_id", payload.BatchID,
			"recipient", payload.Recipient,
		)

		receipts, err := sender.Send(ctx, payload.Recipient, payload.Message)
		if err != nil {
			logger.Error(
				"Dispatch failed",
				"batch_id", payload.BatchID,
				"recipient", payload.Recipient,
				"error", err.Error(),
			)
			if errors.Is(err, sms.ErrInvalidRecipient) || errors.Is(err, sms.ErrMessageTooLong) {
				return fmt.Errorf("unsendable message: %w", asynq.SkipRetry)
			}
			// Gateway and configuration failures are retryable.
			return fmt.Errorf("dispatch failed: %w", err)
		}

		logger.Info(
			"Dispatch completed",
			"batch_id", payload.BatchID,
			"recipient", payload.Recipient,
			"receipts", len(receipts),
		)
		return nil
	}
}

// makeErrorHandler creates an error handler function with logger closure.
func makeErrorHandler(logger *slog.Logger) func(context.Context, *asynq.Task, error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)

		logger.Error(
			"Task execution failed",
			"task_type", task.Type(),
			"error", err.Error(),
			"retry_count", retried,
			"max_retry", maxRetry,
		)

		if retried >= maxRetry {
			logger.Error(
				"Task moved to dead letter queue (all retries exhausted)",
				"task_type", task.Type(),
				"payload", string(task.Payload()),
			)
		}
	}
}
