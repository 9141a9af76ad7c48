package worker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TaskSMSDispatch = "sms:dispatch"
)

// DispatchPayload is the per-recipient payload for a bulk send.
type DispatchPayload struct {
	BatchID   string `json:"batch_id"`
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

// Queue enqueues dispatch tasks for the worker.
type Queue struct {
	client *asynq.Client
}

// NewQueue creates a task queue backed by the given Redis instance.
func NewQueue(redisURL string) (*Queue, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &Queue{client: asynq.NewClient(opt)}, nil
}

// EnqueueSend enqueues one recipient of a bulk send. The task is retried up
// to 3 times and retained for a day after completion.
func (q *Queue) EnqueueSend(batchID, recipient, message string) error {
	payload, err := json.Marshal(DispatchPayload{
		BatchID:   batchID,
		Recipient: recipient,
		Message:   message,
	})
	if err != nil {
		return err
	}

	task := asynq.NewTask(
		TaskSMSDispatch,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(time.Minute),
		asynq.Retention(24*time.Hour),
	)

	_, err = q.client.Enqueue(task)
	return err
}

// Close closes the queue's Redis connection gracefully.
func (q *Queue) Close() error {
	return q.client.Close()
}
