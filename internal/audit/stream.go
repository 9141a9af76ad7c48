package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StreamViolations is the Redis Stream that receives violation entries.
const StreamViolations = "audit:violations"

const schemaVersionV1 = "v1"

// StreamPublisher publishes violation entries to a Redis Stream.
type StreamPublisher struct {
	rdb *redis.Client
}

// NewStreamPublisher creates a publisher from a Redis URL.
func NewStreamPublisher(redisURL string) (*StreamPublisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return &StreamPublisher{rdb: redis.NewClient(opts)}, nil
}

// Publish appends one entry to the violation stream and returns the stream
// message ID.
func (p *StreamPublisher) Publish(ctx context.Context, entry Entry) (string, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("failed to marshal entry: %w", err)
	}

	result := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamViolations,
		MaxLen: 10000,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload":        string(payload),
			"recorded_at":    time.Now().Unix(),
			"schema_version": schemaVersionV1,
		},
	})
	if result.Err() != nil {
		return "", fmt.Errorf("failed to publish to stream: %w", result.Err())
	}
	return result.Val(), nil
}

// Close closes the Redis client connection.
func (p *StreamPublisher) Close() error {
	return p.rdb.Close()
}
