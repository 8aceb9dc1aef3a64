package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"situationcord.app/relay/internal/model"
)

// EnrichmentTask asks a worker to run the enrichment pipeline for one message.
type EnrichmentTask struct {
	Message model.IncomingMessage
	TraceID *string
	Attempt int
}

type Producer interface {
	Enqueue(ctx context.Context, task EnrichmentTask) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisProducer) Enqueue(ctx context.Context, task EnrichmentTask) error {
	attempt := task.Attempt
	if attempt <= 0 {
		attempt = 1
	}

	payload, err := json.Marshal(task.Message)
	if err != nil {
		return fmt.Errorf("encoding message payload: %w", err)
	}

	fields := map[string]any{
		"task_type":  string(TaskTypeMessageEnrichment),
		"message_id": task.Message.ID,
		"payload":    string(payload),
		"attempt":    attempt,
	}

	if task.TraceID != nil && *task.TraceID != "" {
		fields["trace_id"] = *task.TraceID
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: fields,
	}).Err(); err != nil {
		return fmt.Errorf("enqueue enrichment task: %w", err)
	}

	p.logger.InfoContext(ctx, "enqueued enrichment task", "message_id", task.Message.ID, "attempt", attempt)
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
