package worker

import (
	"context"

	"github.com/redis/go-redis/v9"

	"situationcord.app/relay/internal/model"
	"situationcord.app/relay/internal/queue"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// Enricher abstracts the enrichment pipeline for testability.
// Run may return a *pipeline.AlertPendingError together with its result when
// only the alert failed; DeliverAlert then retries that alert alone.
type Enricher interface {
	Run(ctx context.Context, msg model.IncomingMessage, attempt int) (*model.EnrichmentResult, error)
	DeliverAlert(ctx context.Context, msg model.IncomingMessage, analysisID int64) (bool, error)
}

// PendingClaimer is the part of the Redis client the reclaimer uses.
// *redis.Client satisfies it.
type PendingClaimer interface {
	XPendingExt(ctx context.Context, a *redis.XPendingExtArgs) *redis.XPendingExtCmd
	XClaim(ctx context.Context, a *redis.XClaimArgs) *redis.XMessageSliceCmd
}
