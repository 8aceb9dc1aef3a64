package store

import (
	"context"
	"errors"

	"situationcord.app/relay/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// MessageStore defines the contract for Discord message and author data access
type MessageStore interface {
	// GetKeyByExternalID resolves the internal key of a message from its Discord id.
	GetKeyByExternalID(ctx context.Context, messageID string) (int64, error)
	// ListRecentByThread returns up to limit messages of a thread, newest first.
	ListRecentByThread(ctx context.Context, threadID string, limit int32) ([]model.ThreadContextEntry, error)
	UpsertAuthor(ctx context.Context, author *model.DiscordAuthor) error
	// InsertMessage stores msg and reports whether a new row was written.
	// A redelivered message id leaves the existing row untouched.
	InsertMessage(ctx context.Context, msg *model.StoredMessage) (bool, error)
}

// AnalysisStore defines the contract for message analysis data access.
// Rows are append-only.
type AnalysisStore interface {
	Create(ctx context.Context, analysis *model.MessageAnalysis) (*model.MessageAnalysis, error)
	ListByMessage(ctx context.Context, messageKey int64) ([]model.MessageAnalysis, error)
}

// IgnoredUserStore defines the contract for alert suppression data access
type IgnoredUserStore interface {
	Exists(ctx context.Context, userID string) (bool, error)
	Create(ctx context.Context, user *model.IgnoredUser) (*model.IgnoredUser, error)
	Delete(ctx context.Context, userID string) error
	List(ctx context.Context) ([]model.IgnoredUser, error)
}

// PipelineRunStore defines the contract for enrichment run bookkeeping
type PipelineRunStore interface {
	Create(ctx context.Context, run *model.PipelineRun) (*model.PipelineRun, error)
	Finish(ctx context.Context, id int64, status model.RunStatus, errMsg *string) error
	ListByMessage(ctx context.Context, messageID string, limit int32) ([]model.PipelineRun, error)
}

// LLMEvalStore defines the contract for LLM evaluation data access
type LLMEvalStore interface {
	Create(ctx context.Context, eval *model.LLMEval) (*model.LLMEval, error)
	ListByStage(ctx context.Context, stage string, limit int32) ([]model.LLMEval, error)
}
