package pipeline

import (
	"context"
	"log/slog"
	"slices"

	"situationcord.app/relay/internal/model"
	"situationcord.app/relay/internal/store"
)

// ContextFetcher loads the recent history of a thread for the analyzer.
type ContextFetcher struct {
	messages store.MessageStore
	limit    int
}

func NewContextFetcher(messages store.MessageStore, limit int) *ContextFetcher {
	if limit <= 0 {
		limit = DefaultMaxThreadContext
	}
	return &ContextFetcher{messages: messages, limit: limit}
}

// Fetch returns up to limit messages of threadID oldest first, leaving out
// currentID. Lookup failures are logged and yield an empty context.
func (f *ContextFetcher) Fetch(ctx context.Context, threadID, currentID string) []model.ThreadContextEntry {
	// One extra row so dropping the current message still leaves a full window.
	rows, err := f.messages.ListRecentByThread(ctx, threadID, int32(f.limit+1))
	if err != nil {
		slog.WarnContext(ctx, "failed to fetch thread context", "error", err)
		return []model.ThreadContextEntry{}
	}

	entries := make([]model.ThreadContextEntry, 0, len(rows))
	for _, r := range rows {
		if r.MessageID == currentID {
			continue
		}
		entries = append(entries, r)
	}
	if len(entries) > f.limit {
		entries = entries[:f.limit]
	}

	// Rows arrive newest first.
	slices.Reverse(entries)

	slog.DebugContext(ctx, "thread context fetched", "count", len(entries))
	return entries
}
