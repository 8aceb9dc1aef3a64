package pipeline

import (
	"context"
	"log/slog"

	"situationcord.app/relay/internal/store"
)

// IgnoreGate checks authors against the alert suppression list.
type IgnoreGate struct {
	users store.IgnoredUserStore
}

func NewIgnoreGate(users store.IgnoredUserStore) *IgnoreGate {
	return &IgnoreGate{users: users}
}

// IsIgnored fails open: a lookup error counts as not ignored.
func (g *IgnoreGate) IsIgnored(ctx context.Context, authorID string) bool {
	ignored, err := g.users.Exists(ctx, authorID)
	if err != nil {
		slog.WarnContext(ctx, "ignore list lookup failed, treating author as not ignored", "error", err)
		return false
	}
	return ignored
}
