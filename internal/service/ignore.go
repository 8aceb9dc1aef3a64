package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"situationcord.app/relay/common/id"
	"situationcord.app/relay/internal/model"
	"situationcord.app/relay/internal/store"
)

var (
	ErrUnknownAuthor = errors.New("author has not been seen in any ingested message")
	ErrNotIgnored    = errors.New("user is not on the ignore list")
	ErrMissingUserID = errors.New("user id is required")
)

type IgnoreUserParams struct {
	UserID    string
	Reason    *string
	IgnoredBy *string
}

// IgnoreService manages the authors whose messages never raise alerts.
// Analyses are still stored for them.
type IgnoreService interface {
	Add(ctx context.Context, params IgnoreUserParams) (*model.IgnoredUser, error)
	Remove(ctx context.Context, userID string) error
	List(ctx context.Context) ([]model.IgnoredUser, error)
}

type ignoreService struct {
	ignored store.IgnoredUserStore
}

func NewIgnoreService(ignored store.IgnoredUserStore) IgnoreService {
	return &ignoreService{ignored: ignored}
}

func (s *ignoreService) Add(ctx context.Context, params IgnoreUserParams) (*model.IgnoredUser, error) {
	userID := strings.TrimSpace(params.UserID)
	if userID == "" {
		return nil, ErrMissingUserID
	}

	user, err := s.ignored.Create(ctx, &model.IgnoredUser{
		ID:        id.New(),
		UserID:    userID,
		Reason:    params.Reason,
		IgnoredBy: params.IgnoredBy,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAuthor, userID)
		}
		return nil, fmt.Errorf("adding ignored user: %w", err)
	}
	return user, nil
}

func (s *ignoreService) Remove(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrMissingUserID
	}

	if err := s.ignored.Delete(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotIgnored, userID)
		}
		return fmt.Errorf("removing ignored user: %w", err)
	}
	return nil
}

func (s *ignoreService) List(ctx context.Context) ([]model.IgnoredUser, error) {
	users, err := s.ignored.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing ignored users: %w", err)
	}
	return users, nil
}
