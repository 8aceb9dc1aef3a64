package handler_test

import (
	"context"

	"situationcord.app/relay/internal/model"
	"situationcord.app/relay/internal/service"
)

type mockEventIngestService struct {
	ingestFn func(ctx context.Context, payload model.WebhookPayload, traceID *string) (*service.EventIngestResult, error)
}

func (m *mockEventIngestService) Ingest(ctx context.Context, payload model.WebhookPayload, traceID *string) (*service.EventIngestResult, error) {
	if m.ingestFn != nil {
		return m.ingestFn(ctx, payload, traceID)
	}
	return &service.EventIngestResult{MessageID: payload.Message.ID}, nil
}

type mockIgnoreService struct {
	addFn    func(ctx context.Context, params service.IgnoreUserParams) (*model.IgnoredUser, error)
	removeFn func(ctx context.Context, userID string) error
	listFn   func(ctx context.Context) ([]model.IgnoredUser, error)
}

func (m *mockIgnoreService) Add(ctx context.Context, params service.IgnoreUserParams) (*model.IgnoredUser, error) {
	if m.addFn != nil {
		return m.addFn(ctx, params)
	}
	return &model.IgnoredUser{ID: 1, UserID: params.UserID}, nil
}

func (m *mockIgnoreService) Remove(ctx context.Context, userID string) error {
	if m.removeFn != nil {
		return m.removeFn(ctx, userID)
	}
	return nil
}

func (m *mockIgnoreService) List(ctx context.Context) ([]model.IgnoredUser, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []model.IgnoredUser{}, nil
}
