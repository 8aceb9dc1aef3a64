package service_test

import (
	"context"

	"situationcord.app/relay/internal/model"
	"situationcord.app/relay/internal/queue"
	"situationcord.app/relay/internal/service"
	"situationcord.app/relay/internal/store"
)

type mockMessageStore struct {
	upsertAuthorFn  func(ctx context.Context, author *model.DiscordAuthor) error
	insertMessageFn func(ctx context.Context, msg *model.StoredMessage) (bool, error)
	getKeyFn        func(ctx context.Context, messageID string) (int64, error)

	capturedAuthor  *model.DiscordAuthor
	capturedMessage *model.StoredMessage
}

func (m *mockMessageStore) GetKeyByExternalID(ctx context.Context, messageID string) (int64, error) {
	if m.getKeyFn != nil {
		return m.getKeyFn(ctx, messageID)
	}
	return 0, store.ErrNotFound
}

func (m *mockMessageStore) ListRecentByThread(ctx context.Context, threadID string, limit int32) ([]model.ThreadContextEntry, error) {
	return nil, nil
}

func (m *mockMessageStore) UpsertAuthor(ctx context.Context, author *model.DiscordAuthor) error {
	m.capturedAuthor = author
	if m.upsertAuthorFn != nil {
		return m.upsertAuthorFn(ctx, author)
	}
	return nil
}

func (m *mockMessageStore) InsertMessage(ctx context.Context, msg *model.StoredMessage) (bool, error) {
	m.capturedMessage = msg
	if m.insertMessageFn != nil {
		return m.insertMessageFn(ctx, msg)
	}
	return true, nil
}

type mockIgnoredUserStore struct {
	createFn func(ctx context.Context, user *model.IgnoredUser) (*model.IgnoredUser, error)
	deleteFn func(ctx context.Context, userID string) error
	listFn   func(ctx context.Context) ([]model.IgnoredUser, error)
}

func (m *mockIgnoredUserStore) Exists(ctx context.Context, userID string) (bool, error) {
	return false, nil
}

func (m *mockIgnoredUserStore) Create(ctx context.Context, user *model.IgnoredUser) (*model.IgnoredUser, error) {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return user, nil
}

func (m *mockIgnoredUserStore) Delete(ctx context.Context, userID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID)
	}
	return nil
}

func (m *mockIgnoredUserStore) List(ctx context.Context) ([]model.IgnoredUser, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []model.IgnoredUser{}, nil
}

type mockAnalysisStore struct {
	listByMessageFn func(ctx context.Context, messageKey int64) ([]model.MessageAnalysis, error)
}

func (m *mockAnalysisStore) Create(ctx context.Context, analysis *model.MessageAnalysis) (*model.MessageAnalysis, error) {
	return analysis, nil
}

func (m *mockAnalysisStore) ListByMessage(ctx context.Context, messageKey int64) ([]model.MessageAnalysis, error) {
	if m.listByMessageFn != nil {
		return m.listByMessageFn(ctx, messageKey)
	}
	return nil, nil
}

type mockStoreProvider struct {
	messages *mockMessageStore
	analyses *mockAnalysisStore
	ignored  *mockIgnoredUserStore
}

func (m *mockStoreProvider) Messages() store.MessageStore {
	return m.messages
}

func (m *mockStoreProvider) Analyses() store.AnalysisStore {
	return m.analyses
}

func (m *mockStoreProvider) IgnoredUsers() store.IgnoredUserStore {
	return m.ignored
}

type mockTxRunner struct {
	withTxFn func(ctx context.Context, fn func(stores service.StoreProvider) error) error
}

func (m *mockTxRunner) WithTx(ctx context.Context, fn func(stores service.StoreProvider) error) error {
	if m.withTxFn != nil {
		return m.withTxFn(ctx, fn)
	}
	return fn(nil)
}

type mockQueueProducer struct {
	enqueueFn func(ctx context.Context, task queue.EnrichmentTask) error
	tasks     []queue.EnrichmentTask
}

func (m *mockQueueProducer) Enqueue(ctx context.Context, task queue.EnrichmentTask) error {
	m.tasks = append(m.tasks, task)
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, task)
	}
	return nil
}

func (m *mockQueueProducer) Close() error {
	return nil
}
