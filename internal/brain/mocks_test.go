package brain_test

import (
	"context"
	"errors"

	"situationcord.app/relay/common/llm"
	"situationcord.app/relay/internal/model"
)

// mockLLMClient implements llm.Client for testing.
type mockLLMClient struct {
	chatFn    func(ctx context.Context, req llm.Request, result any) (*llm.Response, error)
	callCount int
	requests  []llm.Request
}

func (m *mockLLMClient) Chat(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
	m.callCount++
	m.requests = append(m.requests, req)
	if m.chatFn != nil {
		return m.chatFn(ctx, req, result)
	}
	return nil, errors.New("mock not configured")
}

func (m *mockLLMClient) Model() string {
	return "test-model"
}

// respondWith decodes raw through the same path the real client uses.
func respondWith(raw string) func(context.Context, llm.Request, any) (*llm.Response, error) {
	return func(_ context.Context, _ llm.Request, result any) (*llm.Response, error) {
		if err := llm.Decode(raw, result); err != nil {
			return nil, err
		}
		return &llm.Response{PromptTokens: 120, CompletionTokens: 40}, nil
	}
}

// mockLLMEvalStore implements store.LLMEvalStore for testing.
type mockLLMEvalStore struct {
	createFn  func(ctx context.Context, eval *model.LLMEval) (*model.LLMEval, error)
	callCount int
	evals     []*model.LLMEval
}

func (m *mockLLMEvalStore) Create(ctx context.Context, eval *model.LLMEval) (*model.LLMEval, error) {
	m.callCount++
	m.evals = append(m.evals, eval)
	if m.createFn != nil {
		return m.createFn(ctx, eval)
	}
	return eval, nil
}

func (m *mockLLMEvalStore) ListByStage(context.Context, string, int32) ([]model.LLMEval, error) {
	return nil, nil
}
