package store

import (
	"context"

	"situationcord.app/relay/core/db"
	"situationcord.app/relay/internal/model"
)

type llmEvalStore struct {
	conn db.DBTX
}

func newLLMEvalStore(conn db.DBTX) LLMEvalStore {
	return &llmEvalStore{conn: conn}
}

const llmEvalColumns = `id, message_id, stage, input_text, output_json, error, model, temperature,
    prompt_version, latency_ms, prompt_tokens, completion_tokens, created_at`

func (s *llmEvalStore) Create(ctx context.Context, eval *model.LLMEval) (*model.LLMEval, error) {
	var outputJSON any
	if len(eval.OutputJSON) > 0 {
		outputJSON = eval.OutputJSON
	}

	row := s.conn.QueryRow(ctx, `
INSERT INTO llm_evals (
    id, message_id, stage, input_text, output_json, error, model, temperature,
    prompt_version, latency_ms, prompt_tokens, completion_tokens
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING `+llmEvalColumns,
		eval.ID,
		eval.MessageID,
		eval.Stage,
		eval.InputText,
		outputJSON,
		eval.Error,
		eval.Model,
		eval.Temperature,
		eval.PromptVersion,
		eval.LatencyMs,
		eval.PromptTokens,
		eval.CompletionTokens,
	)
	return scanLLMEval(row)
}

func (s *llmEvalStore) ListByStage(ctx context.Context, stage string, limit int32) ([]model.LLMEval, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT `+llmEvalColumns+` FROM llm_evals WHERE stage = $1 ORDER BY created_at DESC LIMIT $2`,
		stage, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	evals := []model.LLMEval{}
	for rows.Next() {
		eval, err := scanLLMEval(rows)
		if err != nil {
			return nil, err
		}
		evals = append(evals, *eval)
	}
	return evals, rows.Err()
}

func scanLLMEval(row rowScanner) (*model.LLMEval, error) {
	var e model.LLMEval
	if err := row.Scan(
		&e.ID,
		&e.MessageID,
		&e.Stage,
		&e.InputText,
		&e.OutputJSON,
		&e.Error,
		&e.Model,
		&e.Temperature,
		&e.PromptVersion,
		&e.LatencyMs,
		&e.PromptTokens,
		&e.CompletionTokens,
		&e.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &e, nil
}
