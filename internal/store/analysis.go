package store

import (
	"context"
	"encoding/json"
	"fmt"

	"situationcord.app/relay/core/db"
	"situationcord.app/relay/internal/model"
)

type analysisStore struct {
	conn db.DBTX
}

func newAnalysisStore(conn db.DBTX) AnalysisStore {
	return &analysisStore{conn: conn}
}

const analysisColumns = `id, message_id, sentiment, is_question, is_answer, answered_message_id,
    needs_help, category_tags, ai_summary, confidence_score::text, severity_score::text,
    severity_level, severity_reason, model_version, processed_at`

const insertAnalysis = `
INSERT INTO message_analysis (
    id, message_id, sentiment, is_question, is_answer, answered_message_id,
    needs_help, category_tags, ai_summary, confidence_score, severity_score,
    severity_level, severity_reason, model_version
) VALUES (
    $1, $2, $3, $4, $5, $6,
    $7, $8, $9, $10::numeric, $11::numeric,
    $12, $13, $14
)
RETURNING ` + analysisColumns

// Create inserts a new analysis row. Score fields are expected as decimal text
// produced by FormatDecimal.
func (s *analysisStore) Create(ctx context.Context, a *model.MessageAnalysis) (*model.MessageAnalysis, error) {
	tags := a.CategoryTags
	if tags == nil {
		tags = []model.CategoryTag{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encoding category tags: %w", err)
	}

	row := s.conn.QueryRow(ctx, insertAnalysis,
		a.ID,
		a.MessageKey,
		string(a.Sentiment),
		a.IsQuestion,
		a.IsAnswer,
		a.AnsweredMessageID,
		a.NeedsHelp,
		tagsJSON,
		a.Summary,
		a.ConfidenceScore,
		a.SeverityScore,
		string(a.SeverityLevel),
		a.SeverityReason,
		a.ModelVersion,
	)
	return scanAnalysis(row)
}

func (s *analysisStore) ListByMessage(ctx context.Context, messageKey int64) ([]model.MessageAnalysis, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT `+analysisColumns+` FROM message_analysis WHERE message_id = $1 ORDER BY processed_at DESC`,
		messageKey,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MessageAnalysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*model.MessageAnalysis, error) {
	var (
		a        model.MessageAnalysis
		tagsJSON []byte
		level    *string
	)
	err := row.Scan(
		&a.ID,
		&a.MessageKey,
		&a.Sentiment,
		&a.IsQuestion,
		&a.IsAnswer,
		&a.AnsweredMessageID,
		&a.NeedsHelp,
		&tagsJSON,
		&a.Summary,
		&a.ConfidenceScore,
		&a.SeverityScore,
		&level,
		&a.SeverityReason,
		&a.ModelVersion,
		&a.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	if level != nil {
		a.SeverityLevel = model.SeverityLevel(*level)
	}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &a.CategoryTags); err != nil {
			return nil, fmt.Errorf("decoding category tags: %w", err)
		}
	}
	return &a, nil
}
