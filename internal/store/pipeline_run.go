package store

import (
	"context"

	"situationcord.app/relay/core/db"
	"situationcord.app/relay/internal/model"
)

type pipelineRunStore struct {
	conn db.DBTX
}

func newPipelineRunStore(conn db.DBTX) PipelineRunStore {
	return &pipelineRunStore{conn: conn}
}

const pipelineRunColumns = `id, message_id, attempt, status, error, started_at, finished_at`

func (s *pipelineRunStore) Create(ctx context.Context, run *model.PipelineRun) (*model.PipelineRun, error) {
	row := s.conn.QueryRow(ctx, `
INSERT INTO pipeline_runs (id, message_id, attempt, status, error)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+pipelineRunColumns,
		run.ID, run.MessageID, run.Attempt, string(run.Status), run.Error,
	)
	return scanPipelineRun(row)
}

func (s *pipelineRunStore) Finish(ctx context.Context, id int64, status model.RunStatus, errMsg *string) error {
	_, err := s.conn.Exec(ctx,
		`UPDATE pipeline_runs SET status = $2, error = $3, finished_at = now() WHERE id = $1`,
		id, string(status), errMsg,
	)
	return err
}

func (s *pipelineRunStore) ListByMessage(ctx context.Context, messageID string, limit int32) ([]model.PipelineRun, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT `+pipelineRunColumns+` FROM pipeline_runs WHERE message_id = $1 ORDER BY started_at DESC LIMIT $2`,
		messageID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []model.PipelineRun{}
	for rows.Next() {
		run, err := scanPipelineRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func scanPipelineRun(row rowScanner) (*model.PipelineRun, error) {
	var run model.PipelineRun
	if err := row.Scan(
		&run.ID,
		&run.MessageID,
		&run.Attempt,
		&run.Status,
		&run.Error,
		&run.StartedAt,
		&run.FinishedAt,
	); err != nil {
		return nil, err
	}
	return &run, nil
}
