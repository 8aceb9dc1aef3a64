package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"situationcord.app/relay/core/db"
	"situationcord.app/relay/internal/model"
)

const foreignKeyViolation = "23503"

type ignoredUserStore struct {
	conn db.DBTX
}

func newIgnoredUserStore(conn db.DBTX) IgnoredUserStore {
	return &ignoredUserStore{conn: conn}
}

func (s *ignoredUserStore) Exists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := s.conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ignored_users WHERE user_id = $1)`,
		userID,
	).Scan(&exists)
	return exists, err
}

// Create adds userID to the ignore list. Re-adding an existing entry keeps the
// original row and returns it. ErrNotFound means the author has never been
// seen by ingestion.
func (s *ignoredUserStore) Create(ctx context.Context, user *model.IgnoredUser) (*model.IgnoredUser, error) {
	row := s.conn.QueryRow(ctx, `
INSERT INTO ignored_users (id, user_id, reason, ignored_by)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
RETURNING id, user_id, reason, ignored_by, created_at`,
		user.ID, user.UserID, user.Reason, user.IgnoredBy,
	)

	var out model.IgnoredUser
	if err := row.Scan(&out.ID, &out.UserID, &out.Reason, &out.IgnoredBy, &out.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (s *ignoredUserStore) Delete(ctx context.Context, userID string) error {
	tag, err := s.conn.Exec(ctx, `DELETE FROM ignored_users WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ignoredUserStore) List(ctx context.Context) ([]model.IgnoredUser, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT id, user_id, reason, ignored_by, created_at FROM ignored_users ORDER BY created_at DESC`)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []model.IgnoredUser{}, nil
		}
		return nil, err
	}
	defer rows.Close()

	users := []model.IgnoredUser{}
	for rows.Next() {
		var u model.IgnoredUser
		if err := rows.Scan(&u.ID, &u.UserID, &u.Reason, &u.IgnoredBy, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
