package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkbelov/moviestore/internal/apperrors"
	"github.com/nkbelov/moviestore/internal/models"
)

type ActivationTokenRepo struct {
	DB DBTX
}

const issueActivationToken = `-- name: IssueActivationToken
INSERT INTO activation_tokens (id, user_id, token, expires_at)
VALUES ($1, $2, $3, $4)
RETURNING id, user_id, token, created_at, expires_at
`

// Issue a fresh activation token for the user
// The user_id unique constraint enforces "at most one token per user": while
// a previous one exists (even lapsed but not yet swept) the insert fails
func (r *ActivationTokenRepo) Issue(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) (models.ActivationToken, error) {
	rows, _ := r.DB.Query(ctx, issueActivationToken, uuid.New(), userID, token, expiresAt)
	t, err := pgx.CollectOneRow(rows, rowToActivationToken)

	switch {
	case err == nil:
		return t, nil
	case isUniqueViolation(err):
		return t, apperrors.ErrActivationTokenExists
	default:
		return t, fmt.Errorf("db error: %w", err)
	}
}

const consumeActivationToken = `-- name: ConsumeActivationToken
DELETE FROM activation_tokens
WHERE token = $1
RETURNING id, user_id, token, created_at, expires_at
`

// Consume looks the token up by value and deletes it in one statement, so a
// concurrent sweep or a replayed consume resolves to not-found instead of a
// double delete
func (r *ActivationTokenRepo) Consume(ctx context.Context, token string) (models.ActivationToken, error) {
	rows, _ := r.DB.Query(ctx, consumeActivationToken, token)
	t, err := pgx.CollectOneRow(rows, rowToActivationToken)

	switch {
	case err == nil && t.ExpiresAt.Before(time.Now()):
		// Row is gone already; report why
		return t, apperrors.ErrActivationTokenExpired
	case err == nil:
		return t, nil
	case errors.Is(err, pgx.ErrNoRows):
		return t, apperrors.ErrActivationTokenNotFound
	default:
		return t, fmt.Errorf("db error: %w", err)
	}
}

const deleteExpiredActivationTokens = `-- name: DeleteExpiredActivationTokens
DELETE FROM activation_tokens
WHERE expires_at < now()
`

func (r *ActivationTokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteExpiredActivationTokens)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

func rowToActivationToken(row pgx.CollectableRow) (models.ActivationToken, error) {
	var t models.ActivationToken
	err := row.Scan(&t.ID, &t.UserID, &t.Token, &t.CreatedAt, &t.ExpiresAt)
	return t, err
}
