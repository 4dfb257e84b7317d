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

type ResetTokenRepo struct {
	DB DBTX
}

const deleteResetTokens = `-- name: DeleteResetTokens
DELETE FROM password_reset_tokens
WHERE user_id = $1
`

const insertResetToken = `-- name: InsertResetToken
INSERT INTO password_reset_tokens (id, user_id, token, expires_at)
VALUES ($1, $2, $3, $4)
RETURNING id, user_id, token, created_at, expires_at
`

// Replace drops whatever token the user had and inserts a fresh one, so the
// previous value is never accepted again
func (r *ResetTokenRepo) Replace(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) (models.PasswordResetToken, error) {
	var t models.PasswordResetToken

	_, err := r.DB.Exec(ctx, deleteResetTokens, userID)
	if err != nil {
		return t, fmt.Errorf("db error: %w", err)
	}

	err = r.DB.QueryRow(ctx, insertResetToken, uuid.New(), userID, token, expiresAt).
		Scan(&t.ID, &t.UserID, &t.Token, &t.CreatedAt, &t.ExpiresAt)
	if err != nil {
		return t, fmt.Errorf("db error: %w", err)
	}

	return t, nil
}

const getResetToken = `-- name: GetResetToken
SELECT id, token, expires_at
FROM password_reset_tokens
WHERE user_id = $1
`

const deleteResetTokenByID = `-- name: DeleteResetTokenByID
DELETE FROM password_reset_tokens
WHERE id = $1
`

// Consume validates owner + exact value + expiry. A present but stale row
// (wrong value or lapsed) is deleted on the way out so it cannot be retried.
func (r *ResetTokenRepo) Consume(ctx context.Context, userID uuid.UUID, token string) error {
	var id uuid.UUID
	var stored string
	var expiresAt time.Time

	err := r.DB.QueryRow(ctx, getResetToken, userID).Scan(&id, &stored, &expiresAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.ErrResetTokenInvalid
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	}

	_, err = r.DB.Exec(ctx, deleteResetTokenByID, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	if stored != token || expiresAt.Before(time.Now()) {
		return apperrors.ErrResetTokenInvalid
	}

	return nil
}
