package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkbelov/moviestore/internal/apperrors"
	"github.com/nkbelov/moviestore/internal/models"
)

type UserRepo struct {
	DB DBTX
}

const upsertGroup = `-- name: UpsertGroup
INSERT INTO user_groups (id, name)
VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id
`

const createUser = `-- name: CreateUser
INSERT INTO users (id, email, hashed_password, group_id)
VALUES ($1, $2, $3, $4)
RETURNING id, email, hashed_password, is_active, created_at, updated_at
`

func (r *UserRepo) CreateUser(ctx context.Context, email string, hashedPassword string, group string) (models.User, error) {
	var user models.User

	// Group row is created on first use. The upsert's no-op update makes
	// RETURNING yield the id for pre-existing rows too.
	var groupID uuid.UUID
	err := r.DB.QueryRow(ctx, upsertGroup, uuid.New(), group).Scan(&groupID)
	if err != nil {
		return user, fmt.Errorf("db error: %w", err)
	}

	err = r.DB.QueryRow(ctx, createUser, uuid.New(), email, hashedPassword, groupID).
		Scan(&user.ID, &user.Email, &user.HashedPassword, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return user, apperrors.ErrUserAlreadyExists
		}
		return user, fmt.Errorf("db error: %w", err)
	}

	user.Group = group
	return user, nil
}

const getUserByID = `-- name: GetUserByID
SELECT u.id, u.email, u.hashed_password, u.is_active, g.name, u.created_at, u.updated_at
FROM users u
JOIN user_groups g ON g.id = u.group_id
WHERE u.id = $1
`

func (r *UserRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByID, userID)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

const getUserByEmail = `-- name: GetUserByEmail
SELECT u.id, u.email, u.hashed_password, u.is_active, g.name, u.created_at, u.updated_at
FROM users u
JOIN user_groups g ON g.id = u.group_id
WHERE u.email = $1
`

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByEmail, email)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

const setActive = `-- name: SetActive
UPDATE users
SET is_active = true, updated_at = now()
WHERE id = $1
RETURNING id
`

func (r *UserRepo) SetActive(ctx context.Context, userID uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, setActive, userID)
	_, err := pgx.CollectOneRow(rows, pgx.RowTo[uuid.UUID])

	switch {
	case err == nil:
		return r.GetUserByID(ctx, userID)
	case errors.Is(err, pgx.ErrNoRows):
		return models.User{}, apperrors.ErrUserNotFound
	default:
		return models.User{}, fmt.Errorf("db error: %w", err)
	}
}

const updatePassword = `-- name: UpdatePassword
UPDATE users
SET hashed_password = $2, updated_at = now()
WHERE id = $1
RETURNING id
`

func (r *UserRepo) UpdatePassword(ctx context.Context, userID uuid.UUID, hashedPassword string) error {
	rows, _ := r.DB.Query(ctx, updatePassword, userID, hashedPassword)
	_, err := pgx.CollectOneRow(rows, pgx.RowTo[uuid.UUID])

	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.ErrUserNotFound
	default:
		return fmt.Errorf("db error: %w", err)
	}
}

const listEmailsByGroup = `-- name: ListEmailsByGroup
SELECT u.email
FROM users u
JOIN user_groups g ON g.id = u.group_id
WHERE g.name = $1
`

func (r *UserRepo) ListEmailsByGroup(ctx context.Context, group string) ([]string, error) {
	rows, _ := r.DB.Query(ctx, listEmailsByGroup, group)
	emails, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return emails, nil
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.HashedPassword, &u.IsActive, &u.Group, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
