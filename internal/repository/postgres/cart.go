package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkbelov/moviestore/internal/apperrors"
	"github.com/nkbelov/moviestore/internal/models"
)

type CartRepo struct {
	DB DBTX
}

const getOrCreateCart = `-- name: GetOrCreateCart
INSERT INTO carts (id, user_id)
VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
RETURNING id
`

func (r *CartRepo) GetOrCreate(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	var cartID uuid.UUID
	err := r.DB.QueryRow(ctx, getOrCreateCart, uuid.New(), userID).Scan(&cartID)
	if err != nil {
		return cartID, fmt.Errorf("db error: %w", err)
	}
	return cartID, nil
}

const getCartItems = `-- name: GetCartItems
SELECT ci.movie_id, m.name, m.price, m.year, ci.added_at,
	COALESCE((SELECT array_agg(g.name ORDER BY g.name)
		FROM movie_genres mg JOIN genres g ON g.id = mg.genre_id
		WHERE mg.movie_id = m.id), '{}')
FROM cart_items ci
JOIN movies m ON m.id = ci.movie_id
WHERE ci.cart_id = $1
ORDER BY ci.added_at
`

func (r *CartRepo) Get(ctx context.Context, userID uuid.UUID) (models.Cart, error) {
	var cart models.Cart

	err := r.DB.QueryRow(ctx, "SELECT id, user_id FROM carts WHERE user_id = $1", userID).
		Scan(&cart.ID, &cart.UserID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return cart, apperrors.ErrCartNotFound
	case err != nil:
		return cart, fmt.Errorf("db error: %w", err)
	}

	rows, _ := r.DB.Query(ctx, getCartItems, cart.ID)
	cart.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.CartItem, error) {
		var i models.CartItem
		err := row.Scan(&i.MovieID, &i.Name, &i.Price, &i.Year, &i.AddedAt, &i.Genres)
		return i, err
	})
	if err != nil {
		return cart, fmt.Errorf("db error: %w", err)
	}

	return cart, nil
}

func (r *CartRepo) AddItem(ctx context.Context, cartID uuid.UUID, movieID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, "INSERT INTO cart_items (cart_id, movie_id) VALUES ($1, $2)", cartID, movieID)

	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return apperrors.ErrMovieInCart
	case isForeignKeyViolation(err):
		return apperrors.ErrMovieNotFound
	default:
		return fmt.Errorf("db error: %w", err)
	}
}

const removeCartItem = `-- name: RemoveCartItem
DELETE FROM cart_items ci
USING carts c
WHERE ci.cart_id = c.id AND c.user_id = $1 AND ci.movie_id = $2
`

func (r *CartRepo) RemoveItem(ctx context.Context, userID uuid.UUID, movieID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, removeCartItem, userID, movieID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrMovieNotInCart
	}
	return nil
}

const clearCart = `-- name: ClearCart
DELETE FROM cart_items ci
USING carts c
WHERE ci.cart_id = c.id AND c.user_id = $1
`

func (r *CartRepo) Clear(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.DB.Exec(ctx, clearCart, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *CartRepo) HasPurchase(ctx context.Context, userID uuid.UUID, movieID uuid.UUID) (bool, error) {
	var exists bool
	err := r.DB.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM purchases WHERE user_id = $1 AND movie_id = $2)",
		userID, movieID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}
