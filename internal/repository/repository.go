package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkbelov/moviestore/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create inactive user in the named group; the group row is created on
	// first use. Returns apperrors.ErrUserAlreadyExists on duplicate email.
	CreateUser(ctx context.Context, email string, hashedPassword string, group string) (models.User, error)

	// Both return apperrors.ErrUserNotFound when no such user exists
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	// Flip is_active to true
	SetActive(ctx context.Context, userID uuid.UUID) (models.User, error)

	// Store a new password hash
	UpdatePassword(ctx context.Context, userID uuid.UUID, hashedPassword string) error

	// Emails of every user in the group, for staff notifications
	ListEmailsByGroup(ctx context.Context, group string) ([]string, error)
}

// ActivationToken repository interface
type ActivationTokenRepo interface {
	// Insert a token for the user
	// While any row exists for the user (live or not yet swept) returns
	// apperrors.ErrActivationTokenExists
	Issue(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) (models.ActivationToken, error)

	// Look up by value and delete the row.
	// Missing row: apperrors.ErrActivationTokenNotFound
	// Expired row: deleted anyway, apperrors.ErrActivationTokenExpired
	// A repeated consume of the same value hits the missing-row path.
	Consume(ctx context.Context, token string) (models.ActivationToken, error)

	// Delete every lapsed token, return how many were removed
	DeleteExpired(ctx context.Context) (int64, error)
}

// PasswordResetToken repository interface
type ResetTokenRepo interface {
	// Drop any previous token of the user and insert a fresh one
	Replace(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) (models.PasswordResetToken, error)

	// Consume the user's token: the stored value must match exactly and must
	// not be expired. A present but stale row (expired or mismatched value)
	// is deleted as a side effect. Every failure is
	// apperrors.ErrResetTokenInvalid.
	Consume(ctx context.Context, userID uuid.UUID, token string) error
}

// RefreshToken repository interface
type RefreshTokenRepo interface {
	Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error)

	// Returns apperrors.ErrRefreshTokenNotFound when the row is gone
	Get(ctx context.Context, token string) (models.RefreshToken, error)

	// Delete one record (refresh rotation); apperrors.ErrRefreshTokenNotFound
	// when nothing was deleted
	Delete(ctx context.Context, token string) error

	// Revoke every refresh token of the user, return how many were removed
	DeleteForUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

type MovieUpdate struct {
	Name        *string
	Year        *int
	Time        *int
	IMDb        *float64
	MetaScore   *float64
	Gross       *float64
	Description *string
	Price       *decimal.Decimal
}

// Movie repository interface
type MovieRepo interface {
	// Create the movie linking (and creating when missing) certification,
	// genres, directors and stars. Same name+year pair returns
	// apperrors.ErrMovieAlreadyExists.
	Create(ctx context.Context, movie models.Movie) (models.Movie, error)

	GetByID(ctx context.Context, movieID uuid.UUID) (models.Movie, error)

	// Filtered, paginated listing; total is the unpaginated match count
	List(ctx context.Context, filter models.MovieFilter) (movies []models.Movie, total int, err error)

	Update(ctx context.Context, movieID uuid.UUID, patch MovieUpdate) (models.Movie, error)
	Delete(ctx context.Context, movieID uuid.UUID) error

	// Fold one 0..10 vote into the aggregate rating
	Rate(ctx context.Context, movieID uuid.UUID, rating int) (models.Movie, error)

	Like(ctx context.Context, userID uuid.UUID, movieID uuid.UUID) error
	Dislike(ctx context.Context, userID uuid.UUID, movieID uuid.UUID) error

	AddFavorite(ctx context.Context, userID uuid.UUID, movieID uuid.UUID) error
	RemoveFavorite(ctx context.Context, userID uuid.UUID, movieID uuid.UUID) error

	AddComment(ctx context.Context, movieID uuid.UUID, userID uuid.UUID, text string) (models.Comment, error)
	ListComments(ctx context.Context, movieID uuid.UUID) ([]models.Comment, error)
	GetComment(ctx context.Context, commentID uuid.UUID) (models.Comment, error)
	AddAnswer(ctx context.Context, commentID uuid.UUID, userID uuid.UUID, text string) (models.CommentAnswer, error)

	ListGenres(ctx context.Context) ([]models.GenreCount, error)

	// Canonical genre name (case-insensitive lookup);
	// apperrors.ErrGenreNotFound when unknown
	GenreByName(ctx context.Context, name string) (string, error)
}

// Cart repository interface
type CartRepo interface {
	// Cart of the user, created lazily on first use
	GetOrCreate(ctx context.Context, userID uuid.UUID) (cartID uuid.UUID, err error)

	// Cart with its items; apperrors.ErrCartNotFound when the user has none
	Get(ctx context.Context, userID uuid.UUID) (models.Cart, error)

	// apperrors.ErrMovieInCart when the movie is already there
	AddItem(ctx context.Context, cartID uuid.UUID, movieID uuid.UUID) error

	// apperrors.ErrMovieNotInCart when nothing was removed
	RemoveItem(ctx context.Context, userID uuid.UUID, movieID uuid.UUID) error

	// Remove every item, return how many were removed
	Clear(ctx context.Context, userID uuid.UUID) (int64, error)

	HasPurchase(ctx context.Context, userID uuid.UUID, movieID uuid.UUID) (bool, error)
}

// Storage bundles the repositories sharing one DBTX so multi-step flows can
// run inside a single transaction via InTx
type Storage interface {
	User() UserRepo
	Activation() ActivationTokenRepo
	Reset() ResetTokenRepo
	Refresh() RefreshTokenRepo
	Movie() MovieRepo
	Cart() CartRepo

	// Run fn inside a transaction: commit on nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
