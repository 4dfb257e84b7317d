package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrUserNotActive     = errors.New("user account is not activated")
	ErrUserAlreadyActive = errors.New("user account is already active")

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrForbidden          = errors.New("insufficient permissions")

	ErrActivationTokenExists   = errors.New("activation token is still valid")
	ErrActivationTokenNotFound = errors.New("activation token not found")
	ErrActivationTokenExpired  = errors.New("activation token is expired")

	ErrResetTokenInvalid = errors.New("password reset token is invalid or expired")

	ErrRefreshTokenNotFound = errors.New("refresh token not found")

	// Token codec errors: expired keeps its own kind but both collapse
	// into one user-facing message at the handler layer
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("token is invalid")

	ErrSamePassword = errors.New("new password must differ from the current one")

	ErrMovieNotFound      = errors.New("movie not found")
	ErrMovieAlreadyExists = errors.New("movie already exists")
	ErrGenreNotFound      = errors.New("genre not found")
	ErrCommentNotFound    = errors.New("comment not found")
	ErrAlreadyLiked       = errors.New("movie already liked by this user")
	ErrAlreadyDisliked    = errors.New("movie already disliked by this user")
	ErrAlreadyFavorite    = errors.New("movie already in favorites")
	ErrNotFavorite        = errors.New("movie not in favorites")

	ErrCartNotFound     = errors.New("cart not found")
	ErrCartEmpty        = errors.New("cart is already empty")
	ErrMovieInCart      = errors.New("movie is already in the cart")
	ErrMovieNotInCart   = errors.New("movie not found in cart")
	ErrAlreadyPurchased = errors.New("movie already purchased")
)
