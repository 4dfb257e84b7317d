package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkbelov/moviestore/internal/apperrors"
	"github.com/nkbelov/moviestore/internal/models"
	"github.com/nkbelov/moviestore/internal/repository"
	"github.com/nkbelov/moviestore/internal/service/auth/tokenmanager"
)

const (
	defaultActivationTokenTTL = 24 * time.Hour
	defaultResetTokenTTL      = 1 * time.Hour
	defaultPublicBaseURL      = "http://127.0.0.1"
)

// Notifier is the boundary to the mail dispatcher. Sends are fire and
// forget: enqueued before the caller responds, delivered (or dropped and
// logged) later.
type Notifier interface {
	SendActivationEmail(email string, link string)
	SendPasswordResetEmail(email string, link string)
	SendPasswordChanged(email string)
}

type Config struct {
	// Hasher to use during registration or login
	// BcryptHasher is used when nil
	Hasher PasswordHasher

	// Opaque token lifetimes
	// If not set then default is used
	ActivationTokenTTL time.Duration
	ResetTokenTTL      time.Duration

	// Base URL embedded into emailed links
	PublicBaseURL string
}

// Auth service: registration, activation, login, logout, password reset and
// change, refresh token exchange
type AuthService struct {
	token    *tokenmanager.TokenManager
	hasher   PasswordHasher
	storage  repository.Storage
	notifier Notifier

	activationTTL time.Duration
	resetTTL      time.Duration
	baseURL       string
}

func NewService(cfg Config, token *tokenmanager.TokenManager, storage repository.Storage, notifier Notifier) (*AuthService, error) {
	if token == nil || storage == nil || notifier == nil {
		return nil, errors.New("token manager, storage and notifier must not be nil")
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = BcryptHasher{}
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.ActivationTokenTTL, defaultActivationTokenTTL)
	setDefaultDuration(&cfg.ResetTokenTTL, defaultResetTokenTTL)

	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = defaultPublicBaseURL
	}

	return &AuthService{
		token:         token,
		hasher:        hasher,
		storage:       storage,
		notifier:      notifier,
		activationTTL: cfg.ActivationTokenTTL,
		resetTTL:      cfg.ResetTokenTTL,
		baseURL:       strings.TrimSuffix(cfg.PublicBaseURL, "/"),
	}, nil
}

// Opaque token: 32 bytes from a CSPRNG, hex encoded (256 bits of entropy)
func generateOpaqueToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("error while generating token. Err: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Register creates an inactive user with an activation token in one
// transaction and schedules the activation email after commit
func (s *AuthService) Register(ctx context.Context, email string, password string, group string) (models.User, error) {
	var user models.User

	email = strings.ToLower(email)
	if !models.IsValidGroup(group) {
		group = models.GroupUser
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return user, fmt.Errorf("can't use this as password, error=%w", err)
	}

	token, err := generateOpaqueToken()
	if err != nil {
		return user, err
	}

	err = s.storage.InTx(ctx, func(store repository.Storage) error {
		user, err = store.User().CreateUser(ctx, email, hash, group)
		if err != nil {
			return err
		}

		_, err = store.Activation().Issue(ctx, user.ID, token, time.Now().Add(s.activationTTL))
		return err
	})
	if err != nil {
		return models.User{}, err
	}

	s.notifier.SendActivationEmail(user.Email, s.activationLink(token))
	return user, nil
}

// Activate consumes the token and flips the account active.
// State machine:
//   - unknown or expired token: rejected, an expired row stays deleted
//   - account already active: rejected, the token is not consumed
//   - live token, inactive account: activated, token consumed
func (s *AuthService) Activate(ctx context.Context, token string) error {
	var staleErr error

	err := s.storage.InTx(ctx, func(store repository.Storage) error {
		t, err := store.Activation().Consume(ctx, token)
		switch {
		case errors.Is(err, apperrors.ErrActivationTokenExpired):
			// Commit so the lapsed row stays deleted, then reject
			staleErr = err
			return nil
		case err != nil:
			return err
		}

		user, err := store.User().GetUserByID(ctx, t.UserID)
		if err != nil {
			return err
		}
		if user.IsActive {
			// Roll back the consume: the token outlives this attempt
			return apperrors.ErrUserAlreadyActive
		}

		_, err = store.User().SetActive(ctx, t.UserID)
		return err
	})
	if err != nil {
		return err
	}

	return staleErr
}

// ResendActivation issues a new token for a not yet activated account.
// Any existing token row, even a lapsed one the sweeper has not removed yet,
// blocks the resend.
func (s *AuthService) ResendActivation(ctx context.Context, email string) error {
	user, err := s.storage.User().GetUserByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return err
	}

	token, err := generateOpaqueToken()
	if err != nil {
		return err
	}

	_, err = s.storage.Activation().Issue(ctx, user.ID, token, time.Now().Add(s.activationTTL))
	if err != nil {
		return err
	}

	s.notifier.SendActivationEmail(user.Email, s.activationLink(token))
	return nil
}

// Login authenticates by email and password. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email string, password string) (models.TokenPair, error) {
	var pair models.TokenPair

	user, err := s.storage.User().GetUserByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return pair, apperrors.ErrInvalidCredentials
		}
		return pair, err
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return pair, apperrors.ErrInvalidCredentials
	}

	if !user.IsActive {
		return pair, apperrors.ErrUserNotActive
	}

	refresh, err := s.token.CreateRefresh(user.ID)
	if err != nil {
		return pair, err
	}

	_, err = s.storage.Refresh().Save(ctx, models.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     refresh.Value,
		CreatedAt: time.Now(),
		ExpiresAt: refresh.ExpiresAt,
	})
	if err != nil {
		// No tokens leak when the record was not persisted
		return pair, fmt.Errorf("error while saving refresh token. Err: %w", err)
	}

	access, err := s.token.CreateAccess(user.ID)
	if err != nil {
		return pair, err
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

// Logout revokes every refresh token of the user
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID) error {
	count, err := s.storage.Refresh().DeleteForUser(ctx, userID)
	if err != nil {
		return err
	}
	if count == 0 {
		return apperrors.ErrRefreshTokenNotFound
	}
	return nil
}

// RequestPasswordReset replaces the user's reset token and emails the link.
// Callers always get the same answer whether the account exists or not; the
// nil return for unknown or inactive accounts is deliberate.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.storage.User().GetUserByEmail(ctx, strings.ToLower(email))
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return nil
	case err != nil:
		return err
	}
	if !user.IsActive {
		return nil
	}

	token, err := generateOpaqueToken()
	if err != nil {
		return err
	}

	_, err = s.storage.Reset().Replace(ctx, user.ID, token, time.Now().Add(s.resetTTL))
	if err != nil {
		return err
	}

	s.notifier.SendPasswordResetEmail(user.Email, s.resetLink(token))
	return nil
}

// CompletePasswordReset sets a new password when the token matches.
// Every failure collapses into ErrResetTokenInvalid so the caller learns
// nothing about which part was wrong.
func (s *AuthService) CompletePasswordReset(ctx context.Context, email string, token string, newPassword string) error {
	user, err := s.storage.User().GetUserByEmail(ctx, strings.ToLower(email))
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return apperrors.ErrResetTokenInvalid
	case err != nil:
		return err
	}
	if !user.IsActive {
		return apperrors.ErrResetTokenInvalid
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("can't use this as password, error=%w", err)
	}

	var staleErr error
	err = s.storage.InTx(ctx, func(store repository.Storage) error {
		err := store.Reset().Consume(ctx, user.ID, token)
		if errors.Is(err, apperrors.ErrResetTokenInvalid) {
			// Commit so a stale row stays deleted, then reject
			staleErr = err
			return nil
		}
		if err != nil {
			return err
		}

		return store.User().UpdatePassword(ctx, user.ID, hash)
	})
	if err != nil {
		return err
	}

	return staleErr
}

// ChangePassword verifies the current password, stores the new hash and
// revokes every refresh token so other sessions must log in again
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, current string, newPassword string) error {
	user, err := s.storage.User().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.hasher.Compare(user.HashedPassword, current); err != nil {
		return apperrors.ErrInvalidCredentials
	}
	if s.hasher.Compare(user.HashedPassword, newPassword) == nil {
		return apperrors.ErrSamePassword
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("can't use this as password, error=%w", err)
	}

	err = s.storage.InTx(ctx, func(store repository.Storage) error {
		if err := store.User().UpdatePassword(ctx, userID, hash); err != nil {
			return err
		}

		_, err := store.Refresh().DeleteForUser(ctx, userID)
		return err
	})
	if err != nil {
		return err
	}

	s.notifier.SendPasswordChanged(user.Email)
	return nil
}

// Refresh exchanges a refresh token for a fresh access token. The consumed
// record is deleted: replaying the same refresh token hits
// ErrRefreshTokenNotFound.
func (s *AuthService) Refresh(ctx context.Context, refresh string) (models.IssuedToken, error) {
	var access models.IssuedToken

	userID, err := s.token.ParseRefresh(refresh)
	if err != nil {
		return access, err
	}

	// The row must still exist: a revoked token keeps a valid signature
	if _, err := s.storage.Refresh().Get(ctx, refresh); err != nil {
		return access, err
	}

	if _, err := s.storage.User().GetUserByID(ctx, userID); err != nil {
		return access, err
	}

	access, err = s.token.CreateAccess(userID)
	if err != nil {
		return access, err
	}

	if err := s.storage.Refresh().Delete(ctx, refresh); err != nil {
		return access, err
	}

	return access, nil
}

// Authenticate resolves a bearer access token to its user
func (s *AuthService) Authenticate(ctx context.Context, access string) (models.User, error) {
	userID, err := s.token.ParseAccess(access)
	if err != nil {
		return models.User{}, err
	}

	return s.storage.User().GetUserByID(ctx, userID)
}

func (s *AuthService) activationLink(token string) string {
	return fmt.Sprintf("%s/accounts/activate/?token=%s", s.baseURL, token)
}

func (s *AuthService) resetLink(token string) string {
	return fmt.Sprintf("%s/accounts/password-reset/complete/?token=%s", s.baseURL, token)
}
