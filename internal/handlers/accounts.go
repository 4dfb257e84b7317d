package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkbelov/moviestore/internal/apperrors"
	"github.com/nkbelov/moviestore/internal/handlers/render"
	"github.com/nkbelov/moviestore/internal/handlers/userctx"
	"github.com/nkbelov/moviestore/internal/models"
)

type authService interface {
	Register(ctx context.Context, email string, password string, group string) (models.User, error)
	Activate(ctx context.Context, token string) error
	ResendActivation(ctx context.Context, email string) error
	Login(ctx context.Context, email string, password string) (models.TokenPair, error)
	Logout(ctx context.Context, userID uuid.UUID) error
	RequestPasswordReset(ctx context.Context, email string) error
	CompletePasswordReset(ctx context.Context, email string, token string, newPassword string) error
	ChangePassword(ctx context.Context, userID uuid.UUID, current string, newPassword string) error
	Refresh(ctx context.Context, refresh string) (models.IssuedToken, error)
	Authenticate(ctx context.Context, access string) (models.User, error)
}

type AccountsHandler struct {
	authService authService
}

func NewAccounts(auth authService) *AccountsHandler {
	return &AccountsHandler{authService: auth}
}

// Handler routes; withAuth wraps the routes that need a resolved user
func (h *AccountsHandler) Handler(withAuth func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /register/", h.register)
	mux.HandleFunc("POST /activate/", h.activate)
	mux.HandleFunc("POST /activate_resend/", h.resendActivation)
	mux.HandleFunc("POST /login/", h.login)
	mux.HandleFunc("POST /password-reset/request/", h.requestPasswordReset)
	mux.HandleFunc("POST /password-reset/complete/", h.completePasswordReset)
	mux.HandleFunc("POST /refresh/", h.refresh)

	mux.Handle("POST /logout/", withAuth(http.HandlerFunc(h.logout)))
	mux.Handle("POST /change-password/", withAuth(http.HandlerFunc(h.changePassword)))

	return mux
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *AccountsHandler) register(w http.ResponseWriter, r *http.Request) {
	type RegisterRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,password"`
		Group    string `json:"group" validate:"omitempty,oneof=user moderator admin"`
	}
	type RegisterResponse struct {
		ID    uuid.UUID `json:"id"`
		Email string    `json:"email"`
		Group string    `json:"group"`
	}

	data, err := render.BindAndValidate[RegisterRequest](w, r)
	if err != nil {
		return
	}

	user, err := h.authService.Register(r.Context(), data.Email, data.Password, data.Group)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.ServiceError(w, "User already exists", http.StatusConflict)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSONWithStatus(w, RegisterResponse{
		ID:    user.ID,
		Email: user.Email,
		Group: user.Group,
	}, http.StatusCreated)
}

func (h *AccountsHandler) activate(w http.ResponseWriter, r *http.Request) {
	type ActivateRequest struct {
		Token string `json:"token" validate:"required"`
	}

	data, err := render.BindAndValidate[ActivateRequest](w, r)
	if err != nil {
		return
	}

	err = h.authService.Activate(r.Context(), data.Token)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrActivationTokenNotFound),
			errors.Is(err, apperrors.ErrActivationTokenExpired):
			render.ServiceError(w, "Invalid or expired activation token", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrUserAlreadyActive):
			render.ServiceError(w, "Account is already active", http.StatusBadRequest)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, messageResponse{Message: "Account activated"})
}

func (h *AccountsHandler) resendActivation(w http.ResponseWriter, r *http.Request) {
	type ResendRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	data, err := render.BindAndValidate[ResendRequest](w, r)
	if err != nil {
		return
	}

	err = h.authService.ResendActivation(r.Context(), data.Email)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrActivationTokenExists):
			render.ServiceError(w, "Activation token is still valid", http.StatusBadRequest)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, messageResponse{Message: "Activation email sent"})
}

func (h *AccountsHandler) login(w http.ResponseWriter, r *http.Request) {
	type LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	type LoginResponse struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
	}

	data, err := render.BindAndValidate[LoginRequest](w, r)
	if err != nil {
		return
	}

	pair, err := h.authService.Login(r.Context(), data.Email, data.Password)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			render.ServiceError(w, "Invalid email or password", http.StatusUnauthorized)
		case errors.Is(err, apperrors.ErrUserNotActive):
			render.ServiceError(w, "Account is not activated", http.StatusForbidden)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSONWithStatus(w, LoginResponse{
		AccessToken:  pair.Access.Value,
		RefreshToken: pair.Refresh.Value,
		TokenType:    "bearer",
	}, http.StatusCreated)
}

func (h *AccountsHandler) logout(w http.ResponseWriter, r *http.Request) {
	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	err := h.authService.Logout(r.Context(), user.ID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrRefreshTokenNotFound):
			render.ServiceError(w, "No active session", http.StatusUnauthorized)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, messageResponse{Message: "Logged out"})
}

func (h *AccountsHandler) requestPasswordReset(w http.ResponseWriter, r *http.Request) {
	type ResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	data, err := render.BindAndValidate[ResetRequest](w, r)
	if err != nil {
		return
	}

	// Same answer whether the account exists or not
	if err := h.authService.RequestPasswordReset(r.Context(), data.Email); err != nil {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.JSON(w, messageResponse{Message: "If the account exists, a reset email was sent"})
}

func (h *AccountsHandler) completePasswordReset(w http.ResponseWriter, r *http.Request) {
	type CompleteRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Token    string `json:"token" validate:"required"`
		Password string `json:"password" validate:"required,password"`
	}

	data, err := render.BindAndValidate[CompleteRequest](w, r)
	if err != nil {
		return
	}

	err = h.authService.CompletePasswordReset(r.Context(), data.Email, data.Token, data.Password)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrResetTokenInvalid):
			render.ServiceError(w, "Invalid email or token", http.StatusBadRequest)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, messageResponse{Message: "Password updated"})
}

func (h *AccountsHandler) changePassword(w http.ResponseWriter, r *http.Request) {
	type ChangeRequest struct {
		CurrentPassword string `json:"current_password" validate:"required"`
		NewPassword     string `json:"new_password" validate:"required,password"`
	}

	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	data, err := render.BindAndValidate[ChangeRequest](w, r)
	if err != nil {
		return
	}

	err = h.authService.ChangePassword(r.Context(), user.ID, data.CurrentPassword, data.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			render.ServiceError(w, "Current password is wrong", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrSamePassword):
			render.ServiceError(w, "New password must differ from the current one", http.StatusBadRequest)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, messageResponse{Message: "Password changed"})
}

func (h *AccountsHandler) refresh(w http.ResponseWriter, r *http.Request) {
	type RefreshRequest struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}
	type RefreshResponse struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}

	data, err := render.BindAndValidate[RefreshRequest](w, r)
	if err != nil {
		return
	}

	access, err := h.authService.Refresh(r.Context(), data.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrTokenInvalid), errors.Is(err, apperrors.ErrTokenExpired):
			render.ServiceError(w, "Invalid or expired token", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrRefreshTokenNotFound):
			render.ServiceError(w, "Refresh token not found", http.StatusUnauthorized)
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, RefreshResponse{
		AccessToken: access.Value,
		TokenType:   "bearer",
	})
}
