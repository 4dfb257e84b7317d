package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkbelov/moviestore/internal/apperrors"
	"github.com/nkbelov/moviestore/internal/handlers/render"
	"github.com/nkbelov/moviestore/internal/handlers/userctx"
	"github.com/nkbelov/moviestore/internal/models"
)

type cartService interface {
	AddMovie(ctx context.Context, user *models.User, movieID uuid.UUID) error
	Get(ctx context.Context, user *models.User, ownerID uuid.UUID) (models.Cart, error)
	Clear(ctx context.Context, user *models.User) error
	RemoveMovie(ctx context.Context, user *models.User, movieID uuid.UUID) error
}

type CartsHandler struct {
	cartService cartService
}

func NewCarts(carts cartService) *CartsHandler {
	return &CartsHandler{cartService: carts}
}

// Handler routes; every cart route needs a resolved user, so the whole mux
// is wrapped by the caller
func (h *CartsHandler) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /{$}", h.addMovie)
	mux.HandleFunc("GET /{$}", h.get)
	mux.HandleFunc("DELETE /clear/", h.clear)
	mux.HandleFunc("DELETE /{movie_id}/", h.removeMovie)

	return mux
}

type CartItemResponse struct {
	MovieID uuid.UUID       `json:"movie_id"`
	Name    string          `json:"name"`
	Price   decimal.Decimal `json:"price"`
	Year    int             `json:"year"`
	Genres  []string        `json:"genres"`
	AddedAt time.Time       `json:"added_at"`
}

type CartResponse struct {
	ID     uuid.UUID          `json:"id"`
	UserID uuid.UUID          `json:"user_id"`
	Items  []CartItemResponse `json:"items"`
}

func (h *CartsHandler) addMovie(w http.ResponseWriter, r *http.Request) {
	type AddMovieRequest struct {
		MovieID uuid.UUID `json:"movie_id" validate:"required"`
	}

	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	data, err := render.BindAndValidate[AddMovieRequest](w, r)
	if err != nil {
		return
	}

	err = h.cartService.AddMovie(r.Context(), &user, data.MovieID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrAlreadyPurchased):
			render.ServiceError(w, "Movie already purchased", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrMovieInCart):
			render.ServiceError(w, "Movie is already in the cart", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrMovieNotFound):
			render.ServiceError(w, "Movie not found", http.StatusBadRequest)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSONWithStatus(w, messageResponse{Message: "Movie added to cart"}, http.StatusCreated)
}

func (h *CartsHandler) get(w http.ResponseWriter, r *http.Request) {
	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Admins may look into another user's cart via ?user_id=
	ownerID := user.ID
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			render.ServiceError(w, "Invalid user id", http.StatusBadRequest)
			return
		}
		ownerID = id
	}

	cart, err := h.cartService.Get(r.Context(), &user, ownerID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrForbidden):
			render.ServiceError(w, "Not your cart", http.StatusForbidden)
		case errors.Is(err, apperrors.ErrCartNotFound):
			render.ServiceError(w, "Cart not found", http.StatusNotFound)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	resp := CartResponse{
		ID:     cart.ID,
		UserID: cart.UserID,
		Items:  make([]CartItemResponse, 0, len(cart.Items)),
	}
	for _, item := range cart.Items {
		resp.Items = append(resp.Items, CartItemResponse{
			MovieID: item.MovieID,
			Name:    item.Name,
			Price:   item.Price,
			Year:    item.Year,
			Genres:  item.Genres,
			AddedAt: item.AddedAt,
		})
	}

	render.JSON(w, resp)
}

func (h *CartsHandler) clear(w http.ResponseWriter, r *http.Request) {
	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	err := h.cartService.Clear(r.Context(), &user)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrCartEmpty):
			render.ServiceError(w, "Cart is already empty", http.StatusBadRequest)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, messageResponse{Message: "Cart cleared"})
}

func (h *CartsHandler) removeMovie(w http.ResponseWriter, r *http.Request) {
	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	movieID, err := uuid.Parse(r.PathValue("movie_id"))
	if err != nil {
		render.ServiceError(w, "Invalid movie id", http.StatusBadRequest)
		return
	}

	err = h.cartService.RemoveMovie(r.Context(), &user, movieID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrMovieNotInCart), errors.Is(err, apperrors.ErrMovieNotFound):
			render.ServiceError(w, "Movie is not in the cart", http.StatusNotFound)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, messageResponse{Message: "Movie removed from cart"})
}
