package cart

import (
	"context"

	"github.com/google/uuid"

	"github.com/nkbelov/moviestore/internal/apperrors"
	"github.com/nkbelov/moviestore/internal/models"
	"github.com/nkbelov/moviestore/internal/repository"
)

// Notifier delivers cart related staff emails
type Notifier interface {
	SendMovieRemovedFromCarts(emails []string, movieName string)
}

// CartService keeps one cart per user. Movies already purchased can not be
// added again; removing a movie notifies moderators.
type CartService struct {
	storage  repository.Storage
	notifier Notifier
}

func NewService(storage repository.Storage, notifier Notifier) *CartService {
	return &CartService{
		storage:  storage,
		notifier: notifier,
	}
}

// AddMovie puts a movie into the user's cart, creating the cart on first use
func (s *CartService) AddMovie(ctx context.Context, user *models.User, movieID uuid.UUID) error {
	return s.storage.InTx(ctx, func(store repository.Storage) error {
		purchased, err := store.Cart().HasPurchase(ctx, user.ID, movieID)
		if err != nil {
			return err
		}
		if purchased {
			return apperrors.ErrAlreadyPurchased
		}

		cartID, err := store.Cart().GetOrCreate(ctx, user.ID)
		if err != nil {
			return err
		}

		return store.Cart().AddItem(ctx, cartID, movieID)
	})
}

// Get returns the cart of ownerID. Only the owner and admins may look.
func (s *CartService) Get(ctx context.Context, user *models.User, ownerID uuid.UUID) (models.Cart, error) {
	if user.ID != ownerID && user.Group != models.GroupAdmin {
		return models.Cart{}, apperrors.ErrForbidden
	}

	return s.storage.Cart().Get(ctx, ownerID)
}

// Clear empties the cart; a missing or already empty cart is ErrCartEmpty
func (s *CartService) Clear(ctx context.Context, user *models.User) error {
	count, err := s.storage.Cart().Clear(ctx, user.ID)
	if err != nil {
		return err
	}
	if count == 0 {
		return apperrors.ErrCartEmpty
	}
	return nil
}

// RemoveMovie takes one movie out of the cart and emails moderators
func (s *CartService) RemoveMovie(ctx context.Context, user *models.User, movieID uuid.UUID) error {
	movie, err := s.storage.Movie().GetByID(ctx, movieID)
	if err != nil {
		return err
	}

	if err := s.storage.Cart().RemoveItem(ctx, user.ID, movieID); err != nil {
		return err
	}

	emails, err := s.storage.User().ListEmailsByGroup(ctx, models.GroupModerator)
	if err != nil {
		// The removal already happened, the notice is best effort
		return nil
	}

	s.notifier.SendMovieRemovedFromCarts(emails, movie.Name)
	return nil
}
