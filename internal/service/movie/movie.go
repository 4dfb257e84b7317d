package movie

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/nkbelov/moviestore/internal/apperrors"
	"github.com/nkbelov/moviestore/internal/models"
	"github.com/nkbelov/moviestore/internal/repository"
)

// Notifier delivers catalog related emails
type Notifier interface {
	SendCommentAnswer(email string, movieName string, answer string)
}

// MovieService implements the catalog: listing with filters and pagination,
// staff managed create/update/delete, ratings, reactions, comments,
// favorites and genres
type MovieService struct {
	storage  repository.Storage
	notifier Notifier
}

func NewService(storage repository.Storage, notifier Notifier) *MovieService {
	return &MovieService{
		storage:  storage,
		notifier: notifier,
	}
}

func (s *MovieService) Create(ctx context.Context, user *models.User, movie models.Movie) (models.Movie, error) {
	if !user.IsStaff() {
		return models.Movie{}, apperrors.ErrForbidden
	}

	return s.storage.Movie().Create(ctx, movie)
}

func (s *MovieService) Get(ctx context.Context, movieID uuid.UUID) (models.Movie, error) {
	return s.storage.Movie().GetByID(ctx, movieID)
}

func (s *MovieService) List(ctx context.Context, filter models.MovieFilter) ([]models.Movie, int, error) {
	return s.storage.Movie().List(ctx, filter)
}

func (s *MovieService) Update(ctx context.Context, user *models.User, movieID uuid.UUID, patch repository.MovieUpdate) (models.Movie, error) {
	if !user.IsStaff() {
		return models.Movie{}, apperrors.ErrForbidden
	}

	return s.storage.Movie().Update(ctx, movieID, patch)
}

func (s *MovieService) Delete(ctx context.Context, user *models.User, movieID uuid.UUID) error {
	if !user.IsStaff() {
		return apperrors.ErrForbidden
	}

	return s.storage.Movie().Delete(ctx, movieID)
}

// Rate folds a 0..10 vote into the movie's aggregate
func (s *MovieService) Rate(ctx context.Context, movieID uuid.UUID, rating int) (models.Movie, error) {
	return s.storage.Movie().Rate(ctx, movieID, rating)
}

func (s *MovieService) Like(ctx context.Context, user *models.User, movieID uuid.UUID) error {
	return s.storage.Movie().Like(ctx, user.ID, movieID)
}

func (s *MovieService) Dislike(ctx context.Context, user *models.User, movieID uuid.UUID) error {
	return s.storage.Movie().Dislike(ctx, user.ID, movieID)
}

func (s *MovieService) AddFavorite(ctx context.Context, user *models.User, movieID uuid.UUID) error {
	return s.storage.Movie().AddFavorite(ctx, user.ID, movieID)
}

func (s *MovieService) RemoveFavorite(ctx context.Context, user *models.User, movieID uuid.UUID) error {
	return s.storage.Movie().RemoveFavorite(ctx, user.ID, movieID)
}

func (s *MovieService) ListFavorites(ctx context.Context, user *models.User, filter models.MovieFilter) ([]models.Movie, int, error) {
	filter.FavoritesOf = user.ID
	return s.storage.Movie().List(ctx, filter)
}

func (s *MovieService) AddComment(ctx context.Context, user *models.User, movieID uuid.UUID, text string) (models.Comment, error) {
	return s.storage.Movie().AddComment(ctx, movieID, user.ID, text)
}

// ListComments returns the movie's comments; an unknown movie is
// ErrMovieNotFound, a movie without comments is ErrCommentNotFound
func (s *MovieService) ListComments(ctx context.Context, movieID uuid.UUID) ([]models.Comment, error) {
	comments, err := s.storage.Movie().ListComments(ctx, movieID)
	if err != nil {
		return nil, err
	}
	if len(comments) == 0 {
		if _, err := s.storage.Movie().GetByID(ctx, movieID); err != nil {
			return nil, err
		}
		return nil, apperrors.ErrCommentNotFound
	}
	return comments, nil
}

// AnswerComment stores a staff answer and emails the comment author
func (s *MovieService) AnswerComment(ctx context.Context, user *models.User, commentID uuid.UUID, text string) (models.CommentAnswer, error) {
	if !user.IsStaff() {
		return models.CommentAnswer{}, apperrors.ErrForbidden
	}

	var answer models.CommentAnswer
	var authorEmail, movieName string

	err := s.storage.InTx(ctx, func(store repository.Storage) error {
		comment, err := store.Movie().GetComment(ctx, commentID)
		if err != nil {
			return err
		}

		answer, err = store.Movie().AddAnswer(ctx, commentID, user.ID, text)
		if err != nil {
			return err
		}

		author, err := store.User().GetUserByID(ctx, comment.UserID)
		if err != nil && !errors.Is(err, apperrors.ErrUserNotFound) {
			return err
		}
		authorEmail = author.Email

		m, err := store.Movie().GetByID(ctx, comment.MovieID)
		if err != nil {
			return err
		}
		movieName = m.Name

		return nil
	})
	if err != nil {
		return models.CommentAnswer{}, err
	}

	if authorEmail != "" && authorEmail != user.Email {
		s.notifier.SendCommentAnswer(authorEmail, movieName, text)
	}
	return answer, nil
}

func (s *MovieService) ListGenres(ctx context.Context) ([]models.GenreCount, error) {
	return s.storage.Movie().ListGenres(ctx)
}

// MoviesByGenre lists one genre's movies; the name is matched
// case-insensitively and an unknown genre is ErrGenreNotFound
func (s *MovieService) MoviesByGenre(ctx context.Context, name string, filter models.MovieFilter) ([]models.Movie, int, error) {
	canonical, err := s.storage.Movie().GenreByName(ctx, name)
	if err != nil {
		return nil, 0, err
	}

	filter.Genre = canonical
	return s.storage.Movie().List(ctx, filter)
}
