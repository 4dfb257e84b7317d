package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkbelov/moviestore/internal/apperrors"
	"github.com/nkbelov/moviestore/internal/handlers/render"
	"github.com/nkbelov/moviestore/internal/handlers/userctx"
	"github.com/nkbelov/moviestore/internal/models"
	"github.com/nkbelov/moviestore/internal/repository"
)

const (
	defaultPerPage = 10
	maxPerPage     = 20
)

type movieService interface {
	Create(ctx context.Context, user *models.User, movie models.Movie) (models.Movie, error)
	Get(ctx context.Context, movieID uuid.UUID) (models.Movie, error)
	List(ctx context.Context, filter models.MovieFilter) ([]models.Movie, int, error)
	Update(ctx context.Context, user *models.User, movieID uuid.UUID, patch repository.MovieUpdate) (models.Movie, error)
	Delete(ctx context.Context, user *models.User, movieID uuid.UUID) error
	Rate(ctx context.Context, movieID uuid.UUID, rating int) (models.Movie, error)
	Like(ctx context.Context, user *models.User, movieID uuid.UUID) error
	Dislike(ctx context.Context, user *models.User, movieID uuid.UUID) error
	AddFavorite(ctx context.Context, user *models.User, movieID uuid.UUID) error
	RemoveFavorite(ctx context.Context, user *models.User, movieID uuid.UUID) error
	ListFavorites(ctx context.Context, user *models.User, filter models.MovieFilter) ([]models.Movie, int, error)
	AddComment(ctx context.Context, user *models.User, movieID uuid.UUID, text string) (models.Comment, error)
	ListComments(ctx context.Context, movieID uuid.UUID) ([]models.Comment, error)
	AnswerComment(ctx context.Context, user *models.User, commentID uuid.UUID, text string) (models.CommentAnswer, error)
	ListGenres(ctx context.Context) ([]models.GenreCount, error)
	MoviesByGenre(ctx context.Context, name string, filter models.MovieFilter) ([]models.Movie, int, error)
}

type MoviesHandler struct {
	movieService movieService
}

func NewMovies(movies movieService) *MoviesHandler {
	return &MoviesHandler{movieService: movies}
}

func (h *MoviesHandler) Handler(withAuth func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.list)
	mux.HandleFunc("GET /genres/", h.listGenres)
	mux.HandleFunc("GET /genres/{name}/", h.moviesByGenre)
	mux.HandleFunc("GET /{id}/", h.get)
	mux.HandleFunc("GET /{id}/comments", h.listComments)

	mux.Handle("POST /{$}", withAuth(http.HandlerFunc(h.create)))
	mux.Handle("PATCH /{id}/", withAuth(http.HandlerFunc(h.update)))
	mux.Handle("DELETE /{id}/", withAuth(http.HandlerFunc(h.delete)))
	mux.Handle("PUT /{id}/rate", withAuth(http.HandlerFunc(h.rate)))
	mux.Handle("POST /{id}/like", withAuth(http.HandlerFunc(h.like)))
	mux.Handle("POST /{id}/dislike", withAuth(http.HandlerFunc(h.dislike)))
	mux.Handle("POST /{id}/comments", withAuth(http.HandlerFunc(h.addComment)))
	mux.Handle("POST /comments/{id}/answer", withAuth(http.HandlerFunc(h.answerComment)))
	mux.Handle("POST /favorite/", withAuth(http.HandlerFunc(h.addFavorite)))
	mux.Handle("DELETE /favorite/", withAuth(http.HandlerFunc(h.removeFavorite)))
	mux.Handle("GET /favorites/", withAuth(http.HandlerFunc(h.listFavorites)))

	return mux
}

type MovieResponse struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	Year          int             `json:"year"`
	Time          int             `json:"time"`
	IMDb          float64         `json:"imdb"`
	Votes         int             `json:"votes"`
	MetaScore     *float64        `json:"meta_score,omitempty"`
	Gross         *float64        `json:"gross,omitempty"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Rating        float64         `json:"rating"`
	Certification string          `json:"certification"`
	Genres        []string        `json:"genres"`
	Directors     []string        `json:"directors"`
	Stars         []string        `json:"stars"`
}

type MovieListResponse struct {
	Page       int             `json:"page"`
	PerPage    int             `json:"per_page"`
	TotalItems int             `json:"total_items"`
	TotalPages int             `json:"total_pages"`
	Prev       *string         `json:"prev"`
	Next       *string         `json:"next"`
	Items      []MovieResponse `json:"items"`
}

func movieToResponse(m models.Movie) MovieResponse {
	return MovieResponse{
		ID:            m.ID,
		Name:          m.Name,
		Year:          m.Year,
		Time:          m.Time,
		IMDb:          m.IMDb,
		Votes:         m.Votes,
		MetaScore:     m.MetaScore,
		Gross:         m.Gross,
		Description:   m.Description,
		Price:         m.Price,
		Rating:        m.Rating,
		Certification: m.Certification,
		Genres:        m.Genres,
		Directors:     m.Directors,
		Stars:         m.Stars,
	}
}

// filterFromQuery reads pagination and catalog filters from the query string.
// Bad numbers fall back to defaults instead of failing the request.
func filterFromQuery(q url.Values) models.MovieFilter {
	atoi := func(key string) int {
		n, _ := strconv.Atoi(q.Get(key))
		return n
	}
	atof := func(key string) float64 {
		f, _ := strconv.ParseFloat(q.Get(key), 64)
		return f
	}

	f := models.MovieFilter{
		Year:     atoi("year"),
		MinIMDb:  atof("imdb_min"),
		MaxIMDb:  atof("imdb_max"),
		Genre:    q.Get("genre"),
		Director: q.Get("director"),
		Star:     q.Get("star"),
		Search:   q.Get("search"),
		SortBy:   q.Get("sort_by"),
		Page:     atoi("page"),
		PerPage:  atoi("per_page"),
	}

	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > maxPerPage {
		f.PerPage = defaultPerPage
	}

	return f
}

// renderMovieList writes the paginated listing; a page past the end is 404
func renderMovieList(w http.ResponseWriter, r *http.Request, movies []models.Movie, total int, filter models.MovieFilter) {
	if len(movies) == 0 {
		render.ServiceError(w, "Page not found", http.StatusNotFound)
		return
	}

	totalPages := (total + filter.PerPage - 1) / filter.PerPage

	pageLink := func(page int) *string {
		if page < 1 || page > totalPages {
			return nil
		}
		q := r.URL.Query()
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(filter.PerPage))
		link := fmt.Sprintf("%s?%s", r.URL.Path, q.Encode())
		return &link
	}

	resp := MovieListResponse{
		Page:       filter.Page,
		PerPage:    filter.PerPage,
		TotalItems: total,
		TotalPages: totalPages,
		Prev:       pageLink(filter.Page - 1),
		Next:       pageLink(filter.Page + 1),
		Items:      make([]MovieResponse, 0, len(movies)),
	}
	for _, m := range movies {
		resp.Items = append(resp.Items, movieToResponse(m))
	}

	render.JSON(w, resp)
}

func movieIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.ServiceError(w, "Invalid movie id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *MoviesHandler) list(w http.ResponseWriter, r *http.Request) {
	filter := filterFromQuery(r.URL.Query())

	movies, total, err := h.movieService.List(r.Context(), filter)
	if err != nil {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	renderMovieList(w, r, movies, total, filter)
}

func (h *MoviesHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := movieIDFromPath(w, r)
	if !ok {
		return
	}

	movie, err := h.movieService.Get(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrMovieNotFound):
			render.ServiceError(w, "Movie not found", http.StatusNotFound)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, movieToResponse(movie))
}

type MovieCreateRequest struct {
	Name          string          `json:"name" validate:"required,max=250"`
	Year          int             `json:"year" validate:"required,min=1888"`
	Time          int             `json:"time" validate:"required,min=1"`
	IMDb          float64         `json:"imdb" validate:"min=0,max=10"`
	MetaScore     *float64        `json:"meta_score" validate:"omitempty,min=0,max=100"`
	Gross         *float64        `json:"gross" validate:"omitempty,min=0"`
	Description   string          `json:"description" validate:"required"`
	Price         decimal.Decimal `json:"price" validate:"required"`
	Certification string          `json:"certification" validate:"required"`
	Genres        []string        `json:"genres" validate:"required,min=1,dive,required"`
	Directors     []string        `json:"directors" validate:"required,min=1,dive,required"`
	Stars         []string        `json:"stars" validate:"required,min=1,dive,required"`
}

func (h *MoviesHandler) create(w http.ResponseWriter, r *http.Request) {
	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	data, err := render.BindAndValidate[MovieCreateRequest](w, r)
	if err != nil {
		return
	}

	movie, err := h.movieService.Create(r.Context(), &user, models.Movie{
		Name:          data.Name,
		Year:          data.Year,
		Time:          data.Time,
		IMDb:          data.IMDb,
		MetaScore:     data.MetaScore,
		Gross:         data.Gross,
		Description:   data.Description,
		Price:         data.Price,
		Certification: data.Certification,
		Genres:        data.Genres,
		Directors:     data.Directors,
		Stars:         data.Stars,
	})
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrForbidden):
			render.ServiceError(w, "Moderator rights required", http.StatusForbidden)
		case errors.Is(err, apperrors.ErrMovieAlreadyExists):
			render.ServiceError(w, "Movie already exists", http.StatusConflict)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSONWithStatus(w, movieToResponse(movie), http.StatusCreated)
}

func (h *MoviesHandler) update(w http.ResponseWriter, r *http.Request) {
	type MovieUpdateRequest struct {
		Name        *string          `json:"name" validate:"omitempty,max=250"`
		Year        *int             `json:"year" validate:"omitempty,min=1888"`
		Time        *int             `json:"time" validate:"omitempty,min=1"`
		IMDb        *float64         `json:"imdb" validate:"omitempty,min=0,max=10"`
		MetaScore   *float64         `json:"meta_score" validate:"omitempty,min=0,max=100"`
		Gross       *float64         `json:"gross" validate:"omitempty,min=0"`
		Description *string          `json:"description"`
		Price       *decimal.Decimal `json:"price"`
	}

	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	id, ok := movieIDFromPath(w, r)
	if !ok {
		return
	}

	data, err := render.BindAndValidate[MovieUpdateRequest](w, r)
	if err != nil {
		return
	}

	movie, err := h.movieService.Update(r.Context(), &user, id, repository.MovieUpdate{
		Name:        data.Name,
		Year:        data.Year,
		Time:        data.Time,
		IMDb:        data.IMDb,
		MetaScore:   data.MetaScore,
		Gross:       data.Gross,
		Description: data.Description,
		Price:       data.Price,
	})
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrForbidden):
			render.ServiceError(w, "Moderator rights required", http.StatusForbidden)
		case errors.Is(err, apperrors.ErrMovieNotFound):
			render.ServiceError(w, "Movie not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrMovieAlreadyExists):
			render.ServiceError(w, "Movie already exists", http.StatusConflict)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, movieToResponse(movie))
}

func (h *MoviesHandler) delete(w http.ResponseWriter, r *http.Request) {
	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	id, ok := movieIDFromPath(w, r)
	if !ok {
		return
	}

	err := h.movieService.Delete(r.Context(), &user, id)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrForbidden):
			render.ServiceError(w, "Moderator rights required", http.StatusForbidden)
		case errors.Is(err, apperrors.ErrMovieNotFound):
			render.ServiceError(w, "Movie not found", http.StatusNotFound)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, messageResponse{Message: "Movie deleted"})
}

func (h *MoviesHandler) rate(w http.ResponseWriter, r *http.Request) {
	type RateRequest struct {
		Rating *int `json:"rating" validate:"required,min=0,max=10"`
	}

	id, ok := movieIDFromPath(w, r)
	if !ok {
		return
	}

	data, err := render.BindAndValidate[RateRequest](w, r)
	if err != nil {
		return
	}

	movie, err := h.movieService.Rate(r.Context(), id, *data.Rating)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrMovieNotFound):
			render.ServiceError(w, "Movie not found", http.StatusNotFound)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, movieToResponse(movie))
}

// reaction handles like and dislike which differ only in the repo call and
// the duplicate error
func (h *MoviesHandler) reaction(w http.ResponseWriter, r *http.Request, react func(context.Context, *models.User, uuid.UUID) error, dupErr error, dupMsg string) {
	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	id, ok := movieIDFromPath(w, r)
	if !ok {
		return
	}

	err := react(r.Context(), &user, id)
	if err != nil {
		switch {
		case errors.Is(err, dupErr):
			render.ServiceError(w, dupMsg, http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrMovieNotFound):
			render.ServiceError(w, "Movie not found", http.StatusNotFound)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, messageResponse{Message: "Done"})
}

func (h *MoviesHandler) like(w http.ResponseWriter, r *http.Request) {
	h.reaction(w, r, h.movieService.Like, apperrors.ErrAlreadyLiked, "Movie already liked")
}

func (h *MoviesHandler) dislike(w http.ResponseWriter, r *http.Request) {
	h.reaction(w, r, h.movieService.Dislike, apperrors.ErrAlreadyDisliked, "Movie already disliked")
}

type CommentResponse struct {
	ID        uuid.UUID `json:"id"`
	MovieID   uuid.UUID `json:"movie_id"`
	UserID    uuid.UUID `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *MoviesHandler) addComment(w http.ResponseWriter, r *http.Request) {
	type CommentRequest struct {
		Text string `json:"text" validate:"required,max=1000"`
	}

	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	id, ok := movieIDFromPath(w, r)
	if !ok {
		return
	}

	data, err := render.BindAndValidate[CommentRequest](w, r)
	if err != nil {
		return
	}

	comment, err := h.movieService.AddComment(r.Context(), &user, id, data.Text)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrMovieNotFound):
			render.ServiceError(w, "Movie not found", http.StatusNotFound)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSONWithStatus(w, CommentResponse{
		ID:        comment.ID,
		MovieID:   comment.MovieID,
		UserID:    comment.UserID,
		Text:      comment.Text,
		CreatedAt: comment.CreatedAt,
	}, http.StatusCreated)
}

func (h *MoviesHandler) listComments(w http.ResponseWriter, r *http.Request) {
	id, ok := movieIDFromPath(w, r)
	if !ok {
		return
	}

	comments, err := h.movieService.ListComments(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrMovieNotFound):
			render.ServiceError(w, "Movie not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrCommentNotFound):
			render.ServiceError(w, "No comments for this movie", http.StatusNotFound)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	resp := make([]CommentResponse, 0, len(comments))
	for _, c := range comments {
		resp = append(resp, CommentResponse{
			ID:        c.ID,
			MovieID:   c.MovieID,
			UserID:    c.UserID,
			Text:      c.Text,
			CreatedAt: c.CreatedAt,
		})
	}

	render.JSON(w, resp)
}

func (h *MoviesHandler) answerComment(w http.ResponseWriter, r *http.Request) {
	type AnswerRequest struct {
		Text string `json:"text" validate:"required,max=1000"`
	}
	type AnswerResponse struct {
		ID        uuid.UUID `json:"id"`
		CommentID uuid.UUID `json:"comment_id"`
		UserID    uuid.UUID `json:"user_id"`
		Text      string    `json:"text"`
		CreatedAt time.Time `json:"created_at"`
	}

	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	commentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.ServiceError(w, "Invalid comment id", http.StatusBadRequest)
		return
	}

	data, err := render.BindAndValidate[AnswerRequest](w, r)
	if err != nil {
		return
	}

	answer, err := h.movieService.AnswerComment(r.Context(), &user, commentID, data.Text)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrForbidden):
			render.ServiceError(w, "Moderator rights required", http.StatusForbidden)
		case errors.Is(err, apperrors.ErrCommentNotFound):
			render.ServiceError(w, "Comment not found", http.StatusNotFound)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSONWithStatus(w, AnswerResponse{
		ID:        answer.ID,
		CommentID: answer.CommentID,
		UserID:    answer.UserID,
		Text:      answer.Text,
		CreatedAt: answer.CreatedAt,
	}, http.StatusCreated)
}

type FavoriteRequest struct {
	MovieID uuid.UUID `json:"movie_id" validate:"required"`
}

func (h *MoviesHandler) addFavorite(w http.ResponseWriter, r *http.Request) {
	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	data, err := render.BindAndValidate[FavoriteRequest](w, r)
	if err != nil {
		return
	}

	err = h.movieService.AddFavorite(r.Context(), &user, data.MovieID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrAlreadyFavorite):
			render.ServiceError(w, "Movie is already in favorites", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrMovieNotFound):
			render.ServiceError(w, "Movie not found", http.StatusNotFound)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, messageResponse{Message: "Added to favorites"})
}

func (h *MoviesHandler) removeFavorite(w http.ResponseWriter, r *http.Request) {
	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	data, err := render.BindAndValidate[FavoriteRequest](w, r)
	if err != nil {
		return
	}

	err = h.movieService.RemoveFavorite(r.Context(), &user, data.MovieID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNotFavorite):
			render.ServiceError(w, "Movie is not in favorites", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrMovieNotFound):
			render.ServiceError(w, "Movie not found", http.StatusNotFound)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, messageResponse{Message: "Removed from favorites"})
}

func (h *MoviesHandler) listFavorites(w http.ResponseWriter, r *http.Request) {
	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	filter := filterFromQuery(r.URL.Query())

	movies, total, err := h.movieService.ListFavorites(r.Context(), &user, filter)
	if err != nil {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	renderMovieList(w, r, movies, total, filter)
}

func (h *MoviesHandler) listGenres(w http.ResponseWriter, r *http.Request) {
	type GenreResponse struct {
		Name       string `json:"name"`
		MovieCount int    `json:"movie_count"`
	}

	genres, err := h.movieService.ListGenres(r.Context())
	if err != nil {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := make([]GenreResponse, 0, len(genres))
	for _, g := range genres {
		resp = append(resp, GenreResponse{Name: g.Name, MovieCount: g.MovieCount})
	}

	render.JSON(w, resp)
}

func (h *MoviesHandler) moviesByGenre(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	filter := filterFromQuery(r.URL.Query())

	movies, total, err := h.movieService.MoviesByGenre(r.Context(), name, filter)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrGenreNotFound):
			render.ServiceError(w, "Genre not found", http.StatusNotFound)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	renderMovieList(w, r, movies, total, filter)
}
