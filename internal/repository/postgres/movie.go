package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkbelov/moviestore/internal/apperrors"
	"github.com/nkbelov/moviestore/internal/models"
	"github.com/nkbelov/moviestore/internal/repository"
)

type MovieRepo struct {
	DB DBTX
}

// movieColumns is shared by GetByID and List; the array_agg subqueries pull
// the linked names in one round trip
const movieColumns = `
	m.id, m.name, m.year, m.time, m.imdb, m.votes, m.meta_score, m.gross,
	m.description, m.price, m.rating, COALESCE(c.name, ''), m.created_at,
	COALESCE((SELECT array_agg(g.name ORDER BY g.name)
		FROM movie_genres mg JOIN genres g ON g.id = mg.genre_id
		WHERE mg.movie_id = m.id), '{}'),
	COALESCE((SELECT array_agg(d.name ORDER BY d.name)
		FROM movie_directors md JOIN directors d ON d.id = md.director_id
		WHERE md.movie_id = m.id), '{}'),
	COALESCE((SELECT array_agg(s.name ORDER BY s.name)
		FROM movie_stars ms JOIN stars s ON s.id = ms.star_id
		WHERE ms.movie_id = m.id), '{}')`

const movieFrom = `
FROM movies m
LEFT JOIN certifications c ON c.id = m.certification_id`

const upsertNamedRow = `
INSERT INTO %s (id, name)
VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id
`

// get-or-create for certifications, genres, directors and stars, which all
// share the (id, name) shape
func (r *MovieRepo) upsertNamed(ctx context.Context, table string, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.DB.QueryRow(ctx, fmt.Sprintf(upsertNamedRow, table), uuid.New(), name).Scan(&id)
	if err != nil {
		return id, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

const insertMovie = `-- name: InsertMovie
INSERT INTO movies (id, name, year, time, imdb, votes, meta_score, gross, description, price, certification_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id, created_at
`

func (r *MovieRepo) Create(ctx context.Context, movie models.Movie) (models.Movie, error) {
	var certID *uuid.UUID
	if movie.Certification != "" {
		id, err := r.upsertNamed(ctx, "certifications", movie.Certification)
		if err != nil {
			return movie, err
		}
		certID = &id
	}

	movieID := uuid.New()
	err := r.DB.QueryRow(ctx, insertMovie,
		movieID, movie.Name, movie.Year, movie.Time, movie.IMDb, movie.Votes,
		movie.MetaScore, movie.Gross, movie.Description, movie.Price, certID,
	).Scan(&movie.ID, &movie.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return movie, apperrors.ErrMovieAlreadyExists
		}
		return movie, fmt.Errorf("db error: %w", err)
	}

	links := []struct {
		table     string
		linkTable string
		linkCol   string
		names     []string
	}{
		{"genres", "movie_genres", "genre_id", movie.Genres},
		{"directors", "movie_directors", "director_id", movie.Directors},
		{"stars", "movie_stars", "star_id", movie.Stars},
	}
	for _, l := range links {
		for _, name := range l.names {
			id, err := r.upsertNamed(ctx, l.table, name)
			if err != nil {
				return movie, err
			}

			link := fmt.Sprintf("INSERT INTO %s (movie_id, %s) VALUES ($1, $2) ON CONFLICT DO NOTHING", l.linkTable, l.linkCol)
			if _, err := r.DB.Exec(ctx, link, movie.ID, id); err != nil {
				return movie, fmt.Errorf("db error: %w", err)
			}
		}
	}

	return r.GetByID(ctx, movie.ID)
}

func (r *MovieRepo) GetByID(ctx context.Context, movieID uuid.UUID) (models.Movie, error) {
	rows, _ := r.DB.Query(ctx, "SELECT"+movieColumns+movieFrom+" WHERE m.id = $1", movieID)
	movie, err := pgx.CollectOneRow(rows, rowToMovie)

	switch {
	case err == nil:
		return movie, nil
	case errors.Is(err, pgx.ErrNoRows):
		return movie, apperrors.ErrMovieNotFound
	default:
		return movie, fmt.Errorf("db error: %w", err)
	}
}

// List builds the WHERE clause from the filter; every condition goes through
// a placeholder, never string concatenation of user input
func (r *MovieRepo) List(ctx context.Context, f models.MovieFilter) ([]models.Movie, int, error) {
	var conds []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Year != 0 {
		conds = append(conds, "m.year = "+arg(f.Year))
	}
	if f.MinIMDb != 0 {
		conds = append(conds, "m.imdb >= "+arg(f.MinIMDb))
	}
	if f.MaxIMDb != 0 {
		conds = append(conds, "m.imdb <= "+arg(f.MaxIMDb))
	}
	if f.Genre != "" {
		conds = append(conds, `EXISTS (
			SELECT 1 FROM movie_genres mg JOIN genres g ON g.id = mg.genre_id
			WHERE mg.movie_id = m.id AND g.name ILIKE '%' || `+arg(f.Genre)+` || '%')`)
	}
	if f.Director != "" {
		conds = append(conds, `EXISTS (
			SELECT 1 FROM movie_directors md JOIN directors d ON d.id = md.director_id
			WHERE md.movie_id = m.id AND d.name ILIKE '%' || `+arg(f.Director)+` || '%')`)
	}
	if f.Star != "" {
		conds = append(conds, `EXISTS (
			SELECT 1 FROM movie_stars ms JOIN stars s ON s.id = ms.star_id
			WHERE ms.movie_id = m.id AND s.name ILIKE '%' || `+arg(f.Star)+` || '%')`)
	}
	if f.Search != "" {
		p := arg(f.Search)
		conds = append(conds, `(
			m.name ILIKE '%' || `+p+` || '%'
			OR m.description ILIKE '%' || `+p+` || '%'
			OR EXISTS (
				SELECT 1 FROM movie_directors md JOIN directors d ON d.id = md.director_id
				WHERE md.movie_id = m.id AND d.name ILIKE '%' || `+p+` || '%')
			OR EXISTS (
				SELECT 1 FROM movie_stars ms JOIN stars s ON s.id = ms.star_id
				WHERE ms.movie_id = m.id AND s.name ILIKE '%' || `+p+` || '%'))`)
	}
	if f.FavoritesOf != uuid.Nil {
		conds = append(conds, `EXISTS (
			SELECT 1 FROM favorites fav
			WHERE fav.movie_id = m.id AND fav.user_id = `+arg(f.FavoritesOf)+`)`)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	err := r.DB.QueryRow(ctx, "SELECT count(*)"+movieFrom+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	// Sort keys are whitelisted; anything else falls back to name order
	orderBy := " ORDER BY m.name, m.year"
	switch f.SortBy {
	case "price":
		orderBy = " ORDER BY m.price DESC"
	case "year":
		orderBy = " ORDER BY m.year DESC"
	case "votes":
		orderBy = " ORDER BY m.votes DESC"
	}

	limit := ""
	if f.PerPage > 0 {
		offset := 0
		if f.Page > 1 {
			offset = (f.Page - 1) * f.PerPage
		}
		limit = fmt.Sprintf(" LIMIT %d OFFSET %d", f.PerPage, offset)
	}

	rows, _ := r.DB.Query(ctx, "SELECT"+movieColumns+movieFrom+where+orderBy+limit, args...)
	movies, err := pgx.CollectRows(rows, rowToMovie)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	return movies, total, nil
}

func (r *MovieRepo) Update(ctx context.Context, movieID uuid.UUID, patch repository.MovieUpdate) (models.Movie, error) {
	var sets []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if patch.Name != nil {
		sets = append(sets, "name = "+arg(*patch.Name))
	}
	if patch.Year != nil {
		sets = append(sets, "year = "+arg(*patch.Year))
	}
	if patch.Time != nil {
		sets = append(sets, "time = "+arg(*patch.Time))
	}
	if patch.IMDb != nil {
		sets = append(sets, "imdb = "+arg(*patch.IMDb))
	}
	if patch.MetaScore != nil {
		sets = append(sets, "meta_score = "+arg(*patch.MetaScore))
	}
	if patch.Gross != nil {
		sets = append(sets, "gross = "+arg(*patch.Gross))
	}
	if patch.Description != nil {
		sets = append(sets, "description = "+arg(*patch.Description))
	}
	if patch.Price != nil {
		sets = append(sets, "price = "+arg(*patch.Price))
	}

	if len(sets) == 0 {
		return r.GetByID(ctx, movieID)
	}

	query := "UPDATE movies SET " + strings.Join(sets, ", ") + " WHERE id = " + arg(movieID) + " RETURNING id"
	var id uuid.UUID
	err := r.DB.QueryRow(ctx, query, args...).Scan(&id)

	switch {
	case err == nil:
		return r.GetByID(ctx, movieID)
	case errors.Is(err, pgx.ErrNoRows):
		return models.Movie{}, apperrors.ErrMovieNotFound
	case isUniqueViolation(err):
		return models.Movie{}, apperrors.ErrMovieAlreadyExists
	default:
		return models.Movie{}, fmt.Errorf("db error: %w", err)
	}
}

func (r *MovieRepo) Delete(ctx context.Context, movieID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, "DELETE FROM movies WHERE id = $1", movieID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrMovieNotFound
	}
	return nil
}

const rateMovie = `-- name: RateMovie
UPDATE movies
SET votes  = votes + 1,
    rating = round(((rating * votes + $2) / (votes + 1))::numeric, 1)::double precision
WHERE id = $1
RETURNING id
`

// Rate folds one vote into the running average; both SET expressions read the
// pre-update column values
func (r *MovieRepo) Rate(ctx context.Context, movieID uuid.UUID, rating int) (models.Movie, error) {
	var id uuid.UUID
	err := r.DB.QueryRow(ctx, rateMovie, movieID, rating).Scan(&id)

	switch {
	case err == nil:
		return r.GetByID(ctx, movieID)
	case errors.Is(err, pgx.ErrNoRows):
		return models.Movie{}, apperrors.ErrMovieNotFound
	default:
		return models.Movie{}, fmt.Errorf("db error: %w", err)
	}
}

func (r *MovieRepo) Like(ctx context.Context, userID uuid.UUID, movieID uuid.UUID) error {
	return r.insertReaction(ctx, "likes", userID, movieID, apperrors.ErrAlreadyLiked)
}

func (r *MovieRepo) Dislike(ctx context.Context, userID uuid.UUID, movieID uuid.UUID) error {
	return r.insertReaction(ctx, "dislikes", userID, movieID, apperrors.ErrAlreadyDisliked)
}

func (r *MovieRepo) AddFavorite(ctx context.Context, userID uuid.UUID, movieID uuid.UUID) error {
	return r.insertReaction(ctx, "favorites", userID, movieID, apperrors.ErrAlreadyFavorite)
}

func (r *MovieRepo) insertReaction(ctx context.Context, table string, userID, movieID uuid.UUID, dupErr error) error {
	query := fmt.Sprintf("INSERT INTO %s (user_id, movie_id) VALUES ($1, $2)", table)
	_, err := r.DB.Exec(ctx, query, userID, movieID)

	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return dupErr
	case isForeignKeyViolation(err):
		return apperrors.ErrMovieNotFound
	default:
		return fmt.Errorf("db error: %w", err)
	}
}

func (r *MovieRepo) RemoveFavorite(ctx context.Context, userID uuid.UUID, movieID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, "DELETE FROM favorites WHERE user_id = $1 AND movie_id = $2", userID, movieID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFavorite
	}
	return nil
}

const addComment = `-- name: AddComment
INSERT INTO comments (id, movie_id, user_id, comment)
VALUES ($1, $2, $3, $4)
RETURNING id, movie_id, user_id, comment, created_at
`

func (r *MovieRepo) AddComment(ctx context.Context, movieID uuid.UUID, userID uuid.UUID, text string) (models.Comment, error) {
	rows, _ := r.DB.Query(ctx, addComment, uuid.New(), movieID, userID, text)
	comment, err := pgx.CollectOneRow(rows, rowToComment)

	switch {
	case err == nil:
		return comment, nil
	case isForeignKeyViolation(err):
		return comment, apperrors.ErrMovieNotFound
	default:
		return comment, fmt.Errorf("db error: %w", err)
	}
}

const listComments = `-- name: ListComments
SELECT id, movie_id, user_id, comment, created_at
FROM comments
WHERE movie_id = $1
ORDER BY created_at
`

func (r *MovieRepo) ListComments(ctx context.Context, movieID uuid.UUID) ([]models.Comment, error) {
	rows, _ := r.DB.Query(ctx, listComments, movieID)
	comments, err := pgx.CollectRows(rows, rowToComment)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return comments, nil
}

const getComment = `-- name: GetComment
SELECT id, movie_id, user_id, comment, created_at
FROM comments
WHERE id = $1
`

func (r *MovieRepo) GetComment(ctx context.Context, commentID uuid.UUID) (models.Comment, error) {
	rows, _ := r.DB.Query(ctx, getComment, commentID)
	comment, err := pgx.CollectOneRow(rows, rowToComment)

	switch {
	case err == nil:
		return comment, nil
	case errors.Is(err, pgx.ErrNoRows):
		return comment, apperrors.ErrCommentNotFound
	default:
		return comment, fmt.Errorf("db error: %w", err)
	}
}

const addAnswer = `-- name: AddAnswer
INSERT INTO comment_answers (id, comment_id, user_id, answer)
VALUES ($1, $2, $3, $4)
RETURNING id, comment_id, user_id, answer, created_at
`

func (r *MovieRepo) AddAnswer(ctx context.Context, commentID uuid.UUID, userID uuid.UUID, text string) (models.CommentAnswer, error) {
	var a models.CommentAnswer
	err := r.DB.QueryRow(ctx, addAnswer, uuid.New(), commentID, userID, text).
		Scan(&a.ID, &a.CommentID, &a.UserID, &a.Text, &a.CreatedAt)

	switch {
	case err == nil:
		return a, nil
	case isForeignKeyViolation(err):
		return a, apperrors.ErrCommentNotFound
	default:
		return a, fmt.Errorf("db error: %w", err)
	}
}

const listGenres = `-- name: ListGenres
SELECT g.name, count(mg.movie_id)
FROM genres g
JOIN movie_genres mg ON mg.genre_id = g.id
GROUP BY g.id, g.name
ORDER BY g.name
`

func (r *MovieRepo) ListGenres(ctx context.Context) ([]models.GenreCount, error) {
	rows, _ := r.DB.Query(ctx, listGenres)
	genres, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.GenreCount, error) {
		var g models.GenreCount
		err := row.Scan(&g.Name, &g.MovieCount)
		return g, err
	})
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return genres, nil
}

func (r *MovieRepo) GenreByName(ctx context.Context, name string) (string, error) {
	var canonical string
	err := r.DB.QueryRow(ctx, "SELECT name FROM genres WHERE name ILIKE $1", name).Scan(&canonical)

	switch {
	case err == nil:
		return canonical, nil
	case errors.Is(err, pgx.ErrNoRows):
		return "", apperrors.ErrGenreNotFound
	default:
		return "", fmt.Errorf("db error: %w", err)
	}
}

func rowToMovie(row pgx.CollectableRow) (models.Movie, error) {
	var m models.Movie
	err := row.Scan(
		&m.ID, &m.Name, &m.Year, &m.Time, &m.IMDb, &m.Votes, &m.MetaScore, &m.Gross,
		&m.Description, &m.Price, &m.Rating, &m.Certification, &m.CreatedAt,
		&m.Genres, &m.Directors, &m.Stars,
	)
	return m, err
}

func rowToComment(row pgx.CollectableRow) (models.Comment, error) {
	var c models.Comment
	err := row.Scan(&c.ID, &c.MovieID, &c.UserID, &c.Text, &c.CreatedAt)
	return c, err
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}
