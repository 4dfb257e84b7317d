package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Movie struct {
	ID            uuid.UUID
	Name          string
	Year          int
	Time          int // runtime in minutes
	IMDb          float64
	Votes         int
	MetaScore     *float64
	Gross         *float64
	Description   string
	Price         decimal.Decimal
	Rating        float64 // aggregate user rating on a 10-point scale
	Certification string
	Genres        []string
	Directors     []string
	Stars         []string
	CreatedAt     time.Time
}

type Comment struct {
	ID        uuid.UUID
	MovieID   uuid.UUID
	UserID    uuid.UUID
	Text      string
	CreatedAt time.Time
}

type CommentAnswer struct {
	ID        uuid.UUID
	CommentID uuid.UUID
	UserID    uuid.UUID
	Text      string
	CreatedAt time.Time
}

type GenreCount struct {
	Name       string
	MovieCount int
}

// MovieFilter narrows and orders catalog listings. Zero values mean "no
// constraint".
type MovieFilter struct {
	Year     int
	MinIMDb  float64
	MaxIMDb  float64
	Genre    string
	Director string
	Star     string
	Search   string
	SortBy   string // one of "price", "year", "votes"

	// FavoritesOf limits the listing to one user's favorites
	FavoritesOf uuid.UUID

	Page    int
	PerPage int
}
