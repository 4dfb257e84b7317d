package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Cart struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Items  []CartItem
}

type CartItem struct {
	MovieID uuid.UUID
	Name    string
	Price   decimal.Decimal
	Year    int
	Genres  []string
	AddedAt time.Time
}
