package postgres

import (
	"context"
	"fmt"

	"github.com/nkbelov/moviestore/internal/repository"
)

type Storage struct {
	db DBTX
}

func NewStorage(db DBTX) repository.Storage {
	return &Storage{db: db}
}

func (s *Storage) User() repository.UserRepo {
	return &UserRepo{DB: s.db}
}

func (s *Storage) Activation() repository.ActivationTokenRepo {
	return &ActivationTokenRepo{DB: s.db}
}

func (s *Storage) Reset() repository.ResetTokenRepo {
	return &ResetTokenRepo{DB: s.db}
}

func (s *Storage) Refresh() repository.RefreshTokenRepo {
	return &RefreshTokenRepo{DB: s.db}
}

func (s *Storage) Movie() repository.MovieRepo {
	return &MovieRepo{DB: s.db}
}

func (s *Storage) Cart() repository.CartRepo {
	return &CartRepo{DB: s.db}
}

func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("db tx error: %w", err)
	}

	defer func() {
		switch err {
		case nil:
			err = tx.Commit(ctx)
		default:
			_ = tx.Rollback(ctx)
		}
	}()

	err = fn(NewStorage(tx))

	return err
}
