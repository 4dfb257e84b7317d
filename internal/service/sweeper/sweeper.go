package sweeper

import (
	"context"
	"time"

	"github.com/nkbelov/moviestore/internal/logger"
	"github.com/nkbelov/moviestore/internal/repository"
)

const defaultInterval = 1 * time.Hour

// Sweeper periodically removes expired activation tokens. Reset tokens are
// replaced on request and refresh tokens are deleted on use, so neither
// needs sweeping.
type Sweeper struct {
	tokens   repository.ActivationTokenRepo
	logger   logger.Logger
	interval time.Duration
}

func New(tokens repository.ActivationTokenRepo, logger logger.Logger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = defaultInterval
	}

	return &Sweeper{
		tokens:   tokens,
		logger:   logger,
		interval: interval,
	}
}

// Sweep removes every expired token in one statement
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	return s.tokens.DeleteExpired(ctx)
}

// Run sweeps on a ticker until ctx is done. A failed sweep is logged and the
// loop keeps going. The returned channel is closed when the loop stops.
func (s *Sweeper) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})
	s.logger.Debug("Starting token sweeper", "interval", s.interval)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Debug("Token sweeper stopped by context")
				return

			case <-ticker.C:
				count, err := s.Sweep(ctx)
				if err != nil {
					s.logger.Error("Failed to sweep expired tokens", "error", err)
					continue
				}
				if count > 0 {
					s.logger.Info("Swept expired activation tokens", "count", count)
				}
			}
		}
	}()

	return idleStopped
}
