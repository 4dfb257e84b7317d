package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nkbelov/moviestore/internal/db"
	"github.com/nkbelov/moviestore/internal/handlers"
	"github.com/nkbelov/moviestore/internal/logger"
	"github.com/nkbelov/moviestore/internal/repository/postgres"
	"github.com/nkbelov/moviestore/internal/service/auth"
	"github.com/nkbelov/moviestore/internal/service/auth/tokenmanager"
	"github.com/nkbelov/moviestore/internal/service/cart"
	"github.com/nkbelov/moviestore/internal/service/movie"
	"github.com/nkbelov/moviestore/internal/service/notifier"
	"github.com/nkbelov/moviestore/internal/service/sweeper"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger   logger.Logger
	notifier *notifier.Notifier
	sweeper  *sweeper.Sweeper
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	var log logger.Logger
	var err error
	if c.LogFormat == "json" {
		log, err = logger.NewJSONLogger(c.LogLevel)
	} else {
		log, err = logger.NewTextLogger(c.LogLevel)
	}
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Outgoing email: real SMTP when configured, log otherwise
	var sender notifier.Sender
	if c.SMTPHost != "" {
		sender, err = notifier.NewSMTPSender(notifier.SMTPConfig{
			Host:     c.SMTPHost,
			Port:     c.SMTPPort,
			Username: c.SMTPUsername,
			Password: c.SMTPPassword,
			From:     c.SMTPFrom,
			FromName: c.SMTPFromName,
			TLS:      c.SMTPTLS,
		})
		if err != nil {
			return nil, fmt.Errorf("error while creating smtp sender. Err: %w", err)
		}
	} else {
		sender = notifier.LogSender{Logger: log}
	}
	mailer := notifier.New(sender, log, notifier.Opts{})

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		AccessSecret:  c.AccessSecret,
		RefreshSecret: c.RefreshSecret,
		AccessTTL:     c.AccessTTL,
		RefreshTTL:    c.RefreshTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	authService, err := auth.NewService(auth.Config{
		ActivationTokenTTL: c.ActivationTTL,
		ResetTokenTTL:      c.ResetTTL,
		PublicBaseURL:      c.PublicBaseURL,
	}, tokenManager, storage, mailer)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	movieService := movie.NewService(storage, mailer)
	cartService := cart.NewService(storage, mailer)

	mux := handlers.NewRouter(authService, movieService, cartService, log)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		logger:     log,
		notifier:   mailer,
		sweeper:    sweeper.New(storage.Activation(), log, c.SweepInterval),
	}, nil
}

// Run starts the background workers and the http server, closing everything
// gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	notifierStopped := s.notifier.Run(srvCtx)
	sweeperStopped := s.sweeper.Run(srvCtx)

	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-notifierStopped
	<-sweeperStopped

	return err
}
