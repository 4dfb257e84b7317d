package handlers

import (
	"net/http"

	"github.com/nkbelov/moviestore/internal/handlers/middleware"
	"github.com/nkbelov/moviestore/internal/logger"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	authService authService,
	movieService movieService,
	cartService cartService,
	logger logger.Logger,
) http.Handler {
	withAuth := middleware.AuthMiddleware(authService)

	accounts := NewAccounts(authService)
	movies := NewMovies(movieService)
	carts := NewCarts(cartService)

	root := http.NewServeMux()
	root.Handle("/accounts/", http.StripPrefix("/accounts", accounts.Handler(withAuth)))
	root.Handle("/movies/", http.StripPrefix("/movies", movies.Handler(withAuth)))
	root.Handle("/carts/", http.StripPrefix("/carts", withAuth(carts.Handler())))

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}
