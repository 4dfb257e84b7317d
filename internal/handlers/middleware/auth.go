package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/nkbelov/moviestore/internal/handlers/render"
	"github.com/nkbelov/moviestore/internal/handlers/userctx"
	"github.com/nkbelov/moviestore/internal/models"
)

type authService interface {
	Authenticate(ctx context.Context, access string) (models.User, error)
}

// AuthMiddleware resolves the bearer access token to a user and puts it into
// the request context; requests without a valid token get 401
func AuthMiddleware(as authService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			user, err := as.Authenticate(r.Context(), token)
			if err != nil {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := userctx.New(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}
