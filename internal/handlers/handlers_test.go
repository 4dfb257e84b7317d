package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/nkbelov/moviestore/internal/logger"
	"github.com/nkbelov/moviestore/internal/repository"
	"github.com/nkbelov/moviestore/internal/repository/postgres"
	"github.com/nkbelov/moviestore/internal/service/auth"
	"github.com/nkbelov/moviestore/internal/service/auth/tokenmanager"
	"github.com/nkbelov/moviestore/internal/service/cart"
	"github.com/nkbelov/moviestore/internal/service/movie"
	"github.com/nkbelov/moviestore/internal/testutil"
)

// recordingNotifier satisfies the notifier interfaces of every service and
// keeps what was sent so tests can drive email flows
type recordingNotifier struct {
	mu              sync.Mutex
	activationLinks map[string]string
	resetLinks      map[string]string
	changedEmails   []string
	answered        []string
	removedMovies   []string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		activationLinks: map[string]string{},
		resetLinks:      map[string]string{},
	}
}

func (n *recordingNotifier) SendActivationEmail(email string, link string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.activationLinks[email] = link
}

func (n *recordingNotifier) SendPasswordResetEmail(email string, link string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resetLinks[email] = link
}

func (n *recordingNotifier) SendPasswordChanged(email string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changedEmails = append(n.changedEmails, email)
}

func (n *recordingNotifier) SendCommentAnswer(email string, movieName string, answer string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.answered = append(n.answered, email)
}

func (n *recordingNotifier) SendMovieRemovedFromCarts(emails []string, movieName string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.removedMovies = append(n.removedMovies, movieName)
}

func (n *recordingNotifier) activationToken(t *testing.T, email string) string {
	t.Helper()

	n.mu.Lock()
	link := n.activationLinks[email]
	n.mu.Unlock()

	_, token, found := strings.Cut(link, "token=")
	require.Truef(t, found, "no activation link recorded for %s", email)
	return token
}

func (n *recordingNotifier) resetToken(t *testing.T, email string) string {
	t.Helper()

	n.mu.Lock()
	link := n.resetLinks[email]
	n.mu.Unlock()

	_, token, found := strings.Cut(link, "token=")
	require.Truef(t, found, "no reset link recorded for %s", email)
	return token
}

type testEnv struct {
	URL      string
	DB       pgx.Tx
	Auth     *auth.AuthService
	Storage  repository.Storage
	Notifier *recordingNotifier
}

// withApp runs the full router over a rolled-back transaction.
// Production services are used end to end; only email delivery is recorded
// instead of sent.
func withApp(dbpool *pgxpool.Pool, t *testing.T, fn func(env testEnv)) {
	testutil.WithTx(dbpool, t, func(tx pgx.Tx) {
		storage := postgres.NewStorage(tx)
		notifier := newRecordingNotifier()

		tokenManager, err := tokenmanager.New(tokenmanager.Config{
			AccessSecret:  "test-access-secret",
			RefreshSecret: "test-refresh-secret",
		})
		require.NoError(t, err, "token manager should be created without errors")

		authService, err := auth.NewService(auth.Config{}, tokenManager, storage, notifier)
		require.NoError(t, err, "auth service starting error")

		movieService := movie.NewService(storage, notifier)
		cartService := cart.NewService(storage, notifier)

		router := NewRouter(authService, movieService, cartService, logger.NewNoOpLogger())
		srv := httptest.NewServer(router)
		defer srv.Close()

		fn(testEnv{
			URL:      srv.URL,
			DB:       tx,
			Auth:     authService,
			Storage:  storage,
			Notifier: notifier,
		})
	})
}

// doJSON fires a request with an optional bearer token and returns the
// status code and body
func doJSON(t *testing.T, method string, url string, token string, body string) (int, string) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(raw)
}

// loginAs registers and activates an account in the given group, then logs
// in and returns the access token
func loginAs(t *testing.T, env testEnv, email string, group string) string {
	t.Helper()

	const password = "Str0ng!Pass"

	_, err := env.Auth.Register(t.Context(), email, password, group)
	require.NoError(t, err)
	require.NoError(t, env.Auth.Activate(t.Context(), env.Notifier.activationToken(t, email)))

	pair, err := env.Auth.Login(t.Context(), email, password)
	require.NoError(t, err)

	return pair.Access.Value
}
