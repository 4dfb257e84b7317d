package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkbelov/moviestore/internal/testutil"
)

func Test_AccountsHandler(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("full account lifecycle", func(t *testing.T) {
		withApp(pg.Pool, t, func(env testEnv) {
			// Register
			code, body := doJSON(t, http.MethodPost, env.URL+"/accounts/register/", "",
				`{"email": "flow@example.com", "password": "Str0ng!Pass"}`)
			require.Equalf(t, http.StatusCreated, code, "not expected code. Body: %s", body)

			var registered struct {
				ID    string `json:"id"`
				Email string `json:"email"`
				Group string `json:"group"`
			}
			require.NoError(t, json.Unmarshal([]byte(body), &registered))
			assert.Equal(t, "flow@example.com", registered.Email)
			assert.Equal(t, "user", registered.Group)
			assert.NotEmpty(t, registered.ID)

			// Same email again conflicts
			code, body = doJSON(t, http.MethodPost, env.URL+"/accounts/register/", "",
				`{"email": "flow@example.com", "password": "0ther!Pass"}`)
			require.Equalf(t, http.StatusConflict, code, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "User already exists"
				}`, body)

			// Login before activation is forbidden
			code, body = doJSON(t, http.MethodPost, env.URL+"/accounts/login/", "",
				`{"email": "flow@example.com", "password": "Str0ng!Pass"}`)
			require.Equalf(t, http.StatusForbidden, code, "not expected code. Body: %s", body)

			// Wrong activation token
			code, body = doJSON(t, http.MethodPost, env.URL+"/accounts/activate/", "",
				`{"token": "nope"}`)
			require.Equalf(t, http.StatusBadRequest, code, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Invalid or expired activation token"
				}`, body)

			// The emailed token activates the account
			token := env.Notifier.activationToken(t, "flow@example.com")
			code, body = doJSON(t, http.MethodPost, env.URL+"/accounts/activate/", "",
				fmt.Sprintf(`{"token": %q}`, token))
			require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)
			require.JSONEq(t, `{"message": "Account activated"}`, body)

			// Login issues both tokens
			code, body = doJSON(t, http.MethodPost, env.URL+"/accounts/login/", "",
				`{"email": "flow@example.com", "password": "Str0ng!Pass"}`)
			require.Equalf(t, http.StatusCreated, code, "not expected code. Body: %s", body)

			var tokens struct {
				AccessToken  string `json:"access_token"`
				RefreshToken string `json:"refresh_token"`
				TokenType    string `json:"token_type"`
			}
			require.NoError(t, json.Unmarshal([]byte(body), &tokens))
			assert.NotEmpty(t, tokens.AccessToken)
			assert.NotEmpty(t, tokens.RefreshToken)
			assert.Equal(t, "bearer", tokens.TokenType)

			// Logout revokes the session
			code, body = doJSON(t, http.MethodPost, env.URL+"/accounts/logout/", tokens.AccessToken, "")
			require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)
			require.JSONEq(t, `{"message": "Logged out"}`, body)

			// Second logout has no session left
			code, body = doJSON(t, http.MethodPost, env.URL+"/accounts/logout/", tokens.AccessToken, "")
			require.Equalf(t, http.StatusUnauthorized, code, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "No active session"
				}`, body)
		})
	})

	t.Run("register validation", func(t *testing.T) {
		withApp(pg.Pool, t, func(env testEnv) {
			// Not an email, and the password has no digits
			code, body := doJSON(t, http.MethodPost, env.URL+"/accounts/register/", "",
				`{"email": "not-an-email", "password": "weakpassword"}`)

			require.Equalf(t, http.StatusBadRequest, code, "not expected code. Body: %s", body)

			var resp struct {
				Error  string            `json:"error"`
				Fields map[string]string `json:"fields"`
			}
			require.NoError(t, json.Unmarshal([]byte(body), &resp))
			assert.Equal(t, "validation_failed", resp.Error)
			assert.Contains(t, resp.Fields, "email")
			assert.Contains(t, resp.Fields, "password")
		})
	})

	t.Run("login with wrong credentials", func(t *testing.T) {
		withApp(pg.Pool, t, func(env testEnv) {
			loginAs(t, env, "creds@example.com", "")

			for _, payload := range []string{
				`{"email": "creds@example.com", "password": "Wr0ng!Pass"}`,
				`{"email": "ghost@example.com", "password": "Str0ng!Pass"}`,
			} {
				code, body := doJSON(t, http.MethodPost, env.URL+"/accounts/login/", "", payload)
				require.Equalf(t, http.StatusUnauthorized, code, "not expected code. Body: %s", body)
				require.JSONEq(t, `
					{
						"error": "service_error",
						"message": "Invalid email or password"
					}`, body)
			}
		})
	})

	t.Run("refresh rotates and rejects replay", func(t *testing.T) {
		withApp(pg.Pool, t, func(env testEnv) {
			loginAs(t, env, "refresh@example.com", "")

			pair, err := env.Auth.Login(t.Context(), "refresh@example.com", "Str0ng!Pass")
			require.NoError(t, err)

			payload := fmt.Sprintf(`{"refresh_token": %q}`, pair.Refresh.Value)

			code, body := doJSON(t, http.MethodPost, env.URL+"/accounts/refresh/", "", payload)
			require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)

			var resp struct {
				AccessToken string `json:"access_token"`
				TokenType   string `json:"token_type"`
			}
			require.NoError(t, json.Unmarshal([]byte(body), &resp))
			assert.NotEmpty(t, resp.AccessToken)
			assert.Equal(t, "bearer", resp.TokenType)

			// The consumed token does not work twice
			code, body = doJSON(t, http.MethodPost, env.URL+"/accounts/refresh/", "", payload)
			require.Equalf(t, http.StatusUnauthorized, code, "not expected code. Body: %s", body)

			// Garbage is rejected before the store is touched
			code, body = doJSON(t, http.MethodPost, env.URL+"/accounts/refresh/", "",
				`{"refresh_token": "garbage"}`)
			require.Equalf(t, http.StatusBadRequest, code, "not expected code. Body: %s", body)
		})
	})

	t.Run("password reset flow", func(t *testing.T) {
		withApp(pg.Pool, t, func(env testEnv) {
			loginAs(t, env, "reset@example.com", "")

			// The same answer no matter whether the account exists
			for _, email := range []string{"reset@example.com", "ghost@example.com"} {
				code, body := doJSON(t, http.MethodPost, env.URL+"/accounts/password-reset/request/", "",
					fmt.Sprintf(`{"email": %q}`, email))
				require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)
				require.JSONEq(t, `{"message": "If the account exists, a reset email was sent"}`, body)
			}

			// A wrong token changes nothing
			code, body := doJSON(t, http.MethodPost, env.URL+"/accounts/password-reset/complete/", "",
				`{"email": "reset@example.com", "token": "guessed", "password": "Fresh!Pass1"}`)
			require.Equalf(t, http.StatusBadRequest, code, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Invalid email or token"
				}`, body)

			// Request again since the failed attempt burned the stored token
			code, body = doJSON(t, http.MethodPost, env.URL+"/accounts/password-reset/request/", "",
				`{"email": "reset@example.com"}`)
			require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)

			token := env.Notifier.resetToken(t, "reset@example.com")

			code, body = doJSON(t, http.MethodPost, env.URL+"/accounts/password-reset/complete/", "",
				fmt.Sprintf(`{"email": "reset@example.com", "token": %q, "password": "Fresh!Pass1"}`, token))
			require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)
			require.JSONEq(t, `{"message": "Password updated"}`, body)

			// Only the new password logs in
			_, err := env.Auth.Login(t.Context(), "reset@example.com", "Fresh!Pass1")
			require.NoError(t, err)
			_, err = env.Auth.Login(t.Context(), "reset@example.com", "Str0ng!Pass")
			require.Error(t, err)
		})
	})

	t.Run("change password", func(t *testing.T) {
		withApp(pg.Pool, t, func(env testEnv) {
			access := loginAs(t, env, "change@example.com", "")

			code, body := doJSON(t, http.MethodPost, env.URL+"/accounts/change-password/", access,
				`{"current_password": "Wr0ng!Pass", "new_password": "Fresh!Pass1"}`)
			require.Equalf(t, http.StatusBadRequest, code, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Current password is wrong"
				}`, body)

			code, body = doJSON(t, http.MethodPost, env.URL+"/accounts/change-password/", access,
				`{"current_password": "Str0ng!Pass", "new_password": "Fresh!Pass1"}`)
			require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)
			require.JSONEq(t, `{"message": "Password changed"}`, body)

			_, err := env.Auth.Login(t.Context(), "change@example.com", "Fresh!Pass1")
			require.NoError(t, err)
		})
	})

	t.Run("protected routes demand a valid token", func(t *testing.T) {
		withApp(pg.Pool, t, func(env testEnv) {
			code, _ := doJSON(t, http.MethodPost, env.URL+"/accounts/logout/", "", "")
			require.Equal(t, http.StatusUnauthorized, code)

			code, _ = doJSON(t, http.MethodPost, env.URL+"/accounts/logout/", "not-a-jwt", "")
			require.Equal(t, http.StatusUnauthorized, code)
		})
	})
}
