package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkbelov/moviestore/internal/models"
	"github.com/nkbelov/moviestore/internal/testutil"
)

func Test_CartsHandler(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	createMovie := func(t *testing.T, env testEnv, token string, name string) MovieResponse {
		t.Helper()

		code, body := doJSON(t, http.MethodPost, env.URL+"/movies/", token, movieBody(name, 2005))
		require.Equalf(t, http.StatusCreated, code, "not expected code. Body: %s", body)

		var movie MovieResponse
		require.NoError(t, json.Unmarshal([]byte(body), &movie))
		return movie
	}

	addToCart := func(t *testing.T, env testEnv, token string, movieID uuid.UUID) {
		t.Helper()

		code, body := doJSON(t, http.MethodPost, env.URL+"/carts/", token,
			fmt.Sprintf(`{"movie_id": %q}`, movieID))
		require.Equalf(t, http.StatusCreated, code, "not expected code. Body: %s", body)
	}

	t.Run("every route demands auth", func(t *testing.T) {
		withApp(pg.Pool, t, func(env testEnv) {
			for _, route := range []struct {
				method string
				path   string
			}{
				{http.MethodPost, "/carts/"},
				{http.MethodGet, "/carts/"},
				{http.MethodDelete, "/carts/clear/"},
				{http.MethodDelete, "/carts/" + uuid.NewString() + "/"},
			} {
				code, _ := doJSON(t, route.method, env.URL+route.path, "", "")
				require.Equalf(t, http.StatusUnauthorized, code, "%s %s should demand auth", route.method, route.path)
			}
		})
	})

	t.Run("add and read back", func(t *testing.T) {
		withApp(pg.Pool, t, func(env testEnv) {
			mod := loginAs(t, env, "cart-mod@example.com", models.GroupModerator)
			user := loginAs(t, env, "buyer@example.com", "")
			movie := createMovie(t, env, mod, "In Cart")

			addToCart(t, env, user, movie.ID)

			// Twice is rejected
			code, body := doJSON(t, http.MethodPost, env.URL+"/carts/", user,
				fmt.Sprintf(`{"movie_id": %q}`, movie.ID))
			require.Equalf(t, http.StatusBadRequest, code, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Movie is already in the cart"
				}`, body)

			code, body = doJSON(t, http.MethodGet, env.URL+"/carts/", user, "")
			require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)

			var cart CartResponse
			require.NoError(t, json.Unmarshal([]byte(body), &cart))
			require.Len(t, cart.Items, 1)
			assert.Equal(t, movie.ID, cart.Items[0].MovieID)
			assert.Equal(t, "In Cart", cart.Items[0].Name)
			assert.Equal(t, 2005, cart.Items[0].Year)
		})
	})

	t.Run("unknown movie", func(t *testing.T) {
		withApp(pg.Pool, t, func(env testEnv) {
			user := loginAs(t, env, "nomovie@example.com", "")

			code, body := doJSON(t, http.MethodPost, env.URL+"/carts/", user,
				fmt.Sprintf(`{"movie_id": %q}`, uuid.New()))
			require.Equalf(t, http.StatusBadRequest, code, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Movie not found"
				}`, body)
		})
	})

	t.Run("purchased movie cannot be added again", func(t *testing.T) {
		withApp(pg.Pool, t, func(env testEnv) {
			mod := loginAs(t, env, "owned-mod@example.com", models.GroupModerator)
			user := loginAs(t, env, "owner@example.com", "")
			movie := createMovie(t, env, mod, "Owned")

			owner, err := env.Storage.User().GetUserByEmail(t.Context(), "owner@example.com")
			require.NoError(t, err)

			_, err = env.DB.Exec(t.Context(),
				"INSERT INTO purchases (user_id, movie_id) VALUES ($1, $2)", owner.ID, movie.ID)
			require.NoError(t, err)

			code, body := doJSON(t, http.MethodPost, env.URL+"/carts/", user,
				fmt.Sprintf(`{"movie_id": %q}`, movie.ID))
			require.Equalf(t, http.StatusBadRequest, code, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Movie already purchased"
				}`, body)
		})
	})

	t.Run("only admins read other carts", func(t *testing.T) {
		withApp(pg.Pool, t, func(env testEnv) {
			mod := loginAs(t, env, "peek-mod@example.com", models.GroupModerator)
			owner := loginAs(t, env, "cartowner@example.com", "")
			other := loginAs(t, env, "nosy@example.com", "")
			admin := loginAs(t, env, "admin@example.com", models.GroupAdmin)

			movie := createMovie(t, env, mod, "Private")
			addToCart(t, env, owner, movie.ID)

			ownerUser, err := env.Storage.User().GetUserByEmail(t.Context(), "cartowner@example.com")
			require.NoError(t, err)

			code, body := doJSON(t, http.MethodGet, env.URL+"/carts/?user_id="+ownerUser.ID.String(), other, "")
			require.Equalf(t, http.StatusForbidden, code, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Not your cart"
				}`, body)

			code, body = doJSON(t, http.MethodGet, env.URL+"/carts/?user_id="+ownerUser.ID.String(), admin, "")
			require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)

			var cart CartResponse
			require.NoError(t, json.Unmarshal([]byte(body), &cart))
			assert.Equal(t, ownerUser.ID, cart.UserID)
			require.Len(t, cart.Items, 1)
		})
	})

	t.Run("remove and clear", func(t *testing.T) {
		withApp(pg.Pool, t, func(env testEnv) {
			mod := loginAs(t, env, "clear-mod@example.com", models.GroupModerator)
			user := loginAs(t, env, "clearer@example.com", "")

			first := createMovie(t, env, mod, "First")
			second := createMovie(t, env, mod, "Second")
			addToCart(t, env, user, first.ID)
			addToCart(t, env, user, second.ID)

			code, body := doJSON(t, http.MethodDelete, env.URL+"/carts/"+first.ID.String()+"/", user, "")
			require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)
			require.JSONEq(t, `{"message": "Movie removed from cart"}`, body)

			// Removing again finds nothing
			code, _ = doJSON(t, http.MethodDelete, env.URL+"/carts/"+first.ID.String()+"/", user, "")
			require.Equal(t, http.StatusNotFound, code)

			code, body = doJSON(t, http.MethodDelete, env.URL+"/carts/clear/", user, "")
			require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)
			require.JSONEq(t, `{"message": "Cart cleared"}`, body)

			// Nothing left to clear
			code, body = doJSON(t, http.MethodDelete, env.URL+"/carts/clear/", user, "")
			require.Equalf(t, http.StatusBadRequest, code, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Cart is already empty"
				}`, body)
		})
	})
}
