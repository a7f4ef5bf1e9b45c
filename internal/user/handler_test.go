package user

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/La-Sectoblique/septotrip-api/internal/middleware"
)

type fakeStore struct {
	users map[int64]*User
}

func (f *fakeStore) Create(_ context.Context, email, hash, first, last string) (*User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return nil, ErrAlreadyExists
		}
	}
	u := &User{ID: int64(len(f.users) + 1), Email: email, PasswordHash: hash, FirstName: first, LastName: last}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeStore) GetByID(_ context.Context, id int64) (*User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, ErrNotFound
}

func (f *fakeStore) GetByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func TestGetMe(t *testing.T) {
	store := &fakeStore{users: map[int64]*User{}}
	svc := NewService(store)
	_, err := svc.Create(context.Background(), "ada@example.com", "hash", "Ada", "Lovelace")
	require.NoError(t, err)
	h := NewHandler(svc)

	t.Run("unauthenticated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.GetMe(rec, httptest.NewRequest(http.MethodGet, "/users/me", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("known user hides password hash", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		req = req.WithContext(middleware.WithUser(req.Context(), 1, "ada@example.com"))
		rec := httptest.NewRecorder()

		h.GetMe(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "hash")
		var env struct {
			Data User `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		assert.Equal(t, "Ada", env.Data.FirstName)
	})

	t.Run("deleted user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		req = req.WithContext(middleware.WithUser(req.Context(), 99, "x@example.com"))
		rec := httptest.NewRecorder()

		h.GetMe(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestGetProfile(t *testing.T) {
	store := &fakeStore{users: map[int64]*User{}}
	svc := NewService(store)
	_, err := svc.Create(context.Background(), "ada@example.com", "hash", "Ada", "Lovelace")
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Get("/users/{userID}", NewHandler(svc).GetProfile)

	t.Run("known user without email", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/1", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "ada@example.com")
		var env struct {
			Data Profile `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		assert.Equal(t, Profile{ID: 1, FirstName: "Ada", LastName: "Lovelace"}, env.Data)
	})

	t.Run("unknown user", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/99", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/abc", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
