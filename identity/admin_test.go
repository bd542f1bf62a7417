package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAdminListUsers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/auth/v1/admin/users", r.URL.Path)
		assert.Equal(t, "service-role-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-role-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"users": [{"id": "u1", "email": "a@example.com"}, {"id": "u2", "email": "b@example.com"}]}`))
	}))
	defer srv.Close()

	a := NewAdmin(srv.URL, "service-role-key", zap.NewNop())
	users, err := a.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "u1", users[0].ID)
	assert.Equal(t, "b@example.com", users[1].Email)
}

func TestAdminCreateUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/v1/admin/users", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "new@example.com", body["email"])
		assert.Equal(t, true, body["email_confirm"])
		assert.Equal(t, map[string]any{"full_name": "新同事"}, body["user_metadata"])
		assert.Equal(t, map[string]any{"role": "admin"}, body["app_metadata"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "u3", "email": "new@example.com", "app_metadata": {"role": "admin"}}`))
	}))
	defer srv.Close()

	a := NewAdmin(srv.URL, "service-role-key", zap.NewNop())
	user, err := a.CreateUser(context.Background(), CreateUserParams{
		Email:    "new@example.com",
		Password: "secret",
		Role:     "admin",
		Name:     "新同事",
	})
	require.NoError(t, err)
	assert.Equal(t, "u3", user.ID)
	assert.True(t, user.IsAdmin())
}

func TestAdminUpdateUserOnlySendsProvidedFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/auth/v1/admin/users/u1", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"role": "admin"}, body["app_metadata"])
		assert.NotContains(t, body, "email")
		assert.NotContains(t, body, "password")
		assert.NotContains(t, body, "user_metadata")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "u1", "app_metadata": {"role": "admin"}}`))
	}))
	defer srv.Close()

	role := "admin"
	a := NewAdmin(srv.URL, "service-role-key", zap.NewNop())
	user, err := a.UpdateUser(context.Background(), "u1", UpdateUserParams{Role: &role})
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Role())
}

func TestAdminDeleteUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/auth/v1/admin/users/u1", r.URL.Path)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	a := NewAdmin(srv.URL, "service-role-key", zap.NewNop())
	require.NoError(t, a.DeleteUser(context.Background(), "u1"))
}

func TestAdminGetUserNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"msg": "User not found"}`))
	}))
	defer srv.Close()

	a := NewAdmin(srv.URL, "service-role-key", zap.NewNop())
	_, err := a.GetUser(context.Background(), "nope")

	var identityErr *Error
	require.ErrorAs(t, err, &identityErr)
	assert.Equal(t, http.StatusNotFound, identityErr.StatusCode)
	assert.Equal(t, "User not found", identityErr.Message)
}
