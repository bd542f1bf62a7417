package adminapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nullashop.io/shop/identity"
	"nullashop.io/shop/models"
)

type mockDirectory struct {
	users       []*models.User
	created     *identity.CreateUserParams
	updatedID   string
	updated     *identity.UpdateUserParams
	deletedID   string
	getUserErr  error
	returnedErr error
}

func (m *mockDirectory) ListUsers(ctx context.Context) ([]*models.User, error) {
	return m.users, m.returnedErr
}

func (m *mockDirectory) CreateUser(ctx context.Context, params identity.CreateUserParams) (*models.User, error) {
	if m.returnedErr != nil {
		return nil, m.returnedErr
	}
	m.created = &params
	return &models.User{ID: "new-id", Email: params.Email}, nil
}

func (m *mockDirectory) UpdateUser(ctx context.Context, id string, params identity.UpdateUserParams) (*models.User, error) {
	if m.returnedErr != nil {
		return nil, m.returnedErr
	}
	m.updatedID = id
	m.updated = &params
	return &models.User{ID: id}, nil
}

func (m *mockDirectory) DeleteUser(ctx context.Context, id string) error {
	m.deletedID = id
	return m.returnedErr
}

func (m *mockDirectory) GetUser(ctx context.Context, id string) (*models.User, error) {
	if m.getUserErr != nil {
		return nil, m.getUserErr
	}
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, &identity.Error{StatusCode: http.StatusNotFound, Message: "User not found"}
}

func newTestRouter(dir Directory) http.Handler {
	return NewRouter(dir, zap.NewNop())
}

func TestPing(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	newTestRouter(&mockDirectory{}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "pong", body["message"])
}

func TestListUsers(t *testing.T) {
	dir := &mockDirectory{users: []*models.User{
		{ID: "u1", Email: "a@example.com"},
		{ID: "u2", Email: "b@example.com"},
	}}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	newTestRouter(dir).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Users []*models.User `json:"users"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Users, 2)
	assert.Equal(t, "u1", body.Users[0].ID)
}

func TestCreateUser(t *testing.T) {
	dir := &mockDirectory{}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/admin/users",
		strings.NewReader(`{"email": "new@example.com", "password": "secret", "role": "admin", "name": "新同事"}`))
	newTestRouter(dir).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, dir.created)
	assert.Equal(t, "new@example.com", dir.created.Email)
	assert.Equal(t, "admin", dir.created.Role)
	assert.Equal(t, "新同事", dir.created.Name)

	var body struct {
		User *models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "new-id", body.User.ID)
}

func TestCreateUserRequiresEmailAndPassword(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing password", `{"email": "new@example.com"}`},
		{"missing email", `{"password": "secret"}`},
		{"empty body", `{}`},
		{"not json", `oops`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := &mockDirectory{}
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/admin/users", strings.NewReader(tt.body))
			newTestRouter(dir).ServeHTTP(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "email and password required", body.Error)
			assert.Nil(t, dir.created)
		})
	}
}

func TestUpdateUser(t *testing.T) {
	dir := &mockDirectory{}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/admin/users/u1",
		strings.NewReader(`{"role": "admin"}`))
	newTestRouter(dir).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", dir.updatedID)
	require.NotNil(t, dir.updated)
	require.NotNil(t, dir.updated.Role)
	assert.Equal(t, "admin", *dir.updated.Role)
	assert.Nil(t, dir.updated.Email, "untouched fields stay nil")
	assert.Nil(t, dir.updated.Password)
}

func TestDeleteUser(t *testing.T) {
	dir := &mockDirectory{}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/admin/users/u1", nil)
	newTestRouter(dir).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", dir.deletedID)

	var body map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body["success"])
}

func TestUserInfo(t *testing.T) {
	dir := &mockDirectory{users: []*models.User{{
		ID:           "u1",
		Email:        "a@example.com",
		UserMetadata: map[string]any{"name": "林小明"},
	}}}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/getUserInfo?user_id=u1", nil)
	newTestRouter(dir).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body userInfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "a@example.com", body.Email)
	assert.Equal(t, "林小明", body.FullName, "falls back through the metadata name keys")
}

func TestUserInfoMissingParam(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/getUserInfo", nil)
	newTestRouter(&mockDirectory{}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserInfoLookupFailure(t *testing.T) {
	dir := &mockDirectory{getUserErr: errors.New("upstream down")}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/getUserInfo?user_id=u1", nil)
	newTestRouter(dir).ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	var body userInfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "未知", body.Email)
	assert.Equal(t, "未知", body.FullName)
}

func TestUpstreamErrorsPassThroughStatus(t *testing.T) {
	dir := &mockDirectory{returnedErr: &identity.Error{
		StatusCode: http.StatusUnprocessableEntity,
		Message:    "email already registered",
	}}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/admin/users",
		strings.NewReader(`{"email": "dup@example.com", "password": "secret"}`))
	newTestRouter(dir).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "email already registered", body.Error)
}
