package identity

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"nullashop.io/shop/models"
)

// Admin performs privileged user management with the service-role key.
type Admin struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

func NewAdmin(baseURL, serviceRoleKey string, logger *zap.Logger) *Admin {
	return &Admin{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  serviceRoleKey,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

type CreateUserParams struct {
	Email    string
	Password string
	Role     string
	Name     string
}

// UpdateUserParams uses pointers so "not provided" and "set to empty" stay
// distinguishable, mirroring the PATCH surface.
type UpdateUserParams struct {
	Role     *string
	Name     *string
	Email    *string
	Password *string
}

func (a *Admin) ListUsers(ctx context.Context) ([]*models.User, error) {
	var resp struct {
		Users []*models.User `json:"users"`
	}
	if err := a.do(ctx, http.MethodGet, "/auth/v1/admin/users", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// CreateUser provisions a confirmed account. Role lands in app_metadata,
// the display name in user_metadata.
func (a *Admin) CreateUser(ctx context.Context, params CreateUserParams) (*models.User, error) {
	body := map[string]any{
		"email":         params.Email,
		"password":      params.Password,
		"email_confirm": true,
		"user_metadata": map[string]any{},
		"app_metadata":  map[string]any{},
	}
	if params.Name != "" {
		body["user_metadata"] = map[string]any{"full_name": params.Name}
	}
	if params.Role != "" {
		body["app_metadata"] = map[string]any{"role": params.Role}
	}

	var user models.User
	if err := a.do(ctx, http.MethodPost, "/auth/v1/admin/users", body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (a *Admin) UpdateUser(ctx context.Context, id string, params UpdateUserParams) (*models.User, error) {
	updates := map[string]any{}
	if params.Role != nil {
		updates["app_metadata"] = map[string]any{"role": *params.Role}
	}
	if params.Name != nil {
		updates["user_metadata"] = map[string]any{"full_name": *params.Name}
	}
	if params.Email != nil {
		updates["email"] = *params.Email
	}
	if params.Password != nil {
		updates["password"] = *params.Password
	}

	var user models.User
	if err := a.do(ctx, http.MethodPut, "/auth/v1/admin/users/"+url.PathEscape(id), updates, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (a *Admin) DeleteUser(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodDelete, "/auth/v1/admin/users/"+url.PathEscape(id), nil, nil)
}

func (a *Admin) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := a.do(ctx, http.MethodGet, "/auth/v1/admin/users/"+url.PathEscape(id), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (a *Admin) do(ctx context.Context, method, path string, body, dest any) error {
	return doRequest(ctx, a.http, a.baseURL+path, method, a.apiKey, "", body, dest)
}
