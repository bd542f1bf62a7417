package adminapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"nullashop.io/shop/identity"
	"nullashop.io/shop/models"
)

// unknownField is what getUserInfo returns when a user cannot be resolved.
const unknownField = "未知"

// Directory is the slice of the privileged identity API this server uses.
// identity.Admin implements it.
type Directory interface {
	ListUsers(ctx context.Context) ([]*models.User, error)
	CreateUser(ctx context.Context, params identity.CreateUserParams) (*models.User, error)
	UpdateUser(ctx context.Context, id string, params identity.UpdateUserParams) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error
	GetUser(ctx context.Context, id string) (*models.User, error)
}

type UsersHandler struct {
	directory Directory
	logger    *zap.Logger
	timeout   time.Duration
}

func NewUsersHandler(directory Directory, logger *zap.Logger, timeout time.Duration) *UsersHandler {
	return &UsersHandler{directory: directory, logger: logger, timeout: timeout}
}

func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	users, err := h.directory.ListUsers(ctx)
	if err != nil {
		h.respondUpstream(w, err, "failed to list users")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"users": users})
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Name     string `json:"name"`
}

func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "email and password required")
		return
	}

	user, err := h.directory.CreateUser(ctx, identity.CreateUserParams{
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Name:     req.Name,
	})
	if err != nil {
		h.respondUpstream(w, err, "failed to create user")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"user": user})
}

type updateUserRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
	Name     *string `json:"name"`
}

func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := chi.URLParam(r, "userID")
	if id == "" {
		respondError(w, http.StatusBadRequest, "user id required")
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.directory.UpdateUser(ctx, id, identity.UpdateUserParams{
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Name:     req.Name,
	})
	if err != nil {
		h.respondUpstream(w, err, "failed to update user")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := chi.URLParam(r, "userID")
	if id == "" {
		respondError(w, http.StatusBadRequest, "user id required")
		return
	}

	if err := h.directory.DeleteUser(ctx, id); err != nil {
		h.respondUpstream(w, err, "failed to delete user")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type userInfoResponse struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// UserInfo resolves a user id into the fields the back office renders next
// to an order. A user that cannot be looked up comes back as 未知 so the
// order list still renders.
func (h *UsersHandler) UserInfo(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "user_id required")
		return
	}

	user, err := h.directory.GetUser(ctx, userID)
	if err != nil {
		h.logger.Warn("查詢使用者失敗", zap.String("user_id", userID), zap.Error(err))
		respondJSON(w, http.StatusForbidden, userInfoResponse{Email: unknownField, FullName: unknownField})
		return
	}

	info := userInfoResponse{Email: user.Email, FullName: user.FullName()}
	if info.Email == "" {
		info.Email = unknownField
	}
	if info.FullName == "" {
		info.FullName = unknownField
	}
	respondJSON(w, http.StatusOK, info)
}

// respondUpstream maps identity platform errors onto this API's responses.
func (h *UsersHandler) respondUpstream(w http.ResponseWriter, err error, fallback string) {
	var identityErr *identity.Error
	if errors.As(err, &identityErr) {
		respondError(w, identityErr.StatusCode, identityErr.Message)
		return
	}
	h.logger.Error("identity platform request failed", zap.Error(err))
	respondError(w, http.StatusInternalServerError, fallback)
}
