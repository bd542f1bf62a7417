package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"nullashop.io/shop/checkout"
	"nullashop.io/shop/identity"
	"nullashop.io/shop/models"
	"nullashop.io/shop/models/enum"
)

// Authenticator is the slice of the identity client the storefront needs.
type Authenticator interface {
	AuthVerifier
	SignIn(ctx context.Context, email, password string) (*models.Session, error)
	SignUp(ctx context.Context, email, password, fullName string) (*models.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	AuthorizeURL(provider, redirectTo string) string
}

type AuthHandler struct {
	auth     Authenticator
	checkout *checkout.Manager
	timeout  time.Duration
}

func NewAuthHandler(auth Authenticator, checkout *checkout.Manager, timeout time.Duration) *AuthHandler {
	return &AuthHandler{auth: auth, checkout: checkout, timeout: timeout}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type authResponse struct {
	Session         *models.Session    `json:"session"`
	CheckoutState   enum.CheckoutState `json:"checkout_state"`
	CheckoutResumed bool               `json:"checkout_resumed"`
}

// SignIn exchanges credentials for a session. A checkout that was waiting
// on this login advances to the confirmation step in the same request.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, http.StatusOK, func(ctx context.Context, req credentialsRequest) (*models.Session, error) {
		return h.auth.SignIn(ctx, req.Email, req.Password)
	})
}

// SignUp registers an account and signs the visitor in.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, http.StatusCreated, func(ctx context.Context, req credentialsRequest) (*models.Session, error) {
		return h.auth.SignUp(ctx, req.Email, req.Password, req.Name)
	})
}

func (h *AuthHandler) authenticate(w http.ResponseWriter, r *http.Request, successStatus int,
	fn func(ctx context.Context, req credentialsRequest) (*models.Session, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "email and password required")
		return
	}

	session, err := fn(ctx, req)
	if err != nil {
		var identityErr *identity.Error
		if errors.As(err, &identityErr) {
			respondError(w, identityErr.StatusCode, identityErr.Message)
			return
		}
		respondError(w, http.StatusBadGateway, "authentication service unavailable")
		return
	}

	key := cartKeyFrom(r.Context())
	resumed := h.checkout.SessionEstablished(key, session)

	respondJSON(w, successStatus, authResponse{
		Session:         session,
		CheckoutState:   h.checkout.State(key),
		CheckoutResumed: resumed,
	})
}

// SignOut revokes the session behind the bearer token.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	token := bearerToken(r)
	if token == "" {
		respondError(w, http.StatusUnauthorized, "請先登入")
		return
	}

	if err := h.auth.SignOut(ctx, token); err != nil {
		var identityErr *identity.Error
		if errors.As(err, &identityErr) {
			respondError(w, identityErr.StatusCode, identityErr.Message)
			return
		}
		respondError(w, http.StatusBadGateway, "authentication service unavailable")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// OAuthURL hands the browser the provider redirect for social sign-in.
func (h *AuthHandler) OAuthURL(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	if provider == "" {
		respondError(w, http.StatusBadRequest, "provider required")
		return
	}
	redirectTo := r.URL.Query().Get("redirect_to")
	respondJSON(w, http.StatusOK, map[string]string{"url": h.auth.AuthorizeURL(provider, redirectTo)})
}
