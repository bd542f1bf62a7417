package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nullashop.io/shop/models"
)

type ctxKey int

const (
	ctxCartKey ctxKey = iota
	ctxSession
)

// sessionCookie identifies the visitor's cart. It survives login, so the
// cart stays device-scoped the way the SPA's context provider was.
const sessionCookie = "ns_session"

// AuthVerifier resolves a bearer token to its user.
type AuthVerifier interface {
	UserFromToken(ctx context.Context, accessToken string) (*models.User, error)
}

// CartSession assigns every visitor a stable cart key via cookie.
func CartSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var key string
		if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
			key = c.Value
		} else {
			key = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    key,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), ctxCartKey, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authenticate attaches the session behind a bearer token, when there is
// one. Requests without a valid token proceed unauthenticated; the gated
// routes decide whether that is acceptable.
func Authenticate(verifier AuthVerifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := verifier.UserFromToken(r.Context(), token)
			if err != nil {
				logger.Debug("token verification failed", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			session := &models.Session{AccessToken: token, User: user}
			ctx := context.WithValue(r.Context(), ctxSession, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects unauthenticated requests.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sessionFrom(r.Context()) == nil {
			respondError(w, http.StatusUnauthorized, "請先登入")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects sessions without the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := sessionFrom(r.Context())
		if session == nil {
			respondError(w, http.StatusUnauthorized, "請先登入")
			return
		}
		if !session.User.IsAdmin() {
			respondError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func cartKeyFrom(ctx context.Context) string {
	if key, ok := ctx.Value(ctxCartKey).(string); ok {
		return key
	}
	return ""
}

func sessionFrom(ctx context.Context) *models.Session {
	if session, ok := ctx.Value(ctxSession).(*models.Session); ok {
		return session
	}
	return nil
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
