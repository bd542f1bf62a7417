// Package adminapi is the privileged user-management server. It holds the
// service-role credential and therefore runs as its own process, never in
// the storefront.
package adminapi

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

type ErrorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

func NewRouter(directory Directory, logger *zap.Logger) http.Handler {
	users := NewUsersHandler(directory, logger, defaultTimeout)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/api/ping", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"message": "pong"})
	})

	r.Get("/api/getUserInfo", users.UserInfo)

	r.Route("/api/admin/users", func(admin chi.Router) {
		admin.Get("/", users.List)
		admin.Post("/", users.Create)
		admin.Patch("/{userID}", users.Update)
		admin.Delete("/{userID}", users.Delete)
	})

	return r
}
