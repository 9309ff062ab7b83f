package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/beizuri/posedge/internal/buildinfo"
	"github.com/beizuri/posedge/internal/config"
	"github.com/beizuri/posedge/internal/database"
	"github.com/beizuri/posedge/internal/middleware"
	"github.com/beizuri/posedge/internal/websocket"
	"github.com/gorilla/mux"
)

// Router wraps the mux router with the terminal's local state
type Router struct {
	*mux.Router
	db  *database.DB
	cfg *config.Config
}

// NewRouter creates the HTTP surface of the terminal daemon
func NewRouter(db *database.DB, cfg *config.Config, hub *websocket.Hub) *Router {
	r := &Router{
		Router: mux.NewRouter(),
		db:     db,
		cfg:    cfg,
	}

	// Liveness endpoint, also probed by sibling terminals
	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	// Auth routes
	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/login", r.login).Methods("POST")

	// Sync progress stream for the operator UI
	r.HandleFunc("/ws/sync", func(w http.ResponseWriter, req *http.Request) {
		websocket.ServeWs(hub, w, req)
	})

	return r
}

// Protected returns an /api subrouter guarded by the JWT middleware.
// Handlers register their routes on it.
func (r *Router) Protected() *mux.Router {
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Auth(r.cfg.JWTSecret))
	return api
}

// healthCheck returns the health status of the daemon
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildinfo.Version,
	})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
