// internal/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github-commit-relay/internal/apperr"
	"github-commit-relay/internal/model"
)

// Store is the read-only slice of storage the API serves from. All
// writes stay with the syncer and the chat dispatcher.
type Store interface {
	ListRepositories(ctx context.Context) ([]model.Repository, error)
	GetRepository(ctx context.Context, account, name string) (model.Repository, error)
	ListCommits(ctx context.Context, offset, limit int) ([]model.Commit, error)
	ListCommitsByRepo(ctx context.Context, account, repo string, offset, limit int) ([]model.Commit, error)
}

// Handler is the container for API dependencies.
type Handler struct {
	db     Store
	logger *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(db Store, logger *slog.Logger) http.Handler {
	h := &Handler{
		db:     db,
		logger: logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// API Routes
	r.Get("/health", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/repos", h.getRepos)
		r.Get("/commits", h.getCommits)
		r.Get("/repos/{owner}/{name}/commits", h.getRepoCommits)
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getRepos lists the watched repositories.
// GET /v1/repos
func (h *Handler) getRepos(w http.ResponseWriter, r *http.Request) {
	repos, err := h.db.ListRepositories(r.Context())
	if err != nil {
		h.logger.Error("Failed to list repositories", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, repos)
}

// getCommits serves the global commit history, newest first.
// GET /v1/commits?offset=N&limit=M
func (h *Handler) getCommits(w http.ResponseWriter, r *http.Request) {
	offset, limit, ok := pageParams(w, r)
	if !ok {
		return
	}
	commits, err := h.db.ListCommits(r.Context(), offset, limit)
	if err != nil {
		h.logger.Error("Failed to list commits", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, commits)
}

// getRepoCommits serves one repository's commit history, newest first.
// GET /v1/repos/{owner}/{name}/commits?offset=N&limit=M
func (h *Handler) getRepoCommits(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	name := chi.URLParam(r, "name")

	if _, err := h.db.GetRepository(r.Context(), owner, name); err != nil {
		if apperr.IsNotFound(err) {
			respondWithError(w, http.StatusNotFound, "Repository not found")
			return
		}
		h.logger.Error("Failed to get repository", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	offset, limit, ok := pageParams(w, r)
	if !ok {
		return
	}
	commits, err := h.db.ListCommitsByRepo(r.Context(), owner, name, offset, limit)
	if err != nil {
		h.logger.Error("Failed to list commits", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, commits)
}

// pageParams reads the offset/limit query parameters with the same
// defaults the chat pagination uses. Responds with 400 on bad input.
func pageParams(w http.ResponseWriter, r *http.Request) (offset, limit int, ok bool) {
	offset, limit = 0, 5
	if s := r.URL.Query().Get("offset"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			respondWithError(w, http.StatusBadRequest, "Invalid 'offset' parameter. Must be a non-negative integer.")
			return 0, 0, false
		}
		offset = v
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 || v > 100 {
			respondWithError(w, http.StatusBadRequest, "Invalid 'limit' parameter. Must be an integer between 1 and 100.")
			return 0, 0, false
		}
		limit = v
	}
	return offset, limit, true
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
