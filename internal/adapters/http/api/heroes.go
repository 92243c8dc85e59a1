package api

import (
	"context"
	"net/http"

	"github.com/okian/runboard/internal/domain/types"
	"github.com/okian/runboard/internal/domain/validate"
)

// HeroesDependencies defines the hero leaderboard operations.
type HeroesDependencies interface {
	SubmitHero(ctx context.Context, clientID string, p validate.Payload) (bool, error)
	TopHeroes(ctx context.Context, limit int) ([]types.HeroEntry, error)
}

// HeroesHandler serves /leaderboard-hero.
type HeroesHandler struct {
	deps     HeroesDependencies
	clientID func(*http.Request) string
}

// NewHeroesHandler creates a new heroes handler.
func NewHeroesHandler(deps HeroesDependencies, clientID func(*http.Request) string) *HeroesHandler {
	return &HeroesHandler{deps: deps, clientID: clientID}
}

// okResponse acknowledges a hero submission whether or not it was written.
type okResponse struct {
	OK bool `json:"ok"`
}

// Handle dispatches GET and POST /leaderboard-hero.
func (h *HeroesHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.HandleGet(w, r)
	case http.MethodPost:
		h.HandlePost(w, r)
	default:
		methodNotAllowed(w, "GET, POST, OPTIONS")
	}
}

// HandlePost handles POST /leaderboard-hero.
func (h *HeroesHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	p, err := decodePayload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgBadJSON)
		return
	}
	if _, err := h.deps.SubmitHero(r.Context(), h.clientID(r), p); err != nil {
		status, msg := submitError(err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusCreated, okResponse{OK: true})
}

// HandleGet handles GET /leaderboard-hero?limit=N.
func (h *HeroesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	entries, err := h.deps.TopHeroes(r.Context(), limitParam(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgLoadFailed)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
