package api

import (
	"context"
	"net/http"

	"github.com/okian/runboard/internal/domain/types"
	"github.com/okian/runboard/internal/domain/validate"
)

// RunsDependencies defines the run leaderboard operations.
type RunsDependencies interface {
	SubmitRun(ctx context.Context, clientID string, p validate.Payload) (int64, error)
	TopRuns(ctx context.Context, limit int) ([]types.RunEntry, error)
}

// RunsHandler serves /leaderboard.
type RunsHandler struct {
	deps     RunsDependencies
	clientID func(*http.Request) string
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(deps RunsDependencies, clientID func(*http.Request) string) *RunsHandler {
	return &RunsHandler{deps: deps, clientID: clientID}
}

type createdResponse struct {
	ID int64 `json:"id"`
}

// Handle dispatches GET and POST /leaderboard.
func (h *RunsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.HandleGet(w, r)
	case http.MethodPost:
		h.HandlePost(w, r)
	default:
		methodNotAllowed(w, "GET, POST, OPTIONS")
	}
}

// HandlePost handles POST /leaderboard.
func (h *RunsHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	p, err := decodePayload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgBadJSON)
		return
	}
	id, err := h.deps.SubmitRun(r.Context(), h.clientID(r), p)
	if err != nil {
		status, msg := submitError(err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

// HandleGet handles GET /leaderboard?limit=N.
func (h *RunsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	entries, err := h.deps.TopRuns(r.Context(), limitParam(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgLoadFailed)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
