package apikey

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/askaq/aaq/internal/auth"
	"github.com/askaq/aaq/internal/httpserver"
)

// Handler provides the HTTP handler for workspace API key rotation,
// mounted under POST /workspace/rotate-key per spec §6.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates an apikey Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// HandleRotate handles POST /workspace/rotate-key directly; it is mounted
// by pkg/workspace's Handler.Routes, which already wraps it with
// auth.RequireAdmin, since the route lives under the workspace prefix
// rather than its own resource collection.
func (h *Handler) HandleRotate(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}

	resp, err := h.service.Rotate(r.Context(), id.WorkspaceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "workspace not found")
			return
		}
		h.logger.Error("rotating api key", "error", err, "workspace_id", id.WorkspaceID)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to rotate api key")
		return
	}

	httpserver.Respond(w, http.StatusOK, resp)
}
