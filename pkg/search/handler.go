package search

import (
	"log/slog"
	"net/http"

	"github.com/askaq/aaq/internal/auth"
	"github.com/askaq/aaq/internal/httpserver"
)

// Handler provides the HTTP handler for POST /search.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates a search Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// HandleSearch handles POST /search directly, since it lives at the HTTP
// surface's top level rather than under a resource collection.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}

	var req Request
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.Handle(r.Context(), id.WorkspaceID, req)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, resp)
}
