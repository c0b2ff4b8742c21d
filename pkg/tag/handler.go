package tag

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/askaq/aaq/internal/auth"
	"github.com/askaq/aaq/internal/httpserver"
)

// Handler provides HTTP handlers for workspace-scoped tags.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates a tag Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// Routes returns a chi.Router with the tag routes mounted. Callers must
// mount this behind auth.RequireAuth.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleList)
	r.With(auth.RequireAdmin).Post("/", h.handleCreate)
	r.Route("/{id}", func(r chi.Router) {
		r.Use(auth.RequireAdmin)
		r.Put("/", h.handleUpdate)
		r.Delete("/", h.handleDelete)
	})
	return r
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}

	items, err := h.service.List(r.Context(), id.WorkspaceID)
	if err != nil {
		h.logger.Error("listing tags", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list tags")
		return
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{"tags": items, "count": len(items)})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}

	var req CreateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.Create(r.Context(), id.WorkspaceID, req)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusCreated, resp)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}

	tagID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid tag ID")
		return
	}

	var req UpdateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.Update(r.Context(), id.WorkspaceID, tagID, req)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "tag not found")
			return
		}
		h.logger.Error("updating tag", "error", err, "id", tagID)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to update tag")
		return
	}

	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}

	tagID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid tag ID")
		return
	}

	if err := h.service.Delete(r.Context(), id.WorkspaceID, tagID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "tag not found")
			return
		}
		h.logger.Error("deleting tag", "error", err, "id", tagID)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to delete tag")
		return
	}

	httpserver.Respond(w, http.StatusNoContent, nil)
}
