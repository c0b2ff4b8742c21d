package urgency

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/askaq/aaq/internal/auth"
	"github.com/askaq/aaq/internal/httpserver"
)

// Handler provides HTTP handlers for urgency rules and detection.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates an urgency Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// DetectRequest is the body of POST /urgency-detect.
type DetectRequest struct {
	QueryText string   `json:"query_text" validate:"required"`
	Strategy  Strategy `json:"strategy"`
}

// RuleRoutes returns a chi.Router with the urgency rule CRUD routes mounted.
// Callers must mount this behind auth.RequireAuth.
func (h *Handler) RuleRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleListRules)
	r.With(auth.RequireAdmin).Post("/", h.handleCreateRule)
	r.With(auth.RequireAdmin).Delete("/{id}", h.handleDeleteRule)
	return r
}

// HandleDetect handles POST /urgency-detect directly, since it lives at
// the HTTP surface's top level rather than under a resource collection.
func (h *Handler) HandleDetect(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}

	var req DetectRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.service.Detect(r.Context(), id.WorkspaceID, req.Strategy, req.QueryText)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, result)
}

func (h *Handler) handleListRules(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}
	rules, err := h.service.ListRules(r.Context(), id.WorkspaceID)
	if err != nil {
		h.logger.Error("listing urgency rules", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list urgency rules")
		return
	}
	httpserver.Respond(w, http.StatusOK, rules)
}

func (h *Handler) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}
	var req RuleRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	rule, err := h.service.CreateRule(r.Context(), id.WorkspaceID, req)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusCreated, rule)
}

func (h *Handler) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}
	ruleID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid rule ID")
		return
	}
	if err := h.service.DeleteRule(r.Context(), id.WorkspaceID, ruleID); err != nil {
		h.logger.Error("deleting urgency rule", "error", err, "id", ruleID)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to delete urgency rule")
		return
	}
	httpserver.Respond(w, http.StatusNoContent, nil)
}
