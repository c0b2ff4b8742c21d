package feedback

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/askaq/aaq/internal/httpserver"
)

// Handler provides HTTP handlers for feedback submission. Both routes must
// be mounted behind auth.OptionalMiddleware: a request may authenticate
// with either an API key or a query's feedback_secret_key, and the service
// layer decides which (if either) is present.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates a feedback Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// Routes returns a chi.Router with the feedback submission routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/response-feedback", h.handleResponseFeedback)
	r.Post("/content-feedback", h.handleContentFeedback)
	return r
}

func (h *Handler) handleResponseFeedback(w http.ResponseWriter, r *http.Request) {
	var req ResponseFeedbackRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	if err := h.service.RecordResponseFeedback(r.Context(), r, req); err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) handleContentFeedback(w http.ResponseWriter, r *http.Request) {
	var req ContentFeedbackRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	if err := h.service.RecordContentFeedback(r.Context(), r, req); err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]bool{"ok": true})
}
