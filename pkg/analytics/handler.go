package analytics

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/askaq/aaq/internal/auth"
	"github.com/askaq/aaq/internal/httpserver"
)

// Handler provides HTTP handlers for the dashboard endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates an analytics Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// Routes returns a chi.Router with the dashboard routes mounted. Callers
// must mount this behind auth.RequireAuth.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/overview", h.handleOverview)
	r.Get("/performance", h.handlePerformance)
	r.Get("/insights", h.handleInsights)
	r.Post("/insights/refresh", h.handleRefreshInsights)
	return r
}

func parsePeriodParams(r *http.Request) (Period, *time.Time, *time.Time) {
	period := Period(r.URL.Query().Get("period"))
	if period == "" {
		period = PeriodWeek
	}
	var start, end *time.Time
	if v := r.URL.Query().Get("start_date"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			start = &t
		}
	}
	if v := r.URL.Query().Get("end_date"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			end = &t
		}
	}
	return period, start, end
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}
	period, start, end := parsePeriodParams(r)
	card, err := h.service.Overview(r.Context(), id.WorkspaceID, period, start, end)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, card)
}

func (h *Handler) handlePerformance(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}
	period, start, end := parsePeriodParams(r)
	freq := Frequency(r.URL.Query().Get("frequency"))

	topN := 10
	if v := r.URL.Query().Get("top"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			topN = n
		}
	}

	series, top, err := h.service.Performance(r.Context(), id.WorkspaceID, period, start, end, freq, topN)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{
		"time_series": series,
		"top_content": top,
	})
}

func (h *Handler) handleInsights(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}
	insights, err := h.service.Insights(r.Context(), id.WorkspaceID)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, insights)
}

func (h *Handler) handleRefreshInsights(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}
	job, err := h.service.RefreshInsights(r.Context(), id.WorkspaceID)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusAccepted, job)
}
