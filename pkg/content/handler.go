package content

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/askaq/aaq/internal/auth"
	"github.com/askaq/aaq/internal/httpserver"
)

// Handler provides HTTP handlers for workspace-scoped content.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates a content Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// Routes returns a chi.Router with the content routes mounted. Callers
// must mount this behind auth.RequireAuth.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleList)
	r.With(auth.RequireAdmin).Post("/", h.handleCreate)
	r.With(auth.RequireAdmin).Post("/import", h.handleImport)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.With(auth.RequireAdmin).Put("/", h.handleUpdate)
		r.With(auth.RequireAdmin).Delete("/", h.handleDelete)
	})
	return r
}

func identityOrUnauthorized(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return 0, false
	}
	return id.WorkspaceID, true
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	params, err := httpserver.ParseOffsetParams(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	items, total, err := h.service.List(r.Context(), workspaceID, params.Offset, params.PageSize)
	if err != nil {
		h.logger.Error("listing content", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list content")
		return
	}

	httpserver.Respond(w, http.StatusOK, httpserver.NewOffsetPage(items, params, total))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid content ID")
		return
	}

	resp, err := h.service.Get(r.Context(), workspaceID, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "content not found")
			return
		}
		h.logger.Error("getting content", "error", err, "id", id)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to get content")
		return
	}

	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req CreateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.Create(r.Context(), workspaceID, req)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusCreated, resp)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid content ID")
		return
	}

	var req UpdateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.Update(r.Context(), workspaceID, id, req)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "content not found")
			return
		}
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid content ID")
		return
	}

	if err := h.service.Delete(r.Context(), workspaceID, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "content not found")
			return
		}
		h.logger.Error("deleting content", "error", err, "id", id)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to delete content")
		return
	}

	httpserver.Respond(w, http.StatusNoContent, nil)
}

// handleImport accepts a CSV upload with "title,text" columns (header row
// required) and bulk-creates content items.
func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 10<<20))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "failed to read upload")
		return
	}

	mtype := mimetype.Detect(body)
	if !mtype.Is("text/csv") && !mtype.Is("text/plain") {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "upload must be CSV (detected "+mtype.String()+")")
		return
	}

	reader := csv.NewReader(bytes.NewReader(body))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "failed to read CSV header")
		return
	}
	titleCol, textCol := columnIndex(header, "title"), columnIndex(header, "text")
	if titleCol < 0 || textCol < 0 {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "CSV must have 'title' and 'text' columns")
		return
	}

	var rows []ImportRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "malformed CSV row: "+err.Error())
			return
		}
		if titleCol >= len(record) || textCol >= len(record) {
			continue
		}
		rows = append(rows, ImportRow{Title: record[titleCol], Text: record[textCol]})
	}

	result := h.service.Import(r.Context(), workspaceID, rows)
	httpserver.Respond(w, http.StatusOK, result)
}

func columnIndex(header []string, name string) int {
	for i, col := range header {
		if col == name {
			return i
		}
	}
	return -1
}
