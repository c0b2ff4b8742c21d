package workspace

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

// Handler provides HTTP handlers for workspace management and the login
// flows that issue session JWTs.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates a workspace Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// AuthRoutes returns the unauthenticated /login and /login-workspace routes.
func (h *Handler) AuthRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.handleLogin)
	r.Post("/login-workspace", h.handleLoginWorkspace)
	return r
}

// Routes returns the /workspace/ routes. It must be mounted behind
// auth.OptionalMiddleware (not the strict variant) since POST / serves both
// an authenticated caller creating an additional workspace and an anonymous
// caller bootstrapping their first one; every other route requires a
// session explicitly via RequireAuth/RequireAdmin. apiKeyRotate is mounted
// here so rotate-key lives under the same prefix per spec §6.
func (h *Handler) Routes(apiKeyRotate http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleCreate)
	r.With(auth.RequireAuth).Post("/switch", h.handleSwitch)
	r.With(auth.RequireAdmin).Post("/rotate-key", apiKeyRotate.ServeHTTP)
	r.Route("/{id}", func(r chi.Router) {
		r.With(auth.RequireAdmin).Put("/", h.handleUpdate)
		r.With(auth.RequireAdmin).Post("/users", h.handleAddUser)
	})
	return r
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleLoginWorkspace(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil || id.UserID == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "a valid session is required to switch workspaces")
		return
	}

	var req LoginWorkspaceRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.LoginWorkspace(r.Context(), *id.UserID, req.WorkspaceID)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleSwitch(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil || id.UserID == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}

	var req SwitchRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.SetDefault(r.Context(), *id.UserID, req.WorkspaceID); err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusNoContent, nil)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	id := auth.FromContext(r.Context())
	if id == nil || id.UserID == nil {
		// No prior session: bootstrap the caller's first workspace from the
		// username/password in the body and mint a token for it.
		result, err := h.service.CreateBootstrap(r.Context(), req)
		if err != nil {
			httpserver.RespondAppError(w, h.logger, err)
			return
		}
		httpserver.Respond(w, http.StatusCreated, result)
		return
	}

	resp, err := h.service.Create(r.Context(), *id.UserID, req)
	if err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusCreated, resp)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	wsID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid workspace ID")
		return
	}

	var req UpdateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.Update(r.Context(), wsID, req)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "workspace not found")
			return
		}
		h.logger.Error("updating workspace", "error", err, "workspace_id", wsID)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to update workspace")
		return
	}

	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleAddUser(w http.ResponseWriter, r *http.Request) {
	wsID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid workspace ID")
		return
	}

	id := auth.FromContext(r.Context())
	if id == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing authentication")
		return
	}
	if id.WorkspaceID != wsID {
		httpserver.RespondError(w, http.StatusForbidden, "forbidden", "session is not bound to this workspace")
		return
	}

	var req AddUserRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.AddUser(r.Context(), id.Role, wsID, req); err != nil {
		httpserver.RespondAppError(w, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusNoContent, nil)
}
