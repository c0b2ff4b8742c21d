package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Middleware authenticates every request via a session JWT or a workspace
// API key presented as a Bearer token, and stores the resulting Identity in
// the request context. Per spec §6, the server distinguishes by key
// format: a JWT has three dot-separated segments; anything else presented
// as a Bearer credential is treated as an API key.
func Middleware(sessionMgr *SessionManager, apiKeyAuth *APIKeyAuthenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				respondErr(w, http.StatusUnauthorized, "unauthorized", "missing Authorization header")
				return
			}

			var identity *Identity

			if IsJWT(raw) {
				claims, err := sessionMgr.ValidateToken(raw)
				if err != nil {
					logger.Warn("session token validation failed", "error", err)
					respondErr(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
					return
				}
				userID, parseErr := uuid.Parse(claims.UserID)
				if parseErr != nil {
					respondErr(w, http.StatusUnauthorized, "unauthorized", "malformed token subject")
					return
				}
				identity = &Identity{
					UserID:      &userID,
					WorkspaceID: claims.WorkspaceID,
					Role:        claims.Role,
					Method:      MethodSession,
				}
			} else {
				result, err := apiKeyAuth.Authenticate(r.Context(), raw)
				if err != nil {
					logger.Warn("API key authentication failed", "error", err)
					respondErr(w, http.StatusUnauthorized, "unauthorized", "invalid API key")
					return
				}
				identity = &Identity{
					WorkspaceID: result.WorkspaceID,
					Role:        RoleReadOnly,
					APIKeyID:    &result.APIKeyID,
					Method:      MethodAPIKey,
				}
			}

			ctx := NewContext(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalMiddleware behaves like Middleware but does not reject requests
// with no Authorization header; it simply leaves the context identity-free.
// Used for endpoints that serve both authenticated and anonymous callers,
// such as first-workspace bootstrap.
func OptionalMiddleware(sessionMgr *SessionManager, apiKeyAuth *APIKeyAuthenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	authenticated := Middleware(sessionMgr, apiKeyAuth, logger)
	return func(next http.Handler) http.Handler {
		wrapped := authenticated(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := bearerToken(r); !ok {
				next.ServeHTTP(w, r)
				return
			}
			wrapped.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the raw credential from an Authorization: Bearer
// header.
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(h, prefix)), true
}

func respondErr(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + code + `","message":"` + message + `"}`))
}
