package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/askaq/aaq/internal/apperr"
)

// Respond writes a JSON response with the given status code.
func Respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// ErrorResponse is the standard JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

// RespondError writes a JSON error response with an explicit status code.
func RespondError(w http.ResponseWriter, status int, code, message string) {
	Respond(w, status, ErrorResponse{Error: code, Message: message})
}

// RespondAppError writes the JSON error response appropriate for err. If err
// is an *apperr.Error its Kind determines the status code; any other error
// surfaces as a generic 500 without leaking internal detail.
func RespondAppError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		Respond(w, appErr.Status(), ErrorResponse{
			Error:   appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		})
		return
	}

	if logger != nil {
		logger.Error("unhandled internal error", "error", err)
	}
	Respond(w, http.StatusInternalServerError, ErrorResponse{
		Error:   string(apperr.InternalError),
		Message: "an internal error occurred",
	})
}
