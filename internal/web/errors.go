package web

// errors.go renders errors for the web layer. The technical error is logged
// with the request id; the client gets the catalog message from
// core.NewUserError, as JSON for API routes and as an alert fragment otherwise.

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/followup/internal/core"
	"github.com/JonMunkholm/followup/internal/logging"
	"github.com/JonMunkholm/followup/internal/web/templates"
)

// ErrorResponse is the JSON body of an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// errBadRequest marks client errors detected by the handlers.
var errBadRequest = errors.New("bad request")

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, core.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManyRuns):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrHistoryDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrUnknownStep),
		errors.Is(err, errBadRequest),
		errors.As(err, &syntaxErr),
		errors.As(err, &typeErr):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the user-facing message with the status
// statusFor picks. Errors outside the catalog are logged as errors even when
// the client caused them.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	ue := core.NewUserError(err)
	msg := ue.User

	logger := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError || !core.IsUserFacing(err) {
		logger.Error("request error", "path", r.URL.Path, "method", r.Method, "status", status, "error", err.Error(), "code", msg.Code)
	} else {
		logger.Warn("request rejected", "path", r.URL.Path, "method", r.Method, "status", status, "error", err.Error(), "code", msg.Code)
	}

	if wantsJSON(r) {
		writeJSON(w, status, ErrorResponse{
			Error:   ue.Technical.Error(),
			Message: msg.Message,
			Action:  msg.Action,
			Code:    msg.Code,
		})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
}

// wantsJSON reports whether the client expects a JSON response. API routes
// always get JSON.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
