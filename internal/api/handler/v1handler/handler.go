// Package v1handler implements the HTTP handlers behind version 1 of the
// cookie scan API.
package v1handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"cookiescan/internal/scanner"
	"cookiescan/pkg/logger"
	"cookiescan/pkg/serrors"
)

// Deps bundles the collaborators the v1 handlers need.
type Deps struct {
	Scanner scanner.Scanner
}

type Handler struct {
	deps Deps
}

func New(deps Deps) *Handler {
	return &Handler{deps: deps}
}

// Router returns the chi router carrying all v1 routes. The caller mounts it
// under the version prefix.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Post("/scan", h.CreateScan)
	r.Get("/scan/{transactionID}", h.GetScan)
	r.Get("/scans", h.ListScans)

	return r
}

// ErrorResponse is the envelope every v1 error is rendered as.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// kindRenderings maps client-visible error kinds to their HTTP status and the
// message used when the error carries none of its own. Kinds outside this
// table render as an internal error.
var kindRenderings = []struct {
	kind    serrors.Kind
	status  int
	message string
}{
	{serrors.ErrBadRequest, http.StatusBadRequest, "invalid request"},
	{serrors.ErrNotFound, http.StatusNotFound, "resource not found"},
	{serrors.ErrConflict, http.StatusConflict, "conflict"},
	{serrors.ErrRateLimited, http.StatusTooManyRequests, "too many requests"},
	{serrors.ErrTimeout, http.StatusGatewayTimeout, "timed out"},
	{serrors.ErrUnavailable, http.StatusServiceUnavailable, "temporarily unavailable"},
}

// renderError resolves the status, code and message for an error. Anything
// without a recognized semantic kind becomes a plain internal error so no
// internals leak to the caller.
func renderError(err error) (int, string, string) {
	status := http.StatusInternalServerError
	code := serrors.ErrInternal.Error()
	message := "internal error"

	var k serrors.Kind
	if !errors.As(err, &k) {
		return status, code, message
	}

	for _, r := range kindRenderings {
		if k == r.kind {
			status, code, message = r.status, r.kind.Error(), r.message

			break
		}
	}

	var serr *serrors.Error
	if status != http.StatusInternalServerError && errors.As(err, &serr) && serr.Message() != "" {
		message = serr.Message()
	}

	return status, code, message
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status, code, message := renderError(err)

	if status >= http.StatusInternalServerError {
		logger.Error(ctx, "request failed", zap.Error(err))
	} else {
		logger.Debug(ctx, "request rejected", zap.Int("status", status), zap.Error(err))
	}

	writeJSON(ctx, w, status, ErrorResponse{Code: code, Message: message})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error(ctx, "could not write response", zap.Error(err))
	}
}
