package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"aspire/internal/amqp"
	"aspire/internal/content"
	"aspire/internal/core"
	applog "aspire/internal/log"
	"aspire/internal/query"
	"aspire/internal/services"
	"aspire/internal/sheets"
)

var (
	errNoScriptRunner    = errors.New("no Apps Script project configured")
	errScriptSpreadsheet = errors.New("Apps Script project is bound to another spreadsheet")
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps pipeline errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, content.ErrUnsupportedSchemaVersion):
		return http.StatusUnprocessableEntity
	case errors.Is(err, content.ErrUnsupportedForVersion),
		errors.Is(err, content.ErrUnsupportedDataset),
		errors.Is(err, errNoScriptRunner),
		errors.Is(err, services.ErrNoSubmitter):
		return http.StatusNotImplemented
	case errors.Is(err, content.ErrInconsistentRemoteData):
		return http.StatusBadGateway
	case errors.Is(err, errScriptSpreadsheet):
		return http.StatusConflict
	case isValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, amqp.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func isValidationError(err error) bool {
	for _, target := range []error{
		amqp.ErrPermanent,
		sheets.ErrInvalidRange,
		core.ErrInvalidAmount,
		core.ErrEmptyAccount,
		core.ErrEmptyCategory,
		core.ErrSameCategory,
		core.ErrInvalidType,
		core.ErrInvalidApproval,
		core.ErrMemoTooLong,
		core.ErrReconcileNotEdit,
		query.ErrInvalidFilter,
		errBadRequest,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// fail logs err and writes the mapped status. Server errors hide details.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	logger := applog.FromContext(r.Context())
	attrs := []any{
		applog.FieldOperation, op,
		applog.FieldStatusCode, status,
		applog.FieldError, err,
	}
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", attrs...)
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
	} else {
		logger.WarnContext(r.Context(), "Request rejected", attrs...)
	}
	writeError(w, status, msg)
}
