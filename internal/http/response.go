package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"kobo/internal/core"
	"kobo/internal/gateway"
	klog "kobo/internal/log"
	"kobo/internal/middleware/trace"
	"kobo/internal/period"
	"kobo/internal/session"
	"kobo/internal/store"
)

const (
	codeInvalid          = "invalid_request"
	codeUnauthorized     = "missing_account"
	codeNotFound         = "not_found"
	codeConflict         = "conflict"
	codeSuperseded       = "superseded"
	codeLocked           = "locked"
	codePINMismatch      = "pin_mismatch"
	codePINNotSet        = "pin_not_set"
	codeWrongPIN         = "wrong_current_pin"
	codeRateLimited      = "rate_limited"
	codeMethodNotAllowed = "method_not_allowed"
	codeInternal         = "internal"
)

// ErrorBody is the envelope of every non-2xx JSON response.
type ErrorBody struct {
	Error     ErrorDetail `json:"error"`
	RequestID string      `json:"request_id,omitempty"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var validationErrors = []error{
	core.ErrEmptyAccount,
	core.ErrInvalidAmount,
	core.ErrInvalidLimit,
	core.ErrEmptyPayee,
	core.ErrEmptyCategory,
	core.ErrInvalidType,
	core.ErrEmptyName,
	core.ErrInvalidPeriod,
	core.ErrEmptyID,
	core.ErrInvalidDuration,
	core.ErrInvalidPIN,
	period.ErrInvalidLookback,
	errBadRequest,
}

// statusFor maps domain errors to a status code and error code. Unknown
// errors are internal and their message is not exposed.
func statusFor(err error) (int, string) {
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return http.StatusBadRequest, codeInvalid
		}
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict, codeConflict
	case errors.Is(err, gateway.ErrSuperseded):
		return http.StatusConflict, codeSuperseded
	case errors.Is(err, session.ErrPINNotSet):
		return http.StatusPreconditionRequired, codePINNotSet
	case errors.Is(err, session.ErrWrongPIN):
		return http.StatusForbidden, codeWrongPIN
	}
	return http.StatusInternalServerError, codeInternal
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeRaw sends an already encoded JSON body.
func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, ErrorBody{
		Error:     ErrorDetail{Code: code, Message: message},
		RequestID: trace.GetRequestID(r.Context()),
	})
}

// fail logs err and answers with the status it maps to.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := statusFor(err)
	logger := klog.FromContext(r.Context())
	fields := klog.NewFields().WithOperation(op).WithError(err).ToSlice()
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", fields...)
		msg = "internal error"
	} else {
		logger.InfoContext(r.Context(), "Request rejected", fields...)
	}
	writeError(w, r, status, code, msg)
}
