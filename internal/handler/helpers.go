// Package handler wires the HTTP surface: routing, auth middleware,
// request decoding and the error-to-status mapping.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/okarlsen/splitbook/internal/domain"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// handleServiceError maps domain error types to HTTP statuses. Anything
// unrecognized is a 500 with a generic body; the detail goes to the log
// only.
func handleServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var (
		notFound     *domain.ErrNotFound
		validation   *domain.ErrValidation
		forbidden    *domain.ErrForbidden
		unauthorized *domain.ErrUnauthorized
		conflict     *domain.ErrConflict
		circuitOpen  *domain.ErrCircuitOpen
		timeout      *domain.ErrTimeout
		external     *domain.ErrExternalService
	)

	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, "invalid_argument", validation.Error())
	case errors.As(err, &unauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", unauthorized.Error())
	case errors.As(err, &forbidden):
		writeError(w, http.StatusForbidden, "permission_denied", forbidden.Error())
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, "not_found", notFound.Error())
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, "conflict", conflict.Error())
	case errors.As(err, &circuitOpen):
		writeError(w, http.StatusServiceUnavailable, "unavailable", circuitOpen.Error())
	case errors.As(err, &timeout):
		writeError(w, http.StatusGatewayTimeout, "timeout", timeout.Error())
	case errors.As(err, &external):
		logger.Error("external service failure", zap.Error(err))
		writeError(w, http.StatusBadGateway, "upstream_error", "upstream dependency failed")
	default:
		logger.Error("unhandled service error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

// decodeJSON decodes a request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &domain.ErrValidation{Field: "body", Message: "malformed JSON body"}
	}
	return nil
}
