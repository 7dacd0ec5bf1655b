// Package http provides the JSON API server and its handlers.
//
// This file implements the builder used for every JSON response so that
// success and error envelopes stay uniform across handlers.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"welth/internal/core"
	"welth/internal/log"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    any
}

type successEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type errorEnvelope struct {
	Error string `json:"error"`
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Data wraps v in the success envelope.
func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.payload = successEnvelope{Success: true, Data: v}
	return b
}

// Error sets an error body.
func (b *JSONResponseBuilder) Error(message string) *JSONResponseBuilder {
	b.payload = errorEnvelope{Error: message}
	return b
}

// Raw sends v without an envelope.
func (b *JSONResponseBuilder) Raw(v any) *JSONResponseBuilder {
	b.payload = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if b.payload != nil {
		_ = json.NewEncoder(w).Encode(b.payload)
	}
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Error(message)
}

func UnauthorizedError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, "Unauthorized")
}

const (
	msgBlocked       = "Request blocked"
	msgRateLimited   = "Too many requests. Please try again later."
	msgScanFailed    = "Failed to scan receipt"
	msgInternalError = "Internal server error"
)

// statusFor maps a service error to its HTTP status and client message.
func statusFor(err error) (int, string) {
	var bad *badRequestError
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest, bad.Error()
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case core.IsValidationError(err):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, core.ErrBlocked):
		return http.StatusForbidden, msgBlocked
	case errors.Is(err, core.ErrRateLimited):
		return http.StatusTooManyRequests, msgRateLimited
	case errors.Is(err, core.ErrReceiptUnreadable):
		return http.StatusBadGateway, msgScanFailed
	default:
		return http.StatusInternalServerError, msgInternalError
	}
}

// writeError logs the failure through the request logger and writes the
// mapped error response. Server-side failures log at error level.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := statusFor(err)
	logger := log.FromContext(r.Context())
	fields := log.NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, "", "", "").
		WithHTTPResponse(status, 0, false)
	if status >= http.StatusInternalServerError {
		log.NewStructuredLogger(logger).LogError(r.Context(), "Request failed", err, logger.Component(), op, fields)
	} else {
		logger.WarnContext(r.Context(), "Request rejected", fields.WithError(err).WithOperation(op).ToSlice()...)
	}
	ErrorResponse(status, msg).Write(w)
}

// badRequestError marks malformed input that never reached validation.
type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

func badRequest(msg string) error { return &badRequestError{msg: msg} }
