package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/tavola-kitchen/api/internal/platform/requestctx"
)

// Error is the JSON error envelope returned by the API.
type Error struct {
	Code    string
	Message string
	Status  int
	Details map[string]any
}

// NewError constructs an Error; a zero status becomes 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    sanitize(code, 80),
		Message: sanitize(message, 512),
		Status:  status,
	}
}

// WithDetails attaches extra fields merged into the envelope.
func (e Error) WithDetails(details map[string]any) Error {
	if len(details) == 0 {
		return e
	}
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	e.Details = merged
	return e
}

// WriteError writes err as JSON, stamping the request and trace ids from ctx.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	payload := map[string]any{
		"error":   err.Code,
		"message": err.Message,
		"status":  status,
	}
	for k, v := range err.Details {
		payload[k] = v
	}
	if id := sanitize(middleware.GetReqID(ctx), 80); id != "" {
		payload["request_id"] = id
	}
	if id := sanitize(requestctx.TraceID(ctx), 64); id != "" {
		payload["trace_id"] = id
	}
	WriteJSON(w, status, payload)
}

func sanitize(value string, limit int) string {
	value = strings.TrimSpace(strings.NewReplacer("\n", " ", "\r", " ").Replace(value))
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
