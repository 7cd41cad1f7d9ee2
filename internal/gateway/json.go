package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponse is the body of errors produced by the gateway itself.
// Upstream GraphQL errors are passed through unchanged instead.
type ErrorResponse struct {
	Errors []ErrorMessage `json:"errors"`
}

// ErrorMessage mirrors the message member of a GraphQL error.
type ErrorMessage struct {
	Message string `json:"message"`
}

// writeJSON writes a JSON response with the given status code.
// Logs encoding failures internally using the provided context.
func writeJSON(ctx context.Context, w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	// Headers and status are written before encoding to avoid buffering.
	// If encoding fails, the client may receive a partial response.
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.ErrorContext(ctx, "failed to encode JSON response", "error", err)
	}
}

// writeJSONError writes a GraphQL-shaped error response so clients can parse it
// the same way as upstream errors.
func writeJSONError(ctx context.Context, w http.ResponseWriter, message string, status int) {
	writeJSON(ctx, w, ErrorResponse{Errors: []ErrorMessage{{Message: message}}}, status)
}
