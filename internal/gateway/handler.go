package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/httplog/v3"

	"github.com/florianilch/gqlsession/internal/graphql"
)

const (
	// maxBodyBytes bounds request bodies, uploads included.
	maxBodyBytes = 64 << 20
	// maxMemoryBytes is the share of a multipart body kept in memory; the rest spills to temp files.
	maxMemoryBytes = 8 << 20
)

// operationHandler decodes a GraphQL operation and forwards it through the dispatcher.
type operationHandler struct {
	dispatcher Dispatcher
}

// operation is the JSON body accepted by the gateway.
type operation struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func (h *operationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		writeJSONError(ctx, w, "missing or invalid Content-Type", http.StatusUnsupportedMediaType)
		return
	}

	var (
		op    operation
		files map[string]graphql.File
	)
	switch mediaType {
	case "application/json":
		if err := json.NewDecoder(r.Body).Decode(&op); err != nil {
			writeJSONError(ctx, w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
			return
		}
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxMemoryBytes); err != nil {
			writeJSONError(ctx, w, "invalid multipart body: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		op.Query = r.FormValue("query")
		if raw := r.FormValue("variables"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &op.Variables); err != nil {
				writeJSONError(ctx, w, "invalid variables: "+err.Error(), http.StatusBadRequest)
				return
			}
		}

		files = make(map[string]graphql.File, len(r.MultipartForm.File))
		for field, headers := range r.MultipartForm.File {
			if len(headers) == 0 {
				continue
			}
			f, err := headers[0].Open()
			if err != nil {
				writeJSONError(ctx, w, "reading file "+field+": "+err.Error(), http.StatusBadRequest)
				return
			}
			defer func() { _ = f.Close() }()

			files[field] = graphql.File{
				Name:        headers[0].Filename,
				ContentType: headers[0].Header.Get("Content-Type"),
				Content:     f,
			}
		}
	default:
		writeJSONError(ctx, w, "unsupported Content-Type "+mediaType, http.StatusUnsupportedMediaType)
		return
	}

	resp, err := h.dispatcher.Upload(ctx, op.Query, op.Variables, files)
	if errors.Is(err, graphql.ErrEmptyQuery) {
		writeJSONError(ctx, w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "upstream request failed", "request_id", RequestIDFromContext(ctx), "error", httplog.SetError(ctx, err))
		writeJSONError(ctx, w, "upstream request failed", http.StatusBadGateway)
		return
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	writeJSON(ctx, w, resp, status)
}
