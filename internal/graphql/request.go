package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
)

// ErrEmptyQuery is returned when an operation is sent without query text.
var ErrEmptyQuery = errors.New("graphql query is required")

var tracer = otel.Tracer("github.com/florianilch/gqlsession/internal/graphql")

// File is a binary attachment sent as one part of a multipart request.
type File struct {
	// Name is the filename reported to the server. Defaults to the field name.
	Name string
	// ContentType defaults to application/octet-stream.
	ContentType string
	Content     io.Reader
}

// request is one GraphQL operation.
type request struct {
	Query     string
	Variables map[string]any
	Files     map[string]File
}

// Fetch sends query with variables as a JSON body. nil variables are sent as {}.
func (c *Client) Fetch(ctx context.Context, query string, variables map[string]any) (*Response, error) {
	return c.send(ctx, request{Query: query, Variables: variables}, false)
}

// Upload sends query with variables and files as multipart/form-data. Each file
// becomes a part named after its map key. Without files it behaves like Fetch.
func (c *Client) Upload(ctx context.Context, query string, variables map[string]any, files map[string]File) (*Response, error) {
	return c.send(ctx, request{Query: query, Variables: variables, Files: files}, false)
}

// send performs a single POST. Authorization is computed unless refresh is set.
// Transport errors are returned unchanged.
func (c *Client) send(ctx context.Context, req request, refresh bool) (*Response, error) {
	if req.Query == "" {
		return nil, ErrEmptyQuery
	}
	if req.Variables == nil {
		req.Variables = map[string]any{}
	}

	spanName := "graphql.fetch"
	if refresh {
		spanName = "graphql.refresh"
	}
	operationID := uuid.NewString()
	ctx, span := tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("graphql.operation_id", operationID),
			attribute.Int("graphql.files", len(req.Files)),
		),
	)
	defer span.End()

	var token *oauth2.Token
	if !refresh {
		var err error
		token, err = c.authorization(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "authorization failed")
			return nil, err
		}
	}

	body, contentType, err := encodeRequest(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	if token != nil {
		token.SetAuthHeader(httpReq)
	}
	// Configured headers win over computed ones, except the body's Content-Type
	for key, value := range c.headers {
		if http.CanonicalHeaderKey(key) == "Content-Type" {
			continue
		}
		httpReq.Header.Set(key, value)
	}

	slog.DebugContext(ctx, "sending graphql request",
		"operation_id", operationID,
		"refresh", refresh,
		"authenticated", token != nil,
		"files", len(req.Files),
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failed")
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	out, err := decodeResponse(resp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid response")
		return nil, err
	}

	slog.DebugContext(ctx, "received graphql response",
		"operation_id", operationID,
		"status", out.StatusCode,
		"errors", len(out.Errors),
	)
	return out, nil
}

// encodeRequest returns the body and its content type.
func encodeRequest(req request) (io.Reader, string, error) {
	if len(req.Files) == 0 {
		body, err := json.Marshal(struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}{req.Query, req.Variables})
		if err != nil {
			return nil, "", fmt.Errorf("encoding request: %w", err)
		}
		return bytes.NewReader(body), "application/json", nil
	}

	variables, err := json.Marshal(req.Variables)
	if err != nil {
		return nil, "", fmt.Errorf("encoding variables: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("query", req.Query); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("variables", string(variables)); err != nil {
		return nil, "", err
	}

	fields := slices.Sorted(maps.Keys(req.Files))
	for _, field := range fields {
		if err := writeFilePart(w, field, req.Files[field]); err != nil {
			return nil, "", fmt.Errorf("encoding file %q: %w", field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeFilePart(w *multipart.Writer, field string, f File) error {
	name := f.Name
	if name == "" {
		name = field
	}
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(name)))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	if f.Content == nil {
		return nil
	}
	_, err = io.Copy(part, f.Content)
	return err
}
