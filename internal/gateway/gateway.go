package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/florianilch/gqlsession/internal/graphql"
)

// Dispatcher sends a GraphQL operation upstream. *graphql.Client implements it.
type Dispatcher interface {
	Upload(ctx context.Context, query string, variables map[string]any, files map[string]graphql.File) (*graphql.Response, error)
}

// Option configures a Gateway.
type Option func(*config)

// config holds configuration for New.
type config struct {
	path string
}

// WithPath sets the route operations are accepted on. Defaults to /graphql.
func WithPath(path string) Option {
	return func(c *config) {
		c.path = path
	}
}

// Gateway is the HTTP server forwarding GraphQL operations.
type Gateway struct {
	mux    *http.ServeMux
	server *http.Server
}

// Compile-time check that Gateway implements http.Handler
var _ http.Handler = (*Gateway)(nil)

// New creates a gateway forwarding to dispatcher.
func New(dispatcher Dispatcher, opts ...Option) (*Gateway, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("missing dispatcher")
	}

	cfg := &config{path: "/graphql"}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.path == "" || cfg.path[0] != '/' {
		return nil, fmt.Errorf("invalid gateway path %q", cfg.path)
	}

	logger := slog.Default()

	mux := http.NewServeMux()
	mux.Handle("POST "+cfg.path, applyMiddlewares(&operationHandler{dispatcher: dispatcher},
		Logging(logger),
		RequestID,
		Recovery,
	))

	return &Gateway{mux: mux}, nil
}

// ServeHTTP implements http.Handler interface
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mux.ServeHTTP(w, r)
}

// Start starts the HTTP server in the background and returns immediately.
// Returns a channel for runtime errors and a startup error if any.
//
// Startup errors (port in use, permission denied) are returned immediately.
// Runtime errors (network failures during operation) are sent to the error channel.
//
// The caller is responsible for calling Shutdown() to stop the server.
func (g *Gateway) Start(ctx context.Context, address string) (<-chan error, error) {
	// Create listener synchronously to catch port-in-use errors immediately
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	g.server = &http.Server{
		Handler:           g,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute, // Uploads may carry large files
		WriteTimeout:      2 * time.Minute, // Bounded by the upstream request timeout in practice
		IdleTimeout:       90 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := g.server.Serve(listener)
		// Only report error if not from graceful shutdown
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown performs graceful shutdown of the HTTP server.
// Returns error if shutdown fails or times out.
func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	if err := g.server.Shutdown(ctx); err != nil {
		// Graceful shutdown failed - force close
		_ = g.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}
