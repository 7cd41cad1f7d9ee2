package graphql

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/florianilch/gqlsession/internal/storage"
	"github.com/florianilch/gqlsession/internal/tokenstore"
)

var (
	// ErrMissingEndpoint is returned by New when no endpoint is given.
	ErrMissingEndpoint = errors.New("graphql endpoint is required")
	// ErrInvalidEndpoint is returned by New when the endpoint is not an absolute URL.
	ErrInvalidEndpoint = errors.New("invalid graphql endpoint")
)

// Option configures a Client.
type Option func(*clientConfig)

// clientConfig holds configuration for New.
type clientConfig struct {
	headers     map[string]string
	namespace   string
	storage     storage.Storage
	accessToken string
	httpClient  *http.Client
	now         func() time.Time
	dedupe      bool
}

// WithHeaders adds headers to every request. They override computed
// authorization headers on collision. Content-Type is ignored since it is
// determined by the request encoding.
func WithHeaders(headers map[string]string) Option {
	return func(c *clientConfig) {
		maps.Copy(c.headers, headers)
	}
}

// WithNamespace sets the key prefix for stored credentials.
// If not provided, tokenstore.DefaultNamespace is used.
func WithNamespace(namespace string) Option {
	return func(c *clientConfig) {
		c.namespace = namespace
	}
}

// WithStorage sets the credential storage backend.
// If not provided, a process-local storage.MemoryStorage is used.
func WithStorage(s storage.Storage) Option {
	return func(c *clientConfig) {
		c.storage = s
	}
}

// WithAccessToken configures a static access token. Stored tokens and
// refreshes are bypassed while it is set.
func WithAccessToken(token string) Option {
	return func(c *clientConfig) {
		c.accessToken = token
	}
}

// WithHTTPClient sets the HTTP client used for all requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithTransport sets a custom base transport (e.g., for proxies or tests).
// If not provided, http.DefaultTransport is used.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *clientConfig) {
		c.httpClient = &http.Client{Transport: transport}
	}
}

// WithClock overrides the time source for token expiry.
func WithClock(now func() time.Time) Option {
	return func(c *clientConfig) {
		c.now = now
	}
}

// WithRefreshDeduplication collapses concurrent refreshes that use the same
// refresh token into a single refresh mutation. Without it, overlapping calls
// with an expired access token each send their own refresh.
func WithRefreshDeduplication() Option {
	return func(c *clientConfig) {
		c.dedupe = true
	}
}

// Client sends GraphQL operations to a single endpoint on behalf of one session.
type Client struct {
	endpoint    string
	headers     map[string]string
	accessToken string
	httpClient  *http.Client
	store       *tokenstore.Store

	dedupe       bool
	refreshGroup singleflight.Group
	// refreshJoined, if set, runs once a caller has joined the shared refresh.
	refreshJoined func()
}

// New creates a Client for endpoint. It fails immediately when the endpoint
// is empty or not an absolute URL.
func New(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, ErrMissingEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidEndpoint, endpoint, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("%w %q: absolute URL required", ErrInvalidEndpoint, endpoint)
	}

	cfg := &clientConfig{
		headers: make(map[string]string),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.storage == nil {
		cfg.storage = storage.NewMemoryStorage()
	}
	if cfg.httpClient == nil {
		cfg.httpClient = &http.Client{Transport: http.DefaultTransport}
	}

	return &Client{
		endpoint:    endpoint,
		headers:     cfg.headers,
		accessToken: cfg.accessToken,
		httpClient:  cfg.httpClient,
		store:       tokenstore.New(cfg.storage, cfg.namespace, tokenstore.WithClock(cfg.now)),
		dedupe:      cfg.dedupe,
	}, nil
}

// Endpoint returns the URL requests are sent to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// TokenStore returns the store holding the session credentials.
func (c *Client) TokenStore() *tokenstore.Store {
	return c.store
}
