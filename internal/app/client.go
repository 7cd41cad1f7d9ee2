package app

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/florianilch/gqlsession/internal/graphql"
	"github.com/florianilch/gqlsession/internal/storage"
)

// NewStorage creates the storage backend described by the configuration.
// SQL backends open their database and run migrations.
func (s *StorageConfig) NewStorage(ctx context.Context) (storage.Storage, error) {
	switch s.Type {
	case StorageTypeMemory:
		return storage.NewMemoryStorage(), nil
	case StorageTypeFile:
		return storage.NewFileStorage(s.File)
	case StorageTypeKeyring:
		return storage.NewKeyringStorage(s.KeyringService)
	case StorageTypeSQLite:
		return storage.OpenSQLStorage(ctx, storage.DialectSQLite, s.DSN)
	case StorageTypePostgres:
		return storage.OpenSQLStorage(ctx, storage.DialectPostgres, s.DSN)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", s.Type)
	}
}

// NewClient creates a graphql.Client from the configuration. The returned
// close function releases the storage backend.
func NewClient(ctx context.Context, cfg *Config, opts ...graphql.Option) (*graphql.Client, func() error, error) {
	store, err := cfg.Storage.NewStorage(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create storage: %w", err)
	}
	closeStorage := func() error {
		if closer, ok := store.(io.Closer); ok {
			return closer.Close()
		}
		return nil
	}

	clientOpts := []graphql.Option{
		graphql.WithStorage(store),
		graphql.WithNamespace(cfg.Namespace),
		graphql.WithHeaders(cfg.Headers),
		graphql.WithAccessToken(cfg.AccessToken),
		graphql.WithHTTPClient(&http.Client{
			Timeout:   cfg.Timeout,
			Transport: http.DefaultTransport,
		}),
	}
	if cfg.DeduplicateRefresh {
		clientOpts = append(clientOpts, graphql.WithRefreshDeduplication())
	}

	client, err := graphql.New(cfg.Endpoint, append(clientOpts, opts...)...)
	if err != nil {
		_ = closeStorage()
		return nil, nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, closeStorage, nil
}
