package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/gqlsession/internal/observability"
	"github.com/florianilch/gqlsession/internal/tokenstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText       LogFormat = observability.FormatText
	LogFormatJSON       LogFormat = observability.FormatJSON
	LogFormatOTelStdout LogFormat = observability.FormatOTelStdout
	LogFormatOTLPHTTP   LogFormat = observability.FormatOTLPHTTP
	LogFormatOTLPGRPC   LogFormat = observability.FormatOTLPGRPC
)

// StorageType represents the different backends supported for stored credentials.
type StorageType string

const (
	StorageTypeMemory   StorageType = "memory"
	StorageTypeFile     StorageType = "file"
	StorageTypeKeyring  StorageType = "keyring"
	StorageTypeSQLite   StorageType = "sqlite"
	StorageTypePostgres StorageType = "postgres"
)

// Default configuration values
const (
	DefaultConfigLogFormat       = LogFormatText
	DefaultConfigNamespace       = tokenstore.DefaultNamespace
	DefaultConfigTimeout         = 30 * time.Second
	DefaultConfigStorageType     = StorageTypeFile
	DefaultConfigKeyringService  = "gqlsession"
	DefaultConfigGatewayHost     = "127.0.0.1"
	DefaultConfigGatewayPort     = 4100
	DefaultConfigGatewayPath     = "/graphql"
	DefaultConfigShutdownTimeout = 5 * time.Second
)

// StorageConfig describes where session credentials are kept.
type StorageConfig struct {
	Type StorageType `json:"type" validate:"required,oneof=memory file keyring sqlite postgres"`

	// Backend-specific settings (used depending on Type)
	File           string `json:"file,omitempty"`            // For file storage: path to credentials file
	KeyringService string `json:"keyring_service,omitempty"` // For keyring storage: service identifier
	DSN            string `json:"dsn,omitempty"`             // For sqlite/postgres storage: data source name
}

// GatewayConfig holds configuration of the local GraphQL gateway.
type GatewayConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
	Path string `json:"path" validate:"startswith=/"`
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level `json:"log_level"`
	LogFormat LogFormat  `json:"log_format" validate:"oneof=text json otel-stdout otlp-http otlp-grpc"`

	// Endpoint is the GraphQL API URL.
	Endpoint string `json:"endpoint" validate:"required,url"`
	// Namespace prefixes every stored credential key.
	Namespace string `json:"namespace" validate:"required"`
	// AccessToken, if set, is sent on every request instead of stored tokens.
	AccessToken string            `json:"access_token,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	// Timeout bounds each HTTP request to the endpoint.
	Timeout time.Duration `json:"timeout"`
	// DeduplicateRefresh collapses concurrent refreshes of the same refresh token.
	DeduplicateRefresh bool `json:"deduplicate_refresh"`

	Storage  StorageConfig  `json:"storage"`
	Gateway  GatewayConfig  `json:"gateway"`
	Shutdown ShutdownConfig `json:"shutdown"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Namespace == "" {
		c.Namespace = DefaultConfigNamespace
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultConfigTimeout
	}
	if c.Storage.Type == "" {
		c.Storage.Type = DefaultConfigStorageType
	}
	if c.Gateway.Host == "" {
		c.Gateway.Host = DefaultConfigGatewayHost
	}
	if c.Gateway.Port == 0 {
		c.Gateway.Port = DefaultConfigGatewayPort
	}
	if c.Gateway.Path == "" {
		c.Gateway.Path = DefaultConfigGatewayPath
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}

	// Dynamic defaults based on storage type
	switch c.Storage.Type {
	case StorageTypeFile:
		if c.Storage.File == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("storage.file required (auto-detect failed: %w)", err)
			}
			c.Storage.File = filepath.Join(configDir, "gqlsession", "credentials.json")
		}
	case StorageTypeKeyring:
		if c.Storage.KeyringService == "" {
			c.Storage.KeyringService = DefaultConfigKeyringService
		}
	case StorageTypeSQLite, StorageTypePostgres:
		// dsn must be explicitly configured (no sensible default)
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Storage.Type {
	case StorageTypeFile:
		if c.Storage.File == "" {
			return errors.New("file path required for file storage")
		}
	case StorageTypeKeyring:
		if c.Storage.KeyringService == "" {
			return errors.New("keyring_service required for keyring storage")
		}
	case StorageTypeSQLite, StorageTypePostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("dsn required for %s storage", c.Storage.Type)
		}
	}

	return nil
}
