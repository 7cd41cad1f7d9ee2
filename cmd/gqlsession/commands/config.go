package commands

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/gqlsession/internal/app"
)

// envPrefix is stripped from environment variables during config loading (e.g., GQLSESSION_STORAGE__TYPE → storage.type)
const envPrefix = "GQLSESSION_"

// loadConfig loads application configuration from various sources with precedence:
// config file → environment variables → CLI flags → defaults
func loadConfig(configPath string, cmd *cli.Command, environFunc func() []string) (*app.Config, error) {
	k := koanf.New(".")

	// 1. Load from config file if provided
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// 2. Load from environment variables
	envProvider := env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			stripped := strings.TrimPrefix(key, envPrefix)
			nested := strings.ToLower(strings.ReplaceAll(stripped, "__", "."))
			return nested, value
		},
		EnvironFunc: environFunc,
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	// 3. Load from CLI flags if provided
	if cmd != nil {
		flagValues, err := extractAndTransformFlags(cmd)
		if err != nil {
			return nil, err
		}
		if err := k.Load(confmap.Provider(flagValues, "."), nil); err != nil {
			return nil, fmt.Errorf("loading CLI flags: %w", err)
		}
	}

	config := &app.Config{}
	if err := k.UnmarshalWithConf("", config, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := config.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// headerFlag collects repeated --header K=V values into the headers map.
const headerFlag = "header"

// commandFlags are per-invocation inputs that never map onto config keys.
var commandFlags = map[string]bool{
	"config":            true,
	"email":             true,
	"password-env":      true,
	"refresh-token-env": true,
	"query":             true,
	"file":              true,
	"variables":         true,
	"attach":            true,
	headerFlag:          true,
}

// extractAndTransformFlags transforms CLI flag names to match config structure.
// Includes parent flags. Examples: --gateway--host → gateway.host, --log-level → log_level
func extractAndTransformFlags(cmd *cli.Command) (map[string]any, error) {
	values := make(map[string]any)

	// FlagNames() includes flags from parent commands (via lineage)
	for _, name := range cmd.FlagNames() {
		// Skip unset flags to preserve precedence from earlier config sources
		if !cmd.IsSet(name) || commandFlags[name] {
			continue
		}

		if value := cmd.Value(name); value != nil {
			key := strings.ReplaceAll(name, "--", ".")
			key = strings.ReplaceAll(key, "-", "_")
			values[key] = value
		}
	}

	if cmd.IsSet(headerFlag) {
		headers := make(map[string]any)
		for _, h := range cmd.StringSlice(headerFlag) {
			name, value, ok := strings.Cut(h, "=")
			if !ok || strings.TrimSpace(name) == "" {
				return nil, fmt.Errorf("invalid header %q, expected NAME=VALUE", h)
			}
			headers[strings.TrimSpace(name)] = value
		}
		values["headers"] = headers
	}

	return values, nil
}
