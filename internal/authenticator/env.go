package authenticator

import (
	"context"
	"fmt"
	"os"

	"github.com/florianilch/gqlsession/internal/graphql"
)

// EnvRefreshToken bootstraps a session from a refresh token stored in an
// environment variable. The variable is read on every Authenticate call.
type EnvRefreshToken struct {
	envKey string
}

// Compile-time check to ensure EnvRefreshToken implements graphql.Authenticator
var _ graphql.Authenticator = (*EnvRefreshToken)(nil)

// NewEnvRefreshToken creates an EnvRefreshToken for the given environment variable.
// Returns error if the variable name is empty or not set in the environment.
func NewEnvRefreshToken(envKey string) (*EnvRefreshToken, error) {
	if envKey == "" {
		return nil, fmt.Errorf("environment key cannot be empty")
	}

	if _, exists := os.LookupEnv(envKey); !exists {
		return nil, fmt.Errorf("environment variable %s not set", envKey)
	}

	return &EnvRefreshToken{
		envKey: envKey,
	}, nil
}

// Authenticate exchanges the refresh token from the environment for a new token set.
func (e *EnvRefreshToken) Authenticate(ctx context.Context, client *graphql.Client) (*graphql.AuthTokenSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	token := os.Getenv(e.envKey)
	if token == "" {
		return nil, fmt.Errorf("environment variable %s is empty", e.envKey)
	}

	set, err := client.Refresh(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("exchanging refresh token from %s: %w", e.envKey, err)
	}
	return set, nil
}
