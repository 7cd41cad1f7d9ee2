package authenticator_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/gqlsession/internal/authenticator"
	"github.com/florianilch/gqlsession/internal/graphql"
)

// graphqlServer answers every POST with the body returned by respond and records the variables.
func graphqlServer(t *testing.T, respond func(query string, variables map[string]any) string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(respond(p.Query, p.Variables)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPassword_Authenticate(t *testing.T) {
	var gotVariables map[string]any
	srv := graphqlServer(t, func(query string, variables map[string]any) string {
		assert.Equal(t, authenticator.LoginMutation, query)
		gotVariables = variables
		return `{"data":{"loginWithPassword":{"accessToken":"a","accessTokenLifetime":60,"refreshToken":"r","refreshTokenLifetime":3600}}}`
	})

	client, err := graphql.New(srv.URL)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, client.Authenticate(ctx, authenticator.Password{Email: "ada@example.com", Password: "secret"}))
	assert.Equal(t, map[string]any{"email": "ada@example.com", "password": "secret"}, gotVariables)

	access, ok, err := client.TokenStore().AccessToken(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a", access)
}

func TestPassword_Errors(t *testing.T) {
	tests := []struct {
		name     string
		auth     authenticator.Password
		response string
		wantErr  string
	}{
		{
			name:    "missing email",
			auth:    authenticator.Password{Password: "secret"},
			wantErr: "email cannot be empty",
		},
		{
			name:    "missing password",
			auth:    authenticator.Password{Email: "ada@example.com"},
			wantErr: "password cannot be empty",
		},
		{
			name:     "graphql error",
			auth:     authenticator.Password{Email: "ada@example.com", Password: "wrong"},
			response: `{"data":{"loginWithPassword":null},"errors":[{"message":"Invalid email or password"}]}`,
			wantErr:  "login failed: Invalid email or password",
		},
		{
			name:     "several graphql errors",
			auth:     authenticator.Password{Email: "ada@example.com", Password: "wrong"},
			response: `{"data":null,"errors":[{"message":"Account locked"},{"message":"Too many attempts"}]}`,
			wantErr:  "login failed: Account locked",
		},
		{
			name:     "no token set",
			auth:     authenticator.Password{Email: "ada@example.com", Password: "secret"},
			response: `{"data":{"loginWithPassword":null}}`,
			wantErr:  "login failed: no token set in response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := graphqlServer(t, func(string, map[string]any) string { return tt.response })
			client, err := graphql.New(srv.URL)
			require.NoError(t, err)

			err = client.Authenticate(context.Background(), tt.auth)
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}
