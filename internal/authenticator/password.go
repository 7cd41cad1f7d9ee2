package authenticator

import (
	"context"
	"errors"
	"fmt"

	"github.com/florianilch/gqlsession/internal/graphql"
)

// LoginMutation exchanges an email and password for an AuthTokenSet.
const LoginMutation = `mutation loginWithPassword($email: String!, $password: String!) {
  loginWithPassword(email: $email, password: $password) {
    accessToken
    accessTokenLifetime
    refreshToken
    refreshTokenLifetime
  }
}`

// ErrLoginFailed is returned when the server answers without a token set.
var ErrLoginFailed = errors.New("login failed")

// Password logs in with the loginWithPassword mutation.
type Password struct {
	Email    string
	Password string
}

// Compile-time check to ensure Password implements graphql.Authenticator
var _ graphql.Authenticator = Password{}

// Authenticate sends the login mutation through client.
// The first GraphQL error of the response becomes the returned error message.
func (p Password) Authenticate(ctx context.Context, client *graphql.Client) (*graphql.AuthTokenSet, error) {
	if p.Email == "" {
		return nil, fmt.Errorf("email cannot be empty")
	}
	if p.Password == "" {
		return nil, fmt.Errorf("password cannot be empty")
	}

	resp, err := client.Fetch(ctx, LoginMutation, map[string]any{
		"email":    p.Email,
		"password": p.Password,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrLoginFailed, resp.Errors[0])
	}

	var data struct {
		LoginWithPassword *graphql.AuthTokenSet `json:"loginWithPassword"`
	}
	if err := resp.DecodeData(&data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	if data.LoginWithPassword == nil {
		return nil, fmt.Errorf("%w: no token set in response", ErrLoginFailed)
	}
	return data.LoginWithPassword, nil
}
