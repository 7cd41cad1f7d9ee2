package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"

	"github.com/florianilch/gqlsession/internal/tokenstore"
)

// AuthTokenSet is the token pair returned by login and refresh mutations.
type AuthTokenSet = tokenstore.AuthTokenSet

var (
	// ErrRefreshRejected is returned by Refresh when the response carries no token set.
	ErrRefreshRejected = errors.New("refresh token rejected")
	// ErrMalformedTokenSet is returned by Authenticate when the authenticator
	// produced no token set or one with empty tokens.
	ErrMalformedTokenSet = errors.New("malformed auth token set")
	// ErrNotAuthenticated is returned by Token when no usable token exists.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// RefreshMutation exchanges a refresh token for a new AuthTokenSet.
const RefreshMutation = `mutation refreshAuthToken($token: String!) {
  refreshAuthToken(token: $token) {
    accessToken
    accessTokenLifetime
    refreshToken
    refreshTokenLifetime
  }
}`

// Authenticator produces an initial AuthTokenSet, typically by running a login mutation.
type Authenticator interface {
	Authenticate(ctx context.Context, client *Client) (*AuthTokenSet, error)
}

// AuthenticatorFunc adapts a function to the Authenticator interface.
type AuthenticatorFunc func(ctx context.Context, client *Client) (*AuthTokenSet, error)

// Authenticate calls f.
func (f AuthenticatorFunc) Authenticate(ctx context.Context, client *Client) (*AuthTokenSet, error) {
	return f(ctx, client)
}

// Compile-time check to ensure Client implements oauth2.TokenSource
var _ oauth2.TokenSource = (*Client)(nil)

// Authenticate runs a and persists the token set it returns.
// Errors of the authenticator are returned unchanged.
func (c *Client) Authenticate(ctx context.Context, a Authenticator) error {
	set, err := a.Authenticate(ctx, c)
	if err != nil {
		return err
	}
	if set == nil || set.AccessToken == "" || set.RefreshToken == "" {
		return ErrMalformedTokenSet
	}
	if err := c.store.SetAuthTokenSet(ctx, *set); err != nil {
		return fmt.Errorf("storing auth token set: %w", err)
	}

	slog.InfoContext(ctx, "authenticated", "namespace", c.store.Namespace())
	return nil
}

// Logout removes the stored credentials of the session.
func (c *Client) Logout(ctx context.Context) error {
	return c.store.Logout(ctx)
}

// Refresh sends the refresh mutation for refreshToken without an Authorization
// header and returns the issued token set. Nothing is stored.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*AuthTokenSet, error) {
	resp, err := c.send(ctx, request{
		Query:     RefreshMutation,
		Variables: map[string]any{"token": refreshToken},
	}, true)
	if err != nil {
		return nil, err
	}

	var data struct {
		RefreshAuthToken *AuthTokenSet `json:"refreshAuthToken"`
	}
	if len(resp.Data) == 0 || json.Unmarshal(resp.Data, &data) != nil {
		return nil, ErrRefreshRejected
	}
	if data.RefreshAuthToken == nil || data.RefreshAuthToken.AccessToken == "" {
		return nil, ErrRefreshRejected
	}
	return data.RefreshAuthToken, nil
}

// Token implements oauth2.TokenSource. It refreshes like a request would and
// returns ErrNotAuthenticated instead of a guest token.
func (c *Client) Token() (*oauth2.Token, error) {
	// oauth2.TokenSource has no context parameter
	ctx := context.Background()

	token, err := c.authorization(ctx)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, ErrNotAuthenticated
	}
	if c.accessToken == "" {
		expires, ok, err := c.store.AccessTokenExpires(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			token.Expiry = expires
		}
	}
	return token, nil
}

// authorization returns the bearer token for the next request, or nil for a guest request.
func (c *Client) authorization(ctx context.Context) (*oauth2.Token, error) {
	if c.accessToken != "" {
		return bearer(c.accessToken), nil
	}

	accessToken, ok, err := c.store.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		return bearer(accessToken), nil
	}

	refreshToken, ok, err := c.store.RefreshToken(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	accessToken, ok, err = c.renew(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return bearer(accessToken), nil
}

// renewal is the outcome of one refresh, shared between deduplicated callers.
type renewal struct {
	accessToken string
	ok          bool
}

func (c *Client) renew(ctx context.Context, refreshToken string) (string, bool, error) {
	if !c.dedupe {
		r, err := c.renewOnce(ctx, refreshToken)
		return r.accessToken, r.ok, err
	}

	// The shared refresh outlives any single caller; each caller stops waiting
	// when its own context ends.
	ch := c.refreshGroup.DoChan(refreshToken, func() (any, error) {
		return c.renewOnce(context.WithoutCancel(ctx), refreshToken)
	})
	if c.refreshJoined != nil {
		c.refreshJoined()
	}

	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	case res := <-ch:
		if res.Shared {
			slog.DebugContext(ctx, "joined in-flight token refresh")
		}
		if res.Err != nil {
			return "", false, res.Err
		}
		r := res.Val.(renewal)
		return r.accessToken, r.ok, nil
	}
}

// renewOnce refreshes with refreshToken and stores the result. A rejected
// refresh clears the session and yields no token.
func (c *Client) renewOnce(ctx context.Context, refreshToken string) (renewal, error) {
	slog.DebugContext(ctx, "access token expired, refreshing", "namespace", c.store.Namespace())

	set, err := c.Refresh(ctx, refreshToken)
	if errors.Is(err, ErrRefreshRejected) {
		slog.WarnContext(ctx, "refresh token rejected, clearing session", "namespace", c.store.Namespace())
		if err := c.store.Logout(ctx); err != nil {
			return renewal{}, fmt.Errorf("clearing session: %w", err)
		}
		return renewal{}, nil
	}
	if err != nil {
		return renewal{}, err
	}

	if err := c.store.SetAuthTokenSet(ctx, *set); err != nil {
		return renewal{}, fmt.Errorf("storing refreshed tokens: %w", err)
	}

	accessToken, ok, err := c.store.AccessToken(ctx)
	if err != nil {
		return renewal{}, err
	}
	return renewal{accessToken: accessToken, ok: ok}, nil
}

func bearer(accessToken string) *oauth2.Token {
	return &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}
}
