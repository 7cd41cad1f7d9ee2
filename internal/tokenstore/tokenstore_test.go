package tokenstore

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/gqlsession/internal/storage"
)

// fakeClock is a settable time source.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func newTestStore(t *testing.T) (*Store, *storage.MemoryStorage, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	mem := storage.NewMemoryStorage()
	return New(mem, "test_", WithClock(clock.Now)), mem, clock
}

func TestSetAuthTokenSet_PositiveLifetimes(t *testing.T) {
	ctx := context.Background()
	before := time.Now()
	s := New(storage.NewMemoryStorage(), "")

	require.NoError(t, s.SetAuthTokenSet(ctx, AuthTokenSet{
		AccessToken:          "access",
		AccessTokenLifetime:  23,
		RefreshToken:         "refresh",
		RefreshTokenLifetime: 10,
	}))

	access, ok, err := s.AccessToken(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "access", access)

	refresh, ok, err := s.RefreshToken(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "refresh", refresh)

	accessExpires, ok, err := s.AccessTokenExpires(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, accessExpires.After(before))

	refreshExpires, ok, err := s.RefreshTokenExpires(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, refreshExpires.After(before))
}

func TestSetAuthTokenSet_HugeLifetimes(t *testing.T) {
	tests := []struct {
		name     string
		lifetime int64
	}{
		{"beyond duration range", 10_000_000_000},
		{"beyond millisecond range", math.MaxInt64 / 1000 * 2},
		{"max int64", math.MaxInt64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s, _, clock := newTestStore(t)

			require.NoError(t, s.SetAuthTokenSet(ctx, AuthTokenSet{
				AccessToken: "a", AccessTokenLifetime: tt.lifetime,
				RefreshToken: "r", RefreshTokenLifetime: tt.lifetime,
			}))

			_, ok, err := s.AccessToken(ctx)
			require.NoError(t, err)
			assert.True(t, ok)

			refresh, ok, err := s.RefreshToken(ctx)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "r", refresh)

			expires, _, err := s.RefreshTokenExpires(ctx)
			require.NoError(t, err)
			assert.True(t, expires.After(clock.t))
		})
	}
}

func TestSetAuthTokenSet_HugeNegativeLifetimeIsExpired(t *testing.T) {
	ctx := context.Background()
	s, _, clock := newTestStore(t)

	require.NoError(t, s.SetAuthTokenSet(ctx, AuthTokenSet{
		AccessToken: "a", AccessTokenLifetime: math.MinInt64,
		RefreshToken: "r", RefreshTokenLifetime: -10_000_000_000,
	}))

	ok, err := s.HasAccessToken(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.HasRefreshToken(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	expires, _, err := s.RefreshTokenExpires(ctx)
	require.NoError(t, err)
	assert.True(t, expires.Before(clock.t))
}

func TestSetAuthTokenSet_ExpiryArithmetic(t *testing.T) {
	ctx := context.Background()
	s, mem, clock := newTestStore(t)

	require.NoError(t, s.SetAuthTokenSet(ctx, AuthTokenSet{
		AccessToken: "a", AccessTokenLifetime: 60,
		RefreshToken: "r", RefreshTokenLifetime: 3600,
	}))

	raw, ok, err := mem.Get(ctx, "test_accessTokenExpires")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1700000060000", raw)

	refreshExpires, _, err := s.RefreshTokenExpires(ctx)
	require.NoError(t, err)
	assert.Equal(t, clock.t.Add(time.Hour), refreshExpires)
}

func TestNonPositiveLifetimesReadAsAbsent(t *testing.T) {
	for _, lifetime := range []int64{-1, 0} {
		ctx := context.Background()
		s, mem, _ := newTestStore(t)

		require.NoError(t, s.SetAuthTokenSet(ctx, AuthTokenSet{
			AccessToken: "a", AccessTokenLifetime: lifetime,
			RefreshToken: "r", RefreshTokenLifetime: lifetime,
		}))

		_, ok, err := s.AccessToken(ctx)
		require.NoError(t, err)
		assert.False(t, ok, "lifetime %d", lifetime)

		_, ok, err = s.RefreshToken(ctx)
		require.NoError(t, err)
		assert.False(t, ok, "lifetime %d", lifetime)

		// expired values stay physically stored
		raw, ok, err := mem.Get(ctx, "test_accessToken")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "a", raw)
		raw, ok, err = mem.Get(ctx, "test_refreshToken")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "r", raw)
	}
}

func TestExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	s, _, clock := newTestStore(t)

	require.NoError(t, s.SetAuthTokenSet(ctx, AuthTokenSet{
		AccessToken: "a", AccessTokenLifetime: 10,
		RefreshToken: "r", RefreshTokenLifetime: 10,
	}))

	clock.t = clock.t.Add(10*time.Second - time.Millisecond)
	ok, err := s.HasAccessToken(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "one millisecond before expiry")

	clock.t = clock.t.Add(time.Millisecond)
	ok, err = s.HasAccessToken(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "expiry equal to now is unusable")

	ok, err = s.HasRefreshToken(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetAccessTokenExpires(t *testing.T) {
	ctx := context.Background()
	s, _, clock := newTestStore(t)

	require.NoError(t, s.SetAuthTokenSet(ctx, AuthTokenSet{
		AccessToken: "a", AccessTokenLifetime: -5,
		RefreshToken: "r", RefreshTokenLifetime: 10,
	}))
	ok, err := s.HasAccessToken(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.SetAccessTokenExpires(ctx, time.Time{}))
	_, ok, err = s.AccessTokenExpires(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	token, ok, err := s.AccessToken(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "token without expiry is usable")
	assert.Equal(t, "a", token)

	require.NoError(t, s.SetAccessTokenExpires(ctx, clock.t.Add(-time.Second)))
	ok, err = s.HasAccessToken(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	s, mem, _ := newTestStore(t)

	require.NoError(t, mem.Set(ctx, "other_accessToken", "keep"))
	require.NoError(t, s.SetAuthTokenSet(ctx, AuthTokenSet{
		AccessToken: "a", AccessTokenLifetime: 10,
		RefreshToken: "r", RefreshTokenLifetime: 10,
	}))

	require.NoError(t, s.Logout(ctx))

	_, ok, err := s.AccessToken(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = s.RefreshToken(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = s.AccessTokenExpires(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = s.RefreshTokenExpires(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := mem.Get(ctx, "other_accessToken")
	require.NoError(t, err)
	assert.True(t, ok, "other namespaces are untouched")
	assert.Equal(t, "keep", v)

	// logging out twice is fine
	require.NoError(t, s.Logout(ctx))
}

func TestNamespacesDoNotCollide(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryStorage()
	a := New(mem, "a_")
	b := New(mem, "b_")

	require.NoError(t, a.SetAuthTokenSet(ctx, AuthTokenSet{AccessToken: "ta", AccessTokenLifetime: 10, RefreshToken: "ra", RefreshTokenLifetime: 10}))
	require.NoError(t, b.SetAuthTokenSet(ctx, AuthTokenSet{AccessToken: "tb", AccessTokenLifetime: 10, RefreshToken: "rb", RefreshTokenLifetime: 10}))
	require.NoError(t, a.Logout(ctx))

	token, ok, err := b.AccessToken(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tb", token)
	assert.Equal(t, "b_", b.Namespace())
	assert.Equal(t, DefaultNamespace, New(mem, "").Namespace())
}

func TestCorruptExpiry(t *testing.T) {
	ctx := context.Background()
	s, mem, _ := newTestStore(t)

	require.NoError(t, mem.Set(ctx, "test_accessToken", "a"))
	require.NoError(t, mem.Set(ctx, "test_accessTokenExpires", "soon"))

	_, _, err := s.AccessToken(ctx)
	assert.ErrorContains(t, err, "test_accessTokenExpires")
}

// failingStorage rejects every operation.
type failingStorage struct{}

var errStorage = errors.New("storage offline")

func (*failingStorage) Get(context.Context, string) (string, bool, error) {
	return "", false, errStorage
}
func (*failingStorage) Set(context.Context, string, string) error { return errStorage }
func (*failingStorage) Remove(context.Context, string) error      { return errStorage }
func (*failingStorage) Clear(context.Context) error               { return errStorage }

func TestStorageErrorsAreWrapped(t *testing.T) {
	ctx := context.Background()
	s := New(&failingStorage{}, "x_")

	_, _, err := s.AccessToken(ctx)
	assert.ErrorIs(t, err, errStorage)
	assert.ErrorIs(t, s.SetAuthTokenSet(ctx, AuthTokenSet{}), errStorage)
	assert.ErrorIs(t, s.Logout(ctx), errStorage)
}
