package tokenstore

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/florianilch/gqlsession/internal/storage"
)

// DefaultNamespace prefixes every key when no namespace is configured.
const DefaultNamespace = "gqlsession_"

const (
	keyAccessToken         = "accessToken"
	keyAccessTokenExpires  = "accessTokenExpires"
	keyRefreshToken        = "refreshToken"
	keyRefreshTokenExpires = "refreshTokenExpires"
)

// AuthTokenSet is a token pair issued by the server on login or refresh.
// Lifetimes are relative, in seconds.
type AuthTokenSet struct {
	AccessToken          string `json:"accessToken"`
	AccessTokenLifetime  int64  `json:"accessTokenLifetime"`
	RefreshToken         string `json:"refreshToken"`
	RefreshTokenLifetime int64  `json:"refreshTokenLifetime"`
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for expiry computation and checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store keeps the credentials of one client in a namespaced slice of a storage backend.
type Store struct {
	storage   storage.Storage
	namespace string
	now       func() time.Time
}

// New creates a Store on top of s. An empty namespace selects DefaultNamespace.
func New(s storage.Storage, namespace string, opts ...Option) *Store {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	st := &Store{
		storage:   s,
		namespace: namespace,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(st)
	}
	return st
}

// Namespace returns the key prefix of the store.
func (s *Store) Namespace() string {
	return s.namespace
}

// SetAuthTokenSet converts both lifetimes into absolute expiries and writes all four fields.
func (s *Store) SetAuthTokenSet(ctx context.Context, set AuthTokenSet) error {
	now := s.now()
	accessExpires := expiresAt(now, set.AccessTokenLifetime)
	refreshExpires := expiresAt(now, set.RefreshTokenLifetime)

	if err := s.set(ctx, keyAccessToken, set.AccessToken); err != nil {
		return err
	}
	if err := s.setTime(ctx, keyAccessTokenExpires, accessExpires); err != nil {
		return err
	}
	if err := s.set(ctx, keyRefreshToken, set.RefreshToken); err != nil {
		return err
	}
	return s.setTime(ctx, keyRefreshTokenExpires, refreshExpires)
}

// AccessToken returns the stored access token if it has not expired.
// An access token without a stored expiry is usable.
func (s *Store) AccessToken(ctx context.Context) (string, bool, error) {
	return s.usable(ctx, keyAccessToken, keyAccessTokenExpires)
}

// RefreshToken returns the stored refresh token if it has not expired.
func (s *Store) RefreshToken(ctx context.Context) (string, bool, error) {
	return s.usable(ctx, keyRefreshToken, keyRefreshTokenExpires)
}

// AccessTokenExpires returns the raw access token expiry.
func (s *Store) AccessTokenExpires(ctx context.Context) (time.Time, bool, error) {
	return s.getTime(ctx, keyAccessTokenExpires)
}

// RefreshTokenExpires returns the raw refresh token expiry.
func (s *Store) RefreshTokenExpires(ctx context.Context) (time.Time, bool, error) {
	return s.getTime(ctx, keyRefreshTokenExpires)
}

// SetAccessTokenExpires overwrites the access token expiry. The zero time removes it.
func (s *Store) SetAccessTokenExpires(ctx context.Context, t time.Time) error {
	if t.IsZero() {
		return s.remove(ctx, keyAccessTokenExpires)
	}
	return s.setTime(ctx, keyAccessTokenExpires, t)
}

// HasAccessToken reports whether a usable access token is stored.
func (s *Store) HasAccessToken(ctx context.Context) (bool, error) {
	_, ok, err := s.AccessToken(ctx)
	return ok, err
}

// HasRefreshToken reports whether a usable refresh token is stored.
func (s *Store) HasRefreshToken(ctx context.Context) (bool, error) {
	_, ok, err := s.RefreshToken(ctx)
	return ok, err
}

// Logout removes all four credential keys of the namespace.
func (s *Store) Logout(ctx context.Context) error {
	for _, key := range []string{keyAccessToken, keyAccessTokenExpires, keyRefreshToken, keyRefreshTokenExpires} {
		if err := s.remove(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) usable(ctx context.Context, tokenKey, expiresKey string) (string, bool, error) {
	token, ok, err := s.get(ctx, tokenKey)
	if err != nil || !ok || token == "" {
		return "", false, err
	}

	expires, ok, err := s.getTime(ctx, expiresKey)
	if err != nil {
		return "", false, err
	}
	if ok && !expires.After(s.now()) {
		return "", false, nil
	}
	return token, true, nil
}

func (s *Store) key(name string) string {
	return s.namespace + name
}

func (s *Store) get(ctx context.Context, name string) (string, bool, error) {
	v, ok, err := s.storage.Get(ctx, s.key(name))
	if err != nil {
		return "", false, fmt.Errorf("reading %s: %w", s.key(name), err)
	}
	return v, ok, nil
}

func (s *Store) set(ctx context.Context, name, value string) error {
	if err := s.storage.Set(ctx, s.key(name), value); err != nil {
		return fmt.Errorf("writing %s: %w", s.key(name), err)
	}
	return nil
}

func (s *Store) remove(ctx context.Context, name string) error {
	if err := s.storage.Remove(ctx, s.key(name)); err != nil {
		return fmt.Errorf("removing %s: %w", s.key(name), err)
	}
	return nil
}

func (s *Store) getTime(ctx context.Context, name string) (time.Time, bool, error) {
	raw, ok, err := s.get(ctx, name)
	if err != nil || !ok || raw == "" {
		return time.Time{}, false, err
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parsing %s: %w", s.key(name), err)
	}
	return time.UnixMilli(ms), true, nil
}

// expiresAt adds lifetime seconds to now in Unix milliseconds, saturating at
// the int64 range so huge lifetimes never wrap into the past.
func expiresAt(now time.Time, lifetime int64) time.Time {
	var delta int64
	switch {
	case lifetime > math.MaxInt64/1000:
		delta = math.MaxInt64
	case lifetime < math.MinInt64/1000:
		delta = math.MinInt64
	default:
		delta = lifetime * 1000
	}

	nowMs := now.UnixMilli()
	ms := nowMs + delta
	switch {
	case delta > 0 && ms < nowMs:
		ms = math.MaxInt64
	case delta < 0 && ms > nowMs:
		ms = math.MinInt64
	}
	return time.UnixMilli(ms)
}

func (s *Store) setTime(ctx context.Context, name string, t time.Time) error {
	return s.set(ctx, name, strconv.FormatInt(t.UnixMilli(), 10))
}
