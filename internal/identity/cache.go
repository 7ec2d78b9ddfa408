// Package identity obtains and caches the short-lived identity token that the
// /api proxy presents to the private backend.
//
// The cache has two states, absent and valid. A token stays valid until it is
// within RefreshBuffer of its expiry; after that the next Get fetches a new one.
// There is no invalidation API: a token ages out or the process restarts.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ErrNoAudience is returned when no audience is configured for token requests.
var ErrNoAudience = errors.New("identity audience is not configured")

const (
	defaultLifetime      = time.Hour
	defaultRefreshBuffer = 10 * time.Minute
	defaultTimeout       = 5 * time.Second
)

// CacheOptions configures a Cache.
type CacheOptions struct {
	Source        TokenSource
	Audience      string
	Clock         Clock
	Lifetime      time.Duration
	RefreshBuffer time.Duration
	Timeout       time.Duration
	// AllowDegraded turns fetch failures into an empty credential instead of
	// an error. Set outside production, where the backend accepts anonymous calls.
	AllowDegraded bool
	Logger        *logrus.Logger
}

// State describes the cached credential for diagnostics.
type State struct {
	Cached    bool      `json:"cached"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Cache holds one identity token for one audience.
type Cache struct {
	opts  CacheOptions
	group singleflight.Group

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

// NewCache validates options and applies defaults.
func NewCache(opts CacheOptions) (*Cache, error) {
	if opts.Source == nil {
		return nil, errors.New("token source is required")
	}
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Lifetime <= 0 {
		opts.Lifetime = defaultLifetime
	}
	if opts.RefreshBuffer < 0 || opts.RefreshBuffer >= opts.Lifetime {
		opts.RefreshBuffer = defaultRefreshBuffer
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Cache{opts: opts}, nil
}

// Get returns the cached token while it is outside the refresh window and
// fetches a new one otherwise.
func (c *Cache) Get(ctx context.Context) (string, error) {
	if token, ok := c.cached(); ok {
		return token, nil
	}
	return c.Refresh(ctx)
}

// Refresh fetches a new token unconditionally. Concurrent callers share one
// in-flight fetch.
func (c *Cache) Refresh(ctx context.Context) (string, error) {
	token, err := c.fetch(ctx)
	if err == nil {
		return token, nil
	}
	if c.opts.AllowDegraded {
		c.opts.Logger.WithError(err).WithFields(logrus.Fields{
			"action":   "identity",
			"audience": c.opts.Audience,
		}).Warn("identity_degraded")
		return "", nil
	}
	return "", err
}

// State reports whether a token is cached and when it expires.
func (c *Cache) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" {
		return State{}
	}
	return State{Cached: true, ExpiresAt: c.expiresAt}
}

func (c *Cache) cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" {
		return "", false
	}
	if !c.opts.Clock.Now().Before(c.expiresAt.Add(-c.opts.RefreshBuffer)) {
		return "", false
	}
	return c.token, true
}

func (c *Cache) fetch(ctx context.Context) (string, error) {
	if c.opts.Audience == "" {
		return "", ErrNoAudience
	}

	// The shared fetch must not die with whichever caller started it.
	ch := c.group.DoChan(c.opts.Audience, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.Timeout)
		defer cancel()
		return c.fetchAndStore(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("wait for identity token: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Cache) fetchAndStore(ctx context.Context) (string, error) {
	fetchedAt := c.opts.Clock.Now()
	token, err := c.opts.Source.IDToken(ctx, c.opts.Audience)
	if err != nil {
		return "", fmt.Errorf("fetch identity token: %w", err)
	}
	if token == "" {
		return "", errors.New("fetch identity token: empty token")
	}
	expiresAt := tokenExpiry(token, fetchedAt, c.opts.Lifetime)

	c.mu.Lock()
	c.token = token
	c.expiresAt = expiresAt
	c.mu.Unlock()

	c.opts.Logger.WithFields(logrus.Fields{
		"action":     "identity",
		"audience":   c.opts.Audience,
		"expires_at": expiresAt.Format(time.RFC3339),
	}).Debug("identity_refreshed")
	return token, nil
}

// tokenExpiry assumes fetchedAt+lifetime, shortened to the JWT exp claim when
// the token carries an earlier one. The signature is not checked here.
func tokenExpiry(token string, fetchedAt time.Time, lifetime time.Duration) time.Time {
	expiresAt := fetchedAt.Add(lifetime)
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return expiresAt
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(expiresAt) {
		return claims.ExpiresAt.Time
	}
	return expiresAt
}
