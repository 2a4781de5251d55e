// Package mailbox reads intake messages from a shared Microsoft 365 mailbox
// through the Graph REST API.
package mailbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/travel-approval-service/internal/config"
)

// DefaultExpiryMargin is how long before its stated expiry a token stops
// being handed out.
const DefaultExpiryMargin = 2 * time.Minute

// Fetcher obtains a fresh access token.
type Fetcher interface {
	FetchToken(ctx context.Context) (token string, expiresAt time.Time, err error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) (string, time.Time, error)

// FetchToken implements Fetcher.
func (f FetcherFunc) FetchToken(ctx context.Context) (string, time.Time, error) {
	return f(ctx)
}

// ClientCredentials fetches app-only Graph tokens with the OAuth2 client
// credentials grant.
type ClientCredentials struct {
	cfg clientcredentials.Config
}

// NewClientCredentials builds a fetcher for the tenant in cfg.
func NewClientCredentials(cfg config.MailboxConfig) *ClientCredentials {
	return &ClientCredentials{cfg: clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     fmt.Sprintf("%s/%s/oauth2/v2.0/token", cfg.AuthorityURL, cfg.TenantID),
		Scopes:       []string{"https://graph.microsoft.com/.default"},
	}}
}

// FetchToken implements Fetcher.
func (c *ClientCredentials) FetchToken(ctx context.Context) (string, time.Time, error) {
	tok, err := c.cfg.Token(ctx)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("acquire graph token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", time.Time{}, errors.New("acquire graph token: empty access token")
	}
	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = time.Now().Add(time.Hour)
	}
	return tok.AccessToken, expiry, nil
}

type cachedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenCache hands out a cached access token and refreshes it once per
// expiry across concurrent callers. When a Redis client is set, tokens are
// shared between instances through it.
type TokenCache struct {
	fetcher Fetcher
	redis   *redis.Client
	key     string
	margin  time.Duration
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	current cachedToken
	group   singleflight.Group
}

// TokenCacheOptions configures a TokenCache. Redis may be nil.
type TokenCacheOptions struct {
	Redis  *redis.Client
	Key    string
	Margin time.Duration
	Logger *zap.Logger
}

// NewTokenCache wraps fetcher.
func NewTokenCache(fetcher Fetcher, opts TokenCacheOptions) *TokenCache {
	if opts.Margin <= 0 {
		opts.Margin = DefaultExpiryMargin
	}
	if opts.Key == "" {
		opts.Key = "graph-token"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &TokenCache{
		fetcher: fetcher,
		redis:   opts.Redis,
		key:     opts.Key,
		margin:  opts.Margin,
		logger:  opts.Logger,
		now:     time.Now,
	}
}

func (c *TokenCache) usable(t cachedToken) bool {
	return t.Token != "" && c.now().Add(c.margin).Before(t.ExpiresAt)
}

// Get returns a token that is valid for at least the expiry margin.
func (c *TokenCache) Get(ctx context.Context) (string, error) {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()
	if c.usable(current) {
		return current.Token, nil
	}

	v, err, _ := c.group.Do("token", func() (any, error) {
		c.mu.Lock()
		current := c.current
		c.mu.Unlock()
		if c.usable(current) {
			return current.Token, nil
		}
		if shared, ok := c.loadShared(ctx); ok {
			c.set(shared)
			return shared.Token, nil
		}
		token, expiresAt, err := c.fetcher.FetchToken(ctx)
		if err != nil {
			return "", err
		}
		fresh := cachedToken{Token: token, ExpiresAt: expiresAt}
		c.set(fresh)
		c.storeShared(ctx, fresh)
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token, locally and in Redis, so the next Get
// fetches a new one. Call it when the API rejects a token.
func (c *TokenCache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	c.current = cachedToken{}
	c.mu.Unlock()
	if c.redis != nil {
		if err := c.redis.Del(ctx, c.key).Err(); err != nil {
			c.logger.Warn("drop shared graph token", zap.Error(err))
		}
	}
}

func (c *TokenCache) set(t cachedToken) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

func (c *TokenCache) loadShared(ctx context.Context) (cachedToken, bool) {
	if c.redis == nil {
		return cachedToken{}, false
	}
	raw, err := c.redis.Get(ctx, c.key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("read shared graph token", zap.Error(err))
		}
		return cachedToken{}, false
	}
	var t cachedToken
	if err := json.Unmarshal(raw, &t); err != nil || !c.usable(t) {
		return cachedToken{}, false
	}
	return t, true
}

func (c *TokenCache) storeShared(ctx context.Context, t cachedToken) {
	if c.redis == nil {
		return
	}
	ttl := t.ExpiresAt.Sub(c.now()) - c.margin
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, c.key, raw, ttl).Err(); err != nil {
		c.logger.Warn("write shared graph token", zap.Error(err))
	}
}
