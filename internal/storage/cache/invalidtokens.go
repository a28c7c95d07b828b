// --- File: internal/storage/cache/invalidtokens.go ---
// Package cache keeps a short-lived record of dead device tokens in Redis.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/tinywideclouds/go-relay-service/pkg/relay"
)

// DefaultTTL is how long a dead token stays visible to operators.
const DefaultTTL = 30 * 24 * time.Hour

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// InvalidTokenCache implements relay.InvalidTokenRecorder on a CacheClient.
type InvalidTokenCache struct {
	cache CacheClient
	ttl   time.Duration
	now   func() time.Time
}

func NewInvalidTokenCache(cache CacheClient, ttl time.Duration) *InvalidTokenCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &InvalidTokenCache{cache: cache, ttl: ttl, now: time.Now}
}

type invalidTokenEntry struct {
	relay.InvalidToken
	RecordedAt time.Time `json:"recorded_at"`
}

func (s *InvalidTokenCache) RecordInvalid(ctx context.Context, token relay.InvalidToken) error {
	entry := invalidTokenEntry{InvalidToken: token, RecordedAt: s.now().UTC()}
	if err := s.cache.Set(ctx, CacheKey(token.Platform, token.Token), entry, s.ttl); err != nil {
		return fmt.Errorf("failed to cache invalid token: %w", err)
	}
	return nil
}

// CacheKey hashes the token so raw tokens never become key names.
func CacheKey(platform relay.Platform, token string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("relay:invalid:%s:%s", platform, hex.EncodeToString(sum[:]))
}
