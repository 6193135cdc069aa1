package token

import (
	"context"
	"errors"
	"time"

	"teamboard.io/internal/cache"
)

// KV is the slice of the cache the blacklist needs: atomic set-with-TTL and
// conditional set. *cache.Cache satisfies it.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
}

const blacklistPrefix = "token:blacklist:"

// Blacklist records revoked token identifiers until their natural expiry.
// Entries carry a TTL equal to the token's remaining lifetime, so the store
// self-expires and never grows unbounded.
type Blacklist struct {
	kv KV
}

// NewBlacklist wraps the shared cache backend.
func NewBlacklist(kv KV) *Blacklist {
	return &Blacklist{kv: kv}
}

// Revoke marks jti revoked for the remaining lifetime. A non-positive ttl
// means the token already expired and there is nothing to record.
func (b *Blacklist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return b.kv.Set(ctx, blacklistPrefix+jti, []byte(time.Now().UTC().Format(time.RFC3339)), ttl)
}

// RevokeOnce marks jti revoked and reports whether this call was the one that
// created the entry. Concurrent refresh calls race on this conditional write;
// only the winner may mint a replacement pair.
func (b *Blacklist) RevokeOnce(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, nil
	}
	return b.kv.SetNX(ctx, blacklistPrefix+jti, []byte(time.Now().UTC().Format(time.RFC3339)), ttl)
}

// Revoked reports whether jti is present in the blacklist.
func (b *Blacklist) Revoked(ctx context.Context, jti string) (bool, error) {
	_, err := b.kv.Get(ctx, blacklistPrefix+jti)
	if errors.Is(err, cache.ErrMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
