// Package distlock provides the cluster-wide locks the schedule runner takes
// so that a cron tick fires a rule on exactly one replica.
package distlock

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistLock is a lock with an owner token and an expiry. A lock instance is
// used from one goroutine; concurrent holders need their own instances.
type DistLock interface {
	// Acquire takes the lock without blocking and reports whether it did.
	Acquire(ctx context.Context) (bool, error)
	// Release drops the lock if this instance still owns it.
	Release(ctx context.Context) error
}

// Extender is implemented by locks whose expiry can be pushed out while
// they are held.
type Extender interface {
	Extend(ctx context.Context, ttl time.Duration) error
}

// Factory creates a lock for key.
type Factory func(key string, ttl time.Duration) DistLock

// NewFactory returns a factory for the best available backend: Redis when
// redisClient is non-nil, the schedule_fire_claims table otherwise.
func NewFactory(redisClient redis.Cmdable, db *sql.DB) Factory {
	return func(key string, ttl time.Duration) DistLock {
		return NewLock(redisClient, db, key, ttl)
	}
}

// NewLock creates a lock on the backend NewFactory would pick.
func NewLock(redisClient redis.Cmdable, db *sql.DB, key string, ttl time.Duration) DistLock {
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	return NewPGClaim(db, key, ttl)
}

// FireKey names the lock guarding one firing of a rule. Fire times are
// truncated to the minute, the resolution of a cron tick.
func FireKey(ruleID string, fire time.Time) string {
	return fmt.Sprintf("fire:%s:%s", ruleID, fire.UTC().Truncate(time.Minute).Format("200601021504"))
}

func ownerToken() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
