package distlock

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// A claim row is taken when it does not exist or has expired. The owner
// column keeps Release from dropping a claim another replica took over.
const (
	claimSQL = `INSERT INTO schedule_fire_claims (lock_key, owner, expires_at)
		VALUES ($1, $2, NOW() + $3 * INTERVAL '1 millisecond')
		ON CONFLICT (lock_key) DO UPDATE
			SET owner = EXCLUDED.owner, expires_at = EXCLUDED.expires_at
			WHERE schedule_fire_claims.expires_at < NOW()`
	unclaimSQL = `DELETE FROM schedule_fire_claims WHERE lock_key = $1 AND owner = $2`
)

// PGClaim is a DistLock stored as a row in schedule_fire_claims. It needs no
// session state, so it works through a pooled *sql.DB.
//
// TODO: purge rows whose expires_at is more than a day old; they are never
// reused because fire keys embed the minute.
type PGClaim struct {
	db    *sql.DB
	key   string
	owner string
	ttl   time.Duration
}

// NewPGClaim creates a claim for key that expires ttl after it is taken.
func NewPGClaim(db *sql.DB, key string, ttl time.Duration) *PGClaim {
	return &PGClaim{db: db, key: key, owner: ownerToken(), ttl: ttl}
}

func (c *PGClaim) Acquire(ctx context.Context) (bool, error) {
	res, err := c.db.ExecContext(ctx, claimSQL, c.key, c.owner, c.ttl.Milliseconds())
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", c.key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", c.key, err)
	}
	return n == 1, nil
}

func (c *PGClaim) Release(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, unclaimSQL, c.key, c.owner)
	return err
}
