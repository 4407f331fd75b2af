// Package distlock provides best-effort distributed locks for the scheduler.
// Redis is the preferred backend; PostgreSQL advisory locks are the fallback
// when no Redis client is configured.
package distlock

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistLock is a single-use, non-reentrant lock. A lock instance must not be
// shared between goroutines.
type DistLock interface {
	// Acquire tries to take the lock without blocking. Returns true on success.
	Acquire(ctx context.Context) (bool, error)
	// Release gives the lock back if this instance still owns it.
	Release(ctx context.Context) error
}

// NewLock picks the best available backend: Redis when a client is provided,
// PostgreSQL advisory locks otherwise.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	if redisClient != nil {
		return newRedisLock(redisClient, key, ttl)
	}
	return newPGAdvisoryLock(db, key)
}

// redisLock is SET NX with a TTL. The random owner token plus the Lua release
// script prevent one process from releasing a lock another process now holds.
type redisLock struct {
	client *redis.Client
	key    string
	owner  string
	ttl    time.Duration
}

func newRedisLock(client *redis.Client, key string, ttl time.Duration) *redisLock {
	b := make([]byte, 16)
	rand.Read(b)
	return &redisLock{
		client: client,
		key:    "lock:" + key,
		owner:  hex.EncodeToString(b),
		ttl:    ttl,
	}
}

func (l *redisLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	return ok, nil
}

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

func (l *redisLock) Release(ctx context.Context) error {
	_, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.owner).Result()
	return err
}

// pgAdvisoryLock uses pg_try_advisory_lock with a lock id derived from the
// key. Advisory locks are session-scoped, so a dropped connection releases
// them, which gives crash safety comparable to a Redis TTL.
type pgAdvisoryLock struct {
	db     *sql.DB
	lockID int64
}

func newPGAdvisoryLock(db *sql.DB, key string) *pgAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &pgAdvisoryLock{db: db, lockID: int64(h.Sum64())}
}

func (l *pgAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	var acquired bool
	err := l.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired)
	return acquired, err
}

func (l *pgAdvisoryLock) Release(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}
