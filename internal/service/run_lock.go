package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dripsheet/dripsheet/internal/database"
)

const runLockPrefix = "dripsheet:run:"

// ErrRunLockLost is returned when a run's lock expired or was taken over
// before the run finished.
var ErrRunLockLost = errors.New("run lock lost")

// RunLocker serialises runs against the same spreadsheet
type RunLocker interface {
	// Acquire returns ErrRunInProgress when another run holds the lock.
	Acquire(ctx context.Context, spreadsheetID string) (RunLock, error)
}

// RunLock is a held lock. Run refreshes it after every row so a long run
// keeps it for as long as it makes progress.
type RunLock interface {
	Refresh(ctx context.Context) error
	Release(ctx context.Context) error
}

// RedisRunLock is a RunLocker backed by a Redis key with a TTL
type RedisRunLock struct {
	rdb *database.Redis
	ttl time.Duration
}

// NewRedisRunLock creates a new RedisRunLock
func NewRedisRunLock(rdb *database.Redis, ttl time.Duration) *RedisRunLock {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisRunLock{rdb: rdb, ttl: ttl}
}

// Acquire takes the lock for spreadsheetID
func (l *RedisRunLock) Acquire(ctx context.Context, spreadsheetID string) (RunLock, error) {
	lease := &redisLease{
		rdb:   l.rdb,
		key:   runLockPrefix + spreadsheetID,
		token: uuid.New().String(),
		ttl:   l.ttl,
	}

	if err := l.rdb.AcquireLock(ctx, lease.key, lease.token, l.ttl); err != nil {
		if errors.Is(err, database.ErrLockHeld) {
			return nil, ErrRunInProgress
		}
		return nil, err
	}
	return lease, nil
}

type redisLease struct {
	rdb   *database.Redis
	key   string
	token string
	ttl   time.Duration
}

func (l *redisLease) Refresh(ctx context.Context) error {
	if err := l.rdb.ExtendLock(ctx, l.key, l.token, l.ttl); err != nil {
		if errors.Is(err, database.ErrLockHeld) {
			return ErrRunLockLost
		}
		return fmt.Errorf("%w: %v", ErrRunLockLost, err)
	}
	return nil
}

func (l *redisLease) Release(ctx context.Context) error {
	return l.rdb.ReleaseLock(ctx, l.key, l.token)
}
