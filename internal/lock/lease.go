package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LeaseKey is the Redis key guarding the single ledger writer of a deployment.
const LeaseKey = "spicechain:ledger-writer"

// ErrLeaseHeld is returned when another process owns the writer lease.
var ErrLeaseHeld = errors.New("ledger writer lease is held by another process")

// Lease is a Redis-backed exclusive claim kept alive in the background.
// Only the holder may append to a shared ledger, since each process keeps
// its own in-memory projection.
type Lease struct {
	mutex  *redsync.Mutex
	ttl    time.Duration
	log    *zap.Logger
	onLost func(error)
	stop   chan struct{}
	done   chan struct{}
}

// AcquireLease claims key with the given ttl and renews it every ttl/3.
// onLost is called once if a renewal fails; the caller must stop writing.
func AcquireLease(ctx context.Context, client redis.UniversalClient, key string, ttl time.Duration, log *zap.Logger, onLost func(error)) (*Lease, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("lease ttl must be greater than 0")
	}
	rs := redsync.New(goredis.NewPool(client))
	mutex := rs.NewMutex(key,
		redsync.WithExpiry(ttl),
		redsync.WithTries(1),
	)
	if err := mutex.LockContext(ctx); err != nil {
		var taken redsync.ErrTaken
		var takenPtr *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) || errors.As(err, &takenPtr) {
			return nil, ErrLeaseHeld
		}
		return nil, fmt.Errorf("failed to acquire lease %s: %w", key, err)
	}

	l := &Lease{
		mutex:  mutex,
		ttl:    ttl,
		log:    log,
		onLost: onLost,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go l.renew()
	log.Info("ledger writer lease acquired", zap.String("key", key), zap.Duration("ttl", ttl))
	return l, nil
}

func (l *Lease) renew() {
	defer close(l.done)
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
			ok, err := l.mutex.ExtendContext(ctx)
			cancel()
			if err == nil && !ok {
				err = errors.New("lease extension refused")
			}
			if err != nil {
				l.log.Error("ledger writer lease lost", zap.String("key", l.mutex.Name()), zap.Error(err))
				if l.onLost != nil {
					l.onLost(err)
				}
				return
			}
		}
	}
}

// Release stops renewal and frees the key.
func (l *Lease) Release(ctx context.Context) error {
	select {
	case <-l.stop:
		return nil
	default:
		close(l.stop)
	}
	<-l.done
	ok, err := l.mutex.UnlockContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	if !ok {
		return errors.New("lease was not held or already expired")
	}
	return nil
}
