// Package lock serializes commands on one order. RedisLocker works across
// processes; MemoryLocker is for single-process deployments and tests.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/dukerupert/verdandi/internal/domain"
)

// ErrLockTimeout is returned when the lock stays held past the wait budget.
var ErrLockTimeout = domain.Errorf(domain.ECONFLICT, "lock.acquire", "lock is held by another request")

// Options tune lock acquisition.
type Options struct {
	// TTL bounds how long a crashed holder can keep the lock. Default: 30s
	TTL time.Duration
	// Wait is how long Lock retries before giving up. Default: 5s
	Wait time.Duration
	// RetryInterval is the pause between attempts. Default: 50ms
	RetryInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = 30 * time.Second
	}
	if o.Wait <= 0 {
		o.Wait = 5 * time.Second
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = 50 * time.Millisecond
	}
	return o
}

// retry calls try until it succeeds, the wait budget runs out or ctx ends.
func retry(ctx context.Context, opts Options, try func() (bool, error)) error {
	deadline := time.Now().Add(opts.Wait)
	ticker := time.NewTicker(opts.RetryInterval)
	defer ticker.Stop()
	for {
		ok, err := try()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// MemoryLocker is an in-process OrderLocker.
type MemoryLocker struct {
	opts Options
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLocker(opts Options) *MemoryLocker {
	return &MemoryLocker{opts: opts.withDefaults(), held: make(map[string]struct{})}
}

var _ domain.OrderLocker = (*MemoryLocker)(nil)

func (m *MemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	err := retry(ctx, m.opts, func() (bool, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, busy := m.held[key]; busy {
			return false, nil
		}
		m.held[key] = struct{}{}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.held, key)
			m.mu.Unlock()
		})
	}, nil
}
