package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	defaultRefreshMaxAttempts    = 3
	defaultRefreshInitialBackoff = 500 * time.Millisecond
	defaultRefreshMaxBackoff     = 10 * time.Second
	defaultRefreshLockTTL        = 30 * time.Second
)

// ExponentialBackoffScheduler doubles the delay per attempt up to Max.
type ExponentialBackoffScheduler struct {
	Initial time.Duration
	Max     time.Duration
}

func (s ExponentialBackoffScheduler) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := s.Initial
	if initial <= 0 {
		initial = defaultRefreshInitialBackoff
	}
	max := s.Max
	if max <= 0 {
		max = defaultRefreshMaxBackoff
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// RefreshRunResult reports how a retrying refresh run ended.
type RefreshRunResult struct {
	Attempts      int
	PendingReauth bool
}

type RefreshRunOptions struct {
	MaxAttempts int
	LockTTL     time.Duration
}

// RunRefreshWithRetry drives Refresh through the backoff scheduler. Terminal
// failures stop retries immediately; the credential is already in the Failed
// state by the time the error surfaces.
func (m *Manager) RunRefreshWithRetry(ctx context.Context, provider string, opts RefreshRunOptions) (RefreshRunResult, error) {
	if m == nil {
		return RefreshRunResult{}, fmt.Errorf("core: manager is nil")
	}
	provider = normalizeProvider(provider)
	if provider == "" {
		return RefreshRunResult{}, m.mapError(fmt.Errorf("core: provider id is required"))
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = defaultRefreshMaxAttempts
	}
	lockTTL := opts.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultRefreshLockTTL
	}

	unlock := func() {}
	if m.providerLocker != nil {
		lockHandle, lockErr := m.providerLocker.Acquire(ctx, provider, lockTTL)
		if lockErr != nil {
			return RefreshRunResult{}, m.mapError(lockErr)
		}
		unlock = func() {
			_ = lockHandle.Unlock(ctx)
		}
	}
	defer unlock()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		_, err := m.Refresh(ctx, provider)
		if err == nil {
			return RefreshRunResult{Attempts: attempt}, nil
		}
		lastErr = err

		if IsTerminalRefreshError(err) {
			return RefreshRunResult{Attempts: attempt, PendingReauth: true}, m.mapError(err)
		}
		if attempt == maxAttempts {
			return RefreshRunResult{Attempts: attempt}, m.mapError(err)
		}

		delay := defaultRefreshInitialBackoff
		if m.backoff != nil {
			delay = m.backoff.NextDelay(attempt)
		}
		if waitErr := waitWithContext(ctx, delay); waitErr != nil {
			return RefreshRunResult{Attempts: attempt}, m.mapError(waitErr)
		}
	}

	return RefreshRunResult{Attempts: maxAttempts}, m.mapError(lastErr)
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// MemoryProviderLocker is the in-process ProviderLocker used when no
// distributed lock backend is configured.
type MemoryProviderLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time
	nowFn func() time.Time
}

func NewMemoryProviderLocker() *MemoryProviderLocker {
	return &MemoryProviderLocker{
		locks: make(map[string]time.Time),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryProviderLocker) Acquire(_ context.Context, provider string, ttl time.Duration) (LockHandle, error) {
	if l == nil {
		return nil, fmt.Errorf("core: provider locker is not configured")
	}
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return nil, fmt.Errorf("core: provider id is required for lock acquisition")
	}
	if ttl <= 0 {
		ttl = defaultRefreshLockTTL
	}

	now := l.nowFn()
	l.mu.Lock()
	defer l.mu.Unlock()

	if until, ok := l.locks[provider]; ok && now.Before(until) {
		return nil, fmt.Errorf("core: refresh lock already held for provider %q", provider)
	}
	l.locks[provider] = now.Add(ttl)
	return &memoryLockHandle{locker: l, provider: provider}, nil
}

type memoryLockHandle struct {
	locker   *MemoryProviderLocker
	provider string
	once     sync.Once
}

func (h *memoryLockHandle) Unlock(_ context.Context) error {
	if h == nil || h.locker == nil {
		return nil
	}
	h.once.Do(func() {
		h.locker.mu.Lock()
		delete(h.locker.locks, h.provider)
		h.locker.mu.Unlock()
	})
	return nil
}
