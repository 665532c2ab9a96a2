package core

import (
	"context"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type scriptedRefreshProvider struct {
	*testProvider
	errs []error
}

func (p *scriptedRefreshProvider) Refresh(ctx context.Context, current Record) (Grant, error) {
	p.mu.Lock()
	p.refreshCalls++
	call := p.refreshCalls
	p.mu.Unlock()
	if call <= len(p.errs) && p.errs[call-1] != nil {
		return Grant{}, p.errs[call-1]
	}
	return p.issueGrant(current.GrantedScopes), nil
}

func TestRunRefreshWithRetry_RetriesAndSucceeds(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	provider := &scriptedRefreshProvider{
		testProvider: &testProvider{id: "github", nowFn: fixedClock(base), tokenTTL: 2 * time.Minute},
		errs: []error{
			goerrors.New("temporary upstream error", goerrors.CategoryExternal),
			nil,
		},
	}
	manager := newTestManager(t, []Provider{provider},
		WithClock(fixedClock(base)),
		WithBackoffScheduler(ExponentialBackoffScheduler{Initial: time.Millisecond, Max: time.Millisecond}),
	)
	if _, err := manager.Authenticate(ctx, "github"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	result, err := manager.RunRefreshWithRetry(ctx, "github", RefreshRunOptions{MaxAttempts: 3})
	if err != nil {
		t.Fatalf("run refresh: %v", err)
	}
	if result.Attempts != 2 {
		t.Fatalf("expected success on second attempt, got %d", result.Attempts)
	}
	record, ok := manager.GetTokenInfo("github")
	if !ok || record.State != StateActive {
		t.Fatalf("expected active credential after retry, got %+v", record)
	}
}

func TestRunRefreshWithRetry_StopsOnTerminalError(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	provider := &scriptedRefreshProvider{
		testProvider: &testProvider{id: "github", nowFn: fixedClock(base), tokenTTL: 2 * time.Minute},
		errs: []error{
			goerrors.New("refresh token revoked", goerrors.CategoryAuth).WithTextCode("TOKEN_EXPIRED"),
		},
	}
	manager := newTestManager(t, []Provider{provider},
		WithClock(fixedClock(base)),
		WithBackoffScheduler(ExponentialBackoffScheduler{Initial: time.Millisecond, Max: time.Millisecond}),
	)
	if _, err := manager.Authenticate(ctx, "github"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	result, err := manager.RunRefreshWithRetry(ctx, "github", RefreshRunOptions{MaxAttempts: 5})
	if err == nil {
		t.Fatal("expected terminal error to surface")
	}
	if result.Attempts != 1 {
		t.Fatalf("expected retries to stop after the terminal attempt, got %d", result.Attempts)
	}
	if !result.PendingReauth {
		t.Fatal("expected pending re-authentication flag")
	}
	record, ok := manager.GetTokenInfo("github")
	if !ok || record.State != StateFailed {
		t.Fatalf("expected failed credential, got %+v", record)
	}
}

func TestRunRefreshWithRetry_ExhaustsAttempts(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	provider := &scriptedRefreshProvider{
		testProvider: &testProvider{id: "github", nowFn: fixedClock(base), tokenTTL: 2 * time.Minute},
		errs: []error{
			goerrors.New("upstream unavailable", goerrors.CategoryExternal),
			goerrors.New("upstream unavailable", goerrors.CategoryExternal),
		},
	}
	manager := newTestManager(t, []Provider{provider},
		WithClock(fixedClock(base)),
		WithBackoffScheduler(ExponentialBackoffScheduler{Initial: time.Millisecond, Max: time.Millisecond}),
	)
	if _, err := manager.Authenticate(ctx, "github"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	result, err := manager.RunRefreshWithRetry(ctx, "github", RefreshRunOptions{MaxAttempts: 2})
	if err == nil {
		t.Fatal("expected exhausted retries to surface the last error")
	}
	if result.Attempts != 2 {
		t.Fatalf("expected both attempts consumed, got %d", result.Attempts)
	}
	if result.PendingReauth {
		t.Fatal("expected transient exhaustion to not demand re-authentication")
	}
}

func TestRunRefreshWithRetry_HonorsProviderLock(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	provider := &testProvider{id: "github", nowFn: fixedClock(base), tokenTTL: 2 * time.Minute}
	locker := NewMemoryProviderLocker()
	manager := newTestManager(t, []Provider{provider},
		WithClock(fixedClock(base)),
		WithProviderLocker(locker),
	)
	if _, err := manager.Authenticate(ctx, "github"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	held, err := locker.Acquire(ctx, "github", time.Minute)
	if err != nil {
		t.Fatalf("acquire lock: %v", err)
	}
	_, err = manager.RunRefreshWithRetry(ctx, "github", RefreshRunOptions{})
	if err == nil {
		t.Fatal("expected run to fail while the lock is held")
	}
	if !HasErrorCode(err, ErrorCodeRefreshLocked) {
		t.Fatalf("expected refresh-locked error, got %v", err)
	}

	if err := held.Unlock(ctx); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, err := manager.RunRefreshWithRetry(ctx, "github", RefreshRunOptions{}); err != nil {
		t.Fatalf("expected run to succeed after unlock, got %v", err)
	}
}

func TestMemoryProviderLocker_Contention(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryProviderLocker()

	first, err := locker.Acquire(ctx, "github", time.Minute)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if _, err := locker.Acquire(ctx, "github", time.Minute); err == nil {
		t.Fatal("expected second acquire to fail while held")
	}
	if _, err := locker.Acquire(ctx, "slack", time.Minute); err != nil {
		t.Fatalf("expected independent provider lock, got %v", err)
	}

	if err := first.Unlock(ctx); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if err := first.Unlock(ctx); err != nil {
		t.Fatalf("expected repeated unlock to be a no-op, got %v", err)
	}
	if _, err := locker.Acquire(ctx, "github", time.Minute); err != nil {
		t.Fatalf("expected acquire after unlock, got %v", err)
	}
}

func TestExponentialBackoffScheduler_Delays(t *testing.T) {
	scheduler := ExponentialBackoffScheduler{Initial: 100 * time.Millisecond, Max: 400 * time.Millisecond}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: 100 * time.Millisecond},
		{attempt: 1, want: 100 * time.Millisecond},
		{attempt: 2, want: 200 * time.Millisecond},
		{attempt: 3, want: 400 * time.Millisecond},
		{attempt: 6, want: 400 * time.Millisecond},
	}
	for _, tc := range tests {
		if got := scheduler.NextDelay(tc.attempt); got != tc.want {
			t.Fatalf("attempt %d: expected %s, got %s", tc.attempt, tc.want, got)
		}
	}
}
