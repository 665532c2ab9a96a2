package core

import (
	"context"
	"fmt"
	"time"
)

// refreshFlight is the shared state of one in-flight refresh attempt. Joiners
// wait on done; record and err are safe to read once done is closed.
type refreshFlight struct {
	done   chan struct{}
	cancel context.CancelFunc
	record Record
	err    error
}

// Refresh renews the provider's credential. Concurrent calls for the same
// provider join a single upstream attempt and observe the same outcome. A
// fresh credential makes the call a no-op returning the current record.
func (m *Manager) Refresh(ctx context.Context, provider string) (Record, error) {
	startedAt := m.now()
	record, err := m.refresh(ctx, provider)
	m.observeOperation(ctx, startedAt, "refresh", normalizeProvider(provider), err)
	return record, err
}

func (m *Manager) refresh(ctx context.Context, providerID string) (Record, error) {
	id, impl, err := m.provider(providerID)
	if err != nil {
		return Record{}, m.mapError(err)
	}
	st := m.state(id)

	st.mu.Lock()
	if st.flight != nil {
		flight := st.flight
		st.mu.Unlock()
		return m.joinRefreshFlight(ctx, flight)
	}

	if st.record == nil || st.record.State == StateUnauthenticated {
		st.mu.Unlock()
		return Record{}, m.mapError(errNotAuthenticated(id))
	}
	if st.record.State == StateFailed {
		reason := st.record.LastError
		st.mu.Unlock()
		if reason == "" {
			reason = "previous refresh failed"
		}
		return Record{}, m.mapError(terminalRefreshError(id, fmt.Errorf("core: credential for %q requires re-authentication: %s", id, reason)))
	}

	now := m.now()
	tokenState := ResolveTokenState(now, *st.record, m.config.RefreshThresholdFor(id))
	if st.record.State == StateActive && !tokenState.IsExpired && !tokenState.IsExpiringSoon {
		record := st.record.Clone()
		st.mu.Unlock()
		return record, nil
	}
	if !tokenState.HasRefreshToken {
		reason := "no refresh token available"
		_ = st.record.TransitionTo(StateFailed, reason, now)
		record := st.record.Clone()
		st.mu.Unlock()
		m.persistBestEffort(ctx, record)
		return Record{}, m.mapError(terminalRefreshError(id, fmt.Errorf("core: no refresh token available for provider %q", id)))
	}

	if st.record.State == StateActive {
		_ = st.record.TransitionTo(StateExpiring, "token nearing expiry", now)
	}
	if transitionErr := st.record.TransitionTo(StateRefreshing, "refresh started", now); transitionErr != nil {
		st.mu.Unlock()
		return Record{}, m.mapError(transitionErr)
	}
	snapshot := st.record.Clone()

	// The attempt outlives any single caller: joiners and the leader may
	// cancel without killing the shared upstream call. Revoke preempts it
	// through flight.cancel.
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.config.operationTimeout())
	flight := &refreshFlight{
		done:   make(chan struct{}),
		cancel: cancel,
	}
	st.flight = flight
	st.mu.Unlock()

	go m.runRefreshFlight(fctx, cancel, flight, st, id, impl, snapshot)

	return m.joinRefreshFlight(ctx, flight)
}

func (m *Manager) runRefreshFlight(
	ctx context.Context,
	cancel context.CancelFunc,
	flight *refreshFlight,
	st *providerState,
	provider string,
	impl Provider,
	snapshot Record,
) {
	defer cancel()

	grant, refreshErr := impl.Refresh(ctx, snapshot)

	st.mu.Lock()
	now := m.now()
	switch {
	case refreshErr == nil:
		updated := snapshot
		applyGrant(&updated, grant, now)
		_ = updated.TransitionTo(StateActive, "refresh succeeded", now)
		copied := updated.Clone()
		st.record = &copied
		flight.record = updated.Clone()
	case IsTerminalRefreshError(refreshErr):
		if st.record != nil {
			_ = st.record.TransitionTo(StateFailed, refreshErr.Error(), now)
			flight.record = st.record.Clone()
		}
		flight.err = terminalRefreshError(provider, refreshErr)
	default:
		if st.record != nil {
			_ = st.record.TransitionTo(StateExpiring, refreshErr.Error(), now)
			flight.record = st.record.Clone()
		}
		flight.err = transientRefreshError(provider, refreshErr)
	}
	st.flight = nil
	persisted := flight.record
	st.mu.Unlock()

	if persisted.Provider != "" {
		m.persistBestEffort(context.WithoutCancel(ctx), persisted)
	}
	close(flight.done)
}

func (m *Manager) joinRefreshFlight(ctx context.Context, flight *refreshFlight) (Record, error) {
	select {
	case <-ctx.Done():
		return Record{}, m.mapError(ctx.Err())
	case <-flight.done:
	}
	if flight.err != nil {
		return Record{}, m.mapError(flight.err)
	}
	return flight.record.Clone(), nil
}

func (m *Manager) persistBestEffort(ctx context.Context, record Record) {
	if err := m.persistRecord(ctx, record); err != nil {
		m.logError(ctx, "credential persistence failed", map[string]any{
			"provider": record.Provider,
			"error":    err.Error(),
		})
	}
}

// applyGrant merges a refresh grant into an existing record. Providers that
// rotate refresh tokens return a new one; providers that do not leave the
// field empty and the previous token is kept.
func applyGrant(record *Record, grant Grant, now time.Time) {
	record.AccessToken = grant.AccessToken
	if grant.RefreshToken != "" {
		record.RefreshToken = grant.RefreshToken
	}
	if grant.TokenType != "" {
		record.TokenType = grant.TokenType
	}
	if len(grant.GrantedScopes) > 0 {
		record.GrantedScopes = normalizeScopes(grant.GrantedScopes)
	}
	if grant.IssuedAt.IsZero() {
		record.IssuedAt = now
	} else {
		record.IssuedAt = grant.IssuedAt
	}
	record.ExpiresAt = cloneTimePointer(grant.ExpiresAt)
	record.LastError = ""
	record.UpdatedAt = now
}
