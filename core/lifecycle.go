package core

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Authenticate runs a full grant cycle for the provider. Requested scopes are
// seeded from the catalog's required scope set when a catalog is configured.
// Concurrent calls for the same provider do not race: the second is rejected
// with AlreadyActive while the first's attempt is outstanding.
func (m *Manager) Authenticate(ctx context.Context, provider string) (Record, error) {
	startedAt := m.now()
	record, err := m.authenticate(ctx, provider, nil)
	m.observeOperation(ctx, startedAt, "authenticate", normalizeProvider(provider), err)
	return record, err
}

func (m *Manager) authenticate(ctx context.Context, providerID string, requestedScopes []string) (Record, error) {
	id, impl, err := m.provider(providerID)
	if err != nil {
		return Record{}, m.mapError(err)
	}

	if m.catalog != nil {
		requiresAuth, catErr := m.catalog.RequiresAuthorization(id)
		if catErr != nil {
			return Record{}, m.mapError(catErr)
		}
		if !requiresAuth {
			return Record{}, m.mapError(newIntegrationError(
				"core: integration does not require authorization: "+id,
				goerrors.CategoryBadInput,
				ErrorCodeBadInput,
			))
		}
		if len(requestedScopes) == 0 {
			scopes, scopeErr := m.catalog.Scopes(id)
			if scopeErr != nil {
				return Record{}, m.mapError(scopeErr)
			}
			for _, scope := range scopes {
				if scope.Required {
					requestedScopes = append(requestedScopes, scope.ID)
				}
			}
		}
	}
	requestedScopes = normalizeScopes(requestedScopes)

	st := m.state(id)
	now := m.now()

	st.mu.Lock()
	if st.authInFlight {
		st.mu.Unlock()
		return Record{}, m.mapError(errAuthInFlight(id))
	}
	if st.record != nil {
		tokenState := ResolveTokenState(now, *st.record, m.config.RefreshThresholdFor(id))
		switch st.record.State {
		case StateActive, StateExpiring, StateRefreshing:
			if !tokenState.IsExpired {
				st.mu.Unlock()
				return Record{}, m.mapError(errAlreadyActive(id))
			}
		}
	}
	st.authInFlight = true
	pending := Record{Provider: id, State: StateAuthenticating, CreatedAt: now, UpdatedAt: now}
	st.record = &pending
	st.mu.Unlock()

	actx, cancel := context.WithTimeout(ctx, m.config.operationTimeout())
	grant, grantErr := impl.Authenticate(actx, GrantRequest{Provider: id, RequestedScopes: requestedScopes})
	cancel()

	st.mu.Lock()
	st.authInFlight = false
	if grantErr != nil {
		st.record = nil
		st.mu.Unlock()
		m.deleteStored(ctx, id)
		return Record{}, m.mapError(grantErr)
	}

	record := recordFromGrant(id, grant, m.now())
	record.CreatedAt = pending.CreatedAt
	copied := record.Clone()
	st.record = &copied
	st.mu.Unlock()

	if persistErr := m.persistRecord(ctx, record); persistErr != nil {
		st.mu.Lock()
		st.record = nil
		st.mu.Unlock()
		return Record{}, m.mapError(persistErr)
	}
	return record, nil
}

// Revoke clears the provider's credential. It is idempotent, preempts any
// in-flight refresh, and always clears local state even when the remote
// revocation call fails.
func (m *Manager) Revoke(ctx context.Context, provider string) error {
	startedAt := m.now()
	err := m.revoke(ctx, provider)
	m.observeOperation(ctx, startedAt, "revoke", normalizeProvider(provider), err)
	return err
}

func (m *Manager) revoke(ctx context.Context, providerID string) error {
	id, impl, err := m.provider(providerID)
	if err != nil {
		return m.mapError(err)
	}
	st := m.state(id)

	st.mu.Lock()
	for st.flight != nil {
		flight := st.flight
		flight.cancel()
		st.mu.Unlock()
		<-flight.done
		st.mu.Lock()
	}
	if st.record == nil {
		st.mu.Unlock()
		return nil
	}
	current := st.record.Clone()

	// Remote revocation is best effort: the local state never retains a
	// credential the caller believes is revoked.
	rctx, cancel := context.WithTimeout(ctx, m.config.operationTimeout())
	if remoteErr := impl.Revoke(rctx, current); remoteErr != nil {
		m.logError(ctx, "remote revoke failed, clearing local state anyway", map[string]any{
			"provider": id,
			"error":    remoteErr.Error(),
		})
	}
	cancel()

	st.record = nil
	st.mu.Unlock()

	m.deleteStored(ctx, id)
	return nil
}

// UpdateScopes validates the requested scope set against the catalog and
// either updates the grant in place or, when the delta requires re-consent,
// runs a fresh grant cycle.
func (m *Manager) UpdateScopes(ctx context.Context, provider string, requestedScopes []string) (Record, error) {
	startedAt := m.now()
	record, err := m.updateScopes(ctx, provider, requestedScopes)
	m.observeOperation(ctx, startedAt, "update_scopes", normalizeProvider(provider), err)
	return record, err
}

func (m *Manager) updateScopes(ctx context.Context, providerID string, requestedScopes []string) (Record, error) {
	id, _, err := m.provider(providerID)
	if err != nil {
		return Record{}, m.mapError(err)
	}
	if m.catalog == nil {
		return Record{}, m.mapError(newIntegrationError(
			"core: a catalog is required for scope updates",
			goerrors.CategoryInternal,
			ErrorCodeInternal,
		))
	}

	requested := normalizeScopes(requestedScopes)
	available, err := m.catalog.Scopes(id)
	if err != nil {
		return Record{}, m.mapError(err)
	}

	availableSet := make(map[string]ScopeInfo, len(available))
	for _, scope := range available {
		availableSet[normalizeProvider(scope.ID)] = scope
	}

	unknown := make([]string, 0)
	for _, scope := range requested {
		if _, ok := availableSet[scope]; !ok {
			unknown = append(unknown, scope)
		}
	}
	if len(unknown) > 0 {
		return Record{}, m.mapError(errUnknownScope(id, unknown))
	}

	requestedSet := toScopeSet(requested)
	missing := make([]string, 0)
	for _, scope := range available {
		if !scope.Required {
			continue
		}
		if _, ok := requestedSet[normalizeProvider(scope.ID)]; !ok {
			missing = append(missing, normalizeProvider(scope.ID))
		}
	}
	if len(missing) > 0 {
		return Record{}, m.mapError(errMissingRequiredScope(id, missing))
	}

	st := m.state(id)
	st.mu.Lock()
	if st.record == nil || st.record.State == StateUnauthenticated {
		st.mu.Unlock()
		return Record{}, m.mapError(errNotAuthenticated(id))
	}
	delta := ComputeScopeDelta(st.record.GrantedScopes, requested)

	needsReconsent := len(delta.Removed) > 0
	for _, added := range delta.Added {
		if scope, ok := availableSet[added]; ok && scope.RequiresReauth {
			needsReconsent = true
			break
		}
	}

	if !needsReconsent {
		now := m.now()
		st.record.GrantedScopes = requested
		st.record.UpdatedAt = now
		record := st.record.Clone()
		st.mu.Unlock()

		if len(delta.Added) > 0 {
			m.logInfo(ctx, "scope grant expanded in place", map[string]any{
				"provider": id,
				"added":    delta.Added,
			})
		}
		if persistErr := m.persistRecord(ctx, record); persistErr != nil {
			return Record{}, m.mapError(persistErr)
		}
		return record, nil
	}

	// The delta requires re-consent: drop the existing grant, then run a
	// fresh cycle for the new scope set.
	for st.flight != nil {
		flight := st.flight
		flight.cancel()
		st.mu.Unlock()
		<-flight.done
		st.mu.Lock()
	}
	st.record = nil
	st.mu.Unlock()
	m.deleteStored(ctx, id)

	m.logInfo(ctx, "scope delta requires re-consent", map[string]any{
		"provider":   id,
		"event_type": delta.EventType,
		"added":      delta.Added,
		"removed":    delta.Removed,
	})
	return m.authenticate(ctx, id, requested)
}

// TestConnection issues one synchronous probe. Probe failures surface through
// the result, never through credential state.
func (m *Manager) TestConnection(ctx context.Context, provider string) (ProbeResult, error) {
	id, impl, err := m.provider(provider)
	if err != nil {
		return ProbeResult{}, m.mapError(err)
	}
	record, ok := m.GetTokenInfo(id)
	if !ok || record.State == StateUnauthenticated {
		return ProbeResult{}, m.mapError(errNotAuthenticated(id))
	}

	pctx, cancel := context.WithTimeout(ctx, m.config.ProbeTimeoutFor(id))
	startedAt := time.Now()
	probeErr := impl.Probe(pctx, record)
	latency := time.Since(startedAt)
	cancel()

	result := ProbeResult{
		Provider:  id,
		Success:   probeErr == nil,
		Latency:   latency,
		CheckedAt: m.now(),
	}
	if probeErr != nil {
		result.Error = probeErr.Error()
	}
	if m.healthSink != nil {
		m.healthSink.Record(result)
	}
	return result, nil
}

func recordFromGrant(provider string, grant Grant, now time.Time) Record {
	issuedAt := grant.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = now
	}
	tokenType := grant.TokenType
	if tokenType == "" {
		tokenType = "bearer"
	}
	return Record{
		Provider:      provider,
		TokenType:     tokenType,
		AccessToken:   grant.AccessToken,
		RefreshToken:  grant.RefreshToken,
		GrantedScopes: normalizeScopes(grant.GrantedScopes),
		IssuedAt:      issuedAt,
		ExpiresAt:     cloneTimePointer(grant.ExpiresAt),
		State:         StateActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
