package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Manager owns the authoritative credential state for every provider and
// mediates all mutations. Per-provider operations are totally ordered through
// a per-provider mutex; cross-provider operations interleave freely.
type Manager struct {
	config         Config
	logger         Logger
	loggerProvider LoggerProvider
	metrics        MetricsRecorder
	errorMapper    ErrorMapper
	secrets        SecretProvider
	store          CredentialStore
	catalog        CatalogView
	registry       Registry
	codec          CredentialCodec
	backoff        BackoffScheduler
	providerLocker ProviderLocker
	healthSink     HealthSink
	nowFn          func() time.Time

	mu     sync.Mutex
	states map[string]*providerState
}

type providerState struct {
	mu           sync.Mutex
	record       *Record
	authInFlight bool
	flight       *refreshFlight
}

func NewManager(cfg Config, options ...Option) (*Manager, error) {
	builder := defaultManagerBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("integrations", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("integrations"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metrics == nil {
		builder.metrics = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = integrationErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		builder.registry = NewProviderRegistry()
	}
	if builder.codec == nil {
		builder.codec = JSONCredentialCodec{}
	}
	if builder.backoff == nil {
		builder.backoff = ExponentialBackoffScheduler{
			Initial: defaultRefreshInitialBackoff,
			Max:     defaultRefreshMaxBackoff,
		}
	}
	if builder.nowFn == nil {
		builder.nowFn = func() time.Time { return time.Now().UTC() }
	}
	if builder.credentialStore != nil && builder.secretProvider == nil {
		return nil, fmt.Errorf("core: a secret provider is required when a credential store is configured")
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &Manager{
		config:         finalConfig,
		logger:         logger,
		loggerProvider: provider,
		metrics:        builder.metrics,
		errorMapper:    builder.errorMapper,
		secrets:        builder.secretProvider,
		store:          builder.credentialStore,
		catalog:        builder.catalog,
		registry:       builder.registry,
		codec:          builder.codec,
		backoff:        builder.backoff,
		providerLocker: builder.providerLocker,
		healthSink:     builder.healthSink,
		nowFn:          builder.nowFn,
		states:         make(map[string]*providerState),
	}, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper != nil {
		if mapped := mapper(err); mapped != nil {
			return mapped
		}
	}
	return err
}

func (m *Manager) Config() Config {
	if m == nil {
		return Config{}
	}
	return m.config
}

func (m *Manager) Registry() Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Manager) mapError(err error) error {
	if err == nil {
		return nil
	}
	if m != nil && m.errorMapper != nil {
		if mapped := m.errorMapper(err); mapped != nil {
			return mapped
		}
	}
	return err
}

func (m *Manager) now() time.Time {
	if m == nil || m.nowFn == nil {
		return time.Now().UTC()
	}
	return m.nowFn().UTC()
}

func (m *Manager) state(provider string) *providerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[provider]
	if !ok {
		st = &providerState{}
		m.states[provider] = st
	}
	return st
}

func (m *Manager) provider(providerID string) (string, Provider, error) {
	id := normalizeProvider(providerID)
	if id == "" {
		return "", nil, fmt.Errorf("core: provider id is required")
	}
	if m.registry == nil {
		return "", nil, fmt.Errorf("core: provider registry is not configured")
	}
	impl, ok := m.registry.Get(id)
	if !ok {
		return "", nil, errProviderNotFound(id)
	}
	return id, impl, nil
}

// GetTokenInfo returns a copy of the provider's credential record, if any.
func (m *Manager) GetTokenInfo(provider string) (Record, bool) {
	if m == nil {
		return Record{}, false
	}
	st := m.state(normalizeProvider(provider))
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.record == nil {
		return Record{}, false
	}
	return st.record.Clone(), true
}

// HasValidToken reports whether the provider's credential is Active and not
// expired. A record in Expiring already needs attention and does not count.
func (m *Manager) HasValidToken(provider string) bool {
	record, ok := m.GetTokenInfo(provider)
	if !ok || record.State != StateActive {
		return false
	}
	if record.ExpiresAt == nil {
		return true
	}
	return record.ExpiresAt.After(m.now())
}

// ActiveProviders lists providers whose credential is Active or Expiring,
// sorted ascending. This is the authorized set fed to the dependency
// resolver.
func (m *Manager) ActiveProviders() []string {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	states := make(map[string]*providerState, len(m.states))
	for provider, st := range m.states {
		states[provider] = st
	}
	m.mu.Unlock()

	out := make([]string, 0, len(states))
	for _, provider := range sortedProviders(states) {
		st := states[provider]
		st.mu.Lock()
		if st.record != nil && (st.record.State == StateActive || st.record.State == StateExpiring) {
			out = append(out, provider)
		}
		st.mu.Unlock()
	}
	return out
}

// Snapshot observes expiry for every provider and returns record copies
// sorted by provider. The Active -> Expiring transition happens here, which
// is how the scheduler "observes" credentials entering the refresh window.
func (m *Manager) Snapshot() []Record {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	states := make(map[string]*providerState, len(m.states))
	for provider, st := range m.states {
		states[provider] = st
	}
	m.mu.Unlock()

	now := m.now()
	out := make([]Record, 0, len(states))
	for _, provider := range sortedProviders(states) {
		st := states[provider]
		st.mu.Lock()
		if st.record != nil {
			m.observeExpiryLocked(st, provider, now)
			out = append(out, st.record.Clone())
		}
		st.mu.Unlock()
	}
	return out
}

// observeExpiryLocked moves an Active record into Expiring once inside the
// provider's refresh window. Caller holds st.mu.
func (m *Manager) observeExpiryLocked(st *providerState, provider string, now time.Time) {
	if st.record == nil || st.record.State != StateActive {
		return
	}
	tokenState := ResolveTokenState(now, *st.record, m.config.RefreshThresholdFor(provider))
	if tokenState.IsExpired || tokenState.IsExpiringSoon {
		_ = st.record.TransitionTo(StateExpiring, "", now)
	}
}

// Hydrate loads persisted credential snapshots into memory. Transient states
// do not survive a restart: authenticating drops to unauthenticated,
// refreshing falls back to expiring.
func (m *Manager) Hydrate(ctx context.Context) error {
	if m == nil {
		return fmt.Errorf("core: manager is nil")
	}
	if m.store == nil {
		return nil
	}
	stored, err := m.store.LoadAll(ctx)
	if err != nil {
		return m.mapError(err)
	}
	now := m.now()
	for _, snapshot := range stored {
		record, decodeErr := m.decodeStored(ctx, snapshot)
		if decodeErr != nil {
			m.logError(ctx, "hydrate skipped undecodable credential", map[string]any{
				"provider": snapshot.Provider,
				"error":    decodeErr.Error(),
			})
			continue
		}
		switch record.State {
		case StateAuthenticating, StateUnauthenticated:
			continue
		case StateRefreshing:
			record.State = StateExpiring
		}
		record.UpdatedAt = now

		st := m.state(record.Provider)
		st.mu.Lock()
		copied := record.Clone()
		st.record = &copied
		st.mu.Unlock()
	}
	return nil
}

func (m *Manager) persistRecord(ctx context.Context, record Record) error {
	if m.store == nil {
		return nil
	}
	payload, err := m.codec.Encode(record)
	if err != nil {
		return err
	}
	encrypted, err := m.secrets.Encrypt(ctx, payload)
	if err != nil {
		return fmt.Errorf("core: encrypt credential payload: %w", err)
	}
	return m.store.SaveSnapshot(ctx, SaveCredentialInput{
		Provider:         record.Provider,
		EncryptedPayload: encrypted,
		PayloadFormat:    m.codec.Format(),
		PayloadVersion:   m.codec.Version(),
		State:            record.State,
		ExpiresAt:        cloneTimePointer(record.ExpiresAt),
		LastError:        record.LastError,
	})
}

func (m *Manager) deleteStored(ctx context.Context, provider string) {
	if m.store == nil {
		return
	}
	if err := m.store.DeleteByProvider(ctx, provider); err != nil {
		m.logError(ctx, "delete stored credential failed", map[string]any{
			"provider": provider,
			"error":    err.Error(),
		})
	}
}

func (m *Manager) decodeStored(ctx context.Context, snapshot StoredCredential) (Record, error) {
	if len(snapshot.EncryptedPayload) == 0 {
		return Record{}, fmt.Errorf("core: stored credential payload is empty")
	}
	payload, err := m.secrets.Decrypt(ctx, snapshot.EncryptedPayload)
	if err != nil {
		return Record{}, fmt.Errorf("core: decrypt credential payload: %w", err)
	}
	record, err := m.codec.Decode(payload)
	if err != nil {
		return Record{}, err
	}
	if record.Provider == "" {
		record.Provider = normalizeProvider(snapshot.Provider)
	}
	record.CreatedAt = snapshot.CreatedAt
	return record, nil
}

func normalizeProvider(provider string) string {
	return strings.TrimSpace(strings.ToLower(provider))
}
