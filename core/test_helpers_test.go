package core

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

type testProvider struct {
	id       string
	tokenTTL time.Duration
	nowFn    func() time.Time

	authenticateFn func(ctx context.Context, req GrantRequest) (Grant, error)
	refreshFn      func(ctx context.Context, current Record) (Grant, error)
	revokeFn       func(ctx context.Context, current Record) error
	probeFn        func(ctx context.Context, current Record) error

	mu                sync.Mutex
	authenticateCalls int
	refreshCalls      int
	revokeCalls       int
	probeCalls        int
}

func (p *testProvider) ID() string { return p.id }

func (p *testProvider) Authenticate(ctx context.Context, req GrantRequest) (Grant, error) {
	p.mu.Lock()
	p.authenticateCalls++
	p.mu.Unlock()
	if p.authenticateFn != nil {
		return p.authenticateFn(ctx, req)
	}
	return p.issueGrant(req.RequestedScopes), nil
}

func (p *testProvider) Refresh(ctx context.Context, current Record) (Grant, error) {
	p.mu.Lock()
	p.refreshCalls++
	p.mu.Unlock()
	if p.refreshFn != nil {
		return p.refreshFn(ctx, current)
	}
	return p.issueGrant(current.GrantedScopes), nil
}

func (p *testProvider) Revoke(ctx context.Context, current Record) error {
	p.mu.Lock()
	p.revokeCalls++
	p.mu.Unlock()
	if p.revokeFn != nil {
		return p.revokeFn(ctx, current)
	}
	return nil
}

func (p *testProvider) Probe(ctx context.Context, current Record) error {
	p.mu.Lock()
	p.probeCalls++
	p.mu.Unlock()
	if p.probeFn != nil {
		return p.probeFn(ctx, current)
	}
	return nil
}

func (p *testProvider) issueGrant(scopes []string) Grant {
	now := time.Now().UTC()
	if p.nowFn != nil {
		now = p.nowFn()
	}
	ttl := p.tokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	expiresAt := now.Add(ttl)
	return Grant{
		TokenType:     "bearer",
		AccessToken:   p.id + "-access",
		RefreshToken:  p.id + "-refresh",
		GrantedScopes: append([]string(nil), scopes...),
		IssuedAt:      now,
		ExpiresAt:     &expiresAt,
	}
}

func (p *testProvider) calls() (authenticate, refresh, revoke, probe int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.authenticateCalls, p.refreshCalls, p.revokeCalls, p.probeCalls
}

type testSecretProvider struct{}

func (testSecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("test secret provider: plaintext is required")
	}
	return []byte("enc:" + base64.StdEncoding.EncodeToString(plaintext)), nil
}

func (testSecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	value := strings.TrimSpace(string(ciphertext))
	if !strings.HasPrefix(value, "enc:") {
		return nil, fmt.Errorf("test secret provider: invalid ciphertext")
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, "enc:"))
	if err != nil {
		return nil, fmt.Errorf("test secret provider: decode ciphertext: %w", err)
	}
	return decoded, nil
}

type memoryCredentialStore struct {
	mu         sync.Mutex
	byProvider map[string]StoredCredential
	saves      int
	deletes    int
	saveErr    error
}

func newMemoryCredentialStore() *memoryCredentialStore {
	return &memoryCredentialStore{byProvider: map[string]StoredCredential{}}
}

func (s *memoryCredentialStore) SaveSnapshot(_ context.Context, in SaveCredentialInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	now := time.Now().UTC()
	existing, ok := s.byProvider[in.Provider]
	createdAt := now
	if ok {
		createdAt = existing.CreatedAt
	}
	s.byProvider[in.Provider] = StoredCredential{
		Provider:         in.Provider,
		EncryptedPayload: append([]byte(nil), in.EncryptedPayload...),
		PayloadFormat:    in.PayloadFormat,
		PayloadVersion:   in.PayloadVersion,
		State:            in.State,
		ExpiresAt:        cloneTimePointer(in.ExpiresAt),
		LastError:        in.LastError,
		CreatedAt:        createdAt,
		UpdatedAt:        now,
	}
	return nil
}

func (s *memoryCredentialStore) GetByProvider(_ context.Context, provider string) (StoredCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byProvider[provider]
	if !ok {
		return StoredCredential{}, fmt.Errorf("memory credential store: provider not found: %s", provider)
	}
	return stored, nil
}

func (s *memoryCredentialStore) DeleteByProvider(_ context.Context, provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	delete(s.byProvider, provider)
	return nil
}

func (s *memoryCredentialStore) LoadAll(_ context.Context) ([]StoredCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	providers := make([]string, 0, len(s.byProvider))
	for provider := range s.byProvider {
		providers = append(providers, provider)
	}
	sort.Strings(providers)
	out := make([]StoredCredential, 0, len(providers))
	for _, provider := range providers {
		out = append(out, s.byProvider[provider])
	}
	return out, nil
}

func (s *memoryCredentialStore) counts() (saves, deletes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves, s.deletes
}

type testCatalogView struct {
	requiresAuth map[string]bool
	scopes       map[string][]ScopeInfo
}

func (v testCatalogView) RequiresAuthorization(integrationID string) (bool, error) {
	requires, ok := v.requiresAuth[integrationID]
	if !ok {
		return false, fmt.Errorf("test catalog: unknown integration: %s", integrationID)
	}
	return requires, nil
}

func (v testCatalogView) Scopes(integrationID string) ([]ScopeInfo, error) {
	scopes, ok := v.scopes[integrationID]
	if !ok {
		return nil, fmt.Errorf("test catalog: unknown integration: %s", integrationID)
	}
	return append([]ScopeInfo(nil), scopes...), nil
}

type captureHealthSink struct {
	mu      sync.Mutex
	results []ProbeResult
}

func (s *captureHealthSink) Record(result ProbeResult) {
	s.mu.Lock()
	s.results = append(s.results, result)
	s.mu.Unlock()
}

func (s *captureHealthSink) recorded() []ProbeResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ProbeResult(nil), s.results...)
}

func newTestManager(t *testing.T, providers []Provider, options ...Option) *Manager {
	t.Helper()
	registry := NewProviderRegistry()
	for _, provider := range providers {
		if err := registry.Register(provider); err != nil {
			t.Fatalf("register provider: %v", err)
		}
	}
	managerOptions := append([]Option{WithRegistry(registry)}, options...)
	manager, err := NewManager(Config{}, managerOptions...)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return manager
}
