package devkit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-integrations/core"
)

// GrantScript produces the grant for one authenticate or refresh call. The
// call index starts at 1.
type GrantScript func(call int, req core.GrantRequest) (core.Grant, error)

// ProbeScript produces the probe outcome for one call.
type ProbeScript func(call int, record core.Record) error

// FakeProvider is a scripted core.Provider for exercising the credential
// lifecycle without a live upstream. Every upstream call is counted, and each
// surface can be scripted independently.
type FakeProvider struct {
	id string

	mu               sync.Mutex
	authenticateFn   GrantScript
	refreshFn        GrantScript
	probeFn          ProbeScript
	revokeErr        error
	authenticateHits int
	refreshHits      int
	revokeHits       int
	probeHits        int
	tokenSerial      int
	tokenTTL         time.Duration
}

type Option func(*FakeProvider)

func WithAuthenticateScript(script GrantScript) Option {
	return func(p *FakeProvider) { p.authenticateFn = script }
}

func WithRefreshScript(script GrantScript) Option {
	return func(p *FakeProvider) { p.refreshFn = script }
}

func WithProbeScript(script ProbeScript) Option {
	return func(p *FakeProvider) { p.probeFn = script }
}

func WithRevokeError(err error) Option {
	return func(p *FakeProvider) { p.revokeErr = err }
}

// WithTokenTTL sets the expiry window stamped on default-issued grants.
func WithTokenTTL(ttl time.Duration) Option {
	return func(p *FakeProvider) {
		if ttl > 0 {
			p.tokenTTL = ttl
		}
	}
}

func New(id string, opts ...Option) *FakeProvider {
	provider := &FakeProvider{
		id:       strings.TrimSpace(strings.ToLower(id)),
		tokenTTL: time.Hour,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(provider)
	}
	return provider
}

func (p *FakeProvider) ID() string {
	return p.id
}

func (p *FakeProvider) Authenticate(ctx context.Context, req core.GrantRequest) (core.Grant, error) {
	if err := ctx.Err(); err != nil {
		return core.Grant{}, err
	}
	p.mu.Lock()
	p.authenticateHits++
	call := p.authenticateHits
	script := p.authenticateFn
	p.mu.Unlock()

	if script != nil {
		return script(call, req)
	}
	return p.issueGrant(req.RequestedScopes), nil
}

func (p *FakeProvider) Refresh(ctx context.Context, record core.Record) (core.Grant, error) {
	if err := ctx.Err(); err != nil {
		return core.Grant{}, err
	}
	p.mu.Lock()
	p.refreshHits++
	call := p.refreshHits
	script := p.refreshFn
	p.mu.Unlock()

	if script != nil {
		return script(call, core.GrantRequest{Provider: p.id, RequestedScopes: record.GrantedScopes})
	}
	return p.issueGrant(record.GrantedScopes), nil
}

func (p *FakeProvider) Revoke(ctx context.Context, record core.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.revokeHits++
	err := p.revokeErr
	p.mu.Unlock()
	return err
}

func (p *FakeProvider) Probe(ctx context.Context, record core.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.probeHits++
	call := p.probeHits
	script := p.probeFn
	p.mu.Unlock()

	if script != nil {
		return script(call, record)
	}
	return nil
}

// AuthenticateCalls reports how many authenticate calls reached the fake.
func (p *FakeProvider) AuthenticateCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.authenticateHits
}

func (p *FakeProvider) RefreshCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshHits
}

func (p *FakeProvider) RevokeCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.revokeHits
}

func (p *FakeProvider) ProbeCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.probeHits
}

func (p *FakeProvider) issueGrant(scopes []string) core.Grant {
	p.mu.Lock()
	p.tokenSerial++
	serial := p.tokenSerial
	ttl := p.tokenTTL
	p.mu.Unlock()

	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	return core.Grant{
		TokenType:     "bearer",
		AccessToken:   fmt.Sprintf("%s-access-%d", p.id, serial),
		RefreshToken:  fmt.Sprintf("%s-refresh-%d", p.id, serial),
		GrantedScopes: append([]string(nil), scopes...),
		IssuedAt:      now,
		ExpiresAt:     &expiresAt,
	}
}

var _ core.Provider = (*FakeProvider)(nil)
