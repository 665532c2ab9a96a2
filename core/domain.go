package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	ErrInvalidCredentialStateTransition = errors.New("core: invalid credential state transition")
	ErrProviderNotRegistered            = errors.New("core: provider not registered")
)

type CredentialState string

const (
	StateUnauthenticated CredentialState = "unauthenticated"
	StateAuthenticating  CredentialState = "authenticating"
	StateActive          CredentialState = "active"
	StateExpiring        CredentialState = "expiring"
	StateRefreshing      CredentialState = "refreshing"
	StateFailed          CredentialState = "failed"
)

// Record is the locally held proof of authorization for one provider. At most
// one record per provider exists at a time; a new grant supersedes the old.
type Record struct {
	Provider      string
	TokenType     string
	AccessToken   string
	RefreshToken  string
	GrantedScopes []string
	IssuedAt      time.Time
	// ExpiresAt is nil for non-expiring grants; those never enter StateExpiring.
	ExpiresAt *time.Time
	State     CredentialState
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *Record) TransitionTo(state CredentialState, reason string, now time.Time) error {
	if r == nil {
		return nil
	}
	reason = strings.TrimSpace(reason)
	if r.State == state {
		r.UpdatedAt = now
		if reason != "" {
			r.LastError = reason
		}
		return nil
	}
	if !credentialTransitionAllowed(r.State, state) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidCredentialStateTransition, r.State, state)
	}
	r.State = state
	r.UpdatedAt = now
	if reason != "" {
		r.LastError = reason
	}
	if state == StateActive {
		r.LastError = ""
	}
	return nil
}

func (r Record) Clone() Record {
	out := r
	out.GrantedScopes = append([]string(nil), r.GrantedScopes...)
	if r.ExpiresAt != nil {
		expiresAt := *r.ExpiresAt
		out.ExpiresAt = &expiresAt
	}
	return out
}

// HasScope reports whether the record's grant includes the scope id.
func (r Record) HasScope(scopeID string) bool {
	scopeID = strings.TrimSpace(strings.ToLower(scopeID))
	for _, granted := range r.GrantedScopes {
		if strings.ToLower(granted) == scopeID {
			return true
		}
	}
	return false
}

func credentialTransitionAllowed(current, next CredentialState) bool {
	// Revocation and forced re-authentication may happen from any state.
	if next == StateUnauthenticated {
		return true
	}
	allowed := map[CredentialState]map[CredentialState]struct{}{
		StateUnauthenticated: {
			StateAuthenticating: {},
		},
		StateAuthenticating: {
			StateActive: {},
		},
		StateActive: {
			StateExpiring: {},
			StateFailed:   {},
		},
		StateExpiring: {
			StateRefreshing: {},
			StateFailed:     {},
		},
		StateRefreshing: {
			StateActive:   {},
			StateExpiring: {},
			StateFailed:   {},
		},
		StateFailed: {},
	}
	_, ok := allowed[current][next]
	return ok
}

// Grant is the outcome of a successful provider authentication or refresh.
type Grant struct {
	TokenType     string
	AccessToken   string
	RefreshToken  string
	GrantedScopes []string
	IssuedAt      time.Time
	ExpiresAt     *time.Time
}

// GrantRequest asks a provider to issue or re-issue an access grant.
type GrantRequest struct {
	Provider        string
	RequestedScopes []string
}

// ProbeResult is the ephemeral outcome of one connectivity check. Probes are
// observational; they never change credential state.
type ProbeResult struct {
	Provider  string
	Success   bool
	Latency   time.Duration
	Error     string
	CheckedAt time.Time
}

func sortedProviders[T any](byProvider map[string]T) []string {
	out := make([]string, 0, len(byProvider))
	for provider := range byProvider {
		out = append(out, provider)
	}
	sort.Strings(out)
	return out
}

func cloneTimePointer(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
