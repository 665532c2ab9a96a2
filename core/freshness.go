package core

import (
	"strings"
	"time"
)

// TokenState captures expiry and refreshability flags derived from a record.
type TokenState struct {
	ExpiresAt       *time.Time
	HasAccessToken  bool
	HasRefreshToken bool
	CanAutoRefresh  bool
	IsExpired       bool
	IsExpiringSoon  bool
}

// ResolveTokenState evaluates a record against the per-provider refresh
// threshold. "Expiring soon" means now >= expiresAt - refreshThreshold; a
// record without ExpiresAt never reports expiring.
func ResolveTokenState(now time.Time, record Record, refreshThreshold time.Duration) TokenState {
	if now.IsZero() {
		now = time.Now().UTC()
	} else {
		now = now.UTC()
	}
	if refreshThreshold <= 0 {
		refreshThreshold = DefaultRefreshThreshold
	}

	state := TokenState{
		HasAccessToken:  strings.TrimSpace(record.AccessToken) != "",
		HasRefreshToken: strings.TrimSpace(record.RefreshToken) != "",
	}
	state.CanAutoRefresh = state.HasRefreshToken
	if record.ExpiresAt == nil {
		return state
	}
	expiresAt := record.ExpiresAt.UTC()
	state.ExpiresAt = &expiresAt
	if !expiresAt.After(now) {
		state.IsExpired = true
		return state
	}
	state.IsExpiringSoon = !expiresAt.After(now.Add(refreshThreshold))
	return state
}

// ShouldRefresh reports whether a refresh should be attempted now.
func ShouldRefresh(state TokenState) bool {
	if !state.CanAutoRefresh {
		return false
	}
	if !state.HasAccessToken {
		return true
	}
	return state.IsExpired || state.IsExpiringSoon
}
