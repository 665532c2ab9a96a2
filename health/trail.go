package health

import (
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-integrations/core"
)

const DefaultTrailCapacity = 100

// Trail keeps a bounded per-provider history of probe results. It implements
// core.HealthSink so the manager and scheduler can record into it directly.
type Trail struct {
	mu       sync.RWMutex
	capacity int
	entries  map[string][]core.ProbeResult
}

func NewTrail(capacity int) *Trail {
	if capacity <= 0 {
		capacity = DefaultTrailCapacity
	}
	return &Trail{
		capacity: capacity,
		entries:  make(map[string][]core.ProbeResult),
	}
}

// Record appends a result, evicting the oldest entry once the provider's
// trail is at capacity.
func (t *Trail) Record(result core.ProbeResult) {
	provider := strings.TrimSpace(strings.ToLower(result.Provider))
	if provider == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	trail := t.entries[provider]
	trail = append(trail, result)
	if len(trail) > t.capacity {
		trail = trail[len(trail)-t.capacity:]
	}
	t.entries[provider] = trail
}

// Recent returns up to limit results for the provider, newest last. A limit
// of zero or less returns the full trail.
func (t *Trail) Recent(provider string, limit int) []core.ProbeResult {
	provider = strings.TrimSpace(strings.ToLower(provider))
	t.mu.RLock()
	defer t.mu.RUnlock()

	trail := t.entries[provider]
	if limit > 0 && len(trail) > limit {
		trail = trail[len(trail)-limit:]
	}
	out := make([]core.ProbeResult, len(trail))
	copy(out, trail)
	return out
}

// Last returns the most recent result for the provider.
func (t *Trail) Last(provider string) (core.ProbeResult, bool) {
	provider = strings.TrimSpace(strings.ToLower(provider))
	t.mu.RLock()
	defer t.mu.RUnlock()

	trail := t.entries[provider]
	if len(trail) == 0 {
		return core.ProbeResult{}, false
	}
	return trail[len(trail)-1], true
}

// Providers lists every provider with at least one recorded result.
func (t *Trail) Providers() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	providers := make([]string, 0, len(t.entries))
	for provider := range t.entries {
		providers = append(providers, provider)
	}
	sort.Strings(providers)
	return providers
}

var _ core.HealthSink = (*Trail)(nil)
