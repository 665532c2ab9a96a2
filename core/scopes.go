package core

import (
	"sort"
	"strings"
)

const (
	ScopeEventExpanded   = "expanded"
	ScopeEventDowngraded = "downgraded"
	ScopeEventRevoked    = "revoked"
)

// ScopeDelta describes how a requested scope set differs from the granted
// one. Removals always force a new grant cycle.
type ScopeDelta struct {
	EventType string
	Added     []string
	Removed   []string
}

func ComputeScopeDelta(previous, current []string) ScopeDelta {
	prevSet := toScopeSet(previous)
	currSet := toScopeSet(current)

	added := make([]string, 0, len(currSet))
	removed := make([]string, 0, len(prevSet))
	for scope := range currSet {
		if _, ok := prevSet[scope]; !ok {
			added = append(added, scope)
		}
	}
	for scope := range prevSet {
		if _, ok := currSet[scope]; !ok {
			removed = append(removed, scope)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)

	eventType := ""
	switch {
	case len(removed) > 0 && len(currSet) == 0:
		eventType = ScopeEventRevoked
	case len(removed) > 0:
		eventType = ScopeEventDowngraded
	case len(added) > 0:
		eventType = ScopeEventExpanded
	}
	return ScopeDelta{
		EventType: eventType,
		Added:     added,
		Removed:   removed,
	}
}

func normalizeScopes(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}
	set := toScopeSet(values)
	out := make([]string, 0, len(set))
	for scope := range set {
		out = append(out, scope)
	}
	sort.Strings(out)
	return out
}

func toScopeSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(strings.ToLower(value))
		if trimmed == "" {
			continue
		}
		set[trimmed] = struct{}{}
	}
	return set
}
