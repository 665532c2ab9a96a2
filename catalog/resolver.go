package catalog

import (
	"sort"
	"strings"
)

// DependencyCheck is derived fresh on every query, never stored.
// MissingRequired is empty iff the target is installable without further
// action.
type DependencyCheck struct {
	IntegrationID   string
	MissingRequired []string
	Conflicts       []string
}

func (c DependencyCheck) Installable() bool {
	return len(c.MissingRequired) == 0 && len(c.Conflicts) == 0
}

type Recommendation struct {
	IntegrationID string
	Reason        string
	Priority      int
	RequiredFirst []string
}

// Scorer computes a recommendation priority in [0,3] for a candidate that is
// not yet active. demandCount is how many active integrations require the
// candidate; prerequisitesSatisfied reports whether the candidate's own
// required dependencies are already active.
type Scorer interface {
	Score(def Definition, demandCount int, prerequisitesSatisfied bool) int
}

// StandardScorer combines dependency demand, category base score, and
// prerequisite readiness. The result is clamped to [0,3].
type StandardScorer struct{}

func (StandardScorer) Score(def Definition, demandCount int, prerequisitesSatisfied bool) int {
	score := demandCount + categoryBaseScore[def.Category]
	if !prerequisitesSatisfied {
		score -= 2
	}
	if score < 0 {
		return 0
	}
	if score > 3 {
		return 3
	}
	return score
}

// CheckDependencies answers what stands between the active set and the
// target: required dependencies not yet active, and active integrations the
// target conflicts with.
func (c *Catalog) CheckDependencies(targetID string, active []string) (DependencyCheck, error) {
	if c == nil {
		return DependencyCheck{}, unknownIntegrationError(targetID)
	}
	def, ok := c.Definition(targetID)
	if !ok {
		return DependencyCheck{}, unknownIntegrationError(strings.TrimSpace(targetID))
	}

	activeSet := toIDSet(active)
	check := DependencyCheck{
		IntegrationID:   def.ID,
		MissingRequired: []string{},
		Conflicts:       []string{},
	}
	for _, dep := range def.RequiredDependencyIDs {
		if _, isActive := activeSet[dep]; !isActive {
			check.MissingRequired = append(check.MissingRequired, dep)
		}
	}
	for _, conflict := range def.ConflictingIDs {
		if _, isActive := activeSet[conflict]; isActive {
			check.Conflicts = append(check.Conflicts, conflict)
		}
	}
	sort.Strings(check.MissingRequired)
	sort.Strings(check.Conflicts)
	return check, nil
}

// Recommendations ranks every inactive catalog entry. The ordering is a total
// order: priority descending, ties broken by id ascending, so identical
// inputs always produce the identical list.
func (c *Catalog) Recommendations(active []string) []Recommendation {
	if c == nil {
		return nil
	}
	activeSet := toIDSet(active)
	demand := c.dependencyDemand(activeSet)

	out := make([]Recommendation, 0, len(c.ordered))
	for _, id := range c.ordered {
		if _, isActive := activeSet[id]; isActive {
			continue
		}
		def := c.definitions[id]

		requiredFirst := make([]string, 0, len(def.RequiredDependencyIDs))
		for _, dep := range def.RequiredDependencyIDs {
			if _, isActive := activeSet[dep]; !isActive {
				requiredFirst = append(requiredFirst, dep)
			}
		}
		sort.Strings(requiredFirst)

		satisfied := len(requiredFirst) == 0
		priority := c.scorer.Score(def, demand[id], satisfied)
		out = append(out, Recommendation{
			IntegrationID: id,
			Reason:        recommendationReason(demand[id], satisfied),
			Priority:      priority,
			RequiredFirst: requiredFirst,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].IntegrationID < out[j].IntegrationID
	})
	return out
}

// Search matches the query case-insensitively against name, then description
// and tags. Name matches rank first; each group is alphabetical by id.
func (c *Catalog) Search(query string) []string {
	if c == nil {
		return nil
	}
	needle := strings.TrimSpace(strings.ToLower(query))
	if needle == "" {
		return []string{}
	}

	nameMatches := make([]string, 0)
	otherMatches := make([]string, 0)
	for _, id := range c.ordered {
		def := c.definitions[id]
		switch {
		case strings.Contains(strings.ToLower(def.Name), needle):
			nameMatches = append(nameMatches, id)
		case strings.Contains(strings.ToLower(def.Description), needle), tagsMatch(def.Tags, needle):
			otherMatches = append(otherMatches, id)
		}
	}
	return append(nameMatches, otherMatches...)
}

// dependencyDemand counts, per catalog id, how many active integrations
// declare it as a required dependency.
func (c *Catalog) dependencyDemand(activeSet map[string]struct{}) map[string]int {
	demand := make(map[string]int, len(c.definitions))
	for activeID := range activeSet {
		def, ok := c.definitions[activeID]
		if !ok {
			continue
		}
		for _, dep := range def.RequiredDependencyIDs {
			demand[dep]++
		}
	}
	return demand
}

func recommendationReason(demandCount int, prerequisitesSatisfied bool) string {
	switch {
	case demandCount > 1:
		return "required by several active integrations"
	case demandCount == 1:
		return "required by an active integration"
	case !prerequisitesSatisfied:
		return "available once its prerequisites are installed"
	default:
		return "ready to install"
	}
}

func tagsMatch(tags []string, needle string) bool {
	for _, tag := range tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

func toIDSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		normalized := normalizeID(value)
		if normalized == "" {
			continue
		}
		set[normalized] = struct{}{}
	}
	return set
}
