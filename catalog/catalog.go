package catalog

import (
	"fmt"
	"sort"
	"strings"
)

type Category string

const (
	CategoryAutomation    Category = "automation"
	CategoryCommunication Category = "communication"
	CategoryStorage       Category = "storage"
	CategoryAnalytics     Category = "analytics"
	CategoryDeveloper     Category = "developer"
)

// categoryBaseScore seeds recommendation priority per category. Unknown
// categories score zero, they are still valid catalog entries.
var categoryBaseScore = map[Category]int{
	CategoryAutomation:    2,
	CategoryCommunication: 1,
	CategoryStorage:       1,
	CategoryAnalytics:     1,
	CategoryDeveloper:     2,
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ScopeDescriptor describes one unit of permission a provider can grant.
// RequiresReauth marks scopes whose addition needs a full consent round trip.
type ScopeDescriptor struct {
	ID             string
	DisplayName    string
	Risk           RiskLevel
	Required       bool
	RequiresReauth bool
}

// Definition is an immutable catalog entry for one integration. Entries are
// loaded once at process start and never mutated afterwards.
type Definition struct {
	ID                    string
	Name                  string
	Description           string
	Category              Category
	Tags                  []string
	RequiredDependencyIDs []string
	ConflictingIDs        []string
	RequiresAuthorization bool
	AvailableScopes       []ScopeDescriptor
}

func (d Definition) RequiredScopeIDs() []string {
	out := make([]string, 0, len(d.AvailableScopes))
	for _, scope := range d.AvailableScopes {
		if scope.Required {
			out = append(out, scope.ID)
		}
	}
	sort.Strings(out)
	return out
}

func (d Definition) Scope(id string) (ScopeDescriptor, bool) {
	id = strings.TrimSpace(strings.ToLower(id))
	for _, scope := range d.AvailableScopes {
		if strings.ToLower(scope.ID) == id {
			return scope, true
		}
	}
	return ScopeDescriptor{}, false
}

// Catalog holds validated integration definitions. Read-only after New, so
// queries require no locking.
type Catalog struct {
	definitions map[string]Definition
	ordered     []string
	scorer      Scorer
}

type Option func(*Catalog)

// WithScorer overrides the recommendation priority formula.
func WithScorer(scorer Scorer) Option {
	return func(c *Catalog) {
		if scorer != nil {
			c.scorer = scorer
		}
	}
}

func New(definitions []Definition, opts ...Option) (*Catalog, error) {
	c := &Catalog{
		definitions: make(map[string]Definition, len(definitions)),
		scorer:      StandardScorer{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(c)
	}

	for _, def := range definitions {
		normalized, err := normalizeDefinition(def)
		if err != nil {
			return nil, err
		}
		if _, exists := c.definitions[normalized.ID]; exists {
			return nil, invalidCatalogError(fmt.Sprintf("catalog: duplicate integration id %q", normalized.ID))
		}
		c.definitions[normalized.ID] = normalized
		c.ordered = append(c.ordered, normalized.ID)
	}
	sort.Strings(c.ordered)

	if err := c.validateReferences(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) Definition(id string) (Definition, bool) {
	if c == nil {
		return Definition{}, false
	}
	def, ok := c.definitions[normalizeID(id)]
	return def, ok
}

// Require returns the definition or an UnknownIntegration error.
func (c *Catalog) Require(id string) (Definition, error) {
	def, ok := c.Definition(id)
	if !ok {
		return Definition{}, unknownIntegrationError(normalizeID(id))
	}
	return def, nil
}

// IDs returns every catalog id in ascending order.
func (c *Catalog) IDs() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.ordered...)
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.definitions)
}

func normalizeDefinition(def Definition) (Definition, error) {
	def.ID = normalizeID(def.ID)
	if def.ID == "" {
		return Definition{}, invalidCatalogError("catalog: integration id is required")
	}
	def.Name = strings.TrimSpace(def.Name)
	if def.Name == "" {
		def.Name = def.ID
	}
	def.Description = strings.TrimSpace(def.Description)
	def.Category = Category(strings.TrimSpace(strings.ToLower(string(def.Category))))
	def.Tags = normalizeIDList(def.Tags)
	def.RequiredDependencyIDs = normalizeIDList(def.RequiredDependencyIDs)
	def.ConflictingIDs = normalizeIDList(def.ConflictingIDs)

	for _, conflict := range def.ConflictingIDs {
		if conflict == def.ID {
			return Definition{}, invalidCatalogError(fmt.Sprintf("catalog: integration %q conflicts with itself", def.ID))
		}
	}

	seenScopes := make(map[string]struct{}, len(def.AvailableScopes))
	scopes := make([]ScopeDescriptor, 0, len(def.AvailableScopes))
	for _, scope := range def.AvailableScopes {
		scope.ID = normalizeID(scope.ID)
		if scope.ID == "" {
			return Definition{}, invalidCatalogError(fmt.Sprintf("catalog: integration %q has a scope with no id", def.ID))
		}
		if _, dup := seenScopes[scope.ID]; dup {
			return Definition{}, invalidCatalogError(fmt.Sprintf("catalog: integration %q declares scope %q twice", def.ID, scope.ID))
		}
		seenScopes[scope.ID] = struct{}{}
		scope.DisplayName = strings.TrimSpace(scope.DisplayName)
		if scope.DisplayName == "" {
			scope.DisplayName = scope.ID
		}
		scope.Risk = RiskLevel(strings.TrimSpace(strings.ToLower(string(scope.Risk))))
		switch scope.Risk {
		case RiskLow, RiskMedium, RiskHigh:
		case "":
			scope.Risk = RiskLow
		default:
			return Definition{}, invalidCatalogError(fmt.Sprintf("catalog: integration %q scope %q has unknown risk level %q", def.ID, scope.ID, scope.Risk))
		}
		scopes = append(scopes, scope)
	}
	def.AvailableScopes = scopes
	return def, nil
}

// validateReferences rejects entries pointing at ids the catalog does not
// define. Circular required chains are fine, dangling ones are not.
func (c *Catalog) validateReferences() error {
	for _, id := range c.ordered {
		def := c.definitions[id]
		for _, dep := range def.RequiredDependencyIDs {
			if _, ok := c.definitions[dep]; !ok {
				return invalidCatalogError(fmt.Sprintf("catalog: integration %q requires undefined integration %q", id, dep))
			}
		}
		for _, conflict := range def.ConflictingIDs {
			if _, ok := c.definitions[conflict]; !ok {
				return invalidCatalogError(fmt.Sprintf("catalog: integration %q conflicts with undefined integration %q", id, conflict))
			}
		}
	}
	return nil
}

func normalizeID(id string) string {
	return strings.TrimSpace(strings.ToLower(id))
}

func normalizeIDList(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		normalized := normalizeID(value)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	sort.Strings(out)
	return out
}
