package integrations

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-integrations/catalog"
	integrationscommand "github.com/goliatone/go-integrations/command"
	"github.com/goliatone/go-integrations/core"
	integrationsquery "github.com/goliatone/go-integrations/query"
)

// CredentialService is the manager surface the facade drives: lifecycle
// mutations plus credential reads.
type CredentialService interface {
	integrationscommand.MutatingService
	integrationsquery.CredentialReader
}

type Commands struct {
	Authenticate   *integrationscommand.AuthenticateCommand
	Refresh        *integrationscommand.RefreshCommand
	Revoke         *integrationscommand.RevokeCommand
	UpdateScopes   *integrationscommand.UpdateScopesCommand
	TestConnection *integrationscommand.TestConnectionCommand
}

type Queries struct {
	GetDefinition     *integrationsquery.GetDefinitionQuery
	CheckDependencies *integrationsquery.CheckDependenciesQuery
	Recommendations   *integrationsquery.RecommendationsQuery
	SearchCatalog     *integrationsquery.SearchCatalogQuery
	GetTokenInfo      *integrationsquery.GetTokenInfoQuery
	ActiveProviders   *integrationsquery.ActiveProvidersQuery
	HealthTrail       *integrationsquery.HealthTrailQuery
}

// Facade bundles the command and query handlers over one credential service
// and catalog pair.
type Facade struct {
	service   CredentialService
	catalog   *catalog.Catalog
	installed []string
	commands  Commands
	queries   Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	trailReader integrationsquery.HealthTrailReader
	installed   []string
}

// WithHealthTrailReader wires the health trail queries. Without it the
// HealthTrail query is left nil.
func WithHealthTrailReader(reader integrationsquery.HealthTrailReader) FacadeOption {
	return func(options *facadeOptions) {
		options.trailReader = reader
	}
}

// WithInstalledIntegrations names integrations the host considers installed
// independent of credential state, e.g. ones that need no authorization.
// They participate in dependency checks and recommendations.
func WithInstalledIntegrations(ids ...string) FacadeOption {
	return func(options *facadeOptions) {
		options.installed = append(options.installed, ids...)
	}
}

func NewFacade(service CredentialService, cat *catalog.Catalog, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("integrations: credential service is required")
	}
	if cat == nil {
		return nil, fmt.Errorf("integrations: catalog is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	facade := &Facade{
		service:   service,
		catalog:   cat,
		installed: normalizeInstalled(cfg.installed),
	}
	facade.commands = Commands{
		Authenticate:   integrationscommand.NewAuthenticateCommand(service),
		Refresh:        integrationscommand.NewRefreshCommand(service),
		Revoke:         integrationscommand.NewRevokeCommand(service),
		UpdateScopes:   integrationscommand.NewUpdateScopesCommand(service),
		TestConnection: integrationscommand.NewTestConnectionCommand(service),
	}
	facade.queries = Queries{
		GetDefinition:     integrationsquery.NewGetDefinitionQuery(cat),
		CheckDependencies: integrationsquery.NewCheckDependenciesQuery(cat),
		Recommendations:   integrationsquery.NewRecommendationsQuery(cat),
		SearchCatalog:     integrationsquery.NewSearchCatalogQuery(cat),
		GetTokenInfo:      integrationsquery.NewGetTokenInfoQuery(service),
		ActiveProviders:   integrationsquery.NewActiveProvidersQuery(service),
	}
	if cfg.trailReader != nil {
		facade.queries.HealthTrail = integrationsquery.NewHealthTrailQuery(cfg.trailReader)
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CredentialService {
	if f == nil {
		return nil
	}
	return f.service
}

func (f *Facade) Catalog() *catalog.Catalog {
	if f == nil {
		return nil
	}
	return f.catalog
}

// ActiveIntegrations merges providers with live credentials and the
// host-declared installed set. This is the active list dependency checks and
// recommendations should run against.
func (f *Facade) ActiveIntegrations() []string {
	if f == nil || f.service == nil {
		return nil
	}
	seen := make(map[string]struct{})
	for _, id := range f.service.ActiveProviders() {
		seen[id] = struct{}{}
	}
	for _, id := range f.installed {
		seen[id] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// CheckDependencies runs a dependency check against the merged active set.
func (f *Facade) CheckDependencies(integrationID string) (catalog.DependencyCheck, error) {
	if f == nil || f.catalog == nil {
		return catalog.DependencyCheck{}, fmt.Errorf("integrations: facade is not configured")
	}
	return f.catalog.CheckDependencies(integrationID, f.ActiveIntegrations())
}

// Recommendations ranks catalog entries against the merged active set.
func (f *Facade) Recommendations() []catalog.Recommendation {
	if f == nil || f.catalog == nil {
		return nil
	}
	return f.catalog.Recommendations(f.ActiveIntegrations())
}

func normalizeInstalled(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		trimmed := strings.TrimSpace(strings.ToLower(id))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	sort.Strings(out)
	return out
}

var _ CredentialService = (*core.Manager)(nil)
