package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-integrations/catalog"
	"github.com/goliatone/go-integrations/core"
)

var (
	_ gocmd.Querier[GetDefinitionMessage, catalog.Definition]            = (*GetDefinitionQuery)(nil)
	_ gocmd.Querier[CheckDependenciesMessage, catalog.DependencyCheck]   = (*CheckDependenciesQuery)(nil)
	_ gocmd.Querier[RecommendationsMessage, []catalog.Recommendation]    = (*RecommendationsQuery)(nil)
	_ gocmd.Querier[SearchCatalogMessage, []string]                      = (*SearchCatalogQuery)(nil)
	_ gocmd.Querier[GetTokenInfoMessage, core.Record]                    = (*GetTokenInfoQuery)(nil)
	_ gocmd.Querier[ActiveProvidersMessage, []string]                    = (*ActiveProvidersQuery)(nil)
	_ gocmd.Querier[HealthTrailMessage, []core.ProbeResult]              = (*HealthTrailQuery)(nil)
	_ CatalogReader                                                      = (*catalog.Catalog)(nil)
)
