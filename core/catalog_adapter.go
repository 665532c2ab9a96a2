package core

import (
	"github.com/goliatone/go-integrations/catalog"
)

// CatalogAdapter exposes a catalog.Catalog through the CatalogView contract
// the manager consumes.
type CatalogAdapter struct {
	catalog *catalog.Catalog
}

func NewCatalogAdapter(source *catalog.Catalog) *CatalogAdapter {
	return &CatalogAdapter{catalog: source}
}

func (a *CatalogAdapter) RequiresAuthorization(integrationID string) (bool, error) {
	definition, err := a.catalog.Require(integrationID)
	if err != nil {
		return false, err
	}
	return definition.RequiresAuthorization, nil
}

func (a *CatalogAdapter) Scopes(integrationID string) ([]ScopeInfo, error) {
	definition, err := a.catalog.Require(integrationID)
	if err != nil {
		return nil, err
	}
	scopes := make([]ScopeInfo, 0, len(definition.AvailableScopes))
	for _, scope := range definition.AvailableScopes {
		scopes = append(scopes, ScopeInfo{
			ID:             scope.ID,
			Required:       scope.Required,
			RequiresReauth: scope.RequiresReauth,
		})
	}
	return scopes, nil
}

var _ CatalogView = (*CatalogAdapter)(nil)
