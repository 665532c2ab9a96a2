package query

import (
	"context"

	"github.com/goliatone/go-integrations/catalog"
	"github.com/goliatone/go-integrations/core"
)

type CatalogReader interface {
	Require(id string) (catalog.Definition, error)
	CheckDependencies(targetID string, active []string) (catalog.DependencyCheck, error)
	Recommendations(active []string) []catalog.Recommendation
	Search(query string) []string
}

type CredentialReader interface {
	GetTokenInfo(provider string) (core.Record, bool)
	ActiveProviders() []string
}

type HealthTrailReader interface {
	Recent(provider string, limit int) []core.ProbeResult
}

type GetDefinitionQuery struct {
	reader CatalogReader
}

func NewGetDefinitionQuery(reader CatalogReader) *GetDefinitionQuery {
	return &GetDefinitionQuery{reader: reader}
}

func (q *GetDefinitionQuery) Query(ctx context.Context, msg GetDefinitionMessage) (catalog.Definition, error) {
	if q == nil || q.reader == nil {
		return catalog.Definition{}, queryDependencyError("query: catalog reader is required")
	}
	return q.reader.Require(msg.IntegrationID)
}

type CheckDependenciesQuery struct {
	reader CatalogReader
}

func NewCheckDependenciesQuery(reader CatalogReader) *CheckDependenciesQuery {
	return &CheckDependenciesQuery{reader: reader}
}

func (q *CheckDependenciesQuery) Query(
	ctx context.Context,
	msg CheckDependenciesMessage,
) (catalog.DependencyCheck, error) {
	if q == nil || q.reader == nil {
		return catalog.DependencyCheck{}, queryDependencyError("query: catalog reader is required")
	}
	return q.reader.CheckDependencies(msg.IntegrationID, msg.Active)
}

type RecommendationsQuery struct {
	reader CatalogReader
}

func NewRecommendationsQuery(reader CatalogReader) *RecommendationsQuery {
	return &RecommendationsQuery{reader: reader}
}

func (q *RecommendationsQuery) Query(
	ctx context.Context,
	msg RecommendationsMessage,
) ([]catalog.Recommendation, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: catalog reader is required")
	}
	return q.reader.Recommendations(msg.Active), nil
}

type SearchCatalogQuery struct {
	reader CatalogReader
}

func NewSearchCatalogQuery(reader CatalogReader) *SearchCatalogQuery {
	return &SearchCatalogQuery{reader: reader}
}

func (q *SearchCatalogQuery) Query(ctx context.Context, msg SearchCatalogMessage) ([]string, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: catalog reader is required")
	}
	return q.reader.Search(msg.Query), nil
}

type GetTokenInfoQuery struct {
	reader CredentialReader
}

func NewGetTokenInfoQuery(reader CredentialReader) *GetTokenInfoQuery {
	return &GetTokenInfoQuery{reader: reader}
}

func (q *GetTokenInfoQuery) Query(ctx context.Context, msg GetTokenInfoMessage) (core.Record, error) {
	if q == nil || q.reader == nil {
		return core.Record{}, queryDependencyError("query: credential reader is required")
	}
	record, ok := q.reader.GetTokenInfo(msg.Provider)
	if !ok {
		return core.Record{}, queryNotFoundError("query: no credential for provider " + msg.Provider)
	}
	return record, nil
}

type ActiveProvidersQuery struct {
	reader CredentialReader
}

func NewActiveProvidersQuery(reader CredentialReader) *ActiveProvidersQuery {
	return &ActiveProvidersQuery{reader: reader}
}

func (q *ActiveProvidersQuery) Query(ctx context.Context, msg ActiveProvidersMessage) ([]string, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: credential reader is required")
	}
	return q.reader.ActiveProviders(), nil
}

type HealthTrailQuery struct {
	reader HealthTrailReader
}

func NewHealthTrailQuery(reader HealthTrailReader) *HealthTrailQuery {
	return &HealthTrailQuery{reader: reader}
}

func (q *HealthTrailQuery) Query(ctx context.Context, msg HealthTrailMessage) ([]core.ProbeResult, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: health trail reader is required")
	}
	return q.reader.Recent(msg.Provider, msg.Limit), nil
}
