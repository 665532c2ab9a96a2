package query

import (
	"fmt"
	"strings"
)

const (
	TypeGetDefinition     = "integrations.query.catalog.definition"
	TypeCheckDependencies = "integrations.query.catalog.check_dependencies"
	TypeRecommendations   = "integrations.query.catalog.recommendations"
	TypeSearchCatalog     = "integrations.query.catalog.search"
	TypeGetTokenInfo      = "integrations.query.credentials.token_info"
	TypeActiveProviders   = "integrations.query.credentials.active"
	TypeHealthTrail       = "integrations.query.health.trail"
)

type GetDefinitionMessage struct {
	IntegrationID string
}

func (GetDefinitionMessage) Type() string { return TypeGetDefinition }

func (m GetDefinitionMessage) Validate() error {
	if strings.TrimSpace(m.IntegrationID) == "" {
		return fmt.Errorf("query: integration id is required")
	}
	return nil
}

type CheckDependenciesMessage struct {
	IntegrationID string
	Active        []string
}

func (CheckDependenciesMessage) Type() string { return TypeCheckDependencies }

func (m CheckDependenciesMessage) Validate() error {
	if strings.TrimSpace(m.IntegrationID) == "" {
		return fmt.Errorf("query: integration id is required")
	}
	return nil
}

type RecommendationsMessage struct {
	Active []string
}

func (RecommendationsMessage) Type() string { return TypeRecommendations }

func (RecommendationsMessage) Validate() error { return nil }

type SearchCatalogMessage struct {
	Query string
}

func (SearchCatalogMessage) Type() string { return TypeSearchCatalog }

func (m SearchCatalogMessage) Validate() error {
	if strings.TrimSpace(m.Query) == "" {
		return fmt.Errorf("query: search query is required")
	}
	return nil
}

type GetTokenInfoMessage struct {
	Provider string
}

func (GetTokenInfoMessage) Type() string { return TypeGetTokenInfo }

func (m GetTokenInfoMessage) Validate() error {
	if strings.TrimSpace(m.Provider) == "" {
		return fmt.Errorf("query: provider is required")
	}
	return nil
}

type ActiveProvidersMessage struct{}

func (ActiveProvidersMessage) Type() string { return TypeActiveProviders }

func (ActiveProvidersMessage) Validate() error { return nil }

type HealthTrailMessage struct {
	Provider string
	Limit    int
}

func (HealthTrailMessage) Type() string { return TypeHealthTrail }

func (m HealthTrailMessage) Validate() error {
	if strings.TrimSpace(m.Provider) == "" {
		return fmt.Errorf("query: provider is required")
	}
	if m.Limit < 0 {
		return fmt.Errorf("query: limit must be >= 0")
	}
	return nil
}
