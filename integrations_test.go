package integrations

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-integrations/catalog"
	integrationscommand "github.com/goliatone/go-integrations/command"
	"github.com/goliatone/go-integrations/core"
)

func newFacadeCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]catalog.Definition{
		{ID: "github", Name: "GitHub", Category: catalog.CategoryDeveloper},
		{ID: "webhooks", Name: "Webhooks", Category: catalog.CategoryDeveloper},
		{
			ID:                    "slack",
			Name:                  "Slack",
			Category:              catalog.CategoryCommunication,
			RequiredDependencyIDs: []string{"github"},
		},
		{
			ID:                    "zapier",
			Name:                  "Zapier",
			Category:              catalog.CategoryAutomation,
			RequiredDependencyIDs: []string{"webhooks"},
		},
	})
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	return cat
}

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	svc := &stubFacadeService{}
	trail := &stubFacadeTrailReader{}

	facade, err := NewFacade(svc, newFacadeCatalog(t), WithHealthTrailReader(trail))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.Authenticate == nil || commands.Refresh == nil || commands.Revoke == nil ||
		commands.UpdateScopes == nil || commands.TestConnection == nil {
		t.Fatalf("expected command handlers to be wired")
	}
	queries := facade.Queries()
	if queries.GetDefinition == nil || queries.CheckDependencies == nil ||
		queries.Recommendations == nil || queries.SearchCatalog == nil ||
		queries.GetTokenInfo == nil || queries.ActiveProviders == nil {
		t.Fatalf("expected query handlers to be wired")
	}
	if queries.HealthTrail == nil {
		t.Fatalf("expected health trail query when reader is provided")
	}
	if facade.Service() == nil || facade.Catalog() == nil {
		t.Fatalf("expected facade accessors to return wired dependencies")
	}
}

func TestNewFacade_HealthTrailIsOptional(t *testing.T) {
	facade, err := NewFacade(&stubFacadeService{}, newFacadeCatalog(t))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	if facade.Queries().HealthTrail != nil {
		t.Fatalf("expected no health trail query without a reader")
	}
}

func TestNewFacade_Validation(t *testing.T) {
	if _, err := NewFacade(nil, newFacadeCatalog(t)); err == nil {
		t.Fatalf("expected error when service is nil")
	}
	if _, err := NewFacade(&stubFacadeService{}, nil); err == nil {
		t.Fatalf("expected error when catalog is nil")
	}
}

func TestFacade_CommandsDriveService(t *testing.T) {
	svc := &stubFacadeService{
		authenticateFn: func(_ context.Context, provider string) (core.Record, error) {
			return core.Record{Provider: provider, State: core.StateActive}, nil
		},
	}
	facade, err := NewFacade(svc, newFacadeCatalog(t))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	collector := gocmd.NewResult[core.Record]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := facade.Commands().Authenticate.Execute(ctx, integrationscommand.AuthenticateMessage{Provider: "github"}); err != nil {
		t.Fatalf("execute authenticate: %v", err)
	}
	record, ok := collector.Load()
	if !ok || record.Provider != "github" {
		t.Fatalf("expected stored authenticate result, got %#v ok=%v", record, ok)
	}
}

func TestFacade_ActiveIntegrationsMergesInstalledSet(t *testing.T) {
	svc := &stubFacadeService{active: []string{"github"}}
	facade, err := NewFacade(svc, newFacadeCatalog(t),
		WithInstalledIntegrations("Webhooks", "webhooks", "  "),
	)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	active := facade.ActiveIntegrations()
	if !reflect.DeepEqual(active, []string{"github", "webhooks"}) {
		t.Fatalf("unexpected active set: %v", active)
	}
}

func TestFacade_DependencyChecksSeeInstalledIntegrations(t *testing.T) {
	svc := &stubFacadeService{}
	facade, err := NewFacade(svc, newFacadeCatalog(t), WithInstalledIntegrations("webhooks"))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	check, err := facade.CheckDependencies("zapier")
	if err != nil {
		t.Fatalf("check dependencies: %v", err)
	}
	if !check.Installable() {
		t.Fatalf("expected installed webhooks to satisfy zapier, got %#v", check)
	}

	check, err = facade.CheckDependencies("slack")
	if err != nil {
		t.Fatalf("check dependencies: %v", err)
	}
	if check.Installable() || len(check.MissingRequired) != 1 || check.MissingRequired[0] != "github" {
		t.Fatalf("expected slack to miss github, got %#v", check)
	}
}

func TestFacade_RecommendationsUseMergedActiveSet(t *testing.T) {
	svc := &stubFacadeService{active: []string{"github"}}
	facade, err := NewFacade(svc, newFacadeCatalog(t))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	recs := facade.Recommendations()
	if len(recs) == 0 {
		t.Fatalf("expected recommendations for inactive catalog entries")
	}
	for _, rec := range recs {
		if rec.IntegrationID == "github" {
			t.Fatalf("expected active integration to be excluded, got %#v", recs)
		}
	}
}

type stubFacadeService struct {
	active         []string
	authenticateFn func(ctx context.Context, provider string) (core.Record, error)
}

func (s *stubFacadeService) Authenticate(ctx context.Context, provider string) (core.Record, error) {
	if s.authenticateFn == nil {
		return core.Record{}, fmt.Errorf("authenticate not configured")
	}
	return s.authenticateFn(ctx, provider)
}

func (s *stubFacadeService) Refresh(context.Context, string) (core.Record, error) {
	return core.Record{}, fmt.Errorf("refresh not configured")
}

func (s *stubFacadeService) Revoke(context.Context, string) error {
	return fmt.Errorf("revoke not configured")
}

func (s *stubFacadeService) UpdateScopes(context.Context, string, []string) (core.Record, error) {
	return core.Record{}, fmt.Errorf("update scopes not configured")
}

func (s *stubFacadeService) TestConnection(context.Context, string) (core.ProbeResult, error) {
	return core.ProbeResult{}, fmt.Errorf("test connection not configured")
}

func (s *stubFacadeService) GetTokenInfo(string) (core.Record, bool) {
	return core.Record{}, false
}

func (s *stubFacadeService) ActiveProviders() []string {
	return append([]string(nil), s.active...)
}

type stubFacadeTrailReader struct{}

func (stubFacadeTrailReader) Recent(string, int) []core.ProbeResult { return nil }

var _ CredentialService = (*stubFacadeService)(nil)
