package command

import (
	"context"
	"fmt"
	"testing"
	"time"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-integrations/core"
)

func TestAuthenticateCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	expected := core.Record{
		Provider:    "github",
		AccessToken: "github-access",
		State:       core.StateActive,
	}
	called := false

	svc := stubMutatingService{
		authenticateFn: func(_ context.Context, provider string) (core.Record, error) {
			called = true
			if provider != "github" {
				t.Fatalf("expected provider github, got %q", provider)
			}
			return expected, nil
		},
	}

	cmd := NewAuthenticateCommand(svc)
	collector := gocmd.NewResult[core.Record]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	if err := cmd.Execute(ctx, AuthenticateMessage{Provider: "github"}); err != nil {
		t.Fatalf("execute authenticate: %v", err)
	}
	if !called {
		t.Fatalf("expected authenticate service invocation")
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.Provider != expected.Provider || result.AccessToken != expected.AccessToken {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestMutationCommands_DelegateToService(t *testing.T) {
	t.Run("refresh", func(t *testing.T) {
		called := false
		svc := stubMutatingService{
			refreshFn: func(_ context.Context, provider string) (core.Record, error) {
				called = true
				if provider != "slack" {
					t.Fatalf("unexpected refresh provider %q", provider)
				}
				return core.Record{Provider: "slack", State: core.StateActive}, nil
			},
		}
		collector := gocmd.NewResult[core.Record]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := NewRefreshCommand(svc).Execute(ctx, RefreshMessage{Provider: "slack"}); err != nil {
			t.Fatalf("execute refresh: %v", err)
		}
		if !called {
			t.Fatalf("expected refresh invocation")
		}
		stored, ok := collector.Load()
		if !ok {
			t.Fatalf("expected refresh result")
		}
		if stored.State != core.StateActive {
			t.Fatalf("unexpected refresh result: %#v", stored)
		}
	})

	t.Run("revoke", func(t *testing.T) {
		called := false
		svc := stubMutatingService{
			revokeFn: func(_ context.Context, provider string) error {
				called = true
				if provider != "github" {
					t.Fatalf("unexpected revoke provider %q", provider)
				}
				return nil
			},
		}
		if err := NewRevokeCommand(svc).Execute(context.Background(), RevokeMessage{Provider: "github"}); err != nil {
			t.Fatalf("execute revoke: %v", err)
		}
		if !called {
			t.Fatalf("expected revoke invocation")
		}
	})

	t.Run("update scopes", func(t *testing.T) {
		called := false
		svc := stubMutatingService{
			updateScopesFn: func(_ context.Context, provider string, scopes []string) (core.Record, error) {
				called = true
				if provider != "github" || len(scopes) != 2 {
					t.Fatalf("unexpected scope update payload: %q %v", provider, scopes)
				}
				return core.Record{Provider: "github", GrantedScopes: scopes}, nil
			},
		}
		collector := gocmd.NewResult[core.Record]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		err := NewUpdateScopesCommand(svc).Execute(ctx, UpdateScopesMessage{
			Provider: "github",
			Scopes:   []string{"repo:read", "repo:write"},
		})
		if err != nil {
			t.Fatalf("execute update scopes: %v", err)
		}
		if !called {
			t.Fatalf("expected scope update invocation")
		}
		stored, ok := collector.Load()
		if !ok {
			t.Fatalf("expected scope update result")
		}
		if len(stored.GrantedScopes) != 2 {
			t.Fatalf("unexpected scope update result: %#v", stored)
		}
	})

	t.Run("test connection", func(t *testing.T) {
		called := false
		svc := stubMutatingService{
			testConnectionFn: func(_ context.Context, provider string) (core.ProbeResult, error) {
				called = true
				return core.ProbeResult{Provider: provider, Success: true, Latency: 12 * time.Millisecond}, nil
			},
		}
		collector := gocmd.NewResult[core.ProbeResult]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := NewTestConnectionCommand(svc).Execute(ctx, TestConnectionMessage{Provider: "github"}); err != nil {
			t.Fatalf("execute test connection: %v", err)
		}
		if !called {
			t.Fatalf("expected connection test invocation")
		}
		stored, ok := collector.Load()
		if !ok {
			t.Fatalf("expected probe result")
		}
		if !stored.Success || stored.Provider != "github" {
			t.Fatalf("unexpected probe result: %#v", stored)
		}
	})
}

func TestCommands_PropagateServiceErrors(t *testing.T) {
	svc := stubMutatingService{
		authenticateFn: func(_ context.Context, _ string) (core.Record, error) {
			return core.Record{}, fmt.Errorf("upstream rejected the request")
		},
	}
	collector := gocmd.NewResult[core.Record]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := NewAuthenticateCommand(svc).Execute(ctx, AuthenticateMessage{Provider: "github"}); err == nil {
		t.Fatalf("expected service error to surface")
	}
	if _, ok := collector.Load(); ok {
		t.Fatalf("expected no result on failure")
	}
}

func TestMessageValidation(t *testing.T) {
	tests := []struct {
		name    string
		msg     interface{ Validate() error }
		wantErr bool
	}{
		{name: "authenticate valid", msg: AuthenticateMessage{Provider: "github"}, wantErr: false},
		{name: "authenticate missing provider", msg: AuthenticateMessage{}, wantErr: true},
		{name: "refresh valid", msg: RefreshMessage{Provider: "github"}, wantErr: false},
		{name: "refresh blank provider", msg: RefreshMessage{Provider: "   "}, wantErr: true},
		{name: "revoke missing provider", msg: RevokeMessage{}, wantErr: true},
		{
			name:    "update scopes valid",
			msg:     UpdateScopesMessage{Provider: "github", Scopes: []string{"repo:read"}},
			wantErr: false,
		},
		{name: "update scopes missing scopes", msg: UpdateScopesMessage{Provider: "github"}, wantErr: true},
		{
			name:    "update scopes blank scope",
			msg:     UpdateScopesMessage{Provider: "github", Scopes: []string{"repo:read", "  "}},
			wantErr: true,
		},
		{name: "test connection valid", msg: TestConnectionMessage{Provider: "github"}, wantErr: false},
		{name: "test connection missing provider", msg: TestConnectionMessage{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessageTypes(t *testing.T) {
	if got := (AuthenticateMessage{}).Type(); got != TypeAuthenticate {
		t.Fatalf("unexpected authenticate type %q", got)
	}
	if got := (RefreshMessage{}).Type(); got != TypeRefresh {
		t.Fatalf("unexpected refresh type %q", got)
	}
	if got := (RevokeMessage{}).Type(); got != TypeRevoke {
		t.Fatalf("unexpected revoke type %q", got)
	}
	if got := (UpdateScopesMessage{}).Type(); got != TypeUpdateScopes {
		t.Fatalf("unexpected scope update type %q", got)
	}
	if got := (TestConnectionMessage{}).Type(); got != TypeTestConnection {
		t.Fatalf("unexpected connection test type %q", got)
	}
}

type stubMutatingService struct {
	authenticateFn   func(ctx context.Context, provider string) (core.Record, error)
	refreshFn        func(ctx context.Context, provider string) (core.Record, error)
	revokeFn         func(ctx context.Context, provider string) error
	updateScopesFn   func(ctx context.Context, provider string, scopes []string) (core.Record, error)
	testConnectionFn func(ctx context.Context, provider string) (core.ProbeResult, error)
}

func (s stubMutatingService) Authenticate(ctx context.Context, provider string) (core.Record, error) {
	if s.authenticateFn == nil {
		return core.Record{}, fmt.Errorf("authenticate not configured")
	}
	return s.authenticateFn(ctx, provider)
}

func (s stubMutatingService) Refresh(ctx context.Context, provider string) (core.Record, error) {
	if s.refreshFn == nil {
		return core.Record{}, fmt.Errorf("refresh not configured")
	}
	return s.refreshFn(ctx, provider)
}

func (s stubMutatingService) Revoke(ctx context.Context, provider string) error {
	if s.revokeFn == nil {
		return fmt.Errorf("revoke not configured")
	}
	return s.revokeFn(ctx, provider)
}

func (s stubMutatingService) UpdateScopes(ctx context.Context, provider string, scopes []string) (core.Record, error) {
	if s.updateScopesFn == nil {
		return core.Record{}, fmt.Errorf("update scopes not configured")
	}
	return s.updateScopesFn(ctx, provider, scopes)
}

func (s stubMutatingService) TestConnection(ctx context.Context, provider string) (core.ProbeResult, error) {
	if s.testConnectionFn == nil {
		return core.ProbeResult{}, fmt.Errorf("test connection not configured")
	}
	return s.testConnectionFn(ctx, provider)
}

var _ MutatingService = stubMutatingService{}
