package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-integrations/core"
)

// MutatingService is the slice of the credential manager the command
// handlers drive.
type MutatingService interface {
	Authenticate(ctx context.Context, provider string) (core.Record, error)
	Refresh(ctx context.Context, provider string) (core.Record, error)
	Revoke(ctx context.Context, provider string) error
	UpdateScopes(ctx context.Context, provider string, scopes []string) (core.Record, error)
	TestConnection(ctx context.Context, provider string) (core.ProbeResult, error)
}

type AuthenticateCommand struct {
	service MutatingService
}

func NewAuthenticateCommand(service MutatingService) *AuthenticateCommand {
	return &AuthenticateCommand{service: service}
}

func (c *AuthenticateCommand) Execute(ctx context.Context, msg AuthenticateMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: authenticate service is required")
	}
	out, err := c.service.Authenticate(ctx, msg.Provider)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RefreshCommand struct {
	service MutatingService
}

func NewRefreshCommand(service MutatingService) *RefreshCommand {
	return &RefreshCommand{service: service}
}

func (c *RefreshCommand) Execute(ctx context.Context, msg RefreshMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: refresh service is required")
	}
	out, err := c.service.Refresh(ctx, msg.Provider)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RevokeCommand struct {
	service MutatingService
}

func NewRevokeCommand(service MutatingService) *RevokeCommand {
	return &RevokeCommand{service: service}
}

func (c *RevokeCommand) Execute(ctx context.Context, msg RevokeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: revoke service is required")
	}
	return c.service.Revoke(ctx, msg.Provider)
}

type UpdateScopesCommand struct {
	service MutatingService
}

func NewUpdateScopesCommand(service MutatingService) *UpdateScopesCommand {
	return &UpdateScopesCommand{service: service}
}

func (c *UpdateScopesCommand) Execute(ctx context.Context, msg UpdateScopesMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: scope update service is required")
	}
	out, err := c.service.UpdateScopes(ctx, msg.Provider, msg.Scopes)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type TestConnectionCommand struct {
	service MutatingService
}

func NewTestConnectionCommand(service MutatingService) *TestConnectionCommand {
	return &TestConnectionCommand{service: service}
}

func (c *TestConnectionCommand) Execute(ctx context.Context, msg TestConnectionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: connection test service is required")
	}
	out, err := c.service.TestConnection(ctx, msg.Provider)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
