package command

import (
	"fmt"
	"strings"
)

const (
	TypeAuthenticate   = "integrations.command.authenticate"
	TypeRefresh        = "integrations.command.refresh"
	TypeRevoke         = "integrations.command.revoke"
	TypeUpdateScopes   = "integrations.command.scopes.update"
	TypeTestConnection = "integrations.command.connection.test"
)

type AuthenticateMessage struct {
	Provider string
}

func (AuthenticateMessage) Type() string { return TypeAuthenticate }

func (m AuthenticateMessage) Validate() error {
	if strings.TrimSpace(m.Provider) == "" {
		return fmt.Errorf("command: provider is required")
	}
	return nil
}

type RefreshMessage struct {
	Provider string
}

func (RefreshMessage) Type() string { return TypeRefresh }

func (m RefreshMessage) Validate() error {
	if strings.TrimSpace(m.Provider) == "" {
		return fmt.Errorf("command: provider is required")
	}
	return nil
}

type RevokeMessage struct {
	Provider string
}

func (RevokeMessage) Type() string { return TypeRevoke }

func (m RevokeMessage) Validate() error {
	if strings.TrimSpace(m.Provider) == "" {
		return fmt.Errorf("command: provider is required")
	}
	return nil
}

type UpdateScopesMessage struct {
	Provider string
	Scopes   []string
}

func (UpdateScopesMessage) Type() string { return TypeUpdateScopes }

func (m UpdateScopesMessage) Validate() error {
	if strings.TrimSpace(m.Provider) == "" {
		return fmt.Errorf("command: provider is required")
	}
	if len(m.Scopes) == 0 {
		return fmt.Errorf("command: at least one scope is required")
	}
	for _, scope := range m.Scopes {
		if strings.TrimSpace(scope) == "" {
			return fmt.Errorf("command: scopes must not be blank")
		}
	}
	return nil
}

type TestConnectionMessage struct {
	Provider string
}

func (TestConnectionMessage) Type() string { return TypeTestConnection }

func (m TestConnectionMessage) Validate() error {
	if strings.TrimSpace(m.Provider) == "" {
		return fmt.Errorf("command: provider is required")
	}
	return nil
}
