package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[AuthenticateMessage]   = (*AuthenticateCommand)(nil)
	_ gocmd.Commander[RefreshMessage]        = (*RefreshCommand)(nil)
	_ gocmd.Commander[RevokeMessage]         = (*RevokeCommand)(nil)
	_ gocmd.Commander[UpdateScopesMessage]   = (*UpdateScopesCommand)(nil)
	_ gocmd.Commander[TestConnectionMessage] = (*TestConnectionCommand)(nil)
)
