package core

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorCodeBadInput             = "INTEGRATIONS_BAD_INPUT"
	ErrorCodeProviderNotFound     = "INTEGRATIONS_PROVIDER_NOT_FOUND"
	ErrorCodeNotAuthenticated     = "INTEGRATIONS_NOT_AUTHENTICATED"
	ErrorCodeAlreadyActive        = "INTEGRATIONS_ALREADY_ACTIVE"
	ErrorCodeMissingRequiredScope = "INTEGRATIONS_MISSING_REQUIRED_SCOPE"
	ErrorCodeUnknownScope         = "INTEGRATIONS_UNKNOWN_SCOPE"
	ErrorCodeRefreshTransient     = "INTEGRATIONS_REFRESH_TRANSIENT"
	ErrorCodeRefreshTerminal      = "INTEGRATIONS_REFRESH_TERMINAL"
	ErrorCodeRevokeRemoteFailed   = "INTEGRATIONS_REVOKE_REMOTE_FAILED"
	ErrorCodeRefreshLocked        = "INTEGRATIONS_REFRESH_LOCKED"
	ErrorCodeInternal             = "INTEGRATIONS_INTERNAL_ERROR"
)

type ErrorMapper func(err error) *goerrors.Error

func integrationErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not registered"), strings.Contains(msg, "unknown provider"):
		return newIntegrationError(err.Error(), goerrors.CategoryNotFound, ErrorCodeProviderNotFound)
	case strings.Contains(msg, "lock already held"), strings.Contains(msg, "refresh lock"):
		return newIntegrationError(err.Error(), goerrors.CategoryConflict, ErrorCodeRefreshLocked)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newIntegrationError(err.Error(), goerrors.CategoryBadInput, ErrorCodeBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func newIntegrationError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = integrationHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultIntegrationTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultIntegrationTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorCodeBadInput
	case goerrors.CategoryNotFound:
		return ErrorCodeProviderNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorCodeNotAuthenticated
	case goerrors.CategoryConflict:
		return ErrorCodeAlreadyActive
	case goerrors.CategoryExternal, goerrors.CategoryOperation:
		return ErrorCodeRefreshTransient
	default:
		return ErrorCodeInternal
	}
}

func integrationHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal, goerrors.CategoryOperation:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errProviderNotFound(provider string) error {
	return newIntegrationError("core: provider not registered: "+provider, goerrors.CategoryNotFound, ErrorCodeProviderNotFound)
}

func errNotAuthenticated(provider string) error {
	return newIntegrationError("core: provider is not authenticated: "+provider, goerrors.CategoryAuth, ErrorCodeNotAuthenticated)
}

func errAlreadyActive(provider string) error {
	return newIntegrationError("core: credential already active for provider: "+provider+", revoke first", goerrors.CategoryConflict, ErrorCodeAlreadyActive)
}

// An outstanding authenticate attempt counts as active for rejection
// purposes; both rejections share the AlreadyActive code.
func errAuthInFlight(provider string) error {
	return newIntegrationError("core: authentication already in flight for provider: "+provider, goerrors.CategoryConflict, ErrorCodeAlreadyActive)
}

func errMissingRequiredScope(provider string, scopes []string) error {
	return newIntegrationError(
		"core: required scopes must remain granted for provider "+provider+": "+strings.Join(scopes, ", "),
		goerrors.CategoryValidation,
		ErrorCodeMissingRequiredScope,
	)
}

func errUnknownScope(provider string, scopes []string) error {
	return newIntegrationError(
		"core: scopes not available for provider "+provider+": "+strings.Join(scopes, ", "),
		goerrors.CategoryValidation,
		ErrorCodeUnknownScope,
	)
}

func transientRefreshError(provider string, cause error) error {
	return ensureErrorEnvelope(
		goerrors.Wrap(cause, goerrors.CategoryExternal, "core: transient refresh failure for provider "+provider).
			WithTextCode(ErrorCodeRefreshTransient),
	)
}

func terminalRefreshError(provider string, cause error) error {
	return ensureErrorEnvelope(
		goerrors.Wrap(cause, goerrors.CategoryAuth, "core: refresh grant rejected upstream for provider "+provider).
			WithTextCode(ErrorCodeRefreshTerminal),
	)
}

// IsTerminalRefreshError reports whether a refresh failure invalidates the
// grant upstream and requires full re-authentication. Timeouts and
// cancellation are always transient.
func IsTerminalRefreshError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		switch strings.TrimSpace(strings.ToUpper(richErr.TextCode)) {
		case ErrorCodeRefreshTerminal, "TOKEN_EXPIRED", "UNAUTHORIZED", "FORBIDDEN":
			return true
		case ErrorCodeRefreshTransient:
			return false
		}
		switch richErr.Category {
		case goerrors.CategoryAuth, goerrors.CategoryAuthz, goerrors.CategoryValidation, goerrors.CategoryNotFound:
			return true
		}
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(msg, "invalid_grant") ||
		strings.Contains(msg, "invalid refresh token") ||
		strings.Contains(msg, "reauthorization required") ||
		strings.Contains(msg, "re-auth required")
}

// HasErrorCode reports whether err carries the given text code.
func HasErrorCode(err error, textCode string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return strings.EqualFold(richErr.TextCode, textCode)
}
