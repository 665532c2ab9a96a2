package catalog

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorCodeInvalidCatalog     = "INTEGRATIONS_INVALID_CATALOG"
	ErrorCodeUnknownIntegration = "INTEGRATIONS_UNKNOWN_INTEGRATION"
)

func invalidCatalogError(message string) error {
	return goerrors.New(message, goerrors.CategoryValidation).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorCodeInvalidCatalog)
}

func unknownIntegrationError(id string) error {
	return goerrors.New("catalog: unknown integration: "+id, goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(ErrorCodeUnknownIntegration)
}

// IsUnknownIntegration reports whether err identifies a lookup for an id the
// catalog does not define.
func IsUnknownIntegration(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == ErrorCodeUnknownIntegration
}

// IsInvalidCatalog reports whether err is a catalog authoring error raised at
// load time.
func IsInvalidCatalog(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == ErrorCodeInvalidCatalog
}
