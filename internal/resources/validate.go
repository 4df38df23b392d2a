package resources

import "github.com/lumina-lms/lumina-access/internal/shared"

var (
	errNoFields  = shared.BadRequestf("no fields to update")
	errBlankKey  = shared.BadRequestf("resource key must not be blank")
	errBlankName = shared.BadRequestf("resource name must not be blank")
)

func validateCatalogInput(key, name string) error {
	if key == "" {
		return errBlankKey
	}
	if name == "" {
		return errBlankName
	}
	return nil
}

func errResourceInUse(id, permissions int64) error {
	return shared.Conflictf("resource %d in use: %d permissions still attached", id, permissions)
}
