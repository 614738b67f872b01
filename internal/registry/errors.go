package registry

import "errors"

// Errors surfaced at the automation boundary. Callers match them with
// [errors.Is]; wrapped versions carry call-specific detail.
var (
	// ErrInvalidQuery means the search call had neither query text nor
	// active filters.
	ErrInvalidQuery = errors.New("registry: invalid query")

	// ErrSearchTimeout means the search exceeded its time budget. The
	// wrapped error carries the budget and elapsed time.
	ErrSearchTimeout = errors.New("registry: search timed out")

	// ErrNoResults means the search matched no photos.
	ErrNoResults = errors.New("registry: no results")

	// ErrInvalidPhotoID means a selection named a photo that does not
	// exist in the library.
	ErrInvalidPhotoID = errors.New("registry: invalid photo id")

	// ErrSelectionLimitExceeded means a selection was larger than the
	// configured limit.
	ErrSelectionLimitExceeded = errors.New("registry: selection limit exceeded")

	// ErrOperationNotSupported means the named bulk operation is not in
	// the closed operation set.
	ErrOperationNotSupported = errors.New("registry: operation not supported")

	// ErrInsufficientPermissions means the operation exists but is not
	// permitted for this caller.
	ErrInsufficientPermissions = errors.New("registry: insufficient permissions")

	// ErrBulkOperationFailed means a bulk run ended with zero successes.
	ErrBulkOperationFailed = errors.New("registry: bulk operation failed")
)
