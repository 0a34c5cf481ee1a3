package protocol

const (
	// Request validation.
	ErrBadRequest = "E_BAD_REQUEST"

	// Table/tracker contract violations.
	ErrEmptyTable    = "E_EMPTY_TABLE"
	ErrDuplicateKind = "E_DUPLICATE_KIND"
	ErrNotFound      = "E_NOT_FOUND"
	ErrMinimumSize   = "E_MINIMUM_SIZE"

	// Work cycle termination.
	ErrNoStorage     = "E_NO_STORAGE"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrNoPermission  = "E_NO_PERMISSION"
	ErrDepleted      = "E_DEPLETED"
	ErrBlocked       = "E_BLOCKED"
	ErrCancelled     = "E_CANCELLED"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest:    {},
	ErrEmptyTable:    {},
	ErrDuplicateKind: {},
	ErrNotFound:      {},
	ErrMinimumSize:   {},
	ErrNoStorage:     {},
	ErrInvalidTarget: {},
	ErrNoPermission:  {},
	ErrDepleted:      {},
	ErrBlocked:       {},
	ErrCancelled:     {},
	ErrInternal:      {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
