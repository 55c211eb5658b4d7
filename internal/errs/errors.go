package errs

import "errors"

// Common sentinel errors for cross-layer signaling.
var (
	ErrNotFound  = errors.New("not_found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
	ErrInvalid   = errors.New("invalid")
	// ErrUnprocessable is used for semantic validation failures (HTTP 422)
	ErrUnprocessable = errors.New("unprocessable")
	// ErrImmutable indicates an attempt to change immutable fields
	ErrImmutable = errors.New("immutable")
	// ErrRootAccount indicates the ledger root cannot be deactivated or re-parented by hand
	ErrRootAccount = errors.New("root_account")
	// ErrArchived indicates a write against an archived (read-only) ledger
	ErrArchived = errors.New("archived")
	// ErrActiveLedger indicates the ledger is currently open and cannot be deleted
	ErrActiveLedger = errors.New("active_ledger")
	ErrPlaceholder  = errors.New("placeholder_account")
	ErrTooFewSplits = errors.New("too_few_splits")
	ErrInvalidValue = errors.New("invalid_value")
	ErrUnbalanced   = errors.New("unbalanced_transaction")
	ErrOverflow     = errors.New("overflow")
)

// Chart-of-accounts import errors.
var (
	// ErrResourceNotFound is returned when a chart source cannot be located.
	ErrResourceNotFound = errors.New("resource_not_found")
	// ErrDecodeFailed covers malformed input and inputs that yield zero usable rows.
	ErrDecodeFailed  = errors.New("decode_failed")
	ErrDuplicateCode = errors.New("duplicate_code")
	ErrMissingParent = errors.New("missing_parent")
	ErrParentCycle   = errors.New("parent_cycle")
)

var inputErrors = []error{
	ErrInvalid,
	ErrUnprocessable,
	ErrResourceNotFound,
	ErrDecodeFailed,
	ErrDuplicateCode,
	ErrMissingParent,
	ErrParentCycle,
	ErrTooFewSplits,
	ErrInvalidValue,
	ErrUnbalanced,
	ErrPlaceholder,
}

// IsInput reports whether err was caused by caller input rather than storage.
func IsInput(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range inputErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
