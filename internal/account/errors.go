package account

import "errors"

var (
	ErrInvalidInput     = errors.New("account: invalid input")
	ErrInvalidKind      = errors.New("account: invalid account kind")
	ErrInvalidStatus    = errors.New("account: invalid status")
	ErrFirmNameRequired = errors.New("account: firm name is required")
	ErrFirmNotFound     = errors.New("account: firm not found")
	ErrNotFound         = errors.New("account: not found")
	ErrAlreadyExists    = errors.New("account: already exists")

	// ErrInvalidCredentials covers both an unknown email and a wrong
	// password so callers cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("account: invalid credentials")

	ErrPendingApproval = errors.New("account: pending firm approval")
	ErrRejected        = errors.New("account: rejected by firm")
	ErrBlocked         = errors.New("account: blocked by firm")
	ErrForbidden       = errors.New("account: forbidden")

	// ErrPartiallyApplied reports that the access grant write succeeded but
	// the account mirror write did not. Never retried here; surfaced so an
	// operator can reconcile the drift.
	ErrPartiallyApplied = errors.New("account: partially applied")

	ErrNotImplemented = errors.New("account: not implemented")
)
