package core

import "errors"

var (
	// ErrUnauthorized is returned when the caller lacks the role a command
	// requires.
	ErrUnauthorized = errors.New("core: caller not authorized")

	// ErrInvalidAmount covers nil, zero, or negative amounts and transfers to
	// self.
	ErrInvalidAmount = errors.New("core: invalid amount")

	// ErrInsufficientFunds is returned when an account balance cannot cover a
	// funds transfer.
	ErrInsufficientFunds = errors.New("core: insufficient funds")

	// ErrUnknownModule is returned for pause toggles on module names outside
	// KnownModules.
	ErrUnknownModule = errors.New("core: unknown module")

	// ErrUnknownRole is returned for role operations on names outside
	// KnownRoles.
	ErrUnknownRole = errors.New("core: unknown role")

	// ErrConservationBreach signals that a post-command check found holder
	// share sums diverging from the recorded issuance. The affected asset is
	// frozen when this is returned.
	ErrConservationBreach = errors.New("core: share conservation breach")
)
