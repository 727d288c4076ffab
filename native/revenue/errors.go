package revenue

import "errors"

var (
	// ErrInvalidAmount is returned when a deposit amount is nil, zero, or
	// negative.
	ErrInvalidAmount = errors.New("revenue: invalid amount")
	// ErrNoShares is returned when depositing into an asset that has no
	// issued shares to distribute across.
	ErrNoShares = errors.New("revenue: asset has no issued shares")
	// ErrNothingToClaim is returned when the computed claimable amount is
	// zero for every requested asset.
	ErrNothingToClaim = errors.New("revenue: nothing to claim")
	// ErrNothingPending is returned when an emergency withdrawal targets a
	// pool whose deposits have all been claimed or withdrawn already.
	ErrNothingPending = errors.New("revenue: no pending funds")
	// ErrPoolNotFound is returned when reading a pool that has never
	// received a deposit.
	ErrPoolNotFound = errors.New("revenue: pool not found")
	// ErrInsufficientFunds is returned when a depositor's account balance
	// cannot cover the deposit amount.
	ErrInsufficientFunds = errors.New("revenue: insufficient funds")
	// ErrInsufficientPoolFunds is returned when a claim exceeds the pool's
	// pending balance, which can only happen after an emergency withdrawal.
	ErrInsufficientPoolFunds = errors.New("revenue: pool funds exhausted")
	// ErrDepositTooSoon is returned when deposits into the same pool arrive
	// faster than the configured minimum interval.
	ErrDepositTooSoon = errors.New("revenue: deposit interval not elapsed")
	// ErrInvalidRecipient is returned when an emergency withdrawal names the
	// zero address.
	ErrInvalidRecipient = errors.New("revenue: invalid recipient")
	// ErrUnauthorized is returned when the caller lacks the role an
	// operation requires.
	ErrUnauthorized = errors.New("revenue: caller lacks required role")
	// ErrReentrantCall is returned when an operation re-enters a pool that
	// is still settling.
	ErrReentrantCall = errors.New("revenue: reentrant call")
)
