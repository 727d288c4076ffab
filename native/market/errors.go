package market

import "errors"

var (
	// ErrListingNotFound is returned when the referenced listing id is
	// unknown.
	ErrListingNotFound = errors.New("market: listing not found")
	// ErrListingNotActive is returned when filling or cancelling a listing
	// that already reached a terminal state.
	ErrListingNotActive = errors.New("market: listing not active")
	// ErrInvalidAmount is returned for zero, negative or over-remaining
	// share quantities.
	ErrInvalidAmount = errors.New("market: invalid share amount")
	// ErrInvalidPrice is returned for a non-positive price per share.
	ErrInvalidPrice = errors.New("market: invalid price")
	// ErrAssetNotTradable is returned when the asset is inactive,
	// unverified or frozen.
	ErrAssetNotTradable = errors.New("market: asset not tradable")
	// ErrInsufficientShares is returned when the seller balance cannot
	// cover the listed quantity.
	ErrInsufficientShares = errors.New("market: insufficient shares")
	// ErrInsufficientFunds is returned when the buyer's offer cannot cover
	// the total price, or their funds balance cannot cover the offer.
	ErrInsufficientFunds = errors.New("market: insufficient funds")
	// ErrSelfTrade is returned when a seller attempts to fill their own
	// listing.
	ErrSelfTrade = errors.New("market: buyer is seller")
	// ErrNotSeller is returned when a cancel is attempted by anyone other
	// than the listing's seller.
	ErrNotSeller = errors.New("market: caller is not the seller")
	// ErrFeeTooHigh is returned when a fee update exceeds MaxFeeBps.
	ErrFeeTooHigh = errors.New("market: fee exceeds bound")
	// ErrInvalidRecipient is returned when a non-zero fee is configured
	// without a recipient.
	ErrInvalidRecipient = errors.New("market: fee recipient not configured")
	// ErrReentrantCall is returned when an operation re-enters a listing
	// that is still settling.
	ErrReentrantCall = errors.New("market: reentrant call")
	// ErrUnauthorized is returned when the caller lacks the required role.
	ErrUnauthorized = errors.New("market: caller lacks required role")
)
