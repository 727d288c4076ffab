package assets

import "errors"

var (
	// ErrAssetNotFound is returned when the referenced asset id is unknown.
	ErrAssetNotFound = errors.New("assets: asset not found")
	// ErrSymbolTaken is returned when registering a symbol that already
	// resolves to an asset.
	ErrSymbolTaken = errors.New("assets: symbol already registered")
	// ErrInvalidSymbol is returned for empty, oversized or non-alphanumeric
	// symbols.
	ErrInvalidSymbol = errors.New("assets: invalid symbol")
	// ErrInvalidName is returned for empty or malformed display names.
	ErrInvalidName = errors.New("assets: invalid name")
	// ErrInvalidMetadataURI is returned for malformed metadata pointers.
	ErrInvalidMetadataURI = errors.New("assets: invalid metadata uri")
	// ErrInvalidMaxShares is returned when the share ceiling is not a
	// positive integer.
	ErrInvalidMaxShares = errors.New("assets: invalid max shares")
	// ErrInvalidAmount is returned for zero, negative or self-directed
	// share movements.
	ErrInvalidAmount = errors.New("assets: invalid amount")
	// ErrCapacityExceeded is returned when a mint would push issuance past
	// the asset's share ceiling.
	ErrCapacityExceeded = errors.New("assets: issuance exceeds max shares")
	// ErrInsufficientShares is returned when a transfer exceeds the
	// sender's balance.
	ErrInsufficientShares = errors.New("assets: insufficient shares")
	// ErrAssetFrozen is returned when mutating an asset halted by a
	// conservation failure.
	ErrAssetFrozen = errors.New("assets: asset frozen")
	// ErrUnauthorized is returned when the caller lacks the required role.
	ErrUnauthorized = errors.New("assets: caller lacks required role")
)
