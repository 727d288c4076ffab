package rpc

import (
	"errors"
	"net/http"

	"landledger/core"
	"landledger/native/assets"
	nativecommon "landledger/native/common"
	"landledger/native/market"
	"landledger/native/revenue"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeNotFound       = -32004
	codeDuplicateKey   = -32010
	codeRateLimited    = -32020
	codeQuotaExceeded  = -32021
	codeModulePaused   = -32030
	codeConservation   = -32040
)

var notFoundErrors = []error{
	assets.ErrAssetNotFound,
	market.ErrListingNotFound,
	revenue.ErrPoolNotFound,
}

var invalidParamErrors = []error{
	assets.ErrInvalidSymbol,
	assets.ErrInvalidName,
	assets.ErrInvalidMetadataURI,
	assets.ErrInvalidMaxShares,
	assets.ErrInvalidAmount,
	market.ErrInvalidAmount,
	market.ErrInvalidPrice,
	market.ErrInvalidRecipient,
	market.ErrFeeTooHigh,
	revenue.ErrInvalidAmount,
	revenue.ErrInvalidRecipient,
	core.ErrInvalidAmount,
	core.ErrUnknownModule,
	core.ErrUnknownRole,
}

var conflictErrors = []error{
	assets.ErrSymbolTaken,
	assets.ErrCapacityExceeded,
	assets.ErrInsufficientShares,
	assets.ErrAssetFrozen,
	market.ErrListingNotActive,
	market.ErrAssetNotTradable,
	market.ErrInsufficientShares,
	market.ErrInsufficientFunds,
	market.ErrSelfTrade,
	market.ErrNotSeller,
	market.ErrReentrantCall,
	revenue.ErrNoShares,
	revenue.ErrNothingToClaim,
	revenue.ErrNothingPending,
	revenue.ErrInsufficientFunds,
	revenue.ErrInsufficientPoolFunds,
	revenue.ErrDepositTooSoon,
	revenue.ErrReentrantCall,
	core.ErrInsufficientFunds,
}

var unauthorizedErrors = []error{
	assets.ErrUnauthorized,
	market.ErrUnauthorized,
	revenue.ErrUnauthorized,
	core.ErrUnauthorized,
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// mapError translates an engine sentinel into the HTTP status and JSON-RPC
// code written to the client. Unknown errors become opaque server errors.
func mapError(err error) (int, int) {
	switch {
	case matchesAny(err, unauthorizedErrors):
		return http.StatusForbidden, codeUnauthorized
	case matchesAny(err, notFoundErrors):
		return http.StatusNotFound, codeNotFound
	case matchesAny(err, invalidParamErrors):
		return http.StatusBadRequest, codeInvalidParams
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable, codeModulePaused
	case errors.Is(err, nativecommon.ErrQuotaCommandsExceeded),
		errors.Is(err, nativecommon.ErrQuotaFundsCapExceeded),
		errors.Is(err, nativecommon.ErrQuotaCounterOverflow):
		return http.StatusTooManyRequests, codeQuotaExceeded
	case errors.Is(err, core.ErrConservationBreach):
		return http.StatusConflict, codeConservation
	case matchesAny(err, conflictErrors):
		return http.StatusConflict, codeServerError
	default:
		return http.StatusInternalServerError, codeServerError
	}
}
