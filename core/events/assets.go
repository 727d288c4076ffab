package events

import (
	"math/big"
	"strconv"

	"landledger/core/types"
)

const (
	// TypeAssetRegistered marks the creation of a new tokenized asset.
	TypeAssetRegistered = "assets.registered"
	// TypeSharesMinted is emitted when new shares are issued to a holder.
	TypeSharesMinted = "assets.minted"
	// TypeSharesTransferred is emitted for every share balance movement,
	// including escrow legs performed by the marketplace.
	TypeSharesTransferred = "assets.transferred"
	// TypeAssetStatusChanged records active/verified toggles.
	TypeAssetStatusChanged = "assets.status"
	// TypeAssetFrozen records a conservation failure halting the asset.
	TypeAssetFrozen = "assets.frozen"
)

type AssetRegistered struct {
	AssetID   uint64
	Symbol    string
	Name      string
	MaxShares *big.Int
	Timestamp int64
}

func (AssetRegistered) EventType() string { return TypeAssetRegistered }

func (e AssetRegistered) Event() *types.Event {
	attrs := map[string]string{
		"assetId":   strconv.FormatUint(e.AssetID, 10),
		"maxShares": formatAmount(e.MaxShares),
		"timestamp": strconv.FormatInt(e.Timestamp, 10),
	}
	if symbol := normalizeSymbol(e.Symbol); symbol != "" {
		attrs["symbol"] = symbol
	}
	if e.Name != "" {
		attrs["name"] = e.Name
	}
	return &types.Event{Type: TypeAssetRegistered, Attributes: attrs}
}

type SharesMinted struct {
	AssetID   uint64
	Holder    [20]byte
	Amount    *big.Int
	Issued    *big.Int
	Timestamp int64
}

func (SharesMinted) EventType() string { return TypeSharesMinted }

func (e SharesMinted) Event() *types.Event {
	attrs := map[string]string{
		"assetId":   strconv.FormatUint(e.AssetID, 10),
		"holder":    formatAddress(e.Holder),
		"amount":    formatAmount(e.Amount),
		"issued":    formatAmount(e.Issued),
		"timestamp": strconv.FormatInt(e.Timestamp, 10),
	}
	return &types.Event{Type: TypeSharesMinted, Attributes: attrs}
}

type SharesTransferred struct {
	AssetID   uint64
	From      [20]byte
	To        [20]byte
	Amount    *big.Int
	Timestamp int64
}

func (SharesTransferred) EventType() string { return TypeSharesTransferred }

func (e SharesTransferred) Event() *types.Event {
	attrs := map[string]string{
		"assetId":   strconv.FormatUint(e.AssetID, 10),
		"from":      formatAddress(e.From),
		"to":        formatAddress(e.To),
		"amount":    formatAmount(e.Amount),
		"timestamp": strconv.FormatInt(e.Timestamp, 10),
	}
	return &types.Event{Type: TypeSharesTransferred, Attributes: attrs}
}

type AssetStatusChanged struct {
	AssetID   uint64
	Active    bool
	Verified  bool
	Frozen    bool
	Timestamp int64
}

func (AssetStatusChanged) EventType() string { return TypeAssetStatusChanged }

func (e AssetStatusChanged) Event() *types.Event {
	attrs := map[string]string{
		"assetId":   strconv.FormatUint(e.AssetID, 10),
		"active":    strconv.FormatBool(e.Active),
		"verified":  strconv.FormatBool(e.Verified),
		"frozen":    strconv.FormatBool(e.Frozen),
		"timestamp": strconv.FormatInt(e.Timestamp, 10),
	}
	return &types.Event{Type: TypeAssetStatusChanged, Attributes: attrs}
}

type AssetFrozen struct {
	AssetID   uint64
	Reason    string
	Timestamp int64
}

func (AssetFrozen) EventType() string { return TypeAssetFrozen }

func (e AssetFrozen) Event() *types.Event {
	attrs := map[string]string{
		"assetId":   strconv.FormatUint(e.AssetID, 10),
		"timestamp": strconv.FormatInt(e.Timestamp, 10),
	}
	if e.Reason != "" {
		attrs["reason"] = e.Reason
	}
	return &types.Event{Type: TypeAssetFrozen, Attributes: attrs}
}
