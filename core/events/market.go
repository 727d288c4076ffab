package events

import (
	"math/big"
	"strconv"

	"landledger/core/types"
)

const (
	// TypeMarketListed marks a new sell listing with its escrowed shares.
	TypeMarketListed = "market.listed"
	// TypeMarketPurchased records a full or partial fill.
	TypeMarketPurchased = "market.purchased"
	// TypeMarketCancelled records a seller cancellation with escrow return.
	TypeMarketCancelled = "market.cancelled"
	// TypeMarketFeeUpdated records an administrative fee policy change.
	TypeMarketFeeUpdated = "market.feeUpdated"
)

type MarketListed struct {
	ListingID     uint64
	AssetID       uint64
	Seller        [20]byte
	Shares        *big.Int
	PricePerShare *big.Int
	Timestamp     int64
}

func (MarketListed) EventType() string { return TypeMarketListed }

func (e MarketListed) Event() *types.Event {
	attrs := map[string]string{
		"listingId":     strconv.FormatUint(e.ListingID, 10),
		"assetId":       strconv.FormatUint(e.AssetID, 10),
		"seller":        formatAddress(e.Seller),
		"shares":        formatAmount(e.Shares),
		"pricePerShare": formatAmount(e.PricePerShare),
		"timestamp":     strconv.FormatInt(e.Timestamp, 10),
	}
	return &types.Event{Type: TypeMarketListed, Attributes: attrs}
}

type MarketPurchased struct {
	ListingID       uint64
	AssetID         uint64
	Buyer           [20]byte
	Seller          [20]byte
	Shares          *big.Int
	TotalPrice      *big.Int
	Fee             *big.Int
	SellerProceeds  *big.Int
	Refund          *big.Int
	SharesRemaining *big.Int
	Filled          bool
	Timestamp       int64
}

func (MarketPurchased) EventType() string { return TypeMarketPurchased }

func (e MarketPurchased) Event() *types.Event {
	attrs := map[string]string{
		"listingId":       strconv.FormatUint(e.ListingID, 10),
		"assetId":         strconv.FormatUint(e.AssetID, 10),
		"buyer":           formatAddress(e.Buyer),
		"seller":          formatAddress(e.Seller),
		"shares":          formatAmount(e.Shares),
		"totalPrice":      formatAmount(e.TotalPrice),
		"fee":             formatAmount(e.Fee),
		"sellerProceeds":  formatAmount(e.SellerProceeds),
		"sharesRemaining": formatAmount(e.SharesRemaining),
		"filled":          strconv.FormatBool(e.Filled),
		"timestamp":       strconv.FormatInt(e.Timestamp, 10),
	}
	if e.Refund != nil && e.Refund.Sign() > 0 {
		attrs["refund"] = formatAmount(e.Refund)
	}
	return &types.Event{Type: TypeMarketPurchased, Attributes: attrs}
}

type MarketCancelled struct {
	ListingID      uint64
	AssetID        uint64
	Seller         [20]byte
	SharesReturned *big.Int
	Timestamp      int64
}

func (MarketCancelled) EventType() string { return TypeMarketCancelled }

func (e MarketCancelled) Event() *types.Event {
	attrs := map[string]string{
		"listingId":      strconv.FormatUint(e.ListingID, 10),
		"assetId":        strconv.FormatUint(e.AssetID, 10),
		"seller":         formatAddress(e.Seller),
		"sharesReturned": formatAmount(e.SharesReturned),
		"timestamp":      strconv.FormatInt(e.Timestamp, 10),
	}
	return &types.Event{Type: TypeMarketCancelled, Attributes: attrs}
}

type MarketFeeUpdated struct {
	FeeBps       uint32
	FeeRecipient [20]byte
	Timestamp    int64
}

func (MarketFeeUpdated) EventType() string { return TypeMarketFeeUpdated }

func (e MarketFeeUpdated) Event() *types.Event {
	attrs := map[string]string{
		"feeBps":    strconv.FormatUint(uint64(e.FeeBps), 10),
		"timestamp": strconv.FormatInt(e.Timestamp, 10),
	}
	if !zeroBytes(e.FeeRecipient[:]) {
		attrs["feeRecipient"] = formatAddress(e.FeeRecipient)
	}
	return &types.Event{Type: TypeMarketFeeUpdated, Attributes: attrs}
}
