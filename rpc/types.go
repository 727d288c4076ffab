package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"landledger/core"
	"landledger/crypto"
	"landledger/native/assets"
	"landledger/native/market"
	"landledger/native/revenue"
)

// AssetResult is the wire representation of a registered asset.
type AssetResult struct {
	ID           uint64 `json:"id"`
	Symbol       string `json:"symbol"`
	Name         string `json:"name"`
	MaxShares    string `json:"maxShares"`
	IssuedShares string `json:"issuedShares"`
	Active       bool   `json:"active"`
	Verified     bool   `json:"verified"`
	Frozen       bool   `json:"frozen"`
	CreatedAt    int64  `json:"createdAt"`
	MetadataURI  string `json:"metadataURI,omitempty"`
}

func assetResult(a *assets.Asset) *AssetResult {
	if a == nil {
		return nil
	}
	return &AssetResult{
		ID:           a.ID,
		Symbol:       a.Symbol,
		Name:         a.Name,
		MaxShares:    formatAmount(a.MaxShares),
		IssuedShares: formatAmount(a.IssuedShares),
		Active:       a.Active,
		Verified:     a.Verified,
		Frozen:       a.Frozen,
		CreatedAt:    a.CreatedAt,
		MetadataURI:  a.MetadataURI,
	}
}

// ListingResult is the wire representation of a marketplace listing.
type ListingResult struct {
	ID              uint64 `json:"id"`
	Seller          string `json:"seller"`
	AssetID         uint64 `json:"assetId"`
	SharesRemaining string `json:"sharesRemaining"`
	PricePerShare   string `json:"pricePerShare"`
	Status          string `json:"status"`
	CreatedAt       int64  `json:"createdAt"`
	UpdatedAt       int64  `json:"updatedAt"`
}

func listingResult(l *market.Listing) *ListingResult {
	if l == nil {
		return nil
	}
	return &ListingResult{
		ID:              l.ID,
		Seller:          formatAddress(l.Seller),
		AssetID:         l.AssetID,
		SharesRemaining: formatAmount(l.SharesRemaining),
		PricePerShare:   formatAmount(l.PricePerShare),
		Status:          l.Status.String(),
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
}

// FillResult is the wire representation of a buy settlement.
type FillResult struct {
	ListingID       uint64 `json:"listingId"`
	AssetID         uint64 `json:"assetId"`
	Buyer           string `json:"buyer"`
	Seller          string `json:"seller"`
	Shares          string `json:"shares"`
	TotalPrice      string `json:"totalPrice"`
	Fee             string `json:"fee"`
	SellerProceeds  string `json:"sellerProceeds"`
	Refund          string `json:"refund"`
	SharesRemaining string `json:"sharesRemaining"`
	Filled          bool   `json:"filled"`
}

func fillResult(f *market.Fill) *FillResult {
	if f == nil {
		return nil
	}
	return &FillResult{
		ListingID:       f.ListingID,
		AssetID:         f.AssetID,
		Buyer:           formatAddress(f.Buyer),
		Seller:          formatAddress(f.Seller),
		Shares:          formatAmount(f.Shares),
		TotalPrice:      formatAmount(f.TotalPrice),
		Fee:             formatAmount(f.Fee),
		SellerProceeds:  formatAmount(f.SellerProceeds),
		Refund:          formatAmount(f.Refund),
		SharesRemaining: formatAmount(f.SharesRemaining),
		Filled:          f.Filled,
	}
}

// PoolResult is the wire representation of a revenue pool.
type PoolResult struct {
	AssetID            uint64 `json:"assetId"`
	TotalDeposited     string `json:"totalDeposited"`
	TotalDistributed   string `json:"totalDistributed"`
	TotalClaimed       string `json:"totalClaimed"`
	TotalWithdrawn     string `json:"totalWithdrawn"`
	CumulativePerShare string `json:"cumulativePerShare"`
	Pending            string `json:"pending"`
	LastDepositAt      int64  `json:"lastDepositAt"`
}

func poolResult(p *revenue.Pool) *PoolResult {
	if p == nil {
		return nil
	}
	return &PoolResult{
		AssetID:            p.AssetID,
		TotalDeposited:     formatAmount(p.TotalDeposited),
		TotalDistributed:   formatAmount(p.TotalDistributed),
		TotalClaimed:       formatAmount(p.TotalClaimed),
		TotalWithdrawn:     formatAmount(p.TotalWithdrawn),
		CumulativePerShare: formatAmount(p.CumulativePerShare),
		Pending:            formatAmount(p.Pending()),
		LastDepositAt:      p.LastDepositAt,
	}
}

// BalanceResult reports a funds account.
type BalanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

// EventResult is one journal record on the wire.
type EventResult struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func eventResult(record core.EventRecord) EventResult {
	out := EventResult{Sequence: record.Sequence}
	if record.Event != nil {
		out.Type = record.Event.Type
		out.Attributes = record.Event.Attributes
	}
	return out
}

func eventResults(records []core.EventRecord) []EventResult {
	out := make([]EventResult, 0, len(records))
	for _, record := range records {
		out = append(out, eventResult(record))
	}
	return out
}

func formatAddress(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.LandPrefix, addr[:]).String()
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseAddress(raw string) ([20]byte, error) {
	var out [20]byte
	decoded, err := crypto.DecodeAddress(strings.TrimSpace(raw))
	if err != nil {
		return out, err
	}
	copy(out[:], decoded.Bytes())
	return out, nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}

func decodeParams(req *RPCRequest, dst interface{}) error {
	if len(req.Params) == 0 {
		return fmt.Errorf("params object required")
	}
	dec := json.NewDecoder(strings.NewReader(string(req.Params[0])))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}
