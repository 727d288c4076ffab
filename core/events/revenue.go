package events

import (
	"math/big"
	"strconv"
	"strings"

	"landledger/core/types"
)

const (
	// TypeRevenueDeposited marks revenue entering an asset's pool.
	TypeRevenueDeposited = "revenue.deposited"
	// TypeRevenueClaimed marks a holder collecting accrued revenue.
	TypeRevenueClaimed = "revenue.claimed"
	// TypeRevenueEmergencyWithdrawn marks an administrative drain of a pool.
	TypeRevenueEmergencyWithdrawn = "revenue.emergencyWithdrawn"
)

type RevenueDeposited struct {
	AssetID            uint64
	From               [20]byte
	Amount             *big.Int
	CumulativePerShare *big.Int
	IssuedShares       *big.Int
	Timestamp          int64
}

func (RevenueDeposited) EventType() string { return TypeRevenueDeposited }

func (e RevenueDeposited) Event() *types.Event {
	attrs := map[string]string{
		"assetId":            strconv.FormatUint(e.AssetID, 10),
		"from":               formatAddress(e.From),
		"amount":             formatAmount(e.Amount),
		"cumulativePerShare": formatAmount(e.CumulativePerShare),
		"issuedShares":       formatAmount(e.IssuedShares),
		"timestamp":          strconv.FormatInt(e.Timestamp, 10),
	}
	return &types.Event{Type: TypeRevenueDeposited, Attributes: attrs}
}

// RevenueClaimed covers both single and batch claims. AssetIDs and Amounts
// are parallel slices; Amount is the credited total.
type RevenueClaimed struct {
	Holder    [20]byte
	Amount    *big.Int
	AssetIDs  []uint64
	Amounts   []*big.Int
	Timestamp int64
}

func (RevenueClaimed) EventType() string { return TypeRevenueClaimed }

func (e RevenueClaimed) Event() *types.Event {
	ids := make([]string, 0, len(e.AssetIDs))
	for _, id := range e.AssetIDs {
		ids = append(ids, strconv.FormatUint(id, 10))
	}
	amounts := make([]string, 0, len(e.Amounts))
	for _, amount := range e.Amounts {
		amounts = append(amounts, formatAmount(amount))
	}
	attrs := map[string]string{
		"holder":    formatAddress(e.Holder),
		"amount":    formatAmount(e.Amount),
		"assetIds":  strings.Join(ids, ","),
		"amounts":   strings.Join(amounts, ","),
		"timestamp": strconv.FormatInt(e.Timestamp, 10),
	}
	return &types.Event{Type: TypeRevenueClaimed, Attributes: attrs}
}

type RevenueEmergencyWithdrawn struct {
	AssetID   uint64
	Recipient [20]byte
	Amount    *big.Int
	Timestamp int64
}

func (RevenueEmergencyWithdrawn) EventType() string { return TypeRevenueEmergencyWithdrawn }

func (e RevenueEmergencyWithdrawn) Event() *types.Event {
	attrs := map[string]string{
		"assetId":   strconv.FormatUint(e.AssetID, 10),
		"recipient": formatAddress(e.Recipient),
		"amount":    formatAmount(e.Amount),
		"timestamp": strconv.FormatInt(e.Timestamp, 10),
	}
	return &types.Event{Type: TypeRevenueEmergencyWithdrawn, Attributes: attrs}
}
