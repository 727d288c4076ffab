package events

import (
	"math/big"
	"strconv"

	"landledger/core/types"
)

// TypeFundsTransferred is emitted for direct funds movements between
// accounts. Marketplace settlements and revenue payouts emit their own
// richer event types instead.
const TypeFundsTransferred = "bank.transferred"

// TypeFundsMinted is emitted when the treasury credits new spendable funds
// to an account.
const TypeFundsMinted = "bank.minted"

type FundsTransferred struct {
	From      [20]byte
	To        [20]byte
	Amount    *big.Int
	Timestamp int64
}

func (FundsTransferred) EventType() string { return TypeFundsTransferred }

func (e FundsTransferred) Event() *types.Event {
	attrs := map[string]string{
		"from":      formatAddress(e.From),
		"to":        formatAddress(e.To),
		"amount":    formatAmount(e.Amount),
		"timestamp": strconv.FormatInt(e.Timestamp, 10),
	}
	return &types.Event{Type: TypeFundsTransferred, Attributes: attrs}
}

type FundsMinted struct {
	To        [20]byte
	Amount    *big.Int
	Timestamp int64
}

func (FundsMinted) EventType() string { return TypeFundsMinted }

func (e FundsMinted) Event() *types.Event {
	attrs := map[string]string{
		"to":        formatAddress(e.To),
		"amount":    formatAmount(e.Amount),
		"timestamp": strconv.FormatInt(e.Timestamp, 10),
	}
	return &types.Event{Type: TypeFundsMinted, Attributes: attrs}
}
