package common

import (
	"errors"
	"math"
)

var (
	ErrQuotaCommandsExceeded = errors.New("quota commands exceeded")
	ErrQuotaFundsCapExceeded = errors.New("quota funds cap exceeded")
	ErrQuotaCounterOverflow  = errors.New("quota counter overflow")
)

// QuotaNow captures the current quota usage counters for an address.
type QuotaNow struct {
	CommandCount uint32
	FundsUsed    uint64
	EpochID      uint64
}

// Quota defines the per-address limits enforced on mutating commands.
type Quota struct {
	MaxCommandsPerEpoch uint32
	MaxFundsPerEpoch    uint64
	EpochSeconds        uint32
}

// Enabled reports whether any quota dimension is configured.
func (q Quota) Enabled() bool {
	return q.EpochSeconds > 0 && (q.MaxCommandsPerEpoch > 0 || q.MaxFundsPerEpoch > 0)
}

// CheckQuota verifies whether the additional command and funds usage fit
// within the configured quota. The returned QuotaNow reflects the updated
// counters when the quota is not exceeded.
func CheckQuota(q Quota, nowEpoch uint64, prev QuotaNow, addCommands uint32, addFunds uint64) (QuotaNow, error) {
	next := prev
	if prev.EpochID != nowEpoch {
		next = QuotaNow{EpochID: nowEpoch}
	}

	if addCommands > 0 {
		if next.CommandCount > math.MaxUint32-addCommands {
			return prev, ErrQuotaCounterOverflow
		}
		next.CommandCount += addCommands
	}
	if q.MaxCommandsPerEpoch > 0 && next.CommandCount > q.MaxCommandsPerEpoch {
		return prev, ErrQuotaCommandsExceeded
	}

	if addFunds > 0 {
		if next.FundsUsed > math.MaxUint64-addFunds {
			return prev, ErrQuotaCounterOverflow
		}
		next.FundsUsed += addFunds
	}
	if q.MaxFundsPerEpoch > 0 && next.FundsUsed > q.MaxFundsPerEpoch {
		return prev, ErrQuotaFundsCapExceeded
	}

	return next, nil
}
