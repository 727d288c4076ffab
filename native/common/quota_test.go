package common

import (
	"errors"
	"testing"
)

func TestCheckQuotaCommandLimit(t *testing.T) {
	q := Quota{MaxCommandsPerEpoch: 10}
	prev := QuotaNow{EpochID: 1}

	next, err := CheckQuota(q, 1, prev, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.CommandCount != 10 {
		t.Fatalf("unexpected command count: %d", next.CommandCount)
	}

	denied, err := CheckQuota(q, 1, next, 1, 0)
	if !errors.Is(err, ErrQuotaCommandsExceeded) {
		t.Fatalf("expected ErrQuotaCommandsExceeded, got %v", err)
	}
	if denied != next {
		t.Fatalf("expected counters to remain unchanged on denial")
	}

	rollover, err := CheckQuota(q, 2, next, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error after epoch rollover: %v", err)
	}
	if rollover.EpochID != 2 || rollover.CommandCount != 1 {
		t.Fatalf("unexpected state after rollover: %+v", rollover)
	}
}

func TestCheckQuotaFundsCap(t *testing.T) {
	q := Quota{MaxFundsPerEpoch: 1000}
	prev := QuotaNow{EpochID: 5}

	next, err := CheckQuota(q, 5, prev, 0, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.FundsUsed != 1000 {
		t.Fatalf("unexpected funds used: %d", next.FundsUsed)
	}

	denied, err := CheckQuota(q, 5, next, 0, 1)
	if !errors.Is(err, ErrQuotaFundsCapExceeded) {
		t.Fatalf("expected ErrQuotaFundsCapExceeded, got %v", err)
	}
	if denied != next {
		t.Fatalf("expected counters to remain unchanged on denial")
	}

	rollover, err := CheckQuota(q, 6, next, 0, 500)
	if err != nil {
		t.Fatalf("unexpected error after epoch rollover: %v", err)
	}
	if rollover.FundsUsed != 500 {
		t.Fatalf("unexpected funds used after rollover: %d", rollover.FundsUsed)
	}
}
