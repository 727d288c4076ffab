package revenue

import (
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Scale is the fixed-point denominator for the cumulative per-share
// accumulator. Deposits are folded in as amount*Scale/issuedShares so
// integer division loses at most one base unit per holder per claim.
var Scale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Pool tracks the lifetime revenue accounting for one asset. Funds sit on
// the module vault address between deposit and claim; the counters below
// must always satisfy TotalDeposited = TotalClaimed + TotalWithdrawn +
// pending vault balance.
type Pool struct {
	AssetID            uint64
	TotalDeposited     *big.Int
	TotalDistributed   *big.Int
	TotalClaimed       *big.Int
	TotalWithdrawn     *big.Int
	CumulativePerShare *big.Int
	LastDepositAt      int64
}

// Clone returns a deep copy of the pool so callers can mutate the copy
// without affecting the stored instance.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	clone.TotalDeposited = cloneOrZero(p.TotalDeposited)
	clone.TotalDistributed = cloneOrZero(p.TotalDistributed)
	clone.TotalClaimed = cloneOrZero(p.TotalClaimed)
	clone.TotalWithdrawn = cloneOrZero(p.TotalWithdrawn)
	clone.CumulativePerShare = cloneOrZero(p.CumulativePerShare)
	return &clone
}

// Pending returns the deposited amount that has been neither claimed by
// holders nor withdrawn through the emergency path. It equals the share of
// the vault balance attributable to this pool.
func (p *Pool) Pending() *big.Int {
	pending := new(big.Int).Set(valueOrZero(p.TotalDeposited))
	pending.Sub(pending, valueOrZero(p.TotalClaimed))
	pending.Sub(pending, valueOrZero(p.TotalWithdrawn))
	if pending.Sign() < 0 {
		return big.NewInt(0)
	}
	return pending
}

// ClaimRecord remembers the accumulator position a holder last claimed at.
// Records are created lazily: an absent record is equivalent to one with a
// zero LastCumulativePerShare.
type ClaimRecord struct {
	LastCumulativePerShare *big.Int
	TotalClaimed           *big.Int
}

// Clone returns a deep copy of the claim record.
func (r *ClaimRecord) Clone() *ClaimRecord {
	if r == nil {
		return nil
	}
	clone := *r
	clone.LastCumulativePerShare = cloneOrZero(r.LastCumulativePerShare)
	clone.TotalClaimed = cloneOrZero(r.TotalClaimed)
	return &clone
}

func cloneOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

const vaultSeed = "module/revenue/vault"

var vaultAddress = func() [20]byte {
	hash := ethcrypto.Keccak256([]byte(vaultSeed))
	var addr [20]byte
	copy(addr[:], hash[len(hash)-20:])
	return addr
}()

// VaultAddress returns the module-owned address that custodies deposited
// revenue until holders claim it. The address is derived deterministically
// from the module seed and has no known private key.
func VaultAddress() [20]byte {
	return vaultAddress
}
