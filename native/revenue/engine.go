package revenue

import (
	"errors"
	"math/big"
	"time"

	"landledger/core/events"
	"landledger/core/types"
	"landledger/native/assets"
	nativecommon "landledger/native/common"
)

const (
	roleTreasury = "ROLE_TREASURY"
	moduleName   = "revenue"
)

var (
	errNilState  = errors.New("revenue engine: state not configured")
	errNilShares = errors.New("revenue engine: share ledger not configured")

	zeroAddress [20]byte
)

type engineState interface {
	PoolPut(*Pool) error
	PoolGet(assetID uint64) (*Pool, bool)
	ClaimRecordPut(assetID uint64, holder [20]byte, record *ClaimRecord) error
	ClaimRecordGet(assetID uint64, holder [20]byte) (*ClaimRecord, error)
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
	HasRole(role string, addr []byte) bool
}

// ShareLedger is the slice of the assets engine the revenue module depends
// on. Claims are sized from live balances, so the ledger is consulted on
// every claim rather than snapshotted at deposit time.
type ShareLedger interface {
	Get(assetID uint64) (*assets.Asset, error)
	BalanceOf(holder [20]byte, assetID uint64) (*big.Int, error)
}

// Engine distributes deposited revenue across shareholders pro rata. Each
// deposit folds amount*Scale/issuedShares into the pool's cumulative
// per-share accumulator; a holder's claim pays balance*(accumulator -
// lastClaimedAt)/Scale and advances their marker. Markers move only on
// claims, never on transfers, so shares carry their unclaimed revenue to the
// new holder.
type Engine struct {
	state              engineState
	shares             ShareLedger
	emitter            events.Emitter
	pauses             nativecommon.PauseView
	nowFn              func() int64
	minDepositInterval int64
	busy               map[uint64]bool
}

// NewEngine creates a revenue engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
		busy:    make(map[uint64]bool),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetShares configures the share ledger claims are sized against.
func (e *Engine) SetShares(shares ShareLedger) { e.shares = shares }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses configures the pause view consulted before every mutation.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetMinDepositInterval sets the minimum seconds between deposits into the
// same pool. Zero disables the check.
func (e *Engine) SetMinDepositInterval(seconds int64) {
	if e == nil {
		return
	}
	if seconds < 0 {
		seconds = 0
	}
	e.minDepositInterval = seconds
}

func (e *Engine) emit(event events.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(event)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.shares == nil {
		return errNilShares
	}
	return nil
}

// lockPool guards a pool against re-entry while a payout is settling.
func (e *Engine) lockPool(assetID uint64) error {
	if e.busy == nil {
		e.busy = make(map[uint64]bool)
	}
	if e.busy[assetID] {
		return ErrReentrantCall
	}
	e.busy[assetID] = true
	return nil
}

func (e *Engine) unlockPool(assetID uint64) {
	delete(e.busy, assetID)
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}

func (e *Engine) creditFunds(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	acc, err := e.state.GetAccount(addr[:])
	if err != nil {
		return err
	}
	acc = ensureAccount(acc)
	acc.Balance = new(big.Int).Add(acc.Balance, amount)
	return e.state.PutAccount(addr[:], acc)
}

func (e *Engine) debitFunds(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	acc, err := e.state.GetAccount(addr[:])
	if err != nil {
		return err
	}
	acc = ensureAccount(acc)
	if acc.Balance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	acc.Balance = new(big.Int).Sub(acc.Balance, amount)
	return e.state.PutAccount(addr[:], acc)
}

// tradableForRevenue ensures the asset exists and is not frozen. Inactive or
// unverified assets keep their pools claimable; a freeze quarantines the
// asset because its balances are under investigation.
func (e *Engine) tradableForRevenue(assetID uint64) (*assets.Asset, error) {
	asset, err := e.shares.Get(assetID)
	if err != nil {
		return nil, err
	}
	if asset.Frozen {
		return nil, assets.ErrAssetFrozen
	}
	return asset, nil
}

func (e *Engine) loadPool(assetID uint64) *Pool {
	pool, ok := e.state.PoolGet(assetID)
	if !ok || pool == nil {
		return &Pool{
			AssetID:            assetID,
			TotalDeposited:     big.NewInt(0),
			TotalDistributed:   big.NewInt(0),
			TotalClaimed:       big.NewInt(0),
			TotalWithdrawn:     big.NewInt(0),
			CumulativePerShare: big.NewInt(0),
		}
	}
	return pool.Clone()
}

func (e *Engine) loadRecord(assetID uint64, holder [20]byte) (*ClaimRecord, error) {
	record, err := e.state.ClaimRecordGet(assetID, holder)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return &ClaimRecord{
			LastCumulativePerShare: big.NewInt(0),
			TotalClaimed:           big.NewInt(0),
		}, nil
	}
	return record.Clone(), nil
}

// claimableAmount computes balance*(accumulator - marker)/Scale, flooring the
// division. Stale markers above the accumulator (impossible under normal
// operation) yield zero rather than a negative claim.
func claimableAmount(pool *Pool, record *ClaimRecord, balance *big.Int) *big.Int {
	if pool == nil || record == nil || balance == nil || balance.Sign() <= 0 {
		return big.NewInt(0)
	}
	delta := new(big.Int).Sub(valueOrZero(pool.CumulativePerShare), valueOrZero(record.LastCumulativePerShare))
	if delta.Sign() <= 0 {
		return big.NewInt(0)
	}
	amount := new(big.Int).Mul(balance, delta)
	return amount.Quo(amount, Scale)
}

// Deposit folds revenue into the asset's pool and moves the funds onto the
// module vault. The accumulator advances by amount*Scale/issuedShares, so
// every share issued at deposit time carries an equal slice of the deposit.
func (e *Engine) Deposit(from [20]byte, assetID uint64, amount *big.Int) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.ready(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	asset, err := e.tradableForRevenue(assetID)
	if err != nil {
		return err
	}
	issued := asset.IssuedShares
	if issued == nil || issued.Sign() <= 0 {
		return ErrNoShares
	}
	pool := e.loadPool(assetID)
	now := e.now()
	if e.minDepositInterval > 0 && pool.LastDepositAt > 0 && now-pool.LastDepositAt < e.minDepositInterval {
		return ErrDepositTooSoon
	}
	if err := e.debitFunds(from, amount); err != nil {
		return err
	}
	if err := e.creditFunds(vaultAddress, amount); err != nil {
		return err
	}
	increment := new(big.Int).Mul(amount, Scale)
	increment.Quo(increment, issued)
	pool.CumulativePerShare = new(big.Int).Add(pool.CumulativePerShare, increment)
	pool.TotalDeposited = new(big.Int).Add(pool.TotalDeposited, amount)
	pool.TotalDistributed = new(big.Int).Add(pool.TotalDistributed, amount)
	pool.LastDepositAt = now
	if err := e.state.PoolPut(pool); err != nil {
		return err
	}
	e.emit(events.RevenueDeposited{
		AssetID:            assetID,
		From:               from,
		Amount:             cloneOrZero(amount),
		CumulativePerShare: cloneOrZero(pool.CumulativePerShare),
		IssuedShares:       cloneOrZero(issued),
		Timestamp:          now,
	})
	return nil
}

// Claim pays the holder everything the accumulator owes them for one asset
// and advances their marker to the current accumulator position. Funds are
// credited only after the record and pool mutations are persisted.
func (e *Engine) Claim(holder [20]byte, assetID uint64) (*big.Int, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.lockPool(assetID); err != nil {
		return nil, err
	}
	defer e.unlockPool(assetID)

	amount, err := e.settleClaim(holder, assetID)
	if err != nil {
		return nil, err
	}
	if err := e.debitFunds(vaultAddress, amount); err != nil {
		return nil, err
	}
	if err := e.creditFunds(holder, amount); err != nil {
		return nil, err
	}
	e.emit(events.RevenueClaimed{
		Holder:    holder,
		Amount:    cloneOrZero(amount),
		AssetIDs:  []uint64{assetID},
		Amounts:   []*big.Int{cloneOrZero(amount)},
		Timestamp: e.now(),
	})
	return amount, nil
}

// settleClaim validates and persists the record and pool mutations for a
// single-asset claim, returning the amount owed. The caller moves the funds.
func (e *Engine) settleClaim(holder [20]byte, assetID uint64) (*big.Int, error) {
	if _, err := e.tradableForRevenue(assetID); err != nil {
		return nil, err
	}
	pool, ok := e.state.PoolGet(assetID)
	if !ok || pool == nil {
		return nil, ErrNothingToClaim
	}
	pool = pool.Clone()
	record, err := e.loadRecord(assetID, holder)
	if err != nil {
		return nil, err
	}
	balance, err := e.shares.BalanceOf(holder, assetID)
	if err != nil {
		return nil, err
	}
	amount := claimableAmount(pool, record, balance)
	if amount.Sign() == 0 {
		return nil, ErrNothingToClaim
	}
	if amount.Cmp(pool.Pending()) > 0 {
		return nil, ErrInsufficientPoolFunds
	}
	record.LastCumulativePerShare = cloneOrZero(pool.CumulativePerShare)
	record.TotalClaimed = new(big.Int).Add(record.TotalClaimed, amount)
	if err := e.state.ClaimRecordPut(assetID, holder, record); err != nil {
		return nil, err
	}
	pool.TotalClaimed = new(big.Int).Add(pool.TotalClaimed, amount)
	if err := e.state.PoolPut(pool); err != nil {
		return nil, err
	}
	return amount, nil
}

// ClaimBatch claims across several assets in one call. Assets with nothing
// to claim are skipped; the call fails only when every requested asset
// yields zero. Duplicate ids are processed once. Validation runs for the
// whole batch before any state is touched, so a frozen or unknown asset
// fails the batch without partial settlement.
func (e *Engine) ClaimBatch(holder [20]byte, assetIDs []uint64) (*big.Int, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.ready(); err != nil {
		return nil, err
	}

	type pendingClaim struct {
		assetID uint64
		amount  *big.Int
		pool    *Pool
		record  *ClaimRecord
	}
	claims := make([]pendingClaim, 0, len(assetIDs))
	seen := make(map[uint64]bool, len(assetIDs))
	for _, assetID := range assetIDs {
		if seen[assetID] {
			continue
		}
		seen[assetID] = true
		if err := e.lockPool(assetID); err != nil {
			return nil, err
		}
		defer e.unlockPool(assetID)

		if _, err := e.tradableForRevenue(assetID); err != nil {
			return nil, err
		}
		pool, ok := e.state.PoolGet(assetID)
		if !ok || pool == nil {
			continue
		}
		pool = pool.Clone()
		record, err := e.loadRecord(assetID, holder)
		if err != nil {
			return nil, err
		}
		balance, err := e.shares.BalanceOf(holder, assetID)
		if err != nil {
			return nil, err
		}
		amount := claimableAmount(pool, record, balance)
		if amount.Sign() == 0 {
			continue
		}
		if amount.Cmp(pool.Pending()) > 0 {
			return nil, ErrInsufficientPoolFunds
		}
		claims = append(claims, pendingClaim{assetID: assetID, amount: amount, pool: pool, record: record})
	}
	if len(claims) == 0 {
		return nil, ErrNothingToClaim
	}

	total := big.NewInt(0)
	claimedIDs := make([]uint64, 0, len(claims))
	claimedAmounts := make([]*big.Int, 0, len(claims))
	for _, claim := range claims {
		claim.record.LastCumulativePerShare = cloneOrZero(claim.pool.CumulativePerShare)
		claim.record.TotalClaimed = new(big.Int).Add(claim.record.TotalClaimed, claim.amount)
		if err := e.state.ClaimRecordPut(claim.assetID, holder, claim.record); err != nil {
			return nil, err
		}
		claim.pool.TotalClaimed = new(big.Int).Add(claim.pool.TotalClaimed, claim.amount)
		if err := e.state.PoolPut(claim.pool); err != nil {
			return nil, err
		}
		total.Add(total, claim.amount)
		claimedIDs = append(claimedIDs, claim.assetID)
		claimedAmounts = append(claimedAmounts, cloneOrZero(claim.amount))
	}
	if err := e.debitFunds(vaultAddress, total); err != nil {
		return nil, err
	}
	if err := e.creditFunds(holder, total); err != nil {
		return nil, err
	}
	e.emit(events.RevenueClaimed{
		Holder:    holder,
		Amount:    cloneOrZero(total),
		AssetIDs:  claimedIDs,
		Amounts:   claimedAmounts,
		Timestamp: e.now(),
	})
	return total, nil
}

// GetClaimable reports what a claim would pay right now without mutating
// anything. Assets without a pool yield zero.
func (e *Engine) GetClaimable(holder [20]byte, assetID uint64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if _, err := e.shares.Get(assetID); err != nil {
		return nil, err
	}
	pool, ok := e.state.PoolGet(assetID)
	if !ok || pool == nil {
		return big.NewInt(0), nil
	}
	record, err := e.loadRecord(assetID, holder)
	if err != nil {
		return nil, err
	}
	balance, err := e.shares.BalanceOf(holder, assetID)
	if err != nil {
		return nil, err
	}
	return claimableAmount(pool, record, balance), nil
}

// GetPool returns a copy of the pool accounting for an asset.
func (e *Engine) GetPool(assetID uint64) (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pool, ok := e.state.PoolGet(assetID)
	if !ok || pool == nil {
		return nil, ErrPoolNotFound
	}
	return pool.Clone(), nil
}

// EmergencyWithdraw drains a pool's pending funds to the recipient. It is a
// treasury circuit breaker for incident response, so it stays usable while
// the module is paused. Claims against the drained portion fail afterwards
// with ErrInsufficientPoolFunds until fresh deposits arrive.
func (e *Engine) EmergencyWithdraw(caller [20]byte, assetID uint64, recipient [20]byte) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !e.state.HasRole(roleTreasury, caller[:]) {
		return nil, ErrUnauthorized
	}
	if recipient == zeroAddress {
		return nil, ErrInvalidRecipient
	}
	if err := e.lockPool(assetID); err != nil {
		return nil, err
	}
	defer e.unlockPool(assetID)

	pool, ok := e.state.PoolGet(assetID)
	if !ok || pool == nil {
		return nil, ErrPoolNotFound
	}
	pool = pool.Clone()
	pending := pool.Pending()
	if pending.Sign() == 0 {
		return nil, ErrNothingPending
	}
	pool.TotalWithdrawn = new(big.Int).Add(pool.TotalWithdrawn, pending)
	if err := e.state.PoolPut(pool); err != nil {
		return nil, err
	}
	if err := e.debitFunds(vaultAddress, pending); err != nil {
		return nil, err
	}
	if err := e.creditFunds(recipient, pending); err != nil {
		return nil, err
	}
	e.emit(events.RevenueEmergencyWithdrawn{
		AssetID:   assetID,
		Recipient: recipient,
		Amount:    cloneOrZero(pending),
		Timestamp: e.now(),
	})
	return pending, nil
}
