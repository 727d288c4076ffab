package assets

import (
	"errors"
	"math/big"
	"time"

	"landledger/core/events"
	nativecommon "landledger/native/common"
)

const (
	roleAssetAdmin = "ROLE_ASSET_ADMIN"

	// ModuleName is the pause toggle governing every share ledger mutation.
	// The marketplace pre-flights it before settling escrow moves.
	ModuleName = "assets"
)

var errNilState = errors.New("assets engine: state not configured")

type engineState interface {
	AssetsNextID() (uint64, error)
	AssetPut(*Asset) error
	AssetGet(id uint64) (*Asset, bool)
	AssetIDBySymbol(symbol string) (uint64, bool)
	HoldingGet(assetID uint64, holder [20]byte) (*big.Int, error)
	HoldingSet(assetID uint64, holder [20]byte, amount *big.Int) error
	HasRole(role string, addr []byte) bool
}

// Engine owns the share ledger: the asset registry and every share balance
// mutation. The marketplace and revenue modules read and move shares only
// through this engine.
type Engine struct {
	state   engineState
	emitter events.Emitter
	pauses  nativecommon.PauseView
	nowFn   func() int64
}

// NewEngine creates a share ledger engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

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

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func (e *Engine) loadAsset(id uint64) (*Asset, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	asset, ok := e.state.AssetGet(id)
	if !ok {
		return nil, ErrAssetNotFound
	}
	return asset, nil
}

// Register creates a new asset with the next sequential id. Only callers
// holding ROLE_ASSET_ADMIN may register assets. New assets start active but
// unverified.
func (e *Engine) Register(caller [20]byte, symbol, name string, maxShares *big.Int, metadataURI string) (*Asset, error) {
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if !e.state.HasRole(roleAssetAdmin, caller[:]) {
		return nil, ErrUnauthorized
	}
	normalizedSymbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	normalizedName, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	normalizedURI, err := NormalizeMetadataURI(metadataURI)
	if err != nil {
		return nil, err
	}
	if maxShares == nil || maxShares.Sign() <= 0 {
		return nil, ErrInvalidMaxShares
	}
	if _, exists := e.state.AssetIDBySymbol(normalizedSymbol); exists {
		return nil, ErrSymbolTaken
	}
	id, err := e.state.AssetsNextID()
	if err != nil {
		return nil, err
	}
	asset := &Asset{
		ID:           id,
		Symbol:       normalizedSymbol,
		Name:         normalizedName,
		MaxShares:    cloneBigInt(maxShares),
		IssuedShares: big.NewInt(0),
		Active:       true,
		Verified:     false,
		CreatedAt:    e.now(),
		MetadataURI:  normalizedURI,
	}
	if err := e.state.AssetPut(asset); err != nil {
		return nil, err
	}
	e.emit(events.AssetRegistered{
		AssetID:   asset.ID,
		Symbol:    asset.Symbol,
		Name:      asset.Name,
		MaxShares: cloneBigInt(asset.MaxShares),
		Timestamp: asset.CreatedAt,
	})
	return asset.Clone(), nil
}

// Mint issues new shares to the holder, growing the asset's issuance.
// Issuance never exceeds MaxShares.
func (e *Engine) Mint(caller [20]byte, assetID uint64, holder [20]byte, amount *big.Int) error {
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	if e == nil || e.state == nil {
		return errNilState
	}
	if !e.state.HasRole(roleAssetAdmin, caller[:]) {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	asset, err := e.loadAsset(assetID)
	if err != nil {
		return err
	}
	if asset.Frozen {
		return ErrAssetFrozen
	}
	issued := new(big.Int).Add(asset.IssuedShares, amount)
	if issued.Cmp(asset.MaxShares) > 0 {
		return ErrCapacityExceeded
	}
	balance, err := e.state.HoldingGet(assetID, holder)
	if err != nil {
		return err
	}
	if err := e.state.HoldingSet(assetID, holder, new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	asset.IssuedShares = issued
	if err := e.state.AssetPut(asset); err != nil {
		return err
	}
	e.emit(events.SharesMinted{
		AssetID:   assetID,
		Holder:    holder,
		Amount:    cloneBigInt(amount),
		Issued:    cloneBigInt(issued),
		Timestamp: e.now(),
	})
	return nil
}

// Transfer moves shares between holders as an atomic debit+credit pair. The
// per-asset balance sum is invariant across the call.
func (e *Engine) Transfer(from, to [20]byte, assetID uint64, amount *big.Int) error {
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	if e == nil || e.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 || from == to {
		return ErrInvalidAmount
	}
	asset, err := e.loadAsset(assetID)
	if err != nil {
		return err
	}
	if asset.Frozen {
		return ErrAssetFrozen
	}
	fromBalance, err := e.state.HoldingGet(assetID, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientShares
	}
	toBalance, err := e.state.HoldingGet(assetID, to)
	if err != nil {
		return err
	}
	if err := e.state.HoldingSet(assetID, from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	if err := e.state.HoldingSet(assetID, to, new(big.Int).Add(toBalance, amount)); err != nil {
		return err
	}
	e.emit(events.SharesTransferred{
		AssetID:   assetID,
		From:      from,
		To:        to,
		Amount:    cloneBigInt(amount),
		Timestamp: e.now(),
	})
	return nil
}

// BalanceOf returns the holder's share balance. Unknown holders yield zero;
// unknown assets fail with ErrAssetNotFound.
func (e *Engine) BalanceOf(holder [20]byte, assetID uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if _, err := e.loadAsset(assetID); err != nil {
		return nil, err
	}
	return e.state.HoldingGet(assetID, holder)
}

// Get returns a copy of the asset stored under the provided id.
func (e *Engine) Get(assetID uint64) (*Asset, error) {
	asset, err := e.loadAsset(assetID)
	if err != nil {
		return nil, err
	}
	return asset.Clone(), nil
}

// SetActive toggles the trading-active flag of an asset.
func (e *Engine) SetActive(caller [20]byte, assetID uint64, active bool) error {
	return e.setStatus(caller, assetID, func(a *Asset) { a.Active = active })
}

// SetVerified toggles the verification flag of an asset.
func (e *Engine) SetVerified(caller [20]byte, assetID uint64, verified bool) error {
	return e.setStatus(caller, assetID, func(a *Asset) { a.Verified = verified })
}

func (e *Engine) setStatus(caller [20]byte, assetID uint64, mutate func(*Asset)) error {
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	if e == nil || e.state == nil {
		return errNilState
	}
	if !e.state.HasRole(roleAssetAdmin, caller[:]) {
		return ErrUnauthorized
	}
	asset, err := e.loadAsset(assetID)
	if err != nil {
		return err
	}
	if asset.Frozen {
		return ErrAssetFrozen
	}
	mutate(asset)
	if err := e.state.AssetPut(asset); err != nil {
		return err
	}
	e.emit(events.AssetStatusChanged{
		AssetID:   assetID,
		Active:    asset.Active,
		Verified:  asset.Verified,
		Frozen:    asset.Frozen,
		Timestamp: e.now(),
	})
	return nil
}

// Freeze halts all further mutation of the asset. It is invoked by the node
// when a conservation check fails and is intentionally not role gated so the
// check can quarantine the asset without an administrative round trip.
// Freezing an already frozen asset is a no-op.
func (e *Engine) Freeze(assetID uint64, reason string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	asset, err := e.loadAsset(assetID)
	if err != nil {
		return err
	}
	if asset.Frozen {
		return nil
	}
	asset.Frozen = true
	if err := e.state.AssetPut(asset); err != nil {
		return err
	}
	e.emit(events.AssetFrozen{
		AssetID:   assetID,
		Reason:    reason,
		Timestamp: e.now(),
	})
	return nil
}

// Unfreeze lifts a conservation freeze after administrative intervention.
func (e *Engine) Unfreeze(caller [20]byte, assetID uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if !e.state.HasRole(roleAssetAdmin, caller[:]) {
		return ErrUnauthorized
	}
	asset, err := e.loadAsset(assetID)
	if err != nil {
		return err
	}
	if !asset.Frozen {
		return nil
	}
	asset.Frozen = false
	if err := e.state.AssetPut(asset); err != nil {
		return err
	}
	e.emit(events.AssetStatusChanged{
		AssetID:   assetID,
		Active:    asset.Active,
		Verified:  asset.Verified,
		Frozen:    asset.Frozen,
		Timestamp: e.now(),
	})
	return nil
}
