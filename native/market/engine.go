package market

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
	roleMarketAdmin = "ROLE_MARKET_ADMIN"
	moduleName      = "market"

	// MaxFeeBps bounds the marketplace fee at 10%.
	MaxFeeBps      = 1000
	feeDenominator = 10_000
)

var (
	errNilState  = errors.New("market engine: state not configured")
	errNilShares = errors.New("market engine: share ledger not configured")

	zeroAddress [20]byte
)

type engineState interface {
	ListingsNextID() (uint64, error)
	ListingPut(*Listing) error
	ListingGet(id uint64) (*Listing, bool)
	MarketFeePolicy() (*FeePolicy, error)
	SetMarketFeePolicy(*FeePolicy) error
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
	HasRole(role string, addr []byte) bool
}

// ShareLedger is the slice of the assets engine the marketplace depends on.
// Shares only move through it, never through raw holding writes.
type ShareLedger interface {
	Get(assetID uint64) (*assets.Asset, error)
	BalanceOf(holder [20]byte, assetID uint64) (*big.Int, error)
	Transfer(from, to [20]byte, assetID uint64, amount *big.Int) error
}

// Engine settles sell listings over the share ledger: listed shares are
// escrowed on the module address, fills split the price between seller and
// fee recipient, and every operation completes its ledger and listing
// mutations before crediting outbound funds.
type Engine struct {
	state   engineState
	shares  ShareLedger
	emitter events.Emitter
	pauses  nativecommon.PauseView
	nowFn   func() int64
	busy    map[uint64]bool
}

// NewEngine creates a marketplace engine with a no-op emitter. Callers can
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

// SetShares configures the share ledger used to move listed shares.
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

// guardTrade pre-flights both pause toggles a trade crosses. Escrow settles
// through the share ledger, so a paused assets module would otherwise abort
// an operation after funds or listing state had already moved.
func (e *Engine) guardTrade() error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	return nativecommon.Guard(e.pauses, assets.ModuleName)
}

// lockListing guards a listing against re-entry while a fill or cancel is
// settling.
func (e *Engine) lockListing(id uint64) error {
	if e.busy == nil {
		e.busy = make(map[uint64]bool)
	}
	if e.busy[id] {
		return ErrReentrantCall
	}
	e.busy[id] = true
	return nil
}

func (e *Engine) unlockListing(id uint64) {
	delete(e.busy, id)
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
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

// List escrows the seller's shares and opens a new active listing. It is the
// only path that moves shares onto the escrow address, so the escrow balance
// per asset always equals the sum of open listing remainders.
func (e *Engine) List(seller [20]byte, assetID uint64, shares, pricePerShare *big.Int) (uint64, error) {
	if err := e.guardTrade(); err != nil {
		return 0, err
	}
	if err := e.ready(); err != nil {
		return 0, err
	}
	if shares == nil || shares.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	if pricePerShare == nil || pricePerShare.Sign() <= 0 {
		return 0, ErrInvalidPrice
	}
	asset, err := e.shares.Get(assetID)
	if err != nil {
		return 0, err
	}
	if !asset.Tradable() {
		return 0, ErrAssetNotTradable
	}
	balance, err := e.shares.BalanceOf(seller, assetID)
	if err != nil {
		return 0, err
	}
	if balance.Cmp(shares) < 0 {
		return 0, ErrInsufficientShares
	}
	id, err := e.state.ListingsNextID()
	if err != nil {
		return 0, err
	}
	if err := e.shares.Transfer(seller, EscrowAddress(), assetID, shares); err != nil {
		return 0, err
	}
	now := e.now()
	listing := &Listing{
		ID:              id,
		Seller:          seller,
		AssetID:         assetID,
		SharesRemaining: cloneBigInt(shares),
		PricePerShare:   cloneBigInt(pricePerShare),
		Status:          ListingActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.state.ListingPut(listing); err != nil {
		return 0, err
	}
	e.emit(events.MarketListed{
		ListingID:     id,
		AssetID:       assetID,
		Seller:        seller,
		Shares:        cloneBigInt(shares),
		PricePerShare: cloneBigInt(pricePerShare),
		Timestamp:     now,
	})
	return id, nil
}

// Buy fills up to sharesRequested from the listing. The buyer's offer is
// taken into custody first; the listing, escrow and share mutations all
// complete before seller proceeds, fee and refund are credited.
func (e *Engine) Buy(buyer [20]byte, listingID uint64, sharesRequested, offeredFunds *big.Int) (*Fill, error) {
	if err := e.guardTrade(); err != nil {
		return nil, err
	}
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.lockListing(listingID); err != nil {
		return nil, err
	}
	defer e.unlockListing(listingID)

	listing, ok := e.state.ListingGet(listingID)
	if !ok {
		return nil, ErrListingNotFound
	}
	if listing.Status.Terminal() {
		return nil, ErrListingNotActive
	}
	if sharesRequested == nil || sharesRequested.Sign() <= 0 || sharesRequested.Cmp(listing.SharesRemaining) > 0 {
		return nil, ErrInvalidAmount
	}
	if buyer == listing.Seller {
		return nil, ErrSelfTrade
	}
	asset, err := e.shares.Get(listing.AssetID)
	if err != nil {
		return nil, err
	}
	if !asset.Tradable() {
		return nil, ErrAssetNotTradable
	}

	policy, err := e.state.MarketFeePolicy()
	if err != nil {
		return nil, err
	}
	totalPrice := new(big.Int).Mul(sharesRequested, listing.PricePerShare)
	fee := new(big.Int).Mul(totalPrice, big.NewInt(int64(policy.FeeBps)))
	fee.Quo(fee, big.NewInt(feeDenominator))
	sellerProceeds := new(big.Int).Sub(totalPrice, fee)
	if offeredFunds == nil || offeredFunds.Cmp(totalPrice) < 0 {
		return nil, ErrInsufficientFunds
	}
	refund := new(big.Int).Sub(offeredFunds, totalPrice)

	// Custody phase: the full offer leaves the buyer before anything else
	// moves.
	if err := e.debitFunds(buyer, offeredFunds); err != nil {
		return nil, err
	}

	// Mutation phase: listing state and escrowed shares.
	now := e.now()
	listing.SharesRemaining = new(big.Int).Sub(listing.SharesRemaining, sharesRequested)
	filled := listing.SharesRemaining.Sign() == 0
	if filled {
		listing.Status = ListingFilled
	} else {
		listing.Status = ListingPartiallyFilled
	}
	listing.UpdatedAt = now
	if err := e.state.ListingPut(listing); err != nil {
		return nil, err
	}
	if err := e.shares.Transfer(EscrowAddress(), buyer, listing.AssetID, sharesRequested); err != nil {
		return nil, err
	}

	// Payout phase.
	if err := e.creditFunds(listing.Seller, sellerProceeds); err != nil {
		return nil, err
	}
	if fee.Sign() > 0 {
		if err := e.creditFunds(policy.Recipient, fee); err != nil {
			return nil, err
		}
	}
	if err := e.creditFunds(buyer, refund); err != nil {
		return nil, err
	}

	e.emit(events.MarketPurchased{
		ListingID:       listingID,
		AssetID:         listing.AssetID,
		Buyer:           buyer,
		Seller:          listing.Seller,
		Shares:          cloneBigInt(sharesRequested),
		TotalPrice:      cloneBigInt(totalPrice),
		Fee:             cloneBigInt(fee),
		SellerProceeds:  cloneBigInt(sellerProceeds),
		Refund:          cloneBigInt(refund),
		SharesRemaining: cloneBigInt(listing.SharesRemaining),
		Filled:          filled,
		Timestamp:       now,
	})
	return &Fill{
		ListingID:       listingID,
		AssetID:         listing.AssetID,
		Buyer:           buyer,
		Seller:          listing.Seller,
		Shares:          cloneBigInt(sharesRequested),
		TotalPrice:      totalPrice,
		Fee:             fee,
		SellerProceeds:  sellerProceeds,
		Refund:          refund,
		SharesRemaining: cloneBigInt(listing.SharesRemaining),
		Filled:          filled,
	}, nil
}

// Cancel terminates a listing and returns every escrowed share to the seller.
func (e *Engine) Cancel(caller [20]byte, listingID uint64) error {
	if err := e.guardTrade(); err != nil {
		return err
	}
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.lockListing(listingID); err != nil {
		return err
	}
	defer e.unlockListing(listingID)

	listing, ok := e.state.ListingGet(listingID)
	if !ok {
		return ErrListingNotFound
	}
	if caller != listing.Seller {
		return ErrNotSeller
	}
	if listing.Status.Terminal() {
		return ErrListingNotActive
	}

	returned := cloneBigInt(listing.SharesRemaining)
	now := e.now()
	listing.SharesRemaining = big.NewInt(0)
	listing.Status = ListingCancelled
	listing.UpdatedAt = now
	if err := e.state.ListingPut(listing); err != nil {
		return err
	}
	if returned.Sign() > 0 {
		if err := e.shares.Transfer(EscrowAddress(), listing.Seller, listing.AssetID, returned); err != nil {
			return err
		}
	}
	e.emit(events.MarketCancelled{
		ListingID:      listingID,
		AssetID:        listing.AssetID,
		Seller:         listing.Seller,
		SharesReturned: returned,
		Timestamp:      now,
	})
	return nil
}

// SetFeePolicy updates the marketplace fee split. Only callers holding
// ROLE_MARKET_ADMIN may change it, and the rate is bounded by MaxFeeBps.
func (e *Engine) SetFeePolicy(caller [20]byte, feeBps uint32, recipient [20]byte) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if e == nil || e.state == nil {
		return errNilState
	}
	if !e.state.HasRole(roleMarketAdmin, caller[:]) {
		return ErrUnauthorized
	}
	if feeBps > MaxFeeBps {
		return ErrFeeTooHigh
	}
	if feeBps > 0 && recipient == zeroAddress {
		return ErrInvalidRecipient
	}
	policy := &FeePolicy{FeeBps: feeBps, Recipient: recipient}
	if err := e.state.SetMarketFeePolicy(policy); err != nil {
		return err
	}
	e.emit(events.MarketFeeUpdated{
		FeeBps:       feeBps,
		FeeRecipient: recipient,
		Timestamp:    e.now(),
	})
	return nil
}

// GetListing returns a copy of the listing stored under the provided id.
func (e *Engine) GetListing(listingID uint64) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	listing, ok := e.state.ListingGet(listingID)
	if !ok {
		return nil, ErrListingNotFound
	}
	return listing, nil
}

// FeePolicy returns the currently configured fee split.
func (e *Engine) FeePolicy() (*FeePolicy, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.MarketFeePolicy()
}
