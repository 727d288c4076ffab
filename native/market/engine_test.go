package market

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"landledger/core/events"
	"landledger/core/types"
	"landledger/native/assets"
	nativecommon "landledger/native/common"
)

// mockState backs both the marketplace engine and the share ledger engine so
// tests wire them together exactly like the node does.
type mockState struct {
	assets    map[uint64]*assets.Asset
	symbols   map[string]uint64
	holdings  map[string]*big.Int
	listings  map[uint64]*Listing
	accounts  map[[20]byte]*types.Account
	roles     map[string]map[[20]byte]bool
	feePolicy *FeePolicy
	nextAsset uint64
	nextList  uint64
}

func newMockState() *mockState {
	return &mockState{
		assets:   make(map[uint64]*assets.Asset),
		symbols:  make(map[string]uint64),
		holdings: make(map[string]*big.Int),
		listings: make(map[uint64]*Listing),
		accounts: make(map[[20]byte]*types.Account),
		roles:    make(map[string]map[[20]byte]bool),
	}
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func holdingMapKey(assetID uint64, holder [20]byte) string {
	return fmt.Sprintf("%d:%x", assetID, holder)
}

func (m *mockState) AssetsNextID() (uint64, error) {
	m.nextAsset++
	return m.nextAsset, nil
}

func (m *mockState) AssetPut(a *assets.Asset) error {
	if a == nil {
		return fmt.Errorf("nil asset")
	}
	m.assets[a.ID] = a.Clone()
	if a.Symbol != "" {
		m.symbols[a.Symbol] = a.ID
	}
	return nil
}

func (m *mockState) AssetGet(id uint64) (*assets.Asset, bool) {
	asset, ok := m.assets[id]
	if !ok {
		return nil, false
	}
	return asset.Clone(), true
}

func (m *mockState) AssetIDBySymbol(symbol string) (uint64, bool) {
	id, ok := m.symbols[symbol]
	return id, ok
}

func (m *mockState) HoldingGet(assetID uint64, holder [20]byte) (*big.Int, error) {
	balance, ok := m.holdings[holdingMapKey(assetID, holder)]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(balance), nil
}

func (m *mockState) HoldingSet(assetID uint64, holder [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid holding amount")
	}
	m.holdings[holdingMapKey(assetID, holder)] = new(big.Int).Set(amount)
	return nil
}

func (m *mockState) ListingsNextID() (uint64, error) {
	m.nextList++
	return m.nextList, nil
}

func (m *mockState) ListingPut(l *Listing) error {
	if l == nil {
		return fmt.Errorf("nil listing")
	}
	m.listings[l.ID] = l.Clone()
	return nil
}

func (m *mockState) ListingGet(id uint64) (*Listing, bool) {
	listing, ok := m.listings[id]
	if !ok {
		return nil, false
	}
	return listing.Clone(), true
}

func (m *mockState) MarketFeePolicy() (*FeePolicy, error) {
	if m.feePolicy == nil {
		return &FeePolicy{}, nil
	}
	policy := *m.feePolicy
	return &policy, nil
}

func (m *mockState) SetMarketFeePolicy(policy *FeePolicy) error {
	if policy == nil {
		return fmt.Errorf("nil fee policy")
	}
	cloned := *policy
	m.feePolicy = &cloned
	return nil
}

func (m *mockState) GetAccount(addr []byte) (*types.Account, error) {
	var key [20]byte
	copy(key[:], addr)
	acc, ok := m.accounts[key]
	if !ok {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	return acc.Clone(), nil
}

func (m *mockState) PutAccount(addr []byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("nil account")
	}
	var key [20]byte
	copy(key[:], addr)
	m.accounts[key] = account.Clone()
	return nil
}

func (m *mockState) HasRole(role string, addr []byte) bool {
	members, ok := m.roles[role]
	if !ok {
		return false
	}
	var key [20]byte
	copy(key[:], addr)
	return members[key]
}

func (m *mockState) grantRole(role string, addr [20]byte) {
	if m.roles[role] == nil {
		m.roles[role] = make(map[[20]byte]bool)
	}
	m.roles[role][addr] = true
}

func (m *mockState) setFunds(addr [20]byte, amount int64) {
	m.accounts[addr] = &types.Account{Balance: big.NewInt(amount)}
}

func (m *mockState) funds(addr [20]byte) *big.Int {
	acc, ok := m.accounts[addr]
	if !ok || acc.Balance == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(acc.Balance)
}

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(evt events.Event) {
	c.events = append(c.events, evt)
}

type pauseViewStub struct {
	paused map[string]bool
}

func (s pauseViewStub) IsPaused(module string) bool {
	return s.paused[module]
}

type fixture struct {
	state   *mockState
	shares  *assets.Engine
	engine  *Engine
	emitter *capturingEmitter
	admin   [20]byte
	seller  [20]byte
	buyer   [20]byte
	assetID uint64
}

// newFixture registers a verified asset with 1000 shares minted to the seller.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	state := newMockState()
	admin := newTestAddress(0x01)
	seller := newTestAddress(0x02)
	buyer := newTestAddress(0x03)
	state.grantRole("ROLE_ASSET_ADMIN", admin)
	state.grantRole("ROLE_MARKET_ADMIN", admin)

	shares := assets.NewEngine()
	shares.SetState(state)
	shares.SetNowFunc(func() int64 { return 1_700_000_000 })

	asset, err := shares.Register(admin, "OAK-01", "Oak Street Duplex", big.NewInt(1000), "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := shares.SetVerified(admin, asset.ID, true); err != nil {
		t.Fatalf("SetVerified: %v", err)
	}
	if err := shares.Mint(admin, asset.ID, seller, big.NewInt(1000)); err != nil {
		t.Fatalf("Mint: %v", err)
	}

	emitter := &capturingEmitter{}
	engine := NewEngine()
	engine.SetState(state)
	engine.SetShares(shares)
	engine.SetEmitter(emitter)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })

	return &fixture{
		state:   state,
		shares:  shares,
		engine:  engine,
		emitter: emitter,
		admin:   admin,
		seller:  seller,
		buyer:   buyer,
		assetID: asset.ID,
	}
}

func TestListEscrowsShares(t *testing.T) {
	fx := newFixture(t)

	id, err := fx.engine.List(fx.seller, fx.assetID, big.NewInt(400), big.NewInt(10))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected listing id 1, got %d", id)
	}

	sellerBalance, _ := fx.shares.BalanceOf(fx.seller, fx.assetID)
	escrowBalance, _ := fx.shares.BalanceOf(EscrowAddress(), fx.assetID)
	if sellerBalance.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("expected seller balance 600, got %s", sellerBalance)
	}
	if escrowBalance.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("expected escrow balance 400, got %s", escrowBalance)
	}

	listing, err := fx.engine.GetListing(id)
	if err != nil {
		t.Fatalf("GetListing: %v", err)
	}
	if listing.Status != ListingActive {
		t.Fatalf("expected active listing, got %v", listing.Status)
	}
	if listing.SharesRemaining.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("expected 400 remaining, got %s", listing.SharesRemaining)
	}

	var sawListed bool
	for _, evt := range fx.emitter.events {
		if evt.EventType() == events.TypeMarketListed {
			sawListed = true
		}
	}
	if !sawListed {
		t.Fatalf("expected a listed event")
	}
}

func TestListValidation(t *testing.T) {
	fx := newFixture(t)

	cases := []struct {
		name    string
		assetID uint64
		shares  *big.Int
		price   *big.Int
		wantErr error
	}{
		{"zero shares", fx.assetID, big.NewInt(0), big.NewInt(10), ErrInvalidAmount},
		{"nil shares", fx.assetID, nil, big.NewInt(10), ErrInvalidAmount},
		{"zero price", fx.assetID, big.NewInt(10), big.NewInt(0), ErrInvalidPrice},
		{"insufficient", fx.assetID, big.NewInt(1001), big.NewInt(10), ErrInsufficientShares},
		{"unknown asset", 99, big.NewInt(10), big.NewInt(10), assets.ErrAssetNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := fx.engine.List(fx.seller, tc.assetID, tc.shares, tc.price); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}

	// Unverified assets cannot trade.
	if err := fx.shares.SetVerified(fx.admin, fx.assetID, false); err != nil {
		t.Fatalf("SetVerified: %v", err)
	}
	if _, err := fx.engine.List(fx.seller, fx.assetID, big.NewInt(10), big.NewInt(10)); !errors.Is(err, ErrAssetNotTradable) {
		t.Fatalf("expected ErrAssetNotTradable, got %v", err)
	}
}

func TestBuyPartialFillSettlement(t *testing.T) {
	fx := newFixture(t)
	feeRecipient := newTestAddress(0x0F)
	if err := fx.engine.SetFeePolicy(fx.admin, 250, feeRecipient); err != nil {
		t.Fatalf("SetFeePolicy: %v", err)
	}
	fx.state.setFunds(fx.buyer, 5000)

	id, err := fx.engine.List(fx.seller, fx.assetID, big.NewInt(400), big.NewInt(10))
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	fill, err := fx.engine.Buy(fx.buyer, id, big.NewInt(250), big.NewInt(2500))
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if fill.TotalPrice.Cmp(big.NewInt(2500)) != 0 {
		t.Fatalf("expected total 2500, got %s", fill.TotalPrice)
	}
	// 2.5% of 2500 is 62.5; integer division floors to 62 and the seller
	// receives the remainder so the gross conserves exactly.
	if fill.Fee.Cmp(big.NewInt(62)) != 0 {
		t.Fatalf("expected fee 62, got %s", fill.Fee)
	}
	if fill.SellerProceeds.Cmp(big.NewInt(2438)) != 0 {
		t.Fatalf("expected proceeds 2438, got %s", fill.SellerProceeds)
	}
	split := new(big.Int).Add(fill.Fee, fill.SellerProceeds)
	if split.Cmp(fill.TotalPrice) != 0 {
		t.Fatalf("fee split does not conserve total: %s != %s", split, fill.TotalPrice)
	}
	if fill.Filled {
		t.Fatalf("expected partial fill")
	}
	if fill.SharesRemaining.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("expected 150 remaining, got %s", fill.SharesRemaining)
	}

	buyerShares, _ := fx.shares.BalanceOf(fx.buyer, fx.assetID)
	escrowShares, _ := fx.shares.BalanceOf(EscrowAddress(), fx.assetID)
	if buyerShares.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("expected buyer shares 250, got %s", buyerShares)
	}
	if escrowShares.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("expected escrow shares 150, got %s", escrowShares)
	}

	if got := fx.state.funds(fx.buyer); got.Cmp(big.NewInt(2500)) != 0 {
		t.Fatalf("expected buyer funds 2500, got %s", got)
	}
	if got := fx.state.funds(fx.seller); got.Cmp(big.NewInt(2438)) != 0 {
		t.Fatalf("expected seller funds 2438, got %s", got)
	}
	if got := fx.state.funds(feeRecipient); got.Cmp(big.NewInt(62)) != 0 {
		t.Fatalf("expected fee recipient funds 62, got %s", got)
	}

	listing, _ := fx.engine.GetListing(id)
	if listing.Status != ListingPartiallyFilled {
		t.Fatalf("expected partially filled status, got %v", listing.Status)
	}
}

func TestBuyRefundsExcess(t *testing.T) {
	fx := newFixture(t)
	fx.state.setFunds(fx.buyer, 5000)

	id, err := fx.engine.List(fx.seller, fx.assetID, big.NewInt(100), big.NewInt(10))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	fill, err := fx.engine.Buy(fx.buyer, id, big.NewInt(50), big.NewInt(800))
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if fill.Refund.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("expected refund 300, got %s", fill.Refund)
	}
	// Net of the refund the buyer only paid the total price.
	if got := fx.state.funds(fx.buyer); got.Cmp(big.NewInt(4500)) != 0 {
		t.Fatalf("expected buyer funds 4500, got %s", got)
	}
}

func TestBuyFillsListing(t *testing.T) {
	fx := newFixture(t)
	fx.state.setFunds(fx.buyer, 5000)

	id, err := fx.engine.List(fx.seller, fx.assetID, big.NewInt(100), big.NewInt(10))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	fill, err := fx.engine.Buy(fx.buyer, id, big.NewInt(100), big.NewInt(1000))
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if !fill.Filled {
		t.Fatalf("expected listing to fill")
	}
	listing, _ := fx.engine.GetListing(id)
	if listing.Status != ListingFilled {
		t.Fatalf("expected filled status, got %v", listing.Status)
	}
	if _, err := fx.engine.Buy(fx.buyer, id, big.NewInt(1), big.NewInt(10)); !errors.Is(err, ErrListingNotActive) {
		t.Fatalf("expected ErrListingNotActive, got %v", err)
	}
}

func TestBuyValidation(t *testing.T) {
	fx := newFixture(t)
	fx.state.setFunds(fx.buyer, 100)
	fx.state.setFunds(fx.seller, 100)

	id, err := fx.engine.List(fx.seller, fx.assetID, big.NewInt(100), big.NewInt(10))
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	cases := []struct {
		name    string
		buyer   [20]byte
		listing uint64
		shares  *big.Int
		offered *big.Int
		wantErr error
	}{
		{"unknown listing", fx.buyer, 99, big.NewInt(1), big.NewInt(10), ErrListingNotFound},
		{"zero shares", fx.buyer, id, big.NewInt(0), big.NewInt(10), ErrInvalidAmount},
		{"over remaining", fx.buyer, id, big.NewInt(101), big.NewInt(2000), ErrInvalidAmount},
		{"self trade", fx.seller, id, big.NewInt(1), big.NewInt(10), ErrSelfTrade},
		{"offer below price", fx.buyer, id, big.NewInt(5), big.NewInt(49), ErrInsufficientFunds},
		{"funds below offer", fx.buyer, id, big.NewInt(10), big.NewInt(101), ErrInsufficientFunds},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := fx.engine.Buy(tc.buyer, tc.listing, tc.shares, tc.offered); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}

	// Failed buys leave balances untouched.
	if got := fx.state.funds(fx.buyer); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected buyer funds unchanged, got %s", got)
	}
	escrowShares, _ := fx.shares.BalanceOf(EscrowAddress(), fx.assetID)
	if escrowShares.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected escrow unchanged, got %s", escrowShares)
	}
}

func TestCancelReturnsExactEscrow(t *testing.T) {
	fx := newFixture(t)
	before, _ := fx.shares.BalanceOf(fx.seller, fx.assetID)

	id, err := fx.engine.List(fx.seller, fx.assetID, big.NewInt(100), big.NewInt(10))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if err := fx.engine.Cancel(fx.buyer, id); !errors.Is(err, ErrNotSeller) {
		t.Fatalf("expected ErrNotSeller, got %v", err)
	}
	if err := fx.engine.Cancel(fx.seller, id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	after, _ := fx.shares.BalanceOf(fx.seller, fx.assetID)
	if after.Cmp(before) != 0 {
		t.Fatalf("expected seller balance restored to %s, got %s", before, after)
	}
	escrowShares, _ := fx.shares.BalanceOf(EscrowAddress(), fx.assetID)
	if escrowShares.Sign() != 0 {
		t.Fatalf("expected empty escrow, got %s", escrowShares)
	}
	listing, _ := fx.engine.GetListing(id)
	if listing.Status != ListingCancelled {
		t.Fatalf("expected cancelled status, got %v", listing.Status)
	}
	if err := fx.engine.Cancel(fx.seller, id); !errors.Is(err, ErrListingNotActive) {
		t.Fatalf("expected ErrListingNotActive, got %v", err)
	}
}

func TestCancelAfterPartialFill(t *testing.T) {
	fx := newFixture(t)
	fx.state.setFunds(fx.buyer, 5000)

	id, err := fx.engine.List(fx.seller, fx.assetID, big.NewInt(100), big.NewInt(10))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if _, err := fx.engine.Buy(fx.buyer, id, big.NewInt(30), big.NewInt(300)); err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if err := fx.engine.Cancel(fx.seller, id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	sellerShares, _ := fx.shares.BalanceOf(fx.seller, fx.assetID)
	if sellerShares.Cmp(big.NewInt(970)) != 0 {
		t.Fatalf("expected seller shares 970, got %s", sellerShares)
	}
	escrowShares, _ := fx.shares.BalanceOf(EscrowAddress(), fx.assetID)
	if escrowShares.Sign() != 0 {
		t.Fatalf("expected empty escrow, got %s", escrowShares)
	}
}

func TestSetFeePolicyBounds(t *testing.T) {
	fx := newFixture(t)
	recipient := newTestAddress(0x0F)

	if err := fx.engine.SetFeePolicy(fx.buyer, 100, recipient); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := fx.engine.SetFeePolicy(fx.admin, MaxFeeBps+1, recipient); !errors.Is(err, ErrFeeTooHigh) {
		t.Fatalf("expected ErrFeeTooHigh, got %v", err)
	}
	var zero [20]byte
	if err := fx.engine.SetFeePolicy(fx.admin, 100, zero); !errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("expected ErrInvalidRecipient, got %v", err)
	}
	if err := fx.engine.SetFeePolicy(fx.admin, MaxFeeBps, recipient); err != nil {
		t.Fatalf("SetFeePolicy at bound: %v", err)
	}
	policy, err := fx.engine.FeePolicy()
	if err != nil {
		t.Fatalf("FeePolicy: %v", err)
	}
	if policy.FeeBps != MaxFeeBps || policy.Recipient != recipient {
		t.Fatalf("unexpected policy %+v", policy)
	}
}

func TestPauseBlocksMarket(t *testing.T) {
	fx := newFixture(t)
	fx.state.setFunds(fx.buyer, 1000)
	id, err := fx.engine.List(fx.seller, fx.assetID, big.NewInt(100), big.NewInt(10))
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	fx.engine.SetPauses(pauseViewStub{paused: map[string]bool{"market": true}})

	if _, err := fx.engine.List(fx.seller, fx.assetID, big.NewInt(10), big.NewInt(10)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused on list, got %v", err)
	}
	if _, err := fx.engine.Buy(fx.buyer, id, big.NewInt(1), big.NewInt(10)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused on buy, got %v", err)
	}
	if err := fx.engine.Cancel(fx.seller, id); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused on cancel, got %v", err)
	}
	if _, err := fx.engine.GetListing(id); err != nil {
		t.Fatalf("GetListing while paused: %v", err)
	}
}

func TestBuyFailsFastWhenShareLedgerPaused(t *testing.T) {
	fx := newFixture(t)
	fx.state.setFunds(fx.buyer, 2500)
	id, err := fx.engine.List(fx.seller, fx.assetID, big.NewInt(400), big.NewInt(10))
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	// Pause only the share ledger; the market toggle stays clear.
	paused := pauseViewStub{paused: map[string]bool{assets.ModuleName: true}}
	fx.engine.SetPauses(paused)
	fx.shares.SetPauses(paused)

	if _, err := fx.engine.Buy(fx.buyer, id, big.NewInt(250), big.NewInt(2500)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}

	// The rejected buy must not leave a half-settled trade behind.
	if got := fx.state.funds(fx.buyer); got.Cmp(big.NewInt(2500)) != 0 {
		t.Fatalf("expected buyer funds untouched at 2500, got %s", got)
	}
	buyerShares, _ := fx.shares.BalanceOf(fx.buyer, fx.assetID)
	if buyerShares.Sign() != 0 {
		t.Fatalf("expected no shares delivered, got %s", buyerShares)
	}
	listing, _ := fx.engine.GetListing(id)
	if listing.Status != ListingActive {
		t.Fatalf("expected listing still active, got %v", listing.Status)
	}
	if listing.SharesRemaining.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("expected 400 remaining, got %s", listing.SharesRemaining)
	}

	if _, err := fx.engine.List(fx.seller, fx.assetID, big.NewInt(10), big.NewInt(10)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused on list, got %v", err)
	}
}

func TestCancelKeepsEscrowWhenShareLedgerPaused(t *testing.T) {
	fx := newFixture(t)
	id, err := fx.engine.List(fx.seller, fx.assetID, big.NewInt(100), big.NewInt(10))
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	paused := pauseViewStub{paused: map[string]bool{assets.ModuleName: true}}
	fx.engine.SetPauses(paused)
	fx.shares.SetPauses(paused)

	if err := fx.engine.Cancel(fx.seller, id); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}

	// The listing stays open and its escrow intact while shares cannot move.
	listing, _ := fx.engine.GetListing(id)
	if listing.Status != ListingActive {
		t.Fatalf("expected listing still active, got %v", listing.Status)
	}
	if listing.SharesRemaining.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected 100 remaining, got %s", listing.SharesRemaining)
	}
	escrowShares, _ := fx.shares.BalanceOf(EscrowAddress(), fx.assetID)
	if escrowShares.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected escrow intact at 100, got %s", escrowShares)
	}

	// Resuming lets the seller recover every escrowed share.
	fx.engine.SetPauses(pauseViewStub{})
	fx.shares.SetPauses(pauseViewStub{})
	if err := fx.engine.Cancel(fx.seller, id); err != nil {
		t.Fatalf("Cancel after resume: %v", err)
	}
	sellerShares, _ := fx.shares.BalanceOf(fx.seller, fx.assetID)
	if sellerShares.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("expected seller restored to 1000, got %s", sellerShares)
	}
	escrowShares, _ = fx.shares.BalanceOf(EscrowAddress(), fx.assetID)
	if escrowShares.Sign() != 0 {
		t.Fatalf("expected empty escrow, got %s", escrowShares)
	}
}

func TestBuyGuardsReentrancy(t *testing.T) {
	fx := newFixture(t)
	fx.state.setFunds(fx.buyer, 1000)
	id, err := fx.engine.List(fx.seller, fx.assetID, big.NewInt(100), big.NewInt(10))
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	if err := fx.engine.lockListing(id); err != nil {
		t.Fatalf("lockListing: %v", err)
	}
	if _, err := fx.engine.Buy(fx.buyer, id, big.NewInt(1), big.NewInt(10)); !errors.Is(err, ErrReentrantCall) {
		t.Fatalf("expected ErrReentrantCall, got %v", err)
	}
	if err := fx.engine.Cancel(fx.seller, id); !errors.Is(err, ErrReentrantCall) {
		t.Fatalf("expected ErrReentrantCall on cancel, got %v", err)
	}
	fx.engine.unlockListing(id)
	if _, err := fx.engine.Buy(fx.buyer, id, big.NewInt(1), big.NewInt(10)); err != nil {
		t.Fatalf("Buy after unlock: %v", err)
	}
}
