package assets

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"landledger/core/events"
	nativecommon "landledger/native/common"
)

type mockState struct {
	assets   map[uint64]*Asset
	symbols  map[string]uint64
	holdings map[string]*big.Int
	roles    map[string]map[[20]byte]bool
	nextID   uint64
}

func newMockState() *mockState {
	return &mockState{
		assets:   make(map[uint64]*Asset),
		symbols:  make(map[string]uint64),
		holdings: make(map[string]*big.Int),
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
	m.nextID++
	return m.nextID, nil
}

func (m *mockState) AssetPut(a *Asset) error {
	if a == nil {
		return fmt.Errorf("nil asset")
	}
	m.assets[a.ID] = a.Clone()
	if a.Symbol != "" {
		m.symbols[a.Symbol] = a.ID
	}
	return nil
}

func (m *mockState) AssetGet(id uint64) (*Asset, bool) {
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

func newTestEngine(state *mockState) *Engine {
	engine := NewEngine()
	engine.SetState(state)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	return engine
}

func TestRegisterAssignsSequentialIDs(t *testing.T) {
	state := newMockState()
	admin := newTestAddress(0x01)
	state.grantRole("ROLE_ASSET_ADMIN", admin)
	engine := newTestEngine(state)
	emitter := &capturingEmitter{}
	engine.SetEmitter(emitter)

	first, err := engine.Register(admin, "oak-01", "Oak Street Duplex", big.NewInt(1000), "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if first.ID != 1 {
		t.Fatalf("expected first asset id 1, got %d", first.ID)
	}
	if first.Symbol != "OAK-01" {
		t.Fatalf("expected normalized symbol OAK-01, got %q", first.Symbol)
	}
	if !first.Active || first.Verified {
		t.Fatalf("expected new asset active and unverified, got active=%t verified=%t", first.Active, first.Verified)
	}

	second, err := engine.Register(admin, "PINE-02", "Pine Avenue Lofts", big.NewInt(500), "ipfs://pine")
	if err != nil {
		t.Fatalf("Register second: %v", err)
	}
	if second.ID != 2 {
		t.Fatalf("expected second asset id 2, got %d", second.ID)
	}

	if len(emitter.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(emitter.events))
	}
	if emitter.events[0].EventType() != events.TypeAssetRegistered {
		t.Fatalf("unexpected event type %q", emitter.events[0].EventType())
	}
}

func TestRegisterValidation(t *testing.T) {
	state := newMockState()
	admin := newTestAddress(0x01)
	outsider := newTestAddress(0x02)
	state.grantRole("ROLE_ASSET_ADMIN", admin)
	engine := newTestEngine(state)

	if _, err := engine.Register(admin, "OAK-01", "Oak Street Duplex", big.NewInt(1000), ""); err != nil {
		t.Fatalf("Register: %v", err)
	}

	cases := []struct {
		name      string
		caller    [20]byte
		symbol    string
		assetName string
		maxShares *big.Int
		wantErr   error
	}{
		{"missing role", outsider, "ELM-03", "Elm Court", big.NewInt(100), ErrUnauthorized},
		{"duplicate symbol", admin, "oak-01", "Oak Clone", big.NewInt(100), ErrSymbolTaken},
		{"empty symbol", admin, "   ", "Nameless", big.NewInt(100), ErrInvalidSymbol},
		{"symbol charset", admin, "OAK_01", "Underscore", big.NewInt(100), ErrInvalidSymbol},
		{"empty name", admin, "ELM-03", "  ", big.NewInt(100), ErrInvalidName},
		{"nil max shares", admin, "ELM-03", "Elm Court", nil, ErrInvalidMaxShares},
		{"zero max shares", admin, "ELM-03", "Elm Court", big.NewInt(0), ErrInvalidMaxShares},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := engine.Register(tc.caller, tc.symbol, tc.assetName, tc.maxShares, ""); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestMintRespectsCapacity(t *testing.T) {
	state := newMockState()
	admin := newTestAddress(0x01)
	holder := newTestAddress(0x02)
	state.grantRole("ROLE_ASSET_ADMIN", admin)
	engine := newTestEngine(state)

	asset, err := engine.Register(admin, "OAK-01", "Oak Street Duplex", big.NewInt(1000), "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := engine.Mint(admin, asset.ID, holder, big.NewInt(600)); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	balance, err := engine.BalanceOf(holder, asset.ID)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if balance.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("expected balance 600, got %s", balance)
	}
	stored, _ := state.AssetGet(asset.ID)
	if stored.IssuedShares.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("expected issued 600, got %s", stored.IssuedShares)
	}

	cases := []struct {
		name    string
		caller  [20]byte
		assetID uint64
		amount  *big.Int
		wantErr error
	}{
		{"missing role", holder, asset.ID, big.NewInt(1), ErrUnauthorized},
		{"nil amount", admin, asset.ID, nil, ErrInvalidAmount},
		{"zero amount", admin, asset.ID, big.NewInt(0), ErrInvalidAmount},
		{"negative amount", admin, asset.ID, big.NewInt(-5), ErrInvalidAmount},
		{"unknown asset", admin, 99, big.NewInt(1), ErrAssetNotFound},
		{"capacity exceeded", admin, asset.ID, big.NewInt(401), ErrCapacityExceeded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := engine.Mint(tc.caller, tc.assetID, holder, tc.amount); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}

	// Minting exactly up to the ceiling is allowed.
	if err := engine.Mint(admin, asset.ID, holder, big.NewInt(400)); err != nil {
		t.Fatalf("Mint to ceiling: %v", err)
	}
	if err := engine.Mint(admin, asset.ID, holder, big.NewInt(1)); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
}

func TestTransferMovesShares(t *testing.T) {
	state := newMockState()
	admin := newTestAddress(0x01)
	from := newTestAddress(0x02)
	to := newTestAddress(0x03)
	state.grantRole("ROLE_ASSET_ADMIN", admin)
	engine := newTestEngine(state)
	emitter := &capturingEmitter{}
	engine.SetEmitter(emitter)

	asset, err := engine.Register(admin, "OAK-01", "Oak Street Duplex", big.NewInt(1000), "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := engine.Mint(admin, asset.ID, from, big.NewInt(500)); err != nil {
		t.Fatalf("Mint: %v", err)
	}

	if err := engine.Transfer(from, to, asset.ID, big.NewInt(200)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	fromBalance, _ := engine.BalanceOf(from, asset.ID)
	toBalance, _ := engine.BalanceOf(to, asset.ID)
	if fromBalance.Cmp(big.NewInt(300)) != 0 || toBalance.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("unexpected balances after transfer: from=%s to=%s", fromBalance, toBalance)
	}
	sum := new(big.Int).Add(fromBalance, toBalance)
	if sum.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("balance sum changed across transfer: %s", sum)
	}

	cases := []struct {
		name    string
		from    [20]byte
		to      [20]byte
		amount  *big.Int
		wantErr error
	}{
		{"zero amount", from, to, big.NewInt(0), ErrInvalidAmount},
		{"self transfer", from, from, big.NewInt(10), ErrInvalidAmount},
		{"insufficient", from, to, big.NewInt(301), ErrInsufficientShares},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := engine.Transfer(tc.from, tc.to, asset.ID, tc.amount); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}

	if err := engine.Transfer(from, to, 77, big.NewInt(1)); !errors.Is(err, ErrAssetNotFound) {
		t.Fatalf("expected ErrAssetNotFound, got %v", err)
	}

	var sawTransfer bool
	for _, evt := range emitter.events {
		if evt.EventType() == events.TypeSharesTransferred {
			sawTransfer = true
		}
	}
	if !sawTransfer {
		t.Fatalf("expected a transfer event")
	}
}

func TestPauseBlocksMutations(t *testing.T) {
	state := newMockState()
	admin := newTestAddress(0x01)
	holder := newTestAddress(0x02)
	state.grantRole("ROLE_ASSET_ADMIN", admin)
	engine := newTestEngine(state)

	asset, err := engine.Register(admin, "OAK-01", "Oak Street Duplex", big.NewInt(1000), "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := engine.Mint(admin, asset.ID, holder, big.NewInt(100)); err != nil {
		t.Fatalf("Mint: %v", err)
	}

	engine.SetPauses(pauseViewStub{paused: map[string]bool{"assets": true}})

	if _, err := engine.Register(admin, "ELM-02", "Elm Court", big.NewInt(10), ""); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if err := engine.Mint(admin, asset.ID, holder, big.NewInt(1)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if err := engine.Transfer(holder, admin, asset.ID, big.NewInt(1)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}

	// Reads stay available while paused.
	if _, err := engine.BalanceOf(holder, asset.ID); err != nil {
		t.Fatalf("BalanceOf while paused: %v", err)
	}
	if _, err := engine.Get(asset.ID); err != nil {
		t.Fatalf("Get while paused: %v", err)
	}
}

func TestFreezeBlocksMutations(t *testing.T) {
	state := newMockState()
	admin := newTestAddress(0x01)
	holder := newTestAddress(0x02)
	other := newTestAddress(0x03)
	state.grantRole("ROLE_ASSET_ADMIN", admin)
	engine := newTestEngine(state)
	emitter := &capturingEmitter{}
	engine.SetEmitter(emitter)

	asset, err := engine.Register(admin, "OAK-01", "Oak Street Duplex", big.NewInt(1000), "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := engine.Mint(admin, asset.ID, holder, big.NewInt(100)); err != nil {
		t.Fatalf("Mint: %v", err)
	}

	if err := engine.Freeze(asset.ID, "share sum mismatch"); err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	if err := engine.Mint(admin, asset.ID, holder, big.NewInt(1)); !errors.Is(err, ErrAssetFrozen) {
		t.Fatalf("expected ErrAssetFrozen on mint, got %v", err)
	}
	if err := engine.Transfer(holder, other, asset.ID, big.NewInt(1)); !errors.Is(err, ErrAssetFrozen) {
		t.Fatalf("expected ErrAssetFrozen on transfer, got %v", err)
	}
	if err := engine.SetActive(admin, asset.ID, false); !errors.Is(err, ErrAssetFrozen) {
		t.Fatalf("expected ErrAssetFrozen on status change, got %v", err)
	}

	// Freezing twice stays silent.
	before := len(emitter.events)
	if err := engine.Freeze(asset.ID, "again"); err != nil {
		t.Fatalf("second Freeze: %v", err)
	}
	if len(emitter.events) != before {
		t.Fatalf("expected no event for repeated freeze")
	}

	if err := engine.Unfreeze(other, asset.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := engine.Unfreeze(admin, asset.ID); err != nil {
		t.Fatalf("Unfreeze: %v", err)
	}
	if err := engine.Transfer(holder, other, asset.ID, big.NewInt(1)); err != nil {
		t.Fatalf("Transfer after unfreeze: %v", err)
	}
}

func TestBalanceOfUnknownAsset(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	if _, err := engine.BalanceOf(newTestAddress(0x01), 42); !errors.Is(err, ErrAssetNotFound) {
		t.Fatalf("expected ErrAssetNotFound, got %v", err)
	}
}

func TestStatusTogglesGateTrading(t *testing.T) {
	state := newMockState()
	admin := newTestAddress(0x01)
	state.grantRole("ROLE_ASSET_ADMIN", admin)
	engine := newTestEngine(state)

	asset, err := engine.Register(admin, "OAK-01", "Oak Street Duplex", big.NewInt(1000), "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if asset.Tradable() {
		t.Fatalf("expected unverified asset to be untradable")
	}
	if err := engine.SetVerified(admin, asset.ID, true); err != nil {
		t.Fatalf("SetVerified: %v", err)
	}
	updated, err := engine.Get(asset.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !updated.Tradable() {
		t.Fatalf("expected active+verified asset to be tradable")
	}
	if err := engine.SetActive(admin, asset.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	updated, _ = engine.Get(asset.ID)
	if updated.Tradable() {
		t.Fatalf("expected inactive asset to be untradable")
	}
}
