package genesis

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"landledger/core/state"
	"landledger/crypto"
	"landledger/storage"
)

func testAddress(t *testing.T, b byte) ([20]byte, string) {
	t.Helper()
	var addr [20]byte
	addr[0] = b
	addr[19] = b
	return addr, crypto.MustNewAddress(crypto.LandPrefix, addr[:]).String()
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genesis.json")
	if err := os.WriteFile(path, []byte(`{"bogus": true}`), 0o600); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestValidateRejectsOversubscribedHoldings(t *testing.T) {
	_, holder := testAddress(t, 0x11)
	spec := &Spec{
		Assets: []AssetSpec{{
			Symbol:    "LND-1",
			Name:      "Test Property",
			MaxShares: "100",
			Holdings:  map[string]string{holder: "101"},
		}},
	}
	if err := spec.Validate(); err == nil {
		t.Fatal("expected oversubscribed holdings to fail validation")
	}
}

func TestValidateRejectsFeeWithoutRecipient(t *testing.T) {
	spec := &Spec{FeeBps: 100}
	if err := spec.Validate(); err == nil {
		t.Fatal("expected feeBps without recipient to fail validation")
	}
}

func TestApplyWritesInitialState(t *testing.T) {
	db := storage.NewMemDB()
	manager := state.NewManager(db)

	adminRaw, admin := testAddress(t, 0x01)
	holderRaw, holder := testAddress(t, 0x02)
	_, feeRecipient := testAddress(t, 0x03)

	spec := &Spec{
		GenesisTime: "2026-01-01T00:00:00Z",
		NetworkName: "land-test",
		Roles: map[string][]string{
			"ROLE_ASSET_ADMIN":  {admin},
			"ROLE_SYSTEM_ADMIN": {admin},
		},
		Alloc:        map[string]string{holder: "5000"},
		FeeBps:       250,
		FeeRecipient: feeRecipient,
		Assets: []AssetSpec{{
			Symbol:    "LND-1",
			Name:      "Harborview Lofts",
			MaxShares: "1000",
			Verified:  true,
			Holdings:  map[string]string{holder: "600"},
		}},
	}

	if err := Apply(spec, manager); err != nil {
		t.Fatalf("apply genesis: %v", err)
	}

	initialised, err := Initialised(manager)
	if err != nil {
		t.Fatalf("initialised: %v", err)
	}
	if !initialised {
		t.Fatal("expected state to be marked initialised")
	}

	if !manager.HasRole("ROLE_ASSET_ADMIN", adminRaw[:]) {
		t.Fatal("expected admin role assignment")
	}

	account, err := manager.GetAccount(holderRaw[:])
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.Balance.Cmp(big.NewInt(5000)) != 0 {
		t.Fatalf("unexpected alloc balance: %s", account.Balance)
	}

	asset, ok := manager.AssetGet(1)
	if !ok {
		t.Fatal("expected asset id 1")
	}
	if asset.Symbol != "LND-1" || !asset.Verified || !asset.Active {
		t.Fatalf("unexpected asset: %+v", asset)
	}
	if asset.IssuedShares.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("unexpected issued shares: %s", asset.IssuedShares)
	}
	if asset.CreatedAt == 0 {
		t.Fatal("expected genesis timestamp on asset")
	}

	balance, err := manager.HoldingGet(1, holderRaw)
	if err != nil {
		t.Fatalf("holding get: %v", err)
	}
	if balance.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("unexpected holding: %s", balance)
	}

	policy, err := manager.MarketFeePolicy()
	if err != nil {
		t.Fatalf("fee policy: %v", err)
	}
	if policy.FeeBps != 250 {
		t.Fatalf("unexpected fee bps: %d", policy.FeeBps)
	}
}

func TestResolveRequiresAutogenesisOptIn(t *testing.T) {
	var admin [20]byte
	admin[0] = 0x01
	if _, err := Resolve("", admin, false); err == nil {
		t.Fatal("expected resolve to fail without autogenesis")
	}
	spec, err := Resolve("", admin, true)
	if err != nil {
		t.Fatalf("resolve dev spec: %v", err)
	}
	if len(spec.Roles) != 4 {
		t.Fatalf("expected dev spec to grant all roles, got %d", len(spec.Roles))
	}
	if err := spec.Validate(); err != nil {
		t.Fatalf("dev spec invalid: %v", err)
	}
}
