package core

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"landledger/config"
	"landledger/core/events"
	"landledger/core/genesis"
	statepkg "landledger/core/state"
	"landledger/core/types"
	"landledger/native/assets"
	nativecommon "landledger/native/common"
	"landledger/native/market"
	"landledger/native/params"
	"landledger/native/revenue"
	"landledger/storage"
)

// Role names checked at administratively gated entry points. Role membership
// lives in state and is itself mutated only through RoleSystemAdmin.
const (
	RoleAssetAdmin  = "ROLE_ASSET_ADMIN"
	RoleMarketAdmin = "ROLE_MARKET_ADMIN"
	RoleTreasury    = "ROLE_TREASURY"
	RoleSystemAdmin = "ROLE_SYSTEM_ADMIN"
)

// KnownRoles enumerates every role the node manages.
var KnownRoles = []string{RoleAssetAdmin, RoleMarketAdmin, RoleTreasury, RoleSystemAdmin}

// KnownModules enumerates the pausable modules.
var KnownModules = []string{"assets", "market", "revenue"}

func knownRole(role string) bool {
	for _, r := range KnownRoles {
		if r == role {
			return true
		}
	}
	return false
}

func knownModule(module string) bool {
	for _, m := range KnownModules {
		if m == module {
			return true
		}
	}
	return false
}

// Node wires the share ledger, marketplace and revenue engines over one state
// manager and serializes every command under a single mutex, so each external
// call executes to completion as one atomic unit. After every mutation that
// touches share balances the node re-verifies the affected asset's
// conservation invariant and freezes the asset on a mismatch.
type Node struct {
	db      storage.Database
	state   *statepkg.Manager
	assets  *assets.Engine
	market  *market.Engine
	revenue *revenue.Engine
	params  *params.Store
	journal *Journal

	stateMu sync.Mutex
	pauses  config.Pauses
	quota   nativecommon.Quota
	usage   map[[20]byte]nativecommon.QuotaNow
	nowFn   func() int64
}

// journalEmitter adapts engine events onto the node journal.
type journalEmitter struct {
	journal *Journal
}

func (e journalEmitter) Emit(evt events.Event) {
	carrier, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		return
	}
	e.journal.Append(carrier.Event())
}

// NewNode opens the ledger on the provided database. When the state has never
// been initialised it applies the genesis spec at genesisPath, or a
// single-admin development genesis for adminAddr when no path is given and
// autogenesis is explicitly allowed.
func NewNode(db storage.Database, adminAddr [20]byte, genesisPath string, allowAutogenesis bool) (*Node, error) {
	manager := statepkg.NewManager(db)
	journal := NewJournal()
	emitter := journalEmitter{journal: journal}

	node := &Node{
		db:      db,
		state:   manager,
		assets:  assets.NewEngine(),
		market:  market.NewEngine(),
		revenue: revenue.NewEngine(),
		params:  params.NewStore(manager),
		journal: journal,
		usage:   make(map[[20]byte]nativecommon.QuotaNow),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
	node.assets.SetState(manager)
	node.assets.SetEmitter(emitter)
	node.assets.SetPauses(node)
	node.market.SetState(manager)
	node.market.SetShares(node.assets)
	node.market.SetEmitter(emitter)
	node.market.SetPauses(node)
	node.revenue.SetState(manager)
	node.revenue.SetShares(node.assets)
	node.revenue.SetEmitter(emitter)
	node.revenue.SetPauses(node)

	initialised, err := genesis.Initialised(manager)
	if err != nil {
		return nil, err
	}
	if !initialised {
		spec, err := genesis.Resolve(genesisPath, adminAddr, allowAutogenesis)
		if err != nil {
			return nil, err
		}
		if err := genesis.Apply(spec, manager); err != nil {
			return nil, fmt.Errorf("core: apply genesis: %w", err)
		}
	}

	pauses, err := node.params.Pauses()
	if err != nil {
		return nil, err
	}
	node.pauses = pauses
	policy, err := node.params.Revenue()
	if err != nil {
		return nil, err
	}
	node.revenue.SetMinDepositInterval(policy.MinDepositIntervalSeconds)
	quota, err := node.params.Quota()
	if err != nil {
		return nil, err
	}
	node.quota = nativecommon.Quota{
		MaxCommandsPerEpoch: quota.MaxCommandsPerEpoch,
		MaxFundsPerEpoch:    quota.MaxFundsPerEpoch,
		EpochSeconds:        quota.EpochSeconds,
	}
	return node, nil
}

// ConfigurePolicies seeds the parameter store from the boot configuration.
// Values already persisted in state (set through administrative RPC) win over
// the configuration file.
func (n *Node) ConfigurePolicies(pauses config.Pauses, policy config.RevenuePolicy, quota config.Quota) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if _, ok, err := n.state.ParamStoreGet(params.ParamsKeyPauses); err != nil {
		return err
	} else if !ok {
		if err := n.params.SetPauses(pauses); err != nil {
			return err
		}
		n.pauses = pauses
	}
	if _, ok, err := n.state.ParamStoreGet(params.ParamsKeyRevenue); err != nil {
		return err
	} else if !ok {
		if err := n.params.SetRevenue(policy); err != nil {
			return err
		}
		n.revenue.SetMinDepositInterval(policy.MinDepositIntervalSeconds)
	}
	if _, ok, err := n.state.ParamStoreGet(params.ParamsKeyQuota); err != nil {
		return err
	} else if !ok {
		if err := n.params.SetQuota(quota); err != nil {
			return err
		}
		n.quota = nativecommon.Quota{
			MaxCommandsPerEpoch: quota.MaxCommandsPerEpoch,
			MaxFundsPerEpoch:    quota.MaxFundsPerEpoch,
			EpochSeconds:        quota.EpochSeconds,
		}
	}
	return nil
}

// SetNowFunc overrides the node clock, cascading to every engine. Intended
// for tests.
func (n *Node) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	n.nowFn = now
	n.assets.SetNowFunc(now)
	n.market.SetNowFunc(now)
	n.revenue.SetNowFunc(now)
}

// IsPaused implements the pause view consulted by the engines. It reads the
// node's cached toggle, which is only mutated under the command mutex.
func (n *Node) IsPaused(module string) bool {
	return n.pauses.IsPaused(module)
}

// Journal exposes the event journal for archive and stream consumers.
func (n *Node) Journal() *Journal { return n.journal }

// Events returns committed events after the cursor, oldest first.
func (n *Node) Events(cursor uint64, limit int) []EventRecord {
	return n.journal.EventsSince(cursor, limit)
}

// SubscribeEvents registers a live event stream resuming after the cursor.
func (n *Node) SubscribeEvents(ctx context.Context, cursor uint64) (<-chan EventRecord, func(), []EventRecord) {
	return n.journal.Subscribe(ctx, cursor)
}

// checkQuota enforces the per-address command quota. Funds-denominated usage
// saturates at the uint64 ceiling so oversized big.Int amounts still count
// against the cap.
func (n *Node) checkQuota(caller [20]byte, funds *big.Int) error {
	if !n.quota.Enabled() {
		return nil
	}
	var zero [20]byte
	if caller == zero {
		return nil
	}
	epoch := uint64(n.nowFn()) / uint64(n.quota.EpochSeconds)
	var addFunds uint64
	if funds != nil && funds.Sign() > 0 {
		if funds.IsUint64() {
			addFunds = funds.Uint64()
		} else {
			addFunds = ^uint64(0)
		}
	}
	next, err := nativecommon.CheckQuota(n.quota, epoch, n.usage[caller], 1, addFunds)
	if err != nil {
		return err
	}
	n.usage[caller] = next
	return nil
}

// verifyConservation recomputes the share sum for the asset and freezes it on
// a mismatch. It runs after every command that moved shares.
func (n *Node) verifyConservation(assetID uint64) error {
	asset, ok := n.state.AssetGet(assetID)
	if !ok {
		return nil
	}
	holders, err := n.state.HolderList(assetID)
	if err != nil {
		return err
	}
	sum := big.NewInt(0)
	for _, holder := range holders {
		balance, err := n.state.HoldingGet(assetID, holder)
		if err != nil {
			return err
		}
		sum.Add(sum, balance)
	}
	issued := asset.IssuedShares
	if issued == nil {
		issued = big.NewInt(0)
	}
	if sum.Cmp(issued) == 0 {
		return nil
	}
	if err := n.assets.Freeze(assetID, fmt.Sprintf("share sum %s != issued %s", sum, issued)); err != nil {
		return err
	}
	return ErrConservationBreach
}

// --- Share ledger commands ---

// RegisterAsset creates a new asset in the registry.
func (n *Node) RegisterAsset(caller [20]byte, symbol, name string, maxShares *big.Int, metadataURI string) (*assets.Asset, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if err := n.checkQuota(caller, nil); err != nil {
		return nil, err
	}
	return n.assets.Register(caller, symbol, name, maxShares, metadataURI)
}

// MintShares issues new shares to a holder.
func (n *Node) MintShares(caller [20]byte, assetID uint64, holder [20]byte, amount *big.Int) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if err := n.checkQuota(caller, nil); err != nil {
		return err
	}
	if err := n.assets.Mint(caller, assetID, holder, amount); err != nil {
		return err
	}
	return n.verifyConservation(assetID)
}

// TransferShares moves shares between holders.
func (n *Node) TransferShares(from, to [20]byte, assetID uint64, amount *big.Int) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if err := n.checkQuota(from, nil); err != nil {
		return err
	}
	if err := n.assets.Transfer(from, to, assetID, amount); err != nil {
		return err
	}
	return n.verifyConservation(assetID)
}

// ShareBalance returns a holder's share balance for one asset.
func (n *Node) ShareBalance(holder [20]byte, assetID uint64) (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.assets.BalanceOf(holder, assetID)
}

// GetAsset returns the asset stored under the id.
func (n *Node) GetAsset(assetID uint64) (*assets.Asset, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.assets.Get(assetID)
}

// ListAssets returns every registered asset in id order.
func (n *Node) ListAssets() ([]*assets.Asset, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	ids, err := n.state.AssetList()
	if err != nil {
		return nil, err
	}
	out := make([]*assets.Asset, 0, len(ids))
	for _, id := range ids {
		asset, err := n.assets.Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, asset)
	}
	return out, nil
}

// SetAssetActive toggles the trading-active flag.
func (n *Node) SetAssetActive(caller [20]byte, assetID uint64, active bool) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if err := n.checkQuota(caller, nil); err != nil {
		return err
	}
	return n.assets.SetActive(caller, assetID, active)
}

// SetAssetVerified toggles the verification flag.
func (n *Node) SetAssetVerified(caller [20]byte, assetID uint64, verified bool) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if err := n.checkQuota(caller, nil); err != nil {
		return err
	}
	return n.assets.SetVerified(caller, assetID, verified)
}

// UnfreezeAsset lifts a conservation freeze after administrative review.
func (n *Node) UnfreezeAsset(caller [20]byte, assetID uint64) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.assets.Unfreeze(caller, assetID)
}

// QuarantineAsset freezes an asset in response to an external consistency
// finding (the auditor uses this). The freeze event carries the reason.
func (n *Node) QuarantineAsset(assetID uint64, reason string) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.assets.Freeze(assetID, reason)
}

// --- Marketplace commands ---

// ListShares escrows shares and opens a listing.
func (n *Node) ListShares(seller [20]byte, assetID uint64, shares, pricePerShare *big.Int) (uint64, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if err := n.checkQuota(seller, nil); err != nil {
		return 0, err
	}
	id, err := n.market.List(seller, assetID, shares, pricePerShare)
	if err != nil {
		return 0, err
	}
	return id, n.verifyConservation(assetID)
}

// BuyShares fills a listing.
func (n *Node) BuyShares(buyer [20]byte, listingID uint64, shares, offeredFunds *big.Int) (*market.Fill, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if err := n.checkQuota(buyer, offeredFunds); err != nil {
		return nil, err
	}
	fill, err := n.market.Buy(buyer, listingID, shares, offeredFunds)
	if err != nil {
		return nil, err
	}
	return fill, n.verifyConservation(fill.AssetID)
}

// CancelListing returns escrowed shares to the seller.
func (n *Node) CancelListing(caller [20]byte, listingID uint64) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if err := n.checkQuota(caller, nil); err != nil {
		return err
	}
	listing, err := n.market.GetListing(listingID)
	if err != nil {
		return err
	}
	if err := n.market.Cancel(caller, listingID); err != nil {
		return err
	}
	return n.verifyConservation(listing.AssetID)
}

// GetListing returns the listing stored under the id.
func (n *Node) GetListing(listingID uint64) (*market.Listing, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.market.GetListing(listingID)
}

// OpenListings returns the ids of non-terminal listings for an asset.
func (n *Node) OpenListings(assetID uint64) ([]uint64, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.OpenListings(assetID)
}

// SetMarketFeePolicy updates the marketplace fee split.
func (n *Node) SetMarketFeePolicy(caller [20]byte, feeBps uint32, recipient [20]byte) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.market.SetFeePolicy(caller, feeBps, recipient)
}

// MarketFeePolicy returns the configured fee split.
func (n *Node) MarketFeePolicy() (*market.FeePolicy, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.market.FeePolicy()
}

// --- Revenue commands ---

// DepositRevenue folds revenue into an asset's pool.
func (n *Node) DepositRevenue(from [20]byte, assetID uint64, amount *big.Int) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if err := n.checkQuota(from, amount); err != nil {
		return err
	}
	return n.revenue.Deposit(from, assetID, amount)
}

// ClaimRevenue pays a holder their outstanding share of one pool.
func (n *Node) ClaimRevenue(holder [20]byte, assetID uint64) (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if err := n.checkQuota(holder, nil); err != nil {
		return nil, err
	}
	return n.revenue.Claim(holder, assetID)
}

// ClaimRevenueBatch claims across several pools with one payout.
func (n *Node) ClaimRevenueBatch(holder [20]byte, assetIDs []uint64) (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if err := n.checkQuota(holder, nil); err != nil {
		return nil, err
	}
	return n.revenue.ClaimBatch(holder, assetIDs)
}

// Claimable reports what a claim would pay without mutating anything.
func (n *Node) Claimable(holder [20]byte, assetID uint64) (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.revenue.GetClaimable(holder, assetID)
}

// RevenuePool returns the pool accounting for an asset.
func (n *Node) RevenuePool(assetID uint64) (*revenue.Pool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.revenue.GetPool(assetID)
}

// EmergencyWithdrawRevenue drains a pool's pending funds to the recipient.
func (n *Node) EmergencyWithdrawRevenue(caller [20]byte, assetID uint64, recipient [20]byte) (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.revenue.EmergencyWithdraw(caller, assetID, recipient)
}

// SetRevenuePolicy persists the revenue deposit policy and applies it to the
// running engine.
func (n *Node) SetRevenuePolicy(caller [20]byte, policy config.RevenuePolicy) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if !n.state.HasRole(RoleSystemAdmin, caller[:]) {
		return ErrUnauthorized
	}
	if policy.MinDepositIntervalSeconds < 0 {
		return ErrInvalidAmount
	}
	if err := n.params.SetRevenue(policy); err != nil {
		return err
	}
	n.revenue.SetMinDepositInterval(policy.MinDepositIntervalSeconds)
	return nil
}

// --- Funds (bank) commands ---

// FundsBalance returns the spendable funds account for an address.
func (n *Node) FundsBalance(addr [20]byte) (*types.Account, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	account, err := n.state.GetAccount(addr[:])
	if err != nil {
		return nil, err
	}
	return account.Clone(), nil
}

// TransferFunds moves spendable funds between accounts as an atomic
// debit+credit pair.
func (n *Node) TransferFunds(from, to [20]byte, amount *big.Int) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if err := n.checkQuota(from, amount); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 || from == to {
		return ErrInvalidAmount
	}
	sender, err := n.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	if sender.Balance == nil || sender.Balance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	receiver, err := n.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	sender.Balance = new(big.Int).Sub(sender.Balance, amount)
	sender.Nonce++
	if err := n.state.PutAccount(from[:], sender); err != nil {
		return err
	}
	if receiver.Balance == nil {
		receiver.Balance = big.NewInt(0)
	}
	receiver.Balance = new(big.Int).Add(receiver.Balance, amount)
	if err := n.state.PutAccount(to[:], receiver); err != nil {
		return err
	}
	n.journal.Append(events.FundsTransferred{
		From:      from,
		To:        to,
		Amount:    new(big.Int).Set(amount),
		Timestamp: n.nowFn(),
	}.Event())
	return nil
}

// MintFunds credits new spendable funds to an account. This is the fiat
// on-ramp hook and is gated on the treasury role.
func (n *Node) MintFunds(caller, to [20]byte, amount *big.Int) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if !n.state.HasRole(RoleTreasury, caller[:]) {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	account, err := n.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	if account.Balance == nil {
		account.Balance = big.NewInt(0)
	}
	account.Balance = new(big.Int).Add(account.Balance, amount)
	if err := n.state.PutAccount(to[:], account); err != nil {
		return err
	}
	n.journal.Append(events.FundsMinted{
		To:        to,
		Amount:    new(big.Int).Set(amount),
		Timestamp: n.nowFn(),
	}.Event())
	return nil
}

// --- System commands ---

// PauseModule pauses all mutating operations of a module. Reads stay
// available while paused.
func (n *Node) PauseModule(caller [20]byte, module string) error {
	return n.setPaused(caller, module, true)
}

// ResumeModule lifts a module pause.
func (n *Node) ResumeModule(caller [20]byte, module string) error {
	return n.setPaused(caller, module, false)
}

func (n *Node) setPaused(caller [20]byte, module string, paused bool) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if !n.state.HasRole(RoleSystemAdmin, caller[:]) {
		return ErrUnauthorized
	}
	if !knownModule(module) {
		return ErrUnknownModule
	}
	next := n.pauses
	switch module {
	case "assets":
		next.Assets = paused
	case "market":
		next.Market = paused
	case "revenue":
		next.Revenue = paused
	}
	if err := n.params.SetPauses(next); err != nil {
		return err
	}
	n.pauses = next
	n.journal.Append(events.PauseUpdated{
		Module:    module,
		Paused:    paused,
		Timestamp: n.nowFn(),
	}.Event())
	return nil
}

// Pauses returns the current module pause toggles.
func (n *Node) Pauses() config.Pauses {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.pauses
}

// GrantRole adds an address to a role.
func (n *Node) GrantRole(caller [20]byte, role string, addr [20]byte) error {
	return n.updateRole(caller, role, addr, true)
}

// RevokeRole removes an address from a role.
func (n *Node) RevokeRole(caller [20]byte, role string, addr [20]byte) error {
	return n.updateRole(caller, role, addr, false)
}

func (n *Node) updateRole(caller [20]byte, role string, addr [20]byte, grant bool) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if !n.state.HasRole(RoleSystemAdmin, caller[:]) {
		return ErrUnauthorized
	}
	if !knownRole(role) {
		return ErrUnknownRole
	}
	var err error
	if grant {
		err = n.state.SetRole(role, addr[:])
	} else {
		err = n.state.RemoveRole(role, addr[:])
	}
	if err != nil {
		return err
	}
	n.journal.Append(events.RoleUpdated{
		Role:      role,
		Address:   addr,
		Granted:   grant,
		Timestamp: n.nowFn(),
	}.Event())
	return nil
}

// RoleMembers returns the addresses holding a role.
func (n *Node) RoleMembers(role string) ([][20]byte, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if !knownRole(role) {
		return nil, ErrUnknownRole
	}
	raw, err := n.state.RoleMembers(role)
	if err != nil {
		return nil, err
	}
	out := make([][20]byte, 0, len(raw))
	for _, member := range raw {
		if len(member) != 20 {
			continue
		}
		var addr [20]byte
		copy(addr[:], member)
		out = append(out, addr)
	}
	return out, nil
}

// HasRole reports whether the address holds the role.
func (n *Node) HasRole(role string, addr [20]byte) bool {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.HasRole(role, addr[:])
}

// WithStateRead runs fn against the state manager under the command mutex.
// The auditor uses it to take a consistent snapshot without racing commands.
func (n *Node) WithStateRead(fn func(*statepkg.Manager) error) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return fn(n.state)
}
