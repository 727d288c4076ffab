package genesis

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"landledger/core/state"
	"landledger/crypto"
	"landledger/native/assets"
	"landledger/native/market"
)

const initialisedKey = "genesis/initialised"

// Initialised reports whether a genesis spec has already been applied to the
// backing state.
func Initialised(manager *state.Manager) (bool, error) {
	_, ok, err := manager.ParamStoreGet(initialisedKey)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Resolve picks the genesis spec for a fresh database: the file at path when
// given, otherwise a single-admin development spec — but only when
// autogenesis was explicitly allowed, so production deployments cannot boot
// an empty ledger by accident.
func Resolve(path string, adminAddr [20]byte, allowAutogenesis bool) (*Spec, error) {
	if strings.TrimSpace(path) != "" {
		return Load(path)
	}
	if !allowAutogenesis {
		return nil, fmt.Errorf("genesis: no spec configured and autogenesis not allowed")
	}
	return DevSpec(adminAddr), nil
}

// DevSpec builds a development genesis granting every role to the supplied
// admin address.
func DevSpec(adminAddr [20]byte) *Spec {
	admin := crypto.MustNewAddress(crypto.LandPrefix, adminAddr[:]).String()
	return &Spec{
		NetworkName: "land-local",
		Roles: map[string][]string{
			"ROLE_ASSET_ADMIN":  {admin},
			"ROLE_MARKET_ADMIN": {admin},
			"ROLE_TREASURY":     {admin},
			"ROLE_SYSTEM_ADMIN": {admin},
		},
	}
}

// Apply writes the spec into state. Iteration orders are fixed (sorted keys)
// so two nodes applying the same spec produce identical state. Apply is not
// idempotent; callers must check Initialised first.
func Apply(spec *Spec, manager *state.Manager) error {
	if spec == nil {
		return fmt.Errorf("genesis: nil spec")
	}
	if manager == nil {
		return fmt.Errorf("genesis: nil state manager")
	}
	if err := spec.Validate(); err != nil {
		return err
	}
	createdAt := spec.Timestamp().Unix()
	if spec.Timestamp().IsZero() {
		createdAt = 0
	}

	roleNames := make([]string, 0, len(spec.Roles))
	for role := range spec.Roles {
		roleNames = append(roleNames, role)
	}
	sort.Strings(roleNames)
	for _, role := range roleNames {
		addresses := append([]string(nil), spec.Roles[role]...)
		sort.Strings(addresses)
		for _, addrStr := range addresses {
			addr, err := ParseAccount(addrStr)
			if err != nil {
				return fmt.Errorf("genesis: roles[%q]: %w", role, err)
			}
			if err := manager.SetRole(role, addr[:]); err != nil {
				return fmt.Errorf("genesis: roles[%q]: %w", role, err)
			}
		}
	}

	allocAddresses := make([]string, 0, len(spec.Alloc))
	for addr := range spec.Alloc {
		allocAddresses = append(allocAddresses, addr)
	}
	sort.Strings(allocAddresses)
	for _, addrStr := range allocAddresses {
		addr, err := ParseAccount(addrStr)
		if err != nil {
			return fmt.Errorf("genesis: alloc[%q]: %w", addrStr, err)
		}
		amount, err := parseAmount(spec.Alloc[addrStr])
		if err != nil {
			return fmt.Errorf("genesis: alloc[%q]: %w", addrStr, err)
		}
		account, err := manager.GetAccount(addr[:])
		if err != nil {
			return fmt.Errorf("genesis: alloc[%q]: %w", addrStr, err)
		}
		account.Balance = amount
		if err := manager.PutAccount(addr[:], account); err != nil {
			return fmt.Errorf("genesis: alloc[%q]: %w", addrStr, err)
		}
	}

	if spec.FeeBps > 0 || strings.TrimSpace(spec.FeeRecipient) != "" {
		policy := &market.FeePolicy{FeeBps: spec.FeeBps}
		if strings.TrimSpace(spec.FeeRecipient) != "" {
			recipient, err := ParseAccount(spec.FeeRecipient)
			if err != nil {
				return fmt.Errorf("genesis: feeRecipient: %w", err)
			}
			policy.Recipient = recipient
		}
		if spec.FeeBps > market.MaxFeeBps {
			return fmt.Errorf("genesis: feeBps %d exceeds bound %d", spec.FeeBps, market.MaxFeeBps)
		}
		if err := manager.SetMarketFeePolicy(policy); err != nil {
			return fmt.Errorf("genesis: fee policy: %w", err)
		}
	}

	for i := range spec.Assets {
		if err := applyAsset(manager, &spec.Assets[i], createdAt); err != nil {
			return err
		}
	}

	return manager.ParamStoreSet(initialisedKey, []byte("1"))
}

func applyAsset(manager *state.Manager, assetSpec *AssetSpec, createdAt int64) error {
	symbol := strings.ToUpper(strings.TrimSpace(assetSpec.Symbol))
	maxShares, err := parseAmount(assetSpec.MaxShares)
	if err != nil {
		return fmt.Errorf("genesis: assets[%q]: %w", symbol, err)
	}
	id, err := manager.AssetsNextID()
	if err != nil {
		return err
	}

	holders := make([]string, 0, len(assetSpec.Holdings))
	for holder := range assetSpec.Holdings {
		holders = append(holders, holder)
	}
	sort.Strings(holders)
	issued := big.NewInt(0)
	for _, holderStr := range holders {
		holder, err := ParseAccount(holderStr)
		if err != nil {
			return fmt.Errorf("genesis: assets[%q] holdings[%q]: %w", symbol, holderStr, err)
		}
		amount, err := parseAmount(assetSpec.Holdings[holderStr])
		if err != nil {
			return fmt.Errorf("genesis: assets[%q] holdings[%q]: %w", symbol, holderStr, err)
		}
		if amount.Sign() == 0 {
			continue
		}
		if err := manager.HoldingSet(id, holder, amount); err != nil {
			return fmt.Errorf("genesis: assets[%q] holdings[%q]: %w", symbol, holderStr, err)
		}
		issued.Add(issued, amount)
	}

	active := true
	if assetSpec.Active != nil {
		active = *assetSpec.Active
	}
	record := &assets.Asset{
		ID:           id,
		Symbol:       symbol,
		Name:         strings.TrimSpace(assetSpec.Name),
		MaxShares:    maxShares,
		IssuedShares: issued,
		Active:       active,
		Verified:     assetSpec.Verified,
		CreatedAt:    createdAt,
		MetadataURI:  strings.TrimSpace(assetSpec.MetadataURI),
	}
	if err := manager.AssetPut(record); err != nil {
		return fmt.Errorf("genesis: assets[%q]: %w", symbol, err)
	}
	return nil
}
