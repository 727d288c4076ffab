package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"landledger/crypto"
)

// Spec describes the initial ledger state: role assignments, funds
// allocations, and pre-registered assets with their opening holdings. It is
// loaded from a JSON file at first boot and never consulted again.
type Spec struct {
	GenesisTime  string              `json:"genesisTime,omitempty"`
	NetworkName  string              `json:"networkName,omitempty"`
	Roles        map[string][]string `json:"roles,omitempty"`
	Alloc        map[string]string   `json:"alloc,omitempty"`
	FeeBps       uint32              `json:"feeBps,omitempty"`
	FeeRecipient string              `json:"feeRecipient,omitempty"`
	Assets       []AssetSpec         `json:"assets,omitempty"`

	genesisTimestamp time.Time
}

// AssetSpec pre-registers one asset. The sum of Holdings must not exceed
// MaxShares; IssuedShares is derived from the holdings.
type AssetSpec struct {
	Symbol      string            `json:"symbol"`
	Name        string            `json:"name"`
	MaxShares   string            `json:"maxShares"`
	MetadataURI string            `json:"metadataURI,omitempty"`
	Active      *bool             `json:"active,omitempty"`
	Verified    bool              `json:"verified,omitempty"`
	Holdings    map[string]string `json:"holdings,omitempty"`
}

// Load reads and validates a genesis spec from disk. Unknown fields are
// rejected so typos surface at boot rather than silently dropping state.
func Load(path string) (*Spec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis: spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("genesis: read spec %q: %w", path, err)
	}
	var spec Spec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("genesis: decode spec %q: %w", path, err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Validate checks every field of the spec, naming the offending entry on
// failure.
func (s *Spec) Validate() error {
	if s == nil {
		return fmt.Errorf("genesis: nil spec")
	}
	if strings.TrimSpace(s.GenesisTime) != "" {
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(s.GenesisTime))
		if err != nil {
			return fmt.Errorf("genesis: genesisTime: %w", err)
		}
		s.genesisTimestamp = parsed
	}
	for role, addresses := range s.Roles {
		if strings.TrimSpace(role) == "" {
			return fmt.Errorf("genesis: empty role name")
		}
		for _, addr := range addresses {
			if _, err := ParseAccount(addr); err != nil {
				return fmt.Errorf("genesis: roles[%q]: %w", role, err)
			}
		}
	}
	for addr, amount := range s.Alloc {
		if _, err := ParseAccount(addr); err != nil {
			return fmt.Errorf("genesis: alloc[%q]: %w", addr, err)
		}
		if _, err := parseAmount(amount); err != nil {
			return fmt.Errorf("genesis: alloc[%q]: %w", addr, err)
		}
	}
	if s.FeeBps > 0 && strings.TrimSpace(s.FeeRecipient) == "" {
		return fmt.Errorf("genesis: feeRecipient required when feeBps > 0")
	}
	if strings.TrimSpace(s.FeeRecipient) != "" {
		if _, err := ParseAccount(s.FeeRecipient); err != nil {
			return fmt.Errorf("genesis: feeRecipient: %w", err)
		}
	}
	seen := make(map[string]bool, len(s.Assets))
	for i := range s.Assets {
		asset := &s.Assets[i]
		symbol := strings.ToUpper(strings.TrimSpace(asset.Symbol))
		if symbol == "" {
			return fmt.Errorf("genesis: assets[%d]: symbol required", i)
		}
		if seen[symbol] {
			return fmt.Errorf("genesis: assets[%d]: duplicate symbol %q", i, symbol)
		}
		seen[symbol] = true
		maxShares, err := parseAmount(asset.MaxShares)
		if err != nil {
			return fmt.Errorf("genesis: assets[%q]: maxShares: %w", symbol, err)
		}
		if maxShares.Sign() <= 0 {
			return fmt.Errorf("genesis: assets[%q]: maxShares must be positive", symbol)
		}
		total := big.NewInt(0)
		for holder, amountStr := range asset.Holdings {
			if _, err := ParseAccount(holder); err != nil {
				return fmt.Errorf("genesis: assets[%q] holdings[%q]: %w", symbol, holder, err)
			}
			amount, err := parseAmount(amountStr)
			if err != nil {
				return fmt.Errorf("genesis: assets[%q] holdings[%q]: %w", symbol, holder, err)
			}
			total.Add(total, amount)
		}
		if total.Cmp(maxShares) > 0 {
			return fmt.Errorf("genesis: assets[%q]: holdings %s exceed maxShares %s", symbol, total, maxShares)
		}
	}
	return nil
}

// Timestamp returns the parsed genesis time, or zero when unset.
func (s *Spec) Timestamp() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.genesisTimestamp
}

// ParseAccount decodes a bech32 address string into a fixed-size account
// address.
func ParseAccount(addr string) ([20]byte, error) {
	var out [20]byte
	decoded, err := crypto.DecodeAddress(strings.TrimSpace(addr))
	if err != nil {
		return out, err
	}
	copy(out[:], decoded.Bytes())
	return out, nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", raw)
	}
	return amount, nil
}
