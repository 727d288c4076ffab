package state

import (
	"encoding/binary"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"landledger/native/assets"
)

var (
	assetPrefix       = []byte("asset:")
	assetSymbolPrefix = []byte("asset-symbol:")
	assetListKey      = ethcrypto.Keccak256([]byte("asset-list"))
	assetCounterKey   = ethcrypto.Keccak256([]byte("asset-count"))
	holdingPrefix     = []byte("holding:")
	holderListPrefix  = []byte("holders:")
)

func assetKey(id uint64) []byte {
	buf := make([]byte, len(assetPrefix)+8)
	copy(buf, assetPrefix)
	binary.BigEndian.PutUint64(buf[len(assetPrefix):], id)
	return ethcrypto.Keccak256(buf)
}

func assetSymbolKey(symbol string) []byte {
	buf := make([]byte, len(assetSymbolPrefix)+len(symbol))
	copy(buf, assetSymbolPrefix)
	copy(buf[len(assetSymbolPrefix):], symbol)
	return ethcrypto.Keccak256(buf)
}

func holdingKey(assetID uint64, holder [20]byte) []byte {
	buf := make([]byte, len(holdingPrefix)+8+1+len(holder))
	copy(buf, holdingPrefix)
	binary.BigEndian.PutUint64(buf[len(holdingPrefix):], assetID)
	buf[len(holdingPrefix)+8] = ':'
	copy(buf[len(holdingPrefix)+9:], holder[:])
	return ethcrypto.Keccak256(buf)
}

func holderListKey(assetID uint64) []byte {
	buf := make([]byte, len(holderListPrefix)+8)
	copy(buf, holderListPrefix)
	binary.BigEndian.PutUint64(buf[len(holderListPrefix):], assetID)
	return ethcrypto.Keccak256(buf)
}

type storedAsset struct {
	ID           uint64
	Symbol       string
	Name         string
	MaxShares    *big.Int
	IssuedShares *big.Int
	Active       bool
	Verified     bool
	Frozen       bool
	CreatedAt    *big.Int
	MetadataURI  string
}

func newStoredAsset(a *assets.Asset) *storedAsset {
	if a == nil {
		return nil
	}
	maxShares := big.NewInt(0)
	if a.MaxShares != nil {
		maxShares = new(big.Int).Set(a.MaxShares)
	}
	issued := big.NewInt(0)
	if a.IssuedShares != nil {
		issued = new(big.Int).Set(a.IssuedShares)
	}
	return &storedAsset{
		ID:           a.ID,
		Symbol:       a.Symbol,
		Name:         a.Name,
		MaxShares:    maxShares,
		IssuedShares: issued,
		Active:       a.Active,
		Verified:     a.Verified,
		Frozen:       a.Frozen,
		CreatedAt:    big.NewInt(a.CreatedAt),
		MetadataURI:  a.MetadataURI,
	}
}

func (s *storedAsset) toAsset() (*assets.Asset, error) {
	if s == nil {
		return nil, fmt.Errorf("state: nil asset record")
	}
	out := &assets.Asset{
		ID:           s.ID,
		Symbol:       s.Symbol,
		Name:         s.Name,
		MaxShares:    big.NewInt(0),
		IssuedShares: big.NewInt(0),
		Active:       s.Active,
		Verified:     s.Verified,
		Frozen:       s.Frozen,
		MetadataURI:  s.MetadataURI,
	}
	if s.MaxShares != nil {
		out.MaxShares = new(big.Int).Set(s.MaxShares)
	}
	if s.IssuedShares != nil {
		out.IssuedShares = new(big.Int).Set(s.IssuedShares)
	}
	if s.CreatedAt != nil {
		out.CreatedAt = s.CreatedAt.Int64()
	}
	return out, nil
}

// AssetsNextID advances the asset id counter and returns the newly assigned
// identifier. Identifiers start at 1.
func (m *Manager) AssetsNextID() (uint64, error) {
	current, err := m.loadCounter(assetCounterKey)
	if err != nil {
		return 0, err
	}
	next := current + 1
	if err := m.writeCounter(assetCounterKey, next); err != nil {
		return 0, err
	}
	return next, nil
}

// AssetPut persists the provided asset and maintains the symbol and id
// indexes.
func (m *Manager) AssetPut(a *assets.Asset) error {
	if a == nil {
		return fmt.Errorf("state: nil asset")
	}
	if a.ID == 0 {
		return fmt.Errorf("state: asset id must not be zero")
	}
	record := newStoredAsset(a)
	encoded, err := rlp.EncodeToBytes(record)
	if err != nil {
		return err
	}
	if err := m.put(assetKey(a.ID), encoded); err != nil {
		return err
	}
	if a.Symbol != "" {
		idEncoded, err := rlp.EncodeToBytes(a.ID)
		if err != nil {
			return err
		}
		if err := m.put(assetSymbolKey(a.Symbol), idEncoded); err != nil {
			return err
		}
	}
	return m.appendAssetID(a.ID)
}

// AssetGet retrieves the asset stored under the provided id.
func (m *Manager) AssetGet(id uint64) (*assets.Asset, bool) {
	data, err := m.get(assetKey(id))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	stored := new(storedAsset)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false
	}
	record, err := stored.toAsset()
	if err != nil {
		return nil, false
	}
	return record, true
}

// AssetIDBySymbol resolves a registered symbol to its asset id.
func (m *Manager) AssetIDBySymbol(symbol string) (uint64, bool) {
	if symbol == "" {
		return 0, false
	}
	data, err := m.get(assetSymbolKey(symbol))
	if err != nil || len(data) == 0 {
		return 0, false
	}
	var id uint64
	if err := rlp.DecodeBytes(data, &id); err != nil {
		return 0, false
	}
	return id, true
}

func (m *Manager) appendAssetID(id uint64) error {
	list, err := m.AssetList()
	if err != nil {
		return err
	}
	for _, existing := range list {
		if existing == id {
			return nil
		}
	}
	list = append(list, id)
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	return m.put(assetListKey, encoded)
}

// AssetList returns all registered asset ids in registration order.
func (m *Manager) AssetList() ([]uint64, error) {
	data, err := m.get(assetListKey)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return []uint64{}, nil
	}
	var list []uint64
	if err := rlp.DecodeBytes(data, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// HoldingGet retrieves the share balance for the provided asset and holder.
// Unknown holders yield zero.
func (m *Manager) HoldingGet(assetID uint64, holder [20]byte) (*big.Int, error) {
	return m.loadBigInt(holdingKey(assetID, holder))
}

// HoldingSet stores the share balance for the provided asset and holder and
// records the holder in the per-asset holder index.
func (m *Manager) HoldingSet(assetID uint64, holder [20]byte, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative holding not allowed")
	}
	if err := m.writeBigInt(holdingKey(assetID, holder), amount); err != nil {
		return err
	}
	return m.appendHolder(assetID, holder)
}

func (m *Manager) appendHolder(assetID uint64, holder [20]byte) error {
	holders, err := m.HolderList(assetID)
	if err != nil {
		return err
	}
	for _, existing := range holders {
		if existing == holder {
			return nil
		}
	}
	raw := make([][]byte, 0, len(holders)+1)
	for _, existing := range holders {
		raw = append(raw, append([]byte(nil), existing[:]...))
	}
	raw = append(raw, append([]byte(nil), holder[:]...))
	encoded, err := rlp.EncodeToBytes(raw)
	if err != nil {
		return err
	}
	return m.put(holderListKey(assetID), encoded)
}

// HolderList returns every address that has ever held shares of the provided
// asset, in first-touch order. Addresses whose balance has since dropped to
// zero remain listed.
func (m *Manager) HolderList(assetID uint64) ([][20]byte, error) {
	data, err := m.get(holderListKey(assetID))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return [][20]byte{}, nil
	}
	var raw [][]byte
	if err := rlp.DecodeBytes(data, &raw); err != nil {
		return nil, err
	}
	holders := make([][20]byte, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != 20 {
			return nil, fmt.Errorf("state: malformed holder entry of %d bytes", len(entry))
		}
		var holder [20]byte
		copy(holder[:], entry)
		holders = append(holders, holder)
	}
	return holders, nil
}
