package state

import (
	"encoding/binary"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"landledger/native/market"
)

var (
	listingPrefix      = []byte("listing:")
	listingCounterKey  = ethcrypto.Keccak256([]byte("listing-count"))
	openListingsPrefix = []byte("market/open/")
	feePolicyKey       = ethcrypto.Keccak256([]byte("market/fees"))
)

func listingKey(id uint64) []byte {
	buf := make([]byte, len(listingPrefix)+8)
	copy(buf, listingPrefix)
	binary.BigEndian.PutUint64(buf[len(listingPrefix):], id)
	return ethcrypto.Keccak256(buf)
}

func openListingsKey(assetID uint64) []byte {
	buf := make([]byte, len(openListingsPrefix)+8)
	copy(buf, openListingsPrefix)
	binary.BigEndian.PutUint64(buf[len(openListingsPrefix):], assetID)
	return ethcrypto.Keccak256(buf)
}

type storedListing struct {
	ID              uint64
	Seller          [20]byte
	AssetID         uint64
	SharesRemaining *big.Int
	PricePerShare   *big.Int
	Status          uint8
	CreatedAt       *big.Int
	UpdatedAt       *big.Int
}

func newStoredListing(l *market.Listing) *storedListing {
	if l == nil {
		return nil
	}
	remaining := big.NewInt(0)
	if l.SharesRemaining != nil {
		remaining = new(big.Int).Set(l.SharesRemaining)
	}
	price := big.NewInt(0)
	if l.PricePerShare != nil {
		price = new(big.Int).Set(l.PricePerShare)
	}
	return &storedListing{
		ID:              l.ID,
		Seller:          l.Seller,
		AssetID:         l.AssetID,
		SharesRemaining: remaining,
		PricePerShare:   price,
		Status:          uint8(l.Status),
		CreatedAt:       big.NewInt(l.CreatedAt),
		UpdatedAt:       big.NewInt(l.UpdatedAt),
	}
}

func (s *storedListing) toListing() (*market.Listing, error) {
	if s == nil {
		return nil, fmt.Errorf("state: nil listing record")
	}
	out := &market.Listing{
		ID:              s.ID,
		Seller:          s.Seller,
		AssetID:         s.AssetID,
		SharesRemaining: big.NewInt(0),
		PricePerShare:   big.NewInt(0),
		Status:          market.ListingStatus(s.Status),
	}
	if s.SharesRemaining != nil {
		out.SharesRemaining = new(big.Int).Set(s.SharesRemaining)
	}
	if s.PricePerShare != nil {
		out.PricePerShare = new(big.Int).Set(s.PricePerShare)
	}
	if s.CreatedAt != nil {
		out.CreatedAt = s.CreatedAt.Int64()
	}
	if s.UpdatedAt != nil {
		out.UpdatedAt = s.UpdatedAt.Int64()
	}
	if !out.Status.Valid() {
		return nil, fmt.Errorf("state: invalid listing status %d", s.Status)
	}
	return out, nil
}

// ListingsNextID advances the listing id counter and returns the newly
// assigned identifier. Identifiers start at 1.
func (m *Manager) ListingsNextID() (uint64, error) {
	current, err := m.loadCounter(listingCounterKey)
	if err != nil {
		return 0, err
	}
	next := current + 1
	if err := m.writeCounter(listingCounterKey, next); err != nil {
		return 0, err
	}
	return next, nil
}

// ListingPut persists the provided listing and keeps the per-asset open
// listing index in sync with the listing status.
func (m *Manager) ListingPut(l *market.Listing) error {
	if l == nil {
		return fmt.Errorf("state: nil listing")
	}
	if l.ID == 0 {
		return fmt.Errorf("state: listing id must not be zero")
	}
	if !l.Status.Valid() {
		return fmt.Errorf("state: invalid listing status %d", l.Status)
	}
	record := newStoredListing(l)
	encoded, err := rlp.EncodeToBytes(record)
	if err != nil {
		return err
	}
	if err := m.put(listingKey(l.ID), encoded); err != nil {
		return err
	}
	if l.Status.Terminal() {
		return m.removeOpenListing(l.AssetID, l.ID)
	}
	return m.appendOpenListing(l.AssetID, l.ID)
}

// ListingGet retrieves the listing stored under the provided id.
func (m *Manager) ListingGet(id uint64) (*market.Listing, bool) {
	data, err := m.get(listingKey(id))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	stored := new(storedListing)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false
	}
	record, err := stored.toListing()
	if err != nil {
		return nil, false
	}
	return record, true
}

func (m *Manager) appendOpenListing(assetID, listingID uint64) error {
	list, err := m.OpenListings(assetID)
	if err != nil {
		return err
	}
	for _, existing := range list {
		if existing == listingID {
			return nil
		}
	}
	list = append(list, listingID)
	return m.writeOpenListings(assetID, list)
}

func (m *Manager) removeOpenListing(assetID, listingID uint64) error {
	list, err := m.OpenListings(assetID)
	if err != nil {
		return err
	}
	filtered := list[:0]
	for _, existing := range list {
		if existing != listingID {
			filtered = append(filtered, existing)
		}
	}
	if len(filtered) == len(list) {
		return nil
	}
	return m.writeOpenListings(assetID, filtered)
}

func (m *Manager) writeOpenListings(assetID uint64, list []uint64) error {
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	return m.put(openListingsKey(assetID), encoded)
}

// OpenListings returns the ids of all non-terminal listings for the provided
// asset in creation order.
func (m *Manager) OpenListings(assetID uint64) ([]uint64, error) {
	data, err := m.get(openListingsKey(assetID))
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

type storedFeePolicy struct {
	FeeBps    uint32
	Recipient [20]byte
}

// MarketFeePolicy returns the current marketplace fee policy. An unset policy
// yields the zero-fee default.
func (m *Manager) MarketFeePolicy() (*market.FeePolicy, error) {
	data, err := m.get(feePolicyKey)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return &market.FeePolicy{}, nil
	}
	stored := new(storedFeePolicy)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, err
	}
	return &market.FeePolicy{FeeBps: stored.FeeBps, Recipient: stored.Recipient}, nil
}

// SetMarketFeePolicy persists the marketplace fee policy.
func (m *Manager) SetMarketFeePolicy(policy *market.FeePolicy) error {
	if policy == nil {
		return fmt.Errorf("state: nil fee policy")
	}
	encoded, err := rlp.EncodeToBytes(&storedFeePolicy{FeeBps: policy.FeeBps, Recipient: policy.Recipient})
	if err != nil {
		return err
	}
	return m.put(feePolicyKey, encoded)
}
