package market

import (
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ListingStatus represents the lifecycle states of a sell listing.
type ListingStatus uint8

const (
	ListingActive ListingStatus = iota
	ListingPartiallyFilled
	ListingFilled
	ListingCancelled
)

// Valid reports whether the status value is within the supported range.
func (s ListingStatus) Valid() bool {
	switch s {
	case ListingActive, ListingPartiallyFilled, ListingFilled, ListingCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether the listing can no longer be filled or cancelled.
func (s ListingStatus) Terminal() bool {
	return s == ListingFilled || s == ListingCancelled
}

// String returns the canonical lowercase name of the status.
func (s ListingStatus) String() string {
	switch s {
	case ListingActive:
		return "active"
	case ListingPartiallyFilled:
		return "partially_filled"
	case ListingFilled:
		return "filled"
	case ListingCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Listing captures one sell order. The shares it references sit on the module
// escrow address for the listing's lifetime and remain the seller's economic
// property until sold.
type Listing struct {
	ID              uint64
	Seller          [20]byte
	AssetID         uint64
	SharesRemaining *big.Int
	PricePerShare   *big.Int
	Status          ListingStatus
	CreatedAt       int64
	UpdatedAt       int64
}

// Clone returns a deep copy of the listing so callers can safely mutate the
// copy without affecting the stored instance.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	clone.SharesRemaining = big.NewInt(0)
	if l.SharesRemaining != nil {
		clone.SharesRemaining = new(big.Int).Set(l.SharesRemaining)
	}
	clone.PricePerShare = big.NewInt(0)
	if l.PricePerShare != nil {
		clone.PricePerShare = new(big.Int).Set(l.PricePerShare)
	}
	return &clone
}

// FeePolicy configures the marketplace fee split applied on every fill.
type FeePolicy struct {
	FeeBps    uint32
	Recipient [20]byte
}

// Fill summarises one buy settlement.
type Fill struct {
	ListingID       uint64
	AssetID         uint64
	Buyer           [20]byte
	Seller          [20]byte
	Shares          *big.Int
	TotalPrice      *big.Int
	Fee             *big.Int
	SellerProceeds  *big.Int
	Refund          *big.Int
	SharesRemaining *big.Int
	Filled          bool
}

const escrowSeed = "module/market/escrow"

var escrowAddress = func() [20]byte {
	hash := ethcrypto.Keccak256([]byte(escrowSeed))
	var addr [20]byte
	copy(addr[:], hash[len(hash)-20:])
	return addr
}()

// EscrowAddress returns the module-owned address that custodies listed shares.
// The address is derived deterministically from the module seed and has no
// known private key.
func EscrowAddress() [20]byte {
	return escrowAddress
}
