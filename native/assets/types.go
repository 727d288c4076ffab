package assets

import (
	"math/big"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	maxSymbolLength      = 16
	maxNameLength        = 128
	maxMetadataURILength = 512
)

// Asset identifies one tokenized property. IssuedShares only grows and never
// exceeds MaxShares; Active and Verified jointly gate marketplace trading.
type Asset struct {
	ID           uint64
	Symbol       string
	Name         string
	MaxShares    *big.Int
	IssuedShares *big.Int
	Active       bool
	Verified     bool
	Frozen       bool
	CreatedAt    int64
	MetadataURI  string
}

// Clone returns a deep copy of the asset.
func (a *Asset) Clone() *Asset {
	if a == nil {
		return nil
	}
	cloned := *a
	cloned.MaxShares = big.NewInt(0)
	if a.MaxShares != nil {
		cloned.MaxShares = new(big.Int).Set(a.MaxShares)
	}
	cloned.IssuedShares = big.NewInt(0)
	if a.IssuedShares != nil {
		cloned.IssuedShares = new(big.Int).Set(a.IssuedShares)
	}
	return &cloned
}

// Tradable reports whether marketplace operations may touch the asset.
func (a *Asset) Tradable() bool {
	if a == nil {
		return false
	}
	return a.Active && a.Verified && !a.Frozen
}

// NormalizeSymbol canonicalises an asset symbol: NFKC folding, whitespace
// trimming and upper-casing. Symbols are restricted to ASCII letters, digits
// and hyphens so downstream indexes stay byte-comparable.
func NormalizeSymbol(symbol string) (string, error) {
	normalized := strings.ToUpper(norm.NFKC.String(strings.TrimSpace(symbol)))
	if normalized == "" || len(normalized) > maxSymbolLength {
		return "", ErrInvalidSymbol
	}
	for _, r := range normalized {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return "", ErrInvalidSymbol
		}
	}
	return normalized, nil
}

// NormalizeName canonicalises a display name, rejecting empty or oversized
// values and control characters.
func NormalizeName(name string) (string, error) {
	normalized := norm.NFKC.String(strings.TrimSpace(name))
	if normalized == "" || len(normalized) > maxNameLength {
		return "", ErrInvalidName
	}
	for _, r := range normalized {
		if unicode.IsControl(r) {
			return "", ErrInvalidName
		}
	}
	return normalized, nil
}

// NormalizeMetadataURI canonicalises an optional metadata pointer. Empty
// values are allowed.
func NormalizeMetadataURI(uri string) (string, error) {
	normalized := norm.NFKC.String(strings.TrimSpace(uri))
	if len(normalized) > maxMetadataURILength {
		return "", ErrInvalidMetadataURI
	}
	for _, r := range normalized {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return "", ErrInvalidMetadataURI
		}
	}
	return normalized, nil
}
