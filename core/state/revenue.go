package state

import (
	"encoding/binary"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"landledger/native/revenue"
)

var (
	poolPrefix        = []byte("revenue-pool:")
	claimRecordPrefix = []byte("claim:")
)

func poolKey(assetID uint64) []byte {
	buf := make([]byte, len(poolPrefix)+8)
	copy(buf, poolPrefix)
	binary.BigEndian.PutUint64(buf[len(poolPrefix):], assetID)
	return ethcrypto.Keccak256(buf)
}

func claimRecordKey(assetID uint64, holder [20]byte) []byte {
	buf := make([]byte, len(claimRecordPrefix)+8+1+len(holder))
	copy(buf, claimRecordPrefix)
	binary.BigEndian.PutUint64(buf[len(claimRecordPrefix):], assetID)
	buf[len(claimRecordPrefix)+8] = ':'
	copy(buf[len(claimRecordPrefix)+9:], holder[:])
	return ethcrypto.Keccak256(buf)
}

type storedPool struct {
	AssetID            uint64
	TotalDeposited     *big.Int
	TotalDistributed   *big.Int
	TotalClaimed       *big.Int
	TotalWithdrawn     *big.Int
	CumulativePerShare *big.Int
	LastDepositAt      *big.Int
}

func newStoredPool(p *revenue.Pool) *storedPool {
	if p == nil {
		return nil
	}
	set := func(v *big.Int) *big.Int {
		if v == nil {
			return big.NewInt(0)
		}
		return new(big.Int).Set(v)
	}
	return &storedPool{
		AssetID:            p.AssetID,
		TotalDeposited:     set(p.TotalDeposited),
		TotalDistributed:   set(p.TotalDistributed),
		TotalClaimed:       set(p.TotalClaimed),
		TotalWithdrawn:     set(p.TotalWithdrawn),
		CumulativePerShare: set(p.CumulativePerShare),
		LastDepositAt:      big.NewInt(p.LastDepositAt),
	}
}

func (s *storedPool) toPool() (*revenue.Pool, error) {
	if s == nil {
		return nil, fmt.Errorf("state: nil pool record")
	}
	out := &revenue.Pool{
		AssetID:            s.AssetID,
		TotalDeposited:     big.NewInt(0),
		TotalDistributed:   big.NewInt(0),
		TotalClaimed:       big.NewInt(0),
		TotalWithdrawn:     big.NewInt(0),
		CumulativePerShare: big.NewInt(0),
	}
	if s.TotalDeposited != nil {
		out.TotalDeposited = new(big.Int).Set(s.TotalDeposited)
	}
	if s.TotalDistributed != nil {
		out.TotalDistributed = new(big.Int).Set(s.TotalDistributed)
	}
	if s.TotalClaimed != nil {
		out.TotalClaimed = new(big.Int).Set(s.TotalClaimed)
	}
	if s.TotalWithdrawn != nil {
		out.TotalWithdrawn = new(big.Int).Set(s.TotalWithdrawn)
	}
	if s.CumulativePerShare != nil {
		out.CumulativePerShare = new(big.Int).Set(s.CumulativePerShare)
	}
	if s.LastDepositAt != nil {
		out.LastDepositAt = s.LastDepositAt.Int64()
	}
	return out, nil
}

// PoolPut persists the provided revenue pool.
func (m *Manager) PoolPut(p *revenue.Pool) error {
	if p == nil {
		return fmt.Errorf("state: nil pool")
	}
	if p.AssetID == 0 {
		return fmt.Errorf("state: pool asset id must not be zero")
	}
	encoded, err := rlp.EncodeToBytes(newStoredPool(p))
	if err != nil {
		return err
	}
	return m.put(poolKey(p.AssetID), encoded)
}

// PoolGet retrieves the revenue pool for the provided asset.
func (m *Manager) PoolGet(assetID uint64) (*revenue.Pool, bool) {
	data, err := m.get(poolKey(assetID))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	stored := new(storedPool)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false
	}
	record, err := stored.toPool()
	if err != nil {
		return nil, false
	}
	return record, true
}

type storedClaimRecord struct {
	LastCumulativePerShare *big.Int
	TotalClaimed           *big.Int
}

// ClaimRecordPut persists the claim record for the provided asset and holder.
func (m *Manager) ClaimRecordPut(assetID uint64, holder [20]byte, rec *revenue.ClaimRecord) error {
	if rec == nil {
		return fmt.Errorf("state: nil claim record")
	}
	stored := &storedClaimRecord{
		LastCumulativePerShare: big.NewInt(0),
		TotalClaimed:           big.NewInt(0),
	}
	if rec.LastCumulativePerShare != nil {
		stored.LastCumulativePerShare = new(big.Int).Set(rec.LastCumulativePerShare)
	}
	if rec.TotalClaimed != nil {
		stored.TotalClaimed = new(big.Int).Set(rec.TotalClaimed)
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return err
	}
	return m.put(claimRecordKey(assetID, holder), encoded)
}

// ClaimRecordGet retrieves the claim record for the provided asset and
// holder. Absent records yield the zero-marker default so first claims start
// from the beginning of the accumulator.
func (m *Manager) ClaimRecordGet(assetID uint64, holder [20]byte) (*revenue.ClaimRecord, error) {
	data, err := m.get(claimRecordKey(assetID, holder))
	if err != nil {
		return nil, err
	}
	rec := &revenue.ClaimRecord{
		LastCumulativePerShare: big.NewInt(0),
		TotalClaimed:           big.NewInt(0),
	}
	if len(data) == 0 {
		return rec, nil
	}
	stored := new(storedClaimRecord)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, err
	}
	if stored.LastCumulativePerShare != nil {
		rec.LastCumulativePerShare = new(big.Int).Set(stored.LastCumulativePerShare)
	}
	if stored.TotalClaimed != nil {
		rec.TotalClaimed = new(big.Int).Set(stored.TotalClaimed)
	}
	return rec, nil
}
