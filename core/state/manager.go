package state

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"landledger/core/types"
	"landledger/storage"
)

// Manager provides typed access to the ledger state stored in the backing
// key/value database. Keys are prefixed and keccak256-hashed before hitting
// storage so the layout matches a flat, content-addressed keyspace.
//
// Manager performs no locking of its own; callers serialize access (the node
// wraps every command in a single mutex).
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// ErrInsufficientBalance is returned by balance arithmetic helpers when a
// debit would drive a balance negative.
var ErrInsufficientBalance = errors.New("state: insufficient balance")

var (
	accountPrefix = []byte("account:")
	rolePrefix    = []byte("role:")
	paramPrefix   = []byte("params/")
)

func accountKey(addr []byte) []byte {
	buf := make([]byte, len(accountPrefix)+len(addr))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr)
	return ethcrypto.Keccak256(buf)
}

func roleKey(role string) []byte {
	buf := make([]byte, len(rolePrefix)+len(role))
	copy(buf, rolePrefix)
	copy(buf[len(rolePrefix):], role)
	return ethcrypto.Keccak256(buf)
}

func paramKey(name string) []byte {
	buf := make([]byte, len(paramPrefix)+len(name))
	copy(buf, paramPrefix)
	copy(buf[len(paramPrefix):], name)
	return ethcrypto.Keccak256(buf)
}

// get reads the raw value stored under the hashed key, mapping a missing key
// to an empty value so callers can treat absence uniformly.
func (m *Manager) get(hashedKey []byte) ([]byte, error) {
	data, err := m.db.Get(hashedKey)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

func (m *Manager) put(hashedKey, value []byte) error {
	return m.db.Put(hashedKey, value)
}

func (m *Manager) loadBigInt(hashedKey []byte) (*big.Int, error) {
	data, err := m.get(hashedKey)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return big.NewInt(0), nil
	}
	value := new(big.Int)
	if err := rlp.DecodeBytes(data, value); err != nil {
		return nil, err
	}
	return value, nil
}

func (m *Manager) writeBigInt(hashedKey []byte, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative value not allowed")
	}
	encoded, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return err
	}
	return m.put(hashedKey, encoded)
}

func (m *Manager) loadCounter(hashedKey []byte) (uint64, error) {
	data, err := m.get(hashedKey)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}
	var value uint64
	if err := rlp.DecodeBytes(data, &value); err != nil {
		return 0, err
	}
	return value, nil
}

func (m *Manager) writeCounter(hashedKey []byte, value uint64) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.put(hashedKey, encoded)
}

type storedAccount struct {
	Nonce   uint64
	Balance *uint256.Int
}

// GetAccount reconstructs the funds account stored under the provided
// address. Unknown addresses yield a zero-value account rather than an error.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	if len(addr) == 0 {
		return nil, fmt.Errorf("state: address must not be empty")
	}
	data, err := m.get(accountKey(addr))
	if err != nil {
		return nil, err
	}
	account := &types.Account{Balance: big.NewInt(0)}
	if len(data) == 0 {
		return account, nil
	}
	stored := new(storedAccount)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, err
	}
	account.Nonce = stored.Nonce
	if stored.Balance != nil {
		account.Balance = stored.Balance.ToBig()
	}
	return account, nil
}

// PutAccount persists the provided funds account under the supplied address.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if len(addr) == 0 {
		return fmt.Errorf("state: address must not be empty")
	}
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	balance := account.Balance
	if balance == nil {
		balance = big.NewInt(0)
	}
	if balance.Sign() < 0 {
		return fmt.Errorf("state: negative balance not allowed")
	}
	encoded256, overflow := uint256.FromBig(balance)
	if overflow {
		return fmt.Errorf("state: balance overflow")
	}
	stored := &storedAccount{
		Nonce:   account.Nonce,
		Balance: encoded256,
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return err
	}
	return m.put(accountKey(addr), encoded)
}

// SetRole associates an address with the specified role. Duplicate
// assignments are ignored while the stored list remains sorted for
// determinism.
func (m *Manager) SetRole(role string, addr []byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("state: role must not be empty")
	}
	if len(addr) == 0 {
		return fmt.Errorf("state: address must not be empty")
	}
	members, err := m.RoleMembers(trimmed)
	if err != nil {
		return err
	}
	for _, existing := range members {
		if bytes.Equal(existing, addr) {
			return nil
		}
	}
	members = append(members, append([]byte(nil), addr...))
	sort.Slice(members, func(i, j int) bool {
		return hex.EncodeToString(members[i]) < hex.EncodeToString(members[j])
	})
	return m.writeRoleMembers(trimmed, members)
}

// RemoveRole disassociates an address from the specified role. Removing an
// address that never held the role is a no-op.
func (m *Manager) RemoveRole(role string, addr []byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("state: role must not be empty")
	}
	if len(addr) == 0 {
		return fmt.Errorf("state: address must not be empty")
	}
	members, err := m.RoleMembers(trimmed)
	if err != nil {
		return err
	}
	filtered := members[:0]
	for _, existing := range members {
		if !bytes.Equal(existing, addr) {
			filtered = append(filtered, existing)
		}
	}
	if len(filtered) == len(members) {
		return nil
	}
	return m.writeRoleMembers(trimmed, filtered)
}

func (m *Manager) writeRoleMembers(role string, members [][]byte) error {
	encoded, err := rlp.EncodeToBytes(members)
	if err != nil {
		return err
	}
	return m.put(roleKey(role), encoded)
}

// RoleMembers returns all addresses assigned to the provided role.
func (m *Manager) RoleMembers(role string) ([][]byte, error) {
	data, err := m.get(roleKey(strings.TrimSpace(role)))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return [][]byte{}, nil
	}
	var members [][]byte
	if err := rlp.DecodeBytes(data, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// HasRole reports whether the provided address is associated with the
// specified role. Errors while reading the underlying state result in a false
// return, matching the best-effort semantics required by the callers.
func (m *Manager) HasRole(role string, addr []byte) bool {
	if len(addr) == 0 {
		return false
	}
	members, err := m.RoleMembers(role)
	if err != nil {
		return false
	}
	for _, member := range members {
		if bytes.Equal(member, addr) {
			return true
		}
	}
	return false
}

// ParamStoreSet stores a raw parameter payload under the supplied name.
func (m *Manager) ParamStoreSet(name string, raw []byte) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("state: param name must not be empty")
	}
	return m.put(paramKey(trimmed), append([]byte(nil), raw...))
}

// ParamStoreGet retrieves a raw parameter payload. The boolean reports
// whether the parameter was present.
func (m *Manager) ParamStoreGet(name string) ([]byte, bool, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, false, fmt.Errorf("state: param name must not be empty")
	}
	data, err := m.get(paramKey(trimmed))
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}
