package params

import (
	"bytes"
	"encoding/json"
	"fmt"

	"landledger/config"
)

// StoreState captures the subset of state manager capabilities required by the
// parameter helpers.
type StoreState interface {
	ParamStoreSet(name string, value []byte) error
	ParamStoreGet(name string) ([]byte, bool, error)
}

// Store provides typed accessors for administratively controlled parameters.
type Store struct {
	state StoreState
}

// NewStore constructs a parameter store wrapper using the supplied state
// backend.
func NewStore(state StoreState) *Store {
	return &Store{state: state}
}

func (s *Store) withState() (StoreState, error) {
	if s == nil || s.state == nil {
		return nil, fmt.Errorf("params: state not configured")
	}
	return s.state, nil
}

// SetPauses persists the supplied pause configuration under the canonical
// parameter store key. Values are marshalled as JSON to align with the
// administrative RPC payloads.
func (s *Store) SetPauses(pauses config.Pauses) error {
	state, err := s.withState()
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(pauses)
	if err != nil {
		return fmt.Errorf("params: encode pauses: %w", err)
	}
	return state.ParamStoreSet(ParamsKeyPauses, encoded)
}

// Pauses loads the persisted pause configuration. When unset, a zero-value
// configuration is returned.
func (s *Store) Pauses() (config.Pauses, error) {
	state, err := s.withState()
	if err != nil {
		return config.Pauses{}, err
	}
	raw, ok, err := state.ParamStoreGet(ParamsKeyPauses)
	if err != nil {
		return config.Pauses{}, err
	}
	if !ok || len(bytes.TrimSpace(raw)) == 0 {
		return config.Pauses{}, nil
	}
	var pauses config.Pauses
	if err := json.Unmarshal(raw, &pauses); err != nil {
		return config.Pauses{}, fmt.Errorf("params: decode pauses: %w", err)
	}
	return pauses, nil
}

// SetRevenue persists the revenue deposit policy under the canonical
// parameter store key.
func (s *Store) SetRevenue(policy config.RevenuePolicy) error {
	state, err := s.withState()
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("params: encode revenue policy: %w", err)
	}
	return state.ParamStoreSet(ParamsKeyRevenue, encoded)
}

// Revenue loads the persisted revenue deposit policy if present.
func (s *Store) Revenue() (config.RevenuePolicy, error) {
	state, err := s.withState()
	if err != nil {
		return config.RevenuePolicy{}, err
	}
	raw, ok, err := state.ParamStoreGet(ParamsKeyRevenue)
	if err != nil {
		return config.RevenuePolicy{}, err
	}
	if !ok || len(bytes.TrimSpace(raw)) == 0 {
		return config.RevenuePolicy{}, nil
	}
	var policy config.RevenuePolicy
	if err := json.Unmarshal(raw, &policy); err != nil {
		return config.RevenuePolicy{}, fmt.Errorf("params: decode revenue policy: %w", err)
	}
	return policy, nil
}

// SetQuota persists the per-address command quota configuration.
func (s *Store) SetQuota(quota config.Quota) error {
	state, err := s.withState()
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(quota)
	if err != nil {
		return fmt.Errorf("params: encode quota: %w", err)
	}
	return state.ParamStoreSet(ParamsKeyQuota, encoded)
}

// Quota loads the persisted per-address command quota configuration.
func (s *Store) Quota() (config.Quota, error) {
	state, err := s.withState()
	if err != nil {
		return config.Quota{}, err
	}
	raw, ok, err := state.ParamStoreGet(ParamsKeyQuota)
	if err != nil {
		return config.Quota{}, err
	}
	if !ok || len(bytes.TrimSpace(raw)) == 0 {
		return config.Quota{}, nil
	}
	var quota config.Quota
	if err := json.Unmarshal(raw, &quota); err != nil {
		return config.Quota{}, fmt.Errorf("params: decode quota: %w", err)
	}
	return quota, nil
}
