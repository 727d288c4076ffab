package events

import (
	"strconv"

	"landledger/core/types"
)

const (
	// TypePauseUpdated records a module pause toggle.
	TypePauseUpdated = "system.pauseUpdated"
	// TypeRoleUpdated records a role grant or revocation.
	TypeRoleUpdated = "system.roleUpdated"
)

type PauseUpdated struct {
	Module    string
	Paused    bool
	Timestamp int64
}

func (PauseUpdated) EventType() string { return TypePauseUpdated }

func (e PauseUpdated) Event() *types.Event {
	attrs := map[string]string{
		"module":    e.Module,
		"paused":    strconv.FormatBool(e.Paused),
		"timestamp": strconv.FormatInt(e.Timestamp, 10),
	}
	return &types.Event{Type: TypePauseUpdated, Attributes: attrs}
}

type RoleUpdated struct {
	Role      string
	Address   [20]byte
	Granted   bool
	Timestamp int64
}

func (RoleUpdated) EventType() string { return TypeRoleUpdated }

func (e RoleUpdated) Event() *types.Event {
	attrs := map[string]string{
		"role":      e.Role,
		"address":   formatAddress(e.Address),
		"granted":   strconv.FormatBool(e.Granted),
		"timestamp": strconv.FormatInt(e.Timestamp, 10),
	}
	return &types.Event{Type: TypeRoleUpdated, Attributes: attrs}
}
