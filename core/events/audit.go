package events

import (
	"strconv"

	"landledger/core/types"
)

const (
	// TypeAuditCompleted marks a reconciliation run finishing cleanly.
	TypeAuditCompleted = "audit.completed"
	// TypeAuditAnomaly marks a reconciliation failure requiring operator
	// review; the node freezes the named asset in response.
	TypeAuditAnomaly = "audit.anomaly"
)

type AuditCompleted struct {
	RunID     string
	Assets    int
	Anomalies int
	Digest    string
	Timestamp int64
}

func (AuditCompleted) EventType() string { return TypeAuditCompleted }

func (e AuditCompleted) Event() *types.Event {
	attrs := map[string]string{
		"runId":     e.RunID,
		"assets":    strconv.Itoa(e.Assets),
		"anomalies": strconv.Itoa(e.Anomalies),
		"timestamp": strconv.FormatInt(e.Timestamp, 10),
	}
	if e.Digest != "" {
		attrs["digest"] = e.Digest
	}
	return &types.Event{Type: TypeAuditCompleted, Attributes: attrs}
}

type AuditAnomaly struct {
	RunID     string
	AssetID   uint64
	Kind      string
	Detail    string
	Timestamp int64
}

func (AuditAnomaly) EventType() string { return TypeAuditAnomaly }

func (e AuditAnomaly) Event() *types.Event {
	attrs := map[string]string{
		"runId":     e.RunID,
		"assetId":   strconv.FormatUint(e.AssetID, 10),
		"kind":      e.Kind,
		"timestamp": strconv.FormatInt(e.Timestamp, 10),
	}
	if e.Detail != "" {
		attrs["detail"] = e.Detail
	}
	return &types.Event{Type: TypeAuditAnomaly, Attributes: attrs}
}
