package rpc

import (
	"encoding/json"
	"net/http"

	"landledger/archive"
)

// EventHistory is the slice of the event archive the RPC surface needs.
// The in-memory journal only retains a recent window; historical queries go
// through here.
type EventHistory interface {
	Events(query archive.Query) ([]archive.StoredEvent, error)
}

// AttachEventHistory wires the durable event archive into the historical
// query methods. Without it only the journal-backed events_list is served.
func (s *Server) AttachEventHistory(history EventHistory) {
	s.history = history
}

type eventsListParams struct {
	Cursor uint64 `json:"cursor,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

func (s *Server) handleEventsList(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params eventsListParams
	if len(req.Params) > 0 {
		if err := decodeParams(req, &params); err != nil {
			return nil, invalidParams(err)
		}
	}
	records := s.node.Events(params.Cursor, params.Limit)
	return eventResults(records), nil
}

type eventsByAssetParams struct {
	AssetID uint64 `json:"assetId"`
	Type    string `json:"type,omitempty"`
	After   uint64 `json:"after,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// StoredEventResult is one archived event on the wire. Attributes are the
// original event attributes, decoded from the archived JSON.
type StoredEventResult struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	ArchivedAt int64             `json:"archivedAt"`
}

func (s *Server) handleEventsByAsset(_ *http.Request, req *RPCRequest) (interface{}, error) {
	if s.history == nil {
		return nil, &rpcError{status: http.StatusServiceUnavailable, code: codeServerError, message: "event archive not configured"}
	}
	var params eventsByAssetParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	stored, err := s.history.Events(archive.Query{
		Type:    params.Type,
		AssetID: params.AssetID,
		After:   params.After,
		Limit:   params.Limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]StoredEventResult, 0, len(stored))
	for _, evt := range stored {
		attrs := map[string]string{}
		_ = json.Unmarshal([]byte(evt.Attributes), &attrs)
		out = append(out, StoredEventResult{
			Sequence:   evt.Sequence,
			Type:       evt.Type,
			Attributes: attrs,
			ArchivedAt: evt.ArchivedAt.Unix(),
		})
	}
	return out, nil
}
