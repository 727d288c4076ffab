package rpc

import (
	"net/http"

	"landledger/config"
)

type revenueDepositParams struct {
	From    string `json:"from"`
	AssetID uint64 `json:"assetId"`
	Amount  string `json:"amount"`
}

func (s *Server) handleRevenueDeposit(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params revenueDepositParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	from, err := parseAddress(params.From)
	if err != nil {
		return nil, invalidParams(err)
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return nil, invalidParams(err)
	}
	if err := s.node.DepositRevenue(from, params.AssetID, amount); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

type revenueClaimParams struct {
	Holder  string `json:"holder"`
	AssetID uint64 `json:"assetId"`
}

func (s *Server) handleRevenueClaim(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params revenueClaimParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	holder, err := parseAddress(params.Holder)
	if err != nil {
		return nil, invalidParams(err)
	}
	paid, err := s.node.ClaimRevenue(holder, params.AssetID)
	if err != nil {
		return nil, err
	}
	return map[string]string{"paid": formatAmount(paid)}, nil
}

type revenueClaimBatchParams struct {
	Holder   string   `json:"holder"`
	AssetIDs []uint64 `json:"assetIds"`
}

func (s *Server) handleRevenueClaimBatch(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params revenueClaimBatchParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	holder, err := parseAddress(params.Holder)
	if err != nil {
		return nil, invalidParams(err)
	}
	paid, err := s.node.ClaimRevenueBatch(holder, params.AssetIDs)
	if err != nil {
		return nil, err
	}
	return map[string]string{"paid": formatAmount(paid)}, nil
}

func (s *Server) handleRevenueClaimable(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params revenueClaimParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	holder, err := parseAddress(params.Holder)
	if err != nil {
		return nil, invalidParams(err)
	}
	claimable, err := s.node.Claimable(holder, params.AssetID)
	if err != nil {
		return nil, err
	}
	return map[string]string{"claimable": formatAmount(claimable)}, nil
}

func (s *Server) handleRevenuePool(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params assetIDParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	pool, err := s.node.RevenuePool(params.AssetID)
	if err != nil {
		return nil, err
	}
	return poolResult(pool), nil
}

type revenueEmergencyParams struct {
	Caller    string `json:"caller"`
	AssetID   uint64 `json:"assetId"`
	Recipient string `json:"recipient"`
}

func (s *Server) handleRevenueEmergencyWithdraw(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params revenueEmergencyParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, invalidParams(err)
	}
	recipient, err := parseAddress(params.Recipient)
	if err != nil {
		return nil, invalidParams(err)
	}
	withdrawn, err := s.node.EmergencyWithdrawRevenue(caller, params.AssetID, recipient)
	if err != nil {
		return nil, err
	}
	return map[string]string{"withdrawn": formatAmount(withdrawn)}, nil
}

type revenuePolicyParams struct {
	Caller                    string `json:"caller"`
	MinDepositIntervalSeconds int64  `json:"minDepositIntervalSeconds"`
}

func (s *Server) handleRevenueSetPolicy(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params revenuePolicyParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, invalidParams(err)
	}
	policy := config.RevenuePolicy{MinDepositIntervalSeconds: params.MinDepositIntervalSeconds}
	if err := s.node.SetRevenuePolicy(caller, policy); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}
