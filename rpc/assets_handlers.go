package rpc

import (
	"net/http"
)

type assetsRegisterParams struct {
	Caller      string `json:"caller"`
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	MaxShares   string `json:"maxShares"`
	MetadataURI string `json:"metadataURI,omitempty"`
}

func (s *Server) handleAssetsRegister(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params assetsRegisterParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, invalidParams(err)
	}
	maxShares, err := parseAmount(params.MaxShares)
	if err != nil {
		return nil, invalidParams(err)
	}
	asset, err := s.node.RegisterAsset(caller, params.Symbol, params.Name, maxShares, params.MetadataURI)
	if err != nil {
		return nil, err
	}
	return assetResult(asset), nil
}

type assetsMintParams struct {
	Caller  string `json:"caller"`
	AssetID uint64 `json:"assetId"`
	Holder  string `json:"holder"`
	Amount  string `json:"amount"`
}

func (s *Server) handleAssetsMint(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params assetsMintParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, invalidParams(err)
	}
	holder, err := parseAddress(params.Holder)
	if err != nil {
		return nil, invalidParams(err)
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return nil, invalidParams(err)
	}
	if err := s.node.MintShares(caller, params.AssetID, holder, amount); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

type assetsTransferParams struct {
	From    string `json:"from"`
	To      string `json:"to"`
	AssetID uint64 `json:"assetId"`
	Amount  string `json:"amount"`
}

func (s *Server) handleAssetsTransfer(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params assetsTransferParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	from, err := parseAddress(params.From)
	if err != nil {
		return nil, invalidParams(err)
	}
	to, err := parseAddress(params.To)
	if err != nil {
		return nil, invalidParams(err)
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return nil, invalidParams(err)
	}
	if err := s.node.TransferShares(from, to, params.AssetID, amount); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

type assetsBalanceParams struct {
	Holder  string `json:"holder"`
	AssetID uint64 `json:"assetId"`
}

func (s *Server) handleAssetsBalanceOf(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params assetsBalanceParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	holder, err := parseAddress(params.Holder)
	if err != nil {
		return nil, invalidParams(err)
	}
	balance, err := s.node.ShareBalance(holder, params.AssetID)
	if err != nil {
		return nil, err
	}
	return map[string]string{"balance": formatAmount(balance)}, nil
}

type assetIDParams struct {
	AssetID uint64 `json:"assetId"`
}

func (s *Server) handleAssetsGet(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params assetIDParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	asset, err := s.node.GetAsset(params.AssetID)
	if err != nil {
		return nil, err
	}
	return assetResult(asset), nil
}

func (s *Server) handleAssetsList(_ *http.Request, _ *RPCRequest) (interface{}, error) {
	list, err := s.node.ListAssets()
	if err != nil {
		return nil, err
	}
	out := make([]*AssetResult, 0, len(list))
	for _, asset := range list {
		out = append(out, assetResult(asset))
	}
	return out, nil
}

type assetsFlagParams struct {
	Caller  string `json:"caller"`
	AssetID uint64 `json:"assetId"`
	Value   bool   `json:"value"`
}

func (s *Server) handleAssetsSetActive(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params assetsFlagParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, invalidParams(err)
	}
	if err := s.node.SetAssetActive(caller, params.AssetID, params.Value); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleAssetsSetVerified(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params assetsFlagParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, invalidParams(err)
	}
	if err := s.node.SetAssetVerified(caller, params.AssetID, params.Value); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

type assetsUnfreezeParams struct {
	Caller  string `json:"caller"`
	AssetID uint64 `json:"assetId"`
}

func (s *Server) handleAssetsUnfreeze(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params assetsUnfreezeParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, invalidParams(err)
	}
	if err := s.node.UnfreezeAsset(caller, params.AssetID); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}
