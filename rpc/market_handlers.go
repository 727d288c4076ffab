package rpc

import (
	"net/http"
)

type marketListParams struct {
	Seller        string `json:"seller"`
	AssetID       uint64 `json:"assetId"`
	Shares        string `json:"shares"`
	PricePerShare string `json:"pricePerShare"`
}

func (s *Server) handleMarketList(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params marketListParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	seller, err := parseAddress(params.Seller)
	if err != nil {
		return nil, invalidParams(err)
	}
	shares, err := parseAmount(params.Shares)
	if err != nil {
		return nil, invalidParams(err)
	}
	price, err := parseAmount(params.PricePerShare)
	if err != nil {
		return nil, invalidParams(err)
	}
	listingID, err := s.node.ListShares(seller, params.AssetID, shares, price)
	if err != nil {
		return nil, err
	}
	return map[string]uint64{"listingId": listingID}, nil
}

type marketBuyParams struct {
	Buyer        string `json:"buyer"`
	ListingID    uint64 `json:"listingId"`
	Shares       string `json:"shares"`
	OfferedFunds string `json:"offeredFunds"`
}

func (s *Server) handleMarketBuy(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params marketBuyParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	buyer, err := parseAddress(params.Buyer)
	if err != nil {
		return nil, invalidParams(err)
	}
	shares, err := parseAmount(params.Shares)
	if err != nil {
		return nil, invalidParams(err)
	}
	offered, err := parseAmount(params.OfferedFunds)
	if err != nil {
		return nil, invalidParams(err)
	}
	fill, err := s.node.BuyShares(buyer, params.ListingID, shares, offered)
	if err != nil {
		return nil, err
	}
	return fillResult(fill), nil
}

type marketCancelParams struct {
	Caller    string `json:"caller"`
	ListingID uint64 `json:"listingId"`
}

func (s *Server) handleMarketCancel(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params marketCancelParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, invalidParams(err)
	}
	if err := s.node.CancelListing(caller, params.ListingID); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

type marketGetParams struct {
	ListingID uint64 `json:"listingId"`
}

func (s *Server) handleMarketGet(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params marketGetParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	listing, err := s.node.GetListing(params.ListingID)
	if err != nil {
		return nil, err
	}
	return listingResult(listing), nil
}

func (s *Server) handleMarketOpenListings(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params assetIDParams
	if len(req.Params) > 0 {
		if err := decodeParams(req, &params); err != nil {
			return nil, invalidParams(err)
		}
	}
	ids, err := s.node.OpenListings(params.AssetID)
	if err != nil {
		return nil, err
	}
	out := make([]*ListingResult, 0, len(ids))
	for _, id := range ids {
		listing, err := s.node.GetListing(id)
		if err != nil {
			return nil, err
		}
		out = append(out, listingResult(listing))
	}
	return out, nil
}

type marketFeePolicyParams struct {
	Caller    string `json:"caller"`
	FeeBps    uint32 `json:"feeBps"`
	Recipient string `json:"recipient"`
}

func (s *Server) handleMarketSetFeePolicy(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params marketFeePolicyParams
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
	if err := s.node.SetMarketFeePolicy(caller, params.FeeBps, recipient); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleMarketFeePolicy(_ *http.Request, _ *RPCRequest) (interface{}, error) {
	policy, err := s.node.MarketFeePolicy()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"feeBps":    policy.FeeBps,
		"recipient": formatAddress(policy.Recipient),
	}, nil
}
