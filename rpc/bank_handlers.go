package rpc

import (
	"net/http"
)

type bankBalanceParams struct {
	Address string `json:"address"`
}

func (s *Server) handleBankBalance(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params bankBalanceParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		return nil, invalidParams(err)
	}
	account, err := s.node.FundsBalance(addr)
	if err != nil {
		return nil, err
	}
	return &BalanceResult{
		Address: params.Address,
		Balance: formatAmount(account.Balance),
		Nonce:   account.Nonce,
	}, nil
}

type bankTransferParams struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Server) handleBankTransfer(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params bankTransferParams
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
	if err := s.node.TransferFunds(from, to, amount); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

type bankMintParams struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Server) handleBankMint(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params bankMintParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	caller, err := parseAddress(params.Caller)
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
	if err := s.node.MintFunds(caller, to, amount); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}
