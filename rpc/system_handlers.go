package rpc

import (
	"net/http"
)

type systemPauseParams struct {
	Caller string `json:"caller"`
	Module string `json:"module"`
}

func (s *Server) handleSystemPause(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params systemPauseParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, invalidParams(err)
	}
	if err := s.node.PauseModule(caller, params.Module); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleSystemResume(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params systemPauseParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, invalidParams(err)
	}
	if err := s.node.ResumeModule(caller, params.Module); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleSystemPauses(_ *http.Request, _ *RPCRequest) (interface{}, error) {
	pauses := s.node.Pauses()
	return map[string]bool{
		"assets":  pauses.Assets,
		"market":  pauses.Market,
		"revenue": pauses.Revenue,
	}, nil
}

type systemRoleParams struct {
	Caller  string `json:"caller"`
	Role    string `json:"role"`
	Address string `json:"address"`
}

func (s *Server) handleSystemGrantRole(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params systemRoleParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, invalidParams(err)
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		return nil, invalidParams(err)
	}
	if err := s.node.GrantRole(caller, params.Role, addr); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleSystemRevokeRole(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params systemRoleParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		return nil, invalidParams(err)
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		return nil, invalidParams(err)
	}
	if err := s.node.RevokeRole(caller, params.Role, addr); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

type systemRoleMembersParams struct {
	Role string `json:"role"`
}

func (s *Server) handleSystemRoleMembers(_ *http.Request, req *RPCRequest) (interface{}, error) {
	var params systemRoleMembersParams
	if err := decodeParams(req, &params); err != nil {
		return nil, invalidParams(err)
	}
	members, err := s.node.RoleMembers(params.Role)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(members))
	for _, member := range members {
		out = append(out, formatAddress(member))
	}
	return map[string]interface{}{"role": params.Role, "members": out}, nil
}
