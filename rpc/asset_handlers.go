package rpc

import (
	"net/http"
	"strings"

	"marketd/core/types"
)

type assetMintParams struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
}

type assetApproveParams struct {
	Caller   string `json:"caller"`
	Operator string `json:"operator"`
	AssetID  uint64 `json:"assetId"`
}

type assetIDParams struct {
	AssetID uint64 `json:"assetId"`
}

func (s *Server) assetRegistryReady(w http.ResponseWriter, req *RPCRequest) bool {
	if s.assets != nil {
		return true
	}
	writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method_not_found", "asset registry is not exposed")
	return false
}

func (s *Server) handleAssetMint(w http.ResponseWriter, req *RPCRequest) string {
	if !s.assetRegistryReady(w, req) {
		return "error"
	}
	var params assetMintParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	to, err := types.ParseAddress(params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	id, err := s.assets.Mint(caller, to)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return "error"
	}
	writeResult(w, req.ID, map[string]interface{}{
		"assetId": id,
		"holder":  types.FormatAddress(to),
	})
	return "ok"
}

func (s *Server) handleAssetApprove(w http.ResponseWriter, req *RPCRequest) string {
	if !s.assetRegistryReady(w, req) {
		return "error"
	}
	var params assetApproveParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	// An empty operator clears any previous approval.
	var operator [20]byte
	if strings.TrimSpace(params.Operator) != "" {
		operator, err = types.ParseAddress(params.Operator)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
			return "error"
		}
	}
	if err := s.assets.Approve(caller, operator, params.AssetID); err != nil {
		s.writeEngineError(w, req.ID, err)
		return "error"
	}
	writeResult(w, req.ID, map[string]interface{}{
		"assetId":  params.AssetID,
		"operator": types.FormatAddress(operator),
	})
	return "ok"
}

func (s *Server) handleAssetHolderOf(w http.ResponseWriter, req *RPCRequest) string {
	if !s.assetRegistryReady(w, req) {
		return "error"
	}
	var params assetIDParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	holder, ok := s.assets.HolderOf(params.AssetID)
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeInvalidArgument, "not_found", "asset not found")
		return "error"
	}
	writeResult(w, req.ID, map[string]interface{}{
		"assetId": params.AssetID,
		"holder":  types.FormatAddress(holder),
	})
	return "ok"
}
