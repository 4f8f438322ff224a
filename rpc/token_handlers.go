package rpc

import (
	"net/http"

	"marketd/core/types"
)

type tokenMintParams struct {
	Caller string `json:"caller"`
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type tokenApproveParams struct {
	Token   string `json:"token"`
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type tokenTransferParams struct {
	Token  string `json:"token"`
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type tokenBalanceParams struct {
	Token   string `json:"token"`
	Account string `json:"account"`
}

func (s *Server) tokenLedgerReady(w http.ResponseWriter, req *RPCRequest) bool {
	if s.ledger != nil {
		return true
	}
	writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method_not_found", "token ledger is not exposed")
	return false
}

func (s *Server) handleTokenMint(w http.ResponseWriter, req *RPCRequest) string {
	if !s.tokenLedgerReady(w, req) {
		return "error"
	}
	var params tokenMintParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	tokenAddr, err := types.ParseAddress(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	to, err := types.ParseAddress(params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	if err := s.ledger.Mint(caller, tokenAddr, to, amount); err != nil {
		s.writeEngineError(w, req.ID, err)
		return "error"
	}
	writeResult(w, req.ID, map[string]interface{}{
		"token":   types.FormatAddress(tokenAddr),
		"account": types.FormatAddress(to),
		"balance": s.ledger.BalanceOf(tokenAddr, to).String(),
	})
	return "ok"
}

func (s *Server) handleTokenApprove(w http.ResponseWriter, req *RPCRequest) string {
	if !s.tokenLedgerReady(w, req) {
		return "error"
	}
	var params tokenApproveParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	tokenAddr, err := types.ParseAddress(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	owner, err := types.ParseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	spender, err := types.ParseAddress(params.Spender)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	if err := s.ledger.Approve(tokenAddr, owner, spender, amount); err != nil {
		s.writeEngineError(w, req.ID, err)
		return "error"
	}
	writeResult(w, req.ID, map[string]interface{}{
		"token":     types.FormatAddress(tokenAddr),
		"owner":     types.FormatAddress(owner),
		"spender":   types.FormatAddress(spender),
		"allowance": s.ledger.Allowance(tokenAddr, owner, spender).String(),
	})
	return "ok"
}

func (s *Server) handleTokenTransfer(w http.ResponseWriter, req *RPCRequest) string {
	if !s.tokenLedgerReady(w, req) {
		return "error"
	}
	var params tokenTransferParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	tokenAddr, err := types.ParseAddress(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	from, err := types.ParseAddress(params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	to, err := types.ParseAddress(params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	if err := s.ledger.Transfer(tokenAddr, from, to, amount); err != nil {
		s.writeEngineError(w, req.ID, err)
		return "error"
	}
	writeResult(w, req.ID, map[string]interface{}{
		"token":  types.FormatAddress(tokenAddr),
		"from":   types.FormatAddress(from),
		"to":     types.FormatAddress(to),
		"amount": amount.String(),
	})
	return "ok"
}

func (s *Server) handleTokenBalanceOf(w http.ResponseWriter, req *RPCRequest) string {
	if !s.tokenLedgerReady(w, req) {
		return "error"
	}
	var params tokenBalanceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	tokenAddr, err := types.ParseAddress(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	account, err := types.ParseAddress(params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	writeResult(w, req.ID, map[string]interface{}{
		"token":   types.FormatAddress(tokenAddr),
		"account": types.FormatAddress(account),
		"balance": s.ledger.BalanceOf(tokenAddr, account).String(),
	})
	return "ok"
}
