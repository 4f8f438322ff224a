package rpc

import (
	"net/http"

	"marketd/core/types"
)

type withdrawParams struct {
	Caller    string `json:"caller"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

func (s *Server) handleReserveWithdrawTo(w http.ResponseWriter, req *RPCRequest) string {
	var params withdrawParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	recipient, err := types.ParseAddress(params.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	if err := s.reserve.WithdrawTo(caller, recipient, amount); err != nil {
		s.writeEngineError(w, req.ID, err)
		return "error"
	}
	s.metrics.Withdrawals.Inc()
	writeResult(w, req.ID, map[string]interface{}{
		"recipient": types.FormatAddress(recipient),
		"amount":    amount.String(),
		"balance":   s.reserve.Balance().String(),
	})
	return "ok"
}

func (s *Server) handleReserveInfo(w http.ResponseWriter, req *RPCRequest) string {
	last, err := s.reserve.LastWithdrawal()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeInternal, "internal", err.Error())
		return "error"
	}
	writeResult(w, req.ID, map[string]interface{}{
		"account":         types.FormatAddress(s.reserve.Account()),
		"token":           types.FormatAddress(s.reserve.Token()),
		"balance":         s.reserve.Balance().String(),
		"lastWithdrawal":  last,
		"cooldownSeconds": int64(s.reserve.Cooldown().Seconds()),
	})
	return "ok"
}
