package rpc

import (
	"net/http"

	"marketd/core/types"
)

type addOrderParams struct {
	Seller       string `json:"seller"`
	AssetID      uint64 `json:"assetId"`
	PaymentToken string `json:"paymentToken"`
	Price        string `json:"price"`
}

type orderIDParams struct {
	Caller  string `json:"caller,omitempty"`
	OrderID uint64 `json:"orderId"`
}

type paymentTokenParams struct {
	Caller string `json:"caller,omitempty"`
	Token  string `json:"token"`
}

type updateFeeParams struct {
	Caller  string `json:"caller"`
	Rate    uint64 `json:"rate"`
	Decimal uint8  `json:"decimal"`
}

type updateFeeRecipientParams struct {
	Caller    string `json:"caller"`
	Recipient string `json:"recipient"`
}

func (s *Server) handleMarketAddOrder(w http.ResponseWriter, req *RPCRequest) string {
	var params addOrderParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	seller, err := types.ParseAddress(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	paymentToken, err := types.ParseAddress(params.PaymentToken)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	price, err := parseAmount(params.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	order, err := s.market.AddOrder(seller, params.AssetID, paymentToken, price)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return "error"
	}
	s.metrics.OrdersAdded.Inc()
	writeResult(w, req.ID, formatOrder(order))
	return "ok"
}

func (s *Server) handleMarketCancelOrder(w http.ResponseWriter, req *RPCRequest) string {
	var params orderIDParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	if err := s.market.CancelOrder(caller, params.OrderID); err != nil {
		s.writeEngineError(w, req.ID, err)
		return "error"
	}
	s.metrics.OrdersCanceled.Inc()
	writeResult(w, req.ID, map[string]interface{}{"orderId": params.OrderID, "status": "canceled"})
	return "ok"
}

func (s *Server) handleMarketExecuteOrder(w http.ResponseWriter, req *RPCRequest) string {
	var params orderIDParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	buyer, err := types.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	if err := s.market.ExecuteOrder(buyer, params.OrderID); err != nil {
		s.writeEngineError(w, req.ID, err)
		return "error"
	}
	order, ok := s.market.Order(params.OrderID)
	if !ok {
		writeError(w, http.StatusInternalServerError, req.ID, codeInternal, "internal", "order disappeared after settlement")
		return "error"
	}
	s.metrics.OrdersMatched.Inc()
	s.metrics.ObserveFee(s.market.ComputeFee(order.Price))
	writeResult(w, req.ID, formatOrder(order))
	return "ok"
}

func (s *Server) handleMarketGetOrder(w http.ResponseWriter, req *RPCRequest) string {
	var params orderIDParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	order, ok := s.market.Order(params.OrderID)
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeInvalidArgument, "not_found", "order not found")
		return "error"
	}
	writeResult(w, req.ID, formatOrder(order))
	return "ok"
}

func (s *Server) handleMarketAddPaymentToken(w http.ResponseWriter, req *RPCRequest) string {
	var params paymentTokenParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	token, err := types.ParseAddress(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	if err := s.market.AddPaymentToken(caller, token); err != nil {
		s.writeEngineError(w, req.ID, err)
		return "error"
	}
	writeResult(w, req.ID, map[string]interface{}{"token": types.FormatAddress(token), "supported": true})
	return "ok"
}

func (s *Server) handleMarketIsPaymentTokenSupported(w http.ResponseWriter, req *RPCRequest) string {
	var params paymentTokenParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	token, err := types.ParseAddress(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	writeResult(w, req.ID, map[string]interface{}{
		"token":     types.FormatAddress(token),
		"supported": s.market.IsPaymentTokenSupported(token),
	})
	return "ok"
}

func (s *Server) handleMarketUpdateFee(w http.ResponseWriter, req *RPCRequest) string {
	var params updateFeeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	if err := s.market.UpdateFee(caller, params.Rate, params.Decimal); err != nil {
		s.writeEngineError(w, req.ID, err)
		return "error"
	}
	writeResult(w, req.ID, map[string]interface{}{"rate": params.Rate, "decimal": params.Decimal})
	return "ok"
}

func (s *Server) handleMarketUpdateFeeRecipient(w http.ResponseWriter, req *RPCRequest) string {
	var params updateFeeRecipientParams
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
	if err := s.market.UpdateFeeRecipient(caller, recipient); err != nil {
		s.writeEngineError(w, req.ID, err)
		return "error"
	}
	writeResult(w, req.ID, map[string]interface{}{"recipient": types.FormatAddress(recipient)})
	return "ok"
}
