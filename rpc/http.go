package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"marketd/core/types"
	"marketd/native/asset"
	"marketd/native/market"
	"marketd/native/reserve"
	"marketd/native/token"
	"marketd/observability"
)

const (
	codeInvalidParams     = -32602
	codeMethodNotFound    = -32601
	codeUnauthorized      = -32021
	codeInvalidArgument   = -32022
	codeInvalidState      = -32023
	codeInsufficientFunds = -32024
	codeTooEarly          = -32025
	codeInternal          = -32000
)

// Server exposes the marketplace and treasury engines over a single JSON-RPC
// POST endpoint, plus a Prometheus scrape endpoint.
type Server struct {
	market  *market.Engine
	reserve *reserve.Engine
	ledger  *token.Ledger
	assets  *asset.Registry
	logger  *slog.Logger
	metrics *observability.MarketMetrics
	limiter *rate.Limiter
}

// NewServer wires the engines into an RPC server. A nil logger falls back to
// the process default.
func NewServer(marketEngine *market.Engine, reserveEngine *reserve.Engine, logger *slog.Logger, requestsPerMinute float64, burst int) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = 600
	}
	if burst <= 0 {
		burst = 20
	}
	return &Server{
		market:  marketEngine,
		reserve: reserveEngine,
		logger:  logger,
		metrics: observability.Metrics(),
		limiter: rate.NewLimiter(rate.Limit(requestsPerMinute/60.0), burst),
	}
}

// SetTokenLedger exposes the fungible-token operations (mint, approve,
// transfer, balance) over RPC. Without a ledger the token_* methods report
// method_not_found.
func (s *Server) SetTokenLedger(ledger *token.Ledger) { s.ledger = ledger }

// SetAssetRegistry exposes the unique-asset operations (mint, approve,
// holder lookup) over RPC. Without a registry the asset_* methods report
// method_not_found.
func (s *Server) SetAssetRegistry(registry *asset.Registry) { s.assets = registry }

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.throttle)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handleRPC)
	return r
}

// ListenAndServe runs the server on the given address until it fails.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}
	return srv.ListenAndServe()
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RPCRequest is the JSON-RPC 2.0 request envelope.
type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      interface{}       `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

// RPCError is the JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message, Data: data}})
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req RPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeInvalidParams, "invalid_request", err.Error())
		return
	}
	start := time.Now()
	outcome := "ok"
	switch req.Method {
	case "market_addOrder":
		outcome = s.handleMarketAddOrder(w, &req)
	case "market_cancelOrder":
		outcome = s.handleMarketCancelOrder(w, &req)
	case "market_executeOrder":
		outcome = s.handleMarketExecuteOrder(w, &req)
	case "market_getOrder":
		outcome = s.handleMarketGetOrder(w, &req)
	case "market_addPaymentToken":
		outcome = s.handleMarketAddPaymentToken(w, &req)
	case "market_isPaymentTokenSupported":
		outcome = s.handleMarketIsPaymentTokenSupported(w, &req)
	case "market_updateFee":
		outcome = s.handleMarketUpdateFee(w, &req)
	case "market_updateFeeRecipient":
		outcome = s.handleMarketUpdateFeeRecipient(w, &req)
	case "reserve_withdrawTo":
		outcome = s.handleReserveWithdrawTo(w, &req)
	case "reserve_info":
		outcome = s.handleReserveInfo(w, &req)
	case "token_mint":
		outcome = s.handleTokenMint(w, &req)
	case "token_approve":
		outcome = s.handleTokenApprove(w, &req)
	case "token_transfer":
		outcome = s.handleTokenTransfer(w, &req)
	case "token_balanceOf":
		outcome = s.handleTokenBalanceOf(w, &req)
	case "asset_mint":
		outcome = s.handleAssetMint(w, &req)
	case "asset_approve":
		outcome = s.handleAssetApprove(w, &req)
	case "asset_holderOf":
		outcome = s.handleAssetHolderOf(w, &req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method_not_found", req.Method)
		outcome = "error"
	}
	s.metrics.RPCRequests.WithLabelValues(req.Method, outcome).Inc()
	s.metrics.RPCLatency.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount must be provided")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}

// writeEngineError maps an engine failure to the RPC error taxonomy. The
// engine's exact reason string travels in the message so clients see the same
// stable text the engines produce.
func (s *Server) writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	status := http.StatusInternalServerError
	code := codeInternal
	switch {
	case errors.Is(err, market.ErrUnauthorized), errors.Is(err, reserve.ErrUnauthorized):
		status, code = http.StatusForbidden, codeUnauthorized
	case errors.Is(err, market.ErrInvalidArgument), errors.Is(err, reserve.ErrInvalidArgument):
		status, code = http.StatusBadRequest, codeInvalidArgument
	case errors.Is(err, market.ErrInvalidState):
		status, code = http.StatusConflict, codeInvalidState
	case errors.Is(err, market.ErrInsufficientFunds), errors.Is(err, reserve.ErrInsufficientFunds):
		status, code = http.StatusConflict, codeInsufficientFunds
	case errors.Is(err, reserve.ErrTooEarly):
		status, code = http.StatusConflict, codeTooEarly
	case errors.Is(err, token.ErrUnauthorized), errors.Is(err, token.ErrInsufficientAllowance),
		errors.Is(err, asset.ErrUnauthorized), errors.Is(err, asset.ErrNotHolder):
		status, code = http.StatusForbidden, codeUnauthorized
	case errors.Is(err, token.ErrPaused), errors.Is(err, token.ErrBlacklisted):
		status, code = http.StatusConflict, codeInvalidState
	case errors.Is(err, token.ErrInsufficientBalance):
		status, code = http.StatusConflict, codeInsufficientFunds
	case errors.Is(err, token.ErrNilAccount), errors.Is(err, token.ErrNonPositiveAmount),
		errors.Is(err, asset.ErrNilAccount), errors.Is(err, asset.ErrNotFound):
		status, code = http.StatusBadRequest, codeInvalidArgument
	}
	s.logger.Info("rpc request rejected", slog.String("reason", err.Error()))
	writeError(w, status, id, code, err.Error(), nil)
}

func formatOrder(order *market.Order) map[string]interface{} {
	return map[string]interface{}{
		"orderId":      order.ID(),
		"assetId":      order.AssetID,
		"seller":       types.FormatAddress(order.Seller),
		"paymentToken": types.FormatAddress(order.PaymentToken),
		"price":        order.Price.String(),
		"status":       order.Status.String(),
	}
}
