package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"marketd/config"
	"marketd/core/events"
	coretypes "marketd/core/types"
	"marketd/native/asset"
	"marketd/native/common"
	"marketd/native/market"
	"marketd/native/reserve"
	"marketd/native/token"
	"marketd/observability/logging"
	"marketd/rpc"
	"marketd/state"
	"marketd/storage"
)

// logEmitter forwards engine events to the structured logger.
type logEmitter struct {
	logger *slog.Logger
}

type attributedEvent interface {
	events.Event
	Event() *coretypes.Event
}

func (l logEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	args := []any{slog.String("type", evt.EventType())}
	if carrier, ok := evt.(attributedEvent); ok {
		if payload := carrier.Event(); payload != nil {
			for key, value := range payload.Attributes {
				args = append(args, slog.String(key, value))
			}
		}
	}
	l.logger.Info("event", args...)
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("MARKETD_ENV"))
	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	logger := logging.Setup("marketd", env, logging.Options{File: cfg.LogFile, MaxSizeMB: 64, MaxBackups: 4})

	adminAddr := mustAddress(logger, "AdminAddress", cfg.AdminAddress)
	custodyAddr := mustAddress(logger, "CustodyAddress", cfg.CustodyAddress)
	reserveAddr := mustAddress(logger, "ReserveAddress", cfg.ReserveAddress)
	recipientAddr := reserveAddr
	if strings.TrimSpace(cfg.FeeRecipient) != "" {
		recipientAddr = mustAddress(logger, "FeeRecipient", cfg.FeeRecipient)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		logger.Error("Failed to open state database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	mgr := state.NewManager(db)
	gate := common.NewSingleOwner(adminAddr)
	emitter := logEmitter{logger: logger}

	ledger := token.NewLedger()
	ledger.SetState(mgr)
	ledger.SetAdminGate(gate)

	registry := asset.NewRegistry()
	registry.SetState(mgr)
	registry.SetAdminGate(gate)

	marketEngine := market.NewEngine()
	marketEngine.SetState(mgr)
	marketEngine.SetAssetRegistry(registry)
	marketEngine.SetTokenLedger(ledger)
	marketEngine.SetAdminGate(gate)
	marketEngine.SetCustodyAddress(custodyAddr)
	marketEngine.SetEmitter(emitter)

	if _, ok := mgr.FeeConfigGet(); !ok {
		if err := marketEngine.UpdateFee(adminAddr, cfg.FeeRate, cfg.FeeDecimal); err != nil {
			logger.Error("Failed to seed fee configuration", slog.Any("error", err))
			os.Exit(1)
		}
	}
	if _, ok := mgr.FeeRecipientGet(); !ok {
		if err := marketEngine.UpdateFeeRecipient(adminAddr, recipientAddr); err != nil {
			logger.Error("Failed to seed fee recipient", slog.Any("error", err))
			os.Exit(1)
		}
	}
	var reserveToken [20]byte
	for _, raw := range cfg.PaymentTokens {
		tokenAddr := mustAddress(logger, "PaymentTokens", raw)
		if reserveToken == ([20]byte{}) {
			reserveToken = tokenAddr
		}
		if marketEngine.IsPaymentTokenSupported(tokenAddr) {
			continue
		}
		if err := marketEngine.AddPaymentToken(adminAddr, tokenAddr); err != nil {
			logger.Error("Failed to register payment token", slog.Any("error", err))
			os.Exit(1)
		}
	}

	reserveEngine := reserve.NewEngine(reserveToken, reserveAddr)
	reserveEngine.SetState(mgr)
	reserveEngine.SetTokenLedger(ledger)
	reserveEngine.SetAdminGate(gate)
	reserveEngine.SetCooldown(time.Duration(cfg.WithdrawCooldownSeconds) * time.Second)
	reserveEngine.SetEmitter(emitter)
	if _, err := reserveEngine.LastWithdrawal(); err != nil {
		logger.Error("Failed to seed withdrawal clock", slog.Any("error", err))
		os.Exit(1)
	}

	server := rpc.NewServer(marketEngine, reserveEngine, logger, cfg.RPCRequestsPerMinute, cfg.RPCBurst)
	server.SetTokenLedger(ledger)
	server.SetAssetRegistry(registry)
	logger.Info("RPC server listening", slog.String("address", cfg.RPCAddress))
	if err := server.ListenAndServe(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func mustAddress(logger *slog.Logger, field, raw string) [20]byte {
	addr, err := coretypes.ParseAddress(raw)
	if err != nil {
		logger.Error("Invalid address in configuration", slog.String("field", field), slog.Any("error", err))
		os.Exit(1)
	}
	return addr
}
