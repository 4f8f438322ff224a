package market

import (
	"errors"
	"math/big"
	"sync"

	"marketd/core/events"
	"marketd/core/types"
	"marketd/native/common"
)

var (
	errNilState  = errors.New("market engine: state not configured")
	errNilAssets = errors.New("market engine: asset registry not configured")
	errNilLedger = errors.New("market engine: token ledger not configured")
)

// AssetRegistry is the capability set the marketplace consumes from the
// unique-asset collaborator.
type AssetRegistry interface {
	HolderOf(id uint64) ([20]byte, bool)
	IsApprovedForTransfer(id uint64, operator [20]byte) bool
	TransferFrom(operator, from, to [20]byte, id uint64) error
}

// TokenLedger is the capability set the marketplace consumes from the
// fungible-token collaborator.
type TokenLedger interface {
	BalanceOf(token, addr [20]byte) *big.Int
	Allowance(token, owner, spender [20]byte) *big.Int
	TransferFrom(token, spender, from, to [20]byte, amount *big.Int) error
}

// transferPreflight is an optional upgrade on TokenLedger. When available the
// engine validates every settlement leg before moving anything, keeping
// multi-leg matches all-or-nothing even when a leg would fail for reasons the
// balance and allowance checks cannot see (pause switch, exclusion list).
type transferPreflight interface {
	CanTransfer(token, from, to [20]byte, amount *big.Int) error
}

// engineState is the persistence surface the engine requires. The state
// manager implements it.
type engineState interface {
	OrderPut(*Order) error
	OrderGet(id uint64) (*Order, bool)
	PaymentTokenAdd(token [20]byte) error
	PaymentTokenSupported(token [20]byte) bool
	FeeConfigPut(FeeConfig) error
	FeeConfigGet() (FeeConfig, bool)
	FeeRecipientPut(recipient [20]byte) error
	FeeRecipientGet() ([20]byte, bool)
}

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

// Engine is the order lifecycle state machine. It escrows assets into its own
// custody account, matches open orders against buyers, splits the payment
// between seller and fee recipient, and keeps the accepted payment-token set
// and fee configuration.
//
// Operations are serialized behind a single mutex: each one runs to completion
// with every check performed before the first state write, so a failed call
// leaves no partial effects behind.
type Engine struct {
	mu      sync.Mutex
	state   engineState
	assets  AssetRegistry
	ledger  TokenLedger
	admin   common.AdminGate
	custody [20]byte
	emitter events.Emitter
}

// NewEngine creates a marketplace engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAssetRegistry configures the unique-asset collaborator.
func (e *Engine) SetAssetRegistry(assets AssetRegistry) { e.assets = assets }

// SetTokenLedger configures the fungible-token collaborator.
func (e *Engine) SetTokenLedger(ledger TokenLedger) { e.ledger = ledger }

// SetAdminGate configures the capability consulted by administrative
// operations.
func (e *Engine) SetAdminGate(gate common.AdminGate) { e.admin = gate }

// SetCustodyAddress configures the account that holds escrowed assets and
// receives transfer allowances from buyers.
func (e *Engine) SetCustodyAddress(addr [20]byte) { e.custody = addr }

// CustodyAddress returns the engine's escrow account.
func (e *Engine) CustodyAddress() [20]byte { return e.custody }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(marketEvent{evt: event})
}

func (e *Engine) isAdmin(addr [20]byte) bool {
	return e.admin != nil && e.admin.IsAdmin(addr)
}

func (e *Engine) ready() error {
	if e.state == nil {
		return errNilState
	}
	if e.assets == nil {
		return errNilAssets
	}
	if e.ledger == nil {
		return errNilLedger
	}
	return nil
}

// AddPaymentToken registers a fungible token as accepted payment.
// Administrator only; registration is append-only.
func (e *Engine) AddPaymentToken(caller, token [20]byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
	}
	if !e.isAdmin(caller) {
		return ErrNotAdmin
	}
	if token == ([20]byte{}) {
		return ErrNilPaymentToken
	}
	if e.state.PaymentTokenSupported(token) {
		return ErrTokenAlreadySupported
	}
	return e.state.PaymentTokenAdd(token)
}

// IsPaymentTokenSupported reports whether the token is accepted as payment.
func (e *Engine) IsPaymentTokenSupported(token [20]byte) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return false
	}
	return e.state.PaymentTokenSupported(token)
}

// UpdateFee replaces the fee configuration. Both fields change together or
// neither does. Administrator only.
func (e *Engine) UpdateFee(caller [20]byte, rate uint64, decimal uint8) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
	}
	if !e.isAdmin(caller) {
		return ErrNotAdmin
	}
	cfg := FeeConfig{Rate: rate, Decimal: decimal}
	if !cfg.Valid() {
		return ErrBadFeeRate
	}
	if err := e.state.FeeConfigPut(cfg); err != nil {
		return err
	}
	e.emit(NewFeeUpdatedEvent(cfg))
	return nil
}

// FeeConfig returns the current fee configuration.
func (e *Engine) FeeConfig() FeeConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.feeConfig()
}

func (e *Engine) feeConfig() FeeConfig {
	if e.state == nil {
		return FeeConfig{}
	}
	cfg, ok := e.state.FeeConfigGet()
	if !ok {
		return FeeConfig{}
	}
	return cfg
}

// ComputeFee returns the fee owed on a trade at the given price under the
// current configuration.
func (e *Engine) ComputeFee(price *big.Int) *big.Int {
	return ComputeFee(e.FeeConfig(), price)
}

// UpdateFeeRecipient changes the fee-forwarding destination. Administrator
// only.
func (e *Engine) UpdateFeeRecipient(caller, recipient [20]byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
	}
	if !e.isAdmin(caller) {
		return ErrNotAdmin
	}
	if recipient == ([20]byte{}) {
		return ErrNilFeeRecipient
	}
	if err := e.state.FeeRecipientPut(recipient); err != nil {
		return err
	}
	e.emit(NewFeeRecipientUpdatedEvent(recipient))
	return nil
}

// FeeRecipient returns the configured fee-forwarding destination.
func (e *Engine) FeeRecipient() [20]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return [20]byte{}
	}
	recipient, _ := e.state.FeeRecipientGet()
	return recipient
}

// Order returns a copy of the stored order, if any.
func (e *Engine) Order(id uint64) (*Order, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, false
	}
	order, ok := e.state.OrderGet(id)
	if !ok {
		return nil, false
	}
	return order.Clone(), true
}

// AddOrder escrows the seller's asset and creates an open order for it. The
// caller becomes the order's seller and sole cancel authority.
func (e *Engine) AddOrder(seller [20]byte, assetID uint64, paymentToken [20]byte, price *big.Int) (*Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !e.state.PaymentTokenSupported(paymentToken) {
		return nil, ErrTokenNotSupported
	}
	if price == nil || price.Sign() <= 0 {
		return nil, ErrZeroPrice
	}
	holder, ok := e.assets.HolderOf(assetID)
	if !ok {
		return nil, ErrAssetNotFound
	}
	if holder != seller {
		return nil, ErrNotAssetHolder
	}
	if !e.assets.IsApprovedForTransfer(assetID, e.custody) {
		return nil, ErrMarketNotApproved
	}
	if err := e.assets.TransferFrom(e.custody, seller, e.custody, assetID); err != nil {
		return nil, err
	}
	order := &Order{
		AssetID:      assetID,
		Seller:       seller,
		PaymentToken: paymentToken,
		Price:        new(big.Int).Set(price),
		Status:       OrderOpen,
	}
	if err := e.state.OrderPut(order); err != nil {
		return nil, err
	}
	e.emit(NewOrderAddedEvent(order))
	return order.Clone(), nil
}

// CancelOrder returns the escrowed asset to the seller and closes the order.
// Only the seller may cancel; terminal orders cannot be cancelled again.
func (e *Engine) CancelOrder(caller [20]byte, orderID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return err
	}
	order, ok := e.state.OrderGet(orderID)
	if !ok {
		return ErrOrderNotFound
	}
	if order.Seller != caller {
		return ErrNotSeller
	}
	switch order.Status {
	case OrderSoldStatus:
		return ErrOrderBought
	case OrderCanceledStatus:
		return ErrOrderCanceled
	}
	if err := e.assets.TransferFrom(e.custody, e.custody, order.Seller, order.AssetID); err != nil {
		return err
	}
	order.Status = OrderCanceledStatus
	if err := e.state.OrderPut(order); err != nil {
		return err
	}
	e.emit(NewOrderCanceledEvent(order))
	return nil
}

// ExecuteOrder settles an open order for the caller. The fee portion of the
// price moves to the fee recipient, the remainder to the seller, and the
// escrowed asset to the buyer. Every check runs before the first transfer so
// a failed call retains no state from this operation.
func (e *Engine) ExecuteOrder(buyer [20]byte, orderID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return err
	}
	order, ok := e.state.OrderGet(orderID)
	if !ok {
		return ErrOrderNotFound
	}
	switch order.Status {
	case OrderCanceledStatus:
		return ErrOrderCanceled
	case OrderSoldStatus:
		return ErrOrderSold
	}
	if buyer == order.Seller {
		return ErrSelfTrade
	}
	price := order.Price
	if e.ledger.BalanceOf(order.PaymentToken, buyer).Cmp(price) < 0 {
		return ErrInsufficientBalance
	}
	if e.ledger.Allowance(order.PaymentToken, buyer, e.custody).Cmp(price) < 0 {
		return ErrInsufficientAllowance
	}
	recipient, ok := e.state.FeeRecipientGet()
	if !ok || recipient == ([20]byte{}) {
		return ErrNilFeeRecipient
	}
	fee := ComputeFee(e.feeConfig(), price)
	payout := new(big.Int).Sub(price, fee)
	if pf, ok := e.ledger.(transferPreflight); ok {
		if fee.Sign() > 0 {
			if err := pf.CanTransfer(order.PaymentToken, buyer, recipient, fee); err != nil {
				return err
			}
		}
		if payout.Sign() > 0 {
			if err := pf.CanTransfer(order.PaymentToken, buyer, order.Seller, payout); err != nil {
				return err
			}
		}
	}
	if fee.Sign() > 0 {
		if err := e.ledger.TransferFrom(order.PaymentToken, e.custody, buyer, recipient, fee); err != nil {
			return err
		}
	}
	if payout.Sign() > 0 {
		if err := e.ledger.TransferFrom(order.PaymentToken, e.custody, buyer, order.Seller, payout); err != nil {
			return err
		}
	}
	if err := e.assets.TransferFrom(e.custody, e.custody, buyer, order.AssetID); err != nil {
		return err
	}
	order.Status = OrderSoldStatus
	if err := e.state.OrderPut(order); err != nil {
		return err
	}
	e.emit(NewOrderMatchedEvent(order, buyer))
	return nil
}
