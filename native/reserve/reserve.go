package reserve

import (
	"encoding/hex"
	"errors"
	"math/big"
	"sync"
	"time"

	"marketd/core/events"
	"marketd/core/types"
	"marketd/native/common"
)

// DefaultCooldown is the minimum time between successful withdrawals.
const DefaultCooldown = 7 * 24 * time.Hour

const EventTypeWithdrawal = "reserve.withdrawal"

var errNilState = errors.New("reserve engine: state not configured")
var errNilLedger = errors.New("reserve engine: token ledger not configured")

// TokenLedger is the capability the treasury consumes to query and move its
// own funds.
type TokenLedger interface {
	BalanceOf(token, addr [20]byte) *big.Int
	Transfer(token, from, to [20]byte, amount *big.Int) error
}

// engineState persists the withdrawal clock across restarts.
type engineState interface {
	ReserveLastWithdrawalGet() (int64, bool)
	ReserveLastWithdrawalPut(ts int64) error
}

type reserveEvent struct {
	evt *types.Event
}

func (e reserveEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e reserveEvent) Event() *types.Event { return e.evt }

// Engine holds marketplace fees on its ledger account and releases them to a
// recipient only after the cooldown has elapsed since the previous release.
// Deposits need no gating: any ledger transfer to the reserve account simply
// raises its balance.
type Engine struct {
	mu       sync.Mutex
	state    engineState
	ledger   TokenLedger
	admin    common.AdminGate
	token    [20]byte
	account  [20]byte
	cooldown time.Duration
	emitter  events.Emitter
	nowFn    func() int64
}

// NewEngine creates a reserve engine bound to one payment token and one
// ledger account, with the default one-week cooldown and a no-op emitter.
func NewEngine(token, account [20]byte) *Engine {
	return &Engine{
		token:    token,
		account:  account,
		cooldown: DefaultCooldown,
		emitter:  events.NoopEmitter{},
		nowFn:    func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTokenLedger configures the fungible-token collaborator.
func (e *Engine) SetTokenLedger(ledger TokenLedger) { e.ledger = ledger }

// SetAdminGate configures the capability consulted by WithdrawTo.
func (e *Engine) SetAdminGate(gate common.AdminGate) { e.admin = gate }

// SetCooldown overrides the withdrawal cooldown. Non-positive values restore
// the default.
func (e *Engine) SetCooldown(d time.Duration) {
	if d <= 0 {
		e.cooldown = DefaultCooldown
		return
	}
	e.cooldown = d
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

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
	e.emitter.Emit(reserveEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// Account returns the reserve's ledger account.
func (e *Engine) Account() [20]byte { return e.account }

// Token returns the payment token the reserve is bound to.
func (e *Engine) Token() [20]byte { return e.token }

// Cooldown returns the configured withdrawal cooldown.
func (e *Engine) Cooldown() time.Duration { return e.cooldown }

// Balance returns the reserve's current ledger balance.
func (e *Engine) Balance() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ledger == nil {
		return big.NewInt(0)
	}
	return e.ledger.BalanceOf(e.token, e.account)
}

// LastWithdrawal returns the timestamp of the most recent successful
// withdrawal. The clock is seeded with the current time on first use, so a
// freshly deployed reserve must wait a full cooldown before releasing funds.
func (e *Engine) LastWithdrawal() (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastWithdrawal()
}

func (e *Engine) lastWithdrawal() (int64, error) {
	if e.state == nil {
		return 0, errNilState
	}
	last, ok := e.state.ReserveLastWithdrawalGet()
	if ok {
		return last, nil
	}
	last = e.now()
	if err := e.state.ReserveLastWithdrawalPut(last); err != nil {
		return 0, err
	}
	return last, nil
}

// WithdrawTo releases accumulated fees to the recipient. Administrator only.
// The cooldown check runs before the recipient and balance checks: a call that
// is too early fails with the cooldown error even when the recipient would
// also be rejected.
func (e *Engine) WithdrawTo(caller, recipient [20]byte, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	if e.admin == nil || !e.admin.IsAdmin(caller) {
		return ErrNotAdmin
	}
	last, err := e.lastWithdrawal()
	if err != nil {
		return err
	}
	now := e.now()
	if now-last < int64(e.cooldown/time.Second) {
		return ErrCooldownActive
	}
	if recipient == ([20]byte{}) {
		return ErrNilRecipient
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrNonPositiveAmount
	}
	if e.ledger.BalanceOf(e.token, e.account).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if err := e.ledger.Transfer(e.token, e.account, recipient, amount); err != nil {
		return err
	}
	if err := e.state.ReserveLastWithdrawalPut(now); err != nil {
		return err
	}
	e.emit(&types.Event{Type: EventTypeWithdrawal, Attributes: map[string]string{
		"recipient": hex.EncodeToString(recipient[:]),
		"amount":    amount.String(),
	}})
	return nil
}
