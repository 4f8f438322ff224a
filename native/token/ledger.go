package token

import (
	"errors"
	"math/big"
	"sync"

	"marketd/native/common"
)

var errNilState = errors.New("token ledger: state not configured")

// ledgerState is the persistence surface the ledger requires. The state
// manager implements it; tests may substitute an in-memory stand-in.
type ledgerState interface {
	TokenBalance(token, addr [20]byte) *big.Int
	TokenBalancePut(token, addr [20]byte, amount *big.Int) error
	TokenAllowance(token, owner, spender [20]byte) *big.Int
	TokenAllowancePut(token, owner, spender [20]byte, amount *big.Int) error
	TokenPaused(token [20]byte) bool
	TokenPausedPut(token [20]byte, paused bool) error
	TokenBlacklisted(token, addr [20]byte) bool
	TokenBlacklistPut(token, addr [20]byte, listed bool) error
}

// Ledger manages fungible balances and allowance-based transfer authorization
// for any number of payment tokens. Each token carries independent
// administrative controls (pause switch, blacklist) that cause transfers to
// fail without otherwise affecting callers.
type Ledger struct {
	mu    sync.Mutex
	state ledgerState
	admin common.AdminGate
}

// NewLedger creates a ledger without a configured state backend.
func NewLedger() *Ledger {
	return &Ledger{}
}

// SetState configures the state backend used by the ledger.
func (l *Ledger) SetState(state ledgerState) { l.state = state }

// SetAdminGate configures the capability consulted by administrative
// operations.
func (l *Ledger) SetAdminGate(gate common.AdminGate) { l.admin = gate }

func (l *Ledger) isAdmin(addr [20]byte) bool {
	return l.admin != nil && l.admin.IsAdmin(addr)
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// BalanceOf returns the holder's balance in the given token.
func (l *Ledger) BalanceOf(token, addr [20]byte) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == nil {
		return big.NewInt(0)
	}
	return l.state.TokenBalance(token, addr)
}

// Allowance returns the amount the spender may transfer on the owner's behalf.
func (l *Ledger) Allowance(token, owner, spender [20]byte) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == nil {
		return big.NewInt(0)
	}
	return l.state.TokenAllowance(token, owner, spender)
}

// Mint credits freshly issued units to the recipient. Administrator only.
func (l *Ledger) Mint(caller, token, to [20]byte, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == nil {
		return errNilState
	}
	if !l.isAdmin(caller) {
		return ErrUnauthorized
	}
	if to == ([20]byte{}) {
		return ErrNilAccount
	}
	amt := cloneAmount(amount)
	if amt.Sign() <= 0 {
		return ErrNonPositiveAmount
	}
	balance := l.state.TokenBalance(token, to)
	return l.state.TokenBalancePut(token, to, new(big.Int).Add(balance, amt))
}

// Approve grants the spender authority over up to amount of the owner's
// balance. A zero amount revokes a previous grant.
func (l *Ledger) Approve(token, owner, spender [20]byte, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == nil {
		return errNilState
	}
	if owner == ([20]byte{}) || spender == ([20]byte{}) {
		return ErrNilAccount
	}
	amt := cloneAmount(amount)
	if amt.Sign() < 0 {
		return ErrNonPositiveAmount
	}
	return l.state.TokenAllowancePut(token, owner, spender, amt)
}

// Transfer moves units directly between accounts on behalf of the sender.
func (l *Ledger) Transfer(token, from, to [20]byte, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transfer(token, from, to, cloneAmount(amount))
}

// TransferFrom moves units using the spender's allowance on the from account.
func (l *Ledger) TransferFrom(token, spender, from, to [20]byte, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == nil {
		return errNilState
	}
	amt := cloneAmount(amount)
	if amt.Sign() <= 0 {
		return ErrNonPositiveAmount
	}
	allowance := l.state.TokenAllowance(token, from, spender)
	if allowance.Cmp(amt) < 0 {
		return ErrInsufficientAllowance
	}
	if err := l.transfer(token, from, to, amt); err != nil {
		return err
	}
	return l.state.TokenAllowancePut(token, from, spender, new(big.Int).Sub(allowance, amt))
}

// CanTransfer reports whether a transfer between the two accounts would
// currently succeed, without performing it. The marketplace uses this as a
// preflight so multi-leg settlements remain all-or-nothing.
func (l *Ledger) CanTransfer(token, from, to [20]byte, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.checkTransfer(token, from, to, cloneAmount(amount))
}

func (l *Ledger) transfer(token, from, to [20]byte, amt *big.Int) error {
	if err := l.checkTransfer(token, from, to, amt); err != nil {
		return err
	}
	fromBalance := l.state.TokenBalance(token, from)
	toBalance := l.state.TokenBalance(token, to)
	if err := l.state.TokenBalancePut(token, from, new(big.Int).Sub(fromBalance, amt)); err != nil {
		return err
	}
	return l.state.TokenBalancePut(token, to, new(big.Int).Add(toBalance, amt))
}

func (l *Ledger) checkTransfer(token, from, to [20]byte, amt *big.Int) error {
	if l.state == nil {
		return errNilState
	}
	if from == ([20]byte{}) || to == ([20]byte{}) {
		return ErrNilAccount
	}
	if amt.Sign() <= 0 {
		return ErrNonPositiveAmount
	}
	if l.state.TokenPaused(token) {
		return ErrPaused
	}
	if l.state.TokenBlacklisted(token, from) || l.state.TokenBlacklisted(token, to) {
		return ErrBlacklisted
	}
	if l.state.TokenBalance(token, from).Cmp(amt) < 0 {
		return ErrInsufficientBalance
	}
	return nil
}

// Pause halts all transfers of the token. Administrator only.
func (l *Ledger) Pause(caller, token [20]byte) error {
	return l.setPaused(caller, token, true)
}

// Unpause re-enables transfers of the token. Administrator only.
func (l *Ledger) Unpause(caller, token [20]byte) error {
	return l.setPaused(caller, token, false)
}

func (l *Ledger) setPaused(caller, token [20]byte, paused bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == nil {
		return errNilState
	}
	if !l.isAdmin(caller) {
		return ErrUnauthorized
	}
	return l.state.TokenPausedPut(token, paused)
}

// Blacklist excludes the account from sending or receiving the token.
// Administrator only.
func (l *Ledger) Blacklist(caller, token, addr [20]byte) error {
	return l.setBlacklisted(caller, token, addr, true)
}

// Unblacklist removes the account from the token's exclusion list.
// Administrator only.
func (l *Ledger) Unblacklist(caller, token, addr [20]byte) error {
	return l.setBlacklisted(caller, token, addr, false)
}

func (l *Ledger) setBlacklisted(caller, token, addr [20]byte, listed bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == nil {
		return errNilState
	}
	if !l.isAdmin(caller) {
		return ErrUnauthorized
	}
	if addr == ([20]byte{}) {
		return ErrNilAccount
	}
	return l.state.TokenBlacklistPut(token, addr, listed)
}
