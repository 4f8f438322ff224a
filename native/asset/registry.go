package asset

import (
	"errors"
	"sync"

	"marketd/native/common"
)

var (
	ErrUnauthorized = errors.New("asset: unauthorized")
	ErrNotFound     = errors.New("asset: unknown asset")
	ErrNotHolder    = errors.New("asset: sender is not the holder")
	ErrNilAccount   = errors.New("asset: account is the zero address")
)

var errNilState = errors.New("asset registry: state not configured")

// registryState is the persistence surface the registry requires.
type registryState interface {
	AssetHolder(id uint64) ([20]byte, bool)
	AssetHolderPut(id uint64, holder [20]byte) error
	AssetApproval(id uint64) ([20]byte, bool)
	AssetApprovalPut(id uint64, operator [20]byte) error
	AssetNextID() uint64
	AssetNextIDPut(id uint64) error
	AssetHolderCount(addr [20]byte) uint64
	AssetHolderCountPut(addr [20]byte, count uint64) error
}

// Registry tracks custody of unique assets: who holds each asset and which
// single operator, if any, is approved to transfer it on the holder's behalf.
// Approvals are cleared on every transfer.
type Registry struct {
	mu    sync.Mutex
	state registryState
	admin common.AdminGate
}

// NewRegistry creates a registry without a configured state backend.
func NewRegistry() *Registry {
	return &Registry{}
}

// SetState configures the state backend used by the registry.
func (r *Registry) SetState(state registryState) { r.state = state }

// SetAdminGate configures the capability consulted by Mint.
func (r *Registry) SetAdminGate(gate common.AdminGate) { r.admin = gate }

// Mint issues a new asset to the recipient and returns its identifier.
// Identifiers are sequential starting at 1. Administrator only.
func (r *Registry) Mint(caller, to [20]byte) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return 0, errNilState
	}
	if r.admin == nil || !r.admin.IsAdmin(caller) {
		return 0, ErrUnauthorized
	}
	if to == ([20]byte{}) {
		return 0, ErrNilAccount
	}
	id := r.state.AssetNextID() + 1
	if err := r.state.AssetHolderPut(id, to); err != nil {
		return 0, err
	}
	if err := r.state.AssetHolderCountPut(to, r.state.AssetHolderCount(to)+1); err != nil {
		return 0, err
	}
	if err := r.state.AssetNextIDPut(id); err != nil {
		return 0, err
	}
	return id, nil
}

// HolderOf returns the current custodian of the asset.
func (r *Registry) HolderOf(id uint64) ([20]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return [20]byte{}, false
	}
	return r.state.AssetHolder(id)
}

// BalanceOf returns the number of assets currently held by the address.
func (r *Registry) BalanceOf(addr [20]byte) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return 0
	}
	return r.state.AssetHolderCount(addr)
}

// Approve grants the operator authority to transfer the asset. Only the
// current holder may grant it; a zero operator clears the approval.
func (r *Registry) Approve(caller, operator [20]byte, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return errNilState
	}
	holder, ok := r.state.AssetHolder(id)
	if !ok {
		return ErrNotFound
	}
	if holder != caller {
		return ErrNotHolder
	}
	return r.state.AssetApprovalPut(id, operator)
}

// IsApprovedForTransfer reports whether the operator holds a transfer approval
// for the asset.
func (r *Registry) IsApprovedForTransfer(id uint64, operator [20]byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil || operator == ([20]byte{}) {
		return false
	}
	approved, ok := r.state.AssetApproval(id)
	return ok && approved == operator
}

// TransferFrom moves the asset from its holder to the recipient. The operator
// must be the holder or the approved operator for the asset. Any approval is
// cleared by the transfer.
func (r *Registry) TransferFrom(operator, from, to [20]byte, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return errNilState
	}
	holder, ok := r.state.AssetHolder(id)
	if !ok {
		return ErrNotFound
	}
	if holder != from {
		return ErrNotHolder
	}
	if to == ([20]byte{}) {
		return ErrNilAccount
	}
	if operator != holder {
		approved, ok := r.state.AssetApproval(id)
		if !ok || approved != operator {
			return ErrUnauthorized
		}
	}
	if err := r.state.AssetHolderPut(id, to); err != nil {
		return err
	}
	if err := r.state.AssetApprovalPut(id, [20]byte{}); err != nil {
		return err
	}
	if from != to {
		if count := r.state.AssetHolderCount(from); count > 0 {
			if err := r.state.AssetHolderCountPut(from, count-1); err != nil {
				return err
			}
		}
		if err := r.state.AssetHolderCountPut(to, r.state.AssetHolderCount(to)+1); err != nil {
			return err
		}
	}
	return nil
}
