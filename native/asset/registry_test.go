package asset_test

import (
	"errors"
	"testing"

	"marketd/native/asset"
	"marketd/native/common"
	"marketd/state"
	"marketd/storage"
)

func addr(fill byte) [20]byte {
	var a [20]byte
	for i := range a {
		a[i] = fill
	}
	return a
}

func newRegistry(t *testing.T, admin [20]byte) *asset.Registry {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	reg := asset.NewRegistry()
	reg.SetState(state.NewManager(db))
	reg.SetAdminGate(common.NewSingleOwner(admin))
	return reg
}

func TestMintSequentialIDs(t *testing.T) {
	admin := addr(0x01)
	alice := addr(0x02)
	reg := newRegistry(t, admin)

	if _, err := reg.Mint(alice, alice); !errors.Is(err, asset.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := reg.Mint(admin, [20]byte{}); !errors.Is(err, asset.ErrNilAccount) {
		t.Fatalf("expected ErrNilAccount, got %v", err)
	}
	first, err := reg.Mint(admin, alice)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	second, err := reg.Mint(admin, alice)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if first != 1 || second != 2 {
		t.Fatalf("ids = %d, %d, want 1, 2", first, second)
	}
	if got := reg.BalanceOf(alice); got != 2 {
		t.Fatalf("BalanceOf = %d, want 2", got)
	}
	holder, ok := reg.HolderOf(first)
	if !ok || holder != alice {
		t.Fatalf("HolderOf(%d) = %x, %v", first, holder, ok)
	}
	if _, ok := reg.HolderOf(99); ok {
		t.Fatal("HolderOf(99) should not resolve")
	}
}

func TestTransferByHolder(t *testing.T) {
	admin := addr(0x01)
	alice := addr(0x02)
	bob := addr(0x03)
	reg := newRegistry(t, admin)

	id, err := reg.Mint(admin, alice)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if err := reg.TransferFrom(bob, alice, bob, id); !errors.Is(err, asset.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := reg.TransferFrom(alice, alice, bob, id); err != nil {
		t.Fatalf("TransferFrom: %v", err)
	}
	holder, _ := reg.HolderOf(id)
	if holder != bob {
		t.Fatalf("holder = %x, want bob", holder)
	}
	if got := reg.BalanceOf(alice); got != 0 {
		t.Fatalf("alice balance = %d, want 0", got)
	}
	if got := reg.BalanceOf(bob); got != 1 {
		t.Fatalf("bob balance = %d, want 1", got)
	}
}

func TestTransferByApprovedOperator(t *testing.T) {
	admin := addr(0x01)
	alice := addr(0x02)
	bob := addr(0x03)
	operator := addr(0x04)
	reg := newRegistry(t, admin)

	id, err := reg.Mint(admin, alice)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if err := reg.Approve(bob, operator, id); !errors.Is(err, asset.ErrNotHolder) {
		t.Fatalf("expected ErrNotHolder, got %v", err)
	}
	if err := reg.Approve(alice, operator, id); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if !reg.IsApprovedForTransfer(id, operator) {
		t.Fatal("operator should be approved")
	}
	if err := reg.TransferFrom(operator, alice, bob, id); err != nil {
		t.Fatalf("TransferFrom: %v", err)
	}
	// Transfer clears the approval.
	if reg.IsApprovedForTransfer(id, operator) {
		t.Fatal("approval should be cleared after transfer")
	}
	if err := reg.TransferFrom(operator, bob, alice, id); !errors.Is(err, asset.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized after approval cleared, got %v", err)
	}
}

func TestApproveZeroClears(t *testing.T) {
	admin := addr(0x01)
	alice := addr(0x02)
	operator := addr(0x04)
	reg := newRegistry(t, admin)

	id, err := reg.Mint(admin, alice)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if err := reg.Approve(alice, operator, id); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err := reg.Approve(alice, [20]byte{}, id); err != nil {
		t.Fatalf("Approve clear: %v", err)
	}
	if reg.IsApprovedForTransfer(id, operator) {
		t.Fatal("approval should be cleared")
	}
}

func TestTransferUnknownAsset(t *testing.T) {
	admin := addr(0x01)
	alice := addr(0x02)
	reg := newRegistry(t, admin)

	if err := reg.TransferFrom(alice, alice, addr(0x03), 42); !errors.Is(err, asset.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
