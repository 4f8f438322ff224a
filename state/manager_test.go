package state_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"marketd/native/market"
	"marketd/state"
	"marketd/storage"
)

func newManager(t *testing.T) *state.Manager {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	return state.NewManager(db)
}

func testAddr(fill byte) [20]byte {
	var a [20]byte
	for i := range a {
		a[i] = fill
	}
	return a
}

func TestOrderRoundTrip(t *testing.T) {
	mgr := newManager(t)

	_, ok := mgr.OrderGet(7)
	require.False(t, ok)

	order := &market.Order{
		AssetID:      7,
		Seller:       testAddr(0x02),
		PaymentToken: testAddr(0x60),
		Price:        big.NewInt(12345),
		Status:       market.OrderOpen,
	}
	require.NoError(t, mgr.OrderPut(order))

	got, ok := mgr.OrderGet(7)
	require.True(t, ok)
	require.Equal(t, order.AssetID, got.AssetID)
	require.Equal(t, order.Seller, got.Seller)
	require.Equal(t, order.PaymentToken, got.PaymentToken)
	require.Zero(t, order.Price.Cmp(got.Price))
	require.Equal(t, market.OrderOpen, got.Status)

	// Mutating the loaded copy must not leak into storage.
	got.Status = market.OrderSoldStatus
	got.Price.SetInt64(1)
	again, ok := mgr.OrderGet(7)
	require.True(t, ok)
	require.Equal(t, market.OrderOpen, again.Status)
	require.Zero(t, again.Price.Cmp(big.NewInt(12345)))
}

func TestOrderPutNil(t *testing.T) {
	mgr := newManager(t)
	require.Error(t, mgr.OrderPut(nil))
}

func TestOrderStatusPersists(t *testing.T) {
	mgr := newManager(t)
	order := &market.Order{
		AssetID:      1,
		Seller:       testAddr(0x02),
		PaymentToken: testAddr(0x60),
		Price:        big.NewInt(10),
		Status:       market.OrderOpen,
	}
	require.NoError(t, mgr.OrderPut(order))
	order.Status = market.OrderCanceledStatus
	require.NoError(t, mgr.OrderPut(order))

	got, ok := mgr.OrderGet(1)
	require.True(t, ok)
	require.Equal(t, market.OrderCanceledStatus, got.Status)
}

func TestPaymentTokenRegistry(t *testing.T) {
	mgr := newManager(t)
	gold := testAddr(0x60)
	require.False(t, mgr.PaymentTokenSupported(gold))
	require.NoError(t, mgr.PaymentTokenAdd(gold))
	require.True(t, mgr.PaymentTokenSupported(gold))
	require.False(t, mgr.PaymentTokenSupported(testAddr(0x61)))
}

func TestFeeConfigRoundTrip(t *testing.T) {
	mgr := newManager(t)
	_, ok := mgr.FeeConfigGet()
	require.False(t, ok)

	cfg := market.FeeConfig{Rate: 250, Decimal: 1}
	require.NoError(t, mgr.FeeConfigPut(cfg))
	got, ok := mgr.FeeConfigGet()
	require.True(t, ok)
	require.Equal(t, cfg, got)
}

func TestFeeRecipientRoundTrip(t *testing.T) {
	mgr := newManager(t)
	_, ok := mgr.FeeRecipientGet()
	require.False(t, ok)

	treasury := testAddr(0x05)
	require.NoError(t, mgr.FeeRecipientPut(treasury))
	got, ok := mgr.FeeRecipientGet()
	require.True(t, ok)
	require.Equal(t, treasury, got)
}

func TestReserveLastWithdrawalRoundTrip(t *testing.T) {
	mgr := newManager(t)
	_, ok := mgr.ReserveLastWithdrawalGet()
	require.False(t, ok)

	require.NoError(t, mgr.ReserveLastWithdrawalPut(1_700_000_000))
	got, ok := mgr.ReserveLastWithdrawalGet()
	require.True(t, ok)
	require.Equal(t, int64(1_700_000_000), got)
}

func TestTokenBalanceRoundTrip(t *testing.T) {
	mgr := newManager(t)
	gold := testAddr(0x60)
	alice := testAddr(0x02)

	require.Zero(t, mgr.TokenBalance(gold, alice).Sign())

	amount := new(big.Int).SetUint64(1 << 62)
	amount.Mul(amount, big.NewInt(1000))
	require.NoError(t, mgr.TokenBalancePut(gold, alice, amount))
	require.Zero(t, mgr.TokenBalance(gold, alice).Cmp(amount))

	// Balances are keyed per token.
	require.Zero(t, mgr.TokenBalance(testAddr(0x61), alice).Sign())

	require.NoError(t, mgr.TokenBalancePut(gold, alice, big.NewInt(0)))
	require.Zero(t, mgr.TokenBalance(gold, alice).Sign())
}

func TestTokenAllowanceRoundTrip(t *testing.T) {
	mgr := newManager(t)
	gold := testAddr(0x60)
	alice := testAddr(0x02)
	carol := testAddr(0x04)

	require.Zero(t, mgr.TokenAllowance(gold, alice, carol).Sign())
	require.NoError(t, mgr.TokenAllowancePut(gold, alice, carol, big.NewInt(55)))
	require.Zero(t, mgr.TokenAllowance(gold, alice, carol).Cmp(big.NewInt(55)))
	// Direction matters.
	require.Zero(t, mgr.TokenAllowance(gold, carol, alice).Sign())
}

func TestTokenFlags(t *testing.T) {
	mgr := newManager(t)
	gold := testAddr(0x60)
	alice := testAddr(0x02)

	require.False(t, mgr.TokenPaused(gold))
	require.NoError(t, mgr.TokenPausedPut(gold, true))
	require.True(t, mgr.TokenPaused(gold))
	require.NoError(t, mgr.TokenPausedPut(gold, false))
	require.False(t, mgr.TokenPaused(gold))

	require.False(t, mgr.TokenBlacklisted(gold, alice))
	require.NoError(t, mgr.TokenBlacklistPut(gold, alice, true))
	require.True(t, mgr.TokenBlacklisted(gold, alice))
	require.NoError(t, mgr.TokenBlacklistPut(gold, alice, false))
	require.False(t, mgr.TokenBlacklisted(gold, alice))
}

func TestAssetStateRoundTrip(t *testing.T) {
	mgr := newManager(t)
	alice := testAddr(0x02)
	operator := testAddr(0x04)

	require.Zero(t, mgr.AssetNextID())
	require.NoError(t, mgr.AssetNextIDPut(5))
	require.EqualValues(t, 5, mgr.AssetNextID())

	_, ok := mgr.AssetHolder(3)
	require.False(t, ok)
	require.NoError(t, mgr.AssetHolderPut(3, alice))
	holder, ok := mgr.AssetHolder(3)
	require.True(t, ok)
	require.Equal(t, alice, holder)

	_, ok = mgr.AssetApproval(3)
	require.False(t, ok)
	require.NoError(t, mgr.AssetApprovalPut(3, operator))
	approved, ok := mgr.AssetApproval(3)
	require.True(t, ok)
	require.Equal(t, operator, approved)
	// A zero operator clears the approval.
	require.NoError(t, mgr.AssetApprovalPut(3, [20]byte{}))
	_, ok = mgr.AssetApproval(3)
	require.False(t, ok)

	require.Zero(t, mgr.AssetHolderCount(alice))
	require.NoError(t, mgr.AssetHolderCountPut(alice, 2))
	require.EqualValues(t, 2, mgr.AssetHolderCount(alice))
}
