package state

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"marketd/native/market"
	"marketd/storage"
)

// Key prefixes. Fixed-width binary suffixes keep the keyspace collision-free.
var (
	prefixOrder        = []byte("market/order/")
	prefixPayToken     = []byte("market/paytoken/")
	keyFeeConfig       = []byte("market/fee")
	keyFeeRecipient    = []byte("market/feerecipient")
	keyReserveClock    = []byte("reserve/last")
	prefixTokenBalance = []byte("token/balance/")
	prefixTokenAllow   = []byte("token/allowance/")
	prefixTokenPaused  = []byte("token/paused/")
	prefixTokenBlack   = []byte("token/blacklist/")
	prefixAssetHolder  = []byte("asset/holder/")
	prefixAssetApprove = []byte("asset/approved/")
	keyAssetNextID     = []byte("asset/nextid")
	prefixAssetCount   = []byte("asset/count/")
)

// Manager provides typed access to marketplace state on top of a raw
// key-value database. It implements the state interfaces declared by the
// native engines (market, reserve, token ledger, asset registry).
type Manager struct {
	db storage.Database
}

// NewManager wraps the given database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func u64Key(prefix []byte, id uint64) []byte {
	key := make([]byte, 0, len(prefix)+8)
	key = append(key, prefix...)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return append(key, buf[:]...)
}

func addrKey(prefix []byte, addrs ...[20]byte) []byte {
	key := make([]byte, 0, len(prefix)+20*len(addrs))
	key = append(key, prefix...)
	for _, addr := range addrs {
		key = append(key, addr[:]...)
	}
	return key
}

func (m *Manager) putUint64(key []byte, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return m.db.Put(key, buf[:])
}

func (m *Manager) getUint64(key []byte) (uint64, bool) {
	raw, err := m.db.Get(key)
	if err != nil || len(raw) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(raw), true
}

func (m *Manager) putFlag(key []byte, set bool) error {
	if set {
		return m.db.Put(key, []byte{1})
	}
	return m.db.Put(key, []byte{0})
}

func (m *Manager) getFlag(key []byte) bool {
	raw, err := m.db.Get(key)
	return err == nil && len(raw) == 1 && raw[0] == 1
}

// --- Order Book ---

type storedOrder struct {
	AssetID      uint64
	Seller       [20]byte
	PaymentToken [20]byte
	Price        *big.Int
	Status       uint8
}

// OrderPut persists the order keyed by its identifier.
func (m *Manager) OrderPut(order *market.Order) error {
	if order == nil {
		return fmt.Errorf("state: nil order")
	}
	sanitized := order.Clone()
	blob, err := rlp.EncodeToBytes(&storedOrder{
		AssetID:      sanitized.AssetID,
		Seller:       sanitized.Seller,
		PaymentToken: sanitized.PaymentToken,
		Price:        sanitized.Price,
		Status:       uint8(sanitized.Status),
	})
	if err != nil {
		return err
	}
	return m.db.Put(u64Key(prefixOrder, sanitized.AssetID), blob)
}

// OrderGet loads the order with the given identifier.
func (m *Manager) OrderGet(id uint64) (*market.Order, bool) {
	raw, err := m.db.Get(u64Key(prefixOrder, id))
	if err != nil {
		return nil, false
	}
	var stored storedOrder
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, false
	}
	return &market.Order{
		AssetID:      stored.AssetID,
		Seller:       stored.Seller,
		PaymentToken: stored.PaymentToken,
		Price:        stored.Price,
		Status:       market.OrderStatus(stored.Status),
	}, true
}

// PaymentTokenAdd records a token in the accepted payment set.
func (m *Manager) PaymentTokenAdd(token [20]byte) error {
	return m.db.Put(addrKey(prefixPayToken, token), []byte{1})
}

// PaymentTokenSupported reports membership in the accepted payment set.
func (m *Manager) PaymentTokenSupported(token [20]byte) bool {
	ok, err := m.db.Has(addrKey(prefixPayToken, token))
	return err == nil && ok
}

type storedFeeConfig struct {
	Rate    uint64
	Decimal uint8
}

// FeeConfigPut persists the fee configuration pair in a single write.
func (m *Manager) FeeConfigPut(cfg market.FeeConfig) error {
	blob, err := rlp.EncodeToBytes(&storedFeeConfig{Rate: cfg.Rate, Decimal: cfg.Decimal})
	if err != nil {
		return err
	}
	return m.db.Put(keyFeeConfig, blob)
}

// FeeConfigGet loads the fee configuration pair.
func (m *Manager) FeeConfigGet() (market.FeeConfig, bool) {
	raw, err := m.db.Get(keyFeeConfig)
	if err != nil {
		return market.FeeConfig{}, false
	}
	var stored storedFeeConfig
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return market.FeeConfig{}, false
	}
	return market.FeeConfig{Rate: stored.Rate, Decimal: stored.Decimal}, true
}

// FeeRecipientPut persists the fee-forwarding destination.
func (m *Manager) FeeRecipientPut(recipient [20]byte) error {
	return m.db.Put(keyFeeRecipient, recipient[:])
}

// FeeRecipientGet loads the fee-forwarding destination.
func (m *Manager) FeeRecipientGet() ([20]byte, bool) {
	raw, err := m.db.Get(keyFeeRecipient)
	if err != nil || len(raw) != 20 {
		return [20]byte{}, false
	}
	var recipient [20]byte
	copy(recipient[:], raw)
	return recipient, true
}

// --- Reserve ---

// ReserveLastWithdrawalPut persists the treasury withdrawal clock.
func (m *Manager) ReserveLastWithdrawalPut(ts int64) error {
	return m.putUint64(keyReserveClock, uint64(ts))
}

// ReserveLastWithdrawalGet loads the treasury withdrawal clock.
func (m *Manager) ReserveLastWithdrawalGet() (int64, bool) {
	v, ok := m.getUint64(keyReserveClock)
	return int64(v), ok
}

// --- Token Ledger ---

// TokenBalance returns the holder's balance, zero when absent.
func (m *Manager) TokenBalance(token, addr [20]byte) *big.Int {
	raw, err := m.db.Get(addrKey(prefixTokenBalance, token, addr))
	if err != nil {
		return big.NewInt(0)
	}
	return new(big.Int).SetBytes(raw)
}

// TokenBalancePut stores the holder's balance.
func (m *Manager) TokenBalancePut(token, addr [20]byte, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	return m.db.Put(addrKey(prefixTokenBalance, token, addr), amount.Bytes())
}

// TokenAllowance returns the spender's allowance on the owner, zero when
// absent.
func (m *Manager) TokenAllowance(token, owner, spender [20]byte) *big.Int {
	raw, err := m.db.Get(addrKey(prefixTokenAllow, token, owner, spender))
	if err != nil {
		return big.NewInt(0)
	}
	return new(big.Int).SetBytes(raw)
}

// TokenAllowancePut stores the spender's allowance on the owner.
func (m *Manager) TokenAllowancePut(token, owner, spender [20]byte, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	return m.db.Put(addrKey(prefixTokenAllow, token, owner, spender), amount.Bytes())
}

// TokenPaused reports whether the token's pause switch is set.
func (m *Manager) TokenPaused(token [20]byte) bool {
	return m.getFlag(addrKey(prefixTokenPaused, token))
}

// TokenPausedPut stores the token's pause switch.
func (m *Manager) TokenPausedPut(token [20]byte, paused bool) error {
	return m.putFlag(addrKey(prefixTokenPaused, token), paused)
}

// TokenBlacklisted reports whether the account is on the token's exclusion
// list.
func (m *Manager) TokenBlacklisted(token, addr [20]byte) bool {
	return m.getFlag(addrKey(prefixTokenBlack, token, addr))
}

// TokenBlacklistPut stores the account's exclusion flag.
func (m *Manager) TokenBlacklistPut(token, addr [20]byte, listed bool) error {
	return m.putFlag(addrKey(prefixTokenBlack, token, addr), listed)
}

// --- Asset Registry ---

// AssetHolder returns the recorded custodian of the asset.
func (m *Manager) AssetHolder(id uint64) ([20]byte, bool) {
	raw, err := m.db.Get(u64Key(prefixAssetHolder, id))
	if err != nil || len(raw) != 20 {
		return [20]byte{}, false
	}
	var holder [20]byte
	copy(holder[:], raw)
	return holder, true
}

// AssetHolderPut records the custodian of the asset.
func (m *Manager) AssetHolderPut(id uint64, holder [20]byte) error {
	return m.db.Put(u64Key(prefixAssetHolder, id), holder[:])
}

// AssetApproval returns the approved transfer operator, if any. A stored zero
// operator reads as no approval.
func (m *Manager) AssetApproval(id uint64) ([20]byte, bool) {
	raw, err := m.db.Get(u64Key(prefixAssetApprove, id))
	if err != nil || len(raw) != 20 {
		return [20]byte{}, false
	}
	var operator [20]byte
	copy(operator[:], raw)
	if operator == ([20]byte{}) {
		return [20]byte{}, false
	}
	return operator, true
}

// AssetApprovalPut records the approved transfer operator.
func (m *Manager) AssetApprovalPut(id uint64, operator [20]byte) error {
	return m.db.Put(u64Key(prefixAssetApprove, id), operator[:])
}

// AssetNextID returns the highest asset identifier issued so far.
func (m *Manager) AssetNextID() uint64 {
	v, _ := m.getUint64(keyAssetNextID)
	return v
}

// AssetNextIDPut records the highest asset identifier issued so far.
func (m *Manager) AssetNextIDPut(id uint64) error {
	return m.putUint64(keyAssetNextID, id)
}

// AssetHolderCount returns the number of assets held by the address.
func (m *Manager) AssetHolderCount(addr [20]byte) uint64 {
	v, _ := m.getUint64(addrKey(prefixAssetCount, addr))
	return v
}

// AssetHolderCountPut records the number of assets held by the address.
func (m *Manager) AssetHolderCountPut(addr [20]byte, count uint64) error {
	return m.putUint64(addrKey(prefixAssetCount, addr), count)
}
