package market

import "math/big"

// OrderStatus represents the lifecycle states of a marketplace order.
// OrderCanceledStatus and OrderSoldStatus are terminal.
type OrderStatus uint8

const (
	OrderOpen OrderStatus = iota
	OrderCanceledStatus
	OrderSoldStatus
)

// Valid reports whether the status value is within the supported range.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderOpen, OrderCanceledStatus, OrderSoldStatus:
		return true
	default:
		return false
	}
}

// String returns the canonical lowercase name of the status.
func (s OrderStatus) String() string {
	switch s {
	case OrderOpen:
		return "open"
	case OrderCanceledStatus:
		return "canceled"
	case OrderSoldStatus:
		return "sold"
	default:
		return "unknown"
	}
}

// Order captures one escrowed sell listing. The order identifier is the asset
// identifier itself: at most one order per asset can be active, and the asset
// stays in marketplace custody for exactly the Open lifetime of its order.
type Order struct {
	AssetID      uint64
	Seller       [20]byte
	PaymentToken [20]byte
	Price        *big.Int
	Status       OrderStatus
}

// ID returns the order identifier.
func (o *Order) ID() uint64 {
	if o == nil {
		return 0
	}
	return o.AssetID
}

// Clone returns a deep copy of the order so callers can safely mutate the copy
// without affecting the stored instance.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	if o.Price != nil {
		clone.Price = new(big.Int).Set(o.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	return &clone
}
