package market

import (
	"encoding/hex"
	"strconv"

	"marketd/core/types"
)

const (
	EventTypeFeeUpdated          = "market.fee_updated"
	EventTypeFeeRecipientUpdated = "market.fee_recipient_updated"
	EventTypeOrderAdded          = "market.order_added"
	EventTypeOrderCanceled       = "market.order_canceled"
	EventTypeOrderMatched        = "market.order_matched"
)

// NewFeeUpdatedEvent returns the canonical payload emitted when the fee
// configuration changes.
func NewFeeUpdatedEvent(cfg FeeConfig) *types.Event {
	return &types.Event{Type: EventTypeFeeUpdated, Attributes: map[string]string{
		"rate":    strconv.FormatUint(cfg.Rate, 10),
		"decimal": strconv.FormatUint(uint64(cfg.Decimal), 10),
	}}
}

// NewFeeRecipientUpdatedEvent returns the payload emitted when the fee
// forwarding destination changes.
func NewFeeRecipientUpdatedEvent(recipient [20]byte) *types.Event {
	return &types.Event{Type: EventTypeFeeRecipientUpdated, Attributes: map[string]string{
		"recipient": hex.EncodeToString(recipient[:]),
	}}
}

// NewOrderAddedEvent returns the canonical payload for a newly escrowed order.
func NewOrderAddedEvent(o *Order) *types.Event {
	attrs := orderAttributes(o)
	return &types.Event{Type: EventTypeOrderAdded, Attributes: attrs}
}

// NewOrderCanceledEvent returns the payload emitted when a seller cancels an
// open order.
func NewOrderCanceledEvent(o *Order) *types.Event {
	attrs := map[string]string{}
	if o != nil {
		attrs["orderId"] = strconv.FormatUint(o.ID(), 10)
	}
	return &types.Event{Type: EventTypeOrderCanceled, Attributes: attrs}
}

// NewOrderMatchedEvent returns the payload emitted when a buyer settles an
// open order.
func NewOrderMatchedEvent(o *Order, buyer [20]byte) *types.Event {
	attrs := orderAttributes(o)
	attrs["buyer"] = hex.EncodeToString(buyer[:])
	return &types.Event{Type: EventTypeOrderMatched, Attributes: attrs}
}

func orderAttributes(o *Order) map[string]string {
	attrs := make(map[string]string)
	if o == nil {
		return attrs
	}
	sanitized := o.Clone()
	attrs["orderId"] = strconv.FormatUint(sanitized.ID(), 10)
	attrs["seller"] = hex.EncodeToString(sanitized.Seller[:])
	attrs["assetId"] = strconv.FormatUint(sanitized.AssetID, 10)
	attrs["paymentToken"] = hex.EncodeToString(sanitized.PaymentToken[:])
	attrs["price"] = sanitized.Price.String()
	return attrs
}
