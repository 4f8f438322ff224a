package market

import (
	"errors"
	"fmt"
)

// Failure classes. Every specific reason below wraps one of these so callers
// can match either the class (errors.Is(err, ErrUnauthorized)) or the exact
// reason string.
var (
	ErrUnauthorized      = errors.New("market: unauthorized")
	ErrInvalidArgument   = errors.New("market: invalid argument")
	ErrInvalidState      = errors.New("market: invalid state")
	ErrInsufficientFunds = errors.New("market: insufficient funds")
)

var (
	ErrNotAdmin              = fmt.Errorf("%w: caller is not the marketplace admin", ErrUnauthorized)
	ErrNilPaymentToken       = fmt.Errorf("%w: payment token is the zero address", ErrInvalidArgument)
	ErrTokenAlreadySupported = fmt.Errorf("%w: payment token already supported", ErrInvalidArgument)
	ErrTokenNotSupported     = fmt.Errorf("%w: payment token is not supported", ErrInvalidArgument)
	ErrBadFeeRate            = fmt.Errorf("%w: bad fee rate", ErrInvalidArgument)
	ErrNilFeeRecipient       = fmt.Errorf("%w: fee recipient is the zero address", ErrInvalidArgument)
	ErrZeroPrice             = fmt.Errorf("%w: price must be greater than zero", ErrInvalidArgument)
	ErrAssetNotFound         = fmt.Errorf("%w: unknown asset", ErrInvalidArgument)
	ErrNotAssetHolder        = fmt.Errorf("%w: seller is not the holder of the asset", ErrUnauthorized)
	ErrMarketNotApproved     = fmt.Errorf("%w: marketplace is not approved to manage the asset", ErrUnauthorized)
	ErrOrderNotFound         = fmt.Errorf("%w: order not found", ErrInvalidArgument)
	ErrNotSeller             = fmt.Errorf("%w: caller is not the order seller", ErrUnauthorized)
	ErrOrderBought           = fmt.Errorf("%w: order was bought", ErrInvalidState)
	ErrOrderCanceled         = fmt.Errorf("%w: order was canceled", ErrInvalidState)
	ErrOrderSold             = fmt.Errorf("%w: order was sold", ErrInvalidState)
	ErrSelfTrade             = fmt.Errorf("%w: buyer must not be the seller", ErrInvalidArgument)
	ErrInsufficientBalance   = fmt.Errorf("%w: not enough payment tokens", ErrInsufficientFunds)
	ErrInsufficientAllowance = fmt.Errorf("%w: not enough payment tokens approved", ErrUnauthorized)
)
