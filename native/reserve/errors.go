package reserve

import (
	"errors"
	"fmt"
)

// Failure classes, mirrored from the marketplace taxonomy. Specific reasons
// wrap a class so callers can match either level.
var (
	ErrUnauthorized      = errors.New("reserve: unauthorized")
	ErrInvalidArgument   = errors.New("reserve: invalid argument")
	ErrTooEarly          = errors.New("reserve: too early")
	ErrInsufficientFunds = errors.New("reserve: insufficient funds")
)

var (
	ErrNotAdmin            = fmt.Errorf("%w: caller is not the treasury admin", ErrUnauthorized)
	ErrCooldownActive      = fmt.Errorf("%w: cooldown has not elapsed since the last withdrawal", ErrTooEarly)
	ErrNilRecipient        = fmt.Errorf("%w: recipient is the zero address", ErrInvalidArgument)
	ErrNonPositiveAmount   = fmt.Errorf("%w: amount must be positive", ErrInvalidArgument)
	ErrInsufficientBalance = fmt.Errorf("%w: not enough balance", ErrInsufficientFunds)
)
