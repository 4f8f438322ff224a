package token

import "errors"

var (
	ErrUnauthorized          = errors.New("token: unauthorized")
	ErrPaused                = errors.New("token: transfers are paused")
	ErrBlacklisted           = errors.New("token: account is blacklisted")
	ErrNilAccount            = errors.New("token: account is the zero address")
	ErrNonPositiveAmount     = errors.New("token: amount must be positive")
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
)
