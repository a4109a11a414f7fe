package entities

import "errors"

var ErrStoreEntityNotFound = errors.New("store resource not found")

var ErrUnauthorized = errors.New("caller is not authorized")
var ErrInvalidTime = errors.New("outside of business hours")
var ErrInsufficientBalance = errors.New("balance below buffered batch total")
var ErrTransferFailed = errors.New("transfer failed")
var ErrBatchLimitExceeded = errors.New("batch limit exceeded")

// ErrInsufficientFunds is reported by the transfer service when a single
// transfer exceeds the available funds. It is distinct from
// ErrInsufficientBalance, which is the buffered pre-check of the whole batch.
var ErrInsufficientFunds = errors.New("insufficient funds for transfer")

// ErrInvalidThreshold is reserved for configuration validation.
var ErrInvalidThreshold = errors.New("invalid threshold")
