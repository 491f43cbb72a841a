package core

import "errors"

var (
	// ErrTransport marks network failures, timeouts and non-2xx exchange responses.
	ErrTransport = errors.New("transport fault")
	// ErrDecode marks responses that do not have the expected shape.
	ErrDecode = errors.New("decode fault")
	// ErrValidation marks caller input rejected before any exchange call.
	ErrValidation = errors.New("validation fault")
)

var (
	// ErrInsufficientBalance indicates the exchange rejected the action due to insufficient funds.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrOrderNotFound indicates the order does not exist on exchange.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderRejected indicates the order was rejected by exchange.
	ErrOrderRejected = errors.New("order rejected")
	// ErrUnauthorized indicates the API key or signature was refused.
	ErrUnauthorized = errors.New("unauthorized")
)
