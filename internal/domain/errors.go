package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrNoOrders           = errors.New("no orders for item")
	ErrRateLimited        = errors.New("rate limited")
	ErrRetriesExhausted   = errors.New("retries exhausted")
	ErrMalformedPayload   = errors.New("malformed upstream payload")
	ErrUnknownStrategy    = errors.New("unknown strategy")
	ErrHistoryUnavailable = errors.New("history unavailable")
	ErrSessionClosed      = errors.New("subscriber session closed")
)
