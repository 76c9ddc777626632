package models

import "errors"

// Storage-level sentinels shared by the repositories.
var (
	ErrNotFound         = errors.New("record not found")
	ErrCapacityExceeded = errors.New("ticket capacity exceeded")
	ErrOrderNotPending  = errors.New("order is not pending")
)
