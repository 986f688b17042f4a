package constants

import "time"

// 重试策略常量
const (
	DefaultMaxRetryAttempts = 4
	DefaultRetryInitial     = 500 * time.Millisecond
	DefaultRetryMax         = 8 * time.Second
	RetryBackoffFactor      = 2.0
	// RetryBackoffShiftCap caps the exponent so the shift never overflows.
	RetryBackoffShiftCap = 10
)
