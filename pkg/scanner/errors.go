package scanner

import "errors"

// Configuration errors. These are the only errors that stop a scan before it starts;
// per-port network failures are folded into PortResult.
var (
	ErrNoTarget           = errors.New("no target address")
	ErrInvalidConcurrency = errors.New("concurrency limit must be at least 1")
	ErrInvalidPortRange   = errors.New("invalid port range")
	ErrInvalidTimeout     = errors.New("timeout must be positive")
	ErrInvalidRateLimit   = errors.New("rate limit must not be negative")
	ErrUnknownPayload     = errors.New("unknown probe payload")
)
