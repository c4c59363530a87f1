package scanner

import (
	"fmt"
	"net"
	"time"

	"github.com/velemoonkon/portbolt/pkg/config"
)

// Port bounds for TCP
const (
	MinPort = 1
	MaxPort = 65535
)

// Status is the outcome of a single connection attempt
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// PortResult contains the outcome for a single port
type PortResult struct {
	Port      int           `json:"port"`
	Status    Status        `json:"status"`
	Banner    string        `json:"banner,omitzero"`
	Latency   time.Duration `json:"-"`
	LatencyMs float64       `json:"latency_ms,omitzero"`
}

// Open reports whether the port accepted a connection
func (r *PortResult) Open() bool {
	return r.Status == StatusOpen
}

// Config contains scanner configuration
// A Scanner copies its Config at construction; later changes have no effect.
type Config struct {
	Target      net.IP        // Resolved target address (IPv4 or IPv6)
	StartPort   int           // First port, inclusive
	EndPort     int           // Last port, inclusive
	Concurrency int           // Max ports in flight (must be >= 1)
	Timeout     time.Duration // Bound on connect and on banner read, each
	GrabBanner  bool          // Send a probe and capture the response of open ports

	RateLimit      int           // Max connection attempts per second (0 = no limit)
	MinLatency     time.Duration // Latency floor per attempt (0 = off)
	Payload        Payload       // Banner probe payload (nil = fixed greeting from config)
	MaxBannerBytes int           // Read cap per banner (0 = config default)

	Prober  Prober         // Connection prober (nil = TCP dialer)
	Metrics Recorder       // Metrics sink (nil = discard)
	Notify  func(port int) // Fire-and-forget hook called when a port task starts; must not block
	Quiet   bool           // Suppress per-port debug logging
}

// DefaultConfig returns default scanner configuration
func DefaultConfig() Config {
	cfg := config.Scanner
	return Config{
		StartPort:   MinPort,
		EndPort:     MaxPort,
		Concurrency: cfg.DefaultConcurrency,
		Timeout:     cfg.DefaultTimeout,
		GrabBanner:  true,
		RateLimit:   cfg.DefaultRateLimit,
	}
}

// Validate checks the configuration before any port is dispatched
func (c Config) Validate() error {
	if c.Target == nil {
		return ErrNoTarget
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidConcurrency, c.Concurrency)
	}
	if c.StartPort < MinPort || c.EndPort > MaxPort || c.StartPort > c.EndPort {
		return fmt.Errorf("%w: %d-%d", ErrInvalidPortRange, c.StartPort, c.EndPort)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidTimeout, c.Timeout)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidRateLimit, c.RateLimit)
	}
	return nil
}

// PortCount returns the number of ports in the configured range
func (c Config) PortCount() int {
	if c.EndPort < c.StartPort {
		return 0
	}
	return c.EndPort - c.StartPort + 1
}
