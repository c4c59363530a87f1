package main

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/velemoonkon/portbolt/pkg/config"
	"github.com/velemoonkon/portbolt/pkg/scanner"
)

// ScanFlags represents the CLI flags for scan configuration
type ScanFlags struct {
	// Port range, inclusive
	MinPort int
	MaxPort int

	// Performance
	Threads      int // Concurrent port tasks
	TimeoutMs    int // Connect and banner read timeout, each
	Rate         int // Max connection attempts per second (0 = unlimited)
	MinLatencyMs int // Latency floor per attempt (0 = off)

	// Banner
	NoBanner bool
	Probe    string // "fixed" or "random"
}

// DefaultScanFlags returns the flag defaults
func DefaultScanFlags() ScanFlags {
	return ScanFlags{
		MinPort:   scanner.MinPort,
		MaxPort:   scanner.MaxPort,
		Threads:   config.Scanner.DefaultConcurrency,
		TimeoutMs: int(config.Scanner.DefaultTimeout / time.Millisecond),
		Rate:      config.Scanner.DefaultRateLimit,
		Probe:     config.Banner.Payload,
	}
}

// errMinThreads is reported for --threads below 1
var errMinThreads = errors.New("minimum 1 thread")

// ResolveScanConfig resolves CLI flags to scanner configuration for target
// Only one of min/max port needs to be given; the other keeps its default.
func ResolveScanConfig(flags ScanFlags, target net.IP) (scanner.Config, error) {
	if flags.Threads < 1 {
		return scanner.Config{}, fmt.Errorf("%w: %w", errMinThreads, scanner.ErrInvalidConcurrency)
	}
	if err := checkPort("minport", flags.MinPort); err != nil {
		return scanner.Config{}, err
	}
	if err := checkPort("maxport", flags.MaxPort); err != nil {
		return scanner.Config{}, err
	}
	if flags.MinPort > flags.MaxPort {
		return scanner.Config{}, fmt.Errorf("%w: minport %d is above maxport %d",
			scanner.ErrInvalidPortRange, flags.MinPort, flags.MaxPort)
	}
	if flags.TimeoutMs < 1 {
		return scanner.Config{}, fmt.Errorf("%w: %d ms", scanner.ErrInvalidTimeout, flags.TimeoutMs)
	}
	if flags.MinLatencyMs < 0 {
		return scanner.Config{}, fmt.Errorf("min-latency must not be negative: %d ms", flags.MinLatencyMs)
	}

	payload, err := scanner.NewPayload(flags.Probe, config.Banner.FixedPayload, config.Banner.RandomPayloadLen)
	if err != nil {
		return scanner.Config{}, err
	}

	cfg := scanner.DefaultConfig()
	cfg.Target = target
	cfg.StartPort = flags.MinPort
	cfg.EndPort = flags.MaxPort
	cfg.Concurrency = flags.Threads
	cfg.Timeout = time.Duration(flags.TimeoutMs) * time.Millisecond
	cfg.RateLimit = flags.Rate
	cfg.MinLatency = time.Duration(flags.MinLatencyMs) * time.Millisecond
	cfg.GrabBanner = !flags.NoBanner
	cfg.Payload = payload

	// Catches anything the checks above let through, e.g. a negative rate
	if err := cfg.Validate(); err != nil {
		return scanner.Config{}, err
	}
	return cfg, nil
}

func checkPort(name string, port int) error {
	if port < scanner.MinPort || port > scanner.MaxPort {
		return fmt.Errorf("%w: %s %d outside %d-%d",
			scanner.ErrInvalidPortRange, name, port, scanner.MinPort, scanner.MaxPort)
	}
	return nil
}

// legacyFlags maps single-dash long flags accepted by older port scanners
var legacyFlags = map[string]string{
	"-min": "--minport",
	"-max": "--maxport",
}

// NormalizeArgs rewrites legacy single-dash long flags ("-min 22", "-min=22") to their
// long form. Everything after a bare "--" is left alone.
func NormalizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i, arg := range args {
		if arg == "--" {
			return append(out, args[i:]...)
		}
		name, value, hasValue := strings.Cut(arg, "=")
		if long, ok := legacyFlags[name]; ok {
			arg = long
			if hasValue {
				arg += "=" + value
			}
		}
		out = append(out, arg)
	}
	return out
}
