package main

import (
	"errors"
	"net"
	"slices"
	"testing"
	"time"

	"github.com/velemoonkon/portbolt/pkg/scanner"
)

var testTarget = net.ParseIP("192.0.2.1")

func TestResolveScanConfig_Defaults(t *testing.T) {
	// Default run: portbolt <target>
	cfg, err := ResolveScanConfig(DefaultScanFlags(), testTarget)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.StartPort != 1 || cfg.EndPort != 65535 {
		t.Errorf("Expected all ports, got %d-%d", cfg.StartPort, cfg.EndPort)
	}
	if cfg.Concurrency != 200 {
		t.Errorf("Expected 200 threads, got %d", cfg.Concurrency)
	}
	if cfg.Timeout != time.Second {
		t.Errorf("Expected 1000ms timeout, got %v", cfg.Timeout)
	}
	if !cfg.GrabBanner {
		t.Error("Banner capture should be on by default")
	}
	if cfg.RateLimit != 0 || cfg.MinLatency != 0 {
		t.Error("Rate limit and latency floor should be off by default")
	}
	if _, ok := cfg.Payload.(scanner.FixedPayload); !ok {
		t.Errorf("Expected fixed payload by default, got %T", cfg.Payload)
	}
	if !cfg.Target.Equal(testTarget) {
		t.Errorf("Expected target %s, got %s", testTarget, cfg.Target)
	}
}

func TestResolveScanConfig_OnlyMinPort(t *testing.T) {
	// portbolt <target> --minport 22
	flags := DefaultScanFlags()
	flags.MinPort = 22

	cfg, err := ResolveScanConfig(flags, testTarget)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.StartPort != 22 || cfg.EndPort != 65535 {
		t.Errorf("Expected 22-65535, got %d-%d", cfg.StartPort, cfg.EndPort)
	}
}

func TestResolveScanConfig_OnlyMaxPort(t *testing.T) {
	// portbolt <target> --maxport 1024
	flags := DefaultScanFlags()
	flags.MaxPort = 1024

	cfg, err := ResolveScanConfig(flags, testTarget)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.StartPort != 1 || cfg.EndPort != 1024 {
		t.Errorf("Expected 1-1024, got %d-%d", cfg.StartPort, cfg.EndPort)
	}
	if cfg.PortCount() != 1024 {
		t.Errorf("Expected 1024 ports, got %d", cfg.PortCount())
	}
}

func TestResolveScanConfig_Overrides(t *testing.T) {
	flags := ScanFlags{
		MinPort:      1024,
		MaxPort:      1337,
		Threads:      7,
		TimeoutMs:    250,
		Rate:         100,
		MinLatencyMs: 50,
		NoBanner:     true,
		Probe:        "random",
	}

	cfg, err := ResolveScanConfig(flags, testTarget)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Concurrency != 7 {
		t.Errorf("Expected 7 threads, got %d", cfg.Concurrency)
	}
	if cfg.Timeout != 250*time.Millisecond {
		t.Errorf("Expected 250ms, got %v", cfg.Timeout)
	}
	if cfg.RateLimit != 100 {
		t.Errorf("Expected rate 100, got %d", cfg.RateLimit)
	}
	if cfg.MinLatency != 50*time.Millisecond {
		t.Errorf("Expected 50ms floor, got %v", cfg.MinLatency)
	}
	if cfg.GrabBanner {
		t.Error("--nobanner should disable banner capture")
	}
	if _, ok := cfg.Payload.(scanner.RandomPayload); !ok {
		t.Errorf("Expected random payload, got %T", cfg.Payload)
	}
}

func TestResolveScanConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ScanFlags)
		wantErr error
	}{
		{name: "Zero threads", mutate: func(f *ScanFlags) { f.Threads = 0 }, wantErr: errMinThreads},
		{name: "Negative threads", mutate: func(f *ScanFlags) { f.Threads = -1 }, wantErr: scanner.ErrInvalidConcurrency},
		{name: "Min above max", mutate: func(f *ScanFlags) { f.MinPort, f.MaxPort = 2000, 1000 }, wantErr: scanner.ErrInvalidPortRange},
		{name: "Port zero", mutate: func(f *ScanFlags) { f.MinPort = 0 }, wantErr: scanner.ErrInvalidPortRange},
		{name: "Port too high", mutate: func(f *ScanFlags) { f.MaxPort = 70000 }, wantErr: scanner.ErrInvalidPortRange},
		{name: "Zero timeout", mutate: func(f *ScanFlags) { f.TimeoutMs = 0 }, wantErr: scanner.ErrInvalidTimeout},
		{name: "Negative rate", mutate: func(f *ScanFlags) { f.Rate = -5 }, wantErr: scanner.ErrInvalidRateLimit},
		{name: "Unknown probe", mutate: func(f *ScanFlags) { f.Probe = "http" }, wantErr: scanner.ErrUnknownPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := DefaultScanFlags()
			tt.mutate(&flags)

			_, err := ResolveScanConfig(flags, testTarget)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestResolveScanConfig_NegativeLatency(t *testing.T) {
	flags := DefaultScanFlags()
	flags.MinLatencyMs = -1

	if _, err := ResolveScanConfig(flags, testTarget); err == nil {
		t.Error("Expected error for negative min-latency")
	}
}

func TestNormalizeArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{name: "Legacy flags", in: []string{"host", "-min", "1024", "-max", "1337"}, want: []string{"host", "--minport", "1024", "--maxport", "1337"}},
		{name: "Legacy flags with equals", in: []string{"host", "-min=22", "-max=80"}, want: []string{"host", "--minport=22", "--maxport=80"}},
		{name: "Empty legacy value", in: []string{"-min="}, want: []string{"--minport="}},
		{name: "Similar flag untouched", in: []string{"-minimum=3", "--min=4"}, want: []string{"-minimum=3", "--min=4"}},
		{name: "Long flags untouched", in: []string{"host", "--minport", "22", "-t", "5"}, want: []string{"host", "--minport", "22", "-t", "5"}},
		{name: "After terminator", in: []string{"--", "-min"}, want: []string{"--", "-min"}},
		{name: "Empty", in: []string{}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeArgs(tt.in)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}
