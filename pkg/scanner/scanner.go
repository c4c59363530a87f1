package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/velemoonkon/portbolt/pkg/config"
	"golang.org/x/time/rate"
)

// Scanner drives one port range against one target under a fixed concurrency budget
type Scanner struct {
	config  Config
	limiter *rate.Limiter
	slots   *SlotPool
	prober  Prober
	payload Payload
	metrics Recorder
}

// NewScanner validates cfg and creates a scanner
// An invalid configuration is rejected here, before any port is dispatched.
func NewScanner(cfg Config) (*Scanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Create rate limiter - treat RateLimit <= 0 as no limit
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)
	} else {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}

	if cfg.MaxBannerBytes <= 0 {
		cfg.MaxBannerBytes = config.Banner.MaxBytes
	}

	payload := cfg.Payload
	if payload == nil {
		payload = FixedPayload(config.Banner.FixedPayload)
	}

	prober := cfg.Prober
	if prober == nil {
		prober = NewNetProber()
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = nopRecorder{}
	}

	return &Scanner{
		config:  cfg,
		limiter: limiter,
		slots:   NewSlotPool(cfg.Concurrency),
		prober:  prober,
		payload: payload,
		metrics: metrics,
	}, nil
}

// Config returns the scanner's configuration
func (s *Scanner) Config() Config {
	return s.config
}

// Slots returns the scanner's concurrency slot pool
func (s *Scanner) Slots() *SlotPool {
	return s.slots
}

// Scan scans the configured range and returns every result, in completion order
// For the full 65535-port range prefer ScanStream, which does not accumulate results.
func (s *Scanner) Scan(ctx context.Context) ([]*PortResult, error) {
	results := make([]*PortResult, 0, s.config.PortCount())
	_, err := s.ScanStream(ctx, func(result *PortResult) error {
		results = append(results, result)
		return nil
	})
	return results, err
}

// ScanStream scans the configured range and calls resultHandler for each result
// One port task is started per port; at most Concurrency tasks hold a slot at any time.
// The resultHandler is called from a single goroutine, in completion order, so it needs no
// locking of its own; it should be fast or buffer internally.
// Returns once every dispatched task has finished, with the number of results handled.
// A handler error does not stop the scan and is returned at the end.
func (s *Scanner) ScanStream(ctx context.Context, resultHandler func(*PortResult) error) (int, error) {
	start := time.Now()
	resultChan := make(chan *PortResult, config.Scanner.ResultChannelBuffer)

	// Start result collector that calls handler instead of accumulating
	var collectorWg sync.WaitGroup
	var handlerErr error
	resultCount := 0
	collectorWg.Go(func() {
		for result := range resultChan {
			resultCount++
			if !s.config.Quiet {
				s.logProgress(result)
			}

			if err := resultHandler(result); err != nil && handlerErr == nil {
				handlerErr = fmt.Errorf("result handler: %w", err)
			}
		}
	})

	var tasks sync.WaitGroup
	dispatched := s.dispatch(ctx, &tasks, resultChan)

	// Wait for every task to emit and release its slot
	tasks.Wait()
	close(resultChan)
	collectorWg.Wait()

	s.metrics.ScanFinished(resultCount, time.Since(start))
	slog.Debug("scan drained", "dispatched", dispatched, "results", resultCount, "peak_slots", s.slots.Peak())

	if handlerErr != nil {
		return resultCount, handlerErr
	}
	return resultCount, ctx.Err()
}

// dispatch starts one task per port, blocking on slot acquisition
// Returns the number of tasks started; fewer than PortCount only if ctx was cancelled.
func (s *Scanner) dispatch(ctx context.Context, tasks *sync.WaitGroup, results chan<- *PortResult) int {
	dispatched := 0
	for port := range PortRange(s.config.StartPort, s.config.EndPort) {
		if err := s.slots.Acquire(ctx); err != nil {
			return dispatched
		}
		s.metrics.SlotsInUse(s.slots.InUse())

		// Apply rate limiting while holding the slot so in-flight count stays bounded
		if err := s.limiter.Wait(ctx); err != nil {
			s.slots.Release()
			s.metrics.SlotsInUse(s.slots.InUse())
			return dispatched
		}

		tasks.Go(func() {
			s.runTask(ctx, port, results)
		})
		dispatched++
	}
	return dispatched
}

// logProgress logs open ports at debug level
func (s *Scanner) logProgress(result *PortResult) {
	if !result.Open() {
		return
	}

	attrs := []any{slog.Int("port", result.Port), slog.Float64("latency_ms", result.LatencyMs)}
	if result.Banner != "" {
		attrs = append(attrs, slog.Int("banner_bytes", len(result.Banner)))
	}
	slog.Debug("port open", attrs...)
}
