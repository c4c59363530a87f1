package scanner

import (
	"context"
	"log/slog"
	"time"
)

// runTask produces exactly one result for port and then releases the task's slot
// The caller has already acquired the slot. Nothing that happens inside the task,
// including a panic, escapes to the coordinator or to sibling tasks.
func (s *Scanner) runTask(ctx context.Context, port int, results chan<- *PortResult) {
	start := time.Now()
	result := &PortResult{Port: port, Status: StatusClosed}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("port task panicked", "port", port, "panic", r)
			result = &PortResult{Port: port, Status: StatusClosed}
		}

		s.waitLatencyFloor(ctx, start)
		results <- result

		s.slots.Release()
		s.metrics.SlotsInUse(s.slots.InUse())
	}()

	if s.config.Notify != nil {
		s.config.Notify(port)
	}

	conn, err := s.prober.Probe(ctx, s.config.Target, port, s.config.Timeout)
	latency := time.Since(start)
	if err != nil {
		reason := classifyDialError(err)
		if !s.config.Quiet {
			slog.Debug("port closed", "port", port, "reason", reason, "error", err)
		}
		s.metrics.PortScanned(StatusClosed, reason, latency)
		return
	}

	s.metrics.PortScanned(StatusOpen, ReasonNone, latency)

	opened := &PortResult{
		Port:      port,
		Status:    StatusOpen,
		Latency:   latency,
		LatencyMs: float64(latency.Microseconds()) / 1000,
	}

	if !s.config.GrabBanner {
		conn.Close()
		result = opened
		return
	}

	opened.Banner = CollectBanner(conn, s.config.Timeout, s.payload, s.config.MaxBannerBytes)
	s.metrics.BannerCollected(opened.Banner != "")
	result = opened
}

// waitLatencyFloor holds the slot until MinLatency has passed since start
func (s *Scanner) waitLatencyFloor(ctx context.Context, start time.Time) {
	if s.config.MinLatency <= 0 {
		return
	}
	remaining := s.config.MinLatency - time.Since(start)
	if remaining <= 0 {
		return
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
