package icmp

import (
	"time"

	"github.com/velemoonkon/portbolt/pkg/config"
)

// Result contains ICMP echo results for the scan target
type Result struct {
	IP          string        `json:"ip"`
	Reachable   bool          `json:"reachable"`
	RTT         time.Duration `json:"-"`
	RTTMs       float64       `json:"rtt_ms,omitzero"`
	PacketsSent int           `json:"packets_sent"`
	PacketsRecv int           `json:"packets_recv"`
	PacketLoss  float64       `json:"packet_loss_percent"`
	IsIPv6      bool          `json:"is_ipv6"`
	Error       string        `json:"error,omitzero"`
}

// Config contains pinger configuration
type Config struct {
	Timeout     time.Duration // Timeout per echo request
	Count       int           // Echo requests per target
	Interval    time.Duration // Pause between echo requests
	PayloadSize int           // ICMP payload size in bytes
	Privileged  bool          // Raw sockets instead of unprivileged datagram sockets
}

// DefaultConfig returns the pinger configuration from the environment
func DefaultConfig() Config {
	return Config{
		Timeout:     config.ICMP.Timeout,
		Count:       config.ICMP.Count,
		Interval:    200 * time.Millisecond,
		PayloadSize: 56,
		Privileged:  config.ICMP.Privileged,
	}
}

// summarize fills the RTT and loss fields from the successful round trips
func (r *Result) summarize(rtts []time.Duration) {
	if len(rtts) > 0 {
		r.Reachable = true
		var total time.Duration
		for _, rtt := range rtts {
			total += rtt
		}
		r.RTT = total / time.Duration(len(rtts))
		r.RTTMs = float64(r.RTT.Microseconds()) / 1000.0
	}

	if r.PacketsSent > 0 {
		r.PacketLoss = float64(r.PacketsSent-r.PacketsRecv) / float64(r.PacketsSent) * 100
	}
}
