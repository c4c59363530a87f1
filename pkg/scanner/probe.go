package scanner

import (
	"context"
	"errors"
	"net"
	"strconv"
	"syscall"
	"time"
)

// Prober establishes a single TCP connection to one port
// A nil error means the port is open and the returned connection belongs to the caller.
// Any error means the port is treated as closed; implementations must not retry.
type Prober interface {
	Probe(ctx context.Context, ip net.IP, port int, timeout time.Duration) (net.Conn, error)
}

// ProberFunc is a function adapter for the Prober interface
type ProberFunc func(ctx context.Context, ip net.IP, port int, timeout time.Duration) (net.Conn, error)

// Probe calls f
func (f ProberFunc) Probe(ctx context.Context, ip net.IP, port int, timeout time.Duration) (net.Conn, error) {
	return f(ctx, ip, port, timeout)
}

// NetProber connects with a net.Dialer
type NetProber struct {
	Dialer net.Dialer
}

// NewNetProber creates a prober using a zero net.Dialer
func NewNetProber() *NetProber {
	return &NetProber{}
}

// Probe dials ip:port once. The timeout bounds wall-clock time of the whole attempt,
// including any SYN retransmits performed by the kernel.
func (p *NetProber) Probe(ctx context.Context, ip net.IP, port int, timeout time.Duration) (net.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Expiry of dialCtx after a successful dial does not affect the connection
	return p.Dialer.DialContext(dialCtx, "tcp", net.JoinHostPort(ip.String(), strconv.Itoa(port)))
}

// Failure reasons reported to metrics and debug logs
const (
	ReasonNone        = ""
	ReasonRefused     = "refused"
	ReasonTimeout     = "timeout"
	ReasonUnreachable = "unreachable"
	ReasonCanceled    = "canceled"
	ReasonError       = "error"
)

// classifyDialError maps a dial failure to a coarse reason
func classifyDialError(err error) string {
	if err == nil {
		return ReasonNone
	}
	if errors.Is(err, context.Canceled) {
		return ReasonCanceled
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return ReasonRefused
	}
	if errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return ReasonUnreachable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	return ReasonError
}
