package scanner

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetProber_OpenPort(t *testing.T) {
	port := startListener(t, hangUp)

	conn, err := NewNetProber().Probe(t.Context(), loopback, port, time.Second)
	require.NoError(t, err)
	require.NotNil(t, conn)
	defer conn.Close()

	assert.Equal(t, fmt.Sprintf("127.0.0.1:%d", port), conn.RemoteAddr().String())
}

func TestNetProber_ClosedPort(t *testing.T) {
	port := closedPort(t)

	conn, err := NewNetProber().Probe(t.Context(), loopback, port, time.Second)
	require.Error(t, err)
	assert.Nil(t, conn)
	assert.Equal(t, ReasonRefused, classifyDialError(err))
}

func TestNetProber_IPv6Loopback(t *testing.T) {
	ln, err := net.Listen("tcp6", "[::1]:0")
	if err != nil {
		t.Skip("IPv6 loopback not available")
	}
	defer ln.Close()
	go func() {
		if conn, err := ln.Accept(); err == nil {
			conn.Close()
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	conn, err := NewNetProber().Probe(t.Context(), net.ParseIP("::1"), port, time.Second)
	require.NoError(t, err)
	conn.Close()
}

func TestNetProber_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewNetProber().Probe(ctx, loopback, closedPort(t), time.Second)
	require.Error(t, err)
	assert.Equal(t, ReasonCanceled, classifyDialError(err))
}

func TestProberFunc(t *testing.T) {
	called := false
	p := ProberFunc(func(ctx context.Context, ip net.IP, port int, timeout time.Duration) (net.Conn, error) {
		called = true
		assert.Equal(t, 8080, port)
		return nil, syscall.ECONNREFUSED
	})

	_, err := p.Probe(context.Background(), loopback, 8080, time.Second)
	assert.True(t, called)
	assert.ErrorIs(t, err, syscall.ECONNREFUSED)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyDialError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "Nil", err: nil, want: ReasonNone},
		{name: "Refused", err: &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}, want: ReasonRefused},
		{name: "Host unreachable", err: &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.EHOSTUNREACH)}, want: ReasonUnreachable},
		{name: "Network unreachable", err: syscall.ENETUNREACH, want: ReasonUnreachable},
		{name: "Deadline", err: fmt.Errorf("dial: %w", context.DeadlineExceeded), want: ReasonTimeout},
		{name: "Net timeout", err: &net.OpError{Op: "dial", Err: timeoutErr{}}, want: ReasonTimeout},
		{name: "Canceled", err: &net.OpError{Op: "dial", Err: context.Canceled}, want: ReasonCanceled},
		{name: "Other", err: errors.New("no route"), want: ReasonError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyDialError(tt.err))
		})
	}
}
