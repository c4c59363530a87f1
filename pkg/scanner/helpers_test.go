package scanner

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var loopback = net.ParseIP("127.0.0.1")

const dialTimeout = 2 * time.Second

// startListener serves handle on a loopback port and returns the port
func startListener(t *testing.T, handle func(net.Conn)) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go handle(conn)
		}
	}()

	return ln.Addr().(*net.TCPAddr).Port
}

// closedPort returns a loopback port that was just released and should refuse connections
func closedPort(t *testing.T) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

// greeter reads one line from the client, then replies with banner and closes
func greeter(banner string) func(net.Conn) {
	return func(conn net.Conn) {
		defer conn.Close()
		_, _ = bufio.NewReader(conn).ReadString('\n')
		_, _ = conn.Write([]byte(banner))
	}
}

// hangUp closes every connection as soon as it is accepted
func hangUp(conn net.Conn) {
	conn.Close()
}

// silent keeps connections open without sending anything until the test ends
func silent(t *testing.T) func(net.Conn) {
	done := make(chan struct{})
	t.Cleanup(func() { close(done) })
	return func(conn net.Conn) {
		<-done
		conn.Close()
	}
}

// dialLoopback opens a client connection to a loopback port
func dialLoopback(t *testing.T, port int) net.Conn {
	t.Helper()

	conn, err := NewNetProber().Probe(t.Context(), loopback, port, dialTimeout)
	require.NoError(t, err)
	return conn
}
