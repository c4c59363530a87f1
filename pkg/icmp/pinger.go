// Package icmp checks whether the scan target answers ICMP echo requests.
package icmp

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const (
	protocolICMP   = 1
	protocolICMPv6 = 58
)

// Pinger sends ICMP echo requests to a single host
type Pinger struct {
	config Config
	id     int // ICMP identifier (process-unique)
	seqNum atomic.Uint32
}

// NewPinger creates a pinger, filling zero config values with defaults
func NewPinger(cfg Config) *Pinger {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.Count <= 0 {
		cfg.Count = 1
	}
	if cfg.PayloadSize < 8 {
		cfg.PayloadSize = 56
	}

	return &Pinger{
		config: cfg,
		id:     os.Getpid() & 0xffff,
	}
}

// Ping sends Count echo requests to ip and reports the round trips
// A host that never answers is not an error: the result is simply unreachable.
// Errors are returned only when no socket could be opened.
func (p *Pinger) Ping(ctx context.Context, ip net.IP) (*Result, error) {
	if ip == nil {
		return nil, errors.New("no target address")
	}

	isIPv6 := ip.To4() == nil
	conn, err := p.listen(isIPv6)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	result := &Result{
		IP:     ip.String(),
		IsIPv6: isIPv6,
	}

	var rtts []time.Duration
	for i := range p.config.Count {
		if err := ctx.Err(); err != nil {
			result.Error = err.Error()
			break
		}

		rtt, err := p.echo(ctx, conn, ip, isIPv6)
		result.PacketsSent++
		if err != nil {
			result.Error = err.Error()
			slog.Debug("echo failed", "ip", ip, "error", err)
		} else {
			result.PacketsRecv++
			rtts = append(rtts, rtt)
		}

		// Wait interval before next echo
		if i < p.config.Count-1 && p.config.Interval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(p.config.Interval):
			}
		}
	}

	result.summarize(rtts)
	if result.Reachable {
		result.Error = ""
	}
	return result, nil
}

func (p *Pinger) listen(isIPv6 bool) (*icmp.PacketConn, error) {
	network, address := "udp4", "0.0.0.0"
	if isIPv6 {
		network, address = "udp6", "::"
	}
	if p.config.Privileged {
		network = "ip4:icmp"
		if isIPv6 {
			network = "ip6:ipv6-icmp"
		}
	}

	conn, err := icmp.ListenPacket(network, address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", network, err)
	}
	return conn, nil
}

// echo sends one echo request and waits for the matching reply
func (p *Pinger) echo(ctx context.Context, conn *icmp.PacketConn, ip net.IP, isIPv6 bool) (time.Duration, error) {
	seq := int(p.seqNum.Add(1) & 0xffff)

	msgBytes, err := p.request(seq, isIPv6)
	if err != nil {
		return 0, err
	}

	var dst net.Addr = &net.UDPAddr{IP: ip}
	if p.config.Privileged {
		dst = &net.IPAddr{IP: ip}
	}

	deadline := time.Now().Add(p.config.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return 0, err
	}

	sentAt := time.Now()
	if _, err := conn.WriteTo(msgBytes, dst); err != nil {
		return 0, fmt.Errorf("failed to send ICMP: %w", err)
	}

	proto := protocolICMP
	if isIPv6 {
		proto = protocolICMPv6
	}

	buf := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return 0, fmt.Errorf("timeout waiting for reply from %s", ip)
			}
			return 0, err
		}
		if !samePeer(peer, ip) {
			continue
		}
		// Unprivileged sockets get their identifier rewritten by the kernel
		if isReply(proto, buf[:n], p.id, seq, p.config.Privileged) {
			return time.Since(sentAt), nil
		}
	}
}

// request builds an echo request carrying the send time in its payload
func (p *Pinger) request(seq int, isIPv6 bool) ([]byte, error) {
	var msgType icmp.Type = ipv4.ICMPTypeEcho
	if isIPv6 {
		msgType = ipv6.ICMPTypeEchoRequest
	}

	payload := make([]byte, p.config.PayloadSize)
	binary.BigEndian.PutUint64(payload, uint64(time.Now().UnixNano()))

	msg := &icmp.Message{
		Type: msgType,
		Code: 0,
		Body: &icmp.Echo{
			ID:   p.id,
			Seq:  seq,
			Data: payload,
		},
	}

	msgBytes, err := msg.Marshal(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ICMP message: %w", err)
	}
	return msgBytes, nil
}

// isReply reports whether data is the echo reply for seq
func isReply(proto int, data []byte, id, seq int, checkID bool) bool {
	msg, err := icmp.ParseMessage(proto, data)
	if err != nil {
		return false
	}
	if msg.Type != ipv4.ICMPTypeEchoReply && msg.Type != ipv6.ICMPTypeEchoReply {
		return false
	}

	echo, ok := msg.Body.(*icmp.Echo)
	if !ok || echo.Seq != seq {
		return false
	}
	return !checkID || echo.ID == id
}

func samePeer(peer net.Addr, ip net.IP) bool {
	switch addr := peer.(type) {
	case *net.IPAddr:
		return addr.IP.Equal(ip)
	case *net.UDPAddr:
		return addr.IP.Equal(ip)
	}
	return false
}
