package scanner

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"os"
	"strings"
	"time"
	"unicode"
)

// Payload produces the bytes sent to an open port to elicit a banner
// The content is a convention only: many services answer regardless, others stay silent.
type Payload interface {
	Bytes() []byte
}

// FixedPayload sends the same greeting to every port
type FixedPayload []byte

// Bytes returns the greeting
func (p FixedPayload) Bytes() []byte {
	return p
}

// RandomPayload sends Length pseudo-random printable ASCII bytes followed by CRLF
type RandomPayload struct {
	Length int
}

// Bytes returns a fresh payload on every call
func (p RandomPayload) Bytes() []byte {
	n := max(p.Length, 1)
	buf := make([]byte, n, n+2)
	for i := range buf {
		buf[i] = byte('!' + rand.IntN('~'-'!'+1))
	}
	return append(buf, '\r', '\n')
}

// NewPayload creates a payload strategy by name ("fixed" or "random")
func NewPayload(name string, greeting string, randomLen int) (Payload, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "fixed":
		return FixedPayload(greeting), nil
	case "random":
		return RandomPayload{Length: randomLen}, nil
	default:
		return nil, fmt.Errorf("%w: %q (want fixed or random)", ErrUnknownPayload, name)
	}
}

// CollectBanner sends payload on an open connection and reads the reply
// Reading stops at EOF, when timeout elapses, after maxBytes, or on a read error; whatever
// arrived before that is the banner. Write and read errors are never returned: a service
// that sent nothing yields an empty banner. The connection is always closed. Invalid UTF-8
// is replaced and trailing whitespace trimmed.
func CollectBanner(conn net.Conn, timeout time.Duration, payload Payload, maxBytes int) string {
	defer conn.Close()

	// One absolute deadline covers the write and every read
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return ""
	}

	// Services that greet first may already have closed their side; still read what they sent
	if payload != nil {
		if b := payload.Bytes(); len(b) > 0 {
			_, _ = conn.Write(b)
		}
	}

	var r io.Reader = conn
	if maxBytes > 0 {
		r = io.LimitReader(conn, int64(maxBytes))
	}

	data, err := io.ReadAll(r)
	if err != nil && !isDeadline(err) {
		slog.Debug("banner read interrupted", "remote", conn.RemoteAddr(), "bytes", len(data), "error", err)
	}

	return decodeBanner(data)
}

// decodeBanner converts raw bytes to trimmed, valid UTF-8 text
func decodeBanner(data []byte) string {
	text := strings.ToValidUTF8(string(data), "\uFFFD")
	return strings.TrimRightFunc(text, unicode.IsSpace)
}

func isDeadline(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
