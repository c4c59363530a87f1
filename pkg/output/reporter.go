// Package output renders scan results for people and for pipelines.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/velemoonkon/portbolt/pkg/scanner"
)

// Reporter receives results from the scan coordinator
// Report is never called concurrently, and results arrive in completion order.
type Reporter interface {
	Report(result *scanner.PortResult) error
	Close() error
}

// Output formats
const (
	FormatText  = "text"
	FormatJSONL = "jsonl"
)

// ParseFormat normalizes a --format value
func ParseFormat(format string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSONL, "json":
		return FormatJSONL, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or jsonl)", format)
	}
}

// IsTerminal reports whether w is an interactive terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
