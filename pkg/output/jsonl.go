package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/velemoonkon/portbolt/pkg/scanner"
)

// Writer writes port results as JSONL (JSON Lines) - one JSON object per line
// Each line carries the target so output from several runs can be concatenated.
type Writer struct {
	writer     *bufio.Writer
	target     string
	showClosed bool
	count      int
}

// record is the wire shape of one line
type record struct {
	Target string `json:"target"`
	*scanner.PortResult
}

// NewWriter creates a JSONL writer for results against target
// Closed ports are skipped unless showClosed is set.
func NewWriter(w io.Writer, target string, showClosed bool) *Writer {
	return &Writer{
		writer:     bufio.NewWriterSize(w, 64*1024), // 64KB buffer
		target:     target,
		showClosed: showClosed,
	}
}

// Report writes a single port result as a JSON line
func (w *Writer) Report(result *scanner.PortResult) error {
	if !result.Open() && !w.showClosed {
		return nil
	}

	data, err := json.Marshal(record{Target: w.target, PortResult: result})
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if _, err := w.writer.Write(data); err != nil {
		return err
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return err
	}

	w.count++

	// Open ports are rare; flush them at once so pipelines see them live
	if result.Open() || w.count%100 == 0 {
		return w.writer.Flush()
	}

	return nil
}

// Close flushes buffered lines
// The underlying writer is left open.
func (w *Writer) Close() error {
	return w.writer.Flush()
}

// Count returns the number of lines written
func (w *Writer) Count() int {
	return w.count
}
