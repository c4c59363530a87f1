package output

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/velemoonkon/portbolt/pkg/scanner"
)

// titleQueue bounds pending terminal-title updates; extra updates are dropped
const titleQueue = 64

// ConsoleOptions controls human-readable output
type ConsoleOptions struct {
	ShowClosed bool // Render closed ports too
	Title      bool // Update the terminal title with the port being probed
}

// Console prints results the way an operator reads them
// Output and title updates share one lock so escape sequences never split a line.
type Console struct {
	mu        sync.Mutex
	w         io.Writer
	opts      ConsoleOptions
	portStyle lipgloss.Style

	started time.Time
	ports   int
	open    int

	titles   chan int
	done     chan struct{}
	titleWg  sync.WaitGroup
	closeOne sync.Once
}

// NewConsole creates a console reporter writing to w
// Colors are used only when w is a color-capable terminal.
func NewConsole(w io.Writer, opts ConsoleOptions) *Console {
	renderer := lipgloss.NewRenderer(w)
	c := &Console{
		w:         w,
		opts:      opts,
		portStyle: renderer.NewStyle().Foreground(lipgloss.Color("10")), // bright green
		started:   time.Now(),
		titles:    make(chan int, titleQueue),
		done:      make(chan struct{}),
	}

	if opts.Title {
		c.titleWg.Go(c.titleLoop)
	}
	return c
}

// Header announces the scan target
func (c *Console) Header(target net.IP) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.started = time.Now()
	_, err := fmt.Fprintf(c.w, "Scanning host: %s\n\n", target)
	return err
}

// Report renders one port result
func (c *Console) Report(result *scanner.PortResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ports++
	port := c.portStyle.Render(strconv.Itoa(result.Port))

	var err error
	switch {
	case result.Open() && result.Banner != "":
		c.open++
		_, err = fmt.Fprintf(c.w, "Port %s is open, banner:\n\n%s\n\n", port, sanitizeBanner(result.Banner))
	case result.Open():
		c.open++
		_, err = fmt.Fprintf(c.w, "Port %s is open\n\n", port)
	case c.opts.ShowClosed:
		_, err = fmt.Fprintf(c.w, "Port %d is closed\n\n", result.Port)
	}
	return err
}

// sanitizeBanner escapes control characters so a remote service cannot drive the terminal
// Tabs and newlines are kept; CR before LF is dropped.
func sanitizeBanner(banner string) string {
	var b strings.Builder
	b.Grow(len(banner))
	for i, r := range banner {
		switch {
		case r == '\t' || r == '\n':
			b.WriteRune(r)
		case r == '\r' && i+1 < len(banner) && banner[i+1] == '\n':
		case unicode.IsControl(r): // C0, DEL and C1
			fmt.Fprintf(&b, "\\x%02x", r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NotifyProbing queues a terminal-title update for port without blocking
// Updates are dropped when the queue is full or the console is closed.
func (c *Console) NotifyProbing(port int) {
	if !c.opts.Title {
		return
	}
	select {
	case <-c.done:
	case c.titles <- port:
	default:
	}
}

func (c *Console) titleLoop() {
	for {
		select {
		case <-c.done:
			return
		case port := <-c.titles:
			c.mu.Lock()
			fmt.Fprintf(c.w, "\x1b]2;Probing port %d\x07", port)
			c.mu.Unlock()
		}
	}
}

// Close stops title updates and prints the summary line
func (c *Console) Close() error {
	c.closeOne.Do(func() { close(c.done) })
	c.titleWg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.opts.Title {
		fmt.Fprint(c.w, "\x1b]2;\x07")
	}
	_, err := fmt.Fprintf(c.w, "Scanned %d ports in %s, %d open\n",
		c.ports, time.Since(c.started).Round(time.Millisecond), c.open)
	return err
}

// Counts returns the ports reported so far and how many were open
func (c *Console) Counts() (ports, open int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ports, c.open
}
