package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/velemoonkon/portbolt/pkg/config"
	"github.com/velemoonkon/portbolt/pkg/icmp"
	"github.com/velemoonkon/portbolt/pkg/metrics"
	"github.com/velemoonkon/portbolt/pkg/output"
	"github.com/velemoonkon/portbolt/pkg/resolve"
	"github.com/velemoonkon/portbolt/pkg/scanner"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// cliOptions holds every flag of one command instance
type cliOptions struct {
	scan ScanFlags

	// Output
	format     string
	showClosed bool
	title      bool

	// Extras
	ping        bool
	metricsAddr string

	// Logging
	logFormat string
	quiet     bool
	verbose   bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &cliOptions{scan: DefaultScanFlags()}

	cmd := &cobra.Command{
		Use:   "portbolt [flags] <IP address / hostname>",
		Short: "Fast concurrent TCP port scanner with banner grabbing",
		Long: `Portbolt - Fast TCP connect scanning with banner capture

Probes every port in a range on one host, many ports at a time:
  • Connect scan with a per-attempt timeout
  • Banner capture: sends a short greeting and prints the reply
  • Bounded concurrency (threads), optional rate limit

It is not required to give both min and max ports.
Every flag shows its default below; banners are on unless -n is given.`,

		Example: `  # Scan every port
  portbolt scanme.example.com

  # Ports 1024-1337 only
  portbolt 192.0.2.10 --minport 1024 --maxport 1337
  portbolt 192.0.2.10 -min 1024 -max 1337

  # From port 22 up, no banners, 500 in flight
  portbolt 192.0.2.10 --minport 22 -n -t 500

  # Stream open ports as JSON Lines
  portbolt 192.0.2.10 --format jsonl | jq .port

  # Expose Prometheus metrics while scanning
  portbolt 192.0.2.10 --metrics-addr 127.0.0.1:9109`,

		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// No target: show usage, success
			if len(args) == 0 {
				return cmd.Help()
			}
			return runScan(cmd.Context(), opts, args[0], stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	f := cmd.Flags()

	// Ports
	f.IntVar(&opts.scan.MinPort, "minport", opts.scan.MinPort, "First port to scan (-min also accepted)")
	f.IntVar(&opts.scan.MaxPort, "maxport", opts.scan.MaxPort, "Last port to scan (-max also accepted)")

	// Performance
	f.IntVarP(&opts.scan.Threads, "threads", "t", opts.scan.Threads, "Ports probed concurrently")
	f.IntVarP(&opts.scan.TimeoutMs, "timeout", "T", opts.scan.TimeoutMs, "Connect and banner timeout (ms)")
	f.IntVar(&opts.scan.Rate, "rate", opts.scan.Rate, "Max connection attempts/second (0 = unlimited)")
	f.IntVar(&opts.scan.MinLatencyMs, "min-latency", opts.scan.MinLatencyMs, "Minimum time per attempt (ms, 0 = off)")

	// Banner
	f.BoolVarP(&opts.scan.NoBanner, "nobanner", "n", false, "Skip banner capture")
	f.StringVar(&opts.scan.Probe, "probe", opts.scan.Probe, "Banner probe payload: fixed, random")

	// Output
	f.StringVar(&opts.format, "format", output.FormatText, "Output format: text, jsonl")
	f.BoolVar(&opts.showClosed, "show-closed", false, "Also report closed ports")
	f.BoolVar(&opts.title, "title", output.IsTerminal(stdout), "Show the port being probed in the terminal title")

	// Extras
	f.BoolVar(&opts.ping, "ping", false, "ICMP echo the target before scanning")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the scan")

	// Logging
	f.StringVar(&opts.logFormat, "log-format", "text", "Log format: text, json")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "Only log errors")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging")

	cmd.SetUsageTemplate(usageTemplate(opts.scan))
	return cmd
}

func runScan(ctx context.Context, opts *cliOptions, host string, stdout, stderr io.Writer) error {
	if err := initLogger(stderr, opts.logFormat, opts.verbose, opts.quiet); err != nil {
		return err
	}

	format, err := output.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle interrupt
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			slog.Info("stopping scan...")
			cancel()
		case <-ctx.Done():
		}
	}()

	// Validate flags before touching the network
	if _, err := ResolveScanConfig(opts.scan, net.IPv4zero); err != nil {
		return err
	}

	resolver := resolve.New(config.Resolver.HostsFile, config.Resolver.ResolvConf, config.Resolver.Timeout)
	target, err := resolver.Resolve(ctx, host)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", host, err)
	}

	cfg, err := ResolveScanConfig(opts.scan, target)
	if err != nil {
		return err
	}
	cfg.Quiet = opts.quiet

	if opts.ping {
		pingTarget(ctx, target)
	}

	if opts.metricsAddr != "" {
		collector := metrics.NewCollector()
		cfg.Metrics = collector
		go func() {
			if err := collector.Serve(ctx, opts.metricsAddr); err != nil {
				slog.Error("metrics server failed", "addr", opts.metricsAddr, "error", err)
			}
		}()
	}

	reporter, err := createReporter(format, opts, target, stdout, &cfg)
	if err != nil {
		return err
	}

	s, err := scanner.NewScanner(cfg)
	if err != nil {
		reporter.Close()
		return err
	}

	slog.Info("starting scan", "target", target, "ports", cfg.PortCount(), "threads", cfg.Concurrency)
	startTime := time.Now()

	resultCount, scanErr := s.ScanStream(ctx, reporter.Report)

	// Close reporter
	if closeErr := reporter.Close(); closeErr != nil && scanErr == nil {
		scanErr = closeErr
	}

	if scanErr != nil && ctx.Err() == nil {
		return fmt.Errorf("scan failed: %w", scanErr)
	}

	slog.Info("scan completed",
		"results", resultCount,
		"peak_slots", s.Slots().Peak(),
		"duration", time.Since(startTime).Round(time.Millisecond))

	return nil
}

// createReporter builds the reporter for format and hooks its title updates into cfg
func createReporter(format string, opts *cliOptions, target net.IP, stdout io.Writer, cfg *scanner.Config) (output.Reporter, error) {
	switch format {
	case output.FormatJSONL:
		return output.NewWriter(stdout, target.String(), opts.showClosed), nil

	default: // text
		console := output.NewConsole(stdout, output.ConsoleOptions{
			ShowClosed: opts.showClosed,
			Title:      opts.title,
		})
		if opts.title {
			cfg.Notify = console.NotifyProbing
		}
		if err := console.Header(target); err != nil {
			console.Close()
			return nil, err
		}
		return console, nil
	}
}

// pingTarget logs whether target answers ICMP echo; the scan runs either way
func pingTarget(ctx context.Context, target net.IP) {
	pinger := icmp.NewPinger(icmp.DefaultConfig())
	result, err := pinger.Ping(ctx, target)
	if err != nil {
		slog.Warn("ping unavailable", "error", err)
		return
	}
	if !result.Reachable {
		slog.Warn("target did not answer ping, scanning anyway", "ip", result.IP, "error", result.Error)
		return
	}
	slog.Info("target is up", "ip", result.IP, "rtt_ms", result.RTTMs)
}

func initLogger(w io.Writer, format string, verbose, quiet bool) error {
	var level slog.Level
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(format) {
	case "", "text":
		handler = slog.NewTextHandler(w, handlerOpts)
	case "json":
		handler = slog.NewJSONHandler(w, handlerOpts)
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

func main() {
	config.Init()

	cmd := newRootCmd(os.Stdout, os.Stderr)
	cmd.SetArgs(NormalizeArgs(os.Args[1:]))

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// usageTemplate renders the grouped help with the defaults currently in effect
// Defaults come from the environment, so they are formatted in rather than written down.
func usageTemplate(d ScanFlags) string {
	return fmt.Sprintf(usageFormat, d.MinPort, d.MaxPort, d.Threads, d.TimeoutMs, d.Rate, d.MinLatencyMs, d.Probe)
}

const usageFormat = `Usage:
  {{.UseLine}}

Examples:
{{.Example}}

Ports:
      --minport int        First port, also -min (default %d)
      --maxport int        Last port, also -max (default %d)

Performance:
  -t, --threads int        Ports probed concurrently (default %d)
  -T, --timeout int        Connect and banner timeout in ms (default %d)
      --rate int           Max connection attempts/second, 0=unlimited (default %d)
      --min-latency int    Minimum time per attempt in ms, 0=off (default %d)

Banner:
  -n, --nobanner           Skip banner capture
      --probe string       Probe payload: fixed, random (default %q)

Output:
      --format string      Format: text, jsonl (default "text")
      --show-closed        Also report closed ports
      --title              Show the probed port in the terminal title (default on a terminal)

Extras:
      --ping               ICMP echo the target before scanning
      --metrics-addr string  Serve Prometheus /metrics on this address

Logging:
      --log-format string  Log format: text, json (default "text")
  -q, --quiet              Only log errors
  -v, --verbose            Verbose logging

Other:
  -h, --help               Show help
      --version            Show version
`
