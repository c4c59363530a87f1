package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// ErrNoAddress is returned when a host has no A or AAAA record
var ErrNoAddress = errors.New("no address found")

// Resolver maps a target host to a single IP address
// Literal addresses are returned unchanged. Names are looked up in the hosts file, then with
// A then AAAA queries against the configured nameservers, then with the system resolver.
type Resolver struct {
	hostsFile string
	fallback  bool // try the system resolver when nameservers fail
	servers   []string
	config    *dns.ClientConfig
	udp       *dns.Client
	tcp       *dns.Client
}

// New creates a resolver from a hosts file and a resolv.conf file
// Names in the hosts file win. If resolv.conf cannot be read, or its nameservers cannot
// answer, the system resolver is used.
func New(hostsFile, resolvConf string, timeout time.Duration) *Resolver {
	r := newResolver(timeout)
	r.hostsFile = hostsFile
	r.fallback = true

	cc, err := dns.ClientConfigFromFile(resolvConf)
	if err != nil {
		slog.Debug("using system resolver", "resolv_conf", resolvConf, "error", err)
		return r
	}

	r.config = cc
	for _, server := range cc.Servers {
		r.servers = append(r.servers, net.JoinHostPort(server, cc.Port))
	}
	return r
}

// NewWithServers creates a resolver querying only the given nameservers ("host" or "host:port")
func NewWithServers(servers []string, timeout time.Duration) *Resolver {
	r := newResolver(timeout)
	for _, server := range servers {
		// Ensure server has port
		if _, _, err := net.SplitHostPort(server); err != nil {
			server = net.JoinHostPort(server, "53")
		}
		r.servers = append(r.servers, server)
	}
	return r
}

func newResolver(timeout time.Duration) *Resolver {
	return &Resolver{
		udp: &dns.Client{Net: "udp", Timeout: timeout},
		tcp: &dns.Client{Net: "tcp", Timeout: timeout},
	}
}

// Resolve returns the address to scan for host
// IPv4 answers are preferred over IPv6.
func (r *Resolver) Resolve(ctx context.Context, host string) (net.IP, error) {
	host = strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(host), "["), "]")
	if host == "" {
		return nil, fmt.Errorf("%w: empty host", ErrNoAddress)
	}

	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}

	if ip := preferIPv4(lookupHosts(r.hostsFile, host)); ip != nil {
		slog.Debug("resolved target from hosts file", "host", host, "file", r.hostsFile, "ip", ip)
		return ip, nil
	}

	if len(r.servers) == 0 {
		return lookupSystem(ctx, host)
	}

	ip, err := r.queryServers(ctx, host)
	if err == nil {
		return ip, nil
	}
	if !r.fallback {
		return nil, err
	}

	// nsswitch sources other than DNS (mDNS, LDAP, ...) are only reachable through the system
	slog.Debug("nameservers failed, trying system resolver", "host", host, "error", err)
	if ip, sysErr := lookupSystem(ctx, host); sysErr == nil {
		return ip, nil
	}
	return nil, err
}

// queryServers asks the configured nameservers for host across its search-list candidates
func (r *Resolver) queryServers(ctx context.Context, host string) (net.IP, error) {
	var lastErr error
	for _, name := range r.candidates(host) {
		for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
			ip, err := r.query(ctx, name, qtype)
			if err != nil {
				lastErr = err
				continue
			}
			if ip != nil {
				slog.Debug("resolved target", "host", host, "name", name, "ip", ip)
				return ip, nil
			}
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNoAddress, host, lastErr)
	}
	return nil, fmt.Errorf("%w: %s", ErrNoAddress, host)
}

// candidates expands host with resolv.conf search domains
func (r *Resolver) candidates(host string) []string {
	if r.config == nil || strings.HasSuffix(host, ".") {
		return []string{dns.Fqdn(host)}
	}
	return r.config.NameList(host)
}

// query asks each nameserver in turn and returns the first address of type qtype
// A nil address with a nil error means the name exists but has no such record.
func (r *Resolver) query(ctx context.Context, name string, qtype uint16) (net.IP, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true

	var lastErr error
	for _, server := range r.servers {
		resp, _, err := r.udp.ExchangeContext(ctx, msg, server)
		if err == nil && resp.Truncated {
			resp, _, err = r.tcp.ExchangeContext(ctx, msg, server)
		}
		if err != nil {
			lastErr = fmt.Errorf("query %s: %w", server, err)
			continue
		}

		switch resp.Rcode {
		case dns.RcodeSuccess:
			return firstAddress(resp, qtype), nil
		case dns.RcodeNameError:
			return nil, fmt.Errorf("%s: %s", name, dns.RcodeToString[resp.Rcode])
		default:
			lastErr = fmt.Errorf("query %s: %s", server, dns.RcodeToString[resp.Rcode])
		}
	}
	return nil, lastErr
}

// firstAddress returns the first A or AAAA record matching qtype, following no CNAMEs
// Recursive servers include the CNAME target's records in the answer section.
func firstAddress(resp *dns.Msg, qtype uint16) net.IP {
	for _, rr := range resp.Answer {
		switch rec := rr.(type) {
		case *dns.A:
			if qtype == dns.TypeA {
				return rec.A
			}
		case *dns.AAAA:
			if qtype == dns.TypeAAAA {
				return rec.AAAA
			}
		}
	}
	return nil
}

// lookupSystem resolves with the Go resolver, preferring IPv4
func lookupSystem(ctx context.Context, host string) (net.IP, error) {
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNoAddress, host, err)
	}
	if ip := preferIPv4(ips); ip != nil {
		return ip, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoAddress, host)
}
