package resolve

import (
	"bufio"
	"net"
	"os"
	"strings"
)

// lookupHosts returns the addresses listed for host in a hosts(5) file, in file order
// A missing or unreadable file yields no addresses.
func lookupHosts(path, host string) []net.IP {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	host = strings.ToLower(strings.TrimSuffix(host, "."))

	var ips []net.IP
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		// Zone suffixes ("fe80::1%lo0") are not scannable targets
		ip := net.ParseIP(fields[0])
		if ip == nil {
			continue
		}
		for _, name := range fields[1:] {
			if strings.ToLower(strings.TrimSuffix(name, ".")) == host {
				ips = append(ips, ip)
				break
			}
		}
	}
	return ips
}

// preferIPv4 returns the first IPv4 address, else the first address
func preferIPv4(ips []net.IP) net.IP {
	for _, ip := range ips {
		if ip.To4() != nil {
			return ip
		}
	}
	if len(ips) > 0 {
		return ips[0]
	}
	return nil
}
