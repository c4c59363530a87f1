package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variable prefix for all portbolt settings
const envPrefix = "PORTBOLT_"

// ScannerConfig contains configurable scan engine settings
type ScannerConfig struct {
	// Channel buffer between port tasks and the result collector
	ResultChannelBuffer int

	// CLI defaults (overridable via CLI)
	DefaultConcurrency int
	DefaultTimeout     time.Duration
	DefaultRateLimit   int
}

// BannerConfig contains banner capture settings
type BannerConfig struct {
	// Upper bound on bytes read from a single service
	MaxBytes int

	// Probe payload strategy: "fixed" or "random"
	Payload string

	// Greeting sent by the fixed strategy
	FixedPayload string

	// Length of the random strategy payload
	RandomPayloadLen int
}

// ResolverConfig contains target resolution settings
type ResolverConfig struct {
	HostsFile  string
	ResolvConf string
	Timeout    time.Duration
}

// ICMPConfig contains reachability pre-check settings
type ICMPConfig struct {
	Timeout    time.Duration
	Count      int
	Privileged bool
}

// DefaultScannerConfig returns default scanner configuration
func DefaultScannerConfig() ScannerConfig {
	return ScannerConfig{
		ResultChannelBuffer: getEnvInt("SCANNER_RESULT_BUFFER", 1000),              // 1000 results
		DefaultConcurrency:  getEnvInt("DEFAULT_CONCURRENCY", 200),                 // 200 in-flight ports
		DefaultTimeout:      getEnvDuration("DEFAULT_TIMEOUT", 1000*time.Millisecond), // 1s per attempt
		DefaultRateLimit:    getEnvInt("DEFAULT_RATE_LIMIT", 0),                    // unlimited
	}
}

// DefaultBannerConfig returns default banner configuration
func DefaultBannerConfig() BannerConfig {
	return BannerConfig{
		MaxBytes:         getEnvInt("BANNER_MAX_BYTES", 4096),
		Payload:          strings.ToLower(getEnvString("PROBE_PAYLOAD", "fixed")),
		FixedPayload:     getEnvString("FIXED_PAYLOAD", "hai\r\n"),
		RandomPayloadLen: getEnvInt("RANDOM_PAYLOAD_LEN", 8),
	}
}

// DefaultResolverConfig returns default resolver configuration
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		HostsFile:  getEnvString("HOSTS_FILE", "/etc/hosts"),
		ResolvConf: getEnvString("RESOLV_CONF", "/etc/resolv.conf"),
		Timeout:    getEnvDuration("RESOLVER_TIMEOUT", 5*time.Second),
	}
}

// DefaultICMPConfig returns default ICMP configuration
func DefaultICMPConfig() ICMPConfig {
	return ICMPConfig{
		Timeout: getEnvDuration("PING_TIMEOUT", 2*time.Second),
		Count:   getEnvInt("PING_COUNT", 1),
		// Unprivileged datagram sockets work without root on most Linux hosts
		Privileged: getEnvBool("PING_PRIVILEGED", false),
	}
}

// getEnvInt retrieves an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(envPrefix + key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable with a default value
// Accepts values like "500ms", "5s", "1m"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if val := os.Getenv(envPrefix + key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable with a default value
// Accepts: "true", "false", "1", "0", "yes", "no" (case-insensitive)
func getEnvBool(key string, defaultValue bool) bool {
	if val := os.Getenv(envPrefix + key); val != "" {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return defaultValue
}

// getEnvString retrieves a string environment variable with a default value
func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(envPrefix + key); val != "" {
		return val
	}
	return defaultValue
}

// Global configuration instances (initialized once at startup)
var (
	Scanner  = DefaultScannerConfig()
	Banner   = DefaultBannerConfig()
	Resolver = DefaultResolverConfig()
	ICMP     = DefaultICMPConfig()
)

// Init initializes all configuration from environment variables
// Call this at application startup
func Init() {
	Scanner = DefaultScannerConfig()
	Banner = DefaultBannerConfig()
	Resolver = DefaultResolverConfig()
	ICMP = DefaultICMPConfig()
}
