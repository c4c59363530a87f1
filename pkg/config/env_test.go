package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	Init()

	assert.Equal(t, 200, Scanner.DefaultConcurrency)
	assert.Equal(t, time.Second, Scanner.DefaultTimeout)
	assert.Equal(t, 1000, Scanner.ResultChannelBuffer)
	assert.Equal(t, "fixed", Banner.Payload)
	assert.Equal(t, "hai\r\n", Banner.FixedPayload)
	assert.Equal(t, 4096, Banner.MaxBytes)
	assert.Equal(t, "/etc/resolv.conf", Resolver.ResolvConf)
	assert.Equal(t, "/etc/hosts", Resolver.HostsFile)
	assert.Equal(t, 2*time.Second, ICMP.Timeout)
	assert.Equal(t, 1, ICMP.Count)
	assert.False(t, ICMP.Privileged)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORTBOLT_DEFAULT_CONCURRENCY", "50")
	t.Setenv("PORTBOLT_DEFAULT_TIMEOUT", "250ms")
	t.Setenv("PORTBOLT_PROBE_PAYLOAD", "RANDOM")
	t.Setenv("PORTBOLT_PING_PRIVILEGED", "yes")
	t.Cleanup(Init)

	Init()

	assert.Equal(t, 50, Scanner.DefaultConcurrency)
	assert.Equal(t, 250*time.Millisecond, Scanner.DefaultTimeout)
	assert.Equal(t, "random", Banner.Payload)
	assert.True(t, ICMP.Privileged)
}

func TestInvalidEnvFallsBack(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "Non-numeric int", key: "PORTBOLT_BANNER_MAX_BYTES", val: "lots"},
		{name: "Bad duration", key: "PORTBOLT_RESOLVER_TIMEOUT", val: "5 seconds"},
		{name: "Bad bool", key: "PORTBOLT_PING_PRIVILEGED", val: "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			t.Cleanup(Init)
			Init()

			assert.Equal(t, 4096, Banner.MaxBytes)
			assert.Equal(t, 5*time.Second, Resolver.Timeout)
			assert.False(t, ICMP.Privileged)
		})
	}
}
