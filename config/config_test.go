package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadString(t *testing.T) {
	cfg, err := LoadString(`
listen = "192.0.2.10"
host_name = "lns.example.com"
router_id = 42
hello_timeout = 5000
retry_timeout = 1500
ack_timeout = 100
max_retries = 5
metrics_address = "localhost:9091"

[channel.ts16]
socket_path = "/run/esl2tpd/ts16.sock"
remote_end_id = "trunk0/16"

[channel.spare]
socket_path = "/run/esl2tpd/spare.sock"
`)
	require.NoError(t, err)
	require.Equal(t, "192.0.2.10", cfg.Listen)
	require.Equal(t, "lns.example.com", cfg.HostName)
	require.Equal(t, uint32(42), cfg.RouterID)
	require.Equal(t, 5*time.Second, cfg.HelloTimeout)
	require.Equal(t, 1500*time.Millisecond, cfg.RetryTimeout)
	require.Equal(t, 100*time.Millisecond, cfg.AckTimeout)
	require.Equal(t, uint(5), cfg.MaxRetries)
	require.Equal(t, "localhost:9091", cfg.MetricsAddress)

	require.Len(t, cfg.Channels, 2)
	// Channels come out in name order regardless of declaration or
	// map iteration order.
	require.Equal(t, "spare", cfg.Channels[0].Name)
	require.Equal(t, "", cfg.Channels[0].RemoteEndID)
	require.Equal(t, "ts16", cfg.Channels[1].Name)
	require.Equal(t, "/run/esl2tpd/ts16.sock", cfg.Channels[1].SocketPath)
	require.Equal(t, "trunk0/16", cfg.Channels[1].RemoteEndID)
}

func TestLoadStringDefaults(t *testing.T) {
	cfg, err := LoadString(`host_name = "lns"`)
	require.NoError(t, err)
	require.Equal(t, "", cfg.Listen)
	require.Equal(t, time.Duration(0), cfg.HelloTimeout)
	require.Empty(t, cfg.Channels)
}

func TestLoadStringErrors(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{
			name: "unrecognised parameter",
			in:   `hostname = "lns"`,
		},
		{
			name: "wrong type",
			in:   `router_id = "fortytwo"`,
		},
		{
			name: "negative duration",
			in:   `hello_timeout = -1`,
		},
		{
			name: "router id out of range",
			in:   `router_id = 4294967296`,
		},
		{
			name: "channel without a name",
			in: `[channel]
socket_path = "/run/foo.sock"`,
		},
		{
			name: "channel missing socket path",
			in: `[channel.ts16]
remote_end_id = "trunk0/16"`,
		},
		{
			name: "channel with unknown parameter",
			in: `[channel.ts16]
socket_path = "/run/foo.sock"
frobnicate = true`,
		},
		{
			name: "bad toml",
			in:   `listen = `,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := LoadString(c.in)
			require.Error(t, err)
		})
	}
}
