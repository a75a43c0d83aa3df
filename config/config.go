/*
Package config implements a parser for esl2tpd configuration.

The configuration is TOML-encoded.  The top level configures the
control protocol engine; each [channel.<name>] table declares a local
datagram socket to which an established session's traffic is relayed.

	listen = "192.168.1.1"
	host_name = "lns.example.com"
	router_id = 42

	# timeouts are expressed in milliseconds
	hello_timeout = 5000
	retry_timeout = 1000
	ack_timeout = 100
	max_retries = 3

	metrics_address = "localhost:9091"

	[channel.ts16]
	socket_path = "/run/esl2tpd/ts16.sock"
	remote_end_id = "trunk0/16"
*/
package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/pelletier/go-toml"
)

// NamedChannel describes one local relay endpoint.  A session is bound
// to a channel by matching the peer's remote end id, falling back to
// the first unbound channel.
type NamedChannel struct {
	Name        string
	SocketPath  string
	RemoteEndID string
}

// Config contains parsed configuration.
type Config struct {
	// Map is the raw parsed configuration, which may be useful for
	// applications layering their own tables on top.
	Map map[string]interface{}

	Listen         string
	HostName       string
	RouterID       uint32
	HelloTimeout   time.Duration
	RetryTimeout   time.Duration
	AckTimeout     time.Duration
	MaxRetries     uint
	MetricsAddress string
	Channels       []NamedChannel
}

func toString(v interface{}) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("supplied value could not be parsed as a string")
}

func toUint(v interface{}) (uint, error) {
	if i, ok := v.(int64); ok && i >= 0 {
		return uint(i), nil
	}
	return 0, fmt.Errorf("supplied value could not be parsed as an unsigned integer")
}

func toUint32(v interface{}) (uint32, error) {
	i, ok := v.(int64)
	if !ok || i < 0 || i > 0xffffffff {
		return 0, fmt.Errorf("supplied value could not be parsed as a 32-bit unsigned integer")
	}
	return uint32(i), nil
}

// toDurationMs converts an integer count of milliseconds.
func toDurationMs(v interface{}) (time.Duration, error) {
	i, ok := v.(int64)
	if !ok || i < 0 {
		return 0, fmt.Errorf("supplied value could not be parsed as a duration")
	}
	return time.Duration(i) * time.Millisecond, nil
}

func (cfg *Config) loadChannel(name string, v interface{}) error {
	info, ok := v.(map[string]interface{})
	if !ok {
		return fmt.Errorf("channel %v: expected a table of parameters", name)
	}
	channel := NamedChannel{Name: name}
	var err error
	for k, v := range info {
		switch k {
		case "socket_path":
			if channel.SocketPath, err = toString(v); err != nil {
				return fmt.Errorf("channel %v: socket_path: %v", name, err)
			}
		case "remote_end_id":
			if channel.RemoteEndID, err = toString(v); err != nil {
				return fmt.Errorf("channel %v: remote_end_id: %v", name, err)
			}
		default:
			return fmt.Errorf("channel %v: unrecognised parameter %v", name, k)
		}
	}
	if channel.SocketPath == "" {
		return fmt.Errorf("channel %v: socket_path is required", name)
	}
	cfg.Channels = append(cfg.Channels, channel)
	return nil
}

func (cfg *Config) loadChannels(v interface{}) error {
	channels, ok := v.(map[string]interface{})
	if !ok {
		return fmt.Errorf("channel instances must be named, e.g. '[channel.ts16]'")
	}
	// Load in name order so channel precedence does not depend on map
	// iteration order.
	names := make([]string, 0, len(channels))
	for name := range channels {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := cfg.loadChannel(name, channels[name]); err != nil {
			return err
		}
	}
	return nil
}

func (cfg *Config) loadMap(m map[string]interface{}) error {
	var err error
	for k, v := range m {
		switch k {
		case "listen":
			if cfg.Listen, err = toString(v); err != nil {
				return fmt.Errorf("listen: %v", err)
			}
		case "host_name":
			if cfg.HostName, err = toString(v); err != nil {
				return fmt.Errorf("host_name: %v", err)
			}
		case "router_id":
			if cfg.RouterID, err = toUint32(v); err != nil {
				return fmt.Errorf("router_id: %v", err)
			}
		case "hello_timeout":
			if cfg.HelloTimeout, err = toDurationMs(v); err != nil {
				return fmt.Errorf("hello_timeout: %v", err)
			}
		case "retry_timeout":
			if cfg.RetryTimeout, err = toDurationMs(v); err != nil {
				return fmt.Errorf("retry_timeout: %v", err)
			}
		case "ack_timeout":
			if cfg.AckTimeout, err = toDurationMs(v); err != nil {
				return fmt.Errorf("ack_timeout: %v", err)
			}
		case "max_retries":
			if cfg.MaxRetries, err = toUint(v); err != nil {
				return fmt.Errorf("max_retries: %v", err)
			}
		case "metrics_address":
			if cfg.MetricsAddress, err = toString(v); err != nil {
				return fmt.Errorf("metrics_address: %v", err)
			}
		case "channel":
			if err = cfg.loadChannels(v); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unrecognised parameter %v", k)
		}
	}
	return nil
}

func newConfig(tree *toml.Tree) (*Config, error) {
	cfg := &Config{Map: tree.ToMap()}
	if err := cfg.loadMap(cfg.Map); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads configuration from the specified file.
func LoadFile(path string) (*Config, error) {
	tree, err := toml.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %v", err)
	}
	return newConfig(tree)
}

// LoadString loads configuration from a string.
func LoadString(content string) (*Config, error) {
	tree, err := toml.Load(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %v", err)
	}
	return newConfig(tree)
}
