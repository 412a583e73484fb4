package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent advisor configuration stored as
// config.toml in the .advisor/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Client      ClientConfig      `toml:"client"`
	Relay       RelayConfig       `toml:"relay"`
	EventStream EventStreamConfig `toml:"eventstream"`
	Log         LogConfig         `toml:"log"`
}

// ClientConfig holds settings for commands that talk to the chat endpoint
// (advisor chat, advisor ask).
type ClientConfig struct {
	// Endpoint is the full URL of the chat-completion endpoint.
	Endpoint string `toml:"endpoint,omitempty"`

	// Credential is the bearer token sent with every request. It is usually
	// supplied through ADVISOR_CLIENT_CREDENTIAL rather than the file.
	Credential string `toml:"credential,omitempty"`

	// Timeout bounds one exchange, e.g. "5m". Empty or "0" disables it.
	Timeout string `toml:"timeout,omitempty"`
}

// TimeoutDuration parses Timeout. An empty value is zero.
func (c ClientConfig) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid client.timeout %q: %w", c.Timeout, err)
	}
	return d, nil
}

// RelayConfig holds relay server settings.
type RelayConfig struct {
	Listen       string `toml:"listen,omitempty"`
	Credential   string `toml:"credential,omitempty"`
	Upstream     string `toml:"upstream,omitempty"`
	UpstreamKey  string `toml:"upstream_key,omitempty"`
	Model        string `toml:"model,omitempty"`
	SystemPrompt string `toml:"system_prompt,omitempty"`
}

// EventStreamConfig selects where completed turns are published.
type EventStreamConfig struct {
	// Provider is "nop" or "kafka".
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// LogConfig holds logger output settings.
type LogConfig struct {
	JSON   bool `toml:"json"`
	Pretty bool `toml:"pretty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"client.endpoint": {
		get: func(c *Config) string { return c.Client.Endpoint },
		set: func(c *Config, v string) error { c.Client.Endpoint = v; return nil },
	},
	"client.credential": {
		get: func(c *Config) string { return c.Client.Credential },
		set: func(c *Config, v string) error { c.Client.Credential = v; return nil },
	},
	"client.timeout": {
		get: func(c *Config) string { return c.Client.Timeout },
		set: func(c *Config, v string) error {
			if v != "" {
				if _, err := time.ParseDuration(v); err != nil {
					return fmt.Errorf("invalid value for client.timeout: %w", err)
				}
			}
			c.Client.Timeout = v
			return nil
		},
	},
	"relay.listen": {
		get: func(c *Config) string { return c.Relay.Listen },
		set: func(c *Config, v string) error { c.Relay.Listen = v; return nil },
	},
	"relay.credential": {
		get: func(c *Config) string { return c.Relay.Credential },
		set: func(c *Config, v string) error { c.Relay.Credential = v; return nil },
	},
	"relay.upstream": {
		get: func(c *Config) string { return c.Relay.Upstream },
		set: func(c *Config, v string) error { c.Relay.Upstream = v; return nil },
	},
	"relay.upstream_key": {
		get: func(c *Config) string { return c.Relay.UpstreamKey },
		set: func(c *Config, v string) error { c.Relay.UpstreamKey = v; return nil },
	},
	"relay.model": {
		get: func(c *Config) string { return c.Relay.Model },
		set: func(c *Config, v string) error { c.Relay.Model = v; return nil },
	},
	"relay.system_prompt": {
		get: func(c *Config) string { return c.Relay.SystemPrompt },
		set: func(c *Config, v string) error { c.Relay.SystemPrompt = v; return nil },
	},
	"eventstream.provider": {
		get: func(c *Config) string { return c.EventStream.Provider },
		set: func(c *Config, v string) error {
			switch v {
			case "", "nop", "kafka":
				c.EventStream.Provider = v
				return nil
			default:
				return fmt.Errorf("invalid value for eventstream.provider: %q (available: nop, kafka)", v)
			}
		},
	},
	"eventstream.brokers": {
		get: func(c *Config) string { return strings.Join(c.EventStream.Brokers, ",") },
		set: func(c *Config, v string) error { c.EventStream.Brokers = splitList(v); return nil },
	},
	"eventstream.topic": {
		get: func(c *Config) string { return c.EventStream.Topic },
		set: func(c *Config, v string) error { c.EventStream.Topic = v; return nil },
	},
	"log.json": {
		get: func(c *Config) string { return strconv.FormatBool(c.Log.JSON) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for log.json: %w", err)
			}
			c.Log.JSON = b
			return nil
		},
	},
	"log.pretty": {
		get: func(c *Config) string { return strconv.FormatBool(c.Log.Pretty) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for log.pretty: %w", err)
			}
			c.Log.Pretty = b
			return nil
		},
	},
}

// splitList splits a comma separated value, dropping empty entries.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
