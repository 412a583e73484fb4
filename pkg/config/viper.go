package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/advisor/pkg/dotdir"
)

// EnvPrefix prefixes every environment variable read by InitViper,
// e.g. ADVISOR_CLIENT_CREDENTIAL.
const EnvPrefix = "ADVISOR"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the ADVISOR_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (ADVISOR_CLIENT_ENDPOINT, ADVISOR_RELAY_LISTEN, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	target, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// StringList reads a list key that may come from a TOML array, a repeated
// flag, or a comma separated environment variable.
func StringList(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range v.GetStringSlice(key) {
		out = append(out, splitList(item)...)
	}
	return out
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("client.endpoint", d.Client.Endpoint)
	v.SetDefault("client.credential", d.Client.Credential)
	v.SetDefault("client.timeout", d.Client.Timeout)

	v.SetDefault("relay.listen", d.Relay.Listen)
	v.SetDefault("relay.credential", d.Relay.Credential)
	v.SetDefault("relay.upstream", d.Relay.Upstream)
	v.SetDefault("relay.upstream_key", d.Relay.UpstreamKey)
	v.SetDefault("relay.model", d.Relay.Model)
	v.SetDefault("relay.system_prompt", d.Relay.SystemPrompt)

	v.SetDefault("eventstream.provider", d.EventStream.Provider)
	v.SetDefault("eventstream.brokers", d.EventStream.Brokers)
	v.SetDefault("eventstream.topic", d.EventStream.Topic)

	v.SetDefault("log.json", d.Log.JSON)
	v.SetDefault("log.pretty", d.Log.Pretty)
}
