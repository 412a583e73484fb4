package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline, so the same logical flag
// (e.g. --endpoint on both "advisor chat" and "advisor ask") cannot drift.
type Flag struct {
	// Name is the long flag name (e.g. "endpoint").
	Name string

	// Shorthand is the one-letter short flag (e.g. "e"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "client.endpoint").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddStringSliceFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagEndpoint            = "endpoint"
	FlagTimeout             = "timeout"
	FlagListen              = "listen"
	FlagRelayCredential     = "relay-credential"
	FlagUpstream            = "upstream"
	FlagModel               = "model"
	FlagEventStreamProvider = "eventstream-provider"
	FlagEventStreamBrokers  = "eventstream-brokers"
	FlagEventStreamTopic    = "eventstream-topic"
)

// ClientFlags are the flags of the commands that talk to the chat endpoint.
// The credential has no flag; it comes from config.toml or
// ADVISOR_CLIENT_CREDENTIAL so it stays out of shell history.
var ClientFlags = FlagSet{
	FlagEndpoint: {
		Name:        "endpoint",
		Shorthand:   "e",
		ViperKey:    "client.endpoint",
		Description: "Career-advisor chat endpoint URL",
	},
	FlagTimeout: {
		Name:        "timeout",
		ViperKey:    "client.timeout",
		Description: "Timeout for one exchange including the streamed answer (e.g. 2m)",
	},
}

// RelayFlags are the flags of the relay server commands.
var RelayFlags = FlagSet{
	FlagListen: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "relay.listen",
		Description: "Address for the relay to listen on",
	},
	FlagRelayCredential: {
		Name:        "relay-credential",
		ViperKey:    "relay.credential",
		Description: "Bearer token clients must present (empty disables the check)",
	},
	FlagUpstream: {
		Name:        "upstream",
		Shorthand:   "u",
		ViperKey:    "relay.upstream",
		Description: "Base URL of the OpenAI-compatible upstream",
	},
	FlagModel: {
		Name:        "model",
		Shorthand:   "m",
		ViperKey:    "relay.model",
		Description: "Upstream model name",
	},
	FlagEventStreamProvider: {
		Name:        "eventstream-provider",
		ViperKey:    "eventstream.provider",
		Description: "Turn event publisher (nop, kafka)",
	},
	FlagEventStreamBrokers: {
		Name:        "eventstream-brokers",
		ViperKey:    "eventstream.brokers",
		Description: "Kafka broker addresses",
	},
	FlagEventStreamTopic: {
		Name:        "eventstream-topic",
		ViperKey:    "eventstream.topic",
		Description: "Kafka topic for turn events",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddStringSliceFlag registers a string slice flag on cmd from the given FlagSet.
func AddStringSliceFlag(cmd *cobra.Command, fs FlagSet, key string, target *[]string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultStringSlice(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringSliceVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringSliceVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultStringSlice returns the default slice value for a viper key from NewDefaultConfig.
func defaultStringSlice(viperKey string) []string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetStringSlice(viperKey)
}
