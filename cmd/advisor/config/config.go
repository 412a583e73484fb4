// Package configcmder provides the config command for managing persistent
// advisor configuration stored in the .advisor/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/advisor/pkg/cliui"
	"github.com/papercomputeco/advisor/pkg/config"
)

const configLongDesc string = `Manage persistent advisor configuration.

Configuration is stored as config.toml in the .advisor/ directory and provides
default values for command flags. CLI flags and ADVISOR_* environment
variables take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  client.endpoint, client.credential, client.timeout,
  relay.listen, relay.credential, relay.upstream, relay.upstream_key,
  relay.model, relay.system_prompt,
  eventstream.provider, eventstream.brokers, eventstream.topic,
  log.json, log.pretty

Use subcommands to get, set, or list configuration values:
  advisor config set <key> <value>    Set a configuration value
  advisor config get <key>            Get a configuration value
  advisor config list                 List all configuration values

Examples:
  advisor config set client.endpoint https://abc.supabase.co/functions/v1/career-advisor
  advisor config set eventstream.brokers localhost:9092,localhost:9093
  advisor config get client.timeout
  advisor config list`

const configShortDesc string = "Manage persistent advisor configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func validateKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func printTarget(w io.Writer, target string) {
	if target != "" {
		fmt.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
		return
	}
	fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}

// isSecret reports whether key holds a credential that is masked on display.
func isSecret(key string) bool {
	return strings.HasSuffix(key, "credential") || strings.HasSuffix(key, "_key")
}

// displayValue masks secrets, keeping a short prefix for recognition.
func displayValue(key, value string) string {
	if !isSecret(key) || value == "" {
		return value
	}
	if len(value) <= 8 {
		return "********"
	}
	return value[:4] + "********"
}
