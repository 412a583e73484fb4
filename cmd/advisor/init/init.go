// Package initcmder provides the init command for initializing a local
// .advisor directory in the current working directory.
package initcmder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/advisor/pkg/cliui"
	"github.com/papercomputeco/advisor/pkg/config"
)

const (
	dirName = ".advisor"

	// maxRemoteConfigSize bounds a config.toml fetched with --preset <url>.
	maxRemoteConfigSize = 1 << 20

	remoteConfigTimeout = 30 * time.Second
)

const initLongDesc string = `Initialize a new .advisor/ directory in the current working directory.

Creates a local .advisor/ directory, which takes precedence over ~/.advisor/,
and writes a config.toml. Without --preset the config holds the defaults and
an existing config.toml is left alone; with --preset it is overwritten.

Presets:
  supabase   The client talks to a hosted career-advisor function
  local      The client talks to a relay started with "advisor serve"
  <url>      Fetch a config.toml from an http(s) URL

Examples:
  advisor init
  advisor init --preset local
  advisor init --preset https://example.com/advisor/config.toml`

const initShortDesc string = "Initialize a local .advisor/ directory"

type initCommander struct {
	preset string
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "",
		fmt.Sprintf("Config preset (%s) or URL of a config.toml", strings.Join(config.ValidPresetNames(), ", ")))

	return cmd
}

func (c *initCommander) run(ctx context.Context, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}
	dir := filepath.Join(cwd, dirName)

	// Resolve the preset before touching the filesystem so a bad preset
	// leaves no half-initialized directory behind.
	var cfg *config.Config
	if c.preset != "" {
		cfg, err = c.presetConfig(ctx)
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .advisor directory: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg == nil {
		if _, err := os.Stat(cfger.GetTarget()); err == nil {
			fmt.Fprintf(w, "  %s Already initialized: %s\n", cliui.SuccessMark, cliui.DimStyle.Render(dir))
			return nil
		}
		cfg = config.NewDefaultConfig()
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(w, "  %s Initialized %s\n", cliui.SuccessMark, cliui.DimStyle.Render(dir))
	fmt.Fprintf(w, "  %s %s\n", cliui.KeyStyle.Render("Endpoint:"), cliui.ValueStyle.Render(cfg.Client.Endpoint))
	if cfg.Client.Credential == "" {
		fmt.Fprintf(w, "  %s\n", cliui.DimStyle.Render(
			"Set the credential with \"advisor config set client.credential <key>\" or ADVISOR_CLIENT_CREDENTIAL."))
	}
	return nil
}

func (c *initCommander) presetConfig(ctx context.Context) (*config.Config, error) {
	if strings.HasPrefix(c.preset, "http://") || strings.HasPrefix(c.preset, "https://") {
		return fetchRemoteConfig(ctx, c.preset)
	}
	return config.PresetConfig(c.preset)
}

// fetchRemoteConfig downloads and parses a config.toml.
func fetchRemoteConfig(ctx context.Context, url string) (*config.Config, error) {
	ctx, cancel := context.WithTimeout(ctx, remoteConfigTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching remote config: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteConfigSize))
	if err != nil {
		return nil, fmt.Errorf("reading remote config: %w", err)
	}

	return config.ParseConfigTOML(data)
}
