package chatcmder

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/advisor/pkg/chat"
	"github.com/papercomputeco/advisor/pkg/config"
	"github.com/papercomputeco/advisor/pkg/logger"
	"github.com/papercomputeco/advisor/pkg/transport"
)

// clientFlags are the flag targets shared by chat and ask.
type clientFlags struct {
	endpoint string
	timeout  string
}

func addClientFlags(cmd *cobra.Command, f *clientFlags) {
	config.AddStringFlag(cmd, config.ClientFlags, config.FlagEndpoint, &f.endpoint)
	config.AddStringFlag(cmd, config.ClientFlags, config.FlagTimeout, &f.timeout)
}

// newStreamer resolves the client configuration (flag > env > config.toml >
// default) and builds the transport client and the logger. Logs go to
// errOut so stdout only carries the conversation.
func newStreamer(cmd *cobra.Command, errOut io.Writer) (chat.Streamer, *slog.Logger, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")
	debug, _ := cmd.Flags().GetBool("debug")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.ClientFlags, []string{
		config.FlagEndpoint,
		config.FlagTimeout,
	})

	log := logger.New(
		logger.WithDebug(debug),
		logger.WithPretty(v.GetBool("log.pretty")),
		logger.WithJSON(v.GetBool("log.json")),
		logger.WithWriter(errOut),
	)

	var timeout time.Duration
	if raw := v.GetString("client.timeout"); raw != "" {
		timeout, err = time.ParseDuration(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid client timeout %q: %w", raw, err)
		}
	}

	client, err := transport.New(transport.Config{
		Endpoint:   v.GetString("client.endpoint"),
		Credential: v.GetString("client.credential"),
		Timeout:    timeout,
	}, transport.WithLogger(log))
	if err != nil {
		return nil, nil, fmt.Errorf("creating chat client: %w", err)
	}

	log.Debug("chat client configured",
		"endpoint", v.GetString("client.endpoint"),
		"timeout", timeout,
		"credential_set", v.GetString("client.credential") != "",
	)

	return client, log, nil
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// lastAnswer returns the content of the most recent assistant message.
func lastAnswer(msgs []chat.Message) (string, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == chat.RoleAssistant {
			return msgs[i].Content, true
		}
	}
	return "", false
}
