// Package servecmder provides the command that runs the career-advisor relay.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/advisor/pkg/config"
	"github.com/papercomputeco/advisor/pkg/eventstream"
	"github.com/papercomputeco/advisor/pkg/eventstream/kafka"
	"github.com/papercomputeco/advisor/pkg/eventstream/nop"
	"github.com/papercomputeco/advisor/pkg/logger"
	"github.com/papercomputeco/advisor/pkg/relay"
)

type ServeCommander struct {
	listen     string
	credential string
	upstream   string
	model      string

	eventStreamProvider string
	eventStreamBrokers  []string
	eventStreamTopic    string

	logFile string
	debug   bool

	// listener, when set, is used instead of listening on the configured
	// address.
	listener net.Listener

	logger *slog.Logger
}

const serveLongDesc string = `Run the career-advisor relay.

The relay serves the chat endpoint that "advisor chat" talks to:
  POST /functions/v1/career-advisor   (alias: POST /chat)
  GET  /ping

It prepends the career-advisor system prompt to the conversation, forwards it
to an OpenAI-compatible upstream with streaming enabled and relays the answer
to the client byte for byte. Every completed answer is published as an
"advisor.turn.completed" event (nop by default, or Kafka).

The upstream key is read from config.toml (relay.upstream_key) or
ADVISOR_RELAY_UPSTREAM_KEY.

Examples:
  advisor serve
  advisor serve --listen :9090 --model google/gemini-2.5-flash
  advisor serve --eventstream-provider kafka --eventstream-brokers localhost:9092`

const serveShortDesc string = "Run the career-advisor relay"

var relayFlagKeys = []string{
	config.FlagListen,
	config.FlagRelayCredential,
	config.FlagUpstream,
	config.FlagModel,
	config.FlagEventStreamProvider,
	config.FlagEventStreamBrokers,
	config.FlagEventStreamTopic,
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.RelayFlags, relayFlagKeys)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return cmder.run(ctx, v, cmd.ErrOrStderr())
		},
	}

	config.AddStringFlag(cmd, config.RelayFlags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.RelayFlags, config.FlagRelayCredential, &cmder.credential)
	config.AddStringFlag(cmd, config.RelayFlags, config.FlagUpstream, &cmder.upstream)
	config.AddStringFlag(cmd, config.RelayFlags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, config.RelayFlags, config.FlagEventStreamProvider, &cmder.eventStreamProvider)
	config.AddStringSliceFlag(cmd, config.RelayFlags, config.FlagEventStreamBrokers, &cmder.eventStreamBrokers)
	config.AddStringFlag(cmd, config.RelayFlags, config.FlagEventStreamTopic, &cmder.eventStreamTopic)
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")

	return cmd
}

// run serves until ctx is done or the server fails.
func (c *ServeCommander) run(ctx context.Context, v *viper.Viper, errOut io.Writer) error {
	log, closeLog, err := c.newLogger(v, errOut)
	if err != nil {
		return err
	}
	defer closeLog()
	c.logger = log

	publisher, err := newPublisher(v)
	if err != nil {
		return err
	}
	defer publisher.Close()

	cfg := relayConfig(v)
	if cfg.UpstreamKey == "" {
		c.logger.Warn("no upstream key configured, set relay.upstream_key or ADVISOR_RELAY_UPSTREAM_KEY")
	}
	if cfg.Credential == "" {
		c.logger.Warn("relay credential is empty, requests are not authenticated")
	}

	r, err := relay.New(cfg, publisher, c.logger)
	if err != nil {
		return fmt.Errorf("creating relay: %w", err)
	}

	c.logger.Info("turn events enabled",
		"provider", eventStreamProvider(v),
		"topic", v.GetString("eventstream.topic"),
	)

	errChan := make(chan error, 1)
	go func() {
		if c.listener != nil {
			errChan <- r.RunWithListener(c.listener)
			return
		}
		errChan <- r.Run()
	}()

	select {
	case err := <-errChan:
		_ = r.Close()
		if err != nil {
			return fmt.Errorf("relay error: %w", err)
		}
		return nil
	case <-ctx.Done():
		c.logger.Info("shutting down relay")
		return r.Close()
	}
}

// newLogger builds the console logger, teed into a JSON log file when
// --log-file is set. The returned func closes the file.
func (c *ServeCommander) newLogger(v *viper.Viper, errOut io.Writer) (*slog.Logger, func(), error) {
	console := logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(v.GetBool("log.pretty")),
		logger.WithJSON(v.GetBool("log.json")),
		logger.WithWriter(errOut),
	)
	if c.logFile == "" {
		return console, func() {}, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	file := logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(true),
		logger.WithWriter(f),
	)
	return logger.Multi(console, file), func() { _ = f.Close() }, nil
}

// relayConfig reads the relay configuration from v.
func relayConfig(v *viper.Viper) relay.Config {
	return relay.Config{
		ListenAddr:   v.GetString("relay.listen"),
		Credential:   v.GetString("relay.credential"),
		UpstreamURL:  v.GetString("relay.upstream"),
		UpstreamKey:  v.GetString("relay.upstream_key"),
		Model:        v.GetString("relay.model"),
		SystemPrompt: v.GetString("relay.system_prompt"),
	}
}

func eventStreamProvider(v *viper.Viper) string {
	provider := strings.ToLower(strings.TrimSpace(v.GetString("eventstream.provider")))
	if provider == "" {
		return "nop"
	}
	return provider
}

// newPublisher creates the turn event publisher named by eventstream.provider.
func newPublisher(v *viper.Viper) (eventstream.Publisher, error) {
	switch provider := eventStreamProvider(v); provider {
	case "nop":
		return nop.NewPublisher(), nil

	case "kafka":
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: config.StringList(v, "eventstream.brokers"),
			Topic:   v.GetString("eventstream.topic"),
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		return p, nil

	default:
		return nil, errors.New("unknown eventstream provider: " + provider + " (available: nop, kafka)")
	}
}
