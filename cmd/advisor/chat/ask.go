package chatcmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/advisor/pkg/chat"
	"github.com/papercomputeco/advisor/pkg/cliui"
	"github.com/papercomputeco/advisor/pkg/logger"
)

type askCommander struct {
	flags clientFlags
	raw   bool

	streamer chat.Streamer
	logger   *slog.Logger
	markdown bool
}

const askLongDesc string = `Ask the career advisor a single question and print the answer.

The answer is rendered as markdown when stdout is a terminal. Progress is
written to stderr, so the answer can be piped or redirected.

Examples:
  advisor ask "Which stream should I choose after 10th?"
  advisor ask --raw What are the top engineering entrance exams > answer.md`

const askShortDesc string = "Ask the career advisor one question"

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.streamer, cmder.logger, err = newStreamer(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cmder.markdown = !cmder.raw && isTerminal(cmd.OutOrStdout())

			return cmder.run(cmd.Context(), strings.Join(args, " "), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	addClientFlags(cmd, &cmder.flags)
	cmd.Flags().BoolVar(&cmder.raw, "raw", false, "Print the answer without markdown rendering")

	return cmd
}

func (c *askCommander) run(ctx context.Context, question string, out, errOut io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.logger == nil {
		c.logger = logger.Nop()
	}
	if strings.TrimSpace(question) == "" {
		return chat.ErrEmptyInput
	}

	session := chat.NewSession(c.streamer, chat.WithLogger(c.logger))

	err := cliui.Step(errOut, "Asking the advisor", func() error {
		return session.Submit(ctx, question)
	})
	if err != nil {
		fmt.Fprintf(errOut, "  %s\n", cliui.NoticeStyle.Render(chat.FailureNotice))
		return err
	}

	answer, ok := lastAnswer(session.Conversation().Messages())
	if !ok {
		fmt.Fprintf(errOut, "  %s\n", cliui.DimStyle.Render("The advisor sent an empty answer."))
		return nil
	}

	if !c.markdown {
		_, err = fmt.Fprintln(out, answer)
		return err
	}

	rendered, err := cliui.RenderMarkdown(answer)
	if err != nil {
		c.logger.Debug("rendering markdown", "error", err)
	}
	_, err = fmt.Fprint(out, rendered)
	return err
}
