// Package chatcmder provides the interactive chat and one-shot ask commands
// that stream answers from the career-advisor endpoint.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/advisor/pkg/chat"
	"github.com/papercomputeco/advisor/pkg/cliui"
	"github.com/papercomputeco/advisor/pkg/logger"
)

type chatCommander struct {
	flags clientFlags

	streamer chat.Streamer
	logger   *slog.Logger

	out      io.Writer
	markdown bool

	session     *chat.Session
	printer     *streamPrinter
	unsubscribe func()
}

const chatLongDesc string = `Start an interactive conversation with the career advisor.

Type a question and press Enter; the answer is printed as it streams in.
The whole conversation is sent with every question, so follow-ups can refer
to earlier answers.

Commands:
  /suggest <n>   Ask one of the suggested questions
  /render        Re-render the last answer as markdown
  /clear         Start a new conversation
  /help          Show the commands
  /exit          Quit (also Ctrl+D)

Ctrl+C while an answer is streaming stops that answer.

Examples:
  advisor chat
  advisor chat --endpoint http://localhost:8080/functions/v1/career-advisor`

const chatShortDesc string = "Chat with the career advisor"

const chatHelp string = "/suggest <n>, /render, /clear, /help, /exit"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.streamer, cmder.logger, err = newStreamer(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cmder.markdown = isTerminal(cmd.OutOrStdout())

			return cmder.run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	addClientFlags(cmd, &cmder.flags)

	return cmd
}

func (c *chatCommander) run(ctx context.Context, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.logger == nil {
		c.logger = logger.Nop()
	}
	c.out = out

	c.newConversation()
	defer c.unsubscribe()

	fmt.Fprintf(out, "\n  %s\n\n", cliui.KeyStyle.Render("Ask about streams, entrance exams, colleges and careers."))
	c.printSuggestions()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, cliui.UserPrompt)
		if !scanner.Scan() {
			// EOF or error
			break
		}

		input := strings.TrimSpace(scanner.Text())
		switch {
		case input == "":
			continue

		case input == "/exit" || input == "/quit":
			fmt.Fprintln(out)
			return nil

		case input == "/clear":
			c.newConversation()
			fmt.Fprintf(out, "  %s New conversation\n\n", cliui.DimStyle.Render("●"))
			c.printSuggestions()

		case input == "/help":
			fmt.Fprintf(out, "  %s\n\n", cliui.DimStyle.Render(chatHelp))

		case input == "/render":
			c.renderLast()

		case input == "/suggest" || strings.HasPrefix(input, "/suggest "):
			question, err := suggestion(strings.TrimPrefix(input, "/suggest"))
			if err != nil {
				fmt.Fprintf(out, "  %s %v\n\n", cliui.FailMark, err)
				continue
			}
			fmt.Fprintf(out, "  %s\n", cliui.DimStyle.Render(question))
			c.submit(ctx, question)

		case strings.HasPrefix(input, "/"):
			fmt.Fprintf(out, "  %s unknown command %q. Try %s\n\n", cliui.FailMark, input, chatHelp)

		default:
			c.submit(ctx, input)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(out)
	return nil
}

// submit runs one turn. Input is not read while it runs, and an interrupt
// cancels only the turn in flight.
func (c *chatCommander) submit(ctx context.Context, text string) {
	turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	err := c.session.Submit(turnCtx, text)
	c.printer.finish()
	fmt.Fprintln(c.out)

	if err != nil {
		c.logger.Debug("turn failed", "error", err)
	}
}

// newConversation replaces the session with one on an empty conversation.
func (c *chatCommander) newConversation() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}

	c.session = chat.NewSession(c.streamer, chat.WithLogger(c.logger))
	c.printer = newStreamPrinter(c.out)
	c.session.OnStateChange(c.printer.onStateChange)
	c.unsubscribe = c.session.Conversation().Subscribe(c.printer.onSnapshot)
}

func (c *chatCommander) printSuggestions() {
	fmt.Fprintf(c.out, "  %s\n", cliui.DimStyle.Render("Try one of these with /suggest <n>:"))
	fmt.Fprint(c.out, cliui.FormatSuggestions(chat.SuggestedQuestions))
	fmt.Fprintf(c.out, "\n  %s\n\n", cliui.DimStyle.Render(chatHelp))
}

// renderLast prints the last answer again, as markdown on a terminal.
func (c *chatCommander) renderLast() {
	answer, ok := lastAnswer(c.session.Conversation().Messages())
	if !ok {
		fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("No answer to render yet."))
		return
	}

	if !c.markdown {
		fmt.Fprintf(c.out, "%s\n\n", answer)
		return
	}

	rendered, err := cliui.RenderMarkdown(answer)
	if err != nil {
		c.logger.Debug("rendering markdown", "error", err)
	}
	fmt.Fprint(c.out, rendered)
}

// suggestion resolves the argument of /suggest to a starter question.
func suggestion(arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	n, err := strconv.Atoi(arg)
	if err != nil {
		return "", fmt.Errorf("usage: /suggest <1-%d>", len(chat.SuggestedQuestions))
	}

	question, ok := chat.Suggestion(n)
	if !ok {
		return "", fmt.Errorf("no suggestion %d, pick 1-%d", n, len(chat.SuggestedQuestions))
	}
	return question, nil
}
