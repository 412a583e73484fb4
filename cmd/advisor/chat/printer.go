package chatcmder

import (
	"fmt"
	"io"

	"github.com/papercomputeco/advisor/pkg/chat"
	"github.com/papercomputeco/advisor/pkg/cliui"
)

// streamPrinter writes a conversation to w as its snapshots arrive. Only
// assistant text is printed; the user already sees what they typed. Each
// snapshot writes just the bytes appended since the previous one.
type streamPrinter struct {
	w io.Writer

	seen    int
	printed int
	open    bool

	// failed is set while the session is in StateFailed, so the message
	// appended then is the failure notice.
	failed bool
}

func newStreamPrinter(w io.Writer) *streamPrinter {
	return &streamPrinter{w: w}
}

func (p *streamPrinter) onStateChange(_, to chat.State) {
	p.failed = to == chat.StateFailed
}

func (p *streamPrinter) onSnapshot(msgs []chat.Message) {
	if len(msgs) == 0 {
		return
	}

	last := msgs[len(msgs)-1]
	if len(msgs) != p.seen {
		p.finish()
		p.seen = len(msgs)
		p.printed = 0

		if last.Role != chat.RoleAssistant {
			return
		}
		if p.failed {
			fmt.Fprintln(p.w, cliui.AdvisorPrompt+cliui.NoticeStyle.Render(last.Content))
			return
		}

		fmt.Fprint(p.w, cliui.AdvisorPrompt)
		p.open = true
	}

	if !p.open {
		return
	}
	fmt.Fprint(p.w, last.Content[p.printed:])
	p.printed = len(last.Content)
}

// finish ends the line of an assistant message that is still open.
func (p *streamPrinter) finish() {
	if p.open {
		fmt.Fprintln(p.w)
		p.open = false
	}
}
