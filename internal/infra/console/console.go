// Package console is a line-oriented terminal front-end for the assistant.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"salon-assistant/internal/application"
	"salon-assistant/internal/domain"
)

type Conversation interface {
	SubmitText(ctx context.Context, text string) error
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) error
	State() domain.ActivityState
	Ready() bool
	Log() application.MessageReader
}

const help = `Type a message and press enter to send it.
  /rec      start recording a voice message
  /stop     stop recording and send it
  /history  show the whole conversation
  /quit     leave`

// Console reads commands from in and renders the conversation to out. It
// also implements application.Notifier, so it can be built before the
// orchestrator it later drives.
type Console struct {
	name        string
	in          io.Reader
	out         io.Writer
	logger      *slog.Logger
	interactive bool

	mu      sync.Mutex
	conv    Conversation
	printed int
}

func New(assistantName string, in io.Reader, out io.Writer, logger *slog.Logger) *Console {
	return &Console{
		name:        assistantName,
		in:          in,
		out:         out,
		logger:      logger,
		interactive: isTerminal(in),
	}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Run drives conv from input until /quit, end of input or ctx is done.
func (c *Console) Run(ctx context.Context, conv Conversation) error {
	c.mu.Lock()
	c.conv = conv
	c.printed = 0
	c.mu.Unlock()

	c.printNew()
	if c.interactive {
		c.println("(type /help for commands)")
	}

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		c.prompt()

		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("reading input: %w", err)
					}
				default:
				}
				return nil
			}
			if quit := c.handle(ctx, strings.TrimSpace(line)); quit {
				return nil
			}
		}
	}
}

func (c *Console) handle(ctx context.Context, line string) bool {
	var err error

	switch line {
	case "":
		return false
	case "/quit", "/exit":
		return true
	case "/help":
		c.println(help)
		return false
	case "/history":
		c.printHistory()
		return false
	case "/rec":
		err = c.conv.StartRecording(ctx)
	case "/stop":
		err = c.conv.StopRecording(ctx)
	default:
		if strings.HasPrefix(line, "/") {
			c.println("unknown command " + line + ", try /help")
			return false
		}
		err = c.conv.SubmitText(ctx, line)
	}

	if err != nil {
		c.println(c.explain(err))
	}
	c.printNew()
	return false
}

func (c *Console) explain(err error) string {
	switch {
	case errors.Is(err, domain.ErrSessionNotReady):
		return "Still connecting, try again in a moment."
	case errors.Is(err, domain.ErrBusy):
		if c.conv.State() == domain.StateRecording {
			return "Recording. Type /stop to send it first."
		}
		return "Busy, please wait."
	case errors.Is(err, domain.ErrNotRecording):
		return "Not recording. Type /rec to start."
	case errors.Is(err, domain.ErrEmptyInput):
		return ""
	default:
		c.logger.Error("console command failed", "error", err)
		return "Something went wrong."
	}
}

// Notify prints a transient notice.
func (c *Console) Notify(_ context.Context, notice domain.Notice) {
	c.println("! " + notice.Text)
}

// ShowState prints the status label for s. Register it with OnStateChange.
func (c *Console) ShowState(s domain.ActivityState) {
	if label := s.Label(c.name); label != "" {
		c.println("… " + label)
	}
}

func (c *Console) printNew() {
	c.mu.Lock()
	from := c.printed
	c.mu.Unlock()

	msgs := c.conv.Log().Since(from)
	for _, m := range msgs {
		c.println(c.render(m))
	}

	c.mu.Lock()
	c.printed = from + len(msgs)
	c.mu.Unlock()
}

func (c *Console) printHistory() {
	for _, m := range c.conv.Log().Messages() {
		c.println(fmt.Sprintf("[%s] %s", humanize.Time(m.CreatedAt), c.render(m)))
	}
}

func (c *Console) render(m domain.Message) string {
	var b strings.Builder

	switch {
	case m.Role == domain.RoleAssistant:
		b.WriteString(c.name)
	case m.FromVoice:
		b.WriteString("You (voice)")
	default:
		b.WriteString("You")
	}
	b.WriteString(": ")
	b.WriteString(m.Text)

	for i, chunk := range m.GroundingChunks {
		fmt.Fprintf(&b, "\n    [%d] %s <%s>", i+1, chunk.Label(), chunk.SourceURI())
		if ms, ok := chunk.(domain.MapSource); ok {
			for _, snippet := range ms.ReviewSnippets {
				fmt.Fprintf(&b, "\n        %q", snippet)
			}
		}
	}
	return b.String()
}

func (c *Console) prompt() {
	if !c.interactive {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.out, "> ")
}

func (c *Console) println(s string) {
	if s == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, s)
}
