// Package console runs the interactive text session.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/MimeLyc/travel-concierge/internal/service"
)

const prompt = "User: "

// Concierge answers one line of input.
type Concierge interface {
	Greeting(ctx context.Context) string
	Turn(ctx context.Context, threadID, input string) (*service.Reply, error)
}

// Renderer formats an answer for the terminal.
type Renderer interface {
	Render(markdown string) (string, error)
}

type Option func(*Console)

// WithMarkdown renders answers as terminal markdown.
func WithMarkdown(width int) Option {
	return func(c *Console) {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err == nil {
			c.renderer = r
		}
	}
}

// WithRenderer replaces the answer renderer.
func WithRenderer(r Renderer) Option {
	return func(c *Console) {
		c.renderer = r
	}
}

// WithThread pins the session to threadID instead of the concierge default.
func WithThread(threadID string) Option {
	return func(c *Console) {
		c.threadID = threadID
	}
}

type Console struct {
	concierge Concierge
	in        *bufio.Reader
	out       io.Writer
	renderer  Renderer
	threadID  string
}

func New(concierge Concierge, in io.Reader, out io.Writer, opts ...Option) *Console {
	if in == nil {
		in = strings.NewReader("")
	}
	if out == nil {
		out = io.Discard
	}
	c := &Console{
		concierge: concierge,
		in:        bufio.NewReader(in),
		out:       out,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run greets the user and answers lines until "quit", end of input or ctx
// is done. Failed turns are printed and the session continues.
func (c *Console) Run(ctx context.Context) error {
	if _, err := fmt.Fprintf(c.out, "%s\n", c.concierge.Greeting(ctx)); err != nil {
		return err
	}
	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := io.WriteString(c.out, prompt); err != nil {
			return err
		}
		line, err := c.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		eof := errors.Is(err, io.EOF)

		input := strings.TrimSpace(line)
		if strings.EqualFold(input, "quit") {
			_, werr := io.WriteString(c.out, "Goodbye!\n")
			return werr
		}
		if eof && input == "" {
			_, werr := io.WriteString(c.out, "\n")
			return werr
		}

		if werr := c.answer(ctx, input); werr != nil {
			return werr
		}
		if eof {
			return nil
		}
	}
}

func (c *Console) answer(ctx context.Context, input string) error {
	reply, err := c.concierge.Turn(ctx, c.threadID, input)
	if err != nil {
		_, werr := fmt.Fprintf(c.out, "%s\n", service.UserMessage(err))
		return werr
	}
	_, werr := fmt.Fprintf(c.out, "[%s]: %s\n", reply.Agent, c.render(reply.Answer))
	return werr
}

func (c *Console) render(answer string) string {
	if c.renderer == nil {
		return answer
	}
	rendered, err := c.renderer.Render(answer)
	if err != nil {
		return answer
	}
	return strings.TrimSpace(rendered)
}
