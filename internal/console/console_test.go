package console

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/travel-concierge/internal/service"
)

type fakeConcierge struct {
	inputs  []string
	threads []string
}

func (f *fakeConcierge) Greeting(context.Context) string { return "Hello traveller!" }

func (f *fakeConcierge) Turn(_ context.Context, threadID, input string) (*service.Reply, error) {
	f.inputs = append(f.inputs, input)
	f.threads = append(f.threads, threadID)
	switch input {
	case "":
		return nil, service.NewError(service.ErrMissingInput, "Please type a question.")
	case "boom":
		return nil, service.WrapError(errors.New("503"), service.ErrUpstream, "the weather agent could not answer")
	}
	return &service.Reply{Agent: service.LabelWeather, Answer: "Sunny in " + input}, nil
}

type upperRenderer struct{}

func (upperRenderer) Render(s string) (string, error) { return "\n" + strings.ToUpper(s) + "\n", nil }

func TestRun_AnswersUntilQuit(t *testing.T) {
	fake := &fakeConcierge{}
	var out bytes.Buffer
	c := New(fake, strings.NewReader("Tokyo\nQUIT\nParis\n"), &out)

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, []string{"Tokyo"}, fake.inputs)
	assert.Equal(t, "Hello traveller!\nUser: [Weather Agent]: Sunny in Tokyo\nUser: Goodbye!\n", out.String())
}

func TestRun_ErrorsDoNotEndSession(t *testing.T) {
	fake := &fakeConcierge{}
	var out bytes.Buffer
	c := New(fake, strings.NewReader("boom\n\nLima"), &out, WithThread("t7"))

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, []string{"boom", "", "Lima"}, fake.inputs)
	assert.Equal(t, []string{"t7", "t7", "t7"}, fake.threads)
	text := out.String()
	assert.Contains(t, text, "Sorry, the weather agent could not answer.")
	assert.Contains(t, text, "Please type a question.\n")
	assert.Contains(t, text, "[Weather Agent]: Sunny in Lima\n")
}

func TestRun_EndOfInput(t *testing.T) {
	fake := &fakeConcierge{}
	var out bytes.Buffer
	require.NoError(t, New(fake, strings.NewReader(""), &out).Run(context.Background()))
	assert.Empty(t, fake.inputs)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fake := &fakeConcierge{}
	require.NoError(t, New(fake, strings.NewReader("Tokyo\n"), nil).Run(ctx))
	assert.Empty(t, fake.inputs)
}

func TestRun_RendersAnswers(t *testing.T) {
	var out bytes.Buffer
	c := New(&fakeConcierge{}, strings.NewReader("Oslo\nquit\n"), &out, WithRenderer(upperRenderer{}))
	require.NoError(t, c.Run(context.Background()))
	assert.Contains(t, out.String(), "[Weather Agent]: SUNNY IN OSLO\n")
}

func TestWithMarkdown(t *testing.T) {
	c := New(&fakeConcierge{}, nil, nil, WithMarkdown(80))
	require.NotNil(t, c.renderer)
	assert.NotEmpty(t, c.render("**bold**"))
}
