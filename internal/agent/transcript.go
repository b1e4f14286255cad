package agent

import (
	"fmt"

	"github.com/MimeLyc/travel-concierge/internal/llm"
)

// Transcript is an append-only message list that keeps tool results paired
// with the requests of the assistant message right before them.
type Transcript struct {
	messages []llm.Message
	pending  map[string]bool
}

// NewTranscript returns a transcript seeded with msgs, which must satisfy
// the same pairing rule as Append.
func NewTranscript(msgs ...llm.Message) (*Transcript, error) {
	t := &Transcript{}
	for _, m := range msgs {
		if err := t.Append(m); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Append adds m. A tool message is accepted only if its ToolCallID names a
// request of the preceding assistant message that has not been answered yet.
func (t *Transcript) Append(m llm.Message) error {
	switch m.Role {
	case llm.RoleTool:
		if !t.pending[m.ToolCallID] {
			return fmt.Errorf("%w: %q", ErrUnmatchedToolResult, m.ToolCallID)
		}
		delete(t.pending, m.ToolCallID)
	case llm.RoleAssistant:
		t.pending = nil
		if m.HasToolCalls() {
			t.pending = make(map[string]bool, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				t.pending[tc.ID] = true
			}
		}
	default:
		t.pending = nil
	}
	t.messages = append(t.messages, m)
	return nil
}

// Pending returns the number of unanswered requests.
func (t *Transcript) Pending() int {
	return len(t.pending)
}

// Messages returns a copy of the transcript.
func (t *Transcript) Messages() []llm.Message {
	return append([]llm.Message(nil), t.messages...)
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// Last returns the most recent message.
func (t *Transcript) Last() (llm.Message, bool) {
	if len(t.messages) == 0 {
		return llm.Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}
