package persistence

import (
	"context"
	"time"

	"github.com/MimeLyc/travel-concierge/internal/llm"
)

// Store keeps conversation state keyed by thread id. Threads are created by
// their first append and never deleted.
type Store interface {
	LoadMessages(ctx context.Context, threadID string) ([]llm.Message, error)
	AppendMessages(ctx context.Context, threadID string, msgs []llm.Message) error
	ListThreads(ctx context.Context) ([]Thread, error)
	Close() error
}

type Thread struct {
	ID           string    `json:"id"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
