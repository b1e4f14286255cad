package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/MimeLyc/travel-concierge/internal/llm"
	"github.com/MimeLyc/travel-concierge/internal/persistence"
)

// threadLocks serializes turns of the same thread
type threadLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newThreadLocks() *threadLocks {
	return &threadLocks{locks: make(map[string]*sync.Mutex)}
}

// lock blocks until threadID is free and returns its unlock func
func (l *threadLocks) lock(threadID string) func() {
	l.mu.Lock()
	m, ok := l.locks[threadID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[threadID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// threadCheckpoint loads a thread once per turn and saves the turn's messages
// only when the turn succeeds
type threadCheckpoint struct {
	store    persistence.Store
	threadID string
	history  []llm.Message
}

func loadThreadCheckpoint(ctx context.Context, store persistence.Store, threadID string) (*threadCheckpoint, error) {
	if store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	history, err := store.LoadMessages(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return &threadCheckpoint{store: store, threadID: threadID, history: history}, nil
}

func (c *threadCheckpoint) History() []llm.Message {
	return append([]llm.Message(nil), c.history...)
}

func (c *threadCheckpoint) Commit(ctx context.Context, turn []llm.Message) error {
	if err := c.store.AppendMessages(ctx, c.threadID, turn); err != nil {
		return err
	}
	c.history = append(c.history, turn...)
	return nil
}
