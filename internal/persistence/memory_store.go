package persistence

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MimeLyc/travel-concierge/internal/llm"
)

// MemoryStore keeps threads in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*memoryThread
	now     func() time.Time
}

type memoryThread struct {
	messages  []llm.Message
	createdAt time.Time
	updatedAt time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		threads: make(map[string]*memoryThread),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) LoadMessages(_ context.Context, threadID string) ([]llm.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	th, ok := s.threads[threadID]
	if !ok {
		return []llm.Message{}, nil
	}
	return cloneMessages(th.messages), nil
}

func (s *MemoryStore) AppendMessages(_ context.Context, threadID string, msgs []llm.Message) error {
	if strings.TrimSpace(threadID) == "" {
		return fmt.Errorf("thread id is required")
	}
	if len(msgs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	th, ok := s.threads[threadID]
	if !ok {
		th = &memoryThread{createdAt: now}
		s.threads[threadID] = th
	}
	th.messages = append(th.messages, cloneMessages(msgs)...)
	th.updatedAt = now
	return nil
}

func (s *MemoryStore) ListThreads(context.Context) ([]Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ret := make([]Thread, 0, len(s.threads))
	for id, th := range s.threads {
		ret = append(ret, Thread{ID: id, MessageCount: len(th.messages), CreatedAt: th.createdAt, UpdatedAt: th.updatedAt})
	}
	sort.Slice(ret, func(i, j int) bool {
		if !ret[i].UpdatedAt.Equal(ret[j].UpdatedAt) {
			return ret[i].UpdatedAt.After(ret[j].UpdatedAt)
		}
		return ret[i].ID < ret[j].ID
	})
	return ret, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func cloneMessages(msgs []llm.Message) []llm.Message {
	out := make([]llm.Message, len(msgs))
	for i, m := range msgs {
		if m.ToolCalls != nil {
			m.ToolCalls = append([]llm.ToolCall(nil), m.ToolCalls...)
		}
		out[i] = m
	}
	return out
}
