package voyago

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrConversationNotFound is returned when deleting a conversation that
// does not exist.
var ErrConversationNotFound = errors.New("voyago: conversation not found")

// MemoryConversationStore is an in-memory ConversationStore. Useful for
// testing and single-process deployments; not durable.
type MemoryConversationStore struct {
	mu            sync.RWMutex
	conversations map[string]Conversation
}

// NewMemoryConversationStore creates an empty in-memory store.
func NewMemoryConversationStore() *MemoryConversationStore {
	return &MemoryConversationStore{
		conversations: make(map[string]Conversation),
	}
}

// Load retrieves a conversation by id. Unknown ids yield an empty
// conversation with the requested id.
func (s *MemoryConversationStore) Load(ctx context.Context, id string) (Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, exists := s.conversations[id]
	if !exists {
		return Conversation{ID: id}, nil
	}

	// Hand out a copy so the caller can read the history without racing
	// concurrent appends.
	out := conv
	out.Turns = make([]ConversationTurn, len(conv.Turns))
	copy(out.Turns, conv.Turns)
	return out, nil
}

// Append adds turns, creating the conversation if needed.
func (s *MemoryConversationStore) Append(ctx context.Context, id string, turns ...ConversationTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	conv, exists := s.conversations[id]
	if !exists {
		conv = Conversation{ID: id, CreatedAt: now}
	}
	conv.Turns = append(conv.Turns, turns...)
	conv.UpdatedAt = now
	s.conversations[id] = conv
	return nil
}

// Delete removes a conversation.
func (s *MemoryConversationStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conversations[id]; !exists {
		return ErrConversationNotFound
	}
	delete(s.conversations, id)
	return nil
}

// Count returns the number of conversations (useful for testing).
func (s *MemoryConversationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}
