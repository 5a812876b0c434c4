package voyago

import (
	"context"
	"time"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ConversationTurn is a single message in a conversation. Turns are
// immutable once appended.
type ConversationTurn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the ordered message history for one conversation id.
// The dispatch loop owns the loaded copy for the duration of one turn and
// hands new turns back to the store when the turn completes.
type Conversation struct {
	ID        string             `json:"id"`
	Turns     []ConversationTurn `json:"turns"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// ConversationStore persists conversation histories. Implementations must be
// safe for concurrent use; the dispatch loop treats Load as fail-fast.
type ConversationStore interface {
	// Load retrieves a conversation by id. Unknown ids return an empty
	// conversation so that new conversations can begin without a separate
	// create call.
	Load(ctx context.Context, id string) (Conversation, error)

	// Append adds turns to a conversation, creating it if absent. All turns
	// from one call land together; a completed turn appends its user message
	// and reply as a pair.
	Append(ctx context.Context, id string, turns ...ConversationTurn) error

	// Delete removes a conversation.
	Delete(ctx context.Context, id string) error
}
