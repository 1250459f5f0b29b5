// Package storage provides SQLite-backed persistence for long-term memories
// and chat history. Stores are constructed explicitly and passed to their
// consumers; there is no package-level singleton.
package storage

import "context"

// Category classifies a long-term memory.
type Category string

const (
	CategoryFact         Category = "fact"
	CategoryPreference   Category = "preference"
	CategoryRelationship Category = "relationship"
	CategoryProject      Category = "project"
	CategoryEvent        Category = "event"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryFact, CategoryPreference, CategoryRelationship, CategoryProject, CategoryEvent:
		return true
	}
	return false
}

// LongTermMemory is one persisted memory record, scoped by the compound key
// (ConversationID, AssistantID).
type LongTermMemory struct {
	ID             string   `json:"id"`
	ConversationID string   `json:"conversation_id"`
	AssistantID    string   `json:"assistant_id"`
	Category       Category `json:"category"`
	Text           string   `json:"text"`
	Weight         int      `json:"weight"`     // importance 0-100
	CreatedAt      int64    `json:"created_at"` // epoch milliseconds
	UpdatedAt      int64    `json:"updated_at"`
}

// NewMemory holds the caller-supplied fields of a record; the store assigns
// ID and timestamps at save time.
type NewMemory struct {
	ConversationID string
	AssistantID    string
	Category       Category
	Text           string
	Weight         int
}

// MemoryUpdate is a partial update. Nil fields are left untouched; an update
// with no fields set is a no-op.
type MemoryUpdate struct {
	Text     *string
	Weight   *int
	Category *Category
}

// MemoryStats summarizes a scope's records, or the whole table when no scope
// is given.
type MemoryStats struct {
	Total      int              `json:"total"`
	ByCategory map[Category]int `json:"by_category,omitempty"`
}

// MemoryStore is the durable CRUD surface over long-term memories. All list
// and mutation operations are scoped by (conversationID, assistantID) unless
// stated otherwise. A limit <= 0 means no limit.
type MemoryStore interface {
	Save(ctx context.Context, m NewMemory) (*LongTermMemory, error)
	Update(ctx context.Context, id string, upd MemoryUpdate) error
	Delete(ctx context.Context, id string) error

	// ListByConversation orders by weight descending, then updatedAt descending.
	ListByConversation(ctx context.Context, conversationID, assistantID string, limit int) ([]LongTermMemory, error)
	// ListByCategory applies the same ordering, filtered to one category.
	ListByCategory(ctx context.Context, conversationID, assistantID string, category Category, limit int) ([]LongTermMemory, error)
	// ListRecent orders purely by updatedAt descending.
	ListRecent(ctx context.Context, conversationID, assistantID string, limit int) ([]LongTermMemory, error)
	// Search matches a substring of Text, case-insensitively.
	Search(ctx context.Context, conversationID, assistantID, substring string, limit int) ([]LongTermMemory, error)

	// ClearAll deletes every record in the scope and returns the count deleted.
	ClearAll(ctx context.Context, conversationID, assistantID string) (int64, error)
	// Stats returns a scoped per-category breakdown when both keys are given,
	// else a global total.
	Stats(ctx context.Context, conversationID, assistantID string) (*MemoryStats, error)

	Close() error
}
