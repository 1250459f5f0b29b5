package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Role identifies who produced a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Conversation is one chat thread.
type Conversation struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// Message is one dialogue turn inside a conversation.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Role           Role   `json:"role"`
	Content        string `json:"content"`
	Timestamp      int64  `json:"timestamp"`
}

// ChatStore persists conversations and their messages. Deleting a
// conversation cascades to its messages. It is safe for concurrent use.
type ChatStore struct {
	db *sql.DB
}

// NewChatStore opens or creates the chat history database at dbPath.
func NewChatStore(dbPath string) (*ChatStore, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	s := &ChatStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate chat schema: %w", err)
	}
	return s, nil
}

func (s *ChatStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id         TEXT PRIMARY KEY,
		title      TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS messages (
		id              TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		role            TEXT NOT NULL CHECK(role IN ('user', 'assistant')),
		content         TEXT NOT NULL,
		timestamp       INTEGER NOT NULL,
		FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateConversation starts a new chat thread.
func (s *ChatStore) CreateConversation(ctx context.Context, title string) (*Conversation, error) {
	id := newID()
	now := time.Now().UnixMilli()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, title, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	return &Conversation{ID: id, Title: title, CreatedAt: now, UpdatedAt: now}, nil
}

// ListConversations returns threads ordered by most recent activity.
func (s *ChatStore) ListConversations(ctx context.Context, limit int) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, created_at, updated_at FROM conversations
		 ORDER BY updated_at DESC`+limitClause(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// RenameConversation updates a thread's title.
func (s *ChatStore) RenameConversation(ctx context.Context, id, title string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?`,
		title, time.Now().UnixMilli(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("conversation not found: %s", id)
	}
	return nil
}

// DeleteConversation removes a thread and, via the cascade, its messages.
func (s *ChatStore) DeleteConversation(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	return err
}

// AppendMessage stores one dialogue turn and bumps the conversation's
// updated_at.
func (s *ChatStore) AppendMessage(ctx context.Context, conversationID string, role Role, content string) (*Message, error) {
	id := newID()
	now := time.Now().UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, timestamp) VALUES (?, ?, ?, ?, ?)`,
		id, conversationID, string(role), content, now)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`, now, conversationID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("conversation not found: %s", conversationID)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &Message{ID: id, ConversationID: conversationID, Role: role, Content: content, Timestamp: now}, nil
}

// RecentMessages returns the last limit messages in chronological order.
func (s *ChatStore) RecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, timestamp FROM messages
		 WHERE conversation_id = ?
		 ORDER BY timestamp DESC, id DESC`+limitClause(limit), conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var role string
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &m.Timestamp); err != nil {
			return nil, err
		}
		m.Role = Role(role)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// MessageCount returns the number of messages in a conversation.
func (s *ChatStore) MessageCount(ctx context.Context, conversationID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, conversationID).Scan(&n)
	return n, err
}

func (s *ChatStore) Close() error {
	return s.db.Close()
}
