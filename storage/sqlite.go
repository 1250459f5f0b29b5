package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// SQLiteMemoryStore implements MemoryStore on a local SQLite file. It is
// safe for concurrent use.
type SQLiteMemoryStore struct {
	db *sql.DB
}

var _ MemoryStore = (*SQLiteMemoryStore)(nil)

// NewSQLiteMemoryStore opens or creates the memory database at dbPath.
func NewSQLiteMemoryStore(dbPath string) (*SQLiteMemoryStore, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	s := &SQLiteMemoryStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate memory schema: %w", err)
	}
	return s, nil
}

func openDB(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return db, nil
}

func (s *SQLiteMemoryStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS long_term_memories (
		id              TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		assistant_id    TEXT NOT NULL,
		category        TEXT NOT NULL CHECK(category IN ('fact', 'preference', 'relationship', 'project', 'event')),
		text            TEXT NOT NULL,
		weight          INTEGER NOT NULL DEFAULT 50,
		created_at      INTEGER NOT NULL,
		updated_at      INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memories_conversation ON long_term_memories(conversation_id);
	CREATE INDEX IF NOT EXISTS idx_memories_assistant ON long_term_memories(assistant_id);
	CREATE INDEX IF NOT EXISTS idx_memories_conv_assistant ON long_term_memories(conversation_id, assistant_id);
	CREATE INDEX IF NOT EXISTS idx_memories_category ON long_term_memories(category);
	CREATE INDEX IF NOT EXISTS idx_memories_weight ON long_term_memories(weight DESC);
	CREATE INDEX IF NOT EXISTS idx_memories_updated ON long_term_memories(updated_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// newID returns a fresh ULID. ulid.Make's default entropy source is locked,
// so concurrent saves are fine.
func newID() string {
	return ulid.Make().String()
}

func (s *SQLiteMemoryStore) Save(ctx context.Context, m NewMemory) (*LongTermMemory, error) {
	if !m.Category.Valid() {
		return nil, fmt.Errorf("invalid category %q", m.Category)
	}
	if m.ConversationID == "" || m.AssistantID == "" {
		return nil, fmt.Errorf("conversation id and assistant id are required")
	}

	id := newID()
	now := time.Now().UnixMilli()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO long_term_memories
		 (id, conversation_id, assistant_id, category, text, weight, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, m.ConversationID, m.AssistantID, string(m.Category), m.Text, m.Weight, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert memory: %w", err)
	}

	return &LongTermMemory{
		ID:             id,
		ConversationID: m.ConversationID,
		AssistantID:    m.AssistantID,
		Category:       m.Category,
		Text:           m.Text,
		Weight:         m.Weight,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (s *SQLiteMemoryStore) Update(ctx context.Context, id string, upd MemoryUpdate) error {
	var sets []string
	var args []interface{}

	if upd.Text != nil {
		sets = append(sets, "text = ?")
		args = append(args, *upd.Text)
	}
	if upd.Weight != nil {
		sets = append(sets, "weight = ?")
		args = append(args, *upd.Weight)
	}
	if upd.Category != nil {
		if !upd.Category.Valid() {
			return fmt.Errorf("invalid category %q", *upd.Category)
		}
		sets = append(sets, "category = ?")
		args = append(args, string(*upd.Category))
	}
	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UnixMilli(), id)

	res, err := s.db.ExecContext(ctx,
		"UPDATE long_term_memories SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update memory: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("memory not found: %s", id)
	}
	return nil
}

func (s *SQLiteMemoryStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM long_term_memories WHERE id = ?`, id)
	return err
}

const memoryColumns = `id, conversation_id, assistant_id, category, text, weight, created_at, updated_at`

func (s *SQLiteMemoryStore) ListByConversation(ctx context.Context, conversationID, assistantID string, limit int) ([]LongTermMemory, error) {
	query := `SELECT ` + memoryColumns + `
		FROM long_term_memories
		WHERE conversation_id = ? AND assistant_id = ?
		ORDER BY weight DESC, updated_at DESC` + limitClause(limit)
	return s.queryMemories(ctx, query, conversationID, assistantID)
}

func (s *SQLiteMemoryStore) ListByCategory(ctx context.Context, conversationID, assistantID string, category Category, limit int) ([]LongTermMemory, error) {
	query := `SELECT ` + memoryColumns + `
		FROM long_term_memories
		WHERE conversation_id = ? AND assistant_id = ? AND category = ?
		ORDER BY weight DESC, updated_at DESC` + limitClause(limit)
	return s.queryMemories(ctx, query, conversationID, assistantID, string(category))
}

func (s *SQLiteMemoryStore) ListRecent(ctx context.Context, conversationID, assistantID string, limit int) ([]LongTermMemory, error) {
	query := `SELECT ` + memoryColumns + `
		FROM long_term_memories
		WHERE conversation_id = ? AND assistant_id = ?
		ORDER BY updated_at DESC` + limitClause(limit)
	return s.queryMemories(ctx, query, conversationID, assistantID)
}

func (s *SQLiteMemoryStore) Search(ctx context.Context, conversationID, assistantID, substring string, limit int) ([]LongTermMemory, error) {
	query := `SELECT ` + memoryColumns + `
		FROM long_term_memories
		WHERE conversation_id = ? AND assistant_id = ? AND LOWER(text) LIKE '%' || LOWER(?) || '%' ESCAPE '\'
		ORDER BY weight DESC, updated_at DESC` + limitClause(limit)
	return s.queryMemories(ctx, query, conversationID, assistantID, escapeLike(substring))
}

// escapeLike neutralizes LIKE wildcards so Search matches the substring
// literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (s *SQLiteMemoryStore) ClearAll(ctx context.Context, conversationID, assistantID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM long_term_memories WHERE conversation_id = ? AND assistant_id = ?`,
		conversationID, assistantID)
	if err != nil {
		return 0, fmt.Errorf("clear memories: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteMemoryStore) Stats(ctx context.Context, conversationID, assistantID string) (*MemoryStats, error) {
	stats := &MemoryStats{}

	if conversationID == "" || assistantID == "" {
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM long_term_memories`).Scan(&stats.Total)
		if err != nil {
			return nil, err
		}
		return stats, nil
	}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM long_term_memories WHERE conversation_id = ? AND assistant_id = ?`,
		conversationID, assistantID).Scan(&stats.Total)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM long_term_memories
		 WHERE conversation_id = ? AND assistant_id = ?
		 GROUP BY category`, conversationID, assistantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats.ByCategory = make(map[Category]int)
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, err
		}
		stats.ByCategory[Category(cat)] = n
	}
	return stats, rows.Err()
}

func (s *SQLiteMemoryStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteMemoryStore) queryMemories(ctx context.Context, query string, args ...interface{}) ([]LongTermMemory, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []LongTermMemory
	for rows.Next() {
		var m LongTermMemory
		var cat string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.AssistantID, &cat,
			&m.Text, &m.Weight, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		m.Category = Category(cat)
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

func limitClause(limit int) string {
	if limit > 0 {
		return fmt.Sprintf(" LIMIT %d", limit)
	}
	return ""
}
