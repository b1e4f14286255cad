package persistence

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MimeLyc/travel-concierge/internal/llm"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := s.applyMigration(ctx, entry.Name()); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) applyMigration(ctx context.Context, name string) error {
	version := migrationVersion(name)
	if version <= 0 {
		return nil
	}
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
		return fmt.Errorf("check migration %s: %w", name, err)
	}
	if exists > 0 {
		return nil
	}
	content, err := migrationFiles.ReadFile(path.Join("migrations", name))
	if err != nil {
		return fmt.Errorf("read migration %s: %w", name, err)
	}
	if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("apply migration %s: %w", name, err)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_threads.sql" → 1).
func migrationVersion(name string) int {
	end := strings.IndexFunc(name, func(c rune) bool { return c < '0' || c > '9' })
	if end == 0 {
		return 0
	}
	if end < 0 {
		end = len(name)
	}
	n, _ := strconv.Atoi(name[:end])
	return n
}

// LoadMessages returns the thread's messages in order; an unknown thread has
// none.
func (s *SQLiteStore) LoadMessages(ctx context.Context, threadID string) ([]llm.Message, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT role, content, name, tool_calls_json, tool_call_id
		 FROM thread_messages
		 WHERE thread_id = ?
		 ORDER BY seq ASC`,
		threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("load thread %s: %w", threadID, err)
	}
	defer rows.Close()

	ret := make([]llm.Message, 0)
	for rows.Next() {
		var msg llm.Message
		var toolCallsJSON string
		if err := rows.Scan(&msg.Role, &msg.Content, &msg.Name, &toolCallsJSON, &msg.ToolCallID); err != nil {
			return nil, err
		}
		if toolCallsJSON != "" {
			if err := json.Unmarshal([]byte(toolCallsJSON), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("decode tool calls of thread %s: %w", threadID, err)
			}
		}
		ret = append(ret, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

// AppendMessages adds msgs to the end of the thread in one transaction,
// creating the thread if needed.
func (s *SQLiteStore) AppendMessages(ctx context.Context, threadID string, msgs []llm.Message) (err error) {
	if strings.TrimSpace(threadID) == "" {
		return fmt.Errorf("thread id is required")
	}
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := s.now()
	if _, err = tx.ExecContext(
		ctx,
		`INSERT INTO threads (id, created_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET updated_at=excluded.updated_at`,
		threadID, now, now,
	); err != nil {
		return fmt.Errorf("upsert thread %s: %w", threadID, err)
	}

	var next int
	if err = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM thread_messages WHERE thread_id = ?`, threadID).Scan(&next); err != nil {
		return fmt.Errorf("read sequence of thread %s: %w", threadID, err)
	}

	for _, msg := range msgs {
		next++
		toolCallsJSON := ""
		if msg.HasToolCalls() {
			data, mErr := json.Marshal(msg.ToolCalls)
			if mErr != nil {
				err = mErr
				return err
			}
			toolCallsJSON = string(data)
		}
		if _, err = tx.ExecContext(
			ctx,
			`INSERT INTO thread_messages (thread_id, seq, role, content, name, tool_calls_json, tool_call_id, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			threadID, next, msg.Role, msg.Content, msg.Name, toolCallsJSON, msg.ToolCallID, now,
		); err != nil {
			return fmt.Errorf("append to thread %s: %w", threadID, err)
		}
	}
	return tx.Commit()
}

// ListThreads returns every thread, most recently updated first.
func (s *SQLiteStore) ListThreads(ctx context.Context) ([]Thread, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT t.id, t.created_at, t.updated_at, COUNT(m.seq)
		 FROM threads t
		 LEFT JOIN thread_messages m ON m.thread_id = t.id
		 GROUP BY t.id
		 ORDER BY t.updated_at DESC, t.id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]Thread, 0)
	for rows.Next() {
		var item Thread
		if err := rows.Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt, &item.MessageCount); err != nil {
			return nil, err
		}
		ret = append(ret, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}
