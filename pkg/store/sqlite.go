package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/andrew/emma/pkg/models"
)

// DatabaseFile is the SQLite file created inside the conversation directory
const DatabaseFile = "conversations.db"

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    body TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS conversations_updated_at ON conversations(updated_at);`

// SQLiteStore keeps conversations in a single SQLite database. Each row
// holds the same JSON document the file store writes.
type SQLiteStore struct {
	db     *sql.DB
	policy ListPolicy
	logger *zap.Logger
}

// NewSQLiteStore opens (and creates if needed) {dir}/conversations.db
func NewSQLiteStore(dir string, policy ListPolicy, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create conversation directory: %w", err)
	}

	dbPath := filepath.Join(dir, DatabaseFile)
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", dbPath, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, policy: policy, logger: logger}, nil
}

// Save upserts conv
func (s *SQLiteStore) Save(conv *models.Conversation) error {
	data, err := conv.Encode()
	if err != nil {
		return err
	}

	query := `
        INSERT INTO conversations (id, created_at, updated_at, body)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            created_at = excluded.created_at,
            updated_at = excluded.updated_at,
            body = excluded.body`

	if _, err := s.db.Exec(query, conv.ID, conv.CreatedAt, conv.UpdatedAt, string(data)); err != nil {
		return fmt.Errorf("failed to save conversation %s: %w", conv.ID, err)
	}
	s.logger.Debug("conversation saved", zap.String("id", conv.ID))
	return nil
}

// Load reads the conversation stored under id
func (s *SQLiteStore) Load(id string) (*models.Conversation, error) {
	var body string
	err := s.db.QueryRow(`SELECT body FROM conversations WHERE id = ?`, id).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to load conversation %s: %w", id, err)
	}

	conv, err := models.DecodeConversation([]byte(body))
	if err != nil {
		return nil, &DecodeError{Source: id, Err: err}
	}
	return conv, nil
}

// List summarizes every stored conversation, most recently updated first
func (s *SQLiteStore) List() ([]models.ConversationSummary, error) {
	rows, err := s.db.Query(`SELECT id, body FROM conversations ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	summaries := []models.ConversationSummary{}
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}

		conv, err := models.DecodeConversation([]byte(body))
		if err != nil {
			derr := &DecodeError{Source: id, Err: err}
			if s.policy == FailOnCorrupt {
				return nil, derr
			}
			s.logger.Warn("skipping unreadable conversation", zap.String("id", id), zap.Error(derr))
			continue
		}
		summaries = append(summaries, conv.Summary())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	sortSummaries(summaries)
	return summaries, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
