package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/andrew/emma/pkg/models"
)

const fileExt = ".json"

// FileStore keeps one JSON file per conversation under a directory
type FileStore struct {
	dir    string
	policy ListPolicy
	logger *zap.Logger
}

// NewFileStore creates a store rooted at dir. The directory is created on
// the first save.
func NewFileStore(dir string, policy ListPolicy, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{dir: dir, policy: policy, logger: logger}
}

func (s *FileStore) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid conversation id %q", id)
	}
	return filepath.Join(s.dir, id+fileExt), nil
}

// Save writes conv to {dir}/{id}.json, replacing any previous version
func (s *FileStore) Save(conv *models.Conversation) error {
	p, err := s.path(conv.ID)
	if err != nil {
		return err
	}

	data, err := conv.Encode()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create conversation directory: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("failed to write conversation %s: %w", conv.ID, err)
	}

	s.logger.Debug("conversation saved", zap.String("path", p))
	return nil
}

// Load reads the conversation stored under id
func (s *FileStore) Load(id string) (*models.Conversation, error) {
	p, err := s.path(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read conversation %s: %w", id, err)
	}

	conv, err := models.DecodeConversation(data)
	if err != nil {
		return nil, &DecodeError{Source: p, Err: err}
	}
	return conv, nil
}

// List summarizes every stored conversation, most recently updated first.
// A missing directory yields an empty list.
func (s *FileStore) List() ([]models.ConversationSummary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []models.ConversationSummary{}, nil
		}
		return nil, fmt.Errorf("failed to read conversation directory: %w", err)
	}

	summaries := make([]models.ConversationSummary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != fileExt {
			continue
		}

		p := filepath.Join(s.dir, entry.Name())
		conv, err := s.readSummary(p)
		if err != nil {
			if s.policy == FailOnCorrupt {
				return nil, err
			}
			s.logger.Warn("skipping unreadable conversation", zap.String("path", p), zap.Error(err))
			continue
		}
		summaries = append(summaries, conv)
	}

	sortSummaries(summaries)
	return summaries, nil
}

// Close releases nothing; files are closed after every call
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) readSummary(p string) (models.ConversationSummary, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return models.ConversationSummary{}, fmt.Errorf("failed to read %s: %w", p, err)
	}
	conv, err := models.DecodeConversation(data)
	if err != nil {
		return models.ConversationSummary{}, &DecodeError{Source: p, Err: err}
	}
	return conv.Summary(), nil
}
