// Package store persists conversations keyed by id.
package store

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/andrew/emma/pkg/models"
)

// ErrNotFound is returned when no conversation exists for an id
var ErrNotFound = errors.New("conversation not found")

// DecodeError reports a stored conversation that could not be parsed
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode conversation %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Store saves, loads and lists conversations
type Store interface {
	Save(conv *models.Conversation) error
	Load(id string) (*models.Conversation, error)
	List() ([]models.ConversationSummary, error)
	Close() error
}

// ListPolicy decides what List does with an entry it cannot decode
type ListPolicy int

const (
	// SkipCorrupt logs unreadable entries and lists the rest
	SkipCorrupt ListPolicy = iota
	// FailOnCorrupt aborts the whole listing on the first unreadable entry
	FailOnCorrupt
)

// Backend names accepted by Open
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Options configures Open
type Options struct {
	Backend string
	Dir     string
	Policy  ListPolicy
	Logger  *zap.Logger
}

// Open returns the store selected by opts.Backend
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendJSON:
		return NewFileStore(opts.Dir, opts.Policy, opts.Logger), nil
	case BackendSQLite:
		return NewSQLiteStore(opts.Dir, opts.Policy, opts.Logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}

// sortSummaries orders summaries by most recently updated first, keeping
// the incoming order for equal timestamps.
func sortSummaries(s []models.ConversationSummary) {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].UpdatedAt > s[j].UpdatedAt
	})
}
