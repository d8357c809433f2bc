package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/andrew/emma/pkg/models"
)

type backend struct {
	name string
	open func(t *testing.T, dir string, policy ListPolicy, logger *zap.Logger) Store
}

var backends = []backend{
	{
		name: BackendJSON,
		open: func(t *testing.T, dir string, policy ListPolicy, logger *zap.Logger) Store {
			return NewFileStore(dir, policy, logger)
		},
	},
	{
		name: BackendSQLite,
		open: func(t *testing.T, dir string, policy ListPolicy, logger *zap.Logger) Store {
			s, err := NewSQLiteStore(dir, policy, logger)
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	},
}

func conversation(id, updatedAt string, contents ...string) *models.Conversation {
	c := &models.Conversation{
		ID:        id,
		Messages:  []models.Message{},
		CreatedAt: "2025-01-01T00:00:00.000000",
		UpdatedAt: updatedAt,
	}
	for _, content := range contents {
		c.Messages = append(c.Messages, models.Message{
			Role:      models.RoleUser,
			Content:   content,
			Timestamp: updatedAt,
		})
	}
	return c
}

func TestStore_SaveLoad(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t, filepath.Join(t.TempDir(), "conversations"), SkipCorrupt, nil)

			c := models.NewConversation("Eres Emma, una asistente útil.")
			c.AddUserMessage("¿hola?")
			c.AddAssistantMessage("¡hola!")
			require.NoError(t, s.Save(c))

			got, err := s.Load(c.ID)
			require.NoError(t, err)
			if diff := cmp.Diff(c, got); diff != "" {
				t.Fatalf("loaded conversation mismatch (-want +got):\n%s", diff)
			}

			c.AddUserMessage("again")
			require.NoError(t, s.Save(c))
			require.NoError(t, s.Save(c))

			got, err = s.Load(c.ID)
			require.NoError(t, err)
			assert.Len(t, got.Messages, 4)

			list, err := s.List()
			require.NoError(t, err)
			assert.Len(t, list, 1)
		})
	}
}

func TestStore_LoadMissing(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t, t.TempDir(), SkipCorrupt, nil)

			_, err := s.Load("does-not-exist")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_ListOrdering(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t, t.TempDir(), SkipCorrupt, nil)

			a := conversation("a", "2025-01-01T10:00:00.000000", "first")
			bb := conversation("b", "2025-01-02T10:00:00.000000", "second", "reply")
			require.NoError(t, s.Save(a))
			require.NoError(t, s.Save(bb))

			list, err := s.List()
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "b", list[0].ID)
			assert.Equal(t, "a", list[1].ID)
			assert.Equal(t, models.ConversationSummary{
				ID:           "b",
				CreatedAt:    "2025-01-01T00:00:00.000000",
				UpdatedAt:    "2025-01-02T10:00:00.000000",
				MessageCount: 2,
				Preview:      "second...",
			}, list[0])
		})
	}
}

func TestFileStore_ListMissingDirectory(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "nope"), SkipCorrupt, nil)

	list, err := s.List()
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestSQLiteStore_ListEmpty(t *testing.T) {
	s, err := NewSQLiteStore(t.TempDir(), SkipCorrupt, nil)
	require.NoError(t, err)
	defer s.Close()

	list, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestFileStore_FileLayout(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "conversations")
	s := NewFileStore(dir, SkipCorrupt, nil)

	c := conversation("abc", "2025-01-01T10:00:00.000000", "naïve <b>")
	require.NoError(t, s.Save(c))

	data, err := os.ReadFile(filepath.Join(dir, "abc.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"content": "naïve <b>"`)
	assert.Contains(t, string(data), `"created_at": "2025-01-01T00:00:00.000000"`)
}

func TestFileStore_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir, FailOnCorrupt, nil)
	require.NoError(t, s.Save(conversation("a", "2025-01-01T10:00:00.000000")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("{oops"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.json"), 0o755))

	list, err := s.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestFileStore_CorruptFiles(t *testing.T) {
	setup := func(t *testing.T) string {
		dir := t.TempDir()
		s := NewFileStore(dir, SkipCorrupt, nil)
		require.NoError(t, s.Save(conversation("good", "2025-01-01T10:00:00.000000", "ok")))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{oops"), 0o644))
		return dir
	}

	t.Run("load reports decode error", func(t *testing.T) {
		s := NewFileStore(setup(t), SkipCorrupt, nil)

		_, err := s.Load("bad")
		var derr *DecodeError
		assert.ErrorAs(t, err, &derr)
	})

	t.Run("skip policy lists the rest", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		s := NewFileStore(setup(t), SkipCorrupt, zap.New(core))

		list, err := s.List()
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "good", list[0].ID)
		assert.Equal(t, 1, logs.FilterMessage("skipping unreadable conversation").Len())
	})

	t.Run("fail policy aborts the listing", func(t *testing.T) {
		s := NewFileStore(setup(t), FailOnCorrupt, nil)

		list, err := s.List()
		var derr *DecodeError
		assert.ErrorAs(t, err, &derr)
		assert.Nil(t, list)
	})
}

func TestFileStore_RejectsPathLikeIDs(t *testing.T) {
	s := NewFileStore(t.TempDir(), SkipCorrupt, nil)

	_, err := s.Load("../secrets")
	assert.Error(t, err)
	assert.Error(t, s.Save(&models.Conversation{ID: "a/b"}))
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(Options{Dir: dir})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = Open(Options{Backend: BackendSQLite, Dir: dir})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())
	assert.FileExists(t, filepath.Join(dir, DatabaseFile))

	_, err = Open(Options{Backend: "redis", Dir: dir})
	assert.Error(t, err)
}
