package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_WritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	logger, closeLog, err := New(false, dir)
	require.NoError(t, err)
	logger.Info("hello")
	logger.Debug("hidden")
	require.NoError(t, closeLog())

	files, err := filepath.Glob(filepath.Join(dir, "emma_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestNew_CloseReleasesFile(t *testing.T) {
	logger, closeLog, err := New(false, t.TempDir())
	require.NoError(t, err)
	logger.Info("before close")

	require.NoError(t, closeLog())
	assert.ErrorIs(t, closeLog(), os.ErrClosed)
}

func TestNew_VerboseEnablesDebug(t *testing.T) {
	logger, closeLog, err := New(true, "")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.NoError(t, closeLog())

	quiet, _, err := New(false, "")
	require.NoError(t, err)
	assert.False(t, quiet.Core().Enabled(zapcore.DebugLevel))
}
