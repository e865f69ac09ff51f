package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireAndRelease(t *testing.T) {
	root := t.TempDir()
	m, err := NewManager(root)
	require.NoError(t, err)

	ws, err := m.Acquire()
	require.NoError(t, err)
	assert.Equal(t, root, filepath.Dir(ws.Dir()))

	path, err := ws.WriteArtifact(strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, ws.Dir(), filepath.Dir(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, ws.Release())
	assert.NoDirExists(t, ws.Dir())

	t.Run("release is idempotent", func(t *testing.T) {
		assert.NoError(t, ws.Release())
	})

	t.Run("writes after release fail", func(t *testing.T) {
		_, err := ws.WriteArtifact(strings.NewReader("late"))
		assert.ErrorIs(t, err, ErrReleased)
	})
}

func TestArtifactNamesAreRandom(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)
	ws, err := m.Acquire()
	require.NoError(t, err)
	defer ws.Release()

	a, err := ws.WriteArtifact(strings.NewReader("a"))
	require.NoError(t, err)
	b, err := ws.WriteArtifact(strings.NewReader("b"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, filepath.Base(a), 32)
}

func TestWorkspacesAreIsolated(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	first, err := m.Acquire()
	require.NoError(t, err)
	second, err := m.Acquire()
	require.NoError(t, err)
	defer second.Release()

	assert.NotEqual(t, first.Dir(), second.Dir())
	require.NoError(t, first.Release())
	assert.DirExists(t, second.Dir())
}

func TestNewManagerCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "root")
	m, err := NewManager(root)
	require.NoError(t, err)
	assert.DirExists(t, m.Root())
}
