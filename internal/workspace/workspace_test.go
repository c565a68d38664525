package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerLifecycle(t *testing.T) {
	mgr := NewManager(t.TempDir(), nil)
	require.NoError(t, mgr.Create())

	dir := mgr.Path()
	assert.True(t, strings.HasPrefix(filepath.Base(dir), "mdpublish-"))
	assert.DirExists(t, dir)

	sub, err := mgr.Subdir("manifest")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "manifest"), sub)
	assert.DirExists(t, sub)

	require.NoError(t, mgr.Cleanup())
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, mgr.Path())
	assert.NoError(t, mgr.Cleanup())
}

func TestManagerUniqueDirs(t *testing.T) {
	base := t.TempDir()
	a, b := NewManager(base, nil), NewManager(base, nil)
	require.NoError(t, a.Create())
	require.NoError(t, b.Create())
	assert.NotEqual(t, a.Path(), b.Path())
}

func TestSubdirBeforeCreate(t *testing.T) {
	_, err := NewManager(t.TempDir(), nil).Subdir("x")
	assert.Error(t, err)
}
