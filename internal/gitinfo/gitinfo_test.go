package gitinfo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleFromURL(t *testing.T) {
	tests := map[string]string{
		"https://github.com/org/api-docs.git":  "api-docs",
		"git@github.com:org/guides.git":        "guides",
		"git@host:single":                      "single",
		"https://example.com/org/repo/":        "repo",
		"ssh://git@host:2222/team/My Docs.git": "My-Docs",
	}
	for url, want := range tests {
		assert.Equal(t, want, ModuleFromURL(url), url)
	}
}

func initRepo(t *testing.T, origin string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	if origin != "" {
		_, err = repo.CreateRemote(&gitconfig.RemoteConfig{Name: "origin", URLs: []string{origin}})
		require.NoError(t, err)
	}

	content := filepath.Join(dir, "content")
	require.NoError(t, os.MkdirAll(content, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(content, "a.md"), []byte("# A"), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("content/a.md")
	require.NoError(t, err)
	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return content, hash.String()
}

func TestInspect(t *testing.T) {
	content, rev := initRepo(t, "git@example.com:org/api-docs.git")

	info, err := Inspect(content)
	require.NoError(t, err)
	assert.Equal(t, "api-docs", info.Module)
	assert.Equal(t, rev, info.Revision)
	assert.NotEmpty(t, info.Branch)
}

func TestInspectWithoutOrigin(t *testing.T) {
	content, _ := initRepo(t, "")

	info, err := Inspect(content)
	require.NoError(t, err)
	assert.Equal(t, sanitize(filepath.Base(filepath.Dir(content))), info.Module)
}

func TestInspectNotARepo(t *testing.T) {
	_, err := Inspect(t.TempDir())
	assert.Error(t, err)
}

func TestResolveModule(t *testing.T) {
	content, _ := initRepo(t, "https://example.com/org/guides.git")

	got, err := ResolveModule("api", "auto", content)
	require.NoError(t, err)
	assert.Equal(t, "api", got)

	got, err = ResolveModule("auto", "auto", content)
	require.NoError(t, err)
	assert.Equal(t, "guides", got)
}
