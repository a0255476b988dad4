package walker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, root string, rel ...string) {
	t.Helper()
	for _, r := range rel {
		path := filepath.Join(root, filepath.FromSlash(r))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x = 1\n"), 0o644))
	}
}

func TestExpandDirectorySorted(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "z.py", "a.py", "pkg/mod.py", "pkg/data.txt", "README.md", "pkg/sub/deep.py")

	w, err := New(nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(root, "a.py"),
		filepath.Join(root, "pkg", "mod.py"),
		filepath.Join(root, "pkg", "sub", "deep.py"),
		filepath.Join(root, "z.py"),
	}, w.Expand([]string{root}))
}

func TestExpandKeepsArgumentOrderAndDedupes(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "b.py", "a.py", "notes.txt")
	b := filepath.Join(root, "b.py")
	a := filepath.Join(root, "a.py")

	w, err := New(nil, nil)
	require.NoError(t, err)

	got := w.Expand([]string{
		b,
		filepath.Join(root, "missing.py"),
		filepath.Join(root, "notes.txt"),
		root,
		a,
	})
	assert.Equal(t, []string{b, a}, got)
}

func TestExpandExclude(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "app.py", ".venv/lib/site.py", "tests/test_app.py", "build/gen.py")

	w, err := New(nil, []string{"**/.venv/**", "tests/**", "build"})
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(root, "app.py")}, w.Expand([]string{root}))
}

func TestNewRejectsInvalidPattern(t *testing.T) {
	_, err := New(nil, []string{"[unclosed"})
	assert.Error(t, err)
}

func TestIsSource(t *testing.T) {
	assert.True(t, IsSource("a/b.py"))
	assert.False(t, IsSource("a/b.pyc"))
	assert.False(t, IsSource("a/b.PY"))
	assert.False(t, IsSource("py"))
}
