package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetermineFileFullPath(t *testing.T) {
	tmpDir := t.TempDir()
	existing := filepath.Join(tmpDir, "report.sarif")
	require.NoError(t, os.WriteFile(existing, []byte("{}"), 0o644))

	tests := []struct {
		name         string
		inputPath    string
		expectFile   string
		expectFolder string
	}{
		{
			name:         "existing directory",
			inputPath:    tmpDir,
			expectFile:   filepath.Join(tmpDir, "blockscan.json"),
			expectFolder: tmpDir,
		},
		{
			name:         "existing file",
			inputPath:    existing,
			expectFile:   existing,
			expectFolder: tmpDir,
		},
		{
			name:         "missing path without extension is a folder",
			inputPath:    filepath.Join(tmpDir, "out"),
			expectFile:   filepath.Join(tmpDir, "out", "blockscan.json"),
			expectFolder: filepath.Join(tmpDir, "out"),
		},
		{
			name:         "missing file with extension",
			inputPath:    filepath.Join(tmpDir, "nested", "result.json"),
			expectFile:   filepath.Join(tmpDir, "nested", "result.json"),
			expectFolder: filepath.Join(tmpDir, "nested"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file, folder, err := DetermineFileFullPath(tt.inputPath, "blockscan.json")
			require.NoError(t, err)
			assert.Equal(t, tt.expectFile, file)
			assert.Equal(t, tt.expectFolder, folder)
		})
	}
}

func TestCreateOutputFileCreatesFolders(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a", "b", "out.txt")

	f, err := CreateOutputFile(target, "ignored.txt")
	require.NoError(t, err)
	_, err = f.WriteString("hello")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestValidatePath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "cfg.yml")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	assert.NoError(t, ValidatePath(file))
	assert.Error(t, ValidatePath(dir))
	assert.Error(t, ValidatePath(filepath.Join(dir, "missing.yml")))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandPath("~/cache.db")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "cache.db"), got)

	got, err = ExpandPath("rel/cache.db")
	require.NoError(t, err)
	assert.Equal(t, "rel/cache.db", got)
}
