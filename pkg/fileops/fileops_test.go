package fileops_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dbrepair/dbrepair/pkg/fileops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveDeletesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	handled, err := fileops.Remove(path)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.NoFileExists(t, path)
}

func TestRemoveReportsUnhandledForMissingFile(t *testing.T) {
	handled, err := fileops.Remove(filepath.Join(t.TempDir(), "absent.txt"))
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestMeasureSizeReportsActualSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	size, handled, err := fileops.MeasureSize(path)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, int64(5), size)
}

func TestMeasureSizeReportsUnhandledForMissingFile(t *testing.T) {
	_, handled, err := fileops.MeasureSize(filepath.Join(t.TempDir(), "absent.txt"))
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestRenameWithFallbackMovesFileWithinSameDirectory(t *testing.T) {
	dir := t.TempDir()
	from := filepath.Join(dir, "from.txt")
	to := filepath.Join(dir, "to.txt")
	require.NoError(t, os.WriteFile(from, []byte("payload"), 0o644))

	handled, err := fileops.RenameWithFallback(from, to)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.NoFileExists(t, from)
	data, err := os.ReadFile(to)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestRenameWithFallbackReportsUnhandledForMissingSource(t *testing.T) {
	dir := t.TempDir()
	handled, err := fileops.RenameWithFallback(filepath.Join(dir, "absent.txt"), filepath.Join(dir, "to.txt"))
	require.NoError(t, err)
	assert.False(t, handled)
}
