package fileenum_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dbrepair/dbrepair/pkg/fileallocator"
	"github.com/dbrepair/dbrepair/pkg/fileenum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyToDBFilesVisitsNamespaceThenExtentsInOrder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mydb.ns"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mydb.0"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mydb.1"), nil, 0o644))

	var visited []string
	op := fileenum.Func{
		Name: "visit",
		Fn: func(path string) (bool, error) {
			if _, err := os.Stat(path); err != nil {
				return false, nil
			}
			visited = append(visited, filepath.Base(path))
			return true, nil
		},
	}

	require.NoError(t, fileenum.ApplyToDBFiles("mydb", op, false, dir, false))
	assert.Equal(t, []string{"mydb.ns", "mydb.0", "mydb.1"}, visited)
}

func TestApplyToDBFilesStopsAfterMissingFileTolerance(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sparse.ns"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sparse.0"), nil, 0o644))
	// every numbered extent after 0 is absent; the tolerance counter
	// should stop the scan instead of looping to maxExtentFiles.

	calls := 0
	op := fileenum.Func{
		Name: "count",
		Fn: func(path string) (bool, error) {
			calls++
			return path == filepath.Join(dir, "sparse.ns") || path == filepath.Join(dir, "sparse.0"), nil
		},
	}

	require.NoError(t, fileenum.ApplyToDBFiles("sparse", op, false, dir, false))
	// 1 namespace call + 1 hit on extent 0 + 10 tolerated misses.
	assert.Equal(t, 12, calls)
}

func TestApplyToDBFilesUsesDirectoryPerDBLayout(t *testing.T) {
	root := t.TempDir()
	dbDir := filepath.Join(root, "nested")
	require.NoError(t, os.MkdirAll(dbDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dbDir, "nested.ns"), nil, 0o644))

	var visited []string
	op := fileenum.Func{
		Name: "visit",
		Fn: func(path string) (bool, error) {
			visited = append(visited, path)
			return filepath.Base(path) == "nested.ns", nil
		},
	}

	require.NoError(t, fileenum.ApplyToDBFiles("nested", op, false, root, true))
	assert.Equal(t, filepath.Join(dbDir, "nested.ns"), visited[0])
}

func TestApplyToDBFilesWaitsForAllocatorWhenRequested(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "waited.ns"), nil, 0o644))

	done := fileallocator.Default.Track()
	finished := false
	go func() {
		finished = true
		done()
	}()

	op := fileenum.Func{Name: "noop", Fn: func(string) (bool, error) { return false, nil }}
	require.NoError(t, fileenum.ApplyToDBFiles("waited", op, true, dir, false))
	assert.True(t, finished)
}

func TestApplyToDBFilesPropagatesOperationError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "erroring.ns"), nil, 0o644))

	boom := assert.AnError
	op := fileenum.Func{Name: "boom", Fn: func(string) (bool, error) { return false, boom }}
	err := fileenum.ApplyToDBFiles("erroring", op, false, dir, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
