package cleanupguard_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dbrepair/dbrepair/pkg/cleanupguard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloseRemovesReservedPathWhenUncommitted(t *testing.T) {
	root := t.TempDir()
	reserved := filepath.Join(root, "reserved")
	require.NoError(t, os.MkdirAll(reserved, 0o755))

	closed := false
	guard := cleanupguard.New("testdb", reserved, nil, func() error {
		closed = true
		return nil
	})

	require.NoError(t, guard.Close())
	assert.True(t, closed)
	assert.NoDirExists(t, reserved)
}

func TestCommitDisarmsClose(t *testing.T) {
	root := t.TempDir()
	reserved := filepath.Join(root, "reserved")
	require.NoError(t, os.MkdirAll(reserved, 0o755))

	called := false
	guard := cleanupguard.New("testdb", reserved, nil, func() error {
		called = true
		return nil
	})
	guard.Commit()

	require.NoError(t, guard.Close())
	assert.False(t, called)
	assert.DirExists(t, reserved)
}

func TestCloseIsIdempotent(t *testing.T) {
	root := t.TempDir()
	reserved := filepath.Join(root, "reserved")
	require.NoError(t, os.MkdirAll(reserved, 0o755))

	guard := cleanupguard.New("testdb", reserved, nil, nil)
	require.NoError(t, guard.Close())
	require.NoError(t, guard.Close())
}
