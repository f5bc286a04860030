package durability_test

import (
	"testing"

	"github.com/dbrepair/dbrepair/pkg/dbengine"
	"github.com/dbrepair/dbrepair/pkg/durability"
	"github.com/stretchr/testify/require"
)

func TestTrackDeduplicatesSameHandle(t *testing.T) {
	dbPath := t.TempDir()
	dh, _, err := dbengine.Default().GetOrCreate("tracked", dbPath, false)
	require.NoError(t, err)
	defer dbengine.Default().CloseDatabase("tracked", dbPath)

	mgr := durability.NewManager(durability.LevelFsync)
	mgr.Track(dh)
	mgr.Track(dh)

	require.NoError(t, mgr.SyncAndTruncateJournal())
}

func TestCommitIfNeededIsNoopAtLevelNone(t *testing.T) {
	dbPath := t.TempDir()
	dh, _, err := dbengine.Default().GetOrCreate("nonedb", dbPath, false)
	require.NoError(t, err)
	defer dbengine.Default().CloseDatabase("nonedb", dbPath)

	mgr := durability.NewManager(durability.LevelNone)
	mgr.Track(dh)
	require.NoError(t, mgr.CommitIfNeeded())
}

func TestCommitIfNeededFlushesAtLevelFsync(t *testing.T) {
	dbPath := t.TempDir()
	dh, _, err := dbengine.Default().GetOrCreate("fsyncdb", dbPath, false)
	require.NoError(t, err)
	defer dbengine.Default().CloseDatabase("fsyncdb", dbPath)

	mgr := durability.NewManager(durability.LevelFsync)
	mgr.Track(dh)
	require.NoError(t, mgr.CommitIfNeeded())
}

func TestFlushAllFilesWithoutSyncIsNoop(t *testing.T) {
	mgr := durability.NewManager(durability.LevelFsync)
	require.NoError(t, mgr.FlushAllFiles(false))
}
