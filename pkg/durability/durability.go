// Package durability gives the repair coordinator a single collaborator
// for forcing data to stable storage, standing in for "the journal" in
// this no-WAL-by-default engine the way the original's getDur()
// abstracts over durable vs. non-durable storage engines.
package durability

import (
	"fmt"
	"sync"

	"github.com/dbrepair/dbrepair/pkg/dbengine"
)

// Level mirrors the engine's configurable durability, generalizing the
// teacher's v2.DurabilityLevel enum (None/Memory/OS/Full) to the
// rebuilt engine's simpler extent-file model.
type Level int

const (
	// LevelNone performs no explicit flush; relies on the OS page cache.
	LevelNone Level = iota
	// LevelFsync calls Sync on every open extent file handle.
	LevelFsync
)

// Manager drives durability operations for one or more open databases,
// grounded on StorageEngine.saveDirtyCollections (teacher) for the
// synchronous flush-everything-to-disk point and on
// v2.WALEngine.applyDurability for the level-gated behavior.
type Manager struct {
	mu      sync.Mutex
	level   Level
	tracked []*dbengine.DbHandle
}

// NewManager returns a Manager operating at the given durability level.
func NewManager(level Level) *Manager {
	return &Manager{level: level}
}

// Track registers dh so future FlushAllFiles/SyncAndTruncateJournal
// calls cover it.
func (m *Manager) Track(dh *dbengine.DbHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.tracked {
		if existing == dh {
			return
		}
	}
	m.tracked = append(m.tracked, dh)
}

// SyncAndTruncateJournal flushes every tracked database to disk. In a
// WAL-enabled configuration this would additionally drive
// CheckpointManager.Checkpoint and WALEngine.RotateWALFile; this build
// has no WAL, so flushing each database's dirty extents and namespace
// catalog is the entire durability fence.
func (m *Manager) SyncAndTruncateJournal() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, dh := range m.tracked {
		if err := dh.FlushToDisk(); err != nil {
			return fmt.Errorf("flushing %s during durability fence: %w", dh.Name, err)
		}
	}
	return nil
}

// CommitIfNeeded is the per-document durability checkpoint called once
// per copied record (phase 8e of the repair coordinator). At LevelNone
// it is a no-op; at LevelFsync it is equivalent to FlushAllFiles(true),
// so every call syncs each tracked database's extent files and rewrites
// its namespace catalog.
func (m *Manager) CommitIfNeeded() error {
	if m.level == LevelNone {
		return nil
	}
	return m.FlushAllFiles(true)
}

// FlushAllFiles forces every tracked database's extent files to
// stable storage when sync is true; when false it does nothing.
func (m *Manager) FlushAllFiles(sync bool) error {
	if !sync {
		return nil
	}
	return m.SyncAndTruncateJournal()
}
