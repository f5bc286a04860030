// Package opctx carries the per-operation state the repair coordinator
// checks against: which database and data root it is scoped to, a
// cooperative interrupt flag, and the process-wide bookkeeping that
// keeps two repairs from running against the same database at once.
//
// Grounded on the teacher's StorageEngine.stopChan/sync.WaitGroup
// shutdown pattern (pkg/storage/background.go) for the cooperative-
// cancellation shape, and on original_source's
// killCurrentOp.checkForInterrupt() for CheckForInterrupt's semantics.
package opctx

import (
	"sync"
	"sync/atomic"

	"github.com/dbrepair/dbrepair/pkg/domain"
)

// OpContext is the operation-scoped handle threaded through the
// repair coordinator's phases.
type OpContext struct {
	currentDB string
	root      string
	interrupt int32
}

// New returns an OpContext scoped to db under root.
func New(db, root string) *OpContext {
	return &OpContext{currentDB: db, root: root}
}

// CurrentDB returns the database this operation is scoped to.
func (c *OpContext) CurrentDB() string { return c.currentDB }

// Root returns the data root this operation is scoped to.
func (c *OpContext) Root() string { return c.root }

// RequestInterrupt asks the operation to stop at its next check
// point. Safe to call from any goroutine.
func (c *OpContext) RequestInterrupt() {
	atomic.StoreInt32(&c.interrupt, 1)
}

// CheckForInterrupt returns domain.ErrInterrupted once RequestInterrupt
// has been called. nonFatal marks the per-document check (phase 8e)
// as opposed to the coordinator's upfront check (phase 4); it does not
// change the result, and both coordinator call sites return the error
// unchanged.
func (c *OpContext) CheckForInterrupt(nonFatal bool) error {
	if atomic.LoadInt32(&c.interrupt) != 0 {
		return domain.ErrInterrupted
	}
	return nil
}

// BackgroundOpRegistry tracks which databases currently have a
// background operation registered against them via MarkBackgroundOp,
// consulted once at coordinator entry per spec.md's concurrency model.
// The repair coordinator only checks it; it does not register itself.
type BackgroundOpRegistry struct {
	mu   sync.Mutex
	busy map[string]bool
}

// defaultRegistry is the process-wide registry.
var defaultRegistry = &BackgroundOpRegistry{busy: make(map[string]bool)}

// DefaultRegistry returns the process-wide BackgroundOpRegistry.
func DefaultRegistry() *BackgroundOpRegistry { return defaultRegistry }

// AssertNoBackgroundOp returns an error if db already has a
// background operation registered against it.
func (r *BackgroundOpRegistry) AssertNoBackgroundOp(db string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.busy[db] {
		return domain.ErrRepairInProgress
	}
	return nil
}

// MarkBackgroundOp registers db as busy and returns a func that clears
// the mark; callers defer it immediately, mirroring the scoped-cleanup
// idiom the rest of this module uses for RAII-style teardown.
func (r *BackgroundOpRegistry) MarkBackgroundOp(db string) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.busy[db] {
		return nil, domain.ErrRepairInProgress
	}
	r.busy[db] = true
	return func() {
		r.mu.Lock()
		delete(r.busy, db)
		r.mu.Unlock()
	}, nil
}

// globalRepairFlag is the process-wide "a repair is running somewhere"
// flag, matching original_source's single static inDBRepair boolean:
// the original engine only ever repairs one database at a time process
// wide, regardless of which database. MarkRepairInProgress is the
// constructor-style guard for it.
var globalRepairFlag int32

// MarkRepairInProgress claims the process-wide repair flag. The
// returned func releases it; callers defer it immediately. A second
// call while a repair is in flight returns domain.ErrRepairInProgress
// rather than panicking: unlike original_source's verify(!inDBRepair),
// this is reachable through ordinary concurrent API use, not just a
// programming error, so it is a caller-visible error instead of a
// fatal assertion.
func MarkRepairInProgress() (func(), error) {
	if !atomic.CompareAndSwapInt32(&globalRepairFlag, 0, 1) {
		return nil, domain.ErrRepairInProgress
	}
	return func() {
		atomic.StoreInt32(&globalRepairFlag, 0)
	}, nil
}
