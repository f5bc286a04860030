// Package fileallocator tracks asynchronous extent-file preallocation
// so callers can wait for it to quiesce before touching files on disk,
// grounded on the teacher's background-worker shutdown idiom
// (pkg/storage/background.go: ticker + stopChan + sync.WaitGroup).
package fileallocator

import "sync"

// Allocator tracks in-flight asynchronous extent preallocations. This
// build allocates extent files synchronously (dbengine.ensureExtentFileLocked
// runs inline and does not call Track), so outside of tests nothing is
// ever tracked and WaitUntilFinished returns at once; it is still the
// quiescence point fileenum.ApplyToDBFiles blocks on, matching
// spec.md's afterAllocator contract.
type Allocator struct {
	wg sync.WaitGroup
}

// Default is the process-wide allocator the repair coordinator and
// fileenum both consult.
var Default = &Allocator{}

// Track registers one in-flight preallocation; call the returned func
// when it completes.
func (a *Allocator) Track() func() {
	a.wg.Add(1)
	return a.wg.Done
}

// WaitUntilFinished blocks until every tracked preallocation has
// completed.
func (a *Allocator) WaitUntilFinished() {
	a.wg.Wait()
}
