package task

import "sync"

// Scheduler abstracts how units of background work are started. The Manager
// and the hierarchy walk depend only on this interface, never on the go
// statement directly, so tests can substitute a synchronous implementation.
type Scheduler interface {
	// Spawn starts fn as an independently scheduled unit of work and
	// returns immediately.
	Spawn(fn func())
}

// GoScheduler runs each unit on its own goroutine and tracks them so a
// shutdown can wait for in-flight work to unwind.
type GoScheduler struct {
	wg sync.WaitGroup
}

// NewGoScheduler creates a goroutine-backed scheduler.
func NewGoScheduler() *GoScheduler {
	return &GoScheduler{}
}

// Spawn implements Scheduler.
func (s *GoScheduler) Spawn(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// Wait blocks until every spawned unit has returned.
func (s *GoScheduler) Wait() {
	s.wg.Wait()
}

// SyncScheduler runs each unit inline on the caller's goroutine. Intended
// for tests that need deterministic execution order.
type SyncScheduler struct{}

// Spawn implements Scheduler by calling fn before returning.
func (SyncScheduler) Spawn(fn func()) {
	fn()
}
