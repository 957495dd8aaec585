package coordinator

import (
	"sync"

	"github.com/standardbeagle/lwa/internal/debug"
)

// Reporter tracks whether a registration has outstanding work (queued or
// in-flight) and raises notifications on the idle/busy transitions. All
// transitions happen under one mutex so Started/Stopped callbacks observe
// a consistent ordering; callbacks must not call back into the reporter.
type Reporter struct {
	mu      sync.Mutex
	cond    *sync.Cond
	name    string
	pending int

	started []func()
	stopped []func()
}

func newReporter(name string) *Reporter {
	r := &Reporter{name: name}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// OnStarted registers a callback fired on every idle-to-busy transition.
func (r *Reporter) OnStarted(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, fn)
}

// OnStopped registers a callback fired on every busy-to-idle transition.
func (r *Reporter) OnStopped(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = append(r.stopped, fn)
}

// InProgress reports whether any work is outstanding.
func (r *Reporter) InProgress() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending > 0
}

func (r *Reporter) add(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	was := r.pending
	r.pending += n
	if was == 0 && r.pending > 0 {
		debug.LogCoordinator("%s: work started", r.name)
		for _, fn := range r.started {
			fn()
		}
	}
}

func (r *Reporter) done() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == 0 {
		return
	}
	r.pending--
	if r.pending == 0 {
		debug.LogCoordinator("%s: work stopped", r.name)
		for _, fn := range r.stopped {
			fn()
		}
		r.cond.Broadcast()
	}
}

// WaitForQuiescence blocks until the outstanding count reaches zero. On
// return no pending item enqueued before the call remains unseen; mutations
// arriving afterwards are unconstrained.
func (r *Reporter) WaitForQuiescence() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.pending > 0 {
		r.cond.Wait()
	}
}
