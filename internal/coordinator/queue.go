package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/standardbeagle/lwa/internal/debug"
	"github.com/standardbeagle/lwa/internal/work"
)

// queue holds the live work items for one registration. It enforces the
// one-live-item-per-key invariant: a second enqueue for a key merges into
// the queued item (or supersedes the in-flight one), never duplicates it.
type queue struct {
	mu sync.Mutex

	parent   context.Context
	debounce time.Duration
	reporter *Reporter

	// entries are queued items waiting for their debounce quiet period or
	// for a worker. inflight holds items a worker is currently dispatching.
	entries  map[work.Key]*queueEntry
	inflight map[work.Key]*work.Item

	// wake is signalled whenever an entry may have become dispatchable.
	wake   chan struct{}
	closed bool
}

type queueEntry struct {
	item     *work.Item
	eligible bool
	timer    *time.Timer

	// gen increments on every debounce restart. A timer callback that was
	// already firing when Stop missed it carries a stale gen and is ignored,
	// so a merge always gets its full quiet period.
	gen uint64
}

func newQueue(parent context.Context, debounce time.Duration, reporter *Reporter) *queue {
	return &queue{
		parent:   parent,
		debounce: debounce,
		reporter: reporter,
		entries:  make(map[work.Key]*queueEntry),
		inflight: make(map[work.Key]*work.Item),
		wake:     make(chan struct{}, 1),
	}
}

func (q *queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// enqueue adds or merges a work item. A fresh enqueue starts the debounce
// timer; a repeat restarts it and unions the reason sets. If the key is
// in-flight, the running item's handle is cancelled and its reasons fold
// into the new item so no required re-analysis is lost.
func (q *queue) enqueue(item *work.Item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	key := item.Key

	if running, ok := q.inflight[key]; ok {
		item.Reasons = item.Reasons.Union(running.Reasons)
		item.Scope = item.Scope.Widen(running.Scope)
		item.HighPriority = item.HighPriority || running.HighPriority
		// A restricted item superseding unrestricted work (or vice versa)
		// must re-dispatch for every analyzer, same as a queued merge.
		if item.OnlyAnalyzer != running.OnlyAnalyzer {
			item.OnlyAnalyzer = ""
		}
		running.Handle.Cancel()
	}

	if entry, ok := q.entries[key]; ok {
		entry.item.Merge(item, q.parent)
		entry.eligible = false
		entry.timer.Stop()
		entry.gen++
		entry.restartTimer(q, key)
		debug.LogCoordinator("merged item %s reasons=%s scope=%s", key, entry.item.Reasons, entry.item.Scope)
		return
	}

	item.Enqueued = time.Now()
	item.Handle = work.NewCancelHandle(q.parent)
	entry := &queueEntry{item: item}
	q.entries[key] = entry
	if _, ok := q.inflight[key]; !ok {
		q.reporter.add(1)
	}
	entry.restartTimer(q, key)
	debug.LogCoordinator("enqueued item %s reasons=%s scope=%s", key, item.Reasons, item.Scope)
}

func (e *queueEntry) restartTimer(q *queue, key work.Key) {
	gen := e.gen
	e.timer = time.AfterFunc(q.debounce, func() {
		q.makeEligible(key, e, gen)
	})
}

func (q *queue) makeEligible(key work.Key, e *queueEntry, gen uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry, ok := q.entries[key]
	if !ok || entry != e || entry.gen != gen {
		return
	}
	entry.eligible = true
	q.signal()
}

// next pops the best dispatchable entry: debounce elapsed and no in-flight
// item for the same key. High-priority items win; ties go to the oldest
// enqueue. Returns nil when nothing is dispatchable.
func (q *queue) next() *work.Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}

	var bestKey work.Key
	var best *queueEntry
	for key, entry := range q.entries {
		if !entry.eligible {
			continue
		}
		if _, running := q.inflight[key]; running {
			continue
		}
		if best == nil || betterThan(entry.item, best.item) {
			bestKey, best = key, entry
		}
	}
	if best == nil {
		return nil
	}

	delete(q.entries, bestKey)
	q.inflight[bestKey] = best.item
	return best.item
}

func betterThan(a, b *work.Item) bool {
	if a.HighPriority != b.HighPriority {
		return a.HighPriority
	}
	return a.Enqueued.Before(b.Enqueued)
}

// finish retires an item after its dispatch returns, cancelled or not. The
// key only leaves the outstanding count when no superseding entry is queued.
func (q *queue) finish(item *work.Item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inflight[item.Key] == item {
		delete(q.inflight, item.Key)
	}
	item.Handle.Retire()
	if _, queued := q.entries[item.Key]; !queued {
		q.reporter.done()
	}
	q.signal()
}

// cancel discards any live item for the key, queued or in-flight. An
// in-flight worker still owns its slot until its callback returns; only the
// queued entry is removed immediately.
func (q *queue) cancel(key work.Key) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if running, ok := q.inflight[key]; ok {
		running.Handle.Cancel()
	}
	entry, ok := q.entries[key]
	if !ok {
		return
	}
	entry.timer.Stop()
	entry.item.Handle.Cancel()
	delete(q.entries, key)
	if _, running := q.inflight[key]; !running {
		q.reporter.done()
	}
}

// raisePriority promotes an already-queued item for the key; it does
// nothing when no item is queued.
func (q *queue) raisePriority(key work.Key) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry, ok := q.entries[key]
	if !ok {
		return
	}
	entry.item.HighPriority = true
	entry.item.Reasons = entry.item.Reasons.With(work.ReasonHighPriority)
	q.signal()
}

// close cancels every live item and stops all timers. Workers still running
// observe cancellation through their handles and drain via finish.
func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	for key, entry := range q.entries {
		entry.timer.Stop()
		entry.item.Handle.Cancel()
		delete(q.entries, key)
		if _, running := q.inflight[key]; !running {
			q.reporter.done()
		}
	}
	for _, running := range q.inflight {
		running.Handle.Cancel()
	}
	q.signal()
}
