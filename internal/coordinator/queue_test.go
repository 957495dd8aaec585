package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/lwa/internal/work"
)

const queueDebounce = 2 * time.Millisecond

func newTestQueue(t *testing.T) *queue {
	t.Helper()
	q := newQueue(context.Background(), queueDebounce, newReporter(t.Name()))
	t.Cleanup(q.close)
	return q
}

func docItem(reason work.InvocationReason, scope work.Scope) *work.Item {
	return &work.Item{
		Key:     work.DocumentKey("p1", "a.cs"),
		Reasons: work.NewReasonSet(reason),
		Scope:   scope,
	}
}

// waitNext polls next until the debounce elapses.
func waitNext(t *testing.T, q *queue) *work.Item {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if item := q.next(); item != nil {
			return item
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("no item became dispatchable")
	return nil
}

func TestEnqueueMergesSameKey(t *testing.T) {
	q := newTestQueue(t)

	q.enqueue(docItem(work.ReasonDocumentChanged, work.ScopeSyntaxOnly))
	q.enqueue(docItem(work.ReasonDocumentReloaded, work.ScopeFullDocument))

	item := waitNext(t, q)
	assert.True(t, item.Reasons.Has(work.ReasonDocumentChanged))
	assert.True(t, item.Reasons.Has(work.ReasonDocumentReloaded))
	assert.Equal(t, work.ScopeFullDocument, item.Scope)

	// One distinct key outstanding, however many times it was enqueued.
	assert.True(t, q.reporter.InProgress())
	q.finish(item)
	assert.False(t, q.reporter.InProgress())
}

func TestMergeCancelsSupersededHandle(t *testing.T) {
	q := newTestQueue(t)

	q.enqueue(docItem(work.ReasonDocumentChanged, work.ScopeSyntaxOnly))
	q.mu.Lock()
	old := q.entries[work.DocumentKey("p1", "a.cs")].item.Handle
	q.mu.Unlock()

	q.enqueue(docItem(work.ReasonDocumentChanged, work.ScopeSyntaxOnly))
	assert.True(t, old.IsCancelled())

	item := waitNext(t, q)
	assert.False(t, item.Handle.IsCancelled())
	q.finish(item)
}

func TestHighPriorityDispatchesFirst(t *testing.T) {
	q := newTestQueue(t)

	q.enqueue(&work.Item{
		Key:     work.DocumentKey("p1", "a.cs"),
		Reasons: work.NewReasonSet(work.ReasonDocumentChanged),
		Scope:   work.ScopeSyntaxOnly,
	})
	q.enqueue(&work.Item{
		Key:     work.DocumentKey("p1", "b.cs"),
		Reasons: work.NewReasonSet(work.ReasonDocumentChanged),
		Scope:   work.ScopeSyntaxOnly,
	})
	q.raisePriority(work.DocumentKey("p1", "b.cs"))

	time.Sleep(20 * queueDebounce)
	first := q.next()
	require.NotNil(t, first)
	assert.Equal(t, work.DocumentKey("p1", "b.cs"), first.Key)
	assert.True(t, first.HighPriority)
	assert.True(t, first.Reasons.Has(work.ReasonHighPriority))

	second := q.next()
	require.NotNil(t, second)
	assert.Equal(t, work.DocumentKey("p1", "a.cs"), second.Key)
	q.finish(first)
	q.finish(second)
}

func TestInflightSupersessionRedispatches(t *testing.T) {
	q := newTestQueue(t)

	q.enqueue(docItem(work.ReasonDocumentChanged, work.ScopeSyntaxOnly))
	running := waitNext(t, q)

	// The key is in flight, so a new enqueue cancels the running item and
	// queues a replacement that nothing dispatches yet.
	q.enqueue(docItem(work.ReasonDocumentReloaded, work.ScopeFullDocument))
	assert.True(t, running.Handle.IsCancelled())
	time.Sleep(20 * queueDebounce)
	assert.Nil(t, q.next())

	q.finish(running)
	assert.True(t, q.reporter.InProgress())

	replacement := waitNext(t, q)
	assert.True(t, replacement.Reasons.Has(work.ReasonDocumentChanged))
	assert.True(t, replacement.Reasons.Has(work.ReasonDocumentReloaded))
	assert.Equal(t, work.ScopeFullDocument, replacement.Scope)
	q.finish(replacement)
	assert.False(t, q.reporter.InProgress())
}

func TestInflightSupersessionClearsAnalyzerRestriction(t *testing.T) {
	q := newTestQueue(t)

	q.enqueue(docItem(work.ReasonDocumentChanged, work.ScopeSyntaxOnly))
	running := waitNext(t, q)

	targeted := docItem(work.ReasonReanalyze, work.ScopeFullDocument)
	targeted.OnlyAnalyzer = "linter"
	q.enqueue(targeted)
	q.finish(running)

	// The running item was unrestricted, so the replacement must be too:
	// a restriction would drop the superseded item's other analyzers.
	replacement := waitNext(t, q)
	assert.Equal(t, "", replacement.OnlyAnalyzer)
	assert.True(t, replacement.Reasons.Has(work.ReasonDocumentChanged))
	q.finish(replacement)
}

func TestInflightSupersessionFoldsPriority(t *testing.T) {
	q := newTestQueue(t)

	urgent := docItem(work.ReasonDocumentChanged, work.ScopeSyntaxOnly)
	urgent.HighPriority = true
	q.enqueue(urgent)
	running := waitNext(t, q)

	q.enqueue(docItem(work.ReasonDocumentReloaded, work.ScopeFullDocument))
	q.finish(running)

	replacement := waitNext(t, q)
	assert.True(t, replacement.HighPriority)
	q.finish(replacement)
}

func TestStaleDebounceCallbackIgnoredAfterMerge(t *testing.T) {
	// A debounce long enough that no real timer fires during the test.
	q := newQueue(context.Background(), time.Hour, newReporter(t.Name()))
	t.Cleanup(q.close)

	q.enqueue(docItem(work.ReasonDocumentChanged, work.ScopeSyntaxOnly))
	key := work.DocumentKey("p1", "a.cs")
	q.mu.Lock()
	entry := q.entries[key]
	staleGen := entry.gen
	q.mu.Unlock()

	// The merge restarts the quiet period.
	q.enqueue(docItem(work.ReasonDocumentReloaded, work.ScopeFullDocument))

	// A timer callback that was already firing when the merge stopped it
	// carries the old generation and must not end the quiet period early.
	q.makeEligible(key, entry, staleGen)
	assert.Nil(t, q.next())

	q.mu.Lock()
	currentGen := entry.gen
	q.mu.Unlock()
	q.makeEligible(key, entry, currentGen)
	item := q.next()
	require.NotNil(t, item)
	q.finish(item)
}

func TestCancelRemovesQueuedItem(t *testing.T) {
	q := newTestQueue(t)

	q.enqueue(docItem(work.ReasonDocumentChanged, work.ScopeSyntaxOnly))
	q.cancel(work.DocumentKey("p1", "a.cs"))

	assert.False(t, q.reporter.InProgress())
	time.Sleep(20 * queueDebounce)
	assert.Nil(t, q.next())
}

func TestCloseDiscardsEverything(t *testing.T) {
	q := newQueue(context.Background(), queueDebounce, newReporter(t.Name()))
	q.enqueue(docItem(work.ReasonDocumentChanged, work.ScopeSyntaxOnly))
	q.enqueue(&work.Item{
		Key:     work.ProjectKey("p1"),
		Reasons: work.NewReasonSet(work.ReasonSemanticChanged),
		Scope:   work.ScopeProjectLevel,
	})

	q.close()
	assert.False(t, q.reporter.InProgress())
	assert.Nil(t, q.next())

	// Enqueue after close is a no-op.
	q.enqueue(docItem(work.ReasonDocumentChanged, work.ScopeSyntaxOnly))
	assert.False(t, q.reporter.InProgress())
}
