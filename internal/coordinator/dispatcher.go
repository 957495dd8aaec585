package coordinator

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/standardbeagle/lwa/internal/debug"
	lwaerrors "github.com/standardbeagle/lwa/internal/errors"
	"github.com/standardbeagle/lwa/internal/types"
	"github.com/standardbeagle/lwa/internal/work"
	"github.com/standardbeagle/lwa/internal/workspace"
)

// dispatcher drains one registration's queue with a bounded worker set.
// Callbacks for one item run sequentially; items for different keys run
// concurrently up to the semaphore limit.
type dispatcher struct {
	reg *registration
	sem *semaphore.Weighted
}

func newDispatcher(reg *registration, maxWorkers int64) *dispatcher {
	return &dispatcher{reg: reg, sem: semaphore.NewWeighted(maxWorkers)}
}

// run is the dispatch loop. It exits when the registration context is
// cancelled; queued-but-undispatched items are discarded by queue.close.
func (d *dispatcher) run(ctx context.Context) {
	defer d.reg.wg.Done()
	for {
		item := d.reg.queue.next()
		if item == nil {
			select {
			case <-ctx.Done():
				return
			case <-d.reg.queue.wake:
				continue
			}
		}
		if err := d.sem.Acquire(ctx, 1); err != nil {
			d.reg.queue.finish(item)
			return
		}
		d.reg.wg.Add(1)
		go func(it *work.Item) {
			defer d.reg.wg.Done()
			defer d.sem.Release(1)
			defer d.reg.queue.finish(it)
			d.dispatch(it)
		}(item)
	}
}

// dispatch invokes every applicable analyzer callback for the item. A
// cancellation observed at any checkpoint ends the item quietly; the
// superseding enqueue has already captured its reasons. Faults from the
// item's callbacks are sunk together when the item ends.
func (d *dispatcher) dispatch(item *work.Item) {
	snap := d.reg.ws.Snapshot()
	ctx := item.Handle.Context()
	if ctx.Err() != nil {
		return
	}

	var faults []error
	defer func() { d.report(faults) }()

	switch item.Key.Kind {
	case work.TargetDocument:
		doc := snap.Document(item.Key.Document)
		if doc == nil {
			// Stale: the document left the graph while the item was queued.
			debug.LogCoordinator("dropping stale item %s", item.Key)
			return
		}
		if !d.dispatchDocument(ctx, item, doc, &faults) {
			return
		}
		// An edit the impact analyzer confined to a member body cannot have
		// changed signatures dependents see, so syntax-only items never
		// propagate even when their reason is semantic.
		if item.Scope >= work.ScopeFullDocument && item.Reasons.HasSemanticChange() {
			d.propagate(snap, doc.Project)
		}

	case work.TargetProject:
		project := snap.Project(item.Key.Project)
		if project == nil {
			debug.LogCoordinator("dropping stale item %s", item.Key)
			return
		}
		semantic := item.Reasons.Has(work.ReasonSemanticChanged) || item.Reasons.HasSemanticChange()
		for _, analyzer := range d.reg.analyzersFor(item.OnlyAnalyzer) {
			if ctx.Err() != nil {
				return
			}
			if fault := safeCall(analyzer.Name(), "AnalyzeProject", func() error {
				return analyzer.AnalyzeProject(ctx, project, semantic)
			}); fault != nil {
				faults = append(faults, fault.WithProject(project.ID))
			}
		}
	}
}

// dispatchDocument runs the syntax callback for every analyzer, plus the
// document callback when the scope escalated. Returns false when the item
// was cancelled mid-dispatch.
func (d *dispatcher) dispatchDocument(ctx context.Context, item *work.Item, doc *workspace.Document, faults *[]error) bool {
	for _, analyzer := range d.reg.analyzersFor(item.OnlyAnalyzer) {
		if ctx.Err() != nil {
			return false
		}
		if fault := safeCall(analyzer.Name(), "AnalyzeSyntax", func() error {
			return analyzer.AnalyzeSyntax(ctx, doc)
		}); fault != nil {
			*faults = append(*faults, fault.WithDocument(doc.ID))
		}
		if item.Scope >= work.ScopeFullDocument {
			if ctx.Err() != nil {
				return false
			}
			if fault := safeCall(analyzer.Name(), "AnalyzeDocument", func() error {
				return analyzer.AnalyzeDocument(ctx, doc)
			}); fault != nil {
				*faults = append(*faults, fault.WithDocument(doc.ID))
			}
		}
	}
	return ctx.Err() == nil
}

// report sinks one item's faults: a lone fault goes through as is, several
// fold into a MultiError so the host sees one notification per item.
func (d *dispatcher) report(faults []error) {
	switch len(faults) {
	case 0:
	case 1:
		d.reg.sink(faults[0])
	default:
		d.reg.sink(lwaerrors.NewMultiError(faults))
	}
}

// propagate enqueues project-level semantic work for every transitive
// dependent of the changed project. The walk visits each project once, so
// diamond-shaped reference graphs get no duplicate items; the items it
// queues carry only SemanticChanged and therefore never re-propagate.
func (d *dispatcher) propagate(snap *workspace.Snapshot, project types.ProjectID) {
	for _, dependent := range snap.TransitiveDependents(project) {
		debug.LogCoordinator("propagating semantic change %s -> %s", project, dependent)
		d.reg.queue.enqueue(&work.Item{
			Key:      work.ProjectKey(dependent),
			Reasons:  work.NewReasonSet(work.ReasonSemanticChanged),
			Scope:    work.ScopeProjectLevel,
			Snapshot: snap.Version,
		})
	}
}

// safeCall isolates one analyzer callback: a panic or error inside it
// becomes a fault record and never disturbs the other analyzers or the
// queue. Cancellation is not a failure.
func safeCall(analyzer, callback string, fn func() error) (fault *lwaerrors.AnalyzerError) {
	defer func() {
		if r := recover(); r != nil {
			fault = lwaerrors.NewAnalyzerError(analyzer, callback, fmt.Errorf("panic: %v", r))
			fault.Type = lwaerrors.ErrorTypeInternal
		}
	}()
	if err := fn(); err != nil && !errors.Is(err, context.Canceled) {
		return lwaerrors.NewAnalyzerError(analyzer, callback, err)
	}
	return nil
}
