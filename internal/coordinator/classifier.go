package coordinator

import (
	"github.com/standardbeagle/lwa/internal/debug"
	"github.com/standardbeagle/lwa/internal/impact"
	"github.com/standardbeagle/lwa/internal/types"
	"github.com/standardbeagle/lwa/internal/work"
	"github.com/standardbeagle/lwa/internal/workspace"
)

// Actions is the classifier's output for one mutation event: work item
// seeds for the queue, synchronous invalidation targets, lifecycle hook
// targets, and priority promotions. Construction is side-effect free; the
// service applies the actions.
type Actions struct {
	Seeds               []*work.Item
	InvalidateDocuments []types.DocumentID
	InvalidateProjects  []types.ProjectID
	Opened              []types.DocumentID
	Reset               []types.DocumentID
	RaisePriority       []types.DocumentID
}

func (a *Actions) seedDocument(doc *workspace.Document, reason work.InvocationReason, scope work.Scope, snapshot types.SnapshotVersion) {
	a.Seeds = append(a.Seeds, &work.Item{
		Key:      work.DocumentKey(doc.Project, doc.ID),
		Reasons:  work.NewReasonSet(reason),
		Scope:    scope,
		Snapshot: snapshot,
	})
}

// Classify maps a raw mutation to the actions it requires. Text edits
// delegate the scope decision to the impact analyzer; everything else
// follows from the event kind and the old/new snapshot diff.
func Classify(ev workspace.Event, analyzer *impact.Analyzer) Actions {
	var out Actions
	switch ev.Kind {

	case workspace.EventSolutionAdded, workspace.EventProjectAdded:
		// Brand new documents: nothing to diff against, full analysis.
		for _, doc := range addedDocuments(ev.Old, ev.New) {
			out.seedDocument(doc, reasonFor(ev.Kind), work.ScopeFullDocument, ev.New.Version)
		}

	case workspace.EventSolutionRemoved, workspace.EventSolutionCleared:
		if ev.Old != nil {
			for _, doc := range ev.Old.Documents() {
				out.InvalidateDocuments = append(out.InvalidateDocuments, doc.ID)
			}
			out.InvalidateProjects = append(out.InvalidateProjects, ev.Old.Projects()...)
		}

	case workspace.EventSolutionReloaded:
		// Identity-preserving replacement: only content that actually
		// differs is reanalyzed.
		for _, doc := range ev.New.Documents() {
			prev := previousDocument(ev.Old, doc.ID)
			switch {
			case prev == nil:
				out.seedDocument(doc, work.ReasonDocumentAdded, work.ScopeFullDocument, ev.New.Version)
			case prev.Version != doc.Version:
				out.seedDocument(doc, work.ReasonSolutionReloaded, work.ScopeFullDocument, ev.New.Version)
				out.Reset = append(out.Reset, doc.ID)
			}
		}
		for _, doc := range removedDocuments(ev.Old, ev.New) {
			out.InvalidateDocuments = append(out.InvalidateDocuments, doc.ID)
		}

	case workspace.EventProjectRemoved:
		for _, doc := range removedDocuments(ev.Old, ev.New) {
			out.InvalidateDocuments = append(out.InvalidateDocuments, doc.ID)
		}
		out.InvalidateProjects = append(out.InvalidateProjects, ev.Project)

	case workspace.EventProjectChanged, workspace.EventProjectReloaded:
		for _, doc := range addedDocuments(ev.Old, ev.New) {
			out.seedDocument(doc, reasonFor(ev.Kind), work.ScopeFullDocument, ev.New.Version)
		}
		for _, doc := range removedDocuments(ev.Old, ev.New) {
			out.InvalidateDocuments = append(out.InvalidateDocuments, doc.ID)
		}

	case workspace.EventDocumentAdded:
		if doc := ev.New.Document(ev.Document); doc != nil {
			out.seedDocument(doc, work.ReasonDocumentAdded, work.ScopeFullDocument, ev.New.Version)
		}

	case workspace.EventDocumentRemoved:
		out.InvalidateDocuments = append(out.InvalidateDocuments, ev.Document)

	case workspace.EventDocumentReloaded:
		prev := previousDocument(ev.Old, ev.Document)
		doc := ev.New.Document(ev.Document)
		if doc == nil {
			break
		}
		if prev != nil && prev.Version == doc.Version {
			// Content-identical reload queues nothing.
			break
		}
		out.seedDocument(doc, work.ReasonDocumentReloaded, work.ScopeFullDocument, ev.New.Version)
		out.Reset = append(out.Reset, doc.ID)

	case workspace.EventDocumentChanged:
		prev := previousDocument(ev.Old, ev.Document)
		doc := ev.New.Document(ev.Document)
		if doc == nil {
			break
		}
		scope := work.ScopeFullDocument
		if prev != nil && analyzer != nil {
			res, err := analyzer.ClassifyEdit(doc.Language, prev.Text, doc.Text, ev.OldSpan, ev.EditSpan)
			if err != nil {
				debug.LogCoordinator("impact classification failed for %s: %v", doc.ID, err)
			} else if res.Verdict == impact.VerdictSyntaxOnly {
				scope = work.ScopeSyntaxOnly
			}
		}
		out.seedDocument(doc, work.ReasonDocumentChanged, scope, ev.New.Version)

	case workspace.EventDocumentOpened:
		// Opening is not a content change; it raises priority of anything
		// already queued and fires the lifecycle hook.
		out.Opened = append(out.Opened, ev.Document)
		out.RaisePriority = append(out.RaisePriority, ev.Document)

	case workspace.EventDocumentClosed:
		// No seed: closing alone changes nothing.
	}
	return out
}

func reasonFor(kind workspace.EventKind) work.InvocationReason {
	switch kind {
	case workspace.EventSolutionAdded:
		return work.ReasonSolutionAdded
	case workspace.EventProjectAdded:
		return work.ReasonProjectAdded
	case workspace.EventProjectChanged:
		return work.ReasonProjectChanged
	case workspace.EventProjectReloaded:
		return work.ReasonProjectReloaded
	default:
		return work.ReasonDocumentAdded
	}
}

func previousDocument(old *workspace.Snapshot, id types.DocumentID) *workspace.Document {
	if old == nil {
		return nil
	}
	return old.Document(id)
}

func addedDocuments(old, new *workspace.Snapshot) []*workspace.Document {
	var added []*workspace.Document
	for _, doc := range new.Documents() {
		if previousDocument(old, doc.ID) == nil {
			added = append(added, doc)
		}
	}
	return added
}

func removedDocuments(old, new *workspace.Snapshot) []*workspace.Document {
	if old == nil {
		return nil
	}
	var removed []*workspace.Document
	for _, doc := range old.Documents() {
		if new == nil || new.Document(doc.ID) == nil {
			removed = append(removed, doc)
		}
	}
	return removed
}
