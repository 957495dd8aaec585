package workspace

import (
	"fmt"
	"sync"

	"github.com/standardbeagle/lwa/internal/types"
)

// Workspace is the host-facing mutable holder for the project graph. Every
// mutator swaps in a new immutable snapshot and returns the event describing
// the change, which the host hands to the coordinator service.
type Workspace struct {
	ID types.WorkspaceID

	mu      sync.RWMutex
	current *Snapshot
	version types.SnapshotVersion
}

// New creates an empty workspace.
func New(id types.WorkspaceID) *Workspace {
	return &Workspace{
		ID:      id,
		current: emptySnapshot(0),
	}
}

// Snapshot returns the current immutable snapshot.
func (w *Workspace) Snapshot() *Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *Workspace) swap(next *Snapshot) (old, new *Snapshot) {
	old = w.current
	w.current = next
	return old, next
}

func (w *Workspace) nextVersion() types.SnapshotVersion {
	w.version++
	return w.version
}

func (w *Workspace) event(kind EventKind, old, new *Snapshot) Event {
	return Event{Kind: kind, Workspace: w.ID, Old: old, New: new}
}

// AddSolution populates the workspace with a full set of projects and their
// documents in one mutation.
func (w *Workspace) AddSolution(projects []*Project, documents []*Document) Event {
	w.mu.Lock()
	defer w.mu.Unlock()

	next := w.current.clone(w.nextVersion())
	for _, p := range projects {
		next.projects[p.ID] = p
		next.projectOrder = append(next.projectOrder, p.ID)
	}
	for _, d := range documents {
		d.Version = types.HashContent(d.Text)
		next.documents[d.ID] = d
	}
	old, new := w.swap(next)
	return w.event(EventSolutionAdded, old, new)
}

// RemoveSolution drops every project and document.
func (w *Workspace) RemoveSolution() Event {
	w.mu.Lock()
	defer w.mu.Unlock()

	old, new := w.swap(emptySnapshot(w.nextVersion()))
	return w.event(EventSolutionRemoved, old, new)
}

// ClearSolution empties the workspace while keeping it registered. The
// coordinator treats this exactly like removal: synchronous invalidation.
func (w *Workspace) ClearSolution() Event {
	w.mu.Lock()
	defer w.mu.Unlock()

	old, new := w.swap(emptySnapshot(w.nextVersion()))
	return w.event(EventSolutionCleared, old, new)
}

// ReloadSolution replaces the whole solution with an identity-preserving set
// of projects and documents. Unchanged documents (same content version) queue
// no re-analysis.
func (w *Workspace) ReloadSolution(projects []*Project, documents []*Document) Event {
	w.mu.Lock()
	defer w.mu.Unlock()

	next := emptySnapshot(w.nextVersion())
	for _, p := range projects {
		next.projects[p.ID] = p
		next.projectOrder = append(next.projectOrder, p.ID)
	}
	for _, d := range documents {
		d.Version = types.HashContent(d.Text)
		next.documents[d.ID] = d
	}
	old, new := w.swap(next)
	return w.event(EventSolutionReloaded, old, new)
}

// AddProject adds one project and its documents.
func (w *Workspace) AddProject(project *Project, documents []*Document) Event {
	w.mu.Lock()
	defer w.mu.Unlock()

	next := w.current.clone(w.nextVersion())
	next.projects[project.ID] = project
	next.projectOrder = append(next.projectOrder, project.ID)
	for _, d := range documents {
		d.Version = types.HashContent(d.Text)
		next.documents[d.ID] = d
	}
	old, new := w.swap(next)
	ev := w.event(EventProjectAdded, old, new)
	ev.Project = project.ID
	return ev
}

// RemoveProject drops one project and its documents.
func (w *Workspace) RemoveProject(id types.ProjectID) Event {
	w.mu.Lock()
	defer w.mu.Unlock()

	next := w.current.clone(w.nextVersion())
	if p := next.projects[id]; p != nil {
		for _, did := range p.Documents {
			delete(next.documents, did)
		}
		delete(next.projects, id)
		order := next.projectOrder[:0]
		for _, pid := range next.projectOrder {
			if pid != id {
				order = append(order, pid)
			}
		}
		next.projectOrder = order
	}
	old, new := w.swap(next)
	ev := w.event(EventProjectRemoved, old, new)
	ev.Project = id
	return ev
}

// ChangeProject replaces a project's definition (document membership and
// references). Documents present in both old and new definitions keep their
// content; added documents are inserted, removed ones dropped.
func (w *Workspace) ChangeProject(project *Project, added []*Document) Event {
	w.mu.Lock()
	defer w.mu.Unlock()

	next := w.current.clone(w.nextVersion())
	if prev := next.projects[project.ID]; prev != nil {
		keep := make(map[types.DocumentID]bool, len(project.Documents))
		for _, did := range project.Documents {
			keep[did] = true
		}
		for _, did := range prev.Documents {
			if !keep[did] {
				delete(next.documents, did)
			}
		}
	}
	next.projects[project.ID] = project
	for _, d := range added {
		d.Version = types.HashContent(d.Text)
		next.documents[d.ID] = d
	}
	old, new := w.swap(next)
	ev := w.event(EventProjectChanged, old, new)
	ev.Project = project.ID
	return ev
}

// AddDocument adds one document to an existing project.
func (w *Workspace) AddDocument(doc *Document) (Event, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	next := w.current.clone(w.nextVersion())
	prev := next.projects[doc.Project]
	if prev == nil {
		return Event{}, fmt.Errorf("add document %s: unknown project %s", doc.ID, doc.Project)
	}
	updated := *prev
	updated.Documents = append(append([]types.DocumentID(nil), prev.Documents...), doc.ID)
	next.projects[doc.Project] = &updated

	doc.Version = types.HashContent(doc.Text)
	next.documents[doc.ID] = doc

	old, new := w.swap(next)
	ev := w.event(EventDocumentAdded, old, new)
	ev.Project = doc.Project
	ev.Document = doc.ID
	return ev, nil
}

// RemoveDocument drops one document.
func (w *Workspace) RemoveDocument(id types.DocumentID) Event {
	w.mu.Lock()
	defer w.mu.Unlock()

	next := w.current.clone(w.nextVersion())
	var project types.ProjectID
	if d := next.documents[id]; d != nil {
		project = d.Project
		if prev := next.projects[d.Project]; prev != nil {
			updated := *prev
			updated.Documents = nil
			for _, did := range prev.Documents {
				if did != id {
					updated.Documents = append(updated.Documents, did)
				}
			}
			next.projects[d.Project] = &updated
		}
		delete(next.documents, id)
	}
	old, new := w.swap(next)
	ev := w.event(EventDocumentRemoved, old, new)
	ev.Project = project
	ev.Document = id
	return ev
}

// ChangeDocument applies an in-place text edit: oldSpan is the replaced range
// in the current text, replacement the new bytes for that range.
func (w *Workspace) ChangeDocument(id types.DocumentID, oldSpan types.Span, replacement []byte) (Event, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	prev := w.current.documents[id]
	if prev == nil {
		return Event{}, fmt.Errorf("change document: unknown document %s", id)
	}
	if oldSpan.End > uint(len(prev.Text)) || oldSpan.End < oldSpan.Start {
		return Event{}, fmt.Errorf("change document %s: span %s out of range", id, oldSpan)
	}

	newText := make([]byte, 0, uint(len(prev.Text))-oldSpan.Len()+uint(len(replacement)))
	newText = append(newText, prev.Text[:oldSpan.Start]...)
	newText = append(newText, replacement...)
	newText = append(newText, prev.Text[oldSpan.End:]...)

	next := w.current.clone(w.nextVersion())
	updated := *prev
	updated.Text = newText
	updated.Version = types.HashContent(newText)
	next.documents[id] = &updated

	old, new := w.swap(next)
	ev := w.event(EventDocumentChanged, old, new)
	ev.Project = prev.Project
	ev.Document = id
	ev.OldSpan = oldSpan
	ev.EditSpan = types.Span{Start: oldSpan.Start, End: oldSpan.Start + uint(len(replacement))}
	return ev, nil
}

// ReloadDocument replaces a document's text wholesale, preserving identity.
// Reloads with identical content queue no re-analysis downstream.
func (w *Workspace) ReloadDocument(id types.DocumentID, text []byte) (Event, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	prev := w.current.documents[id]
	if prev == nil {
		return Event{}, fmt.Errorf("reload document: unknown document %s", id)
	}

	next := w.current.clone(w.nextVersion())
	updated := *prev
	updated.Text = text
	updated.Version = types.HashContent(text)
	next.documents[id] = &updated

	old, new := w.swap(next)
	ev := w.event(EventDocumentReloaded, old, new)
	ev.Project = prev.Project
	ev.Document = id
	return ev, nil
}

// OpenDocument marks a document open in the editing surface. Open alone is
// not a content change.
func (w *Workspace) OpenDocument(id types.DocumentID) Event {
	w.mu.RLock()
	defer w.mu.RUnlock()

	ev := w.event(EventDocumentOpened, w.current, w.current)
	if d := w.current.documents[id]; d != nil {
		ev.Project = d.Project
	}
	ev.Document = id
	return ev
}

// CloseDocument marks a document closed.
func (w *Workspace) CloseDocument(id types.DocumentID) Event {
	w.mu.RLock()
	defer w.mu.RUnlock()

	ev := w.event(EventDocumentClosed, w.current, w.current)
	if d := w.current.documents[id]; d != nil {
		ev.Project = d.Project
	}
	ev.Document = id
	return ev
}
