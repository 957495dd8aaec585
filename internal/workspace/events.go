package workspace

import "github.com/standardbeagle/lwa/internal/types"

// EventKind enumerates the mutation events the project-graph host raises.
type EventKind int

const (
	EventSolutionAdded EventKind = iota
	EventSolutionRemoved
	EventSolutionCleared
	EventSolutionReloaded
	EventProjectAdded
	EventProjectRemoved
	EventProjectChanged
	EventProjectReloaded
	EventDocumentAdded
	EventDocumentRemoved
	EventDocumentChanged
	EventDocumentReloaded
	EventDocumentOpened
	EventDocumentClosed
)

var eventNames = [...]string{
	"SolutionAdded",
	"SolutionRemoved",
	"SolutionCleared",
	"SolutionReloaded",
	"ProjectAdded",
	"ProjectRemoved",
	"ProjectChanged",
	"ProjectReloaded",
	"DocumentAdded",
	"DocumentRemoved",
	"DocumentChanged",
	"DocumentReloaded",
	"DocumentOpened",
	"DocumentClosed",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventNames) {
		return "Unknown"
	}
	return eventNames[k]
}

// Event is one raw mutation, carrying the snapshots before and after. The
// host calls the coordinator synchronously with each event; the coordinator
// never polls.
type Event struct {
	Kind      EventKind
	Workspace types.WorkspaceID
	Project   types.ProjectID
	Document  types.DocumentID

	// Old and New are the snapshots around the mutation. Old is nil for the
	// first mutation of a fresh workspace.
	Old *Snapshot
	New *Snapshot

	// OldSpan and EditSpan describe an in-place text edit for
	// EventDocumentChanged: the replaced range in the old text and the
	// replacement range in the new text.
	OldSpan  types.Span
	EditSpan types.Span
}
