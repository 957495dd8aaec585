package work

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/standardbeagle/lwa/internal/types"
)

// TargetKind distinguishes document-level from project-level work.
type TargetKind int

const (
	TargetDocument TargetKind = iota
	TargetProject
)

func (k TargetKind) String() string {
	if k == TargetProject {
		return "project"
	}
	return "document"
}

// Scope describes how much of a document must be reanalyzed.
type Scope int

const (
	// ScopeSyntaxOnly requires only syntax-level recomputation of a document.
	ScopeSyntaxOnly Scope = iota
	// ScopeFullDocument requires syntax and document analysis.
	ScopeFullDocument
	// ScopeProjectLevel targets a whole project.
	ScopeProjectLevel
)

func (s Scope) String() string {
	switch s {
	case ScopeSyntaxOnly:
		return "syntax-only"
	case ScopeFullDocument:
		return "full-document"
	case ScopeProjectLevel:
		return "project-level"
	default:
		return "unknown"
	}
}

// Widen returns the wider of the two scopes.
func (s Scope) Widen(other Scope) Scope {
	if other > s {
		return other
	}
	return s
}

// Key identifies the target of a work item. At most one live item exists per
// (registration, Key) at any time.
type Key struct {
	Kind     TargetKind
	Document types.DocumentID
	Project  types.ProjectID
}

// DocumentKey builds the key for document-level work.
func DocumentKey(project types.ProjectID, doc types.DocumentID) Key {
	return Key{Kind: TargetDocument, Document: doc, Project: project}
}

// ProjectKey builds the key for project-level work.
func ProjectKey(project types.ProjectID) Key {
	return Key{Kind: TargetProject, Project: project}
}

func (k Key) String() string {
	if k.Kind == TargetProject {
		return fmt.Sprintf("project:%s", k.Project)
	}
	return fmt.Sprintf("document:%s/%s", k.Project, k.Document)
}

// CancelHandle is the cooperative cancellation handle owned by the most recent
// work item for a key. Superseding an item cancels the previous handle.
// Cancel and Retire are idempotent so races between supersession and natural
// completion are harmless.
type CancelHandle struct {
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	retired bool
}

// NewCancelHandle creates a live handle parented to the registration context.
func NewCancelHandle(parent context.Context) *CancelHandle {
	ctx, cancel := context.WithCancel(parent)
	return &CancelHandle{ctx: ctx, cancel: cancel}
}

// Context returns the context analyzer callbacks poll at cooperative
// checkpoints.
func (h *CancelHandle) Context() context.Context {
	return h.ctx
}

// Cancel marks the handle cancelled. Calling it more than once, or after
// Retire, is a no-op.
func (h *CancelHandle) Cancel() {
	h.cancel()
}

// Retire releases the handle after natural completion without signalling
// cancellation to anything still holding the context.
func (h *CancelHandle) Retire() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.retired {
		return
	}
	h.retired = true
	// Release the context's resources; completed work no longer observes it.
	h.cancel()
}

// IsCancelled reports whether the handle has been cancelled or retired.
func (h *CancelHandle) IsCancelled() bool {
	return h.ctx.Err() != nil
}

// Item is one unit of queued analysis work. Items are created on mutation
// ingestion, mutated (reason union, scope widening) while queued, and
// destroyed by dispatch completion or supersession.
type Item struct {
	Key      Key
	Reasons  ReasonSet
	Scope    Scope
	Enqueued time.Time
	Snapshot types.SnapshotVersion
	Handle   *CancelHandle

	// OnlyAnalyzer restricts dispatch to a single named analyzer. Set by
	// explicit reanalyze requests; cleared when the item merges with work
	// for all analyzers.
	OnlyAnalyzer string

	// HighPriority marks the item for the priority dispatch lane.
	HighPriority bool
}

// Merge folds an incoming item into this one: reasons union, scope widens,
// and the cancellation handle is replaced with a fresh one. The old handle is
// cancelled - this is the supersede-on-edit guarantee.
func (it *Item) Merge(incoming *Item, parent context.Context) {
	it.Reasons = it.Reasons.Union(incoming.Reasons)
	it.Scope = it.Scope.Widen(incoming.Scope)
	it.Snapshot = incoming.Snapshot
	it.HighPriority = it.HighPriority || incoming.HighPriority || it.Reasons.Has(ReasonHighPriority)
	if it.OnlyAnalyzer != incoming.OnlyAnalyzer {
		it.OnlyAnalyzer = ""
	}

	old := it.Handle
	it.Handle = NewCancelHandle(parent)
	if old != nil {
		old.Cancel()
	}
}
