package coordinator

import (
	"context"

	"github.com/standardbeagle/lwa/internal/types"
	"github.com/standardbeagle/lwa/internal/workspace"
)

// OptionChange describes a global option mutation analyzers may react to.
type OptionChange struct {
	Option string
	Value  interface{}
}

// Analyzer is the callback contract every registered analyzer implements.
// Analysis callbacks receive a cancellation context and must poll it at
// cooperative checkpoints; returning ctx.Err() on cancellation is normal
// control flow, never a failure. Removal callbacks are synchronous
// invalidation notifications and must not block.
type Analyzer interface {
	// Name identifies the analyzer for targeted reanalysis and fault
	// reports. Names are unique within a registration.
	Name() string

	// AnalyzeSyntax runs on every document-level dispatch.
	AnalyzeSyntax(ctx context.Context, doc *workspace.Document) error

	// AnalyzeDocument runs only when the item's scope is full-document.
	AnalyzeDocument(ctx context.Context, doc *workspace.Document) error

	// AnalyzeProject runs on project-level dispatch. semanticChanged reports
	// whether the triggering change may have altered visible symbols.
	AnalyzeProject(ctx context.Context, project *workspace.Project, semanticChanged bool) error

	// RemoveDocument and RemoveProject are invalidation notifications,
	// called synchronously from the mutation path when a target disappears.
	RemoveDocument(id types.DocumentID)
	RemoveProject(id types.ProjectID)

	// DocumentOpened and DocumentReset are lifecycle hooks with no analysis
	// scope decision attached.
	DocumentOpened(ctx context.Context, doc *workspace.Document) error
	DocumentReset(ctx context.Context, doc *workspace.Document) error

	// NeedsReanalysisOnOptionChanged is queried when a global option
	// changes; returning true queues full reanalysis for this analyzer.
	NeedsReanalysisOnOptionChanged(change OptionChange) bool
}
