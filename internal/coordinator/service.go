package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/standardbeagle/lwa/internal/debug"
	lwaerrors "github.com/standardbeagle/lwa/internal/errors"
	"github.com/standardbeagle/lwa/internal/impact"
	"github.com/standardbeagle/lwa/internal/types"
	"github.com/standardbeagle/lwa/internal/work"
	"github.com/standardbeagle/lwa/internal/workspace"
)

var errUnregistered = errors.New("workspace is not registered")

const (
	// DefaultDebounce is the quiet period after the last enqueue for a key
	// before its item becomes dispatch-eligible.
	DefaultDebounce = 50 * time.Millisecond
	// DefaultMaxWorkers bounds concurrent item dispatches per registration.
	DefaultMaxWorkers = 4
)

// Options tune a Service. Zero values take the defaults; tests shrink the
// debounce rather than depending on its magnitude.
type Options struct {
	Debounce   time.Duration
	MaxWorkers int64

	// Sink receives analyzer faults. Faults never propagate back through
	// the mutation APIs. Nil discards them after a debug log line.
	Sink func(error)
}

func (o Options) withDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = DefaultMaxWorkers
	}
	if o.Sink == nil {
		o.Sink = func(err error) {
			debug.LogCoordinator("analyzer fault: %v", err)
		}
	}
	return o
}

// Service coordinates incremental analysis across registered workspaces.
// Each registration owns its queue, dispatch loop, and progress reporter;
// there is no cross-registration shared mutable state beyond the impact
// analyzer's parser cache.
type Service struct {
	mu     sync.Mutex
	opts   Options
	impact *impact.Analyzer
	regs   map[types.WorkspaceID]*registration
}

// registration is the per-workspace context object: analyzers, queue,
// timers, reporter, and the dispatch loop's lifetime.
type registration struct {
	ws        *workspace.Workspace
	analyzers []Analyzer
	reporter  *Reporter
	queue     *queue
	sink      func(error)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	open   map[types.DocumentID]bool
	active types.DocumentID
}

func (r *registration) analyzersFor(only string) []Analyzer {
	if only == "" {
		return r.analyzers
	}
	for _, a := range r.analyzers {
		if a.Name() == only {
			return []Analyzer{a}
		}
	}
	return nil
}

func (r *registration) isPriority(doc types.DocumentID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open[doc] || r.active == doc
}

// NewService creates a coordinator service. Close releases it.
func NewService(opts Options) *Service {
	return &Service{
		opts:   opts.withDefaults(),
		impact: impact.NewAnalyzer(),
		regs:   make(map[types.WorkspaceID]*registration),
	}
}

// Register starts coordinating the workspace with the given ordered
// analyzer list. Registering an already-registered workspace is a no-op.
func (s *Service) Register(ws *workspace.Workspace, analyzers ...Analyzer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.regs[ws.ID]; ok {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	reg := &registration{
		ws:        ws,
		analyzers: analyzers,
		reporter:  newReporter(string(ws.ID)),
		sink:      s.opts.Sink,
		ctx:       ctx,
		cancel:    cancel,
		open:      make(map[types.DocumentID]bool),
	}
	reg.queue = newQueue(ctx, s.opts.Debounce, reg.reporter)
	s.regs[ws.ID] = reg

	d := newDispatcher(reg, s.opts.MaxWorkers)
	reg.wg.Add(1)
	go d.run(ctx)
	debug.LogCoordinator("registered workspace %s with %d analyzers", ws.ID, len(analyzers))
}

// Unregister cancels all pending work for the workspace and releases its
// queue, timers, and dispatch loop. Unregistering an unknown workspace is a
// no-op.
func (s *Service) Unregister(ws *workspace.Workspace) {
	s.mu.Lock()
	reg, ok := s.regs[ws.ID]
	if ok {
		delete(s.regs, ws.ID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	reg.queue.close()
	reg.cancel()
	reg.wg.Wait()
	debug.LogCoordinator("unregistered workspace %s", ws.ID)
}

// Close unregisters every workspace and releases the parser cache.
func (s *Service) Close() {
	s.mu.Lock()
	regs := make([]*registration, 0, len(s.regs))
	for id, reg := range s.regs {
		regs = append(regs, reg)
		delete(s.regs, id)
	}
	s.mu.Unlock()
	for _, reg := range regs {
		reg.queue.close()
		reg.cancel()
		reg.wg.Wait()
	}
	s.impact.Close()
}

func (s *Service) registration(id types.WorkspaceID) *registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs[id]
}

// Apply ingests one mutation event. The host calls it synchronously per
// mutation. Invalidations and lifecycle hooks fire before the call returns;
// analysis work is queued and dispatched asynchronously.
func (s *Service) Apply(ev workspace.Event) error {
	reg := s.registration(ev.Workspace)
	if reg == nil {
		return lwaerrors.NewCoordinatorError("apply", errUnregistered)
	}

	if ev.Kind == workspace.EventDocumentOpened {
		reg.mu.Lock()
		reg.open[ev.Document] = true
		reg.mu.Unlock()
	}
	if ev.Kind == workspace.EventDocumentClosed {
		reg.mu.Lock()
		delete(reg.open, ev.Document)
		reg.mu.Unlock()
	}

	actions := Classify(ev, s.impact)

	// Removals fire synchronously and discard any live item for the key,
	// so an analyzer never sees analysis for a target after its removal
	// notification.
	for _, docID := range actions.InvalidateDocuments {
		s.invalidateDocument(reg, ev.Old, docID)
	}
	for _, projectID := range actions.InvalidateProjects {
		reg.queue.cancel(work.ProjectKey(projectID))
		for _, analyzer := range reg.analyzers {
			analyzer.RemoveProject(projectID)
		}
	}

	for _, docID := range actions.Opened {
		s.fireHook(reg, ev.New, docID, "DocumentOpened", func(a Analyzer, doc *workspace.Document) error {
			return a.DocumentOpened(reg.ctx, doc)
		})
	}
	for _, docID := range actions.Reset {
		s.fireHook(reg, ev.New, docID, "DocumentReset", func(a Analyzer, doc *workspace.Document) error {
			return a.DocumentReset(reg.ctx, doc)
		})
	}

	for _, docID := range actions.RaisePriority {
		if doc := ev.New.Document(docID); doc != nil {
			reg.queue.raisePriority(work.DocumentKey(doc.Project, doc.ID))
		}
	}

	for _, item := range actions.Seeds {
		if item.Key.Kind == work.TargetDocument && reg.isPriority(item.Key.Document) {
			item.HighPriority = true
			item.Reasons = item.Reasons.With(work.ReasonHighPriority)
		}
		reg.queue.enqueue(item)
	}
	return nil
}

func (s *Service) invalidateDocument(reg *registration, old *workspace.Snapshot, docID types.DocumentID) {
	if old != nil {
		if doc := old.Document(docID); doc != nil {
			reg.queue.cancel(work.DocumentKey(doc.Project, doc.ID))
		}
	}
	for _, analyzer := range reg.analyzers {
		analyzer.RemoveDocument(docID)
	}
}

func (s *Service) fireHook(reg *registration, snap *workspace.Snapshot, docID types.DocumentID, name string, call func(Analyzer, *workspace.Document) error) {
	doc := snap.Document(docID)
	if doc == nil {
		return
	}
	for _, analyzer := range reg.analyzers {
		if err := call(analyzer, doc); err != nil && reg.ctx.Err() == nil {
			reg.sink(lwaerrors.NewAnalyzerError(analyzer.Name(), name, err))
		}
	}
}

// Reanalyze forces full work items for the named targets against one
// analyzer, bypassing all diffing. Empty target lists mean every document
// and every project in the current snapshot. Explicitly named targets the
// snapshot does not hold are reported back; valid targets still enqueue.
func (s *Service) Reanalyze(ws *workspace.Workspace, analyzer string, projects []types.ProjectID, documents []types.DocumentID) error {
	reg := s.registration(ws.ID)
	if reg == nil {
		return lwaerrors.NewCoordinatorError("reanalyze", errUnregistered)
	}
	snap := ws.Snapshot()

	if len(projects) == 0 && len(documents) == 0 {
		for _, doc := range snap.Documents() {
			documents = append(documents, doc.ID)
		}
		projects = snap.Projects()
	}

	var missing []error
	for _, docID := range documents {
		doc := snap.Document(docID)
		if doc == nil {
			missing = append(missing, lwaerrors.NewDocumentNotFoundError("reanalyze", docID))
			continue
		}
		reg.queue.enqueue(&work.Item{
			Key:          work.DocumentKey(doc.Project, doc.ID),
			Reasons:      work.NewReasonSet(work.ReasonReanalyze),
			Scope:        work.ScopeFullDocument,
			Snapshot:     snap.Version,
			OnlyAnalyzer: analyzer,
		})
	}
	for _, projectID := range projects {
		if snap.Project(projectID) == nil {
			missing = append(missing, lwaerrors.NewProjectNotFoundError("reanalyze", projectID))
			continue
		}
		reg.queue.enqueue(&work.Item{
			Key:          work.ProjectKey(projectID),
			Reasons:      work.NewReasonSet(work.ReasonReanalyze),
			Scope:        work.ScopeProjectLevel,
			Snapshot:     snap.Version,
			OnlyAnalyzer: analyzer,
		})
	}
	if len(missing) > 0 {
		return lwaerrors.NewMultiError(missing)
	}
	return nil
}

// OptionsChanged asks every analyzer of every registration whether the
// change invalidates its results, and queues full reanalysis for those that
// say yes.
func (s *Service) OptionsChanged(change OptionChange) {
	s.mu.Lock()
	regs := make([]*registration, 0, len(s.regs))
	for _, reg := range s.regs {
		regs = append(regs, reg)
	}
	s.mu.Unlock()

	for _, reg := range regs {
		for _, analyzer := range reg.analyzers {
			if analyzer.NeedsReanalysisOnOptionChanged(change) {
				debug.LogCoordinator("option %s changed, reanalyzing with %s", change.Option, analyzer.Name())
				_ = s.Reanalyze(reg.ws, analyzer.Name(), nil, nil)
			}
		}
	}
}

// SetActiveDocument marks the document whose queued work dispatches ahead
// of all others.
func (s *Service) SetActiveDocument(ws *workspace.Workspace, doc types.DocumentID) {
	reg := s.registration(ws.ID)
	if reg == nil {
		return
	}
	reg.mu.Lock()
	reg.active = doc
	reg.mu.Unlock()
	if d := ws.Snapshot().Document(doc); d != nil {
		reg.queue.raisePriority(work.DocumentKey(d.Project, d.ID))
	}
}

// GetProgressReporter returns the workspace's reporter, or nil when the
// workspace is not registered.
func (s *Service) GetProgressReporter(ws *workspace.Workspace) *Reporter {
	reg := s.registration(ws.ID)
	if reg == nil {
		return nil
	}
	return reg.reporter
}

// InProgress reports whether any registered workspace has outstanding work.
func (s *Service) InProgress() bool {
	s.mu.Lock()
	regs := make([]*registration, 0, len(s.regs))
	for _, reg := range s.regs {
		regs = append(regs, reg)
	}
	s.mu.Unlock()
	for _, reg := range regs {
		if reg.reporter.InProgress() {
			return true
		}
	}
	return false
}

// WaitUntilQuiescent blocks until no pending or in-flight work remains for
// the workspace. Unregistered workspaces are already quiescent.
func (s *Service) WaitUntilQuiescent(ws *workspace.Workspace) {
	reg := s.registration(ws.ID)
	if reg == nil {
		return
	}
	reg.reporter.WaitForQuiescence()
}
