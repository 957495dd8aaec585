package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/standardbeagle/lwa/internal/types"
	"github.com/standardbeagle/lwa/internal/workspace"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recordingAnalyzer counts every callback and remembers the content each
// syntax pass observed. An optional gate makes AnalyzeSyntax block until the
// gate closes or the item is cancelled, for supersession tests.
type recordingAnalyzer struct {
	name            string
	gate            chan struct{}
	reanalyzeOn     string
	panicInSyntax   bool

	mu              sync.Mutex
	attempts        map[types.DocumentID]int
	syntax          map[types.DocumentID]int
	syntaxText      map[types.DocumentID]string
	document        map[types.DocumentID]int
	project         map[types.ProjectID]int
	projectSemantic map[types.ProjectID]bool
	removedDocs     []types.DocumentID
	removedProjects []types.ProjectID
	opened          []types.DocumentID
	reset           []types.DocumentID
}

func newRecorder(name string) *recordingAnalyzer {
	return &recordingAnalyzer{
		name:            name,
		attempts:        make(map[types.DocumentID]int),
		syntax:          make(map[types.DocumentID]int),
		syntaxText:      make(map[types.DocumentID]string),
		document:        make(map[types.DocumentID]int),
		project:         make(map[types.ProjectID]int),
		projectSemantic: make(map[types.ProjectID]bool),
	}
}

func (r *recordingAnalyzer) Name() string { return r.name }

func (r *recordingAnalyzer) AnalyzeSyntax(ctx context.Context, doc *workspace.Document) error {
	r.mu.Lock()
	r.attempts[doc.ID]++
	gate := r.gate
	r.mu.Unlock()

	if r.panicInSyntax {
		panic("analyzer exploded")
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.syntax[doc.ID]++
	r.syntaxText[doc.ID] = string(doc.Text)
	r.mu.Unlock()
	return nil
}

func (r *recordingAnalyzer) AnalyzeDocument(ctx context.Context, doc *workspace.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.document[doc.ID]++
	r.mu.Unlock()
	return nil
}

func (r *recordingAnalyzer) AnalyzeProject(ctx context.Context, project *workspace.Project, semanticChanged bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.project[project.ID]++
	r.projectSemantic[project.ID] = semanticChanged
	r.mu.Unlock()
	return nil
}

func (r *recordingAnalyzer) RemoveDocument(id types.DocumentID) {
	r.mu.Lock()
	r.removedDocs = append(r.removedDocs, id)
	r.mu.Unlock()
}

func (r *recordingAnalyzer) RemoveProject(id types.ProjectID) {
	r.mu.Lock()
	r.removedProjects = append(r.removedProjects, id)
	r.mu.Unlock()
}

func (r *recordingAnalyzer) DocumentOpened(ctx context.Context, doc *workspace.Document) error {
	r.mu.Lock()
	r.opened = append(r.opened, doc.ID)
	r.mu.Unlock()
	return nil
}

func (r *recordingAnalyzer) DocumentReset(ctx context.Context, doc *workspace.Document) error {
	r.mu.Lock()
	r.reset = append(r.reset, doc.ID)
	r.mu.Unlock()
	return nil
}

func (r *recordingAnalyzer) NeedsReanalysisOnOptionChanged(change OptionChange) bool {
	return r.reanalyzeOn != "" && change.Option == r.reanalyzeOn
}

func (r *recordingAnalyzer) syntaxCount(id types.DocumentID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.syntax[id]
}

func (r *recordingAnalyzer) documentCount(id types.DocumentID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.document[id]
}

func (r *recordingAnalyzer) projectCount(id types.ProjectID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.project[id]
}

func (r *recordingAnalyzer) totalSyntax() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, n := range r.syntax {
		total += n
	}
	return total
}

func (r *recordingAnalyzer) totalDocument() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, n := range r.document {
		total += n
	}
	return total
}

func (r *recordingAnalyzer) removedDocCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.removedDocs)
}

func (r *recordingAnalyzer) resetCounts() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = make(map[types.DocumentID]int)
	r.syntax = make(map[types.DocumentID]int)
	r.syntaxText = make(map[types.DocumentID]string)
	r.document = make(map[types.DocumentID]int)
	r.project = make(map[types.ProjectID]int)
	r.projectSemantic = make(map[types.ProjectID]bool)
	r.removedDocs = nil
	r.removedProjects = nil
}

// harness wires a service, workspace, and recorder with a short debounce.
type harness struct {
	svc *Service
	ws  *workspace.Workspace
	rec *recordingAnalyzer
}

func newHarness(t *testing.T, debounce time.Duration, extra ...Analyzer) *harness {
	t.Helper()
	rec := newRecorder("recorder")
	svc := NewService(Options{Debounce: debounce, MaxWorkers: 4})
	ws := workspace.New(types.WorkspaceID(t.Name()))
	svc.Register(ws, append([]Analyzer{rec}, extra...)...)
	t.Cleanup(svc.Close)
	return &harness{svc: svc, ws: ws, rec: rec}
}

func testDoc(id string, project string) *workspace.Document {
	text := "class " + "D" + " {\n    int M() {\n        return 1;\n    }\n}\n"
	return &workspace.Document{
		ID:       types.DocumentID(id),
		Project:  types.ProjectID(project),
		Language: "csharp",
		Text:     []byte(text),
		Version:  types.HashContent([]byte(text)),
	}
}

// solutionOf builds n projects with docsPer documents each, named
// p1..pn / p1-0.cs etc.
func solutionOf(projectNames []string, docsPer int) ([]*workspace.Project, []*workspace.Document) {
	var projects []*workspace.Project
	var documents []*workspace.Document
	for _, name := range projectNames {
		p := &workspace.Project{ID: types.ProjectID(name), Name: name}
		for i := 0; i < docsPer; i++ {
			d := testDoc(name+"-"+string(rune('0'+i))+".cs", name)
			p.Documents = append(p.Documents, d.ID)
			documents = append(documents, d)
		}
		projects = append(projects, p)
	}
	return projects, documents
}
