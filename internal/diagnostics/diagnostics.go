package diagnostics

import (
	"context"
	"fmt"
	"sort"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/lwa/internal/coordinator"
	"github.com/standardbeagle/lwa/internal/debug"
	lwaerrors "github.com/standardbeagle/lwa/internal/errors"
	"github.com/standardbeagle/lwa/internal/impact"
	"github.com/standardbeagle/lwa/internal/types"
	"github.com/standardbeagle/lwa/internal/workspace"
)

// Problem is one syntax problem found in a document.
type Problem struct {
	Document types.DocumentID
	Line     uint
	Message  string
}

// DocumentSummary is the full-document analysis product: declaration shape
// plus problem count, refreshed only when an edit may have changed the
// document's structure.
type DocumentSummary struct {
	Document     types.DocumentID
	Members      int
	Problems     int
	ContentHash  types.ContentVersion
	FromSnapshot types.SnapshotVersion
}

// ProjectSummary aggregates problems across a project after a
// project-level dispatch.
type ProjectSummary struct {
	Project         types.ProjectID
	Documents       int
	Problems        int
	SemanticRefresh bool
}

// Analyzer finds parse errors with the language grammars and keeps
// per-document and per-project summaries current. It implements the
// coordinator's analyzer contract.
type Analyzer struct {
	mu          sync.Mutex
	grammars    map[string]*impact.Grammar
	parsers     map[string]*tree_sitter.Parser
	maxProblems int

	problems  map[types.DocumentID][]Problem
	documents map[types.DocumentID]DocumentSummary
	projects  map[types.ProjectID]ProjectSummary
}

// New creates the analyzer. maxProblems caps the problems recorded per
// document; zero means no cap.
func New(maxProblems int) *Analyzer {
	return &Analyzer{
		grammars:    impact.Grammars(),
		parsers:     make(map[string]*tree_sitter.Parser),
		maxProblems: maxProblems,
		problems:    make(map[types.DocumentID][]Problem),
		documents:   make(map[types.DocumentID]DocumentSummary),
		projects:    make(map[types.ProjectID]ProjectSummary),
	}
}

// Close releases the cached parsers.
func (a *Analyzer) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range a.parsers {
		p.Close()
	}
	a.parsers = make(map[string]*tree_sitter.Parser)
}

func (a *Analyzer) Name() string { return "diagnostics" }

func (a *Analyzer) parserLocked(language string) (*tree_sitter.Parser, *impact.Grammar, error) {
	grammar, ok := a.grammars[language]
	if !ok {
		return nil, nil, nil
	}
	if p, ok := a.parsers[language]; ok {
		return p, grammar, nil
	}
	p := tree_sitter.NewParser()
	if err := p.SetLanguage(grammar.Language()); err != nil {
		p.Close()
		return nil, nil, lwaerrors.NewImpactError(language, types.Span{}, err)
	}
	a.parsers[language] = p
	return p, grammar, nil
}

// AnalyzeSyntax reparses the document and replaces its problem list.
func (a *Analyzer) AnalyzeSyntax(ctx context.Context, doc *workspace.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	parser, _, err := a.parserLocked(doc.Language)
	if err != nil {
		return err
	}
	if parser == nil {
		delete(a.problems, doc.ID)
		return nil
	}

	tree := parser.Parse(doc.Text, nil)
	if tree == nil {
		return lwaerrors.NewImpactError(doc.Language, types.Span{}, fmt.Errorf("parse failed for %s", doc.ID))
	}
	defer tree.Close()

	problems := collectProblems(doc.ID, tree.RootNode(), a.maxProblems)
	a.problems[doc.ID] = problems
	debug.Log("diagnostics", "document %s: %d problems", doc.ID, len(problems))
	return ctx.Err()
}

// AnalyzeDocument refreshes the structural summary. Runs only when an edit
// may have changed declarations, so member counting here is not wasted on
// body-confined edits.
func (a *Analyzer) AnalyzeDocument(ctx context.Context, doc *workspace.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	parser, grammar, err := a.parserLocked(doc.Language)
	if err != nil {
		return err
	}
	summary := DocumentSummary{
		Document:    doc.ID,
		ContentHash: doc.Version,
		Problems:    len(a.problems[doc.ID]),
	}
	if parser != nil {
		tree := parser.Parse(doc.Text, nil)
		if tree == nil {
			return lwaerrors.NewImpactError(doc.Language, types.Span{}, fmt.Errorf("parse failed for %s", doc.ID))
		}
		summary.Members = countDeclarations(tree.RootNode(), grammar)
		tree.Close()
	}
	a.documents[doc.ID] = summary
	return ctx.Err()
}

// AnalyzeProject rolls the per-document results up into a project summary.
func (a *Analyzer) AnalyzeProject(ctx context.Context, project *workspace.Project, semanticChanged bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	summary := ProjectSummary{
		Project:         project.ID,
		Documents:       len(project.Documents),
		SemanticRefresh: semanticChanged,
	}
	for _, docID := range project.Documents {
		summary.Problems += len(a.problems[docID])
	}
	a.projects[project.ID] = summary
	debug.Log("diagnostics", "project %s: %d problems across %d documents", project.ID, summary.Problems, summary.Documents)
	return nil
}

func (a *Analyzer) RemoveDocument(id types.DocumentID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.problems, id)
	delete(a.documents, id)
}

func (a *Analyzer) RemoveProject(id types.ProjectID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.projects, id)
}

func (a *Analyzer) DocumentOpened(ctx context.Context, doc *workspace.Document) error {
	return nil
}

// DocumentReset drops derived state for a reloaded document; the queued
// full analysis rebuilds it.
func (a *Analyzer) DocumentReset(ctx context.Context, doc *workspace.Document) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.problems, doc.ID)
	delete(a.documents, doc.ID)
	return nil
}

// NeedsReanalysisOnOptionChanged reacts to the problem cap, which changes
// which problems get recorded.
func (a *Analyzer) NeedsReanalysisOnOptionChanged(change coordinator.OptionChange) bool {
	if change.Option != "diagnostics.max_problems" {
		return false
	}
	if limit, ok := change.Value.(int); ok {
		a.mu.Lock()
		a.maxProblems = limit
		a.mu.Unlock()
	}
	return true
}

// Problems returns the recorded problems for a document, sorted by line.
func (a *Analyzer) Problems(id types.DocumentID) []Problem {
	a.mu.Lock()
	defer a.mu.Unlock()
	problems := make([]Problem, len(a.problems[id]))
	copy(problems, a.problems[id])
	sort.Slice(problems, func(i, j int) bool { return problems[i].Line < problems[j].Line })
	return problems
}

// DocumentResult returns the last full-document summary for the document.
func (a *Analyzer) DocumentResult(id types.DocumentID) (DocumentSummary, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.documents[id]
	return s, ok
}

// ProjectResult returns the last project summary.
func (a *Analyzer) ProjectResult(id types.ProjectID) (ProjectSummary, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.projects[id]
	return s, ok
}

func collectProblems(doc types.DocumentID, root *tree_sitter.Node, max int) []Problem {
	var problems []Problem
	var walk func(node *tree_sitter.Node)
	walk = func(node *tree_sitter.Node) {
		if max > 0 && len(problems) >= max {
			return
		}
		if node.IsMissing() {
			problems = append(problems, Problem{
				Document: doc,
				Line:     uint(node.StartPosition().Row) + 1,
				Message:  fmt.Sprintf("missing %s", node.Kind()),
			})
			return
		}
		if node.Kind() == "ERROR" {
			problems = append(problems, Problem{
				Document: doc,
				Line:     uint(node.StartPosition().Row) + 1,
				Message:  "syntax error",
			})
			return
		}
		if !node.HasError() {
			return
		}
		count := int(node.ChildCount())
		for i := 0; i < count; i++ {
			if child := node.Child(uint(i)); child != nil {
				walk(child)
			}
		}
	}
	walk(root)
	return problems
}

func countDeclarations(root *tree_sitter.Node, grammar *impact.Grammar) int {
	count := 0
	var walk func(node *tree_sitter.Node)
	walk = func(node *tree_sitter.Node) {
		if grammar.IsDeclaration(node.Kind()) {
			count++
		}
		n := int(node.ChildCount())
		for i := 0; i < n; i++ {
			if child := node.Child(uint(i)); child != nil {
				walk(child)
			}
		}
	}
	walk(root)
	return count
}
