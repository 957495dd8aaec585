package diagnostics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/lwa/internal/coordinator"
	"github.com/standardbeagle/lwa/internal/types"
	"github.com/standardbeagle/lwa/internal/workspace"
)

func doc(id, language, text string) *workspace.Document {
	return &workspace.Document{
		ID:       types.DocumentID(id),
		Project:  "p1",
		Language: language,
		Text:     []byte(text),
		Version:  types.HashContent([]byte(text)),
	}
}

func TestCleanDocumentHasNoProblems(t *testing.T) {
	a := New(0)
	defer a.Close()

	d := doc("clean.cs", "csharp", "class C {\n    int M() { return 1; }\n}\n")
	require.NoError(t, a.AnalyzeSyntax(context.Background(), d))
	assert.Empty(t, a.Problems(d.ID))
}

func TestBrokenDocumentReportsProblemWithLine(t *testing.T) {
	a := New(0)
	defer a.Close()

	d := doc("broken.cs", "csharp", "class C {\n    int M( { return 1; }\n}\n")
	require.NoError(t, a.AnalyzeSyntax(context.Background(), d))

	problems := a.Problems(d.ID)
	require.NotEmpty(t, problems)
	assert.Equal(t, types.DocumentID("broken.cs"), problems[0].Document)
	assert.GreaterOrEqual(t, problems[0].Line, uint(1))
}

func TestReanalysisReplacesProblems(t *testing.T) {
	a := New(0)
	defer a.Close()

	broken := doc("a.cs", "csharp", "class C {\n")
	require.NoError(t, a.AnalyzeSyntax(context.Background(), broken))
	require.NotEmpty(t, a.Problems(broken.ID))

	fixed := doc("a.cs", "csharp", "class C {\n}\n")
	require.NoError(t, a.AnalyzeSyntax(context.Background(), fixed))
	assert.Empty(t, a.Problems(fixed.ID))
}

func TestUnknownLanguageIsSkipped(t *testing.T) {
	a := New(0)
	defer a.Close()

	d := doc("notes.txt", "prose", "just text, no grammar here")
	require.NoError(t, a.AnalyzeSyntax(context.Background(), d))
	assert.Empty(t, a.Problems(d.ID))

	require.NoError(t, a.AnalyzeDocument(context.Background(), d))
	summary, ok := a.DocumentResult(d.ID)
	require.True(t, ok)
	assert.Zero(t, summary.Members)
}

func TestDocumentSummaryCountsDeclarations(t *testing.T) {
	a := New(0)
	defer a.Close()

	d := doc("two.cs", "csharp", "class C {\n    int A() { return 1; }\n    int B() { return 2; }\n}\n")
	require.NoError(t, a.AnalyzeSyntax(context.Background(), d))
	require.NoError(t, a.AnalyzeDocument(context.Background(), d))

	summary, ok := a.DocumentResult(d.ID)
	require.True(t, ok)
	// The class plus its two methods.
	assert.Equal(t, 3, summary.Members)
	assert.Zero(t, summary.Problems)
	assert.Equal(t, d.Version, summary.ContentHash)
}

func TestProjectSummaryRollsUpProblems(t *testing.T) {
	a := New(0)
	defer a.Close()

	clean := doc("clean.cs", "csharp", "class C { }\n")
	broken := doc("broken.cs", "csharp", "class D {\n")
	require.NoError(t, a.AnalyzeSyntax(context.Background(), clean))
	require.NoError(t, a.AnalyzeSyntax(context.Background(), broken))

	project := &workspace.Project{
		ID:        "p1",
		Name:      "p1",
		Documents: []types.DocumentID{clean.ID, broken.ID},
	}
	require.NoError(t, a.AnalyzeProject(context.Background(), project, true))

	summary, ok := a.ProjectResult("p1")
	require.True(t, ok)
	assert.Equal(t, 2, summary.Documents)
	assert.Equal(t, len(a.Problems(broken.ID)), summary.Problems)
	assert.True(t, summary.SemanticRefresh)
}

func TestRemoveDocumentDropsState(t *testing.T) {
	a := New(0)
	defer a.Close()

	d := doc("gone.cs", "csharp", "class C {\n")
	require.NoError(t, a.AnalyzeSyntax(context.Background(), d))
	require.NoError(t, a.AnalyzeDocument(context.Background(), d))

	a.RemoveDocument(d.ID)
	assert.Empty(t, a.Problems(d.ID))
	_, ok := a.DocumentResult(d.ID)
	assert.False(t, ok)
}

func TestDocumentResetDropsState(t *testing.T) {
	a := New(0)
	defer a.Close()

	d := doc("reload.cs", "csharp", "class C {\n")
	require.NoError(t, a.AnalyzeSyntax(context.Background(), d))
	require.NoError(t, a.DocumentReset(context.Background(), d))
	assert.Empty(t, a.Problems(d.ID))
}

func TestProblemCapLimitsRecording(t *testing.T) {
	a := New(1)
	defer a.Close()

	d := doc("messy.cs", "csharp", "class C {\n    int A( {\n    int B( {\n")
	require.NoError(t, a.AnalyzeSyntax(context.Background(), d))
	assert.LessOrEqual(t, len(a.Problems(d.ID)), 1)
}

func TestOptionChangeReactsToProblemCap(t *testing.T) {
	a := New(10)
	defer a.Close()

	assert.False(t, a.NeedsReanalysisOnOptionChanged(coordinator.OptionChange{Option: "tab_width", Value: 4}))
	assert.True(t, a.NeedsReanalysisOnOptionChanged(coordinator.OptionChange{Option: "diagnostics.max_problems", Value: 5}))
}
