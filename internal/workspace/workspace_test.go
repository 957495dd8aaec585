package workspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/lwa/internal/types"
)

func doc(id, project, text string) *Document {
	return &Document{
		ID:       types.DocumentID(id),
		Project:  types.ProjectID(project),
		Language: "csharp",
		Text:     []byte(text),
		Version:  types.HashContent([]byte(text)),
	}
}

func twoProjectSolution() ([]*Project, []*Document) {
	projects := []*Project{
		{ID: "p1", Name: "p1", Documents: []types.DocumentID{"a.cs", "b.cs"}},
		{ID: "p2", Name: "p2", Documents: []types.DocumentID{"c.cs"}, References: []types.ProjectID{"p1"}},
	}
	documents := []*Document{
		doc("a.cs", "p1", "class A { }"),
		doc("b.cs", "p1", "class B { }"),
		doc("c.cs", "p2", "class C { }"),
	}
	return projects, documents
}

func TestAddSolutionProducesSnapshot(t *testing.T) {
	ws := New("test")
	projects, documents := twoProjectSolution()

	ev := ws.AddSolution(projects, documents)
	assert.Equal(t, EventSolutionAdded, ev.Kind)
	assert.Equal(t, 0, ev.Old.DocumentCount())
	assert.Equal(t, 3, ev.New.DocumentCount())
	assert.Equal(t, []types.ProjectID{"p1", "p2"}, ev.New.Projects())
	assert.Same(t, ev.New, ws.Snapshot())
}

func TestChangeDocumentSplicesText(t *testing.T) {
	ws := New("test")
	projects, documents := twoProjectSolution()
	ws.AddSolution(projects, documents)

	// Replace "A" with "Alpha" in "class A { }".
	ev, err := ws.ChangeDocument("a.cs", types.Span{Start: 6, End: 7}, []byte("Alpha"))
	require.NoError(t, err)

	assert.Equal(t, EventDocumentChanged, ev.Kind)
	assert.Equal(t, "class Alpha { }", string(ev.New.Document("a.cs").Text))
	assert.Equal(t, "class A { }", string(ev.Old.Document("a.cs").Text))
	assert.Equal(t, types.Span{Start: 6, End: 7}, ev.OldSpan)
	assert.Equal(t, types.Span{Start: 6, End: 11}, ev.EditSpan)
	assert.NotEqual(t, ev.Old.Document("a.cs").Version, ev.New.Document("a.cs").Version)
}

func TestChangeDocumentUnknownDocument(t *testing.T) {
	ws := New("test")
	_, err := ws.ChangeDocument("missing.cs", types.Span{}, []byte("x"))
	assert.Error(t, err)
}

func TestRemoveProjectDropsItsDocuments(t *testing.T) {
	ws := New("test")
	projects, documents := twoProjectSolution()
	ws.AddSolution(projects, documents)

	ev := ws.RemoveProject("p1")
	assert.Equal(t, EventProjectRemoved, ev.Kind)
	assert.Nil(t, ev.New.Project("p1"))
	assert.Nil(t, ev.New.Document("a.cs"))
	assert.Nil(t, ev.New.Document("b.cs"))
	assert.NotNil(t, ev.New.Document("c.cs"))
}

func TestReloadDocumentKeepsIdentity(t *testing.T) {
	ws := New("test")
	projects, documents := twoProjectSolution()
	ws.AddSolution(projects, documents)

	ev, err := ws.ReloadDocument("a.cs", []byte("class A2 { }"))
	require.NoError(t, err)
	assert.Equal(t, EventDocumentReloaded, ev.Kind)
	assert.Equal(t, types.ProjectID("p1"), ev.New.Document("a.cs").Project)
	assert.Equal(t, "class A2 { }", string(ev.New.Document("a.cs").Text))
}

func TestSnapshotImmutability(t *testing.T) {
	ws := New("test")
	projects, documents := twoProjectSolution()
	before := ws.AddSolution(projects, documents).New

	_, err := ws.ReloadDocument("a.cs", []byte("changed"))
	require.NoError(t, err)

	assert.Equal(t, "class A { }", string(before.Document("a.cs").Text))
}

func TestDependents(t *testing.T) {
	ws := New("test")
	ws.AddSolution([]*Project{
		{ID: "core", Name: "core"},
		{ID: "lib", Name: "lib", References: []types.ProjectID{"core"}},
		{ID: "app", Name: "app", References: []types.ProjectID{"lib"}},
		{ID: "other", Name: "other"},
	}, nil)

	snap := ws.Snapshot()
	assert.Equal(t, []types.ProjectID{"lib"}, snap.Dependents("core"))
	assert.Empty(t, snap.Dependents("other"))
}

func TestTransitiveDependentsDiamond(t *testing.T) {
	// left and right both depend on core; top depends on both.
	ws := New("test")
	ws.AddSolution([]*Project{
		{ID: "core", Name: "core"},
		{ID: "left", Name: "left", References: []types.ProjectID{"core"}},
		{ID: "right", Name: "right", References: []types.ProjectID{"core"}},
		{ID: "top", Name: "top", References: []types.ProjectID{"left", "right"}},
		{ID: "stray", Name: "stray"},
	}, nil)

	deps := ws.Snapshot().TransitiveDependents("core")
	assert.ElementsMatch(t, []types.ProjectID{"left", "right", "top"}, deps)
	// Each project appears once even though two paths reach top.
	assert.Len(t, deps, 3)
}

func TestOpenCloseDocumentEvents(t *testing.T) {
	ws := New("test")
	projects, documents := twoProjectSolution()
	ws.AddSolution(projects, documents)

	open := ws.OpenDocument("a.cs")
	assert.Equal(t, EventDocumentOpened, open.Kind)
	closed := ws.CloseDocument("a.cs")
	assert.Equal(t, EventDocumentClosed, closed.Kind)
}

func TestChangeProjectKeepsSharedDocuments(t *testing.T) {
	ws := New("test")
	projects, documents := twoProjectSolution()
	ws.AddSolution(projects, documents)

	ev := ws.ChangeProject(&Project{
		ID:        "p1",
		Name:      "p1",
		Documents: []types.DocumentID{"a.cs", "d.cs"},
	}, []*Document{doc("d.cs", "p1", "class D { }")})

	assert.Equal(t, EventProjectChanged, ev.Kind)
	assert.NotNil(t, ev.New.Document("a.cs"))
	assert.NotNil(t, ev.New.Document("d.cs"))
	assert.Nil(t, ev.New.Document("b.cs"))
}
