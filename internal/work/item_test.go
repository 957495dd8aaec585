package work

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReasonSetUnion(t *testing.T) {
	a := NewReasonSet(ReasonDocumentAdded, ReasonDocumentChanged)
	b := NewReasonSet(ReasonDocumentOpened)

	u := a.Union(b)
	assert.True(t, u.Has(ReasonDocumentAdded))
	assert.True(t, u.Has(ReasonDocumentChanged))
	assert.True(t, u.Has(ReasonDocumentOpened))
	assert.False(t, u.Has(ReasonProjectRemoved))
	assert.True(t, NewReasonSet().IsEmpty())
}

func TestSemanticChangeDetection(t *testing.T) {
	assert.True(t, NewReasonSet(ReasonDocumentAdded).HasSemanticChange())
	assert.True(t, NewReasonSet(ReasonDocumentChanged).HasSemanticChange())
	assert.False(t, NewReasonSet(ReasonDocumentOpened).HasSemanticChange())
	assert.False(t, NewReasonSet(ReasonHighPriority).HasSemanticChange())

	// SemanticChanged alone must not count as a new semantic change, or
	// propagation would ripple forever through the reference graph.
	assert.False(t, NewReasonSet(ReasonSemanticChanged).HasSemanticChange())
}

func TestScopeWiden(t *testing.T) {
	assert.Equal(t, ScopeFullDocument, ScopeSyntaxOnly.Widen(ScopeFullDocument))
	assert.Equal(t, ScopeFullDocument, ScopeFullDocument.Widen(ScopeSyntaxOnly))
	assert.Equal(t, ScopeProjectLevel, ScopeSyntaxOnly.Widen(ScopeProjectLevel))
}

func TestMergeSupersedesHandle(t *testing.T) {
	parent := context.Background()
	existing := &Item{
		Key:     DocumentKey("p", "d"),
		Reasons: NewReasonSet(ReasonDocumentChanged),
		Scope:   ScopeSyntaxOnly,
		Handle:  NewCancelHandle(parent),
	}
	oldHandle := existing.Handle

	incoming := &Item{
		Key:     DocumentKey("p", "d"),
		Reasons: NewReasonSet(ReasonDocumentReloaded),
		Scope:   ScopeFullDocument,
	}
	existing.Merge(incoming, parent)

	assert.True(t, oldHandle.IsCancelled(), "superseded handle must be cancelled")
	require.NotNil(t, existing.Handle)
	assert.False(t, existing.Handle.IsCancelled(), "fresh handle must be live")
	assert.True(t, existing.Reasons.Has(ReasonDocumentChanged))
	assert.True(t, existing.Reasons.Has(ReasonDocumentReloaded))
	assert.Equal(t, ScopeFullDocument, existing.Scope)
}

func TestMergeClearsAnalyzerRestrictionOnMismatch(t *testing.T) {
	parent := context.Background()
	existing := &Item{
		Key:          DocumentKey("p", "d"),
		Handle:       NewCancelHandle(parent),
		OnlyAnalyzer: "diagnostics",
	}
	existing.Merge(&Item{Key: existing.Key}, parent)
	assert.Empty(t, existing.OnlyAnalyzer)

	restricted := &Item{
		Key:          DocumentKey("p", "d"),
		Handle:       NewCancelHandle(parent),
		OnlyAnalyzer: "diagnostics",
	}
	restricted.Merge(&Item{Key: restricted.Key, OnlyAnalyzer: "diagnostics"}, parent)
	assert.Equal(t, "diagnostics", restricted.OnlyAnalyzer)
}

func TestCancelHandleIdempotent(t *testing.T) {
	h := NewCancelHandle(context.Background())
	h.Cancel()
	h.Cancel()
	h.Retire()
	h.Retire()
	assert.True(t, h.IsCancelled())

	retired := NewCancelHandle(context.Background())
	retired.Retire()
	retired.Cancel()
	assert.True(t, retired.IsCancelled())
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "document:p/d", DocumentKey("p", "d").String())
	assert.Equal(t, "project:p", ProjectKey("p").String())
}
