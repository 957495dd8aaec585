package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashContentIsStable(t *testing.T) {
	text := []byte("class C { }")
	assert.Equal(t, HashContent(text), HashContent([]byte("class C { }")))
	assert.NotEqual(t, HashContent(text), HashContent([]byte("class D { }")))
}

func TestHashContentEmptyVsNil(t *testing.T) {
	assert.Equal(t, HashContent(nil), HashContent([]byte{}))
}

func TestSpanLen(t *testing.T) {
	assert.Equal(t, uint(5), Span{Start: 2, End: 7}.Len())
	assert.Zero(t, Span{Start: 7, End: 2}.Len())
	assert.Zero(t, Span{Start: 3, End: 3}.Len())
}

func TestSpanContains(t *testing.T) {
	outer := Span{Start: 10, End: 20}
	assert.True(t, outer.Contains(Span{Start: 10, End: 20}))
	assert.True(t, outer.Contains(Span{Start: 12, End: 18}))
	assert.False(t, outer.Contains(Span{Start: 9, End: 15}))
	assert.False(t, outer.Contains(Span{Start: 15, End: 21}))
}

func TestSpanString(t *testing.T) {
	assert.Equal(t, "[2,7)", Span{Start: 2, End: 7}.String())
}
