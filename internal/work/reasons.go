package work

import (
	"sort"
	"strings"
)

// InvocationReason tags why a unit of work was queued.
type InvocationReason int

const (
	ReasonDocumentAdded InvocationReason = iota
	ReasonDocumentRemoved
	ReasonDocumentChanged
	ReasonDocumentReloaded
	ReasonDocumentClosed
	ReasonDocumentOpened
	ReasonProjectAdded
	ReasonProjectRemoved
	ReasonProjectChanged
	ReasonProjectReloaded
	ReasonSolutionAdded
	ReasonSolutionRemoved
	ReasonSolutionCleared
	ReasonSolutionReloaded
	ReasonReanalyze
	ReasonSemanticChanged
	ReasonHighPriority
	reasonCount
)

var reasonNames = [...]string{
	"DocumentAdded",
	"DocumentRemoved",
	"DocumentChanged",
	"DocumentReloaded",
	"DocumentClosed",
	"DocumentOpened",
	"ProjectAdded",
	"ProjectRemoved",
	"ProjectChanged",
	"ProjectReloaded",
	"SolutionAdded",
	"SolutionRemoved",
	"SolutionCleared",
	"SolutionReloaded",
	"Reanalyze",
	"SemanticChanged",
	"HighPriority",
}

func (r InvocationReason) String() string {
	if r < 0 || int(r) >= len(reasonNames) {
		return "Unknown"
	}
	return reasonNames[r]
}

// ReasonSet is an unordered set of invocation reasons. Sets coalesce by union
// when multiple mutations target the same key before dispatch.
type ReasonSet uint32

// NewReasonSet builds a set from the given reasons.
func NewReasonSet(reasons ...InvocationReason) ReasonSet {
	var s ReasonSet
	for _, r := range reasons {
		s |= 1 << uint(r)
	}
	return s
}

// Has reports whether the set contains the reason.
func (s ReasonSet) Has(r InvocationReason) bool {
	return s&(1<<uint(r)) != 0
}

// Union returns the union of both sets.
func (s ReasonSet) Union(other ReasonSet) ReasonSet {
	return s | other
}

// With returns a copy of the set with the reason added.
func (s ReasonSet) With(r InvocationReason) ReasonSet {
	return s | 1<<uint(r)
}

// IsEmpty reports whether the set holds no reasons.
func (s ReasonSet) IsEmpty() bool {
	return s == 0
}

// semanticReasons are the reasons that imply the change may affect symbol
// signatures visible to dependent projects.
var semanticReasons = NewReasonSet(
	ReasonDocumentAdded,
	ReasonDocumentRemoved,
	ReasonDocumentChanged,
	ReasonDocumentReloaded,
	ReasonProjectChanged,
	ReasonProjectReloaded,
	ReasonReanalyze,
)

// HasSemanticChange reports whether any reason in the set is semantic-affecting.
// SemanticChanged itself is excluded: items created by propagation must not
// trigger another propagation wave.
func (s ReasonSet) HasSemanticChange() bool {
	return s&semanticReasons != 0
}

func (s ReasonSet) String() string {
	var names []string
	for r := InvocationReason(0); r < reasonCount; r++ {
		if s.Has(r) {
			names = append(names, r.String())
		}
	}
	sort.Strings(names)
	return "{" + strings.Join(names, ",") + "}"
}
