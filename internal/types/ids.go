package types

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// DocumentID identifies a document within a workspace. IDs are assigned by the
// host and stay stable across content changes and reloads.
type DocumentID string

// ProjectID identifies a project within a workspace.
type ProjectID string

// WorkspaceID identifies a registered workspace instance.
type WorkspaceID string

// ContentVersion is a hash of a document's text. Two documents with the same
// version are treated as having identical content, which is how
// identity-preserving reloads are detected without diffing.
type ContentVersion uint64

// HashContent computes the ContentVersion for a document body.
func HashContent(text []byte) ContentVersion {
	return ContentVersion(xxhash.Sum64(text))
}

// SnapshotVersion is a monotonically increasing counter for workspace
// snapshots. Work items record the version they were enqueued against.
type SnapshotVersion uint64

// Span is a half-open byte range [Start, End) in a document's text.
type Span struct {
	Start uint
	End   uint
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() uint {
	if s.End < s.Start {
		return 0
	}
	return s.End - s.Start
}

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Start, s.End)
}

// Contains reports whether the span fully contains other.
func (s Span) Contains(other Span) bool {
	return other.Start >= s.Start && other.End <= s.End
}
