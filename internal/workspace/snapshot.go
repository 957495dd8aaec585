package workspace

import (
	"github.com/standardbeagle/lwa/internal/types"
)

// Document is one source document in the project graph. Text and version are
// owned by the host; the coordinator only reads them through a snapshot.
type Document struct {
	ID       types.DocumentID
	Project  types.ProjectID
	Path     string
	Language string
	Text     []byte
	Version  types.ContentVersion
}

// Project is identity plus an ordered set of document identities and a set of
// project-reference edges (projects it depends on). The reference graph is a
// DAG by host contract; the snapshot does not guard against cycles.
type Project struct {
	ID         types.ProjectID
	Name       string
	Documents  []types.DocumentID
	References []types.ProjectID
}

// HasReference reports whether the project depends on the given project.
func (p *Project) HasReference(id types.ProjectID) bool {
	for _, ref := range p.References {
		if ref == id {
			return true
		}
	}
	return false
}

// Snapshot is an immutable-per-version view of the project graph. Mutators on
// Workspace produce new snapshots; readers never observe tearing.
type Snapshot struct {
	Version types.SnapshotVersion

	projects     map[types.ProjectID]*Project
	documents    map[types.DocumentID]*Document
	projectOrder []types.ProjectID
}

func emptySnapshot(version types.SnapshotVersion) *Snapshot {
	return &Snapshot{
		Version:   version,
		projects:  make(map[types.ProjectID]*Project),
		documents: make(map[types.DocumentID]*Document),
	}
}

// clone makes a shallow copy with fresh maps so a mutator can replace entries
// without disturbing readers of the previous version.
func (s *Snapshot) clone(version types.SnapshotVersion) *Snapshot {
	next := &Snapshot{
		Version:      version,
		projects:     make(map[types.ProjectID]*Project, len(s.projects)),
		documents:    make(map[types.DocumentID]*Document, len(s.documents)),
		projectOrder: append([]types.ProjectID(nil), s.projectOrder...),
	}
	for id, p := range s.projects {
		next.projects[id] = p
	}
	for id, d := range s.documents {
		next.documents[id] = d
	}
	return next
}

// Document returns the document with the given ID, or nil.
func (s *Snapshot) Document(id types.DocumentID) *Document {
	return s.documents[id]
}

// Project returns the project with the given ID, or nil.
func (s *Snapshot) Project(id types.ProjectID) *Project {
	return s.projects[id]
}

// Projects returns project IDs in registration order.
func (s *Snapshot) Projects() []types.ProjectID {
	return s.projectOrder
}

// Documents returns every document in the snapshot, project by project in
// registration order.
func (s *Snapshot) Documents() []*Document {
	var docs []*Document
	for _, pid := range s.projectOrder {
		for _, did := range s.projects[pid].Documents {
			if d := s.documents[did]; d != nil {
				docs = append(docs, d)
			}
		}
	}
	return docs
}

// DocumentCount returns the number of documents in the snapshot.
func (s *Snapshot) DocumentCount() int {
	return len(s.documents)
}

// Dependents returns the projects that directly reference the given project.
func (s *Snapshot) Dependents(id types.ProjectID) []types.ProjectID {
	var out []types.ProjectID
	for _, pid := range s.projectOrder {
		if s.projects[pid].HasReference(id) {
			out = append(out, pid)
		}
	}
	return out
}

// TransitiveDependents walks the reference graph breadth-first from the given
// project toward its dependents. Each project appears at most once even in
// diamond-shaped graphs; the origin project itself is excluded.
func (s *Snapshot) TransitiveDependents(id types.ProjectID) []types.ProjectID {
	visited := map[types.ProjectID]bool{id: true}
	var out []types.ProjectID
	queue := []types.ProjectID{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, dep := range s.Dependents(current) {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			out = append(out, dep)
			queue = append(queue, dep)
		}
	}
	return out
}
