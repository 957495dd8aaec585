package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/lwa/internal/config"
	"github.com/standardbeagle/lwa/internal/coordinator"
	"github.com/standardbeagle/lwa/internal/debug"
	"github.com/standardbeagle/lwa/internal/impact"
	"github.com/standardbeagle/lwa/internal/types"
	"github.com/standardbeagle/lwa/internal/workspace"
)

// Host bridges the filesystem to the workspace: it discovers projects from
// their manifests, loads documents, and translates file events into
// workspace mutations handed to the coordinator.
type Host struct {
	cfg *config.Config
	ws  *workspace.Workspace
	svc *coordinator.Service

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu       sync.Mutex
	pending  map[string]fsnotify.Op
	timer    *time.Timer
	projects map[string]types.ProjectID // manifest directory -> project
}

// NewHost creates the watch host. Call Scan to load the initial solution,
// then Start to begin watching.
func NewHost(cfg *config.Config, ws *workspace.Workspace, svc *coordinator.Service) (*Host, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Host{
		cfg:      cfg,
		ws:       ws,
		svc:      svc,
		watcher:  watcher,
		ctx:      ctx,
		cancel:   cancel,
		pending:  make(map[string]fsnotify.Op),
		projects: make(map[string]types.ProjectID),
	}, nil
}

// scanParallelism bounds the concurrent per-project walks during Scan.
const scanParallelism = 4

// Scan walks the workspace root, loads every project manifest and its
// documents, and applies the whole tree as one solution.
func (h *Host) Scan() error {
	root := h.cfg.Workspace.Root

	var manifestDirs []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if h.excluded(h.rel(path)) && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Base(path) == ManifestName {
			manifestDirs = append(manifestDirs, filepath.Dir(path))
		}
		return nil
	})
	if err != nil {
		return err
	}
	sort.Strings(manifestDirs)

	byName := make(map[string]types.ProjectID)
	manifests := make(map[string]*Manifest)

	for _, dir := range manifestDirs {
		m, err := LoadManifest(filepath.Join(dir, ManifestName))
		if err != nil {
			debug.LogWatch("skipping unreadable manifest in %s: %v", dir, err)
			continue
		}
		manifests[dir] = m
		byName[m.Project.Name] = m.ProjectID()
		h.mu.Lock()
		h.projects[dir] = m.ProjectID()
		h.mu.Unlock()
	}

	// All project names are registered above, so reference resolution does
	// not depend on load order and the per-project walks can run in parallel.
	loaded := make([]*workspace.Project, len(manifestDirs))
	loadedDocs := make([][]*workspace.Document, len(manifestDirs))
	var g errgroup.Group
	g.SetLimit(scanParallelism)
	for i, dir := range manifestDirs {
		m, ok := manifests[dir]
		if !ok {
			continue
		}
		g.Go(func() error {
			project, docs, err := h.loadProject(dir, m, byName)
			if err != nil {
				return err
			}
			loaded[i] = project
			loadedDocs[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var projects []*workspace.Project
	var documents []*workspace.Document
	for i := range manifestDirs {
		if loaded[i] == nil {
			continue
		}
		projects = append(projects, loaded[i])
		documents = append(documents, loadedDocs[i]...)
	}

	debug.LogWatch("scan found %d projects, %d documents", len(projects), len(documents))
	ev := h.ws.AddSolution(projects, documents)
	return h.svc.Apply(ev)
}

// loadProject builds a project and its documents from one manifest
// directory. Documents in nested project directories belong to the nested
// project.
func (h *Host) loadProject(dir string, m *Manifest, byName map[string]types.ProjectID) (*workspace.Project, []*workspace.Document, error) {
	project := &workspace.Project{
		ID:   m.ProjectID(),
		Name: m.Project.Name,
	}
	for _, ref := range m.References {
		if id, ok := byName[ref]; ok {
			project.References = append(project.References, id)
		} else {
			debug.LogWatch("project %s references unknown project %q", m.Project.Name, ref)
		}
	}

	var documents []*workspace.Document
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if path == dir {
				return nil
			}
			h.mu.Lock()
			_, nestedProject := h.projects[path]
			h.mu.Unlock()
			if nestedProject || h.excluded(h.rel(path)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !h.includes(dir, m, path) {
			return nil
		}
		doc, err := h.loadDocument(project.ID, path)
		if err != nil {
			debug.LogWatch("skipping unreadable file %s: %v", path, err)
			return nil
		}
		documents = append(documents, doc)
		project.Documents = append(project.Documents, doc.ID)
		return nil
	})
	return project, documents, err
}

func (h *Host) loadDocument(project types.ProjectID, path string) (*workspace.Document, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &workspace.Document{
		ID:       h.documentID(path),
		Project:  project,
		Path:     path,
		Language: impact.LanguageForExtension(filepath.Ext(path)),
		Text:     text,
		Version:  types.HashContent(text),
	}, nil
}

func (h *Host) documentID(path string) types.DocumentID {
	return types.DocumentID(filepath.ToSlash(h.rel(path)))
}

func (h *Host) rel(path string) string {
	rel, err := filepath.Rel(h.cfg.Workspace.Root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func (h *Host) excluded(rel string) bool {
	for _, pattern := range h.cfg.Exclude {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
		trimmed := strings.TrimSuffix(pattern, "/**")
		if trimmed != pattern {
			if matched, _ := doublestar.Match(trimmed, rel); matched {
				return true
			}
		}
	}
	return false
}

// includes decides whether a file belongs to the project's document set.
func (h *Host) includes(dir string, m *Manifest, path string) bool {
	if filepath.Base(path) == ManifestName {
		return false
	}
	rel := h.rel(path)
	if h.excluded(rel) {
		return false
	}
	lang := impact.LanguageForExtension(filepath.Ext(path))
	if lang == "" {
		return false
	}
	if len(h.cfg.Languages) > 0 && !contains(h.cfg.Languages, lang) {
		return false
	}
	if len(m.Include) > 0 {
		inProject, err := filepath.Rel(dir, path)
		if err != nil {
			return false
		}
		inProject = filepath.ToSlash(inProject)
		for _, pattern := range m.Include {
			if matched, _ := doublestar.Match(pattern, inProject); matched {
				return true
			}
		}
		return false
	}
	if len(h.cfg.Include) > 0 {
		for _, pattern := range h.cfg.Include {
			if matched, _ := doublestar.Match(pattern, rel); matched {
				return true
			}
		}
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// projectDir finds the owning project for a path: the nearest ancestor
// directory holding a manifest.
func (h *Host) projectDir(path string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	dir := path
	for {
		if _, ok := h.projects[dir]; ok {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir || len(dir) < len(h.cfg.Workspace.Root) {
			return "", false
		}
		dir = parent
	}
}

// Start begins watching the workspace tree. Events coalesce for the
// configured debounce before being applied.
func (h *Host) Start() error {
	if !h.cfg.Watch.Enabled {
		debug.LogWatch("file watching disabled in configuration")
		return nil
	}
	if err := h.addWatches(h.cfg.Workspace.Root); err != nil {
		return err
	}
	h.wg.Add(1)
	go h.processEvents()
	debug.LogWatch("watching %s", h.cfg.Workspace.Root)
	return nil
}

// Stop halts watching and waits for in-flight event processing.
func (h *Host) Stop() {
	h.cancel()
	_ = h.watcher.Close()
	h.mu.Lock()
	if h.timer != nil {
		h.timer.Stop()
	}
	h.mu.Unlock()
	h.wg.Wait()
}

func (h *Host) addWatches(root string) error {
	visited := make(map[string]bool)
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || !info.IsDir() {
			return nil
		}
		real, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visited[real] {
			return filepath.SkipDir
		}
		visited[real] = true
		if path != root && h.excluded(h.rel(path)) {
			return filepath.SkipDir
		}
		if err := h.watcher.Add(path); err != nil {
			debug.LogWatch("failed to watch %s: %v", path, err)
		}
		return nil
	})
}

func (h *Host) processEvents() {
	defer h.wg.Done()
	for {
		select {
		case <-h.ctx.Done():
			return
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			h.coalesce(event)
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			debug.LogWatch("watcher error: %v", err)
		}
	}
}

// coalesce merges bursty events per path and restarts the flush timer.
func (h *Host) coalesce(event fsnotify.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending[event.Name] |= event.Op
	if h.timer != nil {
		h.timer.Stop()
	}
	delay := time.Duration(h.cfg.Watch.DebounceMs) * time.Millisecond
	h.timer = time.AfterFunc(delay, h.flush)
}

func (h *Host) flush() {
	h.mu.Lock()
	batch := h.pending
	h.pending = make(map[string]fsnotify.Op)
	h.mu.Unlock()

	if h.ctx.Err() != nil {
		return
	}
	paths := make([]string, 0, len(batch))
	for path := range batch {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		h.apply(path, batch[path])
	}
}

// apply translates one coalesced file event into a workspace mutation.
func (h *Host) apply(path string, op fsnotify.Op) {
	if filepath.Base(path) == ManifestName {
		h.reloadProject(filepath.Dir(path))
		return
	}

	// New directories need watches before their contents produce events.
	if op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			_ = h.addWatches(path)
			return
		}
	}

	dir, ok := h.projectDir(path)
	if !ok {
		return
	}
	h.mu.Lock()
	projectID := h.projects[dir]
	h.mu.Unlock()

	docID := h.documentID(path)
	snap := h.ws.Snapshot()
	known := snap.Document(docID) != nil

	switch {
	case op&(fsnotify.Remove|fsnotify.Rename) != 0:
		if known {
			ev := h.ws.RemoveDocument(docID)
			h.applyEvent(ev)
		}

	case op&(fsnotify.Create|fsnotify.Write) != 0:
		m, err := LoadManifest(filepath.Join(dir, ManifestName))
		if err != nil || !h.includes(dir, m, path) {
			return
		}
		text, err := os.ReadFile(path)
		if err != nil {
			debug.LogWatch("read failed for %s: %v", path, err)
			return
		}
		if known {
			ev, err := h.ws.ReloadDocument(docID, text)
			if err != nil {
				debug.LogWatch("reload failed for %s: %v", docID, err)
				return
			}
			h.applyEvent(ev)
		} else {
			ev, err := h.ws.AddDocument(&workspace.Document{
				ID:       docID,
				Project:  projectID,
				Path:     path,
				Language: impact.LanguageForExtension(filepath.Ext(path)),
				Text:     text,
				Version:  types.HashContent(text),
			})
			if err != nil {
				debug.LogWatch("add failed for %s: %v", docID, err)
				return
			}
			h.applyEvent(ev)
		}
	}
}

// reloadProject re-reads a manifest and reapplies the project's document
// set and references.
func (h *Host) reloadProject(dir string) {
	m, err := LoadManifest(filepath.Join(dir, ManifestName))
	if err != nil {
		debug.LogWatch("manifest reload failed in %s: %v", dir, err)
		return
	}

	h.mu.Lock()
	h.projects[dir] = m.ProjectID()
	byName := make(map[string]types.ProjectID, len(h.projects))
	for _, id := range h.projects {
		byName[string(id)] = id
	}
	h.mu.Unlock()

	project, docs, err := h.loadProject(dir, m, byName)
	if err != nil {
		debug.LogWatch("project reload failed in %s: %v", dir, err)
		return
	}
	ev := h.ws.ChangeProject(project, docs)
	h.applyEvent(ev)
}

func (h *Host) applyEvent(ev workspace.Event) {
	if err := h.svc.Apply(ev); err != nil {
		debug.LogWatch("apply failed: %v", err)
	}
}
