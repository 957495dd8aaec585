package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"

	lwaerrors "github.com/standardbeagle/lwa/internal/errors"
)

// Config is the full runtime configuration, loaded from .lwa.kdl.
type Config struct {
	Workspace   WorkspaceConfig
	Coordinator CoordinatorConfig
	Watch       WatchConfig
	Include     []string
	Exclude     []string
	Languages   []string
}

// WorkspaceConfig names the workspace and anchors relative paths.
type WorkspaceConfig struct {
	Root string
	Name string
}

// CoordinatorConfig tunes the work queue.
type CoordinatorConfig struct {
	DebounceMs  int
	MaxWorkers  int
	MaxProblems int
}

// WatchConfig controls the filesystem watch host.
type WatchConfig struct {
	Enabled    bool
	DebounceMs int
}

// Default returns the configuration used when no .lwa.kdl exists.
func Default() *Config {
	root, err := os.Getwd()
	if err != nil || root == "" {
		root = "."
	}
	return &Config{
		Workspace: WorkspaceConfig{Root: root},
		Coordinator: CoordinatorConfig{
			DebounceMs:  50,
			MaxWorkers:  4,
			MaxProblems: 100,
		},
		Watch: WatchConfig{
			Enabled:    true,
			DebounceMs: 100,
		},
		Exclude: []string{
			"**/node_modules/**",
			"**/.git/**",
			"**/bin/**",
			"**/obj/**",
			"**/target/**",
			"**/vendor/**",
		},
	}
}

// Load reads .lwa.kdl from the given directory. A missing file returns the
// defaults with Root set to the directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, ".lwa.kdl")
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := Default()
		if abs, err := filepath.Abs(dir); err == nil {
			cfg.Workspace.Root = abs
		} else {
			cfg.Workspace.Root = dir
		}
		return cfg, nil
	}
	if err != nil {
		return nil, lwaerrors.NewConfigError("file", path, err)
	}

	cfg, err := Parse(string(content))
	if err != nil {
		return nil, err
	}

	// Relative roots resolve against the directory holding .lwa.kdl.
	if cfg.Workspace.Root == "" {
		cfg.Workspace.Root = dir
	}
	if !filepath.IsAbs(cfg.Workspace.Root) {
		cfg.Workspace.Root = filepath.Join(dir, cfg.Workspace.Root)
	}
	cfg.Workspace.Root = filepath.Clean(cfg.Workspace.Root)
	return cfg, nil
}

// Parse parses KDL configuration text over the defaults.
func Parse(content string) (*Config, error) {
	cfg := Default()
	cfg.Workspace.Root = ""

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, lwaerrors.NewConfigError("kdl", "", fmt.Errorf("parse: %w", err))
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "workspace":
			for _, cn := range n.Children {
				assignSimpleString(cn, "root", func(v string) { cfg.Workspace.Root = v })
				assignSimpleString(cn, "name", func(v string) { cfg.Workspace.Name = v })
			}
		case "coordinator":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "debounce_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Coordinator.DebounceMs = v
					}
				case "max_workers":
					if v, ok := firstIntArg(cn); ok {
						cfg.Coordinator.MaxWorkers = v
					}
				case "max_problems":
					if v, ok := firstIntArg(cn); ok {
						cfg.Coordinator.MaxProblems = v
					}
				}
			}
		case "watch":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "enabled":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Watch.Enabled = b
					}
				case "debounce_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Watch.DebounceMs = v
					}
				}
			}
		case "include":
			cfg.Include = append(cfg.Include, collectStringArgs(n)...)
		case "exclude":
			// An exclude block replaces the defaults entirely.
			cfg.Exclude = collectStringArgs(n)
		case "languages":
			cfg.Languages = collectStringArgs(n)
		}
	}

	return cfg, cfg.Validate()
}

// Validate rejects values the coordinator cannot run with.
func (c *Config) Validate() error {
	if c.Coordinator.DebounceMs < 0 {
		return lwaerrors.NewConfigError("coordinator.debounce_ms", fmt.Sprint(c.Coordinator.DebounceMs), errNegative)
	}
	if c.Coordinator.MaxWorkers < 1 {
		return lwaerrors.NewConfigError("coordinator.max_workers", fmt.Sprint(c.Coordinator.MaxWorkers), errNotPositive)
	}
	if c.Watch.DebounceMs < 0 {
		return lwaerrors.NewConfigError("watch.debounce_ms", fmt.Sprint(c.Watch.DebounceMs), errNegative)
	}
	return nil
}

var (
	errNegative    = fmt.Errorf("must not be negative")
	errNotPositive = fmt.Errorf("must be at least 1")
)

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	// Block format: exclude { "pattern" } puts each string in a child node.
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}
