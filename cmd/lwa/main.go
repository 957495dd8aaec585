package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/lwa/internal/config"
	"github.com/standardbeagle/lwa/internal/coordinator"
	"github.com/standardbeagle/lwa/internal/debug"
	"github.com/standardbeagle/lwa/internal/diagnostics"
	"github.com/standardbeagle/lwa/internal/watch"
	"github.com/standardbeagle/lwa/internal/workspace"
)

var Version = "0.1.0"

func main() {
	app := &cli.App{
		Name:                   "lwa",
		Usage:                  "Lightning workspace analysis - incremental analysis for live project graphs",
		Version:                Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Value:   ".",
				Usage:   "workspace root directory",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
			&cli.BoolFlag{
				Name:  "debug-file",
				Usage: "write debug logging to a timestamped file under the system temp directory",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "check",
				Usage:  "Scan the workspace once, run analysis to quiescence, and report problems",
				Action: runCheck,
			},
			{
				Name:   "watch",
				Usage:  "Scan the workspace and keep analysis current as files change",
				Action: runWatch,
			},
			{
				Name:   "projects",
				Usage:  "List discovered projects and their reference edges",
				Action: runProjects,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type session struct {
	cfg *config.Config
	ws  *workspace.Workspace
	svc *coordinator.Service
	ana *diagnostics.Analyzer
	hst *watch.Host
}

func newSession(c *cli.Context) (*session, error) {
	if c.Bool("debug") {
		os.Setenv("DEBUG", "1")
		debug.SetDebugOutput(os.Stderr)
	}
	if c.Bool("debug-file") {
		os.Setenv("DEBUG", "1")
		logPath, err := debug.InitDebugLogFile()
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(os.Stderr, "debug log: %s\n", logPath)
	}

	root, err := filepath.Abs(c.String("root"))
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	debug.Printf("lwa %s root=%s\n", Version, cfg.Workspace.Root)

	ws := workspace.New("lwa")
	svc := coordinator.NewService(coordinator.Options{
		Debounce:   time.Duration(cfg.Coordinator.DebounceMs) * time.Millisecond,
		MaxWorkers: int64(cfg.Coordinator.MaxWorkers),
		Sink: func(err error) {
			fmt.Fprintf(os.Stderr, "analyzer fault: %v\n", err)
		},
	})
	ana := diagnostics.New(cfg.Coordinator.MaxProblems)
	svc.Register(ws, ana)

	hst, err := watch.NewHost(cfg, ws, svc)
	if err != nil {
		svc.Close()
		ana.Close()
		return nil, err
	}
	return &session{cfg: cfg, ws: ws, svc: svc, ana: ana, hst: hst}, nil
}

func (s *session) close() {
	s.hst.Stop()
	s.svc.Close()
	s.ana.Close()
	_ = debug.CloseDebugLog()
}

func runCheck(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.hst.Scan(); err != nil {
		return err
	}
	s.svc.WaitUntilQuiescent(s.ws)

	snap := s.ws.Snapshot()
	total := 0
	for _, doc := range snap.Documents() {
		problems := s.ana.Problems(doc.ID)
		for _, p := range problems {
			fmt.Printf("%s:%d: %s\n", p.Document, p.Line, p.Message)
		}
		total += len(problems)
	}
	fmt.Printf("%d projects, %d documents, %d problems\n",
		len(snap.Projects()), snap.DocumentCount(), total)
	if total > 0 {
		return cli.Exit("", 1)
	}
	return nil
}

func runWatch(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.hst.Scan(); err != nil {
		return err
	}
	if err := s.hst.Start(); err != nil {
		return err
	}

	reporter := s.svc.GetProgressReporter(s.ws)
	reporter.OnStopped(func() {
		snap := s.ws.Snapshot()
		total := 0
		for _, doc := range snap.Documents() {
			total += len(s.ana.Problems(doc.ID))
		}
		fmt.Printf("analysis up to date: %d documents, %d problems\n",
			snap.DocumentCount(), total)
	})
	s.svc.WaitUntilQuiescent(s.ws)

	fmt.Printf("watching %s (ctrl-c to stop)\n", s.cfg.Workspace.Root)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	signal.Stop(sig)
	return nil
}

func runProjects(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.hst.Scan(); err != nil {
		return err
	}
	snap := s.ws.Snapshot()
	for _, id := range snap.Projects() {
		project := snap.Project(id)
		fmt.Printf("%s (%d documents)\n", project.Name, len(project.Documents))
		for _, ref := range project.References {
			fmt.Printf("  -> %s\n", ref)
		}
		for _, dep := range snap.Dependents(id) {
			fmt.Printf("  <- %s\n", dep)
		}
	}
	return nil
}
