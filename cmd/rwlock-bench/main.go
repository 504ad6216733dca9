// Package main provides the rwlock-bench CLI entry point.
//
// rwlock-bench drives a priority reader/writer TCP server through a set of
// scenarios. Each scenario seeds the server's counter, launches reader and
// writer clients against it, and checks the server's per-agent output for
// counter continuity and fairness once everything has shut down.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-rwlock-bench/internal/config"
	"github.com/randomizedcoder/go-rwlock-bench/internal/logging"
	"github.com/randomizedcoder/go-rwlock-bench/internal/orchestrator"
	"github.com/randomizedcoder/go-rwlock-bench/internal/stats"
	"github.com/randomizedcoder/go-rwlock-bench/internal/tui"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/rwlock-bench
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) > 1 {
		arg := os.Args[1]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("rwlock-bench %s\n", version)
			return 0
		}
	}

	cfg, err := config.ParseFlags()
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 1
	}
	if cfg.ShowVersion {
		fmt.Printf("rwlock-bench %s\n", version)
		return 0
	}

	if cfg.Check {
		config.ApplyCheckMode(cfg)
	}

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error:\n%v\n", err)
		return 1
	}
	if err := absolutePaths(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	// Logs would corrupt the dashboard, so they are dropped while it runs.
	var logger *slog.Logger
	if cfg.TUIEnabled {
		logger = logging.NewLoggerWithWriter(io.Discard, "json", "info")
	} else {
		logger = logging.NewLogger(cfg.LogFormat, "info", cfg.Verbose)
	}
	logging.SetDefault(logger)

	orch := orchestrator.New(cfg, logger, version)

	if cfg.PrintCmd {
		orch.PrintCommands(os.Stdout)
		return 0
	}

	logger.Info("starting",
		"version", version,
		"run_id", orch.RunID(),
		"server", cfg.ServerPath,
		"client", cfg.ClientPath,
		"scenarios", len(cfg.Scenarios),
		"threads", cfg.TotalThreads(),
		"metrics_addr", cfg.MetricsAddr,
	)

	if !cfg.TUIEnabled {
		printBanner(cfg, orch.RunID())
	}

	summary, err := runWithDashboard(cfg, orch)

	fmt.Print(stats.FormatRunSummary(summary))

	switch {
	case errors.Is(err, orchestrator.ErrInterrupted):
		logger.Warn("run_interrupted")
		return 1
	case err != nil:
		logger.Error("orchestrator_failed", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	case summary.Failed() > 0:
		return 1
	}
	return 0
}

// runWithDashboard runs the orchestrator, showing the TUI alongside it when
// enabled. Closing the dashboard does not stop the run.
func runWithDashboard(cfg *config.Config, orch *orchestrator.Orchestrator) (stats.RunSummary, error) {
	if !cfg.TUIEnabled {
		return orch.Run(context.Background())
	}

	orch.SetOutput(io.Discard)
	p := tea.NewProgram(
		tui.New(tui.Config{Source: orch, MetricsAddr: cfg.MetricsAddr}),
		tea.WithAltScreen(),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := p.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Dashboard error: %v\n", err)
		}
	}()

	summary, err := orch.Run(context.Background())
	p.Send(tui.QuitMsg{})
	<-done
	return summary, err
}

// absolutePaths resolves binaries and the work directory up front, since
// processes are started with the work directory as their cwd.
func absolutePaths(cfg *config.Config) error {
	// Bare binary names are left for a PATH lookup.
	paths := []*string{&cfg.WorkDir}
	for _, p := range []*string{&cfg.ServerPath, &cfg.ClientPath} {
		if strings.ContainsRune(*p, filepath.Separator) {
			paths = append(paths, p)
		}
	}
	for _, p := range paths {
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", *p, err)
		}
		*p = abs
	}
	return nil
}

func printBanner(cfg *config.Config, runID string) {
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                          rwlock-bench                             ║")
	fmt.Println("║        Priority reader/writer server scenario harness             ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Run ID:      %s\n", runID)
	fmt.Printf("  Server:      %s\n", cfg.ServerPath)
	fmt.Printf("  Client:      %s\n", cfg.ClientPath)
	fmt.Printf("  Scenarios:   %d starting at port %d\n", len(cfg.Scenarios), cfg.BasePort)
	if cfg.MetricsAddr != "" {
		fmt.Printf("  Metrics:     http://%s/metrics\n", cfg.MetricsAddr)
	}
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop.")
	fmt.Println()
}
