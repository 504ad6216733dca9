package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// stringList is a custom flag type for repeatable or comma-separated flags.
type stringList []string

func (l *stringList) String() string {
	return strings.Join(*l, ",")
}

func (l *stringList) Set(value string) error {
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			*l = append(*l, v)
		}
	}
	return nil
}

// argList collects repeatable pass-through arguments verbatim.
type argList []string

func (a *argList) String() string {
	return strings.Join(*a, " ")
}

func (a *argList) Set(value string) error {
	*a = append(*a, value)
	return nil
}

// ParseFlags parses os.Args and returns a Config.
func ParseFlags() (*Config, error) {
	return ParseArgs(os.Args[1:], os.Stderr)
}

// ParseArgs parses args into a Config with scenarios resolved. Usage and
// parse errors are written to out.
func ParseArgs(args []string, out io.Writer) (*Config, error) {
	cfg := DefaultConfig()
	fs := flag.NewFlagSet("rwlock-bench", flag.ContinueOnError)
	fs.SetOutput(out)

	var only stringList
	var serverArgs, clientArgs argList

	fs.Usage = func() {
		fmt.Fprintf(out, `rwlock-bench - scenario harness for a priority reader/writer server

Usage:
  rwlock-bench [flags]

Binaries:
`)
		printFlagCategory(fs, out, []string{"server", "client", "workdir", "seed-file", "server-arg", "client-arg"})

		fmt.Fprintf(out, "\nScenarios:\n")
		printFlagCategory(fs, out, []string{"scenarios", "only", "host", "base-port", "threads"})

		fmt.Fprintf(out, "\nTiming:\n")
		printFlagCategory(fs, out, []string{"ready-timeout", "warmup", "client-timeout", "stop-timeout", "grace", "server-drain-timeout"})

		fmt.Fprintf(out, "\nStream Monitors:\n")
		printFlagCategory(fs, out, []string{"idle-initial", "idle-max", "max-client-lines", "line-buffer", "fail-on-empty"})

		fmt.Fprintf(out, "\nObservability:\n")
		printFlagCategory(fs, out, []string{"metrics", "metrics-file", "v", "log-format", "tui"})

		fmt.Fprintf(out, "\nSafety & Diagnostics:\n")
		printFlagCategory(fs, out, []string{"print-cmd", "check", "skip-preflight", "version"})

		fmt.Fprintf(out, `
Flag Convention:
  Single-dash flags (-server, -threads) are normal options.
  Double-dash flags (--check, --print-cmd) are diagnostic modes.

Examples:
  # Run the four default scenarios
  rwlock-bench -server ./build/server -client ./build/client

  # Only the paired writer-priority scenario, 20 threads per client
  rwlock-bench -only writer-priority-paired -threads 20

  # Scenarios from a file, with a live dashboard
  rwlock-bench -scenarios bench.yaml -tui

`)
	}

	// Binaries
	fs.StringVar(&cfg.ServerPath, "server", cfg.ServerPath, "Path to the server binary")
	fs.StringVar(&cfg.ClientPath, "client", cfg.ClientPath, "Path to the client binary")
	fs.StringVar(&cfg.WorkDir, "workdir", cfg.WorkDir, "Working directory for server and clients")
	fs.StringVar(&cfg.SeedFile, "seed-file", cfg.SeedFile, "Counter seed file, relative to -workdir")
	fs.Var(&serverArgs, "server-arg", "Extra argument for the server (can repeat)")
	fs.Var(&clientArgs, "client-arg", "Extra argument for every client (can repeat)")

	// Scenarios
	fs.StringVar(&cfg.ScenariosFile, "scenarios", cfg.ScenariosFile, "YAML scenario file (default: built-in scenarios)")
	fs.Var(&only, "only", "Run only these scenarios (comma-separated or repeated)")
	fs.StringVar(&cfg.Host, "host", cfg.Host, "Address clients connect to")
	fs.IntVar(&cfg.BasePort, "base-port", cfg.BasePort, "Port of the first scenario; later scenarios add their index")
	fs.IntVar(&cfg.Threads, "threads", cfg.Threads, "Threads per client when a scenario does not set them")

	// Timing
	fs.DurationVar(&cfg.ReadyTimeout, "ready-timeout", cfg.ReadyTimeout, "Max wait for the server to become ready")
	fs.DurationVar(&cfg.Warmup, "warmup", cfg.Warmup, "Extra delay after readiness before clients launch")
	fs.DurationVar(&cfg.ClientTimeout, "client-timeout", cfg.ClientTimeout, "Max run time per client")
	fs.DurationVar(&cfg.StopTimeout, "stop-timeout", cfg.StopTimeout, "SIGTERM to SIGKILL escalation delay")
	fs.DurationVar(&cfg.GraceDelay, "grace", cfg.GraceDelay, "Delay between server stop and monitor cancellation")
	fs.DurationVar(&cfg.ServerDrainTimeout, "server-drain-timeout", cfg.ServerDrainTimeout, "Max wait for the server monitor result")

	// Stream monitors
	fs.DurationVar(&cfg.IdleInitial, "idle-initial", cfg.IdleInitial, "Initial idle wait of the server monitor")
	fs.DurationVar(&cfg.IdleMax, "idle-max", cfg.IdleMax, "Maximum idle wait of the server monitor")
	fs.IntVar(&cfg.MaxClientLines, "max-client-lines", cfg.MaxClientLines, "Line budget per client stream")
	fs.IntVar(&cfg.LineBuffer, "line-buffer", cfg.LineBuffer, "Buffered lines per stream")
	fs.BoolVar(&cfg.FailOnEmpty, "fail-on-empty", cfg.FailOnEmpty, "Fail a scenario when a client reports no latency")

	// Observability
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics address (empty disables)")
	fs.StringVar(&cfg.MetricsFile, "metrics-file", cfg.MetricsFile, "Write final metrics in text format to this file")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	fs.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Enable live terminal dashboard")

	// Safety & Diagnostics (double-dash convention)
	fs.BoolVar(&cfg.PrintCmd, "print-cmd", cfg.PrintCmd, "Print server and client commands and exit")
	fs.BoolVar(&cfg.Check, "check", cfg.Check, "Validate config and run the first scenario with 1 thread per client")
	fs.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")
	fs.BoolVar(&cfg.ShowVersion, "version", cfg.ShowVersion, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	cfg.Only = only
	cfg.ServerArgs = serverArgs
	cfg.ClientArgs = clientArgs

	if cfg.ShowVersion {
		return cfg, nil
	}
	if err := cfg.ResolveScenarios(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(fs *flag.FlagSet, out io.Writer, names []string) {
	for _, name := range names {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		fmt.Fprintf(out, "  -%s %s\n    \t%s", f.Name, flagType(f), f.Usage)
		if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "0s" {
			fmt.Fprintf(out, " (default %s)", f.DefValue)
		}
		fmt.Fprintln(out)
	}
}

// flagType returns a type hint for the flag value.
func flagType(f *flag.Flag) string {
	switch f.DefValue {
	case "true", "false":
		return ""
	}

	if strings.HasSuffix(f.DefValue, "s") || strings.HasSuffix(f.DefValue, "m") || strings.HasSuffix(f.DefValue, "h") {
		return "duration"
	}

	if _, err := fmt.Sscanf(f.DefValue, "%d", new(int)); err == nil {
		return "int"
	}

	return "string"
}
