// Package config provides configuration management for rwlock-bench.
package config

import (
	"time"

	"github.com/randomizedcoder/go-rwlock-bench/internal/process"
)

// Config holds all configuration options for the orchestrator.
type Config struct {
	// Binaries
	ServerPath string   `json:"server_path"`
	ClientPath string   `json:"client_path"`
	WorkDir    string   `json:"work_dir"`
	SeedFile   string   `json:"seed_file"`
	ServerArgs []string `json:"server_args"`
	ClientArgs []string `json:"client_args"`

	// Network
	Host     string `json:"host"`
	BasePort int    `json:"base_port"`

	// Scenarios
	ScenariosFile string     `json:"scenarios_file"`
	Only          []string   `json:"only"`
	Threads       int        `json:"threads"` // default per client
	Scenarios     []Scenario `json:"scenarios"`

	// Timing
	ReadyTimeout       time.Duration `json:"ready_timeout"`
	Warmup             time.Duration `json:"warmup"`
	ClientTimeout      time.Duration `json:"client_timeout"`
	StopTimeout        time.Duration `json:"stop_timeout"`
	GraceDelay         time.Duration `json:"grace_delay"`
	ServerDrainTimeout time.Duration `json:"server_drain_timeout"`

	// Stream monitors
	IdleInitial    time.Duration `json:"idle_initial"`
	IdleMax        time.Duration `json:"idle_max"`
	MaxClientLines int           `json:"max_client_lines"`
	LineBuffer     int           `json:"line_buffer"`
	FailOnEmpty    bool          `json:"fail_on_empty"`

	// Observability
	MetricsAddr string `json:"metrics_addr"`
	MetricsFile string `json:"metrics_file"`
	Verbose     bool   `json:"verbose"`
	LogFormat   string `json:"log_format"` // json, text
	TUIEnabled  bool   `json:"tui_enabled"`

	// Diagnostic modes
	PrintCmd      bool `json:"print_cmd"`
	Check         bool `json:"check"`
	SkipPreflight bool `json:"skip_preflight"`
	ShowVersion   bool `json:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Binaries
		ServerPath: "./server",
		ClientPath: "./client",
		WorkDir:    ".",
		SeedFile:   process.DefaultSeedFile,

		// Network
		Host:     "127.0.0.1",
		BasePort: 8073,

		// Scenarios
		Threads: 100,

		// Timing
		ReadyTimeout:       5 * time.Second,
		Warmup:             0,
		ClientTimeout:      2 * time.Minute,
		StopTimeout:        3 * time.Second,
		GraceDelay:         500 * time.Millisecond,
		ServerDrainTimeout: 5 * time.Second,

		// Stream monitors
		IdleInitial:    10 * time.Millisecond,
		IdleMax:        100 * time.Millisecond,
		MaxClientLines: 1_000_000,
		LineBuffer:     1024,
		FailOnEmpty:    true,

		// Observability
		LogFormat: "json",
	}
}

// SeedPath returns the seed file path resolved against WorkDir.
func (c *Config) SeedPath() string {
	return process.SeedPath(c.WorkDir, c.SeedFile)
}

// TotalThreads sums client threads over all scenarios.
func (c *Config) TotalThreads() int {
	total := 0
	for _, s := range c.Scenarios {
		total += s.TotalThreads()
	}
	return total
}

// MaxConcurrentThreads returns the largest thread count any single
// scenario runs at once.
func (c *Config) MaxConcurrentThreads() int {
	peak := 0
	for _, s := range c.Scenarios {
		peak = max(peak, s.TotalThreads())
	}
	return peak
}
