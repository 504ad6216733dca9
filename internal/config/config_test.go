package config

import (
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/randomizedcoder/go-rwlock-bench/internal/process"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	if err := cfg.ResolveScenarios(); err != nil {
		t.Fatalf("ResolveScenarios() = %v", err)
	}
	return cfg
}

func TestStringList_Set(t *testing.T) {
	var l stringList
	if err := l.Set("a,b"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if err := l.Set(" c , ,"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if !reflect.DeepEqual([]string(l), []string{"a", "b", "c"}) {
		t.Errorf("list = %v, want [a b c]", l)
	}
	if l.String() != "a,b,c" {
		t.Errorf("String() = %q", l.String())
	}
}

func TestArgList_Set(t *testing.T) {
	var a argList
	a.Set("--debug")
	a.Set("--x=1,2")
	if !reflect.DeepEqual([]string(a), []string{"--debug", "--x=1,2"}) {
		t.Errorf("args = %v", a)
	}
}

func TestFlagType(t *testing.T) {
	testCases := []struct {
		defValue string
		expected string
	}{
		{"true", ""},
		{"false", ""},
		{"42", "int"},
		{"hello", "string"},
		{"5s", "duration"},
		{"2m0s", "duration"},
		{"", "string"},
	}

	for _, tc := range testCases {
		t.Run(tc.defValue, func(t *testing.T) {
			f := &flag.Flag{DefValue: tc.defValue}
			if got := flagType(f); got != tc.expected {
				t.Errorf("flagType(%q) = %q, want %q", tc.defValue, got, tc.expected)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Host != "127.0.0.1" {
		t.Errorf("Host = %q, want 127.0.0.1", cfg.Host)
	}
	if cfg.BasePort != 8073 {
		t.Errorf("BasePort = %d, want 8073", cfg.BasePort)
	}
	if cfg.Threads != 100 {
		t.Errorf("Threads = %d, want 100", cfg.Threads)
	}
	if cfg.SeedFile != "server_output.txt" {
		t.Errorf("SeedFile = %q, want server_output.txt", cfg.SeedFile)
	}
	if cfg.IdleInitial != 10*time.Millisecond || cfg.IdleMax != 100*time.Millisecond {
		t.Errorf("idle = %v..%v, want 10ms..100ms", cfg.IdleInitial, cfg.IdleMax)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want json", cfg.LogFormat)
	}
	if !cfg.FailOnEmpty {
		t.Error("FailOnEmpty = false, want true")
	}
}

func TestDefaultScenarios(t *testing.T) {
	cfg := validConfig(t)

	if len(cfg.Scenarios) != 4 {
		t.Fatalf("scenarios = %d, want 4", len(cfg.Scenarios))
	}
	names := make([]string, 0, 4)
	for i, s := range cfg.Scenarios {
		names = append(names, s.Name)
		if s.Port != 8073+i {
			t.Errorf("%s port = %d, want %d", s.Name, s.Port, 8073+i)
		}
		for _, c := range s.Clients {
			if c.Threads != 100 {
				t.Errorf("%s/%s threads = %d, want 100", s.Name, c.Name, c.Threads)
			}
		}
	}
	want := []string{"reader-priority-writer", "reader-priority-paired", "writer-priority-writer", "writer-priority-paired"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("names = %v, want %v", names, want)
	}
	if got := len(cfg.Scenarios[1].Clients); got != 2 {
		t.Errorf("paired scenario clients = %d, want 2", got)
	}
	if cfg.TotalThreads() != 600 {
		t.Errorf("TotalThreads() = %d, want 600", cfg.TotalThreads())
	}
	if cfg.MaxConcurrentThreads() != 200 {
		t.Errorf("MaxConcurrentThreads() = %d, want 200", cfg.MaxConcurrentThreads())
	}
}

func TestResolveScenarios_Only(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Only = []string{"writer-priority-paired"}
	if err := cfg.ResolveScenarios(); err != nil {
		t.Fatalf("ResolveScenarios() = %v", err)
	}
	if len(cfg.Scenarios) != 1 || cfg.Scenarios[0].Name != "writer-priority-paired" {
		t.Fatalf("scenarios = %+v", cfg.Scenarios)
	}
	// Ports are assigned before filtering, so they stay stable.
	if cfg.Scenarios[0].Port != 8076 {
		t.Errorf("port = %d, want 8076", cfg.Scenarios[0].Port)
	}
}

func TestResolveScenarios_UnknownOnly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Only = []string{"nope"}
	err := cfg.ResolveScenarios()
	if err == nil || !strings.Contains(err.Error(), "nope") {
		t.Errorf("ResolveScenarios() = %v, want unknown scenario error", err)
	}
}

func TestLoadScenarios(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	content := `scenarios:
  - name: custom
    priority: writer
    port: 9000
    seed: 100
    clients:
      - name: w
        mode: writer
        threads: 5
      - mode: reader
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.ScenariosFile = path
	cfg.Threads = 7
	if err := cfg.ResolveScenarios(); err != nil {
		t.Fatalf("ResolveScenarios() = %v", err)
	}

	want := []Scenario{{
		Name:     "custom",
		Priority: process.PriorityWriter,
		Port:     9000,
		Seed:     100,
		Clients: []ClientSpec{
			{Name: "w", Mode: process.ModeWriter, Threads: 5},
			{Name: "reader-1", Mode: process.ModeReader, Threads: 7},
		},
	}}
	if !reflect.DeepEqual(cfg.Scenarios, want) {
		t.Errorf("scenarios = %+v, want %+v", cfg.Scenarios, want)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoadScenarios_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{"empty", "scenarios: []\n"},
		{"unknown field", "scenarios:\n  - name: x\n    priorty: writer\n"},
		{"bad yaml", "scenarios: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadScenarios(path); err == nil {
				t.Error("LoadScenarios() error = nil, want error")
			}
		})
	}

	if _, err := LoadScenarios(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("LoadScenarios(missing) error = nil, want error")
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(validConfig(t)); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"no server", func(c *Config) { c.ServerPath = "" }, "server"},
		{"no client", func(c *Config) { c.ClientPath = "" }, "client"},
		{"no host", func(c *Config) { c.Host = "" }, "host"},
		{"bad port", func(c *Config) { c.BasePort = 0 }, "base_port"},
		{"zero threads", func(c *Config) { c.Threads = 0 }, "threads"},
		{"zero ready timeout", func(c *Config) { c.ReadyTimeout = 0 }, "ready_timeout"},
		{"negative warmup", func(c *Config) { c.Warmup = -time.Second }, "warmup"},
		{"negative grace", func(c *Config) { c.GraceDelay = -time.Second }, "grace"},
		{"idle max below initial", func(c *Config) { c.IdleMax = time.Millisecond }, "idle_max"},
		{"zero line budget", func(c *Config) { c.MaxClientLines = 0 }, "max_client_lines"},
		{"zero buffer", func(c *Config) { c.LineBuffer = 0 }, "line_buffer"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"no scenarios", func(c *Config) { c.Scenarios = nil }, "scenarios"},
		{"bad priority", func(c *Config) { c.Scenarios[0].Priority = "fifo" }, "scenarios[0].priority"},
		{"bad mode", func(c *Config) { c.Scenarios[0].Clients[0].Mode = "admin" }, "scenarios[0].clients[0].mode"},
		{"no clients", func(c *Config) { c.Scenarios[1].Clients = nil }, "scenarios[1].clients"},
		{"duplicate scenario", func(c *Config) { c.Scenarios[1].Name = c.Scenarios[0].Name }, "scenarios[1].name"},
		{"duplicate client", func(c *Config) { c.Scenarios[1].Clients[1].Name = "writer" }, "scenarios[1].clients[1].name"},
		{"scenario port", func(c *Config) { c.Scenarios[2].Port = 70000 }, "scenarios[2].port"},
		{"client threads", func(c *Config) { c.Scenarios[0].Clients[0].Threads = 0 }, "scenarios[0].clients[0].threads"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.field+":") {
				t.Errorf("Validate() = %v, want field %q", err, tt.field)
			}
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := validConfig(t)
	cfg.ServerPath = ""
	cfg.Threads = 0
	cfg.LogFormat = "xml"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	lines := strings.Split(err.Error(), "\n")
	if len(lines) != 3 {
		t.Errorf("got %d errors, want 3: %v", len(lines), err)
	}

	var ve ValidationError
	if !errors.As(err, &ve) {
		t.Error("errors.As(ValidationError) = false")
	}
}

func TestParseArgs(t *testing.T) {
	cfg, err := ParseArgs([]string{
		"-server", "/bin/srv",
		"-client", "/bin/cli",
		"-threads", "8",
		"-only", "reader-priority-paired",
		"-server-arg", "--debug",
		"-grace", "1s",
		"-tui",
	}, io.Discard)
	if err != nil {
		t.Fatalf("ParseArgs() = %v", err)
	}

	if cfg.ServerPath != "/bin/srv" || cfg.ClientPath != "/bin/cli" {
		t.Errorf("paths = %q, %q", cfg.ServerPath, cfg.ClientPath)
	}
	if cfg.GraceDelay != time.Second {
		t.Errorf("GraceDelay = %v, want 1s", cfg.GraceDelay)
	}
	if !cfg.TUIEnabled {
		t.Error("TUIEnabled = false")
	}
	if !reflect.DeepEqual(cfg.ServerArgs, []string{"--debug"}) {
		t.Errorf("ServerArgs = %v", cfg.ServerArgs)
	}
	if len(cfg.Scenarios) != 1 || cfg.Scenarios[0].Clients[0].Threads != 8 {
		t.Errorf("scenarios = %+v", cfg.Scenarios)
	}
}

func TestParseArgs_Errors(t *testing.T) {
	if _, err := ParseArgs([]string{"-threads", "x"}, io.Discard); err == nil {
		t.Error("bad int flag should fail")
	}
	if _, err := ParseArgs([]string{"stray"}, io.Discard); err == nil {
		t.Error("positional argument should fail")
	}
	if _, err := ParseArgs([]string{"-h"}, io.Discard); !errors.Is(err, flag.ErrHelp) {
		t.Errorf("-h error = %v, want flag.ErrHelp", err)
	}
}

func TestParseArgs_UsageMentionsCategories(t *testing.T) {
	var b strings.Builder
	ParseArgs([]string{"-h"}, &b)
	for _, want := range []string{"Binaries:", "Timing:", "-ready-timeout duration", "(default 127.0.0.1)"} {
		if !strings.Contains(b.String(), want) {
			t.Errorf("usage missing %q", want)
		}
	}
}

func TestApplyCheckMode(t *testing.T) {
	cfg := validConfig(t)
	cfg.TUIEnabled = true
	ApplyCheckMode(cfg)

	if len(cfg.Scenarios) != 1 {
		t.Errorf("scenarios = %d, want 1", len(cfg.Scenarios))
	}
	for _, c := range cfg.Scenarios[0].Clients {
		if c.Threads != 1 {
			t.Errorf("threads = %d, want 1", c.Threads)
		}
	}
	if !cfg.Verbose || cfg.TUIEnabled {
		t.Errorf("Verbose=%v TUIEnabled=%v, want true/false", cfg.Verbose, cfg.TUIEnabled)
	}
}

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{Field: "threads", Message: "must be at least 1"}
	if err.Error() != "threads: must be at least 1" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestSeedPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkDir = "/srv/bench"
	if got := cfg.SeedPath(); got != "/srv/bench/server_output.txt" {
		t.Errorf("SeedPath() = %q", got)
	}
}
