package config

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or errors.Join of every ValidationError found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.ServerPath == "" {
		errs = append(errs, ValidationError{Field: "server", Message: "server binary path is required"})
	}
	if cfg.ClientPath == "" {
		errs = append(errs, ValidationError{Field: "client", Message: "client binary path is required"})
	}
	if cfg.SeedFile == "" {
		errs = append(errs, ValidationError{Field: "seed_file", Message: "must not be empty"})
	}
	if cfg.Host == "" {
		errs = append(errs, ValidationError{Field: "host", Message: "must not be empty"})
	}
	if cfg.BasePort < 1 || cfg.BasePort > 65535 {
		errs = append(errs, ValidationError{
			Field:   "base_port",
			Message: fmt.Sprintf("must be 1-65535 (got %d)", cfg.BasePort),
		})
	}
	if cfg.Threads < 1 {
		errs = append(errs, ValidationError{Field: "threads", Message: "must be at least 1"})
	}

	// Timing
	positive := []struct {
		field string
		value time.Duration
	}{
		{"ready_timeout", cfg.ReadyTimeout},
		{"client_timeout", cfg.ClientTimeout},
		{"stop_timeout", cfg.StopTimeout},
		{"server_drain_timeout", cfg.ServerDrainTimeout},
		{"idle_initial", cfg.IdleInitial},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, ValidationError{Field: p.field, Message: "must be positive"})
		}
	}
	if cfg.Warmup < 0 {
		errs = append(errs, ValidationError{Field: "warmup", Message: "must not be negative"})
	}
	if cfg.GraceDelay < 0 {
		errs = append(errs, ValidationError{Field: "grace", Message: "must not be negative"})
	}
	if cfg.IdleMax < cfg.IdleInitial {
		errs = append(errs, ValidationError{Field: "idle_max", Message: "must be >= idle_initial"})
	}

	// Stream monitors
	if cfg.MaxClientLines < 1 {
		errs = append(errs, ValidationError{Field: "max_client_lines", Message: "must be at least 1"})
	}
	if cfg.LineBuffer < 1 {
		errs = append(errs, ValidationError{Field: "line_buffer", Message: "must be at least 1"})
	}

	// Log format must be valid
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	errs = append(errs, validateScenarios(cfg.Scenarios)...)

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ApplyCheckMode modifies config for --check mode: the first scenario
// only, one thread per client, verbose logging.
func ApplyCheckMode(cfg *Config) {
	if len(cfg.Scenarios) > 1 {
		cfg.Scenarios = cfg.Scenarios[:1]
	}
	for i := range cfg.Scenarios {
		for j := range cfg.Scenarios[i].Clients {
			cfg.Scenarios[i].Clients[j].Threads = 1
		}
	}
	cfg.Threads = 1
	cfg.Verbose = true
	cfg.TUIEnabled = false
}
