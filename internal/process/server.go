package process

import (
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"
)

// ServerConfig holds configuration for the benchmark server.
type ServerConfig struct {
	// BinaryPath is the path to the server binary.
	BinaryPath string

	// WorkDir is where the server runs; it reads and writes the seed file
	// relative to it.
	WorkDir string

	Port     int
	Priority Priority

	// ExtraArgs are appended verbatim.
	ExtraArgs []string
}

// ServerRunner implements Runner for the server.
type ServerRunner struct {
	config ServerConfig
}

// NewServerRunner creates a server runner.
func NewServerRunner(cfg ServerConfig) *ServerRunner {
	return &ServerRunner{config: cfg}
}

// Name returns "server".
func (r *ServerRunner) Name() string {
	return "server"
}

// BuildCommand creates: <bin> --port P --priority reader|writer
func (r *ServerRunner) BuildCommand(ctx context.Context) (*exec.Cmd, error) {
	if r.config.BinaryPath == "" {
		return nil, errors.New("server binary path is empty")
	}
	if !r.config.Priority.Valid() {
		return nil, errors.New("server priority must be reader or writer")
	}
	if r.config.Port <= 0 || r.config.Port > 65535 {
		return nil, errors.New("server port out of range")
	}

	cmd := exec.CommandContext(ctx, r.config.BinaryPath, r.buildArgs()...)
	cmd.Dir = r.config.WorkDir
	return cmd, nil
}

func (r *ServerRunner) buildArgs() []string {
	args := []string{
		"--port", strconv.Itoa(r.config.Port),
		"--priority", string(r.config.Priority),
	}
	return append(args, r.config.ExtraArgs...)
}

// Config returns the server configuration.
func (r *ServerRunner) Config() ServerConfig {
	return r.config
}

// CommandString returns the command that would be executed.
func (r *ServerRunner) CommandString() string {
	return r.config.BinaryPath + " " + strings.Join(r.buildArgs(), " ")
}
