package process

import (
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"
)

// ClientConfig holds configuration for one benchmark client.
type ClientConfig struct {
	// Name identifies the client within a scenario ("writer", "reader").
	Name string

	BinaryPath string
	WorkDir    string

	Host    string
	Port    int
	Mode    Mode
	Threads int

	ExtraArgs []string
}

// ClientRunner implements Runner for a client.
type ClientRunner struct {
	config ClientConfig
}

// NewClientRunner creates a client runner.
func NewClientRunner(cfg ClientConfig) *ClientRunner {
	return &ClientRunner{config: cfg}
}

// Name returns "client/<name>".
func (r *ClientRunner) Name() string {
	if r.config.Name == "" {
		return "client/" + string(r.config.Mode)
	}
	return "client/" + r.config.Name
}

// BuildCommand creates: <bin> --ip H --port P --mode M --threads N
func (r *ClientRunner) BuildCommand(ctx context.Context) (*exec.Cmd, error) {
	switch {
	case r.config.BinaryPath == "":
		return nil, errors.New("client binary path is empty")
	case r.config.Host == "":
		return nil, errors.New("client host is empty")
	case !r.config.Mode.Valid():
		return nil, errors.New("client mode must be reader or writer")
	case r.config.Threads < 1:
		return nil, errors.New("client threads must be at least 1")
	case r.config.Port <= 0 || r.config.Port > 65535:
		return nil, errors.New("client port out of range")
	}

	cmd := exec.CommandContext(ctx, r.config.BinaryPath, r.buildArgs()...)
	cmd.Dir = r.config.WorkDir
	return cmd, nil
}

func (r *ClientRunner) buildArgs() []string {
	args := []string{
		"--ip", r.config.Host,
		"--port", strconv.Itoa(r.config.Port),
		"--mode", string(r.config.Mode),
		"--threads", strconv.Itoa(r.config.Threads),
	}
	return append(args, r.config.ExtraArgs...)
}

// Config returns the client configuration.
func (r *ClientRunner) Config() ClientConfig {
	return r.config
}

// CommandString returns the command that would be executed.
func (r *ClientRunner) CommandString() string {
	return r.config.BinaryPath + " " + strings.Join(r.buildArgs(), " ")
}
