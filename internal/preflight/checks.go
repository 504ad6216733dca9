// Package preflight provides startup validation checks.
package preflight

import (
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"
)

// Per-thread resource estimates. Every client thread holds one socket and
// the server accepts one per connection, each served by a server thread.
const (
	fdsPerThread   = 2
	fdOverhead     = 100
	procsPerThread = 2
	procOverhead   = 50
)

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// Options describes what the run is about to need.
type Options struct {
	ServerPath string
	ClientPath string
	WorkDir    string
	Host       string
	Ports      []int

	// Threads is the largest number of client threads alive at once.
	Threads int
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// RunAll executes all preflight checks.
func RunAll(opts Options) *Result {
	result := &Result{
		Checks: make([]Check, 0, 5+len(opts.Ports)),
		Passed: true,
	}
	add := func(c Check) {
		result.Checks = append(result.Checks, c)
		if !c.Passed {
			result.Passed = false
		}
	}

	add(checkBinary("server_binary", opts.ServerPath))
	add(checkBinary("client_binary", opts.ClientPath))
	add(checkWorkDir(opts.WorkDir))
	for _, port := range opts.Ports {
		add(checkPort(opts.Host, port))
	}
	add(checkFileDescriptors(opts.Threads))
	add(checkProcessLimit(opts.Threads))

	return result
}

// checkBinary verifies path names an executable file.
func checkBinary(name, path string) Check {
	resolved, err := exec.LookPath(path)
	if err != nil {
		return Check{
			Name:    name,
			Passed:  false,
			Message: fmt.Sprintf("not executable at %s: %v", path, err),
		}
	}
	if abs, err := filepath.Abs(resolved); err == nil {
		resolved = abs
	}
	return Check{
		Name:    name,
		Passed:  true,
		Message: "found at " + resolved,
	}
}

// checkWorkDir verifies the seed file can be created in dir.
func checkWorkDir(dir string) Check {
	f, err := os.CreateTemp(dir, ".preflight-*")
	if err != nil {
		return Check{
			Name:    "work_dir",
			Passed:  false,
			Message: fmt.Sprintf("%s not writable: %v", dir, err),
		}
	}
	f.Close()
	os.Remove(f.Name())
	return Check{
		Name:    "work_dir",
		Passed:  true,
		Message: dir + " writable",
	}
}

// checkPort verifies nothing is listening on host:port yet.
func checkPort(host string, port int) Check {
	name := "port_" + strconv.Itoa(port)
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return Check{
			Name:    name,
			Passed:  false,
			Message: fmt.Sprintf("%s unavailable: %v", addr, err),
		}
	}
	ln.Close()
	return Check{
		Name:    name,
		Passed:  true,
		Message: addr + " free",
	}
}

// checkFileDescriptors verifies sufficient file descriptors are available.
func checkFileDescriptors(threads int) Check {
	var limit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &limit); err != nil {
		return Check{
			Name:    "file_descriptors",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("unable to check: %v", err),
		}
	}

	required := threads*fdsPerThread + fdOverhead
	actual := clampLimit(limit.Cur)

	return Check{
		Name:     "file_descriptors",
		Required: required,
		Actual:   actual,
		Passed:   actual >= required,
		Message:  fmt.Sprintf("ulimit -n %d (need %d for %d threads)", actual, required, threads),
	}
}

// checkProcessLimit verifies sufficient process slots are available.
// Threads count against RLIMIT_NPROC on Linux, so the client and server
// thread pools both need room. A shortfall is a warning: the limit is
// per user and other processes share it.
func checkProcessLimit(threads int) Check {
	var limit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NPROC, &limit); err != nil {
		return Check{
			Name:    "process_limit",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("unable to check: %v", err),
		}
	}

	required := threads*procsPerThread + procOverhead
	actual := clampLimit(limit.Cur)

	return Check{
		Name:     "process_limit",
		Required: required,
		Actual:   actual,
		Passed:   true,
		Warning:  actual < required,
		Message:  fmt.Sprintf("ulimit -u %d (need %d)", actual, required),
	}
}

// clampLimit converts an rlimit value to int. Unlimited (all bits set)
// and other huge values map to a large sentinel.
func clampLimit(v uint64) int {
	const unlimited = 1 << 30
	if v > unlimited {
		return unlimited
	}
	return int(v)
}

// PrintResults prints the preflight check results to w.
func PrintResults(w io.Writer, result *Result) {
	fmt.Fprintln(w, "Preflight checks:")
	for _, check := range result.Checks {
		fmt.Fprintln(w, check.String())
		if !check.Passed {
			fmt.Fprintf(w, "    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Fprintln(w)
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch {
	case name == "file_descriptors":
		return "ulimit -n 8192 (or edit /etc/security/limits.conf)"
	case name == "process_limit":
		return "ulimit -u 4096 (or edit /etc/security/limits.conf)"
	case name == "server_binary" || name == "client_binary":
		return "build the binaries or pass -server/-client with the right path"
	case name == "work_dir":
		return "pass a writable -workdir"
	case len(name) > 5 && name[:5] == "port_":
		return "stop the process holding the port or pass -base-port"
	default:
		return "see documentation"
	}
}
