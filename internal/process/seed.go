package process

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

// DefaultSeedFile is the counter file name the server reads and rewrites
// in its working directory.
const DefaultSeedFile = "server_output.txt"

// WriteSeed resets the shared counter to value before a scenario.
// The file is written as a single decimal line and replaced atomically,
// under an advisory lock on path+".lock" so concurrent harness runs in
// the same directory do not interleave.
func WriteSeed(path string, value int64) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock seed file: %w", err)
	}
	defer lock.Unlock()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".seed-*")
	if err != nil {
		return fmt.Errorf("create seed temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := fmt.Fprintf(tmp, "%d\n", value); err != nil {
		tmp.Close()
		return fmt.Errorf("write seed: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync seed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close seed: %w", err)
	}
	// The server opens the file for read and write.
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod seed: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("install seed: %w", err)
	}
	return nil
}

// ReadSeed returns the counter value currently stored at path.
func ReadSeed(path string) (int64, error) {
	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return 0, fmt.Errorf("lock seed file: %w", err)
	}
	defer lock.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	line, _, _ := strings.Cut(string(data), "\n")
	v, err := strconv.ParseInt(strings.TrimSpace(line), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse seed %q: %w", line, err)
	}
	return v, nil
}

// SeedPath resolves the seed file against the server working directory.
func SeedPath(workDir, seedFile string) string {
	if seedFile == "" {
		seedFile = DefaultSeedFile
	}
	if filepath.IsAbs(seedFile) {
		return seedFile
	}
	return filepath.Join(workDir, seedFile)
}
