package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"probekit/models"

	"golang.org/x/sys/unix"
)

const (
	// TrafficFileName is the log file every proxy instance appends to.
	TrafficFileName = "traffic.jsonl"

	// OutputDirEnvVar carries the resolved output directory from the capture
	// runner down to each spawned proxy process.
	OutputDirEnvVar = "PROBEKIT_OUTPUT_DIR"

	// fallbackOutputDir is used when a proxy instance is started by hand
	// without the runner having set OutputDirEnvVar.
	fallbackOutputDir = "tmp/traffic"
)

// ResolveOutputDir returns the traffic output directory for this process:
// the runner-provided environment variable when present, a fixed default
// otherwise. Resolved once at proxy startup.
func ResolveOutputDir() string {
	if dir := os.Getenv(OutputDirEnvVar); dir != "" {
		return dir
	}
	return fallbackOutputDir
}

// Recorder appends TrafficEntry records to a shared JSONL file. Multiple
// independent proxy processes write to the same file, so every append takes
// a cross-process exclusive lock for the duration of one line write; the
// file is never held open between appends.
type Recorder struct {
	path string
}

// NewRecorder ensures outputDir exists and returns a recorder for its
// traffic.jsonl.
func NewRecorder(outputDir string) (*Recorder, error) {
	if err := os.MkdirAll(outputDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}
	return &Recorder{path: filepath.Join(outputDir, TrafficFileName)}, nil
}

// Path returns the absolute-or-relative path of the traffic log file.
func (r *Recorder) Path() string {
	return r.path
}

// Append stamps entry's timestamp, serializes it, and writes it as exactly
// one line. The flock is scoped to stamp-serialize-write so no two processes
// can interleave bytes within a line. Stamping under the lock also keeps the
// file in non-decreasing timestamp order: an earlier-completed exchange can
// no longer carry an earlier stamp to a later lock acquisition.
func (r *Recorder) Append(entry *models.TrafficEntry) error {
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		return fmt.Errorf("failed to open traffic log %s: %w", r.path, err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("failed to lock traffic log %s: %w", r.path, err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	entry.Timestamp = float64(time.Now().UnixNano()) / 1e9
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal traffic entry: %w", err)
	}
	line = append(line, '\n')

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("failed to append to traffic log %s: %w", r.path, err)
	}
	return nil
}
