// Package artifact maps (tier, test) pairs to output directories. Every
// attempt gets its own directory under the output root, so repeated or
// partial runs never collide.
package artifact

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Namespace resolves (tier, test) keys to directories under a single output
// root. Resolution is idempotent within one orchestrator run; the first
// resolution of a key in a run replaces whatever a previous run left there.
type Namespace struct {
	mu       sync.Mutex
	root     string
	resolved map[string]string
	files    map[string]*os.File
}

// New creates a namespace rooted at the given directory.
func New(root string) *Namespace {
	if root == "" {
		root = "./escalade-runs"
	}
	return &Namespace{
		root:     root,
		resolved: make(map[string]string),
		files:    make(map[string]*os.File),
	}
}

// Root returns the output root directory.
func (n *Namespace) Root() string {
	return n.root
}

// Resolve returns the directory for the (tier, test) pair, creating it on
// first use. Within a run, repeated calls with the same key return the same
// path. A directory left over from an earlier run is replaced, not merged.
// Directories from failed attempts in this run are never removed.
func (n *Namespace) Resolve(tierName, testName string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	key := tierName + "\x00" + testName
	if dir, ok := n.resolved[key]; ok {
		return dir, nil
	}

	dir := filepath.Join(n.root, sanitize(testName), sanitize(tierName))
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("clearing stale artifact directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating artifact directory: %w", err)
	}

	n.resolved[key] = dir
	return dir, nil
}

// StepLogPath returns the capture file for a step within an attempt
// directory.
func StepLogPath(dir, stepName string) string {
	return filepath.Join(dir, fmt.Sprintf("%s.log", sanitize(stepName)))
}

// ReportPath returns the path of the run's JSON report.
func (n *Namespace) ReportPath() string {
	return filepath.Join(n.root, "report.json")
}

// CreateAttemptLogger creates a file-backed logger inside an attempt
// directory. All attempt loggers share the namespace's Close.
func (n *Namespace) CreateAttemptLogger(dir string) (*slog.Logger, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	path := filepath.Join(dir, "attempt.log")
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating attempt log: %w", err)
	}
	n.files[path] = f

	handler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(handler), nil
}

// Close flushes and closes every file the namespace opened.
func (n *Namespace) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	var errs []error
	for path, f := range n.files {
		if err := f.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("sync %s: %w", path, err))
		}
		if err := f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", path, err))
		}
	}
	n.files = make(map[string]*os.File)
	return errors.Join(errs...)
}

// sanitize removes path separators and traversal sequences from a name.
func sanitize(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	return name
}
