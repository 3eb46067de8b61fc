package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolve_Idempotent(t *testing.T) {
	ns := New(t.TempDir())

	first, err := ns.Resolve("small", "smoke")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := ns.Resolve("small", "smoke")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Errorf("expected identical paths, got %q and %q", first, second)
	}

	info, err := os.Stat(first)
	if err != nil || !info.IsDir() {
		t.Errorf("expected directory at %s: %v", first, err)
	}
}

func TestResolve_DistinctKeys(t *testing.T) {
	ns := New(t.TempDir())

	a, _ := ns.Resolve("small", "smoke")
	b, _ := ns.Resolve("medium", "smoke")
	c, _ := ns.Resolve("small", "load")
	if a == b || a == c || b == c {
		t.Errorf("expected distinct paths, got %q %q %q", a, b, c)
	}
}

func TestResolve_RerunOverwrites(t *testing.T) {
	root := t.TempDir()

	ns := New(root)
	dir, err := ns.Resolve("small", "smoke")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stale := filepath.Join(dir, "stale.log")
	if err := os.WriteFile(stale, []byte("old run"), 0o644); err != nil {
		t.Fatalf("writing stale file: %v", err)
	}

	// A new namespace models a new orchestrator run over the same root.
	rerun := New(root)
	dir2, err := rerun.Resolve("small", "smoke")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir2 != dir {
		t.Errorf("rerun resolved a different path: %q vs %q", dir2, dir)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("expected stale artifact to be replaced on rerun")
	}
}

func TestResolve_RetainedWithinRun(t *testing.T) {
	ns := New(t.TempDir())

	dir, _ := ns.Resolve("small", "smoke")
	capture := filepath.Join(dir, "install.log")
	if err := os.WriteFile(capture, []byte("step output"), 0o644); err != nil {
		t.Fatalf("writing capture: %v", err)
	}

	// Resolving again within the same run must not clear the directory.
	if _, err := ns.Resolve("small", "smoke"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(capture); err != nil {
		t.Errorf("expected capture to survive re-resolution: %v", err)
	}
}

func TestResolve_SanitizesNames(t *testing.T) {
	root := t.TempDir()
	ns := New(root)

	dir, err := ns.Resolve("../evil", "sm/oke")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rel, err := filepath.Rel(root, dir)
	if err != nil || strings.HasPrefix(rel, "..") {
		t.Errorf("resolved path escapes root: %s", dir)
	}
}

func TestStepLogPath(t *testing.T) {
	got := StepLogPath("/out/smoke/small", "install deps")
	if filepath.Dir(got) != "/out/smoke/small" {
		t.Errorf("unexpected dir: %s", got)
	}
	if !strings.HasSuffix(got, ".log") {
		t.Errorf("expected .log suffix: %s", got)
	}
}

func TestCreateAttemptLogger(t *testing.T) {
	ns := New(t.TempDir())
	dir, _ := ns.Resolve("small", "smoke")

	logger, err := ns.CreateAttemptLogger(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Info("provisioning", "tier", "small")

	if err := ns.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "attempt.log"))
	if err != nil {
		t.Fatalf("reading attempt log: %v", err)
	}
	if !strings.Contains(string(data), "provisioning") {
		t.Errorf("expected log content, got %q", string(data))
	}
}
