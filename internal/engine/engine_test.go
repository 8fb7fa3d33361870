package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/zhengda-lu/devsweep/internal/pathguard"
	"github.com/zhengda-lu/devsweep/internal/patterns"
	"github.com/zhengda-lu/devsweep/internal/scanner"
)

// newTree creates a scope root with a node_modules artifact under each of
// the named projects and returns the root and an engine over it.
func newTree(t *testing.T, projects ...string) (string, *Engine) {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range projects {
		path := filepath.Join(root, p, "node_modules", "pkg", "index.js")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, make([]byte, 4096), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	v, err := pathguard.New(pathguard.Policy{ScopeRoots: []string{root}})
	if err != nil {
		t.Fatal(err)
	}
	s := scanner.New(v, patterns.Default(), scanner.Options{Workers: 2})
	return root, New(s)
}

func TestScanAll(t *testing.T) {
	root, e := newTree(t, "a", "b")
	e.Register(scanner.Target{Root: filepath.Join(root, "a")})
	e.Register(scanner.Target{Root: filepath.Join(root, "b")})

	cat, err := e.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cat.Artifacts) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(cat.Artifacts))
	}
	if cat.Artifacts[0].Path != filepath.Join(root, "a", "node_modules") {
		t.Errorf("expected a/node_modules first, got %s", cat.Artifacts[0].Path)
	}
	if len(cat.Roots) != 2 {
		t.Errorf("expected 2 roots, got %v", cat.Roots)
	}
}

func TestScanAllEmpty(t *testing.T) {
	_, e := newTree(t)
	cat, err := e.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cat.Artifacts) != 0 {
		t.Fatalf("expected 0 artifacts, got %d", len(cat.Artifacts))
	}
}

func TestScanAll_OverlappingRoots(t *testing.T) {
	root, e := newTree(t, "a")
	e.Register(scanner.Target{Root: root})
	e.Register(scanner.Target{Root: filepath.Join(root, "a")})

	cat, err := e.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cat.Artifacts) != 1 {
		t.Fatalf("expected the shared artifact once, got %d", len(cat.Artifacts))
	}
	if got := cat.Totals["javascript.directories"].Count; got != 1 {
		t.Errorf("expected total count 1, got %d", got)
	}
}

func TestScanAll_PartialFailure(t *testing.T) {
	root, e := newTree(t, "a")
	e.Register(scanner.Target{Root: filepath.Join(root, "a")})
	e.Register(scanner.Target{Root: "/etc"})

	cat, err := e.ScanAll(context.Background())
	if err == nil {
		t.Fatal("expected an error for the out-of-scope root")
	}
	if !strings.Contains(err.Error(), "/etc") {
		t.Errorf("error should name the failing root, got %v", err)
	}
	if cat == nil || len(cat.Artifacts) != 1 {
		t.Errorf("expected the good root's artifact to survive, got %+v", cat)
	}
}

func TestExcludeFunc(t *testing.T) {
	root, e := newTree(t, "a", "b")
	e.Register(scanner.Target{Root: root})
	e.SetExcludeFunc(func(p string) bool {
		return strings.HasPrefix(p, filepath.Join(root, "b")+"/")
	})

	cat, err := e.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cat.Artifacts) != 1 {
		t.Fatalf("expected 1 artifact after exclusion, got %d", len(cat.Artifacts))
	}
	if cat.Totals["javascript.directories"].Count != 1 {
		t.Errorf("totals should be recomputed after exclusion, got %+v", cat.Totals)
	}
}

func TestScanGroupedWithProgress_Basic(t *testing.T) {
	root, e := newTree(t, "a", "b")
	e.Register(scanner.Target{Root: filepath.Join(root, "a")})
	e.Register(scanner.Target{Root: filepath.Join(root, "b")})

	var mu sync.Mutex
	var events []ScanProgress
	results := e.ScanGroupedWithProgress(context.Background(), 2, func(p ScanProgress) {
		mu.Lock()
		events = append(events, p)
		mu.Unlock()
	})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Root != filepath.Join(root, "a") || results[1].Root != filepath.Join(root, "b") {
		t.Errorf("results should follow registration order, got %s, %s", results[0].Root, results[1].Root)
	}

	mu.Lock()
	defer mu.Unlock()
	startCount, doneCount := 0, 0
	for _, ev := range events {
		if ev.Status == ScanStarted {
			startCount++
		}
		if ev.Status == ScanDone {
			doneCount++
			if ev.Catalog == nil || len(ev.Catalog.Artifacts) != 1 {
				t.Errorf("Done event for %s should carry its catalog", ev.Root)
			}
		}
	}
	if startCount != 2 {
		t.Errorf("expected 2 Started events, got %d", startCount)
	}
	if doneCount != 2 {
		t.Errorf("expected 2 Done events, got %d", doneCount)
	}
}

func TestScanGroupedWithProgress_ConcurrencyLimit(t *testing.T) {
	root, e := newTree(t, "a", "b", "c", "d")
	for _, p := range []string{"a", "b", "c", "d"} {
		e.Register(scanner.Target{Root: filepath.Join(root, p)})
	}

	var mu sync.Mutex
	running := 0
	maxRunning := 0
	e.ScanGroupedWithProgress(context.Background(), 2, func(p ScanProgress) {
		mu.Lock()
		defer mu.Unlock()
		if p.Status == ScanStarted {
			running++
			if running > maxRunning {
				maxRunning = running
			}
		}
		if p.Status == ScanDone {
			running--
		}
	})

	if maxRunning > 2 {
		t.Errorf("expected max concurrency 2, got %d", maxRunning)
	}
}

func TestScanGroupedWithProgress_ContextCancelled(t *testing.T) {
	root, e := newTree(t, "a")
	e.Register(scanner.Target{Root: filepath.Join(root, "a")})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := e.ScanGroupedWithProgress(ctx, 1, nil)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Error == nil {
		t.Error("expected error for cancelled context")
	}

	if _, err := e.ScanAll(ctx); err == nil {
		t.Error("ScanAll should fail on a cancelled context")
	}
}
