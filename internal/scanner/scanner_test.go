package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhengda-lu/devsweep/internal/pathguard"
	"github.com/zhengda-lu/devsweep/internal/patterns"
)

// fixture is a scope root holding a small project tree.
type fixture struct {
	root string
	v    *pathguard.Validator
}

func newFixture(t *testing.T, whitelist ...string) *fixture {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	for i, w := range whitelist {
		whitelist[i] = filepath.Join(root, w)
	}
	v, err := pathguard.New(pathguard.Policy{ScopeRoots: []string{root}, Whitelist: whitelist})
	require.NoError(t, err)
	return &fixture{root: root, v: v}
}

func (f *fixture) file(t *testing.T, rel string, size int) string {
	t.Helper()
	p := filepath.Join(f.root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, make([]byte, size), 0o644))
	return p
}

func (f *fixture) scanner(opts Options) *Scanner {
	return New(f.v, patterns.Default(), opts)
}

func TestScan_FindsArtifactsAboveThreshold(t *testing.T) {
	f := newFixture(t)
	f.file(t, "app/node_modules/react/index.js", 6000)
	f.file(t, "app/.git/objects/pack.bin", 9000)
	f.file(t, "app/src/main.js", 9000)
	f.file(t, "tiny/node_modules/x.js", 10)

	cat, err := f.scanner(Options{MinFolderSize: 5000}).Scan(context.Background(), Target{Root: f.root})
	require.NoError(t, err)

	require.Len(t, cat.Artifacts, 1)
	a := cat.Artifacts[0]
	assert.Equal(t, filepath.Join(f.root, "app", "node_modules"), a.Path)
	assert.Equal(t, "javascript.directories", a.Category)
	assert.Equal(t, "node_modules", a.Pattern)
	assert.Equal(t, int64(6000), a.Size)
	assert.True(t, a.IsDir)
	assert.Equal(t, 2, a.Depth)
	assert.NotZero(t, a.Identity.Ino)

	assert.Equal(t, Total{Count: 1, Bytes: 6000}, cat.Totals["javascript.directories"])
	assert.Equal(t, []string{f.root}, cat.Roots)
}

func TestScan_MatchedDirectoryIsNotDescended(t *testing.T) {
	f := newFixture(t)
	f.file(t, "web/node_modules/a/node_modules/b/index.js", 100)
	f.file(t, "web/node_modules/a/__pycache__/x.pyc", 100)

	cat, err := f.scanner(Options{}).Scan(context.Background(), Target{Root: f.root})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(f.root, "web", "node_modules")}, cat.Paths())
	assert.Equal(t, int64(200), cat.Artifacts[0].Size)
}

func TestScan_Files(t *testing.T) {
	f := newFixture(t)
	f.file(t, "proj/.DS_Store", 10)
	f.file(t, "proj/mod.pyc", 3000)
	f.file(t, "proj/mod.py", 3000)

	cat, err := f.scanner(Options{MinFileSize: 1000}).Scan(context.Background(), Target{Root: f.root})
	require.NoError(t, err)
	require.Len(t, cat.Artifacts, 1)
	assert.Equal(t, filepath.Join(f.root, "proj", "mod.pyc"), cat.Artifacts[0].Path)
	assert.False(t, cat.Artifacts[0].IsDir)
	assert.Equal(t, "python.files", cat.Artifacts[0].Category)
}

func TestScan_MaxDepth(t *testing.T) {
	f := newFixture(t)
	f.file(t, "a/node_modules/x.js", 10)
	f.file(t, "a/b/c/node_modules/x.js", 10)

	cat, err := f.scanner(Options{}).Scan(context.Background(), Target{Root: f.root, MaxDepth: 2})
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(f.root, "a", "node_modules")}, cat.Paths())
	require.Len(t, cat.Warnings, 1)
	assert.Equal(t, MaxDepthExceeded, cat.Warnings[0].Kind)
	assert.Equal(t, filepath.Join(f.root, "a", "b"), cat.Warnings[0].Path)
}

func TestScan_SkipsSymlinksByDefault(t *testing.T) {
	f := newFixture(t)
	f.file(t, "real/node_modules/x.js", 10)
	require.NoError(t, os.Symlink(filepath.Join(f.root, "real"), filepath.Join(f.root, "alias")))
	require.NoError(t, os.Symlink(filepath.Join(f.root, "real", "node_modules"), filepath.Join(f.root, "node_modules")))

	cat, err := f.scanner(Options{}).Scan(context.Background(), Target{Root: f.root})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(f.root, "real", "node_modules")}, cat.Paths())
	assert.Empty(t, cat.Warnings)
}

func TestScan_FollowSymlinks(t *testing.T) {
	f := newFixture(t)
	f.file(t, "real/deps/node_modules/x.js", 10)
	require.NoError(t, os.Symlink(filepath.Join(f.root, "real"), filepath.Join(f.root, "alias")))
	// A loop back to an ancestor must not be walked twice.
	require.NoError(t, os.Symlink(filepath.Join(f.root, "real"), filepath.Join(f.root, "real", "deps", "loop")))

	outside, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.Symlink(outside, filepath.Join(f.root, "escape")))

	cat, err := f.scanner(Options{}).Scan(context.Background(), Target{Root: f.root, FollowSymlinks: true})
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(f.root, "real", "deps", "node_modules")}, cat.Paths())

	var escapes []string
	for _, w := range cat.Warnings {
		if w.Kind == SymlinkEscape {
			escapes = append(escapes, w.Path)
		}
	}
	assert.Contains(t, escapes, filepath.Join(f.root, "escape"))
}

func TestScan_Whitelist(t *testing.T) {
	f := newFixture(t, "keep")
	f.file(t, "keep/node_modules/x.js", 10)
	f.file(t, "drop/node_modules/x.js", 10)

	cat, err := f.scanner(Options{}).Scan(context.Background(), Target{Root: f.root})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(f.root, "drop", "node_modules")}, cat.Paths())
}

func TestScan_PermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	f := newFixture(t)
	f.file(t, "open/node_modules/x.js", 10)
	locked := filepath.Join(f.root, "locked")
	f.file(t, "locked/node_modules/x.js", 10)
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { os.Chmod(locked, 0o755) })

	cat, err := f.scanner(Options{}).Scan(context.Background(), Target{Root: f.root})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(f.root, "open", "node_modules")}, cat.Paths())
	require.Len(t, cat.Warnings, 1)
	assert.Equal(t, PermissionDenied, cat.Warnings[0].Kind)
	assert.Equal(t, locked, cat.Warnings[0].Path)
}

func TestScan_Idempotent(t *testing.T) {
	f := newFixture(t)
	for _, rel := range []string{"a/node_modules/x", "b/target/y", "c/d/__pycache__/z.pyc", "e/.venv/lib/f"} {
		f.file(t, rel, 100)
	}
	s := f.scanner(Options{Workers: 2})

	first, err := s.Scan(context.Background(), Target{Root: f.root})
	require.NoError(t, err)
	second, err := s.Scan(context.Background(), Target{Root: f.root})
	require.NoError(t, err)

	assert.Len(t, first.Artifacts, 4)
	assert.Equal(t, first.Artifacts, second.Artifacts)
	assert.Equal(t, first.Totals, second.Totals)
}

func TestScan_SameCatalogForAnyWorkerCount(t *testing.T) {
	f := newFixture(t)
	for _, rel := range []string{
		"a/node_modules/x", "b/target/y", "c/d/__pycache__/z.pyc", "e/.venv/lib/f",
		"g/h/i/node_modules/j", "k/build/l", "m/n/target/o", "p/dist/q",
	} {
		f.file(t, rel, 100)
	}

	one, err := f.scanner(Options{Workers: 1}).Scan(context.Background(), Target{Root: f.root})
	require.NoError(t, err)
	many, err := f.scanner(Options{Workers: 16}).Scan(context.Background(), Target{Root: f.root})
	require.NoError(t, err)

	assert.NotEmpty(t, one.Artifacts)
	assert.Equal(t, one.Artifacts, many.Artifacts)
	assert.Equal(t, one.Totals, many.Totals)
	assert.Equal(t, one.Warnings, many.Warnings)
}

func TestScan_FollowedLinkIntoArtifactIsNotCountedTwice(t *testing.T) {
	f := newFixture(t)
	f.file(t, "p/node_modules/pkg/target/x", 100)
	f.file(t, "p/node_modules.swp", 10)
	require.NoError(t, os.Symlink(filepath.Join(f.root, "p", "node_modules", "pkg"), filepath.Join(f.root, "link")))

	cat, err := f.scanner(Options{}).Scan(context.Background(), Target{Root: f.root, FollowSymlinks: true})
	require.NoError(t, err)

	paths := cat.Paths()
	assert.Contains(t, paths, filepath.Join(f.root, "p", "node_modules"))
	assert.NotContains(t, paths, filepath.Join(f.root, "p", "node_modules", "pkg", "target"))
	for i, p := range paths {
		for j, q := range paths {
			if i != j {
				assert.False(t, nested(p, q), "%s is inside %s", p, q)
			}
		}
	}
	var sum int64
	for _, a := range cat.Artifacts {
		sum += a.Size
	}
	assert.Equal(t, sum, cat.TotalSize())
}

func TestScan_InvalidRoot(t *testing.T) {
	f := newFixture(t)
	outside := t.TempDir()

	_, err := f.scanner(Options{}).Scan(context.Background(), Target{Root: outside})
	assert.ErrorIs(t, err, pathguard.ErrOutsideWhitelistScope)

	_, err = f.scanner(Options{}).Scan(context.Background(), Target{Root: "/usr"})
	assert.ErrorIs(t, err, pathguard.ErrProtectedSystemPath)

	file := f.file(t, "plain.txt", 1)
	_, err = f.scanner(Options{}).Scan(context.Background(), Target{Root: file})
	assert.Error(t, err)
}

func TestScan_Cancelled(t *testing.T) {
	f := newFixture(t)
	f.file(t, "a/node_modules/x", 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.scanner(Options{}).Scan(ctx, Target{Root: f.root})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScan_KnownCaches(t *testing.T) {
	f := newFixture(t)
	f.file(t, ".npm/_cacache/index-v5/ab", 300)
	f.file(t, ".cargo/registry/src/crate/target/debug/bin", 200)
	f.file(t, "proj/node_modules/x", 50)

	s := f.scanner(Options{Caches: KnownCaches(f.root)})
	cat, err := s.Scan(context.Background(), Target{Root: f.root})
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(f.root, ".cargo", "registry"),
		filepath.Join(f.root, ".npm", "_cacache"),
		filepath.Join(f.root, "proj", "node_modules"),
	}, cat.Paths())
	assert.Equal(t, Total{Count: 1, Bytes: 300}, cat.Totals["javascript.caches"])
	assert.Equal(t, Total{Count: 1, Bytes: 200}, cat.Totals["rust.caches"])
}

func TestAll_MatchesScan(t *testing.T) {
	f := newFixture(t)
	f.file(t, "a/node_modules/x", 10)
	f.file(t, "b/target/y", 10)
	f.file(t, "c/.DS_Store", 10)
	s := f.scanner(Options{})

	var paths []string
	for a, err := range s.All(context.Background(), Target{Root: f.root}) {
		require.NoError(t, err)
		paths = append(paths, a.Path)
	}

	cat, err := s.Scan(context.Background(), Target{Root: f.root})
	require.NoError(t, err)
	assert.ElementsMatch(t, cat.Paths(), paths)
}

func TestAll_EarlyBreak(t *testing.T) {
	f := newFixture(t)
	for _, d := range []string{"a", "b", "c", "d", "e"} {
		f.file(t, d+"/node_modules/x", 10)
	}

	n := 0
	for _, err := range f.scanner(Options{Workers: 1}).All(context.Background(), Target{Root: f.root}) {
		require.NoError(t, err)
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestAll_YieldsWarningsAndRootErrors(t *testing.T) {
	f := newFixture(t)
	f.file(t, "a/b/node_modules/x", 10)

	var warnings []Warning
	for _, err := range f.scanner(Options{}).All(context.Background(), Target{Root: f.root, MaxDepth: 1}) {
		var w Warning
		require.True(t, errors.As(err, &w), "unexpected error %v", err)
		warnings = append(warnings, w)
	}
	require.Len(t, warnings, 1)
	assert.Equal(t, MaxDepthExceeded, warnings[0].Kind)

	var errs []error
	for _, err := range f.scanner(Options{}).All(context.Background(), Target{Root: "/usr"}) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], pathguard.ErrProtectedSystemPath)
}
