package scanner

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zhengda-lu/devsweep/internal/pathguard"
	"github.com/zhengda-lu/devsweep/internal/utils"
)

// walker runs one goroutine per directory. The semaphore is held only
// around filesystem I/O, so nested goroutines never deadlock on it.
type walker struct {
	s        *Scanner
	root     string
	maxDepth int
	follow   bool
	sem      chan struct{}
	caches   map[string]CacheLocation

	mu      sync.Mutex
	visited map[[2]uint64]bool

	wg   sync.WaitGroup
	emit func(Artifact)
	warn func(Warning)
}

func (w *walker) run(ctx context.Context) {
	if w.follow {
		if id, err := utils.Lidentity(w.root); err == nil {
			w.markVisited(id)
		}
	}
	w.wg.Add(1)
	go w.visit(ctx, w.root, 0)
	w.wg.Wait()
	w.scanCaches(ctx)
}

func (w *walker) visit(ctx context.Context, dir string, depth int) {
	defer w.wg.Done()
	if ctx.Err() != nil {
		return
	}

	w.sem <- struct{}{}
	entries, err := os.ReadDir(dir)
	<-w.sem
	if err != nil {
		w.warn(readWarning(dir, err))
		return
	}

	for _, e := range entries {
		if ctx.Err() != nil {
			return
		}
		w.entry(ctx, dir, e, depth+1)
	}
}

func (w *walker) entry(ctx context.Context, dir string, e fs.DirEntry, depth int) {
	v := w.s.validator
	name := e.Name()
	path := filepath.Join(dir, name)
	if v.WhitelistedCanonical(path) {
		w.s.log.Debug("skip whitelisted", "path", path)
		return
	}
	if _, ok := w.caches[path]; ok {
		return
	}

	isDir := e.IsDir()
	if e.Type()&fs.ModeSymlink != 0 {
		if !w.follow {
			w.s.log.Debug("skip symlink", "path", path)
			return
		}
		resolved, err := v.ValidateWithin(dir, name)
		if err != nil {
			kind := SymlinkEscape
			if !errors.Is(err, pathguard.ErrSymlinkEscape) {
				kind = Rejected
			}
			w.warn(Warning{Path: path, Kind: kind, Err: err})
			return
		}
		info, err := os.Stat(resolved)
		if err != nil {
			w.warn(readWarning(path, err))
			return
		}
		if v.WhitelistedCanonical(resolved) {
			return
		}
		path, name, isDir = resolved, filepath.Base(resolved), info.IsDir()
	}

	if p, ok := w.s.patterns.Match(name, isDir); ok {
		w.artifact(path, p.Category, p.Value, isDir, depth)
		return
	}
	if !isDir {
		return
	}
	if depth >= w.maxDepth {
		w.warn(Warning{Path: path, Kind: MaxDepthExceeded})
		return
	}
	if w.follow {
		id, err := utils.Lidentity(path)
		if err != nil {
			w.warn(readWarning(path, err))
			return
		}
		if !w.markVisited(id) {
			w.s.log.Debug("skip visited directory", "path", path)
			return
		}
	}
	w.wg.Add(1)
	go w.visit(ctx, path, depth)
}

// markVisited records id and reports whether it was new.
func (w *walker) markVisited(id utils.Identity) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.visited[id.Key()] {
		return false
	}
	w.visited[id.Key()] = true
	return true
}

// artifact sizes a match, applies thresholds and re-validates it before
// emitting.
func (w *walker) artifact(path, category, pattern string, isDir bool, depth int) {
	id, err := utils.Lidentity(path)
	if err != nil {
		w.warn(readWarning(path, err))
		return
	}

	size := id.Size
	if isDir {
		w.sem <- struct{}{}
		size, err = utils.DirSize(path)
		<-w.sem
		if err != nil {
			w.warn(readWarning(path, err))
			return
		}
		if size < w.s.opts.MinFolderSize {
			return
		}
	} else if size < w.s.opts.MinFileSize {
		return
	}

	canonical, err := w.s.validator.Validate(path)
	if err != nil {
		kind := Rejected
		if errors.Is(err, pathguard.ErrSymlinkEscape) {
			kind = SymlinkEscape
		}
		w.warn(Warning{Path: path, Kind: kind, Err: err})
		return
	}

	w.emit(Artifact{
		Path:     canonical,
		Category: category,
		Pattern:  pattern,
		Size:     size,
		IsDir:    isDir,
		Depth:    depth,
		Identity: id,
	})
}

func (w *walker) scanCaches(ctx context.Context) {
	var wg sync.WaitGroup
	for path, c := range w.caches {
		if ctx.Err() != nil {
			break
		}
		if w.s.validator.WhitelistedCanonical(path) {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.artifact(path, c.Category, c.Name, true, depthBelow(w.root, path))
		}()
	}
	wg.Wait()
}

func depthBelow(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}
