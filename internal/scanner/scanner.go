// Package scanner walks a directory tree and catalogs the development
// artifacts it finds.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"

	"github.com/zhengda-lu/devsweep/internal/pathguard"
	"github.com/zhengda-lu/devsweep/internal/patterns"
	"github.com/zhengda-lu/devsweep/internal/utils"
)

// DefaultMaxDepth applies when a Target does not set MaxDepth.
const DefaultMaxDepth = 32

// DefaultWorkers is the I/O concurrency used when Options.Workers is unset.
const DefaultWorkers = 4

// Target describes one scan.
type Target struct {
	Root           string `json:"root"`
	MaxDepth       int    `json:"max_depth"`
	FollowSymlinks bool   `json:"follow_symlinks"`
}

// Artifact is a deletable entry found by a scan. It is a value; nothing
// updates it after discovery.
type Artifact struct {
	Path     string         `json:"path"`
	Category string         `json:"category"`
	Pattern  string         `json:"pattern"`
	Size     int64          `json:"size"`
	IsDir    bool           `json:"is_dir"`
	Depth    int            `json:"depth"`
	Identity utils.Identity `json:"identity"`
}

// Options tunes a Scanner.
type Options struct {
	// Workers bounds concurrent directory reads and size computations.
	Workers       int
	MinFolderSize int64
	MinFileSize   int64
	// Caches are fixed locations reported whole when they sit under the
	// scan root.
	Caches []CacheLocation
	Logger *slog.Logger
}

type Scanner struct {
	validator *pathguard.Validator
	patterns  *patterns.Set
	opts      Options
	log       *slog.Logger
}

func New(v *pathguard.Validator, p *patterns.Set, opts Options) *Scanner {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Scanner{validator: v, patterns: p, opts: opts, log: log}
}

// Scan walks t and returns the sorted catalog. Per-entry problems become
// catalog warnings; only an invalid root or cancellation fails the scan.
func (s *Scanner) Scan(ctx context.Context, t Target) (*Catalog, error) {
	acc := newAccumulator()
	root, err := s.run(ctx, t, acc.add, acc.warn)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := acc.catalog(root)
	s.log.Debug("scan finished", "root", root, "artifacts", len(c.Artifacts), "warnings", len(c.Warnings))
	return c, nil
}

type item struct {
	a   Artifact
	err error
}

// All yields artifacts as they are discovered, in no particular order.
// Warnings are yielded as Warning errors alongside a zero Artifact; any
// other error ends the sequence. Each call walks the tree again, and
// stopping early cancels the walk.
func (s *Scanner) All(ctx context.Context, t Target) iter.Seq2[Artifact, error] {
	return func(yield func(Artifact, error) bool) {
		walkCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		ch := make(chan item)
		send := func(it item) {
			select {
			case ch <- it:
			case <-walkCtx.Done():
			}
		}
		go func() {
			defer close(ch)
			_, err := s.run(walkCtx, t,
				func(a Artifact) { send(item{a: a}) },
				func(w Warning) { send(item{err: w}) })
			if err != nil {
				send(item{err: err})
			}
		}()

		for it := range ch {
			if !yield(it.a, it.err) {
				cancel()
				for range ch {
				}
				return
			}
		}
		if err := ctx.Err(); err != nil {
			yield(Artifact{}, err)
		}
	}
}

// run validates the root and walks it, reporting through emit and warn.
// It returns the canonical root.
func (s *Scanner) run(ctx context.Context, t Target, emit func(Artifact), warn func(Warning)) (string, error) {
	root, err := s.validator.ValidateRoot(t.Root)
	if err != nil {
		return "", fmt.Errorf("scan root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("scan root: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("scan root %s: %w", root, errNotDir)
	}

	maxDepth := t.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	w := &walker{
		s:        s,
		root:     root,
		maxDepth: maxDepth,
		follow:   t.FollowSymlinks,
		sem:      make(chan struct{}, s.opts.Workers),
		caches:   s.cachesUnder(root),
		visited:  make(map[[2]uint64]bool),
		emit:     emit,
		warn:     warn,
	}
	w.run(ctx)
	return root, nil
}

var errNotDir = errors.New("not a directory")
