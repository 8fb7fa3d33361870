// Package engine runs the scanner over several roots and merges the
// results into one catalog.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zhengda-lu/devsweep/internal/scanner"
)

type ScanResult struct {
	Root    string
	Catalog *scanner.Catalog
	Error   error
}

type Engine struct {
	scanner     *scanner.Scanner
	targets     []scanner.Target
	excludeFunc func(string) bool
}

func New(s *scanner.Scanner) *Engine {
	return &Engine{scanner: s}
}

func (e *Engine) Register(t scanner.Target) {
	e.targets = append(e.targets, t)
}

func (e *Engine) SetExcludeFunc(fn func(string) bool) {
	e.excludeFunc = fn
}

func (e *Engine) Targets() []scanner.Target {
	return e.targets
}

func (e *Engine) filterExcluded(c *scanner.Catalog) *scanner.Catalog {
	if e.excludeFunc == nil || c == nil {
		return c
	}
	kept := make([]scanner.Artifact, 0, len(c.Artifacts))
	for _, a := range c.Artifacts {
		if !e.excludeFunc(a.Path) {
			kept = append(kept, a)
		}
	}
	if len(kept) == len(c.Artifacts) {
		return c
	}
	return scanner.NewCatalog(c.Roots, kept, c.Warnings)
}

// ScanAll scans every registered root and merges the catalogs. Artifacts
// reachable from two roots appear once. Roots that fail are reported in the
// returned error next to the catalog of the roots that succeeded.
func (e *Engine) ScanAll(ctx context.Context) (*scanner.Catalog, error) {
	return e.ScanAllWithProgress(ctx, len(e.targets), nil)
}

// ScanAllWithProgress is ScanAll with a concurrency limit and progress
// callbacks.
func (e *Engine) ScanAllWithProgress(ctx context.Context, concurrency int, onProgress func(ScanProgress)) (*scanner.Catalog, error) {
	results := e.ScanGroupedWithProgress(ctx, concurrency, onProgress)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		cats []*scanner.Catalog
		errs []error
	)
	for _, r := range results {
		if r.Error != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Root, r.Error))
			continue
		}
		cats = append(cats, r.Catalog)
	}
	return scanner.Merge(cats...), errors.Join(errs...)
}

// ScanStatus represents the state of a root in the progress callback.
type ScanStatus int

const (
	ScanWaiting ScanStatus = iota
	ScanStarted
	ScanDone
)

// ScanProgress is sent to the progress callback for each root event.
type ScanProgress struct {
	Root    string
	Status  ScanStatus
	Catalog *scanner.Catalog
	Error   error
}

// ScanGroupedWithProgress scans the roots with a concurrency limit and
// calls onProgress for each root event (started, done). Results are in
// registration order.
func (e *Engine) ScanGroupedWithProgress(ctx context.Context, concurrency int, onProgress func(ScanProgress)) []ScanResult {
	if concurrency < 1 {
		concurrency = 1
	}

	var (
		wg      sync.WaitGroup
		results = make([]ScanResult, len(e.targets))
		sem     = make(chan struct{}, concurrency)
	)

	for i, t := range e.targets {
		wg.Add(1)
		go func() {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] = ScanResult{Root: t.Root, Error: ctx.Err()}
				return
			}
			if onProgress != nil {
				onProgress(ScanProgress{Root: t.Root, Status: ScanStarted})
			}

			c, err := e.scanner.Scan(ctx, t)
			c = e.filterExcluded(c)

			if onProgress != nil {
				onProgress(ScanProgress{
					Root:    t.Root,
					Status:  ScanDone,
					Catalog: c,
					Error:   err,
				})
			}

			<-sem // release after Done callback to keep concurrency tracking consistent

			results[i] = ScanResult{Root: t.Root, Catalog: c, Error: err}
		}()
	}

	wg.Wait()
	return results
}
