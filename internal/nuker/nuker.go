// Package nuker deletes cataloged artifacts one at a time, re-checking each
// record against the filesystem immediately before it is removed.
package nuker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/zhengda-lu/devsweep/internal/pathguard"
	"github.com/zhengda-lu/devsweep/internal/scanner"
	"github.com/zhengda-lu/devsweep/internal/utils"
)

// DefaultMinComponents is the shallowest path the deleter will touch.
const DefaultMinComponents = 3

// ConfirmFunc asks whether an artifact may be deleted.
type ConfirmFunc func(scanner.Artifact) bool

// CategorySet answers whether a category comes from a known pattern.
type CategorySet interface {
	Has(category string) bool
}

// Categories is a CategorySet built from names.
type Categories map[string]bool

func NewCategories(names ...string) Categories {
	c := make(Categories, len(names))
	for _, n := range names {
		c[n] = true
	}
	return c
}

func (c Categories) Has(category string) bool { return c[category] }

type Options struct {
	Mode    Mode
	Confirm ConfirmFunc
	// Categories must contain an artifact's category in safe and force
	// modes. A nil set rejects everything.
	Categories    CategorySet
	MinComponents int
	Logger        *slog.Logger
}

type Nuker struct {
	v    *pathguard.Validator
	opts Options
	log  *slog.Logger
}

func New(v *pathguard.Validator, opts Options) *Nuker {
	if opts.MinComponents <= 0 {
		opts.MinComponents = DefaultMinComponents
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Nuker{v: v, opts: opts, log: log.With("mode", opts.Mode.String())}
}

func (n *Nuker) Mode() Mode { return n.opts.Mode }

// Process handles artifacts in order, emitting each outcome before moving
// on. It stops early when ctx is done or when a record resolves to a
// protected path; the outcomes so far are returned either way.
func (n *Nuker) Process(ctx context.Context, artifacts []scanner.Artifact, emit func(Outcome)) ([]Outcome, error) {
	outs := make([]Outcome, 0, len(artifacts))
	for _, a := range artifacts {
		if err := ctx.Err(); err != nil {
			return outs, err
		}
		o := n.Delete(a)
		outs = append(outs, o)
		if emit != nil {
			emit(o)
		}
		if o.Kind == Rejected && errors.Is(o.Reason, pathguard.ErrProtectedSystemPath) {
			n.log.Error("protected path in catalog, stopping", "path", a.Path)
			return outs, fmt.Errorf("%w: %s", ErrProtectedInCatalog, a.Path)
		}
	}
	return outs, nil
}

// Delete runs one record through validation, mode gating and removal.
// It never panics on filesystem errors; every problem becomes the outcome.
func (n *Nuker) Delete(a scanner.Artifact) Outcome {
	start := time.Now()
	o := Outcome{Artifact: a, State: StatePending}
	done := func(kind Kind, reason error, freed int64) Outcome {
		o.Kind, o.State, o.Reason, o.Freed = kind, kind.state(), reason, freed
		o.Duration = time.Since(start)
		n.logOutcome(o)
		return o
	}

	canonical, err := n.v.Validate(a.Path)
	if err != nil {
		return done(Rejected, err, 0)
	}
	if components(canonical) < n.opts.MinComponents {
		return done(Rejected, &pathguard.Error{
			Kind: pathguard.ErrProtectedSystemPath, Path: a.Path, Resolved: canonical,
			Err: fmt.Errorf("fewer than %d path components", n.opts.MinComponents),
		}, 0)
	}
	if canonical != a.Path {
		return done(SkippedStale, fmt.Errorf("%w: path now resolves to %s", ErrStaleArtifact, canonical), 0)
	}

	cur, err := utils.Lidentity(a.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return done(SkippedStale, fmt.Errorf("%w: path no longer exists", ErrStaleArtifact), 0)
	case err != nil:
		return done(Failed, fmt.Errorf("%w: %w", ErrFilesystem, err), 0)
	case !cur.Same(a.Identity):
		return done(SkippedStale, fmt.Errorf("%w: identity changed", ErrStaleArtifact), 0)
	}
	o.State = StateValidated

	switch n.opts.Mode {
	case DryRun:
		return done(SkippedDryRun, ErrDryRun, 0)
	case Interactive:
		if n.opts.Confirm == nil || !n.opts.Confirm(a) {
			return done(Rejected, ErrUserDeclined, 0)
		}
	case Safe:
		if !n.categorized(a) {
			return done(Rejected, fmt.Errorf("%w: %q", ErrUncategorized, a.Category), 0)
		}
		if n.v.Whitelisted(a.Path) {
			return done(Rejected, &pathguard.Error{Kind: pathguard.ErrWhitelisted, Path: a.Path}, 0)
		}
	case Force:
		if !n.categorized(a) {
			return done(Rejected, fmt.Errorf("%w: %q", ErrUncategorized, a.Category), 0)
		}
	default:
		return done(Rejected, fmt.Errorf("unknown mode %v", n.opts.Mode), 0)
	}

	freed, err := n.remove(a)
	if err != nil {
		var res *result
		if errors.As(err, &res) {
			return done(res.kind, res.err, freed)
		}
		return done(Failed, err, freed)
	}
	return done(Deleted, nil, freed)
}

func (n *Nuker) categorized(a scanner.Artifact) bool {
	return n.opts.Categories != nil && n.opts.Categories.Has(a.Category)
}

func (n *Nuker) logOutcome(o Outcome) {
	attrs := []any{"path", o.Artifact.Path, "category", o.Artifact.Category, "outcome", o.Kind.String()}
	switch o.Kind {
	case Deleted:
		n.log.Info("deleted", append(attrs, "freed", o.Freed, "duration", o.Duration)...)
	case Failed:
		n.log.Warn("delete failed", append(attrs, "err", o.Reason)...)
	default:
		n.log.Debug("not deleted", append(attrs, "reason", o.Reason)...)
	}
}

func components(path string) int {
	n := 0
	for _, s := range strings.Split(filepath.Clean(path), string(filepath.Separator)) {
		if s != "" {
			n++
		}
	}
	return n
}
