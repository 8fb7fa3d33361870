package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/zhengda-lu/devsweep/internal/config"
	"github.com/zhengda-lu/devsweep/internal/engine"
	"github.com/zhengda-lu/devsweep/internal/nuker"
	"github.com/zhengda-lu/devsweep/internal/pathguard"
	"github.com/zhengda-lu/devsweep/internal/patterns"
	"github.com/zhengda-lu/devsweep/internal/scanner"
	"github.com/zhengda-lu/devsweep/internal/threshold"
	"github.com/zhengda-lu/devsweep/internal/trends"
	"github.com/zhengda-lu/devsweep/internal/tui"
	"github.com/zhengda-lu/devsweep/internal/utils"
)

// scanFlags are the options shared by scan, clean and dupes. Zero values
// defer to the config file.
type scanFlags struct {
	targets       []string
	threshold     string
	fileThreshold string
	workers       int
	maxDepth      int
	follow        bool
	patternsFile  string
	exclude       []string
}

func (f *scanFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringArrayVar(&f.targets, "target", nil, "Directory to scan (repeatable; default scan_roots)")
	fs.StringVar(&f.threshold, "threshold", "", "Minimum folder size, e.g. 50MB (default size_thresholds.minimum_folder_size)")
	fs.StringVar(&f.fileThreshold, "file-threshold", "", "Minimum file size, e.g. 1MB (default size_thresholds.minimum_file_size)")
	fs.IntVar(&f.workers, "workers", 0, "Concurrent directory reads (default workers)")
	fs.IntVar(&f.maxDepth, "max-depth", 0, "Maximum directory depth (default max_depth)")
	fs.BoolVar(&f.follow, "follow-symlinks", false, "Follow symlinks that stay inside the scope roots")
	fs.StringVar(&f.patternsFile, "patterns", "", "Pattern file (default patterns_file or built-in patterns)")
	fs.StringSliceVar(&f.exclude, "exclude", nil, "Exclude paths matching pattern (glob or dir/**)")
}

// session holds everything one command needs, built once from the config
// and flags.
type session struct {
	cfg        *config.Config
	validator  *pathguard.Validator
	patterns   *patterns.Set
	caches     []scanner.CacheLocation
	thresholds config.Thresholds
	targets    []scanner.Target
	workers    int
	// exclude is the config's exclude list plus --exclude.
	exclude []string
}

func newSession(cfg *config.Config, f *scanFlags) (*session, error) {
	exclude := make([]string, 0, len(cfg.Exclude)+len(f.exclude))
	exclude = append(exclude, cfg.Exclude...)
	exclude = append(exclude, f.exclude...)

	th, err := cfg.Thresholds()
	if err != nil {
		return nil, fmt.Errorf("invalid size thresholds: %w", err)
	}
	p := threshold.Parser{Max: th.Max}
	if f.threshold != "" {
		if th.MinFolderSize, err = p.ParseString(f.threshold); err != nil {
			return nil, fmt.Errorf("invalid --threshold: %w", err)
		}
	}
	if f.fileThreshold != "" {
		if th.MinFileSize, err = p.ParseString(f.fileThreshold); err != nil {
			return nil, fmt.Errorf("invalid --file-threshold: %w", err)
		}
	}

	v, err := pathguard.New(cfg.Policy())
	if err != nil {
		return nil, fmt.Errorf("invalid path policy: %w", err)
	}

	patternsFile := utils.ExpandHome(cfg.PatternsFile)
	if patternsFile != "" && !utils.FileExists(patternsFile) {
		logger.Warn("patterns_file not found, using built-in patterns", "path", patternsFile)
		patternsFile = ""
	}
	if f.patternsFile != "" {
		patternsFile = utils.ExpandHome(f.patternsFile)
	}
	set, err := patterns.Load(patternsFile)
	if err != nil {
		return nil, err
	}

	var caches []scanner.CacheLocation
	if cfg.GlobalCaches {
		caches = scanner.KnownCaches(utils.HomeDir())
	}

	roots := f.targets
	if len(roots) == 0 {
		roots = cfg.ScanRoots
	}
	roots = utils.ExpandPaths(roots)
	if len(roots) == 0 {
		return nil, fmt.Errorf("nothing to scan: no --target given and scan_roots is empty")
	}
	maxDepth := cfg.MaxDepth
	if f.maxDepth > 0 {
		maxDepth = f.maxDepth
	}
	targets := make([]scanner.Target, 0, len(roots))
	for _, r := range roots {
		if !filepath.IsAbs(r) {
			if abs, err := filepath.Abs(r); err == nil {
				r = abs
			}
		}
		targets = append(targets, scanner.Target{
			Root:           r,
			MaxDepth:       maxDepth,
			FollowSymlinks: f.follow || cfg.FollowSymlinks,
		})
	}

	workers := cfg.Workers
	if f.workers > 0 {
		workers = f.workers
	}
	if workers < 1 || workers > 64 {
		workers = scanner.DefaultWorkers
	}

	return &session{
		cfg:        cfg,
		exclude:    exclude,
		validator:  v,
		patterns:   set,
		caches:     caches,
		thresholds: th,
		targets:    targets,
		workers:    workers,
	}, nil
}

func (s *session) scanner() *scanner.Scanner {
	return scanner.New(s.validator, s.patterns, scanner.Options{
		Workers:       s.workers,
		MinFolderSize: s.thresholds.MinFolderSize,
		MinFileSize:   s.thresholds.MinFileSize,
		Caches:        s.caches,
		Logger:        logger,
	})
}

func (s *session) engine() *engine.Engine {
	e := engine.New(s.scanner())
	for _, t := range s.targets {
		e.Register(t)
	}
	e.SetExcludeFunc(func(path string) bool { return config.MatchExclude(s.exclude, path) })
	return e
}

// categories is every category the deleter may act on: the loaded
// patterns plus the global caches.
func (s *session) categories() nuker.Categories {
	names := append(s.patterns.Categories(), scanner.CacheCategories(s.caches)...)
	return nuker.NewCategories(names...)
}

// scan runs the engine over every target. A root that fails is reported
// on stderr and the rest of the catalog is kept; the scan fails only when
// no root could be scanned.
func (s *session) scan(cmd *cobra.Command) (*scanner.Catalog, error) {
	cat, err := s.scanAll(cmd)
	if err == nil || cat == nil {
		return cat, err
	}
	if len(cat.Roots) == 0 {
		return nil, err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "warning: some roots were not scanned:\n%v\n", err)
	logger.Warn("partial scan", "error", err)
	return cat, nil
}

// scanAll is scan without the partial-failure handling. On an
// interactive terminal a spinner shows which roots are done.
func (s *session) scanAll(cmd *cobra.Command) (*scanner.Catalog, error) {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	e := s.engine()

	if quietFlag || jsonFlag || !isTerminal(os.Stderr) || !isTerminal(os.Stdin) {
		return e.ScanAllWithProgress(ctx, len(s.targets), nil)
	}

	var (
		cat     *scanner.Catalog
		scanErr error
	)
	err := tui.Spin(os.Stdin, cmd.ErrOrStderr(), "Scanning", cancel, func(status func(string)) error {
		var done atomic.Int32
		cat, scanErr = e.ScanAllWithProgress(ctx, len(s.targets), func(p engine.ScanProgress) {
			if p.Status == engine.ScanDone {
				status(fmt.Sprintf("%d/%d %s", done.Add(1), len(s.targets), p.Root))
			}
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cat, scanErr
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// recordTrend appends a disk sample for the home volume. Failures only
// lose a data point.
func recordTrend(ctx context.Context, event string, reclaimable, freed int64) {
	sample, err := trends.Take(ctx, utils.HomeDir(), event)
	if err != nil {
		logger.Debug("disk sample skipped", "error", err)
		return
	}
	sample.Reclaimable, sample.Freed = reclaimable, freed
	if err := trends.NewStore(trends.DefaultPath()).Append(sample); err != nil {
		logger.Warn("failed to record disk trend", "error", err)
	}
}
