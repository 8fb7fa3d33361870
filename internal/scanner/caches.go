package scanner

import (
	"os"
	"path/filepath"
)

// CacheLocation is a well-known global cache directory that is reported
// as a single artifact instead of being walked.
type CacheLocation struct {
	Path     string `json:"path" yaml:"path"`
	Category string `json:"category" yaml:"category"`
	Name     string `json:"name" yaml:"name"`
}

// KnownCaches lists package-manager and toolchain caches below home.
// Every entry can be rebuilt by the tool that owns it.
func KnownCaches(home string) []CacheLocation {
	c := func(category, name string, elem ...string) CacheLocation {
		return CacheLocation{
			Path:     filepath.Join(append([]string{home}, elem...)...),
			Category: category,
			Name:     name,
		}
	}
	return []CacheLocation{
		c("javascript.caches", "npm cache", ".npm", "_cacache"),
		c("javascript.caches", "yarn cache", "Library", "Caches", "Yarn"),
		c("python.caches", "pip cache", "Library", "Caches", "pip"),
		c("python.caches", "pip cache", ".cache", "pip"),
		c("python.caches", "miniconda3 package cache", "miniconda3", "pkgs"),
		c("python.caches", "anaconda3 package cache", "anaconda3", "pkgs"),
		c("python.caches", "miniforge3 package cache", "miniforge3", "pkgs"),
		c("rust.caches", "cargo registry", ".cargo", "registry"),
		c("rust.caches", "cargo git checkouts", ".cargo", "git"),
		c("go.caches", "Go module cache", "go", "pkg", "mod", "cache"),
		c("go.caches", "Go build cache", "Library", "Caches", "go-build"),
		c("go.caches", "Go build cache", ".cache", "go-build"),
		c("java.caches", "Gradle build caches", ".gradle", "caches"),
		c("java.caches", "Gradle wrapper distributions", ".gradle", "wrapper", "dists"),
		c("java.caches", "Maven local repository", ".m2", "repository"),
		c("ruby.caches", "gem cache", ".gem"),
		c("ruby.caches", "bundler cache", ".bundle", "cache"),
		c("jetbrains.caches", "JetBrains caches", "Library", "Caches", "JetBrains"),
		c("jetbrains.caches", "JetBrains logs", "Library", "Logs", "JetBrains"),
		c("swift.caches", "Xcode DerivedData", "Library", "Developer", "Xcode", "DerivedData"),
	}
}

// CacheCategories returns the distinct categories of locs in order.
func CacheCategories(locs []CacheLocation) []string {
	var out []string
	seen := make(map[string]bool)
	for _, l := range locs {
		if !seen[l.Category] {
			seen[l.Category] = true
			out = append(out, l.Category)
		}
	}
	return out
}

// cachesUnder returns the configured caches that exist as real directories
// under root, keyed by canonical path.
func (s *Scanner) cachesUnder(root string) map[string]CacheLocation {
	out := make(map[string]CacheLocation)
	for _, c := range s.opts.Caches {
		info, err := os.Lstat(c.Path)
		if err != nil || !info.IsDir() {
			continue
		}
		canonical, err := s.validator.Validate(c.Path)
		if err != nil {
			s.log.Debug("skip cache location", "path", c.Path, "err", err)
			continue
		}
		if !nested(canonical, root) || canonical == root {
			continue
		}
		out[canonical] = c
	}
	return out
}
