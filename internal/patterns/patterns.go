// Package patterns holds the ordered set of artifact patterns used to
// classify directory entries.
package patterns

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

//go:embed default_patterns.yaml
var defaultPatterns []byte

// Kind says what an entry must be for a pattern to apply.
type Kind int

const (
	// Directory patterns match a directory whose name equals Value.
	Directory Kind = iota
	// File patterns match a non-directory whose name matches the Value glob.
	File
)

func (k Kind) String() string {
	switch k {
	case Directory:
		return "directory"
	case File:
		return "file"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Pattern classifies matching entries into Category, e.g. "python.directories".
type Pattern struct {
	Category string `json:"category"`
	Kind     Kind   `json:"kind"`
	Value    string `json:"value"`
}

// Set is an ordered, read-only collection of patterns.
type Set struct {
	patterns   []Pattern
	categories []string
}

// NewSet builds a Set, keeping the given order. Duplicate patterns are
// dropped; the first one wins.
func NewSet(ps ...Pattern) (*Set, error) {
	s := &Set{}
	seen := make(map[Pattern]bool)
	for _, p := range ps {
		if err := check(p); err != nil {
			return nil, err
		}
		key := Pattern{Kind: p.Kind, Value: p.Value}
		if seen[key] {
			continue
		}
		seen[key] = true
		s.patterns = append(s.patterns, p)
		if !slices.Contains(s.categories, p.Category) {
			s.categories = append(s.categories, p.Category)
		}
	}
	return s, nil
}

func check(p Pattern) error {
	switch {
	case p.Category == "":
		return fmt.Errorf("pattern %q: empty category", p.Value)
	case strings.TrimSpace(p.Value) == "":
		return fmt.Errorf("category %s: empty pattern", p.Category)
	case strings.ContainsAny(p.Value, "/\x00"):
		return fmt.Errorf("category %s: pattern %q must be a single name", p.Category, p.Value)
	}
	if p.Kind == File && !doublestar.ValidatePattern(p.Value) {
		return fmt.Errorf("category %s: invalid glob %q", p.Category, p.Value)
	}
	return nil
}

// Match returns the first pattern that applies to an entry called name.
// It only looks at the name; the filesystem is never touched.
func (s *Set) Match(name string, isDir bool) (Pattern, bool) {
	for _, p := range s.patterns {
		if isDir {
			if p.Kind == Directory && p.Value == name {
				return p, true
			}
			continue
		}
		if p.Kind == File {
			if ok, _ := doublestar.Match(p.Value, name); ok {
				return p, true
			}
		}
	}
	return Pattern{}, false
}

// Patterns returns a copy of the patterns in order.
func (s *Set) Patterns() []Pattern {
	return slices.Clone(s.patterns)
}

// Categories returns every category in first-seen order.
func (s *Set) Categories() []string {
	return slices.Clone(s.categories)
}

// Has reports whether category is produced by some pattern in the set.
func (s *Set) Has(category string) bool {
	return slices.Contains(s.categories, category)
}

func (s *Set) Len() int {
	return len(s.patterns)
}

// Default returns the built-in pattern set.
func Default() *Set {
	s, err := Parse(defaultPatterns)
	if err != nil {
		panic(fmt.Sprintf("built-in patterns: %v", err))
	}
	return s
}

// Load reads a pattern file. An empty path yields the built-in set.
func Load(path string) (*Set, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read patterns: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
