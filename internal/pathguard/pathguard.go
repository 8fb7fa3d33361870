// Package pathguard decides whether a filesystem path may be touched.
//
// Every path is canonicalized by resolving each symlink in its chain before
// it is classified, so the verdict does not depend on how the path was
// spelled.
package pathguard

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/zhengda-lu/devsweep/internal/utils"
)

var defaultProtected = []string{
	"/System",
	"/Library",
	"/Applications",
	"/usr",
	"/bin",
	"/sbin",
}

// DefaultProtected returns the system trees that are never deleted.
func DefaultProtected() []string {
	return slices.Clone(defaultProtected)
}

// Policy configures a Validator. Paths may use "~".
type Policy struct {
	// ScopeRoots bounds everything that may be touched. Nil means the
	// user's home directory.
	ScopeRoots []string
	Whitelist  []string
	// Protected replaces DefaultProtected() when non-nil.
	Protected []string
}

// Validator classifies paths against a Policy. It is immutable after New
// and safe for concurrent use.
type Validator struct {
	scope     []string
	lexScope  []string
	whitelist []string
	protected []string
}

// New canonicalizes the policy roots once.
func New(p Policy) (*Validator, error) {
	scope := p.ScopeRoots
	if scope == nil {
		home := utils.HomeDir()
		if home == "" {
			return nil, fmt.Errorf("cannot determine home directory for default scope")
		}
		scope = []string{home}
	}
	protected := p.Protected
	if protected == nil {
		protected = DefaultProtected()
	}

	v := &Validator{}
	var err error
	if v.lexScope, v.scope, err = canonicalRoots(scope); err != nil {
		return nil, fmt.Errorf("scope roots: %w", err)
	}
	lexWL, canonWL, err := canonicalRoots(p.Whitelist)
	if err != nil {
		return nil, fmt.Errorf("whitelist: %w", err)
	}
	v.whitelist = dedupe(append(lexWL, canonWL...))
	lexProt, canonProt, err := canonicalRoots(protected)
	if err != nil {
		return nil, fmt.Errorf("protected paths: %w", err)
	}
	v.protected = dedupe(append(lexProt, canonProt...))
	return v, nil
}

// canonicalRoots returns both the lexical and the resolved form of each root.
func canonicalRoots(roots []string) (lexical, canonical []string, err error) {
	for _, r := range roots {
		r = utils.ExpandHome(strings.TrimSpace(r))
		if r == "" {
			continue
		}
		abs, err := filepath.Abs(r)
		if err != nil {
			return nil, nil, err
		}
		res, err := resolve(abs)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", r, err)
		}
		lexical = append(lexical, abs)
		canonical = append(canonical, res)
	}
	return dedupe(lexical), dedupe(canonical), nil
}

func dedupe(s []string) []string {
	slices.Sort(s)
	return slices.Compact(s)
}

// ScopeRoots returns the canonical scope roots.
func (v *Validator) ScopeRoots() []string {
	return slices.Clone(v.scope)
}

// Validate canonicalizes raw and returns the canonical path if it may be
// touched. Relative input is taken against the working directory.
func (v *Validator) Validate(raw string) (string, error) {
	return v.validate(raw, false)
}

// ValidateRoot is Validate for a walk root: a scope root itself is allowed
// as a starting point even though it may never be deleted.
func (v *Validator) ValidateRoot(raw string) (string, error) {
	return v.validate(raw, true)
}

func (v *Validator) validate(raw string, allowScopeRoot bool) (string, error) {
	if err := checkInput(raw); err != nil {
		return "", err
	}
	abs := raw
	if !filepath.IsAbs(abs) {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve relative path %q: %w", raw, err)
		}
		abs = wd + string(filepath.Separator) + raw
	}

	resolved, err := resolve(abs)
	if err != nil {
		return "", newError(ErrSymlinkEscape, raw, "", err)
	}

	isScopeRoot := slices.Contains(v.scope, resolved)
	if v.protectedResolved(resolved) && !(allowScopeRoot && isScopeRoot) {
		return "", newError(ErrProtectedSystemPath, raw, resolved, nil)
	}
	if len(v.scope) > 0 && !withinAny(resolved, v.scope) {
		lexical := filepath.Clean(abs)
		if withinAny(lexical, v.lexScope) || withinAny(lexical, v.scope) {
			return "", newError(ErrSymlinkEscape, raw, resolved, nil)
		}
		return "", newError(ErrOutsideWhitelistScope, raw, resolved, nil)
	}
	return resolved, nil
}

// ValidateWithin validates rel joined onto base, refusing any ".." that
// climbs above base.
func (v *Validator) ValidateWithin(base, rel string) (string, error) {
	if err := checkInput(base); err != nil {
		return "", err
	}
	if err := checkInput(rel); err != nil {
		return "", err
	}
	if filepath.IsAbs(rel) {
		return "", newError(ErrTraversalDetected, rel, "", fmt.Errorf("absolute path not allowed below %s", base))
	}
	depth := 0
	for _, c := range splitPath(rel) {
		switch c {
		case "", ".":
		case "..":
			depth--
			if depth < 0 {
				return "", newError(ErrTraversalDetected, rel, "", fmt.Errorf("climbs above %s", base))
			}
		default:
			depth++
		}
	}
	return v.Validate(base + string(filepath.Separator) + rel)
}

// Whitelisted reports whether path, once canonicalized, equals or sits
// below a whitelist entry.
func (v *Validator) Whitelisted(path string) bool {
	if len(v.whitelist) == 0 {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	if withinAny(filepath.Clean(abs), v.whitelist) {
		return true
	}
	res, err := resolve(abs)
	if err != nil {
		return false
	}
	return withinAny(res, v.whitelist)
}

// WhitelistedCanonical is Whitelisted for a path that is already canonical.
// It does not touch the filesystem.
func (v *Validator) WhitelistedCanonical(path string) bool {
	return withinAny(path, v.whitelist)
}

// IsProtected is a lexical check of path against the protected set.
// It does not touch the filesystem.
func (v *Validator) IsProtected(path string) bool {
	return v.protectedResolved(filepath.Clean(path))
}

func (v *Validator) protectedResolved(p string) bool {
	if p == string(filepath.Separator) {
		return true
	}
	if slices.Contains(v.scope, p) || slices.Contains(v.lexScope, p) {
		return true
	}
	if withinAny(p, v.protected) {
		return true
	}
	return sensitiveSegments(p)
}

// sensitiveSegments flags credential stores wherever they appear.
func sensitiveSegments(p string) bool {
	segs := splitPath(p)
	for i, s := range segs {
		switch {
		case s == ".ssh", s == ".gnupg":
			return true
		case strings.HasSuffix(s, ".keychain"), strings.HasSuffix(s, ".keychain-db"):
			return true
		case s == "Keychains" && i > 0 && segs[i-1] == "Library":
			return true
		}
	}
	return false
}

func checkInput(raw string) error {
	switch {
	case raw == "":
		return newError(ErrTraversalDetected, raw, "", fmt.Errorf("empty path"))
	case strings.IndexByte(raw, 0) >= 0:
		return newError(ErrTraversalDetected, strings.ReplaceAll(raw, "\x00", `\x00`), "", fmt.Errorf("NUL byte in path"))
	case !utf8.ValidString(raw):
		return newError(ErrTraversalDetected, fmt.Sprintf("%q", raw), "", fmt.Errorf("invalid UTF-8"))
	}
	return nil
}
