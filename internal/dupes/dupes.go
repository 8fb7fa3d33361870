// Package dupes finds catalog artifacts that are copies of each other,
// such as the same dependency tree installed in several projects.
package dupes

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/zhengda-lu/devsweep/internal/scanner"
)

// partialHashSize is the number of bytes read for the partial hash pass
// of file artifacts.
const partialHashSize = 4096

// Group represents a set of artifacts sharing the same content.
type Group struct {
	Pattern string   `json:"pattern"`
	Size    int64    `json:"size"`
	Hash    string   `json:"hash"`
	Paths   []string `json:"paths"`
}

// Wasted is the size of every copy but one.
func (g Group) Wasted() int64 {
	return g.Size * int64(len(g.Paths)-1)
}

// ProgressFunc is called with each artifact path as it is fingerprinted.
type ProgressFunc func(path string)

// Find groups duplicate artifacts. It uses a three-pass algorithm: group
// by pattern and size, a shallow fingerprint, then a full fingerprint.
// For directories the fingerprints hash the listing (relative names,
// types and file sizes), not file contents.
func Find(ctx context.Context, artifacts []scanner.Artifact) ([]Group, error) {
	return FindWithProgress(ctx, artifacts, nil)
}

// FindWithProgress is like Find but calls onProgress for each artifact
// fingerprinted.
func FindWithProgress(ctx context.Context, artifacts []scanner.Artifact, onProgress ProgressFunc) ([]Group, error) {
	// Pass 1: group artifacts by pattern and size.
	sizeGroups := groupBySize(artifacts)

	// Pass 2: shallow fingerprint for same-size artifacts.
	candidates, err := refineByHash(ctx, sizeGroups, true, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to compute partial fingerprints: %w", err)
	}

	// Pass 3: full fingerprint only for partial matches.
	confirmed, err := refineByHash(ctx, candidates, false, onProgress)
	if err != nil {
		return nil, fmt.Errorf("failed to compute full fingerprints: %w", err)
	}

	groups := make([]Group, 0, len(confirmed))
	for _, c := range confirmed {
		sort.Strings(c.paths)
		groups = append(groups, Group{
			Pattern: c.pattern,
			Size:    c.size,
			Hash:    c.hash,
			Paths:   c.paths,
		})
	}

	// Sort groups by total wasted size descending.
	sort.Slice(groups, func(i, j int) bool {
		wi, wj := groups[i].Wasted(), groups[j].Wasted()
		if wi != wj {
			return wi > wj
		}
		return groups[i].Paths[0] < groups[j].Paths[0]
	})

	return groups, nil
}

// candidate holds a group of artifacts that match on some criterion.
type candidate struct {
	pattern string
	size    int64
	isDir   bool
	hash    string
	paths   []string
}

type sizeKey struct {
	pattern string
	size    int64
	isDir   bool
}

// groupBySize buckets artifacts by pattern, size and kind. Returns only
// groups with 2+ artifacts.
func groupBySize(artifacts []scanner.Artifact) []candidate {
	sizeMap := make(map[sizeKey][]string)
	var order []sizeKey
	for _, a := range artifacts {
		if a.Size == 0 {
			continue
		}
		k := sizeKey{pattern: a.Pattern, size: a.Size, isDir: a.IsDir}
		if _, ok := sizeMap[k]; !ok {
			order = append(order, k)
		}
		sizeMap[k] = append(sizeMap[k], a.Path)
	}

	var candidates []candidate
	for _, k := range order {
		if paths := sizeMap[k]; len(paths) >= 2 {
			candidates = append(candidates, candidate{pattern: k.pattern, size: k.size, isDir: k.isDir, paths: paths})
		}
	}
	return candidates
}

// refineByHash takes candidate groups and sub-groups them by fingerprint.
// Returns only sub-groups with 2+ matching artifacts.
func refineByHash(ctx context.Context, candidates []candidate, partial bool, onProgress ProgressFunc) ([]candidate, error) {
	var refined []candidate

	for _, c := range candidates {
		hashMap := make(map[string][]string)
		var order []string
		for _, p := range c.paths {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}

			if onProgress != nil {
				onProgress(p)
			}
			var (
				h   string
				err error
			)
			if c.isDir {
				h, err = hashListing(ctx, p, partial)
			} else {
				h, err = hashFile(p, partial)
			}
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				continue // skip unreadable artifacts
			}
			if _, ok := hashMap[h]; !ok {
				order = append(order, h)
			}
			hashMap[h] = append(hashMap[h], p)
		}

		for _, h := range order {
			if matched := hashMap[h]; len(matched) >= 2 {
				refined = append(refined, candidate{
					pattern: c.pattern,
					size:    c.size,
					isDir:   c.isDir,
					hash:    h,
					paths:   matched,
				})
			}
		}
	}

	return refined, nil
}

// hashListing fingerprints the tree under dir without reading file
// contents. If partial is true, only the immediate children are listed.
// Symlinks are recorded, never followed.
func hashListing(ctx context.Context, dir string, partial bool) (string, error) {
	d := xxhash.New()
	var buf []byte
	err := filepath.WalkDir(dir, func(path string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, path)

		buf = append(buf[:0], rel...)
		buf = append(buf, 0)
		buf = strconv.AppendUint(buf, uint64(e.Type()), 16)
		if e.Type().IsRegular() {
			info, err := e.Info()
			if err != nil {
				return err
			}
			buf = append(buf, 0)
			buf = strconv.AppendInt(buf, info.Size(), 10)
		}
		buf = append(buf, '\n')
		d.Write(buf)

		if partial && e.IsDir() {
			return fs.SkipDir
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to list %s: %w", dir, err)
	}
	return fmt.Sprintf("%016x", d.Sum64()), nil
}

// hashFile computes the xxhash of a file. If partial is true, only the
// first partialHashSize bytes are read.
func hashFile(path string, partial bool) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	h := xxhash.New()

	if partial {
		_, err = io.CopyN(h, f, partialHashSize)
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
	} else {
		_, err = io.Copy(h, f)
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
	}

	return fmt.Sprintf("%016x", h.Sum64()), nil
}
