package utils

import (
	"io/fs"
	"path/filepath"
	"sync"
)

// DirSize sums the sizes of regular files under path. Symlinks are not
// followed and inaccessible entries are skipped.
func DirSize(path string) (int64, error) {
	var size int64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		size += info.Size()
		return nil
	})
	return size, err
}

// DirSizesParallel computes sizes for multiple paths concurrently, at most
// workers at a time. Returns a map of path -> size.
func DirSizesParallel(paths []string, workers int) map[string]int64 {
	if workers <= 0 {
		workers = 8
	}
	result := make(map[string]int64, len(paths))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)

	for _, p := range paths {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			size, _ := DirSize(path)
			mu.Lock()
			result[path] = size
			mu.Unlock()
		}(p)
	}

	wg.Wait()
	return result
}
