package nuker

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/zhengda-lu/devsweep/internal/pathguard"
	"github.com/zhengda-lu/devsweep/internal/scanner"
	"github.com/zhengda-lu/devsweep/internal/utils"
)

// result carries a non-Failed outcome out of the removal path.
type result struct {
	kind Kind
	err  error
}

func (r *result) Error() string { return r.err.Error() }
func (r *result) Unwrap() error { return r.err }

func stale(format string, args ...any) error {
	return &result{kind: SkippedStale, err: fmt.Errorf("%w: "+format, append([]any{ErrStaleArtifact}, args...)...)}
}

func fsError(op, path string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrFilesystem, op, path, err)
}

// remove deletes a validated artifact through file descriptors so that no
// path component can be swapped for a symlink between checks and removal.
func (n *Nuker) remove(a scanner.Artifact) (int64, error) {
	parent, base := filepath.Dir(a.Path), filepath.Base(a.Path)

	pfd, err := unix.Open(parent, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return 0, fsError("open", parent, err)
	}
	defer unix.Close(pfd)

	flags := unix.O_RDONLY | unix.O_NOFOLLOW | unix.O_CLOEXEC | unix.O_NONBLOCK
	if a.IsDir {
		flags |= unix.O_DIRECTORY
	}
	fd, err := unix.Openat(pfd, base, flags, 0)
	switch {
	case errors.Is(err, unix.ENOENT):
		return 0, stale("%s disappeared", a.Path)
	case errors.Is(err, unix.ELOOP), errors.Is(err, unix.ENOTDIR):
		return 0, stale("%s is no longer a %s", a.Path, kindName(a.IsDir))
	case err != nil:
		return 0, fsError("open", a.Path, err)
	}
	defer unix.Close(fd)

	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return 0, &result{kind: Failed, err: fmt.Errorf("%w: %s is locked by another process", ErrConcurrentModification, a.Path)}
		}
		return 0, fsError("flock", a.Path, err)
	}

	held, err := utils.Fidentity(fd)
	if err != nil {
		return 0, fsError("fstat", a.Path, err)
	}
	if !held.Same(a.Identity) {
		return 0, stale("%s changed before it could be locked", a.Path)
	}
	now, err := utils.Lidentity(a.Path)
	if err != nil || !now.Same(held) {
		return 0, &result{kind: Failed, err: fmt.Errorf("%w: %s was replaced while locked", ErrConcurrentModification, a.Path)}
	}

	if !a.IsDir {
		if err := unix.Unlinkat(pfd, base, 0); err != nil {
			return 0, fsError("unlink", a.Path, err)
		}
		return held.Size, nil
	}

	if err := n.checkTree(fd, a.Path); err != nil {
		return 0, err
	}
	if err := ensureWritable(fd); err != nil {
		return 0, fsError("chmod", a.Path, err)
	}
	freed, err := removeTree(fd, a.Path)
	if err != nil {
		return freed, err
	}
	if err := unix.Unlinkat(pfd, base, unix.AT_REMOVEDIR); err != nil {
		return freed, fsError("rmdir", a.Path, err)
	}
	return freed, nil
}

func kindName(isDir bool) string {
	if isDir {
		return "directory"
	}
	return "file"
}

// checkTree refuses the whole deletion if any descendant is protected.
// Nothing is modified.
func (n *Nuker) checkTree(dirfd int, path string) error {
	entries, err := listDir(dirfd, path)
	if err != nil {
		return fsError("readdir", path, err)
	}
	for _, name := range entries {
		child := filepath.Join(path, name)
		if n.v.IsProtected(child) {
			return &result{kind: Rejected, err: &pathguard.Error{
				Kind: pathguard.ErrProtectedSystemPath, Path: child,
				Err: fmt.Errorf("inside %s", path),
			}}
		}
		var st unix.Stat_t
		if err := unix.Fstatat(dirfd, name, &st, unix.AT_SYMLINK_NOFOLLOW); err != nil {
			return fsError("lstat", child, err)
		}
		if !isDir(&st) {
			continue
		}
		cfd, err := openDirAt(dirfd, name)
		if err != nil {
			return fsError("open", child, err)
		}
		err = n.checkTree(cfd, child)
		unix.Close(cfd)
		if err != nil {
			return err
		}
	}
	return nil
}

// removeTree empties the directory open at dirfd, deepest entries first.
// Symlinks are unlinked, never followed. It returns the bytes of regular
// files removed, even on error.
func removeTree(dirfd int, path string) (int64, error) {
	entries, err := listDir(dirfd, path)
	if err != nil {
		return 0, fsError("readdir", path, err)
	}
	var freed int64
	for _, name := range entries {
		child := filepath.Join(path, name)
		var st unix.Stat_t
		if err := unix.Fstatat(dirfd, name, &st, unix.AT_SYMLINK_NOFOLLOW); err != nil {
			if errors.Is(err, unix.ENOENT) {
				continue
			}
			return freed, fsError("lstat", child, err)
		}

		if !isDir(&st) {
			if err := unix.Unlinkat(dirfd, name, 0); err != nil && !errors.Is(err, unix.ENOENT) {
				return freed, fsError("unlink", child, err)
			}
			if uint32(st.Mode)&unix.S_IFMT == unix.S_IFREG {
				freed += st.Size
			}
			continue
		}

		cfd, err := openDirAt(dirfd, name)
		if err != nil {
			return freed, fsError("open", child, err)
		}
		if err := ensureWritable(cfd); err != nil {
			unix.Close(cfd)
			return freed, fsError("chmod", child, err)
		}
		sub, err := removeTree(cfd, child)
		unix.Close(cfd)
		freed += sub
		if err != nil {
			return freed, err
		}
		if err := unix.Unlinkat(dirfd, name, unix.AT_REMOVEDIR); err != nil && !errors.Is(err, unix.ENOENT) {
			return freed, fsError("rmdir", child, err)
		}
	}
	return freed, nil
}

func openDirAt(dirfd int, name string) (int, error) {
	return unix.Openat(dirfd, name, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0)
}

// listDir reads entry names through a fresh descriptor so the caller's
// directory offset is untouched.
func listDir(dirfd int, path string) ([]string, error) {
	fd, err := unix.Openat(dirfd, ".", unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	f := os.NewFile(uintptr(fd), path)
	defer f.Close()
	return f.Readdirnames(-1)
}

func isDir(st *unix.Stat_t) bool {
	return uint32(st.Mode)&unix.S_IFMT == unix.S_IFDIR
}

// ensureWritable adds owner write and search permission to a directory so
// its entries can be unlinked. Read-only trees are common in module caches.
func ensureWritable(fd int) error {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return err
	}
	perm := uint32(st.Mode) & 0o7777
	if perm&0o300 == 0o300 {
		return nil
	}
	return unix.Fchmod(fd, perm|0o700)
}
