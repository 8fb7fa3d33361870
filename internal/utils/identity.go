package utils

import (
	"io/fs"
	"time"

	"golang.org/x/sys/unix"
)

// Identity is the filesystem identity of a path at one point in time.
// Two observations of the same path refer to the same object only if Dev,
// Ino and ModTime all agree.
type Identity struct {
	Dev       uint64    `json:"dev"`
	Ino       uint64    `json:"ino"`
	ModTime   time.Time `json:"mod_time"`
	Size      int64     `json:"size"`
	IsDir     bool      `json:"is_dir"`
	IsSymlink bool      `json:"is_symlink"`
}

// Lidentity captures the identity of path without following a final symlink.
func Lidentity(path string) (Identity, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return Identity{}, &fs.PathError{Op: "lstat", Path: path, Err: err}
	}
	return fromStat(&st), nil
}

// Fidentity captures the identity of an open file descriptor.
func Fidentity(fd int) (Identity, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return Identity{}, &fs.PathError{Op: "fstat", Path: "fd", Err: err}
	}
	return fromStat(&st), nil
}

func fromStat(st *unix.Stat_t) Identity {
	mode := uint32(st.Mode) & unix.S_IFMT
	sec, nsec := st.Mtim.Unix()
	return Identity{
		Dev:       uint64(st.Dev),
		Ino:       uint64(st.Ino),
		ModTime:   time.Unix(sec, nsec),
		Size:      st.Size,
		IsDir:     mode == unix.S_IFDIR,
		IsSymlink: mode == unix.S_IFLNK,
	}
}

// Same reports whether a and b describe the same unmodified object.
// Sizes are compared for non-directories only.
func (a Identity) Same(b Identity) bool {
	if a.Dev != b.Dev || a.Ino != b.Ino || !a.ModTime.Equal(b.ModTime) {
		return false
	}
	if a.IsDir != b.IsDir || a.IsSymlink != b.IsSymlink {
		return false
	}
	if !a.IsDir && a.Size != b.Size {
		return false
	}
	return true
}

// Key identifies the object independent of modification time, for loop
// detection while walking.
func (a Identity) Key() [2]uint64 {
	return [2]uint64{a.Dev, a.Ino}
}
