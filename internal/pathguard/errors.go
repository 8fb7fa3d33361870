package pathguard

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is against an *Error.
var (
	ErrProtectedSystemPath   = errors.New("protected system path")
	ErrOutsideWhitelistScope = errors.New("outside whitelist scope")
	ErrTraversalDetected     = errors.New("path traversal detected")
	ErrSymlinkEscape         = errors.New("symlink escape")
	ErrWhitelisted           = errors.New("path is whitelisted")
)

// Error reports why a path was refused.
type Error struct {
	Kind     error
	Path     string
	Resolved string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%v: %s", e.Kind, e.Path)
	if e.Resolved != "" && e.Resolved != e.Path {
		msg += " (resolves to " + e.Resolved + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the sentinel kind carried by err, or nil if err is not a
// path error.
func KindOf(err error) error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return nil
}

func newError(kind error, path, resolved string, cause error) *Error {
	return &Error{Kind: kind, Path: path, Resolved: resolved, Err: cause}
}
