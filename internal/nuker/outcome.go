package nuker

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zhengda-lu/devsweep/internal/scanner"
)

var (
	ErrStaleArtifact          = errors.New("artifact changed since scan")
	ErrUserDeclined           = errors.New("declined by user")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrFilesystem             = errors.New("filesystem error")
	ErrDryRun                 = errors.New("dry run")
	ErrUncategorized          = errors.New("artifact category is not a known pattern category")
	ErrProtectedInCatalog     = errors.New("protected path in catalog")
)

// Kind is the result of one deletion attempt.
type Kind int

const (
	Deleted Kind = iota
	SkippedDryRun
	SkippedStale
	Rejected
	Failed
)

func (k Kind) String() string {
	switch k {
	case Deleted:
		return "deleted"
	case SkippedDryRun:
		return "skipped_dry_run"
	case SkippedStale:
		return "skipped_stale"
	case Rejected:
		return "rejected"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// State tracks a record through Pending -> Validated -> terminal.
type State int

const (
	StatePending State = iota
	StateValidated
	StateDeleted
	StateSkipped
	StateRejected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateValidated:
		return "validated"
	case StateDeleted:
		return "deleted"
	case StateSkipped:
		return "skipped"
	case StateRejected:
		return "rejected"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (k Kind) state() State {
	switch k {
	case Deleted:
		return StateDeleted
	case SkippedDryRun, SkippedStale:
		return StateSkipped
	case Rejected:
		return StateRejected
	default:
		return StateFailed
	}
}

// Outcome reports what happened to one artifact.
type Outcome struct {
	Kind     Kind
	State    State
	Artifact scanner.Artifact
	Reason   error
	Freed    int64
	Duration time.Duration
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	out := struct {
		Kind     Kind   `json:"kind"`
		Path     string `json:"path"`
		Category string `json:"category"`
		Size     int64  `json:"size"`
		Freed    int64  `json:"freed"`
		Reason   string `json:"reason,omitempty"`
		Millis   int64  `json:"duration_ms"`
	}{
		Kind:     o.Kind,
		Path:     o.Artifact.Path,
		Category: o.Artifact.Category,
		Size:     o.Artifact.Size,
		Freed:    o.Freed,
		Millis:   o.Duration.Milliseconds(),
	}
	if o.Reason != nil {
		out.Reason = o.Reason.Error()
	}
	return json.Marshal(out)
}

// Summary totals a run.
type Summary struct {
	Deleted  int   `json:"deleted"`
	Skipped  int   `json:"skipped"`
	Rejected int   `json:"rejected"`
	Failed   int   `json:"failed"`
	Freed    int64 `json:"freed"`
}

func Summarize(outs []Outcome) Summary {
	var s Summary
	for _, o := range outs {
		switch o.Kind {
		case Deleted:
			s.Deleted++
		case SkippedDryRun, SkippedStale:
			s.Skipped++
		case Rejected:
			s.Rejected++
		case Failed:
			s.Failed++
		}
		s.Freed += o.Freed
	}
	return s
}
