package nuker

import (
	"fmt"
	"strings"
)

// Mode gates what the deleter may do once a record is validated.
type Mode int

const (
	DryRun Mode = iota
	Interactive
	Safe
	Force
)

func (m Mode) String() string {
	switch m {
	case DryRun:
		return "dry_run"
	case Interactive:
		return "interactive"
	case Safe:
		return "safe"
	case Force:
		return "force"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts the mode names used in config files and flags.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dry_run", "dry-run", "dryrun":
		return DryRun, nil
	case "interactive":
		return Interactive, nil
	case "safe", "":
		return Safe, nil
	case "force":
		return Force, nil
	}
	return DryRun, fmt.Errorf("unknown safety mode %q (want dry_run, interactive, safe or force)", s)
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
