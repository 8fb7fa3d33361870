package logging

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/zhengda-lu/devsweep/internal/utils"
)

// Rotate archives the log file at path once its first record is older than
// retention, so the next New starts a fresh file. It returns the archive
// path, or "" when nothing was rotated. Call it before New opens the file.
func Rotate(path string, retention time.Duration, now time.Time) (string, error) {
	if path == "" || retention <= 0 {
		return "", nil
	}
	first, err := firstRecordTime(path)
	if err != nil || first.IsZero() {
		return "", err
	}
	if !first.Before(now.Add(-retention)) {
		return "", nil
	}
	return utils.Archive(path, first)
}

// firstRecordTime reads the time of the first text or JSON record. A file
// whose first line carries no time falls back to its modification time.
func firstRecordTime(path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if t, ok := recordTime(line); ok {
			return t, nil
		}
		break
	}
	if err := sc.Err(); err != nil {
		return time.Time{}, fmt.Errorf("read log file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		return time.Time{}, fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() == 0 {
		return time.Time{}, nil
	}
	return info.ModTime(), nil
}

func recordTime(line string) (time.Time, bool) {
	if strings.HasPrefix(line, "{") {
		var rec struct {
			Time time.Time `json:"time"`
		}
		if err := json.Unmarshal([]byte(line), &rec); err != nil || rec.Time.IsZero() {
			return time.Time{}, false
		}
		return rec.Time, true
	}
	field, ok := strings.CutPrefix(line, "time=")
	if !ok {
		return time.Time{}, false
	}
	stamp, _, _ := strings.Cut(field, " ")
	t, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
