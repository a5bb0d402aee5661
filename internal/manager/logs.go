package manager

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/loykin/procmgr/internal/process"
)

// DefaultLogLines is the tail length used when a caller passes a negative
// limit.
const DefaultLogLines = 100

// tailFile returns the last max newline-delimited lines of path together with
// the total line count. A missing file yields no lines and no error. A zero
// max only counts lines.
func tailFile(path string, max int) (lines []string, total int, err error) {
	if max < 0 {
		max = DefaultLogLines
	}
	// #nosec G304
	f, err := os.Open(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: open log file %s: %w", process.ErrPersistence, path, err)
	}
	defer func() { _ = f.Close() }()

	ring := make([]string, max)
	r := bufio.NewReader(f)
	for {
		line, rerr := r.ReadString('\n')
		if line != "" {
			if max > 0 {
				ring[total%max] = strings.TrimRight(line, "\r\n")
			}
			total++
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, 0, fmt.Errorf("%w: read log file %s: %w", process.ErrPersistence, path, rerr)
		}
	}

	n := min(total, max)
	lines = make([]string, 0, n)
	for i := total - n; i < total; i++ {
		lines = append(lines, ring[i%max])
	}
	return lines, total, nil
}

func openLog(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("%w: create log directory %s: %w", process.ErrSpawn, dir, err)
		}
	}
	// #nosec G304
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("%w: open log file %s: %w", process.ErrSpawn, path, err)
	}
	return f, nil
}
