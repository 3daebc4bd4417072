package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Info holds metadata for retention decisions.
type Info struct {
	Path      string
	Size      int64
	CreatedAt time.Time
	Rows      int
}

// RetentionPolicy decides which exports to keep.
type RetentionPolicy interface {
	Apply(exports []Info) (keep []Info)
}

// CountPolicy keeps the N most recent exports.
type CountPolicy struct {
	MaxCount int
}

// Apply keeps the first MaxCount exports (assumed sorted newest-first).
func (p *CountPolicy) Apply(exports []Info) []Info {
	if len(exports) <= p.MaxCount {
		return exports
	}
	return exports[:p.MaxCount]
}

// AgePolicy keeps exports newer than MaxAge.
type AgePolicy struct {
	MaxAge time.Duration
}

// Apply keeps exports whose CreatedAt is within MaxAge of now.
func (p *AgePolicy) Apply(exports []Info) []Info {
	cutoff := time.Now().Add(-p.MaxAge)
	var keep []Info
	for _, e := range exports {
		if e.CreatedAt.After(cutoff) {
			keep = append(keep, e)
		}
	}
	return keep
}

// List scans dir for export files and returns them sorted newest-first.
func List(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading export directory: %w", err)
	}

	var exports []Info
	for _, e := range entries {
		if e.IsDir() || !isExportFile(e.Name()) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}

		info := Info{
			Path:      filepath.Join(dir, e.Name()),
			Size:      fi.Size(),
			CreatedAt: fi.ModTime(),
		}
		if h, err := ReadHeader(info.Path); err == nil {
			info.CreatedAt = h.CreatedAt
			info.Rows = h.RowCount
		}
		exports = append(exports, info)
	}

	// Timestamp is embedded in the name.
	sort.Slice(exports, func(i, j int) bool {
		return filepath.Base(exports[i].Path) > filepath.Base(exports[j].Path)
	})
	return exports, nil
}

// ApplyRetention deletes exports not kept by the policy.
func ApplyRetention(dir string, policy RetentionPolicy) (deleted []string, err error) {
	exports, err := List(dir)
	if err != nil {
		return nil, err
	}

	keepSet := make(map[string]bool)
	for _, e := range policy.Apply(exports) {
		keepSet[e.Path] = true
	}

	for _, e := range exports {
		if keepSet[e.Path] {
			continue
		}
		if err := os.Remove(e.Path); err != nil {
			return deleted, fmt.Errorf("removing %s: %w", filepath.Base(e.Path), err)
		}
		deleted = append(deleted, e.Path)
	}
	return deleted, nil
}

// ParseDuration parses duration strings like "30d", "2w", "720h".
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration string")
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	num, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}
	switch s[len(s)-1] {
	case 'd':
		return time.Duration(num) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(num) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown duration suffix in %q", s)
	}
}

func isExportFile(name string) bool {
	return strings.HasPrefix(name, "sdrsweep-results-") && strings.HasSuffix(name, ".json.gz")
}
