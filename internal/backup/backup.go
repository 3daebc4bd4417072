// Package backup exports and imports the results table.
package backup

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/nvandessel/sdrsweep/internal/models"
	"github.com/nvandessel/sdrsweep/internal/store"
)

// Header is the plain-text first line of an export file.
type Header struct {
	Version    int               `json:"version"`
	CreatedAt  time.Time         `json:"created_at"`
	Checksum   string            `json:"checksum"`
	RowCount   int               `json:"row_count"`
	Compressed bool              `json:"compressed"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Export is the payload of an export file.
type Export struct {
	Version   int             `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	Results   []models.Result `json:"results"`
}

// ImportResult contains statistics about an import.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// DefaultDir returns the default export directory (~/.sdrsweep/exports/).
func DefaultDir() (string, error) {
	global, err := store.GlobalPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(global, "exports"), nil
}

// GeneratePath creates a timestamped export filename in dir.
func GeneratePath(dir string) string {
	ts := time.Now().Format("20060102-150405")
	return filepath.Join(dir, fmt.Sprintf("sdrsweep-results-%s.json.gz", ts))
}

// ExportResults writes every stored result to path.
func ExportResults(ctx context.Context, rs store.ResultStore, path string) (*Header, error) {
	results, err := rs.List(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	if results == nil {
		results = []models.Result{}
	}

	return writeV2(path, &Export{
		Version:   FormatV2,
		CreatedAt: time.Now().UTC(),
		Results:   results,
	})
}

// ImportResults verifies path and inserts its results, skipping row keys
// that already exist.
func ImportResults(ctx context.Context, rs store.ResultStore, path string) (*ImportResult, error) {
	_, e, err := readV2(path)
	if err != nil {
		return nil, err
	}

	out := &ImportResult{}
	for i := range e.Results {
		res := e.Results[i]
		if _, err := rs.Save(ctx, &res); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				out.Skipped++
				continue
			}
			return out, fmt.Errorf("failed to import result %s: %w", res.RowKey, err)
		}
		out.Imported++
	}
	return out, nil
}

// Verify checks the integrity of an export file without importing it.
func Verify(path string) (*Header, error) {
	header, compressed, err := readRaw(path)
	if err != nil {
		return nil, err
	}
	if err := header.verify(compressed); err != nil {
		return nil, err
	}
	return header, nil
}

// Rotate keeps the keep most recent exports in dir and deletes the rest.
func Rotate(dir string, keep int) ([]string, error) {
	return ApplyRetention(dir, &CountPolicy{MaxCount: keep})
}
