package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvandessel/sdrsweep/internal/models"
)

func newStores(t *testing.T) map[string]ResultStore {
	t.Helper()
	sq, err := NewSQLiteResultStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewSQLiteResultStore() error = %v", err)
	}
	t.Cleanup(func() { sq.Close() })

	return map[string]ResultStore{
		"sqlite": sq,
		"memory": NewInMemoryResultStore(),
	}
}

func sampleResult(id string, start time.Time) *models.Result {
	req := models.DefaultRequest()
	req.ExperimentID = id
	req.Description = "sample"
	res := models.NewResult(req)
	res.StartTime = start
	res.Finish(start.Add(90 * time.Second))
	res.State = "converged"
	res.Converged = true
	res.Sweeps = 160
	res.FirstStableSweep = 60
	res.LastStableSweep = 159
	res.OutputFile = "output-file-" + id + ".txt"
	return res
}

func TestNewSQLiteResultStore_CreatesDatabase(t *testing.T) {
	root := t.TempDir()
	s, err := NewSQLiteResultStore(root)
	if err != nil {
		t.Fatalf("NewSQLiteResultStore() error = %v", err)
	}
	defer s.Close()

	dbPath := filepath.Join(root, DirName, "results.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("results.db was not created")
	}
	if s.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", s.Path(), dbPath)
	}
}

func TestResultStore_SaveGet(t *testing.T) {
	start := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			res := sampleResult("exp-1", start)

			key, err := s.Save(ctx, res)
			if err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			if key == "" || res.RowKey != key {
				t.Fatalf("Save() key = %q, RowKey = %q", key, res.RowKey)
			}
			if res.PartitionKey != DefaultPartition {
				t.Errorf("PartitionKey = %q, want %q", res.PartitionKey, DefaultPartition)
			}

			got, err := s.Get(ctx, key)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.ExperimentID != "exp-1" || got.Description != "sample" {
				t.Errorf("identity = %q/%q", got.ExperimentID, got.Description)
			}
			if !got.StartTime.Equal(start) || got.DurationSec != 90 || got.Duration != 90*time.Second {
				t.Errorf("timing = %v / %d / %v", got.StartTime, got.DurationSec, got.Duration)
			}
			if got.NumColumns != 1024 || got.BoostMax != 5 || got.LocalAreaDensity != -1 {
				t.Errorf("parameters = %+v", got)
			}
			if !got.Converged || got.State != "converged" || got.FirstStableSweep != 60 || got.LastStableSweep != 159 {
				t.Errorf("outcome = %+v", got)
			}
		})
	}
}

func TestResultStore_Errors(t *testing.T) {
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
			}

			res := sampleResult("dup", time.Now())
			res.RowKey = "fixed-key"
			if _, err := s.Save(ctx, res); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			again := sampleResult("dup", time.Now())
			again.RowKey = "fixed-key"
			if _, err := s.Save(ctx, again); !errors.Is(err, ErrDuplicate) {
				t.Errorf("second Save() error = %v, want ErrDuplicate", err)
			}
		})
	}
}

func TestResultStore_ListCount(t *testing.T) {
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i, id := range []string{"a", "b", "c"} {
				if _, err := s.Save(ctx, sampleResult(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
					t.Fatalf("Save(%s) error = %v", id, err)
				}
			}

			n, err := s.Count(ctx)
			if err != nil {
				t.Fatalf("Count() error = %v", err)
			}
			if n != 3 {
				t.Errorf("Count() = %d, want 3", n)
			}

			all, err := s.List(ctx, 0)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(all) != 3 || all[0].ExperimentID != "c" || all[2].ExperimentID != "a" {
				t.Errorf("List(0) order = %v", ids(all))
			}

			top, err := s.List(ctx, 2)
			if err != nil {
				t.Fatalf("List(2) error = %v", err)
			}
			if len(top) != 2 || top[0].ExperimentID != "c" {
				t.Errorf("List(2) = %v", ids(top))
			}
		})
	}
}

func TestSQLiteResultStore_Reopen(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	s, err := NewSQLiteResultStore(root)
	if err != nil {
		t.Fatalf("NewSQLiteResultStore() error = %v", err)
	}
	key, err := s.Save(ctx, sampleResult("persist", time.Now()))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	s.Close()

	s2, err := NewSQLiteResultStore(root)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s2.Close()

	got, err := s2.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if got.ExperimentID != "persist" {
		t.Errorf("ExperimentID = %q, want persist", got.ExperimentID)
	}
}

func ids(results []models.Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ExperimentID
	}
	return out
}
