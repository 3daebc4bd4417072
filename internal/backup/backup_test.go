package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvandessel/sdrsweep/internal/models"
	"github.com/nvandessel/sdrsweep/internal/store"
)

func seededStore(t *testing.T, n int) *store.InMemoryResultStore {
	t.Helper()
	s := store.NewInMemoryResultStore()
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		res := models.NewResult(models.DefaultRequest())
		res.ExperimentID = "exp"
		res.StartTime = base.Add(time.Duration(i) * time.Minute)
		res.State = "exhausted"
		if _, err := s.Save(context.Background(), res); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}
	return s
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src := seededStore(t, 3)
	path := filepath.Join(t.TempDir(), "nested", "export.json.gz")

	header, err := ExportResults(ctx, src, path)
	if err != nil {
		t.Fatalf("ExportResults() error = %v", err)
	}
	if header.RowCount != 3 || header.Version != FormatV2 || !header.Compressed {
		t.Errorf("header = %+v", header)
	}

	dst := store.NewInMemoryResultStore()
	got, err := ImportResults(ctx, dst, path)
	if err != nil {
		t.Fatalf("ImportResults() error = %v", err)
	}
	if got.Imported != 3 || got.Skipped != 0 {
		t.Errorf("first import = %+v, want 3 imported", got)
	}

	again, err := ImportResults(ctx, dst, path)
	if err != nil {
		t.Fatalf("second ImportResults() error = %v", err)
	}
	if again.Imported != 0 || again.Skipped != 3 {
		t.Errorf("second import = %+v, want 3 skipped", again)
	}

	n, _ := dst.Count(ctx)
	if n != 3 {
		t.Errorf("Count() = %d, want 3", n)
	}
}

func TestExport_EmptyStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json.gz")
	header, err := ExportResults(context.Background(), store.NewInMemoryResultStore(), path)
	if err != nil {
		t.Fatalf("ExportResults() error = %v", err)
	}
	if header.RowCount != 0 {
		t.Errorf("RowCount = %d, want 0", header.RowCount)
	}
	if _, err := Verify(path); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestVerify_DetectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json.gz")
	if _, err := ExportResults(context.Background(), seededStore(t, 2), path); err != nil {
		t.Fatalf("ExportResults() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	data[len(data)-1] ^= 0xff
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Verify(path); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("Verify() error = %v, want ErrChecksumMismatch", err)
	}
	if _, err := ImportResults(context.Background(), store.NewInMemoryResultStore(), path); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("ImportResults() error = %v, want ErrChecksumMismatch", err)
	}
}

func TestReadHeader_RejectsOtherFormats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v1.json")
	if err := os.WriteFile(path, []byte(`{"version":1}`+"\n{}"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := ReadHeader(path); err == nil {
		t.Error("ReadHeader() accepted a version 1 file")
	}
}

func TestRotate(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"sdrsweep-results-20260101-000000.json.gz",
		"sdrsweep-results-20260102-000000.json.gz",
		"sdrsweep-results-20260103-000000.json.gz",
		"unrelated.txt",
	}
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0600); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}

	deleted, err := Rotate(dir, 2)
	if err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}
	if len(deleted) != 1 || filepath.Base(deleted[0]) != names[0] {
		t.Errorf("deleted = %v, want oldest export only", deleted)
	}
	if _, err := os.Stat(filepath.Join(dir, "unrelated.txt")); err != nil {
		t.Error("Rotate() touched a non-export file")
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"720h", 720 * time.Hour, false},
		{"30d", 30 * 24 * time.Hour, false},
		{"2w", 14 * 24 * time.Hour, false},
		{"", 0, true},
		{"5x", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDuration(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestGeneratePath(t *testing.T) {
	p := GeneratePath("/tmp/x")
	if !isExportFile(filepath.Base(p)) {
		t.Errorf("GeneratePath() = %q is not recognised as an export", p)
	}
}
