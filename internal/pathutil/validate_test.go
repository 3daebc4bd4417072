package pathutil

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestValidatePath(t *testing.T) {
	allowedDir := t.TempDir()
	otherDir := t.TempDir()

	subDir := filepath.Join(allowedDir, "subdir")
	if err := os.MkdirAll(subDir, 0700); err != nil {
		t.Fatalf("failed to create subdir: %v", err)
	}

	tests := []struct {
		name        string
		path        string
		allowedDirs []string
		wantErr     bool
		errContains string
	}{
		{
			name:        "file inside allowed dir",
			path:        filepath.Join(allowedDir, "results.json.gz"),
			allowedDirs: []string{allowedDir},
		},
		{
			name:        "file in subdirectory",
			path:        filepath.Join(subDir, "results.json.gz"),
			allowedDirs: []string{allowedDir},
		},
		{
			name:        "missing intermediate directories",
			path:        filepath.Join(allowedDir, "a", "b", "results.json.gz"),
			allowedDirs: []string{allowedDir},
		},
		{
			name:        "the allowed dir itself",
			path:        allowedDir,
			allowedDirs: []string{allowedDir},
		},
		{
			name:        "second allowed dir",
			path:        filepath.Join(otherDir, "results.json.gz"),
			allowedDirs: []string{allowedDir, otherDir},
		},
		{
			name:        "dot-dot traversal",
			path:        filepath.Join(allowedDir, "..", "etc", "passwd"),
			allowedDirs: []string{allowedDir},
			wantErr:     true,
			errContains: "outside allowed directories",
		},
		{
			name:        "outside every allowed dir",
			path:        filepath.Join(otherDir, "results.json.gz"),
			allowedDirs: []string{allowedDir},
			wantErr:     true,
			errContains: "outside allowed directories",
		},
		{
			name:        "sibling with shared prefix",
			path:        allowedDir + "-evil/results.json.gz",
			allowedDirs: []string{allowedDir},
			wantErr:     true,
			errContains: "outside allowed directories",
		},
		{
			name:        "empty path",
			path:        "",
			allowedDirs: []string{allowedDir},
			wantErr:     true,
			errContains: "path is empty",
		},
		{
			name:        "no allowed dirs",
			path:        filepath.Join(allowedDir, "x"),
			wantErr:     true,
			errContains: "no allowed directories",
		},
		{
			name:        "null byte",
			path:        allowedDir + "/x\x00.json",
			allowedDirs: []string{allowedDir},
			wantErr:     true,
			errContains: "null byte",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path, tt.allowedDirs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidatePath() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("error %q does not contain %q", err, tt.errContains)
			}
		})
	}
}

func TestValidatePath_OutsideIsSentinel(t *testing.T) {
	err := ValidatePath(filepath.Join(t.TempDir(), "x"), []string{t.TempDir()})
	if !errors.Is(err, ErrOutsideAllowed) {
		t.Errorf("error = %v, want ErrOutsideAllowed", err)
	}
}

func TestValidatePath_Symlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}

	allowedDir := t.TempDir()
	outsideDir := t.TempDir()
	insideDir := filepath.Join(allowedDir, "real")
	if err := os.MkdirAll(insideDir, 0700); err != nil {
		t.Fatal(err)
	}

	escape := filepath.Join(allowedDir, "escape")
	if err := os.Symlink(outsideDir, escape); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	if err := ValidatePath(filepath.Join(escape, "results.json.gz"), []string{allowedDir}); err == nil {
		t.Error("symlink pointing outside the allowed dir was accepted")
	}

	alias := filepath.Join(allowedDir, "alias")
	if err := os.Symlink(insideDir, alias); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	if err := ValidatePath(filepath.Join(alias, "results.json.gz"), []string{allowedDir}); err != nil {
		t.Errorf("symlink staying inside the allowed dir was rejected: %v", err)
	}
}

func TestRedactPath(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"simple", "/home/user/.sdrsweep/config.yaml", ".../.sdrsweep/config.yaml"},
		{"deep", "/a/b/c/d/e.txt", ".../d/e.txt"},
		{"root file", "/file.txt", "file.txt"},
		{"relative", "dir/file.txt", ".../dir/file.txt"},
		{"just filename", "file.txt", "file.txt"},
		{"trailing slash cleaned", "/home/user/.sdrsweep/", ".../user/.sdrsweep"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RedactPath(tt.input); got != tt.want {
				t.Errorf("RedactPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestAllowedExportDirs(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	dirs, err := AllowedExportDirs("")
	if err != nil {
		t.Fatalf("AllowedExportDirs() error = %v", err)
	}
	if len(dirs) != 1 || dirs[0] != filepath.Join(homeDir, ".sdrsweep", "exports") {
		t.Errorf("dirs = %v", dirs)
	}

	root := t.TempDir()
	dirs, err = AllowedExportDirs(root)
	if err != nil {
		t.Fatalf("AllowedExportDirs() error = %v", err)
	}
	want := filepath.Join(root, ".sdrsweep", "exports")
	if len(dirs) != 2 || dirs[1] != want {
		t.Errorf("dirs = %v, want second entry %s", dirs, want)
	}
}
