package scanner

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/panbanda/tsqlgraph/pkg/config"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create file %s: %v", name, err)
		}
	}
}

func relSet(t *testing.T, root string, files []string) map[string]bool {
	t.Helper()
	found := make(map[string]bool)
	for _, f := range files {
		rel, err := filepath.Rel(root, f)
		if err != nil {
			t.Fatalf("Rel(%s): %v", f, err)
		}
		found[filepath.ToSlash(rel)] = true
	}
	return found
}

func TestNewScanner(t *testing.T) {
	s := NewScanner(nil)
	if s == nil {
		t.Fatal("NewScanner(nil) returned nil")
	}
	if s.config == nil {
		t.Error("scanner.config should not be nil when passing nil")
	}

	cfg := config.DefaultConfig()
	s = NewScanner(cfg)
	if s.config != cfg {
		t.Error("scanner.config should be the provided config")
	}
}

func TestIsSource(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"proc.sql", true},
		{"PROC.SQL", true},
		{"dir/fn.udf", true},
		{"x.prc", true},
		{"x.tsql", true},
		{"main.go", false},
		{"README", false},
	}
	for _, tt := range tests {
		if got := IsSource(tt.path); got != tt.want {
			t.Errorf("IsSource(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestScanDir(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"usp_a.sql":        "CREATE PROCEDURE dbo.usp_a AS SELECT 1",
		"funcs/fn_b.udf":   "CREATE FUNCTION dbo.fn_b() RETURNS INT AS BEGIN RETURN 1 END",
		"notes.txt":        "not sql",
		"deep/er/usp_c.sql": "SELECT 1",
	})

	s := NewScanner(nil)
	result, err := s.ScanDir(tmpDir)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}

	found := relSet(t, tmpDir, result)
	if len(result) != 3 {
		t.Errorf("ScanDir() found %d files, want 3: %v", len(result), result)
	}
	for _, name := range []string{"usp_a.sql", "funcs/fn_b.udf", "deep/er/usp_c.sql"} {
		if !found[name] {
			t.Errorf("File %s was not found", name)
		}
	}
}

func TestScanDirExcludesDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"vendor/x.sql":       "SELECT 1",
		"node_modules/y.sql": "SELECT 1",
		"sub/bin/z.sql":      "SELECT 1",
		"main.sql":           "SELECT 1",
	})

	s := NewScanner(nil)
	result, err := s.ScanDir(tmpDir)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}
	if len(result) != 1 || !strings.HasSuffix(result[0], "main.sql") {
		t.Errorf("ScanDir() = %v, want only main.sql", result)
	}
}

func TestScanDirExcludesPatterns(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"main.sql":           "SELECT 1",
		"schema.generated.sql": "SELECT 1",
	})

	s := NewScanner(nil)
	result, err := s.ScanDir(tmpDir)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}
	if len(result) != 1 {
		t.Errorf("ScanDir() found %d files, want 1: %v", len(result), result)
	}
}

func TestScanDirWithGitignore(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		".gitignore":       "skipme/\nscratch_*.sql\n",
		"main.sql":         "SELECT 1",
		"skipme/skip.sql":  "SELECT 1",
		"scratch_1.sql":    "SELECT 1",
		"src/app.sql":      "SELECT 1",
	})
	if err := os.Mkdir(filepath.Join(tmpDir, ".git"), 0755); err != nil {
		t.Fatalf("Failed to create .git dir: %v", err)
	}

	s := NewScanner(nil)
	result, err := s.ScanDir(tmpDir)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}

	found := relSet(t, tmpDir, result)
	if !found["main.sql"] || !found["src/app.sql"] {
		t.Errorf("Should find main.sql and src/app.sql, got %v", result)
	}
	if found["skipme/skip.sql"] || found["scratch_1.sql"] {
		t.Errorf("Ignored files were returned: %v", result)
	}
}

func TestScanDirDisabledGitignore(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		".gitignore":      "skipme/\n",
		"main.sql":        "SELECT 1",
		"skipme/skip.sql": "SELECT 1",
	})

	cfg := config.DefaultConfig()
	cfg.Exclude.Gitignore = false

	result, err := NewScanner(cfg).ScanDir(tmpDir)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}
	if len(result) != 2 {
		t.Errorf("ScanDir() found %d files, want 2 with gitignore disabled", len(result))
	}
}

func TestScanDirEmptyDirectory(t *testing.T) {
	result, err := NewScanner(nil).ScanDir(t.TempDir())
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("ScanDir() on empty dir found %d files", len(result))
	}
}

func TestExpand(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"dir/a.sql":  "SELECT 1",
		"dir/b.sql":  "SELECT 1",
		"single.txt": "SELECT 1",
	})
	dir := filepath.Join(tmpDir, "dir")
	single := filepath.Join(tmpDir, "single.txt")
	a := filepath.Join(dir, "a.sql")

	got, err := NewScanner(nil).Expand([]string{a, dir, "-", single})
	if err != nil {
		t.Fatalf("Expand() error: %v", err)
	}
	want := []string{a, filepath.Join(dir, "b.sql"), "-", single}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Expand() = %v, want %v", got, want)
	}
}

func TestExpandMissingPath(t *testing.T) {
	if _, err := NewScanner(nil).Expand([]string{"/nonexistent/x.sql"}); err == nil {
		t.Error("Expand() should fail for a missing path")
	}
}

func TestIsWithinRoot(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		path string
		root string
		want bool
	}{
		{"same path", tmpDir, tmpDir, true},
		{"child path", filepath.Join(tmpDir, "subdir", "file.sql"), tmpDir, true},
		{"path outside root", "/some/other/path", tmpDir, false},
		{"parent path", filepath.Dir(tmpDir), tmpDir, false},
		{"similar prefix but different dir", tmpDir + "2/file.sql", tmpDir, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isWithinRoot(tt.path, tt.root); got != tt.want {
				t.Errorf("isWithinRoot(%q, %q) = %v, want %v", tt.path, tt.root, got, tt.want)
			}
		})
	}
}

func TestFindGitRoot(t *testing.T) {
	tmpDir := t.TempDir()
	if result := findGitRoot(tmpDir); result != "" {
		t.Errorf("findGitRoot() on non-git dir should return empty string, got %q", result)
	}

	if err := os.Mkdir(filepath.Join(tmpDir, ".git"), 0755); err != nil {
		t.Fatalf("Failed to create .git dir: %v", err)
	}
	if result := findGitRoot(tmpDir); result != tmpDir {
		t.Errorf("findGitRoot() should return %q, got %q", tmpDir, result)
	}

	subDir := filepath.Join(tmpDir, "src", "pkg")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatalf("Failed to create subdir: %v", err)
	}
	if result := findGitRoot(subDir); result != tmpDir {
		t.Errorf("findGitRoot() from subdir should return %q, got %q", tmpDir, result)
	}
}

func TestScanDirWithSymlinkDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{"real/file.sql": "SELECT 1"})

	outsideDir := t.TempDir()
	writeFiles(t, outsideDir, map[string]string{"outside.sql": "SELECT 1"})

	if err := os.Symlink(outsideDir, filepath.Join(tmpDir, "linked")); err != nil {
		t.Skip("Symlinks not supported on this system")
	}

	result, err := NewScanner(nil).ScanDir(tmpDir)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}
	for _, f := range result {
		if strings.Contains(f, "outside.sql") {
			t.Error("ScanDir() should not follow symlinks outside the root")
		}
	}
}
