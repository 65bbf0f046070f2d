package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func tempRoot(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewRootedFS(dir)
	if err != nil {
		t.Fatalf("NewRootedFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempRoot(t)
	content := []byte(`{"cells": []}`)
	if err := s.Write("nb.ipynb", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("nb.ipynb")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempRoot(t)
	if err := s.Write("a/b/c.py", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.py")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestWriteKeepsMode(t *testing.T) {
	s := tempRoot(t)
	p := filepath.Join(s.Root(), "run.py")
	if err := os.WriteFile(p, []byte("old"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := s.Write("run.py", []byte("new")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	info, err := os.Stat(p)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("mode = %v, want 0755", info.Mode().Perm())
	}
}

func TestExistsAndDelete(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("del.py", []byte("bye"))
	if ok, err := s.Exists("del.py"); err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}
	if err := s.Delete("del.py"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, err := s.Exists("del.py"); err != nil || ok {
		t.Errorf("Exists after delete = %v, %v", ok, err)
	}
}

func TestList(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("a.ipynb", []byte("{}"))
	_ = s.Write("sub/b.py", []byte("b"))
	_ = s.Write("readme.md", []byte("not a document"))
	_ = s.Write(".venv/lib/site.py", []byte("hidden"))

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("len = %d, want 2 (%v)", len(items), items)
	}
	for _, it := range items {
		if it.Checksum == "" {
			t.Errorf("%s: empty checksum", it.Path)
		}
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempRoot(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.py",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestUnrootedAcceptsAbsolutePaths(t *testing.T) {
	s := NewFS()
	p := filepath.Join(t.TempDir(), "x.py")
	if err := s.Write(p, []byte("x = 1")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	abs, err := s.Abs(p)
	if err != nil || abs != p {
		t.Errorf("Abs = %q, %v", abs, err)
	}
}

func TestStage(t *testing.T) {
	s := tempRoot(t)
	name, err := s.Stage("", ".py", []byte("# staged"))
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if filepath.IsAbs(name) || !strings.HasSuffix(name, ".py") {
		t.Errorf("staged name = %q", name)
	}
	got, err := s.Read(name)
	if err != nil || string(got) != "# staged" {
		t.Errorf("Read staged = %q, %v", got, err)
	}
	abs, err := s.Abs(name)
	if err != nil || !filepath.IsAbs(abs) {
		t.Errorf("Abs = %q, %v", abs, err)
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("atomic.ipynb", []byte("original"))
	if err := s.Write("atomic.ipynb", []byte("updated")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.ipynb")
	if string(got) != "updated" {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, ".juv-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewRootedFS_NonExistentDir(t *testing.T) {
	_, err := NewRootedFS("/tmp/juv-does-not-exist-" + t.Name())
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewRootedFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "juv-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewRootedFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
