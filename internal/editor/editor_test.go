package editor

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/juv/internal/apperr"
)

func TestArgs(t *testing.T) {
	cases := []struct {
		cmd  string
		want string
	}{
		{"vim", "vim f.md"},
		{"nvim -u NONE", "nvim -u NONE f.md"},
		{"code", "code --wait f.md"},
		{"/usr/local/bin/code-insiders", "/usr/local/bin/code-insiders --wait f.md"},
		{"code -w", "code -w f.md"},
	}
	for _, tc := range cases {
		if got := strings.Join(Args(tc.cmd, "f.md"), " "); got != tc.want {
			t.Errorf("Args(%q) = %q, want %q", tc.cmd, got, tc.want)
		}
	}
	if Args("  ", "f.md") != nil {
		t.Error("blank command should give no argv")
	}
}

// scriptEditor writes an executable standing in for an editor.
func scriptEditor(t *testing.T, body string) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	bin := filepath.Join(t.TempDir(), "fake-editor")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return bin
}

func TestEdit_ReturnsEditedText(t *testing.T) {
	bin := scriptEditor(t, `printf 'edited\n' >> "$1"`)
	e := &Editor{Command: bin}
	got, err := e.Edit(context.Background(), "original\n", ".md")
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if got != "original\nedited\n" {
		t.Errorf("got %q", got)
	}
}

func TestEdit_NonZeroExitAborts(t *testing.T) {
	bin := scriptEditor(t, `exit 1`)
	e := &Editor{Command: bin}
	_, err := e.Edit(context.Background(), "text", ".md")
	if !errors.Is(err, apperr.ErrEditorAborted) {
		t.Errorf("err = %v, want ErrEditorAborted", err)
	}
}

func TestEdit_RemovesTempFile(t *testing.T) {
	record := filepath.Join(t.TempDir(), "path")
	bin := scriptEditor(t, `printf '%s' "$1" > `+record)
	e := &Editor{Command: bin}
	if _, err := e.Edit(context.Background(), "x", ".md"); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	p, err := os.ReadFile(record)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(p), ".md") {
		t.Errorf("temp file %q lacks suffix", p)
	}
	if _, err := os.Stat(string(p)); !os.IsNotExist(err) {
		t.Errorf("temp file still exists: %v", err)
	}
}
