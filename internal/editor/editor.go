// Package editor hands text to an interactive editor and reads it back.
package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/juv/internal/apperr"
	"github.com/starford/juv/internal/proc"
)

// Editor runs a terminal or GUI editor on a temporary file.
type Editor struct {
	// Command is the editor program, optionally followed by arguments.
	Command string

	Stdin          io.Reader
	Stdout, Stderr io.Writer
}

// New returns an editor attached to the process's terminal.
func New(command string) *Editor {
	return &Editor{Command: command, Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Args returns the argv used to open path. VS Code style editors are
// told to block until the file is closed.
func Args(command, path string) []string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil
	}
	name := strings.ToLower(filepath.Base(fields[0]))
	if strings.Contains(name, "code") && !hasWait(fields[1:]) {
		fields = append(fields, "--wait")
	}
	return append(fields, path)
}

func hasWait(args []string) bool {
	for _, a := range args {
		if a == "--wait" || a == "-w" {
			return true
		}
	}
	return false
}

// Edit writes contents to a temporary file with the given suffix, opens
// it, and returns the text left in it once the editor exits. A non-zero
// exit is reported as apperr.ErrEditorAborted. The file is always removed.
func (e *Editor) Edit(ctx context.Context, contents, suffix string) (string, error) {
	f, err := os.CreateTemp("", "juv-edit-*"+suffix)
	if err != nil {
		return "", fmt.Errorf("editor: create temp: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.WriteString(contents); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("editor: write temp: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("editor: close temp: %w", err)
	}

	argv := Args(e.Command, path)
	if argv == nil {
		return "", fmt.Errorf("editor: no editor configured")
	}
	cmd := proc.Command{Name: argv[0], Args: argv[1:]}
	if err := cmd.Attached(ctx, e.Stdin, e.Stdout, e.Stderr); err != nil {
		var ce *apperr.CommandError
		if errors.As(err, &ce) {
			return "", fmt.Errorf("%w: exited with code %d", apperr.ErrEditorAborted, ce.ExitCode)
		}
		return "", fmt.Errorf("editor: %w", err)
	}

	out, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("editor: read back: %w", err)
	}
	return string(out), nil
}
