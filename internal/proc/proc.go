// Package proc runs external programs and reports failures as
// *apperr.CommandError.
package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/starford/juv/internal/apperr"
)

// Command describes one invocation of an external program.
type Command struct {
	Name string
	Args []string
	Dir  string   // "" is the current directory
	Env  []string // added to the inherited environment
}

func (c Command) build(ctx context.Context) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(cmd.Environ(), c.Env...)
	}
	return cmd
}

// String renders the command line for logs and dry runs.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Output runs the command and returns its trimmed stdout.
func (c Command) Output(ctx context.Context) (string, error) {
	cmd := c.build(ctx)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("proc: run", slog.String("cmd", c.String()), slog.String("dir", c.Dir))
	if err := cmd.Run(); err != nil {
		return "", c.wrap(stderr.String(), err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Attached runs the command with the given streams. Any of them may be nil.
func (c Command) Attached(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := c.build(ctx)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	slog.Debug("proc: run attached", slog.String("cmd", c.String()))
	if err := cmd.Run(); err != nil {
		return c.wrap("", err)
	}
	return nil
}

// Output is shorthand for Command{Name: name, Args: args, Dir: dir}.Output.
func Output(ctx context.Context, dir, name string, args ...string) (string, error) {
	return Command{Name: name, Args: args, Dir: dir}.Output(ctx)
}

func (c Command) wrap(stderr string, err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &apperr.CommandError{
			Name:     c.Name,
			Args:     c.Args,
			ExitCode: exitErr.ExitCode(),
			Stderr:   stderr,
		}
	}
	return fmt.Errorf("proc: %s: %w", c.Name, err)
}
