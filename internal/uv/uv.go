// Package uv drives the uv package manager: it resolves script
// dependencies, syncs environments and builds the command that launches a
// notebook server.
package uv

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/starford/juv/internal/apperr"
	"github.com/starford/juv/internal/proc"
)

// Client runs the uv binary.
type Client struct {
	Binary string

	// Streams for commands whose output belongs to the user.
	Stdin          io.Reader
	Stdout, Stderr io.Writer
}

// New returns a client for binary ("" means "uv").
func New(binary string) *Client {
	if binary == "" {
		binary = "uv"
	}
	return &Client{Binary: binary}
}

func (c *Client) command(dir string, args ...string) proc.Command {
	return proc.Command{Name: c.Binary, Args: args, Dir: dir}
}

// AddOptions qualify the packages passed to "uv add".
type AddOptions struct {
	Extras       []string
	Editable     bool
	Tag          string
	Branch       string
	Rev          string
	Requirements string
}

// Validate rejects more than one git ref qualifier.
func (o AddOptions) Validate() error {
	n := 0
	for _, ref := range []string{o.Tag, o.Branch, o.Rev} {
		if ref != "" {
			n++
		}
	}
	if n > 1 {
		return fmt.Errorf("uv: --tag, --branch and --rev are %w", apperr.ErrMutuallyExclusive)
	}
	return nil
}

// Args renders the options as uv flags.
func (o AddOptions) Args() []string {
	var args []string
	for _, e := range o.Extras {
		args = append(args, "--extra", e)
	}
	if o.Editable {
		args = append(args, "--editable")
	}
	switch {
	case o.Tag != "":
		args = append(args, "--tag", o.Tag)
	case o.Branch != "":
		args = append(args, "--branch", o.Branch)
	case o.Rev != "":
		args = append(args, "--rev", o.Rev)
	}
	if o.Requirements != "" {
		args = append(args, "--requirements", o.Requirements)
	}
	return args
}

// AddScript rewrites the script block of the file at script so that it
// declares packages.
func (c *Client) AddScript(ctx context.Context, script string, packages []string, opts AddOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	args := append([]string{"add", "--quiet"}, opts.Args()...)
	args = append(args, "--script", script)
	args = append(args, packages...)
	if _, err := c.command(filepath.Dir(script), args...).Output(ctx); err != nil {
		return fmt.Errorf("uv: add: %w", err)
	}
	return nil
}

// InitScript writes a fresh script block to the file at script.
func (c *Client) InitScript(ctx context.Context, script, python string) error {
	args := []string{"init", "--quiet", "--script", script}
	if python != "" {
		args = append(args, "--python", python)
	}
	if _, err := c.command(filepath.Dir(script), args...).Output(ctx); err != nil {
		return fmt.Errorf("uv: init: %w", err)
	}
	return nil
}

// SyncScript installs the dependencies of script into the environment at
// venv. A "<script>.lock" file next to script is used and updated.
func (c *Client) SyncScript(ctx context.Context, script, python, venv string) error {
	args := []string{"sync"}
	if python != "" {
		args = append(args, "--python", python)
	}
	args = append(args, "--active", "--script", script)
	cmd := c.command(filepath.Dir(script), args...)
	cmd.Env = []string{"VIRTUAL_ENV=" + venv}
	if err := cmd.Attached(ctx, nil, c.Stdout, c.Stderr); err != nil {
		return fmt.Errorf("uv: sync: %w", err)
	}
	return nil
}

// PipInstall installs packages into the environment at venv.
func (c *Client) PipInstall(ctx context.Context, venv string, packages ...string) error {
	cmd := c.command("", append([]string{"pip", "install"}, packages...)...)
	cmd.Env = []string{"VIRTUAL_ENV=" + venv}
	if err := cmd.Attached(ctx, nil, c.Stdout, c.Stderr); err != nil {
		return fmt.Errorf("uv: pip install: %w", err)
	}
	return nil
}

// Version returns the output of "uv version".
func (c *Client) Version(ctx context.Context) (string, error) {
	out, err := c.command("", "version").Output(ctx)
	if err != nil {
		return "", fmt.Errorf("uv: version: %w", err)
	}
	return out, nil
}

// Launch runs uv with args attached to the client's streams and returns
// when the process exits.
func (c *Client) Launch(ctx context.Context, args []string) error {
	return c.command("", args...).Attached(ctx, c.Stdin, c.Stdout, c.Stderr)
}

// CommandLine renders args as the command Launch would run.
func (c *Client) CommandLine(args []string) string {
	return c.command("", args...).String()
}
