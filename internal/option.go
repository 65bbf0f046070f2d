package internal

import (
	"io"

	"github.com/starford/juv/internal/noteservice"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	verbose bool
	root    string
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	collab  *noteservice.Collaborators
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithVerbose forces debug logging.
func WithVerbose(v bool) Option {
	return func(a *application) {
		a.verbose = v
	}
}

// WithRoot confines every path to dir.
func WithRoot(dir string) Option {
	return func(a *application) {
		a.root = dir
	}
}

// WithStreams replaces the process's standard streams.
func WithStreams(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(a *application) {
		a.stdin = stdin
		a.stdout = stdout
		a.stderr = stderr
	}
}

// WithCollaborators replaces the uv, git and editor clients built from
// the configuration.
func WithCollaborators(c noteservice.Collaborators) Option {
	return func(a *application) {
		a.collab = &c
	}
}
