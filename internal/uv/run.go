package uv

import (
	"fmt"
	"strings"

	"github.com/starford/juv/internal/apperr"
	"github.com/starford/juv/internal/inlinemeta"
)

// Jupyter front ends a notebook can be launched in.
const (
	KindLab       = "lab"
	KindNotebook  = "notebook"
	KindNBClassic = "nbclassic"
)

var packages = map[string]string{
	KindLab:       "jupyterlab",
	KindNotebook:  "notebook",
	KindNBClassic: "nbclassic",
}

// Runtime is a front end plus an optional pinned version.
type Runtime struct {
	Kind    string
	Version string
}

// ParseRuntime reads "kind" or "kind@version".
func ParseRuntime(spec string) (Runtime, error) {
	kind, version, pinned := strings.Cut(spec, "@")
	if _, ok := packages[kind]; !ok || (pinned && (version == "" || strings.Contains(version, "@"))) {
		return Runtime{}, fmt.Errorf("uv: %w: %q", apperr.ErrInvalidRuntime, spec)
	}
	return Runtime{Kind: kind, Version: version}, nil
}

// Package returns the requirement that provides the front end.
func (r Runtime) Package() string {
	p := packages[r.Kind]
	if r.Version != "" {
		p += "==" + r.Version
	}
	return p
}

func (r Runtime) String() string {
	if r.Version == "" {
		return r.Kind
	}
	return r.Kind + "@" + r.Version
}

// RunOptions are the user's flags for launching a notebook.
type RunOptions struct {
	Python    string
	With      []string
	NoCache   bool
	NoProject bool
}

// RunArgs builds the "uv tool run" arguments that start jupyter on target
// in an isolated environment holding the notebook's dependencies. An
// explicit Python request wins over requires-python.
func RunArgs(target string, rt Runtime, meta *inlinemeta.Metadata, opts RunOptions) []string {
	if meta == nil {
		meta = &inlinemeta.Metadata{}
	}
	python := opts.Python
	if python == "" {
		python = meta.RequiresPython
	}

	args := []string{"tool", "run", "--isolated"}
	if opts.NoProject {
		args = append(args, "--no-project")
	}
	if opts.NoCache {
		args = append(args, "--no-cache")
	}
	if python != "" {
		args = append(args, "--python="+python)
	}
	args = append(args, "--with=setuptools,"+rt.Package())
	if len(meta.Dependencies) > 0 {
		args = append(args, "--with="+strings.Join(meta.Dependencies, ","))
	}
	if len(opts.With) > 0 {
		args = append(args, "--with="+strings.Join(opts.With, ","))
	}
	return append(args, "jupyter", rt.Kind, target)
}
