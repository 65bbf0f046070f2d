// Package testutil provides shared test helpers: a temporary workspace and
// in-process stand-ins for uv, git and the editor.
package testutil

import (
	"context"
	"errors"
	"os"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/starford/juv/internal/apperr"
	"github.com/starford/juv/internal/inlinemeta"
	"github.com/starford/juv/internal/storage"
	"github.com/starford/juv/internal/uv"
)

// TestWorkspace creates a temporary directory with a rooted storage.Provider.
func TestWorkspace(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewRootedFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// AddCall records one AddScript invocation.
type AddCall struct {
	Script   string
	Packages []string
	Opts     uv.AddOptions
}

// FakeResolver rewrites staged scripts the way uv would for plain
// requirement strings: dependencies are merged and kept sorted.
type FakeResolver struct {
	Calls []AddCall
	// Fail makes every call return a command error.
	Fail bool
	// RequiresPython is written by InitScript.
	RequiresPython string
}

func (f *FakeResolver) failure(args ...string) error {
	return &apperr.CommandError{Name: "uv", Args: args, ExitCode: 2, Stderr: "resolution failed"}
}

// AddScript implements deps.Resolver.
func (f *FakeResolver) AddScript(_ context.Context, script string, packages []string, opts uv.AddOptions) error {
	f.Calls = append(f.Calls, AddCall{Script: script, Packages: packages, Opts: opts})
	if f.Fail {
		return f.failure("add")
	}
	data, err := os.ReadFile(script)
	if err != nil {
		return err
	}
	text := string(data)
	content, ok, err := inlinemeta.Parse(text)
	if err != nil {
		return err
	}
	meta := &inlinemeta.Metadata{}
	if ok {
		if meta, err = inlinemeta.Unmarshal(content); err != nil {
			return err
		}
	}
	meta.Dependencies = mergeRequirements(meta.Dependencies, packages)

	toml, err := inlinemeta.Marshal(meta)
	if err != nil {
		return err
	}
	if ok {
		text, err = inlinemeta.Replace(text, toml)
		if err != nil {
			return err
		}
	} else {
		text = inlinemeta.Encode(toml) + "\n" + text
	}
	return os.WriteFile(script, []byte(text), 0o644)
}

// InitScript implements deps.Resolver.
func (f *FakeResolver) InitScript(_ context.Context, script, python string) error {
	if f.Fail {
		return f.failure("init")
	}
	rp := f.RequiresPython
	if python != "" {
		rp = ">=" + python
	}
	toml, err := inlinemeta.Marshal(&inlinemeta.Metadata{RequiresPython: rp})
	if err != nil {
		return err
	}
	return os.WriteFile(script, []byte(inlinemeta.Encode(toml)+"\n"), 0o644)
}

func requirementName(req string) string {
	end := strings.IndexAny(req, "<>=!~[; @")
	if end < 0 {
		end = len(req)
	}
	return strings.ToLower(req[:end])
}

// mergeRequirements replaces requirements by package name and sorts.
func mergeRequirements(existing, added []string) []string {
	byName := map[string]string{}
	for _, r := range existing {
		byName[requirementName(r)] = r
	}
	for _, r := range added {
		byName[requirementName(r)] = r
	}
	out := make([]string, 0, len(byName))
	for _, r := range byName {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// FakeGit returns fixed commit times.
type FakeGit map[string]time.Time

// CommitTime implements stamp.CommitTimer.
func (g FakeGit) CommitTime(_ context.Context, rev string) (time.Time, error) {
	t, ok := g[rev]
	if !ok {
		return time.Time{}, errors.New("fatal: bad revision '" + rev + "'")
	}
	return t, nil
}

// FakeEditor applies Fn to the text instead of opening an editor.
type FakeEditor struct {
	Fn    func(string) string
	Abort bool
	// Seen holds the text the editor was given.
	Seen string
}

// Edit implements noteservice.Editor.
func (e *FakeEditor) Edit(_ context.Context, contents, _ string) (string, error) {
	e.Seen = contents
	if e.Abort {
		return "", apperr.ErrEditorAborted
	}
	if e.Fn == nil {
		return contents, nil
	}
	return e.Fn(contents), nil
}

// SyncCall records one SyncScript invocation.
type SyncCall struct {
	Script string
	Python string
	Venv   string
	// Lock holds the lockfile present when sync started.
	Lock string
}

// FakeUV is a FakeResolver that also records syncs, installs and launches.
type FakeUV struct {
	FakeResolver
	Syncs    []SyncCall
	Installs [][]string
	Launches [][]string
	// Lockfile is written next to synced scripts as "<script>.lock".
	Lockfile string
}

// SyncScript implements noteservice.UV.
func (f *FakeUV) SyncScript(_ context.Context, script, python, venv string) error {
	prev, _ := os.ReadFile(script + ".lock")
	f.Syncs = append(f.Syncs, SyncCall{Script: script, Python: python, Venv: venv, Lock: string(prev)})
	if f.Fail {
		return f.failure("sync")
	}
	if f.Lockfile == "" {
		return nil
	}
	return os.WriteFile(script+".lock", []byte(f.Lockfile), 0o644)
}

// PipInstall implements noteservice.UV.
func (f *FakeUV) PipInstall(_ context.Context, _ string, packages ...string) error {
	f.Installs = append(f.Installs, packages)
	return nil
}

// Launch implements noteservice.UV.
func (f *FakeUV) Launch(_ context.Context, args []string) error {
	f.Launches = append(f.Launches, args)
	return nil
}

// CommandLine implements noteservice.UV.
func (f *FakeUV) CommandLine(args []string) string {
	return strings.Join(append([]string{"uv"}, args...), " ")
}
