// Package deps adds dependencies to a notebook's script block by staging
// the metadata cell as a script and letting the resolver rewrite it.
package deps

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/juv/internal/convert"
	"github.com/starford/juv/internal/models"
	"github.com/starford/juv/internal/storage"
	"github.com/starford/juv/internal/uv"
)

// Resolver rewrites the script block of a file on disk.
type Resolver interface {
	AddScript(ctx context.Context, script string, packages []string, opts uv.AddOptions) error
	InitScript(ctx context.Context, script, python string) error
}

// Mutator edits metadata cells through a Resolver.
type Mutator struct {
	store    storage.Provider
	resolver Resolver
}

// New creates a Mutator that stages files in store.
func New(store storage.Provider, resolver Resolver) *Mutator {
	return &Mutator{store: store, resolver: resolver}
}

// Staged writes content to a temporary script in dir, passes its store
// name and absolute path to fn, and returns what fn left in the file,
// trimmed. The file is removed on every path.
func Staged(store storage.Provider, dir, content string, fn func(name, abs string) error) (string, error) {
	name, err := store.Stage(dir, convert.ExtScript, []byte(content))
	if err != nil {
		return "", fmt.Errorf("deps: %w", err)
	}
	defer func() {
		if err := store.Delete(name); err != nil {
			slog.Warn("deps: remove staged script", slog.String("path", name), slog.String("error", err.Error()))
		}
	}()

	abs, err := store.Abs(name)
	if err != nil {
		return "", fmt.Errorf("deps: %w", err)
	}
	if err := fn(name, abs); err != nil {
		return "", err
	}
	out, err := store.Read(name)
	if err != nil {
		return "", fmt.Errorf("deps: read staged script: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Add resolves packages into the metadata cell of nb. dir is where the
// script is staged, normally the notebook's directory. When nb has no
// metadata cell a hidden one is inserted first. nb is only changed when
// the resolver succeeds.
func (m *Mutator) Add(ctx context.Context, nb *models.Notebook, dir string, packages []string, opts uv.AddOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	cell := convert.FindMetadataCell(nb)
	current := ""
	if cell != nil {
		current = strings.TrimSpace(cell.Text())
	}

	updated, err := Staged(m.store, dir, current, func(_, abs string) error {
		return m.resolver.AddScript(ctx, abs, packages, opts)
	})
	if err != nil {
		return err
	}

	if cell == nil {
		cell = models.NewCodeCell("", true)
		nb.Cells = append([]*models.Cell{cell}, nb.Cells...)
	}
	cell.SetText(updated)
	slog.Debug("deps: metadata updated", slog.String("cell", cell.ID), slog.Int("packages", len(packages)))
	return nil
}

// Init returns a notebook holding a hidden metadata cell produced by the
// resolver's init and an empty code cell.
func (m *Mutator) Init(ctx context.Context, dir, python string) (*models.Notebook, error) {
	meta, err := Staged(m.store, dir, "", func(_, abs string) error {
		return m.resolver.InitScript(ctx, abs, python)
	})
	if err != nil {
		return nil, err
	}
	return models.NewNotebook(
		models.NewCodeCell(meta, true),
		models.NewCodeCell("", false),
	), nil
}
