// Package noteservice implements juv's commands on top of the notebook
// model: it loads a script or notebook from storage, applies one
// operation in memory and writes the result back only when it succeeded.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/starford/juv/internal/apperr"
	"github.com/starford/juv/internal/convert"
	"github.com/starford/juv/internal/deps"
	"github.com/starford/juv/internal/models"
	"github.com/starford/juv/internal/stamp"
	"github.com/starford/juv/internal/storage"
)

// UV is the package manager collaborator.
type UV interface {
	deps.Resolver
	SyncScript(ctx context.Context, script, python, venv string) error
	PipInstall(ctx context.Context, venv string, packages ...string) error
	Launch(ctx context.Context, args []string) error
	CommandLine(args []string) string
}

// Editor lets the user change text interactively.
type Editor interface {
	Edit(ctx context.Context, contents, suffix string) (string, error)
}

// Collaborators are the external programs the service drives.
type Collaborators struct {
	UV     UV
	Git    stamp.CommitTimer
	Editor Editor
}

// Settings are resolved configuration values.
type Settings struct {
	// MinSimilarity is the merge threshold for edited cells. Zero lets
	// any cell with a positive score keep its identity.
	MinSimilarity float64
	// Location is used for "now" and plain dates when stamping.
	Location *time.Location
	// Python is the default interpreter request.
	Python string
	// Jupyter is the default runtime specifier.
	Jupyter string
	// Now overrides the clock.
	Now    func() time.Time
	Logger *slog.Logger
}

// Service coordinates storage and the notebook transformations.
type Service struct {
	store    storage.Provider
	uv       UV
	editor   Editor
	mutator  *deps.Mutator
	resolver *stamp.Resolver
	settings Settings
	logger   *slog.Logger
}

// NewService creates a new notebook service.
func NewService(store storage.Provider, c Collaborators, s Settings) *Service {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		uv:       c.UV,
		editor:   c.Editor,
		mutator:  deps.New(store, c.UV),
		resolver: &stamp.Resolver{Location: s.Location, Now: s.Now, Git: c.Git},
		settings: s,
		logger:   logger,
	}
}

func (s *Service) read(path string) ([]byte, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, apperr.ErrNotFound)
		}
		return nil, err
	}
	return data, nil
}

// load reads path and converts it to a notebook.
func (s *Service) load(path string) (*models.Notebook, []byte, error) {
	if err := checkExtension(path); err != nil {
		return nil, nil, err
	}
	data, err := s.read(path)
	if err != nil {
		return nil, nil, err
	}
	nb, err := convert.FromFile(path, data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return nb, data, nil
}

func (s *Service) save(path string, nb *models.Notebook) error {
	data, err := models.Marshal(nb)
	if err != nil {
		return err
	}
	if err := s.store.Write(path, data); err != nil {
		return err
	}
	s.logger.Debug("noteservice: saved", slog.String("path", path), slog.Int("cells", len(nb.Cells)))
	return nil
}

func checkExtension(path string) error {
	switch ext := filepath.Ext(path); ext {
	case convert.ExtScript, convert.ExtNotebook:
		return nil
	default:
		return fmt.Errorf("%w: %q", apperr.ErrUnsupportedExtension, ext)
	}
}

func requireNotebook(path string) error {
	if !convert.IsNotebookPath(path) {
		return fmt.Errorf("%s: %w", path, apperr.ErrNotNotebook)
	}
	return nil
}
