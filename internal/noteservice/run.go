package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/juv/internal/convert"
	"github.com/starford/juv/internal/deps"
	"github.com/starford/juv/internal/inlinemeta"
	"github.com/starford/juv/internal/models"
	"github.com/starford/juv/internal/uv"
)

// RunRequest describes how to launch a notebook.
type RunRequest struct {
	// Jupyter is the runtime specifier; "" uses the configured default.
	Jupyter string
	uv.RunOptions
	// DryRun builds the command without writing or launching anything.
	DryRun bool
}

// RunPlan is what Run did or, for a dry run, would do.
type RunPlan struct {
	Target    string
	Converted bool
	Runtime   uv.Runtime
	Args      []string
	Command   string
}

// Run launches jupyter on the document at path in an isolated
// environment built from its metadata. Scripts are first converted to a
// notebook next to them. Run blocks until the server exits.
func (s *Service) Run(ctx context.Context, path string, req RunRequest) (*RunPlan, error) {
	spec := req.Jupyter
	if spec == "" {
		spec = s.settings.Jupyter
	}
	if spec == "" {
		spec = uv.KindLab
	}
	rt, err := uv.ParseRuntime(spec)
	if err != nil {
		return nil, err
	}

	nb, _, err := s.load(path)
	if err != nil {
		return nil, err
	}

	plan := &RunPlan{Target: path, Runtime: rt}
	if !convert.IsNotebookPath(path) {
		plan.Target = convert.NotebookPath(path)
		plan.Converted = true
		if !req.DryRun {
			if err := s.save(plan.Target, nb); err != nil {
				return nil, err
			}
		}
	}

	meta, err := notebookMetadata(nb)
	if err != nil {
		return nil, err
	}
	opts := req.RunOptions
	if opts.Python == "" {
		opts.Python = s.settings.Python
	}
	plan.Args = uv.RunArgs(plan.Target, rt, meta, opts)
	plan.Command = s.uv.CommandLine(plan.Args)

	if req.DryRun {
		return plan, nil
	}
	s.logger.Info("noteservice: launching", slog.String("path", plan.Target), slog.String("runtime", rt.String()))
	if err := s.uv.Launch(ctx, plan.Args); err != nil {
		return plan, err
	}
	return plan, nil
}

func notebookMetadata(nb *models.Notebook) (*inlinemeta.Metadata, error) {
	content, ok, err := convert.ExtractFirstMetadata(nb)
	if err != nil || !ok {
		return nil, err
	}
	return inlinemeta.Unmarshal(content)
}

// VenvRequest describes the environment to sync.
type VenvRequest struct {
	Python string
	// Path is the environment directory; "" means ".venv".
	Path     string
	NoKernel bool
}

// Venv syncs a virtual environment with the dependencies of the document
// at path. Scripts are synced directly. For notebooks the metadata cell is
// staged as a script together with the lockfile stored in the notebook,
// and the refreshed lockfile is written back into the notebook.
// ipykernel is installed unless NoKernel is set. It returns the absolute
// environment path.
func (s *Service) Venv(ctx context.Context, path string, req VenvRequest) (string, error) {
	if err := checkExtension(path); err != nil {
		return "", err
	}
	envPath := req.Path
	if envPath == "" {
		envPath = ".venv"
	}
	venv, err := filepath.Abs(envPath)
	if err != nil {
		return "", err
	}
	python := req.Python
	if python == "" {
		python = s.settings.Python
	}

	if convert.IsNotebookPath(path) {
		if err := s.syncNotebook(ctx, path, python, venv); err != nil {
			return "", err
		}
	} else {
		if _, err := s.read(path); err != nil {
			return "", err
		}
		abs, err := s.store.Abs(path)
		if err != nil {
			return "", err
		}
		if err := s.uv.SyncScript(ctx, abs, python, venv); err != nil {
			return "", err
		}
	}

	if !req.NoKernel {
		if err := s.uv.PipInstall(ctx, venv, "ipykernel"); err != nil {
			return "", err
		}
	}
	return venv, nil
}

func (s *Service) syncNotebook(ctx context.Context, path, python, venv string) error {
	nb, _, err := s.load(path)
	if err != nil {
		return err
	}
	source := ""
	if cell := convert.FindMetadataCell(nb); cell != nil {
		source = strings.TrimSpace(cell.Text())
	}

	var lockfile string
	_, err = deps.Staged(s.store, filepath.Dir(path), source, func(name, abs string) error {
		lockName := name + ".lock"
		defer func() {
			if err := s.store.Delete(lockName); err != nil && !errors.Is(err, os.ErrNotExist) {
				s.logger.Warn("noteservice: remove staged lockfile", slog.String("path", lockName), slog.String("error", err.Error()))
			}
		}()
		if previous := nb.Lockfile(); previous != "" {
			if err := s.store.Write(lockName, []byte(previous)); err != nil {
				return fmt.Errorf("noteservice: stage lockfile: %w", err)
			}
		}
		if err := s.uv.SyncScript(ctx, abs, python, venv); err != nil {
			return err
		}
		data, err := s.store.Read(lockName)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		lockfile = string(data)
		return nil
	})
	if err != nil {
		return err
	}
	if lockfile == "" || lockfile == nb.Lockfile() {
		return nil
	}
	nb.SetLockfile(lockfile)
	return s.save(path, nb)
}
