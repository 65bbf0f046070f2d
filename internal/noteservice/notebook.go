package noteservice

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/starford/juv/internal/apperr"
	"github.com/starford/juv/internal/checksum"
	"github.com/starford/juv/internal/convert"
	"github.com/starford/juv/internal/inlinemeta"
	"github.com/starford/juv/internal/merge"
	"github.com/starford/juv/internal/models"
	"github.com/starford/juv/internal/stamp"
	"github.com/starford/juv/internal/uv"
)

const maxUntitled = 100

// untitled returns the first free Untitled.ipynb, Untitled1.ipynb, ...
func (s *Service) untitled() (string, error) {
	for i := 0; i < maxUntitled; i++ {
		name := "Untitled.ipynb"
		if i > 0 {
			name = fmt.Sprintf("Untitled%d.ipynb", i)
		}
		ok, err := s.store.Exists(name)
		if err != nil {
			return "", err
		}
		if !ok {
			return name, nil
		}
	}
	return "", fmt.Errorf("noteservice: no free UntitledN.ipynb name: %w", apperr.ErrAlreadyExists)
}

// Init creates a new notebook at path (or the next free Untitled name)
// with a metadata cell and an empty code cell, then adds with through the
// resolver. It returns the path written.
func (s *Service) Init(ctx context.Context, path, python string, with []string) (string, error) {
	if path == "" {
		p, err := s.untitled()
		if err != nil {
			return "", err
		}
		path = p
	}
	if err := requireNotebook(path); err != nil {
		return "", err
	}
	exists, err := s.store.Exists(path)
	if err != nil {
		return "", err
	}
	if exists {
		return "", fmt.Errorf("%s: %w", path, apperr.ErrAlreadyExists)
	}
	if python == "" {
		python = s.settings.Python
	}

	dir := filepath.Dir(path)
	nb, err := s.mutator.Init(ctx, dir, python)
	if err != nil {
		return "", err
	}
	if len(with) > 0 {
		if err := s.mutator.Add(ctx, nb, dir, with, uv.AddOptions{}); err != nil {
			return "", err
		}
	}
	if err := s.save(path, nb); err != nil {
		return "", err
	}
	s.logger.Info("noteservice: initialized", slog.String("path", path))
	return path, nil
}

// Add resolves packages into the metadata of the script or notebook at
// path. Scripts are converted; the result is always written as a notebook
// and its path returned.
func (s *Service) Add(ctx context.Context, path string, packages []string, opts uv.AddOptions) (string, error) {
	if err := opts.Validate(); err != nil {
		return "", err
	}
	nb, _, err := s.load(path)
	if err != nil {
		return "", err
	}
	if err := s.mutator.Add(ctx, nb, filepath.Dir(path), packages, opts); err != nil {
		return "", err
	}
	target := convert.NotebookPath(path)
	if err := s.save(target, nb); err != nil {
		return "", err
	}
	s.logger.Info("noteservice: dependencies added", slog.String("path", target), slog.String("packages", strings.Join(packages, ",")))
	return target, nil
}

// Stamp resolves req to a timestamp and writes it to tool.uv.exclude-newer
// of the script or notebook at path.
func (s *Service) Stamp(ctx context.Context, path string, req stamp.Request) (stamp.Action, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := checkExtension(path); err != nil {
		return nil, err
	}
	value, err := s.resolver.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	data, err := s.read(path)
	if err != nil {
		return nil, err
	}

	var action stamp.Action
	if convert.IsNotebookPath(path) {
		nb, err := models.Unmarshal(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if action, err = stamp.Notebook(nb, value); err != nil {
			return nil, err
		}
		if err := s.save(path, nb); err != nil {
			return nil, err
		}
	} else {
		text, a, err := stamp.Script(string(data), value)
		if err != nil {
			return nil, err
		}
		if err := s.store.Write(path, []byte(text)); err != nil {
			return nil, err
		}
		action = a
	}
	s.logger.Info("noteservice: stamped", slog.String("path", path), slog.String("action", action.String()))
	return action, nil
}

// EditResult reports what an edit changed.
type EditResult struct {
	Stats   merge.Stats
	Changed bool
}

// Edit opens the markdown view of the notebook at path in the editor and
// merges the result back. Nothing is written when the editor aborts, when
// the notebook is unchanged, or when the file changed on disk meanwhile.
func (s *Service) Edit(ctx context.Context, path string) (*EditResult, error) {
	if err := requireNotebook(path); err != nil {
		return nil, err
	}
	nb, original, err := s.load(path)
	if err != nil {
		return nil, err
	}

	pre, err := models.Marshal(nb)
	if err != nil {
		return nil, err
	}

	text, err := s.editor.Edit(ctx, convert.NotebookToMarkdown(nb), ".md")
	if err != nil {
		return nil, err
	}
	edited, err := convert.MarkdownToNotebook(strings.TrimSpace(text))
	if err != nil {
		return nil, err
	}
	st := merge.Notebook(nb, edited.Cells, s.settings.MinSimilarity)

	data, err := models.Marshal(nb)
	if err != nil {
		return nil, err
	}
	if !checksum.Changed(checksum.Sum(pre), data) {
		return &EditResult{Stats: st}, nil
	}

	current, err := s.read(path)
	if err != nil {
		return nil, err
	}
	if checksum.Changed(checksum.Sum(original), current) {
		return nil, fmt.Errorf("%s: %w", path, apperr.ErrConflict)
	}
	if err := s.store.Write(path, data); err != nil {
		return nil, err
	}
	s.logger.Info("noteservice: edited", slog.String("path", path),
		slog.Int("matched", st.Matched), slog.Int("created", st.Created), slog.Int("dropped", st.Dropped))
	return &EditResult{Stats: st, Changed: true}, nil
}

// Clear removes outputs and execution counts from each notebook. With
// check set nothing is written; the notebooks that have outputs are
// returned instead. Otherwise the notebooks that were changed are
// returned.
func (s *Service) Clear(_ context.Context, paths []string, check bool) ([]string, error) {
	for _, p := range paths {
		if err := requireNotebook(p); err != nil {
			return nil, err
		}
	}
	var hits []string
	for _, p := range paths {
		nb, _, err := s.load(p)
		if err != nil {
			return hits, err
		}
		if check {
			if nb.HasOutputs() {
				hits = append(hits, p)
			}
			continue
		}
		if !nb.ClearOutputs() {
			continue
		}
		if err := s.save(p, nb); err != nil {
			return hits, err
		}
		hits = append(hits, p)
	}
	return hits, nil
}

// Formats accepted by Cat.
const (
	FormatMarkdown = "md"
	FormatScript   = "script"
)

// Render converts the contents of a script or notebook named path to the
// markdown view or a percent script.
func Render(path string, data []byte, format string) (string, error) {
	nb, err := convert.FromFile(path, data)
	if err != nil {
		return "", err
	}
	switch format {
	case FormatMarkdown, "":
		return strings.TrimSpace(convert.NotebookToMarkdown(nb)), nil
	case FormatScript:
		return strings.TrimSpace(convert.NotebookToScript(nb)), nil
	default:
		return "", fmt.Errorf("noteservice: unknown format %q", format)
	}
}

// Cat renders the document at path.
func (s *Service) Cat(_ context.Context, path, format string) (string, error) {
	if err := checkExtension(path); err != nil {
		return "", err
	}
	data, err := s.read(path)
	if err != nil {
		return "", err
	}
	return Render(path, data, format)
}

// Metadata returns the decoded script block of the document at path, or
// nil when it has none.
func (s *Service) Metadata(_ context.Context, path string) (*inlinemeta.Metadata, string, error) {
	nb, _, err := s.load(path)
	if err != nil {
		return nil, "", err
	}
	content, ok, err := convert.ExtractFirstMetadata(nb)
	if err != nil || !ok {
		return nil, "", err
	}
	meta, err := inlinemeta.Unmarshal(content)
	if err != nil {
		return nil, "", err
	}
	return meta, content, nil
}
