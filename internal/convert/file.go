package convert

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/starford/juv/internal/apperr"
	"github.com/starford/juv/internal/inlinemeta"
	"github.com/starford/juv/internal/models"
)

// Supported file extensions.
const (
	ExtScript   = ".py"
	ExtNotebook = ".ipynb"
)

// FromFile builds a notebook from the contents of path, dispatching on its
// extension. Notebooks pass through unchanged apart from version checks.
func FromFile(path string, data []byte) (*models.Notebook, error) {
	switch ext := filepath.Ext(path); ext {
	case ExtScript:
		return ScriptToNotebook(string(data))
	case ExtNotebook:
		return models.Unmarshal(data)
	default:
		return nil, fmt.Errorf("%w: %q", apperr.ErrUnsupportedExtension, ext)
	}
}

// NotebookPath returns path with its extension replaced by .ipynb.
func NotebookPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ExtNotebook
}

// IsNotebookPath reports whether path names a .ipynb file.
func IsNotebookPath(path string) bool {
	return filepath.Ext(path) == ExtNotebook
}

// FindMetadataCell returns the first code cell carrying a script block,
// or nil.
func FindMetadataCell(nb *models.Notebook) *models.Cell {
	for _, c := range nb.Cells {
		if c.Type == models.CellCode && inlinemeta.Includes(c.Text()) {
			return c
		}
	}
	return nil
}

// ExtractFirstMetadata returns the decoded TOML of the first code cell whose
// source holds a script block. ok is false when no cell does.
func ExtractFirstMetadata(nb *models.Notebook) (content string, ok bool, err error) {
	c := FindMetadataCell(nb)
	if c == nil {
		return "", false, nil
	}
	return inlinemeta.Parse(c.Text())
}
