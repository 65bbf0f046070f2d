// Package storage defines the document file-system abstraction.
package storage

import "github.com/starford/juv/internal/models"

// Provider is the interface for script and notebook file operations.
type Provider interface {
	// List returns info for every .py and .ipynb file under dir.
	List(dir string) ([]models.DocumentInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Exists reports whether path exists.
	Exists(path string) (bool, error)
	// Delete removes the file at path.
	Delete(path string) error
	// Stage writes content to a new temporary file in dir whose name ends
	// with suffix and returns its path. The caller removes it.
	Stage(dir, suffix string, content []byte) (string, error)
	// Abs returns the absolute file-system path for path, for handing to
	// external processes.
	Abs(path string) (string, error)
}
