// Package apperr defines the error taxonomy shared by juv components.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrAlreadyExists        = errors.New("already exists")
	ErrConflict             = errors.New("file changed on disk")
	ErrMultipleBlocks       = errors.New("multiple script blocks found")
	ErrNoMetadata           = errors.New("no metadata block found")
	ErrInvalidTOML          = errors.New("no TOML metadata found")
	ErrUnsupportedExtension = errors.New("unsupported file extension")
	ErrNotNotebook          = errors.New("file must have a .ipynb extension")
	ErrEditorAborted        = errors.New("editor aborted")
	ErrMutuallyExclusive    = errors.New("options are mutually exclusive")
	ErrInvalidRuntime       = errors.New("invalid runtime specifier")
	ErrInvalidTimestamp     = errors.New("could not be parsed as a valid date")
	ErrCommandFailed        = errors.New("external command failed")
)

// CommandError reports a failed external process. It matches ErrCommandFailed
// under errors.Is.
type CommandError struct {
	Name     string
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Name, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// Is lets errors.Is(err, ErrCommandFailed) succeed.
func (e *CommandError) Is(target error) bool {
	return target == ErrCommandFailed
}
