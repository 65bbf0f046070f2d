// Package models defines the notebook document types shared by juv.
package models

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// Format version written on every save.
const (
	FormatMajor = 4
	FormatMinor = 5
)

// CellType is the kind of a notebook cell.
type CellType string

// Supported cell types.
const (
	CellCode     CellType = "code"
	CellMarkdown CellType = "markdown"
	CellRaw      CellType = "raw"
)

// Valid reports whether t is a known cell type.
func (t CellType) Valid() bool {
	switch t {
	case CellCode, CellMarkdown, CellRaw:
		return true
	}
	return false
}

// Source is cell text stored as lines, each keeping its trailing newline
// except possibly the last.
type Source []string

// NewSource splits text into Source lines.
func NewSource(text string) Source {
	if text == "" {
		return Source{}
	}
	out := Source{}
	for text != "" {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			out = append(out, text)
			break
		}
		out = append(out, text[:i+1])
		text = text[i+1:]
	}
	return out
}

// String joins the lines back into one text.
func (s Source) String() string {
	return strings.Join(s, "")
}

// UnmarshalJSON accepts both the list form and the single-string form.
func (s *Source) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*s = NewSource(text)
		return nil
	}
	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return err
	}
	*s = Source(lines)
	return nil
}

// Cell is one notebook cell.
type Cell struct {
	ID             string
	Type           CellType
	Source         Source
	Metadata       map[string]any
	Outputs        []json.RawMessage
	ExecutionCount *int
	// Attachments is kept verbatim for markdown and raw cells.
	Attachments json.RawMessage
}

// NewCellID returns a fresh cell identifier.
func NewCellID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// NewCodeCell builds a code cell. Hidden cells get jupyter.source_hidden.
func NewCodeCell(source string, hidden bool) *Cell {
	md := map[string]any{}
	if hidden {
		md["jupyter"] = map[string]any{"source_hidden": true}
	}
	return &Cell{
		ID:       NewCellID(),
		Type:     CellCode,
		Source:   NewSource(source),
		Metadata: md,
		Outputs:  []json.RawMessage{},
	}
}

// NewMarkdownCell builds a markdown cell.
func NewMarkdownCell(source string) *Cell {
	return &Cell{
		ID:       NewCellID(),
		Type:     CellMarkdown,
		Source:   NewSource(source),
		Metadata: map[string]any{},
	}
}

// NewRawCell builds a raw cell.
func NewRawCell(source string) *Cell {
	return &Cell{
		ID:       NewCellID(),
		Type:     CellRaw,
		Source:   NewSource(source),
		Metadata: map[string]any{},
	}
}

// Text returns the cell source as one string.
func (c *Cell) Text() string {
	return c.Source.String()
}

// SetText replaces the cell source.
func (c *Cell) SetText(text string) {
	c.Source = NewSource(text)
}

// Hidden reports the jupyter.source_hidden flag.
func (c *Cell) Hidden() bool {
	j, ok := c.Metadata["jupyter"].(map[string]any)
	if !ok {
		return false
	}
	h, _ := j["source_hidden"].(bool)
	return h
}

// HasOutputs reports whether a code cell carries outputs or an execution count.
func (c *Cell) HasOutputs() bool {
	return c.Type == CellCode && (len(c.Outputs) > 0 || c.ExecutionCount != nil)
}

// ClearOutputs drops outputs and the execution count. It reports whether
// anything changed.
func (c *Cell) ClearOutputs() bool {
	if !c.HasOutputs() {
		return false
	}
	c.Outputs = []json.RawMessage{}
	c.ExecutionCount = nil
	return true
}

// Notebook is an ordered list of cells plus document metadata.
type Notebook struct {
	Cells         []*Cell
	Metadata      map[string]any
	NBFormat      int
	NBFormatMinor int
}

// NewNotebook returns a notebook at the current format version.
func NewNotebook(cells ...*Cell) *Notebook {
	if cells == nil {
		cells = []*Cell{}
	}
	return &Notebook{
		Cells:         cells,
		Metadata:      map[string]any{},
		NBFormat:      FormatMajor,
		NBFormatMinor: FormatMinor,
	}
}

// Normalize sets the format version and gives every cell a unique id.
func (nb *Notebook) Normalize() {
	nb.NBFormat = FormatMajor
	nb.NBFormatMinor = FormatMinor
	if nb.Metadata == nil {
		nb.Metadata = map[string]any{}
	}
	seen := make(map[string]struct{}, len(nb.Cells))
	for _, c := range nb.Cells {
		if _, dup := seen[c.ID]; c.ID == "" || dup {
			c.ID = NewCellID()
		}
		seen[c.ID] = struct{}{}
	}
}

// Lockfile returns metadata["uv.lock"], or "" when unset.
func (nb *Notebook) Lockfile() string {
	s, _ := nb.Metadata["uv.lock"].(string)
	return s
}

// SetLockfile stores lockfile contents in metadata["uv.lock"].
func (nb *Notebook) SetLockfile(contents string) {
	if nb.Metadata == nil {
		nb.Metadata = map[string]any{}
	}
	nb.Metadata["uv.lock"] = contents
}

// ClearOutputs clears every code cell and reports whether anything changed.
func (nb *Notebook) ClearOutputs() bool {
	changed := false
	for _, c := range nb.Cells {
		if c.ClearOutputs() {
			changed = true
		}
	}
	return changed
}

// HasOutputs reports whether any code cell carries outputs.
func (nb *Notebook) HasOutputs() bool {
	for _, c := range nb.Cells {
		if c.HasOutputs() {
			return true
		}
	}
	return false
}
