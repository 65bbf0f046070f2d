package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type notebookJSON struct {
	Cells         []any          `json:"cells"`
	Metadata      map[string]any `json:"metadata"`
	NBFormat      int            `json:"nbformat"`
	NBFormatMinor int            `json:"nbformat_minor"`
}

// Field order follows nbformat's sorted-key output.
type codeCellJSON struct {
	CellType       CellType          `json:"cell_type"`
	ExecutionCount *int              `json:"execution_count"`
	ID             string            `json:"id"`
	Metadata       map[string]any    `json:"metadata"`
	Outputs        []json.RawMessage `json:"outputs"`
	Source         []string          `json:"source"`
}

type textCellJSON struct {
	Attachments json.RawMessage `json:"attachments,omitempty"`
	CellType    CellType        `json:"cell_type"`
	ID          string          `json:"id"`
	Metadata    map[string]any  `json:"metadata"`
	Source      []string        `json:"source"`
}

type rawNotebook struct {
	Cells         []rawCell      `json:"cells"`
	Metadata      map[string]any `json:"metadata"`
	NBFormat      *int           `json:"nbformat"`
	NBFormatMinor int            `json:"nbformat_minor"`
}

type rawCell struct {
	CellType       CellType          `json:"cell_type"`
	ID             string            `json:"id"`
	Source         *Source           `json:"source"`
	Metadata       map[string]any    `json:"metadata"`
	Outputs        []json.RawMessage `json:"outputs"`
	ExecutionCount *int              `json:"execution_count"`
	Attachments    json.RawMessage   `json:"attachments"`
}

// Unmarshal decodes and validates notebook JSON. Malformed cells are
// rejected here rather than surfacing later as missing fields.
func Unmarshal(data []byte) (*Notebook, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw rawNotebook
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("notebook: decode: %w", err)
	}
	if raw.NBFormat == nil {
		return nil, fmt.Errorf("notebook: missing nbformat")
	}
	if *raw.NBFormat != FormatMajor {
		return nil, fmt.Errorf("notebook: unsupported nbformat %d", *raw.NBFormat)
	}

	nb := &Notebook{
		Cells:         make([]*Cell, 0, len(raw.Cells)),
		Metadata:      raw.Metadata,
		NBFormat:      *raw.NBFormat,
		NBFormatMinor: raw.NBFormatMinor,
	}
	if nb.Metadata == nil {
		nb.Metadata = map[string]any{}
	}

	for i, rc := range raw.Cells {
		if !rc.CellType.Valid() {
			return nil, fmt.Errorf("notebook: cell %d: invalid cell_type %q", i, rc.CellType)
		}
		if rc.Source == nil {
			return nil, fmt.Errorf("notebook: cell %d: missing source", i)
		}
		c := &Cell{
			ID:       rc.ID,
			Type:     rc.CellType,
			Source:   *rc.Source,
			Metadata: rc.Metadata,
		}
		if c.Metadata == nil {
			c.Metadata = map[string]any{}
		}
		if c.Type == CellCode {
			c.Outputs = rc.Outputs
			if c.Outputs == nil {
				c.Outputs = []json.RawMessage{}
			}
			c.ExecutionCount = rc.ExecutionCount
		} else {
			c.Attachments = rc.Attachments
		}
		nb.Cells = append(nb.Cells, c)
	}
	return nb, nil
}

// Marshal normalizes nb and encodes it as indented notebook JSON with a
// trailing newline.
func Marshal(nb *Notebook) ([]byte, error) {
	nb.Normalize()

	out := notebookJSON{
		Cells:         make([]any, 0, len(nb.Cells)),
		Metadata:      nb.Metadata,
		NBFormat:      nb.NBFormat,
		NBFormatMinor: nb.NBFormatMinor,
	}
	for _, c := range nb.Cells {
		md := c.Metadata
		if md == nil {
			md = map[string]any{}
		}
		src := []string(c.Source)
		if src == nil {
			src = []string{}
		}
		if c.Type == CellCode {
			outputs := c.Outputs
			if outputs == nil {
				outputs = []json.RawMessage{}
			}
			out.Cells = append(out.Cells, codeCellJSON{
				CellType:       c.Type,
				ExecutionCount: c.ExecutionCount,
				ID:             c.ID,
				Metadata:       md,
				Outputs:        outputs,
				Source:         src,
			})
			continue
		}
		out.Cells = append(out.Cells, textCellJSON{
			Attachments: c.Attachments,
			CellType:    c.Type,
			ID:          c.ID,
			Metadata:    md,
			Source:      src,
		})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", " ")
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("notebook: encode: %w", err)
	}
	return buf.Bytes(), nil
}
