// Package convert moves notebooks between their on-disk JSON form, the
// percent-format script form and the markdown projection used for editing.
package convert

import (
	"strings"

	"github.com/starford/juv/internal/inlinemeta"
	"github.com/starford/juv/internal/models"
)

const percentMarker = "%%"

// percentHeader reports whether l starts a cell and which type it declares.
func percentHeader(l string) (models.CellType, bool) {
	s := strings.TrimSpace(l)
	switch {
	case strings.HasPrefix(s, "# "+percentMarker):
		s = s[len("# "+percentMarker):]
	case strings.HasPrefix(s, "#"+percentMarker):
		s = s[len("#"+percentMarker):]
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "[markdown]"), strings.HasPrefix(s, "[md]"):
		return models.CellMarkdown, true
	case strings.HasPrefix(s, "[raw]"):
		return models.CellRaw, true
	}
	return models.CellCode, true
}

func uncomment(l string) string {
	switch {
	case strings.HasPrefix(l, "# "):
		return l[2:]
	case strings.HasPrefix(l, "#"):
		return l[1:]
	}
	return l
}

func comment(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if l == "" {
			lines[i] = "#"
			continue
		}
		lines[i] = "# " + l
	}
	return strings.Join(lines, "\n")
}

// trimBlankLines drops leading and trailing whitespace-only lines.
func trimBlankLines(lines []string) []string {
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[start:end]
}

// stripScriptHeader removes a leading "# ---" ... "# ---" comment header.
func stripScriptHeader(text string) string {
	lines := strings.SplitAfter(text, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "# ---" {
		return text
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "# ---" {
			return strings.Join(lines[i+1:], "")
		}
	}
	return text
}

// parsePercent segments script text into cells. Text before the first
// marker becomes a code cell when it is not blank; every marker starts a
// cell, even an empty one.
func parsePercent(text string) []*models.Cell {
	var cells []*models.Cell

	cellType := models.CellCode
	explicit := false
	var body []string

	flush := func() {
		lines := trimBlankLines(body)
		if len(lines) == 0 && !explicit {
			return
		}
		switch cellType {
		case models.CellMarkdown, models.CellRaw:
			for i, l := range lines {
				lines[i] = uncomment(l)
			}
		}
		src := strings.Join(lines, "\n")
		switch cellType {
		case models.CellMarkdown:
			cells = append(cells, models.NewMarkdownCell(src))
		case models.CellRaw:
			cells = append(cells, models.NewRawCell(src))
		default:
			cells = append(cells, models.NewCodeCell(src, false))
		}
	}

	for _, l := range strings.Split(text, "\n") {
		if t, ok := percentHeader(l); ok {
			flush()
			cellType, explicit, body = t, true, nil
			continue
		}
		body = append(body, l)
	}
	flush()
	return cells
}

// ScriptToNotebook converts a percent-format script into a notebook. The
// inline metadata block is cut out before segmentation and becomes a
// hidden code cell at index 0.
func ScriptToNotebook(script string) (*models.Notebook, error) {
	block, rest, err := inlinemeta.Extract(script)
	if err != nil {
		return nil, err
	}
	rest = strings.TrimSpace(stripScriptHeader(strings.TrimLeft(rest, "\n")))

	nb := models.NewNotebook(parsePercent(rest)...)
	if block != "" {
		meta := models.NewCodeCell(strings.TrimSpace(block), true)
		nb.Cells = append([]*models.Cell{meta}, nb.Cells...)
	}
	return nb, nil
}

// IsMetadataOnly reports whether c is a code cell whose whole text is one
// script block.
func IsMetadataOnly(c *models.Cell) bool {
	if c.Type != models.CellCode {
		return false
	}
	text := strings.TrimSpace(c.Text())
	b, err := inlinemeta.Find(text)
	return err == nil && b != nil && b.Start == 0 && b.End == len(text)
}

// NotebookToScript renders nb as a percent-format script. A leading
// metadata-only cell is written as the bare block so that reading the
// script back yields the same cells.
func NotebookToScript(nb *models.Notebook) string {
	parts := make([]string, 0, len(nb.Cells))
	for i, c := range nb.Cells {
		text := strings.TrimRight(c.Text(), " \t\n")
		if i == 0 && IsMetadataOnly(c) {
			parts = append(parts, strings.TrimSpace(text))
			continue
		}
		header := "# " + percentMarker
		switch c.Type {
		case models.CellMarkdown:
			header += " [markdown]"
			text = comment(text)
		case models.CellRaw:
			header += " [raw]"
			text = comment(text)
		}
		if text == "" || text == "#" {
			parts = append(parts, header)
			continue
		}
		parts = append(parts, header+"\n"+text)
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "\n\n") + "\n"
}
