package convert

import (
	"strings"

	"github.com/starford/juv/internal/models"
	"github.com/starford/juv/internal/parser"
)

// fence returns a backtick fence longer than any backtick run that opens a
// line of text.
func fence(text string) string {
	longest := 0
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimLeft(l, " ")
		n := 0
		for n < len(l) && l[n] == '`' {
			n++
		}
		if n > longest {
			longest = n
		}
	}
	if longest < 3 {
		return "```"
	}
	return strings.Repeat("`", longest+1)
}

// NotebookToMarkdown renders the markdown projection of nb: markdown cells
// as-is, code cells as python fences, raw cells as raw fences. Adjacent
// markdown cells are separated by two blank lines so that they stay apart
// when parsed back. Markdown cells that would not read back as one cell
// (empty, blank-line runs, fences) are enclosed in region markers.
func NotebookToMarkdown(nb *models.Notebook) string {
	var b strings.Builder
	var prev models.CellType
	for i, c := range nb.Cells {
		text := strings.TrimRight(c.Text(), " \t\n")
		if i > 0 {
			b.WriteString("\n\n")
			if prev == models.CellMarkdown && c.Type == models.CellMarkdown {
				b.WriteString("\n")
			}
		}
		switch c.Type {
		case models.CellMarkdown:
			if !parser.NeedsRegion(text) {
				b.WriteString(text)
				break
			}
			b.WriteString(parser.RegionStart + "\n")
			if text != "" {
				b.WriteString(text + "\n")
			}
			b.WriteString(parser.RegionEnd)
		default:
			lang := parser.CodeLanguage
			if c.Type == models.CellRaw {
				lang = parser.RawLanguage
			}
			f := fence(text)
			b.WriteString(f + lang + "\n")
			if text != "" {
				b.WriteString(text + "\n")
			}
			b.WriteString(f)
		}
		prev = c.Type
	}
	if b.Len() == 0 {
		return ""
	}
	b.WriteString("\n")
	return b.String()
}

// MarkdownToNotebook parses a markdown projection into a notebook of fresh
// cells. Ids, outputs and execution state are not part of the projection.
func MarkdownToNotebook(text string) (*models.Notebook, error) {
	res, err := parser.Parse([]byte(text))
	if err != nil {
		return nil, err
	}
	return models.NewNotebook(res.Cells...), nil
}
