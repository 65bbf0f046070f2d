// Package parser reads the markdown projection of a notebook back into
// cells: python fences become code cells, raw fences raw cells, region
// markers enclose one markdown cell verbatim, and the remaining text
// between fences becomes markdown cells.
package parser

import (
	"regexp"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/starford/juv/internal/models"
)

// Fence info strings used by the projection.
const (
	CodeLanguage = "python"
	RawLanguage  = "raw"
)

var codeLanguages = map[string]struct{}{
	"python":   {},
	"python3":  {},
	"py":       {},
	"ipython":  {},
	"ipython3": {},
}

// Markers around a markdown cell that must be kept as written.
const (
	RegionStart = "<!-- #region -->"
	RegionEnd   = "<!-- #endregion -->"
)

// Two or more blank lines separate adjacent markdown cells.
var markdownSplitRe = regexp.MustCompile(`\n[ \t]*\n(?:[ \t]*\n)+`)

// Result holds the output of parsing a markdown projection.
type Result struct {
	Cells []*models.Cell
}

// Parse converts a markdown projection to cells.
func Parse(data []byte) (*Result, error) {
	var cells []*models.Cell
	for _, seg := range splitRegions(string(data)) {
		if seg.region {
			cells = append(cells, models.NewMarkdownCell(seg.text))
			continue
		}
		cells = append(cells, parseChunk([]byte(seg.text))...)
	}
	return &Result{Cells: cells}, nil
}

// NeedsRegion reports whether markdown cell text has to be enclosed in
// region markers to be read back as exactly one cell.
func NeedsRegion(text string) bool {
	if strings.TrimSpace(text) == "" || trimBlankLines(text) != text || markdownSplitRe.MatchString(text) {
		return true
	}
	for _, l := range strings.Split(text, "\n") {
		if _, _, ok := fenceOpen(l); ok || isRegionStart(l) {
			return true
		}
	}
	return false
}

type segment struct {
	text   string
	region bool
}

func isRegionStart(l string) bool {
	s := strings.TrimSpace(l)
	return s == RegionStart || (strings.HasPrefix(s, "<!-- #region ") && strings.HasSuffix(s, "-->"))
}

// fenceOpen reports whether l opens a fenced block and returns its
// character and length.
func fenceOpen(l string) (byte, int, bool) {
	s := strings.TrimLeft(l, " ")
	if len(l)-len(s) > 3 || len(s) < 3 || (s[0] != '`' && s[0] != '~') {
		return 0, 0, false
	}
	n := 0
	for n < len(s) && s[n] == s[0] {
		n++
	}
	if n < 3 {
		return 0, 0, false
	}
	return s[0], n, true
}

func fenceCloses(l string, ch byte, n int) bool {
	s := strings.TrimSpace(l)
	if len(s) < n {
		return false
	}
	return strings.Trim(s, string(ch)) == ""
}

// splitRegions cuts data into region cells and the text between them.
// Markers inside fenced blocks are ignored; an unterminated region is
// ordinary text.
func splitRegions(data string) []segment {
	var out []segment
	var plain, region strings.Builder
	var start string
	inRegion := false
	var fenceCh byte
	fenceLen := 0

	for _, l := range strings.SplitAfter(data, "\n") {
		if l == "" {
			continue
		}
		if inRegion {
			if strings.TrimSpace(l) == RegionEnd {
				if plain.Len() > 0 {
					out = append(out, segment{text: plain.String()})
					plain.Reset()
				}
				out = append(out, segment{text: strings.TrimSuffix(region.String(), "\n"), region: true})
				region.Reset()
				inRegion = false
				continue
			}
			region.WriteString(l)
			continue
		}
		switch {
		case fenceLen > 0:
			if fenceCloses(l, fenceCh, fenceLen) {
				fenceLen = 0
			}
		case isRegionStart(l):
			inRegion = true
			start = l
			continue
		default:
			if ch, n, ok := fenceOpen(l); ok {
				fenceCh, fenceLen = ch, n
			}
		}
		plain.WriteString(l)
	}
	if inRegion {
		plain.WriteString(start)
		plain.WriteString(region.String())
	}
	if plain.Len() > 0 {
		out = append(out, segment{text: plain.String()})
	}
	return out
}

// parseChunk converts projection text without region markers to cells.
func parseChunk(source []byte) []*models.Cell {
	doc := goldmark.New().Parser().Parse(text.NewReader(source))
	starts := lineStarts(source)

	var cells []*models.Cell
	cursor := 0 // byte offset of the first line not yet assigned to a cell

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		fcb, ok := n.(*ast.FencedCodeBlock)
		if !ok || fcb.Info == nil {
			continue
		}
		lang := strings.ToLower(string(fcb.Language(source)))
		_, isCode := codeLanguages[lang]
		if !isCode && lang != RawLanguage {
			continue
		}

		open := lineOf(starts, fcb.Info.Segment.Start)
		lastContent := open
		var code strings.Builder
		lines := fcb.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			code.Write(seg.Value(source))
			lastContent = lineOf(starts, seg.Start)
		}
		end := lineEnd(source, starts, lastContent)
		if closing := lastContent + 1; closing < len(starts) && isClosingFence(lineText(source, starts, closing)) {
			end = lineEnd(source, starts, closing)
		}

		cells = append(cells, markdownCells(string(source[cursor:starts[open]]))...)

		src := strings.TrimRight(code.String(), "\n")
		if isCode {
			cells = append(cells, models.NewCodeCell(src, false))
		} else {
			cells = append(cells, models.NewRawCell(src))
		}
		cursor = end
	}
	return append(cells, markdownCells(string(source[cursor:]))...)
}

// markdownCells splits free text into markdown cells on double blank lines.
func markdownCells(chunk string) []*models.Cell {
	var out []*models.Cell
	for _, part := range markdownSplitRe.Split(chunk, -1) {
		part = trimBlankLines(part)
		if part == "" {
			continue
		}
		out = append(out, models.NewMarkdownCell(part))
	}
	return out
}

func trimBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}

func lineStarts(src []byte) []int {
	starts := []int{0}
	for i, b := range src {
		if b == '\n' && i+1 < len(src) {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func lineOf(starts []int, offset int) int {
	return sort.Search(len(starts), func(i int) bool { return starts[i] > offset }) - 1
}

// lineEnd returns the offset just past line i, newline included.
func lineEnd(src []byte, starts []int, i int) int {
	if i+1 < len(starts) {
		return starts[i+1]
	}
	return len(src)
}

func lineText(src []byte, starts []int, i int) string {
	return strings.TrimRight(string(src[starts[i]:lineEnd(src, starts, i)]), "\r\n")
}

func isClosingFence(l string) bool {
	s := strings.TrimSpace(l)
	return strings.HasPrefix(s, "```") || strings.HasPrefix(s, "~~~")
}
