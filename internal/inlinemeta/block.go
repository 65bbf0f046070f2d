// Package inlinemeta finds, decodes and encodes the "# /// script" inline
// metadata block that scripts and notebook cells carry as full-line comments.
//
// A block opens with "# /// TYPE", holds one or more "#" or "# ..." comment
// lines of TOML, and closes with "# ///". Only the "script" type is acted on;
// blocks of other types are skipped.
package inlinemeta

import (
	"fmt"
	"strings"

	"github.com/starford/juv/internal/apperr"
)

// ScriptKind is the only block type juv reads or writes.
const ScriptKind = "script"

const (
	openPrefix = "# /// "
	closeLine  = "# ///"
)

// Block is a located metadata block.
type Block struct {
	Kind  string
	Start int // byte offset of the opening line
	End   int // byte offset just past the closing line (newline excluded)
	Text  string
}

// Content returns the decoded TOML held by the block.
func (b *Block) Content() string {
	return Decode(b.Text)
}

type line struct {
	start int
	text  string
}

func splitLines(text string) []line {
	var out []line
	offset := 0
	for offset <= len(text) {
		i := strings.IndexByte(text[offset:], '\n')
		if i < 0 {
			if offset < len(text) {
				out = append(out, line{start: offset, text: text[offset:]})
			}
			break
		}
		out = append(out, line{start: offset, text: text[offset : offset+i]})
		offset += i + 1
	}
	return out
}

// openKind reports the type named by an opening line, or "" when the line
// does not open a block.
func openKind(s string) string {
	if !strings.HasPrefix(s, openPrefix) {
		return ""
	}
	kind := s[len(openPrefix):]
	if kind == "" {
		return ""
	}
	for _, r := range kind {
		if !(r == '-' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return kind
}

func isCommentLine(s string) bool {
	return s == "#" || strings.HasPrefix(s, "# ")
}

// Scan returns every well-formed block in text, of any type, in order.
//
// The scanner has two states. Outside a block it looks for an opening line.
// Inside it consumes comment lines and remembers the last closing line seen
// after at least one content line; when the comment run ends, the block
// closes at that remembered line and scanning resumes right after it. A run
// that ends without a closing line is not a block.
func Scan(text string) []Block {
	lines := splitLines(text)
	var blocks []Block

	i := 0
	for i < len(lines) {
		kind := openKind(lines[i].text)
		// The opening line must be followed by at least one more line.
		if kind == "" || i+1 >= len(lines) {
			i++
			continue
		}

		closeAt := -1
		content := 0
		j := i + 1
		for ; j < len(lines) && isCommentLine(lines[j].text); j++ {
			if lines[j].text == closeLine && content > 0 {
				closeAt = j
			}
			content++
		}

		if closeAt < 0 {
			// Unterminated: nothing found from this opening line.
			i++
			continue
		}

		start := lines[i].start
		end := lines[closeAt].start + len(lines[closeAt].text)
		blocks = append(blocks, Block{
			Kind:  kind,
			Start: start,
			End:   end,
			Text:  text[start:end],
		})
		i = closeAt + 1
	}
	return blocks
}

// Find returns the single script block in text, or nil when there is none.
// More than one script block is an error.
func Find(text string) (*Block, error) {
	var found *Block
	for _, b := range Scan(text) {
		if b.Kind != ScriptKind {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("inlinemeta: %w", apperr.ErrMultipleBlocks)
		}
		b := b
		found = &b
	}
	return found, nil
}

// Extract returns the script block text and text with that span removed.
// When no block is present the block is "" and the remainder is text.
func Extract(text string) (block string, remainder string, err error) {
	b, err := Find(text)
	if err != nil {
		return "", text, err
	}
	if b == nil {
		return "", text, nil
	}
	return b.Text, text[:b.Start] + text[b.End:], nil
}

// Includes reports whether text holds a script block.
func Includes(text string) bool {
	for _, b := range Scan(text) {
		if b.Kind == ScriptKind {
			return true
		}
	}
	return false
}

// Parse returns the decoded TOML of the script block in text. ok is false
// when text has no block.
func Parse(text string) (content string, ok bool, err error) {
	b, err := Find(text)
	if err != nil || b == nil {
		return "", false, err
	}
	return b.Content(), true, nil
}

// Decode strips the delimiter lines and the comment prefix of every
// interior line. Each decoded line keeps its newline.
func Decode(blockText string) string {
	lines := strings.Split(blockText, "\n")
	if len(lines) < 2 {
		return ""
	}
	var b strings.Builder
	for _, l := range lines[1 : len(lines)-1] {
		switch {
		case strings.HasPrefix(l, "# "):
			b.WriteString(l[2:])
		case strings.HasPrefix(l, "#"):
			b.WriteString(l[1:])
		default:
			b.WriteString(l)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Encode wraps TOML text in a script block. Decode(Encode(x)) == x for any
// x that is empty or newline-terminated and has no line equal to "///".
func Encode(toml string) string {
	var b strings.Builder
	b.WriteString(openPrefix + ScriptKind + "\n")
	if toml != "" {
		for _, l := range strings.Split(strings.TrimSuffix(toml, "\n"), "\n") {
			if l == "" {
				b.WriteString("#\n")
				continue
			}
			b.WriteString("# " + l + "\n")
		}
	}
	b.WriteString(closeLine)
	return b.String()
}

// Replace swaps the script block in text for a block encoding toml. All
// bytes outside the block are preserved.
func Replace(text, toml string) (string, error) {
	b, err := Find(text)
	if err != nil {
		return "", err
	}
	if b == nil {
		return "", fmt.Errorf("inlinemeta: %w", apperr.ErrNoMetadata)
	}
	return text[:b.Start] + Encode(toml) + text[b.End:], nil
}
