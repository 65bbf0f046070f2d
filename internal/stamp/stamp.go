package stamp

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/starford/juv/internal/apperr"
	"github.com/starford/juv/internal/convert"
	"github.com/starford/juv/internal/inlinemeta"
	"github.com/starford/juv/internal/models"
)

// Action describes what a stamp did to the field.
type Action interface {
	fmt.Stringer
	action()
}

// DeleteAction removed the field. Previous is nil when it was not set.
type DeleteAction struct {
	Previous *string
}

// CreateAction set a field that did not exist.
type CreateAction struct {
	Value string
}

// UpdateAction replaced an existing value, even with an equal one.
type UpdateAction struct {
	Previous string
	Value    string
}

func (DeleteAction) action() {}
func (CreateAction) action() {}
func (UpdateAction) action() {}

func (a DeleteAction) String() string {
	if a.Previous == nil {
		return "no exclude-newer to remove"
	}
	return "removed exclude-newer " + *a.Previous
}

func (a CreateAction) String() string {
	return "set exclude-newer to " + a.Value
}

func (a UpdateAction) String() string {
	return "updated exclude-newer from " + a.Previous + " to " + a.Value
}

const (
	toolTable = "tool"
	uvTable   = "tool.uv"
	fieldKey  = "exclude-newer"
	fieldPath = uvTable + "." + fieldKey
)

var (
	headerRe = regexp.MustCompile(`^\s*(\[\[?)\s*([^\[\]]+?)\s*\]\]?\s*(?:#.*)?$`)
	keyRe    = regexp.MustCompile(`^\s*((?:[A-Za-z0-9_-]+|"[^"]*"|'[^']*')(?:\s*\.\s*(?:[A-Za-z0-9_-]+|"[^"]*"|'[^']*'))*)\s*=`)
)

// normalizeKey turns a dotted TOML key as written into a plain dotted path.
func normalizeKey(k string) string {
	parts := strings.Split(k, ".")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.Trim(p, `"'`)
		parts[i] = p
	}
	return strings.Join(parts, ".")
}

// tomlLine is one line of block content with the table it sits in and,
// for key/value lines, the full dotted path of the key.
type tomlLine struct {
	text   string
	header string // table name when the line is a table header
	table  string
	key    string
}

func classify(content string) []tomlLine {
	raw := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	out := make([]tomlLine, len(raw))
	table := ""
	depth := 0 // open brackets of a multi-line array
	for i, l := range raw {
		out[i] = tomlLine{text: l, table: table}
		if depth > 0 {
			depth += strings.Count(l, "[") - strings.Count(l, "]")
			continue
		}
		if m := headerRe.FindStringSubmatch(l); m != nil {
			table = normalizeKey(m[2])
			if m[1] == "[[" {
				// array of tables; its keys never name the field
				table = "\x00" + table
			}
			out[i].header = table
			out[i].table = table
			continue
		}
		if m := keyRe.FindStringSubmatch(l); m != nil {
			key := normalizeKey(m[1])
			if table != "" {
				key = table + "." + key
			}
			out[i].key = key
			rest := l[len(m[0]):]
			depth = strings.Count(rest, "[") - strings.Count(rest, "]")
			if depth < 0 {
				depth = 0
			}
		}
	}
	return out
}

func join(lines []tomlLine) string {
	texts := make([]string, 0, len(lines))
	for _, l := range lines {
		texts = append(texts, l.text)
	}
	return strings.TrimSpace(strings.Join(texts, "\n")) + "\n"
}

// lookup walks a decoded TOML document along a dotted path.
func lookup(doc map[string]any, path ...string) (any, bool) {
	var cur any = doc
	for _, p := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[p]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func decode(content string) (map[string]any, error) {
	doc := map[string]any{}
	if err := toml.Unmarshal([]byte(content), &doc); err != nil {
		return nil, fmt.Errorf("stamp: %w: %v", apperr.ErrInvalidTOML, err)
	}
	return doc, nil
}

func currentValue(doc map[string]any) *string {
	v, ok := lookup(doc, toolTable, "uv", fieldKey)
	if !ok {
		return nil
	}
	var s string
	switch tv := v.(type) {
	case string:
		s = tv
	case time.Time:
		s = Format(tv)
	default:
		s = fmt.Sprint(tv)
	}
	return &s
}

func isEmptyTable(doc map[string]any, path ...string) bool {
	v, ok := lookup(doc, path...)
	if !ok {
		return false
	}
	m, ok := v.(map[string]any)
	return ok && len(m) == 0
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `"`, `\"`) + `"`
}

// Content rewrites tool.uv.exclude-newer in block content. A nil value
// removes the field, along with tool.uv and tool when they are empty,
// whether or not the field was set. Lines unrelated to the field are kept
// as written.
func Content(content string, value *string) (string, Action, error) {
	doc, err := decode(content)
	if err != nil {
		return "", nil, err
	}
	previous := currentValue(doc)

	var action Action
	switch {
	case value == nil:
		action = DeleteAction{Previous: previous}
	case previous == nil:
		action = CreateAction{Value: *value}
	default:
		action = UpdateAction{Previous: *previous, Value: *value}
	}

	out, ok := edit(content, value)
	if ok && verify(out, value) {
		return out, action, nil
	}
	out, err = remarshal(doc, value)
	if err != nil {
		return "", nil, err
	}
	return out, action, nil
}

// verify re-reads edited content and checks the field holds value.
func verify(content string, value *string) bool {
	doc, err := decode(content)
	if err != nil {
		return false
	}
	got := currentValue(doc)
	if value == nil {
		return got == nil
	}
	return got != nil && *got == *value
}

func edit(content string, value *string) (string, bool) {
	lines := classify(content)

	field := -1
	for i, l := range lines {
		if l.key == fieldPath {
			field = i
			break
		}
	}

	if value == nil {
		n := len(lines)
		if field >= 0 {
			lines = removeLine(lines, field)
		}
		lines = dropEmptyHeaders(lines)
		if len(lines) == n {
			return content, true
		}
		return join(lines), true
	}

	if field >= 0 {
		l := lines[field]
		eq := strings.Index(l.text, "=")
		lines[field].text = strings.TrimRight(l.text[:eq], " \t") + " = " + quote(*value)
		return join(lines), true
	}

	entry := tomlLine{text: fieldKey + " = " + quote(*value), table: uvTable, key: fieldPath}
	for i, l := range lines {
		if l.header != uvTable {
			continue
		}
		// After the last non-blank line of the [tool.uv] section.
		at := i + 1
		for j := i + 1; j < len(lines) && lines[j].header == ""; j++ {
			if strings.TrimSpace(lines[j].text) != "" {
				at = j + 1
			}
		}
		lines = append(lines[:at], append([]tomlLine{entry}, lines[at:]...)...)
		return join(lines), true
	}

	// No [tool.uv] header: append one.
	text := strings.TrimSpace(content)
	if text != "" {
		text += "\n\n"
	}
	return text + "[tool.uv]\n" + entry.text + "\n", true
}

// dropEmptyHeaders removes [tool.uv] and then [tool] when no keys or
// subtables remain under them.
func dropEmptyHeaders(lines []tomlLine) []tomlLine {
	for _, name := range []string{uvTable, toolTable} {
		idx := -1
		for i, l := range lines {
			if l.header == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}
		empty := true
		for j := idx + 1; j < len(lines); j++ {
			if h := lines[j].header; h != "" {
				if strings.HasPrefix(h, name+".") {
					empty = false
				}
				break
			}
			if lines[j].key != "" {
				empty = false
				break
			}
		}
		for _, l := range lines {
			if l.header != name && strings.HasPrefix(l.header, name+".") {
				empty = false
			}
			if l.header == "" && strings.HasPrefix(l.key, name+".") {
				empty = false
			}
		}
		if empty {
			lines = removeLine(lines, idx)
		}
	}
	return lines
}

// removeLine deletes lines[i], and the blank line after it when that
// would leave two blank lines in a row.
func removeLine(lines []tomlLine, i int) []tomlLine {
	lines = append(lines[:i], lines[i+1:]...)
	if i < len(lines) && isBlank(lines[i]) && (i == 0 || isBlank(lines[i-1])) {
		lines = append(lines[:i], lines[i+1:]...)
	}
	return lines
}

func isBlank(l tomlLine) bool {
	return strings.TrimSpace(l.text) == ""
}

// remarshal is the fallback for layouts the line editor does not handle,
// such as inline tables. Comments and key order are not kept.
func remarshal(doc map[string]any, value *string) (string, error) {
	tool, _ := doc[toolTable].(map[string]any)
	if tool == nil {
		tool = map[string]any{}
	}
	uv, _ := tool["uv"].(map[string]any)
	if uv == nil {
		uv = map[string]any{}
	}
	if value == nil {
		delete(uv, fieldKey)
	} else {
		uv[fieldKey] = *value
	}
	tool["uv"] = uv
	doc[toolTable] = tool
	if isEmptyTable(doc, toolTable, "uv") {
		delete(tool, "uv")
	}
	if isEmptyTable(doc, toolTable) {
		delete(doc, toolTable)
	}
	out, err := toml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("stamp: marshal: %w", err)
	}
	return strings.TrimSpace(string(out)) + "\n", nil
}

// Script stamps the script block of text, leaving every byte outside the
// block untouched.
func Script(text string, value *string) (string, Action, error) {
	b, err := inlinemeta.Find(text)
	if err != nil {
		return "", nil, err
	}
	if b == nil {
		return "", nil, fmt.Errorf("stamp: %w", apperr.ErrNoMetadata)
	}
	content, action, err := Content(b.Content(), value)
	if err != nil {
		return "", nil, err
	}
	return text[:b.Start] + inlinemeta.Encode(content) + text[b.End:], action, nil
}

// Notebook stamps the first code cell carrying a script block.
func Notebook(nb *models.Notebook, value *string) (Action, error) {
	cell := convert.FindMetadataCell(nb)
	if cell == nil {
		return nil, fmt.Errorf("stamp: %w", apperr.ErrNoMetadata)
	}
	text, action, err := Script(cell.Text(), value)
	if err != nil {
		return nil, err
	}
	cell.SetText(text)
	return action, nil
}
