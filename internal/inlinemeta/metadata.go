package inlinemeta

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/starford/juv/internal/apperr"
)

// Metadata is the typed view of a script block's TOML.
type Metadata struct {
	RequiresPython string   `toml:"requires-python,omitempty"`
	Dependencies   []string `toml:"dependencies"`
	Tool           Tool     `toml:"tool,omitempty"`
}

// Tool holds the [tool] table. Only the uv section is modelled.
type Tool struct {
	UV UVSettings `toml:"uv,omitempty"`
}

// UVSettings holds [tool.uv].
type UVSettings struct {
	ExcludeNewer string                `toml:"exclude-newer,omitempty"`
	Sources      map[string]SourceList `toml:"-"`
}

// SourceList holds the sources of one dependency. TOML may give a single
// table or an array of tables, usually told apart by marker.
type SourceList []Source

// Source describes where a dependency comes from instead of the index.
type Source struct {
	Path     string `toml:"path,omitempty"`
	Git      string `toml:"git,omitempty"`
	URL      string `toml:"url,omitempty"`
	Index    string `toml:"index,omitempty"`
	Tag      string `toml:"tag,omitempty"`
	Branch   string `toml:"branch,omitempty"`
	Rev      string `toml:"rev,omitempty"`
	Marker   string `toml:"marker,omitempty"`
	Editable bool   `toml:"editable,omitempty"`
}

// rawMetadata is the TOML shape of Metadata with sources undecoded.
type rawMetadata struct {
	RequiresPython string   `toml:"requires-python,omitempty"`
	Dependencies   []string `toml:"dependencies"`
	Tool           rawTool  `toml:"tool,omitempty"`
}

type rawTool struct {
	UV rawUV `toml:"uv,omitempty"`
}

type rawUV struct {
	ExcludeNewer string         `toml:"exclude-newer,omitempty"`
	Sources      map[string]any `toml:"sources,omitempty"`
}

// Ref returns the git ref qualifier kind and value, if any.
func (s Source) Ref() (kind, value string) {
	switch {
	case s.Tag != "":
		return "tag", s.Tag
	case s.Branch != "":
		return "branch", s.Branch
	case s.Rev != "":
		return "rev", s.Rev
	}
	return "", ""
}

// Validate checks that every source names at most one of tag, branch, rev.
func (m *Metadata) Validate() error {
	names := make([]string, 0, len(m.Tool.UV.Sources))
	for name := range m.Tool.UV.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, s := range m.Tool.UV.Sources[name] {
			n := 0
			for _, ref := range []string{s.Tag, s.Branch, s.Rev} {
				if ref != "" {
					n++
				}
			}
			if n > 1 {
				return fmt.Errorf("inlinemeta: source %q: tag, branch and rev are %w", name, apperr.ErrMutuallyExclusive)
			}
		}
	}
	return nil
}

// Unmarshal decodes block content into Metadata.
func Unmarshal(content string) (*Metadata, error) {
	var raw rawMetadata
	if err := toml.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("inlinemeta: %w: %v", apperr.ErrInvalidTOML, err)
	}
	m := Metadata{
		RequiresPython: raw.RequiresPython,
		Dependencies:   raw.Dependencies,
		Tool:           Tool{UV: UVSettings{ExcludeNewer: raw.Tool.UV.ExcludeNewer}},
	}
	if len(raw.Tool.UV.Sources) > 0 {
		m.Tool.UV.Sources = make(map[string]SourceList, len(raw.Tool.UV.Sources))
		for name, v := range raw.Tool.UV.Sources {
			list, err := decodeSources(v)
			if err != nil {
				return nil, fmt.Errorf("inlinemeta: source %q: %w", name, err)
			}
			m.Tool.UV.Sources[name] = list
		}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func decodeSources(v any) (SourceList, error) {
	switch t := v.(type) {
	case map[string]any:
		s, err := decodeSource(t)
		if err != nil {
			return nil, err
		}
		return SourceList{s}, nil
	case []any:
		list := make(SourceList, 0, len(t))
		for _, e := range t {
			tbl, ok := e.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: array entries must be tables", apperr.ErrInvalidTOML)
			}
			s, err := decodeSource(tbl)
			if err != nil {
				return nil, err
			}
			list = append(list, s)
		}
		return list, nil
	}
	return nil, fmt.Errorf("%w: expected a table or an array of tables", apperr.ErrInvalidTOML)
}

func decodeSource(tbl map[string]any) (Source, error) {
	var s Source
	b, err := toml.Marshal(tbl)
	if err == nil {
		err = toml.Unmarshal(b, &s)
	}
	if err != nil {
		return Source{}, fmt.Errorf("%w: %v", apperr.ErrInvalidTOML, err)
	}
	return s, nil
}

// Marshal renders Metadata as TOML with dependencies sorted. A source
// list of one is written as a table.
func Marshal(m *Metadata) (string, error) {
	raw := rawMetadata{
		RequiresPython: m.RequiresPython,
		Dependencies:   append([]string{}, m.Dependencies...),
		Tool:           rawTool{UV: rawUV{ExcludeNewer: m.Tool.UV.ExcludeNewer}},
	}
	sort.Strings(raw.Dependencies)
	if len(m.Tool.UV.Sources) > 0 {
		raw.Tool.UV.Sources = make(map[string]any, len(m.Tool.UV.Sources))
		for name, list := range m.Tool.UV.Sources {
			if len(list) == 1 {
				raw.Tool.UV.Sources[name] = list[0]
			} else {
				raw.Tool.UV.Sources[name] = []Source(list)
			}
		}
	}
	out, err := toml.Marshal(&raw)
	if err != nil {
		return "", fmt.Errorf("inlinemeta: marshal: %w", err)
	}
	return strings.TrimSpace(string(out)) + "\n", nil
}
