package stamp

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/starford/juv/internal/apperr"
	"github.com/starford/juv/internal/models"
)

const script = `# /// script
# requires-python = ">=3.12"
# dependencies = [
#     "numpy",
# ]
# ///

import numpy as np
print(np.__version__)
`

type fakeGit map[string]time.Time

func (g fakeGit) CommitTime(_ context.Context, rev string) (time.Time, error) {
	t, ok := g[rev]
	if !ok {
		return time.Time{}, errors.New("unknown revision")
	}
	return t, nil
}

func ptr(s string) *string { return &s }

func TestRequest_Validate(t *testing.T) {
	if err := (Request{}).Validate(); err != nil {
		t.Errorf("empty request: %v", err)
	}
	if err := (Request{Time: "2024-01-01"}).Validate(); err != nil {
		t.Errorf("time only: %v", err)
	}
	err := Request{Time: "2024-01-01", Clear: true}.Validate()
	if !errors.Is(err, apperr.ErrMutuallyExclusive) {
		t.Errorf("err = %v, want ErrMutuallyExclusive", err)
	}
	err = Request{Rev: "main", Latest: true}.Validate()
	if !errors.Is(err, apperr.ErrMutuallyExclusive) {
		t.Errorf("err = %v, want ErrMutuallyExclusive", err)
	}
}

func TestParseTime_DateIsStartOfNextDay(t *testing.T) {
	loc := time.FixedZone("", -5*60*60)
	got, err := ParseTime("2006-01-02", loc)
	if err != nil {
		t.Fatalf("ParseTime: %v", err)
	}
	if s := Format(got); s != "2006-01-03T00:00:00-05:00" {
		t.Errorf("Format = %s", s)
	}
}

func TestParseTime_KeepsOffset(t *testing.T) {
	got, err := ParseTime("2024-03-10T08:30:00+02:00", time.UTC)
	if err != nil {
		t.Fatalf("ParseTime: %v", err)
	}
	if s := Format(got); s != "2024-03-10T08:30:00+02:00" {
		t.Errorf("Format = %s", s)
	}
	got, err = ParseTime("2024-03-10T08:30:00.75Z", time.UTC)
	if err != nil {
		t.Fatalf("ParseTime: %v", err)
	}
	if s := Format(got); s != "2024-03-10T08:30:00+00:00" {
		t.Errorf("Format = %s", s)
	}
}

func TestParseTime_Invalid(t *testing.T) {
	_, err := ParseTime("last tuesday", time.UTC)
	if !errors.Is(err, apperr.ErrInvalidTimestamp) {
		t.Errorf("err = %v, want ErrInvalidTimestamp", err)
	}
}

func TestResolver_Strategies(t *testing.T) {
	loc := time.FixedZone("", 3*60*60)
	commit := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("", -7*60*60))
	r := &Resolver{
		Location: loc,
		Now:      func() time.Time { return time.Date(2024, 6, 1, 9, 15, 30, 500, time.UTC) },
		Git:      fakeGit{"HEAD": commit, "v1.0": commit.Add(-time.Hour)},
	}
	ctx := context.Background()

	cases := []struct {
		name string
		req  Request
		want *string
	}{
		{"now", Request{}, ptr("2024-06-01T12:15:30+03:00")},
		{"latest", Request{Latest: true}, ptr("2024-05-01T12:00:00-07:00")},
		{"rev", Request{Rev: "v1.0"}, ptr("2024-05-01T11:00:00-07:00")},
		{"date", Request{Time: "2024-02-28"}, ptr("2024-02-29T00:00:00+03:00")},
		{"clear", Request{Clear: true}, nil},
	}
	for _, tc := range cases {
		got, err := r.Resolve(ctx, tc.req)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if (got == nil) != (tc.want == nil) || (got != nil && *got != *tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, deref(got), deref(tc.want))
		}
	}

	if _, err := r.Resolve(ctx, Request{Rev: "nope"}); err == nil {
		t.Error("expected error for unknown revision")
	}
}

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

func TestScript_ActionSequence(t *testing.T) {
	first, action, err := Script(script, ptr("2024-01-01T00:00:00+00:00"))
	if err != nil {
		t.Fatalf("Script: %v", err)
	}
	if a, ok := action.(CreateAction); !ok || a.Value != "2024-01-01T00:00:00+00:00" {
		t.Fatalf("action = %#v", action)
	}
	want := `# /// script
# requires-python = ">=3.12"
# dependencies = [
#     "numpy",
# ]
#
# [tool.uv]
# exclude-newer = "2024-01-01T00:00:00+00:00"
# ///

import numpy as np
print(np.__version__)
`
	if first != want {
		t.Fatalf("script =\n%s", first)
	}

	second, action, err := Script(first, ptr("2024-02-01T00:00:00+00:00"))
	if err != nil {
		t.Fatalf("Script: %v", err)
	}
	if a, ok := action.(UpdateAction); !ok || a.Previous != "2024-01-01T00:00:00+00:00" || a.Value != "2024-02-01T00:00:00+00:00" {
		t.Fatalf("action = %#v", action)
	}

	third, action, err := Script(second, nil)
	if err != nil {
		t.Fatalf("Script: %v", err)
	}
	if a, ok := action.(DeleteAction); !ok || a.Previous == nil || *a.Previous != "2024-02-01T00:00:00+00:00" {
		t.Fatalf("action = %#v", action)
	}
	if third != script {
		t.Errorf("clear should restore the original:\n%s", third)
	}

	_, action, err = Script(third, nil)
	if err != nil {
		t.Fatalf("Script: %v", err)
	}
	if a, ok := action.(DeleteAction); !ok || a.Previous != nil {
		t.Errorf("action = %#v", action)
	}
}

func TestScript_SameValueIsUpdate(t *testing.T) {
	v := ptr("2024-01-01T00:00:00+00:00")
	once, _, err := Script(script, v)
	if err != nil {
		t.Fatal(err)
	}
	twice, action, err := Script(once, v)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := action.(UpdateAction); !ok {
		t.Errorf("action = %#v, want UpdateAction", action)
	}
	if once != twice {
		t.Error("restamping with the same value changed the text")
	}
}

func TestContent_ExistingToolTable(t *testing.T) {
	content := "dependencies = []\n\n[tool.uv]\nprerelease = \"allow\"\n\n[tool.uv.sources]\nfoo = { path = \"../foo\" }\n"
	out, _, err := Content(content, ptr("2024-01-01T00:00:00+00:00"))
	if err != nil {
		t.Fatalf("Content: %v", err)
	}
	want := "dependencies = []\n\n[tool.uv]\nprerelease = \"allow\"\nexclude-newer = \"2024-01-01T00:00:00+00:00\"\n\n[tool.uv.sources]\nfoo = { path = \"../foo\" }\n"
	if out != want {
		t.Errorf("content =\n%s", out)
	}

	cleared, _, err := Content(out, nil)
	if err != nil {
		t.Fatalf("Content: %v", err)
	}
	if cleared != content {
		t.Errorf("cleared =\n%s", cleared)
	}
}

func TestContent_ClearRemovesEmptyTables(t *testing.T) {
	content := "dependencies = []\n\n[tool]\n\n[tool.uv]\nexclude-newer = \"2024-01-01T00:00:00+00:00\"\n"
	out, action, err := Content(content, nil)
	if err != nil {
		t.Fatalf("Content: %v", err)
	}
	if out != "dependencies = []\n" {
		t.Errorf("content = %q", out)
	}
	if a := action.(DeleteAction); a.Previous == nil {
		t.Error("expected previous value")
	}
}

func TestContent_ClearWithoutTimestampDropsEmptyTable(t *testing.T) {
	out, action, err := Content("dependencies = []\n\n[tool.uv]\n", nil)
	if err != nil {
		t.Fatalf("Content: %v", err)
	}
	if out != "dependencies = []\n" {
		t.Errorf("content = %q", out)
	}
	if a, ok := action.(DeleteAction); !ok || a.Previous != nil {
		t.Errorf("action = %#v", action)
	}
}

func TestContent_ClearWithoutTimestampKeepsText(t *testing.T) {
	content := "dependencies = []\n\n\n[tool.uv]\nprerelease = \"allow\"\n"
	out, _, err := Content(content, nil)
	if err != nil {
		t.Fatalf("Content: %v", err)
	}
	if out != content {
		t.Errorf("content = %q, want it unchanged", out)
	}
}

func TestContent_ClearCollapsesBlankLines(t *testing.T) {
	cases := []struct {
		name, content, want string
	}{
		{
			name:    "field between blank lines",
			content: "dependencies = []\n\n[tool.uv]\nprerelease = \"allow\"\n\nexclude-newer = \"2024-01-01T00:00:00+00:00\"\n\n[tool.uv.sources]\nfoo = { path = \"../foo\" }\n",
			want:    "dependencies = []\n\n[tool.uv]\nprerelease = \"allow\"\n\n[tool.uv.sources]\nfoo = { path = \"../foo\" }\n",
		},
		{
			name:    "empty tables before another table",
			content: "dependencies = []\n\n[tool]\n\n[tool.uv]\nexclude-newer = \"2024-01-01T00:00:00+00:00\"\n\n[other]\nx = 1\n",
			want:    "dependencies = []\n\n[other]\nx = 1\n",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, _, err := Content(tc.content, nil)
			if err != nil {
				t.Fatalf("Content: %v", err)
			}
			if out != tc.want {
				t.Errorf("content = %q, want %q", out, tc.want)
			}
		})
	}
}

func TestContent_DottedKey(t *testing.T) {
	content := "dependencies = []\ntool.uv.exclude-newer = \"2023-01-01T00:00:00+00:00\"\n"
	out, action, err := Content(content, ptr("2024-01-01T00:00:00+00:00"))
	if err != nil {
		t.Fatalf("Content: %v", err)
	}
	if _, ok := action.(UpdateAction); !ok {
		t.Errorf("action = %#v", action)
	}
	if !strings.Contains(out, `tool.uv.exclude-newer = "2024-01-01T00:00:00+00:00"`) {
		t.Errorf("content = %q", out)
	}
}

func TestContent_InlineTableFallsBack(t *testing.T) {
	content := "dependencies = []\ntool = { uv = { prerelease = \"allow\" } }\n"
	out, _, err := Content(content, ptr("2024-01-01T00:00:00+00:00"))
	if err != nil {
		t.Fatalf("Content: %v", err)
	}
	doc, err := decode(out)
	if err != nil {
		t.Fatalf("result is not valid TOML: %v\n%s", err, out)
	}
	if v := currentValue(doc); v == nil || *v != "2024-01-01T00:00:00+00:00" {
		t.Errorf("exclude-newer = %v", deref(v))
	}
	if v, _ := lookup(doc, "tool", "uv", "prerelease"); v != "allow" {
		t.Errorf("prerelease lost: %v", v)
	}
}

func TestScript_Errors(t *testing.T) {
	if _, _, err := Script("print(1)\n", nil); !errors.Is(err, apperr.ErrNoMetadata) {
		t.Errorf("err = %v, want ErrNoMetadata", err)
	}
	bad := "# /// script\n# dependencies = [\n# ///\n"
	if _, _, err := Script(bad, nil); !errors.Is(err, apperr.ErrInvalidTOML) {
		t.Errorf("err = %v, want ErrInvalidTOML", err)
	}
}

func TestNotebook_StampsMetadataCell(t *testing.T) {
	meta := "# /// script\n# dependencies = []\n# ///"
	nb := models.NewNotebook(
		models.NewMarkdownCell("# Notes"),
		models.NewCodeCell(meta, true),
		models.NewCodeCell("x = 1", false),
	)
	action, err := Notebook(nb, ptr("2024-01-01T00:00:00+00:00"))
	if err != nil {
		t.Fatalf("Notebook: %v", err)
	}
	if _, ok := action.(CreateAction); !ok {
		t.Errorf("action = %#v", action)
	}
	if !strings.Contains(nb.Cells[1].Text(), "# exclude-newer = ") {
		t.Errorf("cell = %q", nb.Cells[1].Text())
	}
	if nb.Cells[2].Text() != "x = 1" {
		t.Error("other cells changed")
	}

	if _, err := Notebook(models.NewNotebook(), nil); !errors.Is(err, apperr.ErrNoMetadata) {
		t.Errorf("err = %v, want ErrNoMetadata", err)
	}
}
