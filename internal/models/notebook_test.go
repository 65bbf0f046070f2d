package models

import (
	"encoding/json"
	"regexp"
	"strings"
	"testing"
)

var idRe = regexp.MustCompile(`"id": "[a-zA-Z0-9-]+"`)

func filterIDs(s string) string {
	return idRe.ReplaceAllString(s, `"id": "<ID>"`)
}

func TestNewSource_KeepsNewlines(t *testing.T) {
	s := NewSource("a\nb\n\nc")
	want := []string{"a\n", "b\n", "\n", "c"}
	if len(s) != len(want) {
		t.Fatalf("len = %d, want %d (%q)", len(s), len(want), s)
	}
	for i := range want {
		if s[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, s[i], want[i])
		}
	}
	if s.String() != "a\nb\n\nc" {
		t.Errorf("String = %q", s.String())
	}
	if len(NewSource("")) != 0 {
		t.Error("empty text should give no lines")
	}
}

func TestMarshal_NotebookShape(t *testing.T) {
	nb := NewNotebook(
		NewCodeCell("# /// script\n# dependencies = []\n# ///", true),
		NewMarkdownCell("# Title <b>&</b>"),
	)
	data, err := Marshal(nb)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{
 "cells": [
  {
   "cell_type": "code",
   "execution_count": null,
   "id": "<ID>",
   "metadata": {
    "jupyter": {
     "source_hidden": true
    }
   },
   "outputs": [],
   "source": [
    "# /// script\n",
    "# dependencies = []\n",
    "# ///"
   ]
  },
  {
   "cell_type": "markdown",
   "id": "<ID>",
   "metadata": {},
   "source": [
    "# Title <b>&</b>"
   ]
  }
 ],
 "metadata": {},
 "nbformat": 4,
 "nbformat_minor": 5
}
`
	if got := filterIDs(string(data)); got != want {
		t.Errorf("Marshal output mismatch:\n%s", got)
	}
}

func TestUnmarshal_RoundTripKeepsState(t *testing.T) {
	in := `{
 "cells": [
  {
   "cell_type": "code",
   "execution_count": 3,
   "id": "abc123",
   "metadata": {"tags": ["x"]},
   "outputs": [{"output_type": "stream", "name": "stdout", "text": ["hi\n"]}],
   "source": "print('hi')\nprint(2)"
  }
 ],
 "metadata": {"uv.lock": "version = 1\n", "count": 12345678901234567890},
 "nbformat": 4,
 "nbformat_minor": 2
}`
	nb, err := Unmarshal([]byte(in))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	c := nb.Cells[0]
	if c.ID != "abc123" || *c.ExecutionCount != 3 || len(c.Outputs) != 1 {
		t.Fatalf("cell = %+v", c)
	}
	if len(c.Source) != 2 || c.Source[0] != "print('hi')\n" {
		t.Errorf("string source not split: %q", c.Source)
	}
	if nb.Lockfile() != "version = 1\n" {
		t.Errorf("lockfile = %q", nb.Lockfile())
	}

	data, err := Marshal(nb)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"nbformat_minor": 5`) {
		t.Error("minor version not normalized")
	}
	if !strings.Contains(out, "12345678901234567890") {
		t.Error("large number lost precision")
	}
	if !strings.Contains(out, `"id": "abc123"`) || !strings.Contains(out, `"execution_count": 3`) {
		t.Errorf("cell state lost:\n%s", out)
	}
}

func TestUnmarshal_RejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"bad json":      `{`,
		"no nbformat":   `{"cells": []}`,
		"nbformat 3":    `{"cells": [], "nbformat": 3, "nbformat_minor": 0}`,
		"bad cell type": `{"cells": [{"cell_type": "widget", "source": []}], "nbformat": 4, "nbformat_minor": 5}`,
		"no source":     `{"cells": [{"cell_type": "code"}], "nbformat": 4, "nbformat_minor": 5}`,
	}
	for name, in := range cases {
		if _, err := Unmarshal([]byte(in)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestNormalize_RegeneratesMissingAndDuplicateIDs(t *testing.T) {
	a := NewCodeCell("a", false)
	b := NewCodeCell("b", false)
	b.ID = a.ID
	c := NewCodeCell("c", false)
	c.ID = ""
	nb := &Notebook{Cells: []*Cell{a, b, c}}
	nb.Normalize()
	if a.ID == b.ID || c.ID == "" {
		t.Errorf("ids = %q %q %q", a.ID, b.ID, c.ID)
	}
	if nb.NBFormat != FormatMajor || nb.NBFormatMinor != FormatMinor {
		t.Errorf("format = %d.%d", nb.NBFormat, nb.NBFormatMinor)
	}
}

func TestClearOutputs(t *testing.T) {
	n := 4
	c := NewCodeCell("x", false)
	c.Outputs = []json.RawMessage{json.RawMessage(`{"output_type":"stream"}`)}
	c.ExecutionCount = &n
	nb := NewNotebook(c, NewMarkdownCell("m"))
	if !nb.HasOutputs() {
		t.Fatal("expected outputs")
	}
	if !nb.ClearOutputs() {
		t.Error("ClearOutputs should report a change")
	}
	if nb.HasOutputs() || c.ExecutionCount != nil {
		t.Error("outputs not cleared")
	}
	if nb.ClearOutputs() {
		t.Error("second ClearOutputs should be a no-op")
	}
}

func TestHidden(t *testing.T) {
	if !NewCodeCell("", true).Hidden() {
		t.Error("hidden cell not reported hidden")
	}
	if NewCodeCell("", false).Hidden() {
		t.Error("visible cell reported hidden")
	}
}
