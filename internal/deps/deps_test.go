package deps

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/starford/juv/internal/apperr"
	"github.com/starford/juv/internal/convert"
	"github.com/starford/juv/internal/inlinemeta"
	"github.com/starford/juv/internal/models"
	"github.com/starford/juv/internal/testutil"
	"github.com/starford/juv/internal/uv"
)

func dependencies(t *testing.T, nb *models.Notebook) []string {
	t.Helper()
	content, ok, err := convert.ExtractFirstMetadata(nb)
	if err != nil || !ok {
		t.Fatalf("ExtractFirstMetadata: ok=%v err=%v", ok, err)
	}
	meta, err := inlinemeta.Unmarshal(content)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	return meta.Dependencies
}

func assertNoStagedFiles(t *testing.T, dir string) {
	t.Helper()
	matches, _ := filepath.Glob(filepath.Join(dir, ".juv-stage-*"))
	if len(matches) != 0 {
		t.Errorf("staged files left behind: %v", matches)
	}
}

func TestAdd_CreatesHiddenMetadataCell(t *testing.T) {
	dir, store := testutil.TestWorkspace(t)
	res := &testutil.FakeResolver{}
	m := New(store, res)

	nb := models.NewNotebook(models.NewCodeCell("print(1)", false))
	if err := m.Add(context.Background(), nb, "", []string{"numpy"}, uv.AddOptions{}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(nb.Cells) != 2 {
		t.Fatalf("len(cells) = %d", len(nb.Cells))
	}
	if !nb.Cells[0].Hidden() || nb.Cells[0].Type != models.CellCode {
		t.Error("metadata cell should be a hidden code cell at index 0")
	}
	if got := dependencies(t, nb); !reflect.DeepEqual(got, []string{"numpy"}) {
		t.Errorf("dependencies = %v", got)
	}
	if nb.Cells[1].Text() != "print(1)" {
		t.Error("other cells changed")
	}
	if len(res.Calls) != 1 || !filepath.IsAbs(res.Calls[0].Script) || !strings.HasSuffix(res.Calls[0].Script, ".py") {
		t.Errorf("calls = %+v", res.Calls)
	}
	assertNoStagedFiles(t, dir)
}

func TestAdd_UpdatesExistingCellInPlace(t *testing.T) {
	_, store := testutil.TestWorkspace(t)
	m := New(store, &testutil.FakeResolver{})

	meta := models.NewCodeCell("# /// script\n# dependencies = [\"polars\"]\n# ///", false)
	nb := models.NewNotebook(models.NewMarkdownCell("# Notes"), meta)
	if err := m.Add(context.Background(), nb, "", []string{"anywidget"}, uv.AddOptions{}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(nb.Cells) != 2 || nb.Cells[1] != meta {
		t.Fatal("existing metadata cell should stay where it is")
	}
	if got := dependencies(t, nb); !reflect.DeepEqual(got, []string{"anywidget", "polars"}) {
		t.Errorf("dependencies = %v", got)
	}
}

func TestAdd_Idempotent(t *testing.T) {
	_, store := testutil.TestWorkspace(t)
	m := New(store, &testutil.FakeResolver{})
	nb := models.NewNotebook()

	ctx := context.Background()
	if err := m.Add(ctx, nb, "", []string{"rich", "attrs"}, uv.AddOptions{}); err != nil {
		t.Fatal(err)
	}
	first := nb.Cells[0].Text()
	if err := m.Add(ctx, nb, "", []string{"rich"}, uv.AddOptions{}); err != nil {
		t.Fatal(err)
	}
	if second := nb.Cells[0].Text(); second != first {
		t.Errorf("second add changed the block:\n%s\nvs\n%s", first, second)
	}
}

func TestAdd_ResolverFailureLeavesNotebook(t *testing.T) {
	dir, store := testutil.TestWorkspace(t)
	m := New(store, &testutil.FakeResolver{Fail: true})

	nb := models.NewNotebook(models.NewCodeCell("x = 1", false))
	err := m.Add(context.Background(), nb, "", []string{"numpy"}, uv.AddOptions{})
	if !errors.Is(err, apperr.ErrCommandFailed) {
		t.Fatalf("err = %v, want ErrCommandFailed", err)
	}
	if len(nb.Cells) != 1 {
		t.Error("notebook changed after a failed add")
	}
	assertNoStagedFiles(t, dir)
}

func TestAdd_RejectsConflictingRefs(t *testing.T) {
	_, store := testutil.TestWorkspace(t)
	res := &testutil.FakeResolver{}
	m := New(store, res)
	err := m.Add(context.Background(), models.NewNotebook(), "", []string{"pkg"}, uv.AddOptions{Tag: "v1", Branch: "main"})
	if !errors.Is(err, apperr.ErrMutuallyExclusive) {
		t.Fatalf("err = %v", err)
	}
	if len(res.Calls) != 0 {
		t.Error("resolver should not run")
	}
}

func TestAdd_StagesInGivenDirectory(t *testing.T) {
	dir, store := testutil.TestWorkspace(t)
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	res := &testutil.FakeResolver{}
	if err := New(store, res).Add(context.Background(), models.NewNotebook(), "sub", []string{"a"}, uv.AddOptions{}); err != nil {
		t.Fatal(err)
	}
	if got := filepath.Dir(res.Calls[0].Script); got != filepath.Join(dir, "sub") {
		t.Errorf("staged in %s", got)
	}
}

func TestInit_BuildsTwoCells(t *testing.T) {
	dir, store := testutil.TestWorkspace(t)
	nb, err := New(store, &testutil.FakeResolver{}).Init(context.Background(), "", "3.12")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if len(nb.Cells) != 2 || !nb.Cells[0].Hidden() || nb.Cells[1].Text() != "" {
		t.Fatalf("cells = %+v", nb.Cells)
	}
	content, ok, err := convert.ExtractFirstMetadata(nb)
	if err != nil || !ok {
		t.Fatalf("no metadata: %v", err)
	}
	meta, err := inlinemeta.Unmarshal(content)
	if err != nil || meta.RequiresPython != ">=3.12" {
		t.Errorf("meta = %+v, %v", meta, err)
	}
	assertNoStagedFiles(t, dir)
}
