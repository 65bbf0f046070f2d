package mcpserver

// NotebookFormat describes the markdown rendering returned by cat_notebook
// so that LLM consumers can read it back as cells.
const NotebookFormat = `# juv Notebook Markdown Format

cat_notebook renders a notebook as one Markdown document, one block per cell.

## Cells

- **Markdown cells** are written as-is.
- **Code cells** are fenced with ` + "`" + "```python" + "`" + `.
- **Raw cells** are fenced with ` + "`" + "```raw" + "`" + `.
- Two consecutive markdown cells are separated by two blank lines; otherwise
  cells are separated by one blank line.
- A markdown cell that is empty, contains two blank lines in a row or
  contains a fence is enclosed in ` + "`" + "<!-- #region -->" + "`" + ` and
  ` + "`" + "<!-- #endregion -->" + "`" + ` lines and kept verbatim.
- A fence is longer than any backtick run inside the cell, so a cell that
  itself contains ` + "`" + "```" + "`" + ` is fenced with four backticks.

Outputs, execution counts and cell ids are not part of the rendering.

## Inline metadata

The first code cell usually holds the script block that lists dependencies:

` + "```" + `python
# /// script
# requires-python = ">=3.12"
# dependencies = ["numpy", "pandas"]
#
# [tool.uv]
# exclude-newer = "2024-06-01T00:00:00+00:00"
# ///
` + "```" + `

Use read_metadata for the parsed values and stamp_notebook to set or clear
exclude-newer. Timestamps keep their UTC offset and are given to the second.

## Script format

With format=script the notebook is rendered as a percent-format Python file:
the script block first, then each cell after a ` + "`" + "# %%" + "`" + ` line.
Markdown cells use ` + "`" + "# %% [markdown]" + "`" + ` and have every line commented.
`
