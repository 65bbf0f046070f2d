// Package ui formats the status lines and highlighted listings juv prints
// for the user.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Printer writes user-facing messages, styled when its writer is a terminal.
type Printer struct {
	w     io.Writer
	color bool

	path    lipgloss.Style
	success lipgloss.Style
	warn    lipgloss.Style
	failure lipgloss.Style
}

// NewPrinter returns a printer for w.
func NewPrinter(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:       w,
		color:   IsTerminal(w),
		path:    r.NewStyle().Foreground(lipgloss.Color("6")),
		success: r.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		warn:    r.NewStyle().Foreground(lipgloss.Color("3")),
		failure: r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}
}

func (p *Printer) render(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

// Path formats a file path as `path`.
func (p *Printer) Path(path string) string {
	return "`" + p.render(p.path, path) + "`"
}

// Success prints a line prefixed with the verb in bold.
func (p *Printer) Success(verb, format string, args ...any) {
	fmt.Fprintf(p.w, "%s %s\n", p.render(p.success, verb), fmt.Sprintf(format, args...))
}

// Warn prints a warning line.
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(p.warn, fmt.Sprintf(format, args...)))
}

// Error prints an error line.
func (p *Printer) Error(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(p.failure, "error:")+" "+fmt.Sprintf(format, args...))
}

// Plain prints text as is, ensuring a trailing newline.
func (p *Printer) Plain(text string) {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	io.WriteString(p.w, text)
}

// Highlight returns src highlighted for a 256 colour terminal. The input
// is returned unchanged when the lexer fails.
func Highlight(src, language string) string {
	var b strings.Builder
	if err := quick.Highlight(&b, src, language, "terminal256", "monokai"); err != nil {
		return src
	}
	return b.String()
}
