package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/starford/juv/internal/noteservice"
	"github.com/starford/juv/internal/stamp"
	"github.com/starford/juv/internal/ui"
	"github.com/starford/juv/internal/uv"
)

// Init creates a new notebook.
func (app *App) Init(ctx context.Context, path, python string, with []string) error {
	written, err := app.service.Init(ctx, path, python, with)
	if err != nil {
		return err
	}
	app.printer.Success("Initialized", "notebook at %s", app.printer.Path(written))
	return nil
}

// Add adds packages to the metadata of a script or notebook.
func (app *App) Add(ctx context.Context, path string, packages []string, opts uv.AddOptions) error {
	target, err := app.service.Add(ctx, path, packages, opts)
	if err != nil {
		return err
	}
	app.printer.Success("Updated", "%s", app.printer.Path(target))
	return nil
}

// Stamp sets or clears exclude-newer.
func (app *App) Stamp(ctx context.Context, path string, req stamp.Request) error {
	action, err := app.service.Stamp(ctx, path, req)
	if err != nil {
		return err
	}
	if a, ok := action.(stamp.DeleteAction); ok && a.Previous == nil {
		app.printer.Warn("No timestamp found in %s", app.printer.Path(path))
		return nil
	}
	app.printer.Success("Stamped", "%s: %s", app.printer.Path(path), action)
	return nil
}

// Edit opens a notebook in the editor.
func (app *App) Edit(ctx context.Context, path string) error {
	res, err := app.service.Edit(ctx, path)
	if err != nil {
		return err
	}
	if !res.Changed {
		app.printer.Warn("No changes to %s", app.printer.Path(path))
		return nil
	}
	app.printer.Success("Edited", "%s (%d kept, %d new, %d removed)",
		app.printer.Path(path), res.Stats.Matched, res.Stats.Created, res.Stats.Dropped)
	return nil
}

// Clear removes outputs from notebooks. With check set it reports the
// notebooks that have outputs and returns false if there are any.
func (app *App) Clear(ctx context.Context, paths []string, check bool) (bool, error) {
	hits, err := app.service.Clear(ctx, paths, check)
	if err != nil {
		return false, err
	}
	if check {
		for _, p := range hits {
			app.printer.Error("%s has outputs", app.printer.Path(p))
		}
		if len(hits) > 0 {
			return false, nil
		}
		app.printer.Success("Clean", "%d notebook(s) without outputs", len(paths))
		return true, nil
	}
	for _, p := range hits {
		app.printer.Success("Cleared", "output from %s", app.printer.Path(p))
	}
	if len(hits) == 0 {
		app.printer.Warn("No outputs to clear")
	}
	return true, nil
}

// CatOptions select how Cat renders a document.
type CatOptions struct {
	Script bool
	Pretty bool
	Watch  bool
}

func (o CatOptions) format() (format, language string) {
	if o.Script {
		return noteservice.FormatScript, "python"
	}
	return noteservice.FormatMarkdown, "markdown"
}

// Cat prints a document as markdown or as a percent script.
func (app *App) Cat(ctx context.Context, path string, opts CatOptions) error {
	format, language := opts.format()
	show := func(text string) {
		if opts.Pretty {
			text = ui.Highlight(text, language)
		}
		app.printer.Plain(text)
	}

	if !opts.Watch {
		out, err := app.service.Cat(ctx, path, format)
		if err != nil {
			return err
		}
		show(out)
		return nil
	}

	reset := ui.IsTerminal(app.stdout)
	return app.Watch(ctx, path, func(data []byte) error {
		out, err := noteservice.Render(path, data, format)
		if err != nil {
			app.logger.Warn("cat: render failed", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		if reset {
			io.WriteString(app.stdout, "\033[H\033[2J")
		}
		show(out)
		return nil
	})
}

// Run launches a notebook server.
func (app *App) Run(ctx context.Context, path string, req noteservice.RunRequest) error {
	plan, err := app.service.Run(ctx, path, req)
	if err != nil {
		return err
	}
	if req.DryRun {
		fmt.Fprintln(app.stdout, plan.Command)
	}
	return nil
}

// Venv syncs a virtual environment.
func (app *App) Venv(ctx context.Context, path string, req noteservice.VenvRequest) error {
	venv, err := app.service.Venv(ctx, path, req)
	if err != nil {
		return err
	}
	app.printer.Success("Synced", "environment at %s", app.printer.Path(venv))
	return nil
}

// Version prints the juv version and, when available, the uv version.
func (app *App) Version(ctx context.Context, version string, withUV bool) error {
	fmt.Fprintf(app.stdout, "juv %s\n", version)
	if !withUV {
		return nil
	}
	v, err := app.uv.Version(ctx)
	if err != nil {
		app.logger.Warn("version: uv unavailable", slog.String("error", err.Error()))
		return nil
	}
	fmt.Fprintln(app.stdout, strings.TrimSpace(v))
	return nil
}
