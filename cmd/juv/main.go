package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/juv/internal"
	"github.com/starford/juv/internal/noteservice"
	"github.com/starford/juv/internal/stamp"
	"github.com/starford/juv/internal/uv"
	pkgconfig "github.com/starford/juv/pkg/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "juv", "config.yaml")
}

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig(os.Getenv)
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func newApp(cmd *cli.Command, cfg *internal.Config, opts ...internal.Option) (*internal.App, error) {
	opts = append([]internal.Option{
		internal.WithConfig(cfg),
		internal.WithVerbose(cmd.Bool("verbose")),
	}, opts...)
	return internal.New(opts...)
}

// action adapts an App method to a cli action.
func action(fn func(ctx context.Context, cmd *cli.Command, app *internal.App) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		app, err := newApp(cmd, cfg)
		if err != nil {
			return err
		}
		return fn(ctx, cmd, app)
	}
}

func requireArgs(cmd *cli.Command, n int) error {
	if cmd.Args().Len() < n {
		return cli.Exit(fmt.Sprintf("%s: expected at least %d argument(s)", cmd.FullName(), n), 2)
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "juv",
		Usage:   "Create, manage and run reproducible Jupyter notebooks with uv",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "$XDG_CONFIG_HOME/juv/config.yaml",
				Value:       defaultConfigPath(),
				Sources:     cli.EnvVars(internal.EnvConfigFile),
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log debug output to stderr",
			},
		},
		Commands: []*cli.Command{
			initCommand(),
			addCommand(),
			runCommand(),
			stampCommand(),
			editCommand(),
			clearCommand(),
			catCommand(),
			venvCommand(),
			mcpCommand(),
			versionCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "Create a new notebook",
		ArgsUsage: "[file.ipynb]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "python", Aliases: []string{"p"}, Usage: "Python interpreter for requires-python"},
			&cli.StringSliceFlag{Name: "with", Usage: "Package to add (repeatable)"},
		},
		Action: action(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			return app.Init(ctx, cmd.Args().First(), cmd.String("python"), cmd.StringSlice("with"))
		}),
	}
}

func addCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Add dependencies to a script or notebook",
		ArgsUsage: "<file> [packages...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "requirements", Aliases: []string{"r"}, Usage: "Add all packages listed in a requirements file"},
			&cli.StringSliceFlag{Name: "extra", Usage: "Extras to enable for the dependency (repeatable)"},
			&cli.BoolFlag{Name: "editable", Usage: "Add the requirements as editable"},
			&cli.StringFlag{Name: "tag", Usage: "Tag to use when adding a dependency from Git"},
			&cli.StringFlag{Name: "branch", Usage: "Branch to use when adding a dependency from Git"},
			&cli.StringFlag{Name: "rev", Usage: "Commit to use when adding a dependency from Git"},
		},
		Action: action(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			if err := requireArgs(cmd, 1); err != nil {
				return err
			}
			args := cmd.Args().Slice()
			opts := uv.AddOptions{
				Extras:       cmd.StringSlice("extra"),
				Editable:     cmd.Bool("editable"),
				Tag:          cmd.String("tag"),
				Branch:       cmd.String("branch"),
				Rev:          cmd.String("rev"),
				Requirements: cmd.String("requirements"),
			}
			if len(args) < 2 && opts.Requirements == "" {
				return cli.Exit("add: no packages given", 2)
			}
			return app.Add(ctx, args[0], args[1:], opts)
		}),
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Launch a notebook or script in Jupyter",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "jupyter", Usage: "Jupyter front end: lab, notebook or nbclassic, optionally @version"},
			&cli.StringFlag{Name: "python", Aliases: []string{"p"}, Usage: "Python interpreter to use"},
			&cli.StringSliceFlag{Name: "with", Usage: "Additional package to include (repeatable)"},
			&cli.BoolFlag{Name: "no-cache", Usage: "Avoid reading from or writing to the uv cache"},
			&cli.BoolFlag{Name: "no-project", Usage: "Do not discover a surrounding project"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Print the command instead of running it"},
		},
		Action: action(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			if err := requireArgs(cmd, 1); err != nil {
				return err
			}
			return app.Run(ctx, cmd.Args().First(), noteservice.RunRequest{
				Jupyter: cmd.String("jupyter"),
				RunOptions: uv.RunOptions{
					Python:    cmd.String("python"),
					With:      cmd.StringSlice("with"),
					NoCache:   cmd.Bool("no-cache"),
					NoProject: cmd.Bool("no-project"),
				},
				DryRun: cmd.Bool("dry-run"),
			})
		}),
	}
}

func stampCommand() *cli.Command {
	return &cli.Command{
		Name:      "stamp",
		Usage:     "Pin exclude-newer so dependency resolution is reproducible",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "time", Usage: "RFC 3339 timestamp, or a date meaning the end of that day"},
			&cli.StringFlag{Name: "rev", Usage: "Use the commit date of a git revision"},
			&cli.BoolFlag{Name: "latest", Usage: "Use the commit date of HEAD"},
			&cli.BoolFlag{Name: "clear", Usage: "Remove the timestamp"},
		},
		Action: action(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			if err := requireArgs(cmd, 1); err != nil {
				return err
			}
			return app.Stamp(ctx, cmd.Args().First(), stamp.Request{
				Time:   cmd.String("time"),
				Rev:    cmd.String("rev"),
				Latest: cmd.Bool("latest"),
				Clear:  cmd.Bool("clear"),
			})
		}),
	}
}

func editCommand() *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "Edit a notebook as markdown in your editor",
		ArgsUsage: "<file.ipynb>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "editor", Usage: "Editor command (defaults to $VISUAL, then $EDITOR)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := requireArgs(cmd, 1); err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if e := cmd.String("editor"); e != "" {
				cfg.Editor = e
			}
			app, err := newApp(cmd, cfg)
			if err != nil {
				return err
			}
			return app.Edit(ctx, cmd.Args().First())
		},
	}
}

func clearCommand() *cli.Command {
	return &cli.Command{
		Name:      "clear",
		Usage:     "Clear outputs and execution counts from notebooks",
		ArgsUsage: "<file.ipynb>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "check", Usage: "Fail if any notebook has outputs, without changing it"},
		},
		Action: action(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			if err := requireArgs(cmd, 1); err != nil {
				return err
			}
			clean, err := app.Clear(ctx, cmd.Args().Slice(), cmd.Bool("check"))
			if err != nil {
				return err
			}
			if !clean {
				return cli.Exit("", 1)
			}
			return nil
		}),
	}
}

func catCommand() *cli.Command {
	return &cli.Command{
		Name:      "cat",
		Usage:     "Print a notebook as markdown or as a script",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "script", Usage: "Print as a percent-format Python script"},
			&cli.BoolFlag{Name: "pretty", Usage: "Syntax highlight the output"},
			&cli.BoolFlag{Name: "watch", Aliases: []string{"w"}, Usage: "Re-print whenever the file changes"},
		},
		Action: action(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			if err := requireArgs(cmd, 1); err != nil {
				return err
			}
			return app.Cat(ctx, cmd.Args().First(), internal.CatOptions{
				Script: cmd.Bool("script"),
				Pretty: cmd.Bool("pretty"),
				Watch:  cmd.Bool("watch"),
			})
		}),
	}
}

func venvCommand() *cli.Command {
	return &cli.Command{
		Name:      "venv",
		Usage:     "Create or sync a virtual environment from a script or notebook",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "python", Aliases: []string{"p"}, Usage: "Python interpreter to use"},
			&cli.StringFlag{Name: "path", Usage: "Environment directory", Value: ".venv"},
			&cli.BoolFlag{Name: "no-kernel", Usage: "Do not install ipykernel"},
		},
		Action: action(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			if err := requireArgs(cmd, 1); err != nil {
				return err
			}
			return app.Venv(ctx, cmd.Args().First(), noteservice.VenvRequest{
				Python:   cmd.String("python"),
				Path:     cmd.String("path"),
				NoKernel: cmd.Bool("no-kernel"),
			})
		}),
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve notebook tools over MCP on stdio, rooted at the working directory",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			app, err := newApp(cmd, cfg, internal.WithRoot(wd))
			if err != nil {
				return err
			}
			return app.ServeMCP(ctx, version)
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the juv version",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "uv", Usage: "Also print the uv version"},
		},
		Action: action(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			return app.Version(ctx, version, cmd.Bool("uv"))
		}),
	}
}
