package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/eihwaz/internal"
	"github.com/starford/eihwaz/internal/builder"
	"github.com/starford/eihwaz/internal/export"
	"github.com/starford/eihwaz/internal/parser"
	"github.com/starford/eihwaz/internal/scanner"
	"github.com/starford/eihwaz/internal/validator"
	"github.com/starford/eihwaz/internal/watch"
	pkgconfig "github.com/starford/eihwaz/pkg/config"
)

// loadApp builds the wired application for one command invocation. mutate,
// when non-nil, adjusts the loaded config before wiring.
func loadApp(cmd *cli.Command, mutate func(*internal.Config)) (*internal.App, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOrDefault(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cmd.Bool("verbose") {
		cfg.App.LogLevel = slog.LevelDebug
	}
	if mutate != nil {
		mutate(cfg)
	}
	return internal.NewApp(internal.WithConfig(cfg))
}

// parseInput parses the structure argument: a path, or "-" for stdin.
func parseInput(app *internal.App, arg, formatName string) (parser.Result, error) {
	hint, err := parser.ParseFormat(formatName)
	if err != nil {
		return parser.Result{}, err
	}
	if arg == "" || arg == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return parser.Result{}, fmt.Errorf("read stdin: %w", err)
		}
		return app.Parser.Parse(string(data), hint), nil
	}
	return app.Parser.ParseFile(arg, hint), nil
}

// emit writes rendered output to --output when given, stdout otherwise.
func emit(cmd *cli.Command, text string) error {
	if out := cmd.String("output"); out != "" {
		return os.WriteFile(out, []byte(text), 0o644)
	}
	_, err := fmt.Fprint(os.Stdout, text)
	return err
}

func printIssues(res validator.Result) {
	for _, is := range res.Issues {
		line := fmt.Sprintf("[%s] %s", is.Severity, is.Message)
		if is.Path != "" {
			line += fmt.Sprintf(" (%s)", is.Path)
		}
		if is.Suggestion != "" {
			line += fmt.Sprintf(": %s", is.Suggestion)
		}
		fmt.Fprintln(os.Stderr, line)
	}
}

func scanOptions(cmd *cli.Command) scanner.Options {
	return scanner.Options{
		Recursive:         !cmd.Bool("flat"),
		IncludeHidden:     cmd.Bool("hidden"),
		FollowSymlinks:    cmd.Bool("follow-symlinks"),
		DetectProjectType: !cmd.Bool("no-detect"),
		CustomIgnore:      cmd.StringSlice("ignore"),
	}
}

func scanAction(ctx context.Context, cmd *cli.Command) error {
	app, err := loadApp(cmd, func(cfg *internal.Config) {
		if cmd.Bool("no-cache") {
			cfg.Cache.Enabled = false
		}
	})
	if err != nil {
		return err
	}
	defer app.Close()

	path := cmd.Args().First()
	if path == "" {
		path = "."
	}

	res := app.Scanner.Scan(ctx, path, scanOptions(cmd))
	for _, w := range res.Warnings {
		app.Logger.Warn("scan warning", slog.String("detail", w))
	}
	if !res.Success {
		return fmt.Errorf("scan failed: %s", res.Errors[0])
	}

	format, err := export.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	text, err := export.Render(res.Structure, format, filepath.Base(res.RootPath))
	if err != nil {
		return err
	}
	if err := emit(cmd, text); err != nil {
		return err
	}

	if cmd.Bool("stats") {
		fmt.Fprintf(os.Stderr, "%d files, %d directories, %d bytes, %d skipped",
			res.Stats.Files, res.Stats.Directories, res.Stats.TotalSize, res.Stats.SkippedItems)
		if res.ProjectType != scanner.ProjectUnknown {
			fmt.Fprintf(os.Stderr, ", project type %s", res.ProjectType)
		}
		if res.FromCache {
			fmt.Fprint(os.Stderr, " (cached)")
		}
		fmt.Fprintln(os.Stderr)
	}
	return nil
}

func buildAction(ctx context.Context, cmd *cli.Command) error {
	app, err := loadApp(cmd, nil)
	if err != nil {
		return err
	}
	defer app.Close()

	parsed, err := parseInput(app, cmd.Args().First(), cmd.String("format"))
	if err != nil {
		return err
	}
	if !parsed.Success {
		return fmt.Errorf("parse failed: %s", parsed.Errors[0])
	}
	for _, w := range parsed.Warnings {
		app.Logger.Warn("parse warning", slog.String("detail", w))
	}

	target := cmd.String("target")

	if !cmd.Bool("skip-validation") {
		vres := app.Validator.Validate(parsed.Structure, target)
		printIssues(vres)
		if !vres.Valid {
			return fmt.Errorf("structure failed validation: %d error(s)", vres.Counts.Errors)
		}
	}

	res := app.Builder.Build(ctx, parsed.Structure, target, builder.Options{
		Force:      cmd.Bool("force"),
		DryRun:     cmd.Bool("dry-run"),
		CreateRoot: !cmd.Bool("no-create-root"),
	})
	for _, w := range res.Warnings {
		app.Logger.Warn("build warning", slog.String("detail", w))
	}
	if !res.Success {
		return fmt.Errorf("build failed: %s", res.Errors[0])
	}

	verb := "created"
	if cmd.Bool("dry-run") {
		verb = "would create"
	}
	fmt.Fprintf(os.Stdout, "%s %d directories and %d files under %s (%d skipped, %d overwritten)\n",
		verb, res.Stats.DirectoriesCreated, res.Stats.FilesCreated, res.TargetRoot,
		res.Stats.ItemsSkipped, res.Stats.ItemsOverwritten)
	return nil
}

func validateAction(_ context.Context, cmd *cli.Command) error {
	app, err := loadApp(cmd, func(cfg *internal.Config) {
		if p := cmd.String("platform"); p != "" {
			cfg.Validation.Platform = p
		}
		if d := cmd.Int("max-depth"); d > 0 {
			cfg.Validation.MaxDepth = int(d)
		}
	})
	if err != nil {
		return err
	}
	defer app.Close()

	parsed, err := parseInput(app, cmd.Args().First(), cmd.String("format"))
	if err != nil {
		return err
	}
	if !parsed.Success {
		return fmt.Errorf("parse failed: %s", parsed.Errors[0])
	}

	res := app.Validator.Validate(parsed.Structure, cmd.String("target"))
	printIssues(res)
	if !res.Valid {
		return fmt.Errorf("invalid structure: %d error(s), %d warning(s)",
			res.Counts.Errors, res.Counts.Warnings)
	}
	fmt.Fprintf(os.Stdout, "valid structure: %d entries, %d warning(s)\n",
		parsed.Structure.Count(), res.Counts.Warnings)
	return nil
}

func convertAction(_ context.Context, cmd *cli.Command) error {
	app, err := loadApp(cmd, nil)
	if err != nil {
		return err
	}
	defer app.Close()

	parsed, err := parseInput(app, cmd.Args().First(), cmd.String("from"))
	if err != nil {
		return err
	}
	if !parsed.Success {
		return fmt.Errorf("parse failed: %s", parsed.Errors[0])
	}
	for _, w := range parsed.Warnings {
		app.Logger.Warn("parse warning", slog.String("detail", w))
	}

	format, err := export.ParseFormat(cmd.String("to"))
	if err != nil {
		return err
	}
	text, err := export.Render(parsed.Structure, format, cmd.String("root-name"))
	if err != nil {
		return err
	}
	return emit(cmd, text)
}

func watchAction(ctx context.Context, cmd *cli.Command) error {
	app, err := loadApp(cmd, nil)
	if err != nil {
		return err
	}
	defer app.Close()

	path := cmd.Args().First()
	if path == "" {
		path = "."
	}
	format, err := export.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := watch.New(app.Logger, app.Scanner, scanOptions(cmd))
	return w.Run(ctx, path, func(res scanner.Result) {
		if !res.Success {
			app.Logger.Error("rescan failed", slog.String("error", res.Errors[0]))
			return
		}
		text, renderErr := export.Render(res.Structure, format, filepath.Base(res.RootPath))
		if renderErr != nil {
			return
		}
		fmt.Fprint(os.Stdout, text)
	})
}

func main() {
	formatFlag := &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Input format (auto, json, json-flat, tree, plain)",
		Value:   "auto",
	}
	targetFlag := &cli.StringFlag{
		Name:    "target",
		Aliases: []string{"t"},
		Usage:   "Target directory",
		Value:   ".",
	}
	scanFlags := []cli.Flag{
		&cli.BoolFlag{Name: "flat", Usage: "Scan only the top level"},
		&cli.BoolFlag{Name: "hidden", Usage: "Include hidden entries"},
		&cli.BoolFlag{Name: "follow-symlinks", Usage: "Follow symlinked directories"},
		&cli.BoolFlag{Name: "no-detect", Usage: "Disable project type detection"},
		&cli.StringSliceFlag{Name: "ignore", Aliases: []string{"i"}, Usage: "Extra ignore patterns"},
		&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "Output format (tree, paths, json, yaml, markdown)", Value: "tree"},
	}

	cmd := &cli.Command{
		Name:  "eihwaz",
		Usage: "Parse, validate, build, and scan project directory structures",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
				Persistent:  true,
			},
			&cli.BoolFlag{
				Name:       "verbose",
				Aliases:    []string{"v"},
				Usage:      "Enable debug logging",
				Persistent: true,
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "scan",
				Usage:     "Scan a directory into a structure",
				ArgsUsage: "[path]",
				Action:    scanAction,
				Flags: append(scanFlags,
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write output to a file"},
					&cli.BoolFlag{Name: "no-cache", Usage: "Bypass the scan cache"},
					&cli.BoolFlag{Name: "stats", Usage: "Print scan statistics"},
				),
			},
			{
				Name:      "build",
				Usage:     "Create directories and files from a structure definition",
				ArgsUsage: "[file|-]",
				Action:    buildAction,
				Flags: []cli.Flag{
					formatFlag,
					targetFlag,
					&cli.BoolFlag{Name: "force", Usage: "Overwrite existing entries"},
					&cli.BoolFlag{Name: "dry-run", Aliases: []string{"n"}, Usage: "Preview without touching the filesystem"},
					&cli.BoolFlag{Name: "no-create-root", Usage: "Fail when the target root does not exist"},
					&cli.BoolFlag{Name: "skip-validation", Usage: "Build without validating first"},
				},
			},
			{
				Name:      "validate",
				Usage:     "Check a structure definition against platform rules",
				ArgsUsage: "[file|-]",
				Action:    validateAction,
				Flags: []cli.Flag{
					formatFlag,
					&cli.StringFlag{Name: "platform", Aliases: []string{"p"}, Usage: "Platform rules (any, windows, posix)"},
					&cli.IntFlag{Name: "max-depth", Usage: "Maximum nesting depth"},
					&cli.StringFlag{Name: "target", Aliases: []string{"t"}, Usage: "Check for conflicts against this directory"},
				},
			},
			{
				Name:      "convert",
				Usage:     "Convert a structure definition between notations",
				ArgsUsage: "[file|-]",
				Action:    convertAction,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Usage: "Input format (auto, json, json-flat, tree, plain)", Value: "auto"},
					&cli.StringFlag{Name: "to", Usage: "Output format (tree, paths, json, yaml, markdown)", Value: "tree"},
					&cli.StringFlag{Name: "root-name", Usage: "Root heading for tree and markdown output"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write output to a file"},
				},
			},
			{
				Name:      "watch",
				Usage:     "Rescan and re-render a directory whenever it changes",
				ArgsUsage: "[path]",
				Action:    watchAction,
				Flags:     scanFlags,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
