package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/tome/internal"
	"github.com/starford/tome/internal/exporter"
	"github.com/starford/tome/internal/models"
	"github.com/starford/tome/internal/store"
	pkgconfig "github.com/starford/tome/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
}

// withApp opens the knowledge base for a one-shot command. Logs go to
// stderr so stdout stays clean for output.
func withApp(fn func(ctx context.Context, cmd *cli.Command, app *internal.App) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		if cmd.Bool("verbose") {
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.App.LogLevel}))
		}
		slog.SetDefault(logger)

		app, err := internal.OpenApp(ctx, internal.WithConfig(cfg), internal.WithLogger(logger))
		if err != nil {
			return err
		}
		defer app.Close()
		return fn(ctx, cmd, app)
	}
}

func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func printJSON(cmd *cli.Command, v any) error {
	enc := json.NewEncoder(stdout(cmd))
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func requireArg(cmd *cli.Command, name string) (string, error) {
	v := strings.TrimSpace(cmd.Args().First())
	if v == "" {
		return "", cli.Exit(fmt.Sprintf("missing argument: %s", name), 2)
	}
	return v, nil
}

func listItems(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	items := app.Service.List(ctx, store.Query{
		Text:     cmd.String("query"),
		Category: cmd.String("category"),
		Tag:      cmd.String("tag"),
	})
	if cmd.Bool("json") {
		return printJSON(cmd, items)
	}
	tw := tabwriter.NewWriter(stdout(cmd), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tTAGS\tUPDATED")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", it.ID, it.Title, it.Category, strings.Join(it.Tags, ","), it.UpdatedAt)
	}
	return tw.Flush()
}

// contentFlag returns --content, or the contents of --content-file ("-" is stdin).
func contentFlag(cmd *cli.Command) (string, bool, error) {
	if p := cmd.String("content-file"); p != "" {
		var data []byte
		var err error
		if p == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(p)
		}
		if err != nil {
			return "", false, fmt.Errorf("read content: %w", err)
		}
		return string(data), true, nil
	}
	return cmd.String("content"), cmd.IsSet("content"), nil
}

func addItem(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	content, _, err := contentFlag(cmd)
	if err != nil {
		return err
	}
	title := strings.TrimSpace(cmd.String("title"))
	if title == "" || strings.TrimSpace(content) == "" {
		return cli.Exit("title and content are required", 2)
	}
	item := app.Service.Create(ctx, models.ItemInput{
		Title:    title,
		Content:  content,
		Category: cmd.String("category"),
		Tags:     cmd.StringSlice("tag"),
	})
	return printJSON(cmd, item)
}

func updateItem(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	patch := models.ItemPatch{ID: id}
	for name, dst := range map[string]**string{
		"title":    &patch.Title,
		"category": &patch.Category,
		"summary":  &patch.Summary,
	} {
		if cmd.IsSet(name) {
			v := cmd.String(name)
			*dst = &v
		}
	}
	if content, set, err := contentFlag(cmd); err != nil {
		return err
	} else if set {
		patch.Content = &content
	}
	for _, v := range []*string{patch.Title, patch.Content} {
		if v != nil && strings.TrimSpace(*v) == "" {
			return cli.Exit("title and content must not be blank", 2)
		}
	}
	if cmd.IsSet("tag") {
		tags := cmd.StringSlice("tag")
		patch.Tags = &tags
	}
	item, err := app.Service.Update(ctx, patch)
	if err != nil {
		return err
	}
	return printJSON(cmd, item)
}

func deleteItem(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	if !app.Service.Delete(ctx, id) {
		fmt.Fprintf(stdout(cmd), "no such item: %s\n", id)
		return nil
	}
	fmt.Fprintf(stdout(cmd), "deleted: %s\n", id)
	return nil
}

func importFile(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	path, err := requireArg(cmd, "file")
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	res, err := app.Service.Import(ctx, path, data)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout(cmd), "imported %d item(s) from %s (%s)\n", res.Count, path, res.Format)
	return nil
}

func exportFile(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	dl, err := app.Service.Export(ctx, cmd.String("format"))
	if err != nil {
		return err
	}
	p, err := exporter.WriteFile(cmd.String("out"), dl.Filename, dl.Data)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout(cmd), p)
	return nil
}

func summarize(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	item, err := app.Service.Summarize(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout(cmd), item.Summary)
	return nil
}

func ask(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	answer, err := app.Service.Ask(ctx, strings.Join(cmd.Args().Slice(), " "))
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout(cmd), answer)
	return nil
}

func itemFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Item title"},
		&cli.StringFlag{Name: "content", Usage: "Item content (Markdown)"},
		&cli.StringFlag{Name: "content-file", Usage: "Read content from a file, or - for stdin"},
		&cli.StringFlag{Name: "category", Usage: "Item category"},
		&cli.StringSliceFlag{Name: "tag", Usage: "Tag (repeatable)"},
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "tome",
		Usage:   "Personal knowledge base with JSON/Markdown import, export and AI summaries",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log at the configured level for one-shot commands",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools on stdin/stdout",
				Action: mcp,
			},
			{
				Name:  "list",
				Usage: "List or search items",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Text to match"},
					&cli.StringFlag{Name: "category", Usage: "Category filter"},
					&cli.StringFlag{Name: "tag", Usage: "Tag filter"},
					&cli.BoolFlag{Name: "json", Usage: "Print JSON"},
				},
				Action: withApp(listItems),
			},
			{
				Name:   "add",
				Usage:  "Create an item",
				Flags:  itemFlags(),
				Action: withApp(addItem),
			},
			{
				Name:      "update",
				Usage:     "Change fields of an item",
				ArgsUsage: "<id>",
				Flags: append(itemFlags(),
					&cli.StringFlag{Name: "summary", Usage: "Item summary"},
				),
				Action: withApp(updateItem),
			},
			{
				Name:      "delete",
				Usage:     "Delete an item",
				ArgsUsage: "<id>",
				Action:    withApp(deleteItem),
			},
			{
				Name:      "import",
				Usage:     "Replace the knowledge base with a .json, .md or .zip file",
				ArgsUsage: "<file>",
				Action:    withApp(importFile),
			},
			{
				Name:  "export",
				Usage: "Write the knowledge base to a file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Value: "json", Usage: "json or zip"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: ".", Usage: "Output directory"},
				},
				Action: withApp(exportFile),
			},
			{
				Name:      "summarize",
				Usage:     "Generate and store an AI summary for an item",
				ArgsUsage: "<id>",
				Action:    withApp(summarize),
			},
			{
				Name:      "ask",
				Usage:     "Ask a question about the knowledge base",
				ArgsUsage: "<question...>",
				Action:    withApp(ask),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
