package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/shaniidev/pagesnap/internal/config"
	"github.com/shaniidev/pagesnap/internal/logging"
	"github.com/shaniidev/pagesnap/internal/report"
	"github.com/shaniidev/pagesnap/internal/snapshot"
	"github.com/shaniidev/pagesnap/internal/ui"
)

const version = "1.0.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	defaults := config.NewConfig()
	return &cli.App{
		Name:    "pagesnap",
		Usage:   "mirror one HTML page and its assets, rewriting references to the local copies",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Value: defaults.Input, Usage: "entry HTML document"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: defaults.OutputDir, Usage: "asset output root"},
			&cli.StringFlag{Name: "logs", Value: defaults.LogsDir, Usage: "directory for the run log and reports"},
			&cli.StringFlag{Name: "base-url", Value: defaults.BaseURL, Usage: "URL relative references are resolved against"},
			&cli.DurationFlag{Name: "timeout", Value: defaults.Timeout, Usage: "per-request timeout"},
			&cli.DurationFlag{Name: "delay", Value: defaults.Delay, Usage: "minimum pause between requests"},
			&cli.IntFlag{Name: "workers", Aliases: []string{"c"}, Value: defaults.Concurrency, Usage: "concurrent downloads"},
			&cli.StringFlag{Name: "user-agent", Usage: "override the browser User-Agent"},
			&cli.StringFlag{Name: "format", Value: defaults.ReportFormat, Usage: "structured report format: json or yaml"},
			&cli.StringFlag{Name: "migration-notes", Usage: "also write the text summary to this file (e.g. MIGRATION.txt)"},
			&cli.StringFlag{Name: "db", Usage: "record the run in this SQLite database"},
			&cli.StringFlag{Name: "config", Usage: "YAML config file, flags take precedence"},
			&cli.BoolFlag{Name: "verbose", Usage: "echo the full log to the console"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "no console output"},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if cfg.Silent {
		ui.Out = io.Discard
	} else {
		printBanner()
	}

	// nothing may be created before the input is known to exist
	if err := snapshot.CheckInput(cfg.Input); err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}

	log, closeLog, err := logging.Setup(cfg.LogsDir, logging.Options{Verbose: cfg.Verbose, Quiet: cfg.Silent})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer closeLog()

	ui.Printf(ui.Cyan, "[*] Document: %s\n", cfg.Input)
	ui.Printf(ui.Cyan, "[*] Base URL: %s\n", cfg.BaseURL)
	ui.Printf(ui.Cyan, "[*] Output:   %s\n", cfg.OutputDir)

	rep, err := snapshot.New(cfg, log).Run(c.Context)
	if err != nil {
		log.Errorf("Snapshot aborted: %v", err)
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}

	printSummary(cfg, rep)
	return nil
}

// loadConfig layers defaults, the optional YAML file and explicitly set flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.NewConfig()
	if path := c.String("config"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if c.IsSet("input") {
		cfg.Input = c.String("input")
	}
	if c.IsSet("output") {
		cfg.OutputDir = c.String("output")
	}
	if c.IsSet("logs") {
		cfg.LogsDir = c.String("logs")
	}
	if c.IsSet("base-url") {
		cfg.BaseURL = c.String("base-url")
	}
	if c.IsSet("timeout") {
		cfg.Timeout = c.Duration("timeout")
	}
	if c.IsSet("delay") {
		cfg.Delay = c.Duration("delay")
	}
	if c.IsSet("workers") {
		cfg.Concurrency = c.Int("workers")
	}
	if c.IsSet("user-agent") {
		cfg.UserAgent = c.String("user-agent")
	}
	if c.IsSet("format") {
		cfg.ReportFormat = c.String("format")
	}
	if c.IsSet("migration-notes") {
		cfg.MigrationNotes = c.String("migration-notes")
	}
	if c.IsSet("db") {
		cfg.Database = c.String("db")
	}
	if c.IsSet("verbose") {
		cfg.Verbose = c.Bool("verbose")
	}
	if c.IsSet("quiet") {
		cfg.Silent = c.Bool("quiet")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printBanner() {
	ui.Println(ui.Bold+ui.Cyan, `
    ____  ___   ____________  _____   _____    ____ 
   / __ \/   | / ____/ ____/ / ___/  / /   |  / __ \
  / /_/ / /| |/ / __/ __/    \__ \  / / /| | / /_/ /
 / ____/ ___ / /_/ / /___   ___/ / / / ___ |/ ____/
/_/   /_/  |_\____/_____/  /____/ /_/_/  |_/_/`)
	ui.Println(ui.Bold+ui.Yellow, "    PAGESNAP", ui.Reset, "- ", ui.Green, "One page, every asset, all local.")
	ui.Println(ui.Bold+ui.Blue, "    Author:", ui.Reset, " github.com/shaniidev")
	ui.Println(ui.Gray, "    Version: "+version)
	fmt.Fprintln(ui.Out)
}

func printSummary(cfg *config.Config, rep *report.Report) {
	s := rep.Stats
	ui.Section("Summary")
	ui.Printf(ui.Green, "[+] Downloaded: %d/%d resources (%s)\n", s.Downloaded, s.TotalResources, humanize.Bytes(uint64(s.Bytes)))
	ui.Printf(ui.Cyan, "[*] css %d, js %d, images %d, fonts %d, videos %d, other %d\n",
		s.CSSFiles, s.JSFiles, s.Images, s.Fonts, s.Videos, s.Other)
	if s.Aliased > 0 {
		ui.Printf(ui.Cyan, "[*] Reused %d already downloaded resources\n", s.Aliased)
	}
	if s.Failed > 0 {
		ui.Printf(ui.Yellow, "[!] Failed: %d resources, their references were left unchanged\n", s.Failed)
		ui.PrintTable(rep.FailedURLs, "Failed URLs", 20)
	}
	for _, e := range rep.Errors {
		ui.Warning("%s", e)
	}
	ui.Success("Finished in %s. Reports saved in %s", rep.Duration().Round(time.Millisecond), cfg.LogsDir)
}
