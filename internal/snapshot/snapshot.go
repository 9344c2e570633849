// Package snapshot runs the whole mirroring pipeline for one entry document:
// extract references, download them, rewrite stylesheets and the document, and
// write the run reports.
package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/shaniidev/pagesnap/internal/config"
	"github.com/shaniidev/pagesnap/internal/core"
	"github.com/shaniidev/pagesnap/internal/download"
	"github.com/shaniidev/pagesnap/internal/extract"
	"github.com/shaniidev/pagesnap/internal/report"
	"github.com/shaniidev/pagesnap/internal/rewrite"
	"github.com/shaniidev/pagesnap/internal/styles"
	"github.com/shaniidev/pagesnap/internal/ui"
)

// ErrInputMissing is the only fatal error of a run. It is returned before any
// directory is created or request is made.
var ErrInputMissing = errors.New("input document not found")

const textReportName = "download_report.txt"

type Snapshot struct {
	cfg    *config.Config
	log    logrus.FieldLogger
	client *download.Client
}

func New(cfg *config.Config, log logrus.FieldLogger) *Snapshot {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Snapshot{
		cfg:    cfg,
		log:    log,
		client: download.NewClient(cfg.Timeout, cfg.UserAgent),
	}
}

// CheckInput reports ErrInputMissing unless path is an existing regular file.
func CheckInput(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrInputMissing, path)
	}
	if err != nil {
		return fmt.Errorf("failed to stat input: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrInputMissing, path)
	}
	return nil
}

// Run executes the pipeline. Failed resources and per-file errors end up in the
// returned report; an error is returned only when the pipeline cannot start.
func (s *Snapshot) Run(ctx context.Context) (*report.Report, error) {
	cfg := s.cfg
	if err := CheckInput(cfg.Input); err != nil {
		return nil, err
	}

	rep := report.New(cfg.Input, cfg.BaseURL, cfg.OutputDir)
	state := core.NewState()
	s.log.WithFields(logrus.Fields{"run": rep.RunID, "input": cfg.Input, "base_url": cfg.BaseURL}).
		Info("Starting snapshot")

	// STAGE 1: read and extract
	if err := s.setupDirectories(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	if !utf8.Valid(data) {
		s.log.Warn("Input is not valid UTF-8, invalid bytes are kept as they are")
	}
	doc, err := extract.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	refs := extract.Markup(doc)
	state.SetTotal(len(refs))
	ui.Section("Extraction")
	ui.Success("Found %d resource references in %s", len(refs), cfg.Input)
	s.log.Infof("Found %d resource references", len(refs))

	// STAGE 2: download, following stylesheet references
	ui.Section("Download")
	dl := download.NewDownloader(s.client, state, s.log, download.Options{
		OutputDir:   cfg.OutputDir,
		DocumentDir: filepath.Dir(cfg.Input),
		Workers:     cfg.Concurrency,
		Delay:       cfg.Delay,
	})
	if !cfg.Silent {
		dl.SetProgress(ui.NewProgressBar(0, "Downloading"))
	}
	dl.Run(ctx, cfg.BaseURL, refs)
	if err := ctx.Err(); err != nil {
		s.log.Warnf("Download interrupted: %v", err)
		rep.AddError("download interrupted: %v", err)
	}

	// STAGE 3: rewrite stylesheets, then the document
	ui.Section("Rewrite")
	s.rewriteStylesheets(state, rep)
	s.rewriteDocument(state, rep)

	// STAGE 4: reports
	rep.Finish(state)
	s.saveReports(rep)

	s.log.WithFields(logrus.Fields{
		"found":      rep.Stats.TotalResources,
		"downloaded": rep.Stats.Downloaded,
		"failed":     rep.Stats.Failed,
	}).Info("Snapshot complete")
	return rep, nil
}

func (s *Snapshot) setupDirectories() error {
	for _, c := range core.Categories {
		if err := os.MkdirAll(filepath.Join(s.cfg.OutputDir, string(c)), 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.MkdirAll(s.cfg.LogsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}
	return nil
}

func (s *Snapshot) rewriteStylesheets(state *core.State, rep *report.Report) {
	for _, css := range state.Stylesheets() {
		log := s.log.WithField("stylesheet", css.LocalPath)
		changed, err := styles.Rewrite(css.File, css.FinalURL, state)
		if err != nil {
			log.Errorf("Stylesheet left unmodified: %v", err)
			rep.AddError("stylesheet %s: %v", css.LocalPath, err)
			continue
		}
		if changed {
			rep.Stylesheets = append(rep.Stylesheets, css.LocalPath)
			log.Info("Stylesheet paths updated")
		}
	}
	ui.Success("Stylesheets rewritten: %d", len(rep.Stylesheets))
}

func (s *Snapshot) rewriteDocument(state *core.State, rep *report.Report) {
	res, err := rewrite.File(s.cfg.Input, state.URLMap())
	if err != nil {
		s.log.Errorf("Document rewrite failed: %v", err)
		rep.AddError("document %s: %v", s.cfg.Input, err)
		return
	}
	rep.DocumentRewritten = res.Changed
	if res.Changed {
		ui.Success("Document updated: %d references now point to local copies", len(res.Matched))
		s.log.Infof("Document updated, %d references rewritten", len(res.Matched))
	} else {
		ui.Info("Document unchanged")
		s.log.Info("Document unchanged")
	}
}

func (s *Snapshot) saveReports(rep *report.Report) {
	cfg := s.cfg
	if path, err := report.SaveStructured(rep, cfg.LogsDir, cfg.ReportFormat); err != nil {
		s.log.Errorf("Report not saved: %v", err)
	} else {
		s.log.Infof("Report saved: %s", path)
	}

	textPath := filepath.Join(cfg.LogsDir, textReportName)
	if err := report.SaveText(rep, textPath); err != nil {
		s.log.Errorf("Text report not saved: %v", err)
	} else {
		s.log.Infof("Text report saved: %s", textPath)
	}

	if cfg.MigrationNotes != "" {
		if err := report.SaveText(rep, cfg.MigrationNotes); err != nil {
			s.log.Errorf("Migration notes not saved: %v", err)
		}
	}

	if cfg.Database != "" {
		if err := s.recordRun(rep); err != nil {
			s.log.Errorf("Run history not updated: %v", err)
		}
	}
}

func (s *Snapshot) recordRun(rep *report.Report) error {
	store, err := report.OpenStore(s.cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Record(rep); err != nil {
		return err
	}
	n, err := store.RunCount()
	if err != nil {
		return err
	}
	s.log.WithField("run", rep.RunID).Infof("Run recorded in %s (%d in history)", store.Path(), n)
	return nil
}
