// Package report persists the outcome of a snapshot run: a structured report, a
// human-readable summary and, optionally, a row in a SQLite run history.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/shaniidev/pagesnap/internal/core"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Report summarizes one run.
type Report struct {
	RunID             string            `json:"run_id" yaml:"run_id"`
	Input             string            `json:"input" yaml:"input"`
	BaseURL           string            `json:"base_url" yaml:"base_url"`
	StartedAt         time.Time         `json:"started_at" yaml:"started_at"`
	FinishedAt        time.Time         `json:"finished_at" yaml:"finished_at"`
	Stats             core.Stats        `json:"stats" yaml:"stats"`
	URLMap            map[string]string `json:"url_map" yaml:"url_map"`
	FailedURLs        []string          `json:"failed_urls" yaml:"failed_urls"`
	Failures          []core.Failure    `json:"failures" yaml:"failures"`
	Stylesheets       []string          `json:"stylesheets_rewritten" yaml:"stylesheets_rewritten"`
	DocumentRewritten bool              `json:"document_rewritten" yaml:"document_rewritten"`
	OutputDirectory   string            `json:"output_directory" yaml:"output_directory"`
	Errors            []string          `json:"errors,omitempty" yaml:"errors,omitempty"`
}

func New(input, baseURL, outputDir string) *Report {
	abs, err := filepath.Abs(outputDir)
	if err != nil {
		abs = outputDir
	}
	return &Report{
		RunID:           uuid.NewString(),
		Input:           input,
		BaseURL:         baseURL,
		StartedAt:       time.Now(),
		URLMap:          map[string]string{},
		OutputDirectory: abs,
	}
}

// Finish copies the final state of the run into the report.
func (r *Report) Finish(s *core.State) {
	r.FinishedAt = time.Now()
	r.Stats = s.Stats()
	r.URLMap = s.URLMap()
	r.Failures = s.Failures()
	r.FailedURLs = make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		r.FailedURLs = append(r.FailedURLs, f.URL)
	}
}

// AddError records a per-file problem that did not stop the run.
func (r *Report) AddError(format string, a ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, a...))
}

func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// SaveStructured writes download_report.json or download_report.yaml into dir
// and returns the file path.
func SaveStructured(r *Report, dir, format string) (string, error) {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(format) {
	case "", FormatJSON:
		format = FormatJSON
		data, err = json.MarshalIndent(r, "", "  ")
	case FormatYAML, "yml":
		format = FormatYAML
		data, err = yaml.Marshal(r)
	default:
		return "", fmt.Errorf("unsupported report format %q", format)
	}
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	path := filepath.Join(dir, "download_report."+format)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// SaveText writes the human-readable summary to path.
func SaveText(r *Report, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(Text(r)), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// Text renders the summary: counts, the url to local path table and failed URLs.
func Text(r *Report) string {
	var sb strings.Builder
	sb.WriteString(strings.Repeat("=", 70) + "\n")
	sb.WriteString("PAGESNAP - RESOURCE DOWNLOAD AND PATH REWRITE REPORT\n")
	sb.WriteString(strings.Repeat("=", 70) + "\n\n")

	fmt.Fprintf(&sb, "Run:              %s\n", r.RunID)
	fmt.Fprintf(&sb, "Document:         %s\n", r.Input)
	fmt.Fprintf(&sb, "Base URL:         %s\n", r.BaseURL)
	fmt.Fprintf(&sb, "Output directory: %s\n", r.OutputDirectory)
	if d := r.Duration(); d > 0 {
		fmt.Fprintf(&sb, "Duration:         %s\n", d.Round(time.Millisecond))
	}
	sb.WriteString("\n")

	s := r.Stats
	sb.WriteString("[Summary]\n")
	fmt.Fprintf(&sb, "  - Resources found:   %d\n", s.TotalResources)
	fmt.Fprintf(&sb, "  - Downloaded:        %d (%s)\n", s.Downloaded, humanize.Bytes(uint64(s.Bytes)))
	fmt.Fprintf(&sb, "  - Failed:            %d\n", s.Failed)
	fmt.Fprintf(&sb, "  - Aliases reused:    %d\n", s.Aliased)
	fmt.Fprintf(&sb, "  - css %d, js %d, images %d, fonts %d, videos %d, other %d\n",
		s.CSSFiles, s.JSFiles, s.Images, s.Fonts, s.Videos, s.Other)
	fmt.Fprintf(&sb, "  - Document rewritten: %t, stylesheets rewritten: %d\n\n",
		r.DocumentRewritten, len(r.Stylesheets))

	if len(r.URLMap) > 0 {
		sb.WriteString("[Path changes (original URL -> local path)]\n")
		sb.WriteString(strings.Repeat("-", 70) + "\n")
		keys := make([]string, 0, len(r.URLMap))
		for k := range r.URLMap {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "%s\n  -> %s\n\n", k, r.URLMap[k])
		}
	}

	if len(r.Failures) > 0 {
		sb.WriteString("\n[Failed URLs]\n")
		sb.WriteString(strings.Repeat("-", 70) + "\n")
		for _, f := range r.Failures {
			fmt.Fprintf(&sb, "- %s\n    %s\n", f.URL, f.Error)
		}
	}

	if len(r.Errors) > 0 {
		sb.WriteString("\n[Processing errors]\n")
		sb.WriteString(strings.Repeat("-", 70) + "\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&sb, "- %s\n", e)
		}
	}
	return sb.String()
}
