// Package logging sets up the run log: timestamped text lines in the logs
// directory, with warnings and errors echoed to the console.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/shaniidev/pagesnap/internal/ui"
)

const FileName = "download.log"

// Options controls how much reaches the console. The file always gets Debug and up.
type Options struct {
	Verbose bool // echo every entry, not only warnings and errors
	Quiet   bool // echo nothing
}

// Setup creates dir, truncates the run log inside it and returns a logger writing
// there. The returned close function flushes and closes the file.
func Setup(dir string, opts Options) (*logrus.Logger, func() error, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create logs directory: %w", err)
	}
	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	log := logrus.New()
	log.SetOutput(f)
	log.SetLevel(logrus.DebugLevel)
	log.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if !opts.Quiet {
		log.AddHook(NewConsoleHook(opts.Verbose))
	}
	return log, f.Close, nil
}

// ConsoleHook mirrors log entries onto the colored console output.
type ConsoleHook struct {
	levels []logrus.Level
}

func NewConsoleHook(verbose bool) *ConsoleHook {
	levels := []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel}
	if verbose {
		levels = logrus.AllLevels
	}
	return &ConsoleHook{levels: levels}
}

func (h *ConsoleHook) Levels() []logrus.Level {
	return h.levels
}

func (h *ConsoleHook) Fire(e *logrus.Entry) error {
	msg := e.Message
	if len(e.Data) > 0 {
		msg += " " + formatFields(e.Data)
	}
	switch {
	case e.Level <= logrus.ErrorLevel:
		ui.Error("%s", msg)
	case e.Level == logrus.WarnLevel:
		ui.Warning("%s", msg)
	case e.Level == logrus.InfoLevel:
		ui.Info("%s", msg)
	default:
		ui.Printf(ui.Gray, "[DEBUG] %s\n", msg)
	}
	return nil
}

func formatFields(data logrus.Fields) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, data[k]))
	}
	return "(" + strings.Join(parts, " ") + ")"
}
