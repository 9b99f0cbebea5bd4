package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mkarlin/driftscan/internal/models"
)

type WriterConfig struct {
	Path string
}

// Writer serializes the run's report to a single JSON artifact. Writes go
// through a temp file and rename, so downstream consumers never observe a
// partially written document.
type Writer struct {
	config WriterConfig
}

func NewWithConfig(config WriterConfig) Writer {
	if config.Path == "" {
		config.Path = filepath.Join("analysis", "semantic-drift.json")
	}

	return Writer{
		config: config,
	}
}

func (w *Writer) Path() string {
	return w.config.Path
}

// Write marshals the report and replaces the artifact atomically.
func (w *Writer) Write(report models.Report) error {
	if report.Terms == nil {
		report.Terms = map[string]models.TermReport{}
	}
	if report.Timeline == nil {
		report.Timeline = []string{}
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %v", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(w.config.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %v", err)
	}

	tmp, err := os.CreateTemp(dir, ".semantic-drift-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %v", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write report: %v", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close report: %v", err)
	}

	if err := os.Rename(tmpPath, w.config.Path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace report: %v", err)
	}

	return nil
}

// Checkpoint persists the partially built report between terms so a long
// batch can be resumed from its last completed term.
func (w *Writer) Checkpoint(report models.Report) error {
	return w.Write(report)
}
