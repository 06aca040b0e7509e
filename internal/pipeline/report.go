package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperjump/mihari/internal/models"
)

// ReportFileName returns the conventional file name for a batch report
// started at t, e.g. "review_report_20260110T120000Z.json".
func ReportFileName(t time.Time) string {
	return fmt.Sprintf("review_report_%s.json", t.UTC().Format("20060102T150405Z"))
}

// WriteReportFile writes a batch report as indented JSON to path, creating
// parent directories as needed.
func WriteReportFile(report *models.BatchReport, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
