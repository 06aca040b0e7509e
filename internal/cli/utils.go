// Package cli provides CLI output utilities for Mihari.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hyperjump/mihari/internal/catalog"
	"github.com/hyperjump/mihari/internal/models"
	"github.com/hyperjump/mihari/pkg/utils"
)

// OutputFormat is the format for CLI output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteReviewResult writes a single review result to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteReviewResult(w io.Writer, result *models.ReviewResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, result)
	}
	writeReviewResultText(w, result)
	return nil
}

func writeReviewResultText(w io.Writer, result *models.ReviewResult) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Video:      %s\n", result.VideoPath)
	fmt.Fprintf(w, "Decision:   %s\n", result.Decision)
	fmt.Fprintf(w, "Confidence: %.4f\n", result.Confidence)
	fmt.Fprintf(w, "Reason:     %s\n", result.Reason)
	if len(result.Flags) > 0 {
		fmt.Fprintf(w, "Flags:      %s\n", strings.Join(result.Flags, ", "))
	}
	for _, sv := range result.SimilarVideos {
		fmt.Fprintf(w, "  match %s (%.1f%%)\n", sv.VideoID, sv.Similarity*100)
	}
	fmt.Fprintln(w)
}

// WriteBatchReport writes a batch report to w in the given format.
func WriteBatchReport(w io.Writer, report *models.BatchReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	s := report.Summary
	fmt.Fprintf(w, "\nReviewed %d videos in %.2fs: %d approved, %d rejected, %d manual review (%d failed)\n\n",
		s.Total, s.DurationSeconds, s.Approved, s.Rejected, s.ManualReview, s.Failed)
	for _, result := range report.Results {
		writeReviewResultText(w, result)
	}
	return nil
}

// WriteRecords writes whitelist records to w in the given format.
func WriteRecords(w io.Writer, records []*models.VideoRecord, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, records)
	}
	fmt.Fprintf(w, "\n%d whitelisted videos\n\n", len(records))
	for _, rec := range records {
		fmt.Fprintf(w, "%s\n  path:  %s\n  added: %s\n",
			rec.VideoID, rec.VideoPath, rec.AddedTime.Format("2006-01-02 15:04:05"))
		if title, ok := rec.Metadata["title"].(string); ok && title != "" {
			fmt.Fprintf(w, "  title: %s\n", utils.Truncate(title, 80))
		}
		fmt.Fprintln(w)
	}
	return nil
}

// WriteCatalogHits writes catalog search hits to w in the given format.
func WriteCatalogHits(w io.Writer, hits []*catalog.Hit, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, hits)
	}
	fmt.Fprintf(w, "\nFound %d matches\n\n", len(hits))
	for _, hit := range hits {
		fmt.Fprintf(w, "%s  (score %.4f)\n", hit.VideoID, hit.Score)
	}
	fmt.Fprintln(w)
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PrintReviewResult prints a review result to stdout in text format.
func PrintReviewResult(result *models.ReviewResult) {
	_ = WriteReviewResult(os.Stdout, result, OutputText)
}
