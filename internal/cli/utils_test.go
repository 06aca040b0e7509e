package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/mihari/internal/catalog"
	"github.com/hyperjump/mihari/internal/models"
)

func sampleResult() *models.ReviewResult {
	return &models.ReviewResult{
		VideoPath:  "/videos/clip.mp4",
		Decision:   models.DecisionApproved,
		Confidence: 0.95,
		Reason:     "matched approved video wl-001 (95.0% similar)",
		SimilarVideos: []models.SimilarVideo{
			{VideoID: "wl-001", Similarity: 0.95},
			{VideoID: "wl-002", Similarity: 0.80},
		},
	}
}

func TestWriteReviewResult_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReviewResult(&buf, sampleResult(), OutputJSON); err != nil {
		t.Fatalf("WriteReviewResult(json): %v", err)
	}
	var decoded models.ReviewResult
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Decision != models.DecisionApproved || decoded.VideoPath != "/videos/clip.mp4" {
		t.Errorf("decoded result: %+v", decoded)
	}
	if len(decoded.SimilarVideos) != 2 {
		t.Errorf("similar videos: got %d, want 2", len(decoded.SimilarVideos))
	}
}

func TestWriteReviewResult_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReviewResult(&buf, sampleResult(), OutputText); err != nil {
		t.Fatalf("WriteReviewResult(text): %v", err)
	}
	out := buf.String()
	for _, sub := range []string{"/videos/clip.mp4", "approved", "0.9500", "wl-001", "95.0%"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteReviewResult_textFlags(t *testing.T) {
	result := &models.ReviewResult{
		VideoPath:  "/videos/vert.mp4",
		Decision:   models.DecisionRejected,
		Confidence: 1.0,
		Reason:     "format violation",
		Flags:      []string{"vertical_video", "black_borders"},
	}
	var buf bytes.Buffer
	if err := WriteReviewResult(&buf, result, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "vertical_video, black_borders") {
		t.Errorf("expected flags in output:\n%s", buf.String())
	}
}

func TestWriteReviewResult_unknownFormatTreatedAsText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReviewResult(&buf, sampleResult(), OutputFormat("unknown")); err != nil {
		t.Fatalf("WriteReviewResult(unknown): %v", err)
	}
	if !strings.Contains(buf.String(), "Decision:") {
		t.Errorf("unknown format should fall back to text; got %q", buf.String())
	}
}

func TestWriteBatchReport_text(t *testing.T) {
	report := &models.BatchReport{
		Timestamp: "2026-01-10T12:00:00Z",
		Summary: models.BatchReviewSummary{
			Total: 2, Approved: 1, Rejected: 1, DurationSeconds: 0.5,
		},
		Results: []*models.ReviewResult{
			sampleResult(),
			{VideoPath: "/videos/bad.mp4", Decision: models.DecisionRejected, Confidence: 0.3,
				Reason: "no sufficiently similar approved content (best 30.0%)"},
		},
	}
	var buf bytes.Buffer
	if err := WriteBatchReport(&buf, report, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"Reviewed 2 videos", "1 approved", "1 rejected", "/videos/bad.mp4"} {
		if !strings.Contains(out, sub) {
			t.Errorf("batch output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteBatchReport_JSON(t *testing.T) {
	report := &models.BatchReport{
		Timestamp: "2026-01-10T12:00:00Z",
		Summary:   models.BatchReviewSummary{Total: 1, Approved: 1},
		Results:   []*models.ReviewResult{sampleResult()},
	}
	var buf bytes.Buffer
	if err := WriteBatchReport(&buf, report, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.BatchReport
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Summary.Total != 1 || len(decoded.Results) != 1 {
		t.Errorf("decoded report: %+v", decoded)
	}
}

func TestWriteRecords_text(t *testing.T) {
	records := []*models.VideoRecord{
		{
			VideoID:   "wl-001",
			VideoPath: "/videos/a.mp4",
			AddedTime: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
			Metadata:  map[string]interface{}{"title": "dance practice"},
		},
	}
	var buf bytes.Buffer
	if err := WriteRecords(&buf, records, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"1 whitelisted videos", "wl-001", "/videos/a.mp4", "dance practice"} {
		if !strings.Contains(out, sub) {
			t.Errorf("records output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteCatalogHits(t *testing.T) {
	hits := []*catalog.Hit{
		{VideoID: "wl-001", Score: 1.23},
	}
	var buf bytes.Buffer
	if err := WriteCatalogHits(&buf, hits, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "wl-001") {
		t.Errorf("hits output missing id:\n%s", buf.String())
	}
	buf.Reset()
	if err := WriteCatalogHits(&buf, hits, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded []*catalog.Hit
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded) != 1 || decoded[0].VideoID != "wl-001" {
		t.Errorf("decoded hits: %+v", decoded)
	}
}
