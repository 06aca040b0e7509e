package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/mihari/internal/decision"
	"github.com/hyperjump/mihari/internal/format"
	"github.com/hyperjump/mihari/internal/models"
	"github.com/hyperjump/mihari/internal/store"
	"github.com/hyperjump/mihari/internal/vector"
)

const testDims = 4

// mapEmbedder returns a canned vector per path and errors on unknown paths.
type mapEmbedder struct {
	vecs map[string][]float32
}

func (e *mapEmbedder) EmbedVideo(ctx context.Context, videoPath string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec, ok := e.vecs[filepath.Base(videoPath)]
	if !ok {
		return nil, errors.New("no frames for video")
	}
	return vec, nil
}

func (e *mapEmbedder) Dimensions() int { return testDims }
func (e *mapEmbedder) Close() error    { return nil }

// fakeChecker returns a fixed report or error.
type fakeChecker struct {
	ok    bool
	flags []string
	err   error
}

func (c *fakeChecker) Check(ctx context.Context, videoPath string) (*format.Report, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &format.Report{OK: c.ok, Flags: c.flags}, nil
}

func newTestPipeline(t *testing.T, checker format.Checker, vecs map[string][]float32, opts ...Option) *Pipeline {
	t.Helper()
	fs, err := store.New(testDims, vector.KindFlat)
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}
	maker, err := decision.NewMaker(0.90, 0.60)
	if err != nil {
		t.Fatalf("NewMaker failed: %v", err)
	}
	return New(fs, &mapEmbedder{vecs: vecs}, checker, maker, opts...)
}

func unitVec(x, y float64) []float32 {
	return []float32{float32(x), float32(y), 0, 0}
}

func TestReviewApproved(t *testing.T) {
	vecs := map[string][]float32{
		"approved.mp4": unitVec(1, 0),
		"query.mp4":    unitVec(1, 0),
	}
	p := newTestPipeline(t, &fakeChecker{ok: true}, vecs)
	ctx := context.Background()

	id, err := p.IngestApprovedVideo(ctx, &models.IngestInput{VideoID: "wl-1", VideoPath: "/videos/approved.mp4"}, false)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if id != "wl-1" {
		t.Errorf("expected id wl-1, got %s", id)
	}

	result, err := p.Review(ctx, "/videos/query.mp4")
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if result.Decision != models.DecisionApproved {
		t.Errorf("expected approved, got %s (%s)", result.Decision, result.Reason)
	}
	if math.Abs(result.Confidence-1.0) > 1e-5 {
		t.Errorf("expected confidence ~1.0, got %f", result.Confidence)
	}
	if len(result.SimilarVideos) == 0 || result.SimilarVideos[0].VideoID != "wl-1" {
		t.Errorf("expected wl-1 as best match: %+v", result.SimilarVideos)
	}
}

func TestReviewRejectedDissimilar(t *testing.T) {
	vecs := map[string][]float32{
		"approved.mp4": unitVec(1, 0),
		"query.mp4":    unitVec(0, 1),
	}
	p := newTestPipeline(t, &fakeChecker{ok: true}, vecs)
	ctx := context.Background()

	if _, err := p.IngestApprovedVideo(ctx, &models.IngestInput{VideoID: "wl-1", VideoPath: "/videos/approved.mp4"}, false); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	result, err := p.Review(ctx, "/videos/query.mp4")
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if result.Decision != models.DecisionRejected {
		t.Errorf("expected rejected, got %s (%s)", result.Decision, result.Reason)
	}
}

func TestReviewManualBetweenThresholds(t *testing.T) {
	vecs := map[string][]float32{
		"approved.mp4": unitVec(1, 0),
		"query.mp4":    unitVec(0.75, math.Sqrt(1-0.75*0.75)),
	}
	p := newTestPipeline(t, &fakeChecker{ok: true}, vecs)
	ctx := context.Background()

	if _, err := p.IngestApprovedVideo(ctx, &models.IngestInput{VideoID: "wl-1", VideoPath: "/videos/approved.mp4"}, false); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	result, err := p.Review(ctx, "/videos/query.mp4")
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if result.Decision != models.DecisionManualReview {
		t.Errorf("expected manual_review, got %s (%s)", result.Decision, result.Reason)
	}
	if math.Abs(result.Confidence-0.75) > 1e-5 {
		t.Errorf("expected confidence ~0.75, got %f", result.Confidence)
	}
}

func TestReviewEmptyWhitelist(t *testing.T) {
	vecs := map[string][]float32{"query.mp4": unitVec(1, 0)}
	p := newTestPipeline(t, &fakeChecker{ok: true}, vecs)

	result, err := p.Review(context.Background(), "/videos/query.mp4")
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if result.Decision != models.DecisionManualReview {
		t.Errorf("expected manual_review on empty whitelist, got %s", result.Decision)
	}
	if result.Confidence != 0 {
		t.Errorf("expected zero confidence, got %f", result.Confidence)
	}
}

func TestReviewFormatViolationSkipsEmbedding(t *testing.T) {
	// Embedder knows no paths, so any extraction attempt would error; a
	// rejected result proves similarity was never consulted.
	p := newTestPipeline(t, &fakeChecker{ok: false, flags: []string{format.FlagVerticalVideo}}, nil)

	result, err := p.Review(context.Background(), "/videos/vertical.mp4")
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if result.Decision != models.DecisionRejected {
		t.Errorf("expected rejected, got %s", result.Decision)
	}
	if result.Confidence != 1.0 {
		t.Errorf("expected confidence 1.0 for format violation, got %f", result.Confidence)
	}
	if !result.HasFlag(format.FlagVerticalVideo) {
		t.Errorf("expected vertical_video flag: %v", result.Flags)
	}
}

func TestReviewNilCheckerSkipsFormatStage(t *testing.T) {
	vecs := map[string][]float32{"query.mp4": unitVec(1, 0)}
	p := newTestPipeline(t, nil, vecs)

	result, err := p.Review(context.Background(), "/videos/query.mp4")
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if result.Decision != models.DecisionManualReview {
		t.Errorf("expected manual_review (empty whitelist), got %s", result.Decision)
	}
}

func TestReviewExtractionError(t *testing.T) {
	p := newTestPipeline(t, &fakeChecker{ok: true}, nil)

	result, err := p.Review(context.Background(), "/videos/broken.mp4")
	if err != nil {
		t.Fatalf("Review should not fail on extraction error: %v", err)
	}
	if result.Decision != models.DecisionManualReview {
		t.Errorf("expected manual_review, got %s", result.Decision)
	}
	if !result.HasFlag(FlagExtractionError) {
		t.Errorf("expected extraction_error flag: %v", result.Flags)
	}
}

func TestReviewFormatCheckError(t *testing.T) {
	p := newTestPipeline(t, &fakeChecker{err: errors.New("probe missing")}, nil)

	result, err := p.Review(context.Background(), "/videos/query.mp4")
	if err != nil {
		t.Fatalf("Review should not fail on checker error: %v", err)
	}
	if result.Decision != models.DecisionManualReview {
		t.Errorf("expected manual_review, got %s", result.Decision)
	}
	if !result.HasFlag(FlagFormatCheckError) {
		t.Errorf("expected format_check_error flag: %v", result.Flags)
	}
}

func TestReviewBatch(t *testing.T) {
	vecs := map[string][]float32{
		"approved.mp4": unitVec(1, 0),
		"same.mp4":     unitVec(1, 0),
		"far.mp4":      unitVec(0, 1),
	}
	p := newTestPipeline(t, &fakeChecker{ok: true}, vecs)
	ctx := context.Background()

	if _, err := p.IngestApprovedVideo(ctx, &models.IngestInput{VideoID: "wl-1", VideoPath: "/videos/approved.mp4"}, false); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	report, err := p.ReviewBatch(ctx, []string{"/videos/same.mp4", "/videos/far.mp4", "/videos/broken.mp4"})
	if err != nil {
		t.Fatalf("ReviewBatch failed: %v", err)
	}
	s := report.Summary
	if s.Total != 3 || s.Approved != 1 || s.Rejected != 1 || s.ManualReview != 1 {
		t.Errorf("unexpected summary: %+v", s)
	}
	if s.Failed != 1 {
		t.Errorf("expected 1 failed (extraction error), got %d", s.Failed)
	}
	if s.Approved+s.Rejected+s.ManualReview != s.Total {
		t.Errorf("decisions should partition the batch: %+v", s)
	}
	if len(report.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(report.Results))
	}
	if report.Timestamp == "" {
		t.Error("expected timestamp on report")
	}
}

func TestReviewBatchContextCancel(t *testing.T) {
	vecs := map[string][]float32{"query.mp4": unitVec(1, 0)}
	p := newTestPipeline(t, &fakeChecker{ok: true}, vecs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.ReviewBatch(ctx, []string{"/videos/query.mp4"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestIngestApprovedVideosPartialFailure(t *testing.T) {
	vecs := map[string][]float32{
		"a.mp4": unitVec(1, 0),
		"b.mp4": unitVec(0, 1),
	}
	p := newTestPipeline(t, &fakeChecker{ok: true}, vecs)

	summary, err := p.IngestApprovedVideos(context.Background(), []*models.IngestInput{
		{VideoPath: "/videos/a.mp4"},
		{VideoPath: "/videos/missing.mp4"},
		{VideoPath: "/videos/b.mp4"},
	}, false)
	if err != nil {
		t.Fatalf("IngestApprovedVideos failed: %v", err)
	}
	if summary.Success != 2 || summary.Failed != 1 {
		t.Errorf("expected 2 success / 1 failed, got %+v", summary)
	}
	if got := p.Store().Stats().Records; got != 2 {
		t.Errorf("expected 2 records in store, got %d", got)
	}
}

func TestFeedbackApprovedOverwrites(t *testing.T) {
	vecs := map[string][]float32{
		"v1.mp4": unitVec(1, 0),
		"v2.mp4": unitVec(0, 1),
	}
	p := newTestPipeline(t, &fakeChecker{ok: true}, vecs)
	ctx := context.Background()

	if _, err := p.IngestApprovedVideo(ctx, &models.IngestInput{VideoID: "wl-1", VideoPath: "/videos/v1.mp4"}, false); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if _, err := p.FeedbackApproved(ctx, &models.IngestInput{VideoID: "wl-1", VideoPath: "/videos/v2.mp4"}); err != nil {
		t.Fatalf("feedback failed: %v", err)
	}
	rec, err := p.Store().GetRecord("wl-1")
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if filepath.Base(rec.VideoPath) != "v2.mp4" {
		t.Errorf("expected record updated to v2.mp4, got %s", rec.VideoPath)
	}
	// A query matching the new embedding must now approve.
	vecs["query.mp4"] = unitVec(0, 1)
	result, err := p.Review(ctx, "/videos/query.mp4")
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if result.Decision != models.DecisionApproved {
		t.Errorf("expected approved after feedback, got %s (%s)", result.Decision, result.Reason)
	}
}

func TestRemoveApprovedVideo(t *testing.T) {
	vecs := map[string][]float32{"a.mp4": unitVec(1, 0)}
	p := newTestPipeline(t, &fakeChecker{ok: true}, vecs)
	ctx := context.Background()

	if _, err := p.IngestApprovedVideo(ctx, &models.IngestInput{VideoID: "wl-1", VideoPath: "/videos/a.mp4"}, false); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if err := p.RemoveApprovedVideo(ctx, "wl-1"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := p.RemoveApprovedVideo(ctx, "wl-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second remove, got %v", err)
	}
}

func TestWriteReportFile(t *testing.T) {
	report := &models.BatchReport{
		Timestamp: "2026-01-10T12:00:00Z",
		Summary:   models.BatchReviewSummary{Total: 1, Approved: 1},
		Results: []*models.ReviewResult{
			{VideoPath: "/videos/a.mp4", Decision: models.DecisionApproved, Confidence: 0.95},
		},
	}
	path := filepath.Join(t.TempDir(), "reports", "run.json")
	if err := WriteReportFile(report, path); err != nil {
		t.Fatalf("WriteReportFile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var loaded models.BatchReport
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if loaded.Summary.Total != 1 || len(loaded.Results) != 1 {
		t.Errorf("report did not round-trip: %+v", loaded)
	}
}

func TestStorePathPersistsAfterMutation(t *testing.T) {
	dir := t.TempDir()
	vecs := map[string][]float32{"a.mp4": unitVec(1, 0)}
	p := newTestPipeline(t, &fakeChecker{ok: true}, vecs, WithStorePath(dir))
	ctx := context.Background()

	if _, err := p.IngestApprovedVideo(ctx, &models.IngestInput{VideoID: "wl-1", VideoPath: "/videos/a.mp4"}, false); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	reloaded, err := store.New(testDims, vector.KindFlat)
	if err != nil {
		t.Fatal(err)
	}
	if err := reloaded.Load(dir); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if reloaded.Stats().Records != 1 {
		t.Fatalf("expected 1 record on disk after ingest, got %d", reloaded.Stats().Records)
	}

	if err := p.RemoveApprovedVideo(ctx, "wl-1"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	reloaded2, err := store.New(testDims, vector.KindFlat)
	if err != nil {
		t.Fatal(err)
	}
	if err := reloaded2.Load(dir); err != nil {
		t.Fatalf("load after remove failed: %v", err)
	}
	if reloaded2.Stats().Records != 0 {
		t.Errorf("expected 0 records on disk after remove, got %d", reloaded2.Stats().Records)
	}
}

func TestReviewZeroEmbeddingRoutesToManualReview(t *testing.T) {
	vecs := map[string][]float32{
		"approved.mp4": unitVec(1, 0),
		"silent.mp4":   {0, 0, 0, 0},
		"blank.mp4":    {0, 0, 0, 0},
	}
	p := newTestPipeline(t, &fakeChecker{ok: true}, vecs)
	ctx := context.Background()

	if _, err := p.IngestApprovedVideo(ctx, &models.IngestInput{VideoID: "wl-1", VideoPath: "/videos/approved.mp4"}, false); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	result, err := p.Review(ctx, "/videos/silent.mp4")
	if err != nil {
		t.Fatalf("review should not error on a degenerate embedding: %v", err)
	}
	if result.Decision != models.DecisionManualReview {
		t.Errorf("decision = %s, want manual_review", result.Decision)
	}
	if !result.HasFlag(FlagExtractionError) {
		t.Errorf("expected %s flag, got %v", FlagExtractionError, result.Flags)
	}

	report, err := p.ReviewBatch(ctx, []string{"/videos/silent.mp4", "/videos/blank.mp4"})
	if err != nil {
		t.Fatalf("batch should not abort on degenerate embeddings: %v", err)
	}
	if report.Summary.Total != 2 || report.Summary.Failed != 2 {
		t.Errorf("summary = %+v, want total 2 failed 2", report.Summary)
	}
	if report.Summary.ManualReview != 2 {
		t.Errorf("manual review = %d, want 2", report.Summary.ManualReview)
	}
}
