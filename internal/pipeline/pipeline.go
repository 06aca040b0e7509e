// Package pipeline orchestrates ingest, review, and feedback across the
// feature store, embedder, format checker, and decision maker.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/mihari/internal/catalog"
	"github.com/hyperjump/mihari/internal/decision"
	"github.com/hyperjump/mihari/internal/embedding"
	"github.com/hyperjump/mihari/internal/format"
	"github.com/hyperjump/mihari/internal/models"
	"github.com/hyperjump/mihari/internal/reports"
	"github.com/hyperjump/mihari/internal/store"
	"github.com/hyperjump/mihari/internal/vector"
	"github.com/hyperjump/mihari/internal/videoid"
)

const (
	// FlagFormatCheckError marks a result whose format check failed to run.
	FlagFormatCheckError = "format_check_error"
	// FlagExtractionError marks a result whose feature extraction failed.
	FlagExtractionError = "extraction_error"
)

const defaultTopK = 5

// Pipeline wires the review components together. The catalog and report
// store are optional; when unset those stages are skipped.
type Pipeline struct {
	store        *store.FeatureStore
	embedder     embedding.Embedder
	checker      format.Checker
	maker        *decision.Maker
	catalog      *catalog.Catalog
	reportStore  *reports.Store
	storePath    string
	topK         int
	embedTimeout time.Duration
	logger       *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a logger for debug and warning output.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithCatalog enables metadata catalog indexing of whitelisted videos.
func WithCatalog(c *catalog.Catalog) Option {
	return func(p *Pipeline) { p.catalog = c }
}

// WithReportStore enables persisting batch runs to SQLite.
func WithReportStore(r *reports.Store) Option {
	return func(p *Pipeline) { p.reportStore = r }
}

// WithTopK sets how many whitelist matches a review retrieves.
func WithTopK(k int) Option {
	return func(p *Pipeline) {
		if k > 0 {
			p.topK = k
		}
	}
}

// WithEmbedTimeout bounds feature extraction per video. Zero means no limit.
func WithEmbedTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.embedTimeout = d }
}

// WithStorePath persists the feature store to the given directory after every
// whitelist mutation. Persistence failures are logged, not fatal.
func WithStorePath(dir string) Option {
	return func(p *Pipeline) { p.storePath = dir }
}

// New creates a pipeline. checker may be nil; when nil, format checking is
// skipped and every video passes that stage.
func New(
	featureStore *store.FeatureStore,
	embedder embedding.Embedder,
	checker format.Checker,
	maker *decision.Maker,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		store:    featureStore,
		embedder: embedder,
		checker:  checker,
		maker:    maker,
		topK:     defaultTopK,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IngestApprovedVideo embeds a video and inserts it into the whitelist.
// When input.VideoID is empty, a deterministic ID is derived from the path.
// Returns the video ID used.
func (p *Pipeline) IngestApprovedVideo(ctx context.Context, input *models.IngestInput, overwrite bool) (string, error) {
	id, err := p.ingestOne(ctx, input, overwrite)
	if err != nil {
		return "", err
	}
	p.persist()
	return id, nil
}

func (p *Pipeline) ingestOne(ctx context.Context, input *models.IngestInput, overwrite bool) (string, error) {
	absPath, err := filepath.Abs(input.VideoPath)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}
	id := input.VideoID
	if id == "" {
		id = videoid.FromPath(absPath)
	}
	vec, err := p.embed(ctx, absPath)
	if err != nil {
		return "", fmt.Errorf("failed to extract features: %w", err)
	}
	if err := p.store.Insert(id, vec, absPath, input.Metadata, overwrite); err != nil {
		return "", err
	}
	p.indexCatalog(ctx, id)
	if p.logger != nil {
		p.logger.Debug("pipeline video whitelisted", zap.String("id", id), zap.String("path", absPath))
	}
	return id, nil
}

// IngestApprovedVideos whitelists each input, continuing past per-video
// failures. Returns aggregate counts; only context cancellation aborts.
func (p *Pipeline) IngestApprovedVideos(ctx context.Context, inputs []*models.IngestInput, overwrite bool) (*models.IngestSummary, error) {
	summary := &models.IngestSummary{}
	for _, input := range inputs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if _, err := p.ingestOne(ctx, input, overwrite); err != nil {
			summary.Failed++
			if p.logger != nil {
				p.logger.Warn("pipeline ingest failed",
					zap.String("path", input.VideoPath), zap.Error(err))
			}
			continue
		}
		summary.Success++
	}
	if summary.Success > 0 {
		p.persist()
	}
	return summary, nil
}

// Review runs a single video through format check, feature extraction, and
// similarity search, and returns the decision. Per-video failures do not
// return an error: the result lands in manual review carrying an error flag,
// so batch callers keep going. Only context cancellation returns an error.
func (p *Pipeline) Review(ctx context.Context, videoPath string) (*models.ReviewResult, error) {
	absPath, err := filepath.Abs(videoPath)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}

	formatOK := true
	var formatFlags []string
	if p.checker != nil {
		rep, err := p.checker.Check(ctx, absPath)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return p.errorResult(absPath, FlagFormatCheckError,
				fmt.Sprintf("format check failed: %v", err)), nil
		}
		formatOK = rep.OK
		formatFlags = rep.Flags
	}

	if !formatOK {
		result := p.maker.Decide(false, nil)
		result.VideoPath = absPath
		result.Flags = formatFlags
		return result, nil
	}

	vec, err := p.embed(ctx, absPath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return p.errorResult(absPath, FlagExtractionError,
			fmt.Sprintf("feature extraction failed: %v", err)), nil
	}

	hits, err := p.store.Search(vec, p.topK)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrEmptyStore):
			hits = nil
		case errors.Is(err, vector.ErrZeroVector):
			// The embedder produced a degenerate vector; treat it like an
			// extraction failure so the video still gets a terminal decision.
			return p.errorResult(absPath, FlagExtractionError,
				fmt.Sprintf("feature extraction failed: %v", err)), nil
		default:
			return nil, fmt.Errorf("whitelist search: %w", err)
		}
	}

	result := p.maker.Decide(true, hits)
	result.VideoPath = absPath
	result.Flags = formatFlags
	return result, nil
}

// ReviewBatch reviews each video in order and aggregates a report. The batch
// never aborts on a per-video failure; failed videos land in manual review
// with an error flag and are counted in the summary's Failed field. Context
// cancellation between videos aborts with the context's error.
// When a report store is configured the run is persisted; persistence
// failure is logged, not fatal.
func (p *Pipeline) ReviewBatch(ctx context.Context, videoPaths []string) (*models.BatchReport, error) {
	start := time.Now()
	report := &models.BatchReport{
		Timestamp: start.UTC().Format(time.RFC3339),
		Results:   make([]*models.ReviewResult, 0, len(videoPaths)),
	}

	for _, path := range videoPaths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := p.Review(ctx, path)
		if err != nil {
			return nil, err
		}
		report.Results = append(report.Results, result)

		switch result.Decision {
		case models.DecisionApproved:
			report.Summary.Approved++
		case models.DecisionRejected:
			report.Summary.Rejected++
		default:
			report.Summary.ManualReview++
		}
		if result.HasFlag(FlagFormatCheckError) || result.HasFlag(FlagExtractionError) {
			report.Summary.Failed++
		}
	}
	report.Summary.Total = len(report.Results)
	report.Summary.DurationSeconds = time.Since(start).Seconds()

	if p.reportStore != nil {
		runID, err := p.reportStore.SaveRun(ctx, report)
		if err != nil {
			if p.logger != nil {
				p.logger.Warn("pipeline failed to persist batch run", zap.Error(err))
			}
		} else if p.logger != nil {
			p.logger.Debug("pipeline batch run persisted", zap.String("run_id", runID))
		}
	}
	return report, nil
}

// FeedbackApproved re-whitelists a manually approved video, overwriting any
// existing record with the same ID so the embedding and metadata refresh.
func (p *Pipeline) FeedbackApproved(ctx context.Context, input *models.IngestInput) (string, error) {
	return p.IngestApprovedVideo(ctx, input, true)
}

// RemoveApprovedVideo deletes a video from the whitelist and the catalog.
func (p *Pipeline) RemoveApprovedVideo(ctx context.Context, videoID string) error {
	if err := p.store.Delete(videoID); err != nil {
		return err
	}
	if p.catalog != nil {
		if err := p.catalog.Delete(ctx, videoID); err != nil && p.logger != nil {
			p.logger.Warn("pipeline catalog delete failed",
				zap.String("id", videoID), zap.Error(err))
		}
	}
	p.persist()
	return nil
}

// Store exposes the underlying feature store for status and persistence.
func (p *Pipeline) Store() *store.FeatureStore {
	return p.store
}

func (p *Pipeline) persist() {
	if p.storePath == "" {
		return
	}
	if err := p.store.Save(p.storePath); err != nil && p.logger != nil {
		p.logger.Warn("pipeline feature store save failed",
			zap.String("path", p.storePath), zap.Error(err))
	}
}

func (p *Pipeline) embed(ctx context.Context, absPath string) ([]float32, error) {
	if p.embedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.embedTimeout)
		defer cancel()
	}
	return p.embedder.EmbedVideo(ctx, absPath)
}

func (p *Pipeline) errorResult(absPath, flag, reason string) *models.ReviewResult {
	if p.logger != nil {
		p.logger.Warn("pipeline review error",
			zap.String("path", absPath), zap.String("flag", flag), zap.String("reason", reason))
	}
	return &models.ReviewResult{
		VideoPath:  absPath,
		Decision:   models.DecisionManualReview,
		Confidence: 0,
		Reason:     reason,
		Flags:      []string{flag},
	}
}

func (p *Pipeline) indexCatalog(ctx context.Context, id string) {
	if p.catalog == nil {
		return
	}
	rec, err := p.store.GetRecord(id)
	if err != nil {
		return
	}
	if err := p.catalog.Index(ctx, rec); err != nil && p.logger != nil {
		p.logger.Warn("pipeline catalog index failed", zap.String("id", id), zap.Error(err))
	}
}
