// Package decision applies the threshold policy that classifies a reviewed
// video as approved, rejected, or requiring manual review.
package decision

import (
	"errors"
	"fmt"

	"github.com/hyperjump/mihari/internal/models"
)

// ErrInvalidThresholds is returned when the auto-reject threshold is not
// strictly below the auto-pass threshold.
var ErrInvalidThresholds = errors.New("auto_reject_threshold must be below auto_pass_threshold")

// Maker holds validated decision thresholds. Decide is a pure function of
// its inputs; the Maker carries no other state.
type Maker struct {
	autoPass   float64
	autoReject float64
}

// NewMaker validates the thresholds at construction time. A reversed or
// equal pair would make the manual-review band unreachable, so it fails
// with ErrInvalidThresholds instead.
func NewMaker(autoPass, autoReject float64) (*Maker, error) {
	if autoReject >= autoPass {
		return nil, fmt.Errorf("%w: reject %.2f, pass %.2f", ErrInvalidThresholds, autoReject, autoPass)
	}
	return &Maker{autoPass: autoPass, autoReject: autoReject}, nil
}

// AutoPass returns the auto-pass threshold.
func (m *Maker) AutoPass() float64 { return m.autoPass }

// AutoReject returns the auto-reject threshold.
func (m *Maker) AutoReject() float64 { return m.autoReject }

// Decide classifies a video from its format-check outcome and whitelist
// search hits, evaluated in strict order:
//  1. failed format check rejects immediately, similarity is not consulted
//  2. no hits (empty whitelist) goes to manual review
//  3. best similarity at or above the pass threshold approves
//  4. best similarity at or below the reject threshold rejects
//  5. anything strictly between the thresholds goes to manual review
//
// Confidence is the best similarity in every similarity-based branch,
// clamped at 0 so anti-correlated embeddings cannot push it negative.
func (m *Maker) Decide(formatOK bool, hits []models.SimilarVideo) *models.ReviewResult {
	if !formatOK {
		return &models.ReviewResult{
			Decision:   models.DecisionRejected,
			Confidence: 1.0,
			Reason:     "format violation",
		}
	}
	if len(hits) == 0 {
		return &models.ReviewResult{
			Decision:   models.DecisionManualReview,
			Confidence: 0,
			Reason:     "empty whitelist, no approved content to compare against",
		}
	}
	best := hits[0]
	switch {
	case best.Similarity >= m.autoPass:
		return &models.ReviewResult{
			Decision:      models.DecisionApproved,
			Confidence:    best.Similarity,
			Reason:        fmt.Sprintf("matched approved video %s (%.1f%% similar)", best.VideoID, best.Similarity*100),
			SimilarVideos: hits,
		}
	case best.Similarity <= m.autoReject:
		// Cosine similarity can be negative; confidence stays in [0, 1].
		confidence := best.Similarity
		if confidence < 0 {
			confidence = 0
		}
		return &models.ReviewResult{
			Decision:      models.DecisionRejected,
			Confidence:    confidence,
			Reason:        fmt.Sprintf("no sufficiently similar approved content (best %.1f%%)", best.Similarity*100),
			SimilarVideos: hits,
		}
	default:
		return &models.ReviewResult{
			Decision:   models.DecisionManualReview,
			Confidence: best.Similarity,
			Reason: fmt.Sprintf("similarity %.1f%% is between reject %.1f%% and pass %.1f%%",
				best.Similarity*100, m.autoReject*100, m.autoPass*100),
			SimilarVideos: hits,
		}
	}
}
