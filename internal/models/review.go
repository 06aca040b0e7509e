package models

// Decision is the terminal classification for a reviewed video.
type Decision string

const (
	DecisionApproved     Decision = "approved"
	DecisionRejected     Decision = "rejected"
	DecisionManualReview Decision = "manual_review"
)

// SimilarVideo is one whitelist match for a query, by descending similarity.
type SimilarVideo struct {
	VideoID    string  `json:"video_id"`
	Similarity float64 `json:"similarity"`
}

// ReviewResult is the outcome of reviewing a single video.
type ReviewResult struct {
	VideoPath     string         `json:"video_path"`
	Decision      Decision       `json:"decision"`
	Confidence    float64        `json:"confidence"`
	Reason        string         `json:"reason"`
	SimilarVideos []SimilarVideo `json:"similar_videos"`
	Flags         []string       `json:"flags"`
}

// HasFlag reports whether the result carries the given flag.
func (r *ReviewResult) HasFlag(flag string) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// BatchReviewSummary holds aggregate counts for one batch run.
// Immutable after construction.
type BatchReviewSummary struct {
	Total           int     `json:"total"`
	Approved        int     `json:"approved"`
	Rejected        int     `json:"rejected"`
	ManualReview    int     `json:"manual_review"`
	Failed          int     `json:"failed"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// BatchReport is the persisted shape of a batch run.
type BatchReport struct {
	Timestamp string             `json:"timestamp"` // ISO-8601
	Summary   BatchReviewSummary `json:"summary"`
	Results   []*ReviewResult    `json:"results"`
}

// IngestSummary counts the outcome of bulk whitelisting.
type IngestSummary struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
}
