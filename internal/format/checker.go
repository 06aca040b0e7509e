// Package format checks whether a video's presentation format is acceptable
// before any similarity work is done.
package format

import "context"

// Flags set by format checks.
const (
	FlagVerticalVideo = "vertical_video"
	FlagBlackBorders  = "black_borders"
)

// Report is the outcome of a format check. Flags name the violations found;
// OK is false when any violation is present.
type Report struct {
	OK    bool
	Flags []string
}

// Checker decides whether a video's format passes local checks such as
// aspect ratio and border detection. A Checker error is recoverable: the
// caller downgrades the video to manual review rather than failing the batch.
type Checker interface {
	Check(ctx context.Context, videoPath string) (*Report, error)
}

// AllowAll is a Checker that passes every video. Used when format checking
// is disabled in configuration.
type AllowAll struct{}

// Check always passes.
func (AllowAll) Check(ctx context.Context, videoPath string) (*Report, error) {
	return &Report{OK: true}, nil
}
