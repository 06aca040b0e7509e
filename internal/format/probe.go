package format

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// maxBorderRatio is the largest fraction of frame height the detected
// letterbox borders may cover before the video is flagged.
const maxBorderRatio = 0.1

// probeResult is the sidecar JSON written by the external probing step.
type probeResult struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	BorderRatio float64 `json:"border_ratio"`
}

// ProbeFileChecker reads the "<video>.probe.json" sidecar produced by the
// external probe step and flags vertical aspect ratios and black letterbox
// borders. Video decoding itself never happens here.
type ProbeFileChecker struct{}

// NewProbeFileChecker returns a sidecar-based format checker.
func NewProbeFileChecker() *ProbeFileChecker {
	return &ProbeFileChecker{}
}

// Check reads the probe sidecar for videoPath and reports format violations.
// A missing or unreadable sidecar is an error, which callers map to manual
// review.
func (c *ProbeFileChecker) Check(ctx context.Context, videoPath string) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(videoPath + ".probe.json")
	if err != nil {
		return nil, fmt.Errorf("read probe sidecar: %w", err)
	}
	var probe probeResult
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parse probe sidecar: %w", err)
	}
	if probe.Width <= 0 || probe.Height <= 0 {
		return nil, fmt.Errorf("probe sidecar has invalid geometry %dx%d", probe.Width, probe.Height)
	}

	var flags []string
	if probe.Height > probe.Width {
		flags = append(flags, FlagVerticalVideo)
	}
	if probe.BorderRatio > maxBorderRatio {
		flags = append(flags, FlagBlackBorders)
	}
	return &Report{OK: len(flags) == 0, Flags: flags}, nil
}
