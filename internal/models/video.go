// Package models defines core data structures for whitelist records and
// review results.
package models

import "time"

// VideoRecord is a whitelisted video as stored in the feature store.
// Owned exclusively by the store; mutated only by overwrite-insert.
type VideoRecord struct {
	VideoID   string                 `json:"video_id"`
	VideoPath string                 `json:"video_path"`
	AddedTime time.Time              `json:"added_time"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// IngestInput is the input for whitelisting a video.
type IngestInput struct {
	VideoID   string                 `json:"video_id,omitempty"`
	VideoPath string                 `json:"video_path"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}
