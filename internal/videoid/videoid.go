// Package videoid provides a deterministic whitelist ID from a video path.
package videoid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const prefix = "video:"

// FromPath returns a stable video ID for the given absolute path.
// Same path always yields the same ID. Used for ingest/feedback/delete by path.
func FromPath(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return prefix + hex.EncodeToString(hash[:])
}
