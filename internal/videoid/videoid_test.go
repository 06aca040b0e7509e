package videoid

import (
	"path/filepath"
	"testing"
)

func TestFromPath(t *testing.T) {
	// Deterministic: same path gives same ID
	id1 := FromPath("/videos/clip.mp4")
	id2 := FromPath("/videos/clip.mp4")
	if id1 != id2 {
		t.Errorf("same path should give same ID: %q vs %q", id1, id2)
	}
	if id1 == "" {
		t.Error("ID should not be empty")
	}
	if len(id1) < 10 {
		t.Errorf("ID too short: %q", id1)
	}
	if id1[:len(prefix)] != prefix {
		t.Errorf("ID should have prefix %q: got %q", prefix, id1)
	}
}

func TestFromPath_differentPaths(t *testing.T) {
	id1 := FromPath("/videos/clip.mp4")
	id2 := FromPath("/videos/other.mp4")
	if id1 == id2 {
		t.Errorf("different paths should give different IDs: %q", id1)
	}
}

func TestFromPath_normalized(t *testing.T) {
	// Clean path: /videos/clip and /videos/clip/ and /videos/./clip should match
	id1 := FromPath("/videos/clip")
	id2 := FromPath("/videos/clip/")
	id3 := FromPath("/videos/./clip")
	if id1 != id2 {
		t.Errorf("paths differing only by trailing slash should match: %q vs %q", id1, id2)
	}
	if id1 != id3 {
		t.Errorf("paths with . should normalize: %q vs %q", id1, id3)
	}
}

func TestFromPath_absoluteFromFilepath(t *testing.T) {
	abs, _ := filepath.Abs(".")
	id := FromPath(abs)
	if id == "" || id[:len(prefix)] != prefix {
		t.Errorf("absolute path: got %q", id)
	}
}
