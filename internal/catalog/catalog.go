// Package catalog provides a Bleve text index over whitelist records so
// operators can find what has been whitelisted.
package catalog

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"

	"github.com/hyperjump/mihari/internal/models"
)

// entry is the indexed shape of a whitelist record.
type entry struct {
	VideoID   string `json:"video_id"`
	VideoPath string `json:"video_path"`
	Text      string `json:"text"` // flattened metadata values
}

// Hit is a single catalog search hit.
type Hit struct {
	VideoID string  `json:"video_id"`
	Score   float64 `json:"score"`
}

// Catalog wraps a Bleve index over whitelist records. It is a convenience
// view: the feature store owns the records, the catalog only mirrors them
// for text search.
type Catalog struct {
	index bleve.Index
}

// New creates or opens a catalog index at path. An existing index is opened
// and reused; remove the directory to force a full re-index after a mapping
// change.
func New(path string) (*Catalog, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so ids and
	// titles match as typed.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("video_path", textFieldMapping)
	docMapping.AddFieldMappingsAt("text", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("video_id", keywordFieldMapping)
	im.AddDocumentMapping("record", docMapping)
	im.DefaultType = "record"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open catalog index: %w", openErr)
		}
		return &Catalog{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog index: %w", err)
	}
	return &Catalog{index: index}, nil
}

// NewInMemory creates a catalog that is not persisted. Used in tests and
// when no catalog path is configured.
func NewInMemory() (*Catalog, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog index: %w", err)
	}
	return &Catalog{index: index}, nil
}

// Index mirrors a whitelist record into the catalog.
func (c *Catalog) Index(ctx context.Context, rec *models.VideoRecord) error {
	return c.index.Index(rec.VideoID, entry{
		VideoID:   rec.VideoID,
		VideoPath: rec.VideoPath,
		Text:      flattenMetadata(rec.Metadata),
	})
}

// Delete removes a record from the catalog.
func (c *Catalog) Delete(ctx context.Context, videoID string) error {
	return c.index.Delete(videoID)
}

// Search runs a match query over paths and metadata text and returns up to
// limit hits.
func (c *Catalog) Search(ctx context.Context, query string, limit int) ([]*Hit, error) {
	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := c.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("catalog search failed: %w", err)
	}
	out := make([]*Hit, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &Hit{VideoID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// Count returns the number of indexed records.
func (c *Catalog) Count() (uint64, error) {
	return c.index.DocCount()
}

// Close closes the underlying index.
func (c *Catalog) Close() error {
	return c.index.Close()
}

// flattenMetadata joins metadata values into one searchable string.
func flattenMetadata(metadata map[string]interface{}) string {
	if len(metadata) == 0 {
		return ""
	}
	parts := make([]string, 0, len(metadata))
	for k, v := range metadata {
		parts = append(parts, fmt.Sprintf("%s %v", k, v))
	}
	return strings.Join(parts, " ")
}
