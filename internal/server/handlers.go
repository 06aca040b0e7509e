package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/mihari/internal/models"
	"github.com/hyperjump/mihari/internal/pipeline"
	"github.com/hyperjump/mihari/internal/store"
	"github.com/hyperjump/mihari/internal/vector"
)

type reviewRequest struct {
	VideoPath string `json:"video_path"`
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.VideoPath == "" {
		s.respondError(w, http.StatusBadRequest, "video_path is required")
		return
	}
	s.logger.Debug("review request", zap.String("path", req.VideoPath))
	result, err := s.pipeline.Review(r.Context(), req.VideoPath)
	if err != nil {
		s.logger.Error("review failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

type batchReviewRequest struct {
	VideoPaths []string `json:"video_paths"`
	ReportPath string   `json:"report_path,omitempty"`
}

func (s *Server) handleReviewBatch(w http.ResponseWriter, r *http.Request) {
	var req batchReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.VideoPaths) == 0 {
		s.respondError(w, http.StatusBadRequest, "video_paths is required")
		return
	}
	s.logger.Debug("batch review request", zap.Int("videos", len(req.VideoPaths)))
	report, err := s.pipeline.ReviewBatch(r.Context(), req.VideoPaths)
	if err != nil {
		s.logger.Error("batch review failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if req.ReportPath != "" {
		if err := pipeline.WriteReportFile(report, req.ReportPath); err != nil {
			s.logger.Warn("failed to write report file", zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusOK, report)
}

type whitelistAddRequest struct {
	VideoID   string                 `json:"video_id,omitempty"`
	VideoPath string                 `json:"video_path"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Overwrite bool                   `json:"overwrite,omitempty"`
}

func (s *Server) handleWhitelistAdd(w http.ResponseWriter, r *http.Request) {
	var req whitelistAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.VideoPath == "" {
		s.respondError(w, http.StatusBadRequest, "video_path is required")
		return
	}
	s.logger.Debug("whitelist add request", zap.String("id", req.VideoID), zap.String("path", req.VideoPath))
	input := &models.IngestInput{VideoID: req.VideoID, VideoPath: req.VideoPath, Metadata: req.Metadata}
	id, err := s.pipeline.IngestApprovedVideo(r.Context(), input, req.Overwrite)
	if err != nil {
		s.logger.Error("whitelist add failed", zap.Error(err))
		s.respondError(w, statusForError(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"id": id, "status": "whitelisted"})
}

func (s *Server) handleWhitelistList(w http.ResponseWriter, r *http.Request) {
	records := s.pipeline.Store().ListAll()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"videos": records,
		"count":  len(records),
	})
}

func (s *Server) handleWhitelistGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.pipeline.Store().GetRecord(id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "video not found")
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleWhitelistRemove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("whitelist remove request", zap.String("id", id))
	if err := s.pipeline.RemoveApprovedVideo(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "video not found")
			return
		}
		s.logger.Error("whitelist remove failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleWhitelistSearch(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		s.respondError(w, http.StatusNotImplemented, "catalog not enabled")
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	hits, err := s.catalog.Search(r.Context(), q, limit)
	if err != nil {
		s.logger.Error("catalog search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"hits":  hits,
		"count": len(hits),
	})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req whitelistAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.VideoPath == "" {
		s.respondError(w, http.StatusBadRequest, "video_path is required")
		return
	}
	s.logger.Debug("feedback request", zap.String("id", req.VideoID), zap.String("path", req.VideoPath))
	input := &models.IngestInput{VideoID: req.VideoID, VideoPath: req.VideoPath, Metadata: req.Metadata}
	id, err := s.pipeline.FeedbackApproved(r.Context(), input)
	if err != nil {
		s.logger.Error("feedback failed", zap.Error(err))
		s.respondError(w, statusForError(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "whitelisted"})
}

func (s *Server) handleReportsList(w http.ResponseWriter, r *http.Request) {
	if s.reportStore == nil {
		s.respondError(w, http.StatusNotImplemented, "report store not enabled")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	runs, err := s.reportStore.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("list runs failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

func (s *Server) handleReportsGet(w http.ResponseWriter, r *http.Request) {
	if s.reportStore == nil {
		s.respondError(w, http.StatusNotImplemented, "report store not enabled")
		return
	}
	id := chi.URLParam(r, "id")
	run, err := s.reportStore.GetRun(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	s.respondJSON(w, http.StatusOK, run)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.pipeline.Store().Stats()
	resp := map[string]interface{}{
		"whitelist_videos": stats.Records,
		"index_slots":      stats.IndexSlots,
		"index_kind":       stats.IndexKind,
		"dimensions":       stats.Dimensions,
	}
	if s.reportStore != nil {
		if count, err := s.reportStore.CountRuns(r.Context()); err == nil {
			resp["review_runs"] = count
		}
	}
	if s.catalog != nil {
		if count, err := s.catalog.Count(); err == nil {
			resp["catalog_entries"] = count
		}
	}
	if s.fullConfig != nil {
		resp["config"] = map[string]interface{}{
			"auto_pass_threshold":   s.fullConfig.Review.AutoPassThreshold,
			"auto_reject_threshold": s.fullConfig.Review.AutoRejectThreshold,
			"top_k":                 s.fullConfig.Review.TopK,
			"format_check":          s.fullConfig.Review.FormatCheckOrDefault(),
			"store_path":            s.fullConfig.Storage.StorePath,
			"reports_db_path":       s.fullConfig.Storage.ReportsDBPath,
			"catalog_index_path":    s.fullConfig.Storage.CatalogIndexPath,
		}
		diskBytes, err := diskUsageBytes(
			s.fullConfig.Storage.StorePath,
			s.fullConfig.Storage.ReportsDBPath,
			s.fullConfig.Storage.CatalogIndexPath,
		)
		if err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// diskUsageBytes sums file sizes under the given paths; missing paths count as zero.
func diskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		err := filepath.WalkDir(p, func(path string, d os.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
			return nil
		})
		if err != nil && !os.IsNotExist(err) {
			return 0, err
		}
	}
	return total, nil
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, store.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, vector.ErrDimensionMismatch), errors.Is(err, vector.ErrZeroVector):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
