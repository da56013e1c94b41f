package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/subscriber-analytics/internal/analytics"
	"github.com/ignite/subscriber-analytics/internal/dataset"
	"github.com/ignite/subscriber-analytics/internal/pkg/logger"
)

// maxUploadBytes caps export zip uploads. Full exports of large lists run
// tens of megabytes; half a gigabyte is comfortably above any real export.
const maxUploadBytes = 512 << 20

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	manifests, err := s.manager.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if manifests == nil {
		manifests = []*dataset.Manifest{}
	}
	respondJSON(w, http.StatusOK, manifests)
}

func (s *Server) handleUploadDataset(w http.ResponseWriter, r *http.Request) {
	zipData, filename, err := readUpload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	label := r.FormValue("label")

	manifest, err := s.manager.ProcessUpload(zipData, filename, label)
	if err != nil {
		var verr *dataset.ValidationError
		if errors.As(err, &verr) {
			respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":    "invalid export structure",
				"problems": verr.Problems,
			})
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	logger.Info("dataset uploaded", "dataset_id", manifest.ID,
		"subscribers", manifest.Stats.SubscriberCount, "posts", manifest.Stats.PostCount)

	if s.archive != nil {
		if key, err := s.archive.Save(r.Context(), manifest.ID, filename, zipData); err != nil {
			logger.Warn("export archival failed", "dataset_id", manifest.ID, "error", err.Error())
		} else {
			logger.Info("export archived", "dataset_id", manifest.ID, "key", key)
		}
	}
	if s.registry != nil {
		if err := s.registry.Upsert(r.Context(), manifest); err != nil {
			logger.Warn("manifest registry update failed", "dataset_id", manifest.ID, "error", err.Error())
		}
	}

	respondJSON(w, http.StatusCreated, manifest)
}

func (s *Server) handleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.manager.Delete(id); err != nil {
		if errors.Is(err, dataset.ErrNotFound) {
			respondError(w, http.StatusNotFound, "dataset not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.invalidate(r.Context(), id)
	if s.registry != nil {
		if err := s.registry.Delete(r.Context(), id); err != nil && !errors.Is(err, dataset.ErrNotFound) {
			logger.Warn("manifest registry delete failed", "dataset_id", id, "error", err.Error())
		}
	}
	logger.Info("dataset deleted", "dataset_id", id)

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

func (s *Server) handleAttachDetails(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	csvData, _, err := readUpload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	manifest, err := s.manager.AttachSubscriberDetails(id, csvData)
	if err != nil {
		if errors.Is(err, dataset.ErrNotFound) {
			respondError(w, http.StatusNotFound, "dataset not found")
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.invalidate(r.Context(), id)
	if s.registry != nil {
		if err := s.registry.Upsert(r.Context(), manifest); err != nil {
			logger.Warn("manifest registry update failed", "dataset_id", id, "error", err.Error())
		}
	}

	respondJSON(w, http.StatusOK, manifest)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.respondAnalysis(w, r, func(a *analytics.Analysis) any { return a.Metrics })
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	s.respondAnalysis(w, r, func(a *analytics.Analysis) any { return a })
}

func (s *Server) handleSegments(w http.ResponseWriter, r *http.Request) {
	s.respondAnalysis(w, r, func(a *analytics.Analysis) any { return a.Tiers })
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	s.respondAnalysis(w, r, func(a *analytics.Analysis) any { return a.Trends })
}

func (s *Server) handleCleaning(w http.ResponseWriter, r *http.Request) {
	analysis, ok := s.analysisOr404(w, r)
	if !ok {
		return
	}
	if analysis.Cleaning == nil {
		respondError(w, http.StatusConflict, "dataset has no subscriber details; attach subscriber_details.csv first")
		return
	}
	respondJSON(w, http.StatusOK, analysis.Cleaning)
}

func (s *Server) handleCleaningImpact(w http.ResponseWriter, r *http.Request) {
	set := analytics.RemovalSet(r.URL.Query().Get("set"))
	switch set {
	case analytics.RemovalNeverOpened, analytics.RemovalInactive, analytics.RemovalBoth:
	case "":
		set = analytics.RemovalBoth
	default:
		respondError(w, http.StatusBadRequest, "set must be one of: never_opened, inactive, both")
		return
	}

	analysis, ok := s.analysisOr404(w, r)
	if !ok {
		return
	}
	if analysis.Cleaning == nil {
		respondError(w, http.StatusConflict, "dataset has no subscriber details; attach subscriber_details.csv first")
		return
	}
	respondJSON(w, http.StatusOK, analysis.Cleaning.SimulateRemoval(set))
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	analysis, ok := s.analysisOr404(w, r)
	if !ok {
		return
	}

	markdown, err := s.reports.Render(analysis)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="analytics-report.md"`)
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, markdown)
}

// respondAnalysis runs the analysis and responds with a projection of it.
func (s *Server) respondAnalysis(w http.ResponseWriter, r *http.Request, project func(*analytics.Analysis) any) {
	analysis, ok := s.analysisOr404(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, project(analysis))
}

func (s *Server) analysisOr404(w http.ResponseWriter, r *http.Request) (*analytics.Analysis, bool) {
	id := chi.URLParam(r, "id")
	analysis, err := s.runAnalysis(r.Context(), id)
	if err != nil {
		if errors.Is(err, dataset.ErrNotFound) {
			respondError(w, http.StatusNotFound, "dataset not found")
			return nil, false
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return analysis, true
}

// readUpload pulls the uploaded file out of a multipart form ("file"
// field), falling back to the raw request body.
func readUpload(r *http.Request) (data []byte, filename string, err error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err == nil {
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, "", errors.New("multipart form has no file field")
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, "", err
		}
		return data, header.Filename, nil
	}

	data, err = io.ReadAll(r.Body)
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", errors.New("empty upload body")
	}
	return data, "upload", nil
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
