package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/veritaslabs/mnemo/internal/api"
	"github.com/veritaslabs/mnemo/internal/service"
)

type DuplicateDetector interface {
	DetectDuplicates(ctx context.Context, projectID string, knowledgeIDs []string) (int, error)
	RemoveDuplicateFromGroup(ctx context.Context, knowledgeID string) error
	GetDuplicateStats(ctx context.Context, projectID string) (*service.DuplicateStats, error)
}

type DuplicateHandler struct {
	svc DuplicateDetector
}

func NewDuplicateHandler(svc DuplicateDetector) *DuplicateHandler {
	return &DuplicateHandler{svc: svc}
}

type DetectDuplicatesRequest struct {
	KnowledgeIDs []string `json:"knowledge_ids"`
}

type DetectDuplicatesResponse struct {
	DuplicatesFound int `json:"duplicates_found"`
}

type DuplicateStatsResponse struct {
	TotalGroups     int            `json:"total_groups"`
	TotalDuplicates int            `json:"total_duplicates"`
	ByMethod        map[string]int `json:"by_method"`
	DuplicateRatio  float64        `json:"duplicate_ratio"`
}

// Detect runs duplicate detection and grouping for the given knowledge ids.
func (h *DuplicateHandler) Detect(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	var req DetectDuplicatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.KnowledgeIDs) == 0 {
		api.Error(w, http.StatusBadRequest, "knowledge_ids is required")
		return
	}

	total, err := h.svc.DetectDuplicates(r.Context(), projectID, req.KnowledgeIDs)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, DetectDuplicatesResponse{DuplicatesFound: total})
}

// RemoveFromGroup detaches one knowledge item from its duplicate group.
func (h *DuplicateHandler) RemoveFromGroup(w http.ResponseWriter, r *http.Request) {
	knowledgeID := chi.URLParam(r, "id")

	if err := h.svc.RemoveDuplicateFromGroup(r.Context(), knowledgeID); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"status": "removed"})
}

// Stats reports duplicate-group aggregates for a project.
func (h *DuplicateHandler) Stats(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	stats, err := h.svc.GetDuplicateStats(r.Context(), projectID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	byMethod := make(map[string]int, len(stats.ByMethod))
	for method, n := range stats.ByMethod {
		byMethod[string(method)] = n
	}

	api.Success(w, http.StatusOK, DuplicateStatsResponse{
		TotalGroups:     stats.TotalGroups,
		TotalDuplicates: stats.TotalDuplicates,
		ByMethod:        byMethod,
		DuplicateRatio:  stats.DuplicateRatio,
	})
}
