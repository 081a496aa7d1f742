package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/veritaslabs/mnemo/internal/api"
	"github.com/veritaslabs/mnemo/internal/service"
)

type ArchiveManager interface {
	ScanAndArchive(ctx context.Context, dryRun bool) (*service.ArchiveScanResult, error)
	Unarchive(ctx context.Context, id string) error
	GetArchiveStatistics(ctx context.Context) (*service.ArchiveStatistics, error)
	ListArchiveLog(ctx context.Context, input service.ListArchiveLogInput) (*service.ArchiveLogPageResult, error)
	ExportJobLog(ctx context.Context, jobID string) (string, error)
}

type ArchiveHandler struct {
	svc ArchiveManager
}

func NewArchiveHandler(svc ArchiveManager) *ArchiveHandler {
	return &ArchiveHandler{svc: svc}
}

type ScanRequest struct {
	DryRun bool `json:"dry_run,omitempty"`
}

type ScanResponse struct {
	JobID      string `json:"job_id"`
	Scanned    int    `json:"scanned"`
	Archived   int    `json:"archived"`
	DurationMS int64  `json:"duration_ms"`
	DryRun     bool   `json:"dry_run"`
}

type ArchiveStatsResponse struct {
	TotalKnowledge int64            `json:"total_knowledge"`
	Active         int64            `json:"active"`
	Archived       int64            `json:"archived"`
	ArchivedRatio  float64          `json:"archived_ratio"`
	ByReason       map[string]int64 `json:"by_reason"`
}

type ArchiveLogEntryResponse struct {
	ID          string `json:"id"`
	KnowledgeID string `json:"knowledge_id"`
	ProjectID   string `json:"project_id"`
	Reason      string `json:"reason"`
	ArchivedAt  string `json:"archived_at"`
	JobID       string `json:"job_id"`
	LastUsed    string `json:"last_used,omitempty"`
	UsageCount  int64  `json:"usage_count"`
	Reliability int32  `json:"reliability"`
}

type ArchiveLogResponse struct {
	Items   []*ArchiveLogEntryResponse `json:"items"`
	Cursor  string                     `json:"cursor,omitempty"`
	HasMore bool                       `json:"has_more"`
}

type ExportResponse struct {
	Key string `json:"key"`
}

// Scan archives all idle knowledge, or only counts it when dry_run is set.
func (h *ArchiveHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	result, err := h.svc.ScanAndArchive(r.Context(), req.DryRun)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ScanResponse{
		JobID:      result.JobID,
		Scanned:    result.Scanned,
		Archived:   result.Archived,
		DurationMS: result.Duration.Milliseconds(),
		DryRun:     result.DryRun,
	})
}

// Unarchive returns an archived knowledge item to the active set.
func (h *ArchiveHandler) Unarchive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.svc.Unarchive(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"status": "active"})
}

// Stats reports archive aggregates across the store.
func (h *ArchiveHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.GetArchiveStatistics(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	byReason := make(map[string]int64, len(stats.ByReason))
	for reason, n := range stats.ByReason {
		byReason[string(reason)] = n
	}

	api.Success(w, http.StatusOK, ArchiveStatsResponse{
		TotalKnowledge: stats.TotalKnowledge,
		Active:         stats.Active,
		Archived:       stats.Archived,
		ArchivedRatio:  stats.ArchivedRatio,
		ByReason:       byReason,
	})
}

// Log pages the append-only archive audit log, newest first.
func (h *ArchiveHandler) Log(w http.ResponseWriter, r *http.Request) {
	input := service.ListArchiveLogInput{
		Cursor: r.URL.Query().Get("cursor"),
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		input.Limit = n
	}

	page, err := h.svc.ListArchiveLog(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*ArchiveLogEntryResponse, len(page.Items))
	for i, entry := range page.Items {
		lastUsed := ""
		if entry.LastUsed != nil {
			lastUsed = entry.LastUsed.UTC().Format(time.RFC3339Nano)
		}
		items[i] = &ArchiveLogEntryResponse{
			ID:          entry.ID,
			KnowledgeID: entry.KnowledgeID,
			ProjectID:   entry.ProjectID,
			Reason:      string(entry.Reason),
			ArchivedAt:  entry.ArchivedAt.UTC().Format(time.RFC3339Nano),
			JobID:       entry.ArchivedByJobID,
			LastUsed:    lastUsed,
			UsageCount:  entry.UsageCount,
			Reliability: entry.Reliability,
		}
	}

	api.Success(w, http.StatusOK, ArchiveLogResponse{
		Items:   items,
		Cursor:  page.NextCursor,
		HasMore: page.HasMore,
	})
}

// Export uploads one job's audit records as a JSON snapshot.
func (h *ArchiveHandler) Export(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	key, err := h.svc.ExportJobLog(r.Context(), jobID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ExportResponse{Key: key})
}
