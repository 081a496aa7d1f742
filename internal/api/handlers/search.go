package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/veritaslabs/mnemo/internal/api"
	"github.com/veritaslabs/mnemo/internal/service"
)

type SearchService interface {
	Search(ctx context.Context, input service.SearchInput) ([]*service.SearchResult, error)
}

type SearchHandler struct {
	svc SearchService
}

func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type SearchRequest struct {
	Query     string  `json:"query"`
	Limit     int     `json:"limit,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Category  string  `json:"category,omitempty"`
}

type SearchResultResponse struct {
	KnowledgeID string  `json:"knowledge_id"`
	Content     string  `json:"content"`
	Category    string  `json:"category,omitempty"`
	Similarity  float64 `json:"similarity"`
	Distance    float64 `json:"distance"`
}

type SearchResponse struct {
	Results []*SearchResultResponse `json:"results"`
	Count   int                     `json:"count"`
}

// Search ranks a project's knowledge against the query text.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input := service.SearchInput{
		ProjectID: projectID,
		Query:     req.Query,
		Limit:     req.Limit,
		Threshold: req.Threshold,
		Category:  req.Category,
	}

	results, err := h.svc.Search(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*SearchResultResponse, len(results))
	for i, result := range results {
		responses[i] = &SearchResultResponse{
			KnowledgeID: result.KnowledgeID,
			Content:     result.Content,
			Category:    result.Category,
			Similarity:  result.Similarity,
			Distance:    result.Distance,
		}
	}

	api.Success(w, http.StatusOK, SearchResponse{
		Results: responses,
		Count:   len(responses),
	})
}
