package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/veritaslabs/mnemo/internal/domain"
	"github.com/veritaslabs/mnemo/internal/service"
)

type MockDuplicateService struct {
	mock.Mock
}

func (m *MockDuplicateService) DetectDuplicates(ctx context.Context, projectID string, knowledgeIDs []string) (int, error) {
	args := m.Called(ctx, projectID, knowledgeIDs)
	return args.Int(0), args.Error(1)
}

func (m *MockDuplicateService) RemoveDuplicateFromGroup(ctx context.Context, knowledgeID string) error {
	args := m.Called(ctx, knowledgeID)
	return args.Error(0)
}

func (m *MockDuplicateService) GetDuplicateStats(ctx context.Context, projectID string) (*service.DuplicateStats, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DuplicateStats), args.Error(1)
}

func requestWithKnowledgeID(method, url, knowledgeID string) *http.Request {
	req := httptest.NewRequest(method, url, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", knowledgeID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestDuplicateHandler_Detect_Success(t *testing.T) {
	mockSvc := new(MockDuplicateService)
	handler := NewDuplicateHandler(mockSvc)

	mockSvc.On("DetectDuplicates", mock.Anything, "proj-1", []string{"k-1", "k-2"}).Return(3, nil)

	body := `{"knowledge_ids":["k-1","k-2"]}`
	req := requestWithProjectID(http.MethodPost, "/projects/proj-1/duplicates/detect", "proj-1", []byte(body))
	w := httptest.NewRecorder()

	handler.Detect(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(3), data["duplicates_found"])
	mockSvc.AssertExpectations(t)
}

func TestDuplicateHandler_Detect_MissingIDs(t *testing.T) {
	mockSvc := new(MockDuplicateService)
	handler := NewDuplicateHandler(mockSvc)

	req := requestWithProjectID(http.MethodPost, "/projects/proj-1/duplicates/detect", "proj-1", []byte(`{}`))
	w := httptest.NewRecorder()

	handler.Detect(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "knowledge_ids is required")
	mockSvc.AssertNotCalled(t, "DetectDuplicates")
}

func TestDuplicateHandler_Detect_InvalidJSON(t *testing.T) {
	mockSvc := new(MockDuplicateService)
	handler := NewDuplicateHandler(mockSvc)

	req := requestWithProjectID(http.MethodPost, "/projects/proj-1/duplicates/detect", "proj-1", []byte(`{invalid`))
	w := httptest.NewRecorder()

	handler.Detect(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}

func TestDuplicateHandler_Detect_StoreError(t *testing.T) {
	mockSvc := new(MockDuplicateService)
	handler := NewDuplicateHandler(mockSvc)

	mockSvc.On("DetectDuplicates", mock.Anything, "proj-1", []string{"k-1"}).Return(0, domain.ErrStoreUnavailable)

	req := requestWithProjectID(http.MethodPost, "/projects/proj-1/duplicates/detect", "proj-1", []byte(`{"knowledge_ids":["k-1"]}`))
	w := httptest.NewRecorder()

	handler.Detect(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestDuplicateHandler_RemoveFromGroup_Success(t *testing.T) {
	mockSvc := new(MockDuplicateService)
	handler := NewDuplicateHandler(mockSvc)

	mockSvc.On("RemoveDuplicateFromGroup", mock.Anything, "k-1").Return(nil)

	req := requestWithKnowledgeID(http.MethodDelete, "/knowledge/k-1/duplicate-group", "k-1")
	w := httptest.NewRecorder()

	handler.RemoveFromGroup(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "removed", data["status"])
	mockSvc.AssertExpectations(t)
}

func TestDuplicateHandler_RemoveFromGroup_NotFound(t *testing.T) {
	mockSvc := new(MockDuplicateService)
	handler := NewDuplicateHandler(mockSvc)

	mockSvc.On("RemoveDuplicateFromGroup", mock.Anything, "k-999").Return(domain.ErrKnowledgeNotFound)

	req := requestWithKnowledgeID(http.MethodDelete, "/knowledge/k-999/duplicate-group", "k-999")
	w := httptest.NewRecorder()

	handler.RemoveFromGroup(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestDuplicateHandler_Stats_Success(t *testing.T) {
	mockSvc := new(MockDuplicateService)
	handler := NewDuplicateHandler(mockSvc)

	stats := &service.DuplicateStats{
		TotalGroups:     2,
		TotalDuplicates: 5,
		ByMethod: map[domain.DetectionMethod]int{
			domain.DetectionMethodExact:    1,
			domain.DetectionMethodSemantic: 1,
		},
		DuplicateRatio: 0.25,
	}
	mockSvc.On("GetDuplicateStats", mock.Anything, "proj-1").Return(stats, nil)

	req := requestWithProjectID(http.MethodGet, "/projects/proj-1/duplicates/stats", "proj-1", nil)
	w := httptest.NewRecorder()

	handler.Stats(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["total_groups"])
	assert.Equal(t, float64(5), data["total_duplicates"])
	assert.Equal(t, 0.25, data["duplicate_ratio"])
	byMethod := data["by_method"].(map[string]interface{})
	assert.Equal(t, float64(1), byMethod["exact"])
	assert.Equal(t, float64(1), byMethod["semantic"])
	mockSvc.AssertExpectations(t)
}
