package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/veritaslabs/mnemo/internal/domain"
)

func TestSearchService_Search(t *testing.T) {
	ctx := context.Background()

	knowledgeWithEmbedding := func(id string, embedding []float32) *domain.Knowledge {
		return &domain.Knowledge{
			ID:        id,
			ProjectID: "project-1",
			Content:   "content for " + id,
			Embedding: embedding,
		}
	}

	t.Run("ranks results by descending similarity and applies threshold", func(t *testing.T) {
		mockStore := new(MockKnowledgeStore)
		mockEmbedding := new(MockEmbeddingProvider)
		svc := NewSearchService(mockStore, mockEmbedding)

		mockEmbedding.On("GenerateEmbedding", mock.Anything, "query text").
			Return([]float32{1, 0, 0}, nil)

		candidates := []*domain.Knowledge{
			knowledgeWithEmbedding("k-low", []float32{0, 1, 0}),     // similarity 0
			knowledgeWithEmbedding("k-exact", []float32{1, 0, 0}),   // similarity 1
			knowledgeWithEmbedding("k-partial", []float32{1, 1, 0}), // similarity ~0.707
		}
		mockStore.On("QueryByProject", mock.Anything, "project-1", QueryFilters{RequireEmbedding: true}).
			Return(candidates, nil)

		results, err := svc.Search(ctx, SearchInput{
			ProjectID: "project-1",
			Query:     "query text",
			Threshold: 0.5,
		})

		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "k-exact", results[0].KnowledgeID)
		assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)
		assert.InDelta(t, 0.0, results[0].Distance, 1e-9)
		assert.Equal(t, "k-partial", results[1].KnowledgeID)
		assert.InDelta(t, 0.7071, results[1].Similarity, 1e-4)

		mockStore.AssertExpectations(t)
		mockEmbedding.AssertExpectations(t)
	})

	t.Run("breaks similarity ties on knowledge id", func(t *testing.T) {
		mockStore := new(MockKnowledgeStore)
		mockEmbedding := new(MockEmbeddingProvider)
		svc := NewSearchService(mockStore, mockEmbedding)

		candidates := []*domain.Knowledge{
			knowledgeWithEmbedding("k-b", []float32{1, 0}),
			knowledgeWithEmbedding("k-a", []float32{1, 0}),
		}
		mockStore.On("QueryByProject", mock.Anything, "project-1", mock.Anything).
			Return(candidates, nil)

		results, err := svc.Search(ctx, SearchInput{
			ProjectID:      "project-1",
			QueryEmbedding: []float32{1, 0},
		})

		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "k-a", results[0].KnowledgeID)
		assert.Equal(t, "k-b", results[1].KnowledgeID)
	})

	t.Run("truncates results to the limit", func(t *testing.T) {
		mockStore := new(MockKnowledgeStore)
		mockEmbedding := new(MockEmbeddingProvider)
		svc := NewSearchService(mockStore, mockEmbedding)

		candidates := []*domain.Knowledge{
			knowledgeWithEmbedding("k-1", []float32{1, 0}),
			knowledgeWithEmbedding("k-2", []float32{1, 0}),
			knowledgeWithEmbedding("k-3", []float32{1, 0}),
		}
		mockStore.On("QueryByProject", mock.Anything, "project-1", mock.Anything).
			Return(candidates, nil)

		results, err := svc.Search(ctx, SearchInput{
			ProjectID:      "project-1",
			QueryEmbedding: []float32{1, 0},
			Limit:          2,
		})

		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("skips embedding generation when a query embedding is supplied", func(t *testing.T) {
		mockStore := new(MockKnowledgeStore)
		mockEmbedding := new(MockEmbeddingProvider)
		svc := NewSearchService(mockStore, mockEmbedding)

		mockStore.On("QueryByProject", mock.Anything, "project-1", mock.Anything).
			Return([]*domain.Knowledge{}, nil)

		results, err := svc.Search(ctx, SearchInput{
			ProjectID:      "project-1",
			QueryEmbedding: []float32{1, 0, 0},
		})

		require.NoError(t, err)
		assert.Empty(t, results)
		mockEmbedding.AssertNotCalled(t, "GenerateEmbedding", mock.Anything, mock.Anything)
	})

	t.Run("empty candidate set returns empty results, not an error", func(t *testing.T) {
		mockStore := new(MockKnowledgeStore)
		mockEmbedding := new(MockEmbeddingProvider)
		svc := NewSearchService(mockStore, mockEmbedding)

		mockEmbedding.On("GenerateEmbedding", mock.Anything, "anything").
			Return([]float32{1, 0}, nil)
		mockStore.On("QueryByProject", mock.Anything, "project-1", mock.Anything).
			Return([]*domain.Knowledge{}, nil)

		results, err := svc.Search(ctx, SearchInput{ProjectID: "project-1", Query: "anything"})

		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("empty query string is still sent to the provider", func(t *testing.T) {
		mockStore := new(MockKnowledgeStore)
		mockEmbedding := new(MockEmbeddingProvider)
		svc := NewSearchService(mockStore, mockEmbedding)

		mockEmbedding.On("GenerateEmbedding", mock.Anything, "").
			Return([]float32{0, 1}, nil)
		mockStore.On("QueryByProject", mock.Anything, "project-1", mock.Anything).
			Return([]*domain.Knowledge{}, nil)

		_, err := svc.Search(ctx, SearchInput{ProjectID: "project-1", Query: ""})

		require.NoError(t, err)
		mockEmbedding.AssertExpectations(t)
	})

	t.Run("returns validation error for missing project id", func(t *testing.T) {
		svc := NewSearchService(new(MockKnowledgeStore), new(MockEmbeddingProvider))

		_, err := svc.Search(ctx, SearchInput{Query: "query"})

		assert.ErrorIs(t, err, domain.ErrMissingProjectID)
	})

	t.Run("returns validation error for negative limit", func(t *testing.T) {
		svc := NewSearchService(new(MockKnowledgeStore), new(MockEmbeddingProvider))

		_, err := svc.Search(ctx, SearchInput{ProjectID: "project-1", Limit: -1})

		assert.ErrorIs(t, err, domain.ErrNegativeLimit)
	})

	t.Run("wraps provider failures as PROVIDER_ERROR", func(t *testing.T) {
		mockStore := new(MockKnowledgeStore)
		mockEmbedding := new(MockEmbeddingProvider)
		svc := NewSearchService(mockStore, mockEmbedding)

		providerErr := errors.New("rate limited")
		mockEmbedding.On("GenerateEmbedding", mock.Anything, "query").
			Return(nil, providerErr)

		_, err := svc.Search(ctx, SearchInput{ProjectID: "project-1", Query: "query"})

		require.Error(t, err)
		var domainErr *domain.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, domain.ErrCodeProvider, domainErr.Code)
		assert.ErrorIs(t, err, providerErr)
	})

	t.Run("returns dimension mismatch when a candidate embedding differs in length", func(t *testing.T) {
		mockStore := new(MockKnowledgeStore)
		mockEmbedding := new(MockEmbeddingProvider)
		svc := NewSearchService(mockStore, mockEmbedding)

		mockStore.On("QueryByProject", mock.Anything, "project-1", mock.Anything).
			Return([]*domain.Knowledge{knowledgeWithEmbedding("k-1", []float32{1, 0, 0})}, nil)

		_, err := svc.Search(ctx, SearchInput{
			ProjectID:      "project-1",
			QueryEmbedding: []float32{1, 0},
		})

		require.Error(t, err)
		var domainErr *domain.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, domain.ErrCodeDimensionMismatch, domainErr.Code)
	})

	t.Run("wraps store failures as STORE_ERROR", func(t *testing.T) {
		mockStore := new(MockKnowledgeStore)
		mockEmbedding := new(MockEmbeddingProvider)
		svc := NewSearchService(mockStore, mockEmbedding)

		mockStore.On("QueryByProject", mock.Anything, "project-1", mock.Anything).
			Return(nil, errors.New("connection refused"))

		_, err := svc.Search(ctx, SearchInput{
			ProjectID:      "project-1",
			QueryEmbedding: []float32{1, 0},
		})

		require.Error(t, err)
		var domainErr *domain.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, domain.ErrCodeStore, domainErr.Code)
	})
}
