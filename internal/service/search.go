package service

import (
	"context"
	"sort"

	"github.com/veritaslabs/mnemo/internal/domain"
	"github.com/veritaslabs/mnemo/internal/similarity"
	"github.com/veritaslabs/mnemo/internal/telemetry"
)

const defaultSearchLimit = 10

// SearchService ranks project knowledge by embedding similarity to a query.
// Candidates are brute-force scanned; an ANN index can replace the store
// without changing this contract.
type SearchService struct {
	knowledgeStore KnowledgeStoreInterface
	embedding      EmbeddingProvider
}

// NewSearchService creates a new SearchService instance
func NewSearchService(knowledgeStore KnowledgeStoreInterface, embedding EmbeddingProvider) *SearchService {
	return &SearchService{
		knowledgeStore: knowledgeStore,
		embedding:      embedding,
	}
}

// SearchInput represents the input for a similarity search
type SearchInput struct {
	ProjectID string
	Query     string
	// QueryEmbedding skips embedding generation when already available
	QueryEmbedding []float32
	Limit          int
	Threshold      float64
	Category       string
}

// SearchResult is one ranked search hit
type SearchResult struct {
	KnowledgeID string
	Content     string
	Category    string
	Similarity  float64
	Distance    float64
}

// Search embeds the query if needed, scans the project's candidate set and
// returns hits at or above the threshold, ranked by descending similarity.
// An empty result set is a success, not an error.
func (s *SearchService) Search(ctx context.Context, input SearchInput) ([]*SearchResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "SearchService.Search", telemetry.SpanAttributes{
		ProjectID: input.ProjectID,
		Operation: "search",
	})
	defer span.End()

	if input.ProjectID == "" {
		return nil, domain.ErrMissingProjectID
	}
	if input.Limit < 0 {
		return nil, domain.ErrNegativeLimit
	}
	limit := input.Limit
	if limit == 0 {
		limit = defaultSearchLimit
	}

	queryEmbedding := input.QueryEmbedding
	if queryEmbedding == nil {
		// An empty query string is still embedded; the provider decides what
		// an empty input means, not this service.
		var err error
		queryEmbedding, err = s.embedding.GenerateEmbedding(ctx, input.Query)
		if err != nil {
			span.SetError(err)
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeProvider, "failed to embed search query", err)
		}
	}

	candidates, err := s.knowledgeStore.QueryByProject(ctx, input.ProjectID, QueryFilters{
		Category:         input.Category,
		RequireEmbedding: true,
	})
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStore, "failed to load search candidates", err)
	}

	results := make([]*SearchResult, 0, len(candidates))
	for _, k := range candidates {
		score, err := similarity.Cosine(queryEmbedding, k.Embedding)
		if err != nil {
			span.SetError(err)
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeDimensionMismatch, "candidate embedding has wrong dimensions", err)
		}
		if score < input.Threshold {
			continue
		}
		results = append(results, &SearchResult{
			KnowledgeID: k.ID,
			Content:     k.Content,
			Category:    k.Category,
			Similarity:  score,
			Distance:    1 - score,
		})
	}

	// Ties break on knowledge id to keep ranking deterministic
	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].KnowledgeID < results[j].KnowledgeID
	})

	if len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}
