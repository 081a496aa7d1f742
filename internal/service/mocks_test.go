package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/veritaslabs/mnemo/internal/domain"
	"github.com/veritaslabs/mnemo/internal/pagination"
)

// MockKnowledgeStore is a mock implementation of KnowledgeStoreInterface
type MockKnowledgeStore struct {
	mock.Mock
}

func (m *MockKnowledgeStore) QueryByProject(ctx context.Context, projectID string, filters QueryFilters) ([]*domain.Knowledge, error) {
	args := m.Called(ctx, projectID, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Knowledge), args.Error(1)
}

func (m *MockKnowledgeStore) GetByID(ctx context.Context, id string) (*domain.Knowledge, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Knowledge), args.Error(1)
}

func (m *MockKnowledgeStore) BatchWrite(ctx context.Context, mutations []KnowledgeMutation) error {
	args := m.Called(ctx, mutations)
	return args.Error(0)
}

func (m *MockKnowledgeStore) ListNeverUsed(ctx context.Context) ([]*domain.Knowledge, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Knowledge), args.Error(1)
}

func (m *MockKnowledgeStore) ListIdleBefore(ctx context.Context, cutoff time.Time) ([]*domain.Knowledge, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Knowledge), args.Error(1)
}

func (m *MockKnowledgeStore) ArchiveCounts(ctx context.Context) (*ArchiveCounts, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ArchiveCounts), args.Error(1)
}

// MockGroupStore is a mock implementation of GroupStoreInterface
type MockGroupStore struct {
	mock.Mock
}

func (m *MockGroupStore) GetByID(ctx context.Context, id string) (*domain.KnowledgeGroup, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeGroup), args.Error(1)
}

func (m *MockGroupStore) ListByProject(ctx context.Context, projectID string) ([]*domain.KnowledgeGroup, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgeGroup), args.Error(1)
}

func (m *MockGroupStore) Create(ctx context.Context, g *domain.KnowledgeGroup) error {
	args := m.Called(ctx, g)
	return args.Error(0)
}

func (m *MockGroupStore) Update(ctx context.Context, g *domain.KnowledgeGroup) error {
	args := m.Called(ctx, g)
	return args.Error(0)
}

func (m *MockGroupStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockArchiveLogStore is a mock implementation of ArchiveLogStoreInterface
type MockArchiveLogStore struct {
	mock.Mock
}

func (m *MockArchiveLogStore) Append(ctx context.Context, entry *domain.ArchiveLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockArchiveLogStore) ListByJob(ctx context.Context, jobID string) ([]*domain.ArchiveLogEntry, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ArchiveLogEntry), args.Error(1)
}

func (m *MockArchiveLogStore) ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*ArchiveLogPageResult, error) {
	args := m.Called(ctx, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ArchiveLogPageResult), args.Error(1)
}

// MockEmbeddingProvider is a mock implementation of EmbeddingProvider
type MockEmbeddingProvider struct {
	mock.Mock
}

func (m *MockEmbeddingProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockArchiveLogExporter is a mock implementation of ArchiveLogExporter
type MockArchiveLogExporter struct {
	mock.Mock
}

func (m *MockArchiveLogExporter) UploadSnapshot(ctx context.Context, key string, payload []byte) error {
	args := m.Called(ctx, key, payload)
	return args.Error(0)
}

// MockUUIDGenerator returns a fixed sequence of ids
type MockUUIDGenerator struct {
	callCount int
	uuids     []string
}

func NewMockUUIDGenerator(uuids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{uuids: uuids}
}

func (m *MockUUIDGenerator) NewString() string {
	if m.callCount < len(m.uuids) {
		id := m.uuids[m.callCount]
		m.callCount++
		return id
	}
	return "default-uuid"
}

// testTxStores binds the mock stores as if inside a transaction
type testTxStores struct {
	knowledge  KnowledgeStoreInterface
	archiveLog ArchiveLogStoreInterface
}

func (t *testTxStores) Knowledge() KnowledgeStoreInterface {
	return t.knowledge
}

func (t *testTxStores) ArchiveLog() ArchiveLogStoreInterface {
	return t.archiveLog
}

// testTxRunner runs the callback against the bound stores without a real
// transaction
type testTxRunner struct {
	stores    TxStores
	callCount int
	failWith  error
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(stores TxStores) error) error {
	t.callCount++
	if t.failWith != nil {
		return t.failWith
	}
	return fn(t.stores)
}
