package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/veritaslabs/mnemo/internal/domain"
	"github.com/veritaslabs/mnemo/internal/pagination"
)

// MaxBatchMutations bounds a single atomic write against the knowledge store.
const MaxBatchMutations = 500

// QueryFilters narrows a project-scoped knowledge query. Archived items and
// suppressed duplicates are excluded unless explicitly included.
type QueryFilters struct {
	Category          string
	RequireEmbedding  bool
	IncludeArchived   bool
	IncludeSuppressed bool
}

// GroupAssignment assigns a knowledge item to a duplicate group.
type GroupAssignment struct {
	GroupID        string
	Representative bool
}

// ArchiveMutation marks a knowledge item archived.
type ArchiveMutation struct {
	At     time.Time
	Reason domain.ArchiveReason
}

// KnowledgeMutation is one element of a bounded atomic batch write. Nil
// sub-mutations leave the corresponding fields untouched.
type KnowledgeMutation struct {
	ID string

	Archive      *ArchiveMutation
	Unarchive    bool
	UnarchivedAt *time.Time

	Group      *GroupAssignment
	ClearGroup bool
}

// ArchiveCounts aggregates full-scan archive statistics from the store.
type ArchiveCounts struct {
	Active   int64
	Archived int64
	ByReason map[domain.ArchiveReason]int64
}

// KnowledgeStoreInterface defines the persistence port for knowledge items
type KnowledgeStoreInterface interface {
	QueryByProject(ctx context.Context, projectID string, filters QueryFilters) ([]*domain.Knowledge, error)
	GetByID(ctx context.Context, id string) (*domain.Knowledge, error)
	// BatchWrite applies up to MaxBatchMutations mutations atomically.
	BatchWrite(ctx context.Context, mutations []KnowledgeMutation) error
	// ListNeverUsed returns active items whose last_used was never set.
	ListNeverUsed(ctx context.Context) ([]*domain.Knowledge, error)
	// ListIdleBefore returns active items last used strictly before cutoff.
	ListIdleBefore(ctx context.Context, cutoff time.Time) ([]*domain.Knowledge, error)
	ArchiveCounts(ctx context.Context) (*ArchiveCounts, error)
}

// GroupStoreInterface defines the persistence port for duplicate groups
type GroupStoreInterface interface {
	GetByID(ctx context.Context, id string) (*domain.KnowledgeGroup, error)
	ListByProject(ctx context.Context, projectID string) ([]*domain.KnowledgeGroup, error)
	Create(ctx context.Context, g *domain.KnowledgeGroup) error
	Update(ctx context.Context, g *domain.KnowledgeGroup) error
	Delete(ctx context.Context, id string) error
}

// ArchiveLogPageResult is one page of archive audit records.
type ArchiveLogPageResult struct {
	Items      []*domain.ArchiveLogEntry
	NextCursor string
	HasMore    bool
}

// ArchiveLogStoreInterface defines the append-only audit log port
type ArchiveLogStoreInterface interface {
	Append(ctx context.Context, entry *domain.ArchiveLogEntry) error
	ListByJob(ctx context.Context, jobID string) ([]*domain.ArchiveLogEntry, error)
	ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*ArchiveLogPageResult, error)
}

// TxStores exposes store ports bound to one transaction
type TxStores interface {
	Knowledge() KnowledgeStoreInterface
	ArchiveLog() ArchiveLogStoreInterface
}

// TxRunnerInterface runs a function inside a single store transaction;
// the transaction commits fully or not at all.
type TxRunnerInterface interface {
	WithTx(ctx context.Context, fn func(stores TxStores) error) error
}

// EmbeddingProvider generates embedding vectors for query text
type EmbeddingProvider interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// ArchiveLogExporter uploads archive audit snapshots to external storage
type ArchiveLogExporter interface {
	UploadSnapshot(ctx context.Context, key string, payload []byte) error
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}
