package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/veritaslabs/mnemo/internal/domain"
	"github.com/veritaslabs/mnemo/internal/service"
)

// dbtx abstracts *pgxpool.Pool and pgx.Tx so repositories work inside and
// outside explicit transactions.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

const knowledgeColumns = `id, project_id, content, embedding, category, reliability, usage_count,
	 last_used, archived, archived_at, archived_reason, unarchived_at,
	 duplicate_group_id, is_representative, created_at, updated_at`

type KnowledgeStore struct {
	db dbtx
}

func NewKnowledgeStore(pool *pgxpool.Pool) *KnowledgeStore {
	return &KnowledgeStore{db: pool}
}

func NewKnowledgeStoreWithTx(tx pgx.Tx) *KnowledgeStore {
	return &KnowledgeStore{db: tx}
}

func (r *KnowledgeStore) Create(ctx context.Context, k *domain.Knowledge) error {
	var embedding *pgvector.Vector
	if k.HasEmbedding() {
		v := pgvector.NewVector(k.Embedding)
		embedding = &v
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge (id, project_id, content, embedding, category, reliability, usage_count,
		  last_used, archived, archived_at, archived_reason, unarchived_at,
		  duplicate_group_id, is_representative, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		k.ID, k.ProjectID, k.Content, embedding, nullableString(k.Category), k.Reliability, k.UsageCount,
		k.LastUsed, k.Archived, k.ArchivedAt, nullableString(string(k.ArchivedReason)), k.UnarchivedAt,
		nullableString(k.DuplicateGroupID), k.IsRepresentative, k.CreatedAt, k.UpdatedAt,
	)
	return err
}

func (r *KnowledgeStore) GetByID(ctx context.Context, id string) (*domain.Knowledge, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+knowledgeColumns+` FROM knowledge WHERE id = $1`,
		id,
	)
	k, err := scanKnowledgeRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrKnowledgeNotFound
		}
		return nil, err
	}
	return k, nil
}

func (r *KnowledgeStore) QueryByProject(ctx context.Context, projectID string, filters service.QueryFilters) ([]*domain.Knowledge, error) {
	query := `SELECT ` + knowledgeColumns + ` FROM knowledge WHERE project_id = $1`
	args := []any{projectID}

	if !filters.IncludeArchived {
		query += ` AND archived = FALSE`
	}
	if !filters.IncludeSuppressed {
		query += ` AND (duplicate_group_id IS NULL OR is_representative)`
	}
	if filters.RequireEmbedding {
		query += ` AND embedding IS NOT NULL`
	}
	if filters.Category != "" {
		args = append(args, filters.Category)
		query += ` AND category = $2`
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanKnowledgeRows(rows)
}

// BatchWrite applies the mutations as one pipelined batch; the whole batch
// commits or rolls back together.
func (r *KnowledgeStore) BatchWrite(ctx context.Context, mutations []service.KnowledgeMutation) error {
	if len(mutations) == 0 {
		return nil
	}
	if len(mutations) > service.MaxBatchMutations {
		return domain.ErrBatchTooLarge
	}

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, m := range mutations {
		switch {
		case m.Archive != nil:
			batch.Queue(
				`UPDATE knowledge SET archived = TRUE, archived_at = $1, archived_reason = $2, updated_at = $3
				 WHERE id = $4`,
				m.Archive.At, string(m.Archive.Reason), now, m.ID,
			)
		case m.Unarchive:
			batch.Queue(
				`UPDATE knowledge SET archived = FALSE, archived_at = NULL, archived_reason = NULL,
				  unarchived_at = $1, updated_at = $2
				 WHERE id = $3`,
				m.UnarchivedAt, now, m.ID,
			)
		case m.Group != nil:
			batch.Queue(
				`UPDATE knowledge SET duplicate_group_id = $1, is_representative = $2, updated_at = $3
				 WHERE id = $4`,
				m.Group.GroupID, m.Group.Representative, now, m.ID,
			)
		case m.ClearGroup:
			batch.Queue(
				`UPDATE knowledge SET duplicate_group_id = NULL, is_representative = FALSE, updated_at = $1
				 WHERE id = $2`,
				now, m.ID,
			)
		default:
			return domain.NewDomainError(domain.ErrCodeValidation, "mutation has no effect: "+m.ID)
		}
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()
	for range mutations {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return results.Close()
}

func (r *KnowledgeStore) ListNeverUsed(ctx context.Context) ([]*domain.Knowledge, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+knowledgeColumns+` FROM knowledge
		 WHERE archived = FALSE AND last_used IS NULL
		 ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanKnowledgeRows(rows)
}

func (r *KnowledgeStore) ListIdleBefore(ctx context.Context, cutoff time.Time) ([]*domain.Knowledge, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+knowledgeColumns+` FROM knowledge
		 WHERE archived = FALSE AND last_used IS NOT NULL AND last_used < $1
		 ORDER BY created_at, id`,
		cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanKnowledgeRows(rows)
}

func (r *KnowledgeStore) ArchiveCounts(ctx context.Context) (*service.ArchiveCounts, error) {
	rows, err := r.db.Query(ctx,
		`SELECT archived, archived_reason, COUNT(*) FROM knowledge GROUP BY archived, archived_reason`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := &service.ArchiveCounts{
		ByReason: make(map[domain.ArchiveReason]int64),
	}
	for rows.Next() {
		var archived bool
		var reason *string
		var n int64
		if err := rows.Scan(&archived, &reason, &n); err != nil {
			return nil, err
		}
		if archived {
			counts.Archived += n
			if reason != nil {
				counts.ByReason[domain.ArchiveReason(*reason)] += n
			}
		} else {
			counts.Active += n
		}
	}
	return counts, rows.Err()
}

func scanKnowledgeRows(rows pgx.Rows) ([]*domain.Knowledge, error) {
	var results []*domain.Knowledge
	for rows.Next() {
		k, err := scanKnowledgeRow(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, k)
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKnowledgeRow(row rowScanner) (*domain.Knowledge, error) {
	var k domain.Knowledge
	var embedding *pgvector.Vector
	var category, archivedReason, groupID *string
	if err := row.Scan(
		&k.ID, &k.ProjectID, &k.Content, &embedding, &category, &k.Reliability, &k.UsageCount,
		&k.LastUsed, &k.Archived, &k.ArchivedAt, &archivedReason, &k.UnarchivedAt,
		&groupID, &k.IsRepresentative, &k.CreatedAt, &k.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if embedding != nil {
		k.Embedding = embedding.Slice()
	}
	if category != nil {
		k.Category = *category
	}
	if archivedReason != nil {
		k.ArchivedReason = domain.ArchiveReason(*archivedReason)
	}
	if groupID != nil {
		k.DuplicateGroupID = *groupID
	}
	return &k, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
