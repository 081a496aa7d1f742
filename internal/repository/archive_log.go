package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/veritaslabs/mnemo/internal/domain"
	"github.com/veritaslabs/mnemo/internal/pagination"
	"github.com/veritaslabs/mnemo/internal/service"
)

type ArchiveLogStore struct {
	db dbtx
}

func NewArchiveLogStore(pool *pgxpool.Pool) *ArchiveLogStore {
	return &ArchiveLogStore{db: pool}
}

func NewArchiveLogStoreWithTx(tx pgx.Tx) *ArchiveLogStore {
	return &ArchiveLogStore{db: tx}
}

const archiveLogColumns = `id, knowledge_id, project_id, reason, archived_at, archived_by_job_id,
	 last_used, usage_count, reliability`

func (r *ArchiveLogStore) Append(ctx context.Context, entry *domain.ArchiveLogEntry) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO archive_log (id, knowledge_id, project_id, reason, archived_at, archived_by_job_id,
		  last_used, usage_count, reliability)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.KnowledgeID, entry.ProjectID, string(entry.Reason), entry.ArchivedAt, entry.ArchivedByJobID,
		entry.LastUsed, entry.UsageCount, entry.Reliability,
	)
	return err
}

func (r *ArchiveLogStore) ListByJob(ctx context.Context, jobID string) ([]*domain.ArchiveLogEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+archiveLogColumns+` FROM archive_log WHERE archived_by_job_id = $1 ORDER BY archived_at, id`,
		jobID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArchiveLogRows(rows)
}

// ListWithCursor pages the audit log newest-first. A nil cursor starts at the
// top; entries strictly older than the cursor position come back.
func (r *ArchiveLogStore) ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*service.ArchiveLogPageResult, error) {
	var query string
	var args []any
	if cursor != nil {
		query = `SELECT ` + archiveLogColumns + ` FROM archive_log
		 WHERE (archived_at, id) < ($1, $2)
		 ORDER BY archived_at DESC, id DESC LIMIT $3`
		args = []any{cursor.Timestamp, cursor.LastID, limit + 1}
	} else {
		query = `SELECT ` + archiveLogColumns + ` FROM archive_log
		 ORDER BY archived_at DESC, id DESC LIMIT $1`
		args = []any{limit + 1}
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries, err := scanArchiveLogRows(rows)
	if err != nil {
		return nil, err
	}

	result := &service.ArchiveLogPageResult{Items: entries}
	if len(entries) > limit {
		result.Items = entries[:limit]
		result.HasMore = true
		last := result.Items[limit-1]
		result.NextCursor = pagination.EncodeCursor(last.ID, last.ArchivedAt)
	}
	return result, nil
}

func scanArchiveLogRows(rows pgx.Rows) ([]*domain.ArchiveLogEntry, error) {
	var entries []*domain.ArchiveLogEntry
	for rows.Next() {
		var e domain.ArchiveLogEntry
		var reason string
		if err := rows.Scan(
			&e.ID, &e.KnowledgeID, &e.ProjectID, &reason, &e.ArchivedAt, &e.ArchivedByJobID,
			&e.LastUsed, &e.UsageCount, &e.Reliability,
		); err != nil {
			return nil, err
		}
		e.Reason = domain.ArchiveReason(reason)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
