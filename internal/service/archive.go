package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/veritaslabs/mnemo/internal/domain"
	"github.com/veritaslabs/mnemo/internal/pagination"
	"github.com/veritaslabs/mnemo/internal/telemetry"
)

// IdleThreshold is how long a knowledge item may go unused before the scan
// archives it.
const IdleThreshold = 90 * 24 * time.Hour

// Eligible reports whether a knowledge item qualifies for archival at the
// given instant: not yet archived, and never used or idle past the threshold.
func Eligible(k *domain.Knowledge, now time.Time) bool {
	if k.Archived {
		return false
	}
	if k.LastUsed == nil {
		return true
	}
	return k.LastUsed.Before(now.Add(-IdleThreshold))
}

// ArchiveService performs idle-knowledge archival as bounded atomic batches
type ArchiveService struct {
	knowledgeStore  KnowledgeStoreInterface
	archiveLogStore ArchiveLogStoreInterface
	txRunner        TxRunnerInterface
	exporter        ArchiveLogExporter
	uuidGen         UUIDGenerator
	now             func() time.Time
}

// NewArchiveService creates a new ArchiveService instance. The exporter is
// optional; without it ExportJobLog fails with a validation error.
func NewArchiveService(
	knowledgeStore KnowledgeStoreInterface,
	archiveLogStore ArchiveLogStoreInterface,
	txRunner TxRunnerInterface,
	exporter ArchiveLogExporter,
) *ArchiveService {
	return &ArchiveService{
		knowledgeStore:  knowledgeStore,
		archiveLogStore: archiveLogStore,
		txRunner:        txRunner,
		exporter:        exporter,
		uuidGen:         &DefaultUUIDGenerator{},
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// NewArchiveServiceWithClock creates an ArchiveService with a custom clock
// and UUID generator (for testing)
func NewArchiveServiceWithClock(
	knowledgeStore KnowledgeStoreInterface,
	archiveLogStore ArchiveLogStoreInterface,
	txRunner TxRunnerInterface,
	exporter ArchiveLogExporter,
	uuidGen UUIDGenerator,
	now func() time.Time,
) *ArchiveService {
	return &ArchiveService{
		knowledgeStore:  knowledgeStore,
		archiveLogStore: archiveLogStore,
		txRunner:        txRunner,
		exporter:        exporter,
		uuidGen:         uuidGen,
		now:             now,
	}
}

// ArchiveScanResult summarizes one archival scan
type ArchiveScanResult struct {
	JobID    string
	Scanned  int
	Archived int
	Duration time.Duration
	DryRun   bool
}

// ScanAndArchive finds all eligible knowledge and archives it in atomic
// batches of at most MaxBatchMutations documents, appending one audit record
// per item. With dryRun it only counts; running a dry scan twice over an
// unchanged store yields identical results.
func (s *ArchiveService) ScanAndArchive(ctx context.Context, dryRun bool) (*ArchiveScanResult, error) {
	jobID := s.uuidGen.NewString()
	ctx, span := telemetry.StartSpan(ctx, "ArchiveService.ScanAndArchive", telemetry.SpanAttributes{
		JobID:     jobID,
		Operation: "archive_scan",
	})
	defer span.End()

	start := time.Now()
	now := s.now()

	neverUsed, err := s.knowledgeStore.ListNeverUsed(ctx)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStore, "failed to query never-used knowledge", err)
	}
	idle, err := s.knowledgeStore.ListIdleBefore(ctx, now.Add(-IdleThreshold))
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStore, "failed to query idle knowledge", err)
	}

	// The two sets are disjoint by construction but are still de-duplicated
	// by id before batching.
	seen := make(map[string]bool, len(neverUsed)+len(idle))
	eligible := make([]*domain.Knowledge, 0, len(neverUsed)+len(idle))
	for _, k := range append(neverUsed, idle...) {
		if seen[k.ID] || !Eligible(k, now) {
			continue
		}
		seen[k.ID] = true
		eligible = append(eligible, k)
	}

	result := &ArchiveScanResult{
		JobID:   jobID,
		Scanned: len(eligible),
		DryRun:  dryRun,
	}

	if dryRun {
		result.Duration = time.Since(start)
		return result, nil
	}

	for batchStart := 0; batchStart < len(eligible); batchStart += MaxBatchMutations {
		batch := eligible[batchStart:min(batchStart+MaxBatchMutations, len(eligible))]

		err := s.txRunner.WithTx(ctx, func(stores TxStores) error {
			mutations := make([]KnowledgeMutation, 0, len(batch))
			for _, k := range batch {
				mutations = append(mutations, KnowledgeMutation{
					ID: k.ID,
					Archive: &ArchiveMutation{
						At:     now,
						Reason: domain.ArchiveReasonUnused90Days,
					},
				})
			}
			if err := stores.Knowledge().BatchWrite(ctx, mutations); err != nil {
				return err
			}
			for _, k := range batch {
				entry := domain.NewArchiveLogEntry(s.uuidGen.NewString(), jobID, k, domain.ArchiveReasonUnused90Days, now)
				if err := stores.ArchiveLog().Append(ctx, entry); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			// Committed batches stay committed; re-running the scan picks up
			// the remainder because eligibility is idempotent.
			span.SetError(err)
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStore, "archive batch failed", err)
		}
		result.Archived += len(batch)
	}

	result.Duration = time.Since(start)
	return result, nil
}

// Unarchive returns an archived knowledge item to the active set. Does not
// touch duplicate-group membership; the two state machines are independent.
func (s *ArchiveService) Unarchive(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "ArchiveService.Unarchive", telemetry.SpanAttributes{
		KnowledgeID: id,
		Operation:   "unarchive",
	})
	defer span.End()

	k, err := s.knowledgeStore.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !k.Archived {
		return nil
	}

	now := s.now()
	mutation := KnowledgeMutation{
		ID:           id,
		Unarchive:    true,
		UnarchivedAt: &now,
	}
	if err := s.knowledgeStore.BatchWrite(ctx, []KnowledgeMutation{mutation}); err != nil {
		span.SetError(err)
		return domain.NewDomainErrorWithCause(domain.ErrCodeStore, "failed to unarchive knowledge", err)
	}
	return nil
}

// ArchiveStatistics aggregates archive counts across the whole store
type ArchiveStatistics struct {
	TotalKnowledge int64
	Active         int64
	Archived       int64
	ArchivedRatio  float64
	ByReason       map[domain.ArchiveReason]int64
}

// GetArchiveStatistics computes archive aggregates. Full-collection scan;
// acceptable at current fixture scale.
func (s *ArchiveService) GetArchiveStatistics(ctx context.Context) (*ArchiveStatistics, error) {
	ctx, span := telemetry.StartSpan(ctx, "ArchiveService.GetArchiveStatistics", telemetry.SpanAttributes{
		Operation: "archive_stats",
	})
	defer span.End()

	counts, err := s.knowledgeStore.ArchiveCounts(ctx)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStore, "failed to compute archive statistics", err)
	}

	stats := &ArchiveStatistics{
		TotalKnowledge: counts.Active + counts.Archived,
		Active:         counts.Active,
		Archived:       counts.Archived,
		ByReason:       counts.ByReason,
	}
	if stats.TotalKnowledge > 0 {
		stats.ArchivedRatio = float64(stats.Archived) / float64(stats.TotalKnowledge)
	}
	return stats, nil
}

// ListArchiveLogInput pages through the append-only audit log
type ListArchiveLogInput struct {
	Cursor string
	Limit  int
}

// ListArchiveLog returns one page of audit records, newest first
func (s *ArchiveService) ListArchiveLog(ctx context.Context, input ListArchiveLogInput) (*ArchiveLogPageResult, error) {
	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid archive log cursor", err)
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	page, err := s.archiveLogStore.ListWithCursor(ctx, cursor, limit)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStore, "failed to list archive log", err)
	}
	return page, nil
}

// ExportJobLog uploads a JSON snapshot of one scan job's audit records to
// external storage and returns the object key.
func (s *ArchiveService) ExportJobLog(ctx context.Context, jobID string) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "ArchiveService.ExportJobLog", telemetry.SpanAttributes{
		JobID:     jobID,
		Operation: "archive_export",
	})
	defer span.End()

	if s.exporter == nil {
		return "", domain.NewDomainError(domain.ErrCodeValidation, "no archive log exporter configured")
	}
	if jobID == "" {
		return "", domain.NewDomainError(domain.ErrCodeValidation, "job id is required")
	}

	entries, err := s.archiveLogStore.ListByJob(ctx, jobID)
	if err != nil {
		span.SetError(err)
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeStore, "failed to load archive log for job", err)
	}

	payload, err := json.Marshal(entries)
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to encode archive log snapshot", err)
	}

	key := fmt.Sprintf("archive-audit/%s.json", jobID)
	if err := s.exporter.UploadSnapshot(ctx, key, payload); err != nil {
		span.SetError(err)
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeStore, "failed to upload archive log snapshot", err)
	}
	return key, nil
}
