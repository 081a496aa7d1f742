package domain

import (
	"fmt"
	"time"
)

// ArchiveLogEntry is an append-only audit record written when a knowledge
// item transitions to archived. Entries are never mutated or deleted.
type ArchiveLogEntry struct {
	ID              string
	KnowledgeID     string
	ProjectID       string
	Reason          ArchiveReason
	ArchivedAt      time.Time
	ArchivedByJobID string

	// Snapshot of the item at archive time
	LastUsed    *time.Time
	UsageCount  int64
	Reliability int32
}

// NewArchiveLogEntry builds an audit entry snapshotting the item's state
func NewArchiveLogEntry(id, jobID string, k *Knowledge, reason ArchiveReason, archivedAt time.Time) *ArchiveLogEntry {
	return &ArchiveLogEntry{
		ID:              id,
		KnowledgeID:     k.ID,
		ProjectID:       k.ProjectID,
		Reason:          reason,
		ArchivedAt:      archivedAt,
		ArchivedByJobID: jobID,
		LastUsed:        k.LastUsed,
		UsageCount:      k.UsageCount,
		Reliability:     k.Reliability,
	}
}

// ValidateArchiveLogEntry validates an ArchiveLogEntry instance
func ValidateArchiveLogEntry(e *ArchiveLogEntry) error {
	if e == nil {
		return fmt.Errorf("archive log entry cannot be nil")
	}

	if e.ID == "" {
		return fmt.Errorf("archive log entry ID is required")
	}

	if e.KnowledgeID == "" {
		return fmt.Errorf("archive log entry KnowledgeID is required")
	}

	if e.ProjectID == "" {
		return fmt.Errorf("archive log entry ProjectID is required")
	}

	if !isValidArchiveReason(e.Reason) {
		return fmt.Errorf("archive log entry Reason is invalid: %s", e.Reason)
	}

	if e.ArchivedByJobID == "" {
		return fmt.Errorf("archive log entry ArchivedByJobID is required")
	}

	return nil
}
