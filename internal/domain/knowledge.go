package domain

import (
	"fmt"
	"time"
)

// ArchiveReason explains why a knowledge item was archived
type ArchiveReason string

const (
	ArchiveReasonUnused90Days ArchiveReason = "unused_90_days"
	ArchiveReasonManual       ArchiveReason = "manual"
	ArchiveReasonDuplicate    ArchiveReason = "duplicate"
	ArchiveReasonLowQuality   ArchiveReason = "low_quality"
)

// Knowledge represents a retrievable unit of domain text with an optional embedding
type Knowledge struct {
	ID               string
	ProjectID        string
	Content          string
	Embedding        []float32 // nil until the embedding pipeline has run
	Category         string
	Reliability      int32 // 0-100
	UsageCount       int64
	LastUsed         *time.Time
	Archived         bool
	ArchivedAt       *time.Time
	ArchivedReason   ArchiveReason
	UnarchivedAt     *time.Time
	DuplicateGroupID string
	IsRepresentative bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasEmbedding returns true if the item carries a non-empty embedding vector
func (k *Knowledge) HasEmbedding() bool {
	return len(k.Embedding) > 0
}

// IsSuppressed returns true if the item is a non-representative member of a
// duplicate group and must not be served by search
func (k *Knowledge) IsSuppressed() bool {
	return k.DuplicateGroupID != "" && !k.IsRepresentative
}

// ValidateKnowledge validates a Knowledge instance
func ValidateKnowledge(k *Knowledge) error {
	if k == nil {
		return fmt.Errorf("knowledge cannot be nil")
	}

	if k.ID == "" {
		return fmt.Errorf("knowledge ID is required")
	}

	if k.ProjectID == "" {
		return fmt.Errorf("knowledge ProjectID is required")
	}

	if k.Content == "" {
		return fmt.Errorf("knowledge Content is required")
	}

	if k.Reliability < 0 || k.Reliability > 100 {
		return fmt.Errorf("knowledge Reliability must be between 0 and 100: %d", k.Reliability)
	}

	if k.UsageCount < 0 {
		return fmt.Errorf("knowledge UsageCount cannot be negative")
	}

	if k.IsRepresentative && k.DuplicateGroupID == "" {
		return fmt.Errorf("knowledge marked representative must belong to a duplicate group")
	}

	if k.Archived && !isValidArchiveReason(k.ArchivedReason) {
		return fmt.Errorf("knowledge ArchivedReason is invalid: %s", k.ArchivedReason)
	}

	return nil
}

// isValidArchiveReason checks if an ArchiveReason is valid
func isValidArchiveReason(r ArchiveReason) bool {
	switch r {
	case ArchiveReasonUnused90Days, ArchiveReasonManual,
		ArchiveReasonDuplicate, ArchiveReasonLowQuality:
		return true
	}
	return false
}
