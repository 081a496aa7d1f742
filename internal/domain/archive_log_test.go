package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewArchiveLogEntry(t *testing.T) {
	lastUsed := time.Now().UTC().Add(-100 * 24 * time.Hour)
	k := &Knowledge{
		ID:          "k1",
		ProjectID:   "project-1",
		Content:     "old knowledge",
		Reliability: 70,
		UsageCount:  12,
		LastUsed:    &lastUsed,
	}

	archivedAt := time.Now().UTC()
	entry := NewArchiveLogEntry("log-1", "job-1", k, ArchiveReasonUnused90Days, archivedAt)

	assert.Equal(t, "log-1", entry.ID)
	assert.Equal(t, "k1", entry.KnowledgeID)
	assert.Equal(t, "project-1", entry.ProjectID)
	assert.Equal(t, ArchiveReasonUnused90Days, entry.Reason)
	assert.Equal(t, archivedAt, entry.ArchivedAt)
	assert.Equal(t, "job-1", entry.ArchivedByJobID)

	require.NotNil(t, entry.LastUsed)
	assert.Equal(t, lastUsed, *entry.LastUsed)
	assert.Equal(t, int64(12), entry.UsageCount)
	assert.Equal(t, int32(70), entry.Reliability)
}

func TestValidateArchiveLogEntry(t *testing.T) {
	valid := func() *ArchiveLogEntry {
		return &ArchiveLogEntry{
			ID:              "log-1",
			KnowledgeID:     "k1",
			ProjectID:       "project-1",
			Reason:          ArchiveReasonUnused90Days,
			ArchivedAt:      time.Now().UTC(),
			ArchivedByJobID: "job-1",
		}
	}

	tests := []struct {
		name    string
		mutate  func(e *ArchiveLogEntry)
		wantErr bool
		errMsg  string
	}{
		{"valid entry", func(e *ArchiveLogEntry) {}, false, ""},
		{"missing ID", func(e *ArchiveLogEntry) { e.ID = "" }, true, "ID"},
		{"missing KnowledgeID", func(e *ArchiveLogEntry) { e.KnowledgeID = "" }, true, "KnowledgeID"},
		{"missing ProjectID", func(e *ArchiveLogEntry) { e.ProjectID = "" }, true, "ProjectID"},
		{"invalid reason", func(e *ArchiveLogEntry) { e.Reason = "because" }, true, "Reason"},
		{"missing job id", func(e *ArchiveLogEntry) { e.ArchivedByJobID = "" }, true, "ArchivedByJobID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid()
			tt.mutate(e)
			err := ValidateArchiveLogEntry(e)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestDomainError(t *testing.T) {
	err := NewDomainError(ErrCodeNotFound, "knowledge item not found")
	assert.Equal(t, "[NOT_FOUND] knowledge item not found", err.Error())
	assert.Nil(t, err.Unwrap())

	wrapped := NewDomainErrorWithCause(ErrCodeStore, "query failed", assert.AnError)
	assert.Contains(t, wrapped.Error(), "STORE_ERROR")
	assert.Equal(t, assert.AnError, wrapped.Unwrap())
}
