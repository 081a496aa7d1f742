package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validKnowledge() *Knowledge {
	now := time.Now().UTC()
	return &Knowledge{
		ID:          "k1",
		ProjectID:   "project-1",
		Content:     "統合報告書の作成について",
		Embedding:   []float32{0.1, 0.2, 0.3},
		Category:    "reporting",
		Reliability: 80,
		UsageCount:  3,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestValidateKnowledge(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(k *Knowledge)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid knowledge",
			mutate:  func(k *Knowledge) {},
			wantErr: false,
		},
		{
			name:    "missing ID",
			mutate:  func(k *Knowledge) { k.ID = "" },
			wantErr: true,
			errMsg:  "ID",
		},
		{
			name:    "missing ProjectID",
			mutate:  func(k *Knowledge) { k.ProjectID = "" },
			wantErr: true,
			errMsg:  "ProjectID",
		},
		{
			name:    "missing Content",
			mutate:  func(k *Knowledge) { k.Content = "" },
			wantErr: true,
			errMsg:  "Content",
		},
		{
			name:    "reliability above 100",
			mutate:  func(k *Knowledge) { k.Reliability = 101 },
			wantErr: true,
			errMsg:  "Reliability",
		},
		{
			name:    "negative reliability",
			mutate:  func(k *Knowledge) { k.Reliability = -1 },
			wantErr: true,
			errMsg:  "Reliability",
		},
		{
			name:    "negative usage count",
			mutate:  func(k *Knowledge) { k.UsageCount = -1 },
			wantErr: true,
			errMsg:  "UsageCount",
		},
		{
			name: "representative without group",
			mutate: func(k *Knowledge) {
				k.IsRepresentative = true
				k.DuplicateGroupID = ""
			},
			wantErr: true,
			errMsg:  "representative",
		},
		{
			name: "archived without reason",
			mutate: func(k *Knowledge) {
				k.Archived = true
				k.ArchivedReason = ""
			},
			wantErr: true,
			errMsg:  "ArchivedReason",
		},
		{
			name: "archived with valid reason",
			mutate: func(k *Knowledge) {
				now := time.Now().UTC()
				k.Archived = true
				k.ArchivedAt = &now
				k.ArchivedReason = ArchiveReasonUnused90Days
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := validKnowledge()
			tt.mutate(k)
			err := ValidateKnowledge(k)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateKnowledge_Nil(t *testing.T) {
	require.Error(t, ValidateKnowledge(nil))
}

func TestKnowledge_HasEmbedding(t *testing.T) {
	k := validKnowledge()
	assert.True(t, k.HasEmbedding())

	k.Embedding = nil
	assert.False(t, k.HasEmbedding())

	k.Embedding = []float32{}
	assert.False(t, k.HasEmbedding())
}

func TestKnowledge_IsSuppressed(t *testing.T) {
	k := validKnowledge()
	assert.False(t, k.IsSuppressed())

	k.DuplicateGroupID = "g1"
	k.IsRepresentative = false
	assert.True(t, k.IsSuppressed())

	k.IsRepresentative = true
	assert.False(t, k.IsSuppressed(), "the representative stays servable")
}
