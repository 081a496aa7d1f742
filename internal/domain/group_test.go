package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validGroup() *KnowledgeGroup {
	return &KnowledgeGroup{
		ID:                        "g1",
		ProjectID:                 "project-1",
		RepresentativeKnowledgeID: "k1",
		DuplicateKnowledgeIDs:     []string{"k2", "k3"},
		SimilarityScores:          map[string]float64{"k2": 1.0, "k3": 0.97},
		DetectionMethod:           DetectionMethodExact,
		CreatedAt:                 time.Now().UTC(),
	}
}

func TestValidateKnowledgeGroup(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(g *KnowledgeGroup)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid group",
			mutate:  func(g *KnowledgeGroup) {},
			wantErr: false,
		},
		{
			name:    "missing ID",
			mutate:  func(g *KnowledgeGroup) { g.ID = "" },
			wantErr: true,
			errMsg:  "ID",
		},
		{
			name:    "missing ProjectID",
			mutate:  func(g *KnowledgeGroup) { g.ProjectID = "" },
			wantErr: true,
			errMsg:  "ProjectID",
		},
		{
			name:    "missing representative",
			mutate:  func(g *KnowledgeGroup) { g.RepresentativeKnowledgeID = "" },
			wantErr: true,
			errMsg:  "RepresentativeKnowledgeID",
		},
		{
			name:    "invalid detection method",
			mutate:  func(g *KnowledgeGroup) { g.DetectionMethod = "vibes" },
			wantErr: true,
			errMsg:  "DetectionMethod",
		},
		{
			name: "representative listed as duplicate",
			mutate: func(g *KnowledgeGroup) {
				g.DuplicateKnowledgeIDs = append(g.DuplicateKnowledgeIDs, g.RepresentativeKnowledgeID)
			},
			wantErr: true,
			errMsg:  "representative",
		},
		{
			name: "duplicate id listed twice",
			mutate: func(g *KnowledgeGroup) {
				g.DuplicateKnowledgeIDs = append(g.DuplicateKnowledgeIDs, "k2")
			},
			wantErr: true,
			errMsg:  "more than once",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := validGroup()
			tt.mutate(g)
			err := ValidateKnowledgeGroup(g)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestKnowledgeGroup_AddDuplicate(t *testing.T) {
	g := validGroup()

	g.AddDuplicate("k4", 0.9)
	assert.True(t, g.ContainsDuplicate("k4"))
	assert.Equal(t, 0.9, g.SimilarityScores["k4"])

	// Re-adding must not grow the set but refreshes the recorded score
	g.AddDuplicate("k4", 0.97)
	assert.Len(t, g.DuplicateKnowledgeIDs, 3)
	assert.Equal(t, 0.97, g.SimilarityScores["k4"])

	// The representative never enters the duplicate set
	g.AddDuplicate("k1", 1.0)
	assert.False(t, g.ContainsDuplicate("k1"))
}

func TestKnowledgeGroup_RemoveDuplicate(t *testing.T) {
	g := validGroup()

	require.True(t, g.RemoveDuplicate("k2"))
	assert.False(t, g.ContainsDuplicate("k2"))
	assert.NotContains(t, g.SimilarityScores, "k2")
	assert.False(t, g.IsEmpty())

	require.True(t, g.RemoveDuplicate("k3"))
	assert.True(t, g.IsEmpty())

	assert.False(t, g.RemoveDuplicate("k3"), "removing an absent id is a no-op")
}

func TestStrongerDetectionMethod(t *testing.T) {
	assert.Equal(t, DetectionMethodExact, StrongerDetectionMethod(DetectionMethodExact, DetectionMethodSemantic))
	assert.Equal(t, DetectionMethodExact, StrongerDetectionMethod(DetectionMethodFuzzy, DetectionMethodExact))
	assert.Equal(t, DetectionMethodSemantic, StrongerDetectionMethod(DetectionMethodFuzzy, DetectionMethodSemantic))
	assert.Equal(t, DetectionMethodFuzzy, StrongerDetectionMethod(DetectionMethodFuzzy, DetectionMethodFuzzy))
}
