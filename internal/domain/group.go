package domain

import (
	"fmt"
	"time"
)

// DetectionMethod identifies which detection pass produced a duplicate group
type DetectionMethod string

const (
	DetectionMethodExact    DetectionMethod = "exact"
	DetectionMethodSemantic DetectionMethod = "semantic"
	DetectionMethodFuzzy    DetectionMethod = "fuzzy"
)

// detectionPriority orders methods for group labelling, exact being strongest
var detectionPriority = map[DetectionMethod]int{
	DetectionMethodExact:    3,
	DetectionMethodSemantic: 2,
	DetectionMethodFuzzy:    1,
}

// StrongerDetectionMethod returns the higher-priority of two methods
func StrongerDetectionMethod(a, b DetectionMethod) DetectionMethod {
	if detectionPriority[b] > detectionPriority[a] {
		return b
	}
	return a
}

// KnowledgeGroup clusters redundant knowledge items around one representative.
// The representative is never listed in DuplicateKnowledgeIDs.
type KnowledgeGroup struct {
	ID                        string
	ProjectID                 string
	RepresentativeKnowledgeID string
	DuplicateKnowledgeIDs     []string
	SimilarityScores          map[string]float64
	DetectionMethod           DetectionMethod
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// ContainsDuplicate reports whether id is listed in the duplicate set
func (g *KnowledgeGroup) ContainsDuplicate(id string) bool {
	for _, dup := range g.DuplicateKnowledgeIDs {
		if dup == id {
			return true
		}
	}
	return false
}

// AddDuplicate appends id to the duplicate set if absent and records its
// latest similarity score. The representative never enters the set.
func (g *KnowledgeGroup) AddDuplicate(id string, score float64) {
	if id == g.RepresentativeKnowledgeID {
		return
	}
	if !g.ContainsDuplicate(id) {
		g.DuplicateKnowledgeIDs = append(g.DuplicateKnowledgeIDs, id)
	}
	if g.SimilarityScores == nil {
		g.SimilarityScores = make(map[string]float64)
	}
	g.SimilarityScores[id] = score
}

// RemoveDuplicate drops id from the duplicate set and its score entry.
// Returns true if the id was present.
func (g *KnowledgeGroup) RemoveDuplicate(id string) bool {
	for i, dup := range g.DuplicateKnowledgeIDs {
		if dup == id {
			g.DuplicateKnowledgeIDs = append(g.DuplicateKnowledgeIDs[:i], g.DuplicateKnowledgeIDs[i+1:]...)
			delete(g.SimilarityScores, id)
			return true
		}
	}
	return false
}

// IsEmpty reports whether the duplicate set has emptied; empty groups are deleted
func (g *KnowledgeGroup) IsEmpty() bool {
	return len(g.DuplicateKnowledgeIDs) == 0
}

// ValidateKnowledgeGroup validates a KnowledgeGroup instance
func ValidateKnowledgeGroup(g *KnowledgeGroup) error {
	if g == nil {
		return fmt.Errorf("knowledge group cannot be nil")
	}

	if g.ID == "" {
		return fmt.Errorf("knowledge group ID is required")
	}

	if g.ProjectID == "" {
		return fmt.Errorf("knowledge group ProjectID is required")
	}

	if g.RepresentativeKnowledgeID == "" {
		return fmt.Errorf("knowledge group RepresentativeKnowledgeID is required")
	}

	if !isValidDetectionMethod(g.DetectionMethod) {
		return fmt.Errorf("knowledge group DetectionMethod is invalid: %s", g.DetectionMethod)
	}

	seen := make(map[string]bool, len(g.DuplicateKnowledgeIDs))
	for _, id := range g.DuplicateKnowledgeIDs {
		if id == g.RepresentativeKnowledgeID {
			return fmt.Errorf("knowledge group duplicate set must not contain the representative")
		}
		if seen[id] {
			return fmt.Errorf("knowledge group duplicate set contains %s more than once", id)
		}
		seen[id] = true
	}

	return nil
}

// isValidDetectionMethod checks if a DetectionMethod is valid
func isValidDetectionMethod(m DetectionMethod) bool {
	switch m {
	case DetectionMethodExact, DetectionMethodSemantic, DetectionMethodFuzzy:
		return true
	}
	return false
}
