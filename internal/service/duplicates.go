package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/veritaslabs/mnemo/internal/domain"
	"github.com/veritaslabs/mnemo/internal/similarity"
	"github.com/veritaslabs/mnemo/internal/telemetry"
)

const (
	// SemanticDuplicateThreshold is the minimum cosine similarity for the
	// semantic detection pass.
	SemanticDuplicateThreshold = 0.95
	// FuzzyDuplicateThreshold is the minimum fuzzy score for the fuzzy
	// detection pass.
	FuzzyDuplicateThreshold = 0.85
)

// DuplicateService detects redundant knowledge and maintains duplicate groups
type DuplicateService struct {
	knowledgeStore KnowledgeStoreInterface
	groupStore     GroupStoreInterface
	uuidGen        UUIDGenerator
}

// NewDuplicateService creates a new DuplicateService instance
func NewDuplicateService(knowledgeStore KnowledgeStoreInterface, groupStore GroupStoreInterface) *DuplicateService {
	return &DuplicateService{
		knowledgeStore: knowledgeStore,
		groupStore:     groupStore,
		uuidGen:        &DefaultUUIDGenerator{},
	}
}

// NewDuplicateServiceWithUUIDGen creates a DuplicateService with a custom UUID generator (for testing)
func NewDuplicateServiceWithUUIDGen(knowledgeStore KnowledgeStoreInterface, groupStore GroupStoreInterface, uuidGen UUIDGenerator) *DuplicateService {
	return &DuplicateService{
		knowledgeStore: knowledgeStore,
		groupStore:     groupStore,
		uuidGen:        uuidGen,
	}
}

// DuplicateCandidate is one knowledge item matched by a detection pass
type DuplicateCandidate struct {
	Knowledge  *domain.Knowledge
	Method     domain.DetectionMethod
	Similarity float64
}

// Detect runs the three detection passes (exact, semantic, fuzzy) for one
// knowledge item against its project. Each match is tagged with the
// highest-priority pass that found it.
func (s *DuplicateService) Detect(ctx context.Context, k *domain.Knowledge) ([]*DuplicateCandidate, error) {
	ctx, span := telemetry.StartSpan(ctx, "DuplicateService.Detect", telemetry.SpanAttributes{
		ProjectID:   k.ProjectID,
		KnowledgeID: k.ID,
		Operation:   "detect",
	})
	defer span.End()

	// Suppressed members are included so grouped items keep matching;
	// archived items are out of the active set.
	candidates, err := s.knowledgeStore.QueryByProject(ctx, k.ProjectID, QueryFilters{
		IncludeSuppressed: true,
	})
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStore, "failed to load duplicate candidates", err)
	}

	found := make(map[string]*DuplicateCandidate)
	var order []string

	record := func(c *domain.Knowledge, method domain.DetectionMethod, score float64) {
		if existing, ok := found[c.ID]; ok {
			existing.Method = domain.StrongerDetectionMethod(existing.Method, method)
			return
		}
		found[c.ID] = &DuplicateCandidate{Knowledge: c, Method: method, Similarity: score}
		order = append(order, c.ID)
	}

	// Pass 1: exact (normalized content equality, implicit threshold 1.0)
	norm := similarity.NormalizeContent(k.Content)
	for _, c := range candidates {
		if c.ID == k.ID {
			continue
		}
		if similarity.NormalizeContent(c.Content) == norm {
			record(c, domain.DetectionMethodExact, 1.0)
		}
	}

	// Pass 2: semantic (requires the candidate item to carry an embedding)
	if k.HasEmbedding() {
		for _, c := range candidates {
			if c.ID == k.ID || !c.HasEmbedding() {
				continue
			}
			score, err := similarity.Cosine(k.Embedding, c.Embedding)
			if err != nil {
				if errors.Is(err, similarity.ErrDimensionMismatch) {
					log.Printf("duplicate detection: skipping %s: %v", c.ID, err)
					continue
				}
				span.SetError(err)
				return nil, domain.NewDomainErrorWithCause(domain.ErrCodeDimensionMismatch, "embedding comparison failed", err)
			}
			if score >= SemanticDuplicateThreshold {
				record(c, domain.DetectionMethodSemantic, score)
			}
		}
	}

	// Pass 3: fuzzy (Levenshtein over normalized content)
	for _, c := range candidates {
		if c.ID == k.ID {
			continue
		}
		if score := similarity.FuzzyScore(k.Content, c.Content); score >= FuzzyDuplicateThreshold {
			record(c, domain.DetectionMethodFuzzy, score)
		}
	}

	results := make([]*DuplicateCandidate, 0, len(order))
	for _, id := range order {
		results = append(results, found[id])
	}
	return results, nil
}

// DetectDuplicates runs detection and grouping for each id. Per-item failures
// are logged and skipped; the returned count covers items that succeeded.
func (s *DuplicateService) DetectDuplicates(ctx context.Context, projectID string, knowledgeIDs []string) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "DuplicateService.DetectDuplicates", telemetry.SpanAttributes{
		ProjectID: projectID,
		Operation: "detect_batch",
	})
	defer span.End()

	if projectID == "" {
		return 0, domain.ErrMissingProjectID
	}

	total := 0
	for _, id := range knowledgeIDs {
		k, err := s.knowledgeStore.GetByID(ctx, id)
		if err != nil {
			log.Printf("duplicate detection: skipping %s: %v", id, err)
			continue
		}
		if k.ProjectID != projectID {
			log.Printf("duplicate detection: skipping %s: belongs to project %s", id, k.ProjectID)
			continue
		}

		n, err := s.detectAndGroup(ctx, k)
		if err != nil {
			log.Printf("duplicate detection: skipping %s: %v", id, err)
			continue
		}
		total += n
	}

	return total, nil
}

// detectAndGroup clusters one item's matches into a new or existing group
// and writes membership to the store. Returns the number of matches.
func (s *DuplicateService) detectAndGroup(ctx context.Context, k *domain.Knowledge) (int, error) {
	matches, err := s.Detect(ctx, k)
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		return 0, nil
	}

	groupID := k.DuplicateGroupID
	for _, m := range matches {
		if groupID != "" {
			break
		}
		groupID = m.Knowledge.DuplicateGroupID
	}

	if groupID != "" {
		if err := s.mergeIntoGroup(ctx, groupID, k, matches); err != nil {
			return 0, err
		}
		return len(matches), nil
	}

	if err := s.createGroup(ctx, k, matches); err != nil {
		return 0, err
	}
	return len(matches), nil
}

// createGroup builds a fresh group from the candidate and its matches
func (s *DuplicateService) createGroup(ctx context.Context, k *domain.Knowledge, matches []*DuplicateCandidate) error {
	members := []*domain.Knowledge{k}
	scores := make(map[string]float64, len(matches))
	method := matches[0].Method
	for _, m := range matches {
		members = append(members, m.Knowledge)
		scores[m.Knowledge.ID] = m.Similarity
		method = domain.StrongerDetectionMethod(method, m.Method)
	}

	// Ties keep the candidate, so it is passed as the incumbent
	rep := selectRepresentative(k, members)

	now := time.Now().UTC()
	group := &domain.KnowledgeGroup{
		ID:                        s.uuidGen.NewString(),
		ProjectID:                 k.ProjectID,
		RepresentativeKnowledgeID: rep.ID,
		SimilarityScores:          make(map[string]float64),
		DetectionMethod:           method,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
	for _, m := range members {
		if m.ID == rep.ID {
			continue
		}
		score, ok := scores[m.ID]
		if !ok {
			// The candidate itself demoted to duplicate: its similarity to
			// the elected representative is the representative's own score.
			score = scores[rep.ID]
		}
		group.AddDuplicate(m.ID, score)
	}

	if err := domain.ValidateKnowledgeGroup(group); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid duplicate group", err)
	}
	if err := s.groupStore.Create(ctx, group); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeStore, "failed to create duplicate group", err)
	}

	return s.writeMemberships(ctx, group.ID, rep.ID, members)
}

// mergeIntoGroup unions the candidate and matches into an existing group.
// Prior members are never dropped; the detection method only upgrades.
// Members still held by another group are released from it first, so two
// colliding groups converge into one.
func (s *DuplicateService) mergeIntoGroup(ctx context.Context, groupID string, k *domain.Knowledge, matches []*DuplicateCandidate) error {
	group, err := s.groupStore.GetByID(ctx, groupID)
	if err != nil {
		return err
	}

	members := []*domain.Knowledge{k}
	for _, m := range matches {
		members = append(members, m.Knowledge)
		group.DetectionMethod = domain.StrongerDetectionMethod(group.DetectionMethod, m.Method)
	}

	if err := s.detachFromOtherGroups(ctx, group.ID, members); err != nil {
		return err
	}

	incumbent := findMember(members, group.RepresentativeKnowledgeID)
	if incumbent == nil {
		var err error
		incumbent, err = s.knowledgeStore.GetByID(ctx, group.RepresentativeKnowledgeID)
		if err != nil {
			return domain.NewDomainErrorWithCause(domain.ErrCodeStore, "failed to load group representative", err)
		}
	}
	rep := selectRepresentative(incumbent, members)

	if rep.ID != group.RepresentativeKnowledgeID {
		demotedID := group.RepresentativeKnowledgeID
		group.RepresentativeKnowledgeID = rep.ID
		group.RemoveDuplicate(rep.ID)
		group.AddDuplicate(demotedID, scoreFor(matches, demotedID))
	}

	for _, m := range matches {
		if m.Knowledge.ID == rep.ID {
			continue
		}
		group.AddDuplicate(m.Knowledge.ID, m.Similarity)
	}
	if k.ID != rep.ID {
		group.AddDuplicate(k.ID, scoreFor(matches, rep.ID))
	}

	if err := domain.ValidateKnowledgeGroup(group); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid duplicate group after merge", err)
	}
	group.UpdatedAt = time.Now().UTC()
	if err := s.groupStore.Update(ctx, group); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeStore, "failed to update duplicate group", err)
	}

	if incumbent.ID != rep.ID {
		members = append(members, incumbent)
	}
	return s.writeMemberships(ctx, group.ID, rep.ID, members)
}

// detachFromOtherGroups releases members whose current group differs from
// the merge target before they are reassigned
func (s *DuplicateService) detachFromOtherGroups(ctx context.Context, targetGroupID string, members []*domain.Knowledge) error {
	departing := make(map[string][]string)
	for _, m := range members {
		if m.DuplicateGroupID == "" || m.DuplicateGroupID == targetGroupID {
			continue
		}
		departing[m.DuplicateGroupID] = append(departing[m.DuplicateGroupID], m.ID)
	}

	for oldGroupID, ids := range departing {
		if err := s.releaseGroupMembers(ctx, oldGroupID, ids); err != nil {
			return err
		}
	}
	return nil
}

// releaseGroupMembers strips the departing ids from a group that is losing
// them to another one. A departing representative triggers re-election, and
// the group is deleted once its duplicate set empties.
func (s *DuplicateService) releaseGroupMembers(ctx context.Context, groupID string, ids []string) error {
	group, err := s.groupStore.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, domain.ErrGroupNotFound) {
			return nil
		}
		return domain.NewDomainErrorWithCause(domain.ErrCodeStore, "failed to load abandoned duplicate group", err)
	}

	repDeparts := false
	for _, id := range ids {
		if id == group.RepresentativeKnowledgeID {
			repDeparts = true
			continue
		}
		group.RemoveDuplicate(id)
	}

	if group.IsEmpty() {
		if err := s.groupStore.Delete(ctx, group.ID); err != nil {
			return domain.NewDomainErrorWithCause(domain.ErrCodeStore, "failed to delete emptied duplicate group", err)
		}
		if repDeparts {
			return nil
		}
		// The representative cannot hold a group on its own
		return s.clearMemberships(ctx, group.RepresentativeKnowledgeID)
	}

	if !repDeparts {
		group.UpdatedAt = time.Now().UTC()
		if err := s.groupStore.Update(ctx, group); err != nil {
			return domain.NewDomainErrorWithCause(domain.ErrCodeStore, "failed to update duplicate group", err)
		}
		return nil
	}

	promoted, err := s.electRepresentative(ctx, group)
	if err != nil {
		return err
	}
	if group.IsEmpty() {
		if err := s.groupStore.Delete(ctx, group.ID); err != nil {
			return domain.NewDomainErrorWithCause(domain.ErrCodeStore, "failed to delete emptied duplicate group", err)
		}
		return s.clearMemberships(ctx, promoted.ID)
	}

	group.UpdatedAt = time.Now().UTC()
	if err := s.groupStore.Update(ctx, group); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeStore, "failed to update duplicate group", err)
	}

	mutations := []KnowledgeMutation{
		{ID: promoted.ID, Group: &GroupAssignment{GroupID: group.ID, Representative: true}},
	}
	if err := s.knowledgeStore.BatchWrite(ctx, mutations); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeStore, "failed to write group membership", err)
	}
	return nil
}

// writeMemberships batch-writes group assignment for every touched member
func (s *DuplicateService) writeMemberships(ctx context.Context, groupID, repID string, members []*domain.Knowledge) error {
	mutations := make([]KnowledgeMutation, 0, len(members))
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		mutations = append(mutations, KnowledgeMutation{
			ID: m.ID,
			Group: &GroupAssignment{
				GroupID:        groupID,
				Representative: m.ID == repID,
			},
		})
	}

	for start := 0; start < len(mutations); start += MaxBatchMutations {
		end := min(start+MaxBatchMutations, len(mutations))
		if err := s.knowledgeStore.BatchWrite(ctx, mutations[start:end]); err != nil {
			return domain.NewDomainErrorWithCause(domain.ErrCodeStore, "failed to write group membership", err)
		}
	}
	return nil
}

// RemoveDuplicateFromGroup detaches the id from its group. The group is
// deleted once its duplicate set empties; ungrouped ids are a no-op.
func (s *DuplicateService) RemoveDuplicateFromGroup(ctx context.Context, knowledgeID string) error {
	ctx, span := telemetry.StartSpan(ctx, "DuplicateService.RemoveDuplicateFromGroup", telemetry.SpanAttributes{
		KnowledgeID: knowledgeID,
		Operation:   "remove_duplicate",
	})
	defer span.End()

	k, err := s.knowledgeStore.GetByID(ctx, knowledgeID)
	if err != nil {
		return err
	}
	if k.DuplicateGroupID == "" {
		return nil
	}

	group, err := s.groupStore.GetByID(ctx, k.DuplicateGroupID)
	if err != nil {
		if errors.Is(err, domain.ErrGroupNotFound) {
			// Dangling reference: clear the item and move on
			return s.clearMemberships(ctx, knowledgeID)
		}
		return err
	}

	if group.RepresentativeKnowledgeID == knowledgeID {
		return s.removeRepresentative(ctx, group, knowledgeID)
	}

	group.RemoveDuplicate(knowledgeID)
	if group.IsEmpty() {
		if err := s.groupStore.Delete(ctx, group.ID); err != nil {
			return domain.NewDomainErrorWithCause(domain.ErrCodeStore, "failed to delete emptied duplicate group", err)
		}
		// The representative loses its group along with the last duplicate
		return s.clearMemberships(ctx, knowledgeID, group.RepresentativeKnowledgeID)
	}

	group.UpdatedAt = time.Now().UTC()
	if err := s.groupStore.Update(ctx, group); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeStore, "failed to update duplicate group", err)
	}
	return s.clearMemberships(ctx, knowledgeID)
}

// removeRepresentative detaches the representative itself, promoting the
// strongest remaining duplicate in its place.
func (s *DuplicateService) removeRepresentative(ctx context.Context, group *domain.KnowledgeGroup, knowledgeID string) error {
	if group.IsEmpty() {
		if err := s.groupStore.Delete(ctx, group.ID); err != nil {
			return domain.NewDomainErrorWithCause(domain.ErrCodeStore, "failed to delete emptied duplicate group", err)
		}
		return s.clearMemberships(ctx, knowledgeID)
	}

	promoted, err := s.electRepresentative(ctx, group)
	if err != nil {
		return err
	}

	if group.IsEmpty() {
		if err := s.groupStore.Delete(ctx, group.ID); err != nil {
			return domain.NewDomainErrorWithCause(domain.ErrCodeStore, "failed to delete emptied duplicate group", err)
		}
		return s.clearMemberships(ctx, knowledgeID, promoted.ID)
	}

	group.UpdatedAt = time.Now().UTC()
	if err := s.groupStore.Update(ctx, group); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeStore, "failed to update duplicate group", err)
	}

	mutations := []KnowledgeMutation{
		{ID: knowledgeID, ClearGroup: true},
		{ID: promoted.ID, Group: &GroupAssignment{GroupID: group.ID, Representative: true}},
	}
	if err := s.knowledgeStore.BatchWrite(ctx, mutations); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeStore, "failed to write group membership", err)
	}
	return nil
}

// electRepresentative promotes the strongest readable duplicate to
// representative, removing it from the duplicate set
func (s *DuplicateService) electRepresentative(ctx context.Context, group *domain.KnowledgeGroup) (*domain.Knowledge, error) {
	var promoted *domain.Knowledge
	for _, id := range group.DuplicateKnowledgeIDs {
		member, err := s.knowledgeStore.GetByID(ctx, id)
		if err != nil {
			log.Printf("duplicate group %s: skipping unreadable member %s: %v", group.ID, id, err)
			continue
		}
		if promoted == nil {
			promoted = member
			continue
		}
		promoted = selectRepresentative(promoted, []*domain.Knowledge{member})
	}
	if promoted == nil {
		return nil, domain.NewDomainError(domain.ErrCodeStore, "duplicate group has no readable members to promote")
	}

	group.RemoveDuplicate(promoted.ID)
	group.RepresentativeKnowledgeID = promoted.ID
	return promoted, nil
}

// clearMemberships drops group assignment from the given ids in one batch
func (s *DuplicateService) clearMemberships(ctx context.Context, ids ...string) error {
	mutations := make([]KnowledgeMutation, 0, len(ids))
	for _, id := range ids {
		mutations = append(mutations, KnowledgeMutation{ID: id, ClearGroup: true})
	}
	if err := s.knowledgeStore.BatchWrite(ctx, mutations); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeStore, "failed to clear group membership", err)
	}
	return nil
}

// DuplicateStats aggregates full-scan duplicate counts for a project
type DuplicateStats struct {
	TotalGroups     int
	TotalDuplicates int
	ByMethod        map[domain.DetectionMethod]int
	// DuplicateRatio is duplicates over all active knowledge in the project
	DuplicateRatio float64
}

// GetDuplicateStats computes duplicate group statistics for a project.
// Full-collection scan; acceptable at current fixture scale.
func (s *DuplicateService) GetDuplicateStats(ctx context.Context, projectID string) (*DuplicateStats, error) {
	ctx, span := telemetry.StartSpan(ctx, "DuplicateService.GetDuplicateStats", telemetry.SpanAttributes{
		ProjectID: projectID,
		Operation: "stats",
	})
	defer span.End()

	if projectID == "" {
		return nil, domain.ErrMissingProjectID
	}

	groups, err := s.groupStore.ListByProject(ctx, projectID)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStore, "failed to list duplicate groups", err)
	}

	items, err := s.knowledgeStore.QueryByProject(ctx, projectID, QueryFilters{IncludeSuppressed: true})
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeStore, "failed to count project knowledge", err)
	}

	stats := &DuplicateStats{
		TotalGroups: len(groups),
		ByMethod:    make(map[domain.DetectionMethod]int),
	}
	for _, g := range groups {
		stats.TotalDuplicates += len(g.DuplicateKnowledgeIDs)
		stats.ByMethod[g.DetectionMethod]++
	}
	if len(items) > 0 {
		stats.DuplicateRatio = float64(stats.TotalDuplicates) / float64(len(items))
	}

	return stats, nil
}

// selectRepresentative applies the representative policy: higher reliability
// wins, then higher usage count; ties keep the incumbent.
func selectRepresentative(incumbent *domain.Knowledge, contenders []*domain.Knowledge) *domain.Knowledge {
	best := incumbent
	for _, c := range contenders {
		if c.ID == best.ID {
			continue
		}
		if c.Reliability > best.Reliability ||
			(c.Reliability == best.Reliability && c.UsageCount > best.UsageCount) {
			best = c
		}
	}
	return best
}

func findMember(members []*domain.Knowledge, id string) *domain.Knowledge {
	for _, m := range members {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func scoreFor(matches []*DuplicateCandidate, id string) float64 {
	for _, m := range matches {
		if m.Knowledge.ID == id {
			return m.Similarity
		}
	}
	return 1.0
}
