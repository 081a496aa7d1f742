package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/veritaslabs/mnemo/internal/domain"
)

type GroupStore struct {
	db dbtx
}

func NewGroupStore(pool *pgxpool.Pool) *GroupStore {
	return &GroupStore{db: pool}
}

func NewGroupStoreWithTx(tx pgx.Tx) *GroupStore {
	return &GroupStore{db: tx}
}

const groupColumns = `id, project_id, representative_knowledge_id, duplicate_knowledge_ids,
	 similarity_scores, detection_method, created_at, updated_at`

func (r *GroupStore) GetByID(ctx context.Context, id string) (*domain.KnowledgeGroup, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+groupColumns+` FROM knowledge_groups WHERE id = $1`,
		id,
	)
	g, err := scanGroupRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrGroupNotFound
		}
		return nil, err
	}
	return g, nil
}

func (r *GroupStore) ListByProject(ctx context.Context, projectID string) ([]*domain.KnowledgeGroup, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+groupColumns+` FROM knowledge_groups WHERE project_id = $1 ORDER BY created_at, id`,
		projectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []*domain.KnowledgeGroup
	for rows.Next() {
		g, err := scanGroupRow(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *GroupStore) Create(ctx context.Context, g *domain.KnowledgeGroup) error {
	scores, err := json.Marshal(g.SimilarityScores)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO knowledge_groups (id, project_id, representative_knowledge_id, duplicate_knowledge_ids,
		  similarity_scores, detection_method, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		g.ID, g.ProjectID, g.RepresentativeKnowledgeID, g.DuplicateKnowledgeIDs,
		scores, string(g.DetectionMethod), g.CreatedAt, g.UpdatedAt,
	)
	return err
}

func (r *GroupStore) Update(ctx context.Context, g *domain.KnowledgeGroup) error {
	scores, err := json.Marshal(g.SimilarityScores)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE knowledge_groups
		 SET representative_knowledge_id = $1, duplicate_knowledge_ids = $2,
		  similarity_scores = $3, detection_method = $4, updated_at = $5
		 WHERE id = $6`,
		g.RepresentativeKnowledgeID, g.DuplicateKnowledgeIDs,
		scores, string(g.DetectionMethod), g.UpdatedAt, g.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrGroupNotFound
	}
	return nil
}

func (r *GroupStore) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM knowledge_groups WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrGroupNotFound
	}
	return nil
}

func scanGroupRow(row rowScanner) (*domain.KnowledgeGroup, error) {
	var g domain.KnowledgeGroup
	var method string
	var scores []byte
	if err := row.Scan(
		&g.ID, &g.ProjectID, &g.RepresentativeKnowledgeID, &g.DuplicateKnowledgeIDs,
		&scores, &method, &g.CreatedAt, &g.UpdatedAt,
	); err != nil {
		return nil, err
	}
	g.DetectionMethod = domain.DetectionMethod(method)
	if len(scores) > 0 {
		if err := json.Unmarshal(scores, &g.SimilarityScores); err != nil {
			return nil, err
		}
	}
	if g.SimilarityScores == nil {
		g.SimilarityScores = make(map[string]float64)
	}
	return &g, nil
}
