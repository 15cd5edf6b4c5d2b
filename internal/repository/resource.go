package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hivemesh/hivemesh/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type ResourceRepository struct {
	db dbtx
}

func NewResourceRepository(pool *pgxpool.Pool) *ResourceRepository {
	return &ResourceRepository{db: pool}
}

func NewResourceRepositoryWithTx(tx pgx.Tx) *ResourceRepository {
	return &ResourceRepository{db: tx}
}

func (r *ResourceRepository) Create(ctx context.Context, resource *domain.Resource) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO resources (org_id, user_id, content, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		resource.OrgID, resource.UserID, resource.Content, resource.CreatedAt, resource.UpdatedAt,
	).Scan(&resource.ID)
}

func (r *ResourceRepository) GetByID(ctx context.Context, id int64, orgID string) (*domain.Resource, error) {
	var resource domain.Resource
	err := r.db.QueryRow(ctx,
		`SELECT id, org_id, user_id, content, created_at, updated_at, deleted_at
		 FROM resources WHERE id = $1 AND org_id = $2`,
		id, orgID,
	).Scan(&resource.ID, &resource.OrgID, &resource.UserID, &resource.Content,
		&resource.CreatedAt, &resource.UpdatedAt, &resource.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrResourceNotFound
		}
		return nil, err
	}
	return &resource, nil
}

func (r *ResourceRepository) ListByOrg(ctx context.Context, orgID string) ([]*domain.Resource, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, org_id, user_id, content, created_at, updated_at, deleted_at
		 FROM resources
		 WHERE org_id = $1 AND deleted_at IS NULL
		 ORDER BY updated_at DESC`,
		orgID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var resources []*domain.Resource
	for rows.Next() {
		var resource domain.Resource
		if err := rows.Scan(&resource.ID, &resource.OrgID, &resource.UserID, &resource.Content,
			&resource.CreatedAt, &resource.UpdatedAt, &resource.DeletedAt); err != nil {
			return nil, err
		}
		resources = append(resources, &resource)
	}
	return resources, rows.Err()
}

func (r *ResourceRepository) UpdateContent(ctx context.Context, resource *domain.Resource) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE resources SET content = $1, updated_at = $2
		 WHERE id = $3 AND org_id = $4 AND deleted_at IS NULL`,
		resource.Content, resource.UpdatedAt, resource.ID, resource.OrgID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrResourceNotFound
	}
	return nil
}

// ReplaceChunks deletes existing chunks for a resource and inserts new ones.
func (r *ResourceRepository) ReplaceChunks(ctx context.Context, resourceID int64, chunks []domain.ResourceEmbedding) error {
	_, err := r.db.Exec(ctx, `DELETE FROM resource_embeddings WHERE resource_id = $1`, resourceID)
	if err != nil {
		return err
	}

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO resource_embeddings (resource_id, content, embedding, chunk_index, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			resourceID, c.Content, pgvector.NewVector(c.Embedding), c.ChunkIndex, createdAt,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *ResourceRepository) SoftDelete(ctx context.Context, id int64, orgID string, at time.Time) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE resources SET deleted_at = $1 WHERE id = $2 AND org_id = $3 AND deleted_at IS NULL`,
		at, id, orgID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrResourceNotFound
	}
	return nil
}

func (r *ResourceRepository) HardDelete(ctx context.Context, id int64, orgID string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM resources WHERE id = $1 AND org_id = $2`,
		id, orgID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrResourceNotFound
	}
	return nil
}
