package repository

import (
	"context"
	"errors"

	"github.com/hivemesh/hivemesh/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GrantRepository persists the append-only share ledger. Grants are never
// updated or revoked, only inserted.
type GrantRepository struct {
	db dbtx
}

func NewGrantRepository(pool *pgxpool.Pool) *GrantRepository {
	return &GrantRepository{db: pool}
}

func NewGrantRepositoryWithTx(tx pgx.Tx) *GrantRepository {
	return &GrantRepository{db: tx}
}

// Create inserts a grant. A grant for the same (embedding, recipient)
// pair may already exist when two requests for the same chunk race; the
// insert is a no-op then and the existing grant's id is returned, so an
// approving transaction never fails on the unique constraint.
func (r *GrantRepository) Create(ctx context.Context, share *domain.KnowledgeShare) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO knowledge_shares (embedding_id, owner_id, shared_with_user_id, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (embedding_id, shared_with_user_id) DO NOTHING
		 RETURNING id`,
		share.EmbeddingID, share.OwnerID, share.SharedWithUserID, share.CreatedAt,
	).Scan(&share.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.db.QueryRow(ctx,
			`SELECT id FROM knowledge_shares
			 WHERE embedding_id = $1 AND shared_with_user_id = $2`,
			share.EmbeddingID, share.SharedWithUserID,
		).Scan(&share.ID)
	}
	return err
}

func (r *GrantRepository) Exists(ctx context.Context, embeddingID int64, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM knowledge_shares
		     WHERE embedding_id = $1 AND shared_with_user_id = $2
		 )`,
		embeddingID, userID,
	).Scan(&exists)
	return exists, err
}

func (r *GrantRepository) ListByRecipient(ctx context.Context, userID string) ([]*domain.KnowledgeShare, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, embedding_id, owner_id, shared_with_user_id, created_at
		 FROM knowledge_shares
		 WHERE shared_with_user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shares []*domain.KnowledgeShare
	for rows.Next() {
		var s domain.KnowledgeShare
		if err := rows.Scan(&s.ID, &s.EmbeddingID, &s.OwnerID, &s.SharedWithUserID, &s.CreatedAt); err != nil {
			return nil, err
		}
		shares = append(shares, &s)
	}
	return shares, rows.Err()
}
