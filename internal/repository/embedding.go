package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hivemesh/hivemesh/internal/domain"
	"github.com/hivemesh/hivemesh/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// EmbeddingRepository handles message chunk embeddings and the vector
// searches behind tiered retrieval.
type EmbeddingRepository struct {
	db dbtx
}

func NewEmbeddingRepository(pool *pgxpool.Pool) *EmbeddingRepository {
	return &EmbeddingRepository{db: pool}
}

// ReplaceMessageChunks deletes existing chunks for a message and inserts new ones.
func (r *EmbeddingRepository) ReplaceMessageChunks(ctx context.Context, messageID int64, chunks []domain.MessageEmbedding) error {
	_, err := r.db.Exec(ctx, `DELETE FROM message_embeddings WHERE message_id = $1`, messageID)
	if err != nil {
		return err
	}

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO message_embeddings (message_id, content, embedding, chunk_index, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			messageID, c.Content, pgvector.NewVector(c.Embedding), c.ChunkIndex, createdAt,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// GetChunkOwner resolves a chunk to the user whose message produced it.
func (r *EmbeddingRepository) GetChunkOwner(ctx context.Context, embeddingID int64) (*service.ChunkOwner, error) {
	var owner service.ChunkOwner
	err := r.db.QueryRow(ctx,
		`SELECT me.id, c.user_id, me.content
		 FROM message_embeddings me
		 JOIN messages m ON m.id = me.message_id
		 JOIN conversations c ON c.id = m.conversation_id
		 WHERE me.id = $1`,
		embeddingID,
	).Scan(&owner.EmbeddingID, &owner.OwnerID, &owner.Content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEmbeddingNotFound
		}
		return nil, err
	}
	return &owner, nil
}

// SearchOwnChunks finds the user's own chunks inside the similarity band.
func (r *EmbeddingRepository) SearchOwnChunks(ctx context.Context, embedding []float32, userID string, cfg service.RetrievalConfig) ([]*service.ChunkMatch, error) {
	rows, err := r.db.Query(ctx,
		`SELECT me.id, me.content, u.id, u.name, u.email, me.embedding <=> $1 AS distance
		 FROM message_embeddings me
		 JOIN messages m ON m.id = me.message_id
		 JOIN conversations c ON c.id = m.conversation_id
		 JOIN users u ON u.id = c.user_id
		 WHERE c.user_id = $2
		   AND (me.embedding <=> $1) > $3
		   AND (me.embedding <=> $1) < $4
		 ORDER BY distance ASC
		 LIMIT $5`,
		pgvector.NewVector(embedding), userID, cfg.MinDistance, cfg.MaxDistance, cfg.SourceLimit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkMatches(rows)
}

// SearchSharedChunks finds chunks other members have granted to the user.
func (r *EmbeddingRepository) SearchSharedChunks(ctx context.Context, embedding []float32, userID string, cfg service.RetrievalConfig) ([]*service.ChunkMatch, error) {
	rows, err := r.db.Query(ctx,
		`SELECT me.id, me.content, u.id, u.name, u.email, me.embedding <=> $1 AS distance
		 FROM message_embeddings me
		 JOIN knowledge_shares ks ON ks.embedding_id = me.id
		 JOIN messages m ON m.id = me.message_id
		 JOIN conversations c ON c.id = m.conversation_id
		 JOIN users u ON u.id = c.user_id
		 WHERE ks.shared_with_user_id = $2
		   AND (me.embedding <=> $1) > $3
		   AND (me.embedding <=> $1) < $4
		 ORDER BY distance ASC
		 LIMIT $5`,
		pgvector.NewVector(embedding), userID, cfg.MinDistance, cfg.MaxDistance, cfg.SourceLimit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkMatches(rows)
}

// SearchOrgChunks finds other members' chunks the user cannot read yet.
// Chunks the user owns or was already granted never appear here, so the
// result set is disjoint from the other tiers by construction.
func (r *EmbeddingRepository) SearchOrgChunks(ctx context.Context, embedding []float32, orgID, userID string, cfg service.RetrievalConfig) ([]*service.ChunkMatch, error) {
	rows, err := r.db.Query(ctx,
		`SELECT me.id, me.content, u.id, u.name, u.email, me.embedding <=> $1 AS distance
		 FROM message_embeddings me
		 JOIN messages m ON m.id = me.message_id
		 JOIN conversations c ON c.id = m.conversation_id
		 JOIN users u ON u.id = c.user_id
		 WHERE c.org_id = $2
		   AND c.user_id <> $3
		   AND NOT EXISTS (
		       SELECT 1 FROM knowledge_shares ks
		       WHERE ks.embedding_id = me.id AND ks.shared_with_user_id = $3
		   )
		   AND (me.embedding <=> $1) > $4
		   AND (me.embedding <=> $1) < $5
		 ORDER BY distance ASC
		 LIMIT $6`,
		pgvector.NewVector(embedding), orgID, userID, cfg.MinDistance, cfg.MaxDistance, cfg.SuggestionLimit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkMatches(rows)
}

// SearchResourceChunks finds organization resource chunks inside the band,
// skipping soft-deleted resources.
func (r *EmbeddingRepository) SearchResourceChunks(ctx context.Context, embedding []float32, orgID string, cfg service.RetrievalConfig) ([]*service.ResourceMatch, error) {
	rows, err := r.db.Query(ctx,
		`SELECT re.id, re.resource_id, re.content, re.embedding <=> $1 AS distance
		 FROM resource_embeddings re
		 JOIN resources res ON res.id = re.resource_id
		 WHERE res.org_id = $2
		   AND res.deleted_at IS NULL
		   AND (re.embedding <=> $1) > $3
		   AND (re.embedding <=> $1) < $4
		 ORDER BY distance ASC
		 LIMIT $5`,
		pgvector.NewVector(embedding), orgID, cfg.MinDistance, cfg.MaxDistance, cfg.SourceLimit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []*service.ResourceMatch
	for rows.Next() {
		var m service.ResourceMatch
		if err := rows.Scan(&m.EmbeddingID, &m.ResourceID, &m.Content, &m.Distance); err != nil {
			return nil, err
		}
		matches = append(matches, &m)
	}
	return matches, rows.Err()
}

func scanChunkMatches(rows pgx.Rows) ([]*service.ChunkMatch, error) {
	var matches []*service.ChunkMatch
	for rows.Next() {
		var m service.ChunkMatch
		if err := rows.Scan(&m.EmbeddingID, &m.Content, &m.OwnerID, &m.OwnerName, &m.OwnerEmail, &m.Distance); err != nil {
			return nil, err
		}
		matches = append(matches, &m)
	}
	return matches, rows.Err()
}
