package repository

import (
	"context"
	"errors"

	"github.com/hivemesh/hivemesh/internal/domain"
	"github.com/hivemesh/hivemesh/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

type RequestRepository struct {
	db dbtx
}

func NewRequestRepository(pool *pgxpool.Pool) *RequestRepository {
	return &RequestRepository{db: pool}
}

func NewRequestRepositoryWithTx(tx pgx.Tx) *RequestRepository {
	return &RequestRepository{db: tx}
}

func (r *RequestRepository) Create(ctx context.Context, req *domain.KnowledgeRequest) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO knowledge_requests (requester_id, owner_id, embedding_id, conversation_id, question, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		req.RequesterID, req.OwnerID, req.EmbeddingID, req.ConversationID, req.Question, req.Status, req.CreatedAt,
	).Scan(&req.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrDuplicateRequest
		}
		return err
	}
	return nil
}

func (r *RequestRepository) HasPending(ctx context.Context, embeddingID int64, requesterID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM knowledge_requests
		     WHERE embedding_id = $1 AND requester_id = $2 AND status = 'pending'
		 )`,
		embeddingID, requesterID,
	).Scan(&exists)
	return exists, err
}

// GetPendingForOwner loads a pending request owned by ownerID and locks the
// row for the rest of the transaction. A missing, foreign, or already
// resolved request all read the same so callers cannot probe other
// people's requests.
func (r *RequestRepository) GetPendingForOwner(ctx context.Context, id int64, ownerID string) (*domain.KnowledgeRequest, error) {
	req, err := scanRequest(r.db.QueryRow(ctx,
		`SELECT id, requester_id, owner_id, embedding_id, conversation_id, question, status, response_content, created_at, responded_at
		 FROM knowledge_requests
		 WHERE id = $1 AND owner_id = $2 AND status = 'pending'
		 FOR UPDATE`,
		id, ownerID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, err
	}
	return req, nil
}

func (r *RequestRepository) UpdateStatus(ctx context.Context, req *domain.KnowledgeRequest) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_requests
		 SET status = $1, response_content = $2, responded_at = $3
		 WHERE id = $4`,
		req.Status, nullableString(req.ResponseContent), req.RespondedAt, req.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrRequestNotFound
	}
	return nil
}

func (r *RequestRepository) List(ctx context.Context, q service.ListRequestsQuery) ([]*service.RequestDetail, error) {
	query := `SELECT kr.id, kr.requester_id, kr.owner_id, kr.embedding_id, kr.conversation_id, kr.question,
		        kr.status, kr.response_content, kr.created_at, kr.responded_at,
		        ru.name, ru.email, ou.name, ou.email, me.content, pm.content
		 FROM knowledge_requests kr
		 JOIN users ru ON ru.id = kr.requester_id
		 JOIN users ou ON ou.id = kr.owner_id
		 JOIN message_embeddings me ON me.id = kr.embedding_id
		 JOIN messages pm ON pm.id = me.message_id`

	args := []any{q.UserID}
	switch q.Direction {
	case service.DirectionSent:
		query += ` WHERE kr.requester_id = $1`
	case service.DirectionAll:
		query += ` WHERE (kr.owner_id = $1 OR kr.requester_id = $1)`
	default:
		query += ` WHERE kr.owner_id = $1`
	}

	if q.Status != "" {
		query += ` AND kr.status = $2`
		args = append(args, q.Status)
	}

	query += ` ORDER BY kr.created_at DESC, kr.id DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []*service.RequestDetail
	for rows.Next() {
		var d service.RequestDetail
		var req domain.KnowledgeRequest
		var responseContent *string
		if err := rows.Scan(
			&req.ID, &req.RequesterID, &req.OwnerID, &req.EmbeddingID, &req.ConversationID, &req.Question,
			&req.Status, &responseContent, &req.CreatedAt, &req.RespondedAt,
			&d.RequesterName, &d.RequesterEmail, &d.OwnerName, &d.OwnerEmail, &d.ChunkContent, &d.ParentMessage,
		); err != nil {
			return nil, err
		}
		if responseContent != nil {
			req.ResponseContent = *responseContent
		}
		d.Request = &req
		details = append(details, &d)
	}
	return details, rows.Err()
}

func scanRequest(row pgx.Row) (*domain.KnowledgeRequest, error) {
	var req domain.KnowledgeRequest
	var responseContent *string
	err := row.Scan(
		&req.ID, &req.RequesterID, &req.OwnerID, &req.EmbeddingID, &req.ConversationID, &req.Question,
		&req.Status, &responseContent, &req.CreatedAt, &req.RespondedAt,
	)
	if err != nil {
		return nil, err
	}
	if responseContent != nil {
		req.ResponseContent = *responseContent
	}
	return &req, nil
}
