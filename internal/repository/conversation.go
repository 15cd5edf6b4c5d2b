package repository

import (
	"context"
	"errors"
	"strconv"

	"github.com/hivemesh/hivemesh/internal/domain"
	"github.com/hivemesh/hivemesh/internal/pagination"
	"github.com/hivemesh/hivemesh/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConversationRepository struct {
	db dbtx
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: pool}
}

func (r *ConversationRepository) Create(ctx context.Context, c *domain.Conversation) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO conversations (public_id, user_id, org_id, title, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		c.PublicID, c.UserID, c.OrgID, c.Title, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
}

func (r *ConversationRepository) GetByPublicID(ctx context.Context, publicID, userID string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := r.db.QueryRow(ctx,
		`SELECT id, public_id, user_id, org_id, title, created_at, updated_at
		 FROM conversations WHERE public_id = $1 AND user_id = $2`,
		publicID, userID,
	).Scan(&c.ID, &c.PublicID, &c.UserID, &c.OrgID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *ConversationRepository) ListByUserWithCursor(ctx context.Context, userID string, cursor *pagination.Cursor, limit int) (*service.ConversationPageResult, error) {
	query := `SELECT id, public_id, user_id, org_id, title, created_at, updated_at
		 FROM conversations WHERE user_id = $1`
	args := []any{userID}

	if cursor != nil {
		lastID, err := strconv.ParseInt(cursor.LastID, 10, 64)
		if err != nil {
			return nil, pagination.ErrInvalidCursor
		}
		query += ` AND (created_at, id) < ($2, $3)`
		args = append(args, cursor.Timestamp, lastID)
	}

	query += ` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, limit+1)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		if err := rows.Scan(&c.ID, &c.PublicID, &c.UserID, &c.OrgID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(strconv.FormatInt(last.ID, 10), last.CreatedAt)
	}

	return &service.ConversationPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

type MessageRepository struct {
	db dbtx
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: pool}
}

func (r *MessageRepository) Create(ctx context.Context, m *domain.Message) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO messages (conversation_id, role, content, created_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		m.ConversationID, m.Role, m.Content, m.CreatedAt,
	).Scan(&m.ID)
}

func (r *MessageRepository) GetMessageByID(ctx context.Context, id int64) (*domain.Message, error) {
	var m domain.Message
	err := r.db.QueryRow(ctx,
		`SELECT id, conversation_id, role, content, created_at FROM messages WHERE id = $1`,
		id,
	).Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID int64) ([]*domain.Message, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, conversation_id, role, content, created_at
		 FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC, id ASC`,
		conversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}
