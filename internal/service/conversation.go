package service

import (
	"context"
	"strings"
	"time"

	"github.com/hivemesh/hivemesh/internal/domain"
	"github.com/hivemesh/hivemesh/internal/pagination"
	"github.com/hivemesh/hivemesh/internal/telemetry"
)

// ConversationRepositoryInterface defines the repository interface for conversation persistence
type ConversationRepositoryInterface interface {
	Create(ctx context.Context, c *domain.Conversation) error
	GetByPublicID(ctx context.Context, publicID, userID string) (*domain.Conversation, error)
	ListByUserWithCursor(ctx context.Context, userID string, cursor *pagination.Cursor, limit int) (*ConversationPageResult, error)
}

// MessageRepositoryInterface defines the repository interface for message persistence
type MessageRepositoryInterface interface {
	Create(ctx context.Context, m *domain.Message) error
	ListByConversation(ctx context.Context, conversationID int64) ([]*domain.Message, error)
}

// EmbeddingJobRepositoryInterface defines the repository interface for embedding job persistence
type EmbeddingJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.EmbeddingJob) error
}

type ConversationPageResult struct {
	Items      []*domain.Conversation
	NextCursor string
	HasMore    bool
}

// ConversationService handles chat conversations and their messages.
// Every stored user message is queued for chunk embedding so it becomes
// searchable knowledge.
type ConversationService struct {
	conversationRepo ConversationRepositoryInterface
	messageRepo      MessageRepositoryInterface
	embeddingJobRepo EmbeddingJobRepositoryInterface
	uuidGen          UUIDGenerator
}

func NewConversationService(
	conversationRepo ConversationRepositoryInterface,
	messageRepo MessageRepositoryInterface,
	embeddingJobRepo EmbeddingJobRepositoryInterface,
) *ConversationService {
	return NewConversationServiceWithUUIDGen(conversationRepo, messageRepo, embeddingJobRepo, &DefaultUUIDGenerator{})
}

// NewConversationServiceWithUUIDGen creates a ConversationService with a custom UUID generator (for testing)
func NewConversationServiceWithUUIDGen(
	conversationRepo ConversationRepositoryInterface,
	messageRepo MessageRepositoryInterface,
	embeddingJobRepo EmbeddingJobRepositoryInterface,
	uuidGen UUIDGenerator,
) *ConversationService {
	return &ConversationService{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		embeddingJobRepo: embeddingJobRepo,
		uuidGen:          uuidGen,
	}
}

// AppendMessageInput represents the input for appending a message to a conversation
type AppendMessageInput struct {
	UserID         string
	OrgID          string
	ConversationID string
	Role           domain.MessageRole
	Content        string
}

// AppendMessageOutput carries the stored message and its conversation
type AppendMessageOutput struct {
	Conversation *domain.Conversation
	Message      *domain.Message
}

// AppendMessage stores a message, creating the conversation on first use.
// A new conversation takes its title from the first message. User
// messages are queued for asynchronous embedding.
func (s *ConversationService) AppendMessage(ctx context.Context, input AppendMessageInput) (*AppendMessageOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "ConversationService.AppendMessage", telemetry.SpanAttributes{
		OrgID:          input.OrgID,
		UserID:         input.UserID,
		ConversationID: input.ConversationID,
		Operation:      "append_message",
	})
	defer span.End()

	if strings.TrimSpace(input.Content) == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "message content is required")
	}

	now := time.Now().UTC()

	var conversation *domain.Conversation
	if input.ConversationID != "" {
		existing, err := s.conversationRepo.GetByPublicID(ctx, input.ConversationID, input.UserID)
		if err != nil {
			return nil, err
		}
		conversation = existing
	} else {
		conversation = &domain.Conversation{
			PublicID:  s.uuidGen.NewString(),
			UserID:    input.UserID,
			OrgID:     input.OrgID,
			Title:     domain.ConversationTitle(input.Content),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.conversationRepo.Create(ctx, conversation); err != nil {
			return nil, err
		}
	}

	message := &domain.Message{
		ConversationID: conversation.ID,
		Role:           input.Role,
		Content:        input.Content,
		CreatedAt:      now,
	}

	if err := domain.ValidateMessage(message); err != nil {
		return nil, err
	}

	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, err
	}

	if message.Role == domain.MessageRoleUser {
		job := &domain.EmbeddingJob{
			ID:        s.uuidGen.NewString(),
			MessageID: message.ID,
			Status:    domain.EmbeddingJobStatusPending,
			CreatedAt: now,
		}
		if err := s.embeddingJobRepo.Create(ctx, job); err != nil {
			return nil, err
		}
	}

	return &AppendMessageOutput{
		Conversation: conversation,
		Message:      message,
	}, nil
}

// GetMessages returns all messages of one of the user's conversations,
// oldest first.
func (s *ConversationService) GetMessages(ctx context.Context, userID, publicID string) ([]*domain.Message, error) {
	ctx, span := telemetry.StartSpan(ctx, "ConversationService.GetMessages", telemetry.SpanAttributes{
		UserID:         userID,
		ConversationID: publicID,
		Operation:      "get_messages",
	})
	defer span.End()

	conversation, err := s.conversationRepo.GetByPublicID(ctx, publicID, userID)
	if err != nil {
		return nil, err
	}

	return s.messageRepo.ListByConversation(ctx, conversation.ID)
}

type ListConversationsInput struct {
	UserID string
	Cursor string
	Limit  int
}

type ListConversationsOutput struct {
	Items   []*domain.Conversation
	Cursor  string
	HasMore bool
}

// ListConversations pages through the user's conversations, newest first.
func (s *ConversationService) ListConversations(ctx context.Context, input ListConversationsInput) (*ListConversationsOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "ConversationService.ListConversations", telemetry.SpanAttributes{
		UserID:    input.UserID,
		Operation: "list_conversations",
	})
	defer span.End()

	cursor, _ := pagination.DecodeCursor(input.Cursor)
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	result, err := s.conversationRepo.ListByUserWithCursor(ctx, input.UserID, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &ListConversationsOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}
