package service

import (
	"context"
	"fmt"
	"time"

	"github.com/hivemesh/hivemesh/internal/domain"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingMessageRepository defines the repository interface for loading messages to embed
type EmbeddingMessageRepository interface {
	GetMessageByID(ctx context.Context, id int64) (*domain.Message, error)
}

// MessageChunkRepository defines the repository interface for chunked message embeddings
type MessageChunkRepository interface {
	ReplaceMessageChunks(ctx context.Context, messageID int64, chunks []domain.MessageEmbedding) error
}

// ChunkEmbedding is one embedded chunk of a larger text.
type ChunkEmbedding struct {
	Index     int
	Content   string
	Embedding []float32
}

// EmbeddingService turns message and resource content into chunk embeddings
type EmbeddingService struct {
	client      EmbeddingClient
	messageRepo EmbeddingMessageRepository
	chunkRepo   MessageChunkRepository
	chunkCfg    ChunkConfig
}

// NewEmbeddingService creates a new EmbeddingService instance
func NewEmbeddingService(client EmbeddingClient, messageRepo EmbeddingMessageRepository, chunkRepo MessageChunkRepository) *EmbeddingService {
	return &EmbeddingService{
		client:      client,
		messageRepo: messageRepo,
		chunkRepo:   chunkRepo,
		chunkCfg:    DefaultChunkConfig(),
	}
}

// GenerateMessageEmbeddings chunks a message and stores one embedding per chunk.
// This method is called by the background worker.
func (s *EmbeddingService) GenerateMessageEmbeddings(ctx context.Context, messageID int64) error {
	message, err := s.messageRepo.GetMessageByID(ctx, messageID)
	if err != nil {
		return err
	}

	embedded, err := s.EmbedChunks(ctx, message.Content)
	if err != nil {
		return err
	}

	createdAt := time.Now().UTC()
	entries := make([]domain.MessageEmbedding, 0, len(embedded))
	for _, chunk := range embedded {
		entries = append(entries, domain.MessageEmbedding{
			MessageID:  message.ID,
			Content:    chunk.Content,
			Embedding:  chunk.Embedding,
			ChunkIndex: chunk.Index,
			CreatedAt:  createdAt,
		})
	}

	if err := s.chunkRepo.ReplaceMessageChunks(ctx, message.ID, entries); err != nil {
		return fmt.Errorf("failed to update message chunks: %w", err)
	}

	return nil
}

// EmbedChunks chunks text and generates one embedding per chunk.
func (s *EmbeddingService) EmbedChunks(ctx context.Context, text string) ([]ChunkEmbedding, error) {
	chunks := chunkText(text, s.chunkCfg)
	embedded := make([]ChunkEmbedding, 0, len(chunks))

	for i, chunk := range chunks {
		embedding, err := s.client.GenerateEmbedding(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("failed to generate chunk embedding: %w", err)
		}
		embedded = append(embedded, ChunkEmbedding{
			Index:     i,
			Content:   chunk,
			Embedding: embedding,
		})
	}

	return embedded, nil
}
