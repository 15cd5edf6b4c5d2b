package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hivemesh/hivemesh/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockEmbeddingMessageRepository is a mock implementation of EmbeddingMessageRepository
type MockEmbeddingMessageRepository struct {
	mock.Mock
}

func (m *MockEmbeddingMessageRepository) GetMessageByID(ctx context.Context, id int64) (*domain.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

// MockMessageChunkRepository is a mock implementation of MessageChunkRepository
type MockMessageChunkRepository struct {
	mock.Mock
}

func (m *MockMessageChunkRepository) ReplaceMessageChunks(ctx context.Context, messageID int64, chunks []domain.MessageEmbedding) error {
	args := m.Called(ctx, messageID, chunks)
	return args.Error(0)
}

func TestEmbeddingService_GenerateMessageEmbeddings(t *testing.T) {
	ctx := context.Background()

	t.Run("stores one embedding per chunk", func(t *testing.T) {
		msgRepo := new(MockEmbeddingMessageRepository)
		chunkRepo := new(MockMessageChunkRepository)
		client := new(MockEmbeddingClient)

		msgRepo.On("GetMessageByID", ctx, int64(101)).Return(&domain.Message{
			ID:      101,
			Content: "we deploy with make release",
		}, nil)
		client.On("GenerateEmbedding", ctx, "we deploy with make release").Return([]float32{0.1}, nil)
		chunkRepo.On("ReplaceMessageChunks", ctx, int64(101), mock.MatchedBy(func(chunks []domain.MessageEmbedding) bool {
			return len(chunks) == 1 && chunks[0].MessageID == 101 && chunks[0].ChunkIndex == 0
		})).Return(nil)

		svc := NewEmbeddingService(client, msgRepo, chunkRepo)
		err := svc.GenerateMessageEmbeddings(ctx, 101)

		require.NoError(t, err)
		chunkRepo.AssertExpectations(t)
	})

	t.Run("provider failure aborts without writing chunks", func(t *testing.T) {
		msgRepo := new(MockEmbeddingMessageRepository)
		chunkRepo := new(MockMessageChunkRepository)
		client := new(MockEmbeddingClient)

		msgRepo.On("GetMessageByID", ctx, int64(101)).Return(&domain.Message{ID: 101, Content: "text"}, nil)
		client.On("GenerateEmbedding", ctx, "text").Return(nil, errors.New("rate limited"))

		svc := NewEmbeddingService(client, msgRepo, chunkRepo)
		err := svc.GenerateMessageEmbeddings(ctx, 101)

		require.Error(t, err)
		chunkRepo.AssertNotCalled(t, "ReplaceMessageChunks", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing message surfaces not found", func(t *testing.T) {
		msgRepo := new(MockEmbeddingMessageRepository)
		msgRepo.On("GetMessageByID", ctx, int64(5)).Return(nil, domain.ErrMessageNotFound)

		svc := NewEmbeddingService(new(MockEmbeddingClient), msgRepo, new(MockMessageChunkRepository))
		err := svc.GenerateMessageEmbeddings(ctx, 5)

		assert.ErrorIs(t, err, domain.ErrMessageNotFound)
	})
}

func TestChunkText(t *testing.T) {
	cfg := ChunkConfig{MaxChars: 40, MinChars: 10, Overlap: 5, MaxChunks: 10}

	t.Run("short text stays whole", func(t *testing.T) {
		chunks := chunkText("one short sentence.", cfg)
		require.Len(t, chunks, 1)
		assert.Equal(t, "one short sentence.", chunks[0])
	})

	t.Run("empty text produces no chunks", func(t *testing.T) {
		assert.Nil(t, chunkText("   ", cfg))
	})

	t.Run("long text splits at sentence boundaries", func(t *testing.T) {
		text := "First sentence ends here. Second sentence is also here. Third one closes it out."
		chunks := chunkText(text, cfg)
		require.Greater(t, len(chunks), 1)
		assert.True(t, strings.HasSuffix(chunks[0], "."), "chunk should end at a sentence boundary: %q", chunks[0])
	})

	t.Run("respects max chunk count", func(t *testing.T) {
		text := strings.Repeat("word word word word word. ", 100)
		chunks := chunkText(text, cfg)
		assert.LessOrEqual(t, len(chunks), cfg.MaxChunks)
	})
}
