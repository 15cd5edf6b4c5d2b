//go:build integration

package repository

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hivemesh/hivemesh/internal/domain"
	"github.com/hivemesh/hivemesh/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

const testVectorDim = 1536

// testVectorWithSim builds a unit vector whose cosine similarity to the
// canonical query vector (1,0,0,...) is exactly sim, so cosine distance
// to the query is 1-sim.
func testVectorWithSim(sim float64) []float32 {
	v := make([]float32, testVectorDim)
	v[0] = float32(sim)
	v[1] = float32(math.Sqrt(1 - sim*sim))
	return v
}

// testQueryVector is the canonical query all test vectors are measured against.
func testQueryVector() []float32 {
	v := make([]float32, testVectorDim)
	v[0] = 1
	return v
}

// testVectorAtMaxEdge has cosine distance to the query of exactly 0.5:
// dot product 1 against norm 2, both exact in float arithmetic, so the
// exclusive upper bound is hit with no rounding slack.
func testVectorAtMaxEdge() []float32 {
	v := make([]float32, testVectorDim)
	v[0], v[1], v[2], v[3] = 1, 1, 1, 1
	return v
}

func seedOrg(ctx context.Context, t *testing.T, pool *pgxpool.Pool) *domain.Organization {
	t.Helper()
	org := &domain.Organization{
		ID:        uuid.NewString(),
		Name:      "org-" + uuid.NewString(),
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, NewOrgRepository(pool).Create(ctx, org))
	return org
}

func seedUser(ctx context.Context, t *testing.T, pool *pgxpool.Pool, orgID, name string) *domain.User {
	t.Helper()
	user := &domain.User{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		Name:      name,
		Email:     uuid.NewString() + "@example.com",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, NewUserRepository(pool).Create(ctx, user))
	return user
}

// seedChunk creates a conversation, a message, and one embedded chunk for
// the user and returns the chunk's embedding id.
func seedChunk(ctx context.Context, t *testing.T, pool *pgxpool.Pool, orgID, userID, content string, embedding []float32) int64 {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)

	conversation := &domain.Conversation{
		PublicID:  uuid.NewString(),
		UserID:    userID,
		OrgID:     orgID,
		Title:     domain.ConversationTitle(content),
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, NewConversationRepository(pool).Create(ctx, conversation))

	message := &domain.Message{
		ConversationID: conversation.ID,
		Role:           domain.MessageRoleUser,
		Content:        content,
		CreatedAt:      now,
	}
	require.NoError(t, NewMessageRepository(pool).Create(ctx, message))

	embeddingRepo := NewEmbeddingRepository(pool)
	require.NoError(t, embeddingRepo.ReplaceMessageChunks(ctx, message.ID, []domain.MessageEmbedding{
		{MessageID: message.ID, Content: content, Embedding: embedding, ChunkIndex: 0, CreatedAt: now},
	}))

	var embeddingID int64
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT id FROM message_embeddings WHERE message_id = $1`, message.ID,
	).Scan(&embeddingID))
	return embeddingID
}

func seedPendingRequest(ctx context.Context, t *testing.T, pool *pgxpool.Pool, requesterID, ownerID string, embeddingID int64) *domain.KnowledgeRequest {
	t.Helper()
	req := &domain.KnowledgeRequest{
		RequesterID: requesterID,
		OwnerID:     ownerID,
		EmbeddingID: embeddingID,
		Question:    "may I see this?",
		Status:      domain.RequestStatusPending,
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, NewRequestRepository(pool).Create(ctx, req))
	return req
}

func defaultTestRetrievalConfig() service.RetrievalConfig {
	return service.DefaultRetrievalConfig()
}
