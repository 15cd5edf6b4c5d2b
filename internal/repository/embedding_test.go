//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/hivemesh/hivemesh/internal/domain"
	"github.com/hivemesh/hivemesh/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingRepository_TieredSearch(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	org := seedOrg(ctx, t, pool)
	alice := seedUser(ctx, t, pool, org.ID, "Alice")
	bob := seedUser(ctx, t, pool, org.ID, "Bob")

	// Alice owns a chunk inside the band (distance 0.2), one that is a
	// near-duplicate of the query (distance 0.001), and one off-topic
	// (distance 0.7).
	inBand := seedChunk(ctx, t, pool, org.ID, alice.ID, "relevant notes", testVectorWithSim(0.8))
	seedChunk(ctx, t, pool, org.ID, alice.ID, "near duplicate", testVectorWithSim(0.999))
	seedChunk(ctx, t, pool, org.ID, alice.ID, "off topic", testVectorWithSim(0.3))

	// Bob owns two chunks in the band, one of which is granted to Alice.
	bobShared := seedChunk(ctx, t, pool, org.ID, bob.ID, "bob shared this", testVectorWithSim(0.85))
	bobPrivate := seedChunk(ctx, t, pool, org.ID, bob.ID, "bob keeps this", testVectorWithSim(0.75))

	grantRepo := NewGrantRepository(pool)
	require.NoError(t, grantRepo.Create(ctx, &domain.KnowledgeShare{
		EmbeddingID:      bobShared,
		OwnerID:          bob.ID,
		SharedWithUserID: alice.ID,
		CreatedAt:        time.Now().UTC(),
	}))

	repo := NewEmbeddingRepository(pool)
	cfg := defaultTestRetrievalConfig()
	query := testQueryVector()

	t.Run("own tier applies the open distance band", func(t *testing.T) {
		matches, err := repo.SearchOwnChunks(ctx, query, alice.ID, cfg)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, inBand, matches[0].EmbeddingID)
		assert.Equal(t, "Alice", matches[0].OwnerName)
		assert.InDelta(t, 0.2, matches[0].Distance, 0.01)
	})

	t.Run("shared tier returns only granted chunks", func(t *testing.T) {
		matches, err := repo.SearchSharedChunks(ctx, query, alice.ID, cfg)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, bobShared, matches[0].EmbeddingID)
		assert.Equal(t, "Bob", matches[0].OwnerName)
	})

	t.Run("org tier excludes own and granted chunks", func(t *testing.T) {
		matches, err := repo.SearchOrgChunks(ctx, query, org.ID, alice.ID, cfg)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, bobPrivate, matches[0].EmbeddingID)
		assert.NotEmpty(t, matches[0].OwnerEmail)
	})

	t.Run("chunk owner lookup", func(t *testing.T) {
		owner, err := repo.GetChunkOwner(ctx, bobPrivate)
		require.NoError(t, err)
		assert.Equal(t, bob.ID, owner.OwnerID)
		assert.Equal(t, "bob keeps this", owner.Content)

		_, err = repo.GetChunkOwner(ctx, 999999)
		assert.ErrorIs(t, err, domain.ErrEmbeddingNotFound)
	})

	t.Run("band upper bound is exclusive", func(t *testing.T) {
		atEdge := seedChunk(ctx, t, pool, org.ID, alice.ID, "exactly at the edge", testVectorAtMaxEdge())
		justInside := seedChunk(ctx, t, pool, org.ID, alice.ID, "just inside the band", testVectorWithSim(0.5001))

		matches, err := repo.SearchOwnChunks(ctx, query, alice.ID, cfg)
		require.NoError(t, err)

		ids := make([]int64, 0, len(matches))
		for _, m := range matches {
			ids = append(ids, m.EmbeddingID)
		}
		// distance 0.4999 is in, distance exactly 0.5 is out
		assert.Contains(t, ids, justInside)
		assert.NotContains(t, ids, atEdge)
	})

	t.Run("replacing chunks removes the previous set", func(t *testing.T) {
		var messageID int64
		require.NoError(t, pool.QueryRow(ctx,
			`SELECT message_id FROM message_embeddings WHERE id = $1`, inBand,
		).Scan(&messageID))

		require.NoError(t, repo.ReplaceMessageChunks(ctx, messageID, []domain.MessageEmbedding{
			{MessageID: messageID, Content: "first half", Embedding: testVectorWithSim(0.8), ChunkIndex: 0},
			{MessageID: messageID, Content: "second half", Embedding: testVectorWithSim(0.82), ChunkIndex: 1},
		}))

		var count int
		require.NoError(t, pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM message_embeddings WHERE message_id = $1`, messageID,
		).Scan(&count))
		assert.Equal(t, 2, count)
	})
}

func TestEmbeddingRepository_ResourceSearch(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	org := seedOrg(ctx, t, pool)
	user := seedUser(ctx, t, pool, org.ID, "Admin")

	resourceRepo := NewResourceRepository(pool)
	now := time.Now().UTC().Truncate(time.Microsecond)

	live := &domain.Resource{OrgID: org.ID, UserID: user.ID, Content: "handbook", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, resourceRepo.Create(ctx, live))
	require.NoError(t, resourceRepo.ReplaceChunks(ctx, live.ID, []domain.ResourceEmbedding{
		{ResourceID: live.ID, Content: "handbook", Embedding: testVectorWithSim(0.8), ChunkIndex: 0},
	}))

	buried := &domain.Resource{OrgID: org.ID, UserID: user.ID, Content: "old policy", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, resourceRepo.Create(ctx, buried))
	require.NoError(t, resourceRepo.ReplaceChunks(ctx, buried.ID, []domain.ResourceEmbedding{
		{ResourceID: buried.ID, Content: "old policy", Embedding: testVectorWithSim(0.9), ChunkIndex: 0},
	}))
	require.NoError(t, resourceRepo.SoftDelete(ctx, buried.ID, org.ID, now))

	repo := NewEmbeddingRepository(pool)
	matches, err := repo.SearchResourceChunks(ctx, testQueryVector(), org.ID, defaultTestRetrievalConfig())
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, live.ID, matches[0].ResourceID)

	// soft-deleted resources stay listed out as well
	resources, err := resourceRepo.ListByOrg(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, live.ID, resources[0].ID)
}
