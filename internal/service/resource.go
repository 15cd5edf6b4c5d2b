package service

import (
	"context"
	"time"

	"github.com/hivemesh/hivemesh/internal/domain"
	"github.com/hivemesh/hivemesh/internal/telemetry"
)

// ResourceRepositoryInterface defines read access to organization resources
type ResourceRepositoryInterface interface {
	GetByID(ctx context.Context, id int64, orgID string) (*domain.Resource, error)
	ListByOrg(ctx context.Context, orgID string) ([]*domain.Resource, error)
}

// ResourceTxRepository is the transaction-bound slice of the resource repository.
type ResourceTxRepository interface {
	Create(ctx context.Context, r *domain.Resource) error
	UpdateContent(ctx context.Context, r *domain.Resource) error
	ReplaceChunks(ctx context.Context, resourceID int64, chunks []domain.ResourceEmbedding) error
	SoftDelete(ctx context.Context, id int64, orgID string, at time.Time) error
	HardDelete(ctx context.Context, id int64, orgID string) error
}

// ChunkEmbedder produces chunk embeddings for a blob of text.
type ChunkEmbedder interface {
	EmbedChunks(ctx context.Context, text string) ([]ChunkEmbedding, error)
}

// ResourceService manages shared organization knowledge that is not tied
// to any conversation. A resource and its chunk embeddings always change
// together in one transaction.
type ResourceService struct {
	repo     ResourceRepositoryInterface
	embedder ChunkEmbedder
	txRunner TxRunner
}

func NewResourceService(repo ResourceRepositoryInterface, embedder ChunkEmbedder, txRunner TxRunner) *ResourceService {
	return &ResourceService{
		repo:     repo,
		embedder: embedder,
		txRunner: txRunner,
	}
}

// CreateResourceInput represents the input for creating an organization resource
type CreateResourceInput struct {
	OrgID   string
	UserID  string
	Content string
}

// Create stores a resource and its chunk embeddings. Embeddings are
// generated before the transaction opens so a slow embedding provider
// never holds database locks.
func (s *ResourceService) Create(ctx context.Context, input CreateResourceInput) (*domain.Resource, error) {
	ctx, span := telemetry.StartSpan(ctx, "ResourceService.Create", telemetry.SpanAttributes{
		OrgID:     input.OrgID,
		UserID:    input.UserID,
		Operation: "create",
	})
	defer span.End()

	now := time.Now().UTC()
	resource := &domain.Resource{
		OrgID:     input.OrgID,
		UserID:    input.UserID,
		Content:   input.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := domain.ValidateResource(resource); err != nil {
		return nil, err
	}

	embedded, err := s.embedder.EmbedChunks(ctx, input.Content)
	if err != nil {
		return nil, err
	}

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Resources().Create(ctx, resource); err != nil {
			return err
		}
		return repos.Resources().ReplaceChunks(ctx, resource.ID, resourceChunks(resource.ID, embedded, now))
	})
	if err != nil {
		return nil, err
	}

	return resource, nil
}

// UpdateResourceInput represents the input for replacing a resource's content
type UpdateResourceInput struct {
	ResourceID int64
	OrgID      string
	Content    string
}

// Update replaces a resource's content and regenerates its chunks
// atomically, so searches never see a half-updated resource.
func (s *ResourceService) Update(ctx context.Context, input UpdateResourceInput) (*domain.Resource, error) {
	ctx, span := telemetry.StartSpan(ctx, "ResourceService.Update", telemetry.SpanAttributes{
		OrgID:     input.OrgID,
		Operation: "update",
	})
	defer span.End()

	resource, err := s.repo.GetByID(ctx, input.ResourceID, input.OrgID)
	if err != nil {
		return nil, err
	}
	if resource.IsDeleted() {
		return nil, domain.ErrResourceNotFound
	}

	now := time.Now().UTC()
	resource.Content = input.Content
	resource.UpdatedAt = now

	if err := domain.ValidateResource(resource); err != nil {
		return nil, err
	}

	embedded, err := s.embedder.EmbedChunks(ctx, input.Content)
	if err != nil {
		return nil, err
	}

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Resources().UpdateContent(ctx, resource); err != nil {
			return err
		}
		return repos.Resources().ReplaceChunks(ctx, resource.ID, resourceChunks(resource.ID, embedded, now))
	})
	if err != nil {
		return nil, err
	}

	return resource, nil
}

// SoftDelete hides a resource from retrieval while keeping the row.
func (s *ResourceService) SoftDelete(ctx context.Context, resourceID int64, orgID string) error {
	ctx, span := telemetry.StartSpan(ctx, "ResourceService.SoftDelete", telemetry.SpanAttributes{
		OrgID:     orgID,
		Operation: "soft_delete",
	})
	defer span.End()

	return s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		return repos.Resources().SoftDelete(ctx, resourceID, orgID, time.Now().UTC())
	})
}

// HardDelete removes a resource and its chunks permanently.
func (s *ResourceService) HardDelete(ctx context.Context, resourceID int64, orgID string) error {
	ctx, span := telemetry.StartSpan(ctx, "ResourceService.HardDelete", telemetry.SpanAttributes{
		OrgID:     orgID,
		Operation: "hard_delete",
	})
	defer span.End()

	return s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		return repos.Resources().HardDelete(ctx, resourceID, orgID)
	})
}

// List returns the organization's resources, excluding soft-deleted ones.
func (s *ResourceService) List(ctx context.Context, orgID string) ([]*domain.Resource, error) {
	return s.repo.ListByOrg(ctx, orgID)
}

func resourceChunks(resourceID int64, embedded []ChunkEmbedding, createdAt time.Time) []domain.ResourceEmbedding {
	chunks := make([]domain.ResourceEmbedding, 0, len(embedded))
	for _, chunk := range embedded {
		chunks = append(chunks, domain.ResourceEmbedding{
			ResourceID: resourceID,
			Content:    chunk.Content,
			Embedding:  chunk.Embedding,
			ChunkIndex: chunk.Index,
			CreatedAt:  createdAt,
		})
	}
	return chunks
}
