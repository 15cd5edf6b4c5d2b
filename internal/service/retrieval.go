package service

import (
	"context"
	"strings"

	"github.com/hivemesh/hivemesh/internal/domain"
	"github.com/hivemesh/hivemesh/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

// RetrievalConfig bounds the similarity band and per-tier result counts.
// The band is an open interval on cosine distance: chunks at or below
// MinDistance are near-duplicates of the query and chunks at or above
// MaxDistance are off-topic, so both are excluded.
type RetrievalConfig struct {
	MinDistance     float64
	MaxDistance     float64
	SourceLimit     int
	SuggestionLimit int
}

// DefaultRetrievalConfig provides the standard similarity band and limits.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		MinDistance:     0.01,
		MaxDistance:     0.5,
		SourceLimit:     4,
		SuggestionLimit: 2,
	}
}

// ChunkMatch is a message chunk matched by a vector search, with its owner.
type ChunkMatch struct {
	EmbeddingID int64
	Content     string
	OwnerID     string
	OwnerName   string
	OwnerEmail  string
	Distance    float64
}

// ResourceMatch is an organization resource chunk matched by a vector search.
type ResourceMatch struct {
	EmbeddingID int64
	ResourceID  int64
	Content     string
	Distance    float64
}

// RetrievalRepositoryInterface defines the vector searches behind tiered retrieval.
// SearchOrgChunks must exclude the searching user's own chunks and chunks
// already shared with them, so its results never overlap the other tiers.
type RetrievalRepositoryInterface interface {
	SearchOwnChunks(ctx context.Context, embedding []float32, userID string, cfg RetrievalConfig) ([]*ChunkMatch, error)
	SearchSharedChunks(ctx context.Context, embedding []float32, userID string, cfg RetrievalConfig) ([]*ChunkMatch, error)
	SearchOrgChunks(ctx context.Context, embedding []float32, orgID, userID string, cfg RetrievalConfig) ([]*ChunkMatch, error)
	SearchResourceChunks(ctx context.Context, embedding []float32, orgID string, cfg RetrievalConfig) ([]*ResourceMatch, error)
}

// KnowledgeSource is a chunk the requesting user may read directly.
type KnowledgeSource struct {
	EmbeddingID int64
	Content     string
	OwnerID     string
	OwnerName   string
	Shared      bool
	Distance    float64
}

// KnowledgeSuggestion points at a relevant chunk the user cannot read yet.
// Content is withheld until the owner approves a request for it.
type KnowledgeSuggestion struct {
	EmbeddingID int64
	OwnerID     string
	OwnerName   string
	OwnerEmail  string
	Distance    float64
}

type RetrieveInput struct {
	Question string
	UserID   string
	OrgID    string
}

type RetrieveOutput struct {
	Sources     []KnowledgeSource
	Suggestions []KnowledgeSuggestion
	Resources   []ResourceMatch
}

// RetrievalService answers questions with tiered semantic retrieval: the
// user's own chunks first, then chunks shared with them, then suggestions
// pointing at other members' knowledge.
type RetrievalService struct {
	repo      RetrievalRepositoryInterface
	embedding EmbeddingClient
	cfg       RetrievalConfig
}

func NewRetrievalService(repo RetrievalRepositoryInterface, embedding EmbeddingClient, cfg RetrievalConfig) *RetrievalService {
	if cfg.SourceLimit <= 0 {
		cfg = DefaultRetrievalConfig()
	}
	return &RetrievalService{
		repo:      repo,
		embedding: embedding,
		cfg:       cfg,
	}
}

// Retrieve runs all tiers concurrently against a single query embedding.
func (s *RetrievalService) Retrieve(ctx context.Context, input RetrieveInput) (*RetrieveOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Retrieve", telemetry.SpanAttributes{
		OrgID:     input.OrgID,
		UserID:    input.UserID,
		Operation: "retrieve",
	})
	defer span.End()

	question := strings.TrimSpace(input.Question)
	if question == "" {
		return &RetrieveOutput{
			Sources:     []KnowledgeSource{},
			Suggestions: []KnowledgeSuggestion{},
			Resources:   []ResourceMatch{},
		}, nil
	}
	if input.UserID == "" || input.OrgID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "user and organization are required")
	}

	embedding, err := s.embedding.GenerateEmbedding(ctx, question)
	if err != nil {
		span.Fail(err)
		return nil, err
	}

	var (
		own       []*ChunkMatch
		shared    []*ChunkMatch
		suggested []*ChunkMatch
		resources []*ResourceMatch
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		own, err = s.repo.SearchOwnChunks(gctx, embedding, input.UserID, s.cfg)
		return err
	})
	g.Go(func() error {
		var err error
		shared, err = s.repo.SearchSharedChunks(gctx, embedding, input.UserID, s.cfg)
		return err
	})
	g.Go(func() error {
		var err error
		suggested, err = s.repo.SearchOrgChunks(gctx, embedding, input.OrgID, input.UserID, s.cfg)
		return err
	})
	g.Go(func() error {
		var err error
		resources, err = s.repo.SearchResourceChunks(gctx, embedding, input.OrgID, s.cfg)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &RetrieveOutput{
		Sources:     make([]KnowledgeSource, 0, len(own)+len(shared)),
		Suggestions: make([]KnowledgeSuggestion, 0, len(suggested)),
		Resources:   make([]ResourceMatch, 0, len(resources)),
	}

	for _, m := range own {
		out.Sources = append(out.Sources, KnowledgeSource{
			EmbeddingID: m.EmbeddingID,
			Content:     m.Content,
			OwnerID:     m.OwnerID,
			OwnerName:   m.OwnerName,
			Shared:      false,
			Distance:    m.Distance,
		})
	}
	for _, m := range shared {
		out.Sources = append(out.Sources, KnowledgeSource{
			EmbeddingID: m.EmbeddingID,
			Content:     m.Content,
			OwnerID:     m.OwnerID,
			OwnerName:   m.OwnerName,
			Shared:      true,
			Distance:    m.Distance,
		})
	}
	for _, m := range suggested {
		out.Suggestions = append(out.Suggestions, KnowledgeSuggestion{
			EmbeddingID: m.EmbeddingID,
			OwnerID:     m.OwnerID,
			OwnerName:   m.OwnerName,
			OwnerEmail:  m.OwnerEmail,
			Distance:    m.Distance,
		})
	}
	for _, m := range resources {
		out.Resources = append(out.Resources, *m)
	}

	return out, nil
}
