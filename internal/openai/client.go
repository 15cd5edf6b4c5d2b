package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// EmbeddingModel is the OpenAI model used for generating embeddings
	EmbeddingModel = openai.AdaEmbeddingV2
	// EmbeddingDimensions is the vector dimension produced by ada-002
	EmbeddingDimensions = 1536
)

var (
	// ErrEmptyText is returned when the input text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when the provider returns a vector of unexpected size
	ErrWrongDimensions = errors.New("embedding has wrong dimensions, expected 1536")
)

// embeddingAPI abstracts the OpenAI embeddings endpoint for testing
type embeddingAPI interface {
	embed(ctx context.Context, text string) ([]float32, error)
}

// Client generates text embeddings through the OpenAI API
type Client struct {
	api embeddingAPI
}

type apiAdapter struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func (a *apiAdapter) embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: a.model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned")
	}

	return resp.Data[0].Embedding, nil
}

// NewClient creates a Client backed by the real OpenAI API
func NewClient(apiKey string) *Client {
	return &Client{
		api: &apiAdapter{
			client: openai.NewClient(apiKey),
			model:  EmbeddingModel,
		},
	}
}

// GenerateEmbedding generates an embedding vector for the given text
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	embedding, err := c.api.embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}

	if len(embedding) != EmbeddingDimensions {
		return nil, ErrWrongDimensions
	}

	return embedding, nil
}
