package ai

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	genai "github.com/google/generative-ai-go/genai"
)

// maxEmbedBatch is the provider's per-request item limit.
const maxEmbedBatch = 100

// EmbedTexts returns one vector per input text, order-preserving.
// The batch is submitted as a single provider request, so a failure
// applies to the whole batch and callers may re-submit it unchanged.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) > maxEmbedBatch {
		return nil, fmt.Errorf("embedding batch of %d exceeds provider limit of %d", len(texts), maxEmbedBatch)
	}

	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.embed_batch")
	defer span.End()
	span.SetAttributes(
		attribute.Int("gemini.batch_size", len(texts)),
		attribute.String("gemini.model", c.embedModel),
	)

	result, err := c.execute(ctx, func() (interface{}, error) {
		model := c.client.EmbeddingModel(c.embedModel)
		batch := model.NewBatch()
		for _, text := range texts {
			batch.AddContent(genai.Text(text))
		}

		resp, err := model.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, err
		}
		if len(resp.Embeddings) != len(texts) {
			return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
		}
		return resp, nil
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return nil, fmt.Errorf("embedding batch failed: %w", err)
	}

	resp := result.(*genai.BatchEmbedContentsResponse)
	vectors := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("no embedding returned for batch item %d", i)
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// EmbedText embeds a single text (query-time path).
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.embed_query")
	defer span.End()
	span.SetAttributes(attribute.String("gemini.model", c.embedModel))

	result, err := c.execute(ctx, func() (interface{}, error) {
		model := c.client.EmbeddingModel(c.embedModel)
		resp, err := model.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, err
		}
		if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
			return nil, fmt.Errorf("no embedding returned")
		}
		return resp.Embedding.Values, nil
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return nil, err
	}
	return result.([]float32), nil
}

// ProbeDimension learns the embedding model's output dimensionality by
// embedding a throwaway string. Used when VECTOR_DIM is left at 0.
func (c *Client) ProbeDimension(ctx context.Context) (int, error) {
	vec, err := c.EmbedText(ctx, "test")
	if err != nil {
		return 0, fmt.Errorf("failed to probe embedding dimension: %w", err)
	}
	return len(vec), nil
}
