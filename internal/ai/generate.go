package ai

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/iterator"

	genai "github.com/google/generative-ai-go/genai"
)

// StreamAnswer generates a response to prompt, forwarding each text
// fragment to onToken as it arrives. The full answer is returned once
// the stream completes. If onToken returns an error (caller gone),
// generation stops and that error is surfaced.
func (c *Client) StreamAnswer(ctx context.Context, prompt string, onToken func(string) error) (string, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.generate_stream")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", c.genModel),
		attribute.Int("gemini.prompt_chars", len(prompt)),
	)

	result, err := c.execute(ctx, func() (interface{}, error) {
		model := c.generativeModel()
		iter := model.GenerateContentStream(ctx, genai.Text(prompt))

		var answer strings.Builder
		var totalTokens int32
		for {
			resp, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return nil, err
			}
			if resp.UsageMetadata != nil {
				totalTokens = resp.UsageMetadata.TotalTokenCount
			}

			fragment := responseText(resp)
			if fragment == "" {
				continue
			}
			answer.WriteString(fragment)
			if err := onToken(fragment); err != nil {
				return nil, err
			}
		}

		span.SetAttributes(attribute.Int("gemini.total_tokens", int(totalTokens)))
		c.metrics.RecordTokensUsed(int64(totalTokens), c.genModel)
		return answer.String(), nil
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return "", err
	}

	answer := result.(string)
	span.SetAttributes(attribute.Int("gemini.answer_chars", len(answer)))
	return answer, nil
}

// Complete generates a response without streaming (follow-up questions,
// short auxiliary calls).
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", c.genModel),
		attribute.Int("gemini.prompt_chars", len(prompt)),
	)

	result, err := c.execute(ctx, func() (interface{}, error) {
		model := c.generativeModel()
		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return nil, err
		}
		if resp.UsageMetadata != nil {
			span.SetAttributes(attribute.Int("gemini.total_tokens", int(resp.UsageMetadata.TotalTokenCount)))
			c.metrics.RecordTokensUsed(int64(resp.UsageMetadata.TotalTokenCount), c.genModel)
		}

		text := responseText(resp)
		if text == "" {
			return nil, fmt.Errorf("model returned no text")
		}
		return text, nil
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return "", err
	}
	return result.(string), nil
}

func (c *Client) generativeModel() *genai.GenerativeModel {
	model := c.client.GenerativeModel(c.genModel)
	model.SetTemperature(c.temperature)
	model.SetMaxOutputTokens(c.maxTokens)
	return model
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		break
	}
	return sb.String()
}
