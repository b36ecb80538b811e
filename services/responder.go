package services

import (
	"context"
	"fmt"
	"strings"

	"customer-support-rag/internal/logger"
	"customer-support-rag/models"
)

// Generator is the slice of the language model client the responder uses.
type Generator interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	StreamAnswer(ctx context.Context, prompt string, onToken func(string) error) (string, error)
	Complete(ctx context.Context, prompt string) (string, error)
}

// Retriever is the read side of the vector store.
type Retriever interface {
	Search(ctx context.Context, vector []float32, topK int) ([]models.ScoredChunk, error)
}

// StreamEvents receives the pieces of an answer as they are produced.
type StreamEvents interface {
	OnContent(token string) error
	OnFollowups(questions []string) error
}

// AnswerResult summarizes a completed answer for logging and tests.
type AnswerResult struct {
	Answer    string   `json:"answer"`
	Followups []string `json:"followups,omitempty"`
	Sources   []string `json:"sources,omitempty"`
	Retrieved int      `json:"retrieved"`
}

// ResponderService answers support questions from indexed documents.
// It embeds the question, retrieves the closest chunks, streams a
// grounded answer and then suggests follow-up questions.
type ResponderService struct {
	ai            Generator
	retriever     Retriever
	maxDocuments  int
	scoreFloor    float64
	followupLimit int
}

func NewResponderService(ai Generator, retriever Retriever, maxDocuments int, similarityThreshold float64, followupLimit int) *ResponderService {
	return &ResponderService{
		ai:            ai,
		retriever:     retriever,
		maxDocuments:  maxDocuments,
		scoreFloor:    similarityThreshold,
		followupLimit: followupLimit,
	}
}

// Answer runs the retrieval pipeline for question and streams the reply
// through events.
func (s *ResponderService) Answer(ctx context.Context, question string, events StreamEvents) (*AnswerResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, models.ErrEmptyQuery
	}

	vector, err := s.ai.EmbedText(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	candidates, err := s.retriever.Search(ctx, vector, s.maxDocuments)
	if err != nil {
		return nil, err
	}
	relevant := filterByScore(candidates, s.scoreFloor)
	logger.Debug("Retrieved context",
		"question_length", len(question),
		"candidates", len(candidates),
		"above_threshold", len(relevant))

	prompt := BuildSupportPrompt(relevant, question)
	answer, err := s.ai.StreamAnswer(ctx, prompt, events.OnContent)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	followups := s.suggestFollowups(ctx, relevant, question, answer)
	if len(followups) > 0 {
		if err := events.OnFollowups(followups); err != nil {
			return nil, err
		}
	}

	return &AnswerResult{
		Answer:    answer,
		Followups: followups,
		Sources:   sourcePaths(relevant),
		Retrieved: len(relevant),
	}, nil
}

// suggestFollowups runs the second model call after the answer is out.
// A failure here only costs the suggestions, never the answer, so it is
// logged and swallowed. Without retrieved context there is nothing to
// ground a suggestion in, so none are made.
func (s *ResponderService) suggestFollowups(ctx context.Context, chunks []models.ScoredChunk, question, answer string) []string {
	if s.followupLimit <= 0 || len(chunks) == 0 {
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}

	raw, err := s.ai.Complete(ctx, BuildFollowupPrompt(chunks, question, answer, s.followupLimit))
	if err != nil {
		logger.Warn("Follow-up generation failed", "error", err)
		return nil
	}
	return ParseFollowupQuestions(raw, s.followupLimit)
}

// filterByScore drops candidates scoring under the floor. The floor is
// a similarity; with a distance metric such as L2 it should be left at
// zero so everything passes.
func filterByScore(chunks []models.ScoredChunk, floor float64) []models.ScoredChunk {
	if floor <= 0 {
		return chunks
	}
	filtered := make([]models.ScoredChunk, 0, len(chunks))
	for _, chunk := range chunks {
		if float64(chunk.Score) >= floor {
			filtered = append(filtered, chunk)
		}
	}
	return filtered
}

func sourcePaths(chunks []models.ScoredChunk) []string {
	seen := make(map[string]bool)
	var out []string
	for _, chunk := range chunks {
		src := chunk.Metadata.SourcePath
		if src == "" || seen[src] {
			continue
		}
		seen[src] = true
		out = append(out, src)
	}
	return out
}
