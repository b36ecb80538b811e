package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"customer-support-rag/models"
)

type fakeAI struct {
	tokens         []string
	followupRaw    string
	completeCalled bool
	answerPrompt   string
	followupPrompt string
}

func (f *fakeAI) EmbedText(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeAI) StreamAnswer(_ context.Context, prompt string, onToken func(string) error) (string, error) {
	f.answerPrompt = prompt
	var sb strings.Builder
	for _, token := range f.tokens {
		if err := onToken(token); err != nil {
			return "", err
		}
		sb.WriteString(token)
	}
	return sb.String(), nil
}

func (f *fakeAI) Complete(_ context.Context, prompt string) (string, error) {
	f.completeCalled = true
	f.followupPrompt = prompt
	return f.followupRaw, nil
}

type fakeRetriever struct {
	chunks []models.ScoredChunk
	err    error
}

func (f *fakeRetriever) Search(_ context.Context, _ []float32, _ int) ([]models.ScoredChunk, error) {
	return f.chunks, f.err
}

type recordedEvents struct {
	contents  []string
	followups [][]string
}

func (r *recordedEvents) OnContent(token string) error {
	r.contents = append(r.contents, token)
	return nil
}

func (r *recordedEvents) OnFollowups(questions []string) error {
	r.followups = append(r.followups, questions)
	return nil
}

func scored(text, source string, score float32) models.ScoredChunk {
	return models.ScoredChunk{
		Text:  text,
		Score: score,
		Metadata: models.ChunkMetadata{
			DocumentID: "doc-1",
			SourcePath: source,
		},
	}
}

func TestAnswerStreamsContentAndFollowups(t *testing.T) {
	ai := &fakeAI{
		tokens:      []string{"Refunds take ", "five days."},
		followupRaw: "How do I request a refund?\nWhat if my card expired?",
	}
	retriever := &fakeRetriever{chunks: []models.ScoredChunk{
		scored("Refunds are processed within five business days.", "docs/refunds.pdf", 0.92),
		scored("Contact support for escalations.", "docs/contact.pdf", 0.81),
		scored("Unrelated onboarding notes.", "docs/onboarding.pdf", 0.40),
	}}

	svc := NewResponderService(ai, retriever, 5, 0.7, 3)
	events := &recordedEvents{}

	result, err := svc.Answer(context.Background(), "How long do refunds take?", events)
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}

	if got := strings.Join(events.contents, ""); got != "Refunds take five days." {
		t.Errorf("Streamed content = %q", got)
	}
	if result.Answer != "Refunds take five days." {
		t.Errorf("Answer = %q", result.Answer)
	}

	if !strings.Contains(ai.answerPrompt, "Refunds are processed") {
		t.Error("Prompt is missing the top retrieved chunk")
	}
	if !strings.Contains(ai.answerPrompt, "How long do refunds take?") {
		t.Error("Prompt is missing the question")
	}
	if strings.Contains(ai.answerPrompt, "onboarding notes") {
		t.Error("Chunk under the similarity floor leaked into the prompt")
	}

	if len(events.followups) != 1 {
		t.Fatalf("Expected one followup event, got %d", len(events.followups))
	}
	want := []string{"How do I request a refund?", "What if my card expired?"}
	got := events.followups[0]
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Followups = %v, want %v", got, want)
	}
	if !strings.Contains(ai.followupPrompt, "Refunds take five days.") {
		t.Error("Followup prompt is missing the answer")
	}

	if result.Retrieved != 2 {
		t.Errorf("Retrieved = %d, want 2", result.Retrieved)
	}
	wantSources := []string{"docs/refunds.pdf", "docs/contact.pdf"}
	if len(result.Sources) != 2 || result.Sources[0] != wantSources[0] || result.Sources[1] != wantSources[1] {
		t.Errorf("Sources = %v, want %v", result.Sources, wantSources)
	}
}

func TestAnswerRejectsEmptyQuestion(t *testing.T) {
	svc := NewResponderService(&fakeAI{}, &fakeRetriever{}, 5, 0.7, 3)

	_, err := svc.Answer(context.Background(), "   ", &recordedEvents{})
	if !errors.Is(err, models.ErrEmptyQuery) {
		t.Errorf("Expected ErrEmptyQuery, got %v", err)
	}
}

func TestAnswerWithoutContextSkipsFollowups(t *testing.T) {
	ai := &fakeAI{tokens: []string{"I don't know"}}
	svc := NewResponderService(ai, &fakeRetriever{}, 5, 0.7, 3)
	events := &recordedEvents{}

	result, err := svc.Answer(context.Background(), "What is the meaning of life?", events)
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}

	if !strings.Contains(ai.answerPrompt, "No documents matched") {
		t.Error("Empty retrieval should be stated in the prompt")
	}
	if ai.completeCalled {
		t.Error("Follow-up call should be skipped without context")
	}
	if len(events.followups) != 0 {
		t.Errorf("Unexpected followup events: %v", events.followups)
	}
	if result.Retrieved != 0 {
		t.Errorf("Retrieved = %d, want 0", result.Retrieved)
	}
}

func TestAnswerPropagatesMissingCollection(t *testing.T) {
	retriever := &fakeRetriever{err: models.ErrCollectionNotFound}
	svc := NewResponderService(&fakeAI{}, retriever, 5, 0.7, 3)

	_, err := svc.Answer(context.Background(), "Anything indexed?", &recordedEvents{})
	if !errors.Is(err, models.ErrCollectionNotFound) {
		t.Errorf("Expected ErrCollectionNotFound, got %v", err)
	}
}

func TestFormatContextNumbersDocuments(t *testing.T) {
	chunks := []models.ScoredChunk{
		scored("First chunk.", "a.pdf", 0.9),
		scored("Second chunk.", "b.pdf", 0.8),
	}

	got := FormatContext(chunks)
	if !strings.Contains(got, "**Document 0**:\nFirst chunk.\n(Source: [a.pdf](a.pdf))") {
		t.Errorf("Document 0 misformatted:\n%s", got)
	}
	if !strings.Contains(got, "**Document 1**:\nSecond chunk.\n(Source: [b.pdf](b.pdf))") {
		t.Errorf("Document 1 misformatted:\n%s", got)
	}
}

func TestParseFollowupQuestions(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		limit int
		want  []string
	}{
		{
			name:  "plain lines",
			raw:   "How do refunds work?\nWhere is my order?",
			limit: 3,
			want:  []string{"How do refunds work?", "Where is my order?"},
		},
		{
			name:  "numbered and bulleted",
			raw:   "1. How do refunds work?\n- Where is my order?\n* Can I cancel?",
			limit: 3,
			want:  []string{"How do refunds work?", "Where is my order?", "Can I cancel?"},
		},
		{
			name:  "noise and blanks dropped",
			raw:   "Here are some ideas:\n\nHow do refunds work?\nThanks!",
			limit: 3,
			want:  []string{"How do refunds work?"},
		},
		{
			name:  "limit respected",
			raw:   "A?\nB?\nC?\nD?",
			limit: 2,
			want:  []string{"A?", "B?"},
		},
		{
			name:  "duplicates collapsed",
			raw:   "How do refunds work?\nHow do refunds work?",
			limit: 3,
			want:  []string{"How do refunds work?"},
		},
		{
			name:  "quoted lines cleaned",
			raw:   "\"Can I change my plan?\"",
			limit: 3,
			want:  []string{"Can I change my plan?"},
		},
		{
			name:  "empty reply",
			raw:   "",
			limit: 3,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseFollowupQuestions(tt.raw, tt.limit)
			if len(got) != len(tt.want) {
				t.Fatalf("ParseFollowupQuestions(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("questions[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
