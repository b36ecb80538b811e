package services

import (
	"fmt"
	"strings"

	"customer-support-rag/models"
)

// supportPromptTemplate keeps the model grounded in retrieved material.
// The model must answer from the documents alone and admit when the
// answer is not there.
const supportPromptTemplate = `You are a helpful customer support chatbot. Your job is to answer user questions using ONLY the information provided in the source documents below.

## Rules:
1. **Only use information from the provided documents** - Never use your own knowledge
2. **If the answer is not in the documents, respond with: "I don't know"**
3. **Be helpful and friendly** - Write in a conversational tone
4. **Keep answers clear and concise** - Don't make them too long

## How to respond:
- **For greetings** (Hi, Hello, How are you): Respond naturally and ask how you can help
- **For questions in the documents**: Give a helpful answer based on the documents
- **For questions NOT in the documents**: Say "I don't know"
- **Always be polite and professional**

## Source Documents:
%s

## User Question:
%s

## Your Response:
`

const followupPromptTemplate = `You are helping a customer support chatbot suggest follow-up questions.

Based on the source documents and the exchange below, suggest up to %d short follow-up questions the user might ask next. Only suggest questions the documents can answer.

Write one question per line. No numbering, no bullets, no commentary. If nothing sensible can be asked, write nothing.

## Source Documents:
%s

## User Question:
%s

## Answer Given:
%s

## Follow-up Questions:
`

// BuildSupportPrompt renders the retrieved context and the question
// into the answering prompt.
func BuildSupportPrompt(chunks []models.ScoredChunk, question string) string {
	return fmt.Sprintf(supportPromptTemplate, FormatContext(chunks), question)
}

// BuildFollowupPrompt renders the prompt for the follow-up suggestion
// call that runs after the answer is complete.
func BuildFollowupPrompt(chunks []models.ScoredChunk, question, answer string, limit int) string {
	return fmt.Sprintf(followupPromptTemplate, limit, FormatContext(chunks), question, answer)
}

// FormatContext lays retrieved chunks out as numbered documents, each
// followed by a markdown source citation.
func FormatContext(chunks []models.ScoredChunk) string {
	if len(chunks) == 0 {
		return "No documents matched the question."
	}

	formatted := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		source := chunk.Metadata.SourcePath
		if source == "" {
			source = "Unknown"
		}
		formatted = append(formatted, fmt.Sprintf("**Document %d**:\n%s\n(Source: [%s](%s))", i, chunk.Text, source, source))
	}
	return strings.Join(formatted, "\n")
}

// ParseFollowupQuestions extracts usable questions from the model's
// line-oriented reply, tolerating the numbering and bullets it was told
// not to produce. Lines that do not end in a question mark are noise.
func ParseFollowupQuestions(raw string, limit int) []string {
	if limit <= 0 {
		return nil
	}

	seen := make(map[string]bool)
	var questions []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*•0123456789.) \"")
		line = strings.TrimSuffix(strings.TrimSpace(line), "\"")
		if line == "" || !strings.HasSuffix(line, "?") {
			continue
		}
		if seen[line] {
			continue
		}
		seen[line] = true

		questions = append(questions, line)
		if len(questions) >= limit {
			break
		}
	}
	return questions
}
