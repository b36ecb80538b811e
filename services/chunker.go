package services

import (
	"fmt"

	"customer-support-rag/models"
)

// ChunkerService splits extracted text into fixed-size overlapping
// windows. Sizes and offsets are measured in runes so multi-byte text
// never splits mid-character.
type ChunkerService struct {
	size    int
	overlap int
}

func NewChunkerService(size, overlap int) *ChunkerService {
	return &ChunkerService{size: size, overlap: overlap}
}

func (cs *ChunkerService) validate() error {
	if cs.size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", cs.size)
	}
	if cs.overlap < 1 || cs.overlap >= cs.size {
		return fmt.Errorf("chunk overlap must be in [1, size), got overlap=%d size=%d", cs.overlap, cs.size)
	}
	return nil
}

// Split produces ordered chunks covering text with no gaps.
// Consecutive chunks share exactly the configured overlap; a text
// shorter than the chunk size yields a single chunk; empty text yields
// none. Invalid configuration is rejected here rather than at
// construction so the error reaches the caller that will act on it.
func (cs *ChunkerService) Split(text string) ([]models.Chunk, error) {
	if err := cs.validate(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}

	runes := []rune(text)
	step := cs.size - cs.overlap

	var chunks []models.Chunk
	for start := 0; start < len(runes); start += step {
		end := start + cs.size
		if end > len(runes) {
			end = len(runes)
		}

		chunks = append(chunks, models.Chunk{
			Text:        string(runes[start:end]),
			Index:       len(chunks),
			StartOffset: start,
		})

		if end == len(runes) {
			break
		}
	}

	return chunks, nil
}

// SplitPages chunks each page independently (chunks never span a page
// boundary) and numbers the chunks sequentially across the whole
// document. StartOffset is relative to the chunk's page.
func (cs *ChunkerService) SplitPages(pages []models.PageText) ([]models.Chunk, error) {
	if err := cs.validate(); err != nil {
		return nil, err
	}

	var all []models.Chunk
	for _, page := range pages {
		chunks, err := cs.Split(page.Text)
		if err != nil {
			return nil, err
		}
		for _, chunk := range chunks {
			chunk.Index = len(all)
			chunk.Page = page.Number
			all = append(all, chunk)
		}
	}
	return all, nil
}
