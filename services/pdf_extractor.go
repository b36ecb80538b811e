package services

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"customer-support-rag/internal/logger"
	"customer-support-rag/models"
)

// maxPDFSize caps how large a PDF the extractor will load into memory.
const maxPDFSize = 200 * 1024 * 1024

// PDFExtractor pulls plain text out of PDF files page by page.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Extract reads the PDF at path and returns its text split by page.
func (e *PDFExtractor) Extract(path string) (*models.ExtractedDocument, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to access file: %w", err)
	}
	if info.Size() > maxPDFSize {
		return nil, fmt.Errorf("file too large: %d bytes (max %d)", info.Size(), maxPDFSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return e.ExtractBytes(content)
}

// ExtractBytes parses PDF content already held in memory. Pages that
// cannot be parsed are skipped with a warning so a single corrupt page
// does not sink the whole document.
func (e *PDFExtractor) ExtractBytes(content []byte) (*models.ExtractedDocument, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	numPages := reader.NumPage()
	pages := make([]models.PageText, 0, numPages)
	failed := 0

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			failed++
			logger.Warn("Failed to extract text from PDF page", "page", i, "error", err)
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		pages = append(pages, models.PageText{Number: i, Text: text})
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: no extractable text in %d pages", models.ErrEmptyDocument, numPages)
	}
	if failed > 0 {
		logger.Info("PDF extracted with unreadable pages", "total_pages", numPages, "failed_pages", failed)
	}

	return buildExtractedDocument(pages, models.FileTypePDF), nil
}
