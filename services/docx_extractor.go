package services

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"customer-support-rag/models"
)

// DOCXExtractor pulls plain text out of Word documents. A .docx file is
// a ZIP archive; the body text lives in word/document.xml.
type DOCXExtractor struct{}

func NewDOCXExtractor() *DOCXExtractor {
	return &DOCXExtractor{}
}

// Extract reads the Word document at path and returns its text.
func (e *DOCXExtractor) Extract(path string) (*models.ExtractedDocument, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return e.ExtractBytes(content)
}

// ExtractBytes parses DOCX content already held in memory. Word files
// carry no page boundaries in document.xml, so the whole body counts
// as page 1.
func (e *DOCXExtractor) ExtractBytes(content []byte) (*models.ExtractedDocument, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open DOCX archive: %w", err)
	}

	text, err := extractDocumentXML(reader)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, fmt.Errorf("%w: document body holds no text", models.ErrEmptyDocument)
	}

	pages := []models.PageText{{Number: 1, Text: text}}
	return buildExtractedDocument(pages, models.FileTypeDOCX), nil
}

func extractDocumentXML(reader *zip.Reader) (string, error) {
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open document.xml: %w", err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("failed to read document.xml: %w", err)
		}

		return parseDocumentXML(raw)
	}
	return "", fmt.Errorf("invalid DOCX file: word/document.xml missing")
}

// wordDocument mirrors the parts of word/document.xml we care about:
// paragraphs made of runs made of text elements.
type wordDocument struct {
	Body struct {
		Paragraphs []wordParagraph `xml:"p"`
	} `xml:"body"`
}

type wordParagraph struct {
	Runs []wordRun `xml:"r"`
}

type wordRun struct {
	Text []wordText `xml:"t"`
}

type wordText struct {
	Content string `xml:",chardata"`
}

func parseDocumentXML(raw []byte) (string, error) {
	var doc wordDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return "", fmt.Errorf("failed to parse document.xml: %w", err)
	}

	var result strings.Builder
	for i, para := range doc.Body.Paragraphs {
		if i > 0 {
			result.WriteString("\n")
		}
		for _, run := range para.Runs {
			for _, text := range run.Text {
				result.WriteString(text.Content)
			}
		}
	}

	return strings.TrimSpace(result.String()), nil
}
