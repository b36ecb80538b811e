package services

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"customer-support-rag/models"
)

// Extractor converts a source file into page-structured plain text,
// picking the right parser from the file extension.
type Extractor struct {
	pdf  *PDFExtractor
	docx *DOCXExtractor
}

func NewExtractor() *Extractor {
	return &Extractor{
		pdf:  NewPDFExtractor(),
		docx: NewDOCXExtractor(),
	}
}

// ExtractFile parses the file at path. Unknown extensions return
// models.ErrUnsupportedFormat.
func (e *Extractor) ExtractFile(path string) (*models.ExtractedDocument, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return e.pdf.Extract(path)
	case ".docx":
		return e.docx.Extract(path)
	default:
		return nil, fmt.Errorf("%w: %q (supported: .pdf, .docx)", models.ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ExtractBytes parses in-memory content using the declared file type.
func (e *Extractor) ExtractBytes(content []byte, fileType string) (*models.ExtractedDocument, error) {
	switch fileType {
	case models.FileTypePDF:
		return e.pdf.ExtractBytes(content)
	case models.FileTypeDOCX:
		return e.docx.ExtractBytes(content)
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrUnsupportedFormat, fileType)
	}
}

// FileTypeForPath maps a filename to a catalog file type.
func FileTypeForPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return models.FileTypePDF, nil
	case ".docx":
		return models.FileTypeDOCX, nil
	default:
		return "", fmt.Errorf("%w: %q (supported: .pdf, .docx)", models.ErrUnsupportedFormat, filepath.Ext(path))
	}
}

var (
	pdfMagic = []byte("%PDF")
	zipMagic = []byte("PK\x03\x04")
)

// SniffFileType checks the leading bytes of uploaded content against
// the declared file type. DOCX files start with the ZIP local file
// header since they are ZIP archives.
func SniffFileType(content []byte, fileType string) error {
	switch fileType {
	case models.FileTypePDF:
		if !bytes.HasPrefix(content, pdfMagic) {
			return fmt.Errorf("content does not look like a PDF file")
		}
	case models.FileTypeDOCX:
		if !bytes.HasPrefix(content, zipMagic) {
			return fmt.Errorf("content does not look like a DOCX file")
		}
	default:
		return fmt.Errorf("%w: %q", models.ErrUnsupportedFormat, fileType)
	}
	return nil
}

// buildExtractedDocument assembles the full-text view plus counters
// from per-page text.
func buildExtractedDocument(pages []models.PageText, fileType string) *models.ExtractedDocument {
	var sb strings.Builder
	for i, p := range pages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(p.Text)
	}
	text := sb.String()

	return &models.ExtractedDocument{
		Text:      text,
		Pages:     pages,
		FileType:  fileType,
		CharCount: len(text),
		WordCount: len(strings.Fields(text)),
	}
}
