package services

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"

	"customer-support-rag/models"
)

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/document.xml")
	if err != nil {
		t.Fatalf("Failed to create zip entry: %v", err)
	}
	if _, err := f.Write([]byte(documentXML)); err != nil {
		t.Fatalf("Failed to write zip entry: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close zip writer: %v", err)
	}
	return buf.Bytes()
}

func TestDOCXExtractBytes(t *testing.T) {
	content := buildDOCX(t, `<?xml version="1.0"?>
<document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <body>
    <p><r><t>How do I reset my password?</t></r></p>
    <p><r><t>Open the account page and click </t></r><r><t>Reset.</t></r></p>
  </body>
</document>`)

	doc, err := NewDOCXExtractor().ExtractBytes(content)
	if err != nil {
		t.Fatalf("ExtractBytes failed: %v", err)
	}

	want := "How do I reset my password?\nOpen the account page and click Reset."
	if doc.Text != want {
		t.Errorf("Text = %q, want %q", doc.Text, want)
	}
	if len(doc.Pages) != 1 || doc.Pages[0].Number != 1 {
		t.Errorf("Expected a single page numbered 1, got %+v", doc.Pages)
	}
	if doc.FileType != models.FileTypeDOCX {
		t.Errorf("FileType = %q, want %q", doc.FileType, models.FileTypeDOCX)
	}
	if doc.WordCount == 0 || doc.CharCount != len(want) {
		t.Errorf("Counts wrong: words=%d chars=%d", doc.WordCount, doc.CharCount)
	}
}

func TestDOCXExtractBytesEmptyBody(t *testing.T) {
	content := buildDOCX(t, `<?xml version="1.0"?><document><body></body></document>`)

	_, err := NewDOCXExtractor().ExtractBytes(content)
	if !errors.Is(err, models.ErrEmptyDocument) {
		t.Errorf("Expected ErrEmptyDocument, got %v", err)
	}
}

func TestDOCXExtractBytesNotAnArchive(t *testing.T) {
	_, err := NewDOCXExtractor().ExtractBytes([]byte("plain text, not a zip"))
	if err == nil {
		t.Error("Expected error for non-ZIP content")
	}
}

func TestDOCXExtractBytesMissingDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, _ := w.Create("word/styles.xml")
	f.Write([]byte("<styles/>"))
	w.Close()

	_, err := NewDOCXExtractor().ExtractBytes(buf.Bytes())
	if err == nil || !strings.Contains(err.Error(), "document.xml") {
		t.Errorf("Expected missing document.xml error, got %v", err)
	}
}

func TestFileTypeForPath(t *testing.T) {
	tests := []struct {
		path     string
		wantType string
		wantErr  bool
	}{
		{"docs/manual.pdf", models.FileTypePDF, false},
		{"docs/FAQ.PDF", models.FileTypePDF, false},
		{"notes.docx", models.FileTypeDOCX, false},
		{"notes.txt", "", true},
		{"noextension", "", true},
	}

	for _, tt := range tests {
		got, err := FileTypeForPath(tt.path)
		if tt.wantErr {
			if !errors.Is(err, models.ErrUnsupportedFormat) {
				t.Errorf("FileTypeForPath(%q): expected ErrUnsupportedFormat, got %v", tt.path, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("FileTypeForPath(%q) failed: %v", tt.path, err)
			continue
		}
		if got != tt.wantType {
			t.Errorf("FileTypeForPath(%q) = %q, want %q", tt.path, got, tt.wantType)
		}
	}
}

func TestSniffFileType(t *testing.T) {
	pdfHeader := []byte("%PDF-1.7 rest of file")
	zipHeader := []byte("PK\x03\x04 rest of archive")

	if err := SniffFileType(pdfHeader, models.FileTypePDF); err != nil {
		t.Errorf("PDF header rejected: %v", err)
	}
	if err := SniffFileType(zipHeader, models.FileTypeDOCX); err != nil {
		t.Errorf("DOCX header rejected: %v", err)
	}
	if err := SniffFileType(zipHeader, models.FileTypePDF); err == nil {
		t.Error("ZIP content accepted as PDF")
	}
	if err := SniffFileType(pdfHeader, models.FileTypeDOCX); err == nil {
		t.Error("PDF content accepted as DOCX")
	}
	if err := SniffFileType(pdfHeader, "xlsx"); !errors.Is(err, models.ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat for unknown type, got %v", err)
	}
}

func TestExtractFileUnsupportedExtension(t *testing.T) {
	_, err := NewExtractor().ExtractFile("somewhere/readme.md")
	if !errors.Is(err, models.ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
}
