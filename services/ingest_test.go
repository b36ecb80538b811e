package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"customer-support-rag/models"
)

type fakeEmbedder struct {
	batches [][]string
	fail    bool
}

func (e *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	if e.fail {
		return nil, fmt.Errorf("embedding backend down")
	}
	e.batches = append(e.batches, append([]string(nil), texts...))

	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(len(texts[i])), 0.5}
	}
	return vectors, nil
}

type fakeIndex struct {
	records []models.EmbeddingRecord
	deleted []string
}

func (f *fakeIndex) Upsert(_ context.Context, records []models.EmbeddingRecord) error {
	f.records = append(f.records, records...)
	return nil
}

func (f *fakeIndex) DeleteByDocumentID(_ context.Context, documentID string) error {
	f.deleted = append(f.deleted, documentID)
	return nil
}

type fakeCatalog struct {
	docs   map[string]*models.Document
	stored map[string][]models.PageText
	nextID int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		docs:   make(map[string]*models.Document),
		stored: make(map[string][]models.PageText),
	}
}

func (c *fakeCatalog) Register(_ context.Context, doc *models.Document) error {
	c.nextID++
	doc.ID = fmt.Sprintf("doc-%d", c.nextID)
	doc.Status = models.StatusPending
	stored := *doc
	c.docs[doc.ID] = &stored
	return nil
}

func (c *fakeCatalog) RefreshSource(_ context.Context, id, contentHash string, sizeBytes int64) error {
	doc, ok := c.docs[id]
	if !ok {
		return models.ErrDocumentNotFound
	}
	doc.ContentHash = contentHash
	doc.SizeBytes = sizeBytes
	return nil
}

func (c *fakeCatalog) MarkProcessing(_ context.Context, id string) error {
	doc, ok := c.docs[id]
	if !ok {
		return models.ErrDocumentNotFound
	}
	doc.Status = models.StatusProcessing
	return nil
}

func (c *fakeCatalog) MarkCompleted(_ context.Context, id string, chunkCount int, pages []models.PageText) error {
	doc, ok := c.docs[id]
	if !ok {
		return models.ErrDocumentNotFound
	}
	doc.Status = models.StatusCompleted
	doc.ChunkCount = chunkCount
	doc.Pages = len(pages)
	c.stored[id] = append([]models.PageText(nil), pages...)
	return nil
}

func (c *fakeCatalog) MarkFailed(_ context.Context, id string, cause error) error {
	doc, ok := c.docs[id]
	if !ok {
		return models.ErrDocumentNotFound
	}
	doc.Status = models.StatusFailed
	doc.ErrorMessage = cause.Error()
	return nil
}

func (c *fakeCatalog) Get(_ context.Context, id string) (*models.Document, error) {
	doc, ok := c.docs[id]
	if !ok {
		return nil, models.ErrDocumentNotFound
	}
	copied := *doc
	return &copied, nil
}

func (c *fakeCatalog) GetBySourcePath(_ context.Context, sourcePath string) (*models.Document, error) {
	for _, doc := range c.docs {
		if doc.SourcePath == sourcePath {
			copied := *doc
			return &copied, nil
		}
	}
	return nil, models.ErrDocumentNotFound
}

func (c *fakeCatalog) FindByContentHash(_ context.Context, hash string) ([]models.Document, error) {
	var matches []models.Document
	for _, doc := range c.docs {
		if doc.ContentHash == hash {
			matches = append(matches, *doc)
		}
	}
	return matches, nil
}

func (c *fakeCatalog) ListByStatus(_ context.Context, status string) ([]models.Document, error) {
	var matches []models.Document
	for _, doc := range c.docs {
		if doc.Status == status {
			matches = append(matches, *doc)
		}
	}
	return matches, nil
}

func (c *fakeCatalog) StoredPages(_ context.Context, id string) ([]models.PageText, error) {
	pages, ok := c.stored[id]
	if !ok {
		return nil, fmt.Errorf("document %s has no stored text to rebuild from", id)
	}
	return pages, nil
}

func (c *fakeCatalog) Delete(_ context.Context, id string) error {
	if _, ok := c.docs[id]; !ok {
		return models.ErrDocumentNotFound
	}
	delete(c.docs, id)
	delete(c.stored, id)
	return nil
}

func writeTestDOCX(t *testing.T, dir, name, body string) string {
	t.Helper()

	content := buildDOCX(t, fmt.Sprintf(`<?xml version="1.0"?>
<document><body><p><r><t>%s</t></r></p></body></document>`, body))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	return path
}

func newTestIngest(embedder *fakeEmbedder, index *fakeIndex, catalog *fakeCatalog, chunkSize, overlap, batchSize int) *IngestService {
	return NewIngestService(
		NewExtractor(),
		NewChunkerService(chunkSize, overlap),
		embedder,
		index,
		catalog,
		batchSize,
	)
}

func TestIngestFilePipeline(t *testing.T) {
	dir := t.TempDir()
	path := writeTestDOCX(t, dir, "faq.docx", "To reset your password open the account page and click the reset link.")

	embedder := &fakeEmbedder{}
	index := &fakeIndex{}
	catalog := newFakeCatalog()
	svc := newTestIngest(embedder, index, catalog, 1000, 200, 100)

	result := svc.IngestFile(context.Background(), path, "manual-upload")
	if !result.Succeeded() {
		t.Fatalf("IngestFile failed: %s", result.Error)
	}
	if result.ChunkCount != 1 || result.Pages != 1 {
		t.Errorf("Result chunks=%d pages=%d, want 1 and 1", result.ChunkCount, result.Pages)
	}

	doc, err := catalog.GetBySourcePath(context.Background(), path)
	if err != nil {
		t.Fatalf("Catalog record missing: %v", err)
	}
	if doc.Status != models.StatusCompleted {
		t.Errorf("Status = %q, want %q", doc.Status, models.StatusCompleted)
	}
	if doc.ContentHash == "" || doc.SizeBytes == 0 {
		t.Errorf("Source identity not recorded: hash=%q size=%d", doc.ContentHash, doc.SizeBytes)
	}
	if doc.SourceType != "manual-upload" {
		t.Errorf("SourceType = %q, want manual-upload", doc.SourceType)
	}

	if len(index.deleted) != 1 || index.deleted[0] != doc.ID {
		t.Errorf("Expected previous vectors of %s cleared, got %v", doc.ID, index.deleted)
	}
	if len(index.records) != 1 {
		t.Fatalf("Expected 1 upserted record, got %d", len(index.records))
	}

	record := index.records[0]
	if record.ID != doc.ID+":0" {
		t.Errorf("Record ID = %q, want %q", record.ID, doc.ID+":0")
	}
	if record.Metadata.DocumentID != doc.ID || record.Metadata.Page != 1 || record.Metadata.ChunkID != 0 {
		t.Errorf("Record metadata wrong: %+v", record.Metadata)
	}
	if record.Metadata.SourcePath != path {
		t.Errorf("Record source path = %q, want %q", record.Metadata.SourcePath, path)
	}
	if !strings.Contains(record.Text, "reset your password") {
		t.Errorf("Record text does not carry document content: %q", record.Text)
	}
}

func TestIngestFileBatchesEmbeddings(t *testing.T) {
	dir := t.TempDir()
	// 5 chunks at size 20 / overlap 5: step 15 over 70 runes.
	path := writeTestDOCX(t, dir, "long.docx", strings.Repeat("abcdefg", 10))

	embedder := &fakeEmbedder{}
	index := &fakeIndex{}
	catalog := newFakeCatalog()
	svc := newTestIngest(embedder, index, catalog, 20, 5, 2)

	result := svc.IngestFile(context.Background(), path, "")
	if !result.Succeeded() {
		t.Fatalf("IngestFile failed: %s", result.Error)
	}
	if result.ChunkCount != 5 {
		t.Fatalf("ChunkCount = %d, want 5", result.ChunkCount)
	}

	wantBatches := []int{2, 2, 1}
	if len(embedder.batches) != len(wantBatches) {
		t.Fatalf("Embedder called %d times, want %d", len(embedder.batches), len(wantBatches))
	}
	for i, want := range wantBatches {
		if len(embedder.batches[i]) != want {
			t.Errorf("Batch %d size = %d, want %d", i, len(embedder.batches[i]), want)
		}
	}
	if len(index.records) != 5 {
		t.Errorf("Upserted %d records, want 5", len(index.records))
	}
}

func TestIngestFileEmbeddingFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeTestDOCX(t, dir, "faq.docx", "Some support content worth indexing.")

	embedder := &fakeEmbedder{fail: true}
	index := &fakeIndex{}
	catalog := newFakeCatalog()
	svc := newTestIngest(embedder, index, catalog, 1000, 200, 100)

	result := svc.IngestFile(context.Background(), path, "")
	if result.Succeeded() {
		t.Fatal("Expected failure when embedding backend is down")
	}
	if !strings.Contains(result.Error, "embedding backend down") {
		t.Errorf("Result error = %q, want embedding cause", result.Error)
	}

	doc, err := catalog.GetBySourcePath(context.Background(), path)
	if err != nil {
		t.Fatalf("Catalog record missing: %v", err)
	}
	if doc.Status != models.StatusFailed || doc.ErrorMessage == "" {
		t.Errorf("Expected failed status with message, got %q / %q", doc.Status, doc.ErrorMessage)
	}
	if len(index.records) != 0 {
		t.Errorf("No vectors should be upserted on failure, got %d", len(index.records))
	}
}

func TestIngestFileUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("plain text"), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	catalog := newFakeCatalog()
	svc := newTestIngest(&fakeEmbedder{}, &fakeIndex{}, catalog, 1000, 200, 100)

	result := svc.IngestFile(context.Background(), path, "")
	if result.Succeeded() {
		t.Fatal("Expected unsupported format failure")
	}
	if len(catalog.docs) != 0 {
		t.Errorf("Unsupported files must not be cataloged, got %d records", len(catalog.docs))
	}
}

func TestIngestDirectoryIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	writeTestDOCX(t, dir, "good.docx", "Refunds are processed within five business days.")
	broken := filepath.Join(dir, "broken.docx")
	if err := os.WriteFile(broken, []byte("not a zip archive"), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	embedder := &fakeEmbedder{}
	index := &fakeIndex{}
	catalog := newFakeCatalog()
	svc := newTestIngest(embedder, index, catalog, 1000, 200, 100)

	report, err := svc.IngestDirectory(context.Background(), dir, "")
	if err != nil {
		t.Fatalf("IngestDirectory failed: %v", err)
	}

	if len(report.Files) != 2 {
		t.Fatalf("Report covers %d files, want 2", len(report.Files))
	}
	if report.Failed != 1 {
		t.Errorf("Failed = %d, want 1", report.Failed)
	}
	if report.TotalChunks != 1 {
		t.Errorf("TotalChunks = %d, want 1", report.TotalChunks)
	}
	if len(index.records) != 1 {
		t.Errorf("Good file should still be indexed, got %d records", len(index.records))
	}
}

func TestIngestDirectoryEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "readme.md"), []byte("nothing here"), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	svc := newTestIngest(&fakeEmbedder{}, &fakeIndex{}, newFakeCatalog(), 1000, 200, 100)
	if _, err := svc.IngestDirectory(context.Background(), dir, ""); err == nil {
		t.Error("Expected error when no supported documents exist")
	}
}

func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.pdf", "a.docx", "skip.txt", "image.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("Failed to write test file: %v", err)
		}
	}
	sub := filepath.Join(dir, "nested")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("Failed to create subdirectory: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "c.pdf"), []byte("x"), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	svc := newTestIngest(&fakeEmbedder{}, &fakeIndex{}, newFakeCatalog(), 1000, 200, 100)
	files, err := svc.ListFiles(dir)
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}

	want := []string{
		filepath.Join(dir, "a.docx"),
		filepath.Join(dir, "b.pdf"),
		filepath.Join(sub, "c.pdf"),
	}
	if len(files) != len(want) {
		t.Fatalf("ListFiles returned %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %q, want %q", i, files[i], want[i])
		}
	}
}

func TestReindexDocumentUsesStoredPages(t *testing.T) {
	embedder := &fakeEmbedder{}
	index := &fakeIndex{}
	catalog := newFakeCatalog()
	svc := newTestIngest(embedder, index, catalog, 1000, 200, 100)

	doc := &models.Document{
		Filename:   "faq.docx",
		SourcePath: "/no/longer/exists/faq.docx",
		FileType:   models.FileTypeDOCX,
	}
	if err := catalog.Register(context.Background(), doc); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	pages := []models.PageText{{Number: 1, Text: "Shipping takes three to five days."}}
	if err := catalog.MarkCompleted(context.Background(), doc.ID, 1, pages); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	chunks, pageCount, err := svc.ReindexDocument(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("ReindexDocument failed: %v", err)
	}
	if chunks != 1 || pageCount != 1 {
		t.Errorf("Reindex produced chunks=%d pages=%d, want 1 and 1", chunks, pageCount)
	}
	if len(index.records) != 1 || index.records[0].Metadata.DocumentID != doc.ID {
		t.Errorf("Stored pages were not re-upserted: %+v", index.records)
	}
}

func TestDeleteDocumentRemovesVectors(t *testing.T) {
	index := &fakeIndex{}
	catalog := newFakeCatalog()
	svc := newTestIngest(&fakeEmbedder{}, index, catalog, 1000, 200, 100)

	doc := &models.Document{Filename: "old.pdf", SourcePath: "/data/old.pdf", FileType: models.FileTypePDF}
	if err := catalog.Register(context.Background(), doc); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := svc.DeleteDocument(context.Background(), doc.ID); err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}
	if len(index.deleted) != 1 || index.deleted[0] != doc.ID {
		t.Errorf("Vectors not deleted for %s: %v", doc.ID, index.deleted)
	}
	if _, err := catalog.Get(context.Background(), doc.ID); err == nil {
		t.Error("Catalog record should be gone after delete")
	}
}
