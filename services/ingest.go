package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"customer-support-rag/internal/logger"
	"customer-support-rag/models"
	"customer-support-rag/utils"
)

// Embedder produces embedding vectors for batches of text.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex is the slice of the vector store the pipeline writes to.
type VectorIndex interface {
	Upsert(ctx context.Context, records []models.EmbeddingRecord) error
	DeleteByDocumentID(ctx context.Context, documentID string) error
}

// Catalog is the slice of the document catalog the pipeline records into.
type Catalog interface {
	Register(ctx context.Context, doc *models.Document) error
	RefreshSource(ctx context.Context, id, contentHash string, sizeBytes int64) error
	MarkProcessing(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string, chunkCount int, pages []models.PageText) error
	MarkFailed(ctx context.Context, id string, cause error) error
	Get(ctx context.Context, id string) (*models.Document, error)
	GetBySourcePath(ctx context.Context, sourcePath string) (*models.Document, error)
	FindByContentHash(ctx context.Context, hash string) ([]models.Document, error)
	ListByStatus(ctx context.Context, status string) ([]models.Document, error)
	StoredPages(ctx context.Context, id string) ([]models.PageText, error)
	Delete(ctx context.Context, id string) error
}

// IngestService runs the extract, chunk, embed, upsert pipeline and
// keeps the catalog in step with the vector collection.
type IngestService struct {
	extractor *Extractor
	chunker   *ChunkerService
	embedder  Embedder
	index     VectorIndex
	catalog   Catalog
	batchSize int
}

func NewIngestService(extractor *Extractor, chunker *ChunkerService, embedder Embedder, index VectorIndex, catalog Catalog, batchSize int) *IngestService {
	return &IngestService{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		catalog:   catalog,
		batchSize: batchSize,
	}
}

var supportedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
}

// ListSupportedFiles returns the supported documents under dir, sorted,
// without touching any backend.
func ListSupportedFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if supportedExtensions[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// ListFiles returns the supported documents under dir without ingesting
// anything.
func (s *IngestService) ListFiles(dir string) ([]string, error) {
	return ListSupportedFiles(dir)
}

// IngestDirectory runs the pipeline over every supported file under
// dir. A failing file is recorded in the report and does not stop the
// rest of the run.
func (s *IngestService) IngestDirectory(ctx context.Context, dir, sourceType string) (*models.IngestReport, error) {
	files, err := s.ListFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no supported documents (.pdf, .docx) under %s", dir)
	}

	report := &models.IngestReport{Files: make([]models.FileResult, 0, len(files))}
	for _, path := range files {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		result := s.IngestFile(ctx, path, sourceType)
		report.Files = append(report.Files, result)
		if result.Succeeded() {
			report.TotalChunks += result.ChunkCount
		} else {
			report.Failed++
		}
	}
	return report, nil
}

// IngestFile runs the full pipeline for one file. Errors are folded
// into the result instead of returned so directory runs keep going.
func (s *IngestService) IngestFile(ctx context.Context, path, sourceType string) models.FileResult {
	start := time.Now()
	result := models.FileResult{FilePath: path}

	fail := func(err error) models.FileResult {
		result.Error = err.Error()
		result.Duration = time.Since(start)
		logger.Error("Ingestion failed", "file", path, "error", err)
		return result
	}

	doc, err := s.ensureRecord(ctx, path, sourceType)
	if err != nil {
		return fail(err)
	}
	if err := s.catalog.MarkProcessing(ctx, doc.ID); err != nil {
		return fail(err)
	}

	extracted, err := s.extractor.ExtractFile(path)
	if err != nil {
		s.recordFailure(ctx, doc.ID, err)
		return fail(err)
	}

	chunkCount, err := s.indexPages(ctx, doc, extracted.Pages)
	if err != nil {
		s.recordFailure(ctx, doc.ID, err)
		return fail(err)
	}

	if err := s.catalog.MarkCompleted(ctx, doc.ID, chunkCount, extracted.Pages); err != nil {
		return fail(err)
	}

	result.ChunkCount = chunkCount
	result.Pages = len(extracted.Pages)
	result.Duration = time.Since(start)
	logger.Info("Document indexed",
		"file", path,
		"pages", result.Pages,
		"chunks", chunkCount,
		"duration", result.Duration.String())
	return result
}

// IngestDocument runs the pipeline for an already-registered record,
// reading the source file from its recorded path. This is the queue
// worker entry point, so it returns errors for retry handling.
func (s *IngestService) IngestDocument(ctx context.Context, documentID string) (int, error) {
	doc, err := s.catalog.Get(ctx, documentID)
	if err != nil {
		return 0, err
	}
	if err := s.catalog.MarkProcessing(ctx, doc.ID); err != nil {
		return 0, err
	}

	extracted, err := s.extractor.ExtractFile(doc.SourcePath)
	if err != nil {
		s.recordFailure(ctx, doc.ID, err)
		return 0, err
	}

	chunkCount, err := s.indexPages(ctx, doc, extracted.Pages)
	if err != nil {
		s.recordFailure(ctx, doc.ID, err)
		return 0, err
	}

	if err := s.catalog.MarkCompleted(ctx, doc.ID, chunkCount, extracted.Pages); err != nil {
		return 0, err
	}
	return chunkCount, nil
}

// ReindexDocument rebuilds a document's vectors from the text stored in
// the catalog, without touching the original source file.
func (s *IngestService) ReindexDocument(ctx context.Context, documentID string) (chunkCount, pages int, err error) {
	doc, err := s.catalog.Get(ctx, documentID)
	if err != nil {
		return 0, 0, err
	}

	stored, err := s.catalog.StoredPages(ctx, documentID)
	if err != nil {
		return 0, 0, err
	}
	if err := s.catalog.MarkProcessing(ctx, doc.ID); err != nil {
		return 0, 0, err
	}

	chunkCount, err = s.indexPages(ctx, doc, stored)
	if err != nil {
		s.recordFailure(ctx, doc.ID, err)
		return 0, 0, err
	}

	if err := s.catalog.MarkCompleted(ctx, doc.ID, chunkCount, stored); err != nil {
		return 0, 0, err
	}
	return chunkCount, len(stored), nil
}

// ReindexAll rebuilds every completed document. Used after chunking
// parameters or the embedding model change.
func (s *IngestService) ReindexAll(ctx context.Context) (*models.IngestReport, error) {
	docs, err := s.catalog.ListByStatus(ctx, models.StatusCompleted)
	if err != nil {
		return nil, err
	}

	report := &models.IngestReport{Files: make([]models.FileResult, 0, len(docs))}
	for _, doc := range docs {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		start := time.Now()
		result := models.FileResult{FilePath: doc.SourcePath}
		chunks, pages, err := s.ReindexDocument(ctx, doc.ID)
		if err != nil {
			result.Error = err.Error()
			report.Failed++
		} else {
			result.ChunkCount = chunks
			result.Pages = pages
			report.TotalChunks += chunks
		}
		result.Duration = time.Since(start)
		report.Files = append(report.Files, result)
	}
	return report, nil
}

// DeleteDocument removes a document's vectors and its catalog record.
func (s *IngestService) DeleteDocument(ctx context.Context, documentID string) error {
	if _, err := s.catalog.Get(ctx, documentID); err != nil {
		return err
	}
	if err := s.index.DeleteByDocumentID(ctx, documentID); err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}
	return s.catalog.Delete(ctx, documentID)
}

// ensureRecord finds or creates the catalog record for a file path.
// Re-ingesting a known path reuses its document identity so stale
// vectors can be replaced rather than duplicated.
func (s *IngestService) ensureRecord(ctx context.Context, path, sourceType string) (*models.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to access file: %w", err)
	}
	fileType, err := FileTypeForPath(path)
	if err != nil {
		return nil, err
	}
	hash, err := utils.HashFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to hash file: %w", err)
	}

	s.reportDuplicates(ctx, path, hash)

	existing, err := s.catalog.GetBySourcePath(ctx, path)
	if err == nil {
		if existing.ContentHash != hash || existing.SizeBytes != info.Size() {
			if err := s.catalog.RefreshSource(ctx, existing.ID, hash, info.Size()); err != nil {
				return nil, err
			}
		}
		return existing, nil
	}
	if !errors.Is(err, models.ErrDocumentNotFound) {
		return nil, err
	}

	doc := &models.Document{
		Filename:    filepath.Base(path),
		SourcePath:  path,
		FileType:    fileType,
		SourceType:  sourceType,
		ContentHash: hash,
		SizeBytes:   info.Size(),
	}
	if err := s.catalog.Register(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// reportDuplicates logs when another path already carries the same
// content. Duplicates are still indexed; the catalog only flags them.
func (s *IngestService) reportDuplicates(ctx context.Context, path, hash string) {
	matches, err := s.catalog.FindByContentHash(ctx, hash)
	if err != nil {
		logger.Warn("Duplicate check failed", "file", path, "error", err)
		return
	}
	for _, match := range matches {
		if match.SourcePath != path {
			logger.Warn("Duplicate content detected",
				"file", path,
				"already_indexed_as", match.SourcePath)
			return
		}
	}
}

// indexPages chunks, embeds and upserts a document's pages, replacing
// any vectors the document had before.
func (s *IngestService) indexPages(ctx context.Context, doc *models.Document, pages []models.PageText) (int, error) {
	chunks, err := s.chunker.SplitPages(pages)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, models.ErrEmptyDocument
	}

	if err := s.index.DeleteByDocumentID(ctx, doc.ID); err != nil {
		return 0, fmt.Errorf("failed to clear previous vectors: %w", err)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	indexedAt := time.Now()
	records := make([]models.EmbeddingRecord, 0, len(chunks))
	for start := 0; start < len(texts); start += s.batchSize {
		end := min(start+s.batchSize, len(texts))
		vectors, err := s.embedder.EmbedTexts(ctx, texts[start:end])
		if err != nil {
			return 0, fmt.Errorf("failed to embed chunks %d-%d: %w", start, end-1, err)
		}

		for i, vector := range vectors {
			chunk := chunks[start+i]
			records = append(records, models.EmbeddingRecord{
				ID:     fmt.Sprintf("%s:%d", doc.ID, chunk.Index),
				Vector: vector,
				Text:   chunk.Text,
				Metadata: models.ChunkMetadata{
					DocumentID: doc.ID,
					SourcePath: doc.SourcePath,
					Page:       chunk.Page,
					FileType:   doc.FileType,
					ChunkID:    chunk.Index,
					ChunkSize:  utf8.RuneCountInString(chunk.Text),
					SourceType: doc.SourceType,
					IndexedAt:  indexedAt,
				},
			})
		}
	}

	if err := s.index.Upsert(ctx, records); err != nil {
		return 0, fmt.Errorf("failed to upsert vectors: %w", err)
	}
	return len(records), nil
}

func (s *IngestService) recordFailure(ctx context.Context, id string, cause error) {
	if err := s.catalog.MarkFailed(ctx, id, cause); err != nil {
		logger.Error("Failed to record ingestion failure", "document_id", id, "error", err)
	}
}
