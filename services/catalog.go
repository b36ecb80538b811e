package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"customer-support-rag/models"
	"customer-support-rag/utils"
)

// CatalogService tracks every document the pipeline has seen in MongoDB.
// Completed records carry a gzip copy of the extracted text so the
// collection can be rebuilt without re-parsing the source files.
type CatalogService struct {
	collection *mongo.Collection
}

func NewCatalogService(db *mongo.Database) *CatalogService {
	return &CatalogService{collection: db.Collection("documents")}
}

// Register inserts a pending catalog record. The caller fills the file
// identity fields; Register assigns the ID, status and timestamps.
func (s *CatalogService) Register(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	doc.Status = models.StatusPending
	doc.UploadedAt = time.Now()
	doc.UpdatedAt = doc.UploadedAt

	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert document record: %w", err)
	}
	return nil
}

// MarkProcessing flips a record to processing before extraction starts.
func (s *CatalogService) MarkProcessing(ctx context.Context, id string) error {
	update := bson.M{
		"$set": bson.M{
			"status":        models.StatusProcessing,
			"error_message": "",
			"updated_at":    time.Now(),
		},
	}
	return s.updateOne(ctx, id, update)
}

// MarkCompleted records a successful ingestion. The per-page text is
// stored as compressed JSON so re-indexing keeps page attribution.
func (s *CatalogService) MarkCompleted(ctx context.Context, id string, chunkCount int, pages []models.PageText) error {
	payload, err := json.Marshal(pages)
	if err != nil {
		return fmt.Errorf("failed to encode extracted pages: %w", err)
	}
	compressed, err := utils.CompressText(string(payload))
	if err != nil {
		return fmt.Errorf("failed to compress extracted text: %w", err)
	}

	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"status":          models.StatusCompleted,
			"pages":           len(pages),
			"chunk_count":     chunkCount,
			"compressed_text": compressed,
			"error_message":   "",
			"indexed_at":      now,
			"updated_at":      now,
		},
	}
	return s.updateOne(ctx, id, update)
}

// RefreshSource updates the recorded hash and size after a source file
// changed on disk.
func (s *CatalogService) RefreshSource(ctx context.Context, id, contentHash string, sizeBytes int64) error {
	update := bson.M{
		"$set": bson.M{
			"content_hash": contentHash,
			"size_bytes":   sizeBytes,
			"updated_at":   time.Now(),
		},
	}
	return s.updateOne(ctx, id, update)
}

// MarkFailed records why ingestion of a document did not finish.
func (s *CatalogService) MarkFailed(ctx context.Context, id string, cause error) error {
	message := "unknown error"
	if cause != nil {
		message = cause.Error()
	}
	update := bson.M{
		"$set": bson.M{
			"status":        models.StatusFailed,
			"error_message": message,
			"updated_at":    time.Now(),
		},
	}
	return s.updateOne(ctx, id, update)
}

func (s *CatalogService) updateOne(ctx context.Context, id string, update bson.M) error {
	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update document record: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.ErrDocumentNotFound
	}
	return nil
}

// Get returns one catalog record without its compressed text.
func (s *CatalogService) Get(ctx context.Context, id string) (*models.Document, error) {
	opts := options.FindOne().SetProjection(bson.M{"compressed_text": 0})

	var doc models.Document
	err := s.collection.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch document record: %w", err)
	}
	return &doc, nil
}

// GetBySourcePath looks a record up by the path it was ingested from.
func (s *CatalogService) GetBySourcePath(ctx context.Context, sourcePath string) (*models.Document, error) {
	opts := options.FindOne().SetProjection(bson.M{"compressed_text": 0})

	var doc models.Document
	err := s.collection.FindOne(ctx, bson.M{"source_path": sourcePath}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch document record: %w", err)
	}
	return &doc, nil
}

// FindByContentHash returns records whose content hash matches. Used to
// flag duplicate uploads; duplicates are indexed anyway, only reported.
func (s *CatalogService) FindByContentHash(ctx context.Context, hash string) ([]models.Document, error) {
	if hash == "" {
		return nil, nil
	}
	return s.find(ctx, bson.M{"content_hash": hash})
}

// List returns all catalog records, newest upload first.
func (s *CatalogService) List(ctx context.Context) ([]models.Document, error) {
	return s.find(ctx, bson.M{})
}

// ListByStatus returns records in one ingestion state, newest first.
func (s *CatalogService) ListByStatus(ctx context.Context, status string) ([]models.Document, error) {
	return s.find(ctx, bson.M{"status": status})
}

func (s *CatalogService) find(ctx context.Context, filter bson.M) ([]models.Document, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "uploaded_at", Value: -1}}).
		SetProjection(bson.M{"compressed_text": 0})

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query document records: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode document records: %w", err)
	}
	return docs, nil
}

// StoredPages decompresses the per-page text kept for a completed
// record. Re-indexing rebuilds vectors from this without the source file.
func (s *CatalogService) StoredPages(ctx context.Context, id string) ([]models.PageText, error) {
	var doc models.Document
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch document record: %w", err)
	}
	if len(doc.CompressedText) == 0 {
		return nil, fmt.Errorf("document %s has no stored text to rebuild from", id)
	}

	payload, err := utils.DecompressText(doc.CompressedText)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress stored text: %w", err)
	}
	var pages []models.PageText
	if err := json.Unmarshal([]byte(payload), &pages); err != nil {
		return nil, fmt.Errorf("failed to decode stored pages: %w", err)
	}
	return pages, nil
}

// Delete removes one catalog record.
func (s *CatalogService) Delete(ctx context.Context, id string) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete document record: %w", err)
	}
	if result.DeletedCount == 0 {
		return models.ErrDocumentNotFound
	}
	return nil
}

// FailStaleProcessing flips records stuck in processing for longer than
// olderThan to failed and returns how many were touched. Covers workers
// that died mid-ingestion without reporting back.
func (s *CatalogService) FailStaleProcessing(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	filter := bson.M{
		"status":     models.StatusProcessing,
		"updated_at": bson.M{"$lt": cutoff},
	}
	update := bson.M{
		"$set": bson.M{
			"status":        models.StatusFailed,
			"error_message": fmt.Sprintf("processing did not finish within %s", olderThan),
			"updated_at":    time.Now(),
		},
	}

	result, err := s.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep stale records: %w", err)
	}
	return result.ModifiedCount, nil
}

// CountByStatus tallies catalog records per ingestion state.
func (s *CatalogService) CountByStatus(ctx context.Context) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to count document records: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode status counts: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
