package vectorstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"customer-support-rag/internal/config"
	"customer-support-rag/models"
)

// Field names of the vector collection schema.
const (
	fieldID         = "id"
	fieldEmbedding  = "embedding"
	fieldRecordID   = "record_id"
	fieldDocumentID = "document_id"
	fieldSourcePath = "source_path"
	fieldContent    = "content"
	fieldPage       = "page"
	fieldFileType   = "file_type"
	fieldChunkID    = "chunk_id"
	fieldChunkSize  = "chunk_size"
	fieldSourceType = "source_type"
	fieldIndexedAt  = "indexed_at"
)

// Store is the Milvus-backed vector store for one named collection.
// It owns both the record-level operations (upsert, search) and the
// collection lifecycle (create, status, clear, drop). Safe for
// concurrent use; the underlying client is internally synchronized.
type Store struct {
	client     *milvusclient.Client
	collection string
	dimensions int
	metric     entity.MetricType
}

// New connects to Milvus. Callers that write or search must resolve
// dimensions first (configured value or embedding-model probe);
// lifecycle-only callers (status, clear, drop) may pass 0 since the
// schema already carries the real value.
func New(ctx context.Context, cfg *config.Config, dimensions int) (*Store, error) {
	client, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  cfg.MilvusAddress,
		Username: cfg.MilvusUsername,
		Password: cfg.MilvusPassword,
		DBName:   cfg.MilvusDatabase,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Store{
		client:     client,
		collection: cfg.CollectionName,
		dimensions: dimensions,
		metric:     metricType(cfg.DistanceMetric),
	}, nil
}

func metricType(name string) entity.MetricType {
	switch strings.ToLower(name) {
	case "l2":
		return entity.L2
	case "ip":
		return entity.IP
	default:
		return entity.COSINE
	}
}

// Collection returns the configured collection name.
func (s *Store) Collection() string {
	return s.collection
}

// Dimensions returns the configured vector dimensionality.
func (s *Store) Dimensions() int {
	return s.dimensions
}

// Close closes the Milvus connection.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// Exists reports whether the collection has been created.
func (s *Store) Exists(ctx context.Context) (bool, error) {
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(s.collection))
	if err != nil {
		return false, fmt.Errorf("failed to check collection existence: %w", err)
	}
	return exists, nil
}

// EnsureCollection creates the collection, its vector index, and loads
// it. Calling it on an existing collection is a no-op unless recreate
// is set, in which case the collection is dropped and rebuilt. Safe to
// repeat with identical arguments.
func (s *Store) EnsureCollection(ctx context.Context, recreate bool) error {
	exists, err := s.Exists(ctx)
	if err != nil {
		return err
	}

	if exists {
		if !recreate {
			return nil
		}
		if err := s.Drop(ctx); err != nil {
			return err
		}
	}

	if s.dimensions <= 0 {
		return fmt.Errorf("cannot create collection without a resolved vector dimensionality, got %d", s.dimensions)
	}

	schema := entity.NewSchema().
		WithName(s.collection).
		WithDescription("support document chunks").
		WithAutoID(true)

	schema.WithField(
		entity.NewField().
			WithName(fieldID).
			WithDataType(entity.FieldTypeInt64).
			WithIsPrimaryKey(true).
			WithIsAutoID(true),
	)

	schema.WithField(
		entity.NewField().
			WithName(fieldEmbedding).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(s.dimensions)),
	)

	for _, f := range []struct {
		name   string
		dtype  entity.FieldType
		maxLen int
	}{
		{fieldRecordID, entity.FieldTypeVarChar, 64},
		{fieldDocumentID, entity.FieldTypeVarChar, 64},
		{fieldSourcePath, entity.FieldTypeVarChar, 1024},
		{fieldContent, entity.FieldTypeVarChar, 65535},
		{fieldPage, entity.FieldTypeInt64, 0},
		{fieldFileType, entity.FieldTypeVarChar, 16},
		{fieldChunkID, entity.FieldTypeInt64, 0},
		{fieldChunkSize, entity.FieldTypeInt64, 0},
		{fieldSourceType, entity.FieldTypeVarChar, 255},
		{fieldIndexedAt, entity.FieldTypeVarChar, 64},
	} {
		field := entity.NewField().
			WithName(f.name).
			WithDataType(f.dtype)
		if f.dtype == entity.FieldTypeVarChar && f.maxLen > 0 {
			field.WithMaxLength(int64(f.maxLen))
		}
		schema.WithField(field)
	}

	if err := s.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(s.collection, schema)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx := index.NewIvfFlatIndex(s.metric, 128)
	createIdxTask, err := s.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(s.collection, fieldEmbedding, idx))
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := createIdxTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for index creation: %w", err)
	}

	return s.load(ctx)
}

func (s *Store) load(ctx context.Context) error {
	loadTask, err := s.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(s.collection))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}
	return nil
}

// Status describes the collection: existence, row count, and the
// dimensionality recorded in its schema.
func (s *Store) Status(ctx context.Context) (models.CollectionStatus, error) {
	status := models.CollectionStatus{
		Name:   s.collection,
		Metric: string(s.metric),
	}

	exists, err := s.Exists(ctx)
	if err != nil {
		return status, err
	}
	if !exists {
		return status, nil
	}
	status.Exists = true

	stats, err := s.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(s.collection))
	if err != nil {
		return status, fmt.Errorf("failed to get collection stats: %w", err)
	}
	if val, ok := stats["row_count"]; ok {
		if count, err := strconv.ParseInt(val, 10, 64); err == nil {
			status.VectorCount = count
		}
	}

	desc, err := s.client.DescribeCollection(ctx, milvusclient.NewDescribeCollectionOption(s.collection))
	if err != nil {
		return status, fmt.Errorf("failed to describe collection: %w", err)
	}
	if desc.Schema != nil {
		for _, field := range desc.Schema.Fields {
			if field.Name != fieldEmbedding {
				continue
			}
			if dim, ok := field.TypeParams["dim"]; ok {
				if d, err := strconv.Atoi(dim); err == nil {
					status.Dimensions = d
				}
			}
		}
	}

	return status, nil
}

// Clear removes every record while keeping the schema and index.
func (s *Store) Clear(ctx context.Context) error {
	exists, err := s.Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return models.ErrCollectionNotFound
	}

	if _, err := s.client.Delete(ctx, milvusclient.NewDeleteOption(s.collection).WithExpr(fieldID+" >= 0")); err != nil {
		return fmt.Errorf("failed to clear collection: %w", err)
	}
	return s.flush(ctx)
}

// Drop deletes the collection and its schema. Dropping a collection
// that does not exist is a no-op.
func (s *Store) Drop(ctx context.Context) error {
	if err := s.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(s.collection)); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

// Upsert inserts a batch of embedding records. Every vector must match
// the collection's dimensionality; a mismatch aborts the whole batch
// before anything reaches the store.
func (s *Store) Upsert(ctx context.Context, records []models.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}

	exists, err := s.Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return models.ErrCollectionNotFound
	}

	vectors := make([][]float32, len(records))
	recordIDs := make([]string, len(records))
	documentIDs := make([]string, len(records))
	sourcePaths := make([]string, len(records))
	contents := make([]string, len(records))
	pages := make([]int64, len(records))
	fileTypes := make([]string, len(records))
	chunkIDs := make([]int64, len(records))
	chunkSizes := make([]int64, len(records))
	sourceTypes := make([]string, len(records))
	indexedAts := make([]string, len(records))

	for i, rec := range records {
		if len(rec.Vector) != s.dimensions {
			return fmt.Errorf("%w: record %s has %d dimensions, collection expects %d",
				models.ErrDimensionMismatch, rec.ID, len(rec.Vector), s.dimensions)
		}
		vectors[i] = rec.Vector
		recordIDs[i] = rec.ID
		documentIDs[i] = rec.Metadata.DocumentID
		sourcePaths[i] = rec.Metadata.SourcePath
		contents[i] = rec.Text
		pages[i] = int64(rec.Metadata.Page)
		fileTypes[i] = rec.Metadata.FileType
		chunkIDs[i] = int64(rec.Metadata.ChunkID)
		chunkSizes[i] = int64(rec.Metadata.ChunkSize)
		sourceTypes[i] = rec.Metadata.SourceType
		indexedAts[i] = rec.Metadata.IndexedAt.UTC().Format(time.RFC3339)
	}

	_, err = s.client.Insert(ctx, milvusclient.NewColumnBasedInsertOption(s.collection,
		column.NewColumnFloatVector(fieldEmbedding, s.dimensions, vectors),
		column.NewColumnVarChar(fieldRecordID, recordIDs),
		column.NewColumnVarChar(fieldDocumentID, documentIDs),
		column.NewColumnVarChar(fieldSourcePath, sourcePaths),
		column.NewColumnVarChar(fieldContent, contents),
		column.NewColumnInt64(fieldPage, pages),
		column.NewColumnVarChar(fieldFileType, fileTypes),
		column.NewColumnInt64(fieldChunkID, chunkIDs),
		column.NewColumnInt64(fieldChunkSize, chunkSizes),
		column.NewColumnVarChar(fieldSourceType, sourceTypes),
		column.NewColumnVarChar(fieldIndexedAt, indexedAts),
	))
	if err != nil {
		return fmt.Errorf("failed to insert records: %w", err)
	}

	return s.flush(ctx)
}

func (s *Store) flush(ctx context.Context) error {
	flushTask, err := s.client.Flush(ctx, milvusclient.NewFlushOption(s.collection))
	if err != nil {
		return fmt.Errorf("failed to flush collection: %w", err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for flush: %w", err)
	}
	return nil
}

var searchOutputFields = []string{
	fieldDocumentID, fieldSourcePath, fieldContent,
	fieldPage, fieldFileType, fieldChunkID, fieldChunkSize,
	fieldSourceType, fieldIndexedAt,
}

// Search returns the topK records closest to vector.
func (s *Store) Search(ctx context.Context, vector []float32, topK int) ([]models.ScoredChunk, error) {
	if len(vector) != s.dimensions {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, collection expects %d",
			models.ErrDimensionMismatch, len(vector), s.dimensions)
	}

	exists, err := s.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.ErrCollectionNotFound
	}

	if err := s.load(ctx); err != nil {
		return nil, err
	}

	results, err := s.client.Search(ctx, milvusclient.NewSearchOption(
		s.collection,
		topK,
		[]entity.Vector{entity.FloatVector(vector)},
	).WithANNSField(fieldEmbedding).
		WithSearchParam("nprobe", "16").
		WithOutputFields(searchOutputFields...))
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	if len(results) == 0 {
		return []models.ScoredChunk{}, nil
	}

	hits := make([]models.ScoredChunk, 0, results[0].ResultCount)
	for i := 0; i < results[0].ResultCount; i++ {
		chunk := models.ScoredChunk{Score: results[0].Scores[i]}

		for _, field := range results[0].Fields {
			switch col := field.(type) {
			case *column.ColumnVarChar:
				value := col.Data()[i]
				switch col.Name() {
				case fieldDocumentID:
					chunk.Metadata.DocumentID = value
				case fieldSourcePath:
					chunk.Metadata.SourcePath = value
				case fieldContent:
					chunk.Text = value
				case fieldFileType:
					chunk.Metadata.FileType = value
				case fieldSourceType:
					chunk.Metadata.SourceType = value
				case fieldIndexedAt:
					if ts, err := time.Parse(time.RFC3339, value); err == nil {
						chunk.Metadata.IndexedAt = ts
					}
				}
			case *column.ColumnInt64:
				value := col.Data()[i]
				switch col.Name() {
				case fieldPage:
					chunk.Metadata.Page = int(value)
				case fieldChunkID:
					chunk.Metadata.ChunkID = int(value)
				case fieldChunkSize:
					chunk.Metadata.ChunkSize = int(value)
				}
			}
		}

		hits = append(hits, chunk)
	}

	return hits, nil
}

// DeleteByDocumentID removes every record belonging to one document.
func (s *Store) DeleteByDocumentID(ctx context.Context, documentID string) error {
	exists, err := s.Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return models.ErrCollectionNotFound
	}

	expr := fmt.Sprintf("%s == %q", fieldDocumentID, documentID)
	if _, err := s.client.Delete(ctx, milvusclient.NewDeleteOption(s.collection).WithExpr(expr)); err != nil {
		return fmt.Errorf("failed to delete document records: %w", err)
	}
	return s.flush(ctx)
}
