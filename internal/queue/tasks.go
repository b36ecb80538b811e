package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"customer-support-rag/internal/logger"
	"customer-support-rag/internal/telemetry"
	"customer-support-rag/models"
)

const (
	TaskDocumentIngest  = "document:ingest"
	TaskDocumentReindex = "document:reindex"
)

// DocumentIngestPayload identifies the catalog record a worker should
// run the ingestion pipeline for. SourcePath is informational; the
// pipeline reads the path from the catalog record.
type DocumentIngestPayload struct {
	DocumentID string `json:"document_id"`
	SourcePath string `json:"source_path"`
}

type DocumentReindexPayload struct {
	DocumentID string `json:"document_id"`
}

// Task creators
func NewDocumentIngestTask(documentID, sourcePath string) (*asynq.Task, error) {
	payload, err := json.Marshal(DocumentIngestPayload{
		DocumentID: documentID,
		SourcePath: sourcePath,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskDocumentIngest,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("critical"),
	), nil
}

func NewDocumentReindexTask(documentID string) (*asynq.Task, error) {
	payload, err := json.Marshal(DocumentReindexPayload{DocumentID: documentID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskDocumentReindex,
		payload,
		asynq.MaxRetry(2),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("default"),
	), nil
}

// Ingestor is the slice of the ingestion pipeline the worker drives.
type Ingestor interface {
	IngestDocument(ctx context.Context, documentID string) (chunkCount int, err error)
	ReindexDocument(ctx context.Context, documentID string) (chunkCount, pages int, err error)
}

// TaskProcessor wires queue tasks to the ingestion pipeline.
type TaskProcessor struct {
	ingest  Ingestor
	metrics *telemetry.Metrics
}

// NewTaskProcessor builds the worker-side task handlers. metrics may be
// nil when the worker runs without telemetry.
func NewTaskProcessor(ingest Ingestor, metrics *telemetry.Metrics) *TaskProcessor {
	return &TaskProcessor{ingest: ingest, metrics: metrics}
}

// Mux returns the task router for the worker server.
func (p *TaskProcessor) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskDocumentIngest, p.HandleDocumentIngest)
	mux.HandleFunc(TaskDocumentReindex, p.HandleDocumentReindex)
	return mux
}

// HandleDocumentIngest processes one queued document. Bad input is
// permanent and skips the retry loop; backend trouble retries.
func (p *TaskProcessor) HandleDocumentIngest(ctx context.Context, t *asynq.Task) error {
	var payload DocumentIngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("Processing queued document",
		"document_id", payload.DocumentID,
		"source_path", payload.SourcePath)

	start := time.Now()
	chunks, err := p.ingest.IngestDocument(ctx, payload.DocumentID)
	if err != nil {
		p.metrics.RecordIngest(time.Since(start).Seconds(), "failed", 0)
		if isPermanent(err) {
			logger.Error("Queued document rejected", "document_id", payload.DocumentID, "error", err)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	p.metrics.RecordIngest(time.Since(start).Seconds(), "completed", int64(chunks))

	logger.Info("Queued document indexed", "document_id", payload.DocumentID, "chunks", chunks)
	return nil
}

func (p *TaskProcessor) HandleDocumentReindex(ctx context.Context, t *asynq.Task) error {
	var payload DocumentReindexPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	start := time.Now()
	chunks, pages, err := p.ingest.ReindexDocument(ctx, payload.DocumentID)
	if err != nil {
		p.metrics.RecordIngest(time.Since(start).Seconds(), "failed", 0)
		if isPermanent(err) {
			logger.Error("Reindex rejected", "document_id", payload.DocumentID, "error", err)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	p.metrics.RecordIngest(time.Since(start).Seconds(), "completed", int64(chunks))

	logger.Info("Document reindexed",
		"document_id", payload.DocumentID,
		"chunks", chunks,
		"pages", pages)
	return nil
}

// isPermanent reports errors no retry can fix: unusable documents or
// records that no longer exist.
func isPermanent(err error) bool {
	return errors.Is(err, models.ErrUnsupportedFormat) ||
		errors.Is(err, models.ErrEmptyDocument) ||
		errors.Is(err, models.ErrDocumentNotFound) ||
		errors.Is(err, models.ErrDimensionMismatch)
}
