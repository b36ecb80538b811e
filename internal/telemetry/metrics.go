package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics. A nil *Metrics is valid and
// records nothing, so tools that skip telemetry can pass nil.
type Metrics struct {
	RequestCounter     metric.Int64Counter
	RequestDuration    metric.Float64Histogram
	TokensUsed         metric.Int64Counter
	IngestDuration     metric.Float64Histogram
	ChunksIndexed      metric.Int64Counter
	AnswersStreamed    metric.Int64Counter
	RetrievedDocuments metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("customer-support-rag")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	tokensUsed, err := meter.Int64Counter(
		"gemini.tokens.used",
		metric.WithDescription("Total Gemini tokens used"),
	)
	if err != nil {
		return nil, err
	}

	ingestDuration, err := meter.Float64Histogram(
		"document.ingest.duration",
		metric.WithDescription("Document ingestion duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	chunksIndexed, err := meter.Int64Counter(
		"document.chunks.indexed",
		metric.WithDescription("Total chunks written to the vector collection"),
	)
	if err != nil {
		return nil, err
	}

	answersStreamed, err := meter.Int64Counter(
		"chat.answers.streamed",
		metric.WithDescription("Total streamed chat answers"),
	)
	if err != nil {
		return nil, err
	}

	retrievedDocuments, err := meter.Int64Counter(
		"chat.documents.retrieved",
		metric.WithDescription("Total context chunks retrieved for answers"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:     requestCounter,
		RequestDuration:    requestDuration,
		TokensUsed:         tokensUsed,
		IngestDuration:     ingestDuration,
		ChunksIndexed:      chunksIndexed,
		AnswersStreamed:    answersStreamed,
		RetrievedDocuments: retrievedDocuments,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordTokensUsed records Gemini token usage
func (m *Metrics) RecordTokensUsed(tokens int64, model string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("gemini.model", model),
	}

	m.TokensUsed.Add(context.Background(), tokens, metric.WithAttributes(attrs...))
}

// RecordIngest records one document ingestion outcome
func (m *Metrics) RecordIngest(duration float64, status string, chunks int64) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("ingest.status", status),
	}

	m.IngestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
	if chunks > 0 {
		m.ChunksIndexed.Add(context.Background(), chunks)
	}
}

// RecordAnswer records one streamed answer and its retrieval size
func (m *Metrics) RecordAnswer(outcome string, retrieved int64) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("chat.outcome", outcome),
	}

	m.AnswersStreamed.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	if retrieved > 0 {
		m.RetrievedDocuments.Add(context.Background(), retrieved)
	}
}
