package models

import (
	"time"
)

// Document is the catalog record for one ingested source file.
// The extracted per-page text is stored as gzip-compressed JSON so a
// collection rebuild can re-chunk and re-embed without re-parsing the
// original file.
type Document struct {
	ID             string     `bson:"_id" json:"id"`
	Filename       string     `bson:"filename" json:"filename"`
	SourcePath     string     `bson:"source_path" json:"source_path"`
	FileType       string     `bson:"file_type" json:"file_type"` // "pdf" or "docx"
	SourceType     string     `bson:"source_type,omitempty" json:"source_type,omitempty"`
	ContentHash    string     `bson:"content_hash,omitempty" json:"content_hash,omitempty"`
	SizeBytes      int64      `bson:"size_bytes" json:"size_bytes"`
	Pages          int        `bson:"pages" json:"pages"`
	ChunkCount     int        `bson:"chunk_count" json:"chunk_count"`
	Status         string     `bson:"status" json:"status"` // pending, processing, completed, failed
	ErrorMessage   string     `bson:"error_message,omitempty" json:"error_message,omitempty"`
	CompressedText []byte     `bson:"compressed_text,omitempty" json:"-"`
	UploadedAt     time.Time  `bson:"uploaded_at" json:"uploaded_at"`
	UpdatedAt      time.Time  `bson:"updated_at" json:"updated_at"`
	IndexedAt      *time.Time `bson:"indexed_at,omitempty" json:"indexed_at,omitempty"`
}

// Ingestion status constants
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// File type tags
const (
	FileTypePDF  = "pdf"
	FileTypeDOCX = "docx"
)

// PageText is the extracted text of a single page, in document order.
type PageText struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// ExtractedDocument is the output of format-specific text extraction.
// Formats without page boundaries (DOCX) report a single page 1; Text
// always holds the full concatenated content.
type ExtractedDocument struct {
	Text      string     `json:"text"`
	Pages     []PageText `json:"pages,omitempty"`
	FileType  string     `json:"file_type"`
	CharCount int        `json:"char_count"`
	WordCount int        `json:"word_count"`
}

// Chunk is one window of a document's text, the unit of embedding.
type Chunk struct {
	Text        string `json:"text"`
	Index       int    `json:"index"`
	StartOffset int    `json:"start_offset"`
	Page        int    `json:"page,omitempty"`
}

// ChunkMetadata travels with every vector record so retrieval can
// attribute an answer back to its source.
type ChunkMetadata struct {
	DocumentID string    `json:"document_id"`
	SourcePath string    `json:"source_path"`
	Page       int       `json:"page"`
	FileType   string    `json:"file_type"`
	ChunkID    int       `json:"chunk_id"`
	ChunkSize  int       `json:"chunk_size"`
	SourceType string    `json:"source_type,omitempty"`
	IndexedAt  time.Time `json:"indexed_at"`
}

// EmbeddingRecord is what gets upserted into the vector store.
type EmbeddingRecord struct {
	ID       string        `json:"id"`
	Vector   []float32     `json:"vector"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// ScoredChunk is one retrieval hit with its similarity score.
type ScoredChunk struct {
	Text     string        `json:"text"`
	Score    float32       `json:"score"`
	Metadata ChunkMetadata `json:"metadata"`
}

// CollectionStatus describes the vector collection for operators.
type CollectionStatus struct {
	Name        string `json:"name"`
	Exists      bool   `json:"exists"`
	VectorCount int64  `json:"vector_count"`
	Dimensions  int    `json:"dimensions"`
	Metric      string `json:"metric"`
}

// FileResult is the per-file outcome of an ingestion run.
type FileResult struct {
	FilePath   string        `json:"file_path"`
	ChunkCount int           `json:"chunk_count"`
	Pages      int           `json:"pages"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

// Succeeded reports whether the file made it into the index.
func (r FileResult) Succeeded() bool {
	return r.Error == ""
}

// IngestReport summarizes a single-file or directory ingestion run.
type IngestReport struct {
	Files       []FileResult `json:"files"`
	TotalChunks int          `json:"total_chunks"`
	Failed      int          `json:"failed"`
}

// UploadResponse is returned after a document upload is accepted.
type UploadResponse struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Message  string `json:"message"`
	TaskID   string `json:"task_id,omitempty"`
}
