package services

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"customer-support-rag/models"
)

type fakeLister struct {
	docs   []models.Document
	counts map[string]int64
}

func (f *fakeLister) List(_ context.Context) ([]models.Document, error) {
	return f.docs, nil
}

func (f *fakeLister) CountByStatus(_ context.Context) (map[string]int64, error) {
	return f.counts, nil
}

func exportFixture() *fakeLister {
	indexed := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	return &fakeLister{
		docs: []models.Document{
			{
				ID:         "doc-1",
				Filename:   "refunds.pdf",
				SourcePath: "/data/refunds.pdf",
				FileType:   models.FileTypePDF,
				Status:     models.StatusCompleted,
				Pages:      4,
				ChunkCount: 12,
				SizeBytes:  20480,
				UploadedAt: indexed.Add(-time.Hour),
				IndexedAt:  &indexed,
			},
			{
				ID:           "doc-2",
				Filename:     "broken.docx",
				SourcePath:   "/data/broken.docx",
				FileType:     models.FileTypeDOCX,
				Status:       models.StatusFailed,
				ErrorMessage: "failed to open DOCX archive",
				SizeBytes:    1024,
				UploadedAt:   indexed,
			},
		},
		counts: map[string]int64{
			models.StatusCompleted: 1,
			models.StatusFailed:    1,
		},
	}
}

func TestBuildJSONExport(t *testing.T) {
	svc := NewExportService(exportFixture())

	payload, count, err := svc.BuildJSON(context.Background())
	if err != nil {
		t.Fatalf("BuildJSON failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Record count = %d, want 2", count)
	}

	var export CatalogExport
	if err := json.Unmarshal(payload, &export); err != nil {
		t.Fatalf("Export payload is not valid JSON: %v", err)
	}
	if export.ExportInfo.TotalRecords != 2 || export.ExportInfo.Format != ExportFormatJSON {
		t.Errorf("ExportInfo wrong: %+v", export.ExportInfo)
	}
	if export.Summary.TotalChunks != 12 || export.Summary.TotalPages != 4 {
		t.Errorf("Summary wrong: %+v", export.Summary)
	}
	if export.Summary.ByStatus[models.StatusFailed] != 1 {
		t.Errorf("ByStatus wrong: %+v", export.Summary.ByStatus)
	}
}

func TestBuildExcelExport(t *testing.T) {
	svc := NewExportService(exportFixture())

	payload, count, err := svc.BuildExcel(context.Background())
	if err != nil {
		t.Fatalf("BuildExcel failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Record count = %d, want 2", count)
	}
	if len(payload) == 0 {
		t.Fatal("Excel payload is empty")
	}
	// XLSX files are ZIP archives.
	if !bytes.HasPrefix(payload, []byte("PK")) {
		t.Errorf("Payload does not look like an XLSX file: % x", payload[:4])
	}
}
