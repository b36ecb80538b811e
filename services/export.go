package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"customer-support-rag/models"
)

// ExportFormat values accepted by the catalog export endpoint.
const (
	ExportFormatJSON  = "json"
	ExportFormatExcel = "excel"
)

// CatalogExport is the JSON payload of a catalog export.
type CatalogExport struct {
	ExportInfo ExportInfo        `json:"export_info"`
	Documents  []models.Document `json:"documents"`
	Summary    ExportSummary     `json:"summary"`
}

type ExportInfo struct {
	ExportDate   time.Time `json:"export_date"`
	TotalRecords int       `json:"total_records"`
	Format       string    `json:"format"`
}

type ExportSummary struct {
	ByStatus    map[string]int64 `json:"by_status"`
	TotalChunks int              `json:"total_chunks"`
	TotalPages  int              `json:"total_pages"`
	TotalBytes  int64            `json:"total_bytes"`
}

// catalogLister is the read slice of the catalog the exporter needs.
type catalogLister interface {
	List(ctx context.Context) ([]models.Document, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// ExportService renders the document catalog as downloadable reports
// for operators reviewing what the chatbot can answer from.
type ExportService struct {
	catalog catalogLister
}

func NewExportService(catalog catalogLister) *ExportService {
	return &ExportService{catalog: catalog}
}

func (es *ExportService) buildExport(ctx context.Context, format string) (*CatalogExport, error) {
	docs, err := es.catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := es.catalog.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	summary := ExportSummary{ByStatus: counts}
	for _, doc := range docs {
		summary.TotalChunks += doc.ChunkCount
		summary.TotalPages += doc.Pages
		summary.TotalBytes += doc.SizeBytes
	}

	return &CatalogExport{
		ExportInfo: ExportInfo{
			ExportDate:   time.Now(),
			TotalRecords: len(docs),
			Format:       format,
		},
		Documents: docs,
		Summary:   summary,
	}, nil
}

// BuildJSON renders the catalog as indented JSON and returns the bytes
// plus the record count.
func (es *ExportService) BuildJSON(ctx context.Context) ([]byte, int, error) {
	data, err := es.buildExport(ctx, ExportFormatJSON)
	if err != nil {
		return nil, 0, err
	}

	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return payload, data.ExportInfo.TotalRecords, nil
}

// BuildExcel renders the catalog into a two-sheet workbook: the
// document inventory plus a summary with per-status counts.
func (es *ExportService) BuildExcel(ctx context.Context) ([]byte, int, error) {
	data, err := es.buildExport(ctx, ExportFormatExcel)
	if err != nil {
		return nil, 0, err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			fmt.Printf("Error closing Excel file: %v\n", err)
		}
	}()

	sheetName := "Documents"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headers := []string{
		"ID", "Filename", "Source Path", "Type", "Source", "Status",
		"Pages", "Chunks", "Size (bytes)", "Content Hash", "Uploaded At", "Indexed At", "Error",
	}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIdx, doc := range data.Documents {
		row := rowIdx + 2

		indexedAt := ""
		if doc.IndexedAt != nil {
			indexedAt = doc.IndexedAt.Format("2006-01-02 15:04:05")
		}

		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), doc.ID)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), doc.Filename)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), doc.SourcePath)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), doc.FileType)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), doc.SourceType)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), doc.Status)
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), doc.Pages)
		f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), doc.ChunkCount)
		f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), doc.SizeBytes)
		f.SetCellValue(sheetName, fmt.Sprintf("J%d", row), doc.ContentHash)
		f.SetCellValue(sheetName, fmt.Sprintf("K%d", row), doc.UploadedAt.Format("2006-01-02 15:04:05"))
		f.SetCellValue(sheetName, fmt.Sprintf("L%d", row), indexedAt)
		f.SetCellValue(sheetName, fmt.Sprintf("M%d", row), doc.ErrorMessage)
	}

	for i := range headers {
		col := fmt.Sprintf("%c:%c", 'A'+i, 'A'+i)
		f.SetColWidth(sheetName, col, col, 18)
	}

	summarySheetName := "Summary"
	if _, err := f.NewSheet(summarySheetName); err != nil {
		return nil, 0, fmt.Errorf("failed to create summary sheet: %w", err)
	}

	summaryData := [][]interface{}{
		{"Export Information", ""},
		{"Export Date", data.ExportInfo.ExportDate.Format("2006-01-02 15:04:05")},
		{"Total Documents", data.ExportInfo.TotalRecords},
		{"", ""},
		{"Summary Statistics", ""},
		{"Total Chunks", data.Summary.TotalChunks},
		{"Total Pages", data.Summary.TotalPages},
		{"Total Size (bytes)", data.Summary.TotalBytes},
	}
	for i, row := range summaryData {
		for j, cell := range row {
			cellRef := fmt.Sprintf("%c%d", 'A'+j, i+1)
			f.SetCellValue(summarySheetName, cellRef, cell)
		}
	}

	if len(data.Summary.ByStatus) > 0 {
		row := len(summaryData) + 3
		f.SetCellValue(summarySheetName, fmt.Sprintf("A%d", row), "Documents by Status")
		f.SetCellValue(summarySheetName, fmt.Sprintf("B%d", row), "Count")
		row++

		for _, status := range []string{models.StatusCompleted, models.StatusProcessing, models.StatusPending, models.StatusFailed} {
			count, ok := data.Summary.ByStatus[status]
			if !ok {
				continue
			}
			f.SetCellValue(summarySheetName, fmt.Sprintf("A%d", row), status)
			f.SetCellValue(summarySheetName, fmt.Sprintf("B%d", row), count)
			row++
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, 0, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), data.ExportInfo.TotalRecords, nil
}
