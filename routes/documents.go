package routes

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"customer-support-rag/internal/config"
	"customer-support-rag/internal/logger"
	"customer-support-rag/internal/queue"
	"customer-support-rag/middleware"
	"customer-support-rag/models"
	"customer-support-rag/services"
	"customer-support-rag/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

func SetupDocumentRoutes(router *gin.Engine, cfg *config.Config, catalog *services.CatalogService, ingest *services.IngestService, export *services.ExportService, queueClient *asynq.Client) {
	docs := router.Group("/api/v1/documents")
	docs.Use(middleware.RequestSizeLimit(cfg.MaxFileSize))
	docs.POST("", UploadDocument(cfg, catalog, queueClient))
	docs.GET("", ListDocuments(catalog))
	docs.GET("/export", ExportCatalog(export))
	docs.GET("/:id", GetDocument(catalog))
	docs.DELETE("/:id", DeleteDocument(ingest))
	docs.POST("/:id/reindex", ReindexDocument(catalog, queueClient))
}

// UploadDocument accepts a multipart file, stages it on disk, creates a
// pending catalog record and enqueues the indexing task. The response
// is 202; clients poll GET /:id for the outcome.
func UploadDocument(cfg *config.Config, catalog *services.CatalogService, queueClient *asynq.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.Request.ParseMultipartForm(cfg.MaxFileSize); err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "file_too_large",
				"File size exceeds maximum limit",
				gin.H{"max_size_mb": cfg.MaxFileSize / (1024 * 1024)})
			return
		}

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "No file provided in 'file' field", nil)
			return
		}
		defer file.Close()

		fileType, err := services.FileTypeForPath(header.Filename)
		if err != nil || !extensionAllowed(cfg.AllowedTypes, filepath.Ext(header.Filename)) {
			utils.RespondWithError(c, http.StatusBadRequest, "invalid_file_type",
				"File type is not accepted for upload",
				gin.H{"filename": header.Filename, "allowed": cfg.AllowedTypes})
			return
		}

		if header.Size > cfg.MaxFileSize {
			utils.RespondWithError(c, http.StatusBadRequest, "file_too_large",
				"File size exceeds maximum limit",
				gin.H{"size": header.Size, "max_size": cfg.MaxFileSize})
			return
		}

		// Check the magic bytes before trusting the extension
		head := make([]byte, 8)
		if _, err := io.ReadFull(file, head); err != nil {
			utils.RespondWithBadRequest(c, "Cannot read file header", nil)
			return
		}
		if err := services.SniffFileType(head, fileType); err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "invalid_file",
				"File content does not match its extension", gin.H{"error": err.Error()})
			return
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			utils.RespondWithInternalError(c, "Failed to reset file for saving", nil)
			return
		}

		docID := uuid.NewString()
		uploadDir := filepath.Join(cfg.FileStorageDir, "documents")
		if err := os.MkdirAll(uploadDir, 0755); err != nil {
			utils.RespondWithInternalError(c, "Failed to create upload directory", nil)
			return
		}

		filePath := filepath.Join(uploadDir, docID+strings.ToLower(filepath.Ext(header.Filename)))
		dst, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to open destination", nil)
			return
		}
		if _, err := io.Copy(dst, io.LimitReader(file, cfg.MaxFileSize)); err != nil {
			dst.Close()
			os.Remove(filePath)
			utils.RespondWithInternalError(c, "Failed to save file", nil)
			return
		}
		dst.Close()

		hash, err := utils.HashFile(filePath)
		if err != nil {
			os.Remove(filePath)
			utils.RespondWithInternalError(c, "Failed to hash file", nil)
			return
		}

		sourceType := c.PostForm("source")
		if sourceType == "" {
			sourceType = "upload"
		}

		doc := &models.Document{
			ID:          docID,
			Filename:    header.Filename,
			SourcePath:  filePath,
			FileType:    fileType,
			SourceType:  sourceType,
			ContentHash: hash,
			SizeBytes:   header.Size,
		}
		if err := catalog.Register(c.Request.Context(), doc); err != nil {
			os.Remove(filePath)
			utils.RespondWithInternalError(c, "Failed to create catalog record", nil)
			return
		}

		task, err := queue.NewDocumentIngestTask(doc.ID, filePath)
		if err != nil {
			cleanupUpload(c, catalog, doc.ID, filePath)
			utils.RespondWithInternalError(c, "Failed to create indexing task", nil)
			return
		}
		info, err := queueClient.Enqueue(task)
		if err != nil {
			cleanupUpload(c, catalog, doc.ID, filePath)
			utils.RespondWithServiceUnavailable(c, "Indexing queue is unavailable, try again later")
			return
		}

		logger.Info("Document upload accepted",
			"id", doc.ID,
			"filename", doc.Filename,
			"size", doc.SizeBytes,
			"task_id", info.ID)

		c.JSON(http.StatusAccepted, models.UploadResponse{
			ID:       doc.ID,
			Filename: doc.Filename,
			Status:   models.StatusPending,
			Message:  "Document accepted for indexing",
			TaskID:   info.ID,
		})
	}
}

// extensionAllowed checks an extension against the configured allow
// list. Entries may be listed with or without the leading dot.
func extensionAllowed(allowed []string, ext string) bool {
	ext = strings.ToLower(ext)
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == ext || "."+a == ext {
			return true
		}
	}
	return false
}

func cleanupUpload(c *gin.Context, catalog *services.CatalogService, docID, filePath string) {
	os.Remove(filePath)
	if err := catalog.Delete(c.Request.Context(), docID); err != nil {
		logger.Warn("Failed to clean up catalog record", "id", docID, "error", err)
	}
}

// ListDocuments returns catalog records, newest first. Accepts optional
// ?status= and ?limit= query parameters.
func ListDocuments(catalog *services.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := c.Query("status")

		var (
			docs []models.Document
			err  error
		)
		if status != "" {
			docs, err = catalog.ListByStatus(c.Request.Context(), status)
		} else {
			docs, err = catalog.List(c.Request.Context())
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list documents", nil)
			return
		}

		total := len(docs)
		limit := 50
		if l, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil && l > 0 && l <= 500 {
			limit = l
		}
		if len(docs) > limit {
			docs = docs[:limit]
		}

		c.JSON(http.StatusOK, gin.H{
			"documents": docs,
			"total":     total,
		})
	}
}

func GetDocument(catalog *services.CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := catalog.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, models.ErrDocumentNotFound) {
				utils.RespondWithNotFound(c, "Document not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to retrieve document", nil)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

// DeleteDocument removes the document's vectors and its catalog record.
func DeleteDocument(ingest *services.IngestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := ingest.DeleteDocument(c.Request.Context(), id); err != nil {
			if errors.Is(err, models.ErrDocumentNotFound) {
				utils.RespondWithNotFound(c, "Document not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to delete document", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Document deleted", "id": id})
	}
}

// ReindexDocument enqueues a rebuild of one document's vectors from its
// stored extracted text.
func ReindexDocument(catalog *services.CatalogService, queueClient *asynq.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if _, err := catalog.Get(c.Request.Context(), id); err != nil {
			if errors.Is(err, models.ErrDocumentNotFound) {
				utils.RespondWithNotFound(c, "Document not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to retrieve document", nil)
			return
		}

		task, err := queue.NewDocumentReindexTask(id)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to create reindex task", nil)
			return
		}
		info, err := queueClient.Enqueue(task)
		if err != nil {
			utils.RespondWithServiceUnavailable(c, "Indexing queue is unavailable, try again later")
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"id":      id,
			"task_id": info.ID,
			"message": "Reindex scheduled",
		})
	}
}

// ExportCatalog streams the catalog as a downloadable JSON or Excel file.
func ExportCatalog(export *services.ExportService) gin.HandlerFunc {
	return func(c *gin.Context) {
		format := c.DefaultQuery("format", services.ExportFormatJSON)

		var (
			payload     []byte
			contentType string
			ext         string
			err         error
		)
		switch format {
		case services.ExportFormatJSON:
			payload, _, err = export.BuildJSON(c.Request.Context())
			contentType = "application/json"
			ext = ".json"
		case services.ExportFormatExcel:
			payload, _, err = export.BuildExcel(c.Request.Context())
			contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
			ext = ".xlsx"
		default:
			utils.RespondWithBadRequest(c, "Format must be json or excel", gin.H{"format": format})
			return
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to build export", gin.H{"error": err.Error()})
			return
		}

		filename := "document_catalog_" + time.Now().Format("20060102_150405") + ext
		c.Header("Content-Disposition", "attachment; filename="+filename)
		c.Data(http.StatusOK, contentType, payload)
	}
}
