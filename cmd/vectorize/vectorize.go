package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"customer-support-rag/internal/ai"
	"customer-support-rag/internal/config"
	"customer-support-rag/internal/logger"
	"customer-support-rag/internal/vectorstore"
	"customer-support-rag/models"
	"customer-support-rag/services"
)

func main() {
	filePath := flag.String("file", "", "Path to a single PDF or DOCX file to ingest")
	directory := flag.String("directory", "", "Directory to scan recursively for documents")
	sourceInfo := flag.String("source-info", "", "Free-form source label stored with each chunk")
	listOnly := flag.Bool("list-files", false, "List candidate files without processing them")
	reindex := flag.Bool("reindex", false, "Rebuild vectors for completed catalog entries from stored text")
	flag.Parse()

	if *filePath == "" && *directory == "" && !*reindex {
		fmt.Println("Usage: vectorize -file <path> | -directory <path> [-list-files] | -reindex")
		fmt.Println("Flags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	// Listing needs no backends at all
	if *listOnly {
		if *directory == "" {
			log.Fatal("-list-files requires -directory")
		}
		listFiles(*directory)
		return
	}

	// Connect to MongoDB for the document catalog
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	// Gemini client without telemetry
	aiClient, err := ai.NewClient(cfg, nil)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer aiClient.Close()

	dimensions := cfg.VectorDimensions
	if dimensions == 0 {
		probeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		dimensions, err = aiClient.ProbeDimension(probeCtx)
		cancel()
		if err != nil {
			log.Fatal("Failed to probe embedding dimension:", err)
		}
	}

	storeCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	store, err := vectorstore.New(storeCtx, cfg, dimensions)
	if err != nil {
		cancel()
		log.Fatal("Failed to connect to Milvus:", err)
	}
	exists, err := store.Exists(storeCtx)
	cancel()
	if err != nil {
		log.Fatal("Failed to check collection:", err)
	}
	if !exists {
		log.Fatalf("Collection %q does not exist. Run 'collection create' first.", cfg.CollectionName)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		store.Close(ctx)
	}()

	catalog := services.NewCatalogService(mongoClient.Database(cfg.DBName))
	extractor := services.NewExtractor()
	chunker := services.NewChunkerService(cfg.MaxChunkSize, cfg.ChunkOverlap)
	ingest := services.NewIngestService(extractor, chunker, aiClient, store, catalog, cfg.EmbedBatchSize)

	ctx := context.Background()

	switch {
	case *reindex:
		report, err := ingest.ReindexAll(ctx)
		if err != nil {
			log.Fatal("Reindex failed:", err)
		}
		printReport(report)
		if report.Failed > 0 {
			os.Exit(1)
		}

	case *filePath != "":
		result := ingest.IngestFile(ctx, *filePath, *sourceInfo)
		printResult(result)
		if !result.Succeeded() {
			os.Exit(1)
		}

	default:
		report, err := ingest.IngestDirectory(ctx, *directory, *sourceInfo)
		if err != nil {
			log.Fatal("Ingestion failed:", err)
		}
		printReport(report)
		if report.Failed > 0 {
			os.Exit(1)
		}
	}
}

func listFiles(dir string) {
	files, err := services.ListSupportedFiles(dir)
	if err != nil {
		log.Fatal("Failed to scan directory:", err)
	}
	for _, f := range files {
		fmt.Println(f)
	}
	fmt.Printf("\n%d supported files under %s\n", len(files), dir)
}

func printResult(result models.FileResult) {
	if result.Succeeded() {
		fmt.Printf("✅ %s: %d chunks from %d pages in %s\n",
			result.FilePath, result.ChunkCount, result.Pages, result.Duration.Round(time.Millisecond))
	} else {
		fmt.Printf("❌ %s: %s\n", result.FilePath, result.Error)
	}
}

func printReport(report *models.IngestReport) {
	for _, result := range report.Files {
		printResult(result)
	}
	fmt.Printf("\nIndexed %d chunks from %d files, %d failed\n",
		report.TotalChunks, len(report.Files)-report.Failed, report.Failed)
}
