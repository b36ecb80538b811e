package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"customer-support-rag/internal/ai"
	"customer-support-rag/internal/config"
	"customer-support-rag/internal/logger"
	"customer-support-rag/internal/telemetry"
	"customer-support-rag/internal/vectorstore"
	"customer-support-rag/middleware"
	"customer-support-rag/routes"
	"customer-support-rag/services"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	// Telemetry
	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer("customer-support-rag", cfg.OTLPEndpoint)
		if err != nil {
			log.Fatal("Failed to initialize tracer:", err)
		}
		defer shutdown()
	}
	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	// Connect to Redis (rate limiting + task queue)
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	// Gemini client for embeddings and generation
	aiClient, err := ai.NewClient(cfg, metrics)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer aiClient.Close()

	// Resolve the vector dimensionality, probing the embedding model
	// when it is not pinned in configuration
	dimensions := cfg.VectorDimensions
	if dimensions == 0 {
		probeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		dimensions, err = aiClient.ProbeDimension(probeCtx)
		cancel()
		if err != nil {
			log.Fatal("Failed to probe embedding dimension:", err)
		}
		logger.Info("Probed embedding dimension", "dimensions", dimensions)
	}

	// Connect to Milvus
	storeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := vectorstore.New(storeCtx, cfg, dimensions)
	cancel()
	if err != nil {
		log.Fatal("Failed to connect to Milvus:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		store.Close(ctx)
	}()

	// Task queue client for upload and reindex enqueueing
	addr, password, db := config.RedisAsynqOpt(cfg)
	queueClient := asynq.NewClient(asynq.RedisClientOpt{Addr: addr, Password: password, DB: db})
	defer queueClient.Close()

	// Services
	catalog := services.NewCatalogService(mongoClient.Database(cfg.DBName))
	extractor := services.NewExtractor()
	chunker := services.NewChunkerService(cfg.MaxChunkSize, cfg.ChunkOverlap)
	ingest := services.NewIngestService(extractor, chunker, aiClient, store, catalog, cfg.EmbedBatchSize)
	responder := services.NewResponderService(aiClient, store, cfg.MaxDocuments, cfg.SimilarityThreshold, cfg.FollowupQuestions)
	export := services.NewExportService(catalog)

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	if cfg.TracingEnabled {
		router.Use(middleware.TracingMiddleware())
		router.Use(middleware.EnrichTrace())
	}
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.RateLimitMiddleware(rdb, cfg))

	// Setup routes
	routes.SetupHealthRoutes(router, mongoClient, rdb, store)
	routes.SetupChatRoutes(router, responder, metrics)
	routes.SetupDocumentRoutes(router, cfg, catalog, ingest, export, queueClient)
	routes.SetupCollectionRoutes(router, store)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
