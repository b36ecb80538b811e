package main

import (
	"context"
	"log"
	"time"

	"customer-support-rag/internal/ai"
	"customer-support-rag/internal/config"
	"customer-support-rag/internal/logger"
	"customer-support-rag/internal/queue"
	"customer-support-rag/internal/telemetry"
	"customer-support-rag/internal/vectorstore"
	"customer-support-rag/services"

	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

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

	// Gemini client
	aiClient, err := ai.NewClient(cfg, metrics)
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
		logger.Info("Probed embedding dimension", "dimensions", dimensions)
	}

	// Connect to Milvus and make sure the collection is ready before
	// accepting indexing tasks
	storeCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	store, err := vectorstore.New(storeCtx, cfg, dimensions)
	if err != nil {
		cancel()
		log.Fatal("Failed to connect to Milvus:", err)
	}
	if err := store.EnsureCollection(storeCtx, false); err != nil {
		cancel()
		log.Fatal("Failed to ensure collection:", err)
	}
	cancel()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		store.Close(ctx)
	}()

	// Services
	catalog := services.NewCatalogService(mongoClient.Database(cfg.DBName))
	extractor := services.NewExtractor()
	chunker := services.NewChunkerService(cfg.MaxChunkSize, cfg.ChunkOverlap)
	ingest := services.NewIngestService(extractor, chunker, aiClient, store, catalog, cfg.EmbedBatchSize)

	// Watchdog fails stuck documents and reports catalog stats
	watchdog := services.NewWatchdog(catalog, time.Duration(cfg.StaleProcessingMinutes)*time.Minute)
	if err := watchdog.Start(); err != nil {
		log.Fatal("Failed to start watchdog:", err)
	}
	defer watchdog.Stop()

	// Redis options for Asynq
	addr, password, db := config.RedisAsynqOpt(cfg)
	redisOpt := asynq.RedisClientOpt{
		Addr:     addr,
		Password: password,
		DB:       db,
	}

	// Create Asynq server
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 20, // Process 20 tasks concurrently
			Queues: map[string]int{
				"critical": 6, // 60% of workers
				"default":  3, // 30% of workers
				"low":      1, // 10% of workers
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("Task failed: %s, error: %v", task.Type(), err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(ingest, metrics)

	log.Println("🚀 Starting Asynq worker...")
	log.Printf("   Concurrency: 20")
	log.Printf("   Queues: critical(6), default(3), low(1)")
	log.Printf("   Redis: %s", redisOpt.Addr)
	log.Printf("   Collection: %s (%d dimensions)", store.Collection(), store.Dimensions())

	// Start the server
	if err := server.Run(processor.Mux()); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
