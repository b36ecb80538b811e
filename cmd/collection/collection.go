package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"customer-support-rag/internal/ai"
	"customer-support-rag/internal/config"
	"customer-support-rag/internal/logger"
	"customer-support-rag/internal/vectorstore"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: collection <command>")
		fmt.Println("Commands:")
		fmt.Println("  create [--force]  - Create the collection; --force drops and recreates it")
		fmt.Println("  status            - Show existence, vector count and dimensionality")
		fmt.Println("  clear             - Remove all vectors, keep the schema")
		fmt.Println("  delete            - Drop the collection entirely")
		os.Exit(1)
	}

	command := os.Args[1]

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	// Creating needs the real dimensionality; probe the embedding model
	// when it is not pinned. The other commands never touch the schema.
	dimensions := cfg.VectorDimensions
	if command == "create" && dimensions == 0 {
		aiClient, err := ai.NewClient(cfg, nil)
		if err != nil {
			log.Fatal("Failed to initialize Gemini client:", err)
		}
		probeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		dimensions, err = aiClient.ProbeDimension(probeCtx)
		cancel()
		aiClient.Close()
		if err != nil {
			log.Fatal("Failed to probe embedding dimension:", err)
		}
		fmt.Printf("Probed embedding dimension: %d\n", dimensions)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	store, err := vectorstore.New(ctx, cfg, dimensions)
	if err != nil {
		log.Fatal("Failed to connect to Milvus:", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		store.Close(closeCtx)
	}()

	switch command {
	case "create":
		force := len(os.Args) > 2 && os.Args[2] == "--force"
		if force && !confirm(fmt.Sprintf("Recreate %q? All existing vectors will be lost.", cfg.CollectionName)) {
			fmt.Println("Aborted")
			return
		}
		if err := store.EnsureCollection(ctx, force); err != nil {
			log.Fatalf("Create failed: %v", err)
		}
		fmt.Printf("Collection %q ready (%d dimensions, %s)\n",
			store.Collection(), store.Dimensions(), strings.ToUpper(cfg.DistanceMetric))

	case "status":
		status, err := store.Status(ctx)
		if err != nil {
			log.Fatalf("Status failed: %v", err)
		}
		fmt.Printf("Collection: %s\n", status.Name)
		fmt.Printf("Exists:     %v\n", status.Exists)
		if status.Exists {
			fmt.Printf("Vectors:    %d\n", status.VectorCount)
			fmt.Printf("Dimensions: %d\n", status.Dimensions)
			fmt.Printf("Metric:     %s\n", status.Metric)
		}

	case "clear":
		if !confirm(fmt.Sprintf("Remove ALL vectors from %q?", cfg.CollectionName)) {
			fmt.Println("Aborted")
			return
		}
		if err := store.Clear(ctx); err != nil {
			log.Fatalf("Clear failed: %v", err)
		}
		fmt.Println("Collection cleared")

	case "delete":
		if !confirm(fmt.Sprintf("Drop collection %q entirely?", cfg.CollectionName)) {
			fmt.Println("Aborted")
			return
		}
		if err := store.Drop(ctx); err != nil {
			log.Fatalf("Delete failed: %v", err)
		}
		fmt.Println("Collection deleted")

	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func confirm(prompt string) bool {
	fmt.Printf("%s Type 'yes' to continue: ", prompt)
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(answer) == "yes"
}
