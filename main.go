package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/edupipe/course-agent/api"
	"github.com/edupipe/course-agent/chat"
	"github.com/edupipe/course-agent/config"
	"github.com/edupipe/course-agent/database"
	"github.com/edupipe/course-agent/embeddings"
	"github.com/edupipe/course-agent/ingestion"
	"github.com/edupipe/course-agent/knowledge"
	"github.com/edupipe/course-agent/llm"
	"github.com/edupipe/course-agent/search"
	"github.com/edupipe/course-agent/session"
	"github.com/edupipe/course-agent/store"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()

	switch os.Args[1] {
	case "ingest":
		ingestCmd(cfg, logger, os.Args[2:])
	case "serve":
		serveCmd(cfg, logger, os.Args[2:])
	case "ask":
		askCmd(cfg, logger, os.Args[2:])
	case "clear":
		clearCmd(cfg, logger, os.Args[2:])
	default:
		logger.Printf("unknown command: %s", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func ingestCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("ingest", flag.ExitOnError)
	docsDir := flags.String("dir", cfg.DocsDir, "path to directory containing course documents")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse ingest flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pgPool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("postgres connection: %v", err)
	}
	defer pgPool.Close()

	neo4jDriver, err := database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
	if err != nil {
		logger.Fatalf("neo4j connection: %v", err)
	}
	defer neo4jDriver.Close(ctx)

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		logger.Fatalf("embedder setup: %v", err)
	}

	chunker := ingestion.NewChunker(cfg.Search.ChunkSize, cfg.Search.ChunkOverlap)
	svc := ingestion.NewService(pgPool, neo4jDriver, embedder, chunker, logger, cfg.Embeddings.Dimension)
	logger.Printf("ingesting course documents from %s using %s/%s embeddings", *docsDir, strings.ToUpper(cfg.Embeddings.Provider), cfg.Embeddings.Model)

	report, err := svc.IngestDirectory(ctx, *docsDir)
	if err != nil {
		logger.Fatalf("ingestion failed: %v", err)
	}
	logger.Printf("ingested %d courses (%d chunks, %d skipped)", report.Courses, report.Chunks, report.Skipped)
}

func serveCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := flags.String("addr", cfg.Addr, "address to listen on")
	skipIngest := flags.Bool("skip-ingest", false, "do not ingest the docs directory at startup")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse serve flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pgPool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("postgres connection: %v", err)
	}
	defer pgPool.Close()

	neo4jDriver, err := database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
	if err != nil {
		logger.Fatalf("neo4j connection: %v", err)
	}
	defer neo4jDriver.Close(ctx)

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		logger.Fatalf("embedder setup: %v", err)
	}

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		logger.Fatalf("llm setup: %v", err)
	}

	chunker := ingestion.NewChunker(cfg.Search.ChunkSize, cfg.Search.ChunkOverlap)
	if !*skipIngest {
		svc := ingestion.NewService(pgPool, neo4jDriver, embedder, chunker, logger, cfg.Embeddings.Dimension)
		report, ingestErr := svc.IngestDirectory(ctx, cfg.DocsDir)
		if ingestErr != nil {
			logger.Printf("startup ingest skipped: %v", ingestErr)
		} else {
			logger.Printf("loaded %d courses (%d chunks, %d skipped)", report.Courses, report.Chunks, report.Skipped)
		}
	}

	courseStore := store.NewPostgres(pgPool, embedder, cfg.Search.MaxResults)

	manager, err := search.NewManager(
		search.NewCourseSearchTool(courseStore, cfg.Search.MaxResults),
		search.NewCourseOutlineTool(courseStore),
	)
	if err != nil {
		logger.Fatalf("tool setup: %v", err)
	}

	sessions := session.New(cfg.MaxHistory)
	chatSvc := chat.NewService(llmClient, manager, sessions, logger)
	server := api.New(chatSvc, courseStore, neo4jDriver, logger)

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("server shutdown: %v", err)
		}
	}()

	logger.Printf("listening on %s", *addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("serve: %v", err)
	}
}

func askCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("ask", flag.ExitOnError)
	question := flags.String("question", "", "question to ask about the course materials")
	sessionID := flags.String("session", "", "session id to continue a conversation")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse ask flags: %v", err)
	}

	if strings.TrimSpace(*question) == "" {
		fmt.Print("Enter your question: ")
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			*question = scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			logger.Fatalf("read question: %v", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pgPool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("postgres connection: %v", err)
	}
	defer pgPool.Close()

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		logger.Fatalf("embedder setup: %v", err)
	}

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		logger.Fatalf("llm setup: %v", err)
	}

	courseStore := store.NewPostgres(pgPool, embedder, cfg.Search.MaxResults)

	manager, err := search.NewManager(
		search.NewCourseSearchTool(courseStore, cfg.Search.MaxResults),
		search.NewCourseOutlineTool(courseStore),
	)
	if err != nil {
		logger.Fatalf("tool setup: %v", err)
	}

	sessions := session.New(cfg.MaxHistory)
	svc := chat.NewService(llmClient, manager, sessions, logger)

	resp, err := svc.Answer(ctx, *question, *sessionID)
	if err != nil {
		logger.Fatalf("ask failed: %v", err)
	}

	fmt.Println(resp.Answer)
	if len(resp.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for idx, source := range resp.Sources {
			if source.Link != "" {
				fmt.Printf("%d. %s (%s)\n", idx+1, source.Label, source.Link)
			} else {
				fmt.Printf("%d. %s\n", idx+1, source.Label)
			}
		}
	}
}

func clearCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("clear", flag.ExitOnError)
	confirmed := flags.Bool("confirm", false, "skip confirmation prompt")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse clear flags: %v", err)
	}

	if !*confirmed {
		fmt.Print("This will permanently delete indexed course data from Postgres and Neo4j. Continue? [y/N]: ")
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				logger.Fatalf("read confirmation: %v", err)
			}
			logger.Println("clear aborted")
			return
		}
		answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if answer != "y" && answer != "yes" {
			logger.Println("clear aborted")
			return
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pgPool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("postgres connection: %v", err)
	}
	defer pgPool.Close()

	if _, err := pgPool.Exec(ctx, "TRUNCATE course_chunks, courses"); err != nil {
		logger.Fatalf("truncate postgres tables: %v", err)
	}
	logger.Println("cleared Postgres courses and course_chunks")

	neo4jDriver, err := database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
	if err != nil {
		logger.Fatalf("neo4j connection: %v", err)
	}
	defer neo4jDriver.Close(ctx)

	if err := knowledge.Purge(ctx, neo4jDriver); err != nil {
		logger.Fatalf("clear neo4j: %v", err)
	}

	logger.Println("course graph cleared")
}

func printUsage() {
	fmt.Println("Usage: course-agent <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  ingest   Ingest course documents into Postgres/Neo4j (use --dir to override the docs directory)")
	fmt.Println("  serve    Run the HTTP API (ingests the docs directory at startup unless --skip-ingest)")
	fmt.Println("  ask      Ask a one-off question against the indexed courses")
	fmt.Println("  clear    Remove indexed course data from Postgres/Neo4j")
}
