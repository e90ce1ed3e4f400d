package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"knowledge-assistant/internal/chunker"
	"knowledge-assistant/internal/config"
	"knowledge-assistant/internal/dedup"
	"knowledge-assistant/internal/docstore"
	"knowledge-assistant/internal/embedding"
	"knowledge-assistant/internal/helper"
	"knowledge-assistant/internal/history"
	"knowledge-assistant/internal/ingest"
	"knowledge-assistant/internal/knowledge"
	"knowledge-assistant/internal/llmservice"
	"knowledge-assistant/internal/models"
	"knowledge-assistant/internal/rag"
	"knowledge-assistant/internal/retriever"
	"knowledge-assistant/internal/vectorstore"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", configFilePath, "Path to the config file")
	filePath := flag.String("file", "", "Path to a document file to ingest")
	dirPath := flag.String("dir", "", "Path to a directory of documents to ingest")
	query := flag.String("query", "", "Question to answer")
	session := flag.String("session", "default", "Conversation session id")
	clearSession := flag.Bool("clear-session", false, "Clear the session's conversation history")
	stats := flag.Bool("stats", false, "Print knowledge base statistics")
	deleteSource := flag.String("delete-source", "", "Delete every chunk of the named source")
	clearAll := flag.Bool("clear-all", false, "Delete the entire knowledge base")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg := loadConfig(*configPath)
	ctx := context.Background()

	switch {
	case *filePath != "" || *dirPath != "":
		runIngest(ctx, cfg, *filePath, *dirPath)
	case *query != "":
		runQuery(ctx, cfg, *session, *query)
	case *clearSession:
		runClearSession(ctx, cfg, *session)
	case *stats:
		runStats(ctx, cfg)
	case *deleteSource != "":
		runDeleteSource(ctx, cfg, *deleteSource)
	case *clearAll:
		runClearAll(ctx, cfg)
	default:
		log.Fatal().Msg("Provide -file/-dir to ingest, -query to ask, -clear-session, -delete-source, -clear-all or -stats")
	}
}

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", path).Msg("Config file not found, using defaults")
			return config.Default()
		}
		log.Fatal().Err(err).Msg("Error loading config")
	}
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		log.Debug().Msg("Loaded config")
		helper.PrettyPrint(cfg)
	}
	return cfg
}

func openKnowledgeStore(cfg *config.Config) (*knowledge.Store, func()) {
	if err := helper.CreateFolder(cfg.Store.PersistDir); err != nil {
		log.Fatal().Err(err).Msg("Error creating vector store directory")
	}
	vectors, err := vectorstore.New(cfg.Store.PersistDir, cfg.Store.Collection)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening vector store")
	}
	catalog, err := docstore.New(cfg.Store.CatalogPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening chunk catalog")
	}
	return knowledge.New(vectors, catalog), func() { catalog.Close() }
}

func openHistory(ctx context.Context, cfg *config.Config) (history.Store, func()) {
	switch cfg.History.Backend {
	case "postgres":
		store, err := history.NewPostgresStore(ctx, cfg.History.PostgresDSN, cfg.History.Debug)
		if err != nil {
			log.Fatal().Err(err).Msg("Error connecting to history database")
		}
		return store, func() { store.Close() }
	default:
		store, err := history.NewFileStore(cfg.History.Dir)
		if err != nil {
			log.Fatal().Err(err).Msg("Error opening history directory")
		}
		return store, func() {}
	}
}

func runIngest(ctx context.Context, cfg *config.Config, filePath, dirPath string) {
	store, closeStore := openKnowledgeStore(cfg)
	defer closeStore()

	ledger, err := dedup.NewLedger(cfg.Store.FingerprintPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening fingerprint ledger")
	}
	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	splitter := chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap, cfg.RAG.MaxSplitChars, cfg.RAG.Separators)
	service := ingest.New(ledger, splitter, embedder, store, cfg.RAG.Operator)

	paths := collectPaths(filePath, dirPath)
	if len(paths) == 0 {
		log.Fatal().Msg("No documents found to ingest")
	}

	summary := service.IngestFiles(ctx, paths)
	for _, r := range summary.Results {
		switch r.Status {
		case models.IngestAdded:
			fmt.Printf("[added]   %s (%d chunks)\n", r.Source, r.Chunks)
		case models.IngestSkipped:
			fmt.Printf("[skipped] %s (already in knowledge base)\n", r.Source)
		case models.IngestFailed:
			fmt.Printf("[failed]  %s: %s\n", r.Source, r.Err)
		}
	}
	added, skipped, failed := summary.Counts()
	fmt.Printf("\nDone: %d added, %d skipped, %d failed\n", added, skipped, failed)
}

func collectPaths(filePath, dirPath string) []string {
	if filePath != "" {
		return []string{filePath}
	}
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error reading directory")
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() {
			paths = append(paths, filepath.Join(dirPath, e.Name()))
		}
	}
	return paths
}

func runQuery(ctx context.Context, cfg *config.Config, sessionID, question string) {
	store, closeStore := openKnowledgeStore(cfg)
	defer closeStore()
	hist, closeHistory := openHistory(ctx, cfg)
	defer closeHistory()

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	generator, err := llmservice.NewClient(&cfg.ChatLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing chat model")
	}

	hybrid := retriever.New(embedder, store, cfg.RAG.FanOut, cfg.RAG.SemanticWeight, cfg.RAG.LexicalWeight)
	service := rag.New(hybrid, generator, hist)

	fmt.Printf("Question: %s\n\nAssistant: ", question)
	answer, err := service.Ask(ctx, sessionID, question, func(_ context.Context, fragment string) error {
		fmt.Print(fragment)
		return nil
	})
	if err != nil {
		fmt.Println()
		log.Fatal().Err(err).Msg("Service temporarily unavailable")
	}
	fmt.Print("\n\n")

	if len(answer.Sources) > 0 {
		fmt.Println("Sources:")
		for _, sc := range answer.Sources {
			fmt.Printf("  [%.3f] %s (%s)\n", sc.Score, sc.Chunk.Source, sc.Chunk.ID)
		}
	}
}

func runClearSession(ctx context.Context, cfg *config.Config, sessionID string) {
	hist, closeHistory := openHistory(ctx, cfg)
	defer closeHistory()
	if err := hist.Clear(ctx, sessionID); err != nil {
		log.Fatal().Err(err).Msg("Error clearing session")
	}
	fmt.Printf("Session %s cleared\n", sessionID)
}

func runStats(ctx context.Context, cfg *config.Config) {
	store, closeStore := openKnowledgeStore(cfg)
	defer closeStore()
	stats, err := store.Stats(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Error reading stats")
	}
	fmt.Printf("Chunks: %d\nSources: %d\n", stats.Chunks, len(stats.Sources))
	for _, src := range stats.Sources {
		docs, err := store.DocumentsBySource(ctx, src)
		if err != nil {
			log.Fatal().Err(err).Msg("Error listing source")
		}
		fmt.Printf("  %s (%d chunks)\n", src, len(docs))
	}
}

func runDeleteSource(ctx context.Context, cfg *config.Config, source string) {
	store, closeStore := openKnowledgeStore(cfg)
	defer closeStore()
	if err := store.DeleteBySource(ctx, source); err != nil {
		log.Fatal().Err(err).Msg("Error deleting source")
	}
	fmt.Printf("Deleted all chunks of %s\n", source)
}

func runClearAll(ctx context.Context, cfg *config.Config) {
	store, closeStore := openKnowledgeStore(cfg)
	defer closeStore()
	if err := store.Clear(ctx); err != nil {
		log.Fatal().Err(err).Msg("Error clearing knowledge base")
	}
	fmt.Println("Knowledge base cleared")
}
