package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/qdrant/go-client/qdrant"
	log "github.com/sirupsen/logrus"

	"github.com/framepoint/framepoint/agent"
	"github.com/framepoint/framepoint/config"
	"github.com/framepoint/framepoint/conversation"
	"github.com/framepoint/framepoint/retrieval"
	"github.com/framepoint/framepoint/searchindex"
	"github.com/framepoint/framepoint/server"
	"github.com/framepoint/framepoint/transcribe"
)

func main() {
	fs := flag.CommandLine
	fs.SetOutput(os.Stderr)
	envfile := fs.String("env", ".env", "Optional .env file overloading the process environment")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage:\n  %s [flags]\n\nFlags:\n", filepath.Base(os.Args[0]))
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load(*envfile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	cfg.ApplyLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := buildServer(ctx, cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}

	if err := srv.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server: %v", err)
	}
	log.Info("framepoint stopped")
}

func buildServer(ctx context.Context, cfg config.Config) (*server.Server, error) {
	openaiClient := openai.NewClient(option.WithAPIKey(cfg.OpenAIAPIKey))

	qdrantClient, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.QdrantHost,
		Port:   cfg.QdrantPort,
		APIKey: cfg.QdrantAPIKey,
		UseTLS: cfg.QdrantUseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant client: %w", err)
	}

	index, err := searchindex.New(qdrantClient, &openaiClient, searchindex.Options{
		Collection:     cfg.QdrantCollection,
		EmbeddingModel: cfg.EmbeddingModel,
	})
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	// Ingestion re-checks the collection per upload, so a cold vector store
	// at boot only warns.
	ensureCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	if err := index.EnsureCollection(ensureCtx); err != nil {
		log.Warnf("vector collection not ready: %v", err)
	}
	cancel()

	var reranker retrieval.Reranker
	if cfg.RerankEnabled {
		chatReranker, err := retrieval.NewChatReranker(&openaiClient, cfg.ChatModel)
		if err != nil {
			return nil, fmt.Errorf("reranker: %w", err)
		}
		reranker = chatReranker
	}

	adapter, err := retrieval.NewAdapter(index, reranker)
	if err != nil {
		return nil, fmt.Errorf("retrieval adapter: %w", err)
	}
	router, err := retrieval.NewRouter(index)
	if err != nil {
		return nil, fmt.Errorf("scope router: %w", err)
	}

	pool := conversation.NewPool(conversation.PoolOptions{
		DSN:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.PoolMaxConns,
		ConnMaxLifetime: cfg.PoolMaxLifetime,
	})
	store, err := conversation.NewCheckpointStore(pool)
	if err != nil {
		return nil, fmt.Errorf("checkpoint store: %w", err)
	}

	model, err := agent.NewOpenAIModel(&openaiClient, cfg.ChatModel)
	if err != nil {
		return nil, fmt.Errorf("chat model: %w", err)
	}

	orchestrator, err := agent.New(agent.Options{
		Model:      model,
		Router:     router,
		Retriever:  adapter,
		Store:      store,
		RetrievalK: cfg.RetrievalK,
		MaxHops:    cfg.MaxHops,
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	transcriber, err := transcribe.NewService(&openaiClient, cfg.FFmpegPath)
	if err != nil {
		return nil, fmt.Errorf("transcriber: %w", err)
	}

	return server.New(cfg, orchestrator, index, transcriber)
}
