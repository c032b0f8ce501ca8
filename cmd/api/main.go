// Command api serves retrieval-augmented question answering over a
// directory of Markdown documents. At start-up it loads, splits, embeds,
// and indexes the corpus; afterwards it answers questions on POST /rag.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/askdocs/askdocs/engine/ingest"
	"github.com/askdocs/askdocs/engine/llm"
	"github.com/askdocs/askdocs/engine/loader"
	"github.com/askdocs/askdocs/engine/rag"
	"github.com/askdocs/askdocs/engine/semantic"
	"github.com/askdocs/askdocs/engine/splitter"
	"github.com/askdocs/askdocs/pkg/metrics"
	"github.com/askdocs/askdocs/pkg/mid"
	"github.com/joho/godotenv"
)

// Config holds all environment-based configuration.
type Config struct {
	Addr            string
	DocsDir         string
	DocsGlob        string
	ChunkSize       int
	ChunkOverlap    int
	TopK            int
	APIKey          string
	Endpoint        string
	APIVersion      string
	EmbedDeployment string
	ChatDeployment  string
	EmbedRPS        float64
	QdrantAddr      string
	Collection      string
	CORSOrigin      string
	AllowEmptyIndex bool
	RequestTimeout  time.Duration
}

func loadConfig() Config {
	return Config{
		Addr:            envOr("RAG_ADDR", "localhost:8000"),
		DocsDir:         envOr("DOCS_DIR", "./docs"),
		DocsGlob:        envOr("DOCS_GLOB", "**/*.md"),
		ChunkSize:       envInt("CHUNK_SIZE", splitter.DefaultChunkSize),
		ChunkOverlap:    envInt("CHUNK_OVERLAP", splitter.DefaultChunkOverlap),
		TopK:            envInt("TOP_K", rag.DefaultOptions().TopK),
		APIKey:          os.Getenv("AZURE_OPENAI_API_KEY"),
		Endpoint:        os.Getenv("AZURE_OPENAI_ENDPOINT"),
		APIVersion:      envOr("AZURE_OPENAI_API_VERSION", "2023-05-15"),
		EmbedDeployment: envOr("AZURE_EMBED_DEPLOYMENT", "text-embedding-ada-002"),
		ChatDeployment:  envOr("AZURE_CHAT_DEPLOYMENT", "gpt-35-turbo"),
		EmbedRPS:        envFloat("AZURE_OPENAI_RPS", 0),
		QdrantAddr:      envOr("QDRANT_ADDR", "localhost:6334"),
		Collection:      envOr("QDRANT_COLLECTION", "askdocs"),
		CORSOrigin:      envOr("CORS_ORIGIN", "*"),
		AllowEmptyIndex: envBool("ALLOW_EMPTY_INDEX", false),
		RequestTimeout:  envDuration("REQUEST_TIMEOUT", 60*time.Second),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

var met = metrics.New()

var (
	mRequests     = met.Counter("askdocs_rag_requests_total", "RAG questions received")
	mBadRequests  = met.Counter("askdocs_rag_bad_requests_total", "Malformed RAG requests")
	mErrors       = met.Counter("askdocs_rag_errors_total", "RAG pipeline failures")
	mIngestDocs   = met.Gauge("askdocs_ingest_documents", "Documents ingested at start-up")
	mIngestChunks = met.Gauge("askdocs_ingest_chunks", "Chunks indexed at start-up")
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Remote model clients (shared between ingest and query) ---
	client, err := llm.NewAzureClient(llm.Config{
		APIKey:            cfg.APIKey,
		Endpoint:          cfg.Endpoint,
		APIVersion:        cfg.APIVersion,
		EmbedDeployment:   cfg.EmbedDeployment,
		ChatDeployment:    cfg.ChatDeployment,
		RequestsPerSecond: cfg.EmbedRPS,
	}, logger)
	if err != nil {
		return fmt.Errorf("azure client: %w", err)
	}

	// --- Connect to Qdrant ---
	store, err := semantic.New(cfg.QdrantAddr, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer store.Close()

	// --- Build the index once at start-up ---
	split, err := splitter.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return fmt.Errorf("splitter config: %w", err)
	}

	stats, err := ingest.Run(ctx, ingest.Deps{
		Source:     loader.New(cfg.DocsDir, cfg.DocsGlob),
		Splitter:   split,
		Embedder:   client,
		Index:      store,
		AllowEmpty: cfg.AllowEmptyIndex,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	mIngestDocs.Set(int64(stats.Documents))
	mIngestChunks.Set(int64(stats.Chunks))

	// --- Build RAG service ---
	opts := rag.DefaultOptions()
	opts.TopK = cfg.TopK
	svc := rag.New(client, client, store, opts, logger)

	// --- Build HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.Handle("GET /metrics", met.Handler())
	mux.HandleFunc("POST /rag", handleAsk(svc, cfg.RequestTimeout, logger))

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("askdocs-api"),
	)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", cfg.Addr, "docs", stats.Documents, "chunks", stats.Chunks)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// AskRequest is the JSON body for POST /rag.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the JSON response for POST /rag.
type AskResponse struct {
	Answer  string       `json:"answer"`
	Sources []rag.Source `json:"sources"`
}

// asker lets handler tests substitute a fixture for the RAG service.
type asker interface {
	Ask(ctx context.Context, question string) (*rag.Answer, error)
}

func handleAsk(svc asker, timeout time.Duration, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mRequests.Inc()

		var req AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			mBadRequests.Inc()
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Question == "" {
			mBadRequests.Inc()
			writeError(w, http.StatusBadRequest, "question is required")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		answer, err := svc.Ask(ctx, req.Question)
		if err != nil {
			mErrors.Inc()
			logger.Error("rag query failed", "err", err)
			writeError(w, http.StatusBadGateway, "failed to answer question")
			return
		}

		writeJSON(w, http.StatusOK, AskResponse{
			Answer:  answer.Text,
			Sources: answer.Sources,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
