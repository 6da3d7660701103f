// Eventscout server — hosts the event discovery pipeline behind an
// HTTP API: unified multi-provider search, rerank gate, LLM
// prioritisation, deep-crawl extraction, and quality gating.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/eventscout/eventscout/pkg/api"
	"github.com/eventscout/eventscout/pkg/cache"
	"github.com/eventscout/eventscout/pkg/config"
	"github.com/eventscout/eventscout/pkg/database"
	"github.com/eventscout/eventscout/pkg/extract"
	"github.com/eventscout/eventscout/pkg/llm"
	"github.com/eventscout/eventscout/pkg/pipeline"
	"github.com/eventscout/eventscout/pkg/prioritize"
	"github.com/eventscout/eventscout/pkg/profile"
	"github.com/eventscout/eventscout/pkg/providers"
	"github.com/eventscout/eventscout/pkg/ratelimit"
	"github.com/eventscout/eventscout/pkg/rerank"
	"github.com/eventscout/eventscout/pkg/resilience"
	"github.com/eventscout/eventscout/pkg/scrape"
	"github.com/eventscout/eventscout/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")

	slog.Info("Starting eventscout",
		"version", version.Full(),
		"http_port", httpPort,
		"config_dir", *configDir)

	ctx := context.Background()

	// 1. Configuration
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. Database (optional: without one the database provider serves
	// its seed list and no profile is loaded)
	var dbClient *database.Client
	var sqlDB *sql.DB
	if cfg.Database != nil {
		dbConfig, err := database.LoadConfigFromEnv()
		if err != nil {
			slog.Error("Failed to load database config", "error", err)
			os.Exit(1)
		}
		dbConfig = database.FromYAML(dbConfig, cfg.Database)

		dbClient, err = database.NewClient(ctx, dbConfig)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := dbClient.Close(); err != nil {
				slog.Error("Error closing database client", "error", err)
			}
		}()
		sqlDB = dbClient.DB()
		slog.Info("Connected to PostgreSQL database")
	} else {
		slog.Info("No database configured, using seed corpus and generic profile")
	}

	// 3. Shared infrastructure: limiter, caches, optimiser
	limiter := ratelimit.New(cfg.RateLimit)

	searchCache := cache.NewStore(500, time.Minute)
	defer searchCache.Close()
	analysisCache := cache.NewStore(500, time.Minute)
	defer analysisCache.Close()
	resultCache := cache.NewStore(200, time.Minute)
	defer resultCache.Close()

	optimizer := cache.NewOptimizer(cache.OptimizerConfig{
		WarmingInterval:       cfg.Warming.Interval,
		WarmingBatchSize:      cfg.Warming.BatchSize,
		WarmingTimeout:        cfg.Warming.Timeout,
		MaxWarmingConcurrency: cfg.Warming.MaxConcurrency,
	}, map[string]*cache.Store{
		"search":   searchCache,
		"analysis": analysisCache,
	})
	optimizer.Start(ctx)
	defer optimizer.Stop()

	// 4. Unified search: the three provider arms
	unified := providers.NewUnifiedSearch(
		providers.NewFirecrawlProvider(cfg.Providers.Firecrawl.BaseURL, cfg.Providers.Firecrawl.APIKey),
		providers.NewCSEProvider(cfg.Providers.CSE.BaseURL, cfg.Providers.CSE.APIKey, cfg.Providers.CSE.EngineID),
		providers.NewDatabaseProvider(sqlDB),
		limiter, searchCache, providers.UnifiedConfig{})

	// Refresh recently seen searches before their entries expire.
	optimizer.RegisterStrategy(cache.WarmingStrategy{
		Name:     "recent_searches",
		Priority: 10,
		Enabled:  true,
		QueryGenerator: func(ctx context.Context) []string {
			return searchCache.Keys()
		},
		DataProvider: func(ctx context.Context, key string) (any, error) {
			req, ok := providers.ParseCacheKey(key)
			if !ok {
				return nil, fmt.Errorf("unrecognised cache key %q", key)
			}
			req.UseCache = false
			return unified.Search(ctx, req)
		},
	})

	// 5. LLM collaborators. The budget lives inside the Gemini client;
	// downstream consumers see exhaustion as ErrBudgetExhausted.
	budget := llm.NewBudget(limiter, "gemini",
		cfg.Providers.Gemini.MaxCallsPerHour, cfg.Providers.Gemini.MaxCallsPerDay)
	gemini := llm.NewGeminiClient(llm.GeminiConfig{
		BaseURL: cfg.Providers.Gemini.BaseURL,
		APIKey:  cfg.Providers.Gemini.APIKey,
		Model:   cfg.Providers.Gemini.Model,
	}, budget)
	voyage := llm.NewVoyageClient(llm.VoyageConfig{
		BaseURL: cfg.Providers.Voyage.BaseURL,
		APIKey:  cfg.Providers.Voyage.APIKey,
	})

	// 6. Pipeline stages
	gate := rerank.NewGate(voyage, rerank.Config{
		MinNonAggregatorURLs:   cfg.Search.MinNonAggregatorURLs,
		MaxBackstopAggregators: cfg.Search.MaxBackstopAggregators,
		MaxVoyageDocs:          cfg.Search.MaxVoyageDocs,
		TopK:                   cfg.Search.VoyageTopK,
	})

	prioritizer := prioritize.New(gemini, nil, prioritize.Config{
		CallTimeout: cfg.Timeouts.Prioritisation,
		Threshold:   cfg.Thresholds.Prioritisation,
	})

	scraper := &scrape.Degrading{
		Primary:  scrape.NewFirecrawlScraper(cfg.Providers.Firecrawl.BaseURL, cfg.Providers.Firecrawl.APIKey),
		Fallback: scrape.NewLocalScraper(),
	}
	crawler := extract.NewCrawler(scraper, resilience.NewRetrier(nil))
	extractor := extract.NewExtractor(crawler,
		extract.NewMetadataExtractor(gemini, nil),
		extract.Config{MaxSpeakers: cfg.Limits.MaxSpeakers})

	orchestrator := pipeline.NewOrchestrator(pipeline.Deps{
		Config:      cfg,
		Search:      unified,
		Gate:        gate,
		Prioritizer: prioritizer,
		Extractor:   extractor,
		Profiles:    profile.NewLoader(sqlDB, getEnv("EVENTSCOUT_TENANT", "default")),
		Optimizer:   optimizer,
		ResultCache: resultCache,
	})

	// 7. HTTP server
	var eventStore *database.Store
	if dbClient != nil {
		eventStore = database.NewStore(dbClient)
	}
	server := api.NewServer(api.Deps{
		Pipeline: orchestrator,
		Search:   unified,
		DB:       dbClient,
		Events:   eventStore,
		Caches: map[string]*cache.Store{
			"search":   searchCache,
			"analysis": analysisCache,
			"results":  resultCache,
		},
		Optimizer: optimizer,
		Limiter:   limiter,
	})

	httpServer := &http.Server{
		Addr:              ":" + httpPort,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("Eventscout started successfully")

	// 8. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 9. Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
