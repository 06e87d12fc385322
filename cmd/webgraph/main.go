// Command webgraph runs the crawl pipeline worker and the HTTP API in one
// process.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/v9"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/webgraph-io/webgraph/internal/api"
	"github.com/webgraph-io/webgraph/internal/archive"
	buspubsub "github.com/webgraph-io/webgraph/internal/bus/pubsub"
	"github.com/webgraph-io/webgraph/internal/config"
	"github.com/webgraph-io/webgraph/internal/crawl"
	"github.com/webgraph-io/webgraph/internal/dedup"
	"github.com/webgraph-io/webgraph/internal/fetch"
	"github.com/webgraph-io/webgraph/internal/graph"
	"github.com/webgraph-io/webgraph/internal/logging"
	"github.com/webgraph-io/webgraph/internal/search"
	"github.com/webgraph-io/webgraph/internal/taskstore"

	analyzepkg "github.com/webgraph-io/webgraph/internal/analyze"
)

// embeddingDimensions matches the small OpenAI embedding model.
const embeddingDimensions = 1536

func main() {
	configPath := flag.String("config", os.Getenv("WEBGRAPH_CONFIG"), "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "webgraph:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New("webgraph", cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Shared stores.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if cerr := rdb.Close(); cerr != nil {
			logger.Warn("close redis", zap.Error(cerr))
		}
	}()
	visited := dedup.NewRedisStore(rdb)

	driver, err := neo4j.NewDriverWithContext(cfg.Neo4j.URI,
		neo4j.BasicAuth(cfg.Neo4j.Username, cfg.Neo4j.Password, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer func() {
		if cerr := driver.Close(context.Background()); cerr != nil {
			logger.Warn("close neo4j driver", zap.Error(cerr))
		}
	}()
	graphStore := graph.NewNeo4jStore(driver, "")
	if err := graphStore.EnsureVectorIndex(ctx, embeddingDimensions); err != nil {
		return fmt.Errorf("ensure vector index: %w", err)
	}

	psClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("pubsub client: %w", err)
	}
	defer func() {
		if cerr := psClient.Close(); cerr != nil {
			logger.Warn("close pubsub client", zap.Error(cerr))
		}
	}()
	bus, err := buspubsub.New(ctx, psClient, buspubsub.Config{
		ProjectID:          cfg.PubSub.ProjectID,
		TopicPrefix:        cfg.PubSub.TopicPrefix,
		SubscriptionSuffix: cfg.PubSub.SubscriptionSuffix,
	}, logger.Named("bus"))
	if err != nil {
		return fmt.Errorf("pubsub bus: %w", err)
	}
	defer bus.Close()

	// Optional task-status database.
	var (
		tasks      crawl.TaskStore
		taskGetter api.TaskGetter
	)
	if cfg.DB.DSN != "" {
		pool, err := pgxpool.New(ctx, cfg.DB.DSN)
		if err != nil {
			return fmt.Errorf("postgres pool: %w", err)
		}
		defer pool.Close()
		store := taskstore.NewStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("task schema: %w", err)
		}
		tasks = store
		taskGetter = store
	}

	// Optional snapshot archive.
	var snapshots crawl.Archive
	if cfg.Storage.GCSBucket != "" {
		gcsClient, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("storage client: %w", err)
		}
		defer func() {
			if cerr := gcsClient.Close(); cerr != nil {
				logger.Warn("close storage client", zap.Error(cerr))
			}
		}()
		snapshots, err = archive.NewGCSArchive(gcsClient, cfg.Storage.GCSBucket, cfg.Storage.Prefix)
		if err != nil {
			return fmt.Errorf("gcs archive: %w", err)
		}
	}

	// Fetch and analysis stack.
	renderer, err := fetch.NewChromeRenderer(fetch.ChromeConfig{
		MaxParallel:       cfg.Headless.MaxParallel,
		UserAgent:         cfg.Crawl.UserAgent,
		NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("chrome renderer: %w", err)
	}
	defer renderer.Close()

	prober := fetch.NewCollyProber(cfg.Crawl.UserAgent, 30*time.Second)
	limiter := fetch.NewHostLimiter(cfg.Crawl.PerHostRPS, 1)

	var analyzer analyzepkg.Analyzer
	if cfg.OpenAI.APIKey != "" {
		analyzer = analyzepkg.NewOpenAIAnalyzer(
			openai.NewClient(cfg.OpenAI.APIKey),
			analyzepkg.OpenAIConfig{
				ChatModel:      cfg.OpenAI.ChatModel,
				EmbeddingModel: cfg.OpenAI.EmbeddingModel,
			},
			logger.Named("analyze"),
		)
	} else {
		logger.Warn("openai api key not set, pages are stored without analysis")
	}

	processor := crawl.NewProcessor(renderer, prober, limiter, analyzer, snapshots, logger.Named("processor"))
	pool := crawl.NewPool(processor, cfg.Crawl.Parallelism, logger.Named("pool"))

	coordinator := crawl.NewCoordinator(
		bus,
		visited,
		dedup.NewKeyedLock(),
		graphStore,
		pool,
		crawl.NewRobots(cfg.Crawl.UserAgent, logger.Named("robots")),
		crawl.NewSitemap(cfg.Crawl.UserAgent, logger.Named("sitemap")),
		tasks,
		crawl.CoordinatorConfig{
			BatchSize:    cfg.Crawl.BatchSize,
			VisitedTTL:   cfg.VisitedTTL(),
			BatchPacing:  cfg.BatchPacing(),
			InsertPacing: cfg.InsertPacing(),
			MaxPages:     cfg.Crawl.MaxPages,
			LockKey:      dedup.CrawlLockKey(),
		},
		logger.Named("coordinator"),
	)

	engine := search.NewEngine(graphStore, analyzer, logger.Named("search"))
	server := api.NewServer(bus, engine, taskGetter, logger.Named("api"))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("worker consuming", zap.String("project", cfg.PubSub.ProjectID))
		return bus.Consume(gctx, coordinator.Handle)
	})
	g.Go(func() error {
		logger.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
