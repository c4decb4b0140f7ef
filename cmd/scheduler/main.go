package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/event-harvester/internal/builder"
	"github.com/event-harvester/internal/chat"
	"github.com/event-harvester/internal/config"
	"github.com/event-harvester/internal/dedup"
	"github.com/event-harvester/internal/extract"
	"github.com/event-harvester/internal/geo"
	"github.com/event-harvester/internal/media"
	"github.com/event-harvester/internal/pipeline"
	"github.com/event-harvester/internal/source/feed"
	"github.com/event-harvester/internal/storage"
	"github.com/event-harvester/internal/storage/sqlite"
	"github.com/event-harvester/pkg/logger"
	"github.com/event-harvester/pkg/ratelimit"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
	repo    storage.Repository
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "harvester-scheduler",
		Short: "Background scheduler for the event harvester",
		Long: `Runs scheduled ingestion, feed polling, and deduplication in the
background. This daemon should be run as a service for autonomous operation.`,
		RunE: runScheduler,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file path")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScheduler(cmd *cobra.Command, args []string) error {
	var err error

	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	log.Info().Msg("Starting event harvester scheduler")

	repo, err = sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	go startHealthServer()

	limiter := ratelimit.NewDefaultLimiter()

	dedupCfg := dedup.Config{
		ImageThreshold:  cfg.Dedup.ImageThreshold,
		TextThreshold:   cfg.Dedup.TextThreshold,
		WebsitePriority: cfg.Dedup.WebsitePriority,
	}
	engine := dedup.NewEngine(repo, dedupCfg, log)

	chatClient := chat.NewClient(cfg.Chat.BaseURL, cfg.Chat.Token, cfg.Chat.BatchLimit, limiter, log)
	extractor := extract.NewClient(cfg.Extract, limiter, log)
	uploader := media.NewClient(cfg.Media.BaseURL, cfg.Media.APIKey, limiter, log)
	geocoder := geo.NewCache(geo.NewClient(cfg.Geo.BaseURL, cfg.Geo.UserAgent, limiter, log))
	processor := pipeline.NewProcessor(chatClient, extractor, uploader, engine, repo, builder.New(geocoder, log), log)
	pool := pipeline.NewPool(cfg.Pipeline.Workers, processor, log)

	c := cron.New(cron.WithLogger(cronLogger{log}))

	// Schedule ingestion job
	_, err = c.AddFunc(cfg.Scheduler.IngestCron, func() {
		ctx := context.Background()
		log.Info().Msg("Running scheduled ingestion")

		sources, err := repo.ListSources(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Scheduled ingestion failed to list sources")
			return
		}

		result := pool.Run(ctx, sources)
		log.Info().
			Int("sources", result.Sources).
			Int("created", result.Created).
			Int("merged", result.Merged).
			Int("fatal", len(result.FatalErrors)).
			Msg("Scheduled ingestion completed")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule ingestion job: %w", err)
	}
	log.Info().Str("cron", cfg.Scheduler.IngestCron).Msg("Ingestion job scheduled")

	// Schedule feed polling job
	if cfg.Feeds.Enabled && len(cfg.Feeds.Feeds) > 0 {
		entries := make([]feed.Feed, 0, len(cfg.Feeds.Feeds))
		for _, f := range cfg.Feeds.Feeds {
			entries = append(entries, feed.Feed{Name: f.Name, URL: f.URL, Website: f.Website})
		}
		ingestor := feed.NewIngestor(feed.NewMultiple(entries, limiter, log), repo, engine, log)

		_, err = c.AddFunc(cfg.Scheduler.FeedsCron, func() {
			ctx := context.Background()
			log.Info().Msg("Running scheduled feed ingestion")

			stats, err := ingestor.Run(ctx)
			if err != nil {
				log.Error().Err(err).Msg("Scheduled feed ingestion failed")
				return
			}
			log.Info().
				Int("created", stats.Created).
				Int("merged", stats.Merged).
				Int("failed", stats.Failed).
				Msg("Scheduled feed ingestion completed")
		})
		if err != nil {
			return fmt.Errorf("failed to schedule feed job: %w", err)
		}
		log.Info().Str("cron", cfg.Scheduler.FeedsCron).Msg("Feed job scheduled")
	}

	// Schedule nightly dedup job
	_, err = c.AddFunc(cfg.Scheduler.DedupCron, func() {
		ctx := context.Background()
		log.Info().Msg("Running scheduled dedup pass")

		stats, err := engine.Run(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Scheduled dedup pass failed")
			return
		}
		log.Info().
			Int("image_pairs", stats.ImagePairs).
			Int("text_pairs", stats.TextPairs).
			Int("merged", stats.Merged).
			Msg("Scheduled dedup pass completed")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule dedup job: %w", err)
	}
	log.Info().Str("cron", cfg.Scheduler.DedupCron).Msg("Dedup job scheduled")

	// Schedule weekly image cleanup job
	_, err = c.AddFunc(cfg.Scheduler.CleanupCron, func() {
		ctx := context.Background()
		log.Info().Msg("Running scheduled image cleanup")

		if err := cleanupImages(ctx, uploader); err != nil {
			log.Error().Err(err).Msg("Scheduled image cleanup failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule cleanup job: %w", err)
	}
	log.Info().Str("cron", cfg.Scheduler.CleanupCron).Msg("Cleanup job scheduled")

	c.Start()
	log.Info().Msg("Scheduler started")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down scheduler")
	c.Stop()

	return nil
}

// cleanupImages deletes stored images no event references
func cleanupImages(ctx context.Context, store media.Storage) error {
	stored, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("list stored images: %w", err)
	}
	referenced, err := repo.AllImageURLs(ctx)
	if err != nil {
		return fmt.Errorf("list referenced images: %w", err)
	}

	inUse := make(map[string]bool, len(referenced))
	for _, url := range referenced {
		inUse[url] = true
	}

	var orphans []string
	for _, img := range stored {
		if !inUse[img.URL] {
			orphans = append(orphans, img.PublicID)
		}
	}
	if len(orphans) == 0 {
		return nil
	}

	if err := store.Delete(ctx, orphans); err != nil {
		return fmt.Errorf("delete orphaned images: %w", err)
	}
	log.Info().Int("deleted", len(orphans)).Msg("Image cleanup completed")
	return nil
}

// cronLogger adapts our logger for cron
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Info().Msgf(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Msgf(msg, keysAndValues...)
}

// startHealthServer starts a simple HTTP server for liveness checks
func startHealthServer() {
	addr := cfg.Scheduler.HealthAddr
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Event Harvester Scheduler"))
	})

	log.Info().Str("addr", addr).Msg("Health check server starting")
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Error().Err(err).Msg("Health server failed")
	}
}
