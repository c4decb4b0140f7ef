package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/event-harvester/internal/builder"
	"github.com/event-harvester/internal/chat"
	"github.com/event-harvester/internal/config"
	"github.com/event-harvester/internal/dedup"
	"github.com/event-harvester/internal/extract"
	"github.com/event-harvester/internal/geo"
	"github.com/event-harvester/internal/imagehash"
	"github.com/event-harvester/internal/media"
	"github.com/event-harvester/internal/models"
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
		Use:   "harvester",
		Short: "Event ingestion and deduplication pipeline",
		Long: `Scrapes group chat history, extracts real-world event records with
an LLM, and reconciles them against website-sourced events.`,
		PersistentPreRunE: initializeApp,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(dedupCmd())
	rootCmd.AddCommand(sourcesCmd())
	rootCmd.AddCommand(eventsCmd())
	rootCmd.AddCommand(feedsCmd())
	rootCmd.AddCommand(cleanupImagesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initializeApp(cmd *cobra.Command, args []string) error {
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

	repo, err = sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// newProcessor wires the full per-source pipeline from config
func newProcessor(limiter *ratelimit.MultiLimiter) *pipeline.Processor {
	chatClient := chat.NewClient(cfg.Chat.BaseURL, cfg.Chat.Token, cfg.Chat.BatchLimit, limiter, log)
	extractor := extract.NewClient(cfg.Extract, limiter, log)
	uploader := media.NewClient(cfg.Media.BaseURL, cfg.Media.APIKey, limiter, log)
	geocoder := geo.NewCache(geo.NewClient(cfg.Geo.BaseURL, cfg.Geo.UserAgent, limiter, log))
	merger := dedup.NewEngine(repo, dedupConfig(), log)
	b := builder.New(geocoder, log)

	return pipeline.NewProcessor(chatClient, extractor, uploader, merger, repo, b, log)
}

func dedupConfig() dedup.Config {
	c := dedup.Config{
		ImageThreshold:  cfg.Dedup.ImageThreshold,
		TextThreshold:   cfg.Dedup.TextThreshold,
		WebsitePriority: cfg.Dedup.WebsitePriority,
	}
	if c.ImageThreshold <= 0 {
		c.ImageThreshold = imagehash.DefaultThreshold
	}
	return c
}

// ============ RUN COMMAND ============

func runCmd() *cobra.Command {
	var chatID int64

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest new messages from all sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			limiter := ratelimit.NewDefaultLimiter()

			sources, err := repo.ListSources(ctx)
			if err != nil {
				return fmt.Errorf("failed to list sources: %w", err)
			}
			if chatID != 0 {
				sources = filterByChatID(sources, chatID)
				if len(sources) == 0 {
					return fmt.Errorf("no source with chat ID %d", chatID)
				}
			}

			pool := pipeline.NewPool(cfg.Pipeline.Workers, newProcessor(limiter), log)
			result := pool.Run(ctx, sources)

			fmt.Printf("\n=== Ingestion Results ===\n")
			fmt.Printf("Sources:  %d\n", result.Sources)
			fmt.Printf("Fetched:  %d\n", result.Fetched)
			fmt.Printf("Created:  %d\n", result.Created)
			fmt.Printf("Merged:   %d\n", result.Merged)
			fmt.Printf("Skipped:  %d\n", result.Skipped)

			if len(result.FatalErrors) > 0 {
				fmt.Printf("\nFatal errors:\n")
				for _, e := range result.FatalErrors {
					fmt.Printf("  - %s\n", e)
				}
			}

			return result.Err()
		},
	}

	cmd.Flags().Int64Var(&chatID, "chat-id", 0, "Run a single source by chat ID")
	return cmd
}

func filterByChatID(sources []*models.Source, chatID int64) []*models.Source {
	var out []*models.Source
	for _, s := range sources {
		if s.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

// ============ DEDUP COMMAND ============

func dedupCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "dedup",
		Short: "Run the batch duplicate reconciliation pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			engine := dedup.NewEngine(repo, dedupConfig(), log)

			if dryRun {
				imagePairs, err := engine.FindImageDuplicates(ctx)
				if err != nil {
					return err
				}
				textPairs, err := engine.FindTextDuplicates(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Would reconcile %d image pair(s) and %d text pair(s):\n", len(imagePairs), len(textPairs))
				for _, p := range append(imagePairs, textPairs...) {
					fmt.Printf("  [%s] #%d <-> #%d (score %.2f)\n", p.Strategy, p.AID, p.BID, p.Score)
				}
				return nil
			}

			stats, err := engine.Run(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Dedup Results ===\n")
			fmt.Printf("Image pairs: %d\n", stats.ImagePairs)
			fmt.Printf("Text pairs:  %d\n", stats.TextPairs)
			fmt.Printf("Merged:      %d\n", stats.Merged)
			fmt.Printf("Skipped:     %d\n", stats.Skipped)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List duplicate pairs without merging")
	return cmd
}

// ============ SOURCES COMMANDS ============

func sourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Message source management",
	}

	cmd.AddCommand(sourcesListCmd())
	cmd.AddCommand(sourcesSyncCmd())
	return cmd
}

func sourcesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sources and their checkpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := repo.ListSources(context.Background())
			if err != nil {
				return err
			}

			fmt.Printf("%-12s %-24s %-12s %-10s %s\n", "CHAT ID", "NAME", "LAST MSG", "CONSUMED", "LAST RUN")
			for _, s := range sources {
				lastRun := "never"
				if s.LastRunAt != nil {
					lastRun = s.LastRunAt.Format(time.RFC3339)
				}
				fmt.Printf("%-12d %-24s %-12d %-10d %s\n", s.ChatID, s.Name, s.LastMessageID, s.MessagesConsumed, lastRun)
				if s.LastError != "" {
					fmt.Printf("             last error: %s\n", s.LastError)
				}
			}
			return nil
		},
	}
}

func sourcesSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Register chats the gateway exposes as sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			limiter := ratelimit.NewDefaultLimiter()
			client := chat.NewClient(cfg.Chat.BaseURL, cfg.Chat.Token, cfg.Chat.BatchLimit, limiter, log)

			infos, err := client.ListSources(ctx)
			if err != nil {
				return fmt.Errorf("failed to list gateway chats: %w", err)
			}

			added := 0
			for _, info := range infos {
				existing, err := repo.GetSourceByChatID(ctx, info.ChatID)
				if err != nil {
					return err
				}
				if existing != nil {
					continue
				}
				src := &models.Source{
					ChatID:   info.ChatID,
					Name:     info.Name,
					TopicIDs: models.Int64Slice(info.TopicIDs),
				}
				if err := repo.CreateSource(ctx, src); err != nil {
					return fmt.Errorf("failed to create source %s: %w", info.Name, err)
				}
				added++
			}

			fmt.Printf("Synced %d chat(s), %d new source(s) registered\n", len(infos), added)
			return nil
		},
	}
}

// ============ EVENTS COMMAND ============

func eventsCmd() *cobra.Command {
	var source, tag string
	var limit int
	var upcoming bool

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List persisted events",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := storage.DefaultEventFilter()
			if source != "" {
				filter.Source = &source
			}
			if tag != "" {
				filter.Tag = &tag
			}
			if limit > 0 {
				filter.Limit = limit
			}
			if upcoming {
				now := time.Now()
				filter.From = &now
			}

			events, err := repo.ListEvents(context.Background(), filter)
			if err != nil {
				return err
			}

			for _, e := range events {
				fmt.Printf("#%-5d %-40s %s  %s\n", e.ID, e.Slug, e.StartAt.Format("2006-01-02 15:04"), e.Source)
			}
			fmt.Printf("\n%d event(s)\n", len(events))
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Filter by source identifier")
	cmd.Flags().StringVar(&tag, "tag", "", "Filter by tag")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of events")
	cmd.Flags().BoolVar(&upcoming, "upcoming", false, "Only events that have not started yet")
	return cmd
}

// ============ FEEDS COMMAND ============

func feedsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "feeds",
		Short: "Ingest website event feeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cfg.Feeds.Enabled || len(cfg.Feeds.Feeds) == 0 {
				return fmt.Errorf("no feeds configured, set feeds.enabled and feeds.feeds")
			}

			limiter := ratelimit.NewDefaultLimiter()
			entries := make([]feed.Feed, 0, len(cfg.Feeds.Feeds))
			for _, f := range cfg.Feeds.Feeds {
				entries = append(entries, feed.Feed{Name: f.Name, URL: f.URL, Website: f.Website})
			}

			merger := dedup.NewEngine(repo, dedupConfig(), log)
			ingestor := feed.NewIngestor(feed.NewMultiple(entries, limiter, log), repo, merger, log)

			stats, err := ingestor.Run(context.Background())
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Feed Results ===\n")
			fmt.Printf("Feeds:   %d\n", stats.Feeds)
			fmt.Printf("Failed:  %d\n", stats.Failed)
			fmt.Printf("Created: %d\n", stats.Created)
			fmt.Printf("Merged:  %d\n", stats.Merged)
			return nil
		},
	}
}

// ============ CLEANUP COMMAND ============

func cleanupImagesCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "cleanup-images",
		Short: "Delete stored images no event references",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			limiter := ratelimit.NewDefaultLimiter()
			store := media.NewClient(cfg.Media.BaseURL, cfg.Media.APIKey, limiter, log)

			stored, err := store.List(ctx)
			if err != nil {
				return fmt.Errorf("failed to list stored images: %w", err)
			}
			referenced, err := repo.AllImageURLs(ctx)
			if err != nil {
				return fmt.Errorf("failed to list referenced images: %w", err)
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

			fmt.Printf("%d stored, %d referenced, %d orphaned\n", len(stored), len(inUse), len(orphans))
			if dryRun || len(orphans) == 0 {
				return nil
			}

			if err := store.Delete(ctx, orphans); err != nil {
				return fmt.Errorf("failed to delete orphaned images: %w", err)
			}
			fmt.Printf("Deleted %d image(s)\n", len(orphans))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report orphaned images without deleting")
	return cmd
}
