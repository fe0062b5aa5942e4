package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"twmediadl/internal/downloader"
	"twmediadl/pkg/auth"
	"twmediadl/pkg/config"
	"twmediadl/pkg/ledger"
	"twmediadl/pkg/logger"
	"twmediadl/pkg/models"
	"twmediadl/pkg/ratelimit"
	"twmediadl/pkg/scraper"
	"twmediadl/pkg/storage"
	"twmediadl/pkg/twitter"
	"twmediadl/pkg/ui"
)

var (
	userFlag   string
	sourceFlag string

	// credentialStore is swapped in tests
	credentialStore auth.Store = auth.NewKeyringStore()
)

func runDownload(cmd *cobra.Command, args []string) error {
	categories, err := models.ParseSource(sourceFlag)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configFile, credentialStore)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	target, err := cfg.ResolveTarget(userFlag)
	if err != nil {
		return err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()

	s, err := newScraper(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := interruptContext(context.Background())
	defer stop()

	ui.PrintInfo("Target", target)
	ui.PrintInfo("Source", joinCategories(categories))
	ui.PrintInfo("Output", cfg.Output.BaseDirectory)

	log.WithFields(map[string]interface{}{
		"target":  target,
		"source":  sourceFlag,
		"output":  cfg.Output.BaseDirectory,
		"version": version,
	}).Info("Download run starting")

	summary, err := s.Run(ctx, target, categories)
	ui.PrintSummary(summary)
	if err != nil {
		log.WithError(err).Error("Download run failed")
		return err
	}

	log.WithFields(map[string]interface{}{
		"downloaded":  summary.Downloaded(),
		"failed":      summary.Failed(),
		"interrupted": summary.Interrupted(),
	}).Info("Download run finished")
	return nil
}

// interruptContext is cancelled by the first SIGINT or SIGTERM. Default
// signal handling is restored at that point so a second signal terminates
// the process.
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx, stop
}

// newScraper wires the API client, fetcher, writer and ledger store from cfg
func newScraper(cfg *config.Config, log logger.Logger) (*scraper.Scraper, error) {
	writer, err := storage.NewWriter(cfg.Output.BaseDirectory, cfg.Output.LinkMode, log)
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.New(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window)
	client := twitter.NewClient(twitter.NewHTTPClient(cfg.Twitter, cfg.Download.RequestTimeout), limiter, cfg.Download.PageSize, log)
	source := scraper.SourceFunc(func(target string, category models.Category) scraper.Pager {
		return client.Posts(target, category)
	})

	fetcher := downloader.NewFetcher(&http.Client{Timeout: cfg.Download.Timeout}, log)
	store := ledger.NewStore(cfg.Output.BaseDirectory, log)
	tracker := ui.NewStatusTracker(cfg.UI.ShowProgress && !ui.IsQuiet())

	return scraper.New(source, store, fetcher, writer, scraper.Options{
		MaxPosts: cfg.Download.MaxPosts,
		Progress: tracker,
	}, log), nil
}

func joinCategories(categories []models.Category) string {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.String()
	}
	return strings.Join(names, ", ")
}
