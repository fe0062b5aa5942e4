package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	errs "twmediadl/pkg/errors"
	"twmediadl/pkg/ledger"
	"twmediadl/pkg/logger"
	"twmediadl/pkg/media"
	"twmediadl/pkg/models"
)

// Stats holds the counters for one category of a run
type Stats struct {
	Category    models.Category
	Posts       int
	Media       int
	Duplicates  int
	Downloaded  int
	Failed      int
	LedgerPath  string
	LedgerErr   error
	FetchErr    error
	PersistErr  error
	Interrupted bool
	Elapsed     time.Duration
}

// Summary collects the per-category stats of a run in processing order
type Summary struct {
	Categories []Stats
}

// Downloaded returns the number of files downloaded across all categories
func (s Summary) Downloaded() int {
	n := 0
	for _, st := range s.Categories {
		n += st.Downloaded
	}
	return n
}

// Failed returns the number of failed downloads across all categories
func (s Summary) Failed() int {
	n := 0
	for _, st := range s.Categories {
		n += st.Failed
	}
	return n
}

// Interrupted reports whether any category stopped on cancellation
func (s Summary) Interrupted() bool {
	for _, st := range s.Categories {
		if st.Interrupted {
			return true
		}
	}
	return false
}

// Options tune a Scraper. MaxPosts > 0 caps the posts read per category.
type Options struct {
	MaxPosts int
	Progress Progress
}

// Scraper walks a user's listings and downloads every media item not yet
// recorded in the category's ledger
type Scraper struct {
	source   PostSource
	ledger   LedgerStore
	fetcher  Fetcher
	writer   MediaWriter
	maxPosts int
	progress Progress
	logger   logger.Logger
}

// New creates a Scraper from its collaborators
func New(source PostSource, store LedgerStore, fetcher Fetcher, writer MediaWriter, opts Options, log logger.Logger) *Scraper {
	if log == nil {
		log = logger.GetLogger()
	}
	progress := opts.Progress
	if progress == nil {
		progress = nopProgress{}
	}

	return &Scraper{
		source:   source,
		ledger:   store,
		fetcher:  fetcher,
		writer:   writer,
		maxPosts: opts.MaxPosts,
		progress: progress,
		logger:   log.WithField("component", "scraper"),
	}
}

// Run processes categories in order for target. Per-item and per-page
// failures are recorded in the returned Summary; an error is returned only
// when no category could load its ledger.
func (s *Scraper) Run(ctx context.Context, target string, categories []models.Category) (Summary, error) {
	var summary Summary
	var ledgerErrs []error

	for _, category := range categories {
		if ctx.Err() != nil {
			break
		}
		stats := s.runCategory(ctx, target, category)
		summary.Categories = append(summary.Categories, stats)
		if stats.LedgerErr != nil {
			ledgerErrs = append(ledgerErrs, stats.LedgerErr)
		}
	}

	if len(summary.Categories) > 0 && len(ledgerErrs) == len(summary.Categories) {
		return summary, fmt.Errorf("no category could load its ledger: %w", errors.Join(ledgerErrs...))
	}
	return summary, nil
}

func (s *Scraper) runCategory(ctx context.Context, target string, category models.Category) Stats {
	start := time.Now()
	stats := Stats{Category: category}
	log := s.logger.WithFields(map[string]interface{}{
		"category": category.String(),
		"target":   target,
	})

	set, err := s.ledger.Load(category)
	if err != nil {
		log.WithError(err).Error("Failed to load ledger, skipping category")
		stats.LedgerErr = fmt.Errorf("%s: %w", category, err)
		return stats
	}
	log.InfoWithFields("Processing category", map[string]interface{}{
		"known_urls": set.Len(),
	})

	s.walk(ctx, target, category, set, &stats, log)

	path, err := s.ledger.Persist(category, set)
	if err != nil {
		log.WithError(err).Error("Failed to persist ledger")
		stats.PersistErr = err
	}
	stats.LedgerPath = path
	stats.Elapsed = time.Since(start)

	log.InfoWithFields("Category finished", map[string]interface{}{
		"posts":       stats.Posts,
		"media":       stats.Media,
		"duplicates":  stats.Duplicates,
		"downloaded":  stats.Downloaded,
		"failed":      stats.Failed,
		"ledger":      stats.LedgerPath,
		"interrupted": stats.Interrupted,
	})
	s.progress.Finish(stats)
	return stats
}

// walk pages through the listing, adding each successfully stored URL to set
func (s *Scraper) walk(ctx context.Context, target string, category models.Category, set *ledger.Set, stats *Stats, log logger.Logger) {
	pager := s.source.Posts(target, category)

	for {
		if s.maxPosts > 0 && stats.Posts >= s.maxPosts {
			log.DebugWithFields("Post cap reached", map[string]interface{}{"max_posts": s.maxPosts})
			return
		}

		posts, err := pager.Next(ctx)
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				stats.Interrupted = true
				return
			}
			log.WithError(err).WarnWithFields("Listing stopped on fetch error", map[string]interface{}{
				"cursor": pager.Cursor(),
			})
			stats.FetchErr = err
			return
		}

		for _, post := range posts {
			if s.maxPosts > 0 && stats.Posts >= s.maxPosts {
				return
			}
			if ctx.Err() != nil {
				stats.Interrupted = true
				return
			}
			stats.Posts++

			for _, item := range media.Extract(post) {
				stats.Media++
				if set.Has(item.URL) {
					stats.Duplicates++
					continue
				}

				paths, err := s.download(ctx, category, item)
				if err != nil && ctx.Err() != nil {
					stats.Interrupted = true
					return
				}
				logger.LogDownload(log.WithField("stage", stage(err)), category, item, paths, err)
				if err != nil {
					stats.Failed++
					continue
				}
				set.Add(item.URL)
				stats.Downloaded++
			}
			s.progress.Update(*stats)
		}
	}
}

func (s *Scraper) download(ctx context.Context, category models.Category, item models.MediaItem) ([]string, error) {
	body, err := s.fetcher.Fetch(ctx, item.URL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	return s.writer.Write(category, item, body)
}

// stage names where a download failed. Read errors surface from the writer
// wrapped in a WriteError, so the download check comes first.
func stage(err error) string {
	var downloadErr *errs.DownloadError
	var writeErr *errs.WriteError
	switch {
	case err == nil:
		return "done"
	case errors.As(err, &downloadErr):
		return "download"
	case errors.As(err, &writeErr):
		return "write"
	default:
		return "unknown"
	}
}
