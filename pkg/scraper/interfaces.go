package scraper

import (
	"context"
	"io"

	"twmediadl/pkg/ledger"
	"twmediadl/pkg/models"
)

// Pager yields pages of posts until it returns io.EOF
type Pager interface {
	Next(ctx context.Context) ([]models.Post, error)
	Cursor() string
}

// PostSource opens a pager over target's posts for a category
type PostSource interface {
	Posts(target string, category models.Category) Pager
}

// SourceFunc adapts a function to PostSource
type SourceFunc func(target string, category models.Category) Pager

func (f SourceFunc) Posts(target string, category models.Category) Pager {
	return f(target, category)
}

// LedgerStore loads and persists the per-category set of downloaded URLs
type LedgerStore interface {
	Load(category models.Category) (*ledger.Set, error)
	Persist(category models.Category, set *ledger.Set) (string, error)
}

// Fetcher opens the body of a media URL
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// MediaWriter stores a media item under the category's output tree
type MediaWriter interface {
	Write(category models.Category, item models.MediaItem, r io.Reader) ([]string, error)
}

// Progress receives running counters for the category being processed
type Progress interface {
	Update(stats Stats)
	Finish(stats Stats)
}

type nopProgress struct{}

func (nopProgress) Update(Stats) {}
func (nopProgress) Finish(Stats) {}
