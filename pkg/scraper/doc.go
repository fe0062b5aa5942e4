// Package scraper drives a download run.
//
// For each requested category the Scraper loads the category's ledger, pages
// through the user's listing, extracts media from every post and downloads
// each item whose URL is not yet in the ledger. Successfully stored URLs are
// added to the ledger, which is persisted once per category when the listing
// ends, a page request fails, or the run is cancelled.
//
// Usage:
//
//	source := scraper.SourceFunc(func(target string, c models.Category) scraper.Pager {
//	    return client.Posts(target, c)
//	})
//	s := scraper.New(source, ledger.NewStore(root, log), fetcher, writer, scraper.Options{}, log)
//	summary, err := s.Run(ctx, "12345", models.AllCategories)
//
// Failed downloads are counted and logged but never recorded, so they are
// attempted again on the next run.
package scraper
