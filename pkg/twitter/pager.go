package twitter

import (
	"context"
	"fmt"
	"io"
	"strconv"

	errs "twmediadl/pkg/errors"
	"twmediadl/pkg/logger"
	"twmediadl/pkg/models"
)

// Pager walks a listing from newest to oldest using max_id as the cursor.
// It is not safe for concurrent use.
type Pager struct {
	client   *Client
	target   Target
	category models.Category
	logger   logger.Logger

	maxID int64
	pages int
	done  bool
}

// Cursor returns the max_id the next request will use, "" for the first page
func (p *Pager) Cursor() string {
	if p.maxID == 0 {
		return ""
	}
	return strconv.FormatInt(p.maxID, 10)
}

// Pages returns the number of pages fetched so far
func (p *Pager) Pages() int {
	return p.pages
}

// Next fetches the next page of posts. It returns io.EOF once the listing is
// exhausted, a *errs.SourceFetchError when a request fails, or ctx's error
// when cancelled while waiting for the rate limiter or the request.
func (p *Pager) Next(ctx context.Context) ([]models.Post, error) {
	if p.done {
		return nil, io.EOF
	}

	if err := p.client.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	tweets, resp, err := p.client.list(ctx, p.category, p.target, p.maxID)
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err == nil && resp != nil && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		err = fmt.Errorf("unexpected status %s", resp.Status)
	}
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		p.logger.WarnWithFields("Page request failed", map[string]interface{}{
			"cursor": p.Cursor(),
			"status": status,
			"error":  err.Error(),
		})
		return nil, &errs.SourceFetchError{
			Category: p.category.String(),
			Cursor:   p.Cursor(),
			Err:      fmt.Errorf("%s error (status %d): %w", errs.TypeForStatus(status), status, err),
		}
	}
	p.pages++

	if len(tweets) == 0 {
		p.done = true
		p.logger.DebugWithFields("Listing exhausted", map[string]interface{}{
			"pages": p.pages,
		})
		return nil, io.EOF
	}

	minID := tweets[0].ID
	posts := make([]models.Post, 0, len(tweets))
	for i := range tweets {
		if tweets[i].ID < minID {
			minID = tweets[i].ID
		}
		posts = append(posts, ToPost(&tweets[i], p.logger))
	}

	next := minID - 1
	if next <= 0 || (p.maxID != 0 && next >= p.maxID) {
		// the API returned nothing older than the last page
		p.done = true
	}
	p.maxID = next

	p.logger.DebugWithFields("Page fetched", map[string]interface{}{
		"page":        p.pages,
		"posts":       len(posts),
		"next_cursor": p.Cursor(),
	})
	return posts, nil
}
