// Package media turns posts into downloadable items and names them on disk.
package media

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/gosimple/slug"

	"twmediadl/pkg/models"
)

// MaxDepth bounds how far retweet and quote chains are followed
const MaxDepth = 10

// DateFormat is the post date layout used in file names
const DateFormat = "2006-01-02-150405"

const unknownHandle = "unknown"

// Extract returns the media items of post in attachment order, followed by
// those of its retweeted and quoted posts. Items from a referenced post are
// attributed to that post's author, id and date.
func Extract(post models.Post) []models.MediaItem {
	return extract(post, 1, nil)
}

func extract(post models.Post, depth int, items []models.MediaItem) []models.MediaItem {
	for _, att := range post.Attachments {
		kind, ok := models.KindFor(att.Type)
		if !ok || att.URL == "" {
			continue
		}
		items = append(items, models.MediaItem{
			Kind:           kind,
			URL:            att.URL,
			UploaderHandle: Handle(post.AuthorHandle),
			PostID:         post.ID,
			PostDate:       post.CreatedAt,
			Index:          att.Index,
		})
	}

	if depth < MaxDepth {
		for _, ref := range post.Referenced {
			items = extract(ref, depth+1, items)
		}
	}
	return items
}

// Handle sanitizes a screen name for use as a directory and file name part
func Handle(screenName string) string {
	h := slug.Make(strings.TrimPrefix(screenName, "@"))
	if h == "" {
		return unknownHandle
	}
	return h
}

// Extension returns the stored file extension for item. Gifs are served as
// mp4 by the API, so only images keep their own extension.
func Extension(item models.MediaItem) string {
	if item.Kind != models.KindImage {
		return "mp4"
	}

	p := item.URL
	if u, err := url.Parse(item.URL); err == nil {
		p = u.Path
	}
	// photo URLs carry a size suffix such as ":orig"
	if i := strings.LastIndex(p, ":"); i > strings.LastIndex(p, "/") {
		p = p[:i]
	}

	if strings.EqualFold(path.Ext(p), ".png") {
		return "png"
	}
	return "jpg"
}

// Filename builds {img|gif|video}{date}_{handle}_{post id}.{ext}. Images after
// the first in a post get an _{index} suffix on the post id so that
// multi-photo posts do not collide.
func Filename(item models.MediaItem) string {
	id := item.PostID
	if item.Kind == models.KindImage && item.Index > 0 {
		id = fmt.Sprintf("%s_%d", id, item.Index)
	}
	return fmt.Sprintf("%s%s_%s_%s.%s",
		item.Kind.Prefix(),
		item.PostDate.UTC().Format(DateFormat),
		Handle(item.UploaderHandle),
		id,
		Extension(item),
	)
}
