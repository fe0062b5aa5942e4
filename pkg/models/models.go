package models

import (
	"fmt"
	"strings"
	"time"
)

// Category selects which listing a run walks and which output tree and ledger it uses
type Category string

const (
	CategoryLikes    Category = "likes"
	CategoryTimeline Category = "timeline"
)

// SourceBoth is the --source value that selects every category
const SourceBoth = "both"

// AllCategories lists categories in processing order
var AllCategories = []Category{CategoryLikes, CategoryTimeline}

func (c Category) String() string {
	return string(c)
}

// ParseSource converts a --source value into the categories to process.
// An empty value behaves like "both".
func ParseSource(source string) ([]Category, error) {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case "", SourceBoth:
		return append([]Category(nil), AllCategories...), nil
	case string(CategoryLikes):
		return []Category{CategoryLikes}, nil
	case string(CategoryTimeline):
		return []Category{CategoryTimeline}, nil
	default:
		return nil, fmt.Errorf("invalid source %q: must be one of likes, timeline, both", source)
	}
}

// AttachmentType is the media type declared by the API
type AttachmentType string

const (
	AttachmentPhoto       AttachmentType = "photo"
	AttachmentAnimatedGIF AttachmentType = "animated_gif"
	AttachmentVideo       AttachmentType = "video"
)

// Attachment is a single media reference on a post
type Attachment struct {
	Type  AttachmentType
	URL   string
	Index int
}

// Post is a tweet reduced to what the downloader consumes.
// Referenced holds the retweeted and quoted tweets, if any.
type Post struct {
	ID           string
	AuthorHandle string
	CreatedAt    time.Time
	Attachments  []Attachment
	Referenced   []Post
}

// MediaKind is the logical kind of a downloadable item
type MediaKind string

const (
	KindImage MediaKind = "image"
	KindGIF   MediaKind = "gif"
	KindVideo MediaKind = "video"
)

// Prefix returns the filename prefix for the kind
func (k MediaKind) Prefix() string {
	switch k {
	case KindImage:
		return "img"
	case KindGIF:
		return "gif"
	default:
		return "video"
	}
}

// KindFor maps an attachment type to a media kind
func KindFor(t AttachmentType) (MediaKind, bool) {
	switch t {
	case AttachmentPhoto:
		return KindImage, true
	case AttachmentAnimatedGIF:
		return KindGIF, true
	case AttachmentVideo:
		return KindVideo, true
	default:
		return "", false
	}
}

// MediaItem is one downloadable unit. URL is the dedup key.
type MediaItem struct {
	Kind           MediaKind
	URL            string
	UploaderHandle string
	PostID         string
	PostDate       time.Time
	Index          int
}
