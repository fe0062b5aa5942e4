package twitter

import (
	"strconv"

	gotwitter "github.com/dghubble/go-twitter/twitter"

	"twmediadl/pkg/logger"
	"twmediadl/pkg/media"
	"twmediadl/pkg/models"
)

// origSuffix asks the CDN for the original upload instead of a resized copy
const origSuffix = ":orig"

// ToPost converts an API tweet into a Post. Photos resolve to their original
// size URL and gifs and videos to their highest bitrate mp4 variant;
// attachments without a usable URL are dropped. Retweeted and quoted tweets
// become Referenced posts.
func ToPost(t *gotwitter.Tweet, log logger.Logger) models.Post {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return toPost(t, log, 1)
}

func toPost(t *gotwitter.Tweet, log logger.Logger, depth int) models.Post {
	post := models.Post{ID: t.IDStr}
	if post.ID == "" {
		post.ID = strconv.FormatInt(t.ID, 10)
	}
	if t.User != nil {
		post.AuthorHandle = t.User.ScreenName
	}

	if created, err := t.CreatedAtTime(); err == nil {
		post.CreatedAt = created.UTC()
	} else if t.CreatedAt != "" {
		log.DebugWithFields("Unparseable tweet date", map[string]interface{}{
			"post_id":    post.ID,
			"created_at": t.CreatedAt,
		})
	}

	if t.ExtendedEntities != nil {
		for i, m := range t.ExtendedEntities.Media {
			att, ok := toAttachment(m, i)
			if !ok {
				log.DebugWithFields("Dropping attachment without media URL", map[string]interface{}{
					"post_id": post.ID,
					"type":    m.Type,
					"index":   i,
				})
				continue
			}
			post.Attachments = append(post.Attachments, att)
		}
	}

	if depth < media.MaxDepth {
		if t.RetweetedStatus != nil {
			post.Referenced = append(post.Referenced, toPost(t.RetweetedStatus, log, depth+1))
		}
		if t.QuotedStatus != nil {
			post.Referenced = append(post.Referenced, toPost(t.QuotedStatus, log, depth+1))
		}
	}
	return post
}

func toAttachment(m gotwitter.MediaEntity, index int) (models.Attachment, bool) {
	att := models.Attachment{Type: models.AttachmentType(m.Type), Index: index}

	switch att.Type {
	case models.AttachmentPhoto:
		if m.MediaURLHttps == "" {
			return att, false
		}
		att.URL = m.MediaURLHttps + origSuffix
	case models.AttachmentAnimatedGIF, models.AttachmentVideo:
		best := -1
		for _, v := range m.VideoInfo.Variants {
			if v.ContentType == "video/mp4" && v.URL != "" && v.Bitrate > best {
				best = v.Bitrate
				att.URL = v.URL
			}
		}
		if att.URL == "" {
			return att, false
		}
	default:
		return att, false
	}
	return att, true
}
