package twitter

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	gotwitter "github.com/dghubble/go-twitter/twitter"
	"github.com/dghubble/oauth1"

	"twmediadl/pkg/config"
	"twmediadl/pkg/logger"
	"twmediadl/pkg/models"
	"twmediadl/pkg/ratelimit"
)

// MaxPageSize is the largest count the listing endpoints accept
const MaxPageSize = 200

// NewHTTPClient returns an HTTP client that signs requests with the
// configured OAuth1 user credentials. timeout bounds each page request.
func NewHTTPClient(creds config.TwitterConfig, timeout time.Duration) *http.Client {
	oauthConfig := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessSecret)

	httpClient := oauthConfig.Client(context.Background(), token)
	httpClient.Timeout = timeout
	return httpClient
}

// Client lists a user's liked and posted tweets
type Client struct {
	httpClient *http.Client
	limiter    ratelimit.Limiter
	pageSize   int
	logger     logger.Logger
}

// NewClient creates a client on top of an already authenticated HTTP client
func NewClient(httpClient *http.Client, limiter ratelimit.Limiter, pageSize int, log logger.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		httpClient: httpClient,
		limiter:    limiter,
		pageSize:   pageSize,
		logger:     log.WithField("component", "twitter"),
	}
}

// Target identifies a user either by numeric id or by screen name
type Target struct {
	UserID     int64
	ScreenName string
}

// ParseTarget treats an all-digit value as a user id and anything else as a
// screen name, with an optional leading @
func ParseTarget(value string) Target {
	value = strings.TrimSpace(value)
	if id, err := strconv.ParseInt(value, 10, 64); err == nil && id > 0 {
		return Target{UserID: id}
	}
	return Target{ScreenName: strings.TrimPrefix(value, "@")}
}

func (t Target) String() string {
	if t.UserID != 0 {
		return strconv.FormatInt(t.UserID, 10)
	}
	return "@" + t.ScreenName
}

// Posts returns a pager over target's posts for category, newest first
func (c *Client) Posts(target string, category models.Category) *Pager {
	return &Pager{
		client:   c,
		target:   ParseTarget(target),
		category: category,
		logger: c.logger.WithFields(map[string]interface{}{
			"category": category.String(),
			"target":   target,
		}),
	}
}

// api returns a go-twitter client whose requests are cancelled with ctx
func (c *Client) api(ctx context.Context) *gotwitter.Client {
	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	scoped := *c.httpClient
	scoped.Transport = &contextTransport{ctx: ctx, base: base}
	return gotwitter.NewClient(&scoped)
}

// list requests one page for category below maxID (0 = newest)
func (c *Client) list(ctx context.Context, category models.Category, target Target, maxID int64) ([]gotwitter.Tweet, *http.Response, error) {
	api := c.api(ctx)
	if category == models.CategoryTimeline {
		return api.Timelines.UserTimeline(&gotwitter.UserTimelineParams{
			UserID:          target.UserID,
			ScreenName:      target.ScreenName,
			Count:           c.pageSize,
			MaxID:           maxID,
			IncludeRetweets: gotwitter.Bool(true),
			TweetMode:       "extended",
		})
	}
	return api.Favorites.List(&gotwitter.FavoriteListParams{
		UserID:     target.UserID,
		ScreenName: target.ScreenName,
		Count:      c.pageSize,
		MaxID:      maxID,
		TweetMode:  "extended",
	})
}

// contextTransport binds requests to ctx. go-twitter builds its requests
// without a context, so this is what lets a cancelled run abort a page
// request in flight. The request's own context (the client timeout) still
// applies.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t *contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithCancel(req.Context())
	stop := context.AfterFunc(t.ctx, cancel)
	release := func() {
		stop()
		cancel()
	}

	resp, err := t.base.RoundTrip(req.WithContext(ctx))
	if err != nil {
		release()
		return nil, err
	}
	resp.Body = &releaseOnClose{ReadCloser: resp.Body, release: release}
	return resp, nil
}

// releaseOnClose keeps the request context alive until the body is closed
type releaseOnClose struct {
	io.ReadCloser
	release func()
}

func (b *releaseOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.release()
	return err
}
