package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	errs "twmediadl/pkg/errors"
	"twmediadl/pkg/ledger"
	"twmediadl/pkg/logger"
	"twmediadl/pkg/models"
	"twmediadl/pkg/storage"
)

const (
	urlA = "https://pbs.twimg.com/media/a.jpg:orig"
	urlB = "https://video.twimg.com/ext_tw_video/b.mp4"
	urlC = "https://pbs.twimg.com/media/c.png:orig"
)

var postDate = time.Date(2021, 1, 30, 2, 6, 1, 0, time.UTC)

func photoPost(id, author, url string) models.Post {
	return models.Post{
		ID:           id,
		AuthorHandle: author,
		CreatedAt:    postDate,
		Attachments:  []models.Attachment{{Type: models.AttachmentPhoto, URL: url}},
	}
}

func videoPost(id, author, url string) models.Post {
	return models.Post{
		ID:           id,
		AuthorHandle: author,
		CreatedAt:    postDate,
		Attachments:  []models.Attachment{{Type: models.AttachmentVideo, URL: url}},
	}
}

// fakePager serves fixed pages and then tailErr, or io.EOF when tailErr is nil
type fakePager struct {
	pages   [][]models.Post
	tailErr error
	calls   int
}

func (p *fakePager) Next(ctx context.Context) ([]models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.calls++
	if p.calls <= len(p.pages) {
		return p.pages[p.calls-1], nil
	}
	if p.tailErr != nil {
		return nil, p.tailErr
	}
	return nil, io.EOF
}

func (p *fakePager) Cursor() string {
	return fmt.Sprintf("page-%d", p.calls)
}

// fakeSource hands out a fresh pager per category built from listings
type fakeSource struct {
	listings map[models.Category][][]models.Post
	tailErr  map[models.Category]error
	opened   []models.Category
	pagers   map[models.Category]*fakePager
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		listings: make(map[models.Category][][]models.Post),
		tailErr:  make(map[models.Category]error),
		pagers:   make(map[models.Category]*fakePager),
	}
}

func (f *fakeSource) Posts(target string, category models.Category) Pager {
	f.opened = append(f.opened, category)
	p := &fakePager{pages: f.listings[category], tailErr: f.tailErr[category]}
	f.pagers[category] = p
	return p
}

type fakeFetcher struct {
	fail   map[string]error
	calls  []string
	before func(url string)
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	f.calls = append(f.calls, url)
	if f.before != nil {
		f.before(url)
	}
	if err := ctx.Err(); err != nil {
		return nil, &errs.DownloadError{URL: url, Type: errs.ErrorTypeNetwork, Err: err}
	}
	if err, ok := f.fail[url]; ok {
		return nil, err
	}
	return io.NopCloser(strings.NewReader("bytes of " + url)), nil
}

// brokenLedger fails Load for the listed categories and defers to a real store otherwise
type brokenLedger struct {
	*ledger.Store
	broken map[models.Category]bool
}

func (b *brokenLedger) Load(category models.Category) (*ledger.Set, error) {
	if b.broken[category] {
		return nil, errors.New("permission denied")
	}
	return b.Store.Load(category)
}

type recordingProgress struct {
	updates  []Stats
	finished []Stats
}

func (r *recordingProgress) Update(stats Stats) { r.updates = append(r.updates, stats) }
func (r *recordingProgress) Finish(stats Stats) { r.finished = append(r.finished, stats) }

type ScraperTestSuite struct {
	suite.Suite

	root     string
	source   *fakeSource
	fetcher  *fakeFetcher
	store    *ledger.Store
	writer   *storage.Writer
	progress *recordingProgress
	log      *logger.TestLogger
}

func TestScraperTestSuite(t *testing.T) {
	suite.Run(t, new(ScraperTestSuite))
}

func (s *ScraperTestSuite) SetupTest() {
	s.root = s.T().TempDir()
	s.source = newFakeSource()
	s.fetcher = &fakeFetcher{fail: make(map[string]error)}
	s.store = ledger.NewStore(s.root, nil)
	s.progress = &recordingProgress{}
	s.log = logger.NewTestLogger()

	writer, err := storage.NewWriter(s.root, "", nil)
	s.Require().NoError(err)
	s.writer = writer
}

func (s *ScraperTestSuite) newScraper(maxPosts int) *Scraper {
	return New(s.source, s.store, s.fetcher, s.writer, Options{MaxPosts: maxPosts, Progress: s.progress}, s.log)
}

func (s *ScraperTestSuite) run(categories ...models.Category) Summary {
	summary, err := s.newScraper(0).Run(context.Background(), "12345", categories)
	s.Require().NoError(err)
	return summary
}

// ledgerURLs reads the newest ledger file for category
func (s *ScraperTestSuite) ledgerURLs(category models.Category) []string {
	path, err := s.store.Latest(category)
	s.Require().NoError(err)
	s.Require().NotEmpty(path)

	data, err := os.ReadFile(path)
	s.Require().NoError(err)
	return strings.Fields(string(data))
}

func (s *ScraperTestSuite) dirEntries(parts ...string) []string {
	entries, err := os.ReadDir(filepath.Join(append([]string{s.root}, parts...)...))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	s.Require().NoError(err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func (s *ScraperTestSuite) TestLikedPostsScenario() {
	s.source.listings[models.CategoryLikes] = [][]models.Post{{
		photoPost("1", "alice", urlA),
		videoPost("2", "bob", urlB),
	}}

	summary := s.run(models.CategoryLikes)

	s.Require().Len(summary.Categories, 1)
	stats := summary.Categories[0]
	s.Equal(models.CategoryLikes, stats.Category)
	s.Equal(2, stats.Posts)
	s.Equal(2, stats.Media)
	s.Equal(2, stats.Downloaded)
	s.Zero(stats.Failed)
	s.Zero(stats.Duplicates)
	s.NoError(stats.FetchErr)
	s.NotEmpty(stats.LedgerPath)

	s.Len(s.dirEntries("likes", storage.AllDirName), 2)
	s.Equal([]string{"img2021-01-30-020601_alice_1.jpg"}, s.dirEntries("likes", "alice"))
	s.Equal([]string{"video2021-01-30-020601_bob_2.mp4"}, s.dirEntries("likes", "bob"))
	s.ElementsMatch([]string{urlA, urlB}, s.ledgerURLs(models.CategoryLikes))

	data, err := os.ReadFile(filepath.Join(s.root, "likes", "bob", "video2021-01-30-020601_bob_2.mp4"))
	s.Require().NoError(err)
	s.Equal("bytes of "+urlB, string(data))

	// timeline was never requested
	s.Equal([]models.Category{models.CategoryLikes}, s.source.opened)
	s.Nil(s.dirEntries("timeline"))
}

func (s *ScraperTestSuite) TestKnownURLIsSkipped() {
	_, err := s.store.Persist(models.CategoryLikes, ledger.NewSet(urlA))
	s.Require().NoError(err)

	s.source.listings[models.CategoryLikes] = [][]models.Post{{
		photoPost("1", "alice", urlA),
		videoPost("2", "bob", urlB),
	}}

	stats := s.run(models.CategoryLikes).Categories[0]

	s.Equal(1, stats.Duplicates)
	s.Equal(1, stats.Downloaded)
	s.Equal([]string{urlB}, s.fetcher.calls)
	s.Nil(s.dirEntries("likes", "alice"))
	s.ElementsMatch([]string{urlA, urlB}, s.ledgerURLs(models.CategoryLikes))

	// the seeded ledger was rotated into backup
	s.Len(s.dirEntries("likes", "backup"), 1)
}

func (s *ScraperTestSuite) TestFailedDownloadIsRetriedNextRun() {
	s.source.listings[models.CategoryLikes] = [][]models.Post{{
		photoPost("1", "alice", urlA),
		videoPost("2", "bob", urlB),
	}}
	s.fetcher.fail[urlB] = &errs.DownloadError{URL: urlB, StatusCode: 404, Type: errs.TypeForStatus(404)}

	stats := s.run(models.CategoryLikes).Categories[0]
	s.Equal(1, stats.Downloaded)
	s.Equal(1, stats.Failed)
	s.Equal([]string{urlA}, s.ledgerURLs(models.CategoryLikes))
	s.Nil(s.dirEntries("likes", "bob"))
	s.True(s.log.HasMessage("Download failed"))

	delete(s.fetcher.fail, urlB)
	s.fetcher.calls = nil

	stats = s.run(models.CategoryLikes).Categories[0]
	s.Equal(1, stats.Duplicates)
	s.Equal(1, stats.Downloaded)
	s.Zero(stats.Failed)
	s.Equal([]string{urlB}, s.fetcher.calls)
	s.ElementsMatch([]string{urlA, urlB}, s.ledgerURLs(models.CategoryLikes))
}

func (s *ScraperTestSuite) TestWriteFailureIsNotRecorded() {
	s.source.listings[models.CategoryTimeline] = [][]models.Post{{photoPost("1", "alice", urlA)}}

	// a file where the uploader directory should go makes the write fail
	s.Require().NoError(os.MkdirAll(filepath.Join(s.root, "timeline"), 0755))
	s.Require().NoError(os.WriteFile(filepath.Join(s.root, "timeline", "alice"), nil, 0644))

	stats := s.run(models.CategoryTimeline).Categories[0]
	s.Equal(1, stats.Failed)
	s.Zero(stats.Downloaded)
	s.Empty(s.ledgerURLs(models.CategoryTimeline))
	s.Nil(s.dirEntries("timeline", storage.AllDirName))
}

func (s *ScraperTestSuite) TestRerunIsIdempotent() {
	s.source.listings[models.CategoryLikes] = [][]models.Post{{
		photoPost("1", "alice", urlA),
		videoPost("2", "bob", urlB),
	}}

	s.run(models.CategoryLikes)
	first := s.ledgerURLs(models.CategoryLikes)

	stats := s.run(models.CategoryLikes).Categories[0]
	s.Zero(stats.Downloaded)
	s.Equal(2, stats.Duplicates)
	s.Len(s.fetcher.calls, 2)
	s.Len(s.dirEntries("likes", storage.AllDirName), 2)
	s.ElementsMatch(first, s.ledgerURLs(models.CategoryLikes))
}

func (s *ScraperTestSuite) TestPostsWithoutMedia() {
	s.source.listings[models.CategoryTimeline] = [][]models.Post{
		{{ID: "1", AuthorHandle: "alice", CreatedAt: postDate}},
		{{ID: "2", AuthorHandle: "bob", CreatedAt: postDate}},
	}

	stats := s.run(models.CategoryTimeline).Categories[0]
	s.Equal(2, stats.Posts)
	s.Zero(stats.Media)
	s.Empty(s.fetcher.calls)
	s.Empty(s.ledgerURLs(models.CategoryTimeline))
	s.Len(s.progress.updates, 2)
}

func (s *ScraperTestSuite) TestReferencedPostMedia() {
	retweet := models.Post{
		ID:           "10",
		AuthorHandle: "retweeter",
		CreatedAt:    postDate,
		Referenced:   []models.Post{photoPost("9", "original", urlC)},
	}
	s.source.listings[models.CategoryTimeline] = [][]models.Post{{retweet}}

	stats := s.run(models.CategoryTimeline).Categories[0]
	s.Equal(1, stats.Downloaded)
	s.Equal([]string{"img2021-01-30-020601_original_9.png"}, s.dirEntries("timeline", "original"))
}

func (s *ScraperTestSuite) TestSameURLTwiceInOneRun() {
	s.source.listings[models.CategoryLikes] = [][]models.Post{
		{photoPost("1", "alice", urlA)},
		{photoPost("2", "alice", urlA)},
	}

	stats := s.run(models.CategoryLikes).Categories[0]
	s.Equal(1, stats.Downloaded)
	s.Equal(1, stats.Duplicates)
	s.Equal([]string{urlA}, s.ledgerURLs(models.CategoryLikes))
}

func (s *ScraperTestSuite) TestFetchErrorEndsCategoryOnly() {
	fetchErr := &errs.SourceFetchError{Category: "likes", Cursor: "99", Err: errors.New("rate_limit error (status 429)")}
	s.source.listings[models.CategoryLikes] = [][]models.Post{{photoPost("1", "alice", urlA)}}
	s.source.tailErr[models.CategoryLikes] = fetchErr
	s.source.listings[models.CategoryTimeline] = [][]models.Post{{videoPost("2", "bob", urlB)}}

	summary := s.run(models.CategoryLikes, models.CategoryTimeline)
	s.Require().Len(summary.Categories, 2)

	likes := summary.Categories[0]
	var target *errs.SourceFetchError
	s.Require().ErrorAs(likes.FetchErr, &target)
	s.Equal("99", target.Cursor)
	s.Equal(1, likes.Downloaded)
	s.Equal([]string{urlA}, s.ledgerURLs(models.CategoryLikes))

	timeline := summary.Categories[1]
	s.NoError(timeline.FetchErr)
	s.Equal(1, timeline.Downloaded)
	s.Equal([]string{urlB}, s.ledgerURLs(models.CategoryTimeline))
	s.Equal(2, summary.Downloaded())
}

func (s *ScraperTestSuite) TestMaxPostsCapsEachCategory() {
	s.source.listings[models.CategoryLikes] = [][]models.Post{
		{photoPost("1", "a", urlA), photoPost("2", "b", urlB), photoPost("3", "c", urlC)},
		{photoPost("4", "d", "https://pbs.twimg.com/media/d.jpg:orig")},
	}

	summary, err := s.newScraper(2).Run(context.Background(), "12345", []models.Category{models.CategoryLikes})
	s.Require().NoError(err)

	stats := summary.Categories[0]
	s.Equal(2, stats.Posts)
	s.Equal(2, stats.Downloaded)
	s.Equal(1, s.source.pagers[models.CategoryLikes].calls)
	s.ElementsMatch([]string{urlA, urlB}, s.ledgerURLs(models.CategoryLikes))
}

func (s *ScraperTestSuite) TestCancellationPersistsCompletedWork() {
	s.source.listings[models.CategoryLikes] = [][]models.Post{{
		photoPost("1", "alice", urlA),
		photoPost("2", "bob", urlC),
	}}
	s.source.listings[models.CategoryTimeline] = [][]models.Post{{videoPost("3", "carol", urlB)}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.fetcher.before = func(url string) {
		if url == urlC {
			cancel()
		}
	}

	summary, err := s.newScraper(0).Run(ctx, "12345", models.AllCategories)
	s.Require().NoError(err)

	s.Require().Len(summary.Categories, 1)
	stats := summary.Categories[0]
	s.True(stats.Interrupted)
	s.True(summary.Interrupted())
	s.Equal(1, stats.Downloaded)
	s.Zero(stats.Failed)
	s.Equal([]string{urlA}, s.ledgerURLs(models.CategoryLikes))
	s.Equal([]models.Category{models.CategoryLikes}, s.source.opened)
}

func (s *ScraperTestSuite) TestLedgerLoadFailure() {
	broken := &brokenLedger{Store: s.store, broken: map[models.Category]bool{models.CategoryLikes: true}}
	s.source.listings[models.CategoryTimeline] = [][]models.Post{{photoPost("1", "alice", urlA)}}

	sc := New(s.source, broken, s.fetcher, s.writer, Options{}, s.log)
	summary, err := sc.Run(context.Background(), "12345", models.AllCategories)
	s.Require().NoError(err)

	s.Require().Len(summary.Categories, 2)
	s.Error(summary.Categories[0].LedgerErr)
	s.Empty(summary.Categories[0].LedgerPath)
	s.Equal(1, summary.Categories[1].Downloaded)
	s.Equal([]models.Category{models.CategoryTimeline}, s.source.opened)
	s.True(s.log.HasMessage("Failed to load ledger"))

	broken.broken[models.CategoryTimeline] = true
	_, err = sc.Run(context.Background(), "12345", models.AllCategories)
	s.Error(err)
	s.Contains(err.Error(), "permission denied")
}

func (s *ScraperTestSuite) TestProgressReporting() {
	s.source.listings[models.CategoryLikes] = [][]models.Post{{
		photoPost("1", "alice", urlA),
		videoPost("2", "bob", urlB),
	}}

	s.run(models.CategoryLikes)

	s.Require().Len(s.progress.updates, 2)
	s.Equal(1, s.progress.updates[0].Downloaded)
	s.Equal(2, s.progress.updates[1].Downloaded)
	s.Require().Len(s.progress.finished, 1)
	s.NotEmpty(s.progress.finished[0].LedgerPath)
}

func TestStage(t *testing.T) {
	suite.Run(t, new(stageSuite))
}

type stageSuite struct{ suite.Suite }

func (s *stageSuite) TestClassification() {
	downloadErr := &errs.DownloadError{URL: urlA, Type: errs.ErrorTypeNetwork, Err: io.ErrUnexpectedEOF}

	s.Equal("done", stage(nil))
	s.Equal("download", stage(downloadErr))
	s.Equal("download", stage(&errs.WriteError{Path: "/tmp/x", Err: downloadErr}))
	s.Equal("write", stage(&errs.WriteError{Path: "/tmp/x", Err: os.ErrPermission}))
	s.Equal("unknown", stage(errors.New("boom")))
}
