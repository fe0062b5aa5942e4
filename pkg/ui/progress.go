package ui

import (
	"fmt"
	"strings"
	"time"

	"twmediadl/pkg/scraper"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
	barWidth      = 20
)

// StatusTracker renders a single progress line per category. It implements
// scraper.Progress.
type StatusTracker struct {
	TotalDownloaded int
	StartTime       time.Time
	enabled         bool
	last            scraper.Stats
}

// NewStatusTracker creates a tracker. A disabled tracker still counts but
// prints nothing.
func NewStatusTracker(enabled bool) *StatusTracker {
	return &StatusTracker{
		StartTime: time.Now(),
		enabled:   enabled,
	}
}

// Update records stats for the running category and redraws the line
func (st *StatusTracker) Update(stats scraper.Stats) {
	st.TotalDownloaded += stats.Downloaded - st.last.Downloaded
	st.last = stats
	if st.enabled {
		printf("\r%s", st.Line(stats))
	}
}

// Finish closes the category's progress line
func (st *StatusTracker) Finish(stats scraper.Stats) {
	st.Update(stats)
	st.last = scraper.Stats{}
	if st.enabled {
		printf("\n")
	}
}

// Line formats the progress line for stats
func (st *StatusTracker) Line(stats scraper.Stats) string {
	line := fmt.Sprintf("%s %s %d posts • %d new • %d known • %.1f/min",
		Magenta(fmt.Sprintf("[%s]", strings.ToUpper(stats.Category.String()))),
		GetBatchProgress(stats),
		stats.Posts,
		stats.Downloaded,
		stats.Duplicates,
		st.GetDownloadRate(),
	)
	if stats.Failed > 0 {
		line += " • " + Red(fmt.Sprintf("%d failed", stats.Failed))
	}
	return line
}

// GetBatchProgress returns a bar showing the share of media items that were
// new downloads rather than already known
func GetBatchProgress(stats scraper.Stats) string {
	filled := 0
	if stats.Media > 0 {
		filled = stats.Downloaded * barWidth / stats.Media
	}
	return "[" + strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, barWidth-filled) + "]"
}

// GetElapsedTime returns the elapsed time since tracking started
func (st *StatusTracker) GetElapsedTime() time.Duration {
	return time.Since(st.StartTime)
}

// GetDownloadRate returns the average download rate (items per minute)
func (st *StatusTracker) GetDownloadRate() float64 {
	elapsed := st.GetElapsedTime().Minutes()
	if elapsed == 0 {
		return 0
	}
	return float64(st.TotalDownloaded) / elapsed
}
