package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	errs "twmediadl/pkg/errors"
	"twmediadl/pkg/logger"
)

const userAgent = "twmediadl/1.0"

// Fetcher downloads raw media bytes over HTTP, one request at a time
type Fetcher struct {
	httpClient *http.Client
	logger     logger.Logger
}

// NewFetcher creates a fetcher. A nil client gets a default one with a
// ten minute timeout covering the whole transfer.
func NewFetcher(httpClient *http.Client, log logger.Logger) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Minute}
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Fetcher{
		httpClient: httpClient,
		logger:     log.WithField("component", "downloader"),
	}
}

// Fetch requests url and returns the response body for streaming. Failures,
// including ones that happen while the body is read, are *errs.DownloadError.
// The caller must close the returned reader.
func (f *Fetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &errs.DownloadError{URL: url, Type: errs.ErrorTypeUnknown, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		f.logger.WarnWithFields("Media request failed", map[string]interface{}{
			"url":   url,
			"error": err.Error(),
		})
		return nil, &errs.DownloadError{URL: url, Type: errs.ErrorTypeNetwork, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		f.logger.WarnWithFields("Unexpected media response", map[string]interface{}{
			"url":    url,
			"status": resp.StatusCode,
		})
		return nil, &errs.DownloadError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Type:       errs.TypeForStatus(resp.StatusCode),
		}
	}

	f.logger.DebugWithFields("Media response received", map[string]interface{}{
		"url":            url,
		"status":         resp.StatusCode,
		"content_length": resp.ContentLength,
		"latency":        time.Since(start),
	})

	return &body{ReadCloser: resp.Body, url: url}, nil
}

// body tags read errors with the URL they came from
type body struct {
	io.ReadCloser
	url string
}

func (b *body) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		err = &errs.DownloadError{
			URL:  b.url,
			Type: errs.ErrorTypeNetwork,
			Err:  fmt.Errorf("reading body: %w", err),
		}
	}
	return n, err
}
