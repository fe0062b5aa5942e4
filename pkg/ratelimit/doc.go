// Package ratelimit paces listing requests against the API's per-window quota.
//
// The favorites and user timeline endpoints count requests in fixed 15 minute
// windows. SlidingWindow keeps the downloader under that quota by blocking in
// Wait until the oldest recorded request falls out of the window. Wait honors
// context cancellation so an interrupted run stops promptly.
//
// Usage:
//
//	limiter := ratelimit.New(75, 15*time.Minute)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
