package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorType classifies network-facing failures
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// TypeForStatus maps an HTTP status code to an ErrorType. Zero means no response was received.
func TypeForStatus(statusCode int) ErrorType {
	switch {
	case statusCode == 0:
		return ErrorTypeNetwork
	case statusCode == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return ErrorTypeAuth
	case statusCode == http.StatusNotFound || statusCode == http.StatusGone:
		return ErrorTypeNotFound
	case statusCode >= 500:
		return ErrorTypeServerError
	default:
		return ErrorTypeUnknown
	}
}

// MissingCredentialError is returned when required API credentials are absent or empty
type MissingCredentialError struct {
	Keys []string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("missing required credentials: %s", strings.Join(e.Keys, ", "))
}

// NoTargetUserError is returned when neither --user nor TWITTER_ID names a target
type NoTargetUserError struct{}

func (e *NoTargetUserError) Error() string {
	return "no target user: pass --user or set TWITTER_ID"
}

// SourceFetchError is returned when a page request fails. Cursor is the max_id
// the failed request was made with ("" for the first page).
type SourceFetchError struct {
	Category string
	Cursor   string
	Err      error
}

func (e *SourceFetchError) Error() string {
	cursor := e.Cursor
	if cursor == "" {
		cursor = "start"
	}
	return fmt.Sprintf("fetch %s page at cursor %s: %v", e.Category, cursor, e.Err)
}

func (e *SourceFetchError) Unwrap() error {
	return e.Err
}

// DownloadError is returned when a media URL cannot be fetched
type DownloadError struct {
	URL        string
	StatusCode int
	Type       ErrorType
	Err        error
}

func (e *DownloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("download %s: %s error: %v", e.URL, e.Type, e.Err)
	}
	return fmt.Sprintf("download %s: %s error (status %d)", e.URL, e.Type, e.StatusCode)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// WriteError is returned when a media file cannot be written
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
