package logger

import (
	"twmediadl/pkg/models"
)

// LogDownload logs the outcome of a single media download
func LogDownload(l Logger, category models.Category, item models.MediaItem, paths []string, err error) {
	fields := map[string]interface{}{
		"category": category.String(),
		"kind":     string(item.Kind),
		"uploader": item.UploaderHandle,
		"post_id":  item.PostID,
		"url":      item.URL,
	}

	if err != nil {
		l.WithError(err).WarnWithFields("Download failed", fields)
		return
	}
	fields["paths"] = paths
	l.DebugWithFields("Download completed", fields)
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return nopLogger{}
}

// nopLogger is a logger that does nothing
type nopLogger struct{}

func (n nopLogger) Debug(msg string)                                          {}
func (n nopLogger) Info(msg string)                                           {}
func (n nopLogger) Warn(msg string)                                           {}
func (n nopLogger) Error(msg string)                                          {}
func (n nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n nopLogger) WithError(err error) Logger                                { return n }
func (n nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
