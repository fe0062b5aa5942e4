package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"twmediadl/pkg/config"
	errs "twmediadl/pkg/errors"
	"twmediadl/pkg/logger"
	"twmediadl/pkg/media"
	"twmediadl/pkg/models"
)

// AllDirName is the per-category folder holding every downloaded file
const AllDirName = "__all__"

// Writer stores media under {root}/{category}/{handle}/ and mirrors it into
// {root}/{category}/__all__/
type Writer struct {
	root     string
	linkMode string
	logger   logger.Logger
}

// NewWriter creates a writer rooted at root. linkMode is one of the
// config.LinkMode* values; an empty value means copy.
func NewWriter(root, linkMode string, log logger.Logger) (*Writer, error) {
	switch linkMode {
	case "":
		linkMode = config.LinkModeCopy
	case config.LinkModeCopy, config.LinkModeHardlink, config.LinkModeSymlink:
	default:
		return nil, fmt.Errorf("unsupported link mode %q", linkMode)
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Writer{
		root:     root,
		linkMode: linkMode,
		logger:   log.WithField("component", "storage"),
	}, nil
}

// Root returns the media root directory
func (w *Writer) Root() string {
	return w.root
}

// Paths returns the uploader path and the __all__ path for item
func (w *Writer) Paths(category models.Category, item models.MediaItem) (string, string) {
	name := media.Filename(item)
	base := filepath.Join(w.root, category.String())
	return filepath.Join(base, media.Handle(item.UploaderHandle), name),
		filepath.Join(base, AllDirName, name)
}

// Write streams r to both destinations of item and returns the written
// paths, uploader path first. On failure nothing is left at either
// destination and the error is a *errs.WriteError.
func (w *Writer) Write(category models.Category, item models.MediaItem, r io.Reader) ([]string, error) {
	uploaderPath, allPath := w.Paths(category, item)

	for _, dir := range []string{filepath.Dir(uploaderPath), filepath.Dir(allPath)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &errs.WriteError{Path: dir, Err: err}
		}
	}

	var err error
	switch w.linkMode {
	case config.LinkModeHardlink, config.LinkModeSymlink:
		err = w.writeLinked(r, uploaderPath, allPath)
	default:
		err = w.writeCopies(r, uploaderPath, allPath)
	}
	if err != nil {
		return nil, err
	}

	w.logger.DebugWithFields("Media written", map[string]interface{}{
		"category":  category.String(),
		"path":      uploaderPath,
		"all_path":  allPath,
		"link_mode": w.linkMode,
	})
	return []string{uploaderPath, allPath}, nil
}

// writeCopies tees r into two temp files and renames both into place
func (w *Writer) writeCopies(r io.Reader, uploaderPath, allPath string) error {
	first, err := createTemp(uploaderPath)
	if err != nil {
		return err
	}
	second, err := createTemp(allPath)
	if err != nil {
		discard(first)
		return err
	}

	_, copyErr := io.Copy(io.MultiWriter(first, second), r)
	closeFirst := first.Close()
	closeSecond := second.Close()

	cleanup := func() {
		os.Remove(first.Name())
		os.Remove(second.Name())
	}

	switch {
	case copyErr != nil:
		cleanup()
		return &errs.WriteError{Path: uploaderPath, Err: copyErr}
	case closeFirst != nil:
		cleanup()
		return &errs.WriteError{Path: uploaderPath, Err: closeFirst}
	case closeSecond != nil:
		cleanup()
		return &errs.WriteError{Path: allPath, Err: closeSecond}
	}

	if err := os.Rename(first.Name(), uploaderPath); err != nil {
		cleanup()
		return &errs.WriteError{Path: uploaderPath, Err: err}
	}
	if err := os.Rename(second.Name(), allPath); err != nil {
		os.Remove(second.Name())
		os.Remove(uploaderPath)
		return &errs.WriteError{Path: allPath, Err: err}
	}
	return nil
}

// writeLinked writes the __all__ copy once and links the uploader path to it
func (w *Writer) writeLinked(r io.Reader, uploaderPath, allPath string) error {
	file, err := createTemp(allPath)
	if err != nil {
		return err
	}

	_, copyErr := io.Copy(file, r)
	closeErr := file.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		os.Remove(file.Name())
		return &errs.WriteError{Path: allPath, Err: copyErr}
	}

	if err := os.Rename(file.Name(), allPath); err != nil {
		os.Remove(file.Name())
		return &errs.WriteError{Path: allPath, Err: err}
	}

	// a leftover from an earlier failed run would make the link call fail
	if err := os.Remove(uploaderPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		os.Remove(allPath)
		return &errs.WriteError{Path: uploaderPath, Err: err}
	}

	if w.linkMode == config.LinkModeHardlink {
		err = os.Link(allPath, uploaderPath)
	} else {
		var target string
		target, err = filepath.Rel(filepath.Dir(uploaderPath), allPath)
		if err == nil {
			err = os.Symlink(target, uploaderPath)
		}
	}
	if err != nil {
		os.Remove(allPath)
		return &errs.WriteError{Path: uploaderPath, Err: err}
	}
	return nil
}

func createTemp(dest string) (*os.File, error) {
	file, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+"-*.part")
	if err != nil {
		return nil, &errs.WriteError{Path: dest, Err: err}
	}
	if err := file.Chmod(0644); err != nil {
		discard(file)
		return nil, &errs.WriteError{Path: dest, Err: err}
	}
	return file, nil
}

func discard(file *os.File) {
	file.Close()
	os.Remove(file.Name())
}
