package storage

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twmediadl/pkg/config"
	errs "twmediadl/pkg/errors"
	"twmediadl/pkg/logger"
	"twmediadl/pkg/models"
)

var testItem = models.MediaItem{
	Kind:           models.KindImage,
	URL:            "https://pbs.twimg.com/media/abc.jpg:orig",
	UploaderHandle: "alice",
	PostID:         "100",
	PostDate:       time.Date(2022, 4, 5, 6, 7, 8, 0, time.UTC),
}

const testFilename = "img2022-04-05-060708_alice_100.jpg"

type failingReader struct{ after int }

func (f *failingReader) Read(p []byte) (int, error) {
	if f.after <= 0 {
		return 0, errors.New("connection reset")
	}
	n := copy(p, strings.Repeat("x", f.after))
	f.after -= n
	return n, nil
}

func newWriter(t *testing.T, mode string) (*Writer, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "media")
	w, err := NewWriter(root, mode, logger.NewNopLogger())
	require.NoError(t, err)
	return w, root
}

// listFiles returns every regular file or symlink under root, relative to it
func listFiles(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, _ := filepath.Rel(root, path)
			out = append(out, rel)
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestNewWriter(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "media")
	w, err := NewWriter(root, "", nil)
	require.NoError(t, err)
	assert.DirExists(t, root)
	assert.Equal(t, root, w.Root())
	assert.Equal(t, config.LinkModeCopy, w.linkMode)

	_, err = NewWriter(root, "reflink", nil)
	assert.Error(t, err)
}

func TestPaths(t *testing.T) {
	w, root := newWriter(t, config.LinkModeCopy)

	uploader, all := w.Paths(models.CategoryLikes, testItem)
	assert.Equal(t, filepath.Join(root, "likes", "alice", testFilename), uploader)
	assert.Equal(t, filepath.Join(root, "likes", "__all__", testFilename), all)
}

func TestWriteCopyMode(t *testing.T) {
	w, root := newWriter(t, config.LinkModeCopy)
	data := []byte("jpeg bytes")

	paths, err := w.Write(models.CategoryLikes, testItem, bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, paths, 2)

	for _, p := range paths {
		info, err := os.Lstat(p)
		require.NoError(t, err)
		assert.True(t, info.Mode().IsRegular(), "expected a physical copy at %s", p)

		content, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, data, content)
	}

	// two physical files, not links
	a, _ := os.Stat(paths[0])
	b, _ := os.Stat(paths[1])
	assert.False(t, os.SameFile(a, b))

	assert.ElementsMatch(t, []string{
		filepath.Join("likes", "alice", testFilename),
		filepath.Join("likes", "__all__", testFilename),
	}, listFiles(t, root))
}

func TestWriteIsIdempotentOnDirectories(t *testing.T) {
	w, root := newWriter(t, config.LinkModeCopy)

	second := testItem
	second.PostID = "101"

	_, err := w.Write(models.CategoryTimeline, testItem, strings.NewReader("one"))
	require.NoError(t, err)
	_, err = w.Write(models.CategoryTimeline, second, strings.NewReader("two"))
	require.NoError(t, err)

	assert.Len(t, listFiles(t, filepath.Join(root, "timeline", "__all__")), 2)
	assert.Len(t, listFiles(t, filepath.Join(root, "timeline", "alice")), 2)
}

func TestWriteHardlinkMode(t *testing.T) {
	w, _ := newWriter(t, config.LinkModeHardlink)

	paths, err := w.Write(models.CategoryLikes, testItem, strings.NewReader("data"))
	require.NoError(t, err)

	a, err := os.Stat(paths[0])
	require.NoError(t, err)
	b, err := os.Stat(paths[1])
	require.NoError(t, err)
	assert.True(t, os.SameFile(a, b))
}

func TestWriteSymlinkMode(t *testing.T) {
	w, _ := newWriter(t, config.LinkModeSymlink)

	paths, err := w.Write(models.CategoryLikes, testItem, strings.NewReader("data"))
	require.NoError(t, err)

	target, err := os.Readlink(paths[0])
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("..", "__all__", testFilename), target)

	content, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "data", string(content))

	// rewriting over an existing link works
	_, err = w.Write(models.CategoryLikes, testItem, strings.NewReader("again"))
	require.NoError(t, err)
	content, err = os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "again", string(content))
}

func TestWriteFailureLeavesNothingBehind(t *testing.T) {
	for _, mode := range []string{config.LinkModeCopy, config.LinkModeHardlink, config.LinkModeSymlink} {
		t.Run(mode, func(t *testing.T) {
			w, root := newWriter(t, mode)

			_, err := w.Write(models.CategoryLikes, testItem, &failingReader{after: 10})
			require.Error(t, err)

			var writeErr *errs.WriteError
			require.True(t, errors.As(err, &writeErr))
			assert.Contains(t, writeErr.Error(), "connection reset")

			assert.Empty(t, listFiles(t, root))
		})
	}
}

func TestWriteUnwritableDirectory(t *testing.T) {
	w, root := newWriter(t, config.LinkModeCopy)

	// a file where the category directory should be
	require.NoError(t, os.WriteFile(filepath.Join(root, "likes"), nil, 0644))

	_, err := w.Write(models.CategoryLikes, testItem, io.LimitReader(strings.NewReader("data"), 4))
	var writeErr *errs.WriteError
	require.True(t, errors.As(err, &writeErr))
}
