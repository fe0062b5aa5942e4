package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"twmediadl/pkg/logger"
	"twmediadl/pkg/models"
)

const (
	// TimestampFormat sorts lexicographically in chronological order
	TimestampFormat = "2006-01-02-150405"

	backupDirName = "backup"
)

// Set is an insertion-ordered set of media URLs
type Set struct {
	urls  []string
	index map[string]struct{}
}

// NewSet creates a set holding urls in order, skipping repeats
func NewSet(urls ...string) *Set {
	s := &Set{index: make(map[string]struct{}, len(urls))}
	for _, u := range urls {
		s.Add(u)
	}
	return s
}

// Has reports whether url is in the set
func (s *Set) Has(url string) bool {
	_, ok := s.index[url]
	return ok
}

// Add inserts url and reports whether it was new
func (s *Set) Add(url string) bool {
	if s.Has(url) {
		return false
	}
	s.index[url] = struct{}{}
	s.urls = append(s.urls, url)
	return true
}

// Len returns the number of URLs in the set
func (s *Set) Len() int {
	return len(s.urls)
}

// URLs returns the URLs in insertion order
func (s *Set) URLs() []string {
	out := make([]string, len(s.urls))
	copy(out, s.urls)
	return out
}

// Store loads and persists per-category ledger files under a media root.
// Each category keeps its ledgers in {root}/{category}/ and rotated files in
// {root}/{category}/backup/.
type Store struct {
	root   string
	now    func() time.Time
	logger logger.Logger
}

// NewStore creates a ledger store rooted at root
func NewStore(root string, log logger.Logger) *Store {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Store{
		root:   root,
		now:    time.Now,
		logger: log.WithField("component", "ledger"),
	}
}

func (s *Store) dir(category models.Category) string {
	return filepath.Join(s.root, category.String())
}

// FileName returns the ledger file name for category stamped with t in UTC,
// so that name order follows time order across zone and DST changes
func FileName(category models.Category, t time.Time) string {
	return fmt.Sprintf("%s_urls-%s.txt", category, t.UTC().Format(TimestampFormat))
}

// files lists existing ledger files for category, oldest first
func (s *Store) files(category models.Category) ([]string, error) {
	pattern := filepath.Join(s.dir(category), category.String()+"_urls-*.txt")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger files: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}

// Latest returns the path of the most recent ledger file, or "" if none exists
func (s *Store) Latest(category models.Category) (string, error) {
	files, err := s.files(category)
	if err != nil || len(files) == 0 {
		return "", err
	}
	return files[len(files)-1], nil
}

// Load reads the most recent ledger for category. A category without a
// ledger file yields an empty set.
func (s *Store) Load(category models.Category) (*Set, error) {
	path, err := s.Latest(category)
	if err != nil {
		return nil, err
	}

	set := NewSet()
	if path == "" {
		s.logger.WithField("category", category).Debug("No ledger found, starting empty")
		return set, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			set.Add(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger %s: %w", path, err)
	}

	s.logger.InfoWithFields("Ledger loaded", map[string]interface{}{
		"category": category.String(),
		"path":     path,
		"urls":     set.Len(),
	})
	return set, nil
}

// Persist writes set to a new timestamped ledger file and moves every older
// ledger file into the backup directory. The new file is fully written and
// in place before any old file is moved, so an interrupted persist never
// leaves the category without a readable ledger.
func (s *Store) Persist(category models.Category, set *Set) (string, error) {
	dir := s.dir(category)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create ledger directory: %w", err)
	}

	previous, err := s.files(category)
	if err != nil {
		return "", err
	}

	tempPath, err := writeTemp(dir, category, set)
	if err != nil {
		return "", err
	}

	finalPath := filepath.Join(dir, FileName(category, s.now()))

	// a ledger written earlier in the same second must not be overwritten
	for i, old := range previous {
		if old == finalPath {
			if _, err := s.backup(category, old); err != nil {
				os.Remove(tempPath)
				return "", err
			}
			previous = append(previous[:i], previous[i+1:]...)
			break
		}
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to move ledger into place: %w", err)
	}

	for _, old := range previous {
		if _, err := s.backup(category, old); err != nil {
			return finalPath, err
		}
	}

	s.logger.InfoWithFields("Ledger persisted", map[string]interface{}{
		"category": category.String(),
		"path":     finalPath,
		"urls":     set.Len(),
		"rotated":  len(previous),
	})
	return finalPath, nil
}

// writeTemp writes one URL per line to a temp file in dir and syncs it
func writeTemp(dir string, category models.Category, set *Set) (string, error) {
	file, err := os.CreateTemp(dir, "."+category.String()+"_urls-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary ledger file: %w", err)
	}
	tempPath := file.Name()

	w := bufio.NewWriter(file)
	for _, u := range set.URLs() {
		if _, err := w.WriteString(u + "\n"); err != nil {
			file.Close()
			os.Remove(tempPath)
			return "", fmt.Errorf("failed to write ledger: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to write ledger: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to sync ledger file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to close ledger file: %w", err)
	}

	if err := os.Chmod(tempPath, 0644); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to set ledger permissions: %w", err)
	}
	return tempPath, nil
}

// backup moves path into the category's backup directory without
// overwriting an existing backup of the same name
func (s *Store) backup(category models.Category, path string) (string, error) {
	backupDir := filepath.Join(s.dir(category), backupDirName)
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := filepath.Base(path)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	dest := filepath.Join(backupDir, name)
	for n := 1; ; n++ {
		_, err := os.Lstat(dest)
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to check backup path: %w", err)
		}
		dest = filepath.Join(backupDir, fmt.Sprintf("%s.%d%s", stem, n, ext))
	}

	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("failed to rotate ledger %s: %w", name, err)
	}

	s.logger.DebugWithFields("Ledger rotated", map[string]interface{}{
		"category": category.String(),
		"from":     path,
		"to":       dest,
	})
	return dest, nil
}
