// Package store persists favorite log groups and recent filter patterns in a
// small TOML document under the user's config directory.
//
// Every call reads the whole document; mutations take an exclusive file
// lock, reload, apply the change and atomically replace the file.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gofrs/flock"
	"github.com/pelletier/go-toml/v2"
)

// MaxRecentSearches caps the recent search history.
const MaxRecentSearches = 10

// ErrInvalidKeyword is returned for an empty favorite keyword.
var ErrInvalidKeyword = errors.New("favorite keyword must not be empty")

// NotFoundError reports a favorite keyword that does not exist.
type NotFoundError struct {
	Keyword string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("favorite %q not found", e.Keyword)
}

// Document is the on-disk schema.
type Document struct {
	Favorites      map[string]string `toml:"favorites"`
	RecentSearches []string          `toml:"recent_searches"`
}

func defaultDocument() Document {
	return Document{Favorites: map[string]string{}, RecentSearches: []string{}}
}

// Validate checks the document against the schema constraints.
func (d Document) Validate() error {
	for k, v := range d.Favorites {
		if k == "" {
			return ErrInvalidKeyword
		}
		if v == "" {
			return fmt.Errorf("favorite %q has an empty log group", k)
		}
	}
	if len(d.RecentSearches) > MaxRecentSearches {
		return fmt.Errorf("recent_searches holds %d entries, max %d", len(d.RecentSearches), MaxRecentSearches)
	}
	seen := make(map[string]struct{}, len(d.RecentSearches))
	for _, p := range d.RecentSearches {
		if p == "" {
			return errors.New("recent_searches contains an empty pattern")
		}
		if _, ok := seen[p]; ok {
			return fmt.Errorf("recent_searches contains %q twice", p)
		}
		seen[p] = struct{}{}
	}
	return nil
}

// Store is the local favorites and recent-search store.
type Store struct {
	path string
	lock *flock.Flock
}

// DefaultPath returns <UserConfigDir>/cwtail/store.toml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "cwtail", "store.toml"), nil
}

// Open prepares the store at path and validates any existing document.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	s := &Store{path: path, lock: flock.New(path + ".lock")}
	if _, err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the document location.
func (s *Store) Path() string { return s.path }

// Load reads the document, returning defaults when the file is missing.
func (s *Store) Load() (Document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultDocument(), nil
	}
	if err != nil {
		return Document{}, fmt.Errorf("read store %s: %w", s.path, err)
	}
	doc := defaultDocument()
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode store %s: %w", s.path, err)
	}
	if doc.Favorites == nil {
		doc.Favorites = map[string]string{}
	}
	if doc.RecentSearches == nil {
		doc.RecentSearches = []string{}
	}
	if err := doc.Validate(); err != nil {
		return Document{}, fmt.Errorf("invalid store %s: %w", s.path, err)
	}
	return doc, nil
}

func (s *Store) update(fn func(*Document) error) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock store: %w", err)
	}
	defer s.lock.Unlock()

	doc, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(&doc); err != nil {
		return err
	}
	if err := doc.Validate(); err != nil {
		return err
	}
	return s.write(doc)
}

func (s *Store) write(doc Document) error {
	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".store-*.toml")
	if err != nil {
		return fmt.Errorf("create temp store: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp store: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}

// AddFavorite maps keyword to logGroup, replacing any previous value.
func (s *Store) AddFavorite(keyword, logGroup string) error {
	if keyword == "" {
		return ErrInvalidKeyword
	}
	if logGroup == "" {
		return errors.New("log group name must not be empty")
	}
	return s.update(func(d *Document) error {
		d.Favorites[keyword] = logGroup
		return nil
	})
}

// RemoveFavorite deletes keyword or returns *NotFoundError.
func (s *Store) RemoveFavorite(keyword string) error {
	return s.update(func(d *Document) error {
		if _, ok := d.Favorites[keyword]; !ok {
			return &NotFoundError{Keyword: keyword}
		}
		delete(d.Favorites, keyword)
		return nil
	})
}

// Favorite returns the log group for keyword or *NotFoundError.
func (s *Store) Favorite(keyword string) (string, error) {
	doc, err := s.Load()
	if err != nil {
		return "", err
	}
	group, ok := doc.Favorites[keyword]
	if !ok {
		return "", &NotFoundError{Keyword: keyword}
	}
	return group, nil
}

// Favorite is one keyword/log group pair.
type Favorite struct {
	Keyword  string
	LogGroup string
}

// Favorites returns all favorites sorted by keyword.
func (s *Store) Favorites() ([]Favorite, error) {
	doc, err := s.Load()
	if err != nil {
		return nil, err
	}
	favs := make([]Favorite, 0, len(doc.Favorites))
	for k, v := range doc.Favorites {
		favs = append(favs, Favorite{Keyword: k, LogGroup: v})
	}
	sort.Slice(favs, func(i, j int) bool { return favs[i].Keyword < favs[j].Keyword })
	return favs, nil
}

// SaveRecentSearch records pattern as the most recent search.
func (s *Store) SaveRecentSearch(pattern string) error {
	if pattern == "" {
		return nil
	}
	return s.update(func(d *Document) error {
		d.RecentSearches = PushRecent(d.RecentSearches, pattern)
		return nil
	})
}

// RecentSearches returns patterns most-recent-first.
func (s *Store) RecentSearches() ([]string, error) {
	doc, err := s.Load()
	if err != nil {
		return nil, err
	}
	return doc.RecentSearches, nil
}

// PushRecent moves or inserts pattern at the front of list, drops any
// duplicate and truncates to MaxRecentSearches. list is not modified.
func PushRecent(list []string, pattern string) []string {
	out := make([]string, 0, MaxRecentSearches)
	out = append(out, pattern)
	for _, p := range list {
		if len(out) == MaxRecentSearches {
			break
		}
		if p != pattern {
			out = append(out, p)
		}
	}
	return out
}
