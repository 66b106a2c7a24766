// Package blacklist provides the persistent store of rejected image URLs.
package blacklist

import (
	"encoding/json"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// DefaultPath is the default blacklist file, kept beside the binary.
const DefaultPath = "image_blacklist.json"

// protectedHosts are placeholder-image providers that must never be
// blacklisted. Blocking one would blank out every artist that falls back
// to a generated avatar.
var protectedHosts = []string{"ui-avatars.com"}

// IsProtected reports whether a URL points at a protected placeholder source.
func IsProtected(url string) bool {
	for _, host := range protectedHosts {
		if strings.Contains(url, host) {
			return true
		}
	}
	return false
}

// Store is a persistent set of blacklisted image URLs.
//
// The on-disk format is a flat JSON array of strings. Persistence is
// best-effort: a missing or corrupt file behaves as an empty blacklist,
// and save failures are logged but never surfaced to callers.
type Store struct {
	mu   sync.RWMutex
	path string
	urls map[string]struct{}
}

// NewStore creates a store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{
		path: path,
		urls: make(map[string]struct{}),
	}
}

// Load reads the blacklist from disk, replacing the in-memory set.
// Any I/O or parse failure leaves the set empty.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.urls = make(map[string]struct{})

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Debug().Err(err).Str("path", s.path).Msg("Could not read blacklist file")
		}
		return
	}

	var urls []string
	if err := json.Unmarshal(data, &urls); err != nil {
		log.Debug().Err(err).Str("path", s.path).Msg("Could not parse blacklist file")
		return
	}

	for _, u := range urls {
		s.urls[u] = struct{}{}
	}

	log.Info().Int("count", len(s.urls)).Str("path", s.path).Msg("Loaded image blacklist")
}

// Add records a URL and persists the set. Protected placeholder URLs are
// refused; Add returns false and the set is unchanged.
func (s *Store) Add(url string) bool {
	if IsProtected(url) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.urls[url] = struct{}{}
	s.saveLocked()
	return true
}

// Contains reports whether a URL is blacklisted.
func (s *Store) Contains(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.urls[url]
	return ok
}

// Len returns the number of blacklisted URLs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.urls)
}

// saveLocked writes the set to disk (must hold lock). Best-effort.
func (s *Store) saveLocked() {
	urls := make([]string, 0, len(s.urls))
	for u := range s.urls {
		urls = append(urls, u)
	}

	data, err := json.Marshal(urls)
	if err != nil {
		log.Warn().Err(err).Msg("Could not encode blacklist")
		return
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("Could not save blacklist")
	}
}
