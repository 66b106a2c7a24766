package artwork

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/spiffyhq/mpd-spiffy-server/internal/infra/artsource"
)

// maxArtistSearchTerms caps the artist-image search variants tried per run.
const maxArtistSearchTerms = 2

// Service is the image rotation cache. It owns all per-key state: the
// fetched image sets, the rotation cursors, and the last-served URLs that
// blacklisting operates on.
//
// Entries live until process exit or until blacklisting empties a set;
// there is no TTL or size-based eviction. Acceptable for a single-user
// local tool.
type Service struct {
	steps     []providerStep
	fetcher   Fetcher
	blacklist Blacklist

	mu         sync.Mutex
	sets       map[string][]artsource.Image
	cursors    map[string]int
	lastServed map[string]string
	inflight   map[string]chan struct{}
}

// NewService builds the cache service with the explicit, ordered provider
// table. Order is priority: album-art sources first, then artist images,
// then the track-search fallback, then the TheAudioDB artist sweep.
func NewService(deezer DeezerSource, audiodb AudioDBSource, fetcher Fetcher, bl Blacklist) *Service {
	s := &Service{
		fetcher:    fetcher,
		blacklist:  bl,
		sets:       make(map[string][]artsource.Image),
		cursors:    make(map[string]int),
		lastServed: make(map[string]string),
		inflight:   make(map[string]chan struct{}),
	}

	albumSearch := func(q query, _ []string) bool {
		return q.album != "" && !q.hint
	}

	s.steps = []providerStep{
		{
			name:    "deezer-album-cover",
			enabled: albumSearch,
			run: func(ctx context.Context, q query) ([]string, error) {
				u, err := deezer.SearchAlbumCoverURL(ctx, q.artist, q.album)
				if err != nil {
					return nil, err
				}
				return []string{u}, nil
			},
		},
		{
			name:    "audiodb-album-art",
			enabled: albumSearch,
			run: func(ctx context.Context, q query) ([]string, error) {
				return audiodb.SearchAlbumImageURLs(ctx, q.artist, q.album)
			},
		},
		{
			name:    "deezer-artist-image",
			enabled: func(query, []string) bool { return true },
			run: func(ctx context.Context, q query) ([]string, error) {
				var urls []string
				for _, term := range artistSearchTerms(q) {
					u, err := deezer.SearchArtistImageURL(ctx, term)
					if err != nil {
						log.Debug().Err(err).Str("term", term).Msg("Deezer artist search miss")
						continue
					}
					urls = append(urls, u)
				}
				if len(urls) == 0 {
					return nil, artsource.ErrNotFound
				}
				return urls, nil
			},
		},
		{
			name: "deezer-track-covers",
			enabled: func(q query, collected []string) bool {
				return q.hint || len(collected) == 0
			},
			run: func(ctx context.Context, q query) ([]string, error) {
				return deezer.SearchTrackCoverURLs(ctx, q.artist)
			},
		},
		{
			name:    "audiodb-artist-images",
			enabled: func(query, []string) bool { return true },
			run: func(ctx context.Context, q query) ([]string, error) {
				return audiodb.SearchArtistImageURLs(ctx, q.artist)
			},
		},
	}

	return s
}

// artistSearchTerms returns the artist-image search variants for a query:
// the bare artist name, plus decorated variants when the album is a
// soundtrack hint, capped at maxArtistSearchTerms.
func artistSearchTerms(q query) []string {
	terms := []string{q.artist}
	if q.hint {
		for _, suffix := range []string{"soundtrack", "ost", "game", "movie"} {
			terms = append(terms, q.artist+" "+suffix)
		}
	}
	if len(terms) > maxArtistSearchTerms {
		terms = terms[:maxArtistSearchTerms]
	}
	return terms
}

// NextImage returns the next image in the rotation for (artist, album),
// running the provider pipeline on first access for the key. It returns
// the image, its 1-based position in the set, and the set size.
//
// ErrNoCandidates means no non-blacklisted URL was found; ErrNoCandidates
// results are never cached, so a later call retries the pipeline.
// ErrFetchFailed means candidates existed but none downloaded.
func (s *Service) NextImage(ctx context.Context, artist, album string) (*artsource.Image, int, int, error) {
	key := CacheKey(artist, album)

	for {
		s.mu.Lock()
		if _, ok := s.sets[key]; ok {
			img, pos, total := s.serveLocked(key)
			s.mu.Unlock()
			return img, pos, total, nil
		}

		wait, ok := s.inflight[key]
		if !ok {
			// This request owns the fetch for the key.
			done := make(chan struct{})
			s.inflight[key] = done
			s.mu.Unlock()

			err := s.populate(ctx, key, artist, album)

			s.mu.Lock()
			delete(s.inflight, key)
			close(done)
			if err != nil {
				s.mu.Unlock()
				return nil, 0, 0, err
			}
			img, pos, total := s.serveLocked(key)
			s.mu.Unlock()
			return img, pos, total, nil
		}
		s.mu.Unlock()

		// Another request is fetching this key; wait and re-check.
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, 0, 0, ctx.Err()
		}
	}
}

// serveLocked picks the record at the cursor, records it as last served,
// and advances the cursor modulo the set size. Must hold s.mu, and the
// set for key must exist and be non-empty.
func (s *Service) serveLocked(key string) (*artsource.Image, int, int) {
	set := s.sets[key]
	idx := s.cursors[key]
	img := set[idx]

	s.lastServed[key] = img.SourceURL
	s.cursors[key] = (idx + 1) % len(set)

	return &img, idx + 1, len(set)
}

// populate runs the provider pipeline and fetch batch for a key and stores
// the resulting image set. Called without holding s.mu.
func (s *Service) populate(ctx context.Context, key, artist, album string) error {
	candidates := s.collectCandidates(ctx, artist, album)
	if len(candidates) == 0 {
		log.Debug().Str("key", key).Msg("No image candidates after blacklist filter")
		return ErrNoCandidates
	}

	var images []artsource.Image
	for _, u := range candidates {
		img, err := s.fetcher.Fetch(ctx, u)
		if err != nil {
			log.Debug().Err(err).Str("url", u).Msg("Image fetch skipped")
			continue
		}
		images = append(images, *img)
	}

	if len(images) == 0 {
		log.Warn().Str("key", key).Int("candidates", len(candidates)).Msg("All image fetches failed")
		return ErrFetchFailed
	}

	s.mu.Lock()
	s.sets[key] = images
	s.cursors[key] = 0
	s.mu.Unlock()

	log.Info().Str("key", key).Int("images", len(images)).Msg("Cached image set")
	return nil
}

// collectCandidates runs the ordered provider table, de-duplicates across
// the whole run, and drops blacklisted URLs. A failing provider degrades
// the list but never blocks the others.
func (s *Service) collectCandidates(ctx context.Context, artist, album string) []string {
	q := query{artist: artist, album: album, hint: IsSoundtrackHint(album)}

	var collected []string
	seen := make(map[string]bool)

	for _, step := range s.steps {
		if !step.enabled(q, collected) {
			continue
		}

		urls, err := step.run(ctx, q)
		if err != nil {
			log.Debug().Err(err).Str("provider", step.name).Str("artist", artist).Msg("Provider query failed")
			continue
		}

		for _, u := range urls {
			if u == "" || seen[u] {
				continue
			}
			seen[u] = true
			collected = append(collected, u)
		}
	}

	filtered := collected[:0]
	for _, u := range collected {
		if !s.blacklist.Contains(u) {
			filtered = append(filtered, u)
		}
	}

	return filtered
}

// BlacklistCurrent blacklists the most recently served URL for a cache key
// and evicts it from the key's image set. When the set empties, the key is
// removed entirely so the next access re-runs the full pipeline.
func (s *Service) BlacklistCurrent(key string) (BlacklistResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	url, ok := s.lastServed[key]
	if !ok {
		return BlacklistResult{}, ErrNoCurrentImage
	}

	if !s.blacklist.Add(url) {
		// Protected placeholder: report the unchanged count.
		return BlacklistResult{Remaining: len(s.sets[key])}, ErrProtectedURL
	}

	set := s.sets[key]
	kept := set[:0]
	for _, img := range set {
		if img.SourceURL != url {
			kept = append(kept, img)
		}
	}

	if len(kept) == 0 {
		delete(s.sets, key)
		delete(s.cursors, key)
	} else {
		s.sets[key] = kept
		s.cursors[key] = s.cursors[key] % len(kept)
	}

	remaining := len(kept)
	log.Info().Str("key", key).Str("url", url).Int("remaining", remaining).Msg("Blacklisted image")

	return BlacklistResult{BlacklistedURL: url, Remaining: remaining}, nil
}

// Stats returns the number of cached keys and total cached images, for the
// health endpoint.
func (s *Service) Stats() (keys, images int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, set := range s.sets {
		images += len(set)
	}
	return len(s.sets), images
}

// String implements fmt.Stringer for debug logging.
func (s *Service) String() string {
	keys, images := s.Stats()
	return fmt.Sprintf("artwork cache: %d keys, %d images", keys, images)
}
