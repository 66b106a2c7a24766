// Package artwork implements the artist/album image rotation cache: a lazy,
// per-key memoized fetch pipeline with round-robin delivery and a persistent
// blacklist for unwanted results.
package artwork

import (
	"context"
	"errors"
	"strings"

	"github.com/spiffyhq/mpd-spiffy-server/internal/infra/artsource"
)

// Result errors. These are outcomes, not faults: the router maps them to
// specific HTTP responses.
var (
	// ErrNoCandidates means no non-blacklisted image URL was found for the
	// key. The UI renders a neutral placeholder, not an error state.
	ErrNoCandidates = errors.New("no image candidates found")

	// ErrFetchFailed means candidates existed but none could be downloaded.
	ErrFetchFailed = errors.New("could not fetch any image")

	// ErrNoCurrentImage means a blacklist was requested for a key that has
	// not served an image during this process.
	ErrNoCurrentImage = errors.New("no current image for key")

	// ErrProtectedURL means the current image is a protected placeholder
	// and cannot be blacklisted.
	ErrProtectedURL = errors.New("cannot blacklist placeholder")
)

// soundtrackHints are album values that signal non-album artwork search
// strategy: the "album" field carries a game/movie/soundtrack context
// instead of a real release title.
var soundtrackHints = map[string]bool{
	"soundtrack": true,
	"ost":        true,
	"game":       true,
	"movie":      true,
}

// IsSoundtrackHint reports whether the album value is a soundtrack-hint token.
func IsSoundtrackHint(album string) bool {
	return soundtrackHints[strings.ToLower(album)]
}

// CacheKey derives the cache identity for an (artist, album) pair:
// case-folded and pipe-joined. Album may be empty.
func CacheKey(artist, album string) string {
	return strings.ToLower(artist) + "|" + strings.ToLower(album)
}

// DeezerSource is the slice of the Deezer client the pipeline uses.
type DeezerSource interface {
	SearchAlbumCoverURL(ctx context.Context, artist, album string) (string, error)
	SearchArtistImageURL(ctx context.Context, term string) (string, error)
	SearchTrackCoverURLs(ctx context.Context, artist string) ([]string, error)
}

// AudioDBSource is the slice of the TheAudioDB client the pipeline uses.
type AudioDBSource interface {
	SearchAlbumImageURLs(ctx context.Context, artist, album string) ([]string, error)
	SearchArtistImageURLs(ctx context.Context, artist string) ([]string, error)
}

// Fetcher downloads one candidate URL into an image payload.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*artsource.Image, error)
}

// Blacklist is the slice of the blacklist store the cache needs. Add
// returns false when the URL is a protected placeholder and was refused.
type Blacklist interface {
	Contains(url string) bool
	Add(url string) bool
}

// BlacklistResult reports the outcome of blacklisting the current image.
type BlacklistResult struct {
	BlacklistedURL string `json:"blacklisted,omitempty"`
	Remaining      int    `json:"remaining"`
}

// query carries one pipeline run's inputs.
type query struct {
	artist string
	album  string
	hint   bool
}

// providerStep is one row of the ordered provider table. Run order is
// priority: earlier steps' URLs are served first.
type providerStep struct {
	name string
	// enabled gates the step on the query and on what earlier steps
	// already collected.
	enabled func(q query, collected []string) bool
	// run returns candidate URLs in source preference order. Errors are
	// logged and degrade the candidate list; they never fail the pipeline.
	run func(ctx context.Context, q query) ([]string, error)
}
