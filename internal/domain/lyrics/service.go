// Package lyrics resolves song lyrics from embedded file tags first, then
// from web APIs (lrclib.net, falling back to lyrics.ovh).
package lyrics

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/rs/zerolog/log"
)

// NotFoundText is returned when every source comes up empty. The UI shows
// it verbatim.
const NotFoundText = "No lyrics found"

// WebSource is a lyrics web API.
type WebSource interface {
	Get(ctx context.Context, artist, title string) (string, error)
}

// Service looks up lyrics for tracks under the music directory.
type Service struct {
	musicDir string
	sources  []WebSource
}

// NewService creates a lyrics service. Web sources are tried in order
// after embedded tags; pass them highest-priority first.
func NewService(musicDir string, sources ...WebSource) *Service {
	return &Service{
		musicDir: filepath.Clean(musicDir),
		sources:  sources,
	}
}

// Lookup returns lyrics for a track. filePath is the MPD-relative (or
// absolute) path of the file; artist and title drive the web fallback and
// may be empty. Lookup never fails: when every source misses it returns
// NotFoundText.
func (s *Service) Lookup(ctx context.Context, filePath, artist, title string) string {
	if filePath != "" {
		if text := s.readEmbedded(filePath); text != "" {
			return text
		}
	}

	if artist != "" && title != "" {
		for _, src := range s.sources {
			text, err := src.Get(ctx, artist, title)
			if err != nil {
				log.Debug().Err(err).Str("artist", artist).Str("title", title).Msg("Lyrics source miss")
				continue
			}
			if text != "" {
				return text
			}
		}
	}

	return NotFoundText
}

// readEmbedded extracts lyrics from the file's tags. Any failure (path
// escape, unreadable file, unsupported format, no lyrics frame) yields "".
func (s *Service) readEmbedded(filePath string) string {
	full, ok := s.resolve(filePath)
	if !ok {
		log.Warn().Str("path", filePath).Msg("Lyrics path escapes music directory")
		return ""
	}

	f, err := os.Open(full)
	if err != nil {
		log.Debug().Err(err).Str("path", full).Msg("Could not open track for embedded lyrics")
		return ""
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		log.Debug().Err(err).Str("path", full).Msg("Could not read tags")
		return ""
	}

	return strings.TrimSpace(meta.Lyrics())
}

// resolve maps a request path onto the music directory and enforces
// ancestor containment. Prefix string comparison is not enough: it would
// accept a sibling directory like "Music-evil" next to "Music".
func (s *Service) resolve(filePath string) (string, bool) {
	var full string
	if filepath.IsAbs(filePath) {
		full = filepath.Clean(filePath)
	} else {
		full = filepath.Join(s.musicDir, filePath)
	}

	rel, err := filepath.Rel(s.musicDir, full)
	if err != nil {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}

	return full, true
}
