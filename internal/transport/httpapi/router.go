// Package httpapi is the browser-facing HTTP surface. Everything is a GET
// with a cmd query parameter, dispatched to the player, lyrics, and artwork
// services; the bare root path serves the single-page UI.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/spiffyhq/mpd-spiffy-server/internal/domain/artwork"
	"github.com/spiffyhq/mpd-spiffy-server/internal/domain/player"
	"github.com/spiffyhq/mpd-spiffy-server/internal/infra/artsource"
)

// ArtworkService is the rotating artist-image cache.
type ArtworkService interface {
	NextImage(ctx context.Context, artist, album string) (*artsource.Image, int, int, error)
	BlacklistCurrent(key string) (artwork.BlacklistResult, error)
}

// PlayerService executes whitelisted MPD commands.
type PlayerService interface {
	Execute(cmd, format string, args []string) (string, error)
	Artwork(cmd, uri string) ([]byte, error)
	List(what string, rest ...string) (string, error)
}

// LyricsService resolves lyrics for a track. It never fails; misses come
// back as placeholder text.
type LyricsService interface {
	Lookup(ctx context.Context, filePath, artist, title string) string
}

// Handler serves the command API and the static UI page.
type Handler struct {
	player  PlayerService
	artwork ArtworkService
	lyrics  LyricsService
	uiFile  string
}

// Option is a functional option for configuring the handler.
type Option func(*Handler)

// WithUIFile sets the HTML file served at / when no cmd is given.
func WithUIFile(path string) Option {
	return func(h *Handler) {
		h.uiFile = path
	}
}

// NewHandler wires the services into an http.Handler.
func NewHandler(p PlayerService, a ArtworkService, l LyricsService, opts ...Option) *Handler {
	h := &Handler{
		player:  p,
		artwork: a,
		lyrics:  l,
		uiFile:  "mpd-spiffy.html",
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cmd := q.Get("cmd")
	args := q["args"]
	format := q.Get("format")
	_, binary := q["binary"]

	if (r.URL.Path == "/" || r.URL.Path == "/mpd-spiffy.html") && cmd == "" {
		h.serveUI(w, r)
		return
	}

	switch cmd {
	case "":
		http.Error(w, "Missing cmd parameter", http.StatusBadRequest)
	case "lyrics":
		h.handleLyrics(w, r, args)
	case "artistart":
		h.handleArtistArt(w, r, args)
	case "blacklistimg":
		h.handleBlacklist(w, r, args)
	case "list":
		h.handleList(w, r, args)
	default:
		h.handlePlayer(w, r, cmd, format, args, binary)
	}
}

func (h *Handler) serveUI(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(h.uiFile)
	if err != nil {
		log.Error().Err(err).Str("file", h.uiFile).Msg("UI page unavailable")
		http.Error(w, "UI page not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	w.Write(data)
}

// handleArtistArt serves the next image in the rotation for an artist and
// optional album. An empty candidate list is 204 so the UI can fall back to
// its own visuals; a failed download batch is 404.
func (h *Handler) handleArtistArt(w http.ResponseWriter, r *http.Request, args []string) {
	if len(args) == 0 || args[0] == "" {
		http.Error(w, "No artist name provided", http.StatusBadRequest)
		return
	}
	artist := args[0]
	album := ""
	if len(args) > 1 {
		album = args[1]
	}

	img, pos, total, err := h.artwork.NextImage(r.Context(), artist, album)
	if err != nil {
		switch {
		case errors.Is(err, artwork.ErrNoCandidates):
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, artwork.ErrFetchFailed):
			http.Error(w, "Could not fetch images", http.StatusNotFound)
		default:
			log.Error().Err(err).Str("artist", artist).Msg("Artist art lookup failed")
			http.Error(w, "Image lookup failed", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", img.MimeType)
	w.Header().Set("X-Image-Index", itoa(pos)+"/"+itoa(total))
	w.Header().Set("X-Cache", "HIT")
	w.Header().Set("X-Cache-Key", artwork.CacheKey(artist, album))
	w.Header().Set("Access-Control-Expose-Headers", "X-Cache-Key, X-Image-Index")
	w.Write(img.Data)
}

func (h *Handler) handleBlacklist(w http.ResponseWriter, r *http.Request, args []string) {
	if len(args) == 0 || args[0] == "" {
		http.Error(w, "No cache key provided", http.StatusBadRequest)
		return
	}

	result, err := h.artwork.BlacklistCurrent(args[0])
	if err != nil {
		switch {
		case errors.Is(err, artwork.ErrProtectedURL):
			// The placeholder must stay available; tell the UI why.
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error":     "Cannot blacklist placeholder",
				"remaining": result.Remaining,
			})
		case errors.Is(err, artwork.ErrNoCurrentImage):
			http.Error(w, "No current image for this key", http.StatusNotFound)
		default:
			log.Error().Err(err).Str("key", args[0]).Msg("Blacklist request failed")
			http.Error(w, "Blacklist failed", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *Handler) handleLyrics(w http.ResponseWriter, r *http.Request, args []string) {
	if len(args) == 0 {
		http.Error(w, "No file path provided", http.StatusBadRequest)
		return
	}
	filePath := args[0]
	artist, title := "", ""
	if len(args) > 1 {
		artist = args[1]
	}
	if len(args) > 2 {
		title = args[2]
	}

	text := h.lyrics.Lookup(r.Context(), filePath, artist, title)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(text))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request, args []string) {
	if len(args) == 0 {
		http.Error(w, "Missing arguments for list command", http.StatusBadRequest)
		return
	}

	out, err := h.player.List(args[0], args[1:]...)
	if err != nil {
		log.Error().Err(err).Str("what", args[0]).Msg("List command failed")
		http.Error(w, "list error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(out))
}

func (h *Handler) handlePlayer(w http.ResponseWriter, r *http.Request, cmd, format string, args []string, binary bool) {
	if !player.Allowed(cmd) {
		http.Error(w, "Command not allowed: "+cmd, http.StatusForbidden)
		return
	}

	if binary {
		uri := ""
		if len(args) > 0 {
			uri = args[0]
		}
		data, err := h.player.Artwork(cmd, uri)
		if err != nil {
			log.Debug().Err(err).Str("cmd", cmd).Msg("Artwork command failed")
			http.Error(w, "command error: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", artsource.DetectMimeType(data))
		w.Write(data)
		return
	}

	out, err := h.player.Execute(cmd, format, args)
	if err != nil {
		if errors.Is(err, player.ErrNotAllowed) {
			http.Error(w, "Command not allowed: "+cmd, http.StatusForbidden)
			return
		}
		log.Error().Err(err).Str("cmd", cmd).Msg("Player command failed")
		http.Error(w, "command error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(out))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [12]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[pos:])
}
