package artsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultDeezerBaseURL is the Deezer API base URL
	DefaultDeezerBaseURL = "https://api.deezer.com"

	// DefaultDeezerTimeout for metadata queries
	DefaultDeezerTimeout = 5 * time.Second

	// DefaultDeezerRateLimit - Deezer allows higher rates but we stay conservative
	DefaultDeezerRateLimit = 5 // 5 requests per second

	// trackSearchLimit caps the track-fallback search to the top matches
	trackSearchLimit = 3
)

// DeezerClient queries the public Deezer search API for album covers and
// artist pictures. No API key required.
type DeezerClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rateLimiter
}

// DeezerOption is a functional option for configuring the Deezer client.
type DeezerOption func(*DeezerClient)

// WithDeezerBaseURL sets a custom base URL (useful for testing).
func WithDeezerBaseURL(url string) DeezerOption {
	return func(c *DeezerClient) {
		c.baseURL = url
	}
}

// WithDeezerHTTPClient sets a custom HTTP client.
func WithDeezerHTTPClient(client *http.Client) DeezerOption {
	return func(c *DeezerClient) {
		c.httpClient = client
	}
}

// NewDeezerClient creates a new Deezer API client.
func NewDeezerClient(opts ...DeezerOption) *DeezerClient {
	c := &DeezerClient{
		baseURL:   DefaultDeezerBaseURL,
		userAgent: defaultUserAgent,
		httpClient: &http.Client{
			Timeout: DefaultDeezerTimeout,
		},
		limiter: newRateLimiter(DefaultDeezerRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// deezerAlbum holds the cover URL variants of an album search hit.
type deezerAlbum struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	CoverBig string `json:"cover_big"` // 500x500
	CoverXL  string `json:"cover_xl"`  // 1000x1000
}

// deezerArtist holds the picture URL variants of an artist search hit.
type deezerArtist struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	PictureMedium string `json:"picture_medium"` // 250x250
	PictureBig    string `json:"picture_big"`    // 500x500
	PictureXL     string `json:"picture_xl"`     // 1000x1000
}

// deezerTrack is a track search hit carrying its album's covers.
type deezerTrack struct {
	ID    int         `json:"id"`
	Title string      `json:"title"`
	Album deezerAlbum `json:"album"`
}

// SearchAlbumCoverURL searches for an album by artist and title and returns
// the largest available cover URL of the first hit.
func (c *DeezerClient) SearchAlbumCoverURL(ctx context.Context, artist, album string) (string, error) {
	reqURL := fmt.Sprintf("%s/search/album?q=%s&limit=1",
		c.baseURL, url.QueryEscape(artist+" "+album))

	var result struct {
		Data []deezerAlbum `json:"data"`
	}
	if err := c.getJSON(ctx, reqURL, &result); err != nil {
		return "", err
	}

	if len(result.Data) == 0 {
		log.Debug().Str("artist", artist).Str("album", album).Msg("No Deezer album match")
		return "", ErrNotFound
	}

	cover := result.Data[0].CoverXL
	if cover == "" {
		cover = result.Data[0].CoverBig
	}
	if cover == "" {
		return "", ErrNotFound
	}

	log.Debug().
		Str("artist", artist).
		Str("album", album).
		Int("deezerID", result.Data[0].ID).
		Msg("Found album cover on Deezer")
	return cover, nil
}

// SearchArtistImageURL searches for an artist by the given term and returns
// the largest available picture URL of the first hit.
func (c *DeezerClient) SearchArtistImageURL(ctx context.Context, term string) (string, error) {
	reqURL := fmt.Sprintf("%s/search/artist?q=%s&limit=1",
		c.baseURL, url.QueryEscape(term))

	var result struct {
		Data []deezerArtist `json:"data"`
	}
	if err := c.getJSON(ctx, reqURL, &result); err != nil {
		return "", err
	}

	if len(result.Data) == 0 {
		log.Debug().Str("term", term).Msg("No Deezer artist match")
		return "", ErrNotFound
	}

	// Prefer the largest size, falling back down the ladder.
	art := result.Data[0]
	for _, pic := range []string{art.PictureXL, art.PictureBig, art.PictureMedium} {
		if pic != "" {
			log.Debug().
				Str("term", term).
				Str("deezerName", art.Name).
				Int("deezerID", art.ID).
				Msg("Found artist image on Deezer")
			return pic, nil
		}
	}

	return "", ErrNotFound
}

// SearchTrackCoverURLs searches tracks by artist and returns the album cover
// URLs of the top matches, in result order. Used as a fallback when album
// and artist searches come up empty, and for soundtrack-style content whose
// "artist" is really a composer or franchise name.
func (c *DeezerClient) SearchTrackCoverURLs(ctx context.Context, artist string) ([]string, error) {
	reqURL := fmt.Sprintf("%s/search/track?q=%s&limit=%d",
		c.baseURL, url.QueryEscape(artist), trackSearchLimit)

	var result struct {
		Data []deezerTrack `json:"data"`
	}
	if err := c.getJSON(ctx, reqURL, &result); err != nil {
		return nil, err
	}

	var urls []string
	for _, track := range result.Data {
		cover := track.Album.CoverXL
		if cover == "" {
			cover = track.Album.CoverBig
		}
		if cover != "" {
			urls = append(urls, cover)
		}
	}

	if len(urls) == 0 {
		log.Debug().Str("artist", artist).Msg("No Deezer track covers found")
		return nil, ErrNotFound
	}

	log.Debug().Str("artist", artist).Int("count", len(urls)).Msg("Found track covers on Deezer")
	return urls, nil
}

// getJSON performs a rate-limited GET and decodes the JSON response.
func (c *DeezerClient) getJSON(ctx context.Context, reqURL string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Success
	case http.StatusTooManyRequests:
		log.Warn().Str("url", reqURL).Msg("Deezer rate limit exceeded")
		return ErrRateLimited
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		log.Warn().Int("status", resp.StatusCode).Msg("Deezer temporary error")
		return ErrTemporaryFailure
	default:
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	return nil
}
