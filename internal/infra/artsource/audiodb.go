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
	// DefaultAudioDBBaseURL is the TheAudioDB API base URL
	DefaultAudioDBBaseURL = "https://www.theaudiodb.com/api/v1/json"

	// DefaultAudioDBAPIKey is the free public test key
	DefaultAudioDBAPIKey = "2"

	// DefaultAudioDBTimeout for metadata queries
	DefaultAudioDBTimeout = 5 * time.Second

	// DefaultAudioDBRateLimit - TheAudioDB asks for at most 2 calls/second
	DefaultAudioDBRateLimit = 2
)

// AudioDBClient queries TheAudioDB for album artwork and artist images.
type AudioDBClient struct {
	baseURL    string
	apiKey     string
	userAgent  string
	httpClient *http.Client
	limiter    *rateLimiter
}

// AudioDBOption is a functional option for configuring the TheAudioDB client.
type AudioDBOption func(*AudioDBClient)

// WithAudioDBBaseURL sets a custom base URL (useful for testing).
func WithAudioDBBaseURL(url string) AudioDBOption {
	return func(c *AudioDBClient) {
		c.baseURL = url
	}
}

// WithAudioDBAPIKey sets the API key.
func WithAudioDBAPIKey(key string) AudioDBOption {
	return func(c *AudioDBClient) {
		c.apiKey = key
	}
}

// WithAudioDBHTTPClient sets a custom HTTP client.
func WithAudioDBHTTPClient(client *http.Client) AudioDBOption {
	return func(c *AudioDBClient) {
		c.httpClient = client
	}
}

// NewAudioDBClient creates a new TheAudioDB API client.
func NewAudioDBClient(opts ...AudioDBOption) *AudioDBClient {
	c := &AudioDBClient{
		baseURL:   DefaultAudioDBBaseURL,
		apiKey:    DefaultAudioDBAPIKey,
		userAgent: defaultUserAgent,
		httpClient: &http.Client{
			Timeout: DefaultAudioDBTimeout,
		},
		limiter: newRateLimiter(DefaultAudioDBRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// audioDBAlbum carries the artwork URL fields of an album record.
type audioDBAlbum struct {
	Album       string `json:"strAlbum"`
	AlbumThumb  string `json:"strAlbumThumb"`
	ThumbHQ     string `json:"strAlbumThumbHQ"`
	CDart       string `json:"strAlbumCDart"`
	Spine       string `json:"strAlbumSpine"`
}

// audioDBArtist carries the image URL fields of an artist record.
type audioDBArtist struct {
	Artist    string `json:"strArtist"`
	Thumb     string `json:"strArtistThumb"`
	Fanart    string `json:"strArtistFanart"`
	Fanart2   string `json:"strArtistFanart2"`
	Fanart3   string `json:"strArtistFanart3"`
	Fanart4   string `json:"strArtistFanart4"`
	Cutout    string `json:"strArtistCutout"`
	Clearart  string `json:"strArtistClearart"`
	WideThumb string `json:"strArtistWideThumb"`
	Banner    string `json:"strArtistBanner"`
}

// SearchAlbumImageURLs searches for an album and returns its artwork URLs in
// preference order (thumb, HQ thumb, CD art, spine).
func (c *AudioDBClient) SearchAlbumImageURLs(ctx context.Context, artist, album string) ([]string, error) {
	reqURL := fmt.Sprintf("%s/%s/searchalbum.php?s=%s&a=%s",
		c.baseURL, c.apiKey, url.QueryEscape(artist), url.QueryEscape(album))

	var result struct {
		Album []audioDBAlbum `json:"album"`
	}
	if err := c.getJSON(ctx, reqURL, &result); err != nil {
		return nil, err
	}

	if len(result.Album) == 0 {
		log.Debug().Str("artist", artist).Str("album", album).Msg("No TheAudioDB album match")
		return nil, ErrNotFound
	}

	alb := result.Album[0]
	var urls []string
	for _, u := range []string{alb.AlbumThumb, alb.ThumbHQ, alb.CDart, alb.Spine} {
		if u != "" {
			urls = append(urls, u)
		}
	}

	if len(urls) == 0 {
		return nil, ErrNotFound
	}

	log.Debug().
		Str("artist", artist).
		Str("album", album).
		Int("count", len(urls)).
		Msg("Found album artwork on TheAudioDB")
	return urls, nil
}

// SearchArtistImageURLs searches for an artist and returns all available
// image URLs in a fixed preference order: thumb, the four fanart slots,
// cutout, clearart, wide thumb, banner.
func (c *AudioDBClient) SearchArtistImageURLs(ctx context.Context, artist string) ([]string, error) {
	reqURL := fmt.Sprintf("%s/%s/search.php?s=%s",
		c.baseURL, c.apiKey, url.QueryEscape(artist))

	var result struct {
		Artists []audioDBArtist `json:"artists"`
	}
	if err := c.getJSON(ctx, reqURL, &result); err != nil {
		return nil, err
	}

	if len(result.Artists) == 0 {
		log.Debug().Str("artist", artist).Msg("No TheAudioDB artist match")
		return nil, ErrNotFound
	}

	art := result.Artists[0]
	var urls []string
	for _, u := range []string{
		art.Thumb, art.Fanart, art.Fanart2, art.Fanart3, art.Fanart4,
		art.Cutout, art.Clearart, art.WideThumb, art.Banner,
	} {
		if u != "" {
			urls = append(urls, u)
		}
	}

	if len(urls) == 0 {
		return nil, ErrNotFound
	}

	log.Debug().Str("artist", artist).Int("count", len(urls)).Msg("Found artist images on TheAudioDB")
	return urls, nil
}

// getJSON performs a rate-limited GET and decodes the JSON response.
func (c *AudioDBClient) getJSON(ctx context.Context, reqURL string, out interface{}) error {
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
		log.Warn().Str("url", reqURL).Msg("TheAudioDB rate limit exceeded")
		return ErrRateLimited
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		log.Warn().Int("status", resp.StatusCode).Msg("TheAudioDB temporary error")
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
