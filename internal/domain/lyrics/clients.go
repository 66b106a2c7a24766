package lyrics

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
	// DefaultLRCLibBaseURL is the lrclib.net API base URL
	DefaultLRCLibBaseURL = "https://lrclib.net"

	// DefaultLyricsOVHBaseURL is the lyrics.ovh API base URL
	DefaultLyricsOVHBaseURL = "https://api.lyrics.ovh"

	// DefaultLyricsTimeout for lyric API queries
	DefaultLyricsTimeout = 5 * time.Second
)

// LRCLibClient queries lrclib.net for lyrics by artist and track name.
type LRCLibClient struct {
	baseURL    string
	httpClient *http.Client
}

// LRCLibOption is a functional option for configuring the lrclib client.
type LRCLibOption func(*LRCLibClient)

// WithLRCLibBaseURL sets a custom base URL (useful for testing).
func WithLRCLibBaseURL(url string) LRCLibOption {
	return func(c *LRCLibClient) {
		c.baseURL = url
	}
}

// NewLRCLibClient creates a new lrclib.net client.
func NewLRCLibClient(opts ...LRCLibOption) *LRCLibClient {
	c := &LRCLibClient{
		baseURL: DefaultLRCLibBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultLyricsTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get fetches lyrics for a track. Plain lyrics are preferred; synced
// (LRC-timestamped) lyrics are returned when that is all the API has.
func (c *LRCLibClient) Get(ctx context.Context, artist, title string) (string, error) {
	reqURL := fmt.Sprintf("%s/api/get?artist_name=%s&track_name=%s",
		c.baseURL, url.QueryEscape(artist), url.QueryEscape(title))

	body, err := getBody(ctx, c.httpClient, reqURL)
	if err != nil {
		return "", err
	}

	var result struct {
		PlainLyrics  string `json:"plainLyrics"`
		SyncedLyrics string `json:"syncedLyrics"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	if result.PlainLyrics != "" {
		return result.PlainLyrics, nil
	}
	if result.SyncedLyrics != "" {
		return result.SyncedLyrics, nil
	}

	return "", fmt.Errorf("no lyrics in response")
}

// LyricsOVHClient queries lyrics.ovh for lyrics by artist and track name.
type LyricsOVHClient struct {
	baseURL    string
	httpClient *http.Client
}

// LyricsOVHOption is a functional option for configuring the lyrics.ovh client.
type LyricsOVHOption func(*LyricsOVHClient)

// WithLyricsOVHBaseURL sets a custom base URL (useful for testing).
func WithLyricsOVHBaseURL(url string) LyricsOVHOption {
	return func(c *LyricsOVHClient) {
		c.baseURL = url
	}
}

// NewLyricsOVHClient creates a new lyrics.ovh client.
func NewLyricsOVHClient(opts ...LyricsOVHOption) *LyricsOVHClient {
	c := &LyricsOVHClient{
		baseURL: DefaultLyricsOVHBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultLyricsTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get fetches lyrics for a track.
func (c *LyricsOVHClient) Get(ctx context.Context, artist, title string) (string, error) {
	reqURL := fmt.Sprintf("%s/v1/%s/%s",
		c.baseURL, url.PathEscape(artist), url.PathEscape(title))

	body, err := getBody(ctx, c.httpClient, reqURL)
	if err != nil {
		return "", err
	}

	var result struct {
		Lyrics string `json:"lyrics"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	if result.Error != "" {
		return "", fmt.Errorf("lyrics.ovh: %s", result.Error)
	}
	if result.Lyrics == "" {
		return "", fmt.Errorf("no lyrics in response")
	}

	return result.Lyrics, nil
}

// getBody performs a GET and returns the response body on 200.
func getBody(ctx context.Context, client *http.Client, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Debug().Int("status", resp.StatusCode).Str("url", reqURL).Msg("Lyrics API non-OK status")
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return body, nil
}
