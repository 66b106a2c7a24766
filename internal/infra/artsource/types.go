// Package artsource provides clients for the external metadata sources that
// supply candidate artist and album image URLs, plus the downloader that
// turns candidates into cacheable payloads.
package artsource

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Common errors
var (
	// ErrNotFound indicates the source has no result for the query
	ErrNotFound = errors.New("no result found")

	// ErrRateLimited indicates the source's rate limit was exceeded
	ErrRateLimited = errors.New("rate limited")

	// ErrTemporaryFailure indicates a temporary upstream failure
	ErrTemporaryFailure = errors.New("temporary failure")

	// ErrTooSmall indicates a downloaded payload was below the minimum
	// plausible image size (likely an error page or placeholder)
	ErrTooSmall = errors.New("image payload too small")
)

const (
	// defaultUserAgent is a browser-like identity. Several image CDNs
	// reject requests carrying the Go default agent.
	defaultUserAgent = "Mozilla/5.0"

	// MaxImageSize is the maximum image size to download (10MB)
	MaxImageSize = 10 * 1024 * 1024

	// MinImageSize is the minimum payload size accepted as a real image.
	// Provider error pages and tracking pixels come in under this.
	MinImageSize = 500
)

// Image is a fetched image payload together with the URL it came from.
// SourceURL is what the blacklist operates on.
type Image struct {
	Data      []byte
	MimeType  string
	SourceURL string
}

// DetectMimeType detects the MIME type from image magic bytes.
func DetectMimeType(data []byte) string {
	if len(data) < 4 {
		return "application/octet-stream"
	}

	switch {
	case data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "image/jpeg"
	case data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47:
		return "image/png"
	case data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46:
		return "image/gif"
	case data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46:
		// RIFF header - could be WebP
		if len(data) >= 12 && data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
			return "image/webp"
		}
	}

	return "application/octet-stream"
}

// rateLimiter implements a simple token bucket rate limiter
type rateLimiter struct {
	mu          sync.Mutex
	interval    time.Duration
	lastRequest time.Time
}

func newRateLimiter(requestsPerSecond int) *rateLimiter {
	return &rateLimiter{
		interval: time.Second / time.Duration(requestsPerSecond),
	}
}

// Wait blocks until a request can be made
func (r *rateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	nextAllowed := r.lastRequest.Add(r.interval)

	if now.Before(nextAllowed) {
		select {
		case <-time.After(nextAllowed.Sub(now)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.lastRequest = time.Now()
	return nil
}
