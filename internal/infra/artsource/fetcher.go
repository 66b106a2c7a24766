package artsource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultFetchTimeout bounds a single image download.
const DefaultFetchTimeout = 10 * time.Second

// ImageFetcher downloads candidate image URLs and validates the payloads.
type ImageFetcher struct {
	userAgent  string
	httpClient *http.Client
}

// FetcherOption is a functional option for configuring the fetcher.
type FetcherOption func(*ImageFetcher)

// WithFetcherHTTPClient sets a custom HTTP client.
func WithFetcherHTTPClient(client *http.Client) FetcherOption {
	return func(f *ImageFetcher) {
		f.httpClient = client
	}
}

// WithFetcherUserAgent sets a custom User-Agent header.
func WithFetcherUserAgent(ua string) FetcherOption {
	return func(f *ImageFetcher) {
		f.userAgent = ua
	}
}

// NewImageFetcher creates an image fetcher with a bounded timeout.
func NewImageFetcher(opts ...FetcherOption) *ImageFetcher {
	f := &ImageFetcher{
		userAgent: defaultUserAgent,
		httpClient: &http.Client{
			Timeout: DefaultFetchTimeout,
		},
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch downloads one candidate URL. Payloads under MinImageSize are
// rejected as likely error pages or placeholders. Callers treat any error
// as "skip this candidate"; a failed download never aborts the batch.
func (f *ImageFetcher) Fetch(ctx context.Context, imageURL string) (*Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "image/*")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	limitedReader := io.LimitReader(resp.Body, MaxImageSize)
	data, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("read image data: %w", err)
	}

	if len(data) < MinImageSize {
		log.Debug().Str("url", imageURL).Int("size", len(data)).Msg("Rejected undersized image payload")
		return nil, ErrTooSmall
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = DetectMimeType(data)
	}

	log.Debug().
		Str("url", imageURL).
		Int("size", len(data)).
		Str("type", contentType).
		Msg("Fetched image")

	return &Image{
		Data:      data,
		MimeType:  contentType,
		SourceURL: imageURL,
	}, nil
}
