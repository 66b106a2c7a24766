package lyrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

func TestService_Resolve_Containment(t *testing.T) {
	svc := NewService("/home/user/Music")

	tests := []struct {
		name string
		path string
		ok   bool
	}{
		{"relative path inside", "Daft Punk/Discovery/01.mp3", true},
		{"absolute path inside", "/home/user/Music/track.flac", true},
		{"parent escape", "../secrets.txt", false},
		{"nested parent escape", "a/../../secrets.txt", false},
		{"absolute outside", "/etc/passwd", false},
		// A string-prefix check would wrongly accept this sibling.
		{"sibling directory prefix collision", "/home/user/Music-private/track.mp3", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			full, ok := svc.resolve(tt.path)
			if ok != tt.ok {
				t.Errorf("resolve(%q) ok = %v, want %v (full=%q)", tt.path, ok, tt.ok, full)
			}
		})
	}
}

type stubSource struct {
	text  string
	err   error
	calls int
}

func (s *stubSource) Get(ctx context.Context, artist, title string) (string, error) {
	s.calls++
	return s.text, s.err
}

func TestService_Lookup_SourceOrder(t *testing.T) {
	first := &stubSource{err: context.DeadlineExceeded}
	second := &stubSource{text: "la la la"}
	svc := NewService(t.TempDir(), first, second)

	got := svc.Lookup(context.Background(), "", "Daft Punk", "One More Time")
	if got != "la la la" {
		t.Errorf("Lookup = %q, want lyrics from second source", got)
	}
	if first.calls != 1 || second.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", first.calls, second.calls)
	}
}

func TestService_Lookup_FirstSourceWins(t *testing.T) {
	first := &stubSource{text: "first"}
	second := &stubSource{text: "second"}
	svc := NewService(t.TempDir(), first, second)

	if got := svc.Lookup(context.Background(), "", "A", "T"); got != "first" {
		t.Errorf("Lookup = %q, want %q", got, "first")
	}
	if second.calls != 0 {
		t.Error("second source queried although first succeeded")
	}
}

func TestService_Lookup_NotFound(t *testing.T) {
	miss := &stubSource{err: context.DeadlineExceeded}
	svc := NewService(t.TempDir(), miss)

	if got := svc.Lookup(context.Background(), "", "A", "T"); got != NotFoundText {
		t.Errorf("Lookup = %q, want %q", got, NotFoundText)
	}
}

func TestService_Lookup_SkipsWebWithoutArtistTitle(t *testing.T) {
	src := &stubSource{text: "should not be used"}
	svc := NewService(t.TempDir(), src)

	if got := svc.Lookup(context.Background(), "", "", ""); got != NotFoundText {
		t.Errorf("Lookup = %q, want %q", got, NotFoundText)
	}
	if src.calls != 0 {
		t.Error("web source queried without artist and title")
	}
}

func TestService_Lookup_EscapingPathFallsThroughToWeb(t *testing.T) {
	src := &stubSource{text: "web lyrics"}
	svc := NewService(filepath.Join(t.TempDir(), "Music"), src)

	got := svc.Lookup(context.Background(), "../../etc/passwd", "A", "T")
	if got != "web lyrics" {
		t.Errorf("Lookup = %q, want web fallback after rejected path", got)
	}
}

func TestLRCLibClient_Get(t *testing.T) {
	tests := []struct {
		name       string
		response   string
		statusCode int
		want       string
		wantErr    bool
	}{
		{
			name:       "plain lyrics preferred",
			response:   `{"plainLyrics": "plain text", "syncedLyrics": "[00:01.00] synced"}`,
			statusCode: http.StatusOK,
			want:       "plain text",
		},
		{
			name:       "synced fallback",
			response:   `{"plainLyrics": "", "syncedLyrics": "[00:01.00] synced"}`,
			statusCode: http.StatusOK,
			want:       "[00:01.00] synced",
		},
		{
			name:       "track not found",
			response:   `{"statusCode": 404, "name": "TrackNotFound"}`,
			statusCode: http.StatusNotFound,
			wantErr:    true,
		},
		{
			name:       "empty payload",
			response:   `{}`,
			statusCode: http.StatusOK,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/get" {
					t.Errorf("path = %q, want /api/get", r.URL.Path)
				}
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.response))
			}))
			defer server.Close()

			client := NewLRCLibClient(WithLRCLibBaseURL(server.URL))

			got, err := client.Get(context.Background(), "Daft Punk", "One More Time")
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Get = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLyricsOVHClient_Get(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
		wantErr  bool
	}{
		{
			name:     "lyrics returned",
			response: `{"lyrics": "around the world"}`,
			want:     "around the world",
		},
		{
			name:     "api error field",
			response: `{"error": "No lyrics found"}`,
			wantErr:  true,
		},
		{
			name:     "empty lyrics",
			response: `{"lyrics": ""}`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.response))
			}))
			defer server.Close()

			client := NewLyricsOVHClient(WithLyricsOVHBaseURL(server.URL))

			got, err := client.Get(context.Background(), "Daft Punk", "Around the World")
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Get = %q, want %q", got, tt.want)
			}
		})
	}
}
