package blacklist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestStore_AddAndContains(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blacklist.json")
	store := NewStore(path)
	store.Load()

	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d entries", store.Len())
	}

	if !store.Add("https://example.com/bad.jpg") {
		t.Error("expected Add to succeed for regular URL")
	}

	if !store.Contains("https://example.com/bad.jpg") {
		t.Error("expected URL to be blacklisted after Add")
	}

	if store.Contains("https://example.com/other.jpg") {
		t.Error("unrelated URL should not be blacklisted")
	}
}

func TestStore_PersistsAcrossLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blacklist.json")

	store := NewStore(path)
	store.Load()
	store.Add("https://example.com/one.jpg")
	store.Add("https://example.com/two.jpg")

	// A fresh store reading the same file sees both entries.
	reloaded := NewStore(path)
	reloaded.Load()

	if reloaded.Len() != 2 {
		t.Fatalf("expected 2 entries after reload, got %d", reloaded.Len())
	}
	if !reloaded.Contains("https://example.com/one.jpg") {
		t.Error("expected first URL to survive reload")
	}

	// File is a plain JSON array of strings.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read blacklist file: %v", err)
	}
	var urls []string
	if err := json.Unmarshal(data, &urls); err != nil {
		t.Fatalf("blacklist file is not a JSON string array: %v", err)
	}
}

func TestStore_RefusesProtectedURLs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blacklist.json")
	store := NewStore(path)
	store.Load()

	url := "https://ui-avatars.com/api/?name=Some+Artist"
	for i := 0; i < 3; i++ {
		if store.Add(url) {
			t.Fatal("expected Add to refuse placeholder URL")
		}
	}

	if store.Contains(url) {
		t.Error("placeholder URL must never enter the blacklist")
	}
	if store.Len() != 0 {
		t.Errorf("expected empty store, got %d entries", store.Len())
	}
}

func TestStore_LoadToleratesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blacklist.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	store := NewStore(path)
	store.Load()

	if store.Len() != 0 {
		t.Errorf("corrupt file should behave as empty blacklist, got %d entries", store.Len())
	}
}

func TestIsProtected(t *testing.T) {
	if !IsProtected("https://ui-avatars.com/api/?name=X") {
		t.Error("ui-avatars.com URL should be protected")
	}
	if IsProtected("https://e-cdns-images.dzcdn.net/images/artist/abc/1000x1000.jpg") {
		t.Error("CDN image URL should not be protected")
	}
}
