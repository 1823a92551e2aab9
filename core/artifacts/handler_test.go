package artifacts

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandlerServesArtifactAudio(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("expected store to open, got %v", err)
	}
	defer store.Close()

	id, _ := store.Create(KindSynthesizedReply, []byte("mp3 bytes"))

	server := httptest.NewServer(store.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/audio/" + id)
	if err != nil {
		t.Fatalf("expected fetch to succeed, got %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if contentType := resp.Header.Get("Content-Type"); contentType != "audio/mpeg" {
		t.Fatalf("expected audio/mpeg, got %q", contentType)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "mp3 bytes" {
		t.Fatalf("expected artifact bytes, got %q", body)
	}
}

func TestHandlerUnknownArtifact(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("expected store to open, got %v", err)
	}
	defer store.Close()

	server := httptest.NewServer(store.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/audio/no-such-artifact")
	if err != nil {
		t.Fatalf("expected fetch to complete, got %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestHandlerRejectsNonReadMethods(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("expected store to open, got %v", err)
	}
	defer store.Close()

	server := httptest.NewServer(store.Handler())
	defer server.Close()

	resp, err := http.Post(server.URL+"/audio/some-id", "audio/wav", nil)
	if err != nil {
		t.Fatalf("expected request to complete, got %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}
