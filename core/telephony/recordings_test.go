package telephony

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dialcare/callvoice/core/artifacts"
)

type artifactCreatorStub struct {
	kind  artifacts.Kind
	audio []byte
	err   error
}

func (s *artifactCreatorStub) Create(kind artifacts.Kind, audio []byte) (string, error) {
	s.kind = kind
	s.audio = audio
	if s.err != nil {
		return "", s.err
	}
	return "artifact-1", nil
}

func TestFetchStoresRecording(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("wav bytes"))
	}))
	defer server.Close()

	store := &artifactCreatorStub{}
	fetcher := NewRecordingFetcher(store, WithCredentials("", ""))

	id, err := fetcher.Fetch(context.Background(), server.URL+"/recordings/RE1")
	if err != nil {
		t.Fatalf("expected fetch to succeed, got %v", err)
	}
	if id != "artifact-1" {
		t.Fatalf("expected stored artifact ID, got %q", id)
	}
	if store.kind != artifacts.KindIncomingRecording || string(store.audio) != "wav bytes" {
		t.Fatalf("expected recording stored as incoming kind, got %v %q", store.kind, store.audio)
	}
}

func TestFetchTriesProviderFormatCandidates(t *testing.T) {
	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RequestURI())
		if user, pass, ok := r.BasicAuth(); !ok || user != "AC123" || pass != "secret" {
			t.Errorf("expected basic auth credentials on provider fetch")
		}
		if strings.HasSuffix(r.URL.Path, ".wav") {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("mp3 bytes"))
	}))
	defer server.Close()

	store := &artifactCreatorStub{}
	fetcher := NewRecordingFetcher(store, WithCredentials("AC123", "secret"))

	// The api.twilio.com marker in the path switches on authenticated
	// candidate URLs.
	id, err := fetcher.Fetch(context.Background(), server.URL+"/api.twilio.com/RE1")
	if err != nil {
		t.Fatalf("expected fetch to succeed, got %v", err)
	}
	if id != "artifact-1" {
		t.Fatalf("expected stored artifact ID, got %q", id)
	}

	if len(requests) != 2 {
		t.Fatalf("expected fallback to the second candidate, got %v", requests)
	}
	if !strings.HasSuffix(requests[0], ".wav") || !strings.HasSuffix(requests[1], ".mp3") {
		t.Fatalf("expected wav then mp3 candidates, got %v", requests)
	}
	if string(store.audio) != "mp3 bytes" {
		t.Fatalf("expected second candidate's audio stored, got %q", store.audio)
	}
}

func TestFetchReportsExhaustedCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := NewRecordingFetcher(&artifactCreatorStub{}, WithCredentials("", ""))

	if _, err := fetcher.Fetch(context.Background(), server.URL+"/recordings/RE1"); err == nil {
		t.Fatalf("expected error when every candidate fails")
	}
}
