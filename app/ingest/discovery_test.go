package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDiscoverFeeds_DeclaredLinks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head>
			<link rel="alternate" type="application/rss+xml" href="/feed.xml">
			<link rel="alternate" type="application/atom+xml" href="https://blog.example.com/atom.xml">
			<link rel="stylesheet" href="/style.css">
		</head><body></body></html>`))
	}))
	defer server.Close()

	feeds, err := DiscoverFeeds(context.Background(), server.Client(), "postwire-test", server.URL)
	if err != nil {
		t.Fatalf("DiscoverFeeds failed: %v", err)
	}

	if len(feeds) != 2 {
		t.Fatalf("Expected 2 declared feeds, got %v", feeds)
	}
	if feeds[0] != server.URL+"/feed.xml" {
		t.Errorf("Expected relative href resolved against site URL, got '%s'", feeds[0])
	}
	if feeds[1] != "https://blog.example.com/atom.xml" {
		t.Errorf("Expected absolute href preserved, got '%s'", feeds[1])
	}
}

func TestDiscoverFeeds_FallsBackToWellKnownPaths(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>No feeds declared</title></head></html>`))
	})
	mux.HandleFunc("/rss.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(`<rss version="2.0"><channel><title>Feed</title></channel></rss>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	feeds, err := DiscoverFeeds(context.Background(), server.Client(), "postwire-test", server.URL)
	if err != nil {
		t.Fatalf("DiscoverFeeds failed: %v", err)
	}
	if len(feeds) != 1 || feeds[0] != server.URL+"/rss.xml" {
		t.Errorf("Expected well-known path probe to find /rss.xml, got %v", feeds)
	}
}

func TestDiscoverFeeds_InvalidURLRejected(t *testing.T) {
	if _, err := DiscoverFeeds(context.Background(), http.DefaultClient, "postwire-test", "not a url"); err == nil {
		t.Error("Expected error for invalid site URL")
	}
}
