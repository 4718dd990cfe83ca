package provider_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"brandlens/internal/domain/entity"
	"brandlens/internal/infra/provider"
	"brandlens/internal/resilience/classify"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Tech News</title>
    <link>https://news.example.com</link>
    <description>Daily tech news</description>
    <item>
      <title>Acme launches new product line</title>
      <link>https://news.example.com/acme-launch</link>
      <description>Acme Corp announced a major expansion today.</description>
      <pubDate>Mon, 06 Jan 2025 09:00:00 +0000</pubDate>
    </item>
    <item>
      <title>Market roundup</title>
      <link>https://news.example.com/roundup</link>
      <description>General market movements, nothing specific.</description>
      <pubDate>Tue, 07 Jan 2025 09:00:00 +0000</pubDate>
    </item>
  </channel>
</rss>`

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		if _, err := w.Write([]byte(testFeed)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func acme() *entity.Brand {
	return &entity.Brand{ID: 1, Name: "Acme", Slug: "acme"}
}

func TestNewsFetcher_FetchMentions(t *testing.T) {
	server := feedServer(t)
	client := &http.Client{Timeout: 10 * time.Second}
	fetcher := provider.NewNewsFetcher(client, []string{server.URL})

	mentions, err := fetcher.FetchMentions(context.Background(), acme())
	if err != nil {
		t.Fatalf("FetchMentions() error = %v", err)
	}

	if len(mentions) != 1 {
		t.Fatalf("mentions length = %d, want 1", len(mentions))
	}
	if mentions[0].Title != "Acme launches new product line" {
		t.Errorf("mentions[0].Title = %q", mentions[0].Title)
	}
	if mentions[0].URL != "https://news.example.com/acme-launch" {
		t.Errorf("mentions[0].URL = %q", mentions[0].URL)
	}
	if mentions[0].Feed != server.URL {
		t.Errorf("mentions[0].Feed = %q, want %q", mentions[0].Feed, server.URL)
	}
	want := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	if !mentions[0].PublishedAt.Equal(want) {
		t.Errorf("mentions[0].PublishedAt = %v, want %v", mentions[0].PublishedAt, want)
	}
}

func TestNewsFetcher_SkipsUnreadableFeed(t *testing.T) {
	good := feedServer(t)
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer bad.Close()

	client := &http.Client{Timeout: 10 * time.Second}
	fetcher := provider.NewNewsFetcher(client, []string{bad.URL, good.URL})

	mentions, err := fetcher.FetchMentions(context.Background(), acme())
	if err != nil {
		t.Fatalf("FetchMentions() error = %v", err)
	}
	if len(mentions) != 1 {
		t.Errorf("mentions length = %d, want 1", len(mentions))
	}
}

func TestNewsFetcher_AllFeedsDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := &http.Client{Timeout: 10 * time.Second}
	fetcher := provider.NewNewsFetcher(client, []string{server.URL})

	_, err := fetcher.FetchMentions(context.Background(), acme())
	if err == nil {
		t.Fatal("FetchMentions() error = nil, want error")
	}

	var herr *classify.HTTPError
	if !errors.As(err, &herr) {
		t.Fatalf("error %v is not an HTTP error", err)
	}
	if herr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want 503", herr.StatusCode)
	}
}

func TestNewsFetcher_NoFeedsConfigured(t *testing.T) {
	fetcher := provider.NewNewsFetcher(http.DefaultClient, nil)
	if _, err := fetcher.FetchMentions(context.Background(), acme()); err == nil {
		t.Fatal("FetchMentions() error = nil, want error")
	}
}
