package content

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/buzzposter/buzzposter/internal/apierr"
)

func newTestClient(serverURL string) *NewsAPI {
	c := NewNewsAPI("test-key")
	c.baseURL = serverURL
	return c
}

func TestTopic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/top-headlines" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if got := r.URL.Query().Get("category"); got != "technology" {
			t.Errorf("category = %q, want technology", got)
		}
		w.Write([]byte(`{"articles":[{"source":{"name":"Wired"},"title":"Chip news","url":"https://wired.example/a"}]}`))
	}))
	defer server.Close()

	articles, err := newTestClient(server.URL).Topic(context.Background(), "tech")
	if err != nil {
		t.Fatalf("Topic: %v", err)
	}
	if len(articles) != 1 || articles[0].Source != "Wired" || articles[0].Link != "https://wired.example/a" {
		t.Fatalf("articles = %+v", articles)
	}
}

func TestTopic_Unknown(t *testing.T) {
	if _, err := newTestClient("http://unused.invalid").Topic(context.Background(), "gossip"); err == nil {
		t.Fatal("unknown topic accepted")
	}
}

func TestSearch_PassesParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/everything" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("q") != "golang" || q.Get("language") != "de" || q.Get("sortBy") != "popularity" {
			t.Errorf("query = %v", q)
		}
		w.Write([]byte(`{"articles":[]}`))
	}))
	defer server.Close()

	if _, err := newTestClient(server.URL).Search(context.Background(), "golang", "de", "popularity"); err != nil {
		t.Fatalf("Search: %v", err)
	}
}

func TestFetch_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":"error"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Topic(context.Background(), "science")
	if !apierr.IsKind(err, apierr.KindUpstreamUnavailable) {
		t.Fatalf("got %v, want upstream_unavailable", err)
	}

	c := NewNewsAPI("")
	if _, err := c.Topic(context.Background(), "tech"); err == nil {
		t.Fatal("missing api key accepted")
	}
}
