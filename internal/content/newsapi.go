// Package content holds the content-sourcing collaborators. These are
// stateless REST clients outside the admission core; the core only consumes
// them through the tools.ContentSource interface.
package content

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/buzzposter/buzzposter/internal/apierr"
	"github.com/buzzposter/buzzposter/internal/tools"
	"github.com/buzzposter/buzzposter/internal/util"
)

const defaultBaseURL = "https://newsapi.org/v2"

// topicCategories maps the built-in topics to NewsAPI categories.
var topicCategories = map[string]string{
	"tech":     "technology",
	"business": "business",
	"science":  "science",
}

// NewsAPI is a thin client for newsapi.org implementing tools.ContentSource.
type NewsAPI struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewNewsAPI(apiKey string) *NewsAPI {
	return &NewsAPI{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Topic returns top headlines for one of the built-in topic categories.
func (c *NewsAPI) Topic(ctx context.Context, topic string) ([]tools.Article, error) {
	category, ok := topicCategories[topic]
	if !ok {
		return nil, fmt.Errorf("unknown topic %q", topic)
	}
	q := url.Values{}
	q.Set("category", category)
	q.Set("language", "en")
	return c.fetch(ctx, "/top-headlines", q)
}

// Search queries the everything endpoint by keywords.
func (c *NewsAPI) Search(ctx context.Context, query, language, sortBy string) ([]tools.Article, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("language", language)
	q.Set("sortBy", sortBy)
	return c.fetch(ctx, "/everything", q)
}

func (c *NewsAPI) fetch(ctx context.Context, path string, q url.Values) ([]tools.Article, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("NewsAPI key not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apierr.Newf(apierr.KindUpstreamUnavailable, "NewsAPI unreachable: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, apierr.Newf(apierr.KindUpstreamUnavailable,
			"NewsAPI error: %d %s", resp.StatusCode, util.TruncateBytes(body))
	}

	var parsed struct {
		Articles []struct {
			Source struct {
				Name string `json:"name"`
			} `json:"source"`
			Title       string    `json:"title"`
			Description string    `json:"description"`
			URL         string    `json:"url"`
			PublishedAt time.Time `json:"publishedAt"`
		} `json:"articles"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, apierr.Newf(apierr.KindUpstreamUnavailable, "Malformed NewsAPI response: %v", err)
	}

	articles := make([]tools.Article, 0, len(parsed.Articles))
	for _, a := range parsed.Articles {
		articles = append(articles, tools.Article{
			Title:       a.Title,
			Link:        a.URL,
			Description: a.Description,
			Source:      a.Source.Name,
			PublishedAt: a.PublishedAt,
		})
	}
	return articles, nil
}
