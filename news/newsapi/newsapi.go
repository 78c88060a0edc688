package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ronguha/hedge-fund-agent/config"
	"github.com/ronguha/hedge-fund-agent/models"
	"github.com/ronguha/hedge-fund-agent/news"
)

// Client implements news.Adapter against a NewsAPI-style keyword search
// endpoint. The provider sorts by relevancy upstream, so every article gets
// the source-trusted relevance score instead of a recomputed one.
type Client struct {
	apiKey     string
	endpoint   string
	maxResults int
	httpClient *http.Client
}

type response struct {
	Status   string `json:"status"`
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

func New(cfg config.NewsAPIConfig) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://newsapi.org/v2/everything"
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string { return "newsapi" }

// buildQuery wraps the scenario description and each instrument in quotes and
// joins them with OR, matching the provider's query grammar.
func buildQuery(q news.Query) string {
	terms := append([]string{q.ScenarioDescription}, q.Instruments...)
	for i, t := range terms {
		terms[i] = fmt.Sprintf("%q", t)
	}
	return strings.Join(terms, " OR ")
}

func (c *Client) Fetch(ctx context.Context, q news.Query) ([]models.NewsArticle, error) {
	params := url.Values{}
	params.Add("q", buildQuery(q))
	params.Add("language", "en")
	params.Add("sortBy", "relevancy")
	params.Add("pageSize", fmt.Sprintf("%d", c.maxResults))
	params.Add("from", time.Now().Add(-q.Window).UTC().Format(time.RFC3339))

	reqURL := fmt.Sprintf("%s?%s", c.endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("newsapi error: %s", resp.Status)
	}

	var result response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	out := make([]models.NewsArticle, 0, len(result.Articles))
	for _, a := range result.Articles {
		if a.URL == "" {
			continue
		}
		source := a.Source.Name
		if source == "" {
			source = "Unknown"
		}
		out = append(out, models.NewsArticle{
			Title:          a.Title,
			URL:            a.URL,
			Source:         source,
			PublishedAt:    a.PublishedAt,
			Summary:        news.TruncateSummary(a.Description),
			RelevanceScore: news.SearchTrustedRelevance,
		})
	}
	return out, nil
}
